package core

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for callers that need to branch on it
// (HTTP status mapping, retry decisions, log fields).
type Kind string

const (
	KindValidation       Kind = "validation"
	KindNotFound         Kind = "not_found"
	KindConflict         Kind = "conflict"
	KindStoreUnavailable Kind = "store_unavailable"
	KindInternal         Kind = "internal"
)

var (
	ErrValidation       = errors.New("validation failed")
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// ValidationError reports malformed or out-of-range input. It is raised
// before any store access.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }
func (e *ValidationError) Unwrap() error        { return e.Err }

// Invalid is shorthand for a ValidationError on field.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// NotFoundError reports a referenced entry, category or filter that does not exist.
type NotFoundError struct {
	Resource string
	ID       int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ConflictError reports a lost race on a shared row, typically two
// reconciliations of the same parent.
type ConflictError struct {
	Resource string
	ID       int64
	Err      error
}

func (e *ConflictError) Error() string {
	msg := fmt.Sprintf("conflict on %s %d", e.Resource, e.ID)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }
func (e *ConflictError) Unwrap() error        { return e.Err }

// StoreUnavailableError wraps timeouts and connection failures from the store.
// Callers may retry.
type StoreUnavailableError struct {
	Op  string
	Err error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("store unavailable during %s: %v", e.Op, e.Err)
}

func (e *StoreUnavailableError) Is(target error) bool { return target == ErrStoreUnavailable }
func (e *StoreUnavailableError) Unwrap() error        { return e.Err }

// OpError annotates an error with the component that failed and the input
// window it was working on.
type OpError struct {
	Component string
	Window    string
	Err       error
}

func (e *OpError) Error() string {
	if e.Window == "" {
		return e.Component + ": " + e.Err.Error()
	}
	return fmt.Sprintf("%s [%s]: %v", e.Component, e.Window, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// Annotate wraps err with component and window context. A nil err stays nil.
func Annotate(component, window string, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Component: component, Window: window, Err: err}
}

// Window formats a date range the way it appears in error context and logs.
func Window(start, end Date) string {
	return start.String() + ".." + end.String()
}

// KindOf maps err onto the error taxonomy.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrStoreUnavailable):
		return KindStoreUnavailable
	default:
		return KindInternal
	}
}

// IsRetryable reports whether repeating the same call may succeed.
func IsRetryable(err error) bool {
	k := KindOf(err)
	return k == KindConflict || k == KindStoreUnavailable
}
