package log

import (
	"cashflow/internal/core"
)

// Field names shared by every component.
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldClientIP    = "client_ip"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldQuery       = "query"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldUserAgent   = "user_agent"
	FieldError       = "error"
	FieldErrorType   = "error_type"
	FieldOperation   = "operation"
	FieldEntryID     = "entry_id"
	FieldParentID    = "parent_id"
	FieldAmountCents = "amount_cents"
	FieldOccurrences = "occurrences"
	FieldWindow      = "window"
	FieldYear        = "year"
	FieldMessageID   = "message_id"
)

const (
	ComponentApp        = "app"
	ComponentHTTP       = "http"
	ComponentEntries    = "entries"
	ComponentRecurrence = "recurrence"
	ComponentReports    = "reports"
	ComponentStorage    = "storage"
	ComponentAMQP       = "amqp"
	ComponentWorker     = "worker"
	ComponentSheets     = "sheets"
	ComponentCache      = "cache"
	ComponentRateLimit  = "rate_limit"
	ComponentCLI        = "cli"
)

const (
	ErrorTypeValidation  = "validation_error"
	ErrorTypeNotFound    = "not_found_error"
	ErrorTypeConflict    = "conflict_error"
	ErrorTypeUnavailable = "store_unavailable_error"
	ErrorTypeInternal    = "internal_error"
)

// ErrorType classifies err for the error_type field.
func ErrorType(err error) string {
	switch core.KindOf(err) {
	case core.KindValidation:
		return ErrorTypeValidation
	case core.KindNotFound:
		return ErrorTypeNotFound
	case core.KindConflict:
		return ErrorTypeConflict
	case core.KindStoreUnavailable:
		return ErrorTypeUnavailable
	default:
		return ErrorTypeInternal
	}
}

// LogFields builds slog attribute lists.
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithRequestID(id string) LogFields {
	f[FieldRequestID] = id
	return f
}

func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

// WithError adds the error text and its type. A nil err adds nothing.
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
		f[FieldErrorType] = ErrorType(err)
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

func (f LogFields) WithEntry(e core.Entry) LogFields {
	f[FieldEntryID] = e.ID
	f[FieldAmountCents] = e.Amount.Cents
	if e.TransactionID != nil {
		f[FieldParentID] = *e.TransactionID
	}
	return f
}

func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	if query != "" {
		f[FieldQuery] = query
	}
	if userAgent != "" {
		f[FieldUserAgent] = userAgent
	}
	return f
}

func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	return f
}

// ToSlice flattens the fields into slog's key/value form.
func (f LogFields) ToSlice() []any {
	out := make([]any, 0, len(f)*2)
	for k, v := range f {
		out = append(out, k, v)
	}
	return out
}
