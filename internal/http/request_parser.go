package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"cashflow/internal/core"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// decodeJSON reads one JSON value from the body into v. Malformed bodies
// are validation errors on "body"; errors raised by custom decoders keep
// their own field.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, core.ErrValidation) {
			return err
		}
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return core.Invalid("body", "too large")
		case errors.Is(err, io.EOF):
			return core.Invalid("body", "empty")
		default:
			return &core.ValidationError{Field: "body", Reason: "malformed JSON", Err: err}
		}
	}
	return nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, core.Invalid("id", "must be a positive integer")
	}
	return id, nil
}

func queryInt(q url.Values, key string) (*int, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, core.Invalid(key, "must be an integer")
	}
	return &n, nil
}

func queryID(q url.Values, key string) (*int64, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return nil, core.Invalid(key, "must be a positive integer")
	}
	return &n, nil
}

func queryBool(q url.Values, key string) (*bool, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, core.Invalid(key, "must be true or false")
	}
	return &b, nil
}

func requiredDate(q url.Values, key string) (core.Date, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return core.Date{}, core.Invalid(key, "required")
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return core.Date{}, core.Invalid(key, fmt.Sprintf("%q is not a YYYY-MM-DD date", v))
	}
	return d, nil
}

// dateWindow reads the startDate and endDate pair shared by the analytics
// endpoints.
func dateWindow(q url.Values) (core.Date, core.Date, error) {
	start, err := requiredDate(q, "startDate")
	if err != nil {
		return core.Date{}, core.Date{}, err
	}
	end, err := requiredDate(q, "endDate")
	if err != nil {
		return core.Date{}, core.Date{}, err
	}
	return start, end, nil
}
