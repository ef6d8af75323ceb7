package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"cashflow/internal/core"
	applog "cashflow/internal/log"
)

// retryAfterSeconds is advertised on 503 responses.
const retryAfterSeconds = "5"

type errorBody struct {
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	Field     string `json:"field,omitempty"`
	Component string `json:"component,omitempty"`
	Window    string `json:"window,omitempty"`
	// RetryAfter mirrors the Retry-After header of a 429.
	RetryAfter int `json:"retryAfterSeconds,omitempty"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// statusOf maps the error taxonomy onto HTTP status codes.
func statusOf(kind core.Kind) int {
	switch kind {
	case core.KindValidation:
		return http.StatusBadRequest
	case core.KindNotFound:
		return http.StatusNotFound
	case core.KindConflict:
		return http.StatusConflict
	case core.KindStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as the JSON error envelope. Internal errors keep
// their detail in the log only.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := core.KindOf(err)
	status := statusOf(kind)
	body := errorBody{Kind: string(kind), Message: err.Error()}

	var ve *core.ValidationError
	if errors.As(err, &ve) {
		body.Field = ve.Field
		body.Message = ve.Error()
	}
	var oe *core.OpError
	if errors.As(err, &oe) {
		body.Component = oe.Component
		body.Window = oe.Window
	}

	logger := applog.FromContext(r.Context())
	fields := applog.NewFields().WithError(err).ToSlice()
	switch {
	case status >= http.StatusInternalServerError:
		logger.ErrorContext(r.Context(), "Request failed", fields...)
	default:
		logger.DebugContext(r.Context(), "Request rejected", fields...)
	}

	if kind == core.KindInternal {
		body.Message = "internal error"
	}
	if status == http.StatusServiceUnavailable || kind == core.KindConflict {
		w.Header().Set("Retry-After", retryAfterSeconds)
	}
	writeJSON(w, status, errorEnvelope{Error: body})
}
