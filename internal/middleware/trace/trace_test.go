package trace

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	applog "cashflow/internal/log"
)

func TestMiddleware_AssignsRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := applog.New(applog.Config{Level: slog.LevelInfo, Format: "json", Output: &buf})
	m := NewMiddleware(func(*http.Request) string { return "10.0.0.1" })

	var seen string
	h := applog.Middleware(logger)(m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r)
		w.WriteHeader(http.StatusNotFound)
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/entries/9", nil))

	if !strings.HasPrefix(seen, "req_") {
		t.Errorf("request id = %q, want req_ prefix", seen)
	}
	if got := rec.Header().Get(HeaderRequestID); got != seen {
		t.Errorf("response %s = %q, want %q", HeaderRequestID, got, seen)
	}
	out := buf.String()
	if !strings.Contains(out, `"status_code":404`) || !strings.Contains(out, `"level":"WARN"`) {
		t.Errorf("completion log = %s, want a WARN with status 404", out)
	}
	if got := m.GetMetrics(); got.TotalRequests != 1 || got.ServerErrors != 0 {
		t.Errorf("GetMetrics() = %+v", got)
	}
}

func TestMiddleware_HonorsIncomingID(t *testing.T) {
	m := NewMiddleware(nil)
	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{"kept", "abc-123", true},
		{"too long", strings.Repeat("x", 200), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = GetRequestID(r.Context())
			}))
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.Header.Set(HeaderRequestID, tt.incoming)
			h.ServeHTTP(httptest.NewRecorder(), r)
			if (seen == tt.incoming) != tt.keep {
				t.Errorf("request id = %q, keep incoming = %v", seen, tt.keep)
			}
		})
	}
}
