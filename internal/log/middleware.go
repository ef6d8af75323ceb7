package log

import (
	"net/http"
)

// Middleware stores logger, tagged with the HTTP component, in every
// request context. Handlers retrieve it with FromContext.
func Middleware(logger *Logger) func(http.Handler) http.Handler {
	httpLogger := logger.WithComponent(ComponentHTTP)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(WithRequestLogger(r.Context(), httpLogger)))
		})
	}
}

// RequestIDMiddleware adds the id returned by extract to the request logger.
func RequestIDMiddleware(extract func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := FromContext(r.Context()).With(FieldRequestID, extract(r))
			next.ServeHTTP(w, r.WithContext(WithRequestLogger(r.Context(), logger)))
		})
	}
}
