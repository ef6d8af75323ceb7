package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	applog "cashflow/internal/log"
	"cashflow/internal/middleware/ratelimit"
	"cashflow/internal/middleware/security"
	"cashflow/internal/middleware/trace"
	"cashflow/internal/services"
)

// Pinger reports whether the backing store answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services bundles what the handlers call into.
type Services struct {
	Entries *services.EntryService
	Queries *services.QueryService
	Reports *services.ReportService
	Catalog *services.CatalogService
	Store   Pinger
}

type Config struct {
	Addr               string
	RateLimitPerMinute int
	TrustedProxies     []string
	// ReadyTimeout bounds the store ping behind /readyz.
	ReadyTimeout time.Duration
}

type Server struct {
	http.Server
	svc      Services
	logger   *applog.Logger
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	readyTimeout time.Duration
	shutdownOnce sync.Once
}

// NewServer wires routes and middleware. Health endpoints bypass the rate
// limiter.
func NewServer(cfg Config, svc Services, logger *applog.Logger) *Server {
	if logger == nil {
		logger = applog.FromContext(context.Background())
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = 2 * time.Second
	}

	detector := security.NewDetector()
	for _, cidr := range cfg.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring trusted proxy", applog.FieldError, err)
		}
	}

	s := &Server{
		svc:          svc,
		logger:       logger.WithComponent(applog.ComponentHTTP),
		limiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute}),
		detector:     detector,
		tracer:       trace.NewMiddleware(detector.ExtractClientIP),
		readyTimeout: cfg.ReadyTimeout,
	}
	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /debug/metrics", s.handleMetrics)

	api := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, s.limiter.Middleware(s.detector.ExtractClientIP, s.onRateLimit)(h))
	}

	api("GET /api/entries", s.handleListEntries)
	api("POST /api/entries", s.handleCreateEntry)
	api("GET /api/entries/{id}", s.handleGetEntry)
	api("PUT /api/entries/{id}", s.handleUpdateEntry)
	api("DELETE /api/entries/{id}", s.handleDeleteEntry)

	api("GET /api/scheduled", s.handleListScheduled)
	api("GET /api/scheduled/summary", s.handleScheduledSummary)
	api("PUT /api/scheduled/{id}/disabled", s.handleSetDisabled)

	api("GET /api/reports/monthly", s.handleMonthlyTotals)
	api("GET /api/analytics/breakdown", s.handleBreakdown)
	api("GET /api/analytics/categories", s.handleCategorySlices)
	api("GET /api/analytics/balance", s.handleBalanceHistory)
	api("GET /api/capital", s.handleCapital)

	api("GET /api/categories", s.handleListCategories)
	api("POST /api/categories", s.handleCreateCategory)
	api("PUT /api/categories/{id}", s.handleUpdateCategory)
	api("DELETE /api/categories/{id}", s.handleDeleteCategory)

	api("GET /api/filters", s.handleListFilters)
	api("POST /api/filters", s.handleCreateFilter)
	api("GET /api/filters/{id}", s.handleGetFilter)
	api("PUT /api/filters/{id}", s.handleUpdateFilter)
	api("DELETE /api/filters/{id}", s.handleDeleteFilter)

	return chain(mux,
		applog.Middleware(s.logger),
		s.tracer.Middleware,
		applog.RequestIDMiddleware(trace.RequestID),
		security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware,
		s.detector.Middleware,
	)
}

// chain applies middleware so that the first one listed runs first.
func chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request, retryAfter time.Duration) {
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.detector.ExtractClientIP(r),
		applog.FieldPath, r.URL.Path)
	writeJSON(w, http.StatusTooManyRequests, errorEnvelope{Error: errorBody{
		Kind:       "rate_limited",
		Message:    "too many requests",
		RetryAfter: ratelimit.RetryAfterSeconds(retryAfter),
	}})
}

// Shutdown stops background work and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.svc.Store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), s.readyTimeout)
		defer cancel()
		if err := s.svc.Store.Ping(ctx); err != nil {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", applog.FieldError, err)
			w.Header().Set("Retry-After", "5")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleMetrics reports the middleware counters since startup.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toMetrics(s.tracer.GetMetrics(), s.limiter.GetMetrics(), s.detector.GetMetrics()))
}
