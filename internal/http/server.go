// Package http serves the ledger record store over JSON.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/gorilla/mux"

	"condivise/internal/core"
	"condivise/internal/log"
	"condivise/internal/metrics"
	"condivise/internal/middleware/ratelimit"
	"condivise/internal/middleware/security"
	"condivise/internal/middleware/trace"
	"condivise/internal/services"
)

// ExpenseService is the ledger behaviour the handlers need.
// *services.ExpenseService satisfies it.
type ExpenseService interface {
	CreateExpense(ctx context.Context, rec core.ExpenseRecord) (core.ExpenseRecord, error)
	UpdateExpense(ctx context.Context, rec core.ExpenseRecord) (core.ExpenseRecord, error)
	DeleteExpense(ctx context.Context, id int64) error
	Ledger(ctx context.Context) (services.Ledger, error)
	Ping(ctx context.Context) error
}

var _ ExpenseService = (*services.ExpenseService)(nil)

// Options tune the server. The zero value serves without CORS, metrics
// or logging, with the default mutation rate limit.
type Options struct {
	CORSAllowedOrigins []string
	// MutationsPerMinute caps create, update and delete per client IP.
	MutationsPerMinute int
	Metrics            *metrics.Metrics
	Logger             *log.Logger
}

type Server struct {
	http.Server
	svc      ExpenseService
	logger   *log.Logger
	limiter  *ratelimit.Limiter
	detector *security.Detector
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, svc ExpenseService, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	s := &Server{
		svc:      svc,
		logger:   logger.WithComponent(log.ComponentHTTP),
		detector: security.NewDetector(),
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.MutationsPerMinute,
		}),
	}

	tm := trace.NewMiddleware(s.detector.ExtractClientIP, logger, opts.Metrics)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	chain := func(h http.Handler) http.Handler {
		h = s.flagSuspicious(h)
		h = headers.Middleware(h)
		h = log.RequestIDMiddleware(trace.RequestIDFromRequest)(h)
		h = log.Middleware(s.logger)(h)
		return tm.Middleware(h)
	}
	limit := s.limiter.Middleware(s.detector.ExtractClientIP, s.handleRateLimited)

	r := mux.NewRouter()
	r.Use(chain)
	r.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics.Handler()).Methods(http.MethodGet)
	}
	r.HandleFunc("/expenses", s.handleListExpenses).Methods(http.MethodGet)
	r.Handle("/add_expense", limit(http.HandlerFunc(s.handleCreateExpense))).
		Methods(http.MethodPost)
	r.Handle("/edit_expense/{id}", limit(http.HandlerFunc(s.handleUpdateExpense))).
		Methods(http.MethodPut, http.MethodPost)
	r.Handle("/delete_expense/{id}", limit(http.HandlerFunc(s.handleDeleteExpense))).
		Methods(http.MethodDelete)
	r.NotFoundHandler = chain(http.HandlerFunc(s.handleNotFound))
	r.MethodNotAllowedHandler = chain(http.HandlerFunc(s.handleMethodNotAllowed))

	var handler http.Handler = r
	if len(opts.CORSAllowedOrigins) > 0 {
		handler = cors.Handler(cors.Options{
			AllowedOrigins: opts.CORSAllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", trace.HeaderRequestID},
			ExposedHeaders: []string{trace.HeaderRequestID},
			MaxAge:         300,
		})(handler)
	}

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// flagSuspicious logs requests that look like scans; they are still served.
func (s *Server) flagSuspicious(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.detector.DetectSuspiciousRequest(r) {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Suspicious request",
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
				log.FieldClientIP, s.detector.ExtractClientIP(r))
		}
		next.ServeHTTP(w, r)
	})
}

// Shutdown stops the rate limiter and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.Stop()
	return s.Server.Shutdown(ctx)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := s.svc.Ping(ctx); err != nil {
		log.FromContext(r.Context()).WarnContext(ctx, "Readiness check failed", log.FieldError, err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}
	_, _ = w.Write([]byte("ready"))
}
