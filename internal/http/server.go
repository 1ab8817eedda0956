package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"ledger/internal/core"
	"ledger/internal/log"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SettlementLister lists committed settlements of one processing month.
type SettlementLister interface {
	ListSettlements(ctx context.Context, year, month int) ([]core.SettlementRecord, error)
}

// StatementPreviewer computes a read-only statement for one card.
type StatementPreviewer interface {
	Preview(ctx context.Context, paymentMethodID int64, year, month int) (core.StatementPreview, error)
}

// Deps are the collaborators behind the status routes. A nil field leaves
// its route unmounted, except Ready which then always reports ready.
type Deps struct {
	Ready       Pinger
	Settlements SettlementLister
	Statements  StatementPreviewer
	Metrics     http.Handler
	Logger      *log.Logger
}

// Server is the read-only status surface of the settlement worker.
type Server struct {
	http.Server

	deps        Deps
	logger      *log.Logger
	rateLimiter *rateLimiter

	shutdownOnce sync.Once
}

// NewServer configures routes, returning a ready-to-run http.Server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.ForComponent(log.ComponentHTTP)
	}

	s := &Server{
		deps:        deps,
		logger:      logger,
		rateLimiter: newRateLimiter(60, time.Minute),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics)
	}
	if deps.Settlements != nil {
		mux.HandleFunc("GET /api/settlements", s.withSecurityHeaders(s.handleListSettlements))
	}
	if deps.Statements != nil {
		mux.HandleFunc("GET /api/cards/{id}/statement", s.withSecurityHeaders(s.handleStatement))
	}

	s.Server = http.Server{
		Addr:              addr,
		Handler:           log.Middleware(logger)(mux),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Shutdown gracefully shuts down the server and the rate limiter cleanup.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// withSecurityHeaders adds security headers and per-client rate limiting to
// the API routes.
func (s *Server) withSecurityHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientIP := extractClientIP(r)
		if !s.rateLimiter.allow(clientIP) {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
				"client_ip", clientIP,
				log.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			ErrorJSON(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store")
		next(w, r)
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().
		Body(map[string]string{"status": "ok"}).
		Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Ready.Ping(ctx); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			ErrorJSON(w, http.StatusServiceUnavailable, "storage unavailable")
			return
		}
	}
	NewJSONResponse().
		Body(map[string]string{"status": "ready"}).
		Write(w)
}
