// Package http exposes the ledger as a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"funetec/internal/log"
	"funetec/internal/middleware/ratelimit"
	"funetec/internal/middleware/security"
	"funetec/internal/middleware/trace"
	"funetec/internal/services"
	"funetec/internal/storage"
)

// Config holds the HTTP server settings.
type Config struct {
	Addr               string
	RateLimitPerMinute int
	TrustedProxies     []string
	BlockSuspicious    bool
}

// Deps are the collaborators the handlers call into. Broker may be nil when
// the server runs without AMQP.
type Deps struct {
	Ledger *services.LedgerService
	Inbox  *services.Inbox
	Repo   *storage.SQLiteRepository
	Broker BrokerHealth
	Logger *log.Logger
}

// BrokerHealth is satisfied by amqp.Client.
type BrokerHealth interface {
	Healthy() bool
}

// Server wraps http.Server with the ledger routes.
type Server struct {
	http.Server

	ledger   *services.LedgerService
	inbox    *services.Inbox
	repo     *storage.SQLiteRepository
	broker   BrokerHealth
	logger   *log.Logger
	started  time.Time
	validate *requestValidator

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(cfg Config, deps Deps) (*Server, error) {
	detector, err := security.NewDetector(cfg.TrustedProxies...)
	if err != nil {
		return nil, err
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.Discard()
	}

	s := &Server{
		ledger:           deps.Ledger,
		inbox:            deps.Inbox,
		repo:             deps.Repo,
		broker:           deps.Broker,
		logger:           logger.WithComponent(log.ComponentHTTP),
		started:          time.Now(),
		validate:         newRequestValidator(),
		rateLimiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute}),
		securityDetector: detector,
		traceMiddleware:  trace.NewMiddleware(),
	}

	mux := http.NewServeMux()
	s.routes(mux)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	var handler http.Handler = mux
	handler = s.limitWrites(handler)
	handler = detector.Middleware(cfg.BlockSuspicious)(handler)
	handler = headers.Middleware(handler)
	handler = log.AccessLog(detector.ExtractClientIP)(handler)
	handler = log.RequestIDMiddleware(trace.FromRequest)(handler)
	handler = log.Middleware(logger)(handler)
	handler = s.traceMiddleware.Middleware(handler)

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("POST /api/contracts", s.handleCreateContract)
	mux.HandleFunc("GET /api/contracts", s.handleListContracts)
	mux.HandleFunc("GET /api/contracts/{year}/{seq}", s.handleGetContract)
	mux.HandleFunc("POST /api/contracts/{year}/{seq}/cancel", s.handleCancelContract)
	mux.HandleFunc("POST /api/contracts/{year}/{seq}/archive", s.handleArchiveContract)
	mux.HandleFunc("POST /api/contracts/{year}/{seq}/regenerate", s.handleRegenerate)
	mux.HandleFunc("GET /api/contracts/{year}/{seq}/installments", s.handleContractInstallments)
	mux.HandleFunc("POST /api/contracts/{year}/{seq}/installments", s.handleAppendInstallment)

	mux.HandleFunc("POST /api/installments/{id}/payments", s.handleApplyPayment)
	mux.HandleFunc("GET /api/installments/{id}/payments", s.handlePaymentHistory)
	mux.HandleFunc("POST /api/installments/{id}/cancel", s.handleCancelInstallment)
	mux.HandleFunc("POST /api/installments/pay-batch", s.handlePayBatch)
	mux.HandleFunc("POST /api/installments/postpone", s.handlePostpone)

	mux.HandleFunc("GET /api/reports/aging", s.handleAgingReport)
	mux.HandleFunc("GET /api/reports/summary", s.handleSummary)
	mux.HandleFunc("GET /api/reports/payments", s.handlePaymentsReport)
	mux.HandleFunc("GET /api/reports/paid-installments", s.handlePaidInstallmentsReport)

	mux.HandleFunc("GET /api/notifications", s.handleListNotifications)
	mux.HandleFunc("POST /api/notifications/{id}/read", s.handleMarkNotificationRead)
}

// limitWrites rate limits every method except GET and HEAD.
func (s *Server) limitWrites(next http.Handler) http.Handler {
	limited := s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, s.onRateLimit)(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead {
			next.ServeHTTP(w, r)
			return
		}
		limited.ServeHTTP(w, r)
	})
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request, retryAfter int) {
	log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.securityDetector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	writeRetryAfter(w, retryAfter)
	writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded", Code: "rate_limited"})
}

// Shutdown stops accepting requests and releases the rate limiter. It is
// safe to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.logger.InfoContext(ctx, "Shutting down HTTP server", log.FieldOperation, log.OpShutdown)
		err = s.Server.Shutdown(ctx)
		s.rateLimiter.Stop()
	})
	return err
}
