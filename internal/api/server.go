// Package api exposes the question-answering service over HTTP: the
// chat endpoint, health probes, and the middleware stack around them.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quasar-ai/quasar/internal/log"
)

const (
	// ShutdownTimeout bounds graceful shutdown; in-flight generations get
	// this long to finish.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout guards against Slowloris-style connections.
	ReadHeaderTimeout = 10 * time.Second

	ReadTimeout = 30 * time.Second

	// WriteTimeout allows for slow model generations.
	WriteTimeout = 120 * time.Second

	IdleTimeout = 120 * time.Second
)

// ServerConfig carries the dependencies and settings of the HTTP server.
type ServerConfig struct {
	Logger log.Logger

	// Agent answers POST /api/v1/chat. Required.
	Agent Answerer

	// Pool backs the readiness probe. Optional: nil makes /ready report
	// unavailable.
	Pool *pgxpool.Pool

	// CORSOrigins lists the origins allowed to call the API.
	CORSOrigins []string

	// RateLimitRPS and RateLimitBurst configure the per-IP token bucket.
	// Non-positive values select the defaults (5 rps, burst 10).
	RateLimitRPS   float64
	RateLimitBurst int
}

// Server is the HTTP server for the question-answering API.
type Server struct {
	handler http.Handler
	logger  log.Logger
}

// NewServer wires routes and middleware. The health probes sit outside
// the middleware stack so probes are never rate limited or logged as
// traffic.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Agent == nil {
		return nil, errors.New("agent is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	ch := &chatHandler{agent: cfg.Agent, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/chat", ch.ask)

	rps := cfg.RateLimitRPS
	if rps <= 0 {
		rps = 5
	}
	burst := cfg.RateLimitBurst
	if burst <= 0 {
		burst = 10
	}
	rl := newRateLimiter(rps, burst)

	// Outermost first: Recovery → RequestID → Logging → CORS → RateLimit.
	// RequestID precedes Logging so access log lines carry the ID; CORS
	// precedes RateLimit so preflights always get their headers.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	hh := &healthHandler{logger: logger}
	if cfg.Pool != nil {
		hh.pool = cfg.Pool
	}

	top := http.NewServeMux()
	top.HandleFunc("GET /health", hh.liveness)
	top.HandleFunc("GET /ready", hh.readiness)
	top.Handle("/", handler)

	return &Server{handler: top, logger: logger}, nil
}

// Handler returns the server as an http.Handler, for tests and custom
// serving setups.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves on addr until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
