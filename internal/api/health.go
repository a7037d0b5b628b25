package api

import (
	"context"
	"net/http"

	"github.com/quasar-ai/quasar/internal/log"
)

// pinger is the readiness surface of the database pool, satisfied by
// *pgxpool.Pool.
type pinger interface {
	Ping(ctx context.Context) error
}

// healthHandler serves the liveness and readiness probes.
type healthHandler struct {
	pool   pinger
	logger log.Logger
}

// liveness reports that the process is up. It deliberately checks
// nothing else: a hung database must not make the orchestrator restart
// the process.
func (h *healthHandler) liveness(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// readiness reports whether the service can answer questions, which
// requires a reachable database.
func (h *healthHandler) readiness(w http.ResponseWriter, r *http.Request) {
	if h.pool == nil {
		http.Error(w, "database pool not configured", http.StatusServiceUnavailable)
		return
	}
	if err := h.pool.Ping(r.Context()); err != nil {
		h.logger.Error("readiness check failed", "error", err)
		http.Error(w, "database not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
