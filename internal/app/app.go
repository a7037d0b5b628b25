// Package app assembles the application: configuration, Genkit, the
// database pool, the knowledge store, the ingestion pipeline, and the
// question-answering agent, with ordered teardown.
package app

import (
	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quasar-ai/quasar/internal/agent"
	"github.com/quasar-ai/quasar/internal/config"
	"github.com/quasar-ai/quasar/internal/ingest"
	"github.com/quasar-ai/quasar/internal/knowledge"
	"github.com/quasar-ai/quasar/internal/log"
)

// App is the application container. Build it with Setup and release its
// resources with Close.
type App struct {
	Config *config.Config
	Logger log.Logger

	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	DBPool   *pgxpool.Pool

	Knowledge *knowledge.Store
	Pipeline  *ingest.Pipeline
	Agent     *agent.Agent

	otelCleanup func()
	dbCleanup   func()
}

// Close releases resources in reverse initialization order. Safe to call
// on a partially initialized App, which Setup relies on for cleanup
// after a failed start.
func (a *App) Close() error {
	if a.Logger != nil {
		a.Logger.Info("shutting down application")
	}

	if a.dbCleanup != nil {
		a.dbCleanup()
	}
	if a.otelCleanup != nil {
		a.otelCleanup()
	}
	return nil
}
