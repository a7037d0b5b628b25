package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/core/tracing"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/quasar-ai/quasar/db"
	"github.com/quasar-ai/quasar/internal/agent"
	"github.com/quasar-ai/quasar/internal/config"
	"github.com/quasar-ai/quasar/internal/ingest"
	"github.com/quasar-ai/quasar/internal/knowledge"
	"github.com/quasar-ai/quasar/internal/log"
)

// Setup builds a fully wired App. On failure, everything initialized so
// far is torn down before the error returns.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	a := &App{Config: cfg, Logger: logger}

	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	// Tracing registers on Genkit's TracerProvider, so it must be ready
	// before genkit.Init.
	a.otelCleanup = provideTracing(ctx, cfg, logger)

	pool, dbCleanup, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.DBPool = pool
	a.dbCleanup = dbCleanup

	g, err := provideGenkit(ctx)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found", cfg.EmbedderModel)
	}
	a.Embedder = embedder

	a.Knowledge = knowledge.New(knowledge.NewQueries(pool), embedder, logger)
	a.Pipeline = ingest.NewPipeline(a.Knowledge, logger)

	llm := agent.NewGenkitLLM(g, cfg.FullModelName())
	qa, err := agent.New(llm, searcherWithTopK(a.Knowledge, cfg.TopK), logger)
	if err != nil {
		return nil, err
	}
	a.Agent = qa

	return a, nil
}

// searcherWithTopK fixes the configured top-k on every search the agent
// issues.
func searcherWithTopK(s agent.Searcher, topK int32) agent.Searcher {
	return searchFunc(func(ctx context.Context, query string, opts ...knowledge.SearchOption) ([]knowledge.Result, error) {
		opts = append([]knowledge.SearchOption{knowledge.WithTopK(topK)}, opts...)
		return s.Search(ctx, query, opts...)
	})
}

type searchFunc func(ctx context.Context, query string, opts ...knowledge.SearchOption) ([]knowledge.Result, error)

func (f searchFunc) Search(ctx context.Context, query string, opts ...knowledge.SearchOption) ([]knowledge.Result, error) {
	return f(ctx, query, opts...)
}

// provideTracing exports spans over OTLP HTTP to the configured
// collector. An empty endpoint disables tracing; an unreachable
// exporter logs a warning rather than failing startup.
func provideTracing(ctx context.Context, cfg *config.Config, logger log.Logger) func() {
	if cfg.TracingEndpoint == "" {
		return func() {}
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.TracingEndpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		logger.Warn("creating trace exporter, tracing disabled", "error", err)
		return func() {}
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)
	logger.Info("tracing enabled", "endpoint", cfg.TracingEndpoint)

	shutdown := tracing.TracerProvider().Shutdown
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down tracer provider", "error", err)
		}
	}
}

// provideGenkit initializes Genkit with the Google AI plugin, which
// reads GEMINI_API_KEY from the environment.
func provideGenkit(ctx context.Context) (*genkit.Genkit, error) {
	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		return nil, errors.New("initializing genkit")
	}
	return g, nil
}

// provideDBPool runs migrations and creates the connection pool.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, func(), error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, pool.Close, nil
}
