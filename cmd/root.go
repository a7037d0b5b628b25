// Package cmd defines the quasar CLI: serving the HTTP API, ingesting
// documents, and one-shot question answering.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/quasar-ai/quasar/internal/config"
	"github.com/quasar-ai/quasar/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "quasar",
	Short: "Retrieval-augmented question answering over your documents",
	Long: `Quasar answers questions from a local knowledge base.

Ingest documents with "quasar ingest", then ask questions with
"quasar ask" or serve the HTTP API with "quasar serve". Questions the
knowledge base cannot answer get a clarification response instead of a
made-up answer.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfigAndLogger is the shared startup of every subcommand.
func loadConfigAndLogger() (*config.Config, log.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	logger := log.New(log.Config{
		Level: log.ParseLevel(cfg.LogLevel),
		JSON:  cfg.LogJSON,
	})
	return cfg, logger, nil
}
