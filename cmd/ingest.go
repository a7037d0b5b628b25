package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/quasar-ai/quasar/internal/app"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [path...]",
	Short: "Load documents into the knowledge base",
	Long: `Ingest loads PDF, Markdown, and plain-text files, splits them into
overlapping chunks, embeds each chunk, and stores the result in the
knowledge base. Directories are walked recursively. Re-ingesting a file
replaces its previous chunks.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return runIngest(args)
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(paths []string) error {
	cfg, logger, err := loadConfigAndLogger()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx := context.Background()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	totalFiles, totalChunks := 0, 0
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("stat %s: %w", path, err)
		}

		if info.IsDir() {
			result, err := a.Pipeline.IngestDirectory(ctx, path)
			if err != nil {
				return fmt.Errorf("ingesting %s: %w", path, err)
			}
			fmt.Printf("%s: %d files ingested, %d skipped, %d failed, %d chunks (%s)\n",
				path, result.FilesIngested, result.FilesSkipped, result.FilesFailed,
				result.ChunksAdded, result.Duration.Round(10*time.Millisecond))
			totalFiles += result.FilesIngested
			totalChunks += result.ChunksAdded
			continue
		}

		added, err := a.Pipeline.IngestFile(ctx, path)
		if err != nil {
			return fmt.Errorf("ingesting %s: %w", path, err)
		}
		fmt.Printf("%s: %d chunks\n", path, added)
		totalFiles++
		totalChunks += added
	}

	count, err := a.Knowledge.Count(ctx)
	if err == nil {
		fmt.Printf("\nKnowledge base now holds %d chunks (%d files, %d chunks added this run)\n",
			count, totalFiles, totalChunks)
	}
	return nil
}
