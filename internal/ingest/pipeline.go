// Package ingest loads source documents, splits them into overlapping
// chunks, and writes the chunks to the knowledge store where the agent
// retrieves them.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/quasar-ai/quasar/internal/knowledge"
	"github.com/quasar-ai/quasar/internal/log"
)

// Store is the storage surface the pipeline consumes, satisfied by
// *knowledge.Store.
type Store interface {
	Add(ctx context.Context, doc knowledge.Document) error
	DeleteBySource(ctx context.Context, source string) (int64, error)
}

// Result summarizes one ingestion run over a directory.
type Result struct {
	FilesIngested int
	FilesSkipped  int
	FilesFailed   int
	ChunksAdded   int
	Duration      time.Duration
}

// Pipeline ingests files into the knowledge store.
type Pipeline struct {
	store    Store
	splitter *Splitter
	logger   log.Logger
}

// NewPipeline creates a pipeline with the default chunking parameters.
func NewPipeline(store Store, logger log.Logger) *Pipeline {
	return &Pipeline{
		store:    store,
		splitter: NewSplitter(DefaultChunkSize, DefaultChunkOverlap),
		logger:   logger,
	}
}

// IngestFile loads, chunks, and stores one file, returning the number of
// chunks written. Re-ingesting a file first removes its previous chunks,
// so the store never holds two generations of the same source.
func (p *Pipeline) IngestFile(ctx context.Context, path string) (int, error) {
	content, err := LoadFile(path)
	if err != nil {
		return 0, fmt.Errorf("loading %s: %w", path, err)
	}

	removed, err := p.store.DeleteBySource(ctx, content.Name)
	if err != nil {
		return 0, fmt.Errorf("removing previous chunks of %s: %w", content.Name, err)
	}
	if removed > 0 {
		p.logger.Debug("replaced previous ingestion", "source", content.Name, "chunks_removed", removed)
	}

	added := 0
	for _, page := range content.Pages {
		for i, chunk := range p.splitter.Split(page.Text) {
			doc := knowledge.Document{
				ID:        chunkID(content.Path, page.Number, i),
				Content:   chunk,
				Metadata:  chunkMetadata(content, page),
				CreatedAt: time.Now(),
			}
			if err := p.store.Add(ctx, doc); err != nil {
				return added, fmt.Errorf("storing chunk %d of %s: %w", i, content.Name, err)
			}
			added++
		}
	}

	p.logger.Info("file ingested", "source", content.Name, "pages", len(content.Pages), "chunks", added)
	return added, nil
}

// IngestDirectory walks a directory tree and ingests every supported
// file. A single file failing does not stop the walk; failures are
// counted and logged.
func (p *Pipeline) IngestDirectory(ctx context.Context, dir string) (*Result, error) {
	start := time.Now()
	result := &Result{}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving directory: %w", err)
	}

	err = filepath.Walk(absDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			result.FilesFailed++
			return nil
		}
		if info.IsDir() {
			return nil
		}
		if !Supported(path) {
			result.FilesSkipped++
			return nil
		}

		added, err := p.IngestFile(ctx, path)
		if err != nil {
			p.logger.Warn("skipping file after ingestion failure", "path", path, "error", err)
			result.FilesFailed++
			return nil
		}
		result.FilesIngested++
		result.ChunksAdded += added
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", absDir, err)
	}

	result.Duration = time.Since(start)
	return result, nil
}

// chunkMetadata builds the metadata attached to every chunk of a page.
// The agent's source attribution reads "source" and "page_number";
// page_number is omitted for sources without page structure.
func chunkMetadata(content *FileContent, page Page) map[string]string {
	metadata := map[string]string{
		"source":      content.Name,
		"source_type": content.SourceType,
	}
	if page.Number > 0 {
		metadata["page_number"] = strconv.Itoa(page.Number)
	}
	return metadata
}

// chunkID derives a stable document ID from the file path, page, and
// chunk index, so re-ingesting an unchanged file upserts in place.
func chunkID(path string, page, index int) string {
	hash := sha256.Sum256(fmt.Appendf(nil, "%s|%d|%d", path, page, index))
	return "chunk_" + hex.EncodeToString(hash[:16])
}
