// Package knowledge implements the vector store the retrieval path reads
// from: PostgreSQL + pgvector rows of embedded document chunks, written by
// the ingestion pipeline and queried by cosine similarity at answer time.
package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pgvector/pgvector-go"
	"google.golang.org/genai"
)

// VectorDimension is the embedding width stored in the documents table.
// gemini-embedding-001 emits 3072 dimensions by default and supports
// truncation via OutputDimensionality; the schema in db/migrations is
// declared as vector(768) to match.
const VectorDimension int32 = 768

// Querier is the database surface Store depends on. Defined here, by the
// consumer, so tests can substitute a double without a live database.
type Querier interface {
	UpsertDocument(ctx context.Context, arg UpsertDocumentParams) error
	SearchDocuments(ctx context.Context, arg SearchDocumentsParams) ([]SearchDocumentsRow, error)
	CountDocuments(ctx context.Context) (int64, error)
	DeleteBySource(ctx context.Context, source string) (int64, error)
}

// Store manages document chunks with vector search. It embeds content via
// the configured genkit embedder and persists through a Querier.
//
// Store is safe for concurrent use: it holds only service handles and
// never mutates them per call.
type Store struct {
	queries  Querier
	embedder ai.Embedder
	logger   *slog.Logger
}

// New creates a Store. A nil logger falls back to slog.Default().
func New(querier Querier, embedder ai.Embedder, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		queries:  querier,
		embedder: embedder,
		logger:   logger,
	}
}

// Add embeds the document content and upserts the row.
func (s *Store) Add(ctx context.Context, doc Document) error {
	embedding, err := s.embed(ctx, doc.Content)
	if err != nil {
		return fmt.Errorf("embedding document %q: %w", doc.ID, err)
	}

	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling metadata for %q: %w", doc.ID, err)
	}

	err = s.queries.UpsertDocument(ctx, UpsertDocumentParams{
		ID:        doc.ID,
		Content:   doc.Content,
		Embedding: embedding,
		Metadata:  metadataJSON,
		CreatedAt: pgtype.Timestamptz{Time: doc.CreatedAt, Valid: !doc.CreatedAt.IsZero()},
	})
	if err != nil {
		return err
	}

	s.logger.Debug("added document", "id", doc.ID, "content_length", len(doc.Content))
	return nil
}

// Search embeds the query and returns the nearest chunks ordered by
// similarity, best match first. The search, embedding included, is
// bounded by the configured timeout.
func (s *Store) Search(ctx context.Context, query string, opts ...SearchOption) ([]Result, error) {
	cfg := buildSearchConfig(opts)

	queryCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	embedding, err := s.embed(queryCtx, query)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("query embedding timeout: %w", err)
		}
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	rows, err := s.queries.SearchDocuments(queryCtx, SearchDocumentsParams{
		QueryEmbedding: embedding,
		ResultLimit:    cfg.topK,
	})
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(rows))
	for _, row := range rows {
		metadata, err := decodeMetadata(row.Metadata)
		if err != nil {
			return nil, fmt.Errorf("document %q: %w", row.ID, err)
		}
		results = append(results, Result{
			Document: Document{
				ID:        row.ID,
				Content:   row.Content,
				Metadata:  metadata,
				CreatedAt: row.CreatedAt.Time,
			},
			Similarity: row.Similarity,
		})
	}

	s.logger.Debug("vector search", "query_length", len(query), "hits", len(results))
	return results, nil
}

// Count returns the number of stored chunks. Used by the readiness probe
// and the ingest command summary.
func (s *Store) Count(ctx context.Context) (int64, error) {
	return s.queries.CountDocuments(ctx)
}

// DeleteBySource removes all chunks previously ingested from source.
func (s *Store) DeleteBySource(ctx context.Context, source string) (int64, error) {
	return s.queries.DeleteBySource(ctx, source)
}

// embed runs one embedding call and converts the result to a pgvector
// value, truncated to VectorDimension.
func (s *Store) embed(ctx context.Context, text string) (*pgvector.Vector, error) {
	dim := VectorDimension
	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input:   []*ai.Document{ai.DocumentFromText(text, nil)},
		Options: &genai.EmbedContentConfig{OutputDimensionality: &dim},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, errors.New("embedder returned no embedding")
	}

	vec := pgvector.NewVector(resp.Embeddings[0].Embedding)
	return &vec, nil
}
