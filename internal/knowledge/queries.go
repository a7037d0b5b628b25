package knowledge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pgvector/pgvector-go"
)

// DBTX is the subset of pgx connection behavior the queries need. Both
// *pgxpool.Pool and pgx.Tx satisfy it.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// UpsertDocumentParams are the column values for one document row.
type UpsertDocumentParams struct {
	ID        string
	Content   string
	Embedding *pgvector.Vector
	Metadata  []byte
	CreatedAt pgtype.Timestamptz
}

// SearchDocumentsParams drive one vector similarity query.
type SearchDocumentsParams struct {
	QueryEmbedding *pgvector.Vector
	ResultLimit    int32
}

// SearchDocumentsRow is one similarity search hit.
type SearchDocumentsRow struct {
	ID         string
	Content    string
	Metadata   []byte
	CreatedAt  pgtype.Timestamptz
	Similarity float32
}

// Queries executes the documents-table SQL against a DBTX.
type Queries struct {
	db DBTX
}

// NewQueries creates a Queries bound to the given connection or pool.
func NewQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

const upsertDocument = `
INSERT INTO documents (id, content, embedding, metadata, created_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE
SET content = EXCLUDED.content,
    embedding = EXCLUDED.embedding,
    metadata = EXCLUDED.metadata,
    created_at = EXCLUDED.created_at
`

// UpsertDocument inserts a document row, replacing any existing row with
// the same ID.
func (q *Queries) UpsertDocument(ctx context.Context, arg UpsertDocumentParams) error {
	_, err := q.db.Exec(ctx, upsertDocument,
		arg.ID, arg.Content, arg.Embedding, arg.Metadata, arg.CreatedAt)
	if err != nil {
		return fmt.Errorf("upserting document %q: %w", arg.ID, err)
	}
	return nil
}

const searchDocuments = `
SELECT id, content, metadata, created_at,
       1 - (embedding <=> $1) AS similarity
FROM documents
ORDER BY embedding <=> $1
LIMIT $2
`

// SearchDocuments returns the rows nearest to the query embedding by
// cosine distance, best match first.
func (q *Queries) SearchDocuments(ctx context.Context, arg SearchDocumentsParams) ([]SearchDocumentsRow, error) {
	rows, err := q.db.Query(ctx, searchDocuments, arg.QueryEmbedding, arg.ResultLimit)
	if err != nil {
		return nil, fmt.Errorf("searching documents: %w", err)
	}
	defer rows.Close()

	var results []SearchDocumentsRow
	for rows.Next() {
		var row SearchDocumentsRow
		if err := rows.Scan(&row.ID, &row.Content, &row.Metadata, &row.CreatedAt, &row.Similarity); err != nil {
			return nil, fmt.Errorf("scanning search row: %w", err)
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading search rows: %w", err)
	}
	return results, nil
}

const countDocuments = `SELECT count(*) FROM documents`

// CountDocuments returns the total number of stored chunks.
func (q *Queries) CountDocuments(ctx context.Context) (int64, error) {
	var n int64
	if err := q.db.QueryRow(ctx, countDocuments).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return n, nil
}

const deleteDocumentsBySource = `DELETE FROM documents WHERE metadata->>'source' = $1`

// DeleteBySource removes every chunk ingested from the named source file.
// Used before re-ingesting a file so stale chunks do not linger.
func (q *Queries) DeleteBySource(ctx context.Context, source string) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteDocumentsBySource, source)
	if err != nil {
		return 0, fmt.Errorf("deleting documents for source %q: %w", source, err)
	}
	return tag.RowsAffected(), nil
}

// decodeMetadata unmarshals a metadata JSONB column into the string map
// used throughout the knowledge package. Nil input yields an empty map.
func decodeMetadata(raw []byte) (map[string]string, error) {
	md := map[string]string{}
	if len(raw) == 0 {
		return md, nil
	}
	if err := json.Unmarshal(raw, &md); err != nil {
		return nil, fmt.Errorf("decoding metadata: %w", err)
	}
	return md, nil
}
