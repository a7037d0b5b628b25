package knowledge

import "time"

// Document is the unit of retrieval: a bounded span of source text plus
// provenance metadata. Two documents with identical Content are treated as
// the same chunk by downstream deduplication, regardless of metadata.
type Document struct {
	ID        string            // Unique identifier
	Content   string            // Chunk text body
	Metadata  map[string]string // Provenance: source, page_number, source_type, ...
	CreatedAt time.Time         // Ingestion timestamp
}

// Result is a single search hit with its cosine similarity score.
type Result struct {
	Document   Document
	Similarity float32 // 0..1, higher is closer
}

// SearchOption configures a Search call using the functional options pattern.
type SearchOption func(*searchConfig)

type searchConfig struct {
	topK    int32
	timeout time.Duration
}

// DefaultTopK is the number of results returned per query when WithTopK
// is not supplied.
const DefaultTopK int32 = 4

// DefaultSearchTimeout bounds a single similarity search, embedding
// included, so a stuck vector query cannot hang a caller forever.
const DefaultSearchTimeout = 10 * time.Second

// WithTopK sets the maximum number of results to return.
func WithTopK(k int32) SearchOption {
	return func(c *searchConfig) {
		if k > 0 {
			c.topK = k
		}
	}
}

// WithTimeout overrides the per-search timeout.
func WithTimeout(d time.Duration) SearchOption {
	return func(c *searchConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func buildSearchConfig(opts []SearchOption) *searchConfig {
	cfg := &searchConfig{
		topK:    DefaultTopK,
		timeout: DefaultSearchTimeout,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
