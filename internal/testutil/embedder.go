package testutil

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
)

// DeterministicEmbedder is an ai.Embedder that derives a stable
// pseudo-random unit vector from the input text. Identical text always
// embeds to the same vector and similar-length hashes differ, which is
// enough for storage round-trip tests without a live embedding service.
type DeterministicEmbedder struct {
	Dim int
}

// NewDeterministicEmbedder creates an embedder producing vectors of the
// given dimension.
func NewDeterministicEmbedder(dim int) *DeterministicEmbedder {
	return &DeterministicEmbedder{Dim: dim}
}

// Name implements ai.Embedder.
func (e *DeterministicEmbedder) Name() string { return "deterministic-test-embedder" }

// Register implements ai.Embedder. No-op: the embedder is used directly,
// never looked up through a registry.
func (e *DeterministicEmbedder) Register(r api.Registry) {}

// Embed implements ai.Embedder.
func (e *DeterministicEmbedder) Embed(_ context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	embeddings := make([]*ai.Embedding, 0, len(req.Input))
	for _, doc := range req.Input {
		var text string
		if len(doc.Content) > 0 {
			text = doc.Content[0].Text
		}
		embeddings = append(embeddings, &ai.Embedding{Embedding: e.vector(text)})
	}
	return &ai.EmbedResponse{Embeddings: embeddings}, nil
}

// vector expands an FNV hash of the text into a normalized vector.
func (e *DeterministicEmbedder) vector(text string) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, e.Dim)
	var norm float64
	for i := range vec {
		// xorshift64 keeps the sequence deterministic per seed.
		seed ^= seed << 13
		seed ^= seed >> 7
		seed ^= seed << 17
		v := float64(int64(seed)) / float64(math.MaxInt64)
		vec[i] = float32(v)
		norm += v * v
	}

	norm = math.Sqrt(norm)
	if norm == 0 {
		return vec
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}
