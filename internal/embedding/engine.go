// Package embedding defines the query-time embedding contract consumed by
// the memory core. It intentionally ships no concrete provider (Ollama,
// GenAI, ...) — those are language-model adapters and out of this core's
// scope; callers inject their own Embedder implementation.
package embedding

import (
	"context"
	"fmt"
	"math"
	"sort"

	"sunwellmem/internal/logging"
)

// Embedder generates vector embeddings for text. It mirrors the
// EmbeddingProtocol referenced by the unified memory store and the decision
// memory's semantic lookup.
type Embedder interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the dimensionality of embeddings this engine
	// produces. The embedding index must be (re)initialized if this value
	// changes between calls to SetEmbedder.
	Dimensions() int

	// Name identifies the engine for logging/diagnostics.
	Name() string
}

// CosineSimilarity computes the cosine similarity between two vectors of
// equal length, in [-1, 1]. Returns an error on dimension mismatch.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vectors must have the same length: %d != %d", len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// SimilarityResult is one ranked result of a top-K search.
type SimilarityResult struct {
	Index      int
	Similarity float64
}

// FindTopK returns the top-k most similar vectors to query out of corpus,
// ranked by cosine similarity descending. Vectors with mismatched dimensions
// are skipped and logged, never fatal to the rest of the search.
func FindTopK(query []float32, corpus [][]float32, k int) []SimilarityResult {
	timer := logging.StartTimer(logging.CategoryEmbedding, "FindTopK")
	defer timer.Stop()

	if k <= 0 {
		k = 10
	}

	results := make([]SimilarityResult, 0, len(corpus))
	skipped := 0
	for i, vec := range corpus {
		sim, err := CosineSimilarity(query, vec)
		if err != nil {
			skipped++
			continue
		}
		results = append(results, SimilarityResult{Index: i, Similarity: sim})
	}
	if skipped > 0 {
		logging.EmbeddingDebug("FindTopK: skipped %d vectors due to dimension mismatch", skipped)
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Similarity > results[j].Similarity })

	if len(results) > k {
		results = results[:k]
	}
	return results
}
