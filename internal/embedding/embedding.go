// Package embedding provides a pluggable interface for text embedding providers.
package embedding

import (
	"context"
	"errors"
	"math"
)

// Vector is a float32 embedding vector.
type Vector = []float32

// ErrEmbedding is returned when a provider cannot produce a vector.
var ErrEmbedding = errors.New("embedding failed")

// Embedder generates embedding vectors from text.
type Embedder interface {
	Embed(ctx context.Context, text string) (Vector, error)
	Dims() int
}

// CosineSimilarity computes cosine similarity between two vectors.
func CosineSimilarity(a, b Vector) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
