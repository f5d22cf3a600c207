package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand/v2"
)

// HashEmbedder derives a reproducible pseudo-random unit vector from the
// text hash. The vector carries no semantic content.
type HashEmbedder struct {
	dims int
}

// NewHashEmbedder creates a hash embedder producing dims-length vectors.
func NewHashEmbedder(dims int) *HashEmbedder {
	return &HashEmbedder{dims: dims}
}

func (e *HashEmbedder) Embed(_ context.Context, text string) (Vector, error) {
	return hashVector(text, e.dims), nil
}

func (e *HashEmbedder) Dims() int { return e.dims }

func hashVector(text string, dims int) Vector {
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	v := make(Vector, dims)
	var norm float64
	for i := range v {
		f := rng.NormFloat64()
		v[i] = float32(f)
		norm += f * f
	}
	if norm == 0 {
		return v
	}
	inv := 1 / math.Sqrt(norm)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
	return v
}
