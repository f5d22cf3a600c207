package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
)

// Resilient wraps an Embedder so that callers always get a vector of the
// configured dimension. When the wrapped provider fails, or none is
// configured, it falls back to a hash-derived vector and marks itself
// degraded.
type Resilient struct {
	inner     Embedder
	dims      int
	logger    *slog.Logger
	degraded  atomic.Bool
	fallbacks atomic.Int64
}

// NewResilient wraps inner. A nil inner runs in permanent degraded mode.
func NewResilient(inner Embedder, dims int, logger *slog.Logger) *Resilient {
	r := &Resilient{inner: inner, dims: dims, logger: logger}
	r.degraded.Store(inner == nil)
	return r
}

// Embed never returns an error.
func (r *Resilient) Embed(ctx context.Context, text string) (Vector, error) {
	v, _ := r.EmbedText(ctx, text)
	return v, nil
}

// EmbedText returns the vector for text and whether it came from the
// hash fallback.
func (r *Resilient) EmbedText(ctx context.Context, text string) (Vector, bool) {
	if r.inner == nil {
		r.fallbacks.Add(1)
		return hashVector(text, r.dims), true
	}

	v, err := r.inner.Embed(ctx, text)
	if err == nil && len(v) != r.dims {
		err = fmt.Errorf("%w: provider returned %d dims, want %d", ErrEmbedding, len(v), r.dims)
	}
	if err != nil {
		if !r.degraded.Swap(true) {
			r.logger.Warn("embedding provider unavailable, using hash fallback", "error", err)
		}
		r.fallbacks.Add(1)
		return hashVector(text, r.dims), true
	}

	if r.degraded.Swap(false) {
		r.logger.Info("embedding provider recovered")
	}
	return v, false
}

// Degraded reports whether the most recent call used the hash fallback.
func (r *Resilient) Degraded() bool { return r.degraded.Load() }

// Fallbacks returns how many vectors were produced by the fallback.
func (r *Resilient) Fallbacks() int64 { return r.fallbacks.Load() }

func (r *Resilient) Dims() int { return r.dims }
