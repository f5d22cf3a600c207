package embedding

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/companion-brain/internal/config"
	"github.com/rcliao/companion-brain/internal/logger"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Vector
		expected float64
		delta    float64
	}{
		{"identical", Vector{1, 0, 0}, Vector{1, 0, 0}, 1.0, 0.001},
		{"orthogonal", Vector{1, 0, 0}, Vector{0, 1, 0}, 0.0, 0.001},
		{"opposite", Vector{1, 0, 0}, Vector{-1, 0, 0}, -1.0, 0.001},
		{"similar", Vector{1, 1, 0}, Vector{1, 0, 0}, 0.707, 0.01},
		{"empty", Vector{}, Vector{}, 0.0, 0.001},
		{"different lengths", Vector{1, 0}, Vector{1, 0, 0}, 0.0, 0.001},
		{"zero vector", Vector{0, 0, 0}, Vector{1, 0, 0}, 0.0, 0.001},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			assert.InDelta(t, tt.expected, got, tt.delta)
		})
	}
}

func TestHashEmbedderDeterministic(t *testing.T) {
	e := NewHashEmbedder(384)
	a, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	b, _ := e.Embed(context.Background(), "hello")
	c, _ := e.Embed(context.Background(), "goodbye")

	assert.Len(t, a, 384)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.InDelta(t, 1.0, CosineSimilarity(a, a), 1e-6)

	var norm float64
	for _, f := range a {
		norm += float64(f) * float64(f)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-4)
}

type failing struct{ dims int }

func (f failing) Embed(context.Context, string) (Vector, error) { return nil, ErrEmbedding }
func (f failing) Dims() int                                      { return f.dims }

type fixed struct{ v Vector }

func (f fixed) Embed(context.Context, string) (Vector, error) { return f.v, nil }
func (f fixed) Dims() int                                      { return len(f.v) }

func TestResilientFallsBack(t *testing.T) {
	r := NewResilient(failing{dims: 8}, 8, logger.Nop())
	assert.False(t, r.Degraded())

	v, err := r.Embed(context.Background(), "text")
	require.NoError(t, err)
	assert.Len(t, v, 8)
	assert.True(t, r.Degraded())
	assert.Equal(t, int64(1), r.Fallbacks())

	again, degraded := r.EmbedText(context.Background(), "text")
	assert.True(t, degraded)
	assert.Equal(t, v, again)
}

func TestResilientRejectsWrongDims(t *testing.T) {
	r := NewResilient(fixed{v: Vector{1, 2, 3}}, 4, logger.Nop())
	v, degraded := r.EmbedText(context.Background(), "x")
	assert.True(t, degraded)
	assert.Len(t, v, 4)
}

func TestResilientRecovers(t *testing.T) {
	inner := &toggle{v: Vector{1, 0}}
	r := NewResilient(inner, 2, logger.Nop())

	inner.fail = true
	_, degraded := r.EmbedText(context.Background(), "x")
	assert.True(t, degraded)

	inner.fail = false
	v, degraded := r.EmbedText(context.Background(), "x")
	assert.False(t, degraded)
	assert.False(t, r.Degraded())
	assert.Equal(t, Vector{1, 0}, v)
}

type toggle struct {
	v    Vector
	fail bool
}

func (t *toggle) Embed(context.Context, string) (Vector, error) {
	if t.fail {
		return nil, ErrEmbedding
	}
	return t.v, nil
}
func (t *toggle) Dims() int { return len(t.v) }

func TestNilProviderIsDegraded(t *testing.T) {
	r := NewResilient(nil, 16, logger.Nop())
	assert.True(t, r.Degraded())
	v, degraded := r.EmbedText(context.Background(), "a")
	assert.True(t, degraded)
	assert.Len(t, v, 16)
}

func TestOllamaEmbedder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embeddings", r.URL.Path)
		var req ollamaRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "all-minilm", req.Model)
		assert.Equal(t, "cats", req.Prompt)
		json.NewEncoder(w).Encode(ollamaResponse{Embedding: []float32{0.5, 0.5}})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL, "all-minilm", 2, time.Second)
	v, err := e.Embed(context.Background(), "cats")
	require.NoError(t, err)
	assert.Equal(t, Vector{0.5, 0.5}, v)
}

func TestOllamaEmbedderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewOllamaEmbedder(srv.URL, "missing", 2, time.Second).Embed(context.Background(), "x")
	assert.ErrorIs(t, err, ErrEmbedding)
}

func TestOpenAIEmbedder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"object":"list","model":"m","data":[{"object":"embedding","index":0,"embedding":[0.25,0.75]}],"usage":{"prompt_tokens":1,"total_tokens":1}}`))
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder(srv.URL, "test-key", "m", 2)
	v, err := e.Embed(context.Background(), "cats")
	require.NoError(t, err)
	assert.Equal(t, Vector{0.25, 0.75}, v)
}

func TestNewFromConfig(t *testing.T) {
	r, err := New(config.EmbeddingConfig{}, 384, logger.Nop())
	require.NoError(t, err)
	assert.True(t, r.Degraded())

	r, err = New(config.EmbeddingConfig{Provider: "ollama"}, 384, logger.Nop())
	require.NoError(t, err)
	assert.Equal(t, 384, r.Dims())

	_, err = New(config.EmbeddingConfig{Provider: "bogus"}, 384, logger.Nop())
	assert.Error(t, err)
}
