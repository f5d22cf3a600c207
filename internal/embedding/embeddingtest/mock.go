// Package embeddingtest provides test doubles for embedding providers.
package embeddingtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/rcliao/companion-brain/internal/embedding"
)

// MockEmbedder returns fixed vectors per text.
type MockEmbedder struct {
	Embeddings map[string]embedding.Vector
	// Default is returned for texts missing from Embeddings.
	Default embedding.Vector
	// FailOn makes Embed fail for a matching text.
	FailOn string
	// FailAll makes every call fail.
	FailAll bool

	mu    sync.Mutex
	calls int
}

// NewMockEmbedder returns a mock producing dims-length vectors.
func NewMockEmbedder(dims int) *MockEmbedder {
	def := make(embedding.Vector, dims)
	if dims > 0 {
		def[dims-1] = 1
	}
	return &MockEmbedder{
		Embeddings: make(map[string]embedding.Vector),
		Default:    def,
	}
}

func (m *MockEmbedder) Embed(_ context.Context, text string) (embedding.Vector, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.FailAll || (m.FailOn != "" && text == m.FailOn) {
		return nil, fmt.Errorf("%w: mock failure for %q", embedding.ErrEmbedding, text)
	}
	if v, ok := m.Embeddings[text]; ok {
		return v, nil
	}
	return m.Default, nil
}

func (m *MockEmbedder) Dims() int { return len(m.Default) }

// Calls returns how many times Embed ran.
func (m *MockEmbedder) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
