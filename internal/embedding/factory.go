package embedding

import (
	"fmt"
	"log/slog"

	"github.com/rcliao/companion-brain/internal/config"
)

// New creates the resilient embedder described by cfg. An empty provider
// yields hash vectors only.
func New(cfg config.EmbeddingConfig, dims int, logger *slog.Logger) (*Resilient, error) {
	var inner Embedder
	switch cfg.Provider {
	case "":
	case "ollama":
		inner = NewOllamaEmbedder(cfg.Target, cfg.Model, dims, cfg.Timeout)
	case "openai":
		inner = NewOpenAIEmbedder(cfg.Target, cfg.APIKey, cfg.Model, dims)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q (valid: ollama, openai)", cfg.Provider)
	}
	return NewResilient(inner, dims, logger), nil
}
