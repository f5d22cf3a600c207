// Package tts turns reply text into an audio file.
package tts

import (
	"context"
	"errors"
	"log/slog"

	"github.com/rcliao/companion-brain/internal/config"
)

// ErrUpstream wraps every synthesis failure.
var ErrUpstream = errors.New("tts upstream failure")

// Synthesizer returns a reference to synthesized audio. An empty reference
// with a nil error means no audio is available.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (string, error)
}

// Nop never produces audio.
type Nop struct{}

func (Nop) Synthesize(context.Context, string) (string, error) { return "", nil }

// New returns the HTTP synthesizer, or Nop when no URL is configured.
func New(cfg config.TTSConfig, logger *slog.Logger) (Synthesizer, error) {
	if cfg.URL == "" {
		return Nop{}, nil
	}
	return NewHTTP(cfg, logger)
}
