package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rcliao/companion-brain/internal/config"
)

// HTTP posts text to a synthesis endpoint and stores the returned audio
// under its audio directory.
type HTTP struct {
	url    string
	voice  string
	dir    string
	client *http.Client
	logger *slog.Logger
}

type synthRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice,omitempty"`
}

// synthResponse is accepted from endpoints that host the audio themselves.
type synthResponse struct {
	AudioURL string `json:"audio_url"`
}

// NewHTTP creates the audio directory and the client.
func NewHTTP(cfg config.TTSConfig, logger *slog.Logger) (*HTTP, error) {
	if err := os.MkdirAll(cfg.AudioDir, 0o755); err != nil {
		return nil, fmt.Errorf("create audio dir: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &HTTP{
		url:    cfg.URL,
		voice:  cfg.Voice,
		dir:    cfg.AudioDir,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}, nil
}

// Synthesize returns the path of the written audio file, or the URL the
// endpoint reported.
func (h *HTTP) Synthesize(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}

	body, _ := json.Marshal(synthRequest{Text: text, Voice: h.voice})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: request: %w", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, string(b))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read audio: %w", ErrUpstream, err)
	}
	if len(data) == 0 {
		return "", nil
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var out synthResponse
		if err := json.Unmarshal(data, &out); err != nil {
			return "", fmt.Errorf("%w: decode response: %w", ErrUpstream, err)
		}
		return out.AudioURL, nil
	}

	path := filepath.Join(h.dir, uuid.NewString()+extension(mediaType))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write audio: %w", err)
	}
	h.logger.Debug("audio synthesized", "path", path, "bytes", len(data), "chars", len(text))
	return path, nil
}

func extension(mediaType string) string {
	switch mediaType {
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/ogg":
		return ".ogg"
	}
	return ".wav"
}
