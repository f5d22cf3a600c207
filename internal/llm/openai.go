package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"golang.org/x/time/rate"

	"github.com/rcliao/companion-brain/internal/config"
	"github.com/rcliao/companion-brain/internal/model"
)

var _ Client = (*OpenAI)(nil)

// OpenAI talks to any OpenAI-compatible chat completion endpoint.
type OpenAI struct {
	client      openai.Client
	model       string
	temperature float64
	timeout     time.Duration
	limiter     *rate.Limiter
	logger      *slog.Logger
}

// NewOpenAI creates a client from cfg. A non-positive rate disables the
// limiter.
func NewOpenAI(cfg config.LLMConfig, logger *slog.Logger) *OpenAI {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(max(cfg.MaxRetries, 0)),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	limit := rate.Inf
	if cfg.RequestsPerSec > 0 {
		limit = rate.Limit(cfg.RequestsPerSec)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &OpenAI{
		client:      openai.NewClient(opts...),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		timeout:     timeout,
		limiter:     rate.NewLimiter(limit, 1),
		logger:      logger,
	}
}

// Complete sends the system prompt, the history and the user prompt and
// returns the first choice's content.
func (c *OpenAI) Complete(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: rate limit: %w", ErrUpstream, err)
	}

	temp := c.temperature
	if req.Temperature != nil {
		temp = *req.Temperature
	}

	start := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages:    messages(req),
		Model:       c.model,
		Temperature: param.NewOpt(temp),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyReply
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyReply
	}

	c.logger.Debug("llm completion",
		"model", c.model, "history", len(req.History),
		"prompt_tokens", resp.Usage.PromptTokens, "completion_tokens", resp.Usage.CompletionTokens,
		"duration", time.Since(start))
	return content, nil
}

func messages(req Request) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.History)+2)
	if req.System != "" {
		out = append(out, openai.SystemMessage(req.System))
	}
	for _, m := range req.History {
		switch m.Role {
		case model.RoleUser:
			out = append(out, openai.UserMessage(m.Content))
		case model.RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		case model.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		}
	}
	return append(out, openai.UserMessage(req.User))
}
