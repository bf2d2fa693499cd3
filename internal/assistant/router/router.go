// Package router provides the reference Router implementation the
// orchestrator calls through: an OpenAI-compatible chat completion
// client with primary/complex/fallback model selection. The
// orchestrator depends only on the CompleteJSON method signature, not
// on anything in this package's internals.
package router

import (
	"context"
	"errors"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Message is one chat-completion message.
type Message struct {
	Role    string
	Content string
}

// Config selects models and bounds latency.
type Config struct {
	APIKey        string
	BaseURL       string
	PrimaryModel  string
	ComplexModel  string
	FallbackModel string
	Timeout       time.Duration
	MaxTokens     int
}

// Router wraps an OpenAI-compatible chat completion client, choosing
// between a primary and a complex model based on a caller-supplied
// hint, falling back to a third model if the chosen one errors.
type Router struct {
	client *openai.Client
	cfg    Config
	logger *slog.Logger
}

// New builds a Router from cfg.
func New(cfg Config, logger *slog.Logger) *Router {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		client: openai.NewClientWithConfig(clientCfg),
		cfg:    cfg,
		logger: logger.With("component", "router"),
	}
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		out[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	return out
}

// CompleteJSON calls the chat completion endpoint with the selected
// model, falling back to the configured fallback model on error.
// Returns (rawText, ok, err): ok is false when every model attempt
// failed and err carries the last attempt's error.
func (r *Router) CompleteJSON(ctx context.Context, messages []Message, complexHint bool) (string, bool, error) {
	model := r.cfg.PrimaryModel
	if complexHint && r.cfg.ComplexModel != "" {
		model = r.cfg.ComplexModel
	}

	timeout := r.cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	text, err := r.complete(callCtx, model, messages)
	if err == nil {
		return text, true, nil
	}
	r.logger.Warn("router: primary model call failed", "model", model, "error", err)

	if r.cfg.FallbackModel == "" || r.cfg.FallbackModel == model {
		return "", false, err
	}

	fallbackCtx, fallbackCancel := context.WithTimeout(ctx, timeout)
	defer fallbackCancel()

	text, fallbackErr := r.complete(fallbackCtx, r.cfg.FallbackModel, messages)
	if fallbackErr == nil {
		return text, true, nil
	}
	r.logger.Warn("router: fallback model call failed", "model", r.cfg.FallbackModel, "error", fallbackErr)
	return "", false, errors.Join(err, fallbackErr)
}

func (r *Router) complete(ctx context.Context, model string, messages []Message) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:    model,
		Messages: toOpenAIMessages(messages),
	}
	if r.cfg.MaxTokens > 0 {
		req.MaxTokens = r.cfg.MaxTokens
	}

	resp, err := r.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("router: empty completion response")
	}
	return resp.Choices[0].Message.Content, nil
}
