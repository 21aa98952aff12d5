// ABOUTME: Text-completion collaborator used for customer-facing prose
// ABOUTME: Anthropic-backed implementation plus a deterministic template fallback

package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Completer is the black-box text-completion contract. Callers must treat
// every failure as recoverable: orchestration never depends on a
// completion succeeding.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// AnthropicCompleter calls the Anthropic Messages API.
type AnthropicCompleter struct {
	client anthropic.Client
	model  string
	logger *slog.Logger
}

// NewAnthropicCompleter creates a Completer backed by the Anthropic API.
func NewAnthropicCompleter(apiKey, model string, logger *slog.Logger) *AnthropicCompleter {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnthropicCompleter{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
		logger: logger.With("component", "llm"),
	}
}

// Complete sends one prompt and returns the first text block.
func (c *AnthropicCompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: 1024,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		c.logger.Warn("completion failed", "error", err)
		return "", fmt.Errorf("anthropic call: %w", err)
	}

	for _, block := range message.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("no text content in response")
}

// TemplateCompleter ignores the prompt and returns a fixed template. It is
// the fallback when no API key is configured and the safety net when the
// real completer fails.
type TemplateCompleter struct {
	Template string
}

// Complete returns the configured template.
func (c *TemplateCompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	return c.Template, nil
}
