// Package llm provides the language-model collaborator used for last-resort
// generative repair. The pipeline must keep working when this service is
// absent or unreachable.
package llm

import (
	"context"
	"fmt"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "claude-haiku-4-5"

// Config for the Anthropic-backed service.
type Config struct {
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	MaxTokens int64  `yaml:"max_tokens"`
}

// AnthropicService implements feedback.LanguageModelService on the
// Anthropic Messages API.
type AnthropicService struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

// NewAnthropicService creates the service. ANTHROPIC_API_KEY takes
// precedence over the configured key; with neither, construction fails and
// the caller runs without generative repair.
func NewAnthropicService(cfg Config) (*AnthropicService, error) {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		apiKey = cfg.APIKey
	}
	if apiKey == "" {
		return nil, fmt.Errorf("no API key: set ANTHROPIC_API_KEY or configure llm.api_key")
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	return &AnthropicService{
		client:    anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:     anthropic.Model(model),
		maxTokens: maxTokens,
	}, nil
}

// Complete sends a single-turn prompt and returns the text response.
func (s *AnthropicService) Complete(ctx context.Context, prompt string) (string, error) {
	message, err := s.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     s.model,
		MaxTokens: s.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	if len(message.Content) == 0 {
		return "", fmt.Errorf("completion returned no content")
	}
	content := message.Content[0]
	if content.Type != "text" {
		return "", fmt.Errorf("completion returned non-text block (type=%s)", content.Type)
	}
	return content.Text, nil
}
