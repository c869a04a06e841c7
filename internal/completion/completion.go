// Package completion adapts an OpenAI-compatible chat completion endpoint to
// the conversation's Completer boundary.
package completion

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
	"go.uber.org/zap"

	"github.com/smarterpayouts/mint/internal/chat"
)

// ErrInvalidConfig indicates the completion configuration is incomplete.
var ErrInvalidConfig = errors.New("invalid completion config")

// ErrEmptyResponse indicates the provider returned no choices.
var ErrEmptyResponse = errors.New("completion returned no choices")

// Config configures the completion client. Works against the OpenAI API or
// any OpenAI-compatible endpoint.
type Config struct {
	BaseURL string `koanf:"base_url"`
	Model   string `koanf:"model"`
	APIKey  string `koanf:"api_key"`
}

// DefaultConfig returns a config populated from the environment.
func DefaultConfig() Config {
	baseURL := os.Getenv("OPENAI_BASE_URL")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	model := os.Getenv("OPENAI_MODEL")
	if model == "" {
		model = "gpt-4o-mini"
	}
	return Config{
		BaseURL: baseURL,
		Model:   model,
		APIKey:  os.Getenv("OPENAI_API_KEY"),
	}
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base URL required", ErrInvalidConfig)
	}
	if c.Model == "" {
		return fmt.Errorf("%w: model required", ErrInvalidConfig)
	}
	return nil
}

// Service implements chat.Completer on top of langchaingo's OpenAI client.
type Service struct {
	llm    *openai.LLM
	config Config
	logger *zap.Logger
}

var _ chat.Completer = (*Service)(nil)

// NewService creates a completion service with the given configuration.
func NewService(config Config, logger *zap.Logger) (*Service, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	apiKey := config.APIKey
	if apiKey == "" {
		// langchaingo requires a token even for keyless local endpoints.
		apiKey = "placeholder"
	}

	llm, err := openai.New(
		openai.WithBaseURL(config.BaseURL),
		openai.WithModel(config.Model),
		openai.WithToken(apiKey),
	)
	if err != nil {
		return nil, fmt.Errorf("creating OpenAI client: %w", err)
	}

	return &Service{llm: llm, config: config, logger: logger}, nil
}

// Complete returns a single reply for the ordered history.
func (s *Service) Complete(ctx context.Context, msgs []chat.CompletionMessage) (string, error) {
	resp, err := s.llm.GenerateContent(ctx, toContent(msgs))
	if err != nil {
		return "", fmt.Errorf("generating completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Content, nil
}

// CompleteStream streams reply chunks through onChunk in arrival order and
// returns the concatenated reply. onChunk may be nil.
func (s *Service) CompleteStream(ctx context.Context, msgs []chat.CompletionMessage, onChunk func(chunk string) error) (string, error) {
	var sb strings.Builder
	_, err := s.llm.GenerateContent(ctx, toContent(msgs),
		llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
			sb.Write(chunk)
			if onChunk != nil {
				return onChunk(string(chunk))
			}
			return nil
		}),
	)
	if err != nil {
		return "", fmt.Errorf("generating streamed completion: %w", err)
	}
	return sb.String(), nil
}

// toContent maps conversation history to langchaingo message content.
func toContent(msgs []chat.CompletionMessage) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(msgs))
	for _, m := range msgs {
		var role schema.ChatMessageType
		switch m.Role {
		case chat.SenderUser:
			role = schema.ChatMessageTypeHuman
		case chat.SenderAssistant:
			role = schema.ChatMessageTypeAI
		default:
			role = schema.ChatMessageTypeSystem
		}
		out = append(out, llms.TextParts(role, m.Content))
	}
	return out
}
