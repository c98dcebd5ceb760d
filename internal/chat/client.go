package chat

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"go.uber.org/zap"

	"github.com/hyperjump/portfolio-rag/internal/models"
	"github.com/hyperjump/portfolio-rag/internal/provider"
	"github.com/hyperjump/portfolio-rag/pkg/utils"
)

// Default configuration values.
const (
	DefaultModel       = "mistral-large-latest"
	DefaultMaxTokens   = 1024
	DefaultTemperature = 0.2
)

// Completer produces the assistant's reply to a message list.
type Completer interface {
	Complete(ctx context.Context, messages []models.ChatMessage) (string, error)
}

// MistralConfig holds configuration for the chat client.
type MistralConfig struct {
	Provider    provider.Config
	Model       string
	MaxTokens   int
	Temperature float64
}

// MistralClient calls Mistral's OpenAI-compatible chat completions endpoint.
type MistralClient struct {
	client      openai.Client
	retrier     *provider.Retrier
	model       string
	maxTokens   int
	temperature float64
	logger      *zap.Logger
}

// NewMistralClient creates a chat client.
func NewMistralClient(cfg MistralConfig, logger *zap.Logger) (*MistralClient, error) {
	if cfg.Provider.APIKey == "" {
		return nil, fmt.Errorf("mistral: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Temperature < 0 {
		cfg.Temperature = DefaultTemperature
	}
	logger = utils.OrNop(logger)
	return &MistralClient{
		client:      provider.NewClient(cfg.Provider),
		retrier:     provider.NewRetrier(cfg.Provider, logger),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		logger:      logger,
	}, nil
}

// WithRetrier replaces the retry policy.
func (c *MistralClient) WithRetrier(r *provider.Retrier) *MistralClient {
	c.retrier = r
	return c
}

// Complete sends messages and returns the first choice's content.
func (c *MistralClient) Complete(ctx context.Context, messages []models.ChatMessage) (string, error) {
	params := openai.ChatCompletionNewParams{
		Messages:    toParams(messages),
		Model:       openai.ChatModel(c.model),
		MaxTokens:   openai.Int(int64(c.maxTokens)),
		Temperature: openai.Float(c.temperature),
	}
	var resp *openai.ChatCompletion
	err := c.retrier.Do(ctx, "mistral chat", func(ctx context.Context) error {
		var err error
		resp, err = c.client.Chat.Completions.New(ctx, params)
		return err
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("mistral: no choices returned")
	}
	c.logger.Debug("Chat completion",
		zap.String("model", resp.Model),
		zap.Int64("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int64("completion_tokens", resp.Usage.CompletionTokens))
	return resp.Choices[0].Message.Content, nil
}

// Model returns the chat model name.
func (c *MistralClient) Model() string {
	return c.model
}

func toParams(messages []models.ChatMessage) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}
