package openai

import (
	"context"
	"fmt"

	"github.com/lewisedginton/ron/internal/config"
	"github.com/lewisedginton/ron/internal/models"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Model implements models.Completer for OpenAI chat completions.
type Model struct {
	client    *openai.Client
	modelName string
}

// New creates a new OpenAI model instance.
func New(cfg config.OpenAIConfig, opts ...option.RequestOption) (*Model, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model name is required")
	}

	base := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.APIBaseURL != "" {
		base = append(base, option.WithBaseURL(cfg.APIBaseURL))
	}
	if cfg.Timeout > 0 {
		base = append(base, option.WithRequestTimeout(cfg.Timeout))
	}
	client := openai.NewClient(append(base, opts...)...)

	return &Model{
		client:    &client,
		modelName: cfg.Model,
	}, nil
}

// Name returns the model name.
func (o *Model) Name() string {
	return o.modelName
}

// Complete implements models.Completer.
func (o *Model) Complete(ctx context.Context, req models.Request) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	for _, m := range req.Messages {
		if m.Role == models.RoleAssistant {
			messages = append(messages, openai.AssistantMessage(m.Content))
		} else {
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    o.modelName,
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}

	completion, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai API error: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("no choices in response: %w", models.ErrEmptyCompletion)
	}
	return models.JoinText([]string{completion.Choices[0].Message.Content})
}
