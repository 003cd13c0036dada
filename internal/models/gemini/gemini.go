package gemini

import (
	"context"
	"fmt"
	"net/http"

	"github.com/lewisedginton/ron/internal/config"
	"github.com/lewisedginton/ron/internal/models"
	"google.golang.org/genai"
)

// Model implements models.Completer for Google Gemini.
type Model struct {
	client    *genai.Client
	modelName string
}

// Options overrides transport details, mostly for tests.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
}

// New creates a Gemini model. Vertex AI is used when both project and region
// are configured; otherwise the Gemini API key is required.
func New(ctx context.Context, cfg config.GeminiConfig, opts Options) (*Model, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model name is required")
	}

	clientConfig := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: opts.HTTPClient,
	}
	if cfg.Project != "" && cfg.Region != "" {
		clientConfig.Backend = genai.BackendVertexAI
		clientConfig.Project = cfg.Project
		clientConfig.Location = cfg.Region
		clientConfig.APIKey = ""
	} else if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if opts.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &Model{client: client, modelName: cfg.Model}, nil
}

// Name returns the model name.
func (m *Model) Name() string {
	return m.modelName
}

// Complete implements models.Completer.
func (m *Model) Complete(ctx context.Context, req models.Request) (string, error) {
	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, msg := range req.Messages {
		role := genai.Role(genai.RoleUser)
		if msg.Role == models.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, role))
	}

	genConfig := &genai.GenerateContentConfig{}
	if req.System != "" {
		genConfig.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.MaxTokens > 0 {
		genConfig.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.Temperature != nil {
		genConfig.Temperature = genai.Ptr(float32(*req.Temperature))
	}

	resp, err := m.client.Models.GenerateContent(ctx, m.modelName, contents, genConfig)
	if err != nil {
		return "", fmt.Errorf("gemini api error: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("no candidates in response: %w", models.ErrEmptyCompletion)
	}

	var parts []string
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && !part.Thought {
			parts = append(parts, part.Text)
		}
	}
	return models.JoinText(parts)
}
