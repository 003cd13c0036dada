// Package provider selects the completion backend from configuration.
package provider

import (
	"context"
	"fmt"

	"github.com/lewisedginton/ron/internal/config"
	"github.com/lewisedginton/ron/internal/models"
	"github.com/lewisedginton/ron/internal/models/anthropic"
	"github.com/lewisedginton/ron/internal/models/gemini"
	"github.com/lewisedginton/ron/internal/models/openai"
	"github.com/lewisedginton/ron/pkg/logger"
)

// New creates the completer for the configured LLM provider.
func New(ctx context.Context, cfg *config.AppConfig, log logger.Logger) (models.Completer, error) {
	var (
		m   models.Completer
		err error
	)
	switch cfg.LLM.Provider {
	case config.ProviderClaude:
		m, err = anthropic.NewClaudeModel(cfg.Anthropic)
	case config.ProviderGemini:
		m, err = gemini.New(ctx, cfg.Gemini, gemini.Options{})
	case config.ProviderOpenAI, "":
		m, err = openai.New(cfg.OpenAI)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLM.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s model: %w", cfg.LLM.Provider, err)
	}

	log.Info("Completion model configured",
		logger.StringField("provider", cfg.LLM.Provider),
		logger.StringField("model", m.Name()))
	return m, nil
}
