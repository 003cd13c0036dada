// Package prompt_manager loads the persona instruction used for free-form
// replies from the store, so it can be edited without redeploying.
package prompt_manager //nolint:revive // var-naming: using underscores for domain clarity

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/lewisedginton/ron/internal/storage_manager"
)

// Namespace is the store prefix holding prompt documents.
const Namespace = "prompts"

const personaPath = "persona.md"

// ErrNoPersona is returned when the store holds no persona override.
var ErrNoPersona = errors.New("no persona override stored")

// PersonaData is the data a persona template is rendered with.
type PersonaData struct {
	AssistantName string
	Creator       string
	UserName      string
}

// PromptManager renders prompt documents read from a DocumentProvider.
type PromptManager struct {
	provider storage_manager.DocumentProvider
}

// New creates a new PromptManager with the given document provider.
func New(provider storage_manager.DocumentProvider) *PromptManager {
	if provider == nil {
		panic("document provider cannot be nil")
	}
	return &PromptManager{
		provider: provider,
	}
}

// Persona renders persona.md with data. A missing or blank document yields
// ErrNoPersona.
func (m *PromptManager) Persona(ctx context.Context, data PersonaData) (string, error) {
	obj, err := m.provider.Get(ctx, personaPath)
	if errors.Is(err, storage_manager.ErrNotFound) {
		return "", ErrNoPersona
	}
	if err != nil {
		return "", fmt.Errorf("failed to read persona: %w", err)
	}
	if strings.TrimSpace(string(obj.Data)) == "" {
		return "", ErrNoPersona
	}

	tmpl, err := template.New(personaPath).Option("missingkey=error").Parse(string(obj.Data))
	if err != nil {
		return "", fmt.Errorf("failed to parse persona: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render persona: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}
