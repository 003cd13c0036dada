package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lewisedginton/ron/internal/config"
	"github.com/lewisedginton/ron/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClaudeModel(t *testing.T) {
	_, err := NewClaudeModel(config.AnthropicConfig{})
	assert.Error(t, err)

	m, err := NewClaudeModel(config.AnthropicConfig{APIKey: "test-key"})
	require.NoError(t, err)
	assert.Equal(t, "claude-sonnet-4-5-20250929", m.Name())
}

type messagesRequest struct {
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	System      []struct {
		Text string `json:"text"`
	} `json:"system"`
	Messages []struct {
		Role string `json:"role"`
	} `json:"messages"`
}

func TestComplete(t *testing.T) {
	var got messagesRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-sonnet-4-5-20250929",
			"content": [{"type": "text", "text": "Hola, "}, {"type": "text", "text": "soy Ron."}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 10, "output_tokens": 5}
		}`))
	}))
	defer srv.Close()

	m, err := NewClaudeModel(config.AnthropicConfig{APIKey: "test-key", APIBaseURL: srv.URL})
	require.NoError(t, err)

	temperature := 0.7
	reply, err := m.Complete(context.Background(), models.Request{
		System: "Eres Ron.",
		Messages: []models.Message{
			{Role: models.RoleUser, Content: "hola"},
			{Role: models.RoleAssistant, Content: "hola"},
			{Role: models.RoleUser, Content: "¿quién eres?"},
		},
		MaxTokens:   400,
		Temperature: &temperature,
	})
	require.NoError(t, err)
	assert.Equal(t, "Hola, soy Ron.", reply)

	assert.Equal(t, 400, got.MaxTokens)
	assert.InDelta(t, 0.7, got.Temperature, 1e-9)
	require.Len(t, got.System, 1)
	assert.Equal(t, "Eres Ron.", got.System[0].Text)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, "assistant", got.Messages[1].Role)
}

func TestCompleteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`))
	}))
	defer srv.Close()

	m, err := NewClaudeModel(config.AnthropicConfig{APIKey: "test-key", APIBaseURL: srv.URL})
	require.NoError(t, err)

	_, err = m.Complete(context.Background(), models.Request{Messages: []models.Message{{Role: models.RoleUser, Content: "hola"}}})
	assert.Error(t, err)
}
