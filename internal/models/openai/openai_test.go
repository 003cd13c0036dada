package openai

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

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.OpenAIConfig
		wantErr bool
	}{
		{
			name: "valid inputs",
			cfg:  config.OpenAIConfig{APIKey: "test-api-key", Model: "gpt-4o"},
		},
		{
			name:    "empty api key",
			cfg:     config.OpenAIConfig{Model: "gpt-4o"},
			wantErr: true,
		},
		{
			name:    "empty model name",
			cfg:     config.OpenAIConfig{APIKey: "test-api-key"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, m)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.cfg.Model, m.Name())
		})
	}
}

type chatRequest struct {
	Model       string   `json:"model"`
	MaxTokens   int      `json:"max_tokens"`
	Temperature *float64 `json:"temperature"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func newServer(t *testing.T, content string, got *chatRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-api-key", r.Header.Get("Authorization"))
		if got != nil {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(got))
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "gpt-4o-mini",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestComplete(t *testing.T) {
	var got chatRequest
	srv := newServer(t, "  ¡Hola Ana!  ", &got)

	m, err := New(config.OpenAIConfig{APIKey: "test-api-key", Model: "gpt-4o-mini", APIBaseURL: srv.URL})
	require.NoError(t, err)

	temperature := 0.7
	reply, err := m.Complete(context.Background(), models.Request{
		System: "Eres Ron.",
		Messages: []models.Message{
			{Role: models.RoleUser, Content: "me llamo Ana"},
			{Role: models.RoleAssistant, Content: "Mucho gusto"},
			{Role: models.RoleUser, Content: "hola"},
		},
		MaxTokens:   400,
		Temperature: &temperature,
	})
	require.NoError(t, err)
	assert.Equal(t, "¡Hola Ana!", reply)

	assert.Equal(t, "gpt-4o-mini", got.Model)
	assert.Equal(t, 400, got.MaxTokens)
	require.NotNil(t, got.Temperature)
	assert.InDelta(t, 0.7, *got.Temperature, 1e-9)
	require.Len(t, got.Messages, 4)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "Eres Ron.", got.Messages[0].Content)
	assert.Equal(t, "assistant", got.Messages[2].Role)
	assert.Equal(t, "hola", got.Messages[3].Content)
}

func TestCompleteTemperature(t *testing.T) {
	tests := []struct {
		name        string
		temperature *float64
	}{
		{name: "zero is sent", temperature: new(float64)},
		{name: "unset is omitted"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got chatRequest
			srv := newServer(t, "hola", &got)
			m, err := New(config.OpenAIConfig{APIKey: "test-api-key", Model: "gpt-4o-mini", APIBaseURL: srv.URL})
			require.NoError(t, err)

			_, err = m.Complete(context.Background(), models.Request{
				Messages:    []models.Message{{Role: models.RoleUser, Content: "hola"}},
				Temperature: tt.temperature,
			})
			require.NoError(t, err)

			if tt.temperature == nil {
				assert.Nil(t, got.Temperature)
				return
			}
			require.NotNil(t, got.Temperature)
			assert.Zero(t, *got.Temperature)
		})
	}
}

func TestCompleteEmptyReply(t *testing.T) {
	srv := newServer(t, "   ", nil)
	m, err := New(config.OpenAIConfig{APIKey: "test-api-key", Model: "gpt-4o-mini", APIBaseURL: srv.URL})
	require.NoError(t, err)

	_, err = m.Complete(context.Background(), models.Request{Messages: []models.Message{{Role: models.RoleUser, Content: "hola"}}})
	assert.ErrorIs(t, err, models.ErrEmptyCompletion)
}

func TestCompleteAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad request","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	m, err := New(config.OpenAIConfig{APIKey: "test-api-key", Model: "gpt-4o-mini", APIBaseURL: srv.URL})
	require.NoError(t, err)

	_, err = m.Complete(context.Background(), models.Request{Messages: []models.Message{{Role: models.RoleUser, Content: "hola"}}})
	assert.Error(t, err)
}
