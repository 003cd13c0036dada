package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		entries = append(entries, entry)
	}
	return entries
}

func TestLoggerOutput(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(Config{Level: InfoLevel, Format: "json", Service: "ron", Output: &buf})

	log.Info("turn recorded", DeviceField("ana_desktop"), IntentField("farewell"))

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "turn recorded", entries[0]["msg"])
	assert.Equal(t, "ron", entries[0]["service"])
	assert.Equal(t, "ana_desktop", entries[0]["device"])
	assert.Equal(t, "farewell", entries[0]["intent"])
	assert.Equal(t, "info", entries[0]["level"])
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(Config{Level: WarnLevel, Output: &buf})

	log.Debug("hidden")
	log.Info("hidden")
	log.Warn("shown")
	log.Error("shown too", ErrorField(errors.New("boom")))

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "warning", entries[0]["level"])
	assert.Equal(t, "boom", entries[1]["error"])
}

func TestWithFieldsIsImmutable(t *testing.T) {
	var buf bytes.Buffer
	base := NewLogger(Config{Level: InfoLevel, Output: &buf})
	child := base.WithFields(StringField("component", "store"))

	base.Info("from base")
	child.WithCorrelationID("abc").Info("from child")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.NotContains(t, entries[0], "component")
	assert.Equal(t, "store", entries[1]["component"])
	assert.Equal(t, "abc", entries[1][CorrelationIDFieldKey])
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   DebugLevel,
		"INFO":    InfoLevel,
		"warning": WarnLevel,
		"warn":    WarnLevel,
		"error":   ErrorLevel,
		"bogus":   InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
	assert.Equal(t, "warn", WarnLevel.String())
}

func TestFieldConversion(t *testing.T) {
	assert.Equal(t, "15", Field("temp", 15).Value)
	assert.Equal(t, "15.5", Field("temp", 15.5).Value)
	assert.Equal(t, "2s", Field("wait", 2*time.Second).Value)
	assert.Equal(t, "madrid", Field("city", "madrid").Value)
}

func TestEnsureCorrelationID(t *testing.T) {
	ctx, id := EnsureCorrelationID(context.Background())
	assert.True(t, strings.HasPrefix(id, "utt-"), id)
	assert.True(t, ValidCorrelationID(id))

	again, sameID := EnsureCorrelationID(ctx)
	assert.Equal(t, id, sameID)
	assert.Equal(t, id, GetCorrelationIDFromContext(again))
}

func TestValidCorrelationID(t *testing.T) {
	assert.True(t, ValidCorrelationID(uuid.New().String()))
	assert.True(t, ValidCorrelationID("tg-"+uuid.New().String()))
	assert.False(t, ValidCorrelationID(""))
	assert.False(t, ValidCorrelationID("not-a-uuid"))
	assert.False(t, ValidCorrelationID("<script>"))
}

func TestHTTPMiddleware(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(Config{Level: InfoLevel, Output: &buf})

	var seen string
	handler := log.HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetCorrelationIDFromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("hola"))
	}))

	t.Run("replaces invalid correlation id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/respond", nil)
		req.Header.Set(CorrelationIDHeader, "not-a-uuid")
		handler.ServeHTTP(httptest.NewRecorder(), req)

		_, err := uuid.Parse(seen)
		require.NoError(t, err)
		assert.NotEqual(t, "not-a-uuid", seen)
	})

	t.Run("keeps valid correlation id and logs status", func(t *testing.T) {
		buf.Reset()
		id := uuid.New().String()
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set(CorrelationIDHeader, id)
		handler.ServeHTTP(httptest.NewRecorder(), req)

		assert.Equal(t, id, seen)
		entries := decodeLines(t, &buf)
		require.Len(t, entries, 1)
		assert.Equal(t, "418", entries[0]["http_status"])
		assert.Equal(t, "4", entries[0]["response_bytes"])
	})
}
