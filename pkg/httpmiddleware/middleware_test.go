package httpmiddleware

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/lewisedginton/ron/pkg/logger"
	"github.com/lewisedginton/ron/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorrelationID(t *testing.T) {
	var headerID, contextID string
	handler := CorrelationID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headerID = r.Header.Get(logger.CorrelationIDHeader)
		contextID = logger.GetCorrelationIDFromContext(r.Context())
	}))

	t.Run("generates a UUID when none is sent", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		_, err := uuid.Parse(headerID)
		require.NoError(t, err)
		assert.Equal(t, headerID, contextID)
		assert.Equal(t, headerID, rec.Header().Get(logger.CorrelationIDHeader))
	})

	t.Run("keeps a valid client UUID", func(t *testing.T) {
		id := uuid.New().String()
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set(logger.CorrelationIDHeader, id)
		handler.ServeHTTP(httptest.NewRecorder(), req)

		assert.Equal(t, id, headerID)
		assert.Equal(t, id, contextID)
	})

	t.Run("keeps a prefixed client UUID", func(t *testing.T) {
		id := "utt-" + uuid.New().String()
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set(logger.CorrelationIDHeader, id)
		handler.ServeHTTP(httptest.NewRecorder(), req)

		assert.Equal(t, id, headerID)
	})

	t.Run("replaces an invalid client value", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set(logger.CorrelationIDHeader, "<script>")
		handler.ServeHTTP(httptest.NewRecorder(), req)

		assert.NotEqual(t, "<script>", headerID)
		_, err := uuid.Parse(headerID)
		assert.NoError(t, err)
	})
}

func TestApplyToRouter(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Logger = logger.NewLogger(logger.Config{Level: logger.InfoLevel, Format: "json", Output: &buf})
	cfg.Metrics = metrics.NewMetrics("ron")

	router := chi.NewRouter()
	ApplyToRouter(router, cfg)
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	router.Get("/panic", func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(logger.CorrelationIDHeader))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Contains(t, buf.String(), "HTTP response sent")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
	assert.Contains(t, buf.String(), "HTTP request panic recovered")
	assert.Contains(t, buf.String(), "boom")

	assert.Equal(t, float64(2), testutil.ToFloat64(cfg.Metrics.TotalHTTPRequestsCounter))
}

func TestCORSPreflight(t *testing.T) {
	handler := CORS(DefaultCORSConfig())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/v1/respond", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "https://example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecoveryWithoutLogger(t *testing.T) {
	handler := Recovery(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(errors.New("nil map"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/respond", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestRecoveryRepanicsAbort(t *testing.T) {
	handler := Recovery(logger.NewNopLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}
