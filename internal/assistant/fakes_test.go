package assistant

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lewisedginton/ron/internal/capabilities"
	"github.com/lewisedginton/ron/internal/config"
	"github.com/lewisedginton/ron/internal/memory_service"
	"github.com/lewisedginton/ron/internal/memory_store"
	"github.com/lewisedginton/ron/internal/models"
	"github.com/lewisedginton/ron/internal/storage_manager"
	"github.com/lewisedginton/ron/pkg/logger"
	"github.com/lewisedginton/ron/pkg/metrics"
)

const testDevice memory_store.DeviceKey = "ana_desk"

// fakeRunner answers commands from a table keyed by the joined argv and
// records every call.
type fakeRunner struct {
	mu        sync.Mutex
	calls     []string
	responses map[string]string
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	key := strings.Join(append([]string{name}, args...), " ")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, key)
	return f.responses[key], nil
}

func (f *fakeRunner) called(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == key {
			return true
		}
	}
	return false
}

func testProfile() *capabilities.Profile {
	return &capabilities.Profile{
		Name: "testos",
		CPU:  capabilities.Command{"cpu"},
		ParseCPU: func(out string) (string, bool) {
			return strings.TrimSpace(out), strings.TrimSpace(out) != ""
		},
		Memory: capabilities.Command{"mem"},
		ParseMemory: func(string) (int64, int64, bool) {
			return 8 << 20, 2 << 20, true
		},
		Services:            []string{"net", "audio"},
		RestartableServices: []string{"net", "audio"},
		ServiceQuery:        func(s string) capabilities.Command { return capabilities.Command{"query", s} },
		ServiceRunning:      func(out string, err error) bool { return out == "running" },
		ServiceStop:         func(s string) capabilities.Command { return capabilities.Command{"stop", s} },
		ServiceStart:        func(s string) capabilities.Command { return capabilities.Command{"start", s} },
		TempClean:           []capabilities.Command{{"cleantemp"}},
		DNSFlush:            []capabilities.Command{{"flushdns"}},
		NetworkReset:        []capabilities.Command{{"netreset"}},
		Shutdown:            capabilities.Command{"poweroff"},
		Restart:             capabilities.Command{"reboot"},
		Suspend:             capabilities.Command{"sleep"},
		OpenApp:             func(app string) capabilities.Command { return capabilities.Command{"launch", app} },
		CloseApp:            func(app string) capabilities.Command { return capabilities.Command{"kill", app} },
		ProcessMissing:      func(out string, err error) bool { return false },
		OpenURL:             func(url string) capabilities.Command { return capabilities.Command{"browse", url} },
	}
}

// stubCompleter returns a canned reply, optionally after a delay that
// respects the caller's deadline.
type stubCompleter struct {
	mu       sync.Mutex
	reply    string
	err      error
	delay    time.Duration
	requests []models.Request
}

func (s *stubCompleter) Name() string { return "stub" }

func (s *stubCompleter) Complete(ctx context.Context, req models.Request) (string, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return s.reply, s.err
}

func (s *stubCompleter) lastRequest() models.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[len(s.requests)-1]
}

var errCompletion = errors.New("completion unavailable")

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// offlineClient fails every request so video lookups fall back to search.
var offlineClient = &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
	return nil, errors.New("offline")
})}

type harness struct {
	dispatcher *Dispatcher
	runner     *fakeRunner
	completer  *stubCompleter
	memory     *memory_service.Service
	provider   storage_manager.DocumentProvider
	metrics    *metrics.Metrics
}

type harnessOptions struct {
	services   map[string]string
	weatherURL string
	timeout    time.Duration
}

func newWeatherServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("q") == "madrid" {
			_, _ = w.Write([]byte(`{"weather":[{"description":"nublado"}],"main":{"temp":15}}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"cod":"404","message":"city not found"}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newHarness(t *testing.T, opts harnessOptions) *harness {
	t.Helper()
	log := logger.NewNopLogger()

	responses := map[string]string{"cpu": "35"}
	for svc, state := range opts.services {
		responses["query "+svc] = state
	}
	if opts.services == nil {
		responses["query net"] = "running"
		responses["query audio"] = "running"
	}
	runner := &fakeRunner{responses: responses}

	weather := config.WeatherConfig{Units: "metric", Lang: "es", Timeout: 5 * time.Second}
	if opts.weatherURL != "" {
		weather.APIKey = "secret"
		weather.BaseURL = opts.weatherURL
	}

	m := metrics.NewMetrics("ron_test")
	provider := storage_manager.NewLocalProvider(t.TempDir())
	store := memory_store.NewClient(memory_store.Config{
		Provider: provider,
		Logger:   log,
		Metrics:  m,
	})
	memory := memory_service.New(memory_service.Config{Store: store, Device: testDevice, Logger: log})
	completer := &stubCompleter{reply: "**¡Claro!** Soy `Ron`."}

	timeout := opts.timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	d := New(Config{
		Memory:       memory,
		Capabilities: capabilities.NewSet(testProfile(), runner, offlineClient, weather, log),
		Completer:    completer,
		Logger:       log,
		Metrics:      m,
		Assistant: config.AssistantConfig{
			HistoryTurns:      20,
			MaxTokens:         400,
			Temperature:       0.7,
			CompletionTimeout: timeout,
		},
	})
	return &harness{dispatcher: d, runner: runner, completer: completer, memory: memory, provider: provider, metrics: m}
}

func (h *harness) say(t *testing.T, text string) Reply {
	t.Helper()
	return h.dispatcher.Respond(context.Background(), Request{Text: text})
}

func (h *harness) log(t *testing.T) []memory_store.Turn {
	t.Helper()
	return h.memory.RecentTurns(context.Background(), memory_store.MaxLogEntries)
}
