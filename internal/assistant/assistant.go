// Package assistant routes utterances to the rule that handles them and
// records each exchange in the speaker's memory.
package assistant

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/lewisedginton/ron/internal/capabilities"
	"github.com/lewisedginton/ron/internal/config"
	"github.com/lewisedginton/ron/internal/memory_service"
	"github.com/lewisedginton/ron/internal/memory_store"
	"github.com/lewisedginton/ron/internal/models"
	"github.com/lewisedginton/ron/internal/prompt_manager"
	"github.com/lewisedginton/ron/pkg/logger"
	"github.com/lewisedginton/ron/pkg/metrics"
)

// Request is one utterance. An empty Device selects the memory service's
// own device.
type Request struct {
	Device memory_store.DeviceKey
	Text   string
}

// Reply is the assistant's answer. Terminate is set when the user said
// goodbye and the session should end.
type Reply struct {
	Text      string `json:"reply"`
	Intent    string `json:"intent"`
	Terminate bool   `json:"terminate"`
}

// PersonaSource supplies a stored persona instruction that replaces the
// built-in one.
type PersonaSource interface {
	Persona(ctx context.Context, data prompt_manager.PersonaData) (string, error)
}

// Config holds the dependencies of a Dispatcher.
type Config struct {
	Memory       *memory_service.Service
	Capabilities *capabilities.Set
	Completer    models.Completer
	// Prompts is optional.
	Prompts   PersonaSource
	Logger    logger.Logger
	Metrics   *metrics.Metrics
	Assistant config.AssistantConfig
}

// Dispatcher matches utterances against an ordered rule table. Calls to
// Respond are serialized so one utterance is fully handled before the next.
type Dispatcher struct {
	mu        sync.Mutex
	memory    *memory_service.Service
	caps      *capabilities.Set
	completer models.Completer
	prompts   PersonaSource
	log       logger.Logger
	metrics   *metrics.Metrics
	cfg       config.AssistantConfig
	rules     []Rule
}

// New creates a dispatcher.
func New(cfg Config) *Dispatcher {
	if cfg.Memory == nil {
		panic("memory service cannot be nil")
	}
	if cfg.Capabilities == nil {
		panic("capabilities cannot be nil")
	}
	if cfg.Logger == nil {
		panic("logger cannot be nil")
	}
	if cfg.Assistant.HistoryTurns <= 0 {
		cfg.Assistant.HistoryTurns = 20
	}
	if cfg.Assistant.MaxTokens <= 0 {
		cfg.Assistant.MaxTokens = 400
	}
	if cfg.Assistant.CompletionTimeout <= 0 {
		cfg.Assistant.CompletionTimeout = 25 * time.Second
	}

	d := &Dispatcher{
		memory:    cfg.Memory,
		caps:      cfg.Capabilities,
		completer: cfg.Completer,
		prompts:   cfg.Prompts,
		log:       cfg.Logger,
		metrics:   cfg.Metrics,
		cfg:       cfg.Assistant,
	}
	d.rules = d.buildRules()
	return d
}

// Rules returns the rule names in priority order.
func (d *Dispatcher) Rules() []string {
	names := make([]string, 0, len(d.rules))
	for _, r := range d.rules {
		names = append(names, r.Name)
	}
	return names
}

// utterance is the input handed to a rule.
type utterance struct {
	// Raw is the trimmed input as spoken.
	Raw string
	// Text is Raw lower-cased, used for matching.
	Text   string
	Memory *memory_service.Service
	Log    logger.Logger
}

// after returns the input following the first occurrence of phrase,
// preserving the speaker's casing when possible.
func (u *utterance) after(phrase string) string {
	i := strings.Index(u.Text, phrase)
	if i < 0 {
		return ""
	}
	src := u.Text
	if len(u.Raw) == len(u.Text) {
		src = u.Raw
	}
	return strings.TrimSpace(src[i+len(phrase):])
}

// Respond dispatches one utterance and records the exchange.
func (d *Dispatcher) Respond(ctx context.Context, req Request) Reply {
	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, _ = logger.EnsureCorrelationID(ctx)
	mem := d.memory.ForDevice(req.Device)
	raw := strings.TrimSpace(req.Text)
	u := &utterance{
		Raw:    raw,
		Text:   strings.ToLower(raw),
		Memory: mem,
		Log:    logger.GetLoggerFromContext(ctx, d.log).WithFields(logger.DeviceField(mem.Device().String())),
	}
	if u.Text == "" {
		return Reply{}
	}

	for _, rule := range d.rules {
		if !rule.Match(u.Text) {
			continue
		}

		start := time.Now()
		reply := rule.Handle(ctx, u)
		reply.Intent = rule.Name
		d.metrics.ObserveIntent(rule.Name)
		u.Log.Info("Utterance handled",
			logger.IntentField(rule.Name),
			logger.DurationField("duration", time.Since(start)))

		if !rule.Ephemeral {
			// a failed write is logged by the memory service and never
			// changes the reply
			_ = mem.AppendTurn(ctx, raw, reply.Text)
		}
		return reply
	}
	return Reply{}
}
