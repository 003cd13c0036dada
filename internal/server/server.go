// Package server wires the assistant together and hosts it over HTTP and the
// configured chat connectors.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/lewisedginton/ron/internal/assistant"
	"github.com/lewisedginton/ron/internal/capabilities"
	appconfig "github.com/lewisedginton/ron/internal/config"
	"github.com/lewisedginton/ron/internal/connectors/slack"
	"github.com/lewisedginton/ron/internal/connectors/telegram"
	"github.com/lewisedginton/ron/internal/memory_service"
	"github.com/lewisedginton/ron/internal/memory_store"
	"github.com/lewisedginton/ron/internal/models"
	"github.com/lewisedginton/ron/internal/models/provider"
	"github.com/lewisedginton/ron/internal/monitoring"
	"github.com/lewisedginton/ron/internal/prompt_manager"
	"github.com/lewisedginton/ron/internal/storage_manager"
	"github.com/lewisedginton/ron/pkg/health"
	"github.com/lewisedginton/ron/pkg/httpmiddleware"
	"github.com/lewisedginton/ron/pkg/logger"
	"github.com/lewisedginton/ron/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

const maxRequestBytes = 64 << 10

// Server encapsulates the assistant components and their lifecycle.
type Server struct {
	cfg        *appconfig.AppConfig
	log        logger.Logger
	metrics    *metrics.Metrics
	storage    *storage_manager.StorageManager
	memory     *memory_service.Service
	dispatcher *assistant.Dispatcher
	health     *health.Checker

	telegramConnector *telegram.Connector
	slackConnector    *slack.Connector
}

// Option overrides a component New would otherwise build from configuration.
type Option func(*options)

type options struct {
	storage      *storage_manager.StorageManager
	capabilities *capabilities.Set
	completer    models.Completer
	completerSet bool
	httpClient   *http.Client
}

// WithStorageManager uses the given storage manager instead of the configured backend.
func WithStorageManager(m *storage_manager.StorageManager) Option {
	return func(o *options) { o.storage = m }
}

// WithCapabilities uses the given capability set instead of the platform one.
func WithCapabilities(set *capabilities.Set) Option {
	return func(o *options) { o.capabilities = set }
}

// WithCompleter uses the given completer for fallback replies. A nil
// completer disables the fallback model.
func WithCompleter(c models.Completer) Option {
	return func(o *options) {
		o.completer = c
		o.completerSet = true
	}
}

// WithHTTPClient sets the client used by the store backends.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// New creates a Server with all components initialized. Connectors are
// created here but only started by Run.
//
//nolint:revive // cognitive-complexity: sequential component setup
func New(ctx context.Context, cfg *appconfig.AppConfig, log logger.Logger, opts ...Option) (*Server, error) {
	o := options{httpClient: &http.Client{}}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Server{cfg: cfg, log: log}
	if cfg.Metrics.Enabled {
		s.metrics = metrics.NewMetrics(cfg.Metrics.Namespace)
	}

	var err error
	s.storage = o.storage
	if s.storage == nil {
		s.storage, err = storage_manager.New(ctx, cfg.Store, o.httpClient)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage manager: %w", err)
		}
	}
	log.Info("Memory store configured",
		logger.StringField("backend", s.storage.Backend()),
		logger.StringField("namespace", cfg.Store.Namespace))

	device := memory_store.NewDeviceResolver(cfg.Store.Device).ResolveDeviceKey()
	s.memory = s.createMemoryService(device)

	caps := o.capabilities
	if caps == nil {
		caps, err = capabilities.New(cfg.Capabilities, cfg.Weather, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create capabilities: %w", err)
		}
	}

	completer := o.completer
	if !o.completerSet {
		completer, err = provider.New(ctx, cfg, log)
		if err != nil {
			// the rule table still works, only free-form replies degrade
			log.Warn("Completion model unavailable, fallback replies disabled", logger.ErrorField(err))
			completer = nil
		}
	}

	s.dispatcher = assistant.New(assistant.Config{
		Memory:       s.memory,
		Capabilities: caps,
		Completer:    completer,
		Prompts:      prompt_manager.New(s.storage.GetProvider(prompt_manager.Namespace)),
		Logger:       log,
		Metrics:      s.metrics,
		Assistant:    cfg.Assistant,
	})

	s.health = monitoring.NewChecker(monitoring.Config{
		Logger:  log,
		Version: cfg.Version,
		Store:   s.storage.GetProvider(cfg.Store.Namespace),
		Device:  device,
		Timeout: cfg.Store.ProbeTimeout,
	})

	if cfg.Telegram.Enabled() {
		s.telegramConnector, err = telegram.NewConnector(telegram.Config{
			BotToken: cfg.Telegram.BotToken,
			Debug:    cfg.Telegram.Debug,
			Logger:   log,
		}, s.dispatcher)
		if err != nil {
			return nil, fmt.Errorf("failed to create Telegram connector: %w", err)
		}
	}

	if cfg.Slack.Enabled() {
		s.slackConnector, err = slack.NewConnector(slack.Config{
			BotToken: cfg.Slack.BotToken,
			AppToken: cfg.Slack.AppToken,
			Debug:    cfg.Slack.Debug,
			Logger:   log,
		}, s.dispatcher)
		if err != nil {
			return nil, fmt.Errorf("failed to create Slack connector: %w", err)
		}
	}

	return s, nil
}

func (s *Server) createMemoryService(device memory_store.DeviceKey) *memory_service.Service {
	store := memory_store.NewClient(memory_store.Config{
		Provider: s.storage.GetProvider(s.cfg.Store.Namespace),
		Logger:   s.log,
		Metrics:  s.metrics,
		Defaults: memory_store.Defaults{
			AssistantName: s.cfg.Assistant.Name,
			Creator:       s.cfg.Assistant.Creator,
		},
		MaxAttempts:  s.cfg.Store.MaxAttempts,
		FetchTimeout: s.cfg.Store.FetchTimeout,
		ProbeTimeout: s.cfg.Store.ProbeTimeout,
		WriteTimeout: s.cfg.Store.WriteTimeout,
	})
	s.log.Info("Device resolved", logger.DeviceField(device.String()))

	return memory_service.New(memory_service.Config{
		Store:    store,
		Device:   device,
		Logger:   s.log,
		LogLimit: s.cfg.Assistant.LogLimit,
	})
}

// Dispatcher returns the assistant dispatcher.
func (s *Server) Dispatcher() *assistant.Dispatcher { return s.dispatcher }

// Memory returns the memory service bound to the local device.
func (s *Server) Memory() *memory_service.Service { return s.memory }

// Close releases the store backend.
func (s *Server) Close() error {
	return s.storage.Close()
}

// Handler returns the HTTP API.
func (s *Server) Handler() http.Handler {
	router := chi.NewRouter()

	mw := httpmiddleware.DefaultConfig()
	mw.Logger = s.log
	mw.Metrics = s.metrics
	if limit := s.cfg.Assistant.CompletionTimeout + 5*time.Second; limit > mw.Timeout {
		mw.Timeout = limit
	}
	httpmiddleware.ApplyToRouter(router, mw)

	router.Get("/healthz", s.health.Handler())
	if s.metrics != nil {
		router.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}
	if s.cfg.Server.EnablePprof {
		router.Mount("/debug", middleware.Profiler())
	}
	router.Post("/v1/respond", s.handleRespond)

	return router
}

type respondRequest struct {
	Text   string `json:"text"`
	Device string `json:"device,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleRespond(w http.ResponseWriter, r *http.Request) {
	var req respondRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "text is required"})
		return
	}

	var device memory_store.DeviceKey
	if req.Device != "" {
		device = memory_store.SanitizeDeviceKey(req.Device)
	}
	reply := s.dispatcher.Respond(r.Context(), assistant.Request{Device: device, Text: req.Text})
	writeJSON(w, http.StatusOK, reply)
}

// Run listens on the configured port and blocks until ctx is cancelled, a
// termination signal arrives or a component fails.
func (s *Server) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Server.Port))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve runs the HTTP API on ln alongside the enabled connectors.
//
//nolint:revive // cognitive-complexity: orchestrates the HTTP server and connectors
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	g, ctx := errgroup.WithContext(ctx)

	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadTimeout:       s.cfg.Server.ReadTimeout(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.cfg.Server.WriteTimeout(),
		IdleTimeout:       s.cfg.Server.IdleTimeout(),
		MaxHeaderBytes:    s.cfg.Server.MaxHeaderBytes,
	}

	g.Go(func() error {
		s.log.Info("HTTP API listening", logger.StringField("addr", ln.Addr().String()))
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		s.log.Info("Shutting down HTTP API")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second) //nolint:contextcheck // parent is already cancelled
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil { //nolint:contextcheck // fresh context for graceful shutdown
			s.log.Error("HTTP API shutdown error", logger.ErrorField(err))
			return err
		}
		return nil
	})

	if s.telegramConnector != nil {
		g.Go(func() error {
			if info, err := s.telegramConnector.GetBotInfo(ctx); err != nil {
				s.log.Warn("Failed to get Telegram bot info", logger.ErrorField(err))
			} else {
				s.log.Info("Telegram bot connected", logger.StringField("bot_username", info.Username))
			}
			if err := s.telegramConnector.Start(ctx); err != nil {
				return fmt.Errorf("telegram connector: %w", err)
			}
			return nil
		})
	} else {
		s.log.Info("Telegram connector disabled (missing TELEGRAM_BOT_TOKEN)")
	}

	if s.slackConnector != nil {
		g.Go(func() error {
			if err := s.slackConnector.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("slack connector: %w", err)
			}
			return nil
		})
	} else {
		s.log.Info("Slack connector disabled (missing SLACK_BOT_TOKEN or SLACK_APP_TOKEN)")
	}

	err := g.Wait()
	s.log.Info("Server stopped")
	return err
}
