package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	pkgconfig "github.com/lewisedginton/ron/pkg/config"
	"github.com/lewisedginton/ron/pkg/logger"
)

// AppConfig holds all application configuration. It is built once at startup
// and passed into constructors.
type AppConfig struct {
	ServiceName string `env:"SERVICE_NAME" yaml:"service_name" default:"ron"`
	Version     string `env:"VERSION" yaml:"version" default:"dev"`
	Environment string `env:"ENVIRONMENT" yaml:"environment" default:"development"`

	Assistant    AssistantConfig    `yaml:"assistant"`
	Store        StoreConfig        `yaml:"store"`
	LLM          LLMConfig          `yaml:"llm"`
	OpenAI       OpenAIConfig       `yaml:"openai"`
	Anthropic    AnthropicConfig    `yaml:"anthropic"`
	Gemini       GeminiConfig       `yaml:"gemini"`
	Weather      WeatherConfig      `yaml:"weather"`
	Capabilities CapabilitiesConfig `yaml:"capabilities"`
	Telegram     TelegramConfig     `yaml:"telegram"`
	Slack        SlackConfig        `yaml:"slack"`

	Server  pkgconfig.HTTPServerConfig `yaml:"server"`
	Logging pkgconfig.CommonConfig     `yaml:"logging"`
	Metrics pkgconfig.MetricsConfig    `yaml:"metrics"`
}

// Load reads the optional YAML file at path, overlays environment variables
// and validates the result. An empty path loads from the environment only.
func Load(path string) (*AppConfig, error) {
	var cfg AppConfig
	if err := pkgconfig.GetConfig(&cfg, path, false); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate validates the configuration and returns an error if invalid
func (c AppConfig) Validate() error {
	var result error

	if err := c.Logging.Validate(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := c.Server.Validate(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := c.Metrics.Validate(); err != nil {
		result = multierror.Append(result, err)
	}

	if strings.TrimSpace(c.Assistant.Name) == "" {
		result = multierror.Append(result, fmt.Errorf("assistant name cannot be empty"))
	}
	if c.Assistant.HistoryTurns < 0 {
		result = multierror.Append(result, fmt.Errorf("history_turns cannot be negative"))
	}
	if c.Assistant.LogLimit < 1 {
		result = multierror.Append(result, fmt.Errorf("log_limit must be at least 1"))
	}
	if c.Assistant.MaxTokens < 1 {
		result = multierror.Append(result, fmt.Errorf("max_tokens must be at least 1"))
	}
	if c.Assistant.Temperature < 0 || c.Assistant.Temperature > 2 {
		result = multierror.Append(result, fmt.Errorf("temperature must be between 0 and 2, got %v", c.Assistant.Temperature))
	}
	if c.Assistant.CompletionTimeout <= 0 {
		result = multierror.Append(result, fmt.Errorf("completion_timeout must be greater than 0"))
	}

	result = appendStoreErrors(result, c.Store)

	if !slices.Contains([]string{ProviderClaude, ProviderGemini, ProviderOpenAI}, c.LLM.Provider) {
		result = multierror.Append(result, fmt.Errorf("llm provider must be one of [claude, gemini, openai], got %q", c.LLM.Provider))
	}

	if !slices.Contains([]string{PlatformAuto, PlatformWindows, PlatformLinux, PlatformDarwin}, c.Capabilities.Platform) {
		result = multierror.Append(result, fmt.Errorf("platform must be one of [auto, windows, linux, darwin], got %q", c.Capabilities.Platform))
	}
	if c.Capabilities.CommandTimeout <= 0 {
		result = multierror.Append(result, fmt.Errorf("command_timeout must be greater than 0"))
	}

	return result
}

func appendStoreErrors(result error, s StoreConfig) error {
	if s.MaxAttempts < 1 {
		result = multierror.Append(result, fmt.Errorf("store max_attempts must be at least 1"))
	}
	timeouts := []struct {
		name string
		d    time.Duration
	}{
		{"token_timeout", s.TokenTimeout},
		{"fetch_timeout", s.FetchTimeout},
		{"probe_timeout", s.ProbeTimeout},
		{"write_timeout", s.WriteTimeout},
	}
	for _, t := range timeouts {
		if t.d <= 0 {
			result = multierror.Append(result, fmt.Errorf("store %s must be greater than 0", t.name))
		}
	}

	switch s.Backend {
	case BackendGitHub:
		if s.GitHub.Owner == "" || s.GitHub.Repo == "" {
			result = multierror.Append(result, fmt.Errorf("github store requires owner and repo"))
		}
	case BackendS3:
		if s.S3.Bucket == "" {
			result = multierror.Append(result, fmt.Errorf("s3 store requires a bucket"))
		}
	case BackendGit:
		if s.Git.Path == "" {
			result = multierror.Append(result, fmt.Errorf("git store requires a repository path"))
		}
	case BackendLocal:
		if s.LocalDir == "" {
			result = multierror.Append(result, fmt.Errorf("local store requires a directory"))
		}
	case BackendPostgres:
		if err := s.Postgres.Validate(); err != nil {
			result = multierror.Append(result, fmt.Errorf("postgres store: %w", err))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("store backend must be one of [github, s3, git, local, postgres], got %q", s.Backend))
	}
	return result
}

// GetLogLevel returns the parsed logger level
func (c *AppConfig) GetLogLevel() logger.Level {
	return logger.ParseLevel(c.Logging.LogLevel)
}

// NewLogger builds the process logger from the logging section.
func (c *AppConfig) NewLogger() logger.Logger {
	return logger.NewLogger(logger.Config{
		Level:   c.GetLogLevel(),
		Format:  strings.ToLower(c.Logging.LogFormat),
		Service: c.ServiceName,
	})
}

// IsProduction returns true if running in production environment
func (c *AppConfig) IsProduction() bool {
	return strings.ToLower(c.Environment) == "production"
}

// LogConfig logs the current configuration (without sensitive data)
func (c *AppConfig) LogConfig(log logger.Logger) {
	log.Info("Application configuration loaded",
		logger.StringField("service_name", c.ServiceName),
		logger.StringField("version", c.Version),
		logger.StringField("environment", c.Environment),
		logger.StringField("assistant_name", c.Assistant.Name),
		logger.StringField("store_backend", c.Store.Backend),
		logger.StringField("store_namespace", c.Store.Namespace),
		logger.BoolField("github_token_configured", c.Store.GitHub.Token != "" || c.Store.GitHub.TokenURL != ""),
		logger.StringField("llm_provider", c.LLM.Provider),
		logger.BoolField("weather_configured", c.Weather.Enabled()),
		logger.StringField("platform", c.Capabilities.Platform),
		logger.BoolField("dry_run", c.Capabilities.DryRun),
		logger.IntField("port", c.Server.Port),
		logger.StringField("log_level", c.Logging.LogLevel),
		logger.BoolField("metrics_enabled", c.Metrics.Enabled),
		logger.BoolField("telegram_enabled", c.Telegram.Enabled()),
		logger.BoolField("slack_enabled", c.Slack.Enabled()),
	)
}

const redactedValue = "[redacted]"

func redact(s string) string {
	if s == "" {
		return ""
	}
	return redactedValue
}

// redactURL masks the password of a connection URL.
func redactURL(s string) string {
	if s == "" {
		return ""
	}
	u, err := url.Parse(s)
	if err != nil {
		return redactedValue
	}
	return u.Redacted()
}

// Redacted returns a copy of the configuration with credentials masked, fit
// for printing.
func (c AppConfig) Redacted() AppConfig {
	c.OpenAI.APIKey = redact(c.OpenAI.APIKey)
	c.Anthropic.APIKey = redact(c.Anthropic.APIKey)
	c.Gemini.APIKey = redact(c.Gemini.APIKey)
	c.Weather.APIKey = redact(c.Weather.APIKey)
	c.Store.GitHub.Token = redact(c.Store.GitHub.Token)
	c.Store.Git.AuthPassword = redact(c.Store.Git.AuthPassword)
	c.Store.Postgres.Password = redact(c.Store.Postgres.Password)
	c.Store.Postgres.URL = redactURL(c.Store.Postgres.URL)
	c.Telegram.BotToken = redact(c.Telegram.BotToken)
	c.Slack.BotToken = redact(c.Slack.BotToken)
	c.Slack.AppToken = redact(c.Slack.AppToken)
	return c
}
