package config

import "time"

// AssistantConfig holds the persona and fallback completion settings
type AssistantConfig struct {
	Name    string `env:"RON_NAME" yaml:"name" default:"Ron"`
	Creator string `env:"RON_CREATOR" yaml:"creator" default:"Luis"`

	HistoryTurns      int           `env:"RON_HISTORY_TURNS" yaml:"history_turns" default:"20"`
	LogLimit          int           `env:"RON_LOG_LIMIT" yaml:"log_limit" default:"100"`
	MaxTokens         int           `env:"RON_MAX_TOKENS" yaml:"max_tokens" default:"400"`
	Temperature       float64       `env:"RON_TEMPERATURE" yaml:"temperature" default:"0.7"`
	CompletionTimeout time.Duration `env:"RON_COMPLETION_TIMEOUT" yaml:"completion_timeout" default:"25s"`
}
