package config

// LLM provider constants
const (
	ProviderClaude = "claude"
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// LLMConfig holds completion provider selection configuration
type LLMConfig struct {
	// Provider specifies which completion provider answers fallback utterances: "claude", "gemini", or "openai"
	Provider string `env:"LLM_PROVIDER" yaml:"provider" default:"openai"`
}
