package config

import (
	"fmt"
	"strings"
	"time"
)

// LLMProvider names a supported structured-output backend.
type LLMProvider string

const (
	// LLMProviderOllama talks to a local Ollama server (/api/chat with a JSON schema format).
	LLMProviderOllama LLMProvider = "ollama"
	// LLMProviderMistral talks to the Mistral chat completions API.
	LLMProviderMistral LLMProvider = "mistral"
	// LLMProviderOpenAI talks to any OpenAI-compatible chat completions API.
	LLMProviderOpenAI LLMProvider = "openai"
)

// UnmarshalText implements encoding.TextUnmarshaler for LLMProvider.
func (p *LLMProvider) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "ollama", "mistral", "openai":
		*p = LLMProvider(v)
		return nil
	default:
		return fmt.Errorf("invalid LLMProvider: %q (valid options: ollama, mistral, openai)", v)
	}
}

// LLMConfig configures the structured-output LLM client.
type LLMConfig struct {
	Provider LLMProvider `env:"PROVIDER" envDefault:"ollama"`
	// BaseURL defaults per provider when empty.
	BaseURL     string        `env:"BASE_URL"`
	Model       string        `env:"MODEL"       envDefault:"llama3.1:8b"`
	APIKey      string        `env:"API_KEY"`
	Timeout     time.Duration `env:"TIMEOUT"     envDefault:"120s"`
	Temperature float64       `env:"TEMPERATURE" envDefault:"0.2"`
	// MaxAttempts is the client-level retry budget for 429/5xx responses.
	MaxAttempts int `env:"MAX_ATTEMPTS" envDefault:"2"`
	// MaxSceneChars truncates scene text before it is placed in a prompt.
	MaxSceneChars int `env:"MAX_SCENE_CHARS" envDefault:"12000"`
	// LenientAnalysis skips malformed findings instead of failing the scene.
	LenientAnalysis bool `env:"LENIENT_ANALYSIS" envDefault:"false"`
	// PromptsPath optionally replaces the embedded prompt templates (YAML).
	PromptsPath string `env:"PROMPTS_PATH"`
}

// Sanitize applies guardrails to LLM configuration values.
func (l *LLMConfig) Sanitize() {
	l.BaseURL = strings.TrimRight(strings.TrimSpace(l.BaseURL), "/")
	if l.BaseURL == "" {
		l.BaseURL = l.Provider.DefaultBaseURL()
	}
	if l.Timeout < 5*time.Second {
		l.Timeout = 5 * time.Second
	}
	if l.Temperature < 0 {
		l.Temperature = 0
	}
	if l.Temperature > 1 {
		l.Temperature = 1
	}
	if l.MaxAttempts < 1 {
		l.MaxAttempts = 1
	}
	if l.MaxSceneChars < 1000 {
		l.MaxSceneChars = 1000
	}
}

// DefaultBaseURL returns the public endpoint for hosted providers and localhost for Ollama.
func (p LLMProvider) DefaultBaseURL() string {
	switch p {
	case LLMProviderMistral:
		return "https://api.mistral.ai/v1"
	case LLMProviderOpenAI:
		return "https://api.openai.com/v1"
	default:
		return "http://localhost:11434"
	}
}

// TaxonomyConfig optionally overrides the embedded taxonomy files.
type TaxonomyConfig struct {
	TaxonomyPath string `env:"PATH"`
	MeasuresPath string `env:"MEASURES_PATH"`
}
