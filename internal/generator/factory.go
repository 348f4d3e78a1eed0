package generator

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Environment variables that override the generator configuration
const (
	EnvProvider     = "DOCSPLICE_PROVIDER"
	EnvModel        = "DOCSPLICE_MODEL"
	EnvOllamaHost   = "OLLAMA_HOST"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
	EnvOpenAIBase   = "OPENAI_BASE_URL"
)

// Config holds generator configuration
type Config struct {
	Provider  string
	Model     string
	Host      string // Ollama host or OpenAI-compatible base URL
	APIKey    string
	Timeout   time.Duration // 0 waits indefinitely
	Retry     RetryConfig
	CacheSize int
	RateLimit float64
	Burst     int
	Observer  Observer
}

// New creates a generator with explicit configuration
func New(cfg Config) (*Client, error) {
	clientCfg := ClientConfig{
		Retry:     cfg.Retry,
		CacheSize: cfg.CacheSize,
		RateLimit: cfg.RateLimit,
		Burst:     cfg.Burst,
		Observer:  cfg.Observer,
	}

	provider := strings.ToLower(cfg.Provider)
	switch provider {
	case ProviderOllama, "":
		backend := NewOllamaBackend(cfg.Host, cfg.Model, cfg.Timeout)
		return NewClient(ProviderOllama, backend.model, backend, clientCfg), nil

	case ProviderOpenAI:
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv(EnvOpenAIAPIKey)
		}
		model := cfg.Model
		if model == "" {
			model = DefaultOpenAIModel
		}
		backend, err := NewOpenAIBackend(apiKey, model, cfg.Host)
		if err != nil {
			return nil, err
		}
		return NewClient(ProviderOpenAI, model, backend, clientCfg), nil

	case ProviderStatic:
		return NewClient(ProviderStatic, "static", NewStaticBackend(), clientCfg), nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, cfg.Provider)
	}
}
