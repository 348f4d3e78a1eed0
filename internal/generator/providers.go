package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Provider configuration
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderStatic = "static"

	// Defaults
	DefaultOllamaHost  = "http://localhost:11434"
	DefaultOllamaModel = "gpt-oss:20b"
	DefaultOpenAIModel = "gpt-4o-mini"
	DefaultCacheSize   = 1000

	// Retry configuration
	MaxRetries        = 3
	InitialBackoffMs  = 500
	MaxBackoffMs      = 10000
	BackoffMultiplier = 2.0
)

// OllamaBackend talks to an Ollama server over its REST API
type OllamaBackend struct {
	host       string
	model      string
	httpClient *http.Client
}

// NewOllamaBackend creates a backend for host and model. A zero timeout
// waits indefinitely for a response.
func NewOllamaBackend(host, model string, timeout time.Duration) *OllamaBackend {
	if host == "" {
		host = DefaultOllamaHost
	}
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}
	if model == "" {
		model = DefaultOllamaModel
	}
	return &OllamaBackend{
		host:       strings.TrimRight(host, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Ping checks the server by listing its models
func (o *OllamaBackend) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.host+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", o.host, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("connect to %s: status %d", o.host, resp.StatusCode)
	}
	return nil
}

func (o *OllamaBackend) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	options := map[string]interface{}{}
	if opts.Temperature != nil {
		options["temperature"] = *opts.Temperature
	}
	if opts.TopP != nil {
		options["top_p"] = *opts.TopP
	}
	if opts.TopK != nil {
		options["top_k"] = *opts.TopK
	}

	reqBody := map[string]interface{}{
		"model":   o.model,
		"prompt":  prompt,
		"stream":  false,
		"options": options,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", permanent(fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.host+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		apiErr := fmt.Errorf("api error %d: %s", resp.StatusCode, strings.TrimSpace(string(bodyBytes)))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return "", permanent(apiErr)
		}
		return "", apiErr
	}

	var apiResp struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	return apiResp.Response, nil
}

// OpenAIBackend talks to an OpenAI-compatible chat completion API
type OpenAIBackend struct {
	llm *openai.LLM
}

// NewOpenAIBackend creates a backend; baseURL may point at any
// OpenAI-compatible server and is optional
func NewOpenAIBackend(apiKey, model, baseURL string) (*OpenAIBackend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingAPIKey, EnvOpenAIAPIKey)
	}
	if model == "" {
		model = DefaultOpenAIModel
	}

	opts := []openai.Option{
		openai.WithToken(apiKey),
		openai.WithModel(model),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create openai client: %w", err)
	}
	return &OpenAIBackend{llm: llm}, nil
}

func (b *OpenAIBackend) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	var callOpts []llms.CallOption
	if opts.Temperature != nil {
		callOpts = append(callOpts, llms.WithTemperature(*opts.Temperature))
	}
	if opts.TopP != nil {
		callOpts = append(callOpts, llms.WithTopP(*opts.TopP))
	}
	if opts.TopK != nil {
		callOpts = append(callOpts, llms.WithTopK(*opts.TopK))
	}

	out, err := llms.GenerateFromSinglePrompt(ctx, b.llm, prompt, callOpts...)
	if err != nil {
		return "", fmt.Errorf("api call: %w", err)
	}
	return out, nil
}

// StaticBackend returns canned responses without any network access.
// It serves offline dry runs and tests.
type StaticBackend struct {
	Summary string
	Inline  string
	Review  string
}

// NewStaticBackend returns a backend with a minimal canned response per kind
func NewStaticBackend() *StaticBackend {
	return &StaticBackend{
		Summary: "/**\n * @brief Generated summary.\n */",
		Inline:  "[]",
		Review:  `{"glitches": []}`,
	}
}

// Complete picks the canned response matching the prompt's kind
func (s *StaticBackend) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	switch {
	case strings.HasPrefix(prompt, "You are a strict C++ code reviewer."):
		return s.Review, nil
	case strings.HasPrefix(prompt, "You are a coding assistant."):
		return s.Inline, nil
	default:
		return s.Summary, nil
	}
}
