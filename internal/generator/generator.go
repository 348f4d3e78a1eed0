package generator

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/zeebo/xxh3"
	"golang.org/x/time/rate"

	"github.com/dshills/docsplice/pkg/types"
)

// Common errors
var (
	ErrUnknownProvider = errors.New("unknown generator provider")
	ErrMissingAPIKey   = errors.New("api key not set")
	ErrEmptyPrompt     = errors.New("prompt cannot be empty")
)

// Generator produces documentation, inline comments and reviews for function text.
// Every method returns the raw service response; parsing is left to the
// caller (see ExtractDocBlock, ParseInlineComments and ParseReview).
type Generator interface {
	// Summarize asks for a Doxygen block describing the function
	Summarize(ctx context.Context, functionText string) (string, error)

	// InlineAnnotate asks for a JSON array of {line, comment} for numbered function text
	InlineAnnotate(ctx context.Context, numberedText string) (string, error)

	// Review asks for a JSON object listing critical glitches
	Review(ctx context.Context, file, function, functionText string) (string, error)

	// Provider returns the provider name
	Provider() string

	// Model returns the model name
	Model() string

	// Close releases any resources held by the generator
	Close() error
}

// Kind names a request type for caching and metrics
type Kind string

const (
	KindSummary Kind = "summary"
	KindInline  Kind = "inline"
	KindReview  Kind = "review"
)

// Options are sampling parameters passed to the backend. Nil fields are
// left to the service default.
type Options struct {
	Temperature *float64
	TopP        *float64
	TopK        *int
}

func ptr[T any](v T) *T { return &v }

// Backend sends one prompt to a text-generation service
type Backend interface {
	Complete(ctx context.Context, prompt string, opts Options) (string, error)
}

// Observer is notified after every request with its outcome
// ("ok", "cached" or "error") and duration
type Observer func(kind Kind, outcome string, elapsed time.Duration)

// ClientConfig tunes the request pipeline around a Backend
type ClientConfig struct {
	Retry     RetryConfig
	CacheSize int     // 0 disables caching
	RateLimit float64 // Requests per second; 0 disables limiting
	Burst     int
	Observer  Observer
}

var _ Generator = (*Client)(nil)

// Client implements Generator on top of a Backend with retry, caching and
// rate limiting
type Client struct {
	provider string
	model    string
	backend  Backend
	retry    RetryConfig
	cache    *Cache
	limiter  *rate.Limiter
	observer Observer
}

// NewClient wraps backend. A zero Retry config gets DefaultRetryConfig.
func NewClient(provider, model string, backend Backend, cfg ClientConfig) *Client {
	if cfg.Retry.MaxRetries <= 0 {
		cfg.Retry = DefaultRetryConfig()
	}

	c := &Client{
		provider: provider,
		model:    model,
		backend:  backend,
		retry:    cfg.Retry,
		observer: cfg.Observer,
	}

	if cfg.CacheSize > 0 {
		c.cache = NewCache(cfg.CacheSize)
	}

	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return c
}

func (c *Client) Summarize(ctx context.Context, functionText string) (string, error) {
	return c.generate(ctx, KindSummary, SummaryPrompt(functionText), Options{})
}

func (c *Client) InlineAnnotate(ctx context.Context, numberedText string) (string, error) {
	return c.generate(ctx, KindInline, InlinePrompt(numberedText), Options{Temperature: ptr(0.0)})
}

func (c *Client) Review(ctx context.Context, file, function, functionText string) (string, error) {
	return c.generate(ctx, KindReview, ReviewPrompt(file, function, functionText), Options{
		Temperature: ptr(0.0),
		TopP:        ptr(1.0),
		TopK:        ptr(0),
	})
}

func (c *Client) Provider() string {
	return c.provider
}

func (c *Client) Model() string {
	return c.model
}

// Close drops cached responses and releases the backend when it holds resources
func (c *Client) Close() error {
	if c.cache != nil {
		c.cache.Clear()
	}
	if closer, ok := c.backend.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

// Ping checks that the backend is reachable when it supports a health check
func (c *Client) Ping(ctx context.Context) error {
	if pinger, ok := c.backend.(interface{ Ping(context.Context) error }); ok {
		if err := pinger.Ping(ctx); err != nil {
			return fmt.Errorf("%w: %s: %w", types.ErrTransport, c.provider, err)
		}
	}
	return nil
}

// Ping checks the connection of gen when it supports a health check.
// Failures wrap types.ErrTransport.
func Ping(ctx context.Context, gen Generator) error {
	pinger, ok := gen.(interface{ Ping(context.Context) error })
	if !ok {
		return nil
	}
	if err := pinger.Ping(ctx); err != nil {
		if errors.Is(err, types.ErrTransport) {
			return err
		}
		return fmt.Errorf("%w: %s: %w", types.ErrTransport, gen.Provider(), err)
	}
	return nil
}

// CacheSize returns the number of cached responses
func (c *Client) CacheSize() int {
	if c.cache == nil {
		return 0
	}
	return c.cache.Size()
}

func (c *Client) generate(ctx context.Context, kind Kind, prompt string, opts Options) (string, error) {
	if prompt == "" {
		return "", ErrEmptyPrompt
	}

	// Source files are not always UTF-8; the services only accept valid text
	prompt = strings.ToValidUTF8(prompt, "\uFFFD")

	start := time.Now()

	// Check cache
	hash := ComputeHash(string(kind) + "\x00" + prompt)
	if c.cache != nil {
		if resp, ok := c.cache.Get(hash); ok {
			c.observe(kind, "cached", start)
			return resp, nil
		}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	resp, err := retryWithBackoff(ctx, c.retry, func() (string, error) {
		return c.backend.Complete(ctx, prompt, opts)
	})
	if err != nil {
		c.observe(kind, "error", start)
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: %s %s request: %w", types.ErrTransport, c.provider, kind, err)
	}

	c.observe(kind, "ok", start)

	if c.cache != nil {
		c.cache.Set(hash, resp)
	}

	return resp, nil
}

func (c *Client) observe(kind Kind, outcome string, start time.Time) {
	if c.observer != nil {
		c.observer(kind, outcome, time.Since(start))
	}
}

// Cache provides in-memory LRU caching of responses by prompt hash
type Cache struct {
	cache *lru.Cache[string, string]
}

// NewCache creates a response cache with LRU eviction
func NewCache(maxLen int) *Cache {
	if maxLen <= 0 {
		maxLen = DefaultCacheSize
	}
	cache, err := lru.New[string, string](maxLen)
	if err != nil {
		cache, _ = lru.New[string, string](DefaultCacheSize)
	}
	return &Cache{cache: cache}
}

// Get retrieves a cached response
func (c *Cache) Get(hash string) (string, bool) {
	return c.cache.Get(hash)
}

// Set stores a response
func (c *Cache) Set(hash, resp string) {
	c.cache.Add(hash, resp)
}

// Size returns the current cache size
func (c *Cache) Size() int {
	return c.cache.Len()
}

// Clear empties the cache
func (c *Cache) Clear() {
	c.cache.Purge()
}

// ComputeHash fingerprints a prompt with xxh3-128
func ComputeHash(text string) string {
	sum := xxh3.HashString128(text).Bytes()
	return hex.EncodeToString(sum[:])
}
