package generator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/docsplice/pkg/types"
)

func fastRetry() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
		Multiplier: 2,
	}
}

type scriptedBackend struct {
	mu      sync.Mutex
	calls   int
	prompts []string
	results []error
	resp    string
}

func (s *scriptedBackend) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	s.prompts = append(s.prompts, prompt)
	if len(s.results) > 0 {
		err := s.results[0]
		s.results = s.results[1:]
		if err != nil {
			return "", err
		}
	}
	return s.resp, nil
}

func TestRetryWithBackoff(t *testing.T) {
	ctx := context.Background()

	t.Run("succeeds after transient failures", func(t *testing.T) {
		attempts := 0
		got, err := retryWithBackoff(ctx, fastRetry(), func() (int, error) {
			attempts++
			if attempts < 3 {
				return 0, errors.New("transient")
			}
			return 42, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 42, got)
		assert.Equal(t, 3, attempts)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		attempts := 0
		_, err := retryWithBackoff(ctx, fastRetry(), func() (int, error) {
			attempts++
			return 0, errors.New("down")
		})
		require.EqualError(t, err, "down")
		assert.Equal(t, 3, attempts)
	})

	t.Run("permanent error stops at once", func(t *testing.T) {
		attempts := 0
		_, err := retryWithBackoff(ctx, fastRetry(), func() (int, error) {
			attempts++
			return 0, permanent(errors.New("bad request"))
		})
		require.EqualError(t, err, "bad request")
		assert.Equal(t, 1, attempts)
	})

	t.Run("cancelled context is not retried", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		attempts := 0
		_, err := retryWithBackoff(cctx, fastRetry(), func() (int, error) {
			attempts++
			cancel()
			return 0, errors.New("interrupted")
		})
		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, attempts)
	})
}

func TestClient_TransportErrorAfterRetries(t *testing.T) {
	backend := &scriptedBackend{results: []error{errors.New("a"), errors.New("b"), errors.New("c")}}
	c := NewClient("test", "m", backend, ClientConfig{Retry: fastRetry()})

	_, err := c.Summarize(context.Background(), "int f() {}")
	require.ErrorIs(t, err, types.ErrTransport)
	assert.Equal(t, 3, backend.calls)
}

func TestClient_RecoversWithinRetryBudget(t *testing.T) {
	backend := &scriptedBackend{results: []error{errors.New("a"), nil}, resp: "/** ok */"}
	c := NewClient("test", "m", backend, ClientConfig{Retry: fastRetry()})

	got, err := c.Summarize(context.Background(), "int f() {}")
	require.NoError(t, err)
	assert.Equal(t, "/** ok */", got)
	assert.Equal(t, 2, backend.calls)
}

func TestClient_Cache(t *testing.T) {
	backend := &scriptedBackend{resp: "[]"}

	var mu sync.Mutex
	outcomes := map[string]int{}
	c := NewClient("test", "m", backend, ClientConfig{
		Retry:     fastRetry(),
		CacheSize: 8,
		Observer: func(kind Kind, outcome string, elapsed time.Duration) {
			mu.Lock()
			defer mu.Unlock()
			outcomes[string(kind)+"/"+outcome]++
		},
	})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := c.InlineAnnotate(ctx, "1: int f() {}")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, backend.calls)
	assert.Equal(t, 1, c.CacheSize())

	// Same text, different kind: separate cache entry
	_, err := c.Summarize(ctx, "1: int f() {}")
	require.NoError(t, err)
	assert.Equal(t, 2, backend.calls)

	assert.Equal(t, 1, outcomes["inline/ok"])
	assert.Equal(t, 2, outcomes["inline/cached"])
	assert.Equal(t, 1, outcomes["summary/ok"])

	require.NoError(t, c.Close())
	assert.Equal(t, 0, c.CacheSize())
}

func TestClient_Prompts(t *testing.T) {
	backend := &scriptedBackend{resp: "{}"}
	c := NewClient("test", "m", backend, ClientConfig{Retry: fastRetry()})
	ctx := context.Background()

	_, err := c.Summarize(ctx, "int f() {}")
	require.NoError(t, err)
	_, err = c.InlineAnnotate(ctx, "1: int f() {}")
	require.NoError(t, err)
	_, err = c.Review(ctx, "src/a.cpp", "f", "int f() {}")
	require.NoError(t, err)

	require.Len(t, backend.prompts, 3)
	assert.True(t, strings.HasPrefix(backend.prompts[0], "int f() {}\n\n"))
	assert.Contains(t, backend.prompts[0], "NOTE: The output MUST begin with '/**' and end with */.")
	assert.True(t, strings.HasSuffix(backend.prompts[1], "1: int f() {}"))
	assert.Contains(t, backend.prompts[2], "File: src/a.cpp\nFunction: f\n")
}

func TestClient_SendsValidUTF8(t *testing.T) {
	backend := &scriptedBackend{resp: "{}"}
	c := NewClient("test", "m", backend, ClientConfig{Retry: fastRetry()})

	_, err := c.Summarize(context.Background(), "int f() { return 0; } // caf\xe9")
	require.NoError(t, err)

	require.Len(t, backend.prompts, 1)
	assert.True(t, utf8.ValidString(backend.prompts[0]))
	assert.Contains(t, backend.prompts[0], "// caf\uFFFD")
}

func TestClient_RateLimit(t *testing.T) {
	backend := &scriptedBackend{resp: "x"}
	c := NewClient("test", "m", backend, ClientConfig{Retry: fastRetry(), RateLimit: 1, Burst: 1})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Summarize(ctx, "a")
	require.NoError(t, err)

	// The second token is a full second away
	_, err = c.Summarize(ctx, "b")
	require.Error(t, err)
	assert.Equal(t, 1, backend.calls)
}

func TestOllamaBackend(t *testing.T) {
	var calls atomic.Int32
	var lastBody map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"models": []}`))
		case "/api/generate":
			calls.Add(1)
			assert.Equal(t, http.MethodPost, r.Method)
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&lastBody))
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"response": "[{\"line\": 1, \"comment\": \"c\"}]", "done": true})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	gen, err := New(Config{Provider: ProviderOllama, Host: server.URL, Retry: fastRetry()})
	require.NoError(t, err)
	defer gen.Close()

	assert.Equal(t, ProviderOllama, gen.Provider())
	assert.Equal(t, DefaultOllamaModel, gen.Model())
	require.NoError(t, gen.Ping(context.Background()))

	resp, err := gen.InlineAnnotate(context.Background(), "1: int f() {}")
	require.NoError(t, err)
	assert.Equal(t, []types.InlineComment{{Line: 1, Comment: "c"}}, ParseInlineComments(resp))

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, DefaultOllamaModel, lastBody["model"])
	assert.Equal(t, false, lastBody["stream"])
	assert.Equal(t, map[string]interface{}{"temperature": 0.0}, lastBody["options"])

	_, err = gen.Review(context.Background(), "a.cpp", "f", "int f() {}")
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"temperature": 0.0, "top_p": 1.0, "top_k": 0.0}, lastBody["options"])
}

func TestOllamaBackend_Errors(t *testing.T) {
	t.Run("server errors are retried", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				http.Error(w, "loading model", http.StatusServiceUnavailable)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]string{"response": "/** ok */"})
		}))
		defer server.Close()

		gen, err := New(Config{Host: server.URL, Retry: fastRetry()})
		require.NoError(t, err)

		resp, err := gen.Summarize(context.Background(), "int f() {}")
		require.NoError(t, err)
		assert.Equal(t, "/** ok */", resp)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("client errors are not retried", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
		}))
		defer server.Close()

		gen, err := New(Config{Host: server.URL, Model: "missing", Retry: fastRetry()})
		require.NoError(t, err)

		_, err = gen.Summarize(context.Background(), "int f() {}")
		require.ErrorIs(t, err, types.ErrTransport)
		assert.Contains(t, err.Error(), "model not found")
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("unreachable host", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		url := server.URL
		server.Close()

		gen, err := New(Config{Host: url, Retry: fastRetry()})
		require.NoError(t, err)

		require.ErrorIs(t, gen.Ping(context.Background()), types.ErrTransport)

		_, err = gen.Summarize(context.Background(), "int f() {}")
		require.ErrorIs(t, err, types.ErrTransport)
	})
}

func TestPing(t *testing.T) {
	var generates atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/generate" {
			generates.Add(1)
		}
		http.Error(w, "ollama is starting", http.StatusInternalServerError)
	}))
	defer server.Close()

	gen, err := New(Config{Provider: ProviderOllama, Host: server.URL, Retry: fastRetry()})
	require.NoError(t, err)

	err = Ping(context.Background(), gen)
	require.ErrorIs(t, err, types.ErrTransport)
	assert.Contains(t, err.Error(), "status 500")
	assert.Equal(t, int32(0), generates.Load())

	static := NewClient(ProviderStatic, "static", &StaticBackend{}, ClientConfig{})
	assert.NoError(t, Ping(context.Background(), static))
}

func TestOpenAIBackend(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "test-model",
			"choices": []map[string]interface{}{
				{
					"index":         0,
					"message":       map[string]string{"role": "assistant", "content": "/** @brief From chat. */"},
					"finish_reason": "stop",
				},
			},
			"usage": map[string]int{"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2},
		})
	}))
	defer server.Close()

	gen, err := New(Config{
		Provider: ProviderOpenAI,
		APIKey:   "test-key",
		Model:    "test-model",
		Host:     server.URL,
		Retry:    fastRetry(),
	})
	require.NoError(t, err)

	assert.Equal(t, ProviderOpenAI, gen.Provider())
	assert.Equal(t, "test-model", gen.Model())

	resp, err := gen.Summarize(context.Background(), "int f() {}")
	require.NoError(t, err)

	block, ok := ExtractDocBlock(resp)
	require.True(t, ok)
	assert.Equal(t, "/** @brief From chat. */\n", block)
}

func TestStaticBackend(t *testing.T) {
	gen, err := New(Config{Provider: ProviderStatic})
	require.NoError(t, err)
	ctx := context.Background()

	summary, err := gen.Summarize(ctx, "int f() {}")
	require.NoError(t, err)
	_, ok := ExtractDocBlock(summary)
	assert.True(t, ok)

	inline, err := gen.InlineAnnotate(ctx, "1: int f() {}")
	require.NoError(t, err)
	assert.Empty(t, ParseInlineComments(inline))

	review, err := gen.Review(ctx, "a.cpp", "f", "int f() {}")
	require.NoError(t, err)
	assert.Empty(t, ParseReview(review, "a.cpp", "f").Glitches)
}
