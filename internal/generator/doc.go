// Package generator asks a text-generation service for function documentation,
// inline comments and code reviews.
//
// A Client wraps a Backend (one HTTP round trip per prompt) with the request
// pipeline shared by every provider: an optional rate limiter, an LRU
// response cache keyed by the prompt hash, and bounded retry with
// exponential backoff. When the retry budget is spent the error wraps
// types.ErrTransport, which callers treat as fatal for the run.
//
// # Providers
//
//   - ollama: POST {host}/api/generate with stream disabled (default)
//   - openai: any OpenAI-compatible chat completion API via langchaingo
//   - static: canned responses for offline runs and tests
//
// Selection:
//
//	gen, err := generator.New(generator.Config{
//	    Provider: "ollama",
//	    Host:     "http://localhost:11434",
//	    Model:    "gpt-oss:20b",
//	})
//	if err != nil {
//	    return err
//	}
//	defer gen.Close()
//
// The configuration layer fills Config from the config file and from
// DOCSPLICE_PROVIDER, DOCSPLICE_MODEL, OLLAMA_HOST, OPENAI_API_KEY and
// OPENAI_BASE_URL.
//
// # Responses
//
// Responses are returned raw. ExtractDocBlock, ParseInlineComments and
// ParseReview turn them into values; malformed responses become empty
// results rather than errors.
package generator
