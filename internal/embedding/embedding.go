// Package embedding wraps the Gemini embedding API with an in-memory
// exact-text cache, per-call timeouts, and graceful failure: transport and
// auth errors degrade to "no semantic signal" instead of propagating.
package embedding

import (
	"blogsmith/internal/config"
	"blogsmith/internal/logger"
	"context"
	"fmt"
	"math"
	"os"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/spf13/viper"
	"google.golang.org/genai"
)

const (
	// DefaultModel is the default Gemini embedding model.
	DefaultModel = "gemini-embedding-001"
	// DefaultDimensions is the output dimension for embeddings (Matryoshka).
	DefaultDimensions = int32(768)
	// DefaultMaxInputChars is the conservative input limit before truncation.
	DefaultMaxInputChars = 8000
)

// Client generates semantic vectors for article text. The cache is keyed by
// exact input text and lives for the client's lifetime; no external
// invalidation is supported.
type Client struct {
	gClient *genai.Client
	model   string
	dims    int32
	timeout time.Duration
	maxIn   int

	mu        sync.Mutex
	cache     map[string][]float64
	requests  int64
	cacheHits int64
	apiErrors int64
}

// Stats reports the client's observability counters.
type Stats struct {
	RequestsMade int64   `json:"requests_made"`
	CacheHits    int64   `json:"cache_hits"`
	CacheHitRate float64 `json:"cache_hit_rate"`
	APIErrors    int64   `json:"api_errors"`
}

// NewClient creates an embedding client. The API key is resolved in order of
// preference from GEMINI_API_KEY, GOOGLE_GEMINI_API_KEY, GOOGLE_AI_API_KEY,
// then the embedding.api_key config value. A missing key is an error: callers
// treat that as "run in character-only mode", decided once at construction.
func NewClient(ctx context.Context, cfg config.Embedding) (*Client, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		if apiKey = os.Getenv("GOOGLE_GEMINI_API_KEY"); apiKey == "" {
			if apiKey = os.Getenv("GOOGLE_AI_API_KEY"); apiKey == "" {
				apiKey = viper.GetString("embedding.api_key")
			}
		}
	}
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required. Set GEMINI_API_KEY or embedding.api_key in the config file")
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	dims := cfg.Dimensions
	if dims <= 0 {
		dims = DefaultDimensions
	}
	maxIn := cfg.MaxInputChars
	if maxIn <= 0 {
		maxIn = DefaultMaxInputChars
	}

	gClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Client{
		gClient: gClient,
		model:   model,
		dims:    dims,
		timeout: cfg.TimeoutDuration(),
		maxIn:   maxIn,
		cache:   make(map[string][]float64),
	}, nil
}

// EmbedText returns the embedding vector for text, using the cache when the
// exact text was embedded before. Overlong input is truncated to the model's
// limit before the call. Transport, auth, and timeout errors are returned to
// the caller, who must treat them as "no semantic signal".
func (c *Client) EmbedText(ctx context.Context, text string) ([]float64, error) {
	text = truncateOnRuneBoundary(text, c.maxIn)

	c.mu.Lock()
	if vec, ok := c.cache[text]; ok {
		c.cacheHits++
		c.mu.Unlock()
		return vec, nil
	}
	c.requests++
	c.mu.Unlock()

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: text}},
		Role:  "user",
	}}
	embedCfg := &genai.EmbedContentConfig{
		OutputDimensionality: &c.dims,
	}

	resp, err := c.gClient.Models.EmbedContent(callCtx, c.model, contents, embedCfg)
	if err != nil {
		c.countError()
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}
	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		c.countError()
		return nil, fmt.Errorf("no embedding values returned from API")
	}

	values := resp.Embeddings[0].Values
	vec := make([]float64, len(values))
	for i, val := range values {
		vec[i] = float64(val)
	}

	c.mu.Lock()
	c.cache[text] = vec
	c.mu.Unlock()

	return vec, nil
}

// CompareTexts embeds both texts (via the cache) and returns their cosine
// similarity. The second return value reports whether the score was actually
// computed: (0, false) means "no semantic signal", never "dissimilar".
func (c *Client) CompareTexts(ctx context.Context, a, b string) (float64, bool) {
	vecA, err := c.EmbedText(ctx, a)
	if err != nil {
		logger.Warn("Embedding unavailable for comparison", "side", "a", "error", err.Error())
		return 0, false
	}
	vecB, err := c.EmbedText(ctx, b)
	if err != nil {
		logger.Warn("Embedding unavailable for comparison", "side", "b", "error", err.Error())
		return 0, false
	}
	return CosineSimilarity(vecA, vecB), true
}

// Stats returns the request, cache, and error counters.
func (c *Client) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.requests + c.cacheHits
	rate := 0.0
	if total > 0 {
		rate = float64(c.cacheHits) / float64(total)
	}
	return Stats{
		RequestsMade: c.requests,
		CacheHits:    c.cacheHits,
		CacheHitRate: rate,
		APIErrors:    c.apiErrors,
	}
}

// truncateOnRuneBoundary caps text at max bytes, backing off so a multi-byte
// rune is never split.
func truncateOnRuneBoundary(text string, max int) string {
	if len(text) <= max {
		return text
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

func (c *Client) countError() {
	c.mu.Lock()
	c.apiErrors++
	c.mu.Unlock()
}

// CosineSimilarity calculates the cosine similarity between two embeddings.
// Mismatched lengths and zero vectors yield 0.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
