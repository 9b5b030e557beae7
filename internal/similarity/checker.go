// Package similarity decides whether a newly generated article is too close
// to anything already produced in the current batch session. It blends a
// character-shingle SimHash signal with an optional semantic-embedding signal
// and owns the batch-session memory of prior article summaries.
package similarity

import (
	"blogsmith/internal/config"
	"blogsmith/internal/core"
	"blogsmith/internal/embedding"
	"blogsmith/internal/logger"
	"blogsmith/internal/simhash"
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

const headlineWeight = 3 // headline repeated in the shingle stream

// Embedder is the minimal semantic layer the checker needs. The production
// implementation is embedding.Client; tests substitute fakes.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float64, error)
	Stats() embedding.Stats
}

// BatchSession holds the slug -> ArticleSummary memory for one batch run.
// It is an explicitly owned value, injected into the checker, so independent
// runs can never leak state into each other. It has no internal locking:
// concurrent writers must be serialized by the caller.
type BatchSession struct {
	articles map[string]core.ArticleSummary
	order    []string
}

// NewBatchSession creates an empty batch session.
func NewBatchSession() *BatchSession {
	return &BatchSession{articles: make(map[string]core.ArticleSummary)}
}

// Len returns the number of committed article summaries.
func (s *BatchSession) Len() int {
	return len(s.articles)
}

// Checker is the single entry point for batch similarity decisions. The
// analysis mode is fixed at construction: a checker built without an embedder
// runs character-only for its lifetime, with no per-call flapping.
type Checker struct {
	cfg      config.Similarity
	session  *BatchSession
	hasher   *simhash.Hasher
	embedder Embedder
}

// NewChecker creates a checker over the given session. embedder may be nil,
// which fixes the checker in character-only mode.
func NewChecker(cfg config.Similarity, session *BatchSession, embedder Embedder) (*Checker, error) {
	if session == nil {
		return nil, fmt.Errorf("batch session cannot be nil")
	}
	if cfg.Threshold < 0 || cfg.Threshold > 100 {
		return nil, fmt.Errorf("similarity threshold must be within [0, 100], got %.2f", cfg.Threshold)
	}
	if cfg.SemanticThreshold < 0 || cfg.SemanticThreshold > 1 {
		return nil, fmt.Errorf("semantic threshold must be within [0, 1], got %.2f", cfg.SemanticThreshold)
	}
	if cfg.SemanticWeight < 0 || cfg.SemanticWeight > 1 {
		return nil, fmt.Errorf("semantic weight must be within [0, 1], got %.2f", cfg.SemanticWeight)
	}
	return &Checker{
		cfg:      cfg,
		session:  session,
		hasher:   simhash.NewHasher(cfg.HammingThreshold),
		embedder: embedder,
	}, nil
}

// Mode returns the checker's fixed analysis mode.
func (c *Checker) Mode() core.AnalysisMode {
	if c.embedder != nil {
		return core.ModeHybrid
	}
	return core.ModeCharacterOnly
}

// AddArticle builds an ArticleSummary for the article and commits it to batch
// memory. Shingles are always computed; the embedding is best-effort and its
// failure never blocks insertion. Returns the sanitized slug used as the key.
func (c *Checker) AddArticle(ctx context.Context, article core.Article) (string, error) {
	slug := c.uniqueSlug(article)
	summary := c.buildSummary(ctx, article, slug)
	if len(summary.Shingles) == 0 {
		logger.Warn("Committing article with no extractable text", "slug", slug)
	}
	c.session.articles[slug] = summary
	c.session.order = append(c.session.order, slug)
	return slug, nil
}

// CheckContentSimilarity scores the candidate article against every summary
// in the batch session without inserting it. The blended score tracks the
// maximum similarity across all prior articles.
func (c *Checker) CheckContentSimilarity(ctx context.Context, article core.Article) core.SimilarityResult {
	candidate := c.buildSummary(ctx, article, article.Slug)

	result := core.SimilarityResult{AnalysisMode: core.ModeCharacterOnly}
	if c.embedder != nil {
		result.AnalysisMode = core.ModeHybrid
		if candidate.Embedding == nil {
			// Transient failure for this candidate only; the checker stays
			// in hybrid mode for future calls.
			result.AnalysisMode = core.ModeCharacterOnly
			result.Issues = append(result.Issues, "embedding unavailable for candidate; shingle-only comparison")
		}
	}

	if candidate.Fingerprint == 0 && candidate.Embedding == nil {
		result.AnalysisMode = core.ModeNone
		result.Issues = append(result.Issues, "no extractable text in candidate; comparison inconclusive")
		return result
	}

	if c.session.Len() == 0 {
		return result
	}

	var (
		bestScore    float64
		bestSlug     string
		bestShingle  *float64
		bestSemantic *float64
		maxSemantic  *float64
	)

	for _, slug := range c.session.order {
		prior, ok := c.session.articles[slug]
		if !ok {
			continue // removed
		}

		var shingleScore *float64
		if candidate.Fingerprint != 0 && prior.Fingerprint != 0 {
			s := simhash.SimilarityPercent(candidate.Fingerprint, prior.Fingerprint)
			shingleScore = &s
			if c.hasher.IsSimilar(candidate.Fingerprint, prior.Fingerprint) {
				result.Issues = append(result.Issues,
					fmt.Sprintf("fingerprint within %d bits of %s (near-duplicate text)", c.hasher.Threshold(), slug))
			}
		}

		var semanticScore *float64
		if candidate.Embedding != nil && prior.Embedding != nil {
			s := embedding.CosineSimilarity(candidate.Embedding, prior.Embedding)
			semanticScore = &s
			if maxSemantic == nil || s > *maxSemantic {
				maxSemantic = &s
			}
		}

		blended, ok := c.blend(shingleScore, semanticScore)
		if !ok {
			continue // no usable signal for this pair
		}
		if bestSlug == "" || blended > bestScore {
			bestScore = blended
			bestSlug = slug
			bestShingle = shingleScore
			bestSemantic = semanticScore
		}
	}

	if bestSlug == "" {
		result.Issues = append(result.Issues, "no comparable prior articles; comparison inconclusive")
		return result
	}

	result.SimilarityScore = bestScore
	result.SimilarArticle = bestSlug
	result.ShingleScore = bestShingle
	result.IsTooSimilar = bestScore > c.cfg.Threshold
	result.RegenerationNeeded = result.IsTooSimilar

	if result.AnalysisMode == core.ModeHybrid && bestSemantic == nil {
		// The best-matching prior article carries no embedding, so this
		// comparison had no semantic signal despite the candidate having one.
		result.AnalysisMode = core.ModeCharacterOnly
		result.Issues = append(result.Issues, "most similar prior article has no embedding; shingle-only comparison")
	}
	if result.AnalysisMode == core.ModeHybrid && bestShingle == nil {
		// Mirror case: one side of the best-matching pair has a zero
		// fingerprint, so only the embedding signal was compared.
		result.AnalysisMode = core.ModeSemanticOnly
		result.Issues = append(result.Issues, "no shingle signal for most similar pair; semantic-only comparison")
	}

	switch result.AnalysisMode {
	case core.ModeHybrid, core.ModeSemanticOnly:
		result.SemanticScore = bestSemantic
		if maxSemantic != nil && *maxSemantic >= c.cfg.SemanticThreshold {
			// A very high semantic match alone is grounds for regeneration,
			// even when character-level text differs.
			result.RegenerationNeeded = true
			result.Issues = append(result.Issues,
				fmt.Sprintf("semantic similarity %.3f meets regeneration cutoff %.3f", *maxSemantic, c.cfg.SemanticThreshold))
		}
	default:
		// Invariant: character_only results never carry a semantic score.
		result.SemanticScore = nil
	}

	if result.IsTooSimilar {
		result.Issues = append(result.Issues,
			fmt.Sprintf("blended similarity %.1f%% exceeds threshold %.1f%% (most similar: %s)", bestScore, c.cfg.Threshold, bestSlug))
	}
	return result
}

// RemoveArticle deletes a committed summary from batch memory.
func (c *Checker) RemoveArticle(slug string) bool {
	if _, ok := c.session.articles[slug]; !ok {
		return false
	}
	delete(c.session.articles, slug)
	for i, s := range c.session.order {
		if s == slug {
			c.session.order = append(c.session.order[:i], c.session.order[i+1:]...)
			break
		}
	}
	return true
}

// ClearBatch resets the batch session to start an independent run.
func (c *Checker) ClearBatch() {
	c.session.articles = make(map[string]core.ArticleSummary)
	c.session.order = nil
}

// BatchStats reports the session size and the embedder's counters.
func (c *Checker) BatchStats() core.BatchStats {
	stats := core.BatchStats{
		ArticlesCount: c.session.Len(),
		AnalysisMode:  string(c.Mode()),
	}
	if c.embedder != nil {
		es := c.embedder.Stats()
		stats.EmbeddingRequests = es.RequestsMade
		stats.EmbeddingHits = es.CacheHits
		stats.EmbeddingHitRate = es.CacheHitRate
		stats.EmbeddingErrors = es.APIErrors
	}
	return stats
}

// blend combines the available signals into one 0-100 score. With both
// signals present the semantic side is weighted more heavily; with one
// signal, that signal alone is the score.
func (c *Checker) blend(shingle *float64, semantic *float64) (float64, bool) {
	switch {
	case shingle != nil && semantic != nil:
		return c.cfg.SemanticWeight*(*semantic*100.0) + (1-c.cfg.SemanticWeight)*(*shingle), true
	case semantic != nil:
		return *semantic * 100.0, true
	case shingle != nil:
		return *shingle, true
	default:
		return 0, false
	}
}

// buildSummary derives the comparison snapshot for an article: the weighted
// shingle stream (headline counted 3x), its fingerprint, and a best-effort
// embedding of the full article text.
func (c *Checker) buildSummary(ctx context.Context, article core.Article, slug string) core.ArticleSummary {
	shingleText := c.shingleText(article)
	shingles := simhash.Shingles(simhash.Tokenize(shingleText))

	summary := core.ArticleSummary{
		Slug:           slug,
		PrimaryKeyword: article.PrimaryKeyword,
		Shingles:       shingles,
		Fingerprint:    simhash.FingerprintShingles(shingles),
		EmbeddingText:  c.embeddingText(article),
		CreatedAt:      time.Now().UTC(),
	}

	if c.embedder != nil && strings.TrimSpace(summary.EmbeddingText) != "" {
		vec, err := c.embedder.EmbedText(ctx, summary.EmbeddingText)
		if err != nil {
			logger.Warn("Embedding failed; degrading to shingle-only for this article",
				"slug", slug, "error", err.Error())
		} else {
			summary.Embedding = vec
		}
	}
	return summary
}

// shingleText concatenates headline (weighted), intro, and section bodies.
func (c *Checker) shingleText(article core.Article) string {
	var b strings.Builder
	for i := 0; i < headlineWeight; i++ {
		b.WriteString(article.Headline)
		b.WriteString("\n")
	}
	b.WriteString(article.Intro)
	b.WriteString("\n")
	for i, section := range article.Sections {
		if i >= 9 {
			break
		}
		b.WriteString(section)
		b.WriteString("\n")
	}
	return b.String()
}

// embeddingText is the exact text sent to the embedding model: keyword and
// headline up front, then intro and sections.
func (c *Checker) embeddingText(article core.Article) string {
	parts := []string{article.PrimaryKeyword, article.Headline, article.Intro}
	for i, section := range article.Sections {
		if i >= 9 {
			break
		}
		parts = append(parts, section)
	}
	return strings.TrimSpace(simhash.StripMarkup(strings.Join(parts, "\n\n")))
}

var slugInvalid = regexp.MustCompile(`[^a-z0-9]+`)

// uniqueSlug sanitizes the article's slug (falling back to the headline) and
// de-duplicates it against the session with a short uuid suffix.
func (c *Checker) uniqueSlug(article core.Article) string {
	base := article.Slug
	if base == "" {
		base = article.Headline
	}
	slug := strings.Trim(slugInvalid.ReplaceAllString(strings.ToLower(base), "-"), "-")
	if slug == "" {
		slug = "article"
	}
	if _, exists := c.session.articles[slug]; exists {
		slug = slug + "-" + uuid.NewString()[:8]
	}
	return slug
}
