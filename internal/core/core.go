package core

import "time"

// AnalysisMode describes which similarity signals contributed to a check.
type AnalysisMode string

const (
	// ModeCharacterOnly means only the shingle fingerprint was compared.
	ModeCharacterOnly AnalysisMode = "character_only"
	// ModeHybrid means both shingle and semantic signals were compared.
	ModeHybrid AnalysisMode = "hybrid"
	// ModeSemanticOnly means only the embedding signal was usable: the most
	// similar pair involved a zero fingerprint (numeric or non-Latin text).
	ModeSemanticOnly AnalysisMode = "semantic_only"
	// ModeError means the check could not produce a usable signal.
	ModeError AnalysisMode = "error"
	// ModeNone means the candidate had no extractable text to compare.
	ModeNone AnalysisMode = "none"
)

// Article is a generated blog article as returned by the generation workflow.
type Article struct {
	JobID          string     `json:"job_id"`          // Identifier of the generation job that produced it
	Slug           string     `json:"slug"`            // URL-safe identifier, unique within a batch session
	Headline       string     `json:"headline"`        // Article headline
	Intro          string     `json:"intro"`           // Introduction paragraph(s)
	Sections       []string   `json:"sections"`        // Numbered section bodies, at most nine
	PrimaryKeyword string     `json:"primary_keyword"` // SEO keyword the article targets
	FAQ            []FAQEntry `json:"faq,omitempty"`   // Optional FAQ block
	ModelUsed      string     `json:"model_used"`      // LLM model that generated the article
	DateGenerated  time.Time  `json:"date_generated"`  // Timestamp of generation
}

// FAQEntry is one question/answer pair in an article's FAQ block.
type FAQEntry struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// ArticleSummary is an immutable snapshot of a generated article, retained in
// batch memory only for similarity comparison against later articles.
type ArticleSummary struct {
	Slug           string    `json:"slug"`              // Unique identifier within the batch session
	PrimaryKeyword string    `json:"primary_keyword"`   // Keyword the article targeted
	Shingles       []string  `json:"content_shingles"`  // Weighted token stream (headline repeated 3x)
	Fingerprint    uint64    `json:"fingerprint"`       // 64-bit SimHash over the shingles
	Embedding      []float64 `json:"content_embedding"` // Semantic vector; nil when unavailable
	EmbeddingText  string    `json:"embedding_text"`    // Exact text that was embedded (cache key / debugging)
	CreatedAt      time.Time `json:"created_at"`        // When the summary was committed to batch memory
}

// SimilarityResult is the outcome of comparing one candidate article against
// the batch session. SemanticScore and ShingleScore are nil when the signal
// was not computed; nil is never a stand-in for "computed as zero".
type SimilarityResult struct {
	SimilarityScore    float64      `json:"similarity_score"`          // Blended 0-100 score used for the decision
	IsTooSimilar       bool         `json:"is_too_similar"`            // SimilarityScore strictly above the threshold
	ShingleScore       *float64     `json:"shingle_score"`             // 0-100, from the most similar pair
	SemanticScore      *float64     `json:"semantic_score"`            // 0.0-1.0, from the most similar pair
	AnalysisMode       AnalysisMode `json:"analysis_mode"`             // Which signals were available
	SimilarArticle     string       `json:"similar_article,omitempty"` // Slug of the most similar prior article
	RegenerationNeeded bool         `json:"regeneration_needed"`       // Too similar, or semantic match above its own cutoff
	Issues             []string     `json:"issues,omitempty"`          // Advisory notes; never used for control flow
}

// RegenerationAttempt records one generation try within a regeneration cycle.
// It is immutable once recorded.
type RegenerationAttempt struct {
	AttemptNumber   int     `json:"attempt_number"`     // 1-based
	Strategy        string  `json:"strategy,omitempty"` // Variation strategy; empty for the original attempt
	SimilarityScore float64 `json:"similarity_score"`   // Blended score of this attempt's output
}

// RegenerationState is the state of one article's regeneration cycle.
type RegenerationState string

const (
	StatePending    RegenerationState = "PENDING"
	StateGenerating RegenerationState = "GENERATING"
	StateChecking   RegenerationState = "CHECKING"
	StateRegenerate RegenerationState = "REGENERATE"
	StateApproved   RegenerationState = "APPROVED"
	StateRejected   RegenerationState = "REJECTED"
	// StateFailed marks a job ended by a generation or commit error, as
	// opposed to a similarity rejection.
	StateFailed RegenerationState = "FAILED"
)

// RegenerationResult is the final report for one article job: the terminal
// state, the committed article (if approved), and the full attempt history.
type RegenerationResult struct {
	JobID     string                `json:"job_id"`
	Slug      string                `json:"slug,omitempty"` // Slug committed to batch memory when approved
	State     RegenerationState     `json:"state"`          // APPROVED, REJECTED, or FAILED
	Attempts  []RegenerationAttempt `json:"attempts"`       // All attempts, in order
	Final     SimilarityResult      `json:"final"`          // Result of the last similarity check
	Rejection *Rejection            `json:"rejection,omitempty"`
	Article   *Article              `json:"article,omitempty"` // The approved article
}

// Rejection is the structured report for an article discarded after the
// attempt budget was exhausted or regeneration was disabled.
type Rejection struct {
	Slug            string  `json:"slug"`
	JobID           string  `json:"job_id"`
	Reason          string  `json:"reason"`
	SimilarityScore float64 `json:"similarity_score"`
	SimilarTo       string  `json:"similar_to,omitempty"` // Slug of the prior article it matched
}

// BatchSummary aggregates the bookkeeping for one batch run.
type BatchSummary struct {
	ApprovedCount         int        `json:"approved_count"`
	RejectedCount         int        `json:"rejected_count"`
	FailedCount           int        `json:"failed_count"` // Generation/commit errors, not similarity rejections
	RegenerationCount     int        `json:"regeneration_count"`      // Total regeneration events triggered
	UniqueJobsRegenerated int        `json:"unique_jobs_regenerated"` // Distinct jobs that regenerated at least once
	BatchStats            BatchStats `json:"batch_stats"`
}

// BatchStats exposes the similarity checker's batch-session counters.
type BatchStats struct {
	ArticlesCount     int     `json:"articles_count"`
	AnalysisMode      string  `json:"analysis_mode"`
	EmbeddingRequests int64   `json:"embedding_requests"`
	EmbeddingHits     int64   `json:"embedding_cache_hits"`
	EmbeddingHitRate  float64 `json:"embedding_cache_hit_rate"`
	EmbeddingErrors   int64   `json:"embedding_api_errors"`
}

// BatchReport is the persisted record of one completed batch run.
type BatchReport struct {
	ID        string               `json:"id"`
	CreatedAt time.Time            `json:"created_at"`
	Summary   BatchSummary         `json:"summary"`
	Results   []RegenerationResult `json:"results"`
}
