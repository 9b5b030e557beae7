// Package regen drives the generate-check-regenerate loop for a single
// article job: it asks a Generator for a draft, passes it through the batch
// similarity Gate, and retries with rotated prompt-variation strategies
// until the draft is unique enough or the attempt budget runs out.
package regen

import (
	"context"
	"fmt"
	"time"

	"blogsmith/internal/config"
	"blogsmith/internal/core"
	"blogsmith/internal/logger"
)

// Request carries everything a Generator needs to produce one article draft.
type Request struct {
	JobID          string
	Topic          string
	PrimaryKeyword string
	Instructions   string

	// RegenAttempt is 1 for the original generation, 2+ for regenerations.
	RegenAttempt int
	// RegenInstruction is the strategy prompt block, empty on attempt 1.
	RegenInstruction string
}

// Generator produces an article draft for a request. Implementations call a
// language model; tests use canned drafts.
type Generator interface {
	Generate(ctx context.Context, req Request) (core.Article, error)
}

// Gate is the batch similarity decision surface. Check scores a draft against
// the batch without committing it; Commit adds an approved draft to batch
// memory and returns its final slug.
type Gate interface {
	Check(ctx context.Context, article core.Article) core.SimilarityResult
	Commit(ctx context.Context, article core.Article) (string, error)
}

// Engine runs the regeneration state machine. It is stateless between Run
// calls; all per-job state lives in the RegenerationResult it returns.
type Engine struct {
	cfg       config.Regeneration
	generator Generator
	gate      Gate
}

// NewEngine validates the configuration and builds an engine.
func NewEngine(cfg config.Regeneration, generator Generator, gate Gate) (*Engine, error) {
	if generator == nil {
		return nil, fmt.Errorf("generator cannot be nil")
	}
	if gate == nil {
		return nil, fmt.Errorf("similarity gate cannot be nil")
	}
	if cfg.MaxAttempts < 1 {
		return nil, fmt.Errorf("max attempts must be at least 1, got %d", cfg.MaxAttempts)
	}
	return &Engine{cfg: cfg, generator: generator, gate: gate}, nil
}

// Run executes the full lifecycle for one article job. Generation errors are
// returned immediately and are never retried; similarity rejections consume
// the attempt budget. The returned result always carries the full attempt
// history, including on error.
func (e *Engine) Run(ctx context.Context, req Request) (core.RegenerationResult, error) {
	result := core.RegenerationResult{
		JobID: req.JobID,
		State: core.StatePending,
	}

	maxAttempts := e.cfg.MaxAttempts
	if !e.cfg.Enabled {
		maxAttempts = 1
	}
	timeout := e.cfg.AttemptTimeoutDuration()

	current := req
	var lastCheck core.SimilarityResult

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result.State = core.StateGenerating
		logger.Info("Generating article draft",
			"job_id", req.JobID,
			"attempt", attempt,
			"strategy", string(StrategyFor(attempt)))

		article, err := e.generateWithTimeout(ctx, current, timeout)
		if err != nil {
			// A generation error is not a similarity rejection; it gets its
			// own terminal state and no rejection record.
			result.State = core.StateFailed
			return result, fmt.Errorf("generation failed on attempt %d: %w", attempt, err)
		}

		result.State = core.StateChecking
		check := e.gate.Check(ctx, article)
		lastCheck = check
		result.Attempts = append(result.Attempts, core.RegenerationAttempt{
			AttemptNumber:   attempt,
			Strategy:        string(StrategyFor(attempt)),
			SimilarityScore: check.SimilarityScore,
		})

		if !check.RegenerationNeeded {
			return e.approve(ctx, &result, article, check)
		}

		if attempt < maxAttempts {
			result.State = core.StateRegenerate
			logger.Info("Draft too similar, regenerating",
				"job_id", req.JobID,
				"attempt", attempt,
				"score", check.SimilarityScore,
				"similar_to", check.SimilarArticle)
			current = VaryRequest(req, attempt+1, check)
			continue
		}

		// Budget exhausted. A draft that is flagged only by the semantic
		// cutoff, but sits under the blended threshold, is still publishable.
		if !check.IsTooSimilar {
			check.Issues = append(check.Issues,
				fmt.Sprintf("accepted after %d attempts despite semantic flag", maxAttempts))
			return e.approve(ctx, &result, article, check)
		}

		result.State = core.StateRejected
		result.Final = check
		result.Rejection = &core.Rejection{
			JobID:           req.JobID,
			Reason:          fmt.Sprintf("still too similar after %d attempts", maxAttempts),
			SimilarityScore: check.SimilarityScore,
			SimilarTo:       check.SimilarArticle,
		}
		logger.Warn("Article rejected after exhausting regeneration budget",
			"job_id", req.JobID,
			"attempts", maxAttempts,
			"score", check.SimilarityScore,
			"similar_to", check.SimilarArticle)
		return result, nil
	}

	// Unreachable with maxAttempts >= 1; kept so the compiler sees a return.
	result.State = core.StateRejected
	result.Final = lastCheck
	return result, fmt.Errorf("regeneration loop ended without a decision")
}

// approve commits the draft to batch memory and finalizes the result.
func (e *Engine) approve(ctx context.Context, result *core.RegenerationResult, article core.Article, check core.SimilarityResult) (core.RegenerationResult, error) {
	slug, err := e.gate.Commit(ctx, article)
	if err != nil {
		result.State = core.StateFailed
		return *result, fmt.Errorf("failed to commit approved article: %w", err)
	}
	article.Slug = slug
	result.State = core.StateApproved
	result.Slug = slug
	result.Final = check
	result.Article = &article
	logger.Info("Article approved",
		"job_id", result.JobID,
		"slug", slug,
		"attempts", len(result.Attempts),
		"score", check.SimilarityScore)
	return *result, nil
}

// generateWithTimeout bounds a single generation call so one hung model call
// cannot stall the whole batch.
func (e *Engine) generateWithTimeout(ctx context.Context, req Request, timeout time.Duration) (core.Article, error) {
	genCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return e.generator.Generate(genCtx, req)
}
