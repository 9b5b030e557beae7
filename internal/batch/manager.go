// Package batch orchestrates similarity checking across a whole generation
// run: it feeds every article job through the regeneration engine, serializes
// access to the shared batch session, and accumulates the run's bookkeeping
// into a final report.
package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"blogsmith/internal/config"
	"blogsmith/internal/core"
	"blogsmith/internal/logger"
	"blogsmith/internal/regen"
	"blogsmith/internal/similarity"

	"github.com/google/uuid"
)

// Manager runs article jobs through the generate-check-regenerate lifecycle
// against one shared batch session. All processing is serialized: the batch
// memory is order-dependent, so jobs are checked one at a time.
type Manager struct {
	checker *similarity.Checker
	engine  *regen.Engine

	mu         sync.Mutex
	results    []core.RegenerationResult
	rejections []core.Rejection
	approved   int
	rejected   int
	failed     int
	regenCount int
	regenJobs  map[string]struct{}
}

// NewManager wires the checker and generator into a regeneration engine with
// the manager itself as the similarity gate.
func NewManager(cfg config.Regeneration, checker *similarity.Checker, generator regen.Generator) (*Manager, error) {
	if checker == nil {
		return nil, fmt.Errorf("similarity checker cannot be nil")
	}
	m := &Manager{
		checker:   checker,
		regenJobs: make(map[string]struct{}),
	}
	engine, err := regen.NewEngine(cfg, generator, m)
	if err != nil {
		return nil, err
	}
	m.engine = engine
	return m, nil
}

// Check scores a draft against the batch session without committing it.
// Implements regen.Gate.
func (m *Manager) Check(ctx context.Context, article core.Article) core.SimilarityResult {
	return m.checker.CheckContentSimilarity(ctx, article)
}

// Commit adds an approved draft to batch memory. Implements regen.Gate.
func (m *Manager) Commit(ctx context.Context, article core.Article) (string, error) {
	return m.checker.AddArticle(ctx, article)
}

// CheckArticleWithRegeneration runs one article job to completion and records its outcome.
// Jobs are processed strictly one at a time so each check sees every
// previously approved article.
func (m *Manager) CheckArticleWithRegeneration(ctx context.Context, req regen.Request) (core.RegenerationResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result, err := m.engine.Run(ctx, req)
	m.record(result)
	return result, err
}

// record folds one job outcome into the batch counters. Callers hold m.mu.
func (m *Manager) record(result core.RegenerationResult) {
	m.results = append(m.results, result)

	if regens := len(result.Attempts) - 1; regens > 0 {
		m.regenCount += regens
		m.regenJobs[result.JobID] = struct{}{}
	}

	switch result.State {
	case core.StateApproved:
		m.approved++
	case core.StateRejected:
		m.rejected++
		if result.Rejection != nil {
			rejection := *result.Rejection
			rejection.Slug = result.Slug
			m.rejections = append(m.rejections, rejection)
		}
	case core.StateFailed:
		// Generation/commit errors are tallied apart from similarity
		// rejections and never produce rejection records.
		m.failed++
	}
}

// BatchSummary returns the run counters so far.
func (m *Manager) BatchSummary() core.BatchSummary {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.summaryLocked()
}

func (m *Manager) summaryLocked() core.BatchSummary {
	return core.BatchSummary{
		ApprovedCount:         m.approved,
		RejectedCount:         m.rejected,
		FailedCount:           m.failed,
		RegenerationCount:     m.regenCount,
		UniqueJobsRegenerated: len(m.regenJobs),
		BatchStats:            m.checker.BatchStats(),
	}
}

// Rejections returns the rejection records accumulated this run.
func (m *Manager) Rejections() []core.Rejection {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]core.Rejection, len(m.rejections))
	copy(out, m.rejections)
	return out
}

// Report snapshots the whole run into a persistable batch report.
func (m *Manager) Report() core.BatchReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	results := make([]core.RegenerationResult, len(m.results))
	copy(results, m.results)

	return core.BatchReport{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Summary:   m.summaryLocked(),
		Results:   results,
	}
}

// ClearBatch resets the batch session and all counters for an independent run.
func (m *Manager) ClearBatch() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.checker.ClearBatch()
	m.results = nil
	m.rejections = nil
	m.approved = 0
	m.rejected = 0
	m.failed = 0
	m.regenCount = 0
	m.regenJobs = make(map[string]struct{})
	logger.Info("Batch session cleared")
}
