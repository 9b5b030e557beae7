package regen

import (
	"context"
	"fmt"
	"testing"

	"blogsmith/internal/config"
	"blogsmith/internal/core"
)

func regenConfig() config.Regeneration {
	return config.Regeneration{
		MaxAttempts:    3,
		Enabled:        true,
		AttemptTimeout: "5s",
	}
}

// stubGenerator records the requests it sees and returns canned drafts.
type stubGenerator struct {
	requests []Request
	err      error
}

func (g *stubGenerator) Generate(_ context.Context, req Request) (core.Article, error) {
	g.requests = append(g.requests, req)
	if g.err != nil {
		return core.Article{}, g.err
	}
	return core.Article{
		JobID:    req.JobID,
		Headline: fmt.Sprintf("Draft %d for %s", len(g.requests), req.Topic),
		Intro:    "An introduction.",
		Sections: []string{"A section body."},
	}, nil
}

// stubGate returns a scripted sequence of similarity results.
type stubGate struct {
	results   []core.SimilarityResult
	checks    int
	commits   int
	commitErr error
}

func (g *stubGate) Check(_ context.Context, _ core.Article) core.SimilarityResult {
	idx := g.checks
	if idx >= len(g.results) {
		idx = len(g.results) - 1
	}
	g.checks++
	return g.results[idx]
}

func (g *stubGate) Commit(_ context.Context, article core.Article) (string, error) {
	g.commits++
	if g.commitErr != nil {
		return "", g.commitErr
	}
	return "committed-slug", nil
}

func unique() core.SimilarityResult {
	return core.SimilarityResult{SimilarityScore: 20.0, AnalysisMode: core.ModeCharacterOnly}
}

func tooSimilar(score float64) core.SimilarityResult {
	return core.SimilarityResult{
		SimilarityScore:    score,
		IsTooSimilar:       true,
		RegenerationNeeded: true,
		SimilarArticle:     "prior-article",
		AnalysisMode:       core.ModeCharacterOnly,
	}
}

func TestRunApprovesUniqueFirstDraft(t *testing.T) {
	generator := &stubGenerator{}
	gate := &stubGate{results: []core.SimilarityResult{unique()}}
	engine, err := NewEngine(regenConfig(), generator, gate)
	if err != nil {
		t.Fatal(err)
	}

	result, err := engine.Run(context.Background(), Request{JobID: "job-1", Topic: "tomatoes", RegenAttempt: 1})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.State != core.StateApproved {
		t.Errorf("state = %s, want APPROVED", result.State)
	}
	if result.Slug != "committed-slug" {
		t.Errorf("slug = %q, want committed-slug", result.Slug)
	}
	if len(result.Attempts) != 1 {
		t.Errorf("attempts = %d, want 1", len(result.Attempts))
	}
	if result.Attempts[0].Strategy != "" {
		t.Errorf("first attempt carried strategy %q, want none", result.Attempts[0].Strategy)
	}
	if gate.commits != 1 {
		t.Errorf("commits = %d, want 1", gate.commits)
	}
	if result.Article == nil {
		t.Fatal("approved result must carry the article")
	}
}

func TestRunRegeneratesWithRotatedStrategies(t *testing.T) {
	generator := &stubGenerator{}
	gate := &stubGate{results: []core.SimilarityResult{
		tooSimilar(85.0),
		tooSimilar(78.0),
		unique(),
	}}
	engine, err := NewEngine(regenConfig(), generator, gate)
	if err != nil {
		t.Fatal(err)
	}

	result, err := engine.Run(context.Background(), Request{JobID: "job-1", Topic: "tomatoes", RegenAttempt: 1})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.State != core.StateApproved {
		t.Fatalf("state = %s, want APPROVED", result.State)
	}
	if len(result.Attempts) != 3 {
		t.Fatalf("attempts = %d, want 3", len(result.Attempts))
	}
	if result.Attempts[1].Strategy != string(StrategyAngle) {
		t.Errorf("attempt 2 strategy = %q, want angle", result.Attempts[1].Strategy)
	}
	if result.Attempts[2].Strategy != string(StrategyStyle) {
		t.Errorf("attempt 3 strategy = %q, want style", result.Attempts[2].Strategy)
	}

	if len(generator.requests) != 3 {
		t.Fatalf("generator saw %d requests, want 3", len(generator.requests))
	}
	if generator.requests[0].RegenInstruction != "" {
		t.Error("first generation must not carry a regeneration instruction")
	}
	if generator.requests[1].RegenInstruction == "" || generator.requests[2].RegenInstruction == "" {
		t.Error("regenerations must carry strategy instructions")
	}
	if generator.requests[1].RegenInstruction == generator.requests[2].RegenInstruction {
		t.Error("consecutive regenerations must use different strategy instructions")
	}
}

func TestRunRejectsAfterExhaustedBudget(t *testing.T) {
	generator := &stubGenerator{}
	gate := &stubGate{results: []core.SimilarityResult{tooSimilar(90.0)}}
	engine, err := NewEngine(regenConfig(), generator, gate)
	if err != nil {
		t.Fatal(err)
	}

	result, err := engine.Run(context.Background(), Request{JobID: "job-1", Topic: "tomatoes", RegenAttempt: 1})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.State != core.StateRejected {
		t.Errorf("state = %s, want REJECTED", result.State)
	}
	if len(result.Attempts) != 3 {
		t.Errorf("attempts = %d, want exactly max_attempts (3)", len(result.Attempts))
	}
	if gate.commits != 0 {
		t.Errorf("rejected article was committed %d times", gate.commits)
	}
	if result.Rejection == nil {
		t.Fatal("rejected result must carry a rejection record")
	}
	if result.Rejection.SimilarTo != "prior-article" {
		t.Errorf("rejection SimilarTo = %q, want prior-article", result.Rejection.SimilarTo)
	}
	if result.Article != nil {
		t.Error("rejected result must not carry an article")
	}
}

func TestRunSurfacesGenerationErrorImmediately(t *testing.T) {
	generator := &stubGenerator{err: fmt.Errorf("model unavailable")}
	gate := &stubGate{results: []core.SimilarityResult{unique()}}
	engine, err := NewEngine(regenConfig(), generator, gate)
	if err != nil {
		t.Fatal(err)
	}

	result, err := engine.Run(context.Background(), Request{JobID: "job-1", Topic: "tomatoes", RegenAttempt: 1})
	if err == nil {
		t.Fatal("generation error must surface to the caller")
	}
	if len(generator.requests) != 1 {
		t.Errorf("generation errors must never be retried, saw %d calls", len(generator.requests))
	}
	if gate.checks != 0 {
		t.Error("no similarity check should run after a generation failure")
	}
	if result.State != core.StateFailed {
		t.Errorf("state = %s, want FAILED", result.State)
	}
	if result.Rejection != nil {
		t.Error("generation failures must not produce rejection records")
	}
}

func TestRunSemanticFlagOnlyApprovedWhenBudgetExhausted(t *testing.T) {
	semantic := 0.90
	flaggedButUnderThreshold := core.SimilarityResult{
		SimilarityScore:    60.0,
		IsTooSimilar:       false,
		RegenerationNeeded: true, // semantic cutoff only
		SemanticScore:      &semantic,
		SimilarArticle:     "prior-article",
		AnalysisMode:       core.ModeHybrid,
	}
	generator := &stubGenerator{}
	gate := &stubGate{results: []core.SimilarityResult{flaggedButUnderThreshold}}
	engine, err := NewEngine(regenConfig(), generator, gate)
	if err != nil {
		t.Fatal(err)
	}

	result, err := engine.Run(context.Background(), Request{JobID: "job-1", Topic: "tomatoes", RegenAttempt: 1})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(result.Attempts) != 3 {
		t.Errorf("semantic flag should consume the budget, attempts = %d", len(result.Attempts))
	}
	if result.State != core.StateApproved {
		t.Errorf("under-threshold article must be approved once the budget is spent, state = %s", result.State)
	}
	if gate.commits != 1 {
		t.Errorf("commits = %d, want 1", gate.commits)
	}
}

func TestRunDisabledRegenerationSingleAttempt(t *testing.T) {
	cfg := regenConfig()
	cfg.Enabled = false
	generator := &stubGenerator{}
	gate := &stubGate{results: []core.SimilarityResult{tooSimilar(90.0)}}
	engine, err := NewEngine(cfg, generator, gate)
	if err != nil {
		t.Fatal(err)
	}

	result, err := engine.Run(context.Background(), Request{JobID: "job-1", Topic: "tomatoes", RegenAttempt: 1})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(result.Attempts) != 1 {
		t.Errorf("disabled regeneration ran %d attempts, want 1", len(result.Attempts))
	}
	if result.State != core.StateRejected {
		t.Errorf("state = %s, want REJECTED", result.State)
	}
}

func TestNewEngineValidation(t *testing.T) {
	gate := &stubGate{results: []core.SimilarityResult{unique()}}
	if _, err := NewEngine(regenConfig(), nil, gate); err == nil {
		t.Error("nil generator should be rejected")
	}
	if _, err := NewEngine(regenConfig(), &stubGenerator{}, nil); err == nil {
		t.Error("nil gate should be rejected")
	}
	bad := regenConfig()
	bad.MaxAttempts = 0
	if _, err := NewEngine(bad, &stubGenerator{}, gate); err == nil {
		t.Error("zero max attempts should be rejected")
	}
}
