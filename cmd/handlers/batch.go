package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"blogsmith/internal/batch"
	"blogsmith/internal/config"
	"blogsmith/internal/core"
	"blogsmith/internal/embedding"
	"blogsmith/internal/generate"
	"blogsmith/internal/logger"
	"blogsmith/internal/regen"
	"blogsmith/internal/similarity"
	"blogsmith/internal/store"

	"github.com/spf13/cobra"
)

// jobFile is the on-disk format for a batch of article jobs.
type jobFile struct {
	Jobs []jobEntry `json:"jobs"`
}

type jobEntry struct {
	JobID          string `json:"job_id"`
	Topic          string `json:"topic"`
	PrimaryKeyword string `json:"primary_keyword"`
	Instructions   string `json:"instructions,omitempty"`
}

// NewBatchCmd creates the batch generation command
func NewBatchCmd() *cobra.Command {
	batchCmd := &cobra.Command{
		Use:   "batch [jobs-file]",
		Short: "Generate a batch of articles with similarity gating",
		Long: `Read article jobs from a JSON file, generate each article, check it
against every article already approved in this batch, regenerate
too-similar drafts with varied prompts, and save a batch report.`,
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			characterOnly, _ := cmd.Flags().GetBool("character-only")
			if err := runBatch(cmd.Context(), args[0], characterOnly); err != nil {
				logger.Error("Batch run failed", err)
				os.Exit(1)
			}
		},
	}

	batchCmd.Flags().Bool("character-only", false, "Skip embeddings and compare with shingle fingerprints only")
	return batchCmd
}

func runBatch(ctx context.Context, jobsPath string, characterOnly bool) error {
	cfg := config.Get()

	jobs, err := loadJobs(jobsPath)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		return fmt.Errorf("no jobs found in %s", jobsPath)
	}

	fmt.Printf("📝 Starting batch of %d article jobs\n", len(jobs))

	var embedder similarity.Embedder
	if !characterOnly {
		client, err := embedding.NewClient(ctx, cfg.Embedding)
		if err != nil {
			logger.Warn("Embedding unavailable, running character-only", "error", err.Error())
			fmt.Println("⚠️  Embeddings unavailable; comparing with shingle fingerprints only")
		} else {
			embedder = client
		}
	}

	checker, err := similarity.NewChecker(cfg.Similarity, similarity.NewBatchSession(), embedder)
	if err != nil {
		return fmt.Errorf("failed to create similarity checker: %w", err)
	}

	generator, err := generate.NewClient(ctx, cfg.Generation, cfg.Embedding.APIKey)
	if err != nil {
		return fmt.Errorf("failed to create generation client: %w", err)
	}

	manager, err := batch.NewManager(cfg.Regeneration, checker, generator)
	if err != nil {
		return fmt.Errorf("failed to create batch manager: %w", err)
	}

	for i, job := range jobs {
		fmt.Printf("\n[%d/%d] %s (%s)\n", i+1, len(jobs), job.Topic, job.JobID)

		result, err := manager.CheckArticleWithRegeneration(ctx, regen.Request{
			JobID:          job.JobID,
			Topic:          job.Topic,
			PrimaryKeyword: job.PrimaryKeyword,
			Instructions:   job.Instructions,
			RegenAttempt:   1,
		})
		if err != nil {
			fmt.Printf("❌ %s: %v\n", job.JobID, err)
			continue
		}
		printJobResult(result)
	}

	report := manager.Report()
	printSummary(report.Summary)

	reportStore, err := store.NewStore(cfg.App.DataDir)
	if err != nil {
		return fmt.Errorf("failed to open report store: %w", err)
	}
	defer func() {
		if err := reportStore.Close(); err != nil {
			logger.Error("Failed to close report store", err)
		}
	}()

	if err := reportStore.SaveBatchReport(report, manager.Rejections()); err != nil {
		return fmt.Errorf("failed to save batch report: %w", err)
	}
	fmt.Printf("\n💾 Report saved: %s\n", report.ID)
	return nil
}

func loadJobs(path string) ([]jobEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read jobs file: %w", err)
	}

	var file jobFile
	if err := json.Unmarshal(data, &file); err != nil {
		// Also accept a bare array of jobs.
		var jobs []jobEntry
		if err2 := json.Unmarshal(data, &jobs); err2 != nil {
			return nil, fmt.Errorf("failed to parse jobs file: %w", err)
		}
		file.Jobs = jobs
	}

	for i, job := range file.Jobs {
		if job.JobID == "" {
			return nil, fmt.Errorf("job %d is missing job_id", i+1)
		}
		if job.Topic == "" {
			return nil, fmt.Errorf("job %s is missing topic", job.JobID)
		}
	}
	return file.Jobs, nil
}

func printJobResult(result core.RegenerationResult) {
	switch result.State {
	case core.StateApproved:
		fmt.Printf("✅ Approved as %q after %d attempt(s), score %.1f%%\n",
			result.Slug, len(result.Attempts), result.Final.SimilarityScore)
	case core.StateRejected:
		reason := "too similar"
		if result.Rejection != nil {
			reason = result.Rejection.Reason
		}
		fmt.Printf("❌ Rejected after %d attempt(s): %s\n", len(result.Attempts), reason)
	default:
		fmt.Printf("⚠️  Job ended in state %s\n", result.State)
	}
	for _, issue := range result.Final.Issues {
		fmt.Printf("   • %s\n", issue)
	}
}

func printSummary(summary core.BatchSummary) {
	fmt.Println("\n📊 Batch Summary")
	fmt.Println("================")
	fmt.Printf("✅ Approved: %d\n", summary.ApprovedCount)
	fmt.Printf("❌ Rejected: %d\n", summary.RejectedCount)
	if summary.FailedCount > 0 {
		fmt.Printf("⚠️  Failed (generation errors): %d\n", summary.FailedCount)
	}
	fmt.Printf("🔄 Regeneration attempts: %d (across %d jobs)\n",
		summary.RegenerationCount, summary.UniqueJobsRegenerated)
	fmt.Printf("🔍 Analysis mode: %s\n", summary.BatchStats.AnalysisMode)
	if summary.BatchStats.EmbeddingRequests > 0 || summary.BatchStats.EmbeddingHits > 0 {
		fmt.Printf("🧠 Embedding requests: %d (cache hit rate %.0f%%, errors %d)\n",
			summary.BatchStats.EmbeddingRequests,
			summary.BatchStats.EmbeddingHitRate*100,
			summary.BatchStats.EmbeddingErrors)
	}
}
