package handlers

import (
	"context"
	"fmt"
	"os"

	"blogsmith/internal/config"
	"blogsmith/internal/embedding"
	"blogsmith/internal/logger"
	"blogsmith/internal/simhash"

	"github.com/spf13/cobra"
)

// NewCheckCmd creates the ad-hoc text comparison command
func NewCheckCmd() *cobra.Command {
	checkCmd := &cobra.Command{
		Use:   "check [file-a] [file-b]",
		Short: "Compare two text files for similarity",
		Long: `Compare two text or HTML files with the same signals the batch gate
uses: a character-shingle fingerprint comparison, plus a semantic
embedding comparison when a Gemini API key is available.`,
		Args: cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			characterOnly, _ := cmd.Flags().GetBool("character-only")
			if err := runCheck(cmd.Context(), args[0], args[1], characterOnly); err != nil {
				logger.Error("Check failed", err)
				os.Exit(1)
			}
		},
	}

	checkCmd.Flags().Bool("character-only", false, "Skip the semantic embedding comparison")
	return checkCmd
}

func runCheck(ctx context.Context, pathA, pathB string, characterOnly bool) error {
	cfg := config.Get()

	textA, err := os.ReadFile(pathA)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", pathA, err)
	}
	textB, err := os.ReadFile(pathB)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", pathB, err)
	}

	fmt.Printf("🔍 Comparing %s and %s\n\n", pathA, pathB)

	fpA := simhash.ComputeSimHash(string(textA))
	fpB := simhash.ComputeSimHash(string(textB))
	if fpA == 0 || fpB == 0 {
		fmt.Println("⚠️  One of the files has no extractable text; shingle comparison is inconclusive")
	} else {
		hasher := simhash.NewHasher(cfg.Similarity.HammingThreshold)
		distance := simhash.HammingDistance(fpA, fpB)
		fmt.Printf("🔢 Fingerprints: %016x vs %016x\n", fpA, fpB)
		fmt.Printf("📏 Hamming distance: %d bits (similar within %d)\n", distance, hasher.Threshold())
		fmt.Printf("📐 Shingle similarity: %.1f%%\n", simhash.SimilarityPercent(fpA, fpB))
	}

	if characterOnly {
		return nil
	}

	client, err := embedding.NewClient(ctx, cfg.Embedding)
	if err != nil {
		fmt.Printf("\n⚠️  Semantic comparison skipped: %v\n", err)
		return nil
	}

	score, ok := client.CompareTexts(ctx,
		simhash.StripMarkup(string(textA)),
		simhash.StripMarkup(string(textB)))
	if !ok {
		fmt.Println("\n⚠️  Semantic comparison unavailable (embedding request failed)")
		return nil
	}
	fmt.Printf("🧠 Semantic similarity: %.3f (regeneration cutoff %.2f)\n", score, cfg.Similarity.SemanticThreshold)
	return nil
}
