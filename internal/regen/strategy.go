package regen

import (
	"fmt"

	"blogsmith/internal/core"
)

// Strategy names a prompt-variation tactic applied on a regeneration attempt.
type Strategy string

const (
	// StrategyAngle reframes the article around a different angle on the topic.
	StrategyAngle Strategy = "angle"
	// StrategyStyle changes the writing voice and structure.
	StrategyStyle Strategy = "style"
	// StrategyEmphasis shifts which subtopics get the most coverage.
	StrategyEmphasis Strategy = "emphasis"
)

// rotation is the fixed strategy order across regeneration attempts.
var rotation = []Strategy{StrategyAngle, StrategyStyle, StrategyEmphasis}

// StrategyFor returns the strategy for a given attempt number. Attempt 1 is
// the original generation and carries no strategy; attempt 2 starts the
// rotation, wrapping if the budget exceeds the rotation length.
func StrategyFor(attempt int) Strategy {
	if attempt < 2 {
		return ""
	}
	return rotation[(attempt-2)%len(rotation)]
}

// InstructionFor renders the prompt block for a strategy, grounded in what
// the previous attempt collided with. It is a pure function of its inputs.
func InstructionFor(strategy Strategy, prev core.SimilarityResult) string {
	collision := prev.SimilarArticle
	if collision == "" {
		collision = "an earlier article in this batch"
	} else {
		collision = fmt.Sprintf("the article %q", collision)
	}

	switch strategy {
	case StrategyAngle:
		return fmt.Sprintf(
			"Your previous draft scored %.1f%% similar to %s. "+
				"Rewrite from a completely different angle: choose a different audience, problem framing, or use case than the obvious one, "+
				"and do not reuse the previous draft's headline structure or opening argument.",
			prev.SimilarityScore, collision)
	case StrategyStyle:
		return fmt.Sprintf(
			"Your previous draft scored %.1f%% similar to %s. "+
				"Change the writing style entirely: different tone, different sentence rhythm, different section structure. "+
				"If the previous draft was explanatory, make this one practical and example-driven, or vice versa.",
			prev.SimilarityScore, collision)
	case StrategyEmphasis:
		return fmt.Sprintf(
			"Your previous draft scored %.1f%% similar to %s. "+
				"Shift the emphasis: pick the subtopics the previous draft treated briefly and make them the core of this article, "+
				"while compressing what it dwelled on.",
			prev.SimilarityScore, collision)
	default:
		return ""
	}
}

// VaryRequest derives the request for the next attempt: same job, topic, and
// keyword, with the attempt number and the strategy's regeneration
// instruction applied. The input request is not mutated.
func VaryRequest(req Request, attempt int, prev core.SimilarityResult) Request {
	next := req
	next.RegenAttempt = attempt
	next.RegenInstruction = InstructionFor(StrategyFor(attempt), prev)
	return next
}
