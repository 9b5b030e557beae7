// Package simhash computes 64-bit SimHash fingerprints over character
// shingles (unigram + adjacent-bigram token streams) for fast,
// embedding-free similarity comparison via Hamming distance.
package simhash

import (
	"crypto/sha1"
	"encoding/binary"
	"math/bits"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	// DefaultHammingThreshold is the max bit distance treated as "similar".
	DefaultHammingThreshold = 3
	// FingerprintBits is the width of a SimHash fingerprint.
	FingerprintBits = 64
)

var (
	citationMarker = regexp.MustCompile(`\[\d+\]`)
	wordFinder     = regexp.MustCompile(`[a-z]{3,}`)

	stopWords = map[string]struct{}{
		"the": {}, "and": {}, "for": {}, "are": {}, "but": {}, "not": {},
		"you": {}, "all": {}, "can": {}, "her": {}, "was": {}, "one": {},
		"our": {}, "out": {}, "has": {}, "have": {}, "this": {}, "that": {},
		"with": {}, "from": {}, "they": {}, "will": {}, "what": {}, "when": {},
		"which": {}, "their": {}, "there": {}, "about": {}, "would": {},
		"these": {}, "other": {}, "into": {}, "more": {}, "some": {}, "than": {},
		"them": {}, "then": {}, "been": {}, "were": {}, "also": {}, "your": {},
		"such": {}, "each": {}, "how": {}, "its": {}, "may": {}, "should": {},
	}
)

// Hasher computes and compares SimHash fingerprints. The zero threshold is
// replaced with DefaultHammingThreshold.
type Hasher struct {
	threshold int
}

// NewHasher creates a Hasher with the given Hamming-distance threshold.
func NewHasher(threshold int) *Hasher {
	if threshold <= 0 {
		threshold = DefaultHammingThreshold
	}
	return &Hasher{threshold: threshold}
}

// Threshold returns the configured Hamming-distance threshold.
func (h *Hasher) Threshold() int {
	return h.threshold
}

// IsSimilar reports whether two fingerprints are within the threshold.
// Comparisons involving a zero fingerprint are inconclusive and return false.
func (h *Hasher) IsSimilar(a, b uint64) bool {
	if a == 0 || b == 0 {
		return false
	}
	return HammingDistance(a, b) <= h.threshold
}

// StripMarkup removes HTML tags and numbered citation markers ([1], [2], ...)
// from text, returning plain prose.
func StripMarkup(text string) string {
	if strings.ContainsRune(text, '<') {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(text)); err == nil {
			text = doc.Text()
		}
	}
	return citationMarker.ReplaceAllString(text, " ")
}

// Tokenize lowercases text, strips markup, extracts alphabetic tokens of
// length >= 3, and drops stop words.
func Tokenize(text string) []string {
	text = strings.ToLower(StripMarkup(text))
	raw := wordFinder.FindAllString(text, -1)
	tokens := make([]string, 0, len(raw))
	for _, tok := range raw {
		if _, stop := stopWords[tok]; stop {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// Shingles builds the token stream used for hashing: every unigram plus every
// adjacent-pair bigram joined with an underscore.
func Shingles(tokens []string) []string {
	if len(tokens) == 0 {
		return nil
	}
	stream := make([]string, 0, 2*len(tokens)-1)
	stream = append(stream, tokens...)
	for i := 0; i+1 < len(tokens); i++ {
		stream = append(stream, tokens[i]+"_"+tokens[i+1])
	}
	return stream
}

// tokenHash maps a token to a deterministic 64-bit value (truncated SHA-1).
func tokenHash(token string) uint64 {
	sum := sha1.Sum([]byte(token))
	return binary.BigEndian.Uint64(sum[:8])
}

// ComputeSimHash computes the 64-bit SimHash fingerprint of text. It is a
// pure function: the same text always yields the same fingerprint. Empty or
// whitespace-only input yields 0, which callers must treat as "no signal",
// not as similar-to-everything.
func ComputeSimHash(text string) uint64 {
	return FingerprintShingles(Shingles(Tokenize(text)))
}

// FingerprintShingles folds a prepared shingle stream into a fingerprint.
// Each shingle votes its hash bits into 64 signed counters; the final
// fingerprint keeps the sign of each counter.
func FingerprintShingles(shingles []string) uint64 {
	if len(shingles) == 0 {
		return 0
	}
	var counters [FingerprintBits]int
	for _, s := range shingles {
		h := tokenHash(s)
		for b := 0; b < FingerprintBits; b++ {
			if h&(1<<uint(b)) != 0 {
				counters[b]++
			} else {
				counters[b]--
			}
		}
	}
	var fingerprint uint64
	for b := 0; b < FingerprintBits; b++ {
		if counters[b] > 0 {
			fingerprint |= 1 << uint(b)
		}
	}
	return fingerprint
}

// HammingDistance returns the number of differing bits between fingerprints.
func HammingDistance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// SimilarityPercent converts the Hamming distance between two fingerprints to
// a 0-100 score. Zero fingerprints carry no signal, so any comparison against
// one reports 0 rather than a spurious 100% match between two empty articles.
func SimilarityPercent(a, b uint64) float64 {
	if a == 0 || b == 0 {
		return 0
	}
	d := HammingDistance(a, b)
	return float64(FingerprintBits-d) / float64(FingerprintBits) * 100.0
}
