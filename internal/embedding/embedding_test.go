package embedding

import (
	"context"
	"math"
	"os"
	"strings"
	"testing"
	"unicode/utf8"

	"blogsmith/internal/config"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"identical", []float64{1, 2, 3}, []float64{1, 2, 3}, 1.0},
		{"opposite", []float64{1, 0}, []float64{-1, 0}, -1.0},
		{"orthogonal", []float64{1, 0}, []float64{0, 1}, 0.0},
		{"scaled", []float64{1, 2}, []float64{2, 4}, 1.0},
		{"mismatched lengths", []float64{1, 2}, []float64{1, 2, 3}, 0.0},
		{"zero vector", []float64{0, 0}, []float64{1, 2}, 0.0},
		{"both empty", nil, nil, 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("CosineSimilarity(%v, %v) = %f, want %f", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestTruncateOnRuneBoundary(t *testing.T) {
	tests := []struct {
		name string
		text string
		max  int
		want string
	}{
		{"shorter than limit", "abc", 10, "abc"},
		{"ascii exact cut", "abcdef", 3, "abc"},
		{"two-byte runes", strings.Repeat("é", 10), 5, strings.Repeat("é", 2)},
		{"four-byte rune mid-split", "\U0001F642\U0001F642", 5, "\U0001F642"},
		{"empty", "", 5, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncateOnRuneBoundary(tt.text, tt.max)
			if got != tt.want {
				t.Errorf("truncateOnRuneBoundary(%q, %d) = %q, want %q", tt.text, tt.max, got, tt.want)
			}
			if len(got) > tt.max {
				t.Errorf("result exceeds %d bytes: %d", tt.max, len(got))
			}
			if !utf8.ValidString(got) {
				t.Errorf("result is not valid UTF-8: %q", got)
			}
		})
	}
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	for _, env := range []string{"GEMINI_API_KEY", "GOOGLE_GEMINI_API_KEY", "GOOGLE_AI_API_KEY"} {
		if os.Getenv(env) != "" {
			t.Skipf("%s is set; cannot test missing-key path", env)
		}
	}

	_, err := NewClient(context.Background(), config.Embedding{Timeout: "30s"})
	if err == nil {
		t.Fatal("expected error when no API key is configured")
	}
}

func TestEmbedTextLive(t *testing.T) {
	if os.Getenv("GEMINI_API_KEY") == "" {
		t.Skip("GEMINI_API_KEY not set, skipping live embedding test")
	}

	ctx := context.Background()
	client, err := NewClient(ctx, config.Embedding{
		Model:         DefaultModel,
		Dimensions:    768,
		Timeout:       "30s",
		MaxInputChars: 8000,
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	vec, err := client.EmbedText(ctx, "How to grow tomatoes on a small balcony")
	if err != nil {
		t.Fatalf("EmbedText failed: %v", err)
	}
	if len(vec) != 768 {
		t.Errorf("expected 768 dimensions, got %d", len(vec))
	}

	// Same text again must come from the cache.
	before := client.Stats()
	if _, err := client.EmbedText(ctx, "How to grow tomatoes on a small balcony"); err != nil {
		t.Fatalf("cached EmbedText failed: %v", err)
	}
	after := client.Stats()
	if after.CacheHits != before.CacheHits+1 {
		t.Errorf("expected a cache hit, stats before %+v after %+v", before, after)
	}
	if after.RequestsMade != before.RequestsMade {
		t.Errorf("cached lookup should not issue a new request")
	}
}

func TestCompareTextsLive(t *testing.T) {
	if os.Getenv("GEMINI_API_KEY") == "" {
		t.Skip("GEMINI_API_KEY not set, skipping live comparison test")
	}

	ctx := context.Background()
	client, err := NewClient(ctx, config.Embedding{
		Model:         DefaultModel,
		Dimensions:    768,
		Timeout:       "30s",
		MaxInputChars: 8000,
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	similar, ok := client.CompareTexts(ctx,
		"Tips for growing tomatoes in containers on a balcony",
		"How to raise container tomatoes on a small patio")
	if !ok {
		t.Fatal("comparison of similar texts did not produce a score")
	}

	different, ok := client.CompareTexts(ctx,
		"Tips for growing tomatoes in containers on a balcony",
		"A beginner's guide to filing corporate taxes in Delaware")
	if !ok {
		t.Fatal("comparison of different texts did not produce a score")
	}

	if similar <= different {
		t.Errorf("similar texts scored %.3f, different texts %.3f; expected the former higher",
			similar, different)
	}
}
