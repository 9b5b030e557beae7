// Package generate produces article drafts with the Gemini API. The prompt
// asks for a line-prefixed structured layout (HEADLINE, INTRO, SECTION,
// FAQ blocks) that parses back into a core.Article without a JSON schema.
package generate

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"blogsmith/internal/config"
	"blogsmith/internal/core"
	"blogsmith/internal/regen"

	"github.com/spf13/viper"
	"google.golang.org/genai"
)

// DefaultModel is the default Gemini generation model.
const DefaultModel = "gemini-flash-lite-latest"

// Client generates article drafts. It implements regen.Generator.
type Client struct {
	gClient     *genai.Client
	model       string
	maxTokens   int32
	temperature float32
}

// NewClient creates a generation client. The API key resolution mirrors the
// embedding client so one key serves both.
func NewClient(ctx context.Context, cfg config.Generation, apiKey string) (*Client, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		if apiKey = os.Getenv("GOOGLE_GEMINI_API_KEY"); apiKey == "" {
			if apiKey = os.Getenv("GOOGLE_AI_API_KEY"); apiKey == "" {
				apiKey = viper.GetString("embedding.api_key")
			}
		}
	}
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required. Set GEMINI_API_KEY or embedding.api_key in the config file")
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	gClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Client{
		gClient:     gClient,
		model:       model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}, nil
}

// Generate produces one article draft for the request.
func (c *Client) Generate(ctx context.Context, req regen.Request) (core.Article, error) {
	prompt := BuildPrompt(req)

	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: prompt}},
		Role:  "user",
	}}
	genCfg := &genai.GenerateContentConfig{
		MaxOutputTokens: c.maxTokens,
		Temperature:     &c.temperature,
	}

	resp, err := c.gClient.Models.GenerateContent(ctx, c.model, contents, genCfg)
	if err != nil {
		return core.Article{}, fmt.Errorf("failed to generate article: %w", err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return core.Article{}, fmt.Errorf("empty response from generation model")
	}

	article, err := ParseArticle(text)
	if err != nil {
		return core.Article{}, fmt.Errorf("failed to parse generated article: %w", err)
	}

	article.JobID = req.JobID
	article.PrimaryKeyword = req.PrimaryKeyword
	article.ModelUsed = c.model
	article.DateGenerated = time.Now().UTC()
	return article, nil
}

// BuildPrompt renders the structured generation prompt, appending the
// regeneration instruction block when a strategy is in play.
func BuildPrompt(req regen.Request) string {
	var b strings.Builder
	b.WriteString("You are a professional blog writer. Write a complete article.\n\n")
	fmt.Fprintf(&b, "Topic: %s\n", req.Topic)
	fmt.Fprintf(&b, "Primary keyword: %s\n", req.PrimaryKeyword)
	if req.Instructions != "" {
		fmt.Fprintf(&b, "Additional instructions: %s\n", req.Instructions)
	}
	if req.RegenInstruction != "" {
		b.WriteString("\nIMPORTANT REWRITE DIRECTIVE:\n")
		b.WriteString(req.RegenInstruction)
		b.WriteString("\n")
	}
	b.WriteString(`
Respond using EXACTLY this line-prefixed format, with no markdown fences:

HEADLINE: <article headline>
INTRO: <one-paragraph introduction>
SECTION_1_TITLE: <title>
SECTION_1_BODY: <paragraphs>
SECTION_2_TITLE: <title>
SECTION_2_BODY: <paragraphs>
SECTION_3_TITLE: <title>
SECTION_3_BODY: <paragraphs>
FAQ_Q1: <question>
FAQ_A1: <answer>
FAQ_Q2: <question>
FAQ_A2: <answer>
FAQ_Q3: <question>
FAQ_A3: <answer>
`)
	return b.String()
}

// ParseArticle parses the line-prefixed model response into an Article.
// Unknown prefixes are ignored; continuation lines attach to the last field.
func ParseArticle(text string) (core.Article, error) {
	var article core.Article
	sections := make(map[int][2]string) // index -> [title, body]
	questions := make(map[int]string)
	answers := make(map[int]string)
	maxSection, maxFAQ := 0, 0

	appendTo := func(s, extra string) string {
		if s == "" {
			return extra
		}
		return s + "\n" + extra
	}

	var lastField func(string)
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		prefix, value, found := strings.Cut(trimmed, ":")
		if !found {
			if lastField != nil {
				lastField(trimmed)
			}
			continue
		}
		value = strings.TrimSpace(value)
		prefix = strings.ToUpper(strings.TrimSpace(prefix))

		switch {
		case prefix == "HEADLINE":
			article.Headline = value
			lastField = func(s string) { article.Headline = appendTo(article.Headline, s) }
		case prefix == "INTRO":
			article.Intro = value
			lastField = func(s string) { article.Intro = appendTo(article.Intro, s) }
		case strings.HasPrefix(prefix, "SECTION_"):
			var idx int
			var kind string
			if _, err := fmt.Sscanf(prefix, "SECTION_%d_%s", &idx, &kind); err != nil || idx < 1 {
				lastField = nil
				continue
			}
			if idx > maxSection {
				maxSection = idx
			}
			entry := sections[idx]
			i := idx
			if kind == "TITLE" {
				entry[0] = value
				sections[i] = entry
				lastField = func(s string) {
					e := sections[i]
					e[0] = appendTo(e[0], s)
					sections[i] = e
				}
			} else {
				entry[1] = value
				sections[i] = entry
				lastField = func(s string) {
					e := sections[i]
					e[1] = appendTo(e[1], s)
					sections[i] = e
				}
			}
		case strings.HasPrefix(prefix, "FAQ_Q"):
			var idx int
			if _, err := fmt.Sscanf(prefix, "FAQ_Q%d", &idx); err != nil || idx < 1 {
				lastField = nil
				continue
			}
			if idx > maxFAQ {
				maxFAQ = idx
			}
			questions[idx] = value
			i := idx
			lastField = func(s string) { questions[i] = appendTo(questions[i], s) }
		case strings.HasPrefix(prefix, "FAQ_A"):
			var idx int
			if _, err := fmt.Sscanf(prefix, "FAQ_A%d", &idx); err != nil || idx < 1 {
				lastField = nil
				continue
			}
			if idx > maxFAQ {
				maxFAQ = idx
			}
			answers[idx] = value
			i := idx
			lastField = func(s string) { answers[i] = appendTo(answers[i], s) }
		default:
			// Not a recognized field marker; treat as a continuation.
			if lastField != nil {
				lastField(trimmed)
			}
		}
	}

	if article.Headline == "" {
		return core.Article{}, fmt.Errorf("response missing HEADLINE field")
	}
	if article.Intro == "" {
		return core.Article{}, fmt.Errorf("response missing INTRO field")
	}

	for i := 1; i <= maxSection; i++ {
		entry, ok := sections[i]
		if !ok {
			continue
		}
		section := entry[1]
		if entry[0] != "" {
			section = entry[0] + "\n" + section
		}
		if strings.TrimSpace(section) != "" {
			article.Sections = append(article.Sections, section)
		}
	}
	if len(article.Sections) == 0 {
		return core.Article{}, fmt.Errorf("response contained no article sections")
	}

	for i := 1; i <= maxFAQ; i++ {
		q, a := questions[i], answers[i]
		if q == "" || a == "" {
			continue
		}
		article.FAQ = append(article.FAQ, core.FAQEntry{Question: q, Answer: a})
	}

	return article, nil
}
