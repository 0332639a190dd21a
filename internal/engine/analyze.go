package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/quietfire/constellation/internal/llm"
	"github.com/quietfire/constellation/internal/store"
)

const (
	// fallbackMood labels memories classified while the analysis
	// capability was unavailable.
	fallbackMood  = "Fragment"
	fallbackColor = "#8b86a8"
)

var fallbackTags = []string{"raw", "unsorted"}

// OfflineClassification is the degraded placeholder used when the external
// analysis capability fails or is budget-rejected.
func OfflineClassification() Candidate {
	return Candidate{
		Mood:    fallbackMood,
		Color:   fallbackColor,
		Tags:    append([]string(nil), fallbackTags...),
		Theme:   NormalizeTheme(store.ThemeVector{}),
		Offline: true,
	}
}

// analyze runs the budget-gated external classification of a text and,
// best-effort, its embedding. ErrBudgetExhausted propagates so callers can
// distinguish exhaustion from malformed responses; either way the caller
// degrades rather than failing ingestion.
func (e *Engine) analyze(ctx context.Context, text string, existing []string) (Candidate, error) {
	content, err := e.complete(ctx, llm.ClassifyPrompt(text, existing))
	if err != nil {
		return Candidate{}, err
	}

	cand, err := parseClassification(content)
	if err != nil {
		return Candidate{}, fmt.Errorf("parse classification: %w", err)
	}
	cand.Text = text

	// Embedding absence is "no embedding signal", never fatal.
	if e.Embedder != nil && e.acquire() {
		if vec, embErr := e.Embedder.Embed(ctx, text); embErr != nil {
			log.Printf("analyze: embed failed: %v", embErr)
		} else if UsableEmbedding(vec) {
			cand.Embedding = vec
		}
	}

	return cand, nil
}

// parseClassification extracts the JSON classification object from an LLM
// completion and cleans every field to the engine's shapes.
func parseClassification(content string) (Candidate, error) {
	content = stripFences(content)

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return Candidate{}, errors.New("no JSON object in response")
	}

	var raw struct {
		Mood        string            `json:"mood"`
		Color       string            `json:"color"`
		Tags        []string          `json:"tags"`
		ThemeVector store.ThemeVector `json:"themeVector"`
		Reasoning   string            `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(content[start:end+1]), &raw); err != nil {
		return Candidate{}, fmt.Errorf("unmarshal: %w", err)
	}

	cand := Candidate{
		Mood:      strings.TrimSpace(raw.Mood),
		Color:     cleanColor(raw.Color),
		Tags:      NormalizeTags(raw.Tags),
		Theme:     NormalizeTheme(raw.ThemeVector),
		Reasoning: strings.TrimSpace(raw.Reasoning),
	}
	if cand.Mood == "" {
		cand.Mood = fallbackMood
	}
	if len(cand.Tags) == 0 {
		cand.Tags = append([]string(nil), fallbackTags...)
	}
	return cand, nil
}

// parseName extracts a short family name from a completion; empty means the
// response was unusable.
func parseName(content string) string {
	content = stripFences(content)
	for _, line := range strings.Split(content, "\n") {
		line = strings.Trim(strings.TrimSpace(line), `"'.`)
		if line == "" {
			continue
		}
		if len(line) > 64 {
			return ""
		}
		return line
	}
	return ""
}

// stripFences removes markdown code fences around an LLM response.
func stripFences(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		lines := strings.Split(content, "\n")
		if len(lines) > 2 {
			content = strings.Join(lines[1:len(lines)-1], "\n")
		}
	}
	return strings.TrimSpace(content)
}

// cleanColor keeps only well-formed #rrggbb values.
func cleanColor(c string) string {
	c = strings.TrimSpace(c)
	if len(c) != 7 || c[0] != '#' {
		return fallbackColor
	}
	for _, r := range c[1:] {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return fallbackColor
		}
	}
	return c
}
