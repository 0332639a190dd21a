package engine

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/quietfire/constellation/internal/llm"
	"github.com/quietfire/constellation/internal/store"
)

func testEngine(t *testing.T, client llm.Client) (*Engine, *store.DB) {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db, client), db
}

// fullTheme builds a theme with one full-weight label per axis.
func fullTheme(core, narrative, relational, temporal, spatial string) store.ThemeVector {
	one := func(label string) []store.AxisWeight {
		return []store.AxisWeight{{Label: label, Weight: 1.0}}
	}
	return store.ThemeVector{
		EmotionalCore:       one(core),
		NarrativeState:      one(narrative),
		RelationalFocus:     one(relational),
		TemporalOrientation: one(temporal),
		SpatialIntimacy:     one(spatial),
	}
}

func seedMemory(t *testing.T, db *store.DB, id, mood string, tags []string, theme store.ThemeVector, emb []float64) {
	t.Helper()
	m := &store.Memory{
		ID:           id,
		Text:         "seed text for " + id,
		Mood:         mood,
		Color:        "#112233",
		Tags:         tags,
		Theme:        theme,
		Embedding:    emb,
		ClassifiedBy: DecidedSimilarity,
	}
	if err := db.InsertMemory(m); err != nil {
		t.Fatalf("InsertMemory(%s): %v", id, err)
	}
}

// classifyResp wraps a classification payload in a mock LLM response.
func classifyResp(t *testing.T, mood string, tags []string, theme store.ThemeVector) *llm.Response {
	t.Helper()
	payload := map[string]any{
		"mood":        mood,
		"color":       "#334455",
		"tags":        tags,
		"themeVector": theme,
		"reasoning":   "test reasoning",
	}
	b, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal classification: %v", err)
	}
	return &llm.Response{Content: string(b), Provider: "mock"}
}

func nameResp(name string) *llm.Response {
	return &llm.Response{Content: name, Provider: "mock"}
}

type fakeEmbedder struct {
	vec []float64
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) ([]float64, error) {
	return append([]float64(nil), f.vec...), nil
}

func (f *fakeEmbedder) Model() string   { return "fake" }
func (f *fakeEmbedder) Dimensions() int { return len(f.vec) }
