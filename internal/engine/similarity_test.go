package engine

import (
	"math"
	"testing"

	"github.com/quietfire/constellation/internal/store"
)

func axis(pairs ...store.AxisWeight) []store.AxisWeight {
	return pairs
}

func aw(label string, weight float64) store.AxisWeight {
	return store.AxisWeight{Label: label, Weight: weight}
}

func TestAxisSimilaritySymmetric(t *testing.T) {
	tests := []struct {
		name string
		a, b []store.AxisWeight
	}{
		{
			name: "overlapping",
			a:    axis(aw("longing", 0.6), aw("warmth", 0.4)),
			b:    axis(aw("longing", 0.3), aw("dread", 0.7)),
		},
		{
			name: "disjoint",
			a:    axis(aw("longing", 1.0)),
			b:    axis(aw("dread", 1.0)),
		},
		{
			name: "case differs",
			a:    axis(aw("Longing", 0.5), aw("warmth", 0.5)),
			b:    axis(aw("longing", 1.0)),
		},
		{
			name: "uneven sizes",
			a:    axis(aw("a", 0.25), aw("b", 0.25), aw("c", 0.25), aw("d", 0.25)),
			b:    axis(aw("b", 0.9), aw("d", 0.1)),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ab := AxisSimilarity(tt.a, tt.b)
			ba := AxisSimilarity(tt.b, tt.a)
			if math.Abs(ab-ba) > 1e-12 {
				t.Errorf("asymmetric: %v vs %v", ab, ba)
			}
			if ab < 0 || ab > 1 {
				t.Errorf("out of bounds: %v", ab)
			}
		})
	}
}

func TestAxisSimilarityValues(t *testing.T) {
	identical := axis(aw("longing", 0.6), aw("warmth", 0.4))
	got := AxisSimilarity(identical, identical)
	want := 0.6*0.6 + 0.4*0.4
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("self dot = %v, want %v", got, want)
	}

	if got := AxisSimilarity(nil, identical); got != 0 {
		t.Errorf("empty axis = %v, want 0", got)
	}
	zeroWeight := axis(aw("longing", 0))
	if got := AxisSimilarity(zeroWeight, identical); got != 0 {
		t.Errorf("no positive weights = %v, want 0", got)
	}
}

func TestThemeSimilarityMissingAxisCountsInDenominator(t *testing.T) {
	a := store.ThemeVector{EmotionalCore: axis(aw("longing", 1.0))}
	b := store.ThemeVector{EmotionalCore: axis(aw("longing", 1.0))}

	// Only one of five axes matches perfectly; the other four are empty and
	// contribute 0 without shrinking the denominator.
	got := ThemeSimilarity(a, b)
	if math.Abs(got-0.2) > 1e-12 {
		t.Errorf("theme sim = %v, want 0.2", got)
	}
}

func TestTagSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []string
		want float64
	}{
		{"identical", []string{"rain", "kitchen"}, []string{"rain", "kitchen"}, 1.0},
		{"half", []string{"rain", "kitchen"}, []string{"rain", "sea"}, 1.0 / 3.0},
		{"disjoint", []string{"rain"}, []string{"sea"}, 0},
		{"empty side", nil, []string{"sea"}, 0},
		{"both empty", nil, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TagSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("got %v, want %v", got, tt.want)
			}
			back := TagSimilarity(tt.b, tt.a)
			if math.Abs(got-back) > 1e-12 {
				t.Errorf("asymmetric: %v vs %v", got, back)
			}
		})
	}
}

func TestCosineSimilarity(t *testing.T) {
	a := []float64{1, 0, 0, 0, 0, 0, 0, 0}
	if got := CosineSimilarity(a, a); math.Abs(got-1.0) > 1e-12 {
		t.Errorf("self = %v, want 1", got)
	}
	b := []float64{0, 1, 0, 0, 0, 0, 0, 0}
	if got := CosineSimilarity(a, b); got != 0 {
		t.Errorf("orthogonal = %v, want 0", got)
	}
	if got := CosineSimilarity(a, []float64{1, 2}); got != 0 {
		t.Errorf("mismatched lengths = %v, want 0", got)
	}
	zero := make([]float64, 8)
	if got := CosineSimilarity(a, zero); got != 0 {
		t.Errorf("zero vector = %v, want 0", got)
	}
}

func TestUsableEmbedding(t *testing.T) {
	tests := []struct {
		name string
		v    []float64
		want bool
	}{
		{"nil", nil, false},
		{"too short", []float64{1, 2, 3}, false},
		{"all zero", make([]float64, 16), false},
		{"usable", []float64{0, 0, 0, 0, 0, 0, 0, 0.1}, true},
		{"negative magnitude counts", []float64{0, 0, 0, 0, 0, 0, 0, -0.1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UsableEmbedding(tt.v); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}
