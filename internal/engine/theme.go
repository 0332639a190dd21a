package engine

import (
	"math"
	"sort"
	"strings"

	"github.com/quietfire/constellation/internal/store"
)

const (
	maxAxisLabels = 4
	maxTags       = 12

	// fallbackAxisLabel fills an axis when no labels survive cleaning.
	fallbackAxisLabel = "memory"
)

// normKey case-normalizes a label for comparison. Original casing is kept
// for display.
func normKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeAxis cleans one theme axis: trims labels, drops empties and
// non-positive weights, merges case-duplicates, keeps the four heaviest
// labels, and renormalizes weights to sum 1.0. An axis with nothing left
// gets the fallback label at weight 1.
func NormalizeAxis(entries []store.AxisWeight, fallback string) []store.AxisWeight {
	type agg struct {
		label  string
		weight float64
	}

	seen := make(map[string]*agg)
	var ordered []*agg
	for _, e := range entries {
		label := strings.TrimSpace(e.Label)
		if label == "" || e.Weight <= 0 || math.IsNaN(e.Weight) || math.IsInf(e.Weight, 0) {
			continue
		}
		key := strings.ToLower(label)
		if a, ok := seen[key]; ok {
			a.weight += e.Weight
			continue
		}
		a := &agg{label: label, weight: e.Weight}
		seen[key] = a
		ordered = append(ordered, a)
	}

	if len(ordered) == 0 {
		return []store.AxisWeight{{Label: fallback, Weight: 1.0}}
	}

	// Stable keeps first-seen order among equal weights.
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].weight > ordered[j].weight
	})
	if len(ordered) > maxAxisLabels {
		ordered = ordered[:maxAxisLabels]
	}

	var total float64
	for _, a := range ordered {
		total += a.weight
	}
	out := make([]store.AxisWeight, len(ordered))
	for i, a := range ordered {
		out[i] = store.AxisWeight{Label: a.label, Weight: a.weight / total}
	}
	return out
}

// NormalizeTheme applies NormalizeAxis to all five axes.
func NormalizeTheme(t store.ThemeVector) store.ThemeVector {
	var out store.ThemeVector
	for _, name := range store.AxisNames {
		out.SetAxis(name, NormalizeAxis(t.Axis(name), fallbackAxisLabel))
	}
	return out
}

// NormalizeTags lowercases, trims, dedupes, and caps a tag list at twelve
// entries, keeping insertion order.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	var out []string
	for _, t := range tags {
		t = normKey(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
		if len(out) == maxTags {
			break
		}
	}
	return out
}
