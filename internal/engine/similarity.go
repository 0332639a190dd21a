package engine

import (
	"math"

	"github.com/quietfire/constellation/internal/store"
)

// minEmbeddingLen is the shortest vector still considered a usable
// embedding signal.
const minEmbeddingLen = 8

// UsableEmbedding reports whether a vector carries signal: at least
// minEmbeddingLen components and non-zero magnitude.
func UsableEmbedding(v []float64) bool {
	if len(v) < minEmbeddingLen {
		return false
	}
	var mag float64
	for _, x := range v {
		mag += math.Abs(x)
	}
	return mag > 0
}

// AxisSimilarity is the dot product of two axes' label→weight maps, with
// labels compared case-insensitively and missing labels counting as 0.
// Not cosine-normalized: axes sharing high-weight labels score high, and
// the result stays in [0,1] because each axis sums to 1.
func AxisSimilarity(a, b []store.AxisWeight) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	bw := make(map[string]float64, len(b))
	posB := false
	for _, e := range b {
		if e.Weight > 0 {
			bw[normKey(e.Label)] += e.Weight
			posB = true
		}
	}
	if !posB {
		return 0
	}

	var dot float64
	posA := false
	for _, e := range a {
		if e.Weight <= 0 {
			continue
		}
		posA = true
		dot += e.Weight * bw[normKey(e.Label)]
	}
	if !posA {
		return 0
	}
	return dot
}

// ThemeSimilarity is the mean of AxisSimilarity across the five fixed axes.
// An empty axis on either side contributes 0 but stays in the denominator.
func ThemeSimilarity(a, b store.ThemeVector) float64 {
	var sum float64
	for _, name := range store.AxisNames {
		sum += AxisSimilarity(a.Axis(name), b.Axis(name))
	}
	return sum / float64(len(store.AxisNames))
}

// TagSimilarity is the Jaccard index of the two tag sets; 0 if either is empty.
func TagSimilarity(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	setA := make(map[string]bool, len(a))
	for _, t := range a {
		setA[normKey(t)] = true
	}
	setB := make(map[string]bool, len(b))
	for _, t := range b {
		setB[normKey(t)] = true
	}

	shared := 0
	for t := range setA {
		if setB[t] {
			shared++
		}
	}
	union := len(setA) + len(setB) - shared
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union)
}

// CosineSimilarity computes the cosine similarity between two vectors.
// Works on unnormalized vectors; mismatched lengths score 0.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return dot / denom
}
