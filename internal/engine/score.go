package engine

import (
	"sort"

	"github.com/quietfire/constellation/internal/store"
)

// Match weights. Embeddings dominate when both sides have one; otherwise
// theme and tag signals carry full weight so the decision is not starved
// of information.
const (
	weightEmbedding = 0.60
	weightTheme     = 0.25
	weightTags      = 0.15

	weightThemeNoEmb = 0.65
	weightTagsNoEmb  = 0.35
)

// Candidate is a memory-in-flight: the external analysis of a text before
// a family has been decided.
type Candidate struct {
	Text      string
	Mood      string // suggested family name from the analysis
	Color     string
	Tags      []string
	Theme     store.ThemeVector
	Embedding []float64
	Reasoning string
	Offline   bool // true when this is the degraded placeholder classification
}

// MatchScore is the weighted similarity of a candidate against one family
// profile, with its component sub-scores.
type MatchScore struct {
	Mood         string
	Score        float64
	EmbeddingSim float64
	ThemeSim     float64
	TagSim       float64
	HasEmbedding bool
}

// ScoreFamilyMatch combines embedding, theme, and tag similarity into one
// [0,1] score between a candidate and a family profile.
func ScoreFamilyMatch(c Candidate, f *FamilyProfile) MatchScore {
	s := MatchScore{
		Mood:         f.Mood,
		ThemeSim:     ThemeSimilarity(c.Theme, f.Theme),
		TagSim:       TagSimilarity(c.Tags, f.Tags),
		HasEmbedding: UsableEmbedding(c.Embedding) && UsableEmbedding(f.Embedding),
	}

	we, wt, wg := 0.0, weightThemeNoEmb, weightTagsNoEmb
	if s.HasEmbedding {
		s.EmbeddingSim = CosineSimilarity(c.Embedding, f.Embedding)
		we, wt, wg = weightEmbedding, weightTheme, weightTags
	}

	s.Score = (s.EmbeddingSim*we + s.ThemeSim*wt + s.TagSim*wg) / (we + wt + wg)
	return s
}

// scoreAll scores the candidate against every profile, sorted descending by
// score with mood as a deterministic tiebreak.
func scoreAll(c Candidate, profiles map[string]*FamilyProfile) []MatchScore {
	scores := make([]MatchScore, 0, len(profiles))
	for _, p := range profiles {
		scores = append(scores, ScoreFamilyMatch(c, p))
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].Mood < scores[j].Mood
	})
	return scores
}
