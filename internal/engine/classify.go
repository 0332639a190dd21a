package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/quietfire/constellation/internal/llm"
	"github.com/quietfire/constellation/internal/store"
)

// Decision thresholds. The bar is higher when the winning comparison was
// embedding-backed, since that signal is stronger and a near-miss there
// means more.
const (
	embThreshold   = 0.62
	noEmbThreshold = 0.52
	embStrong      = 0.72
	noEmbStrong    = 0.60

	// scoreMargin is the lead over the runner-up that substitutes for an
	// absolute strong score.
	scoreMargin = 0.08

	// suggestedSlack softens the bar when the analysis suggested a family
	// that already exists — the name match itself is weak corroboration.
	suggestedSlack = 0.05
)

// DecidedBy values recorded on each classification.
const (
	DecidedOffline    = "offline"
	DecidedSimilarity = "similarity"
	DecidedAINew      = "ai-new"
	DecidedAIExisting = "ai-existing"
	DecidedAIOverride = "ai-override"
)

// ClassifyResult is the outcome of one ingestion.
type ClassifyResult struct {
	Memory      *store.Memory `json:"memory"`
	IsNewFamily bool          `json:"is_new_family"`
	DecidedBy   string        `json:"decided_by"`
	BestMatch   string        `json:"best_match,omitempty"`
	BestScore   float64       `json:"best_score,omitempty"`
}

type familyDecision struct {
	Mood      string
	IsNew     bool
	DecidedBy string
	BestMatch string
	BestScore float64
}

// ClassifyAndAssign ingests one text: external analysis, family decision,
// persistence. Capability failures degrade to the offline placeholder —
// ingestion itself never fails on them.
func (e *Engine) ClassifyAndAssign(ctx context.Context, text string) (*ClassifyResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("empty memory text")
	}

	existing, err := e.DB.DistinctMoods()
	if err != nil {
		return nil, fmt.Errorf("list families: %w", err)
	}

	cand, err := e.analyze(ctx, text, existing)
	if err != nil {
		if !errors.Is(err, ErrBudgetExhausted) {
			log.Printf("classify: analysis failed, using offline placeholder: %v", err)
		}
		cand = OfflineClassification()
		cand.Text = text
	}

	d := e.decideFamily(ctx, cand, existing)

	mem := &store.Memory{
		ID:           uuid.NewString(),
		Text:         text,
		Mood:         d.Mood,
		Color:        cand.Color,
		Tags:         cand.Tags,
		Theme:        cand.Theme,
		Embedding:    cand.Embedding,
		ClassifiedBy: d.DecidedBy,
		BestMatch:    d.BestMatch,
		BestScore:    d.BestScore,
		IsNewFamily:  d.IsNew,
	}
	if err := e.DB.InsertMemory(mem); err != nil {
		return nil, fmt.Errorf("store memory: %w", err)
	}

	return &ClassifyResult{
		Memory:      mem,
		IsNewFamily: d.IsNew,
		DecidedBy:   d.DecidedBy,
		BestMatch:   d.BestMatch,
		BestScore:   d.BestScore,
	}, nil
}

// decideFamily runs the deterministic decision policy: reuse the best-scoring
// family, accept the suggested name as new, accept it as existing on a softer
// bar, or ask the capability for an alternative. The order of checks is part
// of the contract — 5c in particular only examines the suggested mood's own
// score, never the leader's.
func (e *Engine) decideFamily(ctx context.Context, cand Candidate, existing []string) familyDecision {
	// Empty archive, or degraded placeholder: nothing to score against.
	if len(existing) == 0 || cand.Offline {
		d := familyDecision{Mood: cand.Mood, IsNew: len(existing) == 0}
		if cand.Offline {
			d.DecidedBy = DecidedOffline
		} else {
			d.DecidedBy = DecidedAINew
		}
		return d
	}

	profiles, err := e.familyProfiles()
	if err != nil || len(profiles) == 0 {
		if err != nil {
			log.Printf("classify: profile aggregation failed: %v", err)
		}
		return familyDecision{
			Mood:      cand.Mood,
			IsNew:     !moodExists(existing, cand.Mood),
			DecidedBy: DecidedOffline,
		}
	}

	scores := scoreAll(cand, profiles)
	best := scores[0]
	second := 0.0
	if len(scores) > 1 {
		second = scores[1].Score
	}
	bestMargin := best.Score - second

	threshold, strong := noEmbThreshold, noEmbStrong
	if best.HasEmbedding {
		threshold, strong = embThreshold, embStrong
	}

	d := familyDecision{BestMatch: best.Mood, BestScore: best.Score}

	// (a) Confident reuse: absolute score plus either a decisive lead or a
	// strong absolute match.
	if best.Score >= threshold && (bestMargin >= scoreMargin || best.Score >= strong) {
		d.Mood = best.Mood
		d.DecidedBy = DecidedSimilarity
		return d
	}

	// (b) The suggested name is genuinely new territory.
	if !moodExists(existing, cand.Mood) {
		d.Mood = cand.Mood
		d.IsNew = true
		d.DecidedBy = DecidedAINew
		return e.broaden(ctx, d, existing)
	}

	// (c) The suggested name already exists; near-threshold similarity to
	// its own profile is enough corroboration.
	if s, ok := scoreFor(scores, cand.Mood); ok && s.Score >= threshold-suggestedSlack {
		d.Mood = s.Mood
		d.DecidedBy = DecidedAIExisting
		return d
	}

	// (d) Override: ask for an alternative name, falling back to the
	// suggestion unmodified when the capability yields nothing usable.
	if name := e.proposeName(ctx, cand, existing); name != "" {
		d.Mood = name
		d.IsNew = !moodExists(existing, name)
		d.DecidedBy = DecidedAIOverride
		if d.IsNew {
			return e.broaden(ctx, d, existing)
		}
		return d
	}
	d.Mood = cand.Mood
	d.DecidedBy = DecidedAIOverride
	return d
}

// proposeName asks the capability for an alternative family name. Best
// effort: any failure returns "".
func (e *Engine) proposeName(ctx context.Context, cand Candidate, existing []string) string {
	content, err := e.complete(ctx, llm.ProposeNamePrompt(cand.Text, existing))
	if err != nil {
		if !errors.Is(err, ErrBudgetExhausted) {
			log.Printf("classify: propose name failed: %v", err)
		}
		return ""
	}
	return parseName(content)
}

// broaden generalizes a freshly minted family name into a more archetypal
// label. The replacement is accepted only if non-empty and different; a
// broadened name may collapse into an existing family, so "is this new" is
// re-evaluated — by name existence only, not by re-scoring.
func (e *Engine) broaden(ctx context.Context, d familyDecision, existing []string) familyDecision {
	if !d.IsNew {
		return d
	}
	content, err := e.complete(ctx, llm.BroadenNamePrompt(d.Mood, existing))
	if err != nil {
		if !errors.Is(err, ErrBudgetExhausted) {
			log.Printf("classify: broaden name failed: %v", err)
		}
		return d
	}
	name := parseName(content)
	if name == "" || normKey(name) == normKey(d.Mood) {
		return d
	}
	d.Mood = name
	d.IsNew = !moodExists(existing, name)
	return d
}

func moodExists(existing []string, mood string) bool {
	key := normKey(mood)
	for _, m := range existing {
		if normKey(m) == key {
			return true
		}
	}
	return false
}

func scoreFor(scores []MatchScore, mood string) (MatchScore, bool) {
	key := normKey(mood)
	for _, s := range scores {
		if normKey(s.Mood) == key {
			return s, true
		}
	}
	return MatchScore{}, false
}
