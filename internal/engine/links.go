package engine

import (
	"sort"
	"strings"

	"github.com/quietfire/constellation/internal/store"
)

const (
	// LinkWindowCap bounds the pair scan; O(n²) is fine at this size.
	LinkWindowCap = 200
	// LinkCap bounds the emitted link list.
	LinkCap = 140
	// minLinkScore is the floor below which a pair is discarded.
	minLinkScore = 2.0
)

// contradictionPairs are mood-name fragments that read as emotional
// opposites. Matched by substring, case-insensitive, either direction.
var contradictionPairs = [][2]string{
	{"joy", "grief"},
	{"love", "anger"},
	{"hope", "despair"},
	{"fear", "relief"},
	{"light", "dark"},
	{"home", "loss"},
}

// absenceVocab is the shared vocabulary of absence. Two memories both
// tagged from it get a weak extra pull toward each other.
var absenceVocab = []string{"unsaid", "silence", "absence", "missing", "hollow"}

// ComputeLinks scores every unordered pair in a most-recent-first window of
// memories and returns a ranked, capped list of typed links. The whole set
// is re-derived on every call; nothing is maintained incrementally.
func ComputeLinks(memories []store.Memory) []store.Link {
	window := memories
	if len(window) > LinkWindowCap {
		window = window[:LinkWindowCap]
	}

	var links []store.Link
	for i := 0; i < len(window); i++ {
		for j := i + 1; j < len(window); j++ {
			if l, ok := scorePair(&window[i], &window[j]); ok {
				links = append(links, l)
			}
		}
	}

	// Stable sort keeps scan order among equal scores, which makes the
	// 140-cap truncation deterministic.
	sort.SliceStable(links, func(a, b int) bool {
		return links[a].Score > links[b].Score
	})
	if len(links) > LinkCap {
		links = links[:LinkCap]
	}
	return links
}

// scorePair accumulates the affinity signals between two memories. The
// reason records the first contributing signal in priority order:
// contradiction > mood > emotional core > shared image > absence.
func scorePair(a, b *store.Memory) (store.Link, bool) {
	moodA, moodB := normKey(a.Mood), normKey(b.Mood)
	sameMood := moodA != "" && moodA == moodB

	var score float64
	var reason string

	if hasContradiction(moodA, moodB) {
		score += 2
		reason = "shared contradiction"
	}

	if sharedCoreLabel(a.Theme.EmotionalCore, b.Theme.EmotionalCore) {
		score += 2
		if reason == "" {
			reason = "shared emotional core"
		}
	}

	if shared := sharedTagCount(a.Tags, b.Tags); shared > 0 {
		bump := float64(shared)
		if bump > 2 {
			bump = 2
		}
		score += bump
		if reason == "" {
			reason = "shared image"
		}
	}

	if absenceSignal(a.Tags) && absenceSignal(b.Tags) {
		score++
		if reason == "" {
			reason = "shared absence"
		}
	}

	// Same mood reinforces a pair that already has another signal; on its
	// own it only earns the weak floor link below.
	if sameMood && score > 0 {
		score += 2
		if reason == "" {
			reason = "shared family"
		}
	}

	linkType := store.LinkIdea
	if sameMood {
		linkType = store.LinkFamily
	}

	// Same-mood pairs are never discarded outright — they get at least a
	// low-weight family link.
	if sameMood && score < minLinkScore {
		return makeLink(a, b, store.LinkFamily, 1, "shared family"), true
	}
	if score < minLinkScore {
		return store.Link{}, false
	}
	return makeLink(a, b, linkType, score, reason), true
}

func makeLink(a, b *store.Memory, linkType string, score float64, reason string) store.Link {
	return store.Link{
		ID:     a.ID + "--" + b.ID,
		FromID: a.ID,
		ToID:   b.ID,
		Type:   linkType,
		Score:  score,
		Reason: reason,
	}
}

func hasContradiction(moodA, moodB string) bool {
	if moodA == "" || moodB == "" {
		return false
	}
	for _, pair := range contradictionPairs {
		if strings.Contains(moodA, pair[0]) && strings.Contains(moodB, pair[1]) {
			return true
		}
		if strings.Contains(moodA, pair[1]) && strings.Contains(moodB, pair[0]) {
			return true
		}
	}
	return false
}

func sharedCoreLabel(a, b []store.AxisWeight) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	labels := make(map[string]bool, len(a))
	for _, e := range a {
		labels[normKey(e.Label)] = true
	}
	for _, e := range b {
		if labels[normKey(e.Label)] {
			return true
		}
	}
	return false
}

// sharedTagCount is the raw intersection size of the stored tag lists.
func sharedTagCount(a, b []string) int {
	set := make(map[string]bool, len(a))
	for _, t := range a {
		set[t] = true
	}
	n := 0
	for _, t := range b {
		if set[t] {
			n++
		}
	}
	return n
}

func absenceSignal(tags []string) bool {
	for _, t := range tags {
		for _, w := range absenceVocab {
			if strings.Contains(t, w) {
				return true
			}
		}
	}
	return false
}
