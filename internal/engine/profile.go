package engine

import (
	"fmt"
	"sort"

	"github.com/quietfire/constellation/internal/store"
)

// ProfileSampleCap bounds how many recent memories feed family aggregation.
const ProfileSampleCap = 400

// FamilyProfile is the derived aggregate for one family: mean embedding,
// merged theme axes, top tags. It is a view — recomputed on demand, never
// persisted.
type FamilyProfile struct {
	Mood      string            `json:"mood"`
	Embedding []float64         `json:"-"` // nil when no member has a usable embedding
	Theme     store.ThemeVector `json:"theme"`
	Tags      []string          `json:"tags"`
	Size      int               `json:"size"`
}

// BuildProfiles aggregates a most-recent-first sample of memories into one
// profile per distinct mood. Deterministic for a given sample; touches no
// external capability.
func BuildProfiles(sample []store.Memory) map[string]*FamilyProfile {
	if len(sample) > ProfileSampleCap {
		sample = sample[:ProfileSampleCap]
	}

	type familyAgg struct {
		profile  *FamilyProfile
		embSum   []float64
		embCount int
		axes     map[string]map[string]*labelSum
		tagCount map[string]int
		tagOrder []string
	}

	families := make(map[string]*familyAgg)
	var order []string

	for i := range sample {
		m := &sample[i]
		key := normKey(m.Mood)
		if key == "" {
			continue
		}

		fam, ok := families[key]
		if !ok {
			fam = &familyAgg{
				profile:  &FamilyProfile{Mood: m.Mood},
				axes:     make(map[string]map[string]*labelSum),
				tagCount: make(map[string]int),
			}
			families[key] = fam
			order = append(order, key)
		}
		fam.profile.Size++

		// Mean embedding over usable members. The first usable vector fixes
		// the dimensionality; mismatched vectors are skipped.
		if UsableEmbedding(m.Embedding) {
			if fam.embSum == nil {
				fam.embSum = make([]float64, len(m.Embedding))
			}
			if len(m.Embedding) == len(fam.embSum) {
				for j, v := range m.Embedding {
					fam.embSum[j] += v
				}
				fam.embCount++
			}
		}

		for _, name := range store.AxisNames {
			axis := fam.axes[name]
			if axis == nil {
				axis = make(map[string]*labelSum)
				fam.axes[name] = axis
			}
			for _, e := range m.Theme.Axis(name) {
				if e.Weight <= 0 {
					continue
				}
				k := normKey(e.Label)
				if k == "" {
					continue
				}
				ls, ok := axis[k]
				if !ok {
					ls = &labelSum{label: e.Label, order: len(axis)}
					axis[k] = ls
				}
				ls.weight += e.Weight
			}
		}

		for _, t := range m.Tags {
			k := normKey(t)
			if k == "" {
				continue
			}
			if _, ok := fam.tagCount[k]; !ok {
				fam.tagOrder = append(fam.tagOrder, k)
			}
			fam.tagCount[k]++
		}
	}

	profiles := make(map[string]*FamilyProfile, len(families))
	for _, key := range order {
		fam := families[key]
		p := fam.profile

		if fam.embCount > 0 {
			p.Embedding = make([]float64, len(fam.embSum))
			for j, v := range fam.embSum {
				p.Embedding[j] = v / float64(fam.embCount)
			}
		}

		for _, name := range store.AxisNames {
			entries := make([]store.AxisWeight, 0, len(fam.axes[name]))
			ordered := make([]*labelSum, 0, len(fam.axes[name]))
			for _, ls := range fam.axes[name] {
				ordered = append(ordered, ls)
			}
			sort.SliceStable(ordered, func(i, j int) bool {
				return ordered[i].order < ordered[j].order
			})
			for _, ls := range ordered {
				entries = append(entries, store.AxisWeight{Label: ls.label, Weight: ls.weight})
			}
			p.Theme.SetAxis(name, NormalizeAxis(entries, fallbackAxisLabel))
		}

		p.Tags = topTags(fam.tagCount, fam.tagOrder, maxTags)
		profiles[key] = p
	}
	return profiles
}

type labelSum struct {
	label  string
	weight float64
	order  int
}

// topTags keeps the most frequent tags, ties broken by first-seen order.
func topTags(counts map[string]int, firstSeen []string, limit int) []string {
	tags := append([]string(nil), firstSeen...)
	sort.SliceStable(tags, func(i, j int) bool {
		return counts[tags[i]] > counts[tags[j]]
	})
	if len(tags) > limit {
		tags = tags[:limit]
	}
	return tags
}

// Profiles builds the aggregate profile for every family from a fresh
// sample of the archive.
func (e *Engine) Profiles() (map[string]*FamilyProfile, error) {
	return e.familyProfiles()
}

// familyProfiles builds profiles from a fresh sample of the archive.
func (e *Engine) familyProfiles() (map[string]*FamilyProfile, error) {
	sample, err := e.DB.RecentMemories(ProfileSampleCap)
	if err != nil {
		return nil, fmt.Errorf("sample memories: %w", err)
	}
	return BuildProfiles(sample), nil
}

// ProfileFor returns the aggregate profile for one family, or ErrNoSample
// when no memory carries that mood.
func (e *Engine) ProfileFor(mood string) (*FamilyProfile, error) {
	profiles, err := e.familyProfiles()
	if err != nil {
		return nil, err
	}
	p, ok := profiles[normKey(mood)]
	if !ok {
		return nil, fmt.Errorf("family %q: %w", mood, ErrNoSample)
	}
	return p, nil
}
