package engine

import (
	"github.com/quietfire/constellation/internal/store"
)

// ResolveClusterLabels groups memories into connected components along their
// links and labels each component with its majority mood (ties broken by
// first-encountered order). Isolated memories form singleton components
// labeled by their own mood. Purely a view for visual grouping — recomputed
// whenever the memory or link set changes, never persisted.
func ResolveClusterLabels(memories []store.Memory, links []store.Link) map[string]string {
	uf := newUnionFind()
	for i := range memories {
		uf.add(memories[i].ID)
	}
	for _, l := range links {
		uf.union(l.FromID, l.ToID)
	}

	// Tally mood occurrences per component, in memory order.
	type tally struct {
		counts map[string]int
		order  []string
	}
	components := make(map[string]*tally)
	for i := range memories {
		root := uf.find(memories[i].ID)
		t, ok := components[root]
		if !ok {
			t = &tally{counts: make(map[string]int)}
			components[root] = t
		}
		mood := memories[i].Mood
		if _, seen := t.counts[mood]; !seen {
			t.order = append(t.order, mood)
		}
		t.counts[mood]++
	}

	// Majority mood per component; first-encountered wins ties.
	majority := make(map[string]string, len(components))
	for root, t := range components {
		best, bestCount := "", -1
		for _, mood := range t.order {
			if t.counts[mood] > bestCount {
				best, bestCount = mood, t.counts[mood]
			}
		}
		majority[root] = best
	}

	labels := make(map[string]string, len(memories))
	for i := range memories {
		labels[memories[i].ID] = majority[uf.find(memories[i].ID)]
	}
	return labels
}

// unionFind is a plain disjoint-set with path compression.
type unionFind struct {
	parent map[string]string
}

func newUnionFind() *unionFind {
	return &unionFind{parent: make(map[string]string)}
}

func (u *unionFind) add(id string) {
	if _, ok := u.parent[id]; !ok {
		u.parent[id] = id
	}
}

func (u *unionFind) find(id string) string {
	p, ok := u.parent[id]
	if !ok {
		u.parent[id] = id
		return id
	}
	if p == id {
		return id
	}
	root := u.find(p)
	u.parent[id] = root
	return root
}

func (u *unionFind) union(a, b string) {
	ra, rb := u.find(a), u.find(b)
	if ra != rb {
		u.parent[ra] = rb
	}
}
