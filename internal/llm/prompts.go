package llm

import (
	"fmt"
	"strings"
)

func familyList(existing []string) string {
	if len(existing) == 0 {
		return "(none yet — this is the first memory)"
	}
	return strings.Join(existing, ", ")
}

// ClassifyPrompt asks for a full emotional classification of one memory.
func ClassifyPrompt(text string, existing []string) string {
	return fmt.Sprintf(`You are classifying a short personal memory into an emotional family.

MEMORY:
%s

EXISTING FAMILIES:
%s

Choose an existing family when the memory genuinely belongs there; propose a
new evocative one-or-two-word family name when it does not. Then describe the
memory along five theme axes. Each axis takes up to 4 weighted labels, weights
summing to 1.0.

Axes:
- emotionalCore: the dominant feelings (e.g. longing, warmth, dread)
- narrativeState: where the memory sits in its story (beginning, rupture, aftermath, suspension)
- relationalFocus: who it orbits (self, parent, stranger, crowd, absence-of-person)
- temporalOrientation: its relation to time (held-past, recurring, anticipated, frozen)
- spatialIntimacy: the felt scale of its space (skin-close, room, threshold, landscape)

Return ONLY a JSON object, no other text:
{
  "mood": "family name",
  "color": "#rrggbb",
  "tags": ["up to 12 short lowercase tags"],
  "themeVector": {
    "emotionalCore": [{"label": "longing", "weight": 0.6}, {"label": "warmth", "weight": 0.4}],
    "narrativeState": [...],
    "relationalFocus": [...],
    "temporalOrientation": [...],
    "spatialIntimacy": [...]
  },
  "reasoning": "one sentence"
}`, text, familyList(existing))
}

// ProposeNamePrompt asks for an alternative family name when the suggested
// one collided with an existing family but scored too low to join it.
func ProposeNamePrompt(text string, existing []string) string {
	return fmt.Sprintf(`A short personal memory needs an emotional family name. The obvious name is
already taken by a family this memory does not resemble closely enough.

MEMORY:
%s

TAKEN NAMES (do not reuse any of these):
%s

Reply with ONLY a new one-or-two-word family name. No punctuation, no
explanation.`, text, familyList(existing))
}

// BroadenNamePrompt asks to generalize a freshly minted family name into a
// more archetypal, reusable label.
func BroadenNamePrompt(name string, existing []string) string {
	return fmt.Sprintf(`"%s" was just chosen as the name of a new emotional family of memories.
If it is overly specific, reply with a broader, more archetypal one-or-two-word
name that future memories could also belong to. If it is already archetypal,
reply with it unchanged.

Existing families for context: %s

Reply with ONLY the name. No punctuation, no explanation.`, name, familyList(existing))
}
