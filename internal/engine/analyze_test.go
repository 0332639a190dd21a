package engine

import (
	"strings"
	"testing"
)

func TestParseClassification(t *testing.T) {
	full := `{"mood":"Quiet Joy","color":"#aabbcc","tags":["Rain","KITCHEN"],` +
		`"themeVector":{"emotionalCore":[{"label":"joy","weight":2},{"label":"calm","weight":1}]},` +
		`"reasoning":"it reads warm"}`

	tests := []struct {
		name     string
		content  string
		wantMood string
		wantErr  bool
	}{
		{"plain json", full, "Quiet Joy", false},
		{"fenced", "```json\n" + full + "\n```", "Quiet Joy", false},
		{"surrounded by prose", "Here is the classification:\n" + full + "\nHope that helps!", "Quiet Joy", false},
		{"missing mood falls back", `{"color":"#aabbcc","tags":["x"]}`, fallbackMood, false},
		{"no json object", "I cannot classify this.", "", true},
		{"malformed json", `{"mood": "Broken`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cand, err := parseClassification(tt.content)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseClassification: %v", err)
			}
			if cand.Mood != tt.wantMood {
				t.Errorf("mood = %q, want %q", cand.Mood, tt.wantMood)
			}
		})
	}
}

func TestParseClassificationCleansFields(t *testing.T) {
	cand, err := parseClassification(`{"mood":"Quiet Joy","color":"not-a-color",` +
		`"tags":[" Rain ","rain",""],` +
		`"themeVector":{"emotionalCore":[{"label":"joy","weight":3},{"label":"calm","weight":1}]}}`)
	if err != nil {
		t.Fatalf("parseClassification: %v", err)
	}

	if cand.Color != fallbackColor {
		t.Errorf("color = %q, want fallback", cand.Color)
	}
	if len(cand.Tags) != 1 || cand.Tags[0] != "rain" {
		t.Errorf("tags = %v", cand.Tags)
	}
	assertAxisNormalized(t, cand.Theme.EmotionalCore)
	assertAxisNormalized(t, cand.Theme.NarrativeState)
	if cand.Offline {
		t.Error("parsed candidate must not be marked offline")
	}
}

func TestParseClassificationEmptyTagsGetFallback(t *testing.T) {
	cand, err := parseClassification(`{"mood":"Quiet Joy","tags":[]}`)
	if err != nil {
		t.Fatalf("parseClassification: %v", err)
	}
	if len(cand.Tags) != len(fallbackTags) || cand.Tags[0] != fallbackTags[0] {
		t.Errorf("tags = %v, want fallback set", cand.Tags)
	}
}

func TestParseName(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"plain", "Sea-Glass", "Sea-Glass"},
		{"quoted", `"Sea-Glass"`, "Sea-Glass"},
		{"leading blank lines", "\n\n  Emberlight  \n", "Emberlight"},
		{"fenced", "```\nEmberlight\n```", "Emberlight"},
		{"multiline keeps first", "Emberlight\nbecause it is warm", "Emberlight"},
		{"empty", "   \n  ", ""},
		{"too long", strings.Repeat("x", 65), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseName(tt.content); got != tt.want {
				t.Errorf("parseName = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCleanColor(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"#aabbcc", "#aabbcc"},
		{"#AABBCC", "#AABBCC"},
		{" #aabbcc ", "#aabbcc"},
		{"aabbcc", fallbackColor},
		{"#aabbc", fallbackColor},
		{"#aabbcg", fallbackColor},
		{"", fallbackColor},
	}
	for _, tt := range tests {
		if got := cleanColor(tt.in); got != tt.want {
			t.Errorf("cleanColor(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestOfflineClassification(t *testing.T) {
	c := OfflineClassification()
	if !c.Offline {
		t.Error("placeholder must be marked offline")
	}
	if c.Mood != fallbackMood || c.Color != fallbackColor {
		t.Errorf("got %q/%q", c.Mood, c.Color)
	}
	if len(c.Tags) != 2 {
		t.Errorf("tags = %v", c.Tags)
	}
	assertAxisNormalized(t, c.Theme.EmotionalCore)
}
