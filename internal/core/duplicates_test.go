package core

import (
	"math"
	"strings"
	"testing"

	"github.com/JonMunkholm/catalogimport/internal/store"
)

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"flaw", "lawn", 2},
		{"블루보틀", "블루보틀", 0},
		{"블루보틀", "블루바틀", 1},
		{"caf\u00e9", "cafe", 1},
	}

	for _, tt := range tests {
		t.Run(tt.a+"/"+tt.b, func(t *testing.T) {
			if got := Levenshtein(tt.a, tt.b); got != tt.want {
				t.Errorf("Levenshtein(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestSimilarity(t *testing.T) {
	pairs := [][2]string{
		{"", ""},
		{"a", ""},
		{"alpha roasters", "alpha roaster"},
		{"kitten", "sitting"},
		{"블루보틀", "블루바틀"},
		{"x", "completely different"},
	}

	for _, p := range pairs {
		a, b := p[0], p[1]
		if ab, ba := Similarity(a, b), Similarity(b, a); ab != ba {
			t.Errorf("Similarity(%q, %q) = %v but Similarity(%q, %q) = %v", a, b, ab, b, a, ba)
		}
		if got := Similarity(a, a); got != 1 {
			t.Errorf("Similarity(%q, %q) = %v, want 1", a, a, got)
		}
		if got := Similarity(a, b); got < 0 || got > 1 {
			t.Errorf("Similarity(%q, %q) = %v, want within [0, 1]", a, b, got)
		}
	}

	if got := Similarity("kitten", "sitting"); math.Abs(got-(1-3.0/7.0)) > 1e-9 {
		t.Errorf("Similarity(kitten, sitting) = %v, want %v", got, 1-3.0/7.0)
	}
}

func rowsNamed(names ...string) []NormalizedRow {
	rows := make([]NormalizedRow, len(names))
	for i, n := range names {
		rows[i] = NormalizedRow{
			Line:   i + 2,
			Raw:    map[string]string{"name": n},
			Values: map[string]any{"name": n},
		}
	}
	return rows
}

func TestDetectDuplicates(t *testing.T) {
	existing := []store.Record{
		{ID: "v1", Name: "Alpha Roasters"},
		{ID: "v2", Name: "Alpha Roaster"},
		{ID: "v3", Name: "Beta Coffee Bar"},
		{ID: "v4", Name: "Gamma"},
	}

	tests := []struct {
		name string
		row  string
		want []DuplicateCandidate
	}{
		{
			name: "exact match is decisive",
			row:  "ALPHA ROASTERS",
			want: []DuplicateCandidate{
				{Row: 2, ExistingID: "v1", MatchedName: "Alpha Roasters", MatchType: MatchExact, Confidence: 100},
			},
		},
		{
			name: "similar match",
			row:  "Beta Coffee Bars",
			want: []DuplicateCandidate{
				{Row: 2, ExistingID: "v3", MatchedName: "Beta Coffee Bar", MatchType: MatchSimilar, Confidence: 94},
			},
		},
		{
			name: "several candidates",
			row:  "Alpha Roastery",
			want: []DuplicateCandidate{
				{Row: 2, ExistingID: "v1", MatchedName: "Alpha Roasters", MatchType: MatchSimilar, Confidence: 93},
				{Row: 2, ExistingID: "v2", MatchedName: "Alpha Roaster", MatchType: MatchSimilar, Confidence: 93},
			},
		},
		{
			name: "below threshold",
			row:  "Gamma Co",
			want: nil,
		},
		{
			name: "potential match",
			row:  "Gammas",
			want: []DuplicateCandidate{
				{Row: 2, ExistingID: "v4", MatchedName: "Gamma", MatchType: MatchPotential, Confidence: 83},
			},
		},
		{
			name: "no match",
			row:  "Delta",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectDuplicates(rowsNamed(tt.row), existing)
			if len(got) != len(tt.want) {
				t.Fatalf("DetectDuplicates() = %+v, want %+v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("candidate[%d] = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestDetectDuplicatesSkipsUnnamedRows(t *testing.T) {
	rows := []NormalizedRow{{Line: 2, Raw: map[string]string{}, Values: map[string]any{}}}
	if got := DetectDuplicates(rows, []store.Record{{ID: "v1", Name: ""}}); len(got) != 0 {
		t.Errorf("DetectDuplicates() = %+v, want none", got)
	}
}

func TestExactMatches(t *testing.T) {
	got := ExactMatches([]DuplicateCandidate{
		{Row: 2, ExistingID: "v1", MatchType: MatchExact},
		{Row: 3, ExistingID: "v2", MatchType: MatchSimilar},
	})
	if len(got) != 1 || got[2] != "v1" {
		t.Errorf("ExactMatches() = %v, want map[2:v1]", got)
	}
}

func TestConfidenceCapsNonExactBelow100(t *testing.T) {
	tests := []struct {
		sim  float64
		want int
	}{
		{0.81, 81},
		{0.934, 93},
		{0.995, 99},
		{0.9999, 99},
	}
	for _, tt := range tests {
		if got := confidence(tt.sim); got != tt.want {
			t.Errorf("confidence(%v) = %d, want %d", tt.sim, got, tt.want)
		}
	}

	long := strings.Repeat("a", 299)
	got := DetectDuplicates(rowsNamed(long+"b"), []store.Record{{ID: "v1", Name: long + "c"}})
	if len(got) != 1 {
		t.Fatalf("DetectDuplicates() = %+v, want one candidate", got)
	}
	if got[0].MatchType != MatchSimilar || got[0].Confidence != 99 {
		t.Errorf("candidate = %+v, want similar with confidence 99", got[0])
	}
}
