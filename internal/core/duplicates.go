package core

// duplicates.go finds existing records whose names equal or resemble the
// names of incoming rows.
//
// Names are compared in folded form (NFC, single-spaced, case-folded). An
// exact folded match is decisive and stops the search for that row;
// otherwise every existing name is scored by normalized edit distance.

import (
	"math"

	"github.com/JonMunkholm/catalogimport/internal/store"
)

// Similarity bands.
const (
	SimilarThreshold   = 0.9
	PotentialThreshold = 0.8
)

// DetectDuplicates returns candidates in row order, then existing order.
func DetectDuplicates(rows []NormalizedRow, existing []store.Record) []DuplicateCandidate {
	folded := make([]string, len(existing))
	for i, r := range existing {
		folded[i] = foldKey(r.Name)
	}

	var out []DuplicateCandidate
	for _, row := range rows {
		name := foldKey(row.Text("name"))
		if name == "" {
			continue
		}

		if i := indexOf(folded, name); i >= 0 {
			out = append(out, DuplicateCandidate{
				Row:         row.Line,
				ExistingID:  existing[i].ID,
				MatchedName: existing[i].Name,
				MatchType:   MatchExact,
				Confidence:  100,
			})
			continue
		}

		for i, other := range folded {
			sim := Similarity(name, other)
			if sim <= PotentialThreshold {
				continue
			}
			match := MatchPotential
			if sim > SimilarThreshold {
				match = MatchSimilar
			}
			out = append(out, DuplicateCandidate{
				Row:         row.Line,
				ExistingID:  existing[i].ID,
				MatchedName: existing[i].Name,
				MatchType:   match,
				Confidence:  confidence(sim),
			})
		}
	}
	return out
}

// ExactMatches maps row lines to the existing record ID of their exact
// candidate.
func ExactMatches(candidates []DuplicateCandidate) map[int]string {
	out := make(map[int]string)
	for _, c := range candidates {
		if c.MatchType == MatchExact {
			out[c.Row] = c.ExistingID
		}
	}
	return out
}

// confidence rounds a non-exact similarity to a percentage below 100, which
// is reserved for exact matches.
func confidence(sim float64) int {
	c := int(math.Round(sim * 100))
	if c > 99 {
		c = 99
	}
	return c
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}

// Similarity is 1 - Levenshtein(a, b) / max(len(a), len(b)) over runes, and
// 1 when both strings are empty.
func Similarity(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	maxLen := max(la, lb)
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(Levenshtein(a, b))/float64(maxLen)
}

// Levenshtein is the rune-wise edit distance between a and b.
func Levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
