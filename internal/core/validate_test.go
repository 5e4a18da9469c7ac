package core

import (
	"strings"
	"testing"

	"github.com/JonMunkholm/catalogimport/internal/store"
)

func normalizeText(t *testing.T, kind store.Collection, text string) []NormalizedRow {
	t.Helper()
	n := NewNormalizer(mustDefinition(t, kind))
	res := Parser{Resolve: n.Canonical}.Parse(text)
	if res.Critical() {
		t.Fatalf("Parse() critical: %v", res.Issues)
	}
	return n.Rows(res.Rows)
}

func hasIssue(issues []ValidationIssue, row int, field, contains string) bool {
	for _, issue := range issues {
		if issue.Row == row && issue.Field == field && strings.Contains(issue.Message, contains) {
			return true
		}
	}
	return false
}

func TestValidateVenues(t *testing.T) {
	tests := []struct {
		name      string
		csv       string
		snap      Snapshot
		wantValid bool
		wantErr   []string // "row:field:substring"
		wantWarn  []string
	}{
		{
			name:      "valid row",
			csv:       "name,type,address\nAlpha Roasters,roastery,12 Main St\n",
			wantValid: true,
		},
		{
			name:      "missing type",
			csv:       "name,type,address\nAlpha,,1 Main St\n",
			wantValid: false,
			wantErr:   []string{"2:type:type is required"},
		},
		{
			name:      "missing column counts as missing value",
			csv:       "name,address\nAlpha,1 Main St\n",
			wantValid: false,
			wantErr:   []string{"2:type:type is required"},
		},
		{
			name:      "unknown type",
			csv:       "name,type,address\nAlpha,library,1 Main St\n",
			wantValid: false,
			wantErr:   []string{"2:type:not an allowed value"},
		},
		{
			name:      "malformed contacts are warnings",
			csv:       "name,type,address,phone,email,website,instagram\nAlpha,cafe,1 Main St,12,not-an-email,http://bad host,@has space\n",
			wantValid: true,
			wantWarn: []string{
				"2:phone:malformed phone",
				"2:email:malformed email",
				"2:website:malformed URL",
				"2:instagram:malformed handle",
			},
		},
		{
			name:      "unknown boolean is a warning",
			csv:       "name,type,address,wifi\nAlpha,cafe,1 Main St,sometimes\n",
			wantValid: true,
			wantWarn:  []string{"2:wifi:yes/no"},
		},
		{
			name:      "existing name collision",
			csv:       "name,type,address\nalpha roasters,cafe,1 Main St\n",
			snap:      Snapshot{Existing: []store.Record{{ID: "v1", Name: "Alpha Roasters"}}},
			wantValid: true,
			wantWarn:  []string{"2:name:matches an existing record"},
		},
		{
			name:      "repeated row in file",
			csv:       "name,type,address\nAlpha,cafe,1 Main St\nALPHA,bar,1 main st\n",
			wantValid: true,
			wantWarn:  []string{"3::same record as row 2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := normalizeText(t, store.Venues, tt.csv)
			got := NewValidator(mustDefinition(t, store.Venues)).Validate(rows, tt.snap)

			if got.IsValid != tt.wantValid {
				t.Errorf("IsValid = %v, want %v (errors %v)", got.IsValid, tt.wantValid, got.Errors)
			}
			if len(got.Errors) != len(tt.wantErr) {
				t.Errorf("len(Errors) = %d, want %d: %v", len(got.Errors), len(tt.wantErr), got.Errors)
			}
			for _, want := range tt.wantErr {
				p := strings.SplitN(want, ":", 3)
				if !hasIssue(got.Errors, atoi(t, p[0]), p[1], p[2]) {
					t.Errorf("Errors = %v, want %q", got.Errors, want)
				}
			}
			for _, want := range tt.wantWarn {
				p := strings.SplitN(want, ":", 3)
				if !hasIssue(got.Warnings, atoi(t, p[0]), p[1], p[2]) {
					t.Errorf("Warnings = %v, want %q", got.Warnings, want)
				}
			}
			if len(tt.wantWarn) == 0 && len(got.Warnings) != 0 {
				t.Errorf("Warnings = %v, want none", got.Warnings)
			}
			for _, issue := range got.Errors {
				if issue.Severity != SeverityError {
					t.Errorf("error issue severity = %q", issue.Severity)
				}
			}
		})
	}
}

func TestValidateProducts(t *testing.T) {
	snap := Snapshot{KnownParents: []string{"Alpha Roasters"}}

	tests := []struct {
		name      string
		csv       string
		wantValid bool
		wantErr   []string
		wantWarn  []string
	}{
		{
			name:      "valid product",
			csv:       "name,roast_level,venue,acidity,cupping_score\nGuji,light,alpha roasters,4,88\n",
			wantValid: true,
		},
		{
			name:      "unknown venue is only a warning",
			csv:       "name,roast_level,venue\nGuji,light,Beta Cafe\n",
			wantValid: true,
			wantWarn:  []string{"2:venue:not known yet"},
		},
		{
			name:      "venue id overrides reference check",
			csv:       "name,roast_level,venue,venue_id\nGuji,light,Beta Cafe,v-99\n",
			wantValid: true,
		},
		{
			name:      "venue id satisfies required venue",
			csv:       "name,roast_level,venue_id\nGuji,light,v-99\n",
			wantValid: true,
		},
		{
			name:      "missing venue and venue id",
			csv:       "name,roast_level\nGuji,light\n",
			wantValid: false,
			wantErr:   []string{"2:venue:required unless venue_id"},
		},
		{
			name:      "out of range scores",
			csv:       "name,roast_level,venue,acidity,cupping_score,price\nGuji,light,Alpha Roasters,6,101,-1\n",
			wantValid: true,
			wantWarn: []string{
				"2:acidity:outside the range 1 to 5",
				"2:cupping_score:outside the range 0 to 100",
				"2:price:outside the range",
			},
		},
		{
			name:      "unparseable number",
			csv:       "name,roast_level,venue,body\nGuji,light,Alpha Roasters,heavy\n",
			wantValid: true,
			wantWarn:  []string{"2:body:expected a number"},
		},
		{
			name:      "unknown roast is an error",
			csv:       "name,roast_level,venue\nGuji,burnt,Alpha Roasters\n",
			wantValid: false,
			wantErr:   []string{"2:roast_level:not an allowed value"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := normalizeText(t, store.Products, tt.csv)
			got := NewValidator(mustDefinition(t, store.Products)).Validate(rows, snap)

			if got.IsValid != tt.wantValid {
				t.Errorf("IsValid = %v, want %v (errors %v)", got.IsValid, tt.wantValid, got.Errors)
			}
			for _, want := range tt.wantErr {
				p := strings.SplitN(want, ":", 3)
				if !hasIssue(got.Errors, atoi(t, p[0]), p[1], p[2]) {
					t.Errorf("Errors = %v, want %q", got.Errors, want)
				}
			}
			for _, want := range tt.wantWarn {
				p := strings.SplitN(want, ":", 3)
				if !hasIssue(got.Warnings, atoi(t, p[0]), p[1], p[2]) {
					t.Errorf("Warnings = %v, want %q", got.Warnings, want)
				}
			}
			if len(tt.wantWarn) == 0 && len(got.Warnings) != 0 {
				t.Errorf("Warnings = %v, want none", got.Warnings)
			}
		})
	}
}

func TestValidateSuggestions(t *testing.T) {
	csv := "name,type,address\nAlpha,,1 Main St\nBeta,library,2 Main St\nGamma,cafe,3 Main St\n"
	rows := normalizeText(t, store.Venues, csv)
	snap := Snapshot{Existing: []store.Record{{ID: "v1", Name: "Gamma"}}}

	got := NewValidator(mustDefinition(t, store.Venues)).Validate(rows, snap)

	want := []string{
		"2 errors to fix",
		"1 potential duplicate found; choose an update policy",
	}
	if len(got.Suggestions) != len(want) {
		t.Fatalf("Suggestions = %q, want %q", got.Suggestions, want)
	}
	for i := range want {
		if got.Suggestions[i] != want[i] {
			t.Errorf("Suggestions[%d] = %q, want %q", i, got.Suggestions[i], want[i])
		}
	}
}

func atoi(t *testing.T, s string) int {
	t.Helper()
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			t.Fatalf("bad row number %q", s)
		}
		n = n*10 + int(r-'0')
	}
	return n
}
