package core

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/JonMunkholm/catalogimport/internal/store"
)

// Severity grades a ValidationIssue.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// ValidationIssue is one problem found while importing. Row is the 1-based
// source line number; 0 means the issue is not tied to a row.
type ValidationIssue struct {
	Row      int      `json:"row" yaml:"row"`
	Field    string   `json:"field,omitempty" yaml:"field,omitempty"`
	Value    string   `json:"value,omitempty" yaml:"value,omitempty"`
	Message  string   `json:"message" yaml:"message"`
	Severity Severity `json:"severity" yaml:"severity"`
}

func (i ValidationIssue) Error() string {
	if i.Field != "" {
		return fmt.Sprintf("row %d: %s: %s", i.Row, i.Field, i.Message)
	}
	return fmt.Sprintf("row %d: %s", i.Row, i.Message)
}

// sortIssues orders issues by row, keeping the relative order of issues on
// the same row.
func sortIssues(issues []ValidationIssue) {
	sort.SliceStable(issues, func(i, j int) bool {
		return issues[i].Row < issues[j].Row
	})
}

// RawRow is one logical row decoded from the input, keyed by canonical
// column key. A nil value means the row had no cell for that column.
type RawRow struct {
	Line   int
	Values map[string]*string
}

// Get returns the cell for key and whether it was present.
func (r RawRow) Get(key string) (string, bool) {
	v, ok := r.Values[key]
	if !ok || v == nil {
		return "", false
	}
	return *v, true
}

// MatchType is the confidence band of a duplicate candidate.
type MatchType string

const (
	MatchExact     MatchType = "exact"
	MatchSimilar   MatchType = "similar"
	MatchPotential MatchType = "potential"
)

// DuplicateCandidate links an incoming row to an existing record whose name
// is equal or close to the row's name.
type DuplicateCandidate struct {
	Row         int       `json:"row" yaml:"row"`
	ExistingID  string    `json:"existingId" yaml:"existingId"`
	MatchedName string    `json:"matchedName" yaml:"matchedName"`
	MatchType   MatchType `json:"matchType" yaml:"matchType"`
	Confidence  int       `json:"confidence" yaml:"confidence"`
}

// Action is the reconciliation outcome for a row.
type Action string

const (
	ActionInsert Action = "insert"
	ActionUpdate Action = "update"
	ActionSkip   Action = "skip"
	ActionFail   Action = "fail"
)

// Decision is the per-row reconciliation result. ExistingID is set for
// ActionUpdate.
type Decision struct {
	Row        int
	Action     Action
	ExistingID string
	Reason     string
}

// Options controls one import run.
type Options struct {
	Kind           store.Collection `json:"type"`
	UpdateExisting bool             `json:"updateExisting"`
	SkipDuplicates bool             `json:"skipDuplicates"`
	ValidateOnly   bool             `json:"validateOnly"`

	// Logger overrides the importer's logger for this run, so callers can
	// attach request-scoped fields.
	Logger *slog.Logger `json:"-"`
}

// DefaultOptions skips exact duplicates and writes everything else.
func DefaultOptions(kind store.Collection) Options {
	return Options{Kind: kind, SkipDuplicates: true}
}

// File is the input to an import run.
type File struct {
	Name    string
	Content string
}

// Counts are the per-outcome row counters of a run.
type Counts struct {
	Imported  int `json:"imported" yaml:"imported"`
	Updated   int `json:"updated" yaml:"updated"`
	Skipped   int `json:"skipped" yaml:"skipped"`
	Failed    int `json:"failed" yaml:"failed"`
	TotalRows int `json:"totalRows" yaml:"totalRows"`
}

// Timings split a run's wall time into its phases, in milliseconds.
type Timings struct {
	ValidationMs int64 `json:"validationMs" yaml:"validationMs"`
	ImportMs     int64 `json:"importMs" yaml:"importMs"`
	TotalMs      int64 `json:"totalMs" yaml:"totalMs"`
}

// NewTimings converts phase durations to a Timings value.
func NewTimings(validation, imp, total time.Duration) Timings {
	return Timings{
		ValidationMs: validation.Milliseconds(),
		ImportMs:     imp.Milliseconds(),
		TotalMs:      total.Milliseconds(),
	}
}

// ImportReport is the aggregate summary of a run.
type ImportReport struct {
	Counts      `yaml:",inline"`
	Timings     Timings  `json:"timings" yaml:"timings"`
	SuccessRate float64  `json:"successRate" yaml:"successRate"`
	Suggestions []string `json:"suggestions" yaml:"suggestions"`
}

// ImportResult is the only value returned to callers of an import.
type ImportResult struct {
	Success    bool                 `json:"success" yaml:"success"`
	Imported   int                  `json:"imported" yaml:"imported"`
	Updated    int                  `json:"updated" yaml:"updated"`
	Skipped    int                  `json:"skipped" yaml:"skipped"`
	Failed     int                  `json:"failed" yaml:"failed"`
	Errors     []ValidationIssue    `json:"errors" yaml:"errors"`
	Warnings   []ValidationIssue    `json:"warnings" yaml:"warnings"`
	Duplicates []DuplicateCandidate `json:"duplicates" yaml:"duplicates"`
	Report     ImportReport         `json:"report" yaml:"report"`
}

// Criticals returns the critical issues of the result, which are carried in
// Errors alongside row-level errors.
func (r ImportResult) Criticals() []ValidationIssue {
	var out []ValidationIssue
	for _, issue := range r.Errors {
		if issue.Severity == SeverityCritical {
			out = append(out, issue)
		}
	}
	return out
}
