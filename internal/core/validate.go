package core

// validate.go applies per-row rules to normalized rows.
//
// Rules run in a fixed order for each row: required fields, enumeration
// membership, parent references, contact formats, numeric ranges, and
// collisions with existing names. Only the first two produce errors; the
// rest are warnings and the row still proceeds to the reconciler.

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/catalogimport/internal/store"
)

// Snapshot is the view of the backing store a validation run sees.
// KnownParents holds the names of records a row may reference (venue names
// for products).
type Snapshot struct {
	Existing     []store.Record
	KnownParents []string
}

// ValidationResult is the validator output.
type ValidationResult struct {
	IsValid     bool              `json:"isValid" yaml:"isValid"`
	Errors      []ValidationIssue `json:"errors" yaml:"errors"`
	Warnings    []ValidationIssue `json:"warnings" yaml:"warnings"`
	Suggestions []string          `json:"suggestions" yaml:"suggestions"`
}

// ErrorRows returns the set of source lines that carry at least one error.
func (v ValidationResult) ErrorRows() map[int]bool {
	rows := make(map[int]bool, len(v.Errors))
	for _, issue := range v.Errors {
		rows[issue.Row] = true
	}
	return rows
}

// Validator checks rows against one Definition.
type Validator struct {
	def Definition
}

// NewValidator returns a validator for def.
func NewValidator(def Definition) *Validator {
	return &Validator{def: def}
}

// Validate checks every row. It never mutates rows or snap.
func (v *Validator) Validate(rows []NormalizedRow, snap Snapshot) ValidationResult {
	existing := make(map[string]bool, len(snap.Existing))
	for _, r := range snap.Existing {
		existing[foldKey(r.Name)] = true
	}
	parents := make(map[string]bool, len(snap.KnownParents))
	for _, p := range snap.KnownParents {
		parents[foldKey(p)] = true
	}

	var result ValidationResult
	collisions := 0

	for _, row := range rows {
		errs, warns := v.checkRow(row, parents)
		result.Errors = append(result.Errors, errs...)
		result.Warnings = append(result.Warnings, warns...)

		if name := row.Text("name"); name != "" && existing[foldKey(name)] {
			collisions++
			result.Warnings = append(result.Warnings, ValidationIssue{
				Row:      row.Line,
				Field:    "name",
				Value:    name,
				Message:  "name matches an existing record",
				Severity: SeverityWarning,
			})
		}
	}

	for line, first := range inFileDuplicates(v.def, rows, result.ErrorRows()) {
		result.Warnings = append(result.Warnings, ValidationIssue{
			Row:      line,
			Message:  fmt.Sprintf("same record as row %d in this file; row will be skipped", first),
			Severity: SeverityWarning,
		})
	}
	sortIssues(result.Warnings)

	result.IsValid = len(result.Errors) == 0
	if n := len(result.Errors); n > 0 {
		result.Suggestions = append(result.Suggestions, fmt.Sprintf("%d %s to fix", n, plural(n, "error", "errors")))
	}
	if collisions > 0 {
		result.Suggestions = append(result.Suggestions,
			fmt.Sprintf("%d potential %s found; choose an update policy", collisions, plural(collisions, "duplicate", "duplicates")))
	}
	return result
}

func (v *Validator) checkRow(row NormalizedRow, parents map[string]bool) (errs, warns []ValidationIssue) {
	issue := func(sev Severity, f FieldSpec, msg string) ValidationIssue {
		return ValidationIssue{Row: row.Line, Field: f.Key, Value: row.Raw[f.Key], Message: msg, Severity: sev}
	}

	// Required fields
	for _, f := range v.def.Fields {
		if !f.Required || row.Has(f.Key) {
			continue
		}
		if f.RequiredUnless != "" && row.Has(f.RequiredUnless) {
			continue
		}
		msg := f.Key + " is required"
		if f.RequiredUnless != "" {
			msg = fmt.Sprintf("%s is required unless %s is given", f.Key, f.RequiredUnless)
		}
		errs = append(errs, issue(SeverityError, f, msg))
	}

	// Enumerations
	for _, f := range v.def.Fields {
		if f.Type != FieldEnum || !row.Has(f.Key) {
			continue
		}
		if _, ok := row.Values[f.Key]; !ok {
			errs = append(errs, issue(SeverityError, f,
				fmt.Sprintf("%q is not an allowed value (allowed: %s)", row.Raw[f.Key], strings.Join(f.Enum.Values(), ", "))))
		}
	}

	// Parent references
	for _, f := range v.def.Fields {
		if f.Column != ColumnParent || !row.Has(f.Key) {
			continue
		}
		if f.RequiredUnless != "" && row.Has(f.RequiredUnless) {
			continue
		}
		if !parents[foldKey(row.Text(f.Key))] {
			warns = append(warns, issue(SeverityWarning, f,
				fmt.Sprintf("%s %q is not known yet; import it before or after this file", f.Key, row.Text(f.Key))))
		}
	}

	// Formats
	for _, f := range v.def.Fields {
		if !row.Has(f.Key) {
			continue
		}
		value, coerced := row.Values[f.Key]
		s, _ := value.(string)
		switch f.Type {
		case FieldPhone:
			if !coerced || !validPhone(s) {
				warns = append(warns, issue(SeverityWarning, f, "malformed phone number"))
			}
		case FieldEmail:
			if !validEmail(s) {
				warns = append(warns, issue(SeverityWarning, f, "malformed email address"))
			}
		case FieldURL:
			if !validURL(s) {
				warns = append(warns, issue(SeverityWarning, f, "malformed URL"))
			}
		case FieldHandle:
			if !coerced || !validHandle(s) {
				warns = append(warns, issue(SeverityWarning, f, "malformed handle"))
			}
		case FieldBool:
			if !coerced {
				warns = append(warns, issue(SeverityWarning, f, "not a recognised yes/no value; left empty"))
			}
		}
	}

	// Ranges
	for _, f := range v.def.Fields {
		if f.Type != FieldNumber || !row.Has(f.Key) {
			continue
		}
		n, ok := row.Values[f.Key].(float64)
		if !ok {
			warns = append(warns, issue(SeverityWarning, f, "expected a number; left empty"))
			continue
		}
		if f.Bounded && (n < f.Min || n > f.Max) {
			warns = append(warns, issue(SeverityWarning, f,
				fmt.Sprintf("%g is outside the range %g to %g", n, f.Min, f.Max)))
		}
	}

	return errs, warns
}

// rowKey is the folded natural key of a row, matching store.NaturalKey.
func (d Definition) rowKey(row NormalizedRow) string {
	cols := store.NaturalKey(d.Kind)
	parts := make([]string, len(cols))
	for i, col := range cols {
		parts[i] = foldKey(d.columnValue(row, col))
	}
	return strings.Join(parts, "\x1f")
}

// inFileDuplicates maps the line of each row repeating an earlier row's
// natural key to the line of that earlier row. Rows in skip are ignored.
func inFileDuplicates(def Definition, rows []NormalizedRow, skip map[int]bool) map[int]int {
	first := make(map[string]int, len(rows))
	dups := make(map[int]int)
	for _, row := range rows {
		if skip[row.Line] || row.Text("name") == "" {
			continue
		}
		k := def.rowKey(row)
		if line, ok := first[k]; ok {
			dups[row.Line] = line
			continue
		}
		first[k] = row.Line
	}
	return dups
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
