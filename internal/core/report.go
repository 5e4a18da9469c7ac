package core

import "fmt"

// Success-rate bands for the qualitative suggestion.
const (
	lowSuccessRate    = 0.5
	mediumSuccessRate = 0.8
)

// BuildReport derives the success rate and ordered suggestions: one line per
// non-empty outcome bucket, then a band message, then extra.
func BuildReport(counts Counts, timings Timings, extra []string) ImportReport {
	report := ImportReport{
		Counts:      counts,
		Timings:     timings,
		Suggestions: []string{},
	}
	if counts.TotalRows > 0 {
		report.SuccessRate = float64(counts.Imported+counts.Updated) / float64(counts.TotalRows)
	}

	buckets := []struct {
		n    int
		verb string
	}{
		{counts.Imported, "imported"},
		{counts.Updated, "updated"},
		{counts.Skipped, "skipped"},
		{counts.Failed, "failed"},
	}
	processed := 0
	for _, b := range buckets {
		processed += b.n
		if b.n > 0 {
			report.Suggestions = append(report.Suggestions,
				fmt.Sprintf("%d %s %s", b.n, plural(b.n, "row", "rows"), b.verb))
		}
	}

	if processed > 0 {
		switch rate := report.SuccessRate; {
		case rate < lowSuccessRate:
			report.Suggestions = append(report.Suggestions, "Less than half of the rows were written; check the data format")
		case rate <= mediumSuccessRate:
			report.Suggestions = append(report.Suggestions, "Some rows had problems; review the errors")
		case rate == 1:
			report.Suggestions = append(report.Suggestions, "Import fully successful")
		}
	}

	report.Suggestions = append(report.Suggestions, extra...)
	return report
}
