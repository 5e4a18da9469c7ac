// Package views renders HTML partials for HTMX callers.
package views

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/JonMunkholm/catalogimport/internal/core"
	"github.com/a-h/templ"
)

// ErrorAlert renders an error banner with the user message and its code.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<div class="alert alert-error" role="alert">`)
		fmt.Fprintf(&b, `<p class="alert-message">%s</p>`, templ.EscapeString(message))
		if action != "" {
			fmt.Fprintf(&b, `<p class="alert-action">%s</p>`, templ.EscapeString(action))
		}
		fmt.Fprintf(&b, `<span class="alert-code">%s</span>`, templ.EscapeString(code))
		b.WriteString(`</div>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

// ImportReport renders the outcome of one import run.
func ImportReport(fileName string, res core.ImportResult) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		status := "success"
		if !res.Success {
			status = "failed"
		}
		fmt.Fprintf(&b, `<section class="import-report import-%s">`, status)
		fmt.Fprintf(&b, `<h2>%s</h2>`, templ.EscapeString(fileName))

		b.WriteString(`<dl class="counts">`)
		for _, c := range []struct {
			label string
			n     int
		}{
			{"Imported", res.Imported},
			{"Updated", res.Updated},
			{"Skipped", res.Skipped},
			{"Failed", res.Failed},
			{"Total", res.Report.TotalRows},
		} {
			fmt.Fprintf(&b, `<dt>%s</dt><dd>%d</dd>`, c.label, c.n)
		}
		b.WriteString(`</dl>`)
		fmt.Fprintf(&b, `<p class="rate">%.1f%% in %d ms</p>`, res.Report.SuccessRate*100, res.Report.Timings.TotalMs)

		writeIssues(&b, "errors", res.Errors)
		writeIssues(&b, "warnings", res.Warnings)

		if len(res.Report.Suggestions) > 0 {
			b.WriteString(`<ul class="suggestions">`)
			for _, s := range res.Report.Suggestions {
				fmt.Fprintf(&b, `<li>%s</li>`, templ.EscapeString(s))
			}
			b.WriteString(`</ul>`)
		}
		b.WriteString(`</section>`)

		_, err := io.WriteString(w, b.String())
		return err
	})
}

func writeIssues(b *strings.Builder, class string, issues []core.ValidationIssue) {
	if len(issues) == 0 {
		return
	}
	fmt.Fprintf(b, `<table class="%s"><thead><tr><th>Row</th><th>Field</th><th>Message</th></tr></thead><tbody>`, class)
	for _, issue := range issues {
		fmt.Fprintf(b, `<tr class="severity-%s"><td>%d</td><td>%s</td><td>%s</td></tr>`,
			issue.Severity, issue.Row, templ.EscapeString(issue.Field), templ.EscapeString(issue.Message))
	}
	b.WriteString(`</tbody></table>`)
}
