package views

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/JonMunkholm/catalogimport/internal/core"
)

func TestImportReportEscapes(t *testing.T) {
	res := core.ImportResult{
		Success:  true,
		Imported: 2,
		Warnings: []core.ValidationIssue{{Row: 3, Field: "email", Message: "malformed <email> address", Severity: core.SeverityWarning}},
		Report: core.ImportReport{
			Counts:      core.Counts{Imported: 2, TotalRows: 2},
			SuccessRate: 1,
			Suggestions: []string{"Import fully successful"},
		},
	}

	var buf bytes.Buffer
	if err := ImportReport("<venues>.csv", res).Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"import-success",
		"&lt;venues&gt;.csv",
		"malformed &lt;email&gt; address",
		"<dt>Imported</dt><dd>2</dd>",
		"100.0%",
		"Import fully successful",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "<venues>") {
		t.Error("file name was not escaped")
	}
	if strings.Contains(out, `class="errors"`) {
		t.Error("errors table rendered without errors")
	}
}

func TestErrorAlert(t *testing.T) {
	var buf bytes.Buffer
	if err := ErrorAlert("File too large", "", "FILE001").Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "File too large") || !strings.Contains(out, "FILE001") {
		t.Errorf("output = %q", out)
	}
	if strings.Contains(out, "alert-action") {
		t.Error("empty action should not render")
	}
}
