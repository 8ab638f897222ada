package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/hakim/cybershield/internal/diff"
	"github.com/hakim/cybershield/internal/models"
)

func TestWriteDiffMarkdown(t *testing.T) {
	_, current := sample()
	previous := current.Clone()
	previous.JobID = "prev-scan"
	previous.Score = 60
	previous.Findings = append(previous.Findings[1:], models.Finding{Name: "Directory listing", Severity: models.SeverityLow, Location: "https://example.uz/static/"})
	previous.SeverityCounts = models.SeverityCounts{Medium: 1, Low: 1, Info: 1}

	var buf bytes.Buffer
	if err := WriteDiffMarkdown(&buf, diff.Compute(current, previous)); err != nil {
		t.Fatalf("WriteDiffMarkdown: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"**Previous scan:** prev-scan",
		"| Security score | 60 | 77 | +17 |",
		"| High | 0 | 1 | +1 |",
		"| Low | 1 | 0 | -1 |",
		"## New Findings (+1)",
		"- [high] SQL Injection (https://example.uz/login)",
		"## Resolved Findings (-1)",
		"- [low] Directory listing (https://example.uz/static/)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("diff markdown missing %q\n%s", want, out)
		}
	}
}

func TestWriteDiffMarkdownNoChanges(t *testing.T) {
	_, result := sample()
	var buf bytes.Buffer
	if err := WriteDiffMarkdown(&buf, diff.Compute(result, result)); err != nil {
		t.Fatalf("WriteDiffMarkdown: %v", err)
	}
	if !strings.Contains(buf.String(), "No changes detected.") {
		t.Errorf("got %q", buf.String())
	}
}
