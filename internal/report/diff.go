package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/hakim/cybershield/internal/diff"
	"github.com/hakim/cybershield/internal/models"
)

// WriteDiffMarkdown renders the delta between two scans of one target.
func WriteDiffMarkdown(w io.Writer, dr *diff.Result) error {
	var b strings.Builder

	b.WriteString("# Scan Diff Report\n\n")
	fmt.Fprintf(&b, "**Target:** %s\n", dr.Target)
	fmt.Fprintf(&b, "**Current scan:** %s\n", dr.CurrentID)
	fmt.Fprintf(&b, "**Previous scan:** %s\n\n", dr.PreviousID)

	if dr.Empty() {
		b.WriteString("No changes detected.\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	writeDiffSummaryTable(&b, dr)
	writeFindingList(&b, "New Findings", "+", dr.NewFindings)
	writeFindingList(&b, "Resolved Findings", "-", dr.ResolvedFindings)

	if len(dr.SeverityChanges) > 0 {
		fmt.Fprintf(&b, "## Severity Changes (%d)\n\n", len(dr.SeverityChanges))
		b.WriteString("| Finding | Location | Previous | Current |\n")
		b.WriteString("|---------|----------|----------|---------|\n")
		for _, sc := range dr.SeverityChanges {
			fmt.Fprintf(&b, "| %s | %s | %s | %s |\n",
				cell(sc.Finding.Name), cell(sc.Finding.Location), sc.Previous, sc.Finding.Severity)
		}
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func writeDiffSummaryTable(b *strings.Builder, dr *diff.Result) {
	b.WriteString("## Summary\n\n")
	b.WriteString("| Category | Previous | Current | Change |\n")
	b.WriteString("|----------|----------|---------|--------|\n")
	fmt.Fprintf(b, "| Security score | %d | %d | %s |\n", dr.PreviousScore, dr.CurrentScore, signed(dr.ScoreDelta()))

	prev, curr := dr.PreviousCounts, dr.CurrentCounts
	rows := []struct {
		sev        models.Severity
		prev, curr int
	}{
		{models.SeverityHigh, prev.High, curr.High},
		{models.SeverityMedium, prev.Medium, curr.Medium},
		{models.SeverityLow, prev.Low, curr.Low},
		{models.SeverityInfo, prev.Info, curr.Info},
	}
	for _, r := range rows {
		fmt.Fprintf(b, "| %s | %d | %d | %s |\n", severityTitles[r.sev], r.prev, r.curr, signed(r.curr-r.prev))
	}
	b.WriteString("\n")
}

// writeFindingList renders one added/removed section. Skipped when empty.
func writeFindingList(b *strings.Builder, title, mark string, list []models.Finding) {
	if len(list) == 0 {
		return
	}
	fmt.Fprintf(b, "## %s (%s%d)\n\n", title, mark, len(list))
	for _, f := range list {
		if f.Location != "" {
			fmt.Fprintf(b, "- [%s] %s (%s)\n", f.Severity, f.Name, f.Location)
		} else {
			fmt.Fprintf(b, "- [%s] %s\n", f.Severity, f.Name)
		}
	}
	b.WriteString("\n")
}

// signed formats n with an explicit sign, or "none" for zero.
func signed(n int) string {
	if n == 0 {
		return "none"
	}
	return fmt.Sprintf("%+d", n)
}
