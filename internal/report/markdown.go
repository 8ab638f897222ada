package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hakim/cybershield/internal/models"
)

// severityOrder defines the display order for finding sections (most severe first).
var severityOrder = []models.Severity{
	models.SeverityHigh,
	models.SeverityMedium,
	models.SeverityLow,
	models.SeverityInfo,
}

var severityTitles = map[models.Severity]string{
	models.SeverityHigh:   "High",
	models.SeverityMedium: "Medium",
	models.SeverityLow:    "Low",
	models.SeverityInfo:   "Info",
}

// WriteMarkdown renders a completed job's result as a markdown report.
func WriteMarkdown(w io.Writer, job models.Job, result models.Result) error {
	var b strings.Builder
	c := result.SeverityCounts

	// Header
	b.WriteString("# Security Scan Report\n\n")
	fmt.Fprintf(&b, "**Target:** %s\n", result.Target)
	fmt.Fprintf(&b, "**Scan ID:** %s\n", result.JobID)
	fmt.Fprintf(&b, "**Date:** %s\n", result.CreatedAt.UTC().Format("2006-01-02 15:04:05 UTC"))
	if job.StartedAt != nil && job.CompletedAt != nil {
		fmt.Fprintf(&b, "**Duration:** %s\n", job.CompletedAt.Sub(*job.StartedAt).Round(time.Second))
	}
	fmt.Fprintf(&b, "**Security score:** %d/100\n", result.Score)
	fmt.Fprintf(&b,
		"**Total findings:** %d | **High:** %d | **Medium:** %d | **Low:** %d | **Info:** %d\n\n",
		len(result.Findings), c.High, c.Medium, c.Low, c.Info)

	if result.Synthetic {
		b.WriteString("> No scanner produced findings for this target; the findings below are sample data.\n\n")
	}

	// Summary
	if result.Summary != "" {
		b.WriteString("## Summary\n\n")
		b.WriteString(result.Summary)
		b.WriteString("\n\n")
		if len(result.Recommendations) > 0 {
			b.WriteString("### Recommendations\n\n")
			for i, r := range result.Recommendations {
				fmt.Fprintf(&b, "%d. %s\n", i+1, r)
			}
			b.WriteString("\n")
		}
	}

	// One section per severity in priority order
	bySeverity := findingsBySeverity(result.Findings)
	for _, sev := range severityOrder {
		fmt.Fprintf(&b, "## %s Findings\n\n", severityTitles[sev])

		list := bySeverity[sev]
		if len(list) == 0 {
			fmt.Fprintf(&b, "No %s findings.\n\n", sev)
			continue
		}

		b.WriteString("| Name | Location | Source |\n")
		b.WriteString("|------|----------|--------|\n")
		for _, f := range list {
			fmt.Fprintf(&b, "| %s | %s | %s |\n", cell(f.Name), cell(f.Location), cell(f.Source))
		}
		b.WriteString("\n")

		for _, f := range list {
			fmt.Fprintf(&b, "### %s\n\n", f.Name)
			fmt.Fprintf(&b, "%s\n\n", f.Description)
			fmt.Fprintf(&b, "**Remediation:** %s\n\n", f.Remediation)
			if len(f.References) > 0 {
				b.WriteString("**References:**\n")
				for _, ref := range f.References {
					fmt.Fprintf(&b, "- %s\n", ref)
				}
				b.WriteString("\n")
			}
		}
	}

	// Server details
	if len(result.ServerInfo) > 0 {
		b.WriteString("## Server Information\n\n")
		b.WriteString("| Key | Value |\n")
		b.WriteString("|-----|-------|\n")
		for _, k := range sortedKeys(result.ServerInfo) {
			fmt.Fprintf(&b, "| %s | %s |\n", cell(k), cell(result.ServerInfo[k]))
		}
		b.WriteString("\n")
	}

	// Tool runs
	if len(result.Tools) > 0 {
		b.WriteString("## Tools\n\n")
		b.WriteString("| Tool | Status | Findings | Elapsed |\n")
		b.WriteString("|------|--------|----------|---------|\n")
		for _, t := range result.Tools {
			status := "ok"
			if !t.OK {
				status = "failed: " + t.Error
			}
			fmt.Fprintf(&b, "| %s | %s | %d | %s |\n", t.Name, cell(status), t.Findings, t.Elapsed.Round(time.Millisecond))
		}
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// findingsBySeverity partitions findings into a map keyed by severity.
func findingsBySeverity(list []models.Finding) map[models.Severity][]models.Finding {
	groups := make(map[models.Severity][]models.Finding)
	for _, f := range list {
		groups[f.Severity] = append(groups[f.Severity], f)
	}
	return groups
}

// cell makes s safe inside a markdown table cell
func cell(s string) string {
	if s == "" {
		return "-"
	}
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
