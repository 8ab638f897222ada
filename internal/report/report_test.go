package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/hakim/cybershield/internal/models"
)

func sample() (models.Job, models.Result) {
	start := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	end := start.Add(95 * time.Second)
	job := models.Job{ID: "3f2a9c1e-1111-2222-3333-444455556666", Target: "https://example.uz", State: models.StateCompleted, StartedAt: &start, CompletedAt: &end}
	result := models.Result{
		JobID:  job.ID,
		Target: job.Target,
		Findings: []models.Finding{
			{Name: "SQL Injection", Severity: models.SeverityHigh, Location: "https://example.uz/login", Description: "Injectable id parameter.", Remediation: "Use bound parameters.", References: []string{"https://owasp.org/www-community/attacks/SQL_Injection"}, Source: "zap"},
			{Name: "Open port 22/tcp (ssh)", Severity: models.SeverityMedium, Source: "nmap", Description: "d", Remediation: "r"},
			{Name: "Tech | Detect", Severity: models.SeverityInfo, Source: "nuclei", Description: "d", Remediation: "r"},
		},
		SeverityCounts:  models.SeverityCounts{High: 1, Medium: 1, Info: 1},
		Score:           77,
		ServerInfo:      map[string]string{"server": "nginx 1.25", "ip": "203.0.113.7"},
		Tools:           []models.ToolRun{{Name: "zap", OK: true, Findings: 1}, {Name: "nuclei", Error: "timed out"}},
		CreatedAt:       end,
		Summary:         "One critical injection flaw.",
		Recommendations: []string{"Fix SQL injection", "Restrict SSH"},
		Analyzed:        true,
	}
	return job, result
}

func TestWriteMarkdown(t *testing.T) {
	job, result := sample()
	var buf bytes.Buffer
	if err := WriteMarkdown(&buf, job, result); err != nil {
		t.Fatalf("WriteMarkdown: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"**Target:** https://example.uz",
		"**Security score:** 77/100",
		"**Duration:** 1m35s",
		"1. Fix SQL injection",
		"## High Findings",
		"| SQL Injection | https://example.uz/login | zap |",
		"No low findings.",
		`Tech \| Detect`,
		"| ip | 203.0.113.7 |",
		"failed: timed out",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
	if strings.Index(out, "## High Findings") > strings.Index(out, "## Medium Findings") {
		t.Error("severity sections out of order")
	}
}

func TestSummarizeAndJSON(t *testing.T) {
	_, result := sample()
	s := Summarize(result)
	if s.TotalVulnerabilities != 3 || s.SecurityScore != 77 || s.URL != "https://example.uz" {
		t.Errorf("summary = %+v", s)
	}

	var buf bytes.Buffer
	if err := WriteJSON(&buf, result); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded["security_score"] != float64(77) || decoded["url"] != "https://example.uz" {
		t.Errorf("decoded = %v", decoded)
	}
}

func TestWriteUnknownFormat(t *testing.T) {
	job, result := sample()
	if err := Write(&bytes.Buffer{}, "pdf", job, result); err == nil {
		t.Error("expected error for pdf")
	}
}

func TestExportFilename(t *testing.T) {
	got := ExportFilename("3f2a9c1e-1111-2222-3333-444455556666", FormatJSON, time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC))
	if got != "cybershield_report_3f2a9c1e_20250314.json" {
		t.Errorf("ExportFilename = %q", got)
	}
}
