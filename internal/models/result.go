package models

import (
	"maps"
	"slices"
	"time"
)

// ToolRun records how one tool runner contributed to a result
type ToolRun struct {
	Name     string        `json:"name"`
	OK       bool          `json:"ok"`
	Findings int           `json:"findings"`
	Error    string        `json:"error,omitempty"`
	Elapsed  time.Duration `json:"elapsed"`
}

// Result is the aggregated outcome of a completed job
type Result struct {
	JobID          string            `json:"scan_id"`
	Target         string            `json:"url"`
	Findings       []Finding         `json:"vulnerabilities"`
	SeverityCounts SeverityCounts    `json:"severity_counts"`
	Score          int               `json:"security_score"`
	ServerInfo     map[string]string `json:"server_info"`
	Tools          []ToolRun         `json:"tools,omitempty"`
	Synthetic      bool              `json:"synthetic"`
	CreatedAt      time.Time         `json:"created_at"`

	Summary         string     `json:"summary,omitempty"`
	Recommendations []string   `json:"recommendations,omitempty"`
	Analyzed        bool       `json:"analyzed"`
	AnalysisError   string     `json:"analysis_error,omitempty"`
	AnalyzedAt      *time.Time `json:"analyzed_at,omitempty"`
}

// Enrichment is the partial update applied to a result once the
// summarization call returns.
type Enrichment struct {
	Summary         string
	Recommendations []string
	Err             string
	At              time.Time
}

// Apply merges e into r without touching any non-enrichment field.
func (r *Result) Apply(e Enrichment) {
	r.Summary = e.Summary
	r.Recommendations = slices.Clone(e.Recommendations)
	r.Analyzed = e.Err == ""
	r.AnalysisError = e.Err
	at := e.At
	r.AnalyzedAt = &at
}

// Clone returns a copy of r that shares no mutable state with it.
func (r Result) Clone() Result {
	out := r
	out.Findings = make([]Finding, len(r.Findings))
	for i, f := range r.Findings {
		f.References = slices.Clone(f.References)
		out.Findings[i] = f
	}
	out.ServerInfo = maps.Clone(r.ServerInfo)
	out.Tools = slices.Clone(r.Tools)
	out.Recommendations = slices.Clone(r.Recommendations)
	if r.AnalyzedAt != nil {
		at := *r.AnalyzedAt
		out.AnalyzedAt = &at
	}
	return out
}
