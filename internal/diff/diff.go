// Package diff computes the delta between two scan results of the same target.
// Findings are matched by name and location so a re-run that reports the same
// issue again is treated as unchanged even though its finding id differs.
package diff

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/hakim/cybershield/internal/models"
)

// SeverityChange is a finding present in both results whose severity moved.
type SeverityChange struct {
	Finding  models.Finding  `json:"finding"`
	Previous models.Severity `json:"previous_severity"`
}

// Result holds the complete delta between a current and a previous scan
// result. All slice fields are non-nil so callers can range over them
// unconditionally.
type Result struct {
	Target     string `json:"target"`
	CurrentID  string `json:"current_scan_id"`
	PreviousID string `json:"previous_scan_id"`

	NewFindings      []models.Finding `json:"new_findings"`
	ResolvedFindings []models.Finding `json:"resolved_findings"`
	SeverityChanges  []SeverityChange `json:"severity_changes"`

	CurrentScore   int                   `json:"current_score"`
	PreviousScore  int                   `json:"previous_score"`
	CurrentCounts  models.SeverityCounts `json:"current_counts"`
	PreviousCounts models.SeverityCounts `json:"previous_counts"`
}

// ScoreDelta is positive when the target got healthier.
func (r *Result) ScoreDelta() int {
	return r.CurrentScore - r.PreviousScore
}

// Empty reports whether nothing changed between the two results.
func (r *Result) Empty() bool {
	return len(r.NewFindings) == 0 && len(r.ResolvedFindings) == 0 && len(r.SeverityChanges) == 0
}

// Compute calculates the delta between current and previous. Synthetic
// results are compared like any other; callers that care should check
// the Synthetic flag before diffing.
func Compute(current, previous models.Result) *Result {
	dr := &Result{
		Target:           current.Target,
		CurrentID:        current.JobID,
		PreviousID:       previous.JobID,
		NewFindings:      []models.Finding{},
		ResolvedFindings: []models.Finding{},
		SeverityChanges:  []SeverityChange{},
		CurrentScore:     current.Score,
		PreviousScore:    previous.Score,
		CurrentCounts:    current.SeverityCounts,
		PreviousCounts:   previous.SeverityCounts,
	}

	prevByKey := index(previous.Findings)
	currByKey := index(current.Findings)

	// New and changed keep the current result's order
	for _, f := range current.Findings {
		prev, existed := prevByKey[findingKey(f)]
		switch {
		case !existed:
			dr.NewFindings = append(dr.NewFindings, f)
		case prev.Severity != f.Severity:
			dr.SeverityChanges = append(dr.SeverityChanges, SeverityChange{Finding: f, Previous: prev.Severity})
		}
	}

	for _, f := range previous.Findings {
		if _, exists := currByKey[findingKey(f)]; !exists {
			dr.ResolvedFindings = append(dr.ResolvedFindings, f)
		}
	}

	return dr
}

// index keeps the first finding per key; duplicates within one result
// collapse to a single entry.
func index(list []models.Finding) map[string]models.Finding {
	out := make(map[string]models.Finding, len(list))
	for _, f := range list {
		k := findingKey(f)
		if _, ok := out[k]; !ok {
			out[k] = f
		}
	}
	return out
}

// findingKey format: "name::location"
func findingKey(f models.Finding) string {
	return fmt.Sprintf("%s::%s", f.Name, f.Location)
}

// Previous picks the most recent completed job for the same target that was
// created before current. jobs may be in any order. Returns false when there
// is nothing to compare against.
func Previous(jobs []models.Job, current models.Job) (models.Job, bool) {
	var candidates []models.Job
	for _, j := range jobs {
		if j.ID == current.ID || j.Target != current.Target || j.State != models.StateCompleted {
			continue
		}
		if !j.CreatedAt.Before(current.CreatedAt) {
			continue
		}
		candidates = append(candidates, j)
	}
	if len(candidates) == 0 {
		return models.Job{}, false
	}
	return slices.MaxFunc(candidates, func(a, b models.Job) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	}), true
}
