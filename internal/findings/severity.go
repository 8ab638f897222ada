package findings

import (
	"strings"

	"github.com/hakim/cybershield/internal/models"
)

// riskLabel pairs a tool risk label fragment with its severity bucket.
type riskLabel struct {
	fragment string
	severity models.Severity
}

// riskTable is matched in order against the risk part of a label; the
// first fragment it contains wins.
var riskTable = []riskLabel{
	{"High", models.SeverityHigh},
	{"Medium", models.SeverityMedium},
	{"Low", models.SeverityLow},
	{"Informational", models.SeverityInfo},
}

// MapRisk converts a tool risk label such as "Medium (High)" to a severity.
// Only the risk part before " (" is considered, so the confidence suffix
// never decides the bucket. Matching is case-sensitive; labels matching
// nothing default to low.
func MapRisk(label string) models.Severity {
	label, _, _ = strings.Cut(label, " (")
	for _, r := range riskTable {
		if strings.Contains(label, r.fragment) {
			return r.severity
		}
	}
	return models.SeverityLow
}

// CountSeverities buckets findings by their lower-cased severity label.
// Findings with an unrecognised label are left out of the histogram.
func CountSeverities(list []models.Finding) models.SeverityCounts {
	var counts models.SeverityCounts
	for _, f := range list {
		switch models.Severity(strings.ToLower(string(f.Severity))) {
		case models.SeverityHigh:
			counts.High++
		case models.SeverityMedium:
			counts.Medium++
		case models.SeverityLow:
			counts.Low++
		case models.SeverityInfo:
			counts.Info++
		}
	}
	return counts
}
