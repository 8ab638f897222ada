// Package report renders completed scan results for people and for export.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"time"

	"github.com/hakim/cybershield/internal/models"
)

// Export formats
const (
	FormatJSON     = "json"
	FormatMarkdown = "md"
)

// Summary is the condensed view of a result
type Summary struct {
	URL                  string                `json:"url"`
	SecurityScore        int                   `json:"security_score"`
	SeverityCounts       models.SeverityCounts `json:"severity_counts"`
	TotalVulnerabilities int                   `json:"total_vulnerabilities"`
	ScanDate             time.Time             `json:"scan_date"`
	Analyzed             bool                  `json:"analyzed"`
}

// Summarize condenses a result. The total counts every bucketed finding,
// info included.
func Summarize(result models.Result) Summary {
	return Summary{
		URL:                  result.Target,
		SecurityScore:        result.Score,
		SeverityCounts:       result.SeverityCounts,
		TotalVulnerabilities: result.SeverityCounts.Total(),
		ScanDate:             result.CreatedAt,
		Analyzed:             result.Analyzed,
	}
}

// WriteJSON writes result as indented JSON.
func WriteJSON(w io.Writer, result models.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(result)
}

// Write renders result in the given format.
func Write(w io.Writer, format string, job models.Job, result models.Result) error {
	switch format {
	case FormatJSON:
		return WriteJSON(w, result)
	case FormatMarkdown:
		return WriteMarkdown(w, job, result)
	default:
		return fmt.Errorf("unsupported report format %q (use %s or %s)", format, FormatJSON, FormatMarkdown)
	}
}

// ExportFilename names a downloadable report, e.g.
// cybershield_report_3f2a9c1e_20250314.json
func ExportFilename(jobID, format string, at time.Time) string {
	short := jobID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("cybershield_report_%s_%s.%s", short, at.Format("20060102"), format)
}

func sortedKeys(m map[string]string) []string {
	return slices.Sorted(maps.Keys(m))
}
