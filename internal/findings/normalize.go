package findings

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hakim/cybershield/internal/models"
)

const (
	NoDescription = "No description available."
	NoRemediation = "No remediation guidance available."
)

// RawFinding is a tool-specific record before normalization. Risk carries
// the tool's own label (e.g. ZAP's "High (Medium)") and Reference the raw
// newline-delimited reference blob.
type RawFinding struct {
	Name        string
	Risk        string
	Description string
	URL         string
	Solution    string
	Reference   string
}

// Normalize maps a raw record onto the canonical finding shape.
func Normalize(raw RawFinding, source string, detectedAt time.Time) models.Finding {
	description := cleanText(raw.Description)
	if description == "" {
		description = NoDescription
	}
	remediation := cleanText(raw.Solution)
	if remediation == "" {
		remediation = NoRemediation
	}

	return models.Finding{
		ID:          uuid.New().String(),
		Name:        strings.TrimSpace(raw.Name),
		Description: description,
		Severity:    MapRisk(raw.Risk),
		Location:    strings.TrimSpace(raw.URL),
		Remediation: remediation,
		References:  splitReferences(raw.Reference),
		Source:      source,
		DetectedAt:  detectedAt,
	}
}

// NormalizeAll normalizes raw records in order, stamping them with one
// detection time.
func NormalizeAll(raws []RawFinding, source string, detectedAt time.Time) []models.Finding {
	out := make([]models.Finding, 0, len(raws))
	for _, raw := range raws {
		out = append(out, Normalize(raw, source, detectedAt))
	}
	return out
}

// splitReferences turns a newline-delimited blob into trimmed, non-empty
// entries. The result is never nil.
func splitReferences(blob string) []string {
	refs := []string{}
	for _, line := range strings.Split(cleanText(blob), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			refs = append(refs, line)
		}
	}
	return refs
}

// ZAP wraps every paragraph in <p></p>; paragraphs become lines.
var paragraphReplacer = strings.NewReplacer("</p><p>", "\n", "<p>", "", "</p>", "")

func cleanText(s string) string {
	return strings.TrimSpace(paragraphReplacer.Replace(s))
}
