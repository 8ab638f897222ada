package findings

import "github.com/hakim/cybershield/internal/models"

// Penalty weights per finding. Informational findings cost nothing.
const (
	highPenalty   = 15
	mediumPenalty = 8
	lowPenalty    = 3
)

// Score computes the 0-100 security score for a severity histogram.
func Score(c models.SeverityCounts) int {
	score := 100 - (c.High*highPenalty + c.Medium*mediumPenalty + c.Low*lowPenalty)
	return max(0, min(100, score))
}
