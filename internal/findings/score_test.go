package findings

import (
	"testing"

	"github.com/hakim/cybershield/internal/models"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name   string
		counts models.SeverityCounts
		want   int
	}{
		{"clean", models.SeverityCounts{}, 100},
		{"one high", models.SeverityCounts{High: 1}, 85},
		{"ten high", models.SeverityCounts{High: 10}, 0},
		{"mixed", models.SeverityCounts{High: 1, Medium: 2, Low: 3}, 100 - 15 - 16 - 9},
		{"info ignored", models.SeverityCounts{Info: 50}, 100},
		{"floor", models.SeverityCounts{High: 7, Medium: 7, Low: 7}, 0},
	}

	for _, test := range tests {
		if got := Score(test.counts); got != test.want {
			t.Errorf("%s: Score(%+v) = %d, want %d", test.name, test.counts, got, test.want)
		}
	}
}

func TestScoreMonotonic(t *testing.T) {
	for h := 0; h < 8; h++ {
		for m := 0; m < 8; m++ {
			for l := 0; l < 8; l++ {
				base := Score(models.SeverityCounts{High: h, Medium: m, Low: l})
				if base < 0 || base > 100 {
					t.Fatalf("score %d out of range for h=%d m=%d l=%d", base, h, m, l)
				}
				if Score(models.SeverityCounts{High: h + 1, Medium: m, Low: l}) > base {
					t.Fatalf("score increased with high at h=%d m=%d l=%d", h, m, l)
				}
				if Score(models.SeverityCounts{High: h, Medium: m + 1, Low: l}) > base {
					t.Fatalf("score increased with medium at h=%d m=%d l=%d", h, m, l)
				}
				if Score(models.SeverityCounts{High: h, Medium: m, Low: l + 1}) > base {
					t.Fatalf("score increased with low at h=%d m=%d l=%d", h, m, l)
				}
			}
		}
	}
}
