package enrich

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hakim/cybershield/internal/models"
	"go.uber.org/zap"
)

type fakeGenerator struct {
	text   string
	err    error
	prompt string
	block  bool
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.prompt = prompt
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.text, f.err
}

func sampleResult(n int) models.Result {
	r := models.Result{
		JobID:          "job-1",
		Target:         "https://example.uz",
		Score:          77,
		SeverityCounts: models.SeverityCounts{High: 1, Medium: 1},
	}
	for i := range n {
		r.Findings = append(r.Findings, models.Finding{
			ID:       "f",
			Name:     "Finding " + string(rune('A'+i%26)),
			Severity: models.SeverityLow,
		})
	}
	return r
}

func TestSummarizeSuccess(t *testing.T) {
	gen := &fakeGenerator{text: "Sure! Here you go:\n```json\n{\"summary\": \"Two issues.\", \"recommendations\": [\"Add CSP\", \"Enable HSTS\"]}\n```"}
	c := NewClient(gen, Options{}, zap.NewNop())

	a := c.Summarize(context.Background(), sampleResult(2))
	if a.Err != nil {
		t.Fatalf("Err = %v", a.Err)
	}
	if a.Summary != "Two issues." || len(a.Recommendations) != 2 {
		t.Errorf("analysis = %+v", a)
	}
	if !strings.Contains(gen.prompt, "https://example.uz") || !strings.Contains(gen.prompt, "77/100") {
		t.Errorf("prompt missing scan details:\n%s", gen.prompt)
	}

	e := a.Enrichment(time.Now())
	if e.Err != "" || e.Summary != "Two issues." {
		t.Errorf("enrichment = %+v", e)
	}
}

func TestSummarizeFallbacks(t *testing.T) {
	tests := []struct {
		name    string
		gen     *fakeGenerator
		summary string
		recs    int
	}{
		{"generator error", &fakeGenerator{err: errors.New("quota exceeded")}, "Automated analysis encountered an error", 2},
		{"no json", &fakeGenerator{text: "I cannot help with that."}, "Automated analysis could not process", 1},
		{"bad json", &fakeGenerator{text: "{summary: oops}"}, "The security scan identified several issues", 3},
		{"empty object", &fakeGenerator{text: "{}"}, "The security scan identified several issues", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClient(tt.gen, Options{}, zap.NewNop())
			a := c.Summarize(context.Background(), sampleResult(1))
			if a.Err == nil {
				t.Fatal("expected Err to be set")
			}
			if !strings.HasPrefix(a.Summary, tt.summary) {
				t.Errorf("summary = %q, want prefix %q", a.Summary, tt.summary)
			}
			if len(a.Recommendations) != tt.recs {
				t.Errorf("got %d recommendations, want %d", len(a.Recommendations), tt.recs)
			}
			if e := a.Enrichment(time.Now()); e.Err == "" {
				t.Error("enrichment Err should carry the failure")
			}
		})
	}
}

func TestSummarizeTimeout(t *testing.T) {
	c := NewClient(&fakeGenerator{block: true}, Options{Timeout: 20 * time.Millisecond}, zap.NewNop())
	a := c.Summarize(context.Background(), sampleResult(1))
	if !errors.Is(a.Err, context.DeadlineExceeded) {
		t.Errorf("Err = %v, want deadline exceeded", a.Err)
	}
}

func TestSummarizeDisabled(t *testing.T) {
	c := NewClient(Disabled{}, Options{}, zap.NewNop())
	a := c.Summarize(context.Background(), sampleResult(1))
	if !errors.Is(a.Err, ErrEnrichmentDisabled) {
		t.Errorf("Err = %v, want ErrEnrichmentDisabled", a.Err)
	}
}

func TestPromptCapsFindings(t *testing.T) {
	gen := &fakeGenerator{text: `{"summary":"ok","recommendations":[]}`}
	c := NewClient(gen, Options{MaxFindings: 3}, zap.NewNop())
	c.Summarize(context.Background(), sampleResult(10))

	if got := strings.Count(gen.prompt, `"name"`); got != 3 {
		t.Errorf("prompt contains %d findings, want 3", got)
	}
	if !strings.Contains(gen.prompt, "first 3 of 10") {
		t.Error("prompt should mention truncation")
	}
}

func TestParseAnalysisNilRecommendations(t *testing.T) {
	a := ParseAnalysis(`{"summary": "All clear."}`)
	if a.Err != nil || a.Recommendations == nil {
		t.Errorf("analysis = %+v", a)
	}
}
