// Package enrich produces an AI-written summary and prioritized
// recommendations for a completed scan result.
package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hakim/cybershield/internal/models"
	"go.uber.org/zap"
)

const (
	DefaultTimeout     = 60 * time.Second
	DefaultMaxFindings = 20
)

var (
	errNoJSON      = errors.New("response contains no JSON object")
	errEmptyResult = errors.New("response JSON has no summary or recommendations")
)

// Analysis is the outcome of one summarization. Err is non-nil when the
// summary and recommendations are a default payload.
type Analysis struct {
	Summary         string   `json:"summary"`
	Recommendations []string `json:"recommendations"`
	Err             error    `json:"-"`
}

// Enrichment converts a into the partial result update stored by the job store
func (a Analysis) Enrichment(at time.Time) models.Enrichment {
	e := models.Enrichment{
		Summary:         a.Summary,
		Recommendations: a.Recommendations,
		At:              at,
	}
	if a.Err != nil {
		e.Err = a.Err.Error()
	}
	return e
}

func failedAnalysis(err error) Analysis {
	return Analysis{
		Summary:         "Automated analysis encountered an error and could not complete. Please review the scan results manually.",
		Recommendations: []string{"Review scan results manually", "Fix identified vulnerabilities based on severity"},
		Err:             err,
	}
}

func unformattedAnalysis(err error) Analysis {
	return Analysis{
		Summary:         "Automated analysis could not process the scan results in the expected format.",
		Recommendations: []string{"Please review the scan results manually."},
		Err:             err,
	}
}

func undecodableAnalysis(err error) Analysis {
	return Analysis{
		Summary: "The security scan identified several issues that need to be addressed.",
		Recommendations: []string{
			"Fix high severity vulnerabilities first",
			"Implement recommended security headers",
			"Update software to latest versions",
		},
		Err: err,
	}
}

// Options tunes a Client. Zero values select the defaults.
type Options struct {
	Timeout     time.Duration
	MaxFindings int
}

// Client summarizes results through a Generator
type Client struct {
	gen         Generator
	timeout     time.Duration
	maxFindings int
	logger      *zap.Logger
	now         func() time.Time
}

func NewClient(gen Generator, opts Options, logger *zap.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxFindings <= 0 {
		opts.MaxFindings = DefaultMaxFindings
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		gen:         gen,
		timeout:     opts.Timeout,
		maxFindings: opts.MaxFindings,
		logger:      logger.Named("enrich"),
		now:         time.Now,
	}
}

// Summarize never fails: on any error it returns the matching default
// payload with Err set.
func (c *Client) Summarize(ctx context.Context, result models.Result) Analysis {
	prompt, err := c.buildPrompt(result)
	if err != nil {
		return failedAnalysis(err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	text, err := c.gen.Generate(ctx, prompt)
	if err != nil {
		c.logger.Warn("generation failed", zap.String("job_id", result.JobID), zap.Error(err))
		return failedAnalysis(err)
	}

	a := ParseAnalysis(text)
	if a.Err != nil {
		c.logger.Warn("unusable analysis response", zap.String("job_id", result.JobID), zap.Error(a.Err))
	}
	return a
}

// ParseAnalysis extracts the JSON object between the first '{' and the last
// '}' of text and decodes it.
func ParseAnalysis(text string) Analysis {
	text = strings.TrimSpace(text)
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return unformattedAnalysis(errNoJSON)
	}

	var a Analysis
	if err := json.Unmarshal([]byte(text[start:end+1]), &a); err != nil {
		return undecodableAnalysis(fmt.Errorf("decoding analysis: %w", err))
	}
	if a.Summary == "" && len(a.Recommendations) == 0 {
		return undecodableAnalysis(errEmptyResult)
	}
	if a.Recommendations == nil {
		a.Recommendations = []string{}
	}
	return a
}

func (c *Client) buildPrompt(result models.Result) (string, error) {
	findings := result.Findings
	if len(findings) > c.maxFindings {
		findings = findings[:c.maxFindings]
	}
	counts, err := json.Marshal(result.SeverityCounts)
	if err != nil {
		return "", err
	}
	vulns, err := json.MarshalIndent(findings, "", "  ")
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("Analyze the following web security scan result and provide:\n")
	b.WriteString("1. A concise executive summary (maximum 2 paragraphs)\n")
	b.WriteString("2. Specific, actionable recommendations to fix the issues (ordered by priority)\n\n")
	b.WriteString("Scan details:\n")
	fmt.Fprintf(&b, "- Target URL: %s\n", result.Target)
	fmt.Fprintf(&b, "- Security Score: %d/100\n", result.Score)
	fmt.Fprintf(&b, "- Severity Counts: %s\n", counts)
	fmt.Fprintf(&b, "- Scan Date: %s\n\n", c.now().Format("2006-01-02 15:04:05"))
	if len(result.Findings) > len(findings) {
		fmt.Fprintf(&b, "Vulnerabilities (first %d of %d):\n", len(findings), len(result.Findings))
	} else {
		b.WriteString("Vulnerabilities:\n")
	}
	b.Write(vulns)
	b.WriteString("\n\nFocus on explaining the security implications and practical steps to fix the issues.\n")
	b.WriteString("Provide your response in the exact JSON format below:\n")
	b.WriteString(`{
  "summary": "Executive summary here...",
  "recommendations": ["Recommendation 1", "Recommendation 2", ...]
}`)
	b.WriteString("\n")
	return b.String(), nil
}
