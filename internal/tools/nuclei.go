package tools

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hakim/cybershield/internal/findings"
	"github.com/hakim/cybershield/internal/targets"
)

// NucleiResultInfo holds the template info block from nuclei JSONL output.
type NucleiResultInfo struct {
	Name        string   `json:"name"`
	Severity    string   `json:"severity"`
	Description string   `json:"description"`
	Reference   []string `json:"reference"`
	Remediation string   `json:"remediation"`
	Tags        []string `json:"tags"`
}

// NucleiResult represents one finding from nuclei's JSONL output.
type NucleiResult struct {
	TemplateID string           `json:"template-id"`
	Info       NucleiResultInfo `json:"info"`
	Type       string           `json:"type"`
	Host       string           `json:"host"`
	MatchedAt  string           `json:"matched-at"`
	IP         string           `json:"ip"`
}

// NucleiRunner drives nuclei templates as an additional web prober.
type NucleiRunner struct {
	Opts Options
}

// NewNucleiRunner returns a nuclei runner with defaults applied to opts.
func NewNucleiRunner(opts Options) *NucleiRunner {
	opts = opts.withBinary("nuclei")
	if len(opts.Args) == 0 {
		opts.Args = []string{"-silent", "-duc", "-ni"}
	}
	return &NucleiRunner{Opts: opts}
}

func (n *NucleiRunner) Name() string     { return "nuclei" }
func (n *NucleiRunner) Artifact() string { return "nuclei-report.jsonl" }

func (n *NucleiRunner) Run(ctx context.Context, target, outputPath string) (*Report, error) {
	args := append([]string{"-u", targets.URL(target), "-jsonl", "-o", outputPath}, n.Opts.Args...)
	_, runErr := RunTool(ctx, Command{Binary: n.Opts.Binary, Args: args})
	if ctx.Err() != nil {
		return nil, runErr
	}

	// nuclei creates its -o file even when no template matches, so after a
	// clean exit an empty report is a clean result.
	read := ReadArtifact
	if runErr == nil {
		read = ReadArtifactAllowEmpty
	}
	data, err := read(ctx, outputPath, n.Opts.ArtifactAttempts, n.Opts.ArtifactInterval)
	if err != nil {
		return nil, withRunError(err, runErr)
	}

	return parseNucleiReport(data)
}

// parseNucleiReport reads one finding per JSONL line. Lines that fail to
// decode are skipped. An empty file is a run with no matches; a file whose
// lines all fail to decode is an error.
func parseNucleiReport(data []byte) (*Report, error) {
	report := &Report{ServerInfo: make(map[string]string)}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	var lines, bad int
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		lines++

		var nr NucleiResult
		if err := json.Unmarshal(line, &nr); err != nil {
			bad++
			continue
		}
		if nr.IP != "" {
			report.ServerInfo["ip"] = nr.IP
		}

		location := nr.MatchedAt
		if location == "" {
			location = nr.Host
		}
		report.Findings = append(report.Findings, findings.RawFinding{
			Name:        nr.Info.Name,
			Risk:        nucleiRisk(nr.Info.Severity),
			Description: nr.Info.Description,
			URL:         location,
			Solution:    nr.Info.Remediation,
			Reference:   strings.Join(nr.Info.Reference, "\n"),
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read nuclei output: %w", err)
	}
	if lines > 0 && bad == lines {
		return nil, fmt.Errorf("nuclei output has no valid JSON lines")
	}

	return report, nil
}

// nucleiRisk maps nuclei's severity onto ZAP-style risk labels so one
// severity table serves every tool.
func nucleiRisk(severity string) string {
	switch strings.ToLower(severity) {
	case "critical", "high":
		return "High"
	case "medium":
		return "Medium"
	case "low":
		return "Low"
	default:
		return "Informational"
	}
}
