package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hakim/cybershield/internal/findings"
	"github.com/hakim/cybershield/internal/targets"
)

// zapReport mirrors the traditional JSON report written by ZAP's quick scan.
type zapReport struct {
	Created string    `json:"created"`
	Sites   []zapSite `json:"site"`
}

type zapSite struct {
	Name   string     `json:"@name"`
	Host   string     `json:"@host"`
	Port   string     `json:"@port"`
	SSL    string     `json:"@ssl"`
	Alerts []zapAlert `json:"alerts"`
}

type zapAlert struct {
	PluginID  string        `json:"pluginid"`
	Alert     string        `json:"alert"`
	Name      string        `json:"name"`
	RiskCode  string        `json:"riskcode"`
	RiskDesc  string        `json:"riskdesc"`
	Desc      string        `json:"desc"`
	Solution  string        `json:"solution"`
	Reference string        `json:"reference"`
	CWEID     string        `json:"cweid"`
	Instances []zapInstance `json:"instances"`
}

type zapInstance struct {
	URI    string `json:"uri"`
	Method string `json:"method"`
	Param  string `json:"param"`
}

// ZapRunner drives the OWASP ZAP quick scan as the web-vulnerability prober.
type ZapRunner struct {
	Opts Options
}

// NewZapRunner returns a ZAP runner with defaults applied to opts.
func NewZapRunner(opts Options) *ZapRunner {
	return &ZapRunner{Opts: opts.withBinary("zap.sh")}
}

func (z *ZapRunner) Name() string     { return "zap" }
func (z *ZapRunner) Artifact() string { return "zap-report.json" }

func (z *ZapRunner) Run(ctx context.Context, target, outputPath string) (*Report, error) {
	args := append([]string{
		"-cmd",
		"-quickurl", targets.URL(target),
		"-quickout", outputPath,
		"-quickprogress",
	}, z.Opts.Args...)

	_, runErr := RunTool(ctx, Command{Binary: z.Opts.Binary, Args: args})
	if ctx.Err() != nil {
		return nil, runErr
	}

	data, err := ReadArtifact(ctx, outputPath, z.Opts.ArtifactAttempts, z.Opts.ArtifactInterval)
	if err != nil {
		return nil, withRunError(err, runErr)
	}

	return parseZapReport(data)
}

// parseZapReport flattens the site -> alerts tree. Each alert becomes one
// raw finding located at its first instance.
func parseZapReport(data []byte) (*Report, error) {
	var r zapReport
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("unmarshal zap json: %w", err)
	}

	report := &Report{ServerInfo: make(map[string]string)}
	for _, site := range r.Sites {
		if _, seen := report.ServerInfo["host"]; !seen && site.Host != "" {
			report.ServerInfo["host"] = site.Host
			report.ServerInfo["port"] = site.Port
			report.ServerInfo["ssl"] = site.SSL
		}

		for _, a := range site.Alerts {
			name := a.Name
			if name == "" {
				name = a.Alert
			}
			location := site.Name
			if len(a.Instances) > 0 && a.Instances[0].URI != "" {
				location = a.Instances[0].URI
			}

			report.Findings = append(report.Findings, findings.RawFinding{
				Name:        name,
				Risk:        a.RiskDesc,
				Description: a.Desc,
				URL:         location,
				Solution:    a.Solution,
				Reference:   a.Reference,
			})
		}
	}

	return report, nil
}
