package tools

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/hakim/cybershield/internal/findings"
	"github.com/hakim/cybershield/internal/models"
	"go.uber.org/zap"
)

// DefaultTimeout bounds a single tool invocation.
const DefaultTimeout = 300 * time.Second

var errNoReport = errors.New("runner returned no report")

// Report is what a runner extracted from its tool's artifact.
type Report struct {
	Findings   []findings.RawFinding
	ServerInfo map[string]string
}

// Runner adapts one external analysis tool. Run must honour ctx and write
// the tool's structured output to outputPath.
type Runner interface {
	Name() string
	// Artifact is the file name the tool writes its report to.
	Artifact() string
	Run(ctx context.Context, target, outputPath string) (*Report, error)
}

// Output is the normalized contribution of one runner to a job.
type Output struct {
	Tool       string
	Findings   []models.Finding
	ServerInfo map[string]string
	Err        error
	Elapsed    time.Duration
}

// ToolRun converts o into the summary stored on a result.
func (o Output) ToolRun() models.ToolRun {
	run := models.ToolRun{
		Name:     o.Tool,
		OK:       o.Err == nil,
		Findings: len(o.Findings),
		Elapsed:  o.Elapsed,
	}
	if o.Err != nil {
		run.Error = o.Err.Error()
	}
	return run
}

// Invoke runs r against target under timeout. It never returns an error:
// a timeout, tool failure or unreadable artifact yields ok=false and no
// findings, with the cause kept in Output.Err.
func Invoke(ctx context.Context, r Runner, target, workDir string, timeout time.Duration, logger *zap.Logger) (Output, bool) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out := Output{Tool: r.Name()}
	outputPath := filepath.Join(workDir, r.Artifact())
	log := logger.With(zap.String("tool", r.Name()), zap.String("target", target))
	log.Debug("tool started", zap.String("artifact", outputPath), zap.Duration("timeout", timeout))

	start := time.Now()
	report, err := r.Run(runCtx, target, outputPath)
	out.Elapsed = time.Since(start)

	if err == nil && report == nil {
		err = errNoReport
	}
	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%s timed out after %s: %w", r.Name(), timeout, err)
		}
		out.Err = err
		log.Warn("tool produced no findings", zap.Error(err), zap.Duration("elapsed", out.Elapsed))
		return out, false
	}

	out.Findings = findings.NormalizeAll(report.Findings, r.Name(), time.Now())
	out.ServerInfo = report.ServerInfo
	log.Info("tool finished",
		zap.Int("findings", len(out.Findings)),
		zap.Duration("elapsed", out.Elapsed))
	return out, true
}
