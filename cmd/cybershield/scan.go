package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hakim/cybershield/internal/models"
	"github.com/hakim/cybershield/internal/pipeline"
	"github.com/hakim/cybershield/internal/report"
	"github.com/hakim/cybershield/internal/tools"
	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan a single target and print the report",
	Long: `Run one scan in-process and wait for it to finish, including the AI summary.

The report is written to stdout, or to --out. Raw tool output is kept under
  {scan_dir}/{target}_{timestamp}_{id}/raw/

Examples:
  cybershield scan -u example.uz
  cybershield scan -u https://shop.example.uz --preset web
  cybershield scan -u example.uz --format json --out report.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// ── 1. Read all flags ──────────────────────────────────────────────────
		target, _ := cmd.Flags().GetString("url")
		presetName, _ := cmd.Flags().GetString("preset")
		format, _ := cmd.Flags().GetString("format")
		outPath, _ := cmd.Flags().GetString("out")
		requester, _ := cmd.Flags().GetString("requester")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		if format != report.FormatJSON && format != report.FormatMarkdown {
			return fmt.Errorf("unsupported format %q (use %s or %s)", format, report.FormatJSON, report.FormatMarkdown)
		}

		// ── 2. Pre-flight tool checks ──────────────────────────────────────────
		// Missing tools are not fatal: they contribute nothing to the result.
		if presetName == "" {
			presetName = cfg.DefaultPreset
		}
		preset, err := pipeline.GetPreset(presetName)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "[*] Using preset: %s (%s)\n", preset.Name, preset.Description)
		warnMissingTools(preset.Tools)

		// ── 3. Build the orchestrator ──────────────────────────────────────────
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close(10 * time.Second)
		o := a.orchestrator

		// ── 4. Submit and wait ─────────────────────────────────────────────────
		job, err := o.Submit(ctx, pipeline.SubmitRequest{Target: target, Requester: requester, Preset: preset.Name})
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "[*] Scan ID: %s\n", job.ID)
		fmt.Fprintf(os.Stderr, "[*] Scanning %s...\n", job.Target)

		id := job.ID
		start := time.Now()
		job, err = o.Wait(ctx, id)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if _, cerr := o.Cancel(context.Background(), id); cerr == nil {
					fmt.Fprintln(os.Stderr, "[!] Scan cancelled")
				}
			}
			return err
		}

		switch job.State {
		case models.StateCompleted:
			fmt.Fprintf(os.Stderr, "[+] Scan completed in %s\n", time.Since(start).Round(time.Second))
		case models.StateFailed:
			return fmt.Errorf("scan failed: %s", job.Error)
		default:
			return fmt.Errorf("scan ended in state %s", job.State)
		}

		fmt.Fprintln(os.Stderr, "[*] Waiting for AI summary...")
		result, err := o.WaitAnalyzed(ctx, id)
		if err != nil {
			return err
		}
		if result.AnalysisError != "" {
			fmt.Fprintf(os.Stderr, "[!] AI summary unavailable: %s\n", result.AnalysisError)
		}
		fmt.Fprintf(os.Stderr, "[+] Security score: %d/100 (high %d, medium %d, low %d, info %d)\n",
			result.Score, result.SeverityCounts.High, result.SeverityCounts.Medium,
			result.SeverityCounts.Low, result.SeverityCounts.Info)

		// ── 5. Write the report ────────────────────────────────────────────────
		var w io.Writer = os.Stdout
		if outPath != "" {
			f, err := os.Create(outPath)
			if err != nil {
				return fmt.Errorf("creating %s: %w", outPath, err)
			}
			defer f.Close()
			w = f
		}
		if err := report.Write(w, format, job, result); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
		if outPath != "" {
			fmt.Fprintf(os.Stderr, "[+] Report written to %s\n", outPath)
		}
		return nil
	},
}

// warnMissingTools reports enabled preset tools whose binary is not on PATH.
func warnMissingTools(names []string) {
	enabled := cfg.Tools.ByName()
	binaries := make(map[string]string, len(enabled))
	for name, t := range enabled {
		binaries[name] = t.Path
	}

	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}

	for _, res := range tools.CheckTools(tools.WithBinaries(tools.DefaultTools(), binaries)) {
		name := res.Tool.Name
		if !wanted[name] || !enabled[name].Enabled {
			continue
		}
		if !res.Found {
			fmt.Fprintf(os.Stderr, "[!] %s (%s) not found, it will contribute no findings. Install: %s\n",
				name, res.Tool.Binary, res.Tool.InstallCmd)
		}
	}
}

func init() {
	scanCmd.Flags().StringP("url", "u", "", "Target URL (required)")
	scanCmd.Flags().String("preset", "", "Tool preset: full, web or network (default from config)")
	scanCmd.Flags().String("format", report.FormatMarkdown, "Report format: md or json")
	scanCmd.Flags().String("out", "", "Write the report to this file instead of stdout")
	scanCmd.Flags().String("requester", "cli", "Identity recorded on the scan")
	scanCmd.Flags().Duration("timeout", 0, "Overall time limit for the scan (0 = none)")
	scanCmd.MarkFlagRequired("url")
	rootCmd.AddCommand(scanCmd)
}
