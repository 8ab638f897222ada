package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/hakim/cybershield/internal/diff"
	"github.com/hakim/cybershield/internal/models"
	"github.com/hakim/cybershield/internal/report"
	"github.com/hakim/cybershield/internal/storage"
	"github.com/spf13/cobra"
)

// errNoPrevious means the scan has no earlier completed run to compare with.
var errNoPrevious = errors.New("no previous completed scan for this target")

var diffCmd = &cobra.Command{
	Use:   "diff <scan-id> [previous-scan-id]",
	Short: "Compare two scans of the same target and report what changed",
	Long: `Compare a completed scan against an earlier one for the same target.

Findings are matched by name and location. The report lists new findings,
resolved findings, severity changes and the movement of the security score.

When no previous scan ID is given, the most recent earlier completed scan of
the same target by the same requester is used. Scans are read from the bolt
database, so only scans run with store: bolt can be compared.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		requester, _ := cmd.Flags().GetString("requester")
		if format != report.FormatJSON && format != report.FormatMarkdown {
			return fmt.Errorf("unsupported format %q (use %s or %s)", format, report.FormatJSON, report.FormatMarkdown)
		}

		store, err := storage.OpenBolt(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("opening database %s (is 'cybershield serve' running?): %w", cfg.DBPath, err)
		}
		defer store.Close()

		previousID := ""
		if len(args) == 2 {
			previousID = args[1]
		}

		dr, err := diffScans(cmd.Context(), store, requester, args[0], previousID)
		if errors.Is(err, errNoPrevious) {
			fmt.Fprintf(os.Stderr, "[!] %v\n", err)
			return nil
		}
		if err != nil {
			return err
		}

		if format == report.FormatJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(dr)
		}
		return report.WriteDiffMarkdown(os.Stdout, dr)
	},
}

// diffScans loads both results and computes the delta. An empty previousID
// selects the latest earlier completed scan of the same target.
func diffScans(ctx context.Context, store storage.Store, requester, currentID, previousID string) (*diff.Result, error) {
	current, err := store.GetJob(ctx, currentID)
	if err != nil {
		return nil, fmt.Errorf("loading scan %s: %w", currentID, err)
	}
	if current.State != models.StateCompleted {
		return nil, fmt.Errorf("scan %s is %s, only completed scans can be compared", currentID, current.State)
	}

	if previousID == "" {
		jobs, err := store.ListJobs(ctx, requester)
		if err != nil {
			return nil, fmt.Errorf("listing scans for %s: %w", requester, err)
		}
		prev, ok := diff.Previous(jobs, current)
		if !ok {
			return nil, errNoPrevious
		}
		previousID = prev.ID
	}

	currentResult, err := store.GetResult(ctx, currentID)
	if err != nil {
		return nil, fmt.Errorf("loading result %s: %w", currentID, err)
	}
	previousResult, err := store.GetResult(ctx, previousID)
	if err != nil {
		return nil, fmt.Errorf("loading result %s: %w", previousID, err)
	}
	return diff.Compute(currentResult, previousResult), nil
}

func init() {
	diffCmd.Flags().String("format", report.FormatMarkdown, "Output format: md or json")
	diffCmd.Flags().StringP("requester", "r", "cli", "Requester whose history is searched for the previous scan")
	rootCmd.AddCommand(diffCmd)
}
