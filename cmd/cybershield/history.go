package main

import (
	"context"
	"fmt"

	"github.com/hakim/cybershield/internal/models"
	"github.com/hakim/cybershield/internal/storage"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show scan history for a requester",
	Long: `Display a formatted table of past scans recorded in the bolt database.

Scans are listed newest-first. Each row shows the scan ID (truncated), submit
time, status and target. Only scans run with store: bolt are recorded.

Use --limit to cap the number of rows shown (default: 10).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Step 1: Get flags
		requester, _ := cmd.Flags().GetString("requester")
		limit, _ := cmd.Flags().GetInt("limit")

		// Step 2: Open bbolt store
		store, err := storage.OpenBolt(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("opening database %s (is 'cybershield serve' running?): %w", cfg.DBPath, err)
		}
		defer store.Close()

		// Step 3: List jobs (sorted newest-first by the store)
		jobs, err := store.ListJobs(context.Background(), requester)
		if err != nil {
			return fmt.Errorf("listing scans for %s: %w", requester, err)
		}

		if len(jobs) == 0 {
			fmt.Printf("No scan history found for %s\n", requester)
			return nil
		}

		// Step 4: Apply limit
		if limit > 0 && len(jobs) > limit {
			jobs = jobs[:limit]
		}

		// Step 5: Print formatted table
		const separator = "────────────────────────────────────────────────────────────────────────"

		fmt.Printf("\nScan History for %s\n", requester)
		fmt.Println(separator)
		fmt.Printf("  %-3s  %-12s  %-20s  %-10s  %s\n", "#", "Scan ID", "Submitted", "Status", "Target")
		fmt.Println(separator)

		for i, job := range jobs {
			fmt.Printf("  %-3d  %-12s  %-20s  %-10s  %s\n",
				i+1,
				shortScanID(job.ID),
				job.CreatedAt.UTC().Format("2006-01-02 15:04"),
				job.State,
				job.Target)
		}

		fmt.Println(separator)
		for _, job := range jobs {
			if job.State == models.StateFailed && job.Error != "" {
				fmt.Printf("  %s failed: %s\n", shortScanID(job.ID), job.Error)
			}
		}
		fmt.Printf("Total: %d scan(s)\n\n", len(jobs))

		return nil
	},
}

// shortScanID returns the first 8 characters of a UUID followed by "..." for
// compact table display. Falls back to the full ID when shorter than 8 chars.
func shortScanID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8] + "..."
}

func init() {
	historyCmd.Flags().StringP("requester", "r", "cli", "Requester whose scans to list")
	historyCmd.Flags().Int("limit", 10, "Maximum number of scans to display")
	rootCmd.AddCommand(historyCmd)
}
