package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hakim/cybershield/internal/api"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scan HTTP API",
	Long: `Start the HTTP API. Scans submitted with POST /api/scan run in the
background; poll GET /api/scan/{id} until the status is completed, then fetch
the result, summary or an exported report.

The listen address comes from listen_addr in the config file or the --addr flag.
SIGINT or SIGTERM stops accepting requests, cancels running scans and exits.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = cfg.ListenAddr
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}

		fmt.Printf("[*] CyberShield API listening on %s (store: %s)\n", addr, cfg.Store)
		serveErr := api.NewServer(a.orchestrator, logger).ListenAndServe(ctx, addr)

		logger.Info("shutting down")
		if err := a.Close(30 * time.Second); err != nil {
			logger.Warn("shutdown incomplete", zap.Error(err))
		}
		return serveErr
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (overrides listen_addr)")
	rootCmd.AddCommand(serveCmd)
}
