package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pdiddy/proofbridge/internal/serve"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the validation HTTP service",
	Long: `Serve initializes the orchestrator and exposes it over HTTP: POST
/v1/validate and /v1/consistency for validation work, GET /v1/status for the
orchestrator snapshot, /healthz for liveness, and /metrics for Prometheus.
On SIGINT or SIGTERM the listener drains first, then the orchestrator shuts
down with its configured grace.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default: from config)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Serve.Addr = addr
	}

	log := newLogger(false)
	defer log.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orch, err := buildOrchestrator(ctx, cfg, log)
	if err != nil {
		return err
	}

	// Run owns shutdown: listener drain first, then the orchestrator.
	return serve.New(orch, log, cfg.Serve).Run(ctx)
}
