// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the proofbridge CLI.
// Implements: prd002-orchestration, prd003-statement-supply,
//             prd004-audit-history, prd005-service (CLI surface).
// See docs/ARCHITECTURE § Pipeline Interface, § Project Structure.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/proofbridge/internal/audit"
	"github.com/pdiddy/proofbridge/internal/prover"
	"github.com/pdiddy/proofbridge/internal/validate"
	"github.com/pdiddy/proofbridge/pkg/logging"
	"github.com/pdiddy/proofbridge/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// rootCmd is the base command for the proofbridge CLI.
var rootCmd = &cobra.Command{
	Use:   "proofbridge",
	Short: "Formal verification coordination for citation intelligence",
	Long: `proofbridge coordinates theorem-prover backends (Lean, Coq) to formally
validate the mathematical claims inside citations. The upstream citation tool
supplies raw citation text; proofbridge extracts claims, translates them into
prover syntax, validates them with cross-backend checking, and records every
verdict in a local audit history.

Each stage is a subcommand: verify, consistency, backends, history, and serve.
The host pipeline composes these; a verification failure degrades a citation's
confidence without breaking the pipeline around it.`,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./proofbridge.yaml or ~/.config/proofbridge/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, or error")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("proofbridge")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "proofbridge"))
		}
	}

	viper.SetEnvPrefix("PROOFBRIDGE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig resolves the effective verification config: compiled defaults,
// overlaid with the config file, overlaid with PROOFBRIDGE_* environment
// values for the common deployment knobs.
func loadConfig() (types.VerificationConfig, error) {
	cfg := types.DefaultVerificationConfig()

	if file := viper.ConfigFileUsed(); file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return cfg, fmt.Errorf("reading config %s: %w", file, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", file, err)
		}
	}

	if v := viper.GetString("primary_backend"); v != "" {
		cfg.PrimaryBackend = types.BackendKind(v)
	}
	if v := viper.GetString("audit_path"); v != "" {
		cfg.Audit.Path = v
	}
	if v := viper.GetString("serve_addr"); v != "" {
		cfg.Serve.Addr = v
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newLogger builds the CLI logger. quiet suppresses stderr diagnostics so
// machine-readable stdout stays clean.
func newLogger(quiet bool) *logging.Logger {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	return logging.New(logging.Config{
		Level:   logging.ParseLevel(level),
		Service: "proofbridge",
		Quiet:   quiet,
	})
}

// buildOrchestrator wires registry, audit store, and orchestrator from cfg
// and initializes the backends. The returned orchestrator owns the audit
// store; Shutdown closes it.
func buildOrchestrator(ctx context.Context, cfg types.VerificationConfig, log *logging.Logger) (*validate.Orchestrator, error) {
	var opts []validate.Option
	if cfg.Audit.Enabled {
		store, err := audit.Open(cfg.Audit.Path)
		if err != nil {
			return nil, fmt.Errorf("opening audit store: %w", err)
		}
		opts = append(opts, validate.WithAuditStore(store))
	}

	orch, err := validate.New(cfg, prover.NewRegistry(), log, opts...)
	if err != nil {
		return nil, err
	}
	if !orch.Initialize(ctx) {
		return nil, fmt.Errorf("no verifier backends available (tried %s)", backendList(cfg))
	}
	return orch, nil
}

func backendList(cfg types.VerificationConfig) string {
	out := string(cfg.PrimaryBackend)
	for _, kind := range cfg.FallbackBackends {
		out += ", " + string(kind)
	}
	return out
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
