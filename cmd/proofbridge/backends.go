package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/proofbridge/internal/prover"
	"github.com/pdiddy/proofbridge/pkg/types"
)

// probeBudget bounds one backend's detect-and-bootstrap probe.
const probeBudget = time.Minute

var backendsCmd = &cobra.Command{
	Use:   "backends",
	Short: "List verifier backends and probe their availability",
	Long: `Backends lists the registered prover kinds, probes each one by launching
its process and running the bootstrap check, and reports capabilities. An
unavailable backend is reported, not an error; the orchestrator falls back
at runtime the same way.`,
	RunE: runBackends,
}

func init() {
	backendsCmd.Flags().Bool("json", false, "output backend info as JSON")

	rootCmd.AddCommand(backendsCmd)
}

type backendInfo struct {
	Kind         types.BackendKind  `json:"kind"`
	Available    bool               `json:"available"`
	Capabilities types.Capabilities `json:"capabilities"`
	Health       types.HealthReport `json:"health"`
}

func runBackends(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log := newLogger(jsonOutput)
	defer log.Close()

	registry := prover.NewRegistry()
	opts := prover.Options{Logger: log, RequestTimeout: cfg.Timeouts.QuickCheck}

	var infos []backendInfo
	for _, kind := range registry.Kinds() {
		v, err := registry.Create(kind, cfg.AdapterFor(kind), opts)
		if err != nil {
			return err
		}

		probeCtx, cancel := context.WithTimeout(context.Background(), probeBudget)
		available := v.Initialize(probeCtx)
		info := backendInfo{
			Kind:         kind,
			Available:    available,
			Capabilities: v.Capabilities(),
		}
		if available {
			info.Health = v.HealthCheck(probeCtx)
		}
		cancel()
		v.Disconnect()
		infos = append(infos, info)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	}

	fmt.Fprintf(os.Stdout, "%-8s  %-10s  %-13s  %-12s  %-15s  %s\n",
		"Kind", "Available", "Proof search", "Consistency", "Max complexity", "Domains")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 90))
	for _, info := range infos {
		fmt.Fprintf(os.Stdout, "%-8s  %-10t  %-13t  %-12t  %-15s  %s\n",
			info.Kind, info.Available,
			info.Capabilities.ProofSearch, info.Capabilities.ConsistencyCheck,
			info.Capabilities.MaxComplexity, joinDomains(info.Capabilities.SupportedDomains))
	}
	fmt.Fprintf(os.Stdout, "\n%d backends\n", len(infos))
	return nil
}

func joinDomains(domains []types.MathDomain) string {
	parts := make([]string, len(domains))
	for i, d := range domains {
		parts[i] = string(d)
	}
	return strings.Join(parts, ",")
}
