package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/proofbridge/internal/extract"
)

var consistencyCmd = &cobra.Command{
	Use:   "consistency [citations-file]",
	Short: "Cross-check citations for mutual contradictions",
	Long: `Consistency pools the formal statements of all citations in a file (or in
--text) and asks the primary backend whether the pool is mutually consistent.
Contradictions are attributed back to the citations whose statements produced
them. A verdict below the configured trust threshold is advisory only.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConsistency,
}

func init() {
	consistencyCmd.Flags().String("text", "", "check raw citation text instead of a file")
	consistencyCmd.Flags().Bool("json", false, "output the verdict as JSON")

	rootCmd.AddCommand(consistencyCmd)
}

func runConsistency(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	citations, err := intakeCitations(cmd, args)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log := newLogger(jsonOutput)
	defer log.Close()

	extractor := extract.New(log)
	mathematical, summary := extractor.ExtractAll(citations, os.Stderr)
	if len(mathematical) == 0 {
		return fmt.Errorf("no citations survived extraction (%d failed)", summary.Failed)
	}

	ctx := context.Background()
	orch, err := buildOrchestrator(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer orch.Shutdown(ctx)

	verdict, err := orch.CheckConsistencyAcrossCitations(ctx, mathematical)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(verdict)
	}
	printVerdict(verdict)
	return nil
}
