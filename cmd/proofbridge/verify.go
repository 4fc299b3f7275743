package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/proofbridge/internal/extract"
	"github.com/pdiddy/proofbridge/internal/report"
	"github.com/pdiddy/proofbridge/pkg/types"
)

var verifyCmd = &cobra.Command{
	Use:   "verify [citations-file]",
	Short: "Formally verify the mathematical claims in citations",
	Long: `Verify reads citations from a YAML/JSON file (or from --text), extracts
their mathematical claims, and validates each citation against the configured
prover backends. Citations whose content needs no formal verification are
accepted without prover work. Individual failures do not stop the batch.

With --consistency the pooled statements of all citations are additionally
cross-checked for contradictions. --report writes a Markdown report.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().String("text", "", "verify raw citation text instead of a file")
	verifyCmd.Flags().Bool("json", false, "output results as JSON")
	verifyCmd.Flags().Bool("consistency", false, "also cross-check consistency across all citations")
	verifyCmd.Flags().String("report", "", "write a Markdown report to this file")

	rootCmd.AddCommand(verifyCmd)
}

// intakeCitations resolves the citation source: one file argument or --text.
func intakeCitations(cmd *cobra.Command, args []string) ([]types.Citation, error) {
	text, _ := cmd.Flags().GetString("text")
	switch {
	case text != "" && len(args) > 0:
		return nil, fmt.Errorf("provide a citations file or --text, not both")
	case text != "":
		citations := extract.CitationsFromText(text, "cli")
		if len(citations) == 0 {
			return nil, fmt.Errorf("no citation text found in --text")
		}
		return citations, nil
	case len(args) > 0:
		return extract.LoadCitations(args[0])
	default:
		return nil, fmt.Errorf("provide a citations file or --text")
	}
}

func runVerify(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	checkConsistency, _ := cmd.Flags().GetBool("consistency")
	reportPath, _ := cmd.Flags().GetString("report")

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

	results := make(map[string]*types.ProofValidationResult, len(mathematical))
	var ordered []*types.ProofValidationResult
	var errored, invalid int

	for i := range mathematical {
		mc := &mathematical[i]
		res, err := orch.ValidateMathematicalCitation(ctx, mc)
		if err != nil {
			errored++
			fmt.Fprintf(os.Stderr, "failed   %s: %v\n", mc.ID, err)
			continue
		}
		results[mc.ID] = res
		ordered = append(ordered, res)

		switch {
		case res.JobID == "":
			fmt.Fprintf(os.Stderr, "accepted %s without formal verification (confidence %.2f)\n",
				mc.ID, res.PrimaryValidation.Confidence)
		case res.PrimaryValidation.Valid:
			fmt.Fprintf(os.Stderr, "valid    %s (confidence %.2f, %s, %s)\n",
				mc.ID, res.PrimaryValidation.Confidence,
				res.TotalDuration.Round(time.Millisecond), joinBackends(res.BackendsUsed))
		default:
			invalid++
			fmt.Fprintf(os.Stderr, "invalid  %s (confidence %.2f, %s, %s)\n",
				mc.ID, res.PrimaryValidation.Confidence,
				res.TotalDuration.Round(time.Millisecond), joinBackends(res.BackendsUsed))
		}
	}

	var verdict *types.ConsistencyVerdict
	if checkConsistency && len(mathematical) > 1 {
		v, err := orch.CheckConsistencyAcrossCitations(ctx, mathematical)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed   consistency check: %v\n", err)
		} else {
			verdict = &v
		}
	}

	if err := formatVerifyOutput(ordered, verdict, jsonOutput); err != nil {
		return err
	}

	if reportPath != "" {
		if err := writeReport(reportPath, mathematical, results, verdict); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Report written to %s\n", reportPath)
	}

	if failed := errored + summary.Failed + invalid; failed > 0 {
		return fmt.Errorf("%d citation(s) failed validation", failed)
	}
	return nil
}

func formatVerifyOutput(results []*types.ProofValidationResult, verdict *types.ConsistencyVerdict, jsonOutput bool) error {
	if jsonOutput {
		out := struct {
			Results     []*types.ProofValidationResult `json:"results"`
			Consistency *types.ConsistencyVerdict      `json:"consistency,omitempty"`
		}{Results: results, Consistency: verdict}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	if len(results) == 0 {
		fmt.Println("No results.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-28s  %-7s  %-10s  %-14s  %s\n",
		"Citation", "Valid", "Confidence", "Backends", "Duration")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 76))

	for _, r := range results {
		id := r.CitationID
		if len(id) > 28 {
			id = id[:25] + "..."
		}
		backends := joinBackends(r.BackendsUsed)
		if backends == "" {
			backends = "(none)"
		}
		fmt.Fprintf(os.Stdout, "%-28s  %-7t  %-10.2f  %-14s  %s\n",
			id, r.PrimaryValidation.Valid, r.PrimaryValidation.Confidence,
			backends, r.TotalDuration.Round(time.Millisecond))
	}
	fmt.Fprintf(os.Stdout, "\n%d results\n", len(results))

	if verdict != nil {
		fmt.Println()
		printVerdict(*verdict)
	}
	return nil
}

func printVerdict(v types.ConsistencyVerdict) {
	if v.Consistent {
		fmt.Printf("Cross-citation consistency: consistent (confidence %.2f)\n", v.ConfidenceScore)
	} else {
		fmt.Printf("Cross-citation consistency: %d contradiction(s) (confidence %.2f)\n",
			len(v.Contradictions), v.ConfidenceScore)
		for _, contra := range v.Contradictions {
			fmt.Printf("  - %s (citations: %s)\n", contra.Description, strings.Join(contra.CitationIDs, ", "))
		}
	}
	if v.DetailedAnalysis != "" {
		fmt.Println(v.DetailedAnalysis)
	}
}

func writeReport(path string, citations []types.MathematicalCitation, results map[string]*types.ProofValidationResult, verdict *types.ConsistencyVerdict) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report %s: %w", path, err)
	}
	if err := report.Write(f, citations, results, verdict); err != nil {
		f.Close()
		return fmt.Errorf("writing report: %w", err)
	}
	return f.Close()
}

func joinBackends(kinds []types.BackendKind) string {
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = string(k)
	}
	return strings.Join(parts, "+")
}
