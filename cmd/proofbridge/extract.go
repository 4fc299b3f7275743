package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/proofbridge/internal/extract"
)

var extractCmd = &cobra.Command{
	Use:   "extract [citations-file]",
	Short: "Extract mathematical claims without validating them",
	Long: `Extract runs the statement supply on its own: claims, formal statement
candidates, complexity and domain classification, and the verification
signal, printed without touching any prover backend. Useful for inspecting
what verify would submit.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().String("text", "", "extract from raw citation text instead of a file")
	extractCmd.Flags().String("format", "yaml", "output format: yaml or json")

	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")

	citations, err := intakeCitations(cmd, args)
	if err != nil {
		return err
	}

	log := newLogger(true)
	defer log.Close()

	extractor := extract.New(log)
	mathematical, summary := extractor.ExtractAll(citations, os.Stderr)

	switch format {
	case "yaml", "":
		data, err := yaml.Marshal(mathematical)
		if err != nil {
			return fmt.Errorf("rendering yaml: %w", err)
		}
		os.Stdout.Write(data)
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(mathematical); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}

	if summary.HasFailures() {
		return fmt.Errorf("%d citation(s) failed extraction", summary.Failed)
	}
	return nil
}
