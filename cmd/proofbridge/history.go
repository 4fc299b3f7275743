// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/proofbridge/internal/audit"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Query the validation audit history",
	Long: `History reads the local SQLite audit store that serve and verify write to.
Use subcommands to list recent validations, summarize outcomes, show one
job's full result, or export the history.`,
}

// --- recent subcommand ---

var historyRecentCmd = &cobra.Command{
	Use:   "recent",
	Short: "List the most recent validation records",
	RunE:  runHistoryRecent,
}

func runHistoryRecent(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	store, err := openHistoryStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.Recent(context.Background(), limit)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	if len(records) == 0 {
		fmt.Println("No validation records.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-36s  %-20s  %-7s  %-10s  %-10s  %s\n",
		"Job", "Citation", "Valid", "Confidence", "Duration", "When")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 110))
	for _, r := range records {
		citation := r.CitationID
		if len(citation) > 20 {
			citation = citation[:17] + "..."
		}
		fmt.Fprintf(os.Stdout, "%-36s  %-20s  %-7t  %-10.2f  %-10s  %s\n",
			r.JobID, citation, r.Valid, r.Confidence,
			r.Duration.Round(time.Millisecond), r.CreatedAt.Local().Format(time.DateTime))
	}
	fmt.Fprintf(os.Stdout, "\n%d records\n", len(records))
	return nil
}

// --- summary subcommand ---

var historySummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Summarize validation outcomes",
	RunE:  runHistorySummary,
}

func runHistorySummary(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	store, err := openHistoryStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	summary, err := store.Summary(context.Background())
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}

	fmt.Printf("Validations:    %d\n", summary.Validations)
	fmt.Printf("Valid:          %d\n", summary.Valid)
	fmt.Printf("Timed out:      %d\n", summary.TimedOut)
	fmt.Printf("Consistency:    %d checks\n", summary.Consistency)
	fmt.Printf("Success rate:   %.1f%%\n", summary.SuccessRate*100)
	fmt.Printf("Mean duration:  %s\n", summary.MeanDuration.Round(time.Millisecond))
	return nil
}

// --- show subcommand ---

var historyShowCmd = &cobra.Command{
	Use:   "show <job-id>",
	Short: "Show the full stored result for one job",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	store, err := openHistoryStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	res, err := store.Result(context.Background(), args[0])
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// --- export subcommand ---

var historyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the validation history to YAML or JSON",
	RunE:  runHistoryExport,
}

func runHistoryExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	outPath, _ := cmd.Flags().GetString("out")

	store, err := openHistoryStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	out := os.Stdout
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("creating %s: %w", outPath, err)
		}
		defer f.Close()
		out = f
	}

	switch format {
	case "yaml", "":
		err = store.ExportYAML(context.Background(), out)
	case "json":
		err = store.ExportJSON(context.Background(), out)
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}
	if err != nil {
		return err
	}
	if outPath != "" {
		fmt.Fprintf(os.Stderr, "Exported to %s\n", outPath)
	}
	return nil
}

// --- shared helpers ---

func openHistoryStore(cmd *cobra.Command) (*audit.Store, error) {
	path, _ := cmd.Flags().GetString("db")
	if path == "" {
		cfg, err := loadConfig()
		if err != nil {
			return nil, err
		}
		path = cfg.Audit.Path
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("no audit history at %s (run verify or serve with audit enabled first)", path)
	}
	return audit.Open(path)
}

func init() {
	// Shared flag on the parent command, inherited by subcommands.
	historyCmd.PersistentFlags().String("db", "", "audit database path (default: from config)")

	historyRecentCmd.Flags().Int("limit", 20, "maximum records to list")
	historyRecentCmd.Flags().Bool("json", false, "output records as JSON")

	historySummaryCmd.Flags().Bool("json", false, "output the summary as JSON")

	historyExportCmd.Flags().String("format", "yaml", "export format: yaml or json")
	historyExportCmd.Flags().String("out", "", "write to this file instead of stdout")

	historyCmd.AddCommand(historyRecentCmd)
	historyCmd.AddCommand(historySummaryCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyExportCmd)

	rootCmd.AddCommand(historyCmd)
}
