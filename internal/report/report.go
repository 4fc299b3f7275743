// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report renders Markdown verification reports.
// Implements: prd006-reporting (R1, R2, R3);
//
//	docs/ARCHITECTURE § Reporting.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/pdiddy/proofbridge/pkg/types"
)

// maxCellChars bounds claim text inside table cells.
const maxCellChars = 100

// Write renders a Markdown verification report for a batch of citations.
// results maps citation IDs to their outcomes; citations with no entry render
// as unverified. verdict, when non-nil, adds a cross-citation consistency
// section. Output is deterministic for fixed inputs: run metadata comes from
// the results themselves, citations render in input order, and backend rows
// sort by kind.
func Write(w io.Writer, citations []types.MathematicalCitation, results map[string]*types.ProofValidationResult, verdict *types.ConsistencyVerdict) error {
	var b strings.Builder
	writeHeader(&b, citations, results)
	for _, c := range citations {
		writeCitation(&b, c, results[c.ID])
	}
	if verdict != nil {
		writeCrossCitation(&b, verdict)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func writeHeader(b *strings.Builder, citations []types.MathematicalCitation, results map[string]*types.ProofValidationResult) {
	var validated, valid int
	var latest time.Time
	for _, c := range citations {
		res := results[c.ID]
		if res == nil {
			continue
		}
		validated++
		if res.PrimaryValidation.Valid {
			valid++
		}
		if res.Timestamp.After(latest) {
			latest = res.Timestamp
		}
	}

	fmt.Fprintf(b, "# Verification Report\n\n")
	if !latest.IsZero() {
		fmt.Fprintf(b, "Last result: %s\n\n", latest.UTC().Format(time.RFC3339))
	}
	fmt.Fprintf(b, "- Citations: %d\n", len(citations))
	fmt.Fprintf(b, "- Validated: %d\n", validated)
	fmt.Fprintf(b, "- Valid: %d\n", valid)
	fmt.Fprintf(b, "- Overall: %s\n\n", overall(validated, valid))
}

func overall(validated, valid int) string {
	if validated == valid {
		return "pass"
	}
	return "fail"
}

func writeCitation(b *strings.Builder, c types.MathematicalCitation, res *types.ProofValidationResult) {
	fmt.Fprintf(b, "## %s\n\n", c.ID)
	if c.RawText != "" {
		for _, line := range strings.Split(c.RawText, "\n") {
			fmt.Fprintf(b, "> %s\n", line)
		}
		b.WriteString("\n")
	}

	if len(c.Claims) > 0 {
		fmt.Fprintf(b, "| Claim | Kind | Confidence |\n|---|---|---|\n")
		for _, cl := range c.Claims {
			fmt.Fprintf(b, "| %s | %s | %.2f |\n", cell(cl.Text), cl.Kind, cl.Confidence)
		}
		b.WriteString("\n")
	}

	switch {
	case res == nil:
		fmt.Fprintf(b, "No verdict recorded.\n\n")
		return
	case res.JobID == "":
		// Accepted without prover work.
		fmt.Fprintf(b, "Accepted without formal verification (confidence %.2f).\n\n",
			res.PrimaryValidation.Confidence)
		return
	}

	fmt.Fprintf(b, "| Backend | Role | Valid | Confidence | Duration | Timed out |\n|---|---|---|---|---|---|\n")
	writeVerdictRow(b, res.PrimaryValidation, "primary")
	for _, kind := range sortedKinds(res.CrossValidation) {
		writeVerdictRow(b, res.CrossValidation[kind], "cross")
	}
	b.WriteString("\n")

	writeVerifierErrors(b, res.PrimaryValidation)

	if res.Consistency.InternalConsistent {
		fmt.Fprintf(b, "Internal consistency: consistent (confidence %.2f)\n\n", res.Consistency.Confidence)
	} else {
		fmt.Fprintf(b, "Internal consistency: contradictions found (confidence %.2f)\n\n", res.Consistency.Confidence)
		for _, contra := range res.Consistency.Contradictions {
			fmt.Fprintf(b, "- %s\n", contra)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(b, "Complexity: %.2f (%s)\n", res.Complexity.Score, res.Complexity.Class)
	if len(res.Complexity.Factors) > 0 {
		fmt.Fprintf(b, "Factors: %s\n", strings.Join(res.Complexity.Factors, "; "))
	}
	b.WriteString("\n")
}

func writeVerdictRow(b *strings.Builder, r types.SingleProofResult, role string) {
	fmt.Fprintf(b, "| %s | %s | %s | %.2f | %s | %s |\n",
		r.Backend, role, yesNo(r.Valid), r.Confidence,
		r.Duration.Round(time.Millisecond), yesNo(r.Resources.TimedOut))
}

// writeVerifierErrors lists the primary backend's diagnostics; cross-branch
// diagnostics stay in the stored result.
func writeVerifierErrors(b *strings.Builder, r types.SingleProofResult) {
	if len(r.Errors) == 0 {
		return
	}
	for _, e := range r.Errors {
		if e.Line > 0 {
			fmt.Fprintf(b, "- %s (%s, line %d): %s\n", e.Code, e.Severity, e.Line, e.Message)
			continue
		}
		fmt.Fprintf(b, "- %s (%s): %s\n", e.Code, e.Severity, e.Message)
	}
	b.WriteString("\n")
}

func writeCrossCitation(b *strings.Builder, v *types.ConsistencyVerdict) {
	fmt.Fprintf(b, "## Cross-citation consistency\n\n")
	fmt.Fprintf(b, "Consistent: %s (confidence %.2f)\n\n", yesNo(v.Consistent), v.ConfidenceScore)
	if v.DetailedAnalysis != "" {
		fmt.Fprintf(b, "%s\n\n", v.DetailedAnalysis)
	}
	for _, contra := range v.Contradictions {
		fmt.Fprintf(b, "- %s (citations: %s)\n", contra.Description, strings.Join(contra.CitationIDs, ", "))
	}
	if len(v.Contradictions) > 0 {
		b.WriteString("\n")
	}
}

func sortedKinds(m map[types.BackendKind]types.SingleProofResult) []types.BackendKind {
	kinds := make([]types.BackendKind, 0, len(m))
	for k := range m {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// cell makes a string safe for a single Markdown table cell.
func cell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "|", "\\|")
	runes := []rune(s)
	if len(runes) > maxCellChars {
		return string(runes[:maxCellChars]) + "..."
	}
	return s
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
