// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"strings"
	"testing"
	"time"

	"github.com/pdiddy/proofbridge/pkg/types"
)

func reportFixture() ([]types.MathematicalCitation, map[string]*types.ProofValidationResult, *types.ConsistencyVerdict) {
	citations := []types.MathematicalCitation{
		{
			Citation: types.Citation{ID: "c1", RawText: "Theorem: every prime p > 2 is odd."},
			Claims: []types.MathClaim{
				{ID: "c1-claim-1", Text: "every prime p > 2 is odd", Kind: types.KindTheorem, Confidence: 0.9},
			},
			Complexity:           types.ComplexityPolynomial,
			RequiresVerification: true,
		},
		{
			Citation: types.Citation{ID: "c2", RawText: "A survey of sorting algorithms."},
		},
		{
			Citation: types.Citation{ID: "c3", RawText: "Lemma left unverified."},
		},
	}

	results := map[string]*types.ProofValidationResult{
		"c1": {
			JobID:      "job-1",
			CitationID: "c1",
			PrimaryValidation: types.SingleProofResult{
				Backend:    types.BackendLean,
				Valid:      false,
				Confidence: 0.3,
				Errors: []types.VerifierError{
					{Code: "type_error", Message: "unknown identifier p", Severity: types.SeverityError, Line: 2},
				},
				Duration: 120 * time.Millisecond,
			},
			CrossValidation: map[types.BackendKind]types.SingleProofResult{
				types.BackendCoq:  {Backend: types.BackendCoq, Valid: true, Confidence: 0.8, Duration: 90 * time.Millisecond},
				types.BackendLean: {Backend: types.BackendLean, Valid: false, Confidence: 0.3, Duration: 110 * time.Millisecond},
			},
			Consistency: types.ConsistencyAnalysis{InternalConsistent: true, Confidence: 0.9},
			Complexity: types.ComplexityEstimate{
				Score:   0.35,
				Class:   types.ComplexityPolynomial,
				Factors: []string{"1 formal statements", "1 theorem claims"},
			},
			Timestamp:     time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC),
			TotalDuration: 200 * time.Millisecond,
			BackendsUsed:  []types.BackendKind{types.BackendLean, types.BackendCoq},
		},
		"c2": {
			CitationID:        "c2",
			PrimaryValidation: types.SingleProofResult{Valid: true, Confidence: 0.8},
			CrossValidation:   map[types.BackendKind]types.SingleProofResult{},
			Consistency:       types.ConsistencyAnalysis{InternalConsistent: true, Confidence: 1.0},
			Timestamp:         time.Date(2026, 2, 10, 11, 0, 0, 0, time.UTC),
		},
	}

	verdict := &types.ConsistencyVerdict{
		Consistent: false,
		Contradictions: []types.CitationContradiction{
			{
				Description: "statements [c1-s1 c2-s1]: conjunction proves False",
				CitationIDs: []string{"c1", "c2"},
			},
		},
		ConfidenceScore:  0.55,
		DetailedAnalysis: "checked 2 statements from 2 citations: 1 contradictions (confidence 0.55)",
	}
	return citations, results, verdict
}

func render(t *testing.T) string {
	t.Helper()
	citations, results, verdict := reportFixture()
	var b strings.Builder
	if err := Write(&b, citations, results, verdict); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return b.String()
}

func TestWriteHeader(t *testing.T) {
	out := render(t)
	for _, want := range []string{
		"# Verification Report",
		"Last result: 2026-02-10T12:00:00Z",
		"- Citations: 3",
		"- Validated: 2",
		"- Valid: 1",
		"- Overall: fail",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q", want)
		}
	}
}

func TestWriteCitationSections(t *testing.T) {
	out := render(t)

	for _, want := range []string{
		"## c1",
		"> Theorem: every prime p > 2 is odd.",
		"| every prime p > 2 is odd | theorem | 0.90 |",
		"| lean | primary | no | 0.30 | 120ms | no |",
		"- type_error (error, line 2): unknown identifier p",
		"Internal consistency: consistent (confidence 0.90)",
		"Complexity: 0.35 (polynomial)",
		"Factors: 1 formal statements; 1 theorem claims",
		"## c2",
		"Accepted without formal verification (confidence 0.80).",
		"## c3",
		"No verdict recorded.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q", want)
		}
	}

	// Cross rows sort by backend kind: coq before lean.
	coqRow := strings.Index(out, "| coq | cross |")
	leanRow := strings.Index(out, "| lean | cross |")
	if coqRow < 0 || leanRow < 0 || coqRow > leanRow {
		t.Errorf("cross rows out of order: coq at %d, lean at %d", coqRow, leanRow)
	}
}

func TestWriteCrossCitationSection(t *testing.T) {
	out := render(t)
	for _, want := range []string{
		"## Cross-citation consistency",
		"Consistent: no (confidence 0.55)",
		"checked 2 statements from 2 citations",
		"- statements [c1-s1 c2-s1]: conjunction proves False (citations: c1, c2)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q", want)
		}
	}
}

func TestWriteOmitsCrossCitationWithoutVerdict(t *testing.T) {
	citations, results, _ := reportFixture()
	var b strings.Builder
	if err := Write(&b, citations, results, nil); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if strings.Contains(b.String(), "Cross-citation") {
		t.Error("cross-citation section rendered without a verdict")
	}
}

func TestWriteDeterministic(t *testing.T) {
	first := render(t)
	second := render(t)
	if first != second {
		t.Error("two renders of the same inputs differ")
	}
}

func TestCellEscapesAndTruncates(t *testing.T) {
	if got := cell("a|b\nc"); got != "a\\|b c" {
		t.Errorf("cell = %q, want %q", got, "a\\|b c")
	}
	long := strings.Repeat("x", maxCellChars+10)
	if got := cell(long); len([]rune(got)) != maxCellChars+3 {
		t.Errorf("truncated length = %d, want %d", len([]rune(got)), maxCellChars+3)
	}
}
