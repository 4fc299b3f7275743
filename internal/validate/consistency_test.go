// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package validate

import (
	"strings"
	"testing"

	"github.com/pdiddy/proofbridge/pkg/types"
)

func TestConsistencyAnalysis(t *testing.T) {
	inconsistent := &types.ConsistencyReport{
		Consistent:     false,
		Contradictions: []string{"statements [a b]: conjunction proves False"},
		Confidence:     0.85,
	}

	tests := []struct {
		name           string
		report         *types.ConsistencyReport
		statements     int
		wantConsistent bool
		wantConfidence float64
	}{
		{"no statements", nil, 0, true, 1.0},
		{"one statement, missing report", nil, 1, true, 0},
		{"one statement refuted", inconsistent, 1, false, 0.85},
		{"missing report", nil, 2, true, 0},
		{"consistent report", &types.ConsistencyReport{Consistent: true, Confidence: 0.9}, 3, true, 0.9},
		{"inconsistent report", inconsistent, 2, false, 0.85},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := consistencyAnalysis(tt.report, tt.statements)
			if got.InternalConsistent != tt.wantConsistent {
				t.Errorf("InternalConsistent = %v, want %v", got.InternalConsistent, tt.wantConsistent)
			}
			if got.Confidence != tt.wantConfidence {
				t.Errorf("Confidence = %v, want %v", got.Confidence, tt.wantConfidence)
			}
		})
	}
}

func TestPoolStatements(t *testing.T) {
	citations := []types.MathematicalCitation{
		{
			Citation: types.Citation{ID: "c1"},
			FormalStatements: []types.FormalStatement{
				{ID: "s1"}, {ID: "s2"},
			},
		},
		{Citation: types.Citation{ID: "empty"}},
		{
			Citation:         types.Citation{ID: "c2"},
			FormalStatements: []types.FormalStatement{{ID: "s3"}},
		},
	}

	pool := poolStatements(citations)
	if len(pool.statements) != 3 {
		t.Fatalf("pooled %d statements, want 3", len(pool.statements))
	}
	if len(pool.citations) != 2 || pool.citations[0] != "c1" || pool.citations[1] != "c2" {
		t.Errorf("contributing citations = %v, want [c1 c2]", pool.citations)
	}
	if pool.ownerOf["s2"] != "c1" || pool.ownerOf["s3"] != "c2" {
		t.Errorf("ownership = %v", pool.ownerOf)
	}
}

func TestAttributeContradictions(t *testing.T) {
	pool := statementPool{
		statements: []types.FormalStatement{{ID: "s1"}, {ID: "s2"}, {ID: "s3"}},
		ownerOf:    map[string]string{"s1": "c1", "s2": "c1", "s3": "c2"},
		citations:  []string{"c1", "c2"},
	}
	report := types.ConsistencyReport{
		Consistent: false,
		Contradictions: []string{
			"statements [s1 s3]: conjunction proves False",
			"derived contradiction with no statement reference",
		},
		Confidence: 0.4,
	}

	verdict := attributeContradictions(report, pool, 0.6)
	if verdict.Consistent {
		t.Error("verdict should be inconsistent")
	}
	if verdict.ConfidenceScore != 0.4 {
		t.Errorf("confidence = %v, want 0.4 passed through", verdict.ConfidenceScore)
	}
	if len(verdict.Contradictions) != 2 {
		t.Fatalf("contradictions = %d, want 2", len(verdict.Contradictions))
	}

	first := verdict.Contradictions[0]
	if len(first.StatementIDs) != 2 || first.StatementIDs[0] != "s1" || first.StatementIDs[1] != "s3" {
		t.Errorf("first statement IDs = %v, want [s1 s3]", first.StatementIDs)
	}
	if len(first.CitationIDs) != 2 || first.CitationIDs[0] != "c1" || first.CitationIDs[1] != "c2" {
		t.Errorf("first citation IDs = %v, want [c1 c2]", first.CitationIDs)
	}

	// A description naming no statement falls back to every contributor.
	second := verdict.Contradictions[1]
	if len(second.StatementIDs) != 0 {
		t.Errorf("second statement IDs = %v, want none", second.StatementIDs)
	}
	if len(second.CitationIDs) != 2 {
		t.Errorf("second citation IDs = %v, want both citations", second.CitationIDs)
	}

	if !strings.Contains(verdict.DetailedAnalysis, "2 contradictions") {
		t.Errorf("analysis %q missing contradiction count", verdict.DetailedAnalysis)
	}
	if !strings.Contains(verdict.DetailedAnalysis, "advisory") {
		t.Errorf("analysis %q should flag confidence below the trust threshold", verdict.DetailedAnalysis)
	}
}

func TestAttributeConsistentReport(t *testing.T) {
	pool := statementPool{
		statements: []types.FormalStatement{{ID: "s1"}, {ID: "s2"}},
		ownerOf:    map[string]string{"s1": "c1", "s2": "c2"},
		citations:  []string{"c1", "c2"},
	}
	report := types.ConsistencyReport{Consistent: true, Confidence: 0.9}

	verdict := attributeContradictions(report, pool, 0.6)
	if !verdict.Consistent || len(verdict.Contradictions) != 0 {
		t.Errorf("verdict = %+v, want consistent with no contradictions", verdict)
	}
	if !strings.Contains(verdict.DetailedAnalysis, "no contradictions") {
		t.Errorf("analysis %q missing consistent summary", verdict.DetailedAnalysis)
	}
	if strings.Contains(verdict.DetailedAnalysis, "advisory") {
		t.Errorf("analysis %q should not flag confidence above the threshold", verdict.DetailedAnalysis)
	}
}
