// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package validate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pdiddy/proofbridge/pkg/types"
)

// consistencyAnalysis shapes the per-job verdict from the primary backend's
// report. An empty statement set is vacuously consistent at full confidence;
// a missing report (backend lacks the capability, or the check errored) is
// assumed consistent at zero confidence.
func consistencyAnalysis(report *types.ConsistencyReport, statementCount int) types.ConsistencyAnalysis {
	if statementCount == 0 {
		return types.ConsistencyAnalysis{InternalConsistent: true, Confidence: 1.0}
	}
	if report == nil {
		return types.ConsistencyAnalysis{InternalConsistent: true, Confidence: 0}
	}
	return types.ConsistencyAnalysis{
		InternalConsistent: report.Consistent,
		Contradictions:     report.Contradictions,
		Confidence:         report.Confidence,
	}
}

// statementPool flattens citations into one statement slice and remembers
// which citation contributed each statement ID.
type statementPool struct {
	statements []types.FormalStatement
	ownerOf    map[string]string
	citations  []string
}

func poolStatements(citations []types.MathematicalCitation) statementPool {
	pool := statementPool{ownerOf: make(map[string]string)}
	for _, c := range citations {
		if len(c.FormalStatements) == 0 {
			continue
		}
		for _, s := range c.FormalStatements {
			pool.statements = append(pool.statements, s)
			pool.ownerOf[s.ID] = c.ID
		}
		pool.citations = append(pool.citations, c.ID)
	}
	return pool
}

// attributeContradictions maps each backend-reported contradiction back to
// the citations whose statements it implicates. Membership is textual:
// adapters embed the implicated statement IDs in the description
// ("statements [a b]: ..."). A description naming no pooled statement is
// conservatively attributed to every contributing citation.
func attributeContradictions(report types.ConsistencyReport, pool statementPool, threshold float64) types.ConsistencyVerdict {
	verdict := types.ConsistencyVerdict{
		Consistent:      report.Consistent,
		ConfidenceScore: report.Confidence,
	}

	for _, desc := range report.Contradictions {
		contradiction := types.CitationContradiction{Description: desc}
		cited := make(map[string]bool)
		for id, owner := range pool.ownerOf {
			if strings.Contains(desc, id) {
				contradiction.StatementIDs = append(contradiction.StatementIDs, id)
				cited[owner] = true
			}
		}
		if len(cited) == 0 {
			for _, id := range pool.citations {
				cited[id] = true
			}
		}
		for id := range cited {
			contradiction.CitationIDs = append(contradiction.CitationIDs, id)
		}
		sort.Strings(contradiction.CitationIDs)
		sort.Strings(contradiction.StatementIDs)
		verdict.Contradictions = append(verdict.Contradictions, contradiction)
	}

	verdict.DetailedAnalysis = describeVerdict(report, pool, threshold)
	return verdict
}

func describeVerdict(report types.ConsistencyReport, pool statementPool, threshold float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "checked %d statements from %d citations", len(pool.statements), len(pool.citations))
	if report.Consistent {
		b.WriteString(": no contradictions")
	} else {
		fmt.Fprintf(&b, ": %d contradictions", len(report.Contradictions))
	}
	fmt.Fprintf(&b, " (confidence %.2f)", report.Confidence)
	if report.Confidence < threshold {
		fmt.Fprintf(&b, "; below the %.2f trust threshold, advisory only", threshold)
	}
	return b.String()
}
