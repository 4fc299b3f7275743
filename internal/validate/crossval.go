// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package validate

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/proofbridge/internal/prover"
	"github.com/pdiddy/proofbridge/pkg/types"
)

// PerformCrossValidation validates the statements against every connected
// adapter and returns one aggregate verdict per backend. Branches are
// independent: a slow or failing adapter degrades only its own entry, and
// each branch is bounded by the cross-validation budget. The map is empty,
// never nil, when nothing was fanned out.
func (o *Orchestrator) PerformCrossValidation(ctx context.Context, stmts []types.FormalStatement) map[types.BackendKind]types.SingleProofResult {
	results := make(map[types.BackendKind]types.SingleProofResult)
	adapters := o.liveAdapters()
	if len(adapters) == 0 || len(stmts) == 0 {
		return results
	}

	var mu sync.Mutex
	run := func(v prover.Verifier) {
		agg := o.crossValidateOne(ctx, v, stmts)
		mu.Lock()
		results[v.Backend()] = agg
		mu.Unlock()
	}

	if o.cfg.Performance.ParallelValidation {
		var g errgroup.Group
		for _, v := range adapters {
			g.Go(func() error {
				run(v)
				return nil
			})
		}
		// Branches report through the results map, never through errors.
		_ = g.Wait()
	} else {
		for _, v := range adapters {
			run(v)
		}
	}
	return results
}

// crossValidateOne runs one backend branch over its own copy of the
// statements. The copy keeps branch-local translation writes off the slice
// shared with the primary path and the other branches.
func (o *Orchestrator) crossValidateOne(ctx context.Context, v prover.Verifier, stmts []types.FormalStatement) types.SingleProofResult {
	branchCtx, cancel := context.WithTimeout(ctx, o.cfg.Timeouts.CrossValidation)
	defer cancel()

	local := cloneStatements(stmts)
	results := make([]types.SingleProofResult, 0, len(local))
	for i := range local {
		stmt := &local[i]
		if err := prover.EnsureTranslated(branchCtx, v, stmt); err != nil {
			results = append(results, crossFailure(v.Backend(), "translation_failed", err))
			continue
		}
		res, err := v.ValidateStatement(branchCtx, stmt)
		if err != nil {
			results = append(results, crossFailure(v.Backend(), "validation_error", err))
			continue
		}
		results = append(results, res)
	}
	return prover.AggregateResults(v.Backend(), results)
}

// cloneStatements value-copies the slice and its formal-source maps so
// concurrent branches never share mutable state.
func cloneStatements(stmts []types.FormalStatement) []types.FormalStatement {
	out := make([]types.FormalStatement, len(stmts))
	copy(out, stmts)
	for i := range out {
		src := make(map[types.BackendKind]string, len(stmts[i].FormalSource))
		for k, v := range stmts[i].FormalSource {
			src[k] = v
		}
		out[i].FormalSource = src
	}
	return out
}

func crossFailure(backend types.BackendKind, code string, err error) types.SingleProofResult {
	return types.SingleProofResult{
		Backend: backend,
		Errors: []types.VerifierError{{
			Code:     code,
			Message:  err.Error(),
			Severity: types.SeverityError,
		}},
	}
}
