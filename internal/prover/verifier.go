// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package prover implements verifier backend adapters behind a uniform
// capability contract, plus the registry that instantiates them by
// configuration. Implements: prd001-capability R1-R8;
//
//	docs/ARCHITECTURE § Verifier Adapters.
package prover

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pdiddy/proofbridge/pkg/logging"
	"github.com/pdiddy/proofbridge/pkg/types"
)

// ConnState tracks an adapter's connection to its external prover process.
// Only a connected adapter accepts work.
type ConnState string

const (
	StateDisconnected ConnState = "disconnected"
	StateConnecting   ConnState = "connecting"
	StateConnected    ConnState = "connected"
	StateError        ConnState = "error"
)

var (
	// ErrNotReady is returned when an operation is attempted against an
	// adapter that is not connected.
	ErrNotReady = errors.New("backend not ready")

	// ErrNoFormalSource is returned when a statement carries no formal
	// source for the adapter's backend. Callers translate first.
	ErrNoFormalSource = errors.New("statement has no formal source for backend")

	// ErrUnknownBackend is returned by the registry for an unregistered kind.
	ErrUnknownBackend = errors.New("unknown backend kind")
)

// Verifier is the capability contract every backend adapter exposes,
// independent of the wire protocol it speaks. Per prd001-capability R1.1-R1.3.
type Verifier interface {
	// Backend returns the adapter's backend kind.
	Backend() types.BackendKind

	// Capabilities describes what the backend can handle; consulted by
	// routing decisions.
	Capabilities() types.Capabilities

	// State returns the adapter's connection state.
	State() ConnState

	// Initialize detects the backend binary, launches the prover process,
	// and performs the one-time bootstrap. It never returns an error: false
	// means the backend is currently unusable and the adapter is left in
	// StateError. Callers must not treat a false return as fatal.
	Initialize(ctx context.Context) bool

	// Disconnect tears the process down, attempting a graceful quit before
	// forcing termination. It never panics and is safe in any state.
	Disconnect()

	// IsReady reports whether the adapter accepts work.
	IsReady() bool

	// TranslateToFormal heuristically renders natural-language text into
	// backend syntax using a fixed set of lexical pattern rules. The
	// returned confidence is advisory only; a formal check always
	// re-validates translated output.
	TranslateToFormal(ctx context.Context, text string) (types.TranslationResult, error)

	// ValidateStatement ships the statement's backend-specific source to
	// the prover and parses diagnostics into the uniform result shape.
	// A request that exceeds its budget reports TimedOut on the result,
	// not an error.
	ValidateStatement(ctx context.Context, stmt *types.FormalStatement) (types.SingleProofResult, error)

	// SearchProof tries a fixed ordered tactic list against the statement,
	// reporting the first success and recording failures as alternatives.
	SearchProof(ctx context.Context, stmt *types.FormalStatement) (types.ProofSearchResult, error)

	// CheckConsistency asserts that the conjunction of the statements
	// implies False. A successful proof of False, or contradiction-
	// indicating diagnostics, yields an inconsistent report.
	CheckConsistency(ctx context.Context, stmts []types.FormalStatement) (types.ConsistencyReport, error)

	// HealthCheck probes the live session. Results are cached briefly.
	HealthCheck(ctx context.Context) types.HealthReport
}

// Options carries the orchestrator-supplied knobs an adapter constructor
// needs beyond its process config.
type Options struct {
	// Logger receives adapter lifecycle and protocol events. Required.
	Logger *logging.Logger

	// RequestTimeout bounds one prover request when the caller's context
	// carries no deadline.
	RequestTimeout time.Duration

	// CacheEnabled and CacheTTL control the translation and health caches.
	CacheEnabled bool
	CacheTTL     time.Duration

	// MaxErrors truncates a statement check's diagnostic list.
	MaxErrors int

	// MemoryLimitMB is the advisory memory ceiling flagged by health checks.
	MemoryLimitMB int
}

// normalized fills zero Options fields with workable defaults.
func (o Options) normalized() Options {
	if o.Logger == nil {
		o.Logger = logging.Discard()
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 60 * time.Second
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = 10 * time.Minute
	}
	if o.MaxErrors <= 0 {
		o.MaxErrors = 10
	}
	if o.MemoryLimitMB <= 0 {
		o.MemoryLimitMB = 2048
	}
	return o
}

// EnsureTranslated populates stmt's formal source for v's backend when it is
// missing, translating exactly once per attempt. Existing entries are never
// overwritten.
func EnsureTranslated(ctx context.Context, v Verifier, stmt *types.FormalStatement) error {
	kind := v.Backend()
	if stmt.FormalSource[kind] != "" {
		return nil
	}
	tr, err := v.TranslateToFormal(ctx, stmt.SourceText)
	if err != nil {
		return fmt.Errorf("translating statement %s for %s: %w", stmt.ID, kind, err)
	}
	if stmt.FormalSource == nil {
		stmt.FormalSource = make(map[types.BackendKind]string, 1)
	}
	stmt.FormalSource[kind] = tr.Formal
	return nil
}

// AggregateResults folds per-statement results into one backend aggregate:
// valid iff every result is valid, confidence is the arithmetic mean,
// errors and warnings are concatenated, resource usage takes the maximum,
// and the timeout flag is OR'ed. An empty slice aggregates to a vacuously
// valid result with zero confidence.
func AggregateResults(backend types.BackendKind, results []types.SingleProofResult) types.SingleProofResult {
	agg := types.SingleProofResult{Backend: backend, Valid: true}
	if len(results) == 0 {
		return agg
	}

	var confSum float64
	for _, r := range results {
		if !r.Valid {
			agg.Valid = false
		}
		confSum += r.Confidence
		agg.Errors = append(agg.Errors, r.Errors...)
		agg.Warnings = append(agg.Warnings, r.Warnings...)
		agg.Duration += r.Duration
		if r.Resources.MemoryBytes > agg.Resources.MemoryBytes {
			agg.Resources.MemoryBytes = r.Resources.MemoryBytes
		}
		if r.Resources.CPUTime > agg.Resources.CPUTime {
			agg.Resources.CPUTime = r.Resources.CPUTime
		}
		agg.Resources.TimedOut = agg.Resources.TimedOut || r.Resources.TimedOut
	}
	agg.Confidence = confSum / float64(len(results))
	return agg
}

// ValidateCitation validates every formal statement in the citation against
// v, translating on demand, and returns the backend aggregate. Any single
// statement failure fails the aggregate. With more than one statement it
// additionally runs a consistency check across them, appending each reported
// contradiction as an error; the report is returned so callers need not
// re-run the check. Per prd001-capability R1.4.
func ValidateCitation(ctx context.Context, v Verifier, citation *types.MathematicalCitation, timeout time.Duration) (types.SingleProofResult, *types.ConsistencyReport) {
	stmts := citation.FormalStatements
	results := make([]types.SingleProofResult, 0, len(stmts))

	for i := range stmts {
		stmt := &stmts[i]
		if err := EnsureTranslated(ctx, v, stmt); err != nil {
			results = append(results, failedResult(v.Backend(), "translation_failed", err))
			continue
		}

		callCtx := ctx
		var cancel context.CancelFunc
		if timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, timeout)
		}
		res, err := v.ValidateStatement(callCtx, stmt)
		if cancel != nil {
			cancel()
		}
		if err != nil {
			results = append(results, failedResult(v.Backend(), "validation_error", err))
			continue
		}
		results = append(results, res)
	}

	agg := AggregateResults(v.Backend(), results)

	var report *types.ConsistencyReport
	if len(stmts) > 1 && v.Capabilities().ConsistencyCheck {
		rep, err := v.CheckConsistency(ctx, stmts)
		if err == nil {
			report = &rep
			if !rep.Consistent {
				agg.Valid = false
				for _, c := range rep.Contradictions {
					agg.Errors = append(agg.Errors, types.VerifierError{
						Code:     "inconsistent",
						Message:  c,
						Severity: types.SeverityError,
					})
				}
			}
		}
	}

	return agg, report
}

// failedResult wraps an adapter-level fault as a failed proof result so it
// degrades the verdict instead of propagating.
func failedResult(backend types.BackendKind, code string, err error) types.SingleProofResult {
	return types.SingleProofResult{
		Backend:    backend,
		Valid:      false,
		Confidence: 0,
		Errors: []types.VerifierError{{
			Code:     code,
			Message:  err.Error(),
			Severity: types.SeverityError,
		}},
	}
}
