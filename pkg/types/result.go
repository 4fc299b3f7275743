// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// ErrorSeverity grades a diagnostic reported by a verifier backend.
// Per prd001-capability R4.3.
type ErrorSeverity string

const (
	SeverityError   ErrorSeverity = "error"
	SeverityWarning ErrorSeverity = "warning"
	SeverityInfo    ErrorSeverity = "info"
)

// VerifierError is one structured diagnostic parsed from backend output.
// Per prd001-capability R4.3.
type VerifierError struct {
	// Code is a short machine-readable tag (e.g. "type_error", "timeout",
	// "translation_failed", "unavailable").
	Code string `json:"code" yaml:"code"`

	// Message is the diagnostic text as reported by the backend.
	Message string `json:"message" yaml:"message"`

	// Severity grades the diagnostic.
	Severity ErrorSeverity `json:"severity" yaml:"severity"`

	// Line and Column locate the diagnostic in the submitted source, or 0.
	Line   int `json:"line,omitempty" yaml:"line,omitempty"`
	Column int `json:"column,omitempty" yaml:"column,omitempty"`
}

// VerifierWarning is a non-fatal diagnostic from a backend.
type VerifierWarning struct {
	// Message is the warning text.
	Message string `json:"message" yaml:"message"`

	// Line locates the warning in the submitted source, or 0.
	Line int `json:"line,omitempty" yaml:"line,omitempty"`
}

// ResourceUsage is a snapshot of what one backend request cost.
// A request that exceeds its configured budget sets TimedOut; it is not
// treated as a backend crash. Per prd001-capability R5.2-R5.3.
type ResourceUsage struct {
	// MemoryBytes is the resident set size of the prover process, best effort.
	MemoryBytes int64 `json:"memory_bytes" yaml:"memory_bytes"`

	// CPUTime approximates processing time spent on the request.
	CPUTime time.Duration `json:"cpu_time" yaml:"cpu_time"`

	// TimedOut is true when the request exceeded its configured budget.
	TimedOut bool `json:"timed_out" yaml:"timed_out"`
}

// SingleProofResult is one backend's verdict for one statement, or its
// aggregate over several statements of the same citation.
// Per prd001-capability R4.1-R4.4.
type SingleProofResult struct {
	// Backend identifies the verifier that produced this result.
	Backend BackendKind `json:"backend" yaml:"backend"`

	// Valid reports whether the statement(s) checked successfully.
	Valid bool `json:"valid" yaml:"valid"`

	// Confidence is a value between 0.0 and 1.0. For aggregates it is the
	// arithmetic mean over attempted statements.
	Confidence float64 `json:"confidence" yaml:"confidence"`

	// Errors lists structured diagnostics. For aggregates the per-statement
	// lists are concatenated.
	Errors []VerifierError `json:"errors,omitempty" yaml:"errors,omitempty"`

	// Warnings lists non-fatal diagnostics.
	Warnings []VerifierWarning `json:"warnings,omitempty" yaml:"warnings,omitempty"`

	// Duration is the wall time spent producing the verdict.
	Duration time.Duration `json:"duration" yaml:"duration"`

	// Resources snapshots request cost. Aggregates take the maximum across
	// statements and OR the TimedOut flag.
	Resources ResourceUsage `json:"resources" yaml:"resources"`
}

// TranslationResult is the output of the heuristic natural-language-to-formal
// translation step. Confidence is advisory: translated output is always
// re-validated by a formal check before it counts. Per prd001-capability R3.1-R3.4.
type TranslationResult struct {
	// Formal is the generated backend-specific source text.
	Formal string `json:"formal" yaml:"formal"`

	// Confidence is a value between 0.0 and 1.0 computed from a fixed
	// checklist (clean compile check, no placeholder markers, recognizable
	// theorem head).
	Confidence float64 `json:"confidence" yaml:"confidence"`

	// Notes records which checklist items passed or failed.
	Notes []string `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// ProofSearchResult reports an attempt to discharge a goal with a fixed
// ordered tactic list. Per prd001-capability R6.1-R6.3.
type ProofSearchResult struct {
	// Found is true when some tactic closed the goal.
	Found bool `json:"found" yaml:"found"`

	// Proof is the successful proof script, empty when Found is false.
	Proof string `json:"proof,omitempty" yaml:"proof,omitempty"`

	// Tactic names the tactic that succeeded.
	Tactic string `json:"tactic,omitempty" yaml:"tactic,omitempty"`

	// Alternatives lists tactics that were tried and failed before success,
	// or every attempted tactic when none succeeded.
	Alternatives []string `json:"alternatives,omitempty" yaml:"alternatives,omitempty"`

	// Duration is the wall time spent searching.
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// ConsistencyReport is a backend's verdict on whether a statement set
// jointly implies a contradiction. Per prd001-capability R7.1-R7.3.
type ConsistencyReport struct {
	// Consistent is false when the conjunction of the statements proves False
	// or the backend reports contradiction-indicating diagnostics.
	Consistent bool `json:"consistent" yaml:"consistent"`

	// Contradictions describes each detected contradiction.
	Contradictions []string `json:"contradictions,omitempty" yaml:"contradictions,omitempty"`

	// Confidence is a value between 0.0 and 1.0 as reported by the backend.
	Confidence float64 `json:"confidence" yaml:"confidence"`
}

// HealthReport is the result of probing a live backend session.
// Per prd001-capability R8.1-R8.2.
type HealthReport struct {
	// Healthy is true when the session responded to the probe.
	Healthy bool `json:"healthy" yaml:"healthy"`

	// Issues lists observed problems, empty when healthy.
	Issues []string `json:"issues,omitempty" yaml:"issues,omitempty"`

	// Latency is the probe round-trip time.
	Latency time.Duration `json:"latency" yaml:"latency"`

	// ThroughputPerMin estimates requests the session can absorb per minute.
	ThroughputPerMin float64 `json:"throughput_per_min" yaml:"throughput_per_min"`
}

// Capabilities describes what one backend can handle; consulted by routing
// decisions and surfaced by the backends listing. Per prd001-capability R1.3.
type Capabilities struct {
	// Backend identifies the verifier.
	Backend BackendKind `json:"backend" yaml:"backend"`

	// SupportedDomains lists subject areas the backend's libraries cover.
	SupportedDomains []MathDomain `json:"supported_domains" yaml:"supported_domains"`

	// MaxComplexity is the heaviest complexity class the backend should be
	// handed.
	MaxComplexity ComplexityClass `json:"max_complexity" yaml:"max_complexity"`

	// AvgLatency is the expected per-request latency.
	AvgLatency time.Duration `json:"avg_latency" yaml:"avg_latency"`

	// ProofSearch reports whether the backend supports tactic-based search.
	ProofSearch bool `json:"proof_search" yaml:"proof_search"`

	// ConsistencyCheck reports whether the backend supports consistency tests.
	ConsistencyCheck bool `json:"consistency_check" yaml:"consistency_check"`
}

// ConsistencyAnalysis is the per-job verdict over a citation's own formal
// statements. An empty statement set is vacuously consistent; a lone
// statement is still refutation-tested. Per prd002-orchestration R4.1-R4.2.
type ConsistencyAnalysis struct {
	// InternalConsistent is false when the citation's statements contradict
	// each other.
	InternalConsistent bool `json:"internal_consistent" yaml:"internal_consistent"`

	// Contradictions describes each detected contradiction.
	Contradictions []string `json:"contradictions,omitempty" yaml:"contradictions,omitempty"`

	// Confidence is a value between 0.0 and 1.0.
	Confidence float64 `json:"confidence" yaml:"confidence"`
}

// ComplexityEstimate scores how hard a citation's verification work is,
// derived from statement count, hypothesis count, and claim kinds.
// Per prd002-orchestration R4.3.
type ComplexityEstimate struct {
	// Score is bounded to [0.0, 1.0]; theorem-typed claims weigh heaviest.
	Score float64 `json:"score" yaml:"score"`

	// Class is the citation's coarse classification, carried through.
	Class ComplexityClass `json:"class" yaml:"class"`

	// Factors names the inputs that contributed to the score.
	Factors []string `json:"factors,omitempty" yaml:"factors,omitempty"`
}

// ProofValidationResult is the orchestrator-level answer for one citation.
// Produced if and only if the owning job reaches the completed state.
// Per prd002-orchestration R3.1-R3.5.
type ProofValidationResult struct {
	// JobID identifies the validation job that produced this result.
	JobID string `json:"job_id" yaml:"job_id"`

	// CitationID identifies the validated citation.
	CitationID string `json:"citation_id" yaml:"citation_id"`

	// PrimaryValidation is the acting primary backend's aggregate verdict.
	// Always produced before any cross-validation fan-out.
	PrimaryValidation SingleProofResult `json:"primary_validation" yaml:"primary_validation"`

	// CrossValidation maps backend kind to that backend's aggregate verdict.
	// Empty (non-nil) when cross-validation was not triggered.
	CrossValidation map[BackendKind]SingleProofResult `json:"cross_validation" yaml:"cross_validation"`

	// Consistency is the verdict over the citation's own statements.
	Consistency ConsistencyAnalysis `json:"consistency" yaml:"consistency"`

	// Complexity estimates the difficulty of the citation's content.
	Complexity ComplexityEstimate `json:"complexity" yaml:"complexity"`

	// Timestamp records when validation finished.
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`

	// TotalDuration is the wall time from job start to completion.
	TotalDuration time.Duration `json:"total_duration" yaml:"total_duration"`

	// BackendsUsed lists every backend consulted for this result.
	BackendsUsed []BackendKind `json:"backends_used" yaml:"backends_used"`
}

// CitationContradiction attributes one detected contradiction back to the
// citations that contributed the implicated statements.
// Per prd002-orchestration R5.2.
type CitationContradiction struct {
	// Description is the contradiction text as reported by the backend.
	Description string `json:"description" yaml:"description"`

	// CitationIDs lists the citations whose statements are implicated.
	CitationIDs []string `json:"citation_ids" yaml:"citation_ids"`

	// StatementIDs lists the implicated statement identifiers.
	StatementIDs []string `json:"statement_ids,omitempty" yaml:"statement_ids,omitempty"`
}

// ConsistencyVerdict is the cross-citation consistency answer.
// Per prd002-orchestration R5.1-R5.3.
type ConsistencyVerdict struct {
	// Consistent is false when any contradiction was detected across the
	// pooled statements.
	Consistent bool `json:"consistent" yaml:"consistent"`

	// Contradictions lists detected contradictions with citation attribution.
	Contradictions []CitationContradiction `json:"contradictions,omitempty" yaml:"contradictions,omitempty"`

	// ConfidenceScore is the backend-reported confidence, passed through
	// unmodified.
	ConfidenceScore float64 `json:"confidence_score" yaml:"confidence_score"`

	// DetailedAnalysis is a human-readable summary of the check.
	DetailedAnalysis string `json:"detailed_analysis" yaml:"detailed_analysis"`
}
