// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the proofbridge verification pipeline.
// Implements: prd001-capability (FormalStatement, SingleProofResult, R2.1-R2.4);
//
//	prd002-orchestration (ValidationJob, ProofValidationResult, R1.2, R3.1-R3.5);
//	prd003-statement-supply (Citation, MathClaim, MathematicalCitation, R1.1-R1.5);
//	prd002-orchestration (VerificationConfig, R6.1-R6.4).
//
// See docs/ARCHITECTURE.md § Verification Interface, § Data Structures.
package types

// Citation is a raw bibliographic reference as produced by the upstream
// citation parser. The verification layer treats it as read-only input.
type Citation struct {
	// ID is a stable identifier for the citation within its source document.
	ID string `json:"id" yaml:"id"`

	// RawText is the citation text exactly as it appears in the source.
	RawText string `json:"raw_text" yaml:"raw_text"`

	// Source identifies the document or corpus the citation came from.
	Source string `json:"source,omitempty" yaml:"source,omitempty"`

	// Line is the one-based line number of the citation in its source, or 0.
	Line int `json:"line,omitempty" yaml:"line,omitempty"`
}

// StatementKind categorizes a formal statement. Per prd003-statement-supply R2.2.
type StatementKind string

const (
	KindTheorem     StatementKind = "theorem"
	KindLemma       StatementKind = "lemma"
	KindDefinition  StatementKind = "definition"
	KindAxiom       StatementKind = "axiom"
	KindProposition StatementKind = "proposition"
)

// ComplexityClass is the coarse difficulty classification assigned to a
// citation's mathematical content. Per prd003-statement-supply R4.1.
type ComplexityClass string

const (
	ComplexityTrivial     ComplexityClass = "trivial"
	ComplexityPolynomial  ComplexityClass = "polynomial"
	ComplexityExponential ComplexityClass = "exponential"
	ComplexityUndecidable ComplexityClass = "undecidable"
	ComplexityUnknown     ComplexityClass = "unknown"
)

// MathDomain labels a mathematical subject area. Per prd003-statement-supply R4.2.
type MathDomain string

const (
	DomainNumberTheory  MathDomain = "number-theory"
	DomainAlgebra       MathDomain = "algebra"
	DomainAnalysis      MathDomain = "analysis"
	DomainCombinatorics MathDomain = "combinatorics"
	DomainLogic         MathDomain = "logic"
	DomainGeometry      MathDomain = "geometry"
	DomainGeneral       MathDomain = "general"
)

// MathClaim is one mathematical assertion identified inside a citation.
// Per prd003-statement-supply R2.1.
type MathClaim struct {
	// ID is a stable identifier for the claim within its citation.
	ID string `json:"id" yaml:"id"`

	// Text is the claim's natural-language text.
	Text string `json:"text" yaml:"text"`

	// Kind categorizes the claim: theorem, lemma, definition, axiom, or proposition.
	Kind StatementKind `json:"kind" yaml:"kind"`

	// Confidence is a value between 0.0 and 1.0 indicating extraction certainty.
	Confidence float64 `json:"confidence" yaml:"confidence"`
}

// FormalStatement is a candidate formal claim derived from citation text.
// Natural-language fields are immutable once produced by the statement
// supply; the orchestrator may add a FormalSource entry (translation on
// demand, at most one per backend) but never rewrites the source fields.
// Per prd003-statement-supply R2.2-R2.5, prd001-capability R3.2.
type FormalStatement struct {
	// ID is a stable identifier for the statement, used to re-attribute
	// contradictions back to their contributing citations.
	ID string `json:"id" yaml:"id"`

	// SourceText is the natural-language text the statement was derived from.
	SourceText string `json:"source_text" yaml:"source_text"`

	// FormalSource maps a backend kind to backend-specific formal source
	// text. Lazily populated; at most one entry per backend.
	FormalSource map[BackendKind]string `json:"formal_source,omitempty" yaml:"formal_source,omitempty"`

	// Kind categorizes the statement.
	Kind StatementKind `json:"kind" yaml:"kind"`

	// FreeVariables lists variable names appearing unbound in the statement.
	FreeVariables []string `json:"free_variables,omitempty" yaml:"free_variables,omitempty"`

	// Hypotheses lists antecedent clauses ("if ..." / "assume ...").
	Hypotheses []string `json:"hypotheses,omitempty" yaml:"hypotheses,omitempty"`

	// Conclusion is the consequent clause of the statement.
	Conclusion string `json:"conclusion" yaml:"conclusion"`

	// Confidence is a value between 0.0 and 1.0 indicating extraction certainty.
	Confidence float64 `json:"confidence" yaml:"confidence"`
}

// MathematicalCitation augments a Citation with its extracted mathematical
// content and the verification-necessity signal. Owned by the statement
// supply; passed by value into the orchestrator and treated as read-only
// apart from the FormalSource carve-out on FormalStatement.
// Per prd003-statement-supply R1.1-R1.5.
type MathematicalCitation struct {
	Citation `yaml:",inline"`

	// Claims lists the mathematical assertions found in the citation text.
	Claims []MathClaim `json:"claims,omitempty" yaml:"claims,omitempty"`

	// FormalStatements lists the formalizable candidates derived from Claims.
	FormalStatements []FormalStatement `json:"formal_statements,omitempty" yaml:"formal_statements,omitempty"`

	// Complexity is the coarse difficulty classification for the citation.
	Complexity ComplexityClass `json:"complexity" yaml:"complexity"`

	// Domains lists the mathematical subject areas touched by the citation.
	Domains []MathDomain `json:"domains,omitempty" yaml:"domains,omitempty"`

	// RequiresVerification is true when the citation's content warrants
	// spending formal-verification work. When false the orchestrator
	// short-circuits without consulting any backend.
	RequiresVerification bool `json:"requires_verification" yaml:"requires_verification"`
}
