// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package prover

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/pdiddy/proofbridge/pkg/types"
)

// lexRule rewrites one natural-language pattern into backend syntax.
type lexRule struct {
	re  *regexp.Regexp
	out string
}

// compileRules builds an ordered rule set from pattern/replacement pairs.
// Order matters: multi-word phrases must rewrite before their single-word
// substrings.
func compileRules(pairs [][2]string) []lexRule {
	rules := make([]lexRule, 0, len(pairs))
	for _, p := range pairs {
		rules = append(rules, lexRule{re: regexp.MustCompile(p[0]), out: p[1]})
	}
	return rules
}

// applyRules runs every rule in order and collapses the leftover whitespace.
func applyRules(text string, rules []lexRule) string {
	out := text
	for _, r := range rules {
		out = r.re.ReplaceAllString(out, r.out)
	}
	return strings.Join(strings.Fields(out), " ")
}

// phrasePairs is the fixed lexical pattern set shared by all backends,
// parameterized by the backend's connective symbols. Quantifiers, "if and
// only if", implication, negation, conjunction, disjunction, and proof
// keywords; nothing cleverer. Per prd001-capability R3.1-R3.2.
func phrasePairs(forAll, exists, implies, iff, not, and, or string) [][2]string {
	return [][2]string{
		{`(?i)\bfor\s+(?:all|every|each)\b`, forAll},
		{`(?i)\bthere\s+exists?\b`, exists},
		{`(?i)\bthere\s+is\s+(?:a|an|some)\b`, exists},
		{`(?i)\bif\s+and\s+only\s+if\b`, iff},
		{`(?i)\biff\b`, iff},
		{`(?i)\bimplies\b`, implies},
		{`(?i)\bit\s+is\s+not\s+the\s+case\s+that\b`, not},
		{`(?i)\bsuch\s+that\b`, ", "},
		{`(?i)\b(?:we\s+(?:show|prove)\s+that|one\s+can\s+show\s+that)\b`, ""},
		{`(?i)\b(?:proof|q\.?e\.?d\.?)\b[.:]?`, ""},
		{`(?i)\bthen\b`, implies},
		{`(?i)\bif\b`, ""},
		{`(?i)\band\b`, and},
		{`(?i)\bor\b`, or},
		{`(?i)\bnot\b`, not},
	}
}

// autoName derives a stable declaration name from the source text so
// repeated translations of the same sentence collide instead of piling up.
func autoName(text string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(strings.ToLower(text))))
	return "auto_" + hex.EncodeToString(sum[:4])
}

// translationScore applies the fixed confidence checklist: did the
// generated code compile-check cleanly, does it avoid unfinished-proof
// markers, and does it carry a recognizable theorem head. The ceiling is
// deliberately below 1.0: lexical translation is never certain.
func translationScore(compiledClean, noPlaceholder, hasHead bool) (float64, []string) {
	var score float64
	notes := make([]string, 0, 3)

	if compiledClean {
		score += 0.4
		notes = append(notes, "compile check passed")
	} else {
		notes = append(notes, "compile check failed")
	}
	if noPlaceholder {
		score += 0.2
		notes = append(notes, "no placeholder markers")
	} else {
		notes = append(notes, "placeholder markers present")
	}
	if hasHead {
		score += 0.2
		notes = append(notes, "recognizable theorem head")
	} else {
		notes = append(notes, "no theorem head")
	}

	return score, notes
}

// cacheKey builds the translation-cache key for backend+text.
func cacheKey(backend, text string) string {
	sum := sha256.Sum256([]byte(text))
	return backend + ":" + hex.EncodeToString(sum[:16])
}

// containsAny reports whether s contains any of the markers, ignoring case.
func containsAny(s string, markers []string) bool {
	lower := strings.ToLower(s)
	for _, m := range markers {
		if strings.Contains(lower, strings.ToLower(m)) {
			return true
		}
	}
	return false
}

// hasErrorSeverity reports whether any diagnostic is error-severity.
func hasErrorSeverity(errs []types.VerifierError) bool {
	for _, e := range errs {
		if e.Severity == types.SeverityError {
			return true
		}
	}
	return false
}

// validationConfidence maps a diagnostic profile to a confidence value.
// A clean check is high confidence but never certainty; warnings shave it.
func validationConfidence(valid bool, warnings int) float64 {
	if !valid {
		return 0.1
	}
	c := 0.9 - 0.05*float64(warnings)
	if c < 0.5 {
		c = 0.5
	}
	return c
}

// describeContradiction names the implicated statement IDs inline so callers
// can attribute the finding back to its citations by ID membership.
func describeContradiction(ids []string, detail string) string {
	return fmt.Sprintf("statements [%s]: %s", strings.Join(ids, " "), detail)
}

// contradictionMarkers are diagnostic substrings any backend may emit when a
// statement set is inconsistent.
var contradictionMarkers = []string{
	"contradiction",
	"inconsistent",
	"absurd",
	"proof of false",
	"derives false",
}
