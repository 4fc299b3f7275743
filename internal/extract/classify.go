// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"regexp"
	"strings"

	"github.com/pdiddy/proofbridge/pkg/types"
)

// Domain vocabulary patterns (R4.2). Word-anchored so "ring" does not match
// inside "string". Evaluated in order; all matching domains are reported.
var domainPatterns = []struct {
	domain types.MathDomain
	re     *regexp.Regexp
}{
	{types.DomainNumberTheory, regexp.MustCompile(`(?i)\b(primes?|integers?|divisors?|divisible|divides|modulo|gcd|congruent|natural numbers?)\b`)},
	{types.DomainAlgebra, regexp.MustCompile(`(?i)\b(groups?|rings?|fields?|polynomials?|matri(?:x|ces)|vector spaces?|homomorphisms?|ideals?)\b`)},
	{types.DomainAnalysis, regexp.MustCompile(`(?i)\b(limits?|continuous|derivatives?|integrals?|converges?|convergent|sequences?|series|metric spaces?)\b`)},
	{types.DomainCombinatorics, regexp.MustCompile(`(?i)\b(graphs?|vertex|vertices|permutations?|combinatori(?:al|cs)|partitions?|subsets?|pigeonhole)\b`)},
	{types.DomainLogic, regexp.MustCompile(`(?i)\b(decidable|undecidable|consistent|satisfiable|provable|first-order|propositional)\b`)},
	{types.DomainGeometry, regexp.MustCompile(`(?i)\b(triangles?|circles?|angles?|polygons?|euclidean|manifolds?|curvature)\b`)},
}

// classifyDomains returns the subject areas whose vocabulary appears in the
// text. Falls back to the general domain when nothing matches.
func classifyDomains(text string) []types.MathDomain {
	var domains []types.MathDomain
	for _, dp := range domainPatterns {
		if dp.re.MatchString(text) {
			domains = append(domains, dp.domain)
		}
	}
	if len(domains) == 0 {
		return []types.MathDomain{types.DomainGeneral}
	}
	return domains
}

// complexityMarkers orders complexity classes hardest first; the first class
// whose marker appears in the text wins (R4.1).
var complexityMarkers = []struct {
	class   types.ComplexityClass
	markers []string
}{
	{types.ComplexityUndecidable, []string{"undecidable", "halting problem", "unprovable", "independent of zfc"}},
	{types.ComplexityExponential, []string{"np-hard", "np-complete", "exponential", "intractable", "superpolynomial"}},
	{types.ComplexityPolynomial, []string{"polynomial time", "polynomial-time", "linear time", "quadratic", "closed form", "closed-form"}},
}

// arithmeticRe matches text consisting only of numerals, operators, and
// punctuation: a concrete identity with no free structure.
var arithmeticRe = regexp.MustCompile(`^[\s\d+\-*/^=<>≤≥≠().,%!]+$`)

// classifyComplexity assigns the coarse difficulty class for a citation.
// Explicit markers dominate; otherwise a claim set that is all concrete
// arithmetic is trivial, and anything else is unknown.
func classifyComplexity(text string, claims []types.MathClaim) types.ComplexityClass {
	lower := strings.ToLower(text)
	for _, cm := range complexityMarkers {
		for _, m := range cm.markers {
			if strings.Contains(lower, m) {
				return cm.class
			}
		}
	}

	if len(claims) == 0 {
		return types.ComplexityUnknown
	}
	for _, cl := range claims {
		if !arithmeticRe.MatchString(strings.TrimSpace(cl.Text)) {
			return types.ComplexityUnknown
		}
	}
	return types.ComplexityTrivial
}

// requiresVerification reports whether the citation's content warrants
// formal-verification work. Theorem- or lemma-kind claims and explicit proof
// mentions qualify; text yielding no formalizable statements never does (R1.4).
func requiresVerification(claims []types.MathClaim, text string, statements int) bool {
	if statements == 0 {
		return false
	}
	for _, cl := range claims {
		if cl.Kind == types.KindTheorem || cl.Kind == types.KindLemma {
			return true
		}
	}
	return proofMentionRe.MatchString(text)
}
