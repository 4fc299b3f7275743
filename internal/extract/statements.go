package extract

import (
	"regexp"
	"sort"
	"strings"

	"github.com/pdiddy/proofbridge/pkg/types"
)

// Hypothesis/conclusion split patterns (R2.4). Tried in order; first match wins.
var (
	// ifThenRe splits "if H then C" with an optional comma before "then".
	ifThenRe = regexp.MustCompile(`(?i)^if\s+(.+?),?\s+then\s+(.+)$`)

	// assumeRe splits "assume/suppose/given (that) H, C".
	assumeRe = regexp.MustCompile(`(?i)^(?:assume|suppose|given)\s+(?:that\s+)?(.+?),\s+(.+)$`)

	// wheneverRe splits a trailing condition: "C whenever H".
	wheneverRe = regexp.MustCompile(`(?i)^(.+?),?\s+(?:whenever|provided that|provided)\s+(.+)$`)
)

// splitHypotheses separates a claim into antecedent hypotheses and the
// conclusion. Claims with no conditional structure keep the whole text as
// the conclusion.
func splitHypotheses(text string) (hyps []string, conclusion string) {
	text = strings.TrimSpace(strings.TrimRight(strings.TrimSpace(text), "."))
	if m := ifThenRe.FindStringSubmatch(text); m != nil {
		return splitConjuncts(m[1]), strings.TrimSpace(m[2])
	}
	if m := assumeRe.FindStringSubmatch(text); m != nil {
		return splitConjuncts(m[1]), strings.TrimSpace(m[2])
	}
	if m := wheneverRe.FindStringSubmatch(text); m != nil {
		return splitConjuncts(m[2]), strings.TrimSpace(m[1])
	}
	return nil, text
}

// splitConjuncts splits a hypothesis block on "and" connectors.
func splitConjuncts(text string) []string {
	var hyps []string
	for _, part := range strings.Split(text, " and ") {
		if p := strings.TrimSpace(part); p != "" {
			hyps = append(hyps, p)
		}
	}
	return hyps
}

// Free-variable capture patterns (R2.3).
var (
	// quantVarRe captures a single-letter variable bound by a quantifier
	// phrase, allowing up to two type words: "for all natural numbers n".
	quantVarRe = regexp.MustCompile(`(?i)\b(?:for\s+(?:all|every|each)|there\s+exists?|there\s+is\s+(?:a|an|some))\s+(?:[a-z]+\s+){0,2}([a-z])\b`)

	// relVarRe captures a single-letter variable to the left of an operator.
	relVarRe = regexp.MustCompile(`\b([a-z])\s*[=<>+\-*/^≤≥≠]`)

	// relVarRightRe captures a single-letter variable to the right of an operator.
	relVarRightRe = regexp.MustCompile(`[=<>+\-*/^≤≥≠]\s*([a-z])\b`)
)

// freeVariables collects candidate variable names from quantifier phrases
// and operator neighborhoods. Single letters only; "a" is skipped because it
// reads as an article.
func freeVariables(text string) []string {
	seen := make(map[string]bool)
	collect := func(matches [][]string) {
		for _, m := range matches {
			v := strings.ToLower(m[1])
			if v == "a" || seen[v] {
				continue
			}
			seen[v] = true
		}
	}
	collect(quantVarRe.FindAllStringSubmatch(text, -1))
	collect(relVarRe.FindAllStringSubmatch(text, -1))
	collect(relVarRightRe.FindAllStringSubmatch(text, -1))

	vars := make([]string, 0, len(seen))
	for v := range seen {
		vars = append(vars, v)
	}
	sort.Strings(vars)
	return vars
}

// buildStatement derives the candidate formal statement for a claim. The
// formal-source map starts empty; translation happens on demand downstream
// (R2.5).
func buildStatement(citationID string, claim types.MathClaim) types.FormalStatement {
	hyps, conclusion := splitHypotheses(claim.Text)
	return types.FormalStatement{
		ID:            stableID(citationID, "stmt", claim.ID),
		SourceText:    claim.Text,
		Kind:          claim.Kind,
		FreeVariables: freeVariables(claim.Text),
		Hypotheses:    hyps,
		Conclusion:    conclusion,
		Confidence:    claim.Confidence,
	}
}
