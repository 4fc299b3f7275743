package validate

import (
	"fmt"

	"github.com/pdiddy/proofbridge/pkg/types"
)

// estimateComplexity scores how hard a citation's verification work is from
// its statement count, hypothesis count, claim kinds, and coarse complexity
// class. Theorem-typed claims weigh heaviest. The score is clamped to [0, 1].
func estimateComplexity(c *types.MathematicalCitation) types.ComplexityEstimate {
	var (
		score   float64
		factors []string
	)

	if n := len(c.FormalStatements); n > 0 {
		score += capped(0.1*float64(n), 0.3)
		factors = append(factors, fmt.Sprintf("%d formal statements", n))
	}

	var hyps int
	for _, s := range c.FormalStatements {
		hyps += len(s.Hypotheses)
	}
	if hyps > 0 {
		score += capped(0.05*float64(hyps), 0.2)
		factors = append(factors, fmt.Sprintf("%d hypotheses", hyps))
	}

	var theorems, lemmas int
	for _, claim := range c.Claims {
		switch claim.Kind {
		case types.KindTheorem:
			theorems++
		case types.KindLemma:
			lemmas++
		}
	}
	if theorems > 0 {
		score += capped(0.15*float64(theorems), 0.3)
		factors = append(factors, fmt.Sprintf("%d theorem claims", theorems))
	}
	if lemmas > 0 {
		score += capped(0.05*float64(lemmas), 0.1)
		factors = append(factors, fmt.Sprintf("%d lemma claims", lemmas))
	}

	if bump := classWeight(c.Complexity); bump > 0 {
		score += bump
		factors = append(factors, fmt.Sprintf("complexity class %s", c.Complexity))
	}

	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}
	return types.ComplexityEstimate{Score: score, Class: c.Complexity, Factors: factors}
}

func classWeight(class types.ComplexityClass) float64 {
	switch class {
	case types.ComplexityUndecidable:
		return 0.5
	case types.ComplexityExponential:
		return 0.3
	case types.ComplexityPolynomial:
		return 0.1
	case types.ComplexityUnknown:
		return 0.05
	default:
		return 0
	}
}

func capped(v, limit float64) float64 {
	if v > limit {
		return limit
	}
	return v
}
