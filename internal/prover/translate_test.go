// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package prover

import (
	"math"
	"strings"
	"testing"
)

func TestApplyRulesLeanSymbols(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "universal quantifier",
			text: "for all n, n + 0 = n",
			want: []string{"∀ n, n + 0 = n"},
		},
		{
			name: "existential",
			text: "there exists a prime p such that p > 100",
			want: []string{"∃ a prime p , p > 100"},
		},
		{
			name: "iff and conjunction",
			text: "n is even if and only if n mod 2 = 0 and n >= 0",
			want: []string{"↔", "∧"},
		},
		{
			name: "implication from if-then",
			text: "if n > 2 then n > 1",
			want: []string{"n > 2 → n > 1"},
		},
		{
			name: "negation",
			text: "it is not the case that 1 = 2",
			want: []string{"¬ 1 = 2"},
		},
		{
			name: "proof keywords stripped",
			text: "we show that 2 + 2 = 4. QED",
			want: []string{"2 + 2 = 4"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := applyRules(tt.text, leanRules)
			for _, want := range tt.want {
				if !strings.Contains(got, want) {
					t.Errorf("applyRules(%q) = %q, want it to contain %q", tt.text, got, want)
				}
			}
		})
	}
}

func TestApplyRulesCoqSymbols(t *testing.T) {
	got := applyRules("for every x, x = x or not x = x", coqRules)
	for _, want := range []string{"forall", `\/`, "~"} {
		if !strings.Contains(got, want) {
			t.Errorf("got %q, want it to contain %q", got, want)
		}
	}
}

func TestAutoNameStable(t *testing.T) {
	a := autoName("Every even number greater than 2 is composite")
	b := autoName("  every even number greater than 2 is composite ")
	if a != b {
		t.Errorf("autoName should ignore case and surrounding space: %q vs %q", a, b)
	}
	if !strings.HasPrefix(a, "auto_") {
		t.Errorf("autoName = %q, want auto_ prefix", a)
	}
	if c := autoName("a different sentence"); c == a {
		t.Error("distinct texts should get distinct names")
	}
}

func TestTranslationScoreWeights(t *testing.T) {
	tests := []struct {
		name                              string
		compiled, noPlaceholder, hasHead bool
		want                              float64
	}{
		{"all checks pass", true, true, true, 0.8},
		{"compile check failed", false, true, true, 0.4},
		{"placeholder present", true, false, true, 0.6},
		{"no theorem head", true, true, false, 0.6},
		{"nothing passes", false, false, false, 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, notes := translationScore(tt.compiled, tt.noPlaceholder, tt.hasHead)
			if math.Abs(score-tt.want) > 1e-9 {
				t.Errorf("score = %v, want %v", score, tt.want)
			}
			if len(notes) != 3 {
				t.Errorf("notes = %v, want one entry per checklist item", notes)
			}
		})
	}
}

func TestValidationConfidence(t *testing.T) {
	if got := validationConfidence(false, 0); got != 0.1 {
		t.Errorf("invalid confidence = %v, want 0.1", got)
	}
	if got := validationConfidence(true, 0); got != 0.9 {
		t.Errorf("clean confidence = %v, want 0.9", got)
	}
	if got := validationConfidence(true, 50); got != 0.5 {
		t.Errorf("heavily warned confidence = %v, want the 0.5 floor", got)
	}
}

func TestCacheKeyDistinguishesBackends(t *testing.T) {
	text := "for all n, n = n"
	if cacheKey("lean", text) == cacheKey("coq", text) {
		t.Error("cache keys must differ per backend")
	}
	if cacheKey("lean", text) != cacheKey("lean", text) {
		t.Error("cache keys must be stable")
	}
}

func TestContradictionMarkers(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"Proof of False found in hypothesis set", true},
		{"the axioms are Inconsistent", true},
		{"goal closed by absurd", true},
		{"unsolved goals remain", false},
	}
	for _, tt := range tests {
		if got := containsAny(tt.text, contradictionMarkers); got != tt.want {
			t.Errorf("containsAny(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestDescribeContradiction(t *testing.T) {
	got := describeContradiction([]string{"s1", "s4"}, "pair proves False")
	for _, want := range []string{"s1", "s4", "pair proves False"} {
		if !strings.Contains(got, want) {
			t.Errorf("description %q should contain %q", got, want)
		}
	}
}
