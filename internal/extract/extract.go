// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package extract identifies mathematical claims within citation text and
// derives candidate formal statements from them. extract.go handles claim
// harvesting and batch extraction; classify.go assigns complexity and domain
// labels; statements.go builds the formal-statement candidates.
// Implements: prd003-statement-supply (R1, R2, R5);
//
//	docs/ARCHITECTURE § Statement Supply.
package extract

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/proofbridge/pkg/logging"
	"github.com/pdiddy/proofbridge/pkg/types"
)

// Claim detection patterns (R2.1).
var (
	// statementHeadRe matches explicit statement heads like "Theorem 3.1",
	// "Lemma (Zorn)", or a bare "Corollary" opening a clause.
	statementHeadRe = regexp.MustCompile(`(?i)\b(theorem|lemma|corollary|proposition|conjecture|claim)\b`)

	// axiomRe matches axiomatic phrasing.
	axiomRe = regexp.MustCompile(`(?i)\b(axiom|postulate)s?\b`)

	// definitionRe matches definitional phrasing like "we define",
	// "is defined as", or "is called".
	definitionRe = regexp.MustCompile(`(?i)\b(definition|defined?\s+as|we\s+define|is\s+called|denotes?)\b`)

	// quantifierRe matches natural-language quantifier phrases that signal a
	// general mathematical assertion.
	quantifierRe = regexp.MustCompile(`(?i)\b(for\s+(?:all|every|each)|there\s+(?:exists?|are|is\s+(?:a|an|some))|if\s+and\s+only\s+if)\b`)

	// conditionalRe matches sentences with explicit if/then structure.
	conditionalRe = regexp.MustCompile(`(?i)^if\b.+\bthen\b`)

	// relationRe matches symbolic or spelled-out comparisons between terms.
	relationRe = regexp.MustCompile(`(?i)[=≠<>≤≥]|\b(equals?|divides|greater\s+than|less\s+than|at\s+least|at\s+most|congruent\s+to)\b`)

	// proofMentionRe matches explicit references to a proof.
	proofMentionRe = regexp.MustCompile(`(?i)\bproofs?\b|\bprov(?:es?|en|ed|able)\b|\bq\.e\.d\.?|∎`)
)

// Extractor turns raw citations into MathematicalCitation records. The
// produced records are read-only inputs for the validation orchestrator.
type Extractor struct {
	log *logging.Logger
}

// New returns an Extractor. A nil logger discards extraction diagnostics.
func New(log *logging.Logger) *Extractor {
	if log == nil {
		log = logging.Discard()
	}
	return &Extractor{log: log}
}

// ExtractMathematicalCitation analyzes one citation's text and returns it
// augmented with claims, formal statement candidates, complexity, domains,
// and the verification-necessity signal (R1.1-R1.5).
func (e *Extractor) ExtractMathematicalCitation(c types.Citation) (types.MathematicalCitation, error) {
	if strings.TrimSpace(c.RawText) == "" {
		return types.MathematicalCitation{}, fmt.Errorf("citation %q has no text", c.ID)
	}
	if c.ID == "" {
		c.ID = stableID(c.Source, "citation", c.RawText)
	}

	claims := harvestClaims(c.ID, c.RawText)

	var statements []types.FormalStatement
	for _, cl := range claims {
		if cl.Kind == types.KindDefinition {
			continue // definitions name objects; nothing to prove
		}
		statements = append(statements, buildStatement(c.ID, cl))
	}

	mc := types.MathematicalCitation{
		Citation:             c,
		Claims:               claims,
		FormalStatements:     statements,
		Complexity:           classifyComplexity(c.RawText, claims),
		Domains:              classifyDomains(c.RawText),
		RequiresVerification: requiresVerification(claims, c.RawText, len(statements)),
	}

	e.log.Debug("extracted mathematical content",
		"citation", c.ID,
		"claims", len(claims),
		"statements", len(statements),
		"complexity", mc.Complexity,
		"requires_verification", mc.RequiresVerification)

	return mc, nil
}

// harvestClaims splits the citation text into sentences and collects the
// mathematical claims found in them, deduplicated by normalized text.
func harvestClaims(citationID, text string) []types.MathClaim {
	seen := make(map[string]bool)
	var claims []types.MathClaim

	for _, sentence := range splitSentences(text) {
		kind, confidence, ok := classifyClaim(sentence)
		if !ok {
			continue
		}
		norm := strings.ToLower(strings.Join(strings.Fields(sentence), " "))
		if seen[norm] {
			continue
		}
		seen[norm] = true
		claims = append(claims, types.MathClaim{
			ID:         stableID(citationID, "claim", norm),
			Text:       sentence,
			Kind:       kind,
			Confidence: confidence,
		})
	}
	return claims
}

// classifyClaim determines whether a sentence is a mathematical claim and,
// if so, its kind and extraction confidence. Returns ok=false for prose.
// Stronger evidence wins: explicit heads beat definitional phrasing, which
// beats bare quantifier or relation matches (R2.2).
func classifyClaim(sentence string) (kind types.StatementKind, confidence float64, ok bool) {
	switch {
	case axiomRe.MatchString(sentence):
		return types.KindAxiom, 0.85, true
	case statementHeadRe.MatchString(sentence):
		return headKind(sentence), 0.9, true
	case definitionRe.MatchString(sentence):
		return types.KindDefinition, 0.85, true
	case quantifierRe.MatchString(sentence) && relationRe.MatchString(sentence):
		return types.KindProposition, 0.8, true
	case conditionalRe.MatchString(sentence):
		return types.KindProposition, 0.75, true
	case quantifierRe.MatchString(sentence):
		return types.KindProposition, 0.7, true
	case relationRe.MatchString(sentence):
		return types.KindProposition, 0.6, true
	}
	return "", 0, false
}

// headKind maps an explicit statement head to its kind. Corollaries follow
// their parent theorem; conjectures and claims are propositions pending proof.
func headKind(sentence string) types.StatementKind {
	m := statementHeadRe.FindStringSubmatch(sentence)
	switch strings.ToLower(m[1]) {
	case "theorem", "corollary":
		return types.KindTheorem
	case "lemma":
		return types.KindLemma
	default:
		return types.KindProposition
	}
}

// decimalRe matches a period between digits, so "3.14" and "Theorem 2.1"
// survive sentence splitting.
var decimalRe = regexp.MustCompile(`(\d)\.(\d)`)

// sentenceEndRe matches a sentence terminator followed by whitespace or the
// end of the text.
var sentenceEndRe = regexp.MustCompile(`[.;!?]+(\s+|$)`)

// splitSentences splits citation text at sentence boundaries, protecting
// common abbreviations and decimal numbers with placeholders before the
// split and restoring them afterwards.
func splitSentences(text string) []string {
	safe := strings.ReplaceAll(text, "et al.", "et al\x00")
	safe = strings.ReplaceAll(safe, "e.g.", "e\x00g\x00")
	safe = strings.ReplaceAll(safe, "i.e.", "i\x00e\x00")
	safe = strings.ReplaceAll(safe, "cf.", "cf\x00")
	safe = strings.ReplaceAll(safe, "Thm.", "Thm\x00")
	safe = strings.ReplaceAll(safe, "Eq.", "Eq\x00")
	safe = decimalRe.ReplaceAllString(safe, "${1}\x00${2}")

	var out []string
	for _, part := range sentenceEndRe.Split(safe, -1) {
		part = strings.ReplaceAll(part, "\x00", ".")
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// stableID derives a deterministic 12-hex-character identifier from its parts.
func stableID(scope, role, content string) string {
	h := sha256.New()
	h.Write([]byte(scope))
	h.Write([]byte(role))
	h.Write([]byte(content))
	return fmt.Sprintf("%x", h.Sum(nil))[:12]
}

// LoadCitations reads a citation list from a YAML or JSON file. Citations
// without an ID are assigned a stable one derived from the file and their
// position; an empty Source falls back to the file name (R1.1).
func LoadCitations(path string) ([]types.Citation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading citations %s: %w", path, err)
	}

	var citations []types.Citation
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &citations); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(data, &citations); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported citation format %q (want .yaml, .yml, or .json)", ext)
	}

	if len(citations) == 0 {
		return nil, fmt.Errorf("no citations found in %s", path)
	}

	base := filepath.Base(path)
	for i := range citations {
		if citations[i].Source == "" {
			citations[i].Source = base
		}
		if citations[i].ID == "" {
			citations[i].ID = stableID(base, fmt.Sprintf("%d", i), citations[i].RawText)
		}
	}
	return citations, nil
}

// CitationsFromText splits raw text into citations, one per blank-line
// separated block, recording the one-based starting line of each block.
func CitationsFromText(text, source string) []types.Citation {
	var citations []types.Citation
	var block []string
	start := 0

	flush := func() {
		trimmed := strings.TrimSpace(strings.Join(block, "\n"))
		if trimmed != "" {
			citations = append(citations, types.Citation{
				ID:      stableID(source, fmt.Sprintf("%d", start+1), trimmed),
				RawText: trimmed,
				Source:  source,
				Line:    start + 1,
			})
		}
		block = block[:0]
	}

	for i, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		if len(block) == 0 {
			start = i
		}
		block = append(block, line)
	}
	flush()
	return citations
}

// BatchSummary reports the outcome of a batch extraction run.
type BatchSummary struct {
	Extracted int // citations with at least one claim
	Skipped   int // citations with no mathematical content
	Failed    int // citations that could not be processed
}

// Total returns the number of citations examined.
func (s BatchSummary) Total() int {
	return s.Extracted + s.Skipped + s.Failed
}

// HasFailures reports whether any citation failed.
func (s BatchSummary) HasFailures() bool {
	return s.Failed > 0
}

// ExtractAll processes citations in order, writing one status line per
// citation to w. Individual failures do not stop the batch (R5.1); failed
// citations are dropped from the returned slice. Citations with no
// mathematical content are kept so the orchestrator can short-circuit them.
func (e *Extractor) ExtractAll(citations []types.Citation, w io.Writer) ([]types.MathematicalCitation, BatchSummary) {
	var out []types.MathematicalCitation
	var summary BatchSummary

	for i, c := range citations {
		name := c.ID
		if name == "" {
			name = fmt.Sprintf("#%d", i+1)
		}

		mc, err := e.ExtractMathematicalCitation(c)
		if err != nil {
			summary.Failed++
			fmt.Fprintf(w, "failed  %s: %v\n", name, err)
			continue
		}
		if len(mc.Claims) == 0 {
			summary.Skipped++
			fmt.Fprintf(w, "skipped %s (no mathematical content)\n", mc.ID)
		} else {
			summary.Extracted++
			fmt.Fprintf(w, "extracted %s (%d claims, %d statements)\n", mc.ID, len(mc.Claims), len(mc.FormalStatements))
		}
		out = append(out, mc)
	}
	return out, summary
}
