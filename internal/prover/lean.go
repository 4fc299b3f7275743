// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package prover

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	cache "github.com/patrickmn/go-cache"

	"github.com/pdiddy/proofbridge/internal/retry"
	"github.com/pdiddy/proofbridge/pkg/logging"
	"github.com/pdiddy/proofbridge/pkg/types"
)

// Lean is driven through a JSON-lines REPL: one request object per line on
// stdin, one reply object per line on stdout, correlated by sequence number.
//
// Request:  {"seq":3,"cmd":"theorem t : 1+1=2 := by decide"}
// Reply:    {"seq":3,"env":4,"messages":[...],"sorries":[...]}
type leanRequest struct {
	Seq int64  `json:"seq"`
	Cmd string `json:"cmd"`
}

type leanReply struct {
	Seq      int64         `json:"seq"`
	Env      int           `json:"env,omitempty"`
	Messages []leanMessage `json:"messages,omitempty"`
	Sorries  []leanSorry   `json:"sorries,omitempty"`
}

type leanMessage struct {
	Severity string  `json:"severity"`
	Pos      leanPos `json:"pos"`
	Data     string  `json:"data"`
}

type leanPos struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

type leanSorry struct {
	Pos  leanPos `json:"pos"`
	Goal string  `json:"goal,omitempty"`
}

var (
	// leanRules is the fixed lexical rewrite set targeting Lean syntax.
	leanRules = compileRules(phrasePairs("∀", "∃", "→", "↔", "¬", "∧", "∨"))

	// leanPlaceholders are unfinished-proof markers in Lean source.
	leanPlaceholders = []string{"sorry", "admit"}

	// leanHeadRe recognizes a well-formed declaration head.
	leanHeadRe = regexp.MustCompile(`^\s*(theorem|lemma|example)\s+\w+\s*.*:`)

	// leanTactics is the fixed ordered tactic list for proof search.
	leanTactics = []string{"simp", "decide", "omega", "exact?", "aesop", "norm_num"}
)

// disconnectGrace bounds how long a graceful adapter shutdown waits before
// the prover process is killed.
const disconnectGrace = 2 * time.Second

const leanHealthKey = "health:lean"

// leanVerifier owns one Lean REPL process for its connected lifetime.
type leanVerifier struct {
	cfg  types.AdapterConfig
	opts Options
	log  *logging.Logger
	exec executor

	mu    sync.Mutex // guards sess and state
	sess  session
	state ConnState

	reqMu sync.Mutex // serializes REPL round trips
	seq   atomic.Int64

	cache *cache.Cache // translations and health probes; nil when disabled
}

func newLeanVerifier(cfg types.AdapterConfig, opts Options) Verifier {
	opts = opts.normalized()
	v := &leanVerifier{
		cfg:   cfg,
		opts:  opts,
		log:   opts.Logger.With("backend", string(types.BackendLean)),
		exec:  defaultExec,
		state: StateDisconnected,
	}
	if opts.CacheEnabled {
		v.cache = cache.New(opts.CacheTTL, 2*opts.CacheTTL)
	}
	return v
}

func (v *leanVerifier) Backend() types.BackendKind { return types.BackendLean }

func (v *leanVerifier) Capabilities() types.Capabilities {
	return types.Capabilities{
		Backend: types.BackendLean,
		SupportedDomains: []types.MathDomain{
			types.DomainNumberTheory,
			types.DomainAlgebra,
			types.DomainLogic,
			types.DomainCombinatorics,
			types.DomainAnalysis,
		},
		MaxComplexity:    types.ComplexityExponential,
		AvgLatency:       2 * time.Second,
		ProofSearch:      true,
		ConsistencyCheck: true,
	}
}

func (v *leanVerifier) State() ConnState {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state == StateConnected && (v.sess == nil || !v.sess.alive()) {
		return StateError
	}
	return v.state
}

func (v *leanVerifier) IsReady() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state == StateConnected && v.sess != nil && v.sess.alive()
}

// Initialize detects the Lean toolchain, spawns the REPL, and runs the
// bootstrap commands. It reports success; it never panics. A cancelled
// handshake releases any process it had already spawned.
func (v *leanVerifier) Initialize(ctx context.Context) bool {
	v.mu.Lock()
	if v.state == StateConnected && v.sess != nil && v.sess.alive() {
		v.mu.Unlock()
		return true
	}
	v.state = StateConnecting
	v.mu.Unlock()

	ok := false
	defer func() {
		if ok {
			return
		}
		v.mu.Lock()
		if v.state == StateConnecting {
			v.state = StateError
		}
		v.mu.Unlock()
	}()

	command, args := splitCommand(v.cfg.Command, v.cfg.Args)
	if err := detectBackend(ctx, v.exec, command, []string{"--version"}); err != nil {
		v.log.Warn("lean unavailable", "error", err)
		return false
	}

	env, err := LoadEnv(v.cfg.EnvDir)
	if err != nil {
		v.log.Warn("backend environment not loaded", "dir", v.cfg.EnvDir, "error", err)
	}

	var sess session
	err = retry.Do(ctx, 2, func() error {
		s, err := v.exec.Start(startConfig{name: command, args: args, dir: v.cfg.WorkDir, env: env})
		if err != nil {
			return err
		}
		if err := v.bootstrap(ctx, s); err != nil {
			s.shutdown("", disconnectGrace)
			return err
		}
		sess = s
		return nil
	})
	if err != nil {
		v.log.Error("lean session failed to start", "error", err)
		return false
	}

	v.mu.Lock()
	if v.state != StateConnecting {
		// Disconnected while handshaking; release the fresh process.
		v.mu.Unlock()
		sess.shutdown("", disconnectGrace)
		return false
	}
	v.sess = sess
	v.state = StateConnected
	v.mu.Unlock()

	ok = true
	v.log.Info("lean session ready", "command", command)
	return true
}

// bootstrap brings a fresh REPL up with one throwaway evaluation plus any
// configured bootstrap commands, all within the bootstrap budget.
func (v *leanVerifier) bootstrap(ctx context.Context, s session) error {
	timeout := v.cfg.BootstrapTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	bctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmds := append([]string{"#eval 1+1"}, v.cfg.BootstrapCommands...)
	for _, cmd := range cmds {
		if _, err := v.roundTripOn(bctx, s, cmd); err != nil {
			return fmt.Errorf("bootstrap %q: %w", cmd, err)
		}
	}
	return nil
}

// Disconnect closes the session, graceful first, kill after the grace
// period. Safe to call in any state, any number of times.
func (v *leanVerifier) Disconnect() {
	v.mu.Lock()
	s := v.sess
	v.sess = nil
	v.state = StateDisconnected
	v.mu.Unlock()

	if s == nil {
		return
	}
	s.shutdown("", disconnectGrace)
	v.log.Info("lean session closed")
}

func (v *leanVerifier) roundTrip(ctx context.Context, cmd string) (*leanReply, error) {
	v.mu.Lock()
	s := v.sess
	ready := v.state == StateConnected && s != nil && s.alive()
	v.mu.Unlock()
	if !ready {
		return nil, ErrNotReady
	}
	return v.roundTripOn(ctx, s, cmd)
}

func (v *leanVerifier) roundTripOn(ctx context.Context, s session, cmd string) (*leanReply, error) {
	seq := v.seq.Add(1)
	payload, err := json.Marshal(leanRequest{Seq: seq, Cmd: cmd})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	v.reqMu.Lock()
	defer v.reqMu.Unlock()

	if err := s.send(string(payload)); err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}

	var reply *leanReply
	_, cancelled := s.recvUntil(ctx, func(line string) bool {
		r, ok := decodeLeanReply(line)
		if ok && r.Seq == seq {
			reply = r
			return true
		}
		return false
	})
	if cancelled {
		return nil, fmt.Errorf("request %d: %w", seq, ctx.Err())
	}
	if reply == nil {
		return nil, fmt.Errorf("session closed before reply %d", seq)
	}
	return reply, nil
}

func decodeLeanReply(line string) (*leanReply, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "{") {
		return nil, false
	}
	var r leanReply
	if err := json.Unmarshal([]byte(trimmed), &r); err != nil {
		return nil, false
	}
	return &r, true
}

// TranslateToFormal rewrites natural-language text into a Lean declaration
// using the fixed lexical rules, then scores it against the confidence
// checklist. The compile check closes the declaration with sorry so only
// well-formedness is judged, not provability.
func (v *leanVerifier) TranslateToFormal(ctx context.Context, text string) (types.TranslationResult, error) {
	if !v.IsReady() {
		return types.TranslationResult{}, ErrNotReady
	}

	key := cacheKey(string(types.BackendLean), text)
	if v.cache != nil {
		if hit, found := v.cache.Get(key); found {
			if res, castOK := hit.(types.TranslationResult); castOK {
				return res, nil
			}
		}
	}

	prop := applyRules(text, leanRules)
	decl := fmt.Sprintf("theorem %s : %s", autoName(text), prop)

	compiledClean := false
	rctx, cancel := context.WithTimeout(ctx, v.opts.RequestTimeout)
	defer cancel()
	if reply, err := v.roundTrip(rctx, decl+" := by sorry"); err == nil {
		errs, _ := leanDiagnostics(reply, v.opts.MaxErrors)
		compiledClean = !hasErrorSeverity(errs)
	}

	noPlaceholder := !containsAny(decl, leanPlaceholders)
	hasHead := leanHeadRe.MatchString(decl)
	score, notes := translationScore(compiledClean, noPlaceholder, hasHead)

	res := types.TranslationResult{Formal: decl, Confidence: score, Notes: notes}
	if v.cache != nil {
		v.cache.Set(key, res, cache.DefaultExpiration)
	}
	return res, nil
}

// ValidateStatement submits the statement's Lean source and parses the
// structured diagnostics. Valid means no error-severity diagnostic; an
// expired budget flags the result, it does not fail the call.
func (v *leanVerifier) ValidateStatement(ctx context.Context, stmt *types.FormalStatement) (types.SingleProofResult, error) {
	if !v.IsReady() {
		return types.SingleProofResult{}, ErrNotReady
	}
	src := strings.TrimSpace(stmt.FormalSource[types.BackendLean])
	if src == "" {
		return types.SingleProofResult{}, fmt.Errorf("%w: %s", ErrNoFormalSource, types.BackendLean)
	}

	start := time.Now()
	res := types.SingleProofResult{Backend: types.BackendLean}

	rctx, cancel := context.WithTimeout(ctx, v.opts.RequestTimeout)
	defer cancel()
	reply, err := v.roundTrip(rctx, closeLeanDecl(src))

	res.Duration = time.Since(start)
	res.Resources.CPUTime = res.Duration
	res.Resources.MemoryBytes = v.memory()

	if err != nil {
		if isTimeout(err) {
			res.Resources.TimedOut = true
			res.Errors = append(res.Errors, types.VerifierError{
				Code:     "timeout",
				Message:  err.Error(),
				Severity: types.SeverityWarning,
			})
			return res, nil
		}
		return res, err
	}

	res.Errors, res.Warnings = leanDiagnostics(reply, v.opts.MaxErrors)
	res.Valid = !hasErrorSeverity(res.Errors)
	res.Confidence = validationConfidence(res.Valid, len(res.Warnings))
	return res, nil
}

// SearchProof walks the fixed tactic list in order and stops at the first
// tactic that closes the goal without leaving a sorry behind.
func (v *leanVerifier) SearchProof(ctx context.Context, stmt *types.FormalStatement) (types.ProofSearchResult, error) {
	if !v.IsReady() {
		return types.ProofSearchResult{}, ErrNotReady
	}
	src := strings.TrimSpace(stmt.FormalSource[types.BackendLean])
	if src == "" {
		return types.ProofSearchResult{}, fmt.Errorf("%w: %s", ErrNoFormalSource, types.BackendLean)
	}

	start := time.Now()
	head := stripLeanProof(src)
	res := types.ProofSearchResult{}

	for _, tac := range leanTactics {
		if ctx.Err() != nil {
			res.Alternatives = append(res.Alternatives, tac)
			continue
		}
		rctx, cancel := context.WithTimeout(ctx, v.opts.RequestTimeout)
		reply, err := v.roundTrip(rctx, head+" := by "+tac)
		cancel()
		if err != nil {
			res.Alternatives = append(res.Alternatives, tac)
			continue
		}
		errs, _ := leanDiagnostics(reply, v.opts.MaxErrors)
		if !hasErrorSeverity(errs) && len(reply.Sorries) == 0 {
			res.Found = true
			res.Tactic = tac
			res.Proof = "by " + tac
			break
		}
		res.Alternatives = append(res.Alternatives, tac)
	}

	res.Duration = time.Since(start)
	return res, nil
}

// CheckConsistency tries to prove that the conjunction of the statements
// implies False. A found proof or contradiction-indicating diagnostics mean
// the set is inconsistent; an empty set is vacuously consistent. Pairwise
// isolation narrows the attribution when the set is small enough to afford it.
func (v *leanVerifier) CheckConsistency(ctx context.Context, stmts []types.FormalStatement) (types.ConsistencyReport, error) {
	if !v.IsReady() {
		return types.ConsistencyReport{}, ErrNotReady
	}
	if len(stmts) == 0 {
		return types.ConsistencyReport{Consistent: true, Confidence: 1.0}, nil
	}

	props := make([]string, 0, len(stmts))
	ids := make([]string, 0, len(stmts))
	for i := range stmts {
		if p := leanProp(&stmts[i]); p != "" {
			props = append(props, "("+p+")")
			ids = append(ids, stmts[i].ID)
		}
	}
	if len(props) == 0 {
		return types.ConsistencyReport{Consistent: true, Confidence: 0.5}, nil
	}

	report := types.ConsistencyReport{Consistent: true, Confidence: 0.7}
	proved, viaTactic, diagText := v.refuteLean(ctx, props)
	if diagText != "" {
		report.Consistent = false
		report.Confidence = 0.75
		report.Contradictions = append(report.Contradictions, describeContradiction(ids, diagText))
	}
	if proved {
		report.Consistent = false
		report.Confidence = 0.9
		pairs := v.isolateLeanPairs(ctx, props, ids)
		if len(pairs) > 0 {
			report.Contradictions = append(report.Contradictions, pairs...)
		} else {
			report.Contradictions = append(report.Contradictions,
				describeContradiction(ids, "conjunction proves False (tactic "+viaTactic+")"))
		}
	}
	return report, nil
}

// refuteLean attempts `(P1 ∧ ... ∧ Pn) → False` with the tactic list.
func (v *leanVerifier) refuteLean(ctx context.Context, props []string) (proved bool, tactic string, diagText string) {
	conj := strings.Join(props, " ∧ ")
	head := fmt.Sprintf("theorem %s : (%s) → False", autoName("refute "+conj), conj)

	for _, tac := range leanTactics {
		if ctx.Err() != nil {
			return false, "", diagText
		}
		rctx, cancel := context.WithTimeout(ctx, v.opts.RequestTimeout)
		reply, err := v.roundTrip(rctx, head+" := by intro h; "+tac)
		cancel()
		if err != nil {
			continue
		}
		errs, _ := leanDiagnostics(reply, v.opts.MaxErrors)
		if !hasErrorSeverity(errs) && len(reply.Sorries) == 0 {
			return true, tac, diagText
		}
		for _, e := range errs {
			if containsAny(e.Message, contradictionMarkers) {
				diagText = e.Message
			}
		}
	}
	return false, "", diagText
}

// maxPairwiseStatements bounds the quadratic isolation sweep.
const maxPairwiseStatements = 8

// isolateLeanPairs re-runs the refutation over statement pairs to name the
// minimal contradicting sets. Empty when the set is too large or no pair
// refutes on its own.
func (v *leanVerifier) isolateLeanPairs(ctx context.Context, props, ids []string) []string {
	if len(props) > maxPairwiseStatements {
		return nil
	}
	var out []string
	for i := 0; i < len(props); i++ {
		for j := i + 1; j < len(props); j++ {
			if ctx.Err() != nil {
				return out
			}
			proved, tac, _ := v.refuteLean(ctx, []string{props[i], props[j]})
			if proved {
				out = append(out, describeContradiction([]string{ids[i], ids[j]},
					"pair proves False (tactic "+tac+")"))
			}
		}
	}
	return out
}

// HealthCheck probes the live session with a trivial evaluation. Reports are
// cached briefly so status endpoints cannot hammer the prover.
func (v *leanVerifier) HealthCheck(ctx context.Context) types.HealthReport {
	if v.cache != nil {
		if hit, found := v.cache.Get(leanHealthKey); found {
			if report, castOK := hit.(types.HealthReport); castOK {
				return report
			}
		}
	}

	report := types.HealthReport{}
	if !v.IsReady() {
		report.Issues = append(report.Issues, "session not connected")
		return report
	}

	start := time.Now()
	rctx, cancel := context.WithTimeout(ctx, v.opts.RequestTimeout)
	defer cancel()
	_, err := v.roundTrip(rctx, "#eval 1+1")
	report.Latency = time.Since(start)
	if err != nil {
		report.Issues = append(report.Issues, fmt.Sprintf("probe failed: %v", err))
		return report
	}

	report.Healthy = true
	if ms := report.Latency.Milliseconds(); ms > 0 {
		report.ThroughputPerMin = 60000.0 / float64(ms)
	}
	if mem := v.memory(); mem > int64(v.opts.MemoryLimitMB)<<20 {
		report.Issues = append(report.Issues,
			fmt.Sprintf("resident memory %d MB over limit %d MB", mem>>20, v.opts.MemoryLimitMB))
	}

	if v.cache != nil {
		v.cache.Set(leanHealthKey, report, 30*time.Second)
	}
	return report
}

func (v *leanVerifier) memory() int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.sess == nil {
		return 0
	}
	return v.sess.memoryBytes()
}

// leanDiagnostics converts REPL messages into structured diagnostics,
// capping error volume at maxErrors.
func leanDiagnostics(reply *leanReply, maxErrors int) ([]types.VerifierError, []types.VerifierWarning) {
	var errs []types.VerifierError
	var warns []types.VerifierWarning
	for _, m := range reply.Messages {
		switch m.Severity {
		case "error":
			if len(errs) >= maxErrors {
				continue
			}
			errs = append(errs, types.VerifierError{
				Code:     classifyLean(m.Data),
				Message:  m.Data,
				Severity: types.SeverityError,
				Line:     m.Pos.Line,
				Column:   m.Pos.Column,
			})
		case "warning":
			warns = append(warns, types.VerifierWarning{Message: m.Data, Line: m.Pos.Line})
		}
	}
	return errs, warns
}

// classifyLean tags a diagnostic with a coarse machine-readable code.
func classifyLean(data string) string {
	lower := strings.ToLower(data)
	switch {
	case strings.Contains(lower, "unknown identifier"), strings.Contains(lower, "unknown constant"):
		return "unknown_identifier"
	case strings.Contains(lower, "type mismatch"):
		return "type_error"
	case strings.Contains(lower, "unexpected token"):
		return "syntax_error"
	case strings.Contains(lower, "unsolved goals"):
		return "unsolved_goals"
	default:
		return "lean_error"
	}
}

// closeLeanDecl makes a bare declaration head submittable by attaching a
// sorry body; declarations that already carry a proof pass through.
func closeLeanDecl(src string) string {
	if strings.Contains(src, ":=") {
		return src
	}
	return src + " := by sorry"
}

// stripLeanProof drops any proof body so search can attach its own.
func stripLeanProof(src string) string {
	if i := strings.Index(src, ":="); i >= 0 {
		return strings.TrimSpace(src[:i])
	}
	return strings.TrimSpace(src)
}

// leanProp extracts the bare proposition a statement asserts, preferring the
// structured conclusion over re-parsing the declaration head.
func leanProp(stmt *types.FormalStatement) string {
	if s := strings.TrimSpace(stmt.Conclusion); s != "" {
		return s
	}
	src := stmt.FormalSource[types.BackendLean]
	if i := strings.Index(src, ":="); i >= 0 {
		src = src[:i]
	}
	if i := strings.Index(src, " : "); i >= 0 {
		return strings.TrimSpace(src[i+3:])
	}
	return strings.TrimSpace(src)
}
