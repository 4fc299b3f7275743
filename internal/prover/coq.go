// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package prover

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	cache "github.com/patrickmn/go-cache"

	"github.com/pdiddy/proofbridge/internal/retry"
	"github.com/pdiddy/proofbridge/pkg/logging"
	"github.com/pdiddy/proofbridge/pkg/types"
)

// Coq is driven through coqtop's plain-text toplevel. coqtop has no framed
// reply format, so every request is followed by a completion marker the
// toplevel must evaluate:
//
//	Eval compute in 7.
//	     = 7
//	     : nat
//
// Everything received before the "= 7" line is diagnostic output for the
// request; the ": nat" residue is skipped by the parser on the next read.

var (
	// coqRules is the fixed lexical rewrite set targeting Coq syntax.
	coqRules = compileRules(phrasePairs("forall", "exists", "->", "<->", "~", "/\\", "\\/"))

	// coqPlaceholders are unfinished-proof markers in Coq source.
	coqPlaceholders = []string{"Admitted", "admit"}

	// coqHeadRe recognizes a well-formed declaration head.
	coqHeadRe = regexp.MustCompile(`^\s*(Theorem|Lemma|Corollary|Proposition|Fact|Remark)\s+\w+\s*.*:`)

	// coqTactics is the fixed ordered tactic list for proof search.
	coqTactics = []string{"auto", "tauto", "lia", "ring", "firstorder", "intuition"}

	// coqLineRe and coqCharsRe pull locations out of coqtop's error headers.
	coqLineRe  = regexp.MustCompile(`line (\d+), characters (\d+)-(\d+)`)
	coqCharsRe = regexp.MustCompile(`characters (\d+)-(\d+)`)

	// coqMarkerRe matches a stale completion marker from an abandoned request.
	coqMarkerRe = regexp.MustCompile(`^= \d+$`)
)

const coqHealthKey = "health:coq"

// coqVerifier owns one coqtop process for its connected lifetime.
type coqVerifier struct {
	cfg  types.AdapterConfig
	opts Options
	log  *logging.Logger
	exec executor

	mu    sync.Mutex // guards sess and state
	sess  session
	state ConnState

	reqMu sync.Mutex // serializes toplevel round trips
	seq   atomic.Int64

	cache *cache.Cache // translations and health probes; nil when disabled
}

func newCoqVerifier(cfg types.AdapterConfig, opts Options) Verifier {
	opts = opts.normalized()
	v := &coqVerifier{
		cfg:   cfg,
		opts:  opts,
		log:   opts.Logger.With("backend", string(types.BackendCoq)),
		exec:  defaultExec,
		state: StateDisconnected,
	}
	if opts.CacheEnabled {
		v.cache = cache.New(opts.CacheTTL, 2*opts.CacheTTL)
	}
	return v
}

func (v *coqVerifier) Backend() types.BackendKind { return types.BackendCoq }

func (v *coqVerifier) Capabilities() types.Capabilities {
	return types.Capabilities{
		Backend: types.BackendCoq,
		SupportedDomains: []types.MathDomain{
			types.DomainLogic,
			types.DomainNumberTheory,
			types.DomainAlgebra,
			types.DomainGeometry,
		},
		MaxComplexity:    types.ComplexityExponential,
		AvgLatency:       3 * time.Second,
		ProofSearch:      true,
		ConsistencyCheck: true,
	}
}

func (v *coqVerifier) State() ConnState {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state == StateConnected && (v.sess == nil || !v.sess.alive()) {
		return StateError
	}
	return v.state
}

func (v *coqVerifier) IsReady() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state == StateConnected && v.sess != nil && v.sess.alive()
}

// Initialize detects coqtop, spawns it, and runs the bootstrap commands.
// It reports success; it never panics. A cancelled handshake releases any
// process it had already spawned.
func (v *coqVerifier) Initialize(ctx context.Context) bool {
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
	if err := detectBackend(ctx, v.exec, command, []string{"-v"}); err != nil {
		v.log.Warn("coq unavailable", "error", err)
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
			s.shutdown("Quit.", disconnectGrace)
			return err
		}
		sess = s
		return nil
	})
	if err != nil {
		v.log.Error("coq session failed to start", "error", err)
		return false
	}

	v.mu.Lock()
	if v.state != StateConnecting {
		// Disconnected while handshaking; release the fresh process.
		v.mu.Unlock()
		sess.shutdown("Quit.", disconnectGrace)
		return false
	}
	v.sess = sess
	v.state = StateConnected
	v.mu.Unlock()

	ok = true
	v.log.Info("coq session ready", "command", command)
	return true
}

// bootstrap confirms the toplevel answers markers and loads any configured
// imports, all within the bootstrap budget.
func (v *coqVerifier) bootstrap(ctx context.Context, s session) error {
	timeout := v.cfg.BootstrapTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	bctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if _, err := v.roundTripOn(bctx, s, nil); err != nil {
		return fmt.Errorf("bootstrap probe: %w", err)
	}
	for _, cmd := range v.cfg.BootstrapCommands {
		if _, err := v.roundTripOn(bctx, s, []string{cmd}); err != nil {
			return fmt.Errorf("bootstrap %q: %w", cmd, err)
		}
	}
	return nil
}

// Disconnect closes the session, graceful Quit first, kill after the grace
// period. Safe to call in any state, any number of times.
func (v *coqVerifier) Disconnect() {
	v.mu.Lock()
	s := v.sess
	v.sess = nil
	v.state = StateDisconnected
	v.mu.Unlock()

	if s == nil {
		return
	}
	s.shutdown("Quit.", disconnectGrace)
	v.log.Info("coq session closed")
}

func (v *coqVerifier) roundTrip(ctx context.Context, sentences []string) ([]string, error) {
	v.mu.Lock()
	s := v.sess
	ready := v.state == StateConnected && s != nil && s.alive()
	v.mu.Unlock()
	if !ready {
		return nil, ErrNotReady
	}
	return v.roundTripOn(ctx, s, sentences)
}

// roundTripOn sends the sentences followed by a completion marker and
// collects every line the toplevel emitted before the marker came back.
func (v *coqVerifier) roundTripOn(ctx context.Context, s session, sentences []string) ([]string, error) {
	seq := v.seq.Add(1)
	marker := fmt.Sprintf("= %d", seq)

	v.reqMu.Lock()
	defer v.reqMu.Unlock()

	for _, sent := range sentences {
		if err := s.send(sent); err != nil {
			return nil, fmt.Errorf("sending sentence: %w", err)
		}
	}
	if err := s.send(fmt.Sprintf("Eval compute in %d.", seq)); err != nil {
		return nil, fmt.Errorf("sending completion marker: %w", err)
	}

	sawMarker := false
	lines, cancelled := s.recvUntil(ctx, func(line string) bool {
		if strings.TrimSpace(line) == marker {
			sawMarker = true
			return true
		}
		return false
	})
	if cancelled {
		return nil, fmt.Errorf("request %d: %w", seq, ctx.Err())
	}
	if !sawMarker {
		return nil, fmt.Errorf("session closed before reply %d", seq)
	}
	return lines, nil
}

// reset aborts any proof mode a failed attempt left open. Runs detached
// from the caller's context so a timed-out request still gets cleaned up.
func (v *coqVerifier) reset(ctx context.Context) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), v.opts.RequestTimeout)
	defer cancel()
	_, _ = v.roundTrip(rctx, []string{"Abort All."})
}

// TranslateToFormal rewrites natural-language text into a Coq declaration
// using the fixed lexical rules, then scores it against the confidence
// checklist.
func (v *coqVerifier) TranslateToFormal(ctx context.Context, text string) (types.TranslationResult, error) {
	if !v.IsReady() {
		return types.TranslationResult{}, ErrNotReady
	}

	key := cacheKey(string(types.BackendCoq), text)
	if v.cache != nil {
		if hit, found := v.cache.Get(key); found {
			if res, castOK := hit.(types.TranslationResult); castOK {
				return res, nil
			}
		}
	}

	prop := applyRules(text, coqRules)
	decl := fmt.Sprintf("Theorem %s : %s.", autoName(text), prop)

	compiledClean := false
	rctx, cancel := context.WithTimeout(ctx, v.opts.RequestTimeout)
	defer cancel()
	if lines, err := v.roundTrip(rctx, []string{decl}); err == nil {
		errs, _ := parseCoqDiagnostics(lines, v.opts.MaxErrors)
		compiledClean = !hasErrorSeverity(errs)
		v.reset(ctx)
	}

	noPlaceholder := !containsAny(decl, coqPlaceholders)
	hasHead := coqHeadRe.MatchString(decl)
	score, notes := translationScore(compiledClean, noPlaceholder, hasHead)

	res := types.TranslationResult{Formal: decl, Confidence: score, Notes: notes}
	if v.cache != nil {
		v.cache.Set(key, res, cache.DefaultExpiration)
	}
	return res, nil
}

// ValidateStatement submits the statement's Coq source and parses coqtop's
// diagnostics. Valid means no error-severity diagnostic; an expired budget
// flags the result, it does not fail the call.
func (v *coqVerifier) ValidateStatement(ctx context.Context, stmt *types.FormalStatement) (types.SingleProofResult, error) {
	if !v.IsReady() {
		return types.SingleProofResult{}, ErrNotReady
	}
	src := strings.TrimSpace(stmt.FormalSource[types.BackendCoq])
	if src == "" {
		return types.SingleProofResult{}, fmt.Errorf("%w: %s", ErrNoFormalSource, types.BackendCoq)
	}

	start := time.Now()
	res := types.SingleProofResult{Backend: types.BackendCoq}

	rctx, cancel := context.WithTimeout(ctx, v.opts.RequestTimeout)
	defer cancel()
	lines, err := v.roundTrip(rctx, []string{ensureCoqPeriod(src)})

	res.Duration = time.Since(start)
	res.Resources.CPUTime = res.Duration
	res.Resources.MemoryBytes = v.memory()

	if err != nil {
		v.reset(ctx)
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

	res.Errors, res.Warnings = parseCoqDiagnostics(lines, v.opts.MaxErrors)
	res.Valid = !hasErrorSeverity(res.Errors)
	res.Confidence = validationConfidence(res.Valid, len(res.Warnings))

	// A bare Theorem head leaves the toplevel in proof mode.
	v.reset(ctx)
	return res, nil
}

// SearchProof walks the fixed tactic list in order and stops at the first
// tactic coqtop accepts through Qed.
func (v *coqVerifier) SearchProof(ctx context.Context, stmt *types.FormalStatement) (types.ProofSearchResult, error) {
	if !v.IsReady() {
		return types.ProofSearchResult{}, ErrNotReady
	}
	src := strings.TrimSpace(stmt.FormalSource[types.BackendCoq])
	if src == "" {
		return types.ProofSearchResult{}, fmt.Errorf("%w: %s", ErrNoFormalSource, types.BackendCoq)
	}

	start := time.Now()
	head := stripCoqProof(src)
	res := types.ProofSearchResult{}

	for _, tac := range coqTactics {
		if ctx.Err() != nil {
			res.Alternatives = append(res.Alternatives, tac)
			continue
		}
		proved, _, err := v.attempt(ctx, head, tac)
		if err != nil || !proved {
			res.Alternatives = append(res.Alternatives, tac)
			continue
		}
		res.Found = true
		res.Tactic = tac
		res.Proof = fmt.Sprintf("Proof. %s. Qed.", tac)
		break
	}

	res.Duration = time.Since(start)
	return res, nil
}

// attempt submits declaration + Proof/tactic/Qed and reports whether coqtop
// accepted the proof. Failed attempts abort the dangling proof state.
func (v *coqVerifier) attempt(ctx context.Context, decl, tac string) (bool, []types.VerifierError, error) {
	rctx, cancel := context.WithTimeout(ctx, v.opts.RequestTimeout)
	defer cancel()
	lines, err := v.roundTrip(rctx, []string{decl, "Proof.", tac + ".", "Qed."})
	if err != nil {
		v.reset(ctx)
		return false, nil, err
	}
	errs, _ := parseCoqDiagnostics(lines, v.opts.MaxErrors)
	if hasErrorSeverity(errs) {
		v.reset(ctx)
		return false, errs, nil
	}
	return true, nil, nil
}

// CheckConsistency tries to prove that the conjunction of the statements
// implies False. A found proof or contradiction-indicating diagnostics mean
// the set is inconsistent; an empty set is vacuously consistent.
func (v *coqVerifier) CheckConsistency(ctx context.Context, stmts []types.FormalStatement) (types.ConsistencyReport, error) {
	if !v.IsReady() {
		return types.ConsistencyReport{}, ErrNotReady
	}
	if len(stmts) == 0 {
		return types.ConsistencyReport{Consistent: true, Confidence: 1.0}, nil
	}

	props := make([]string, 0, len(stmts))
	ids := make([]string, 0, len(stmts))
	for i := range stmts {
		if p := coqProp(&stmts[i]); p != "" {
			props = append(props, "("+p+")")
			ids = append(ids, stmts[i].ID)
		}
	}
	if len(props) == 0 {
		return types.ConsistencyReport{Consistent: true, Confidence: 0.5}, nil
	}

	report := types.ConsistencyReport{Consistent: true, Confidence: 0.7}
	proved, viaTactic, diagText := v.refuteCoq(ctx, props)
	if diagText != "" {
		report.Consistent = false
		report.Confidence = 0.75
		report.Contradictions = append(report.Contradictions, describeContradiction(ids, diagText))
	}
	if proved {
		report.Consistent = false
		report.Confidence = 0.9
		pairs := v.isolateCoqPairs(ctx, props, ids)
		if len(pairs) > 0 {
			report.Contradictions = append(report.Contradictions, pairs...)
		} else {
			report.Contradictions = append(report.Contradictions,
				describeContradiction(ids, "conjunction proves False (tactic "+viaTactic+")"))
		}
	}
	return report, nil
}

// refuteCoq attempts `(P1 /\ ... /\ Pn) -> False` with the tactic list.
func (v *coqVerifier) refuteCoq(ctx context.Context, props []string) (proved bool, tactic string, diagText string) {
	conj := strings.Join(props, " /\\ ")
	decl := fmt.Sprintf("Theorem %s : (%s) -> False.", autoName("refute "+conj), conj)

	for _, tac := range coqTactics {
		if ctx.Err() != nil {
			return false, "", diagText
		}
		ok, errs, err := v.attempt(ctx, decl, tac)
		if err != nil {
			continue
		}
		if ok {
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

// isolateCoqPairs re-runs the refutation over statement pairs to name the
// minimal contradicting sets.
func (v *coqVerifier) isolateCoqPairs(ctx context.Context, props, ids []string) []string {
	if len(props) > maxPairwiseStatements {
		return nil
	}
	var out []string
	for i := 0; i < len(props); i++ {
		for j := i + 1; j < len(props); j++ {
			if ctx.Err() != nil {
				return out
			}
			proved, tac, _ := v.refuteCoq(ctx, []string{props[i], props[j]})
			if proved {
				out = append(out, describeContradiction([]string{ids[i], ids[j]},
					"pair proves False (tactic "+tac+")"))
			}
		}
	}
	return out
}

// HealthCheck probes the live toplevel with a bare completion marker.
// Reports are cached briefly so status endpoints cannot hammer the prover.
func (v *coqVerifier) HealthCheck(ctx context.Context) types.HealthReport {
	if v.cache != nil {
		if hit, found := v.cache.Get(coqHealthKey); found {
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
	_, err := v.roundTrip(rctx, nil)
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
		v.cache.Set(coqHealthKey, report, 30*time.Second)
	}
	return report
}

func (v *coqVerifier) memory() int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.sess == nil {
		return 0
	}
	return v.sess.memoryBytes()
}

// parseCoqDiagnostics turns coqtop's free-form output into structured
// diagnostics. Location headers precede the error they locate; source echo
// lines (">") and marker residue (": nat", stale "= N") are skipped.
func parseCoqDiagnostics(lines []string, maxErrors int) ([]types.VerifierError, []types.VerifierWarning) {
	var errs []types.VerifierError
	var warns []types.VerifierWarning

	var cur *types.VerifierError
	pendingLine, pendingCol := 0, 0
	flush := func() {
		if cur == nil {
			return
		}
		if len(errs) < maxErrors {
			errs = append(errs, *cur)
		}
		cur = nil
	}

	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		switch {
		case line == "":
			flush()
		case strings.HasPrefix(line, ">"), strings.HasPrefix(line, ":"), coqMarkerRe.MatchString(line):
			// source echo and marker residue
		case strings.Contains(line, "Error:"):
			flush()
			msg := strings.TrimSpace(line[strings.Index(line, "Error:")+len("Error:"):])
			cur = &types.VerifierError{
				Code:     classifyCoq(msg),
				Message:  msg,
				Severity: types.SeverityError,
				Line:     pendingLine,
				Column:   pendingCol,
			}
			pendingLine, pendingCol = 0, 0
		case strings.Contains(line, "Warning:"):
			flush()
			msg := strings.TrimSpace(line[strings.Index(line, "Warning:")+len("Warning:"):])
			warns = append(warns, types.VerifierWarning{Message: msg, Line: pendingLine})
			pendingLine, pendingCol = 0, 0
		case coqLineRe.MatchString(line):
			m := coqLineRe.FindStringSubmatch(line)
			pendingLine, _ = strconv.Atoi(m[1])
			pendingCol, _ = strconv.Atoi(m[2])
		case coqCharsRe.MatchString(line):
			m := coqCharsRe.FindStringSubmatch(line)
			pendingCol, _ = strconv.Atoi(m[1])
		case cur != nil:
			cur.Message += " " + line
		}
	}
	flush()
	return errs, warns
}

// classifyCoq tags a diagnostic with a coarse machine-readable code.
func classifyCoq(msg string) string {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "was not found"), strings.Contains(lower, "unknown"):
		return "unknown_identifier"
	case strings.Contains(lower, "syntax error"):
		return "syntax_error"
	case strings.Contains(lower, "expected"), strings.Contains(lower, "has type"):
		return "type_error"
	case strings.Contains(lower, "incomplete proof"):
		return "incomplete_proof"
	default:
		return "coq_error"
	}
}

// ensureCoqPeriod appends the sentence terminator when missing.
func ensureCoqPeriod(src string) string {
	if strings.HasSuffix(strings.TrimSpace(src), ".") {
		return src
	}
	return src + "."
}

// stripCoqProof drops any proof script so search can attach its own.
func stripCoqProof(src string) string {
	if i := strings.Index(src, "Proof."); i >= 0 {
		src = src[:i]
	}
	return ensureCoqPeriod(strings.TrimSpace(src))
}

// coqProp extracts the bare proposition a statement asserts, preferring the
// structured conclusion over re-parsing the declaration head.
func coqProp(stmt *types.FormalStatement) string {
	if s := strings.TrimSpace(stmt.Conclusion); s != "" {
		return s
	}
	src := stmt.FormalSource[types.BackendCoq]
	if i := strings.Index(src, "Proof."); i >= 0 {
		src = src[:i]
	}
	if i := strings.Index(src, " : "); i >= 0 {
		src = src[i+3:]
	}
	return strings.TrimSuffix(strings.TrimSpace(src), ".")
}
