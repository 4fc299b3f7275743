// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package validate

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/pdiddy/proofbridge/internal/audit"
	"github.com/pdiddy/proofbridge/internal/prover"
	"github.com/pdiddy/proofbridge/pkg/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeVerifier scripts one backend. Behavior knobs are set before
// Initialize; counters are read through calls().
type fakeVerifier struct {
	kind       types.BackendKind
	initOK     bool
	valid      bool
	confidence float64
	delay      time.Duration
	report     types.ConsistencyReport

	mu               sync.Mutex
	state            prover.ConnState
	validateCalls    int
	translateCalls   int
	consistencyCalls int
}

func newFakeVerifier(kind types.BackendKind) *fakeVerifier {
	return &fakeVerifier{
		kind:       kind,
		initOK:     true,
		valid:      true,
		confidence: 0.9,
		report:     types.ConsistencyReport{Consistent: true, Confidence: 0.9},
		state:      prover.StateDisconnected,
	}
}

func (f *fakeVerifier) Backend() types.BackendKind { return f.kind }

func (f *fakeVerifier) Capabilities() types.Capabilities {
	return types.Capabilities{Backend: f.kind, ProofSearch: true, ConsistencyCheck: true}
}

func (f *fakeVerifier) State() prover.ConnState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeVerifier) Initialize(ctx context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.initOK {
		f.state = prover.StateError
		return false
	}
	f.state = prover.StateConnected
	return true
}

func (f *fakeVerifier) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = prover.StateDisconnected
}

func (f *fakeVerifier) IsReady() bool { return f.State() == prover.StateConnected }

func (f *fakeVerifier) TranslateToFormal(ctx context.Context, text string) (types.TranslationResult, error) {
	f.mu.Lock()
	f.translateCalls++
	f.mu.Unlock()
	return types.TranslationResult{Formal: "stub : " + text, Confidence: 0.6}, nil
}

func (f *fakeVerifier) ValidateStatement(ctx context.Context, stmt *types.FormalStatement) (types.SingleProofResult, error) {
	f.mu.Lock()
	f.validateCalls++
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return types.SingleProofResult{
				Backend:   f.kind,
				Resources: types.ResourceUsage{TimedOut: true},
			}, nil
		}
	}
	return types.SingleProofResult{
		Backend:    f.kind,
		Valid:      f.valid,
		Confidence: f.confidence,
		Duration:   f.delay,
	}, nil
}

func (f *fakeVerifier) SearchProof(ctx context.Context, stmt *types.FormalStatement) (types.ProofSearchResult, error) {
	return types.ProofSearchResult{Found: f.valid, Tactic: "auto"}, nil
}

func (f *fakeVerifier) CheckConsistency(ctx context.Context, stmts []types.FormalStatement) (types.ConsistencyReport, error) {
	f.mu.Lock()
	f.consistencyCalls++
	f.mu.Unlock()
	return f.report, nil
}

func (f *fakeVerifier) HealthCheck(ctx context.Context) types.HealthReport {
	return types.HealthReport{Healthy: f.IsReady()}
}

func (f *fakeVerifier) calls() (validate, translate, consistency int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.validateCalls, f.translateCalls, f.consistencyCalls
}

func fakeRegistry(fakes ...*fakeVerifier) prover.Registry {
	reg := prover.NewRegistry()
	for _, f := range fakes {
		reg.Register(f.kind, func(cfg types.AdapterConfig, opts prover.Options) prover.Verifier {
			return f
		})
	}
	return reg
}

func testConfig() types.VerificationConfig {
	cfg := types.DefaultVerificationConfig()
	cfg.Timeouts.QuickCheck = 100 * time.Millisecond
	cfg.Timeouts.FullVerification = time.Second
	cfg.Timeouts.CrossValidation = time.Second
	cfg.Timeouts.MaxOverall = 2 * time.Second
	cfg.Timeouts.CallerWait = 500 * time.Millisecond
	cfg.Performance.TickInterval = 5 * time.Millisecond
	cfg.Performance.MaxConcurrentJobs = 2
	cfg.Performance.QueueCapacity = 4
	return cfg
}

func mustInit(t *testing.T, cfg types.VerificationConfig, fakes ...*fakeVerifier) *Orchestrator {
	t.Helper()
	return mustInitWith(t, cfg, nil, fakes...)
}

func mustInitWith(t *testing.T, cfg types.VerificationConfig, opts []Option, fakes ...*fakeVerifier) *Orchestrator {
	t.Helper()
	o, err := New(cfg, fakeRegistry(fakes...), nil, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !o.Initialize(context.Background()) {
		t.Fatal("Initialize = false, want true")
	}
	t.Cleanup(func() { o.Shutdown(context.Background()) })
	return o
}

// theoremCitation derives high priority and needs one statement translated.
func theoremCitation(id string) *types.MathematicalCitation {
	text := "There are infinitely many primes."
	return &types.MathematicalCitation{
		Citation: types.Citation{ID: id, RawText: text},
		Claims: []types.MathClaim{
			{ID: id + "-c1", Text: text, Kind: types.KindTheorem, Confidence: 0.9},
		},
		FormalStatements: []types.FormalStatement{{
			ID:         id + "-s1",
			SourceText: text,
			Kind:       types.KindTheorem,
			Conclusion: "there are infinitely many primes",
		}},
		Complexity:           types.ComplexityUnknown,
		Domains:              []types.MathDomain{types.DomainNumberTheory},
		RequiresVerification: true,
	}
}

// propositionCitation derives low priority.
func propositionCitation(id string) *types.MathematicalCitation {
	text := "The sum of two even integers is even."
	return &types.MathematicalCitation{
		Citation: types.Citation{ID: id, RawText: text},
		Claims: []types.MathClaim{
			{ID: id + "-c1", Text: text, Kind: types.KindProposition, Confidence: 0.7},
		},
		FormalStatements: []types.FormalStatement{{
			ID:         id + "-s1",
			SourceText: text,
			Kind:       types.KindProposition,
			Conclusion: "the sum of two even integers is even",
		}},
		Complexity:           types.ComplexityTrivial,
		Domains:              []types.MathDomain{types.DomainNumberTheory},
		RequiresVerification: true,
	}
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

// --- initialization ---

func TestInitializePromotesFallback(t *testing.T) {
	lean := newFakeVerifier(types.BackendLean)
	lean.initOK = false
	coq := newFakeVerifier(types.BackendCoq)

	o := mustInit(t, testConfig(), lean, coq)

	st := o.Status()
	if st.State != StateReady {
		t.Errorf("state = %s, want %s", st.State, StateReady)
	}
	if st.Primary != types.BackendCoq {
		t.Errorf("acting primary = %s, want %s", st.Primary, types.BackendCoq)
	}
	if _, ok := st.Adapters[types.BackendLean]; ok {
		t.Error("lean registered despite failed initialize")
	}
	coqStatus, ok := st.Adapters[types.BackendCoq]
	if !ok {
		t.Fatal("coq missing from adapter status")
	}
	if coqStatus.State != prover.StateConnected || !coqStatus.Ready {
		t.Errorf("coq status = %+v, want connected and ready", coqStatus)
	}
	if !coqStatus.Health.Healthy {
		t.Error("coq health probe reported unhealthy")
	}
	if st.Queue.Capacity != 4 {
		t.Errorf("queue capacity = %d, want 4", st.Queue.Capacity)
	}
}

func TestInitializeZeroAdapters(t *testing.T) {
	lean := newFakeVerifier(types.BackendLean)
	lean.initOK = false
	coq := newFakeVerifier(types.BackendCoq)
	coq.initOK = false

	o, err := New(testConfig(), fakeRegistry(lean, coq), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if o.Initialize(context.Background()) {
		t.Fatal("Initialize = true, want false")
	}
	if o.State() != StateError {
		t.Errorf("state = %s, want %s", o.State(), StateError)
	}

	_, verr := o.ValidateMathematicalCitation(context.Background(), theoremCitation("c1"))
	if !errors.Is(verr, ErrNoAdapters) {
		t.Errorf("submission error = %v, want ErrNoAdapters", verr)
	}

	if serr := o.Shutdown(context.Background()); serr != nil {
		t.Errorf("Shutdown after failed init: %v", serr)
	}
}

// --- submission paths ---

func TestShortCircuitSkipsAdapters(t *testing.T) {
	lean := newFakeVerifier(types.BackendLean)
	coq := newFakeVerifier(types.BackendCoq)
	o := mustInit(t, testConfig(), lean, coq)

	c := theoremCitation("c1")
	c.RequiresVerification = false

	res, err := o.ValidateMathematicalCitation(context.Background(), c)
	if err != nil {
		t.Fatalf("ValidateMathematicalCitation: %v", err)
	}
	if !res.PrimaryValidation.Valid {
		t.Error("short-circuit verdict should be valid")
	}
	if res.PrimaryValidation.Confidence != 0.8 {
		t.Errorf("confidence = %v, want 0.8", res.PrimaryValidation.Confidence)
	}
	if len(res.PrimaryValidation.Errors) != 0 {
		t.Errorf("errors = %v, want none", res.PrimaryValidation.Errors)
	}
	if res.CrossValidation == nil || len(res.CrossValidation) != 0 {
		t.Errorf("cross-validation = %v, want empty non-nil map", res.CrossValidation)
	}
	if len(res.BackendsUsed) != 0 {
		t.Errorf("backends used = %v, want none", res.BackendsUsed)
	}
	if res.JobID != "" {
		t.Errorf("JobID = %q, want empty (no job created)", res.JobID)
	}
	if v, tr, _ := lean.calls(); v != 0 || tr != 0 {
		t.Errorf("lean touched: validate=%d translate=%d", v, tr)
	}
	if got := o.Status().Metrics.ShortCircuits; got != 1 {
		t.Errorf("short circuits = %d, want 1", got)
	}
	if got := o.Status().Metrics.TotalJobs; got != 0 {
		t.Errorf("total jobs = %d, want 0", got)
	}
}

func TestValidateTheoremSynchronous(t *testing.T) {
	lean := newFakeVerifier(types.BackendLean)
	coq := newFakeVerifier(types.BackendCoq)
	o := mustInit(t, testConfig(), lean, coq)

	res, err := o.ValidateMathematicalCitation(context.Background(), theoremCitation("c1"))
	if err != nil {
		t.Fatalf("ValidateMathematicalCitation: %v", err)
	}
	if res.JobID == "" {
		t.Error("missing job ID")
	}
	if res.CitationID != "c1" {
		t.Errorf("citation ID = %q, want c1", res.CitationID)
	}
	if !res.PrimaryValidation.Valid {
		t.Error("primary verdict should be valid")
	}
	if res.PrimaryValidation.Backend != types.BackendLean {
		t.Errorf("primary backend = %s, want lean", res.PrimaryValidation.Backend)
	}
	if len(res.CrossValidation) != 0 {
		t.Errorf("cross entries = %d, want 0 when primary passes and fan-out is optional", len(res.CrossValidation))
	}
	if len(res.BackendsUsed) != 1 || res.BackendsUsed[0] != types.BackendLean {
		t.Errorf("backends used = %v, want [lean]", res.BackendsUsed)
	}
	if !res.Consistency.InternalConsistent || res.Consistency.Confidence != 0.9 {
		t.Errorf("consistency = %+v, want the backend's report for the lone statement", res.Consistency)
	}
	if v, tr, cc := lean.calls(); v != 1 || tr != 1 || cc != 1 {
		t.Errorf("lean calls: validate=%d translate=%d consistency=%d, want 1 each", v, tr, cc)
	}
	if got := o.Status().Metrics.TotalJobs; got != 1 {
		t.Errorf("total jobs = %d, want 1", got)
	}
}

func TestSelfContradictoryStatementFlagged(t *testing.T) {
	cfg := testConfig()
	cfg.FallbackBackends = nil
	lean := newFakeVerifier(types.BackendLean)
	lean.report = types.ConsistencyReport{
		Consistent:     false,
		Contradictions: []string{"statements [c1-s1]: conjunction proves False (tactic simp)"},
		Confidence:     0.9,
	}
	o := mustInit(t, cfg, lean)

	res, err := o.ValidateMathematicalCitation(context.Background(), theoremCitation("c1"))
	if err != nil {
		t.Fatalf("ValidateMathematicalCitation: %v", err)
	}
	if res.Consistency.InternalConsistent {
		t.Error("a refutable lone statement should read as internally inconsistent")
	}
	if len(res.Consistency.Contradictions) != 1 {
		t.Fatalf("contradictions = %d, want 1", len(res.Consistency.Contradictions))
	}
	if got := res.Consistency.Contradictions[0]; !strings.Contains(got, "c1-s1") {
		t.Errorf("contradiction %q does not name the statement", got)
	}
	if res.Consistency.Confidence != 0.9 {
		t.Errorf("consistency confidence = %v, want the backend's 0.9", res.Consistency.Confidence)
	}
	if _, _, cc := lean.calls(); cc != 1 {
		t.Errorf("consistency calls = %d, want 1", cc)
	}
}

func TestMultiStatementNoCrossFanout(t *testing.T) {
	lean := newFakeVerifier(types.BackendLean)
	coq := newFakeVerifier(types.BackendCoq)
	o := mustInit(t, testConfig(), lean, coq)

	c := theoremCitation("c1")
	c.FormalStatements = append(c.FormalStatements,
		types.FormalStatement{ID: "c1-s2", SourceText: "second claim", Kind: types.KindTheorem, Conclusion: "second"},
		types.FormalStatement{ID: "c1-s3", SourceText: "third claim", Kind: types.KindTheorem, Conclusion: "third"},
	)

	res, err := o.ValidateMathematicalCitation(context.Background(), c)
	if err != nil {
		t.Fatalf("ValidateMathematicalCitation: %v", err)
	}
	if !res.PrimaryValidation.Valid {
		t.Error("primary verdict should be valid when every statement passes")
	}
	if res.CrossValidation == nil || len(res.CrossValidation) != 0 {
		t.Errorf("cross-validation = %v, want empty non-nil map", res.CrossValidation)
	}
	if v, tr, cc := lean.calls(); v != 3 || tr != 3 || cc != 1 {
		t.Errorf("lean calls: validate=%d translate=%d consistency=%d, want 3, 3, 1", v, tr, cc)
	}
	if cv, ctr, _ := coq.calls(); cv != 0 || ctr != 0 {
		t.Errorf("coq touched: validate=%d translate=%d", cv, ctr)
	}
}

func TestCrossValidationOnPrimaryFailure(t *testing.T) {
	lean := newFakeVerifier(types.BackendLean)
	lean.valid = false
	lean.confidence = 0.2
	coq := newFakeVerifier(types.BackendCoq)

	o := mustInit(t, testConfig(), lean, coq)

	res, err := o.ValidateMathematicalCitation(context.Background(), theoremCitation("c1"))
	if err != nil {
		t.Fatalf("ValidateMathematicalCitation: %v", err)
	}
	if res.PrimaryValidation.Valid {
		t.Error("primary verdict should be invalid")
	}
	if len(res.CrossValidation) != 2 {
		t.Fatalf("cross entries = %d, want 2", len(res.CrossValidation))
	}
	if !res.CrossValidation[types.BackendCoq].Valid {
		t.Error("coq cross verdict should be valid")
	}
	if res.CrossValidation[types.BackendLean].Valid {
		t.Error("lean cross verdict should be invalid")
	}
	want := []types.BackendKind{types.BackendLean, types.BackendCoq}
	if len(res.BackendsUsed) != 2 || res.BackendsUsed[0] != want[0] || res.BackendsUsed[1] != want[1] {
		t.Errorf("backends used = %v, want %v", res.BackendsUsed, want)
	}
}

func TestCrossValidationMandatorySingleAdapter(t *testing.T) {
	cfg := testConfig()
	cfg.FallbackBackends = nil
	cfg.Thresholds.CrossValidationMandatory = true
	lean := newFakeVerifier(types.BackendLean)

	o := mustInit(t, cfg, lean)

	res, err := o.ValidateMathematicalCitation(context.Background(), theoremCitation("c1"))
	if err != nil {
		t.Fatalf("ValidateMathematicalCitation: %v", err)
	}
	if len(res.CrossValidation) != 1 {
		t.Fatalf("cross entries = %d, want degenerate single-adapter map", len(res.CrossValidation))
	}
	if entry, ok := res.CrossValidation[types.BackendLean]; !ok || !entry.Valid {
		t.Errorf("lean cross entry = %+v, want present and valid", entry)
	}
}

// --- queueing ---

func TestQueuedJobDeliversResult(t *testing.T) {
	cfg := testConfig()
	cfg.Performance.MaxConcurrentJobs = 1
	lean := newFakeVerifier(types.BackendLean)
	lean.delay = 100 * time.Millisecond
	coq := newFakeVerifier(types.BackendCoq)

	o := mustInit(t, cfg, lean, coq)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := o.ValidateMathematicalCitation(context.Background(), propositionCitation("busy")); err != nil {
			t.Errorf("busy job: %v", err)
		}
	}()
	waitUntil(t, func() bool { return o.State() == StateBusy })

	res, err := o.ValidateMathematicalCitation(context.Background(), propositionCitation("queued"))
	if err != nil {
		t.Fatalf("queued job: %v", err)
	}
	if res.JobID == "" || !res.PrimaryValidation.Valid {
		t.Errorf("queued result = %+v, want valid with job ID", res)
	}
	wg.Wait()

	if got := o.Status().Metrics.TotalJobs; got != 2 {
		t.Errorf("total jobs = %d, want 2", got)
	}
	if got := o.Status().Metrics.QueuePeak; got < 1 {
		t.Errorf("queue peak = %d, want at least 1", got)
	}
}

func TestCallerWaitTimeoutLateResult(t *testing.T) {
	cfg := testConfig()
	cfg.Performance.MaxConcurrentJobs = 1
	cfg.Timeouts.CallerWait = 50 * time.Millisecond

	store, err := audit.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("audit.Open: %v", err)
	}

	lean := newFakeVerifier(types.BackendLean)
	lean.delay = 150 * time.Millisecond
	coq := newFakeVerifier(types.BackendCoq)

	o := mustInitWith(t, cfg, []Option{WithAuditStore(store)}, lean, coq)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, berr := o.ValidateMathematicalCitation(context.Background(), propositionCitation("busy")); berr != nil {
			t.Errorf("busy job: %v", berr)
		}
	}()
	waitUntil(t, func() bool { return o.State() == StateBusy })

	_, werr := o.ValidateMathematicalCitation(context.Background(), propositionCitation("late"))
	if !errors.Is(werr, ErrWaitTimeout) {
		t.Fatalf("error = %v, want ErrWaitTimeout", werr)
	}
	wg.Wait()

	// The abandoned job still finishes, counts once, and lands in history.
	waitUntil(t, func() bool { return o.Status().Metrics.TotalJobs == 2 })
	records, rerr := store.Recent(context.Background(), 10)
	if rerr != nil {
		t.Fatalf("Recent: %v", rerr)
	}
	if len(records) != 2 {
		t.Errorf("audit records = %d, want 2", len(records))
	}
}

func TestQueueBackpressure(t *testing.T) {
	cfg := testConfig()
	cfg.Performance.MaxConcurrentJobs = 1
	cfg.Performance.QueueCapacity = 1
	cfg.Timeouts.CallerWait = time.Second

	lean := newFakeVerifier(types.BackendLean)
	lean.delay = 200 * time.Millisecond
	coq := newFakeVerifier(types.BackendCoq)

	o := mustInit(t, cfg, lean, coq)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if _, err := o.ValidateMathematicalCitation(context.Background(), propositionCitation("busy")); err != nil {
			t.Errorf("busy job: %v", err)
		}
	}()
	waitUntil(t, func() bool { return o.State() == StateBusy })
	go func() {
		defer wg.Done()
		if _, err := o.ValidateMathematicalCitation(context.Background(), propositionCitation("queued")); err != nil {
			t.Errorf("queued job: %v", err)
		}
	}()
	waitUntil(t, func() bool { return o.Status().Queue.Low == 1 })

	_, err := o.ValidateMathematicalCitation(context.Background(), propositionCitation("rejected"))
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("error = %v, want ErrQueueFull", err)
	}
	wg.Wait()

	m := o.Status().Metrics
	if m.TotalJobs != 3 {
		t.Errorf("total jobs = %d, want 3", m.TotalJobs)
	}
	if m.FailedJobs != 1 {
		t.Errorf("failed jobs = %d, want 1 (the rejected submission)", m.FailedJobs)
	}
}

// --- cross-citation consistency ---

func TestCheckConsistencyAcrossCitations(t *testing.T) {
	cfg := testConfig()
	cfg.FallbackBackends = nil
	lean := newFakeVerifier(types.BackendLean)
	lean.report = types.ConsistencyReport{
		Consistent:     false,
		Contradictions: []string{"statements [c1-s1 c2-s1]: conjunction proves False"},
		Confidence:     0.9,
	}

	o := mustInit(t, cfg, lean)

	verdict, err := o.CheckConsistencyAcrossCitations(context.Background(),
		[]types.MathematicalCitation{*theoremCitation("c1"), *theoremCitation("c2")})
	if err != nil {
		t.Fatalf("CheckConsistencyAcrossCitations: %v", err)
	}
	if verdict.Consistent {
		t.Error("verdict should be inconsistent")
	}
	if verdict.ConfidenceScore != 0.9 {
		t.Errorf("confidence = %v, want the backend's 0.9 passed through", verdict.ConfidenceScore)
	}
	if len(verdict.Contradictions) != 1 {
		t.Fatalf("contradictions = %d, want 1", len(verdict.Contradictions))
	}
	got := verdict.Contradictions[0]
	if len(got.CitationIDs) != 2 || got.CitationIDs[0] != "c1" || got.CitationIDs[1] != "c2" {
		t.Errorf("citation attribution = %v, want [c1 c2]", got.CitationIDs)
	}
	if len(got.StatementIDs) != 2 {
		t.Errorf("statement attribution = %v, want both statements", got.StatementIDs)
	}
	if _, _, cc := lean.calls(); cc != 1 {
		t.Errorf("consistency calls = %d, want 1", cc)
	}
}

func TestConsistencyVacuousWithoutStatements(t *testing.T) {
	cfg := testConfig()
	cfg.FallbackBackends = nil
	lean := newFakeVerifier(types.BackendLean)
	o := mustInit(t, cfg, lean)

	bare := theoremCitation("c1")
	bare.FormalStatements = nil
	verdict, err := o.CheckConsistencyAcrossCitations(context.Background(),
		[]types.MathematicalCitation{*bare})
	if err != nil {
		t.Fatalf("CheckConsistencyAcrossCitations: %v", err)
	}
	if !verdict.Consistent || verdict.ConfidenceScore != 1.0 {
		t.Errorf("verdict = %+v, want vacuously consistent at 1.0", verdict)
	}
	if _, _, cc := lean.calls(); cc != 0 {
		t.Errorf("consistency calls = %d, want 0", cc)
	}
}

func TestConsistencySingleStatementRefuted(t *testing.T) {
	cfg := testConfig()
	cfg.FallbackBackends = nil
	lean := newFakeVerifier(types.BackendLean)
	lean.report = types.ConsistencyReport{
		Consistent:     false,
		Contradictions: []string{"statements [c1-s1]: conjunction proves False (tactic simp)"},
		Confidence:     0.9,
	}
	o := mustInit(t, cfg, lean)

	verdict, err := o.CheckConsistencyAcrossCitations(context.Background(),
		[]types.MathematicalCitation{*theoremCitation("c1")})
	if err != nil {
		t.Fatalf("CheckConsistencyAcrossCitations: %v", err)
	}
	if verdict.Consistent {
		t.Error("verdict should be inconsistent")
	}
	if len(verdict.Contradictions) != 1 {
		t.Fatalf("contradictions = %d, want 1", len(verdict.Contradictions))
	}
	got := verdict.Contradictions[0]
	if len(got.CitationIDs) != 1 || got.CitationIDs[0] != "c1" {
		t.Errorf("citation attribution = %v, want [c1]", got.CitationIDs)
	}
	if len(got.StatementIDs) != 1 || got.StatementIDs[0] != "c1-s1" {
		t.Errorf("statement attribution = %v, want [c1-s1]", got.StatementIDs)
	}
	if _, _, cc := lean.calls(); cc != 1 {
		t.Errorf("consistency calls = %d, want 1", cc)
	}
}

func TestConsistencyIdempotentForFixedStatements(t *testing.T) {
	cfg := testConfig()
	cfg.FallbackBackends = nil
	lean := newFakeVerifier(types.BackendLean)
	lean.report = types.ConsistencyReport{
		Consistent:     false,
		Contradictions: []string{"statements [c1-s1 c2-s1]: conjunction proves False"},
		Confidence:     0.9,
	}
	o := mustInit(t, cfg, lean)

	citations := []types.MathematicalCitation{*theoremCitation("c1"), *theoremCitation("c2")}
	first, err := o.CheckConsistencyAcrossCitations(context.Background(), citations)
	if err != nil {
		t.Fatalf("first check: %v", err)
	}
	second, err := o.CheckConsistencyAcrossCitations(context.Background(), citations)
	if err != nil {
		t.Fatalf("second check: %v", err)
	}
	if first.Consistent != second.Consistent || first.ConfidenceScore != second.ConfidenceScore {
		t.Errorf("verdicts differ across runs: %+v vs %+v", first, second)
	}
	if len(first.Contradictions) != len(second.Contradictions) {
		t.Errorf("contradictions differ across runs: %v vs %v",
			first.Contradictions, second.Contradictions)
	}
	if _, _, cc := lean.calls(); cc != 2 {
		t.Errorf("consistency calls = %d, want one per invocation", cc)
	}
}

// --- priority derivation ---

func TestDerivePriority(t *testing.T) {
	base := context.Background()

	manyClaims := propositionCitation("c")
	for i := 0; i < 3; i++ {
		manyClaims.Claims = append(manyClaims.Claims, types.MathClaim{
			ID: "extra", Text: "extra", Kind: types.KindProposition,
		})
	}
	lemma := propositionCitation("c")
	lemma.Claims[0].Kind = types.KindLemma
	undecidable := propositionCitation("c")
	undecidable.Complexity = types.ComplexityUndecidable
	exponential := propositionCitation("c")
	exponential.Complexity = types.ComplexityExponential

	tests := []struct {
		name     string
		ctx      context.Context
		citation *types.MathematicalCitation
		want     types.JobPriority
	}{
		{"explicit request", WithHighPriority(base), propositionCitation("c"), types.PriorityHigh},
		{"undecidable class", base, undecidable, types.PriorityHigh},
		{"exponential class", base, exponential, types.PriorityHigh},
		{"theorem claim", base, theoremCitation("c"), types.PriorityHigh},
		{"lemma claim", base, lemma, types.PriorityMedium},
		{"many claims", base, manyClaims, types.PriorityMedium},
		{"default", base, propositionCitation("c"), types.PriorityLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := derivePriority(tt.ctx, tt.citation); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

// --- shutdown ---

func TestShutdownDisconnectsAndRefuses(t *testing.T) {
	lean := newFakeVerifier(types.BackendLean)
	coq := newFakeVerifier(types.BackendCoq)
	o := mustInit(t, testConfig(), lean, coq)

	if err := o.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if o.State() != StateShutdown {
		t.Errorf("state = %s, want %s", o.State(), StateShutdown)
	}
	if lean.State() != prover.StateDisconnected {
		t.Errorf("lean state = %s, want disconnected", lean.State())
	}
	if coq.State() != prover.StateDisconnected {
		t.Errorf("coq state = %s, want disconnected", coq.State())
	}

	_, verr := o.ValidateMathematicalCitation(context.Background(), theoremCitation("c1"))
	if !errors.Is(verr, ErrShuttingDown) {
		t.Errorf("validate error = %v, want ErrShuttingDown", verr)
	}
	_, cerr := o.CheckConsistencyAcrossCitations(context.Background(), nil)
	if !errors.Is(cerr, ErrShuttingDown) {
		t.Errorf("consistency error = %v, want ErrShuttingDown", cerr)
	}

	if err := o.Shutdown(context.Background()); err != nil {
		t.Errorf("second Shutdown: %v", err)
	}
}

func TestShutdownWaitsForInFlightJob(t *testing.T) {
	lean := newFakeVerifier(types.BackendLean)
	lean.delay = 100 * time.Millisecond
	coq := newFakeVerifier(types.BackendCoq)
	o := mustInit(t, testConfig(), lean, coq)

	var res *types.ProofValidationResult
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		var err error
		res, err = o.ValidateMathematicalCitation(context.Background(), propositionCitation("midflight"))
		if err != nil {
			t.Errorf("in-flight job: %v", err)
		}
	}()
	waitUntil(t, func() bool { return o.State() == StateBusy })

	if err := o.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown during in-flight job: %v", err)
	}
	wg.Wait()

	if res == nil || !res.PrimaryValidation.Valid {
		t.Errorf("in-flight result = %+v, want a delivered valid verdict", res)
	}
	if got := o.QueueSnapshot().Running; got != 0 {
		t.Errorf("running = %d, want 0 after shutdown", got)
	}
	o.mu.RLock()
	registered := len(o.jobs)
	o.mu.RUnlock()
	if registered != 0 {
		t.Errorf("registered jobs = %d, want none after shutdown", registered)
	}
	if got := o.Metrics().TotalJobs; got != 1 {
		t.Errorf("total jobs = %d, want the in-flight job counted once", got)
	}
}
