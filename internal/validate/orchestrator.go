// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package validate implements the validation orchestrator: prioritized job
// scheduling over the live verifier adapters, cross-validation fan-out,
// consistency analysis, and result delivery with bounded caller waits.
// Implements: prd002-orchestration (R1-R6);
//
//	docs/ARCHITECTURE § Validation Orchestrator.
package validate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/proofbridge/internal/audit"
	"github.com/pdiddy/proofbridge/internal/prover"
	"github.com/pdiddy/proofbridge/pkg/logging"
	"github.com/pdiddy/proofbridge/pkg/types"
)

var (
	// ErrNotInitialized is returned for work submitted before Initialize.
	ErrNotInitialized = errors.New("orchestrator not initialized")

	// ErrNoAdapters is returned when no verifier adapter is live.
	ErrNoAdapters = errors.New("no live verifier adapters")

	// ErrShuttingDown is returned for work submitted during or after shutdown.
	ErrShuttingDown = errors.New("orchestrator shutting down")

	// ErrQueueFull is returned when a submission's priority class is at
	// capacity; the job fails without executing.
	ErrQueueFull = errors.New("validation queue full")

	// ErrWaitTimeout is returned when a queued job outlives the caller-wait
	// budget. The job still runs to completion and its result is recorded
	// in the audit history.
	ErrWaitTimeout = errors.New("timed out waiting for validation result")
)

// shortCircuitConfidence is reported for citations that require no formal
// verification; the claim stands on extraction evidence alone.
const shortCircuitConfidence = 0.8

// Orchestrator coordinates validation work across verifier adapters.
// Construct with New, bring up with Initialize, tear down with Shutdown.
type Orchestrator struct {
	cfg      types.VerificationConfig
	registry prover.Registry
	log      *logging.Logger
	audit    *audit.Store

	mu        sync.RWMutex
	lifecycle State
	adapters  map[types.BackendKind]prover.Verifier
	primary   types.BackendKind
	jobs      map[string]*job

	queue    *jobQueue
	sched    *scheduler
	metrics  *metricsState
	running  atomic.Int64
	inflight sync.WaitGroup
}

// Option customizes New.
type Option func(*Orchestrator)

// WithAuditStore wires the validation-history sink. A nil store disables
// recording.
func WithAuditStore(s *audit.Store) Option {
	return func(o *Orchestrator) { o.audit = s }
}

// New wires an orchestrator from its dependencies. The registry decides
// which backend kinds are constructible; cfg decides which are attempted.
func New(cfg types.VerificationConfig, registry prover.Registry, log *logging.Logger, opts ...Option) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("verification config: %w", err)
	}
	if log == nil {
		log = logging.Discard()
	}
	o := &Orchestrator{
		cfg:       cfg,
		registry:  registry,
		log:       log,
		lifecycle: StateInitializing,
		adapters:  make(map[types.BackendKind]prover.Verifier),
		jobs:      make(map[string]*job),
		queue:     newJobQueue(cfg.Performance.QueueCapacity),
		metrics:   newMetricsState(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Initialize brings up the configured backends: the primary first, then the
// fallbacks in order, tolerating individual failures. The first adapter that
// comes up acts as primary. False means nothing came up and the orchestrator
// is in the error state; the background scheduler starts only on success.
func (o *Orchestrator) Initialize(ctx context.Context) bool {
	order := make([]types.BackendKind, 0, 1+len(o.cfg.FallbackBackends))
	order = append(order, o.cfg.PrimaryBackend)
	order = append(order, o.cfg.FallbackBackends...)

	seen := make(map[types.BackendKind]bool, len(order))
	for _, kind := range order {
		if seen[kind] {
			continue
		}
		seen[kind] = true

		v, err := o.registry.Create(kind, o.cfg.AdapterFor(kind), o.adapterOptions())
		if err != nil {
			o.log.Warn("backend unavailable", "backend", kind, "error", err)
			continue
		}
		if !v.Initialize(ctx) {
			o.log.Warn("backend failed to initialize", "backend", kind)
			continue
		}

		o.mu.Lock()
		o.adapters[kind] = v
		if o.primary == "" {
			o.primary = kind
		}
		o.mu.Unlock()
		o.log.Info("backend connected", "backend", kind)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.adapters) == 0 {
		o.lifecycle = StateError
		o.log.Error("no verifier backend came up", "attempted", order)
		return false
	}
	if o.primary != o.cfg.PrimaryBackend {
		o.log.Warn("fallback promoted to acting primary",
			"acting", o.primary, "configured", o.cfg.PrimaryBackend)
	}
	o.lifecycle = StateReady
	o.sched = newScheduler(o, o.cfg.Performance.TickInterval)
	o.sched.start()
	return true
}

func (o *Orchestrator) adapterOptions() prover.Options {
	return prover.Options{
		Logger:         o.log,
		RequestTimeout: o.cfg.Timeouts.FullVerification,
		CacheEnabled:   o.cfg.Performance.CacheEnabled,
		CacheTTL:       o.cfg.Performance.CacheTTL,
		MaxErrors:      o.cfg.Thresholds.MaxErrors,
		MemoryLimitMB:  o.cfg.Performance.MemoryLimitMB,
	}
}

// submissionGate rejects work unless the orchestrator accepts it.
func (o *Orchestrator) submissionGate() error {
	o.mu.RLock()
	defer o.mu.RUnlock()
	switch o.lifecycle {
	case StateReady:
		return nil
	case StateShutdown:
		return ErrShuttingDown
	case StateError:
		return ErrNoAdapters
	default:
		return ErrNotInitialized
	}
}

type ctxKey int

const highPriorityKey ctxKey = iota

// WithHighPriority marks ctx so the next submission is treated as an
// explicit high-priority request and validated on the caller's path.
func WithHighPriority(ctx context.Context) context.Context {
	return context.WithValue(ctx, highPriorityKey, true)
}

func explicitHigh(ctx context.Context) bool {
	v, _ := ctx.Value(highPriorityKey).(bool)
	return v
}

// derivePriority orders a citation's validation against other queued work:
// an explicit request, a heavy complexity class, or any theorem-typed claim
// is high; more than two claims or any lemma-typed claim is medium.
func derivePriority(ctx context.Context, c *types.MathematicalCitation) types.JobPriority {
	if explicitHigh(ctx) {
		return types.PriorityHigh
	}
	if c.Complexity == types.ComplexityExponential || c.Complexity == types.ComplexityUndecidable {
		return types.PriorityHigh
	}
	var lemmas int
	for _, claim := range c.Claims {
		switch claim.Kind {
		case types.KindTheorem:
			return types.PriorityHigh
		case types.KindLemma:
			lemmas++
		}
	}
	if len(c.Claims) > 2 || lemmas > 0 {
		return types.PriorityMedium
	}
	return types.PriorityLow
}

// ValidateMathematicalCitation validates one citation, blocking until its
// result is available or the caller-wait budget expires. Citations that do
// not require formal verification are answered immediately without touching
// any adapter or creating a job.
func (o *Orchestrator) ValidateMathematicalCitation(ctx context.Context, citation *types.MathematicalCitation) (*types.ProofValidationResult, error) {
	if err := o.submissionGate(); err != nil {
		return nil, err
	}

	if !citation.RequiresVerification {
		o.metrics.recordShortCircuit()
		o.log.Debug("verification not required", "citation", citation.ID)
		return shortCircuitResult(citation), nil
	}

	priority := derivePriority(ctx, citation)
	j := o.newJob(citation, priority)

	// High priority always runs on the caller's path; other work does too
	// when nothing is backlogged and a concurrency slot is free.
	if priority == types.PriorityHigh || o.immediate() {
		o.inflight.Add(1)
		func() {
			defer o.inflight.Done()
			o.runJob(ctx, j)
		}()
		return jobOutcome(j)
	}

	if err := o.queue.enqueue(j); err != nil {
		o.completeJob(j, nil, err)
		return nil, err
	}
	high, medium, low := o.queue.depths()
	o.metrics.observeQueueDepth(high + medium + low)
	o.log.Debug("job queued", "job", j.v.ID, "priority", priority.String())

	timer := time.NewTimer(o.cfg.Timeouts.CallerWait)
	defer timer.Stop()
	select {
	case <-j.done:
		return jobOutcome(j)
	case <-timer.C:
		o.log.Warn("caller wait expired; result will land in history", "job", j.v.ID)
		return nil, fmt.Errorf("job %s: %w", j.v.ID, ErrWaitTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// immediate reports whether a submission may bypass the queue: no backlog
// and a free concurrency slot.
func (o *Orchestrator) immediate() bool {
	return o.queue.empty() && o.running.Load() < int64(o.cfg.Performance.MaxConcurrentJobs)
}

func (o *Orchestrator) runningJobs() int {
	return int(o.running.Load())
}

// jobOutcome converts a terminal job into the caller-facing return pair.
func jobOutcome(j *job) (*types.ProofValidationResult, error) {
	if j.v.State == types.JobFailed {
		return nil, j.err
	}
	return j.v.Result, nil
}

// shortCircuitResult answers a citation whose claims need no formal
// verification: valid at fixed confidence, no backends consulted.
func shortCircuitResult(c *types.MathematicalCitation) *types.ProofValidationResult {
	return &types.ProofValidationResult{
		CitationID: c.ID,
		PrimaryValidation: types.SingleProofResult{
			Valid:      true,
			Confidence: shortCircuitConfidence,
		},
		CrossValidation: map[types.BackendKind]types.SingleProofResult{},
		Consistency:     consistencyAnalysis(nil, len(c.FormalStatements)),
		Complexity:      estimateComplexity(c),
		Timestamp:       time.Now().UTC(),
		BackendsUsed:    []types.BackendKind{},
	}
}

func (o *Orchestrator) newJob(c *types.MathematicalCitation, priority types.JobPriority) *job {
	j := &job{
		v: &types.ValidationJob{
			ID:        uuid.NewString(),
			Citation:  *c,
			Priority:  priority,
			CreatedAt: time.Now().UTC(),
			State:     types.JobQueued,
		},
		done: make(chan struct{}),
	}
	o.mu.Lock()
	o.jobs[j.v.ID] = j
	o.mu.Unlock()
	return j
}

// runJob drives one job to its terminal state. The job budget is MaxOverall
// regardless of how the job reached execution.
func (o *Orchestrator) runJob(parent context.Context, j *job) {
	o.startJob(j)
	defer o.running.Add(-1)

	ctx, cancel := context.WithTimeout(parent, o.cfg.Timeouts.MaxOverall)
	defer cancel()

	res, err := o.executeJob(ctx, j.v)
	o.completeJob(j, res, err)
}

func (o *Orchestrator) startJob(j *job) {
	o.running.Add(1)
	o.mu.Lock()
	j.v.State = types.JobRunning
	j.v.StartedAt = time.Now().UTC()
	o.mu.Unlock()
}

// executeJob produces the validation result: primary verdict, conditional
// cross-validation, consistency analysis, complexity estimate. Adapter
// faults degrade the verdict; only the absence of any live adapter is an
// execution error.
func (o *Orchestrator) executeJob(ctx context.Context, v *types.ValidationJob) (*types.ProofValidationResult, error) {
	start := time.Now()
	citation := &v.Citation

	primary, ok := o.actingPrimary()
	if !ok {
		return nil, ErrNoAdapters
	}

	agg, report := prover.ValidateCitation(ctx, primary, citation, o.cfg.Timeouts.FullVerification)

	// ValidateCitation only cross-checks multiple statements. A lone
	// statement still gets a refutation check.
	if report == nil && len(citation.FormalStatements) == 1 && primary.Capabilities().ConsistencyCheck {
		if rep, cerr := primary.CheckConsistency(ctx, citation.FormalStatements); cerr == nil {
			report = &rep
		}
	}

	cross := make(map[types.BackendKind]types.SingleProofResult)
	if !agg.Valid || o.cfg.Thresholds.CrossValidationMandatory {
		cross = o.PerformCrossValidation(ctx, citation.FormalStatements)
	}

	if agg.Valid && agg.Confidence < o.cfg.Thresholds.MinConfidence {
		agg.Warnings = append(agg.Warnings, types.VerifierWarning{
			Message: fmt.Sprintf("aggregate confidence %.2f below the %.2f floor",
				agg.Confidence, o.cfg.Thresholds.MinConfidence),
		})
	}

	return &types.ProofValidationResult{
		JobID:             v.ID,
		CitationID:        citation.ID,
		PrimaryValidation: agg,
		CrossValidation:   cross,
		Consistency:       consistencyAnalysis(report, len(citation.FormalStatements)),
		Complexity:        estimateComplexity(citation),
		Timestamp:         time.Now().UTC(),
		TotalDuration:     time.Since(start),
		BackendsUsed:      backendsUsed(primary.Backend(), cross),
	}, nil
}

// backendsUsed lists the consulted backends, acting primary first, the
// remaining cross-validation backends sorted after it.
func backendsUsed(primary types.BackendKind, cross map[types.BackendKind]types.SingleProofResult) []types.BackendKind {
	used := []types.BackendKind{primary}
	rest := make([]types.BackendKind, 0, len(cross))
	for k := range cross {
		if k != primary {
			rest = append(rest, k)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i] < rest[j] })
	return append(used, rest...)
}

// completeJob performs the single terminal transition: exactly one of
// completed or failed, metrics applied once, audit written best-effort,
// done closed, job evicted.
func (o *Orchestrator) completeJob(j *job, res *types.ProofValidationResult, err error) {
	o.mu.Lock()
	if j.v.State.Terminal() {
		o.mu.Unlock()
		return
	}
	j.v.CompletedAt = time.Now().UTC()
	if err != nil {
		j.v.State = types.JobFailed
		j.v.Error = err.Error()
		j.err = err
	} else {
		j.v.State = types.JobCompleted
		j.v.Result = res
	}
	delete(o.jobs, j.v.ID)
	o.mu.Unlock()

	o.metrics.recordJob(j.v)
	if err != nil {
		o.log.Warn("job failed", "job", j.v.ID, "error", err)
	} else {
		if aerr := o.audit.RecordValidation(context.Background(), res); aerr != nil {
			o.log.Warn("audit record failed", "job", j.v.ID, "error", aerr)
		}
		o.log.Info("job completed", "job", j.v.ID, "citation", j.v.Citation.ID,
			"valid", res.PrimaryValidation.Valid, "duration", res.TotalDuration)
	}
	close(j.done)
}

// actingPrimary returns the adapter currently serving primary validations:
// the promoted primary when ready, otherwise the first ready adapter by kind.
func (o *Orchestrator) actingPrimary() (prover.Verifier, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if v, ok := o.adapters[o.primary]; ok && v.IsReady() {
		return v, true
	}
	kinds := make([]types.BackendKind, 0, len(o.adapters))
	for k := range o.adapters {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	for _, k := range kinds {
		if v := o.adapters[k]; v.IsReady() {
			return v, true
		}
	}
	return nil, false
}

// liveAdapters snapshots every ready adapter, sorted by kind for a
// deterministic fan-out order.
func (o *Orchestrator) liveAdapters() []prover.Verifier {
	o.mu.RLock()
	defer o.mu.RUnlock()
	kinds := make([]types.BackendKind, 0, len(o.adapters))
	for k := range o.adapters {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	out := make([]prover.Verifier, 0, len(kinds))
	for _, k := range kinds {
		if v := o.adapters[k]; v.IsReady() {
			out = append(out, v)
		}
	}
	return out
}

// CheckConsistencyAcrossCitations pools every formal statement from the
// citations, asks the acting primary whether the pool jointly implies a
// contradiction, and attributes each one back to the contributing citations
// by statement-ID membership. Idempotent for a fixed statement set.
func (o *Orchestrator) CheckConsistencyAcrossCitations(ctx context.Context, citations []types.MathematicalCitation) (types.ConsistencyVerdict, error) {
	if err := o.submissionGate(); err != nil {
		return types.ConsistencyVerdict{}, err
	}

	pool := poolStatements(citations)
	if len(pool.statements) == 0 {
		return types.ConsistencyVerdict{
			Consistent:       true,
			ConfidenceScore:  1.0,
			DetailedAnalysis: "0 formal statements pooled; nothing to cross-check",
		}, nil
	}

	primary, ok := o.actingPrimary()
	if !ok {
		return types.ConsistencyVerdict{}, ErrNoAdapters
	}

	kept := pool.statements[:0]
	for i := range pool.statements {
		stmt := &pool.statements[i]
		if err := prover.EnsureTranslated(ctx, primary, stmt); err != nil {
			o.log.Warn("statement dropped from consistency pool",
				"statement", stmt.ID, "error", err)
			continue
		}
		kept = append(kept, *stmt)
	}
	pool.statements = kept

	checkCtx, cancel := context.WithTimeout(ctx, o.cfg.Timeouts.FullVerification)
	defer cancel()
	report, err := primary.CheckConsistency(checkCtx, pool.statements)
	if err != nil {
		return types.ConsistencyVerdict{}, fmt.Errorf("consistency check via %s: %w", primary.Backend(), err)
	}

	verdict := attributeContradictions(report, pool, o.cfg.Thresholds.ConsistencyThreshold)
	if aerr := o.audit.RecordConsistency(ctx, pool.citations, &verdict); aerr != nil {
		o.log.Warn("audit record failed", "error", aerr)
	}
	return verdict, nil
}

// Shutdown stops intake, fails whatever never ran, waits for in-flight jobs
// up to the grace period, disconnects every adapter tolerating individual
// failures, and closes the audit store. Safe to call more than once.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	if o.lifecycle == StateShutdown {
		o.mu.Unlock()
		return nil
	}
	o.lifecycle = StateShutdown
	sched := o.sched
	o.mu.Unlock()
	o.log.Info("shutting down")

	if sched != nil {
		sched.stop()
	}

	for _, j := range o.queue.drain() {
		o.completeJob(j, nil, ErrShuttingDown)
	}

	done := make(chan struct{})
	go func() {
		o.inflight.Wait()
		close(done)
	}()

	timer := time.NewTimer(o.cfg.Timeouts.MaxOverall)
	defer timer.Stop()

	var graceExpired bool
	select {
	case <-done:
	case <-timer.C:
		graceExpired = true
	case <-ctx.Done():
		graceExpired = true
	}

	o.mu.Lock()
	adapters := o.adapters
	o.adapters = make(map[types.BackendKind]prover.Verifier)
	swept := len(o.jobs)
	o.jobs = make(map[string]*job)
	o.mu.Unlock()

	for kind, v := range adapters {
		v.Disconnect()
		o.log.Info("backend disconnected", "backend", kind)
	}

	if err := o.audit.Close(); err != nil {
		o.log.Warn("closing audit store", "error", err)
	}

	if graceExpired {
		return fmt.Errorf("shutdown grace expired with %d jobs still registered", swept)
	}
	return nil
}
