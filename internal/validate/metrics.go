// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package validate

import (
	"sync"
	"time"

	"github.com/pdiddy/proofbridge/pkg/types"
)

// BackendMetrics aggregates outcomes per backend across all jobs.
type BackendMetrics struct {
	// Requests counts aggregate verdicts the backend produced (primary
	// passes and cross-validation branches both count).
	Requests int64 `json:"requests" yaml:"requests"`

	// Successes counts valid verdicts.
	Successes int64 `json:"successes" yaml:"successes"`

	// AvgLatency is the rolling mean verdict latency.
	AvgLatency time.Duration `json:"avg_latency" yaml:"avg_latency"`
}

// SuccessRate is Successes over Requests, 0 when idle.
func (b BackendMetrics) SuccessRate() float64 {
	if b.Requests == 0 {
		return 0
	}
	return float64(b.Successes) / float64(b.Requests)
}

// MetricsSnapshot is a point-in-time copy of the orchestrator counters.
type MetricsSnapshot struct {
	// TotalJobs counts jobs that reached a terminal state.
	TotalJobs int64 `json:"total_jobs" yaml:"total_jobs"`

	// CompletedJobs and FailedJobs split TotalJobs by terminal state.
	CompletedJobs int64 `json:"completed_jobs" yaml:"completed_jobs"`
	FailedJobs    int64 `json:"failed_jobs" yaml:"failed_jobs"`

	// ValidVerdicts counts completed jobs whose primary verdict was valid.
	ValidVerdicts int64 `json:"valid_verdicts" yaml:"valid_verdicts"`

	// ShortCircuits counts citations answered without a job because they
	// required no formal verification.
	ShortCircuits int64 `json:"short_circuits" yaml:"short_circuits"`

	// AvgJobDuration is the rolling mean duration over completed jobs.
	AvgJobDuration time.Duration `json:"avg_job_duration" yaml:"avg_job_duration"`

	// QueuePeak is the deepest total backlog observed.
	QueuePeak int `json:"queue_peak" yaml:"queue_peak"`

	// Backends holds per-backend aggregates.
	Backends map[types.BackendKind]BackendMetrics `json:"backends" yaml:"backends"`
}

// metricsState owns the counters behind its own mutex. recordJob is applied
// exactly once per job, on the terminal transition, regardless of how many
// backends the job consulted.
type metricsState struct {
	mu   sync.Mutex
	snap MetricsSnapshot
}

func newMetricsState() *metricsState {
	return &metricsState{
		snap: MetricsSnapshot{Backends: make(map[types.BackendKind]BackendMetrics)},
	}
}

func (m *metricsState) recordJob(v *types.ValidationJob) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.snap.TotalJobs++
	if v.State == types.JobFailed || v.Result == nil {
		m.snap.FailedJobs++
		return
	}

	res := v.Result
	m.snap.CompletedJobs++
	if res.PrimaryValidation.Valid {
		m.snap.ValidVerdicts++
	}
	n := time.Duration(m.snap.CompletedJobs)
	m.snap.AvgJobDuration += (res.TotalDuration - m.snap.AvgJobDuration) / n

	m.recordBackendLocked(res.PrimaryValidation)
	for _, r := range res.CrossValidation {
		m.recordBackendLocked(r)
	}
}

func (m *metricsState) recordBackendLocked(r types.SingleProofResult) {
	b := m.snap.Backends[r.Backend]
	b.Requests++
	if r.Valid {
		b.Successes++
	}
	b.AvgLatency += (r.Duration - b.AvgLatency) / time.Duration(b.Requests)
	m.snap.Backends[r.Backend] = b
}

func (m *metricsState) recordShortCircuit() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap.ShortCircuits++
}

func (m *metricsState) observeQueueDepth(depth int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if depth > m.snap.QueuePeak {
		m.snap.QueuePeak = depth
	}
}

// snapshot returns a copy the caller may hold without synchronization.
func (m *metricsState) snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.snap
	out.Backends = make(map[types.BackendKind]BackendMetrics, len(m.snap.Backends))
	for k, v := range m.snap.Backends {
		out.Backends[k] = v
	}
	return out
}
