// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package serve

import (
	"sort"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pdiddy/proofbridge/internal/validate"
	"github.com/pdiddy/proofbridge/pkg/types"
)

// orchestratorCollector exports the orchestrator's counters as Prometheus
// metrics. Values are read from the snapshot at scrape time, so the
// orchestrator stays the single source of truth and nothing counts twice.
type orchestratorCollector struct {
	orch *validate.Orchestrator

	ready            *prometheus.Desc
	jobsTotal        *prometheus.Desc
	jobsCompleted    *prometheus.Desc
	jobsFailed       *prometheus.Desc
	validVerdicts    *prometheus.Desc
	shortCircuits    *prometheus.Desc
	avgJobSeconds    *prometheus.Desc
	queueDepth       *prometheus.Desc
	queuePeak        *prometheus.Desc
	runningJobs      *prometheus.Desc
	backendRequests  *prometheus.Desc
	backendSuccesses *prometheus.Desc
	backendLatency   *prometheus.Desc
}

func newOrchestratorCollector(orch *validate.Orchestrator) *orchestratorCollector {
	return &orchestratorCollector{
		orch: orch,
		ready: prometheus.NewDesc("proofbridge_ready",
			"1 while the orchestrator accepts work.", nil, nil),
		jobsTotal: prometheus.NewDesc("proofbridge_jobs_total",
			"Jobs that reached a terminal state.", nil, nil),
		jobsCompleted: prometheus.NewDesc("proofbridge_jobs_completed_total",
			"Jobs that completed with a result.", nil, nil),
		jobsFailed: prometheus.NewDesc("proofbridge_jobs_failed_total",
			"Jobs that failed before producing a result.", nil, nil),
		validVerdicts: prometheus.NewDesc("proofbridge_valid_verdicts_total",
			"Completed jobs whose primary verdict was valid.", nil, nil),
		shortCircuits: prometheus.NewDesc("proofbridge_short_circuits_total",
			"Citations answered without prover work.", nil, nil),
		avgJobSeconds: prometheus.NewDesc("proofbridge_avg_job_duration_seconds",
			"Rolling mean duration over completed jobs.", nil, nil),
		queueDepth: prometheus.NewDesc("proofbridge_queue_depth",
			"Queued jobs per priority class.", []string{"class"}, nil),
		queuePeak: prometheus.NewDesc("proofbridge_queue_peak",
			"Deepest total backlog observed.", nil, nil),
		runningJobs: prometheus.NewDesc("proofbridge_running_jobs",
			"Jobs currently executing.", nil, nil),
		backendRequests: prometheus.NewDesc("proofbridge_backend_requests_total",
			"Aggregate verdicts produced per backend.", []string{"backend"}, nil),
		backendSuccesses: prometheus.NewDesc("proofbridge_backend_successes_total",
			"Valid verdicts produced per backend.", []string{"backend"}, nil),
		backendLatency: prometheus.NewDesc("proofbridge_backend_avg_latency_seconds",
			"Rolling mean verdict latency per backend.", []string{"backend"}, nil),
	}
}

func (c *orchestratorCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.ready
	ch <- c.jobsTotal
	ch <- c.jobsCompleted
	ch <- c.jobsFailed
	ch <- c.validVerdicts
	ch <- c.shortCircuits
	ch <- c.avgJobSeconds
	ch <- c.queueDepth
	ch <- c.queuePeak
	ch <- c.runningJobs
	ch <- c.backendRequests
	ch <- c.backendSuccesses
	ch <- c.backendLatency
}

func (c *orchestratorCollector) Collect(ch chan<- prometheus.Metric) {
	snap := c.orch.Metrics()
	queue := c.orch.QueueSnapshot()

	ready := 0.0
	switch c.orch.State() {
	case validate.StateReady, validate.StateBusy:
		ready = 1.0
	}

	ch <- prometheus.MustNewConstMetric(c.ready, prometheus.GaugeValue, ready)
	ch <- prometheus.MustNewConstMetric(c.jobsTotal, prometheus.CounterValue, float64(snap.TotalJobs))
	ch <- prometheus.MustNewConstMetric(c.jobsCompleted, prometheus.CounterValue, float64(snap.CompletedJobs))
	ch <- prometheus.MustNewConstMetric(c.jobsFailed, prometheus.CounterValue, float64(snap.FailedJobs))
	ch <- prometheus.MustNewConstMetric(c.validVerdicts, prometheus.CounterValue, float64(snap.ValidVerdicts))
	ch <- prometheus.MustNewConstMetric(c.shortCircuits, prometheus.CounterValue, float64(snap.ShortCircuits))
	ch <- prometheus.MustNewConstMetric(c.avgJobSeconds, prometheus.GaugeValue, snap.AvgJobDuration.Seconds())
	ch <- prometheus.MustNewConstMetric(c.queueDepth, prometheus.GaugeValue, float64(queue.High), "high")
	ch <- prometheus.MustNewConstMetric(c.queueDepth, prometheus.GaugeValue, float64(queue.Medium), "medium")
	ch <- prometheus.MustNewConstMetric(c.queueDepth, prometheus.GaugeValue, float64(queue.Low), "low")
	ch <- prometheus.MustNewConstMetric(c.queuePeak, prometheus.GaugeValue, float64(snap.QueuePeak))
	ch <- prometheus.MustNewConstMetric(c.runningJobs, prometheus.GaugeValue, float64(queue.Running))

	kinds := make([]types.BackendKind, 0, len(snap.Backends))
	for k := range snap.Backends {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	for _, kind := range kinds {
		b := snap.Backends[kind]
		ch <- prometheus.MustNewConstMetric(c.backendRequests, prometheus.CounterValue, float64(b.Requests), string(kind))
		ch <- prometheus.MustNewConstMetric(c.backendSuccesses, prometheus.CounterValue, float64(b.Successes), string(kind))
		ch <- prometheus.MustNewConstMetric(c.backendLatency, prometheus.GaugeValue, b.AvgLatency.Seconds(), string(kind))
	}
}
