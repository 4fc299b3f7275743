// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package validate

import (
	"context"

	"github.com/pdiddy/proofbridge/internal/prover"
	"github.com/pdiddy/proofbridge/pkg/types"
)

// State is the orchestrator lifecycle state. Busy is a surface state,
// reported instead of ready while at least one job is running.
type State string

const (
	StateInitializing State = "initializing"
	StateReady        State = "ready"
	StateBusy         State = "busy"
	StateShutdown     State = "shutdown"
	StateError        State = "error"
)

// QueueStatus reports backlog depth per priority class plus running work.
type QueueStatus struct {
	High     int `json:"high" yaml:"high"`
	Medium   int `json:"medium" yaml:"medium"`
	Low      int `json:"low" yaml:"low"`
	Running  int `json:"running" yaml:"running"`
	Capacity int `json:"capacity" yaml:"capacity"`
}

// AdapterStatus reports one adapter's connection state and latest health.
type AdapterStatus struct {
	State  prover.ConnState   `json:"state" yaml:"state"`
	Ready  bool               `json:"ready" yaml:"ready"`
	Health types.HealthReport `json:"health" yaml:"health"`
}

// Status is a point-in-time snapshot of the orchestrator.
type Status struct {
	State State `json:"state" yaml:"state"`

	// Primary is the acting primary backend, which may differ from the
	// configured one after fallback promotion.
	Primary types.BackendKind `json:"primary" yaml:"primary"`

	Metrics  MetricsSnapshot                     `json:"metrics" yaml:"metrics"`
	Queue    QueueStatus                         `json:"queue" yaml:"queue"`
	Adapters map[types.BackendKind]AdapterStatus `json:"adapters" yaml:"adapters"`
}

// Status snapshots the orchestrator. Adapter health probes are bounded by
// the quick-check budget and served from the adapter-side cache when fresh.
func (o *Orchestrator) Status() Status {
	o.mu.RLock()
	st := o.lifecycleLocked()
	primary := o.primary
	adapters := make(map[types.BackendKind]prover.Verifier, len(o.adapters))
	for k, v := range o.adapters {
		adapters[k] = v
	}
	o.mu.RUnlock()

	high, medium, low := o.queue.depths()
	status := Status{
		State:   st,
		Primary: primary,
		Metrics: o.metrics.snapshot(),
		Queue: QueueStatus{
			High:     high,
			Medium:   medium,
			Low:      low,
			Running:  o.runningJobs(),
			Capacity: o.cfg.Performance.QueueCapacity,
		},
		Adapters: make(map[types.BackendKind]AdapterStatus, len(adapters)),
	}

	for kind, v := range adapters {
		probeCtx, cancel := context.WithTimeout(context.Background(), o.cfg.Timeouts.QuickCheck)
		health := v.HealthCheck(probeCtx)
		cancel()
		status.Adapters[kind] = AdapterStatus{State: v.State(), Ready: v.IsReady(), Health: health}
	}
	return status
}

// Metrics returns the counter snapshot without probing adapters. Scrape
// paths use this instead of Status to keep collection off the prover.
func (o *Orchestrator) Metrics() MetricsSnapshot {
	return o.metrics.snapshot()
}

// QueueSnapshot reports backlog depth and running work without probing
// adapters.
func (o *Orchestrator) QueueSnapshot() QueueStatus {
	high, medium, low := o.queue.depths()
	return QueueStatus{
		High:     high,
		Medium:   medium,
		Low:      low,
		Running:  o.runningJobs(),
		Capacity: o.cfg.Performance.QueueCapacity,
	}
}

// State returns the surfaced lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.lifecycleLocked()
}

func (o *Orchestrator) lifecycleLocked() State {
	if o.lifecycle == StateReady && o.running.Load() > 0 {
		return StateBusy
	}
	return o.lifecycle
}
