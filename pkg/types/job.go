// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// JobPriority orders validation work. Higher values dispatch first;
// within one priority, queue order (FIFO) decides. Per prd002-orchestration R2.2.
type JobPriority int

const (
	PriorityLow JobPriority = iota
	PriorityMedium
	PriorityHigh
)

// String returns the lowercase priority name.
func (p JobPriority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	default:
		return "low"
	}
}

// JobState tracks a validation job through its lifecycle. A job observes
// exactly one terminal state: completed or failed. Per prd002-orchestration R2.1.
type JobState string

const (
	JobQueued    JobState = "queued"
	JobRunning   JobState = "running"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
)

// Terminal reports whether s is a terminal job state.
func (s JobState) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// ValidationJob is one unit of orchestrator-scheduled validation work tied
// to a single citation. Created by job submission, mutated only by the
// orchestrator's own execution path, evicted once its result has been
// delivered or after the shutdown grace period. Per prd002-orchestration R2.1-R2.4.
type ValidationJob struct {
	// ID is the job's unique identifier.
	ID string `json:"id" yaml:"id"`

	// Citation is the work item, held by value.
	Citation MathematicalCitation `json:"citation" yaml:"citation"`

	// Priority orders the job against other queued work.
	Priority JobPriority `json:"priority" yaml:"priority"`

	// CreatedAt, StartedAt, and CompletedAt timestamp the job's lifecycle.
	// StartedAt and CompletedAt are zero until the corresponding transition.
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
	StartedAt   time.Time `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	CompletedAt time.Time `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`

	// State is the job's current lifecycle state.
	State JobState `json:"state" yaml:"state"`

	// Result holds the validation outcome once State is completed.
	Result *ProofValidationResult `json:"result,omitempty" yaml:"result,omitempty"`

	// Error records the failure message once State is failed.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}
