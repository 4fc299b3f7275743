// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package validate

import (
	"fmt"

	"github.com/pdiddy/proofbridge/pkg/types"
)

// job pairs the public job record with its runtime signals. done is closed
// exactly once, on the terminal transition; err keeps the original error so
// callers can match sentinels with errors.Is.
type job struct {
	v    *types.ValidationJob
	err  error
	done chan struct{}
}

// jobQueue is a three-class priority queue. Each class is a bounded FIFO
// channel; dequeue scans high before medium before low, so priority strictly
// dominates arrival order.
type jobQueue struct {
	high   chan *job
	medium chan *job
	low    chan *job
}

func newJobQueue(capacity int) *jobQueue {
	return &jobQueue{
		high:   make(chan *job, capacity),
		medium: make(chan *job, capacity),
		low:    make(chan *job, capacity),
	}
}

func (q *jobQueue) classFor(p types.JobPriority) chan *job {
	switch p {
	case types.PriorityHigh:
		return q.high
	case types.PriorityMedium:
		return q.medium
	default:
		return q.low
	}
}

// enqueue adds j to its priority class without blocking. A full class
// reports backpressure so the caller can fail the job without executing it.
func (q *jobQueue) enqueue(j *job) error {
	class := q.classFor(j.v.Priority)
	select {
	case class <- j:
		return nil
	default:
		return fmt.Errorf("%w: %s class at capacity %d", ErrQueueFull, j.v.Priority, cap(class))
	}
}

// dequeue removes the oldest job of the highest non-empty class.
func (q *jobQueue) dequeue() (*job, bool) {
	select {
	case j := <-q.high:
		return j, true
	default:
	}
	select {
	case j := <-q.medium:
		return j, true
	default:
	}
	select {
	case j := <-q.low:
		return j, true
	default:
	}
	return nil, false
}

// drain empties every class, highest first.
func (q *jobQueue) drain() []*job {
	var jobs []*job
	for {
		j, ok := q.dequeue()
		if !ok {
			return jobs
		}
		jobs = append(jobs, j)
	}
}

func (q *jobQueue) empty() bool {
	return len(q.high)+len(q.medium)+len(q.low) == 0
}

// depths reports the per-class backlog.
func (q *jobQueue) depths() (high, medium, low int) {
	return len(q.high), len(q.medium), len(q.low)
}
