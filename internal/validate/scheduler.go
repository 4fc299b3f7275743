// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package validate

import (
	"context"
	"sync"
	"time"
)

// scheduler drains the job queue on a fixed tick, dispatching queued work
// while the running-job count is under the configured concurrency. Stopping
// cuts intake only; in-flight jobs run to completion.
type scheduler struct {
	o    *Orchestrator
	tick time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	loopDone chan struct{}
}

func newScheduler(o *Orchestrator, tick time.Duration) *scheduler {
	return &scheduler{
		o:        o,
		tick:     tick,
		stopCh:   make(chan struct{}),
		loopDone: make(chan struct{}),
	}
}

func (s *scheduler) start() {
	go s.loop()
}

func (s *scheduler) loop() {
	defer close(s.loopDone)
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.drainTick()
		}
	}
}

// drainTick dispatches until the queue is empty or every slot is taken.
// Dequeue order is strictly high before medium before low.
func (s *scheduler) drainTick() {
	for s.o.runningJobs() < s.o.cfg.Performance.MaxConcurrentJobs {
		j, ok := s.o.queue.dequeue()
		if !ok {
			return
		}
		s.o.inflight.Add(1)
		go func(j *job) {
			defer s.o.inflight.Done()
			s.o.runJob(context.Background(), j)
		}(j)
	}
}

// stop halts the dequeue loop and returns once it has exited. Safe to call
// more than once.
func (s *scheduler) stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	<-s.loopDone
}
