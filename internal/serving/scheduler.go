package serving

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"enferd/pkg/tensor"
)

// Scheduler is the control loop between the assembler and the session pool.
// It pulls ready batches, leases a session, runs the stacked input through the
// backend, and fans results or errors back to every member's completion
// handle. Batches are dispatched on their own goroutines so independent
// models execute concurrently, bounded by each model's pool size.
type Scheduler struct {
	pool           *SessionPool
	assembler      *Assembler
	acquireTimeout time.Duration
	log            zerolog.Logger
	pub            EventPublisher
	wg             sync.WaitGroup

	batchesTotal  atomic.Uint64
	failuresTotal atomic.Uint64
}

func NewScheduler(pool *SessionPool, assembler *Assembler, acquireTimeout time.Duration, log zerolog.Logger, pub EventPublisher) *Scheduler {
	return &Scheduler{
		pool:           pool,
		assembler:      assembler,
		acquireTimeout: acquireTimeout,
		log:            log,
		pub:            pub,
	}
}

// run loops until ctx is done, then waits for in-flight dispatches. Once a
// batch is handed to dispatch it always reaches a terminal state, so shutdown
// never strands a completion handle.
func (s *Scheduler) run(ctx context.Context) {
	for {
		b := s.assembler.Next(ctx)
		if b == nil {
			break
		}
		s.wg.Add(1)
		go func(b *batch) {
			defer s.wg.Done()
			s.dispatch(ctx, b)
		}(b)
	}
	s.wg.Wait()
}

func (s *Scheduler) dispatch(ctx context.Context, b *batch) {
	b.state = batchDispatched
	n := len(b.reqs)

	lease, err := s.pool.Acquire(ctx, b.modelID, s.acquireTimeout)
	if err != nil {
		// No session in time: the batch is discarded, not retried. Retrying
		// on a resource-starved device only grows the queue.
		if IsOverloaded(err) {
			b.state = batchOverloaded
		} else {
			b.state = batchFailed
		}
		s.failBatch(b, err)
		return
	}
	defer lease.Release()

	inputs := make([]tensor.Tensor, n)
	for i, pr := range b.reqs {
		inputs[i] = pr.input
	}
	stacked, err := tensor.Stack(inputs)
	if err != nil {
		b.state = batchFailed
		s.failBatch(b, executionFailureError{id: b.modelID, err: err})
		return
	}

	start := time.Now()
	queueWait := start.Sub(b.oldest)
	out, err := lease.Session.Execute(ctx, stacked)
	execTime := time.Since(start)
	if err != nil {
		// Native failures invalidate the whole batch; every member gets the
		// same error and nothing is retried internally.
		b.state = batchFailed
		s.failBatch(b, executionFailureError{id: b.modelID, err: err})
		return
	}

	outs, err := tensor.Split(out, n)
	if err != nil {
		b.state = batchFailed
		s.failBatch(b, executionFailureError{id: b.modelID, err: err})
		return
	}

	for i, pr := range b.reqs {
		pr.finish(Result{
			Output:    outs[i],
			BatchSize: n,
			QueueWait: start.Sub(pr.enqueued),
			ExecTime:  execTime,
		}, nil)
	}
	b.state = batchCompleted
	s.batchesTotal.Add(1)

	batchSizeObserved.Observe(float64(n))
	batchDuration.WithLabelValues(b.modelID).Observe(execTime.Seconds())
	queueWaitDuration.WithLabelValues(b.modelID).Observe(queueWait.Seconds())

	s.log.Debug().
		Str("model", b.modelID).
		Int("batch_size", n).
		Dur("queue_wait", queueWait).
		Dur("exec", execTime).
		Msg("batch completed")
	s.pub.Publish(Event{Name: "batch_completed", ModelID: b.modelID, Fields: map[string]any{
		"batch_size": n,
		"exec_ms":    execTime.Milliseconds(),
	}})
}

// failBatch delivers the same terminal error to every member.
func (s *Scheduler) failBatch(b *batch, err error) {
	for _, pr := range b.reqs {
		pr.finish(Result{}, err)
	}
	s.failuresTotal.Add(1)
	batchFailures.WithLabelValues(b.modelID, b.state.String()).Inc()
	s.log.Warn().
		Str("model", b.modelID).
		Int("batch_size", len(b.reqs)).
		Str("state", b.state.String()).
		Err(err).
		Msg("batch failed")
	s.pub.Publish(Event{Name: "batch_" + b.state.String(), ModelID: b.modelID, Fields: map[string]any{
		"batch_size": len(b.reqs),
		"error":      err.Error(),
	}})
}
