package serving

import (
	"context"
	"sync"
	"time"
)

// Assembler converts per-model streams of pending requests into batches under
// a hybrid size/time policy: a batch is emitted as soon as either the queue
// reaches the model's max batch size or the oldest waiter has been queued
// longer than maxWait, whichever comes first. Pure size-triggering starves
// low-traffic models; pure time-triggering wastes batching under burst load.
type Assembler struct {
	mu        sync.Mutex
	queues    map[string]*modelQueue
	notify    chan struct{}
	maxWait   time.Duration
	admission *Admission
}

type modelQueue struct {
	maxBatch int
	reqs     []*pendingRequest
}

func NewAssembler(maxWait time.Duration, admission *Admission) *Assembler {
	return &Assembler{
		queues:    make(map[string]*modelQueue),
		notify:    make(chan struct{}, 1),
		maxWait:   maxWait,
		admission: admission,
	}
}

// Enqueue appends an admitted request to its model's queue. The request has
// already passed shape validation and admission control.
func (a *Assembler) Enqueue(h *ModelHandle, pr *pendingRequest) {
	a.mu.Lock()
	q, ok := a.queues[h.ID]
	if !ok {
		q = &modelQueue{maxBatch: h.MaxBatchSize}
		a.queues[h.ID] = q
	}
	q.reqs = append(q.reqs, pr)
	a.mu.Unlock()
	a.signal()
}

// signal wakes the scheduler without blocking; a full notify channel means a
// wakeup is already pending.
func (a *Assembler) signal() {
	select {
	case a.notify <- struct{}{}:
	default:
	}
}

// Next blocks until a batch is ready or ctx is done, returning nil on the
// latter. When several models are ready at once, the one whose oldest waiter
// has been queued longest wins, which bounds worst-case per-request latency
// and keeps requests within one model in FIFO order.
func (a *Assembler) Next(ctx context.Context) *batch {
	for {
		b, wait := a.tryEmit(time.Now())
		if b != nil {
			return b
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-a.notify:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// tryEmit scans the queues once. It returns a ready batch, or the duration to
// sleep before the earliest time trigger can fire.
func (a *Assembler) tryEmit(now time.Time) (*batch, time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.sweepCanceledLocked()

	var (
		bestID string
		bestQ  *modelQueue
	)
	wait := a.maxWait
	if wait <= 0 {
		wait = time.Second
	}
	for id, q := range a.queues {
		if len(q.reqs) == 0 {
			continue
		}
		age := now.Sub(q.reqs[0].enqueued)
		ready := len(q.reqs) >= q.maxBatch || age >= a.maxWait
		if ready {
			if bestQ == nil || q.reqs[0].enqueued.Before(bestQ.reqs[0].enqueued) {
				bestID, bestQ = id, q
			}
			continue
		}
		if remain := a.maxWait - age; remain < wait {
			wait = remain
		}
	}
	if bestQ == nil {
		if wait < time.Millisecond {
			wait = time.Millisecond
		}
		return nil, wait
	}

	n := len(bestQ.reqs)
	if n > bestQ.maxBatch {
		n = bestQ.maxBatch
	}
	reqs := make([]*pendingRequest, n)
	copy(reqs, bestQ.reqs[:n])
	rest := copy(bestQ.reqs, bestQ.reqs[n:])
	for i := rest; i < len(bestQ.reqs); i++ {
		bestQ.reqs[i] = nil
	}
	bestQ.reqs = bestQ.reqs[:rest]

	var bytes int64
	for _, pr := range reqs {
		bytes += pr.input.SizeBytes()
	}
	a.admission.release(bestID, n, bytes)
	return &batch{modelID: bestID, reqs: reqs, state: batchAssembled, oldest: reqs[0].enqueued}, 0
}

// sweepCanceledLocked drops requests whose caller context ended before
// dispatch. Each dropped request still receives its one terminal signal.
// Once a request is in an emitted batch it is past this point and always runs.
func (a *Assembler) sweepCanceledLocked() {
	for id, q := range a.queues {
		kept := q.reqs[:0]
		for _, pr := range q.reqs {
			if err := pr.ctx.Err(); err != nil {
				pr.finish(Result{}, err)
				a.admission.release(id, 1, pr.input.SizeBytes())
				continue
			}
			kept = append(kept, pr)
		}
		for i := len(kept); i < len(q.reqs); i++ {
			q.reqs[i] = nil
		}
		q.reqs = kept
	}
}

// failPending removes a model's queue, delivering err to every queued request.
// Used when a model is unregistered with work still waiting.
func (a *Assembler) failPending(modelID string, err error) {
	a.mu.Lock()
	q, ok := a.queues[modelID]
	if ok {
		delete(a.queues, modelID)
	}
	a.mu.Unlock()
	if !ok {
		return
	}
	for _, pr := range q.reqs {
		a.admission.release(modelID, 1, pr.input.SizeBytes())
		pr.finish(Result{}, err)
	}
}

// depth reports the queued request count for one model.
func (a *Assembler) depth(modelID string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if q, ok := a.queues[modelID]; ok {
		return len(q.reqs)
	}
	return 0
}
