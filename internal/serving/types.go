package serving

import (
	"context"
	"time"

	"enferd/pkg/tensor"
	"enferd/pkg/types"
)

// ModelHandle is the immutable record for a loaded model. It is created by
// Register, owned by the Registry, and never mutated afterwards. Other
// components refer to models by id and look handles up on demand.
type ModelHandle struct {
	ID          string
	Model       types.Model
	InputShape  []int64
	OutputShape []int64
	// MaxBatchSize caps how many requests the assembler may stack.
	MaxBatchSize int
	// PoolSize is the number of execution sessions created at register time.
	PoolSize int
	// backend is selected once at register time and fixed for the handle's
	// lifetime. Sessions are created from it and owned by the pool.
	backend Backend
}

// Result carries the per-request outcome of a completed execution.
type Result struct {
	Output    tensor.Tensor
	BatchSize int
	QueueWait time.Duration
	ExecTime  time.Duration
}

// pendingRequest is one admitted request waiting for dispatch. Its done
// channel is buffered with capacity one and receives exactly one terminal
// signal: a Result or an error, never both, never twice.
type pendingRequest struct {
	modelID  string
	input    tensor.Tensor
	enqueued time.Time
	ctx      context.Context
	done     chan outcome
}

type outcome struct {
	res Result
	err error
}

// finish delivers the terminal signal. The buffered channel makes delivery
// non-blocking even when the caller has already gone away.
func (p *pendingRequest) finish(res Result, err error) {
	p.done <- outcome{res: res, err: err}
}

// batchState tracks the lifecycle of an assembled batch. Transitions are
// one-way: assembled -> dispatched -> one of the three terminal states.
type batchState int

const (
	batchAssembled batchState = iota
	batchDispatched
	batchCompleted
	batchFailed
	batchOverloaded
)

func (s batchState) String() string {
	switch s {
	case batchAssembled:
		return "assembled"
	case batchDispatched:
		return "dispatched"
	case batchCompleted:
		return "completed"
	case batchFailed:
		return "failed"
	case batchOverloaded:
		return "overloaded"
	default:
		return "unknown"
	}
}

// batch is an ordered group of pending requests for one model, emitted by the
// assembler and consumed by the scheduler.
type batch struct {
	modelID string
	reqs    []*pendingRequest
	state   batchState
	// oldest is the enqueue time of the oldest member, used for FIFO
	// tie-breaking across models and for queue-wait accounting.
	oldest time.Time
}
