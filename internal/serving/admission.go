package serving

import (
	"sync"

	"enferd/pkg/tensor"
)

// queueState is the per-model accounting the admission controller and the
// assembler share: pending request count plus the bytes those requests
// reserve. One mutex guards all of it so pending counts cannot lose updates.
type queueState struct {
	pending       int
	reservedBytes int64
}

// Admission gates requests before they enter a queue. Unmet demand on an edge
// device must fail fast rather than queue until the OS kills the process, so
// both ceilings here are hard rejections, not waits.
type Admission struct {
	mu       sync.Mutex
	perModel map[string]*queueState
	ceilings map[string]int
	// global memory accounting for queued payloads
	budgetBytes   int64
	reservedBytes int64
}

func NewAdmission(budgetBytes int64) *Admission {
	return &Admission{
		perModel:    make(map[string]*queueState),
		ceilings:    make(map[string]int),
		budgetBytes: budgetBytes,
	}
}

func (a *Admission) addModel(modelID string, ceiling int) {
	a.mu.Lock()
	a.perModel[modelID] = &queueState{}
	a.ceilings[modelID] = ceiling
	a.mu.Unlock()
}

func (a *Admission) removeModel(modelID string) {
	a.mu.Lock()
	if st, ok := a.perModel[modelID]; ok {
		a.reservedBytes -= st.reservedBytes
		if a.reservedBytes < 0 {
			a.reservedBytes = 0
		}
	}
	delete(a.perModel, modelID)
	delete(a.ceilings, modelID)
	a.mu.Unlock()
}

// Admit reserves a queue slot and the request's memory footprint, or rejects
// with a backpressure error. A request at the ceiling is rejected; one below
// it is accepted.
func (a *Admission) Admit(modelID string, input tensor.Tensor) error {
	footprint := input.SizeBytes()
	a.mu.Lock()
	defer a.mu.Unlock()
	st, ok := a.perModel[modelID]
	if !ok {
		return unknownModelError{id: modelID}
	}
	if ceiling := a.ceilings[modelID]; ceiling > 0 && st.pending >= ceiling {
		return backpressureError{id: modelID, reason: "queue depth ceiling reached"}
	}
	if a.budgetBytes > 0 && a.reservedBytes+footprint > a.budgetBytes {
		return backpressureError{id: modelID, reason: "memory budget exhausted"}
	}
	st.pending++
	st.reservedBytes += footprint
	a.reservedBytes += footprint
	return nil
}

// release returns capacity when requests leave a queue, whether dispatched,
// canceled, or failed before dispatch.
func (a *Admission) release(modelID string, n int, bytes int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	st, ok := a.perModel[modelID]
	if !ok {
		return
	}
	st.pending -= n
	if st.pending < 0 {
		st.pending = 0
	}
	st.reservedBytes -= bytes
	if st.reservedBytes < 0 {
		st.reservedBytes = 0
	}
	a.reservedBytes -= bytes
	if a.reservedBytes < 0 {
		a.reservedBytes = 0
	}
}

// stateOf returns (pending, reservedBytes, ceiling) for status reporting.
func (a *Admission) stateOf(modelID string) (int, int64, int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	st, ok := a.perModel[modelID]
	if !ok {
		return 0, 0, 0
	}
	return st.pending, st.reservedBytes, a.ceilings[modelID]
}

// reserved returns the global reserved byte count.
func (a *Admission) reserved() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.reservedBytes
}
