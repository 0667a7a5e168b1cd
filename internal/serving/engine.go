package serving

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"enferd/pkg/tensor"
	"enferd/pkg/types"
)

// ErrEngineClosed is returned for requests arriving after Close.
var ErrEngineClosed = errors.New("engine closed")

// Engine ties the registry, session pool, admission controller, assembler,
// and scheduler together behind the one logical operation the transport layer
// needs: Infer. Construction starts the scheduling loop; Close drains it.
type Engine struct {
	cfg Config

	// regMu serializes Register/Unregister/Close so model lifecycle state
	// (registry, pool, admission) changes as a unit per model id.
	regMu     sync.Mutex
	registry  *Registry
	pool      *SessionPool
	admission *Admission
	assembler *Assembler
	scheduler *Scheduler

	cancel  context.CancelFunc
	runDone chan struct{}
	closed  atomic.Bool

	admitted  atomic.Uint64
	rejected  atomic.Uint64
	startTime time.Time
}

// New constructs an Engine and starts its scheduling loop.
func New(cfg Config) *Engine {
	cfg.applyDefaults()
	e := &Engine{
		cfg:       cfg,
		registry:  NewRegistry(),
		pool:      NewSessionPool(),
		admission: NewAdmission(cfg.MemoryBudgetBytes),
		runDone:   make(chan struct{}),
		startTime: time.Now(),
	}
	e.assembler = NewAssembler(cfg.MaxBatchWait, e.admission)
	e.scheduler = NewScheduler(e.pool, e.assembler, cfg.SessionAcquireTimeout, cfg.Logger, cfg.Publisher)

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	go func() {
		e.scheduler.run(ctx)
		close(e.runDone)
	}()
	return e
}

// Register loads a model: selects its backend, creates the fixed session
// pool, and installs the immutable handle. Fails with a duplicate-model error
// on id collision and a load-failure error when the backend cannot open.
func (e *Engine) Register(m types.Model) error {
	return e.register(m, nil)
}

// register is the implementation; a non-nil backend bypasses selection so
// tests can inject fakes.
func (e *Engine) register(m types.Model, backend Backend) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}
	if len(m.InputShape) == 0 || len(m.OutputShape) == 0 {
		return loadFailureError{id: m.ID, err: errors.New("missing tensor shape signature")}
	}
	e.regMu.Lock()
	defer e.regMu.Unlock()
	// Duplicate ids are rejected before any state exists for them, so a failed
	// Register never disturbs the model already serving under the id.
	if _, err := e.registry.Lookup(m.ID); err == nil {
		return duplicateModelError{id: m.ID}
	}
	maxBatch := m.MaxBatchSize
	if maxBatch <= 0 {
		maxBatch = e.cfg.DefaultMaxBatchSize
	}
	poolSize := m.SessionPoolSize
	if poolSize <= 0 {
		poolSize = e.cfg.DefaultSessionPoolSize
	}

	if backend == nil {
		var err error
		backend, err = openBackend(m)
		if err != nil {
			return loadFailureError{id: m.ID, err: err}
		}
	}
	sessions := make([]Session, 0, poolSize)
	for i := 0; i < poolSize; i++ {
		s, err := backend.NewSession()
		if err != nil {
			for _, prev := range sessions {
				_ = prev.Close()
			}
			_ = backend.Close()
			return loadFailureError{id: m.ID, err: err}
		}
		sessions = append(sessions, s)
	}

	h := &ModelHandle{
		ID:           m.ID,
		Model:        m,
		InputShape:   append([]int64(nil), m.InputShape...),
		OutputShape:  append([]int64(nil), m.OutputShape...),
		MaxBatchSize: maxBatch,
		PoolSize:     poolSize,
		backend:      backend,
	}
	e.pool.add(m.ID, sessions)
	e.admission.addModel(m.ID, e.cfg.QueueDepthCeiling)
	if err := e.registry.add(h); err != nil {
		e.admission.removeModel(m.ID)
		_ = e.pool.Retire(m.ID)
		_ = backend.Close()
		return err
	}

	e.cfg.Logger.Info().
		Str("model", m.ID).
		Int("max_batch", maxBatch).
		Int("pool_size", poolSize).
		Msg("model registered")
	e.cfg.Publisher.Publish(Event{Name: "model_registered", ModelID: m.ID, Fields: map[string]any{
		"max_batch": maxBatch,
		"pool_size": poolSize,
	}})
	return nil
}

// Unregister removes a model. It fails with a busy error while any session is
// leased; native resources are only released once the pool has confirmed zero
// active sessions, never before.
func (e *Engine) Unregister(id string) error {
	e.regMu.Lock()
	defer e.regMu.Unlock()
	if _, err := e.registry.Lookup(id); err != nil {
		return err
	}
	if err := e.pool.Retire(id); err != nil {
		return err
	}
	h, err := e.registry.remove(id)
	if err != nil {
		return err
	}
	e.assembler.failPending(id, unknownModelError{id: id})
	e.admission.removeModel(id)
	_ = h.backend.Close()

	e.cfg.Logger.Info().Str("model", id).Msg("model unregistered")
	e.cfg.Publisher.Publish(Event{Name: "model_unregistered", ModelID: id, Fields: map[string]any{}})
	return nil
}

// Lookup exposes registry lookups to callers that only need metadata.
func (e *Engine) Lookup(id string) (types.Model, error) {
	h, err := e.registry.Lookup(id)
	if err != nil {
		return types.Model{}, err
	}
	return h.Model, nil
}

// Infer is the one logical operation of the core: admit, enqueue, await.
// Deadline and cancellation arrive via ctx. An admitted request receives
// exactly one terminal signal; a rejected one fails synchronously here.
func (e *Engine) Infer(ctx context.Context, modelID string, input tensor.Tensor) (Result, error) {
	if e.closed.Load() {
		return Result{}, ErrEngineClosed
	}
	h, err := e.registry.Lookup(modelID)
	if err != nil {
		e.rejected.Add(1)
		rejectedTotal.WithLabelValues(modelID, "unknown_model").Inc()
		return Result{}, err
	}
	if !tensor.ShapeEquals(input.Shape, h.InputShape) {
		e.rejected.Add(1)
		rejectedTotal.WithLabelValues(modelID, "shape_mismatch").Inc()
		return Result{}, shapeMismatchError{id: modelID, want: h.InputShape, got: input.Shape}
	}
	if err := e.admission.Admit(modelID, input); err != nil {
		e.rejected.Add(1)
		rejectedTotal.WithLabelValues(modelID, "backpressure").Inc()
		return Result{}, err
	}
	e.admitted.Add(1)
	admittedTotal.WithLabelValues(modelID).Inc()

	pr := &pendingRequest{
		modelID:  modelID,
		input:    input,
		enqueued: time.Now(),
		ctx:      ctx,
		done:     make(chan outcome, 1),
	}
	e.assembler.Enqueue(h, pr)

	select {
	case out := <-pr.done:
		return out.res, out.err
	case <-ctx.Done():
		// If the request is still queued the assembler drops it on its next
		// sweep; if its batch already dispatched, execution runs to
		// completion and the buffered handle absorbs the unread result.
		e.assembler.signal()
		return Result{}, ctx.Err()
	}
}

// Ready reports whether the engine can serve at least one model.
func (e *Engine) Ready() bool {
	return !e.closed.Load() && e.registry.size() > 0
}

// ListModels returns descriptors for all registered models.
func (e *Engine) ListModels() []types.Model {
	return e.registry.list()
}

// Close stops the scheduling loop, fails requests still queued, and tears
// down all models. Safe to call once.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	e.cancel()
	<-e.runDone

	e.regMu.Lock()
	defer e.regMu.Unlock()
	for _, m := range e.registry.list() {
		e.assembler.failPending(m.ID, ErrEngineClosed)
		if err := e.pool.Retire(m.ID); err != nil {
			e.cfg.Logger.Warn().Str("model", m.ID).Err(err).Msg("retire on close")
			continue
		}
		if h, err := e.registry.remove(m.ID); err == nil {
			_ = h.backend.Close()
		}
		e.admission.removeModel(m.ID)
	}
	e.cfg.Logger.Info().Msg("engine closed")
	return nil
}
