package serving

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"enferd/pkg/tensor"
	"enferd/pkg/types"
)

// simModel returns a descriptor for the deterministic sim backend: input
// shape [2], output shape [1], output value = mean of the input.
func simModel(id string) types.Model {
	return types.Model{
		ID:          id,
		Path:        id + ".onnx",
		Backend:     BackendSim,
		InputShape:  []int64{2},
		OutputShape: []int64{1},
	}
}

func newTestEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	cfg.Logger = zerolog.Nop()
	e := New(cfg)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func input2(a, b float32) tensor.Tensor {
	return tensor.Tensor{Shape: []int64{2}, Data: []float32{a, b}}
}

// failBackend always errors at execute time.
type failBackend struct{}

func (failBackend) NewSession() (Session, error) { return failSession{}, nil }
func (failBackend) Close() error                 { return nil }

type failSession struct{}

func (failSession) Execute(context.Context, tensor.Tensor) (tensor.Tensor, error) {
	return tensor.Tensor{}, errors.New("native kernel fault")
}
func (failSession) Close() error { return nil }

// blockingBackend holds executions until release is closed, so tests can pin
// a session lease in the checked-out state.
type blockingBackend struct {
	release chan struct{}
	model   types.Model
}

func newBlockingBackend(m types.Model) *blockingBackend {
	return &blockingBackend{release: make(chan struct{}), model: m}
}

func (b *blockingBackend) NewSession() (Session, error) {
	return &blockingSession{backend: b}, nil
}
func (b *blockingBackend) Close() error { return nil }

type blockingSession struct {
	backend *blockingBackend
	mu      sync.Mutex
	closed  bool
}

func (s *blockingSession) Execute(ctx context.Context, batch tensor.Tensor) (tensor.Tensor, error) {
	<-s.backend.release
	n := int(batch.Shape[0])
	out := tensor.Zeros(append([]int64{int64(n)}, s.backend.model.OutputShape...))
	return out, nil
}

func (s *blockingSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", msg)
}
