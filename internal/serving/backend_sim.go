package serving

import (
	"context"
	"time"

	"enferd/pkg/tensor"
	"enferd/pkg/types"
)

// simBackend mimics native execution with a small sleep that grows sublinearly
// with batch size, the way real accelerators behave. It needs no artifact and
// is used for tests and model-free runs.
type simBackend struct {
	model       types.Model
	baseLatency time.Duration
}

func newSimBackend(m types.Model) Backend {
	return &simBackend{model: m, baseLatency: 2 * time.Millisecond}
}

func (b *simBackend) NewSession() (Session, error) {
	return &simSession{backend: b}, nil
}

func (b *simBackend) Close() error { return nil }

type simSession struct {
	backend *simBackend
	closed  bool
}

// Execute produces an output batch shaped [n, outputShape...] where each
// element is the mean of the corresponding input item. Deterministic so tests
// can assert on values.
func (s *simSession) Execute(ctx context.Context, batch tensor.Tensor) (tensor.Tensor, error) {
	n := int(batch.Shape[0])
	latency := s.backend.baseLatency + time.Duration(n)*500*time.Microsecond
	select {
	case <-time.After(latency):
	case <-ctx.Done():
		// Mid-batch cancellation is not supported by real runtimes; finish
		// the work anyway so every member still gets a result.
	}

	outShape := s.backend.model.OutputShape
	perOut := int(tensor.NumElements(outShape))
	perIn := len(batch.Data) / n
	out := tensor.Zeros(append([]int64{int64(n)}, outShape...))
	for i := 0; i < n; i++ {
		var sum float32
		for _, v := range batch.Data[i*perIn : (i+1)*perIn] {
			sum += v
		}
		mean := sum / float32(perIn)
		for j := 0; j < perOut; j++ {
			out.Data[i*perOut+j] = mean
		}
	}
	return out, nil
}

func (s *simSession) Close() error {
	s.closed = true
	return nil
}
