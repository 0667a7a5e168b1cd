package serving

import (
	"context"
	"fmt"

	"enferd/pkg/tensor"
	"enferd/pkg/types"
)

// Backend kinds accepted on a model descriptor.
const (
	BackendONNX = "onnx"
	BackendSim  = "sim"
)

// Backend opens native execution sessions for one model. A backend is
// selected once at register time and fixed for the handle's lifetime.
type Backend interface {
	// NewSession creates one execution context. Contexts are expensive;
	// the pool creates exactly PoolSize of them up front and reuses them.
	NewSession() (Session, error)
	// Close releases backend-level resources after all sessions are closed.
	Close() error
}

// Session is one native execution context. It is never shared between two
// concurrent executions; the session pool enforces exclusive checkout.
type Session interface {
	// Execute runs one stacked batch and returns the stacked output. The
	// leading dimension of both tensors is the batch size.
	Execute(ctx context.Context, batch tensor.Tensor) (tensor.Tensor, error)
	Close() error
}

// openBackend selects the backend implementation for a model descriptor.
// An empty kind defaults to the ONNX runtime.
func openBackend(m types.Model) (Backend, error) {
	switch m.Backend {
	case "", BackendONNX:
		return newOnnxBackend(m)
	case BackendSim:
		return newSimBackend(m), nil
	default:
		return nil, fmt.Errorf("unsupported backend %q for model %s", m.Backend, m.ID)
	}
}
