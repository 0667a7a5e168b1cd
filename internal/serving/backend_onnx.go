package serving

import (
	"context"
	"fmt"

	ort "github.com/yalue/onnxruntime_go"

	"enferd/pkg/tensor"
	"enferd/pkg/types"
)

// onnxBackend opens ONNX Runtime sessions for one model artifact. The shared
// runtime environment must be initialized by the caller before the first
// Register (see cmd/enferd); this backend only manages per-model sessions.
type onnxBackend struct {
	model      types.Model
	inputName  string
	outputName string
}

func newOnnxBackend(m types.Model) (Backend, error) {
	if !ort.IsInitialized() {
		return nil, fmt.Errorf("onnxruntime environment not initialized")
	}
	in, out := m.InputName, m.OutputName
	if in == "" {
		in = "input"
	}
	if out == "" {
		out = "output"
	}
	return &onnxBackend{model: m, inputName: in, outputName: out}, nil
}

func (b *onnxBackend) NewSession() (Session, error) {
	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, err
	}
	defer opts.Destroy()
	sess, err := ort.NewDynamicAdvancedSession(
		b.model.Path,
		[]string{b.inputName},
		[]string{b.outputName},
		opts,
	)
	if err != nil {
		return nil, fmt.Errorf("open session for %s: %w", b.model.ID, err)
	}
	return &onnxSession{sess: sess}, nil
}

func (b *onnxBackend) Close() error { return nil }

type onnxSession struct {
	sess *ort.DynamicAdvancedSession
}

// Execute runs the stacked batch through the native session. ONNX Runtime
// cannot cancel a run in progress, so ctx is only consulted before the call.
func (s *onnxSession) Execute(ctx context.Context, batch tensor.Tensor) (tensor.Tensor, error) {
	if err := ctx.Err(); err != nil {
		return tensor.Tensor{}, err
	}
	in, err := ort.NewTensor(ort.NewShape(batch.Shape...), batch.Data)
	if err != nil {
		return tensor.Tensor{}, err
	}
	defer in.Destroy()

	outputs := []ort.Value{nil}
	if err := s.sess.Run([]ort.Value{in}, outputs); err != nil {
		return tensor.Tensor{}, err
	}
	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		if outputs[0] != nil {
			outputs[0].Destroy()
		}
		return tensor.Tensor{}, fmt.Errorf("unexpected output tensor type")
	}
	defer out.Destroy()

	shape := append([]int64(nil), out.GetShape()...)
	data := append([]float32(nil), out.GetData()...)
	return tensor.Tensor{Shape: shape, Data: data}, nil
}

func (s *onnxSession) Close() error { return s.sess.Destroy() }
