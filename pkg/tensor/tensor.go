package tensor

import (
	"fmt"
)

// Tensor is a dense float32 tensor in row-major order.
// Shape never includes an implicit batch dimension; a single request's input
// for a model with signature [3,224,224] has exactly that shape, and batching
// prepends a new leading dimension.
type Tensor struct {
	Shape []int64   `json:"shape"`
	Data  []float32 `json:"data"`
}

// New constructs a tensor and validates that data length matches the shape.
func New(shape []int64, data []float32) (Tensor, error) {
	n := NumElements(shape)
	if n < 0 {
		return Tensor{}, fmt.Errorf("invalid shape %v", shape)
	}
	if int64(len(data)) != n {
		return Tensor{}, fmt.Errorf("shape %v wants %d elements, got %d", shape, n, len(data))
	}
	return Tensor{Shape: shape, Data: data}, nil
}

// Zeros returns a zero-filled tensor of the given shape.
func Zeros(shape []int64) Tensor {
	n := NumElements(shape)
	if n < 0 {
		n = 0
	}
	return Tensor{Shape: append([]int64(nil), shape...), Data: make([]float32, n)}
}

// NumElements returns the element count implied by shape, or -1 if any
// dimension is negative.
func NumElements(shape []int64) int64 {
	n := int64(1)
	for _, d := range shape {
		if d < 0 {
			return -1
		}
		n *= d
	}
	return n
}

// NumElements returns the number of elements in the tensor.
func (t Tensor) NumElements() int64 { return int64(len(t.Data)) }

// SizeBytes returns the memory footprint of the tensor payload.
func (t Tensor) SizeBytes() int64 { return int64(len(t.Data)) * 4 }

// IsZero reports whether the tensor is the zero value (no shape, no data).
func (t Tensor) IsZero() bool { return len(t.Shape) == 0 && len(t.Data) == 0 }

// ShapeEquals reports whether two shapes are identical.
func ShapeEquals(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Stack combines tensors of identical shape into one tensor with a new
// leading batch dimension. Stack of n tensors shaped [d...] yields [n,d...].
func Stack(ts []Tensor) (Tensor, error) {
	if len(ts) == 0 {
		return Tensor{}, fmt.Errorf("stack of zero tensors")
	}
	base := ts[0].Shape
	per := len(ts[0].Data)
	for i, t := range ts[1:] {
		if !ShapeEquals(t.Shape, base) {
			return Tensor{}, fmt.Errorf("stack: tensor %d shape %v != %v", i+1, t.Shape, base)
		}
	}
	shape := make([]int64, 0, len(base)+1)
	shape = append(shape, int64(len(ts)))
	shape = append(shape, base...)
	data := make([]float32, 0, per*len(ts))
	for _, t := range ts {
		data = append(data, t.Data...)
	}
	return Tensor{Shape: shape, Data: data}, nil
}

// Split slices a batched tensor back into n tensors along the leading
// dimension, which must equal n. The returned tensors share no storage with
// the input.
func Split(t Tensor, n int) ([]Tensor, error) {
	if len(t.Shape) == 0 {
		return nil, fmt.Errorf("split: scalar tensor")
	}
	if t.Shape[0] != int64(n) {
		return nil, fmt.Errorf("split: leading dim %d != %d", t.Shape[0], n)
	}
	if n == 0 {
		return nil, nil
	}
	inner := append([]int64(nil), t.Shape[1:]...)
	per := len(t.Data) / n
	out := make([]Tensor, n)
	for i := 0; i < n; i++ {
		data := make([]float32, per)
		copy(data, t.Data[i*per:(i+1)*per])
		out[i] = Tensor{Shape: append([]int64(nil), inner...), Data: data}
	}
	return out, nil
}
