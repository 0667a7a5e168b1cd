package tensor

import "testing"

func TestNewValidatesLength(t *testing.T) {
	if _, err := New([]int64{2, 3}, make([]float32, 6)); err != nil {
		t.Fatalf("valid tensor rejected: %v", err)
	}
	if _, err := New([]int64{2, 3}, make([]float32, 5)); err == nil {
		t.Fatalf("expected length mismatch error")
	}
	if _, err := New([]int64{-1, 3}, nil); err == nil {
		t.Fatalf("expected invalid shape error")
	}
}

func TestNumElements(t *testing.T) {
	if n := NumElements([]int64{2, 3, 4}); n != 24 {
		t.Fatalf("expected 24, got %d", n)
	}
	if n := NumElements(nil); n != 1 {
		t.Fatalf("scalar shape has 1 element, got %d", n)
	}
	if n := NumElements([]int64{2, -1}); n != -1 {
		t.Fatalf("negative dim must yield -1, got %d", n)
	}
}

func TestSizeBytes(t *testing.T) {
	z := Zeros([]int64{4})
	if z.SizeBytes() != 16 {
		t.Fatalf("expected 16 bytes for 4 float32s, got %d", z.SizeBytes())
	}
}

func TestShapeEquals(t *testing.T) {
	if !ShapeEquals([]int64{2, 3}, []int64{2, 3}) {
		t.Fatalf("equal shapes reported unequal")
	}
	if ShapeEquals([]int64{2, 3}, []int64{3, 2}) {
		t.Fatalf("unequal shapes reported equal")
	}
	if ShapeEquals([]int64{2}, []int64{2, 1}) {
		t.Fatalf("rank mismatch reported equal")
	}
}

func TestStackSplitRoundtrip(t *testing.T) {
	a := Tensor{Shape: []int64{2}, Data: []float32{1, 2}}
	b := Tensor{Shape: []int64{2}, Data: []float32{3, 4}}
	batch, err := Stack([]Tensor{a, b})
	if err != nil {
		t.Fatalf("stack: %v", err)
	}
	if !ShapeEquals(batch.Shape, []int64{2, 2}) {
		t.Fatalf("expected shape [2 2], got %v", batch.Shape)
	}
	parts, err := Split(batch, 2)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if parts[0].Data[1] != 2 || parts[1].Data[0] != 3 {
		t.Fatalf("roundtrip scrambled data: %v", parts)
	}
	// Split copies; mutating a part must not touch the batch.
	parts[0].Data[0] = 99
	if batch.Data[0] != 1 {
		t.Fatalf("split shares storage with the batch")
	}
}

func TestStackRejectsMixedShapes(t *testing.T) {
	a := Tensor{Shape: []int64{2}, Data: []float32{1, 2}}
	b := Tensor{Shape: []int64{3}, Data: []float32{1, 2, 3}}
	if _, err := Stack([]Tensor{a, b}); err == nil {
		t.Fatalf("expected shape mismatch error")
	}
	if _, err := Stack(nil); err == nil {
		t.Fatalf("expected error for empty stack")
	}
}

func TestSplitRejectsBadLeadingDim(t *testing.T) {
	batch := Zeros([]int64{2, 3})
	if _, err := Split(batch, 3); err == nil {
		t.Fatalf("expected leading dim mismatch error")
	}
	if _, err := Split(Tensor{}, 1); err == nil {
		t.Fatalf("expected error for scalar tensor")
	}
}
