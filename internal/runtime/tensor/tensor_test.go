package tensor

import "testing"

func equalI64(a, b []int64) bool {
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

func equalF32(a, b []float32, tol float32) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		d := a[i] - b[i]
		if d < 0 {
			d = -d
		}

		if d > tol {
			return false
		}
	}

	return true
}

func TestNewValidatesLength(t *testing.T) {
	if _, err := New([]float32{1, 2, 3}, []int64{2, 2}); err == nil {
		t.Fatalf("expected error for mismatched length")
	}
}

func TestZerosShape(t *testing.T) {
	x, err := Zeros([]int64{2, 3, 4})
	if err != nil {
		t.Fatalf("zeros: %v", err)
	}

	if got := x.Shape(); !equalI64(got, []int64{2, 3, 4}) {
		t.Fatalf("shape = %v, want [2 3 4]", got)
	}

	if x.ElemCount() != 24 {
		t.Fatalf("elem count = %d, want 24", x.ElemCount())
	}
}

func TestAtAndSet(t *testing.T) {
	x, _ := Zeros([]int64{2, 2})

	if err := x.Set(7, 1, 0); err != nil {
		t.Fatalf("set: %v", err)
	}

	v, err := x.At(1, 0)
	if err != nil {
		t.Fatalf("at: %v", err)
	}

	if v != 7 {
		t.Fatalf("at(1,0) = %v, want 7", v)
	}

	if v, _ := x.At(0, 0); v != 0 {
		t.Fatalf("at(0,0) = %v, want 0", v)
	}
}

func TestNarrow(t *testing.T) {
	x, _ := New([]float32{1, 2, 3, 4, 5, 6}, []int64{3, 2})

	y, err := x.Narrow(0, 1, 2)
	if err != nil {
		t.Fatalf("narrow: %v", err)
	}

	if got := y.Shape(); !equalI64(got, []int64{2, 2}) {
		t.Fatalf("shape = %v, want [2 2]", got)
	}

	if got := y.Data(); !equalF32(got, []float32{3, 4, 5, 6}, 0) {
		t.Fatalf("data = %v", got)
	}
}

func TestNarrowOutOfRange(t *testing.T) {
	x, _ := Zeros([]int64{4})

	if _, err := x.Narrow(0, 2, 4); err == nil {
		t.Fatalf("expected out-of-range error")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	x, _ := New([]float32{1, 2}, []int64{2})
	y := x.Clone()

	if err := y.Set(99, 0); err != nil {
		t.Fatalf("set: %v", err)
	}

	if v, _ := x.At(0); v != 1 {
		t.Fatalf("clone mutated original: x[0] = %v", v)
	}
}
