// Package tensor is a small dense, row-major (last axis fastest) float32
// tensor used to back the engine's dense windows and score maps.
package tensor

import (
	"errors"
	"fmt"
)

// Tensor is a dense, row-major float32 tensor of arbitrary rank.
type Tensor struct {
	shape []int64
	data  []float32
}

// New creates a tensor from data and shape, copying both.
func New(data []float32, shape []int64) (*Tensor, error) {
	total, err := shapeElemCount(shape)
	if err != nil {
		return nil, err
	}

	if len(data) != total {
		return nil, fmt.Errorf("tensor: data length %d does not match shape %v (%d elements)", len(data), shape, total)
	}

	return &Tensor{shape: append([]int64(nil), shape...), data: append([]float32(nil), data...)}, nil
}

// Zeros creates a zero-initialized tensor.
func Zeros(shape []int64) (*Tensor, error) {
	total, err := shapeElemCount(shape)
	if err != nil {
		return nil, err
	}

	return &Tensor{shape: append([]int64(nil), shape...), data: make([]float32, total)}, nil
}

// Full creates a tensor filled with value.
func Full(shape []int64, value float32) (*Tensor, error) {
	t, err := Zeros(shape)
	if err != nil {
		return nil, err
	}

	for i := range t.data {
		t.data[i] = value
	}

	return t, nil
}

// Shape returns a copy of the tensor's dimensions.
func (t *Tensor) Shape() []int64 {
	if t == nil {
		return nil
	}

	return append([]int64(nil), t.shape...)
}

// Dim returns the size of dimension d.
func (t *Tensor) Dim(d int) int64 {
	if t == nil || d < 0 || d >= len(t.shape) {
		return 0
	}

	return t.shape[d]
}

// Rank returns the number of dimensions.
func (t *Tensor) Rank() int {
	if t == nil {
		return 0
	}

	return len(t.shape)
}

// ElemCount returns the total number of elements.
func (t *Tensor) ElemCount() int {
	if t == nil {
		return 0
	}

	return len(t.data)
}

// Data returns a copy of the underlying values.
func (t *Tensor) Data() []float32 {
	if t == nil {
		return nil
	}

	return append([]float32(nil), t.data...)
}

// RawData returns the underlying data slice. Callers must treat it as
// read-only unless they hold sole ownership of the tensor.
func (t *Tensor) RawData() []float32 {
	if t == nil {
		return nil
	}

	return t.data
}

// MutableData returns the underlying data slice for in-place writes.
func (t *Tensor) MutableData() []float32 {
	if t == nil {
		return nil
	}

	return t.data
}

// Strides returns the row-major strides for the tensor's shape.
func (t *Tensor) Strides() []int64 {
	if t == nil {
		return nil
	}

	return computeStrides(t.shape)
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	if t == nil {
		return nil
	}

	dup, _ := New(t.data, t.shape)

	return dup
}

// At returns the element at coord, a fully-specified index into every
// dimension.
func (t *Tensor) At(coord ...int64) (float32, error) {
	off, err := t.offset(coord)
	if err != nil {
		return 0, err
	}

	return t.data[off], nil
}

// Set writes the element at coord.
func (t *Tensor) Set(value float32, coord ...int64) error {
	off, err := t.offset(coord)
	if err != nil {
		return err
	}

	t.data[off] = value

	return nil
}

func (t *Tensor) offset(coord []int64) (int64, error) {
	if t == nil {
		return 0, errors.New("tensor: index on nil tensor")
	}

	if len(coord) != len(t.shape) {
		return 0, fmt.Errorf("tensor: index rank %d does not match tensor rank %d", len(coord), len(t.shape))
	}

	strides := computeStrides(t.shape)

	var off int64
	for i, c := range coord {
		if c < 0 || c >= t.shape[i] {
			return 0, fmt.Errorf("tensor: index %d (%d) out of range for dim %d size %d", i, c, i, t.shape[i])
		}

		off += c * strides[i]
	}

	return off, nil
}

func shapeElemCount(shape []int64) (int, error) {
	total := 1

	for i, d := range shape {
		if d < 0 {
			return 0, fmt.Errorf("tensor: negative dimension %d at index %d", d, i)
		}

		total *= int(d)
	}

	return total, nil
}

func computeStrides(shape []int64) []int64 {
	strides := make([]int64, len(shape))

	acc := int64(1)
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = acc
		acc *= shape[i]
	}

	return strides
}

func coordToLinear(coord, strides []int64) int64 {
	var off int64
	for i, c := range coord {
		off += c * strides[i]
	}

	return off
}

func linearToCoord(linear int64, shape, strides []int64, coord []int64) {
	for i, s := range strides {
		if s == 0 {
			coord[i] = 0
			continue
		}

		coord[i] = (linear / s) % shape[i]
	}
}
