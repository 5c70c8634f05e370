// Package fourier implements the 2-D FFT-based smoothing convolution used
// to denoise dense windows before peak picking.
package fourier

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/example/diaselect/internal/runtime/tensor"
)

// Smoother convolves (scan, cycle) slices of a dense window against a
// fixed kernel. The kernel's Fourier transform is computed once per
// Smoother instance and reused across every slice passed to SmoothA0 or
// SmoothA1.
type Smoother struct {
	s, c      int
	shiftRow  int
	shiftCol  int
	kernelFFT [][]complex128
}

// New builds a Smoother for window dimensions (s, c), both of which must
// be even. kernel must fit within (s, c).
func New(kernel [][]float64, s, c int) (*Smoother, error) {
	if s <= 0 || c <= 0 || s%2 != 0 || c%2 != 0 {
		return nil, fmt.Errorf("fourier: dimensions must be positive and even, got (%d, %d)", s, c)
	}

	if len(kernel) == 0 || len(kernel[0]) == 0 {
		return nil, errors.New("fourier: empty kernel")
	}

	ks, kc := len(kernel), len(kernel[0])
	if ks > s || kc > c {
		return nil, fmt.Errorf("fourier: kernel %dx%d does not fit window %dx%d", ks, kc, s, c)
	}

	padded := make([][]float64, s)
	for i := range padded {
		padded[i] = make([]float64, c)
	}

	for i := 0; i < ks; i++ {
		copy(padded[i][:kc], kernel[i])
	}

	return &Smoother{
		s:         s,
		c:         c,
		shiftRow:  ks / 2,
		shiftCol:  kc / 2,
		kernelFFT: fft2(padded, s, c),
	}, nil
}

// SmoothA0 smooths every (p, o) (scan, cycle) slice of channel 0 of window
// (shape (2, P, O, S, C)) independently, without summing the observation
// axis. Returns a (P, O, S, C) float32 tensor.
func (sm *Smoother) SmoothA0(window *tensor.Tensor) (*tensor.Tensor, error) {
	shape := window.Shape()
	if err := sm.validateShape(shape); err != nil {
		return nil, err
	}

	p64, o64, s64, c64 := shape[1], shape[2], shape[3], shape[4]
	out, err := tensor.Zeros([]int64{p64, o64, s64, c64})
	if err != nil {
		return nil, err
	}

	data := window.RawData()
	outData := out.MutableData()
	strides := window.Strides()
	outStrides := out.Strides()

	p, o, s, c := int(p64), int(o64), int(s64), int(c64)

	for pi := 0; pi < p; pi++ {
		for oi := 0; oi < o; oi++ {
			slice := extractSlice(data, strides, 0, pi, oi, s, c)
			smoothed := sm.smoothSlice(slice)
			writeSlice(outData, outStrides, pi, oi, smoothed)
		}
	}

	return out, nil
}

// SmoothA1 is SmoothA0 followed by a sum over the observation axis,
// returning a (P, S, C) float32 tensor.
func (sm *Smoother) SmoothA1(window *tensor.Tensor) (*tensor.Tensor, error) {
	shape := window.Shape()
	if err := sm.validateShape(shape); err != nil {
		return nil, err
	}

	p64, o64, s64, c64 := shape[1], shape[2], shape[3], shape[4]
	out, err := tensor.Zeros([]int64{p64, s64, c64})
	if err != nil {
		return nil, err
	}

	data := window.RawData()
	strides := window.Strides()
	outData := out.MutableData()
	outStrides := out.Strides()

	p, o, s, c := int(p64), int(o64), int(s64), int(c64)

	for pi := 0; pi < p; pi++ {
		acc := make([][]float64, s)
		for i := range acc {
			acc[i] = make([]float64, c)
		}

		for oi := 0; oi < o; oi++ {
			slice := extractSlice(data, strides, 0, pi, oi, s, c)
			smoothed := sm.smoothSlice(slice)

			for i := 0; i < s; i++ {
				for j := 0; j < c; j++ {
					acc[i][j] += smoothed[i][j]
				}
			}
		}

		for i := 0; i < s; i++ {
			for j := 0; j < c; j++ {
				outData[int64(pi)*outStrides[0]+int64(i)*outStrides[1]+int64(j)*outStrides[2]] = float32(acc[i][j])
			}
		}
	}

	return out, nil
}

func (sm *Smoother) validateShape(shape []int64) error {
	if len(shape) != 5 {
		return fmt.Errorf("fourier: window must be rank 5, got %d", len(shape))
	}

	if int(shape[3]) != sm.s || int(shape[4]) != sm.c {
		return fmt.Errorf("fourier: window (S,C)=(%d,%d) does not match smoother (%d,%d)", shape[3], shape[4], sm.s, sm.c)
	}

	return nil
}

func (sm *Smoother) smoothSlice(slice [][]float64) [][]float64 {
	spec := fft2(slice, sm.s, sm.c)

	for i := range spec {
		for j := range spec[i] {
			spec[i][j] *= sm.kernelFFT[i][j]
		}
	}

	result := ifft2(spec, sm.s, sm.c)

	return rollShift2D(result, sm.s, sm.c, sm.shiftRow, sm.shiftCol)
}

func extractSlice(data []float32, strides []int64, ch, p, o, s, c int) [][]float64 {
	out := make([][]float64, s)

	base := int64(ch)*strides[0] + int64(p)*strides[1] + int64(o)*strides[2]

	for i := 0; i < s; i++ {
		out[i] = make([]float64, c)
		row := base + int64(i)*strides[3]

		for j := 0; j < c; j++ {
			out[i][j] = float64(data[row+int64(j)*strides[4]])
		}
	}

	return out
}

func writeSlice(outData []float32, outStrides []int64, p, o int, grid [][]float64) {
	base := int64(p)*outStrides[0] + int64(o)*outStrides[1]

	for i, row := range grid {
		rowBase := base + int64(i)*outStrides[2]

		for j, v := range row {
			outData[rowBase+int64(j)*outStrides[3]] = float32(v)
		}
	}
}

// rollShift2D circularly shifts grid so that out[i][j] = grid[(i+dr)%rows][(j+dc)%cols].
func rollShift2D(grid [][]float64, rows, cols, dr, dc int) [][]float64 {
	out := make([][]float64, rows)

	for i := 0; i < rows; i++ {
		out[i] = make([]float64, cols)
		si := (i + dr) % rows

		for j := 0; j < cols; j++ {
			sj := (j + dc) % cols
			out[i][j] = grid[si][sj]
		}
	}

	return out
}

func fft2(real2d [][]float64, rows, cols int) [][]complex128 {
	rowFFT := fourier.NewCmplxFFT(cols)
	colFFT := fourier.NewCmplxFFT(rows)

	tmp := make([][]complex128, rows)

	in := make([]complex128, cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			in[j] = complex(real2d[i][j], 0)
		}

		tmp[i] = rowFFT.Coefficients(nil, in)
	}

	out := make([][]complex128, rows)
	for i := range out {
		out[i] = make([]complex128, cols)
	}

	col := make([]complex128, rows)

	for j := 0; j < cols; j++ {
		for i := 0; i < rows; i++ {
			col[i] = tmp[i][j]
		}

		res := colFFT.Coefficients(nil, col)

		for i := 0; i < rows; i++ {
			out[i][j] = res[i]
		}
	}

	return out
}

func ifft2(spec [][]complex128, rows, cols int) [][]float64 {
	rowFFT := fourier.NewCmplxFFT(cols)
	colFFT := fourier.NewCmplxFFT(rows)

	tmp := make([][]complex128, rows)
	for i := range tmp {
		tmp[i] = make([]complex128, cols)
	}

	col := make([]complex128, rows)

	for j := 0; j < cols; j++ {
		for i := 0; i < rows; i++ {
			col[i] = spec[i][j]
		}

		res := colFFT.Sequence(nil, col)

		for i := 0; i < rows; i++ {
			tmp[i][j] = res[i]
		}
	}

	out := make([][]float64, rows)

	for i := 0; i < rows; i++ {
		res := rowFFT.Sequence(nil, tmp[i])
		out[i] = make([]float64, cols)

		for j := 0; j < cols; j++ {
			out[i][j] = real(res[j])
		}
	}

	return out
}
