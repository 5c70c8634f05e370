// Package window materializes dense (2, n_ions, n_obs, n_scans, n_cycles)
// tensors from the sparse acquisition index.
package window

import (
	"fmt"
	"sort"

	"github.com/example/diaselect/internal/rawindex"
	"github.com/example/diaselect/internal/runtime/tensor"
)

// Ion describes one extraction target: a tof bin range and the library
// m/z it was derived from (used for the ppm mass-error channel).
type Ion struct {
	TofStart, TofStop int
	LibraryMZ         float64
}

// Extract materializes a dense window over cycleLimits (an even-sized
// [start, stop) cycle-index range) and scanLimits, for every ion in ions,
// restricted to the positions selected by mask. Channel 0 is summed
// intensity; channel 1 is the intensity-weighted mean ppm mass error,
// defaulting to backgroundPPM where no intensity was observed.
func Extract(idx *rawindex.RawIndex, cycleLimits, scanLimits [2]int, ions []Ion, mask Mask, backgroundPPM float64) (*tensor.Tensor, error) {
	if cycleLimits[1] < cycleLimits[0] || scanLimits[1] < scanLimits[0] {
		return nil, fmt.Errorf("window: degenerate limits cycle=%v scan=%v", cycleLimits, scanLimits)
	}

	cycleLen := idx.CycleLength()
	S := scanLimits[1] - scanLimits[0]
	C := cycleLimits[1] - cycleLimits[0]
	nIons := len(ions)

	slots := obsSlots(mask, scanLimits[0], scanLimits[1])
	nObs := len(slots)
	if nObs == 0 {
		nObs = 1
	}

	win, err := tensor.Zeros([]int64{2, int64(nIons), int64(nObs), int64(S), int64(C)})
	if err != nil {
		return nil, err
	}

	strides := win.Strides()
	data := win.MutableData()

	// channel 1 defaults to the background ppm everywhere until a push
	// with nonzero intensity overwrites it.
	ch1Base := strides[0]
	for i := int64(0); i < strides[0]; i++ {
		data[ch1Base+i] = float32(backgroundPPM)
	}

	for oi, slot := range slots {
		for ci := 0; ci < C; ci++ {
			cycleIdx := cycleLimits[0] + ci
			rawFrame := cycleIdx*cycleLen + slot.subcycle*len(mask[slot.subcycle]) + slot.frame

			for sc := scanLimits[0]; sc < scanLimits[1]; sc++ {
				if sc >= len(mask[slot.subcycle][slot.frame]) || !mask[slot.subcycle][slot.frame][sc] {
					continue
				}

				push := idx.PushID(rawFrame, sc)
				tof, intensity := idx.PushTofHits(push)

				for ii, ion := range ions {
					lo := sort.Search(len(tof), func(k int) bool { return int(tof[k]) >= ion.TofStart })

					var localSum float64
					var localWeighted float64

					for k := lo; k < len(tof) && int(tof[k]) < ion.TofStop; k++ {
						val := float64(intensity[k])
						measuredMZ := idx.MZAtTof(tof[k])
						ppm := (measuredMZ - ion.LibraryMZ) / ion.LibraryMZ * 1e6

						localSum += val
						localWeighted += val * ppm
					}

					writeCell(data, strides, 0, ii, oi, sc-scanLimits[0], ci, float32(localSum))

					if localSum > 0 {
						writeCell(data, strides, 1, ii, oi, sc-scanLimits[0], ci, float32(localWeighted/localSum))
					} else {
						writeCell(data, strides, 1, ii, oi, sc-scanLimits[0], ci, float32(backgroundPPM))
					}
				}
			}
		}
	}

	return win, nil
}

func writeCell(data []float32, strides []int64, ch, ion, obs, scan, cycle int, v float32) {
	off := int64(ch)*strides[0] + int64(ion)*strides[1] + int64(obs)*strides[2] + int64(scan)*strides[3] + int64(cycle)*strides[4]
	data[off] = v
}
