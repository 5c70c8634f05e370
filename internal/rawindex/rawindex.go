// Package rawindex provides a read-only view over the 4-D sparse TIMS-TOF
// acquisition: coordinate conversions between rt/frame,
// mobility/scan, and m/z/tof, plus the compressed sparse push layout and
// the DIA acquisition cycle descriptor.
package rawindex

import "sort"

// CycleEntry is one (quad_mz_low, quad_mz_high) slot of the acquisition
// cycle descriptor. {-1,-1} denotes MS1 (no quadrupole selection).
type CycleEntry struct {
	QuadMzLow  float64
	QuadMzHigh float64
}

// IsMS1 reports whether the entry denotes an MS1 (unselected) acquisition.
func (c CycleEntry) IsMS1() bool { return c.QuadMzLow == -1 && c.QuadMzHigh == -1 }

// Overlaps reports whether the entry's quadrupole window overlaps
// [lo, hi].
func (c CycleEntry) Overlaps(lo, hi float64) bool {
	return c.QuadMzLow <= hi && c.QuadMzHigh >= lo
}

// RawIndex is a read-only, shared view over one run's sparse acquisition.
type RawIndex struct {
	// cycleRT holds the retention time, in seconds, of each cycle index
	// (the rt axis that candidate.FrameCenter etc. address).
	cycleRT []float64

	// mobilityValues holds the 1/K0 value of each scan index. The axis is
	// descending: larger mobility implies a smaller scan index.
	mobilityValues []float64

	// tofMZ is the per-tof-bin calibrated m/z, ascending.
	tofMZ []float64

	// cycle is the acquisition cycle descriptor, shape
	// [nSubcycles][nFramesPerSubcycle][nScans].
	cycle [][][]CycleEntry

	nSubcycles         int
	nFramesPerSubcycle int
	nScans             int

	// pushIndptr, tofIndices, intensityValues form the CSR-like sparse
	// push layout: push p's tof hits are
	// tofIndices[pushIndptr[p]:pushIndptr[p+1]] with matching
	// intensityValues.
	pushIndptr      []int64
	tofIndices      []int32
	intensityValues []float32

	zerothFrame bool
}

// New builds a RawIndex from its constituent arrays. All slices are
// retained by reference; callers must not mutate them afterward.
func New(
	cycleRT []float64,
	mobilityValues []float64,
	tofMZ []float64,
	cycle [][][]CycleEntry,
	pushIndptr []int64,
	tofIndices []int32,
	intensityValues []float32,
	zerothFrame bool,
) *RawIndex {
	nSubcycles := len(cycle)
	nFramesPerSubcycle := 0
	nScans := len(mobilityValues)

	if nSubcycles > 0 {
		nFramesPerSubcycle = len(cycle[0])
	}

	return &RawIndex{
		cycleRT:            cycleRT,
		mobilityValues:     mobilityValues,
		tofMZ:               tofMZ,
		cycle:              cycle,
		nSubcycles:         nSubcycles,
		nFramesPerSubcycle: nFramesPerSubcycle,
		nScans:             nScans,
		pushIndptr:         pushIndptr,
		tofIndices:         tofIndices,
		intensityValues:    intensityValues,
		zerothFrame:        zerothFrame,
	}
}

// CycleLength returns the number of raw frames in one full DIA acquisition
// cycle (nSubcycles * nFramesPerSubcycle).
func (r *RawIndex) CycleLength() int { return r.nSubcycles * r.nFramesPerSubcycle }

// NumCycles returns the number of cycle (rt-axis) positions in the run.
func (r *RawIndex) NumCycles() int { return len(r.cycleRT) }

// NumScans returns the number of scans per frame.
func (r *RawIndex) NumScans() int { return r.nScans }

// ZerothFrame reports whether push index 0 belongs to an ignored
// calibration frame.
func (r *RawIndex) ZerothFrame() bool { return r.zerothFrame }

// Cycle returns the cycle descriptor entry at (subcycle, frameInSubcycle,
// scan).
func (r *RawIndex) Cycle(subcycle, frameInSubcycle, scan int) CycleEntry {
	return r.cycle[subcycle][frameInSubcycle][scan]
}

// NSubcycles and NFramesPerSubcycle expose the cycle descriptor's shape.
func (r *RawIndex) NSubcycles() int         { return r.nSubcycles }
func (r *RawIndex) NFramesPerSubcycle() int { return r.nFramesPerSubcycle }

// RTToCycleRange converts an rt range to a [start, stop) cycle-index
// range, clipped to the run's bounds, with stop-start forced even by
// expanding by one cycle if the natural range is odd.
func (r *RawIndex) RTToCycleRange(rtLo, rtHi float64) (start, stop int) {
	start = sort.SearchFloat64s(r.cycleRT, rtLo)
	stop = sort.SearchFloat64s(r.cycleRT, rtHi)

	if stop < start {
		stop = start
	}

	start = clip(start, 0, len(r.cycleRT))
	stop = clip(stop, 0, len(r.cycleRT))

	if (stop-start)%2 != 0 {
		if stop < len(r.cycleRT) {
			stop++
		} else if start > 0 {
			start--
		}
	}

	return start, stop
}

// MobilityToScanRange converts a mobility range to a [start, stop) scan
// index range. The mobility axis is descending, so larger mobility values
// map to smaller scan indices; the returned range is still start <= stop
// in scan-index order.
func (r *RawIndex) MobilityToScanRange(mobLo, mobHi float64) (start, stop int) {
	n := len(r.mobilityValues)

	// mobilityValues is sorted descending; binary-search it with a
	// reversed comparator.
	idxOf := func(v float64) int {
		// first scan whose mobility is <= v
		lo, hi := 0, n
		for lo < hi {
			mid := (lo + hi) / 2
			if r.mobilityValues[mid] > v {
				lo = mid + 1
			} else {
				hi = mid
			}
		}

		return lo
	}

	start = idxOf(mobHi)
	stop = idxOf(mobLo)

	if stop < start {
		stop = start
	}

	return clip(start, 0, n), clip(stop, 0, n)
}

// MZToTof returns the tof bin whose calibrated m/z is closest to mz, via
// binary search over the ascending calibration curve.
func (r *RawIndex) MZToTof(mz float64) int {
	i := sort.SearchFloat64s(r.tofMZ, mz)

	if i >= len(r.tofMZ) {
		return len(r.tofMZ) - 1
	}

	if i > 0 && mz-r.tofMZ[i-1] < r.tofMZ[i]-mz {
		return i - 1
	}

	return i
}

// TofRange returns the inclusive-exclusive tof bin range covering
// mz * (1 ± ppm*1e-6).
func (r *RawIndex) TofRange(mz, ppm float64) (start, stop int) {
	delta := mz * ppm * 1e-6
	start = r.MZToTof(mz - delta)
	stop = r.MZToTof(mz+delta) + 1

	if stop < start {
		stop = start
	}

	return clip(start, 0, len(r.tofMZ)), clip(stop, 0, len(r.tofMZ))
}

// TofRanges returns the tof range for every entry in mzs, applying the
// same ppm tolerance to each.
func (r *RawIndex) TofRanges(mzs []float64, ppm float64) [][2]int {
	out := make([][2]int, len(mzs))

	for i, mz := range mzs {
		start, stop := r.TofRange(mz, ppm)
		out[i] = [2]int{start, stop}
	}

	return out
}

// MZAtTof returns the calibrated m/z of a tof bin.
func (r *RawIndex) MZAtTof(tof int32) float64 {
	if tof < 0 || int(tof) >= len(r.tofMZ) {
		return 0
	}

	return r.tofMZ[tof]
}

// PushID returns the linear push index for a given absolute raw frame and
// scan, accounting for the zeroth-frame offset.
func (r *RawIndex) PushID(rawFrame, scan int) int64 {
	f := rawFrame
	if r.zerothFrame {
		f++
	}

	return int64(f)*int64(r.nScans) + int64(scan)
}

// PushTofHits returns the tof-index and intensity slices for push p.
func (r *RawIndex) PushTofHits(p int64) (tof []int32, intensity []float32) {
	if p < 0 || p+1 >= int64(len(r.pushIndptr)) {
		return nil, nil
	}

	a, b := r.pushIndptr[p], r.pushIndptr[p+1]

	return r.tofIndices[a:b], r.intensityValues[a:b]
}

func clip(v, lo, hi int) int {
	if v < lo {
		return lo
	}

	if v > hi {
		return hi
	}

	return v
}
