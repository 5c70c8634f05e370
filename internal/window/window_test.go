package window

import (
	"testing"

	"github.com/example/diaselect/internal/rawindex"
)

// buildIndex constructs a minimal single-subcycle, single-frame-per-cycle
// MS1-only index with 3 scans and nCycles cycles, with one push carrying a
// single tof hit at the given (cycle, scan).
func buildIndex(nCycles, hitCycle, hitScan int, tofBin int32, intensity float32, tofMZ []float64) *rawindex.RawIndex {
	nScans := 3
	cycleRT := make([]float64, nCycles)
	for i := range cycleRT {
		cycleRT[i] = float64(i)
	}

	mobility := []float64{2, 1, 0}

	cycle := [][][]rawindex.CycleEntry{
		{
			{{-1, -1}, {-1, -1}, {-1, -1}},
		},
	}

	nPushes := nCycles * nScans
	pushIndptr := make([]int64, nPushes+1)

	var tofIndices []int32
	var intensityValues []float32

	for p := 0; p < nPushes; p++ {
		pushIndptr[p] = int64(len(tofIndices))

		cyc := p / nScans
		sc := p % nScans

		if cyc == hitCycle && sc == hitScan {
			tofIndices = append(tofIndices, tofBin)
			intensityValues = append(intensityValues, intensity)
		}
	}

	pushIndptr[nPushes] = int64(len(tofIndices))

	return rawindex.New(cycleRT, mobility, tofMZ, cycle, pushIndptr, tofIndices, intensityValues, false)
}

func TestExtractLocatesSingleHit(t *testing.T) {
	tofMZ := []float64{100, 200, 300}
	idx := buildIndex(4, 2, 1, 1, 50, tofMZ)

	mask := PrecursorMask(idx)
	ions := []Ion{{TofStart: 1, TofStop: 2, LibraryMZ: 200}}

	win, err := Extract(idx, [2]int{0, 4}, [2]int{0, 3}, ions, mask, 120)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	if got := win.Shape(); got[1] != 1 || got[3] != 3 || got[4] != 4 {
		t.Fatalf("shape = %v, want [2 1 * 3 4]", got)
	}

	v, err := win.At(0, 0, 0, 1, 2)
	if err != nil {
		t.Fatalf("at: %v", err)
	}

	if v != 50 {
		t.Fatalf("intensity at hit = %v, want 50", v)
	}

	ppm, _ := win.At(1, 0, 0, 1, 2)
	if ppm != 0 {
		t.Fatalf("ppm at hit = %v, want 0 (measured == library)", ppm)
	}

	bg, _ := win.At(1, 0, 0, 0, 0)
	if bg != 120 {
		t.Fatalf("background ppm = %v, want 120", bg)
	}
}

func TestExtractEmptyWhenNoHits(t *testing.T) {
	tofMZ := []float64{100, 200, 300}
	idx := buildIndex(2, 0, 0, 0, 10, tofMZ)

	mask := PrecursorMask(idx)
	ions := []Ion{{TofStart: 2, TofStop: 3, LibraryMZ: 300}}

	win, err := Extract(idx, [2]int{0, 2}, [2]int{0, 3}, ions, mask, 120)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	for i, v := range win.Data() {
		if i < len(win.Data())/2 && v != 0 {
			t.Fatalf("expected zero intensity everywhere, got %v at %d", v, i)
		}
	}
}
