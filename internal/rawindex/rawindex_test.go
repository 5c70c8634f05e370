package rawindex

import "testing"

func smallIndex() *RawIndex {
	cycleRT := []float64{0, 1, 2, 3, 4, 5, 6, 7}
	mobility := []float64{1.6, 1.4, 1.2, 1.0, 0.8, 0.6} // descending
	tofMZ := []float64{100, 200, 300, 400, 500}

	cycle := [][][]CycleEntry{
		{
			{{-1, -1}, {-1, -1}, {-1, -1}, {-1, -1}, {-1, -1}, {-1, -1}},
			{{400, 600}, {400, 600}, {400, 600}, {400, 600}, {400, 600}, {400, 600}},
		},
	}

	return New(cycleRT, mobility, tofMZ, cycle, nil, nil, nil, false)
}

func TestRTToCycleRangeEven(t *testing.T) {
	idx := smallIndex()

	start, stop := idx.RTToCycleRange(1, 4)
	if (stop-start)%2 != 0 {
		t.Fatalf("range [%d,%d) is not even-sized", start, stop)
	}
}

func TestRTToCycleRangeClips(t *testing.T) {
	idx := smallIndex()

	start, stop := idx.RTToCycleRange(-100, 100)
	if start != 0 || stop != idx.NumCycles() {
		t.Fatalf("range = [%d,%d), want full clip [0,%d)", start, stop, idx.NumCycles())
	}
}

func TestMobilityToScanRangeDescending(t *testing.T) {
	idx := smallIndex()

	// larger mobility -> smaller scan index
	start, stop := idx.MobilityToScanRange(1.0, 1.5)
	if start > stop {
		t.Fatalf("start %d > stop %d", start, stop)
	}

	if start != 1 {
		t.Fatalf("start = %d, want 1 (mobility 1.5 falls at scan 1)", start)
	}
}

func TestMZToTofNearest(t *testing.T) {
	idx := smallIndex()

	if got := idx.MZToTof(210); got != 1 {
		t.Fatalf("MZToTof(210) = %d, want 1", got)
	}
}

func TestTofRange(t *testing.T) {
	idx := smallIndex()

	start, stop := idx.TofRange(300, 1e6) // huge ppm tolerance spans everything
	if start != 0 || stop != len(idx.tofMZ) {
		t.Fatalf("range = [%d,%d), want full span", start, stop)
	}
}

func TestCycleOverlap(t *testing.T) {
	idx := smallIndex()

	ms1 := idx.Cycle(0, 0, 0)
	if !ms1.IsMS1() {
		t.Fatalf("expected MS1 entry")
	}

	ms2 := idx.Cycle(0, 1, 0)
	if !ms2.Overlaps(500, 700) {
		t.Fatalf("expected overlap with [500,700]")
	}

	if ms2.Overlaps(700, 900) {
		t.Fatalf("did not expect overlap with [700,900]")
	}
}
