package peak

import (
	"math"
	"testing"
)

func grid(rows, cols int) [][]float64 {
	g := make([][]float64, rows)
	for i := range g {
		g[i] = make([]float64, cols)
	}

	return g
}

func TestFindPeaksSingleApex(t *testing.T) {
	M := grid(5, 5)
	M[2][2] = 10

	peaks := FindPeaks(M, 3, 0.5)
	if len(peaks) != 1 {
		t.Fatalf("len(peaks) = %d, want 1", len(peaks))
	}

	if peaks[0].Scan != 2 || peaks[0].Cycle != 2 {
		t.Fatalf("peak = %+v, want (2,2)", peaks[0])
	}
}

func TestFindPeaksTwoResolvedApexes(t *testing.T) {
	M := grid(6, 6)
	M[1][1] = 10
	M[4][4] = 8

	peaks := FindPeaks(M, 3, 0.5)
	if len(peaks) != 2 {
		t.Fatalf("len(peaks) = %d, want 2", len(peaks))
	}

	if peaks[0].Intensity < peaks[1].Intensity {
		t.Fatalf("peaks not sorted descending: %+v", peaks)
	}
}

func TestFindPeaksPlateauPicksLexicographicMin(t *testing.T) {
	M := grid(4, 4)
	M[1][1] = 5
	M[1][2] = 5

	peaks := FindPeaks(M, 10, 0.1)
	if len(peaks) != 1 {
		t.Fatalf("len(peaks) = %d, want 1 (plateau collapses to one apex)", len(peaks))
	}

	if peaks[0].Scan != 1 || peaks[0].Cycle != 1 {
		t.Fatalf("peak = %+v, want (1,1) as the lexicographically smallest", peaks[0])
	}
}

func TestFindPeaksCenterFractionGate(t *testing.T) {
	M := grid(5, 5)
	M[0][0] = 10
	M[4][4] = 1

	peaks := FindPeaks(M, 10, 0.5)
	if len(peaks) != 1 {
		t.Fatalf("len(peaks) = %d, want 1 (second apex below center_fraction gate)", len(peaks))
	}
}

func TestFindPeaksTopN(t *testing.T) {
	M := grid(7, 1)
	for i := range M {
		M[i][0] = float64(i + 1) * 2
		if i%2 == 1 {
			M[i][0] = -1 // force alternating apex / valley on the single column
		}
	}

	peaks := FindPeaks(M, 2, 0)
	if len(peaks) > 2 {
		t.Fatalf("len(peaks) = %d, want <= 2", len(peaks))
	}
}

func TestFindPeaksNaNTreatedAsNegativeInfinity(t *testing.T) {
	M := grid(3, 3)
	M[1][1] = math.NaN()
	M[0][0] = 5

	peaks := FindPeaks(M, 10, 0)
	for _, p := range peaks {
		if p.Scan == 1 && p.Cycle == 1 {
			t.Fatalf("NaN cell must never be reported as a peak")
		}
	}
}

func TestBoundariesSymmetricDescent(t *testing.T) {
	M := grid(9, 9)
	for i := 0; i < 9; i++ {
		for j := 0; j < 9; j++ {
			di, dj := float64(i-4), float64(j-4)
			M[i][j] = 10 - di*di - dj*dj
		}
	}

	p := Peak{Scan: 4, Cycle: 4, Intensity: M[4][4]}
	b := Boundaries(M, p, 0.5, 0.9, 0, 10, 0, 10)

	if b.ScanStart >= b.ScanCenter || b.ScanCenter >= b.ScanStop {
		t.Fatalf("boundary not symmetric around apex: %+v", b)
	}

	// ScanStop is exclusive, so the apex sits ScanStop-1-ScanCenter cells
	// from the last covered scan.
	if b.ScanStop-1-b.ScanCenter != b.ScanCenter-b.ScanStart {
		t.Fatalf("boundary not symmetric: %+v", b)
	}
}

func TestBoundariesClampedToMinMax(t *testing.T) {
	M := grid(20, 20)
	for i := range M {
		for j := range M[i] {
			M[i][j] = 10
		}
	}

	p := Peak{Scan: 10, Cycle: 10, Intensity: 10}
	b := Boundaries(M, p, 0.5, 0.5, 6, 6, 3, 3)

	if b.ScanStop-b.ScanStart != 13 {
		t.Fatalf("scan half-width not clamped to min=6: %+v", b)
	}

	if b.CycleStop-b.CycleStart != 7 {
		t.Fatalf("cycle half-width not clamped to min=3: %+v", b)
	}
}
