// Package peak finds local maxima in a 2-D score map and estimates
// symmetric (scan, cycle) boundaries around each.
package peak

import (
	"math"
	"sort"
)

// Peak is one candidate apex in (scan, cycle) coordinates.
type Peak struct {
	Scan, Cycle int
	Intensity   float64
}

// Boundary is a peak's symmetric bounding box.
type Boundary struct {
	ScanStart, ScanCenter, ScanStop    int
	CycleStart, CycleCenter, CycleStop int
}

// sanitize treats NaN/Inf as -Inf so such cells are never chosen as a peak.
func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return math.Inf(-1)
	}

	return v
}

// FindPeaks returns up to topN local maxima of M (shape [S][C]), sorted by
// intensity descending. A cell is a local maximum if it is >= all 8
// neighbors (out-of-bounds neighbors are treated as -Inf), with ties among
// equal-valued neighbors broken deterministically in favor of the
// lexicographically smaller (scan, cycle) position. Apexes below
// centerFraction * max(M) are discarded.
func FindPeaks(M [][]float64, topN int, centerFraction float64) []Peak {
	S := len(M)
	if S == 0 {
		return nil
	}

	C := len(M[0])

	maxV := math.Inf(-1)
	for i := 0; i < S; i++ {
		for j := 0; j < C; j++ {
			if v := sanitize(M[i][j]); v > maxV {
				maxV = v
			}
		}
	}

	if math.IsInf(maxV, -1) {
		return nil
	}

	threshold := centerFraction * maxV

	var peaks []Peak

	for i := 0; i < S; i++ {
		for j := 0; j < C; j++ {
			v := sanitize(M[i][j])
			if v < threshold {
				continue
			}

			if isLocalMax(M, S, C, i, j, v) {
				peaks = append(peaks, Peak{Scan: i, Cycle: j, Intensity: v})
			}
		}
	}

	sort.SliceStable(peaks, func(a, b int) bool {
		if peaks[a].Intensity != peaks[b].Intensity {
			return peaks[a].Intensity > peaks[b].Intensity
		}

		if peaks[a].Scan != peaks[b].Scan {
			return peaks[a].Scan < peaks[b].Scan
		}

		return peaks[a].Cycle < peaks[b].Cycle
	})

	if topN >= 0 && len(peaks) > topN {
		peaks = peaks[:topN]
	}

	return peaks
}

func isLocalMax(M [][]float64, S, C, i, j int, v float64) bool {
	for di := -1; di <= 1; di++ {
		for dj := -1; dj <= 1; dj++ {
			if di == 0 && dj == 0 {
				continue
			}

			ni, nj := i+di, j+dj

			if ni < 0 || ni >= S || nj < 0 || nj >= C {
				continue
			}

			nv := sanitize(M[ni][nj])

			if nv > v {
				return false
			}

			if nv == v && (ni < i || (ni == i && nj < j)) {
				return false
			}
		}
	}

	return true
}

// Boundaries computes p's symmetric (scan, cycle) bounding box: the
// boundary on each axis is the largest half-width δ such that every cell
// within δ of the apex along that axis is >= f * apex intensity, clamped
// to [minHW, maxHW].
func Boundaries(M [][]float64, p Peak, fScan, fCycle float64, minScan, maxScan, minCycle, maxCycle int) Boundary {
	S := len(M)

	scanRow := make([]float64, S)
	for i := 0; i < S; i++ {
		scanRow[i] = M[i][p.Cycle]
	}

	cycleRow := M[p.Scan]

	scanHW := symmetricHalfWidth(scanRow, p.Scan, fScan, p.Intensity, minScan, maxScan)
	cycleHW := symmetricHalfWidth(cycleRow, p.Cycle, fCycle, p.Intensity, minCycle, maxCycle)

	return Boundary{
		ScanStart:   p.Scan - scanHW,
		ScanCenter:  p.Scan,
		ScanStop:    p.Scan + scanHW + 1,
		CycleStart:  p.Cycle - cycleHW,
		CycleCenter: p.Cycle,
		CycleStop:   p.Cycle + cycleHW + 1,
	}
}

func symmetricHalfWidth(axis []float64, pos int, f, apex float64, minHW, maxHW int) int {
	hw := 0

	threshold := f * apex

	for d := 1; d <= maxHW; d++ {
		lo, hi := pos-d, pos+d
		if lo < 0 || hi >= len(axis) {
			break
		}

		v1, v2 := sanitize(axis[lo]), sanitize(axis[hi])
		if v1 < threshold || v2 < threshold {
			break
		}

		hw = d
	}

	if hw < minHW {
		hw = minHW
	}

	if hw > maxHW {
		hw = maxHW
	}

	return hw
}
