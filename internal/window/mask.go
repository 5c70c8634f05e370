package window

import "github.com/example/diaselect/internal/rawindex"

// Mask selects which (subcycle, frameInSubcycle, scan) positions within
// the DIA cycle template contribute to an extraction.
type Mask [][][]bool

// PrecursorMask keeps only cycle entries marked MS1 (no quadrupole
// selection).
func PrecursorMask(idx *rawindex.RawIndex) Mask {
	return buildMask(idx, func(e rawindex.CycleEntry) bool { return e.IsMS1() })
}

// FragmentMask keeps cycle entries whose quadrupole window overlaps
// [lo, hi].
func FragmentMask(idx *rawindex.RawIndex, lo, hi float64) Mask {
	return buildMask(idx, func(e rawindex.CycleEntry) bool { return e.Overlaps(lo, hi) })
}

func buildMask(idx *rawindex.RawIndex, keep func(rawindex.CycleEntry) bool) Mask {
	ns, nf, nscan := idx.NSubcycles(), idx.NFramesPerSubcycle(), idx.NumScans()

	m := make(Mask, ns)
	for si := 0; si < ns; si++ {
		m[si] = make([][]bool, nf)

		for fi := 0; fi < nf; fi++ {
			m[si][fi] = make([]bool, nscan)

			for sc := 0; sc < nscan; sc++ {
				m[si][fi][sc] = keep(idx.Cycle(si, fi, sc))
			}
		}
	}

	return m
}

// obsSlot is one distinct "absolute precursor-cycle" template position.
type obsSlot struct {
	subcycle int
	frame    int
}

// obsSlots returns the template positions with at least one selected scan
// in [scanStart, scanStop), in a deterministic (subcycle, frame) order.
func obsSlots(m Mask, scanStart, scanStop int) []obsSlot {
	var out []obsSlot

	for si := range m {
		for fi := range m[si] {
			row := m[si][fi]

			selected := false
			for sc := scanStart; sc < scanStop && sc < len(row); sc++ {
				if row[sc] {
					selected = true
					break
				}
			}

			if selected {
				out = append(out, obsSlot{subcycle: si, frame: fi})
			}
		}
	}

	return out
}
