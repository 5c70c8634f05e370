// Package iongroup builds the deduplicated, top-K-by-intensity ion set
// ("score group" ions) shared by a group's fragment and isotope windows.
package iongroup

import "sort"

// Map deduplicates and ranks an ion list. ownerIdx, mz, intensity, and
// cardinality are parallel arrays; abundance is indexed by owner.
//
// Ions with cardinality greater than maxCardinality are dropped. Each
// surviving ion's intensity is scaled by abundance[owner]/cardinality,
// ions with equal m/z are merged by summation, and the result is trimmed
// to the topK entries by weighted intensity, returned sorted by m/z
// ascending.
func Map(ownerIdx []int, mz []float64, intensity []float64, cardinality []int, abundance []float64, topK, maxCardinality int) (outMZ []float64, outIntensity []float64) {
	type entry struct {
		mz     float64
		weight float64
	}

	byMZ := map[float64]float64{}
	order := make([]float64, 0, len(mz))

	for i := range mz {
		if cardinality[i] > maxCardinality {
			continue
		}

		card := cardinality[i]
		if card <= 0 {
			card = 1
		}

		owner := ownerIdx[i]

		var ab float64 = 1
		if owner >= 0 && owner < len(abundance) {
			ab = abundance[owner]
		}

		weighted := intensity[i] * ab / float64(card)

		if _, ok := byMZ[mz[i]]; !ok {
			order = append(order, mz[i])
		}

		byMZ[mz[i]] += weighted
	}

	entries := make([]entry, 0, len(order))
	for _, m := range order {
		entries = append(entries, entry{mz: m, weight: byMZ[m]})
	}

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].weight > entries[j].weight })

	if topK >= 0 && len(entries) > topK {
		entries = entries[:topK]
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].mz < entries[j].mz })

	outMZ = make([]float64, len(entries))
	outIntensity = make([]float64, len(entries))

	for i, e := range entries {
		outMZ[i] = e.mz
		outIntensity[i] = e.weight
	}

	return outMZ, outIntensity
}
