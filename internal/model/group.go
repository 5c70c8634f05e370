package model

import (
	"fmt"
	"sort"

	"github.com/example/diaselect/internal/config"
)

// ElutionGroup is a set of precursors modeled as co-eluting: they share rt,
// mobility, and charge.
type ElutionGroup struct {
	Idx       uint32
	RT        float64
	Mobility  float64
	Charge    uint8
	Members   []Precursor
}

// ScoreGroup is a partition of an ElutionGroup scored as a single unit.
// Members is sorted by resolved m/z ascending.
type ScoreGroup struct {
	ElutionGroupIdx uint32
	Idx             uint32
	RT              float64
	Mobility        float64
	Charge          uint8
	Members         []Precursor
}

// BuildElutionGroups partitions precursors by ElutionGroupIdx, validates
// that every member of a group shares rt/mobility/charge on the configured
// columns, and returns groups ordered by ascending index.
func BuildElutionGroups(precursors []Precursor, rtColumn, mobilityColumn string) ([]ElutionGroup, error) {
	byIdx := map[uint32][]Precursor{}
	for _, p := range precursors {
		byIdx[p.ElutionGroupIdx] = append(byIdx[p.ElutionGroupIdx], p)
	}

	ids := make([]uint32, 0, len(byIdx))
	for id := range byIdx {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	groups := make([]ElutionGroup, 0, len(ids))

	for _, id := range ids {
		members := byIdx[id]

		rt, err := ResolveRT(members[0], rtColumn)
		if err != nil {
			return nil, err
		}

		mobility, err := ResolveMobility(members[0], mobilityColumn)
		if err != nil {
			return nil, err
		}

		charge := members[0].Charge

		for _, m := range members[1:] {
			mrt, err := ResolveRT(m, rtColumn)
			if err != nil {
				return nil, err
			}

			mmob, err := ResolveMobility(m, mobilityColumn)
			if err != nil {
				return nil, err
			}

			if mrt != rt || mmob != mobility || m.Charge != charge {
				return nil, &SchemaError{Reason: fmt.Sprintf(
					"elution group %d has precursors with divergent rt/mobility/charge", id)}
			}
		}

		groups = append(groups, ElutionGroup{Idx: id, RT: rt, Mobility: mobility, Charge: charge, Members: members})
	}

	return groups, nil
}

// BuildScoreGroups partitions an elution group's members into score groups
// per the configured policy: group-by-channel takes precedence
// over group-by-decoy, which takes precedence over ungrouped (one
// precursor per score group). Score-group ids are reassigned as
// consecutive integers starting at 0 within the elution group, per the
// ScoreGroup invariant.
func BuildScoreGroups(eg ElutionGroup, sel config.SelectionConfig) ([]ScoreGroup, error) {
	var keys []int
	keyOf := func(p Precursor) int {
		switch {
		case sel.GroupChannels:
			return int(p.Channel)
		case sel.GroupByDecoy:
			if p.Decoy {
				return 1
			}

			return 0
		default:
			return -1 // sentinel overridden below: one group per precursor
		}
	}

	buckets := map[int][]Precursor{}

	if sel.GroupChannels || sel.GroupByDecoy {
		for _, p := range eg.Members {
			k := keyOf(p)
			buckets[k] = append(buckets[k], p)
			keys = append(keys, k)
		}
	} else {
		for i, p := range eg.Members {
			buckets[i] = []Precursor{p}
			keys = append(keys, i)
		}
	}

	uniq := dedupInts(keys)
	sort.Ints(uniq)

	groups := make([]ScoreGroup, 0, len(uniq))

	for i, k := range uniq {
		members := append([]Precursor(nil), buckets[k]...)
		if err := sortByMZ(members, sel.MZColumn); err != nil {
			return nil, err
		}

		groups = append(groups, ScoreGroup{
			ElutionGroupIdx: eg.Idx,
			Idx:             uint32(i),
			RT:              eg.RT,
			Mobility:        eg.Mobility,
			Charge:          eg.Charge,
			Members:         members,
		})
	}

	return groups, nil
}

func dedupInts(xs []int) []int {
	seen := map[int]bool{}

	out := make([]int, 0, len(xs))
	for _, x := range xs {
		if seen[x] {
			continue
		}

		seen[x] = true
		out = append(out, x)
	}

	return out
}

// sortByMZ orders members by their resolved precursor m/z (per mzColumn)
// ascending, stably.
func sortByMZ(members []Precursor, mzColumn string) error {
	type keyed struct {
		p  Precursor
		mz float64
	}

	keyedMembers := make([]keyed, len(members))

	for i, p := range members {
		v, err := ResolvePrecursorMZ(p, mzColumn)
		if err != nil {
			return err
		}

		keyedMembers[i] = keyed{p: p, mz: v}
	}

	sort.SliceStable(keyedMembers, func(i, j int) bool { return keyedMembers[i].mz < keyedMembers[j].mz })

	for i, k := range keyedMembers {
		members[i] = k.p
	}

	return nil
}

// TrimmedIsotopeEnvelope returns, for each group member, the isotopes
// (k index and m/z) whose mean intensity across the group exceeds 0.1.
// intensities[k] is the mean of IsotopeIntensity[k] across members that
// have that isotope column. mzColumn selects the precursor m/z the isotope
// envelope is built around, matching the column used for the rest of the
// group's windows.
func TrimmedIsotopeEnvelope(members []Precursor, mzColumn string) (ownerIdx []int, mz []float64, intensity []float64, err error) {
	maxK := 0
	for _, m := range members {
		if len(m.IsotopeIntensity) > maxK {
			maxK = len(m.IsotopeIntensity)
		}
	}

	meanByK := make([]float64, maxK)

	for k := 0; k < maxK; k++ {
		var sum float64
		var n int

		for _, m := range members {
			if k < len(m.IsotopeIntensity) {
				sum += m.IsotopeIntensity[k]
				n++
			}
		}

		if n > 0 {
			meanByK[k] = sum / float64(n)
		}
	}

	keep := make([]bool, maxK)
	for k, v := range meanByK {
		keep[k] = v > 0.1
	}

	for mi, m := range members {
		resolvedMZ, rerr := ResolvePrecursorMZ(m, mzColumn)
		if rerr != nil {
			return nil, nil, nil, rerr
		}

		for k := 0; k < len(m.IsotopeIntensity) && k < maxK; k++ {
			if !keep[k] {
				continue
			}

			ownerIdx = append(ownerIdx, mi)
			mz = append(mz, IsotopeMZ(resolvedMZ, m.Charge, k))
			intensity = append(intensity, m.IsotopeIntensity[k])
		}
	}

	return ownerIdx, mz, intensity, nil
}
