package model

import (
	"fmt"

	"github.com/example/diaselect/internal/config"
)

// SchemaError reports a structural problem with the input tables: a
// required column was requested but absent, or an invariant the engine
// depends on (fragment ranges with stop >= start inside the fragment
// table, consecutive score-group ids, shared rt/mobility/charge within an
// elution group) does not hold. Whether fragment ranges overlap or are
// contiguous is not checked. It is fatal and is never produced for a per-precursor data
// quality issue; those degrade to an empty or skipped result instead.
type SchemaError struct {
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("model: schema error: %s", e.Reason)
}

// ResolveRT returns the rt value selected by column ("library" or
// "calibrated").
func ResolveRT(p Precursor, column string) (float64, error) {
	switch column {
	case config.ColumnLibrary, "":
		return p.RTLibrary, nil
	case config.ColumnCalibrated:
		if !p.HasRTCalib {
			return 0, &SchemaError{Reason: fmt.Sprintf("precursor %d has no rt_calibrated column", p.PrecursorIdx)}
		}

		return p.RTCalibrated, nil
	default:
		return 0, &SchemaError{Reason: fmt.Sprintf("unknown rt column %q", column)}
	}
}

// ResolveMobility returns the mobility value selected by column.
func ResolveMobility(p Precursor, column string) (float64, error) {
	switch column {
	case config.ColumnLibrary, "":
		return p.MobilityLibrary, nil
	case config.ColumnCalibrated:
		if !p.HasMobilityCalib {
			return 0, &SchemaError{Reason: fmt.Sprintf("precursor %d has no mobility_calibrated column", p.PrecursorIdx)}
		}

		return p.MobilityCalib, nil
	default:
		return 0, &SchemaError{Reason: fmt.Sprintf("unknown mobility column %q", column)}
	}
}

// ResolvePrecursorMZ returns the precursor m/z value selected by column.
func ResolvePrecursorMZ(p Precursor, column string) (float64, error) {
	switch column {
	case config.ColumnLibrary, "":
		return p.MZLibrary, nil
	case config.ColumnCalibrated:
		if !p.HasMZCalib {
			return 0, &SchemaError{Reason: fmt.Sprintf("precursor %d has no mz_calibrated column", p.PrecursorIdx)}
		}

		return p.MZCalibrated, nil
	default:
		return 0, &SchemaError{Reason: fmt.Sprintf("unknown mz column %q", column)}
	}
}

// ResolveFragmentMZ returns the fragment m/z value selected by column.
func ResolveFragmentMZ(f Fragment, column string) (float64, error) {
	switch column {
	case config.ColumnLibrary, "":
		return f.MZLibrary, nil
	case config.ColumnCalibrated:
		if !f.HasMZCalib {
			return f.MZLibrary, nil // fragments may legitimately lack a calibrated mz; fall back
		}

		return f.MZCalibrated, nil
	default:
		return 0, &SchemaError{Reason: fmt.Sprintf("unknown mz column %q", column)}
	}
}

// ValidateFragmentRanges checks that every precursor's
// [FlatFragStartIdx, FlatFragStopIdx) range is well formed and lies within
// the fragment table.
func ValidateFragmentRanges(precursors []Precursor, fragmentCount int) error {
	for _, p := range precursors {
		if p.FlatFragStopIdx < p.FlatFragStartIdx {
			return &SchemaError{Reason: fmt.Sprintf(
				"precursor %d has flat_frag_stop_idx %d < flat_frag_start_idx %d",
				p.PrecursorIdx, p.FlatFragStopIdx, p.FlatFragStartIdx)}
		}

		if int(p.FlatFragStopIdx) > fragmentCount {
			return &SchemaError{Reason: fmt.Sprintf(
				"precursor %d flat_frag_stop_idx %d exceeds fragment table length %d",
				p.PrecursorIdx, p.FlatFragStopIdx, fragmentCount)}
		}
	}

	return nil
}

// ValidateScoreGroupIDs checks that, within each elution group, score-group
// ids are consecutive integers starting at 0.
func ValidateScoreGroupIDs(byElutionGroup map[uint32][]Precursor) error {
	for eg, members := range byElutionGroup {
		seen := map[uint32]bool{}
		maxID := uint32(0)

		for _, p := range members {
			seen[p.ScoreGroupIdx] = true

			if p.ScoreGroupIdx > maxID {
				maxID = p.ScoreGroupIdx
			}
		}

		for id := uint32(0); id <= maxID; id++ {
			if !seen[id] {
				return &SchemaError{Reason: fmt.Sprintf(
					"elution group %d score_group_idx values are not consecutive starting at 0 (missing %d)", eg, id)}
			}
		}
	}

	return nil
}
