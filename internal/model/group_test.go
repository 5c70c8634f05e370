package model

import (
	"testing"

	"github.com/example/diaselect/internal/config"
)

func TestBuildElutionGroupsDivergentRTSchemaError(t *testing.T) {
	precursors := []Precursor{
		{PrecursorIdx: 1, ElutionGroupIdx: 0, RTLibrary: 10, Charge: 2},
		{PrecursorIdx: 2, ElutionGroupIdx: 0, RTLibrary: 11, Charge: 2},
	}

	_, err := BuildElutionGroups(precursors, config.ColumnLibrary, config.ColumnLibrary)
	if err == nil {
		t.Fatalf("expected a SchemaError for divergent rt within one elution group")
	}

	if _, ok := err.(*SchemaError); !ok {
		t.Fatalf("err = %T, want *SchemaError", err)
	}
}

func TestBuildElutionGroupsDivergentChargeSchemaError(t *testing.T) {
	precursors := []Precursor{
		{PrecursorIdx: 1, ElutionGroupIdx: 0, RTLibrary: 10, Charge: 2},
		{PrecursorIdx: 2, ElutionGroupIdx: 0, RTLibrary: 10, Charge: 3},
	}

	_, err := BuildElutionGroups(precursors, config.ColumnLibrary, config.ColumnLibrary)
	if err == nil {
		t.Fatalf("expected a SchemaError for divergent charge within one elution group")
	}

	if _, ok := err.(*SchemaError); !ok {
		t.Fatalf("err = %T, want *SchemaError", err)
	}
}

func TestBuildElutionGroupsAgreeingMembersSucceed(t *testing.T) {
	precursors := []Precursor{
		{PrecursorIdx: 1, ElutionGroupIdx: 0, RTLibrary: 10, MobilityLibrary: 0.8, Charge: 2},
		{PrecursorIdx: 2, ElutionGroupIdx: 0, RTLibrary: 10, MobilityLibrary: 0.8, Charge: 2},
	}

	groups, err := BuildElutionGroups(precursors, config.ColumnLibrary, config.ColumnLibrary)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(groups) != 1 || len(groups[0].Members) != 2 {
		t.Fatalf("groups = %+v, want one group of two members", groups)
	}
}

func testMembers() []Precursor {
	return []Precursor{
		{PrecursorIdx: 10, Channel: 1, Decoy: false, MZLibrary: 500},
		{PrecursorIdx: 11, Channel: 0, Decoy: true, MZLibrary: 300},
		{PrecursorIdx: 12, Channel: 0, Decoy: false, MZLibrary: 400},
		{PrecursorIdx: 13, Channel: 1, Decoy: true, MZLibrary: 200},
	}
}

func scoreGroupPrecursorIdxs(sgs []ScoreGroup) [][]uint32 {
	out := make([][]uint32, len(sgs))

	for i, sg := range sgs {
		idxs := make([]uint32, len(sg.Members))
		for j, m := range sg.Members {
			idxs[j] = m.PrecursorIdx
		}

		out[i] = idxs
	}

	return out
}

func TestBuildScoreGroupsUngroupedOnePerPrecursor(t *testing.T) {
	eg := ElutionGroup{Idx: 3, Members: testMembers()}

	groups, err := BuildScoreGroups(eg, config.SelectionConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(groups) != len(eg.Members) {
		t.Fatalf("len(groups) = %d, want %d (one per precursor)", len(groups), len(eg.Members))
	}

	for i, g := range groups {
		if g.ElutionGroupIdx != eg.Idx {
			t.Fatalf("group %d elution group idx = %d, want %d", i, g.ElutionGroupIdx, eg.Idx)
		}

		if g.Idx != uint32(i) {
			t.Fatalf("group %d id = %d, want %d (consecutive from 0)", i, g.Idx, i)
		}

		if len(g.Members) != 1 {
			t.Fatalf("group %d has %d members, want 1", i, len(g.Members))
		}
	}
}

func TestBuildScoreGroupsGroupedByDecoy(t *testing.T) {
	eg := ElutionGroup{Idx: 0, Members: testMembers()}

	groups, err := BuildScoreGroups(eg, config.SelectionConfig{GroupByDecoy: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(groups) != 2 {
		t.Fatalf("len(groups) = %d, want 2 (targets, decoys)", len(groups))
	}

	for i, g := range groups {
		if g.Idx != uint32(i) {
			t.Fatalf("group %d id = %d, want %d (consecutive from 0)", i, g.Idx, i)
		}
	}

	for _, m := range groups[0].Members {
		if m.Decoy {
			t.Fatalf("target group contains a decoy precursor: %+v", m)
		}
	}

	for _, m := range groups[1].Members {
		if !m.Decoy {
			t.Fatalf("decoy group contains a target precursor: %+v", m)
		}
	}

	// within-group ordering by m/z ascending (precursor 12 at 400 before
	// precursor 10 at 500).
	idxs := scoreGroupPrecursorIdxs(groups)
	if len(idxs[0]) != 2 || idxs[0][0] != 12 || idxs[0][1] != 10 {
		t.Fatalf("target group members = %v, want [12 10] sorted by m/z", idxs[0])
	}

	if len(idxs[1]) != 2 || idxs[1][0] != 13 || idxs[1][1] != 11 {
		t.Fatalf("decoy group members = %v, want [13 11] sorted by m/z", idxs[1])
	}
}

func TestBuildScoreGroupsGroupedByChannel(t *testing.T) {
	eg := ElutionGroup{Idx: 0, Members: testMembers()}

	groups, err := BuildScoreGroups(eg, config.SelectionConfig{GroupChannels: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(groups) != 2 {
		t.Fatalf("len(groups) = %d, want 2 (channel 0, channel 1)", len(groups))
	}

	for i, g := range groups {
		if g.Idx != uint32(i) {
			t.Fatalf("group %d id = %d, want %d (consecutive from 0)", i, g.Idx, i)
		}
	}

	for _, m := range groups[0].Members {
		if m.Channel != 0 {
			t.Fatalf("channel-0 group contains precursor from channel %d: %+v", m.Channel, m)
		}
	}

	for _, m := range groups[1].Members {
		if m.Channel != 1 {
			t.Fatalf("channel-1 group contains precursor from channel %d: %+v", m.Channel, m)
		}
	}

	// a channel group must mix decoy status when group-by-decoy is not
	// also set.
	idxs := scoreGroupPrecursorIdxs(groups)
	if len(idxs[0]) != 2 || idxs[0][0] != 11 || idxs[0][1] != 12 {
		t.Fatalf("channel-0 group members = %v, want [11 12] sorted by m/z", idxs[0])
	}
}

func TestBuildScoreGroupsChannelsTakePrecedenceOverDecoy(t *testing.T) {
	eg := ElutionGroup{Idx: 0, Members: testMembers()}

	groups, err := BuildScoreGroups(eg, config.SelectionConfig{GroupChannels: true, GroupByDecoy: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(groups) != 2 {
		t.Fatalf("len(groups) = %d, want 2 (group_channels must win over group_by_decoy)", len(groups))
	}

	sawMixedDecoy := false

	for _, g := range groups {
		hasTarget, hasDecoy := false, false

		for _, m := range g.Members {
			if m.Decoy {
				hasDecoy = true
			} else {
				hasTarget = true
			}
		}

		if hasTarget && hasDecoy {
			sawMixedDecoy = true
		}
	}

	if !sawMixedDecoy {
		t.Fatalf("expected at least one channel group to mix targets and decoys under group_channels precedence")
	}
}
