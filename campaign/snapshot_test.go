package campaign

import (
	"bytes"
	"math"
	"math/big"
	"testing"

	"tranche-node/ledger"
)

func TestActiveMilestone(t *testing.T) {
	cases := []struct {
		name   string
		tuples []ledger.MilestoneTuple
		active uint64
	}{
		{"empty", nil, None},
		{"first unreleased", []ledger.MilestoneTuple{mockTuple(10, 0, false, 0), mockTuple(5, 0, false, 0)}, 0},
		{"after released", []ledger.MilestoneTuple{mockTuple(10, 10, true, 3), mockTuple(5, 0, false, 0)}, 1},
		{"all released", []ledger.MilestoneTuple{mockTuple(10, 10, true, 3), mockTuple(5, 5, true, 3)}, None},
	}
	for _, c := range cases {
		snapshot := BuildSnapshot(c.tuples)
		if snapshot.ActiveID != c.active {
			t.Errorf("%s: active %d, expected %d", c.name, snapshot.ActiveID, c.active)
		}
		if snapshot.HasActive() != (c.active != None) {
			t.Errorf("%s: HasActive mismatch", c.name)
		}
	}
}

func TestSnapshotTotals(t *testing.T) {
	snapshot := BuildSnapshot([]ledger.MilestoneTuple{
		mockTuple(10, 10, true, 3),
		mockTuple(5, 2, false, 0),
		mockTuple(8, 0, false, 0),
	})
	if snapshot.ActiveID != 1 {
		t.Errorf("Wrong active milestone %d", snapshot.ActiveID)
	}
	if snapshot.TotalTarget.Int64() != 23 || snapshot.TotalRaised.Int64() != 12 {
		t.Errorf("Wrong totals %s/%s", snapshot.TotalRaised, snapshot.TotalTarget)
	}
	milestone, _ := snapshot.Milestone(1)
	if milestone.Progress.Percent() != 40 {
		t.Errorf("Wrong progress %f", milestone.Progress.Percent())
	}
	if empty := BuildSnapshot(nil); empty.TotalTarget.Sign() != 0 || empty.TotalRaised.Sign() != 0 {
		t.Errorf("Empty campaign has totals")
	}
}

func TestProgress(t *testing.T) {
	cases := []struct {
		current, target int64
		ratio           float64
		funded          bool
	}{
		{0, 0, 0, false},
		{3, 0, 1, true},
		{0, 10, 0, false},
		{5, 10, 0.5, false},
		{10, 10, 1, true},
		{15, 10, 1.5, true},
	}
	for _, c := range cases {
		progress := NewProgress(big.NewInt(c.current), big.NewInt(c.target))
		if progress.Ratio != c.ratio || progress.Funded != c.funded {
			t.Errorf("Progress %d/%d: got %+v", c.current, c.target, progress)
		}
		if math.IsNaN(progress.Ratio) || math.IsInf(progress.Ratio, 0) {
			t.Errorf("Progress %d/%d is not finite", c.current, c.target)
		}
	}
}

func TestSnapshotIsolation(t *testing.T) {
	tuples := []ledger.MilestoneTuple{mockTuple(10, 4, false, 0)}
	snapshot := BuildSnapshot(tuples)
	tuples[0].CurrentAmount.SetInt64(9)
	milestone, _ := snapshot.Milestone(0)
	if milestone.CurrentAmount.Int64() != 4 {
		t.Errorf("Snapshot shares amounts with its source")
	}
	if _, ok := snapshot.Milestone(1); ok {
		t.Errorf("Milestone out of range found")
	}

	milestone.CurrentAmount.SetInt64(1)
	milestone.TargetAmount.SetInt64(1)
	again, _ := snapshot.Milestone(0)
	if again.CurrentAmount.Int64() != 4 || again.TargetAmount.Int64() != 10 {
		t.Errorf("Changing a returned milestone changed the snapshot")
	}
	if snapshot.Milestones[0].CurrentAmount.Int64() != 4 {
		t.Errorf("Snapshot amounts changed")
	}
}

func TestSnapshotHash(t *testing.T) {
	tuples := []ledger.MilestoneTuple{mockTuple(10, 4, false, 0), mockTuple(8, 0, false, 0)}
	first, second := BuildSnapshot(tuples), BuildSnapshot(tuples)
	if !bytes.Equal(first.Hash(), second.Hash()) {
		t.Errorf("Identical reads hash differently")
	}
	tuples[0].CurrentAmount = big.NewInt(5)
	if bytes.Equal(first.Hash(), BuildSnapshot(tuples).Hash()) {
		t.Errorf("Hash ignores amounts")
	}

	split := BuildSnapshot([]ledger.MilestoneTuple{mockTuple(12, 3, false, 0)})
	shifted := BuildSnapshot([]ledger.MilestoneTuple{mockTuple(1, 23, false, 0)})
	shifted.Milestones[0].Description = split.Milestones[0].Description
	if bytes.Equal(split.Hash(), shifted.Hash()) {
		t.Errorf("Adjacent amounts collide")
	}
	described := BuildSnapshot([]ledger.MilestoneTuple{mockTuple(10, 0, false, 0)})
	moved := BuildSnapshot([]ledger.MilestoneTuple{mockTuple(10, 0, false, 0)})
	described.Milestones[0].ID, described.Milestones[0].Description = 1, "5x"
	moved.Milestones[0].ID, moved.Milestones[0].Description = 15, "x"
	if bytes.Equal(described.Hash(), moved.Hash()) {
		t.Errorf("Id and description collide")
	}
}

func TestSnapshotRegresses(t *testing.T) {
	prev := BuildSnapshot([]ledger.MilestoneTuple{mockTuple(10, 10, true, 2), mockTuple(5, 3, false, 1)})
	cases := []struct {
		name   string
		tuples []ledger.MilestoneTuple
		stale  bool
	}{
		{"unchanged", []ledger.MilestoneTuple{mockTuple(10, 10, true, 2), mockTuple(5, 3, false, 1)}, false},
		{"advanced", []ledger.MilestoneTuple{mockTuple(10, 10, true, 2), mockTuple(5, 5, true, 2), mockTuple(1, 0, false, 0)}, false},
		{"fewer milestones", []ledger.MilestoneTuple{mockTuple(10, 10, true, 2)}, true},
		{"amount decreased", []ledger.MilestoneTuple{mockTuple(10, 10, true, 2), mockTuple(5, 2, false, 1)}, true},
		{"votes decreased", []ledger.MilestoneTuple{mockTuple(10, 10, true, 2), mockTuple(5, 3, false, 0)}, true},
		{"release reverted", []ledger.MilestoneTuple{mockTuple(10, 10, false, 2), mockTuple(5, 3, false, 1)}, true},
	}
	for _, c := range cases {
		err := BuildSnapshot(c.tuples).regresses(prev)
		if (err != nil) != c.stale {
			t.Errorf("%s: regresses returned %v", c.name, err)
		}
	}
}
