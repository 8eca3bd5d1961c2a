package campaign

import (
	"crypto/sha256"
	"encoding/binary"
	"math"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"tranche-node/ledger"
)

// None is the active milestone id of a campaign with nothing left to fund.
const None = math.MaxUint64

type Status string

const (
	StatusReleased Status = "Released"
	StatusActive   Status = "Active"
	StatusLocked   Status = "Locked"
	StatusUnknown  Status = "Unknown"
)

// ------------------------------------------------------------------------------------------------------------------- //
// PROGRESS

// Progress is current/target, always finite. A zero target with funds is reported as Funded
// with ratio 1.
type Progress struct {
	Ratio  float64
	Funded bool
}

func NewProgress(current, target *big.Int) Progress {
	if target.Sign() <= 0 {
		if current.Sign() > 0 {
			return Progress{Ratio: 1, Funded: true}
		}
		return Progress{}
	}
	ratio, _ := new(big.Rat).SetFrac(current, target).Float64()
	if math.IsInf(ratio, 1) {
		ratio = math.MaxFloat64
	}
	return Progress{Ratio: ratio, Funded: current.Cmp(target) >= 0}
}

func (progress Progress) Percent() float64 {
	return progress.Ratio * 100
}

// ------------------------------------------------------------------------------------------------------------------- //
// SNAPSHOT

type Milestone struct {
	ID              uint64
	Description     string
	ServiceProvider common.Address
	TargetAmount    *big.Int
	CurrentAmount   *big.Int
	Released        bool
	VoteCount       uint64
	Progress        Progress
}

func (milestone Milestone) copy() Milestone {
	milestone.TargetAmount = new(big.Int).Set(milestone.TargetAmount)
	milestone.CurrentAmount = new(big.Int).Set(milestone.CurrentAmount)
	return milestone
}

// Snapshot is an immutable read-model of a campaign. It is replaced, never modified, and shared
// by every reader: the Milestones slice and the amounts must be treated as read-only. Milestone
// hands out a copy that callers may keep or change.
type Snapshot struct {
	Milestones  []Milestone
	ActiveID    uint64
	TotalTarget *big.Int
	TotalRaised *big.Int
}

// BuildSnapshot derives a snapshot from milestone tuples ordered by id.
func BuildSnapshot(tuples []ledger.MilestoneTuple) *Snapshot {
	snapshot := &Snapshot{
		Milestones:  make([]Milestone, 0, len(tuples)),
		ActiveID:    None,
		TotalTarget: new(big.Int),
		TotalRaised: new(big.Int),
	}
	for i, tuple := range tuples {
		id := uint64(i)
		milestone := Milestone{
			ID:              id,
			Description:     tuple.Description,
			ServiceProvider: tuple.ServiceProvider,
			TargetAmount:    new(big.Int).Set(tuple.TargetAmount),
			CurrentAmount:   new(big.Int).Set(tuple.CurrentAmount),
			Released:        tuple.Released,
			VoteCount:       tuple.VoteCount,
			Progress:        NewProgress(tuple.CurrentAmount, tuple.TargetAmount),
		}
		if !milestone.Released && snapshot.ActiveID == None {
			snapshot.ActiveID = id
		}
		snapshot.TotalTarget.Add(snapshot.TotalTarget, milestone.TargetAmount)
		snapshot.TotalRaised.Add(snapshot.TotalRaised, milestone.CurrentAmount)
		snapshot.Milestones = append(snapshot.Milestones, milestone)
	}
	return snapshot
}

func (snapshot *Snapshot) HasActive() bool {
	return snapshot.ActiveID != None
}

func (snapshot *Snapshot) Milestone(id uint64) (Milestone, bool) {
	if id >= uint64(len(snapshot.Milestones)) {
		return Milestone{}, false
	}
	return snapshot.Milestones[id].copy(), true
}

func (snapshot *Snapshot) Progress() Progress {
	return NewProgress(snapshot.TotalRaised, snapshot.TotalTarget)
}

// Hash digests every milestone field. Each field is length prefixed so adjacent values cannot
// run into each other.
func (snapshot *Snapshot) Hash() []byte {
	hasher := sha256.New()
	field := func(value []byte) {
		var length [binary.MaxVarintLen64]byte
		hasher.Write(length[:binary.PutUvarint(length[:], uint64(len(value)))])
		hasher.Write(value)
	}
	for _, milestone := range snapshot.Milestones {
		field(strconv.AppendUint(nil, milestone.ID, 10))
		field([]byte(milestone.Description))
		field(milestone.ServiceProvider.Bytes())
		field([]byte(milestone.TargetAmount.String()))
		field([]byte(milestone.CurrentAmount.String()))
		field(strconv.AppendBool(nil, milestone.Released))
		field(strconv.AppendUint(nil, milestone.VoteCount, 10))
	}
	field(strconv.AppendUint(nil, snapshot.ActiveID, 10))
	return hasher.Sum(nil)
}

// regresses reports a monotone field that went backwards relative to prev, which only a stale
// read can produce.
func (snapshot *Snapshot) regresses(prev *Snapshot) error {
	if len(snapshot.Milestones) < len(prev.Milestones) {
		return errors.Errorf("milestone count went from %d to %d", len(prev.Milestones), len(snapshot.Milestones))
	}
	for i, old := range prev.Milestones {
		milestone := snapshot.Milestones[i]
		switch {
		case milestone.CurrentAmount.Cmp(old.CurrentAmount) < 0:
			return errors.Errorf("milestone %d amount went from %s to %s", i, old.CurrentAmount, milestone.CurrentAmount)
		case milestone.VoteCount < old.VoteCount:
			return errors.Errorf("milestone %d votes went from %d to %d", i, old.VoteCount, milestone.VoteCount)
		case old.Released && !milestone.Released:
			return errors.Errorf("milestone %d is no longer released", i)
		}
	}
	return nil
}
