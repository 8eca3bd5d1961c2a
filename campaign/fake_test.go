package campaign

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/tendermint/tendermint/libs/log"

	"tranche-node/crypto"
	"tranche-node/ledger"
)

var provider = common.HexToAddress("0x00000000000000000000000000000000000000aa")

// ------------------------------------------------------------------------------------------------------------------- //
// FAKE LEDGER

// fakeLedger is an in-memory ledger enforcing the same rules as the real one.
type fakeLedger struct {
	mtx        sync.Mutex
	milestones []ledger.MilestoneTuple
	threshold  uint64
	committee  map[common.Address]bool
	votes      map[voteKey]bool

	countCalls int
	readCalls  int
	writeCalls int
	inFlight   int
	maxFlight  int
	sequence   int

	readErr   error
	failRead  map[uint64]bool
	readDelay time.Duration
	block     chan struct{}
}

func mockFakeLedger(threshold uint64, tuples ...ledger.MilestoneTuple) *fakeLedger {
	return &fakeLedger{
		milestones: tuples,
		threshold:  threshold,
		committee:  make(map[common.Address]bool),
		votes:      make(map[voteKey]bool),
		failRead:   make(map[uint64]bool),
	}
}

func mockTuple(target, current int64, released bool, votes uint64) ledger.MilestoneTuple {
	return ledger.MilestoneTuple{
		Description:     fmt.Sprintf("deliverable %d", target),
		ServiceProvider: provider,
		TargetAmount:    big.NewInt(target),
		CurrentAmount:   big.NewInt(current),
		Released:        released,
		VoteCount:       votes,
	}
}

func (f *fakeLedger) writes() int {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	return f.writeCalls
}

func (f *fakeLedger) MilestoneCount(ctx context.Context) (uint64, error) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.countCalls++
	if f.readErr != nil {
		return 0, f.readErr
	}
	return uint64(len(f.milestones)), nil
}

func (f *fakeLedger) Milestone(ctx context.Context, milestoneID uint64) (ledger.MilestoneTuple, error) {
	f.mtx.Lock()
	f.readCalls++
	f.inFlight++
	if f.inFlight > f.maxFlight {
		f.maxFlight = f.inFlight
	}
	delay := f.readDelay
	f.mtx.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.inFlight--
	if f.failRead[milestoneID] {
		return ledger.MilestoneTuple{}, errors.Errorf("milestone %d unreachable", milestoneID)
	}
	if milestoneID >= uint64(len(f.milestones)) {
		return ledger.MilestoneTuple{}, errors.New("no such milestone")
	}
	tuple := f.milestones[milestoneID]
	tuple.TargetAmount = new(big.Int).Set(tuple.TargetAmount)
	tuple.CurrentAmount = new(big.Int).Set(tuple.CurrentAmount)
	return tuple, nil
}

func (f *fakeLedger) VotingThreshold(ctx context.Context) (uint64, error) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	if f.readErr != nil {
		return 0, f.readErr
	}
	return f.threshold, nil
}

func (f *fakeLedger) IsCommitteeMember(ctx context.Context, address common.Address) (bool, error) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	if f.readErr != nil {
		return false, f.readErr
	}
	return f.committee[address], nil
}

func (f *fakeLedger) HasVoted(ctx context.Context, milestoneID uint64, address common.Address) (bool, error) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	if f.readErr != nil {
		return false, f.readErr
	}
	return f.votes[voteKey{milestoneID: milestoneID, member: address}], nil
}

func (f *fakeLedger) active() uint64 {
	for i, milestone := range f.milestones {
		if !milestone.Released {
			return uint64(i)
		}
	}
	return None
}

func (f *fakeLedger) Donate(ctx context.Context, signer ledger.Signer, milestoneID uint64, amount *big.Int) (ledger.Pending, error) {
	return f.submit(ctx, signer, func() error {
		if milestoneID >= uint64(len(f.milestones)) {
			return errors.New("milestone does not exist")
		}
		if f.milestones[milestoneID].Released {
			return errors.New("milestone already released")
		}
		if f.active() != milestoneID {
			return errors.New("milestone is not active")
		}
		tuple := &f.milestones[milestoneID]
		tuple.CurrentAmount = new(big.Int).Add(tuple.CurrentAmount, amount)
		return nil
	})
}

func (f *fakeLedger) Vote(ctx context.Context, signer ledger.Signer, milestoneID uint64) (ledger.Pending, error) {
	member := signer.Address()
	return f.submit(ctx, signer, func() error {
		if !f.committee[member] {
			return errors.New("not a committee member")
		}
		if milestoneID >= uint64(len(f.milestones)) {
			return errors.New("milestone does not exist")
		}
		if f.milestones[milestoneID].Released {
			return errors.New("milestone already released")
		}
		key := voteKey{milestoneID: milestoneID, member: member}
		if f.votes[key] {
			return errors.New("already voted")
		}
		f.votes[key] = true
		tuple := &f.milestones[milestoneID]
		tuple.VoteCount++
		if tuple.VoteCount >= f.threshold {
			tuple.Released = true
		}
		return nil
	})
}

func (f *fakeLedger) submit(ctx context.Context, signer ledger.Signer, apply func() error) (ledger.Pending, error) {
	if _, err := signer.Sign(ctx, ledger.SignRequest{Summary: "fake call", Hash: make([]byte, crypto.HashLength)}); err != nil {
		return nil, err
	}
	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.writeCalls++
	f.sequence++
	return &fakePending{ledger: f, reference: fmt.Sprintf("TX%04d", f.sequence), apply: apply}, nil
}

type fakePending struct {
	ledger    *fakeLedger
	reference string
	apply     func() error
}

func (p *fakePending) Reference() string {
	return p.reference
}

func (p *fakePending) Wait(ctx context.Context) (*ledger.Receipt, error) {
	p.ledger.mtx.Lock()
	block := p.ledger.block
	p.ledger.mtx.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	p.ledger.mtx.Lock()
	defer p.ledger.mtx.Unlock()
	if err := p.apply(); err != nil {
		return nil, &ledger.RejectionError{Reason: err.Error(), Reference: p.reference}
	}
	return &ledger.Receipt{Reference: p.reference, Height: uint64(p.ledger.sequence)}, nil
}

// ------------------------------------------------------------------------------------------------------------------- //
// GATED READER

type readTag struct{}

// gatedReader runs hooks around fake ledger reads so a test can hold a read at a chosen point.
// Reads are told apart by the readTag value carried on their context.
type gatedReader struct {
	*fakeLedger
	beforeCount    func(ctx context.Context)
	afterMilestone func(ctx context.Context)
	afterThreshold func(ctx context.Context)
	afterMember    func(ctx context.Context)
}

func tagged(tag string) context.Context {
	return context.WithValue(context.Background(), readTag{}, tag)
}

func tagOf(ctx context.Context) string {
	tag, _ := ctx.Value(readTag{}).(string)
	return tag
}

func (g *gatedReader) MilestoneCount(ctx context.Context) (uint64, error) {
	if g.beforeCount != nil {
		g.beforeCount(ctx)
	}
	return g.fakeLedger.MilestoneCount(ctx)
}

func (g *gatedReader) Milestone(ctx context.Context, milestoneID uint64) (ledger.MilestoneTuple, error) {
	tuple, err := g.fakeLedger.Milestone(ctx, milestoneID)
	if g.afterMilestone != nil {
		g.afterMilestone(ctx)
	}
	return tuple, err
}

func (g *gatedReader) VotingThreshold(ctx context.Context) (uint64, error) {
	threshold, err := g.fakeLedger.VotingThreshold(ctx)
	if g.afterThreshold != nil {
		g.afterThreshold(ctx)
	}
	return threshold, err
}

func (g *gatedReader) IsCommitteeMember(ctx context.Context, address common.Address) (bool, error) {
	member, err := g.fakeLedger.IsCommitteeMember(ctx, address)
	if g.afterMember != nil {
		g.afterMember(ctx)
	}
	return member, err
}

// ------------------------------------------------------------------------------------------------------------------- //
// HELPERS

func mockSigner(t *testing.T) ledger.Signer {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("Failed generating key: %v", err)
	}
	return ledger.NewKeySigner(key)
}

type recorder struct {
	mtx           sync.Mutex
	notifications []Notification
}

func (r *recorder) Notify(notification Notification) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.notifications = append(r.notifications, notification)
}

func (r *recorder) all() []Notification {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return append([]Notification(nil), r.notifications...)
}

func mockController(t *testing.T, l ledger.Ledger, signer ledger.Signer) (*Controller, *recorder) {
	session := NewSession(signer, log.NewNopLogger())
	t.Cleanup(session.Close)
	notifications := &recorder{}
	controller := NewController(l, session, Config{
		ConfirmTimeout: time.Second,
		Notifier:       notifications,
		Logger:         log.NewNopLogger(),
	})
	if _, err := controller.Refresh(context.Background()); err != nil {
		t.Fatalf("Failed initial refresh: %v", err)
	}
	return controller, notifications
}

func waitAttempt(t *testing.T, attempt *Attempt) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := attempt.Wait(ctx); err != nil {
		t.Fatalf("Attempt did not settle: %v", err)
	}
}

func checkFailure(t *testing.T, attempt *Attempt, kind Kind, context string) {
	if attempt.State() != StateFailed {
		t.Errorf("%s: expected Failed, got %s", context, attempt.State())
		return
	}
	if attempt.Err() == nil || attempt.Err().Kind != kind {
		t.Errorf("%s: expected %s, got %v", context, kind, attempt.Err())
	}
}

var bigOne = big.NewInt(1)
