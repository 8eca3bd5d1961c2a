package campaign

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"tranche-node/ledger"
)

type voteKey struct {
	milestoneID uint64
	member      common.Address
}

// Committee caches authorization, threshold and vote reads for one session. The caches are
// advisory: authorization may change on the ledger at any time and Refresh drops them all.
// A read that was in flight when the caches were dropped returns its value but does not store it.
type Committee struct {
	reader ledger.Reader

	mtx          sync.Mutex
	generation   uint64
	threshold    uint64
	hasThreshold bool
	members      map[common.Address]bool
	votes        map[voteKey]bool
}

func NewCommittee(reader ledger.Reader) *Committee {
	return &Committee{
		reader:  reader,
		members: make(map[common.Address]bool),
		votes:   make(map[voteKey]bool),
	}
}

func (c *Committee) Threshold(ctx context.Context) (uint64, error) {
	c.mtx.Lock()
	if c.hasThreshold {
		defer c.mtx.Unlock()
		return c.threshold, nil
	}
	generation := c.generation
	c.mtx.Unlock()

	threshold, err := c.reader.VotingThreshold(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "read voting threshold")
	}
	c.mtx.Lock()
	if generation == c.generation {
		c.threshold, c.hasThreshold = threshold, true
	}
	c.mtx.Unlock()
	return threshold, nil
}

func (c *Committee) IsAuthorized(ctx context.Context, address common.Address) (bool, error) {
	c.mtx.Lock()
	authorized, ok := c.members[address]
	generation := c.generation
	c.mtx.Unlock()
	if ok {
		return authorized, nil
	}

	authorized, err := c.reader.IsCommitteeMember(ctx, address)
	if err != nil {
		return false, errors.Wrapf(err, "read membership of %s", address.Hex())
	}
	c.mtx.Lock()
	if generation == c.generation {
		c.members[address] = authorized
	}
	c.mtx.Unlock()
	return authorized, nil
}

func (c *Committee) HasVoted(ctx context.Context, milestoneID uint64, member common.Address) (bool, error) {
	key := voteKey{milestoneID: milestoneID, member: member}
	c.mtx.Lock()
	voted, ok := c.votes[key]
	generation := c.generation
	c.mtx.Unlock()
	if ok {
		return voted, nil
	}

	voted, err := c.reader.HasVoted(ctx, milestoneID, member)
	if err != nil {
		return false, errors.Wrapf(err, "read vote of %s on milestone %d", member.Hex(), milestoneID)
	}
	c.mtx.Lock()
	if generation == c.generation {
		c.votes[key] = voted
	}
	c.mtx.Unlock()
	return voted, nil
}

// ForgetVote drops the cached vote flag so the next HasVoted goes to the ledger.
func (c *Committee) ForgetVote(milestoneID uint64, member common.Address) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.generation++
	delete(c.votes, voteKey{milestoneID: milestoneID, member: member})
}

// Refresh drops every cached read and reloads the threshold.
func (c *Committee) Refresh(ctx context.Context) error {
	c.mtx.Lock()
	c.generation++
	c.hasThreshold = false
	c.members = make(map[common.Address]bool)
	c.votes = make(map[voteKey]bool)
	c.mtx.Unlock()

	_, err := c.Threshold(ctx)
	return err
}

// VotesRemaining is threshold - voteCount, clamped at zero and zero once released.
func VotesRemaining(milestone Milestone, threshold uint64) uint64 {
	if milestone.Released || milestone.VoteCount >= threshold {
		return 0
	}
	return threshold - milestone.VoteCount
}
