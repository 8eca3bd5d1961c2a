package campaign

import (
	"context"
)

// SubmitVote casts an affirmative vote to release a milestone. The has-voted cache only screens
// obvious repeats; the ledger decides, and its "already voted" rejection busts the cache.
func (c *Controller) SubmitVote(ctx context.Context, milestoneID uint64) *Attempt {
	attempt := newAttempt(ActionVote, milestoneID, nil)
	attempt.advance(StateValidating, "", nil)
	if failure := c.validateVote(ctx, milestoneID); failure != nil {
		return c.failNow(attempt, failure)
	}
	signer := c.session.Signer()
	reset := func() {
		c.committee.ForgetVote(milestoneID, signer.Address())
	}
	started := c.session.spawn(ctx, func(ctx context.Context) {
		defer attempt.settle()
		attempt.advance(StateAwaitingSignature, "", nil)
		pending, err := c.ledger.Vote(ctx, signer, milestoneID)
		c.await(ctx, attempt, pending, err, reset)
	})
	if !started {
		return c.failNow(attempt, newError(KindValidation, "session is closed"))
	}
	return attempt
}

func (c *Controller) validateVote(ctx context.Context, milestoneID uint64) *Error {
	signer := c.session.Signer()
	if signer == nil {
		return newError(KindValidation, "no signing capability in this session")
	}
	snapshot := c.Snapshot()
	if blocker := targetBlocker(snapshot, milestoneID); blocker != nil {
		return blocker
	}
	member := signer.Address()
	authorized, err := c.committee.IsAuthorized(ctx, member)
	if err != nil {
		return &Error{Kind: KindReadFailure, Reason: "could not read committee membership", Err: err}
	}
	if !authorized {
		return newError(KindAuthorization, "%s is not a committee member", member.Hex())
	}
	voted, err := c.committee.HasVoted(ctx, milestoneID, member)
	if err != nil {
		return &Error{Kind: KindReadFailure, Reason: "could not read vote", Err: err}
	}
	if !IsVotable(snapshot, milestoneID, voted) {
		return newError(KindValidation, "already voted for milestone %d", milestoneID)
	}
	return nil
}

// Object records a vote against releasing a milestone. The ledger has no negative vote, so the
// objection stays in this session and nothing is submitted.
func (c *Controller) Object(milestoneID uint64) error {
	if blocker := targetBlocker(c.Snapshot(), milestoneID); blocker != nil {
		return blocker
	}
	c.mtx.Lock()
	c.objections[milestoneID] = true
	c.mtx.Unlock()
	c.notifier.Notify(Notification{
		Action:      ActionObject,
		MilestoneID: milestoneID,
		Message:     "Objection noted locally; nothing was sent to the ledger",
	})
	return nil
}

func (c *Controller) Objected(milestoneID uint64) bool {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.objections[milestoneID]
}
