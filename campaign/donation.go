package campaign

import (
	"context"
	"math/big"
)

// SubmitDonation validates a donation against the current snapshot and, when legal, sends it.
// Validation failures are returned already Failed with no ledger call made. The currentAmount
// shown afterwards always comes from a fresh ledger read.
func (c *Controller) SubmitDonation(ctx context.Context, milestoneID uint64, amount *big.Int) *Attempt {
	attempt := newAttempt(ActionDonate, milestoneID, amount)
	attempt.advance(StateValidating, "", nil)
	if failure := c.validateDonation(milestoneID, amount); failure != nil {
		return c.failNow(attempt, failure)
	}
	started := c.session.spawn(ctx, func(ctx context.Context) {
		defer attempt.settle()
		attempt.advance(StateAwaitingSignature, "", nil)
		pending, err := c.ledger.Donate(ctx, c.session.Signer(), milestoneID, attempt.Amount)
		c.await(ctx, attempt, pending, err, nil)
	})
	if !started {
		return c.failNow(attempt, newError(KindValidation, "session is closed"))
	}
	return attempt
}

func (c *Controller) validateDonation(milestoneID uint64, amount *big.Int) *Error {
	if amount == nil || amount.Sign() <= 0 {
		return newError(KindValidation, "donation amount must be positive")
	}
	if c.session.Signer() == nil {
		return newError(KindValidation, "no signing capability in this session")
	}
	return targetBlocker(c.Snapshot(), milestoneID)
}
