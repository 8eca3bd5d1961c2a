// Package campaign is the client-side core of a milestone campaign: it rebuilds the campaign view
// from the ledger, decides which actions are legal and drives donations and votes to a single
// terminal outcome. Every presentation surface goes through one Controller.
package campaign

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/tendermint/tendermint/libs/log"

	"tranche-node/ledger"
	"tranche-node/metrics"
)

const DefaultConfirmTimeout = 2 * time.Minute

type Config struct {
	FetchConcurrency int
	ConfirmTimeout   time.Duration
	Notifier         Notifier
	Logger           log.Logger
	Metrics          *metrics.Metrics
}

type Controller struct {
	ledger    ledger.Ledger
	session   *Session
	snapshots *Reconstructor
	committee *Committee

	notifier       Notifier
	logger         log.Logger
	metrics        *metrics.Metrics
	confirmTimeout time.Duration

	mtx        sync.Mutex
	objections map[uint64]bool
}

func NewController(l ledger.Ledger, session *Session, cfg Config) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = LogNotifier{Logger: logger}
	}
	timeout := cfg.ConfirmTimeout
	if timeout <= 0 {
		timeout = DefaultConfirmTimeout
	}
	return &Controller{
		ledger:         l,
		session:        session,
		snapshots:      NewReconstructor(l, cfg.FetchConcurrency, logger.With("module", "reconstructor"), cfg.Metrics),
		committee:      NewCommittee(l),
		notifier:       notifier,
		logger:         logger,
		metrics:        cfg.Metrics,
		confirmTimeout: timeout,
		objections:     make(map[uint64]bool),
	}
}

func (c *Controller) Session() *Session {
	return c.session
}

// Snapshot is the last successfully refreshed campaign view, nil before the first refresh.
func (c *Controller) Snapshot() *Snapshot {
	return c.snapshots.Snapshot()
}

func (c *Controller) Refresh(ctx context.Context) (*Snapshot, error) {
	return c.snapshots.Refresh(ctx)
}

// StartAutoRefresh refreshes the snapshot on a timer for as long as the session lives.
func (c *Controller) StartAutoRefresh(interval time.Duration) bool {
	return c.session.Every("refresh", interval, func(ctx context.Context) error {
		_, err := c.snapshots.Refresh(ctx)
		return err
	})
}

func (c *Controller) IsDonatable(milestoneID uint64) bool {
	return IsDonatable(c.Snapshot(), milestoneID)
}

func (c *Controller) IsVotable(ctx context.Context, milestoneID uint64, caller common.Address) (bool, error) {
	snapshot := c.Snapshot()
	if !IsVotable(snapshot, milestoneID, false) {
		return false, nil
	}
	voted, err := c.committee.HasVoted(ctx, milestoneID, caller)
	if err != nil {
		return false, &Error{Kind: KindReadFailure, Reason: "could not read vote", Err: err}
	}
	return IsVotable(snapshot, milestoneID, voted), nil
}

func (c *Controller) Status(milestoneID uint64) Status {
	return StatusOf(c.Snapshot(), milestoneID)
}

func (c *Controller) Threshold(ctx context.Context) (uint64, error) {
	threshold, err := c.committee.Threshold(ctx)
	if err != nil {
		return 0, &Error{Kind: KindReadFailure, Reason: "could not read voting threshold", Err: err}
	}
	return threshold, nil
}

func (c *Controller) VotesRemaining(ctx context.Context, milestoneID uint64) (uint64, error) {
	milestone, ok := c.snapshotMilestone(milestoneID)
	if !ok {
		return 0, newError(KindValidation, "milestone %d does not exist", milestoneID)
	}
	threshold, err := c.Threshold(ctx)
	if err != nil {
		return 0, err
	}
	return VotesRemaining(milestone, threshold), nil
}

func (c *Controller) snapshotMilestone(milestoneID uint64) (Milestone, bool) {
	snapshot := c.Snapshot()
	if snapshot == nil {
		return Milestone{}, false
	}
	return snapshot.Milestone(milestoneID)
}

// RefreshCommittee drops cached authorization, threshold and vote reads.
func (c *Controller) RefreshCommittee(ctx context.Context) error {
	if err := c.committee.Refresh(ctx); err != nil {
		return &Error{Kind: KindReadFailure, Reason: "could not refresh committee", Err: err}
	}
	return nil
}

// ------------------------------------------------------------------------------------------------------------------- //
// OUTCOMES

// await carries a submitted call to its terminal state.
func (c *Controller) await(ctx context.Context, attempt *Attempt, pending ledger.Pending, err error, reset func()) {
	reference := ""
	if err == nil {
		reference = pending.Reference()
		attempt.advance(StateSubmitted, reference, nil)
		c.logger.Info("Transaction submitted", "action", attempt.Action, "milestone", attempt.MilestoneID, "tx", reference)

		waitCtx, cancel := context.WithTimeout(ctx, c.confirmTimeout)
		var receipt *ledger.Receipt
		receipt, err = pending.Wait(waitCtx)
		cancel()
		if err == nil {
			c.confirm(ctx, attempt, receipt, reset)
			return
		}
	}
	failure := classify(err, reference)
	c.finish(attempt, failure)
	if failure.Kind == KindLedgerRejection {
		if reset != nil {
			reset()
		}
		c.reconcile(ctx, attempt)
	}
}

func (c *Controller) confirm(ctx context.Context, attempt *Attempt, receipt *ledger.Receipt, reset func()) {
	if !attempt.advance(StateConfirmed, receipt.Reference, nil) {
		return
	}
	c.metrics.ObserveAttempt(string(attempt.Action), string(StateConfirmed))
	c.logger.Info("Transaction confirmed", "action", attempt.Action, "milestone", attempt.MilestoneID, "tx", receipt.Reference, "height", receipt.Height)
	if reset != nil {
		reset()
	}
	c.reconcile(ctx, attempt)
	c.notifier.Notify(Notification{
		Action:      attempt.Action,
		MilestoneID: attempt.MilestoneID,
		State:       StateConfirmed,
		Message:     successMessage(attempt),
		Reference:   receipt.Reference,
	})
}

func (c *Controller) finish(attempt *Attempt, failure *Error) {
	if !attempt.advance(StateFailed, "", failure) {
		return
	}
	c.metrics.ObserveAttempt(string(attempt.Action), string(failure.Kind))
	c.logger.Info("Transaction failed", "action", attempt.Action, "milestone", attempt.MilestoneID, "kind", failure.Kind, "reason", failure.Reason)
	c.notifier.Notify(Notification{
		Action:      attempt.Action,
		MilestoneID: attempt.MilestoneID,
		State:       StateFailed,
		Kind:        failure.Kind,
		Message:     failure.Reason,
		Reference:   failure.Reference,
		Quiet:       failure.Kind == KindUserRejected,
	})
}

// failNow ends an attempt that never reached the ledger.
func (c *Controller) failNow(attempt *Attempt, failure *Error) *Attempt {
	c.finish(attempt, failure)
	attempt.settle()
	return attempt
}

// reconcile re-reads the ledger after an outcome; the ledger is the only source of the new state.
func (c *Controller) reconcile(ctx context.Context, attempt *Attempt) {
	if _, err := c.snapshots.Refresh(ctx); err != nil {
		c.notifier.Notify(Notification{
			Action:      attempt.Action,
			MilestoneID: attempt.MilestoneID,
			State:       attempt.State(),
			Kind:        KindReadFailure,
			Message:     "campaign view may be out of date: " + err.Error(),
		})
	}
}

func successMessage(attempt *Attempt) string {
	switch attempt.Action {
	case ActionDonate:
		return fmt.Sprintf("Donation of %s to milestone %d confirmed", attempt.Amount, attempt.MilestoneID)
	case ActionVote:
		return fmt.Sprintf("Vote to release milestone %d confirmed", attempt.MilestoneID)
	}
	return "Transaction confirmed"
}
