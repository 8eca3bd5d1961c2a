package campaign

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/tendermint/tendermint/libs/log"
	"golang.org/x/sync/errgroup"

	"tranche-node/ledger"
	"tranche-node/metrics"
)

const (
	DefaultFetchConcurrency = 4
	maxMilestones           = 1 << 16
)

// Reconstructor rebuilds the campaign snapshot from the ledger. Refresh may be called from any
// number of goroutines; readers always see a complete snapshot.
type Reconstructor struct {
	reader      ledger.Reader
	concurrency int
	logger      log.Logger
	metrics     *metrics.Metrics

	started uint64 // sequence of the last refresh started

	mtx       sync.RWMutex
	current   *Snapshot
	published uint64 // sequence of the refresh that produced current
}

func NewReconstructor(reader ledger.Reader, concurrency int, logger log.Logger, m *metrics.Metrics) *Reconstructor {
	if concurrency < 1 {
		concurrency = DefaultFetchConcurrency
	}
	return &Reconstructor{
		reader:      reader,
		concurrency: concurrency,
		logger:      logger,
		metrics:     m,
	}
}

// Snapshot returns the current snapshot, nil before the first successful refresh.
func (r *Reconstructor) Snapshot() *Snapshot {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	return r.current
}

// Refresh fetches every milestone and publishes a new snapshot. On failure the previous snapshot
// is returned together with a ReadFailure. A read that falls behind a snapshot published while it
// was in flight is superseded and returns that snapshot without error.
func (r *Reconstructor) Refresh(ctx context.Context) (*Snapshot, error) {
	r.mtx.RLock()
	base := r.published
	r.mtx.RUnlock()
	seq := atomic.AddUint64(&r.started, 1)
	start := time.Now()

	tuples, err := r.fetch(ctx)
	if err != nil {
		r.metrics.ObserveRefresh(time.Since(start), true)
		r.logger.Error("Campaign refresh failed", "err", err)
		return r.Snapshot(), &Error{Kind: KindReadFailure, Reason: "campaign refresh failed", Err: err}
	}
	next := BuildSnapshot(tuples)

	r.mtx.Lock()
	defer r.mtx.Unlock()
	if seq < r.published {
		r.metrics.ObserveRefresh(time.Since(start), false)
		return r.current, nil
	}
	if r.current != nil {
		if err := next.regresses(r.current); err != nil {
			if r.published != base {
				r.metrics.ObserveRefresh(time.Since(start), false)
				r.logger.Debug("Campaign read superseded", "err", err)
				return r.current, nil
			}
			r.metrics.ObserveRefresh(time.Since(start), true)
			r.logger.Error("Discarding stale campaign read", "err", err)
			return r.current, &Error{Kind: KindReadFailure, Reason: "ledger returned stale data", Err: err}
		}
	}
	r.current = next
	r.published = seq
	r.metrics.ObserveRefresh(time.Since(start), false)
	r.metrics.SetActiveMilestone(next.ActiveID, next.HasActive())
	r.logger.Debug("Campaign refreshed", "milestones", len(next.Milestones), "active", next.ActiveID)
	return next, nil
}

func (r *Reconstructor) fetch(ctx context.Context) ([]ledger.MilestoneTuple, error) {
	count, err := r.reader.MilestoneCount(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "read milestone count")
	}
	if count > maxMilestones {
		return nil, errors.Errorf("ledger reports %d milestones", count)
	}
	tuples := make([]ledger.MilestoneTuple, count)
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(r.concurrency)
	for i := uint64(0); i < count; i++ {
		id := i
		group.Go(func() error {
			tuple, err := r.reader.Milestone(groupCtx, id)
			if err != nil {
				return errors.Wrapf(err, "read milestone %d", id)
			}
			if tuple.TargetAmount == nil || tuple.CurrentAmount == nil {
				return errors.Errorf("milestone %d is missing amounts", id)
			}
			tuples[id] = tuple
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return tuples, nil
}
