package campaign

import (
	"context"
	"sync"
	"time"

	"github.com/tendermint/tendermint/libs/log"

	"tranche-node/ledger"
)

// Session is created on connect and closed on disconnect. It carries the signing capability
// and owns every background task and in-flight flow started on behalf of the user.
type Session struct {
	signer ledger.Signer
	logger log.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mtx    sync.Mutex
	closed bool
	tasks  sync.WaitGroup
}

// NewSession starts a session. A nil signer gives a read-only session.
func NewSession(signer ledger.Signer, logger log.Logger) *Session {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		signer: signer,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

func (s *Session) Signer() ledger.Signer {
	return s.signer
}

func (s *Session) Done() <-chan struct{} {
	return s.ctx.Done()
}

// spawn runs fn in a goroutine whose context ends with both parent and the session.
func (s *Session) spawn(parent context.Context, fn func(ctx context.Context)) bool {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.closed {
		return false
	}
	ctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(s.ctx, cancel)
	s.tasks.Add(1)
	go func() {
		defer s.tasks.Done()
		defer cancel()
		defer stop()
		fn(ctx)
	}()
	return true
}

// Every runs task on a fixed interval until the session closes. Errors are logged and the task
// keeps its schedule.
func (s *Session) Every(name string, interval time.Duration, task func(ctx context.Context) error) bool {
	return s.spawn(context.Background(), func(ctx context.Context) {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := task(ctx); err != nil && ctx.Err() == nil {
					s.logger.Error("Background task failed", "task", name, "err", err)
				}
			}
		}
	})
}

// Close stops every task and waits for them. Calls already handed to the ledger are not withdrawn.
func (s *Session) Close() {
	s.mtx.Lock()
	s.closed = true
	s.mtx.Unlock()
	s.cancel()
	s.tasks.Wait()
}
