package campaign

import (
	"context"
	"math/big"
	"sync"
	"time"
)

type State string

const (
	StateIdle              State = "Idle"
	StateValidating        State = "Validating"
	StateAwaitingSignature State = "AwaitingSignature"
	StateSubmitted         State = "Submitted"
	StateConfirmed         State = "Confirmed"
	StateFailed            State = "Failed"
)

func (state State) Terminal() bool {
	return state == StateConfirmed || state == StateFailed
}

type Action string

const (
	ActionDonate Action = "donate"
	ActionVote   Action = "vote"
	ActionObject Action = "object"
)

type Transition struct {
	State     State
	At        time.Time
	Reference string
	Err       *Error
}

// Attempt is the lifecycle of one mutating call. It moves forward only and ends in exactly one
// terminal state.
type Attempt struct {
	Action      Action
	MilestoneID uint64
	Amount      *big.Int

	mtx       sync.Mutex
	history   []Transition
	changed   chan struct{}
	settled   chan struct{}
	reference string
	err       *Error
}

func newAttempt(action Action, milestoneID uint64, amount *big.Int) *Attempt {
	attempt := &Attempt{
		Action:      action,
		MilestoneID: milestoneID,
		changed:     make(chan struct{}),
		settled:     make(chan struct{}),
	}
	if amount != nil {
		attempt.Amount = new(big.Int).Set(amount)
	}
	attempt.history = []Transition{{State: StateIdle, At: time.Now()}}
	return attempt
}

func (a *Attempt) State() State {
	a.mtx.Lock()
	defer a.mtx.Unlock()
	return a.history[len(a.history)-1].State
}

func (a *Attempt) Reference() string {
	a.mtx.Lock()
	defer a.mtx.Unlock()
	return a.reference
}

// Err is the failure of a Failed attempt, nil otherwise.
func (a *Attempt) Err() *Error {
	a.mtx.Lock()
	defer a.mtx.Unlock()
	return a.err
}

func (a *Attempt) History() []Transition {
	a.mtx.Lock()
	defer a.mtx.Unlock()
	return append([]Transition(nil), a.history...)
}

// Done is closed once the attempt is terminal and its follow-up refresh has finished.
func (a *Attempt) Done() <-chan struct{} {
	return a.settled
}

func (a *Attempt) Wait(ctx context.Context) error {
	select {
	case <-a.settled:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Watch streams every transition from Idle onwards and closes after the terminal one.
func (a *Attempt) Watch(ctx context.Context) <-chan Transition {
	out := make(chan Transition)
	go func() {
		defer close(out)
		next := 0
		for {
			a.mtx.Lock()
			pending := append([]Transition(nil), a.history[next:]...)
			terminal := a.history[len(a.history)-1].State.Terminal()
			changed := a.changed
			a.mtx.Unlock()

			for _, transition := range pending {
				select {
				case out <- transition:
				case <-ctx.Done():
					return
				}
			}
			next += len(pending)
			if terminal {
				return
			}
			select {
			case <-changed:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (a *Attempt) advance(state State, reference string, err *Error) bool {
	a.mtx.Lock()
	defer a.mtx.Unlock()
	if a.history[len(a.history)-1].State.Terminal() {
		return false
	}
	if reference != "" {
		a.reference = reference
	}
	if err != nil {
		if err.Reference == "" {
			err.Reference = a.reference
		}
		a.err = err
	}
	a.history = append(a.history, Transition{State: state, At: time.Now(), Reference: a.reference, Err: err})
	close(a.changed)
	a.changed = make(chan struct{})
	return true
}

func (a *Attempt) settle() {
	close(a.settled)
}
