// Package ledger is the typed read/write access to the external ledger holding a milestone
// campaign. The ledger is authoritative: clients never mutate its state locally, they submit
// calls and read the outcome back.
package ledger

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// ErrSignatureRejected is returned by a Signer when the user declines to sign.
var ErrSignatureRejected = errors.New("signature request rejected")

// MilestoneTuple is one milestone exactly as the ledger reports it.
type MilestoneTuple struct {
	Description     string
	ServiceProvider common.Address
	TargetAmount    *big.Int
	CurrentAmount   *big.Int
	Released        bool
	VoteCount       uint64
}

type Reader interface {
	MilestoneCount(ctx context.Context) (uint64, error)
	Milestone(ctx context.Context, milestoneID uint64) (MilestoneTuple, error)
	VotingThreshold(ctx context.Context) (uint64, error)
	IsCommitteeMember(ctx context.Context, address common.Address) (bool, error)
	HasVoted(ctx context.Context, milestoneID uint64, address common.Address) (bool, error)
}

// Writer submits mutating calls. A returned Pending means the signing layer accepted the call
// and it was handed to the ledger; it may still be rejected on execution.
type Writer interface {
	Donate(ctx context.Context, signer Signer, milestoneID uint64, amount *big.Int) (Pending, error)
	Vote(ctx context.Context, signer Signer, milestoneID uint64) (Pending, error)
}

type Ledger interface {
	Reader
	Writer
}

type Pending interface {
	Reference() string
	// Wait blocks until the call is executed. Execution failures are returned as *RejectionError.
	// Abandoning the wait through ctx does not withdraw the call.
	Wait(ctx context.Context) (*Receipt, error)
}

type Receipt struct {
	Reference string
	Height    uint64
}

// RejectionError carries the ledger's reason for refusing a call, unmodified.
type RejectionError struct {
	Reason    string
	Reference string
}

func (err *RejectionError) Error() string {
	return err.Reason
}

func IsRejection(err error) (*RejectionError, bool) {
	var rejection *RejectionError
	if errors.As(err, &rejection) {
		return rejection, true
	}
	return nil, false
}
