package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"tranche-node/messages"
)

// Transport moves encoded queries and transactions to a devnet campaign chain.
type Transport interface {
	Query(ctx context.Context, data []byte) ([]byte, error)
	Broadcast(ctx context.Context, tx []byte) (Pending, error)
}

// ABCILedger talks to the devnet campaign chain.
type ABCILedger struct {
	transport Transport
	now       func() time.Time
}

var _ Ledger = (*ABCILedger)(nil)

func NewABCILedger(transport Transport) *ABCILedger {
	return &ABCILedger{transport: transport, now: time.Now}
}

func (l *ABCILedger) query(ctx context.Context, query messages.Query, result interface{}) error {
	data, err := query.Encode()
	if err != nil {
		return err
	}
	value, err := l.transport.Query(ctx, data)
	if err != nil {
		return errors.Wrapf(err, "query %s", query.QrType)
	}
	return errors.Wrapf(json.Unmarshal(value, result), "decode %s", query.QrType)
}

func (l *ABCILedger) MilestoneCount(ctx context.Context) (uint64, error) {
	var result messages.CountResult
	err := l.query(ctx, messages.Query{QrType: messages.QueryMilestoneCount}, &result)
	return result.Count, err
}

func (l *ABCILedger) Milestone(ctx context.Context, milestoneID uint64) (MilestoneTuple, error) {
	var result messages.MilestoneResult
	if err := l.query(ctx, messages.Query{QrType: messages.QueryMilestone, MilestoneID: milestoneID}, &result); err != nil {
		return MilestoneTuple{}, err
	}
	if result.TargetAmount == nil || result.CurrentAmount == nil {
		return MilestoneTuple{}, errors.Errorf("milestone %d is missing amounts", milestoneID)
	}
	return MilestoneTuple{
		Description:     result.Description,
		ServiceProvider: result.ServiceProvider,
		TargetAmount:    result.TargetAmount,
		CurrentAmount:   result.CurrentAmount,
		Released:        result.Released,
		VoteCount:       result.VoteCount,
	}, nil
}

func (l *ABCILedger) VotingThreshold(ctx context.Context) (uint64, error) {
	var result messages.CountResult
	err := l.query(ctx, messages.Query{QrType: messages.QueryThreshold}, &result)
	return result.Count, err
}

func (l *ABCILedger) IsCommitteeMember(ctx context.Context, address common.Address) (bool, error) {
	var result messages.FlagResult
	err := l.query(ctx, messages.Query{QrType: messages.QueryCommitteeMember, Address: address}, &result)
	return result.Value, err
}

func (l *ABCILedger) HasVoted(ctx context.Context, milestoneID uint64, address common.Address) (bool, error) {
	var result messages.FlagResult
	query := messages.Query{QrType: messages.QueryHasVoted, MilestoneID: milestoneID, Address: address}
	err := l.query(ctx, query, &result)
	return result.Value, err
}

func (l *ABCILedger) Donate(ctx context.Context, signer Signer, milestoneID uint64, amount *big.Int) (Pending, error) {
	tx := &messages.Transaction{
		TxType:      messages.TxDonate,
		MilestoneID: milestoneID,
		Amount:      new(big.Int).Set(amount),
	}
	return l.submit(ctx, signer, tx, fmt.Sprintf("donate %s to milestone %d", amount, milestoneID))
}

func (l *ABCILedger) Vote(ctx context.Context, signer Signer, milestoneID uint64) (Pending, error) {
	tx := &messages.Transaction{
		TxType:      messages.TxVote,
		MilestoneID: milestoneID,
	}
	return l.submit(ctx, signer, tx, fmt.Sprintf("vote to release milestone %d", milestoneID))
}

func (l *ABCILedger) submit(ctx context.Context, signer Signer, tx *messages.Transaction, summary string) (Pending, error) {
	tx.Sender = signer.Address()
	tx.Time = l.now().UnixNano()
	signature, err := signer.Sign(ctx, SignRequest{Summary: summary, Hash: tx.SignHash()})
	if err != nil {
		return nil, err
	}
	tx.Signature = signature
	raw, err := tx.Encode()
	if err != nil {
		return nil, err
	}
	return l.transport.Broadcast(ctx, raw)
}
