package ledger

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
)

const revertPrefix = "execution reverted: "

// milestoneABI covers the subset of the milestone campaign contract the client uses.
const milestoneABI = `[
	{"type":"function","name":"getMilestonesCount","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"milestones","stateMutability":"view","inputs":[{"name":"","type":"uint256"}],"outputs":[
		{"name":"description","type":"string"},
		{"name":"serviceProvider","type":"address"},
		{"name":"targetAmount","type":"uint256"},
		{"name":"currentAmount","type":"uint256"},
		{"name":"released","type":"bool"},
		{"name":"voteCount","type":"uint256"}]},
	{"type":"function","name":"votingThreshold","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"isCommitteeMember","stateMutability":"view","inputs":[{"name":"","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"hasVoted","stateMutability":"view","inputs":[{"name":"","type":"uint256"},{"name":"","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"donateToMilestone","stateMutability":"payable","inputs":[{"name":"milestoneId","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"voteToRelease","stateMutability":"nonpayable","inputs":[{"name":"milestoneId","type":"uint256"}],"outputs":[]}
]`

// EthBackend is satisfied by *ethclient.Client.
type EthBackend interface {
	bind.ContractBackend
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
}

// EthLedger reads and writes a milestone campaign contract on an EVM chain.
type EthLedger struct {
	backend  EthBackend
	address  common.Address
	contract *bind.BoundContract
	chainID  *big.Int
}

var _ Ledger = (*EthLedger)(nil)

func parseMilestoneABI() (abi.ABI, error) {
	parsed, err := abi.JSON(strings.NewReader(milestoneABI))
	return parsed, errors.Wrap(err, "parse milestone abi")
}

func DialEthLedger(ctx context.Context, url string, address common.Address) (*EthLedger, error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", url)
	}
	return NewEthLedger(ctx, client, address)
}

func NewEthLedger(ctx context.Context, backend EthBackend, address common.Address) (*EthLedger, error) {
	parsed, err := parseMilestoneABI()
	if err != nil {
		return nil, err
	}
	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "read chain id")
	}
	return &EthLedger{
		backend:  backend,
		address:  address,
		contract: bind.NewBoundContract(address, parsed, backend, backend, backend),
		chainID:  chainID,
	}, nil
}

func (l *EthLedger) ChainID() *big.Int {
	return new(big.Int).Set(l.chainID)
}

func (l *EthLedger) call(ctx context.Context, method string, params ...interface{}) ([]interface{}, error) {
	var out []interface{}
	err := l.contract.Call(&bind.CallOpts{Context: ctx}, &out, method, params...)
	return out, errors.Wrapf(err, "call %s", method)
}

func (l *EthLedger) MilestoneCount(ctx context.Context) (uint64, error) {
	out, err := l.call(ctx, "getMilestonesCount")
	if err != nil {
		return 0, err
	}
	return uint64At(out, 0)
}

func (l *EthLedger) Milestone(ctx context.Context, milestoneID uint64) (MilestoneTuple, error) {
	out, err := l.call(ctx, "milestones", new(big.Int).SetUint64(milestoneID))
	if err != nil {
		return MilestoneTuple{}, err
	}
	if len(out) != 6 {
		return MilestoneTuple{}, errors.Errorf("milestone %d: unexpected %d return values", milestoneID, len(out))
	}
	description, ok1 := out[0].(string)
	provider, ok2 := out[1].(common.Address)
	released, ok3 := out[4].(bool)
	if !ok1 || !ok2 || !ok3 {
		return MilestoneTuple{}, errors.Errorf("milestone %d: unexpected return types", milestoneID)
	}
	target, err := bigAt(out, 2)
	if err != nil {
		return MilestoneTuple{}, err
	}
	current, err := bigAt(out, 3)
	if err != nil {
		return MilestoneTuple{}, err
	}
	votes, err := uint64At(out, 5)
	if err != nil {
		return MilestoneTuple{}, errors.Wrapf(err, "milestone %d", milestoneID)
	}
	return MilestoneTuple{
		Description:     description,
		ServiceProvider: provider,
		TargetAmount:    target,
		CurrentAmount:   current,
		Released:        released,
		VoteCount:       votes,
	}, nil
}

func (l *EthLedger) VotingThreshold(ctx context.Context) (uint64, error) {
	out, err := l.call(ctx, "votingThreshold")
	if err != nil {
		return 0, err
	}
	return uint64At(out, 0)
}

func (l *EthLedger) IsCommitteeMember(ctx context.Context, address common.Address) (bool, error) {
	out, err := l.call(ctx, "isCommitteeMember", address)
	if err != nil {
		return false, err
	}
	return boolAt(out, 0)
}

func (l *EthLedger) HasVoted(ctx context.Context, milestoneID uint64, address common.Address) (bool, error) {
	out, err := l.call(ctx, "hasVoted", new(big.Int).SetUint64(milestoneID), address)
	if err != nil {
		return false, err
	}
	return boolAt(out, 0)
}

func (l *EthLedger) Donate(ctx context.Context, signer Signer, milestoneID uint64, amount *big.Int) (Pending, error) {
	summary := fmt.Sprintf("donate %s wei to milestone %d of %s", amount, milestoneID, l.address.Hex())
	return l.transact(ctx, signer, summary, amount, "donateToMilestone", new(big.Int).SetUint64(milestoneID))
}

func (l *EthLedger) Vote(ctx context.Context, signer Signer, milestoneID uint64) (Pending, error) {
	summary := fmt.Sprintf("vote to release milestone %d of %s", milestoneID, l.address.Hex())
	return l.transact(ctx, signer, summary, nil, "voteToRelease", new(big.Int).SetUint64(milestoneID))
}

func (l *EthLedger) transact(ctx context.Context, signer Signer, summary string, value *big.Int, method string, params ...interface{}) (Pending, error) {
	txSigner := types.LatestSignerForChainID(l.chainID)
	opts := &bind.TransactOpts{
		From:    signer.Address(),
		Context: ctx,
		Value:   value,
		Signer: func(from common.Address, tx *types.Transaction) (*types.Transaction, error) {
			signature, err := signer.Sign(ctx, SignRequest{Summary: summary, Hash: txSigner.Hash(tx).Bytes()})
			if err != nil {
				return nil, err
			}
			return tx.WithSignature(txSigner, signature)
		},
	}
	tx, err := l.contract.Transact(opts, method, params...)
	if err != nil {
		if reason, ok := revertReason(err); ok {
			return nil, &RejectionError{Reason: reason}
		}
		return nil, err
	}
	return &ethPending{ledger: l, tx: tx}, nil
}

type ethPending struct {
	ledger *EthLedger
	tx     *types.Transaction
}

func (p *ethPending) Reference() string {
	return p.tx.Hash().Hex()
}

func (p *ethPending) Wait(ctx context.Context) (*Receipt, error) {
	receipt, err := bind.WaitMined(ctx, p.ledger.backend, p.tx)
	if err != nil {
		return nil, errors.Wrapf(err, "wait for %s", p.Reference())
	}
	if receipt.Status == types.ReceiptStatusFailed {
		return nil, &RejectionError{Reason: p.ledger.replayReason(ctx, p.tx, receipt.BlockNumber), Reference: p.Reference()}
	}
	return &Receipt{Reference: p.Reference(), Height: receipt.BlockNumber.Uint64()}, nil
}

// replayReason re-executes a reverted transaction as a call on the parent block to recover the
// revert reason the receipt does not carry.
func (l *EthLedger) replayReason(ctx context.Context, tx *types.Transaction, block *big.Int) string {
	from, err := types.Sender(types.LatestSignerForChainID(l.chainID), tx)
	if err != nil {
		return "execution reverted"
	}
	msg := ethereum.CallMsg{From: from, To: tx.To(), Gas: tx.Gas(), Value: tx.Value(), Data: tx.Data()}
	parent := new(big.Int).Sub(block, big.NewInt(1))
	if _, err := l.backend.CallContract(ctx, msg, parent); err != nil {
		if reason, ok := revertReason(err); ok {
			return reason
		}
	}
	return "execution reverted"
}

// revertReason extracts the contract's revert reason from a node error.
func revertReason(err error) (string, bool) {
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if encoded, ok := dataErr.ErrorData().(string); ok {
			if data, decodeErr := hexutil.Decode(encoded); decodeErr == nil {
				if reason, unpackErr := abi.UnpackRevert(data); unpackErr == nil {
					return reason, true
				}
			}
		}
	}
	message := err.Error()
	if i := strings.Index(message, revertPrefix); i >= 0 {
		return message[i+len(revertPrefix):], true
	}
	if strings.Contains(message, "execution reverted") {
		return message, true
	}
	return "", false
}

func bigAt(out []interface{}, i int) (*big.Int, error) {
	if i >= len(out) {
		return nil, errors.Errorf("missing return value %d", i)
	}
	value, ok := out[i].(*big.Int)
	if !ok {
		return nil, errors.Errorf("return value %d is %T, not uint256", i, out[i])
	}
	return value, nil
}

// uint64At reads a uint256 return value that must fit in 64 bits.
func uint64At(out []interface{}, i int) (uint64, error) {
	value, err := bigAt(out, i)
	if err != nil {
		return 0, err
	}
	if !value.IsUint64() {
		return 0, errors.Errorf("return value %d (%s) overflows uint64", i, value)
	}
	return value.Uint64(), nil
}

func boolAt(out []interface{}, i int) (bool, error) {
	if i >= len(out) {
		return false, errors.Errorf("missing return value %d", i)
	}
	value, ok := out[i].(bool)
	if !ok {
		return false, errors.Errorf("return value %d is %T, not bool", i, out[i])
	}
	return value, nil
}
