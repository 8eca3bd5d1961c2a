package messages

import (
	"crypto/sha256"
	"encoding/json"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

type TransactionType string

const (
	TxDonate TransactionType = "TxDonate"
	TxVote   TransactionType = "TxVote"
)

type Transaction struct {
	TxType TransactionType

	MilestoneID uint64
	Amount      *big.Int `json:",omitempty"`

	Sender    common.Address
	Time      int64
	Signature []byte
}

// SignHash is the digest the sender signs; the signature itself is excluded.
func (tx *Transaction) SignHash() []byte {
	id := []byte(tx.TxType)
	id = append(id, strconv.FormatUint(tx.MilestoneID, 10)...)
	if tx.Amount != nil {
		id = append(id, tx.Amount.String()...)
	}
	id = append(id, tx.Sender.Bytes()...)
	id = append(id, strconv.FormatInt(tx.Time, 10)...)
	hash := sha256.Sum256(id)
	return hash[:]
}

func (tx *Transaction) Encode() ([]byte, error) {
	encoded, err := json.Marshal(tx)
	return encoded, errors.Wrap(err, "encode transaction")
}

func DecodeTransaction(raw []byte) (*Transaction, error) {
	var tx Transaction
	if err := json.Unmarshal(raw, &tx); err != nil {
		return nil, errors.Wrap(err, "decode transaction")
	}
	switch tx.TxType {
	case TxDonate, TxVote:
	default:
		return nil, errors.Errorf("unknown transaction type %q", tx.TxType)
	}
	return &tx, nil
}

type QueryType string

const (
	QueryCampaign        QueryType = "QueryCampaign"
	QueryMilestoneCount  QueryType = "QueryMilestoneCount"
	QueryMilestone       QueryType = "QueryMilestone"
	QueryThreshold       QueryType = "QueryThreshold"
	QueryCommitteeMember QueryType = "QueryCommitteeMember"
	QueryHasVoted        QueryType = "QueryHasVoted"
)

type Query struct {
	QrType      QueryType
	MilestoneID uint64         `json:",omitempty"`
	Address     common.Address
}

func (query *Query) Encode() ([]byte, error) {
	encoded, err := json.Marshal(query)
	return encoded, errors.Wrap(err, "encode query")
}

func DecodeQuery(raw []byte) (*Query, error) {
	var query Query
	if err := json.Unmarshal(raw, &query); err != nil {
		return nil, errors.Wrap(err, "decode query")
	}
	return &query, nil
}

// ------------------------------------------------------------------------------------------------------------------- //
// QUERY RESULTS

type MilestoneResult struct {
	Description     string
	ServiceProvider common.Address
	TargetAmount    *big.Int
	CurrentAmount   *big.Int
	Released        bool
	VoteCount       uint64
}

type CountResult struct {
	Count uint64
}

type FlagResult struct {
	Value bool
}
