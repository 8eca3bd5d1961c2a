package app

import (
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"
	tendermint "github.com/tendermint/tendermint/abci/types"
	"github.com/tendermint/tendermint/libs/log"
	dbm "github.com/tendermint/tm-db"

	"tranche-node/crypto"
	"tranche-node/messages"
	"tranche-node/modules"
)

const (
	CodeOK uint32 = iota
	CodeInvalidTx
	CodeRejected
	CodeInvalidQuery
)

var (
	stateKey  = []byte("campaign")
	heightKey = []byte("height")
)

// CampaignChain is the devnet ledger: an ABCI application holding one campaign.
type CampaignChain struct {
	tendermint.BaseApplication

	Height    int64
	Committed *modules.Campaign // written at commit, read by queries
	New       *modules.Campaign // written at deliverTx

	db     dbm.DB
	logger log.Logger
}

var _ tendermint.Application = (*CampaignChain)(nil)

// NewCampaignChain restores the last committed campaign from db, falling back to genesis.
func NewCampaignChain(genesis *modules.Campaign, db dbm.DB, logger log.Logger) (*CampaignChain, error) {
	committed, height, err := loadState(db)
	if err != nil {
		return nil, err
	}
	if committed == nil {
		if err := genesis.Validate(); err != nil {
			return nil, errors.Wrap(err, "invalid genesis campaign")
		}
		committed = modules.NewCampaign(genesis)
	}
	return &CampaignChain{
		Height:    height,
		Committed: committed,
		New:       modules.NewCampaign(committed),
		db:        db,
		logger:    logger,
	}, nil
}

func loadState(db dbm.DB) (*modules.Campaign, int64, error) {
	raw, err := db.Get(stateKey)
	if err != nil {
		return nil, 0, errors.Wrap(err, "read campaign state")
	}
	if len(raw) == 0 {
		return nil, 0, nil
	}
	var campaign modules.Campaign
	if err := json.Unmarshal(raw, &campaign); err != nil {
		return nil, 0, errors.Wrap(err, "decode campaign state")
	}
	rawHeight, err := db.Get(heightKey)
	if err != nil {
		return nil, 0, errors.Wrap(err, "read height")
	}
	height, err := strconv.ParseInt(string(rawHeight), 10, 64)
	if err != nil {
		return nil, 0, errors.Wrap(err, "decode height")
	}
	return modules.NewCampaign(&campaign), height, nil
}

func (chain *CampaignChain) Info(requestInfo tendermint.RequestInfo) tendermint.ResponseInfo {
	return tendermint.ResponseInfo{
		Data:             "milestone campaign devnet",
		Version:          "V1",
		AppVersion:       1,
		LastBlockHeight:  chain.Height,
		LastBlockAppHash: chain.appHash(),
	}
}

func (chain *CampaignChain) appHash() []byte {
	if chain.Height == 0 {
		return nil
	}
	return chain.Committed.Hash()
}

func (chain *CampaignChain) Query(requestQuery tendermint.RequestQuery) tendermint.ResponseQuery {
	query, err := messages.DecodeQuery(requestQuery.Data)
	if err != nil {
		return tendermint.ResponseQuery{Code: CodeInvalidQuery, Log: err.Error()}
	}
	campaign := chain.Committed
	var result interface{}
	switch query.QrType {
	case messages.QueryCampaign:
		result = campaign
	case messages.QueryMilestoneCount:
		result = messages.CountResult{Count: uint64(len(campaign.Milestones))}
	case messages.QueryMilestone:
		milestone, err := campaign.Milestone(query.MilestoneID)
		if err != nil {
			return tendermint.ResponseQuery{Code: CodeInvalidQuery, Log: err.Error()}
		}
		result = messages.MilestoneResult{
			Description:     milestone.Description,
			ServiceProvider: milestone.ServiceProvider,
			TargetAmount:    milestone.TargetAmount,
			CurrentAmount:   milestone.CurrentAmount,
			Released:        milestone.Released,
			VoteCount:       milestone.VoteCount,
		}
	case messages.QueryThreshold:
		result = messages.CountResult{Count: campaign.Threshold}
	case messages.QueryCommitteeMember:
		result = messages.FlagResult{Value: campaign.IsMember(query.Address)}
	case messages.QueryHasVoted:
		result = messages.FlagResult{Value: campaign.HasVoted(query.MilestoneID, query.Address)}
	default:
		return tendermint.ResponseQuery{Code: CodeInvalidQuery, Log: "unknown query " + string(query.QrType)}
	}
	value, err := json.Marshal(result)
	if err != nil {
		return tendermint.ResponseQuery{Code: CodeInvalidQuery, Log: err.Error()}
	}
	return tendermint.ResponseQuery{
		Code:   CodeOK,
		Index:  -1,
		Key:    requestQuery.Data,
		Value:  value,
		Height: chain.Height,
	}
}

func (chain *CampaignChain) CheckTx(requestCheckTx tendermint.RequestCheckTx) tendermint.ResponseCheckTx {
	if _, err := decodeSigned(requestCheckTx.Tx); err != nil {
		return tendermint.ResponseCheckTx{Code: CodeInvalidTx, Log: err.Error()}
	}
	return tendermint.ResponseCheckTx{Code: CodeOK}
}

func (chain *CampaignChain) DeliverTx(requestDeliverTx tendermint.RequestDeliverTx) tendermint.ResponseDeliverTx {
	transaction, err := decodeSigned(requestDeliverTx.Tx)
	if err != nil {
		return tendermint.ResponseDeliverTx{Code: CodeInvalidTx, Log: err.Error()}
	}
	if err := chain.New.MarkProcessed(transaction.SignHash()); err != nil {
		return tendermint.ResponseDeliverTx{Code: CodeRejected, Log: err.Error()}
	}
	switch transaction.TxType {
	case messages.TxDonate:
		err = chain.New.Donate(transaction.Sender, transaction.MilestoneID, transaction.Amount)
	case messages.TxVote:
		err = chain.New.Vote(transaction.Sender, transaction.MilestoneID)
	}
	if err != nil {
		chain.logger.Debug("Transaction rejected", "type", transaction.TxType, "milestone", transaction.MilestoneID, "reason", err)
		return tendermint.ResponseDeliverTx{Code: CodeRejected, Log: err.Error()}
	}
	chain.logger.Info("Transaction applied", "type", transaction.TxType, "milestone", transaction.MilestoneID, "sender", transaction.Sender.Hex())
	return tendermint.ResponseDeliverTx{Code: CodeOK}
}

func decodeSigned(raw []byte) (*messages.Transaction, error) {
	transaction, err := messages.DecodeTransaction(raw)
	if err != nil {
		return nil, err
	}
	if !crypto.Verify(transaction.Sender, transaction.SignHash(), transaction.Signature) {
		return nil, errors.New("invalid signature")
	}
	return transaction, nil
}

func (chain *CampaignChain) Commit() tendermint.ResponseCommit {
	chain.Committed = chain.New
	chain.New = modules.NewCampaign(chain.Committed)
	chain.Height++
	if err := chain.persist(); err != nil {
		chain.logger.Error("Failed to persist campaign state", "height", chain.Height, "err", err)
	}
	return tendermint.ResponseCommit{Data: chain.appHash()}
}

func (chain *CampaignChain) persist() error {
	raw, err := json.Marshal(chain.Committed)
	if err != nil {
		return errors.Wrap(err, "encode campaign state")
	}
	if err := chain.db.Set(stateKey, raw); err != nil {
		return errors.Wrap(err, "write campaign state")
	}
	return errors.Wrap(chain.db.SetSync(heightKey, []byte(strconv.FormatInt(chain.Height, 10))), "write height")
}
