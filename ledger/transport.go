package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	abcicli "github.com/tendermint/tendermint/abci/client"
	tendermint "github.com/tendermint/tendermint/abci/types"
	rpchttp "github.com/tendermint/tendermint/rpc/client/http"
	"github.com/tendermint/tendermint/types"
)

const defaultPollInterval = 500 * time.Millisecond

func reference(tx []byte) string {
	return fmt.Sprintf("%X", types.Tx(tx).Hash())
}

// ------------------------------------------------------------------------------------------------------------------- //
// LOCAL

// LocalTransport drives an in-process application. Every transaction gets its own block once
// its Pending is waited on.
type LocalTransport struct {
	client abcicli.Client
	blocks sync.Mutex
	height int64
}

func NewLocalTransport(app tendermint.Application) *LocalTransport {
	return &LocalTransport{client: abcicli.NewLocalClient(nil, app)}
}

func (t *LocalTransport) Query(ctx context.Context, data []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res, err := t.client.QuerySync(tendermint.RequestQuery{Data: data})
	if err != nil {
		return nil, err
	}
	if res.Code != 0 {
		return nil, errors.Errorf("query failed with code %d: %s", res.Code, res.Log)
	}
	return res.Value, nil
}

func (t *LocalTransport) Broadcast(ctx context.Context, tx []byte) (Pending, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res, err := t.client.CheckTxSync(tendermint.RequestCheckTx{Tx: tx})
	if err != nil {
		return nil, err
	}
	if res.Code != 0 {
		return nil, &RejectionError{Reason: res.Log, Reference: reference(tx)}
	}
	return &localPending{transport: t, tx: tx, reference: reference(tx)}, nil
}

func (t *LocalTransport) deliver(tx []byte) (*Receipt, error) {
	t.blocks.Lock()
	defer t.blocks.Unlock()

	height := t.height + 1
	if _, err := t.client.BeginBlockSync(tendermint.RequestBeginBlock{}); err != nil {
		return nil, err
	}
	res, err := t.client.DeliverTxSync(tendermint.RequestDeliverTx{Tx: tx})
	if err != nil {
		return nil, err
	}
	if _, err := t.client.EndBlockSync(tendermint.RequestEndBlock{Height: height}); err != nil {
		return nil, err
	}
	if _, err := t.client.CommitSync(); err != nil {
		return nil, err
	}
	t.height = height
	if res.Code != 0 {
		return nil, &RejectionError{Reason: res.Log, Reference: reference(tx)}
	}
	return &Receipt{Reference: reference(tx), Height: uint64(height)}, nil
}

type localPending struct {
	transport *LocalTransport
	tx        []byte
	reference string

	once    sync.Once
	receipt *Receipt
	err     error
}

func (p *localPending) Reference() string {
	return p.reference
}

func (p *localPending) Wait(ctx context.Context) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.once.Do(func() {
		p.receipt, p.err = p.transport.deliver(p.tx)
	})
	return p.receipt, p.err
}

// ------------------------------------------------------------------------------------------------------------------- //
// RPC

// RPCTransport talks to a running devnet node over its tendermint RPC endpoint.
type RPCTransport struct {
	client       *rpchttp.HTTP
	PollInterval time.Duration
}

func NewRPCTransport(remote string) (*RPCTransport, error) {
	client, err := rpchttp.New(remote, "/websocket")
	if err != nil {
		return nil, errors.Wrapf(err, "connect to %s", remote)
	}
	return &RPCTransport{client: client, PollInterval: defaultPollInterval}, nil
}

func (t *RPCTransport) Query(ctx context.Context, data []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res, err := t.client.ABCIQuery("", data)
	if err != nil {
		return nil, err
	}
	if res.Response.Code != 0 {
		return nil, errors.Errorf("query failed with code %d: %s", res.Response.Code, res.Response.Log)
	}
	return res.Response.Value, nil
}

func (t *RPCTransport) Broadcast(ctx context.Context, tx []byte) (Pending, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res, err := t.client.BroadcastTxSync(types.Tx(tx))
	if err != nil {
		return nil, errors.Wrap(err, "broadcast transaction")
	}
	if res.Code != 0 {
		return nil, &RejectionError{Reason: res.Log, Reference: reference(tx)}
	}
	return &rpcPending{transport: t, hash: res.Hash, reference: reference(tx)}, nil
}

type rpcPending struct {
	transport *RPCTransport
	hash      []byte
	reference string
}

func (p *rpcPending) Reference() string {
	return p.reference
}

func (p *rpcPending) Wait(ctx context.Context) (*Receipt, error) {
	ticker := time.NewTicker(p.transport.PollInterval)
	defer ticker.Stop()
	for {
		res, err := p.transport.client.Tx(p.hash, false)
		if err == nil {
			if res.TxResult.Code != 0 {
				return nil, &RejectionError{Reason: res.TxResult.Log, Reference: p.reference}
			}
			return &Receipt{Reference: p.reference, Height: uint64(res.Height)}, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
