package ledger

import (
	"context"
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/common"

	"tranche-node/crypto"
)

type SignRequest struct {
	Summary string
	Hash    []byte
}

// Signer is the signing capability of a session. Sign returns a 65 byte [R || S || V] signature
// or ErrSignatureRejected.
type Signer interface {
	Address() common.Address
	Sign(ctx context.Context, request SignRequest) ([]byte, error)
}

type KeySigner struct {
	key *ecdsa.PrivateKey
}

func NewKeySigner(key *ecdsa.PrivateKey) *KeySigner {
	return &KeySigner{key: key}
}

func (signer *KeySigner) Address() common.Address {
	return crypto.Address(signer.key)
}

func (signer *KeySigner) Sign(ctx context.Context, request SignRequest) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return crypto.Sign(signer.key, request.Hash)
}

// ConfirmSigner asks before every signature.
type ConfirmSigner struct {
	Signer
	Confirm func(ctx context.Context, summary string) (bool, error)
}

func (signer *ConfirmSigner) Sign(ctx context.Context, request SignRequest) ([]byte, error) {
	confirmed, err := signer.Confirm(ctx, request.Summary)
	if err != nil {
		return nil, err
	}
	if !confirmed {
		return nil, ErrSignatureRejected
	}
	return signer.Signer.Sign(ctx, request)
}
