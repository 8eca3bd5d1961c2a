package crypto

import (
	"crypto/ecdsa"
	"encoding/hex"
	"encoding/pem"
	"io/ioutil"
	"strings"

	"github.com/btcsuite/btcd/btcec"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

const (
	// openssl "EC PRIVATE KEY" DER for secp256k1 keeps the scalar at a fixed offset
	privateKeyStart = 7
	privateKeyEnd   = 39

	KeyLength       = 32
	HashLength      = 32
	SignatureLength = 65

	compactOffset = 27
)

func GenerateKey() (*ecdsa.PrivateKey, error) {
	key, err := btcec.NewPrivateKey(btcec.S256())
	if err != nil {
		return nil, errors.Wrap(err, "generate secp256k1 key")
	}
	return key.ToECDSA(), nil
}

// LoadKey reads a secp256k1 private key stored either as hex (optionally 0x prefixed) or as an
// openssl PEM file.
func LoadKey(keyFile string) (*ecdsa.PrivateKey, error) {
	content, err := ioutil.ReadFile(keyFile)
	if err != nil {
		return nil, errors.Wrapf(err, "read key file %s", keyFile)
	}
	if block, _ := pem.Decode(content); block != nil {
		if len(block.Bytes) < privateKeyEnd {
			return nil, errors.Errorf("pem key in %s is too short", keyFile)
		}
		return ParseKey(block.Bytes[privateKeyStart:privateKeyEnd])
	}
	text := strings.TrimPrefix(strings.TrimSpace(string(content)), "0x")
	raw, err := hex.DecodeString(text)
	if err != nil {
		return nil, errors.Wrapf(err, "decode hex key in %s", keyFile)
	}
	return ParseKey(raw)
}

func SaveKey(keyFile string, key *ecdsa.PrivateKey) error {
	encoded := hex.EncodeToString(ethcrypto.FromECDSA(key))
	return errors.Wrapf(ioutil.WriteFile(keyFile, []byte(encoded+"\n"), 0600), "write key file %s", keyFile)
}

func ParseKey(raw []byte) (*ecdsa.PrivateKey, error) {
	if len(raw) != KeyLength {
		return nil, errors.Errorf("invalid key length %d", len(raw))
	}
	key, _ := btcec.PrivKeyFromBytes(btcec.S256(), raw)
	return key.ToECDSA(), nil
}

func Address(key *ecdsa.PrivateKey) common.Address {
	return ethcrypto.PubkeyToAddress(key.PublicKey)
}

// Sign produces a 65 byte recoverable signature [R || S || V] with V in {0, 1}, the layout
// go-ethereum expects for transaction signatures.
func Sign(key *ecdsa.PrivateKey, hash []byte) ([]byte, error) {
	if len(hash) != HashLength {
		return nil, errors.Errorf("hash is required to be exactly %d bytes (%d)", HashLength, len(hash))
	}
	priv, _ := btcec.PrivKeyFromBytes(btcec.S256(), ethcrypto.FromECDSA(key))
	compact, err := btcec.SignCompact(btcec.S256(), priv, hash, false)
	if err != nil {
		return nil, errors.Wrap(err, "sign hash")
	}
	signature := make([]byte, SignatureLength)
	copy(signature, compact[1:])
	signature[SignatureLength-1] = compact[0] - compactOffset
	return signature, nil
}

func Recover(hash, signature []byte) (common.Address, error) {
	if len(signature) != SignatureLength {
		return common.Address{}, errors.Errorf("invalid signature length %d", len(signature))
	}
	if len(hash) != HashLength {
		return common.Address{}, errors.Errorf("invalid hash length %d", len(hash))
	}
	compact := make([]byte, SignatureLength)
	compact[0] = signature[SignatureLength-1] + compactOffset
	copy(compact[1:], signature[:SignatureLength-1])
	pub, _, err := btcec.RecoverCompact(btcec.S256(), compact, hash)
	if err != nil {
		return common.Address{}, errors.Wrap(err, "recover public key")
	}
	return ethcrypto.PubkeyToAddress(*pub.ToECDSA()), nil
}

func Verify(address common.Address, hash, signature []byte) bool {
	signer, err := Recover(hash, signature)
	if err != nil {
		return false
	}
	return signer == address
}
