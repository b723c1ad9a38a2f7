package ledger

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
)

// Signer signs transaction hashes.
type Signer interface {
	Sign(hash string) (string, error)
	Verify(hash, signature string) bool
}

// HMACSigner tags a transaction hash with a keyed hash.
// Anyone holding the key can forge tags, so it is not authentication.
type HMACSigner struct {
	key []byte
}

func NewHMACSigner(secret string) *HMACSigner {
	return &HMACSigner{key: []byte(secret)}
}

func (s *HMACSigner) Sign(hash string) (string, error) {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(hash))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

func (s *HMACSigner) Verify(hash, signature string) bool {
	expected, _ := s.Sign(hash)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// SchnorrSigner produces BIP-340 signatures over secp256k1.
type SchnorrSigner struct {
	key *btcec.PrivateKey
}

// NewSchnorrSigner loads a hex encoded 32 byte private key, or generates one when privKeyHex is empty.
func NewSchnorrSigner(privKeyHex string) (*SchnorrSigner, error) {
	if privKeyHex == "" {
		key, err := btcec.NewPrivateKey()
		if err != nil {
			return nil, err
		}
		return &SchnorrSigner{key: key}, nil
	}
	raw, err := hex.DecodeString(privKeyHex)
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}
	if len(raw) != btcec.PrivKeyBytesLen {
		return nil, fmt.Errorf("private key must be %d bytes, got %d", btcec.PrivKeyBytesLen, len(raw))
	}
	key, _ := btcec.PrivKeyFromBytes(raw)
	return &SchnorrSigner{key: key}, nil
}

// PublicKey returns the x-only public key, hex encoded.
func (s *SchnorrSigner) PublicKey() string {
	return hex.EncodeToString(schnorr.SerializePubKey(s.key.PubKey()))
}

func (s *SchnorrSigner) Sign(hash string) (string, error) {
	digest, err := digestOf(hash)
	if err != nil {
		return "", err
	}
	sig, err := schnorr.Sign(s.key, digest)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(sig.Serialize()), nil
}

func (s *SchnorrSigner) Verify(hash, signature string) bool {
	digest, err := digestOf(hash)
	if err != nil {
		return false
	}
	raw, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	sig, err := schnorr.ParseSignature(raw)
	if err != nil {
		return false
	}
	return sig.Verify(digest, s.key.PubKey())
}

// digestOf turns a hex transaction hash back into the 32 bytes BIP-340 signs.
func digestOf(hash string) ([]byte, error) {
	digest, err := hex.DecodeString(hash)
	if err != nil {
		return nil, fmt.Errorf("decode hash: %w", err)
	}
	if len(digest) != sha256.Size {
		return nil, errors.New("hash must be a 32 byte digest")
	}
	return digest, nil
}
