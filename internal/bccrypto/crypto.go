// Package bccrypto wraps the secp256k1 keypair, signing, and address
// derivation primitives the rest of the chain is built on. It is the one
// package allowed to touch a raw private key; every other package speaks in
// terms of Address and opaque signature bytes.
package bccrypto

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/sha3"

	"nexapow/internal/chainerrors"
)

// AddressLength is the size in bytes of a chain address.
const AddressLength = 20

// Address is a 20-byte account identifier. Its string form is "0x" followed
// by 40 lowercase hex characters.
type Address [AddressLength]byte

// ZeroAddress is the reserved sentinel used as the "to" field of
// contract-creation transactions. No private key controls it.
var ZeroAddress = Address{}

// String renders the address in "0x"-prefixed lowercase hex.
func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// IsZero reports whether a equals ZeroAddress.
func (a Address) IsZero() bool {
	return a == ZeroAddress
}

// ParseAddress decodes a "0x"-prefixed 40-hex-character address string.
func ParseAddress(s string) (Address, error) {
	var a Address
	if len(s) != 2+2*AddressLength || s[0:2] != "0x" {
		return a, fmt.Errorf("address %q has wrong length or prefix", s)
	}
	b, err := hex.DecodeString(s[2:])
	if err != nil {
		return a, fmt.Errorf("decoding address %q: %w", s, err)
	}
	copy(a[:], b)
	return a, nil
}

// PrivateKey is a 32-byte secp256k1 signing key.
type PrivateKey struct {
	key *secp256k1.PrivateKey
}

// NewPrivateKey wraps 32 raw key bytes, e.g. the seeded genesis keys of the
// form "0x" + 63*"0" + "1".
func NewPrivateKey(raw []byte) (*PrivateKey, error) {
	if len(raw) != 32 {
		return nil, fmt.Errorf("%w: private key must be 32 bytes, got %d", chainerrors.ErrInvalidPrivateKey, len(raw))
	}
	priv := secp256k1.PrivKeyFromBytes(raw)
	if priv == nil {
		return nil, chainerrors.ErrInvalidPrivateKey
	}
	return &PrivateKey{key: priv}, nil
}

// ParsePrivateKeyHex decodes a "0x"-prefixed 64-hex-character private key,
// the form used by state.json's account records and wallet CLIs.
func ParsePrivateKeyHex(s string) (*PrivateKey, error) {
	if len(s) != 2+2*32 || s[0:2] != "0x" {
		return nil, fmt.Errorf("%w: wrong length or prefix", chainerrors.ErrInvalidPrivateKey)
	}
	raw, err := hex.DecodeString(s[2:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", chainerrors.ErrInvalidPrivateKey, err)
	}
	return NewPrivateKey(raw)
}

// GeneratePrivateKey produces a new random signing key, for wallet CLIs that
// need to mint a fresh externally-owned account.
func GeneratePrivateKey() (*PrivateKey, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generating private key: %w", err)
	}
	return &PrivateKey{key: priv}, nil
}

// Bytes returns the raw 32-byte scalar.
func (p *PrivateKey) Bytes() []byte {
	return p.key.Serialize()
}

// Address derives the account address controlled by this key: Keccak-256 of
// the uncompressed public key, low 20 bytes.
func (p *PrivateKey) Address() Address {
	return publicKeyToAddress(p.key.PubKey())
}

func publicKeyToAddress(pub *secp256k1.PublicKey) Address {
	h := sha3.NewLegacyKeccak256()
	h.Write(pub.SerializeUncompressed()[1:])
	digest := h.Sum(nil)
	var a Address
	copy(a[:], digest[len(digest)-AddressLength:])
	return a
}

// personalMessageDigest implements the "defunct" signing envelope: SHA-256
// of "\x19Nexapow Signed Message:\n" || len(message) || message. Signing
// and recovery must use the identical envelope.
func personalMessageDigest(message []byte) [32]byte {
	prefix := fmt.Sprintf("\x19Nexapow Signed Message:\n%d", len(message))
	buf := make([]byte, 0, len(prefix)+len(message))
	buf = append(buf, prefix...)
	buf = append(buf, message...)
	return sha256.Sum256(buf)
}

// Sign produces a signature over the personal-message envelope of message.
// The signature is a 65-byte compact recoverable ECDSA signature.
func Sign(priv *PrivateKey, message []byte) ([]byte, error) {
	digest := personalMessageDigest(message)
	sig := ecdsa.SignCompact(priv.key, digest[:], false)
	return sig, nil
}

// Recover returns the address that would have produced signature over
// message, or an error if the signature does not recover to any address.
func Recover(signature, message []byte) (Address, error) {
	if len(signature) != 65 {
		return Address{}, fmt.Errorf("%w: expected 65 bytes, got %d", chainerrors.ErrInvalidSignature, len(signature))
	}
	digest := personalMessageDigest(message)
	pub, _, err := ecdsa.RecoverCompact(signature, digest[:])
	if err != nil {
		return Address{}, fmt.Errorf("%w: %v", chainerrors.ErrRecoveryFailed, err)
	}
	return publicKeyToAddress(pub), nil
}

// SHA256 is the standard 32-byte digest used for transaction and block
// hashing (distinct from the personal-message envelope used for signing).
func SHA256(data []byte) [32]byte {
	return sha256.Sum256(data)
}

// SHA256Hex hashes data and renders it as lowercase hex, the form used for
// tx_hash and block hashes on the wire.
func SHA256Hex(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// DeployAddress computes the deterministic contract address created when
// account `from` deploys with nonce `nonce`: "0x" + sha256(from || nonce)[:40].
func DeployAddress(from Address, nonce uint64) Address {
	preimage := from.String() + strconv.FormatUint(nonce, 10)
	digest := sha256.Sum256([]byte(preimage))
	var a Address
	copy(a[:], digest[:AddressLength])
	return a
}
