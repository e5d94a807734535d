package core

import (
	"nexapow/internal/bccrypto"
)

// NewSignedTransaction builds the canonical message for the given fields,
// signs it with priv, and returns the finished, self-verifying transaction.
func NewSignedTransaction(priv *bccrypto.PrivateKey, to bccrypto.Address, amount, nonce, gasPrice uint64, data TxData) (*Transaction, error) {
	tx := &Transaction{
		From:     priv.Address(),
		To:       to,
		Amount:   amount,
		Nonce:    nonce,
		GasPrice: gasPrice,
		Data:     data,
	}
	sig, err := bccrypto.Sign(priv, tx.canonicalMessage())
	if err != nil {
		return nil, err
	}
	tx.Signature = sig
	return tx, nil
}

// VerifySignature recomputes the canonical message, recovers the signing
// address, and reports whether it equals From. Any failure — malformed
// signature, recovery error, address mismatch — returns false; it never
// propagates an error past the transaction boundary.
func (tx *Transaction) VerifySignature() bool {
	recovered, err := bccrypto.Recover(tx.Signature, tx.canonicalMessage())
	if err != nil {
		return false
	}
	return recovered == tx.From
}

// TxHash is the SHA-256 hex digest of the canonical message, used to link
// transactions into a block hash. It is distinct from the signing digest
// (which wraps the same message in a personal-message envelope) and is not
// used for signature verification.
func (tx *Transaction) TxHash() string {
	return bccrypto.SHA256Hex(tx.canonicalMessage())
}
