// Package wallet is the thin signing layer the CLIs sit on top of: load a
// private key from hex, look up its externally-owned account, and build
// signed transactions ready to gossip.
package wallet

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"nexapow/internal/bccrypto"
	"nexapow/internal/core"
)

// LoadPrivateKey parses a "0x"-prefixed 32-byte hex private key.
func LoadPrivateKey(hexKey string) (*bccrypto.PrivateKey, error) {
	priv, err := bccrypto.ParsePrivateKeyHex(hexKey)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	return priv, nil
}

// LoadPrivateKeyFromAccountsFile reads a state.json-shaped snapshot file and
// returns the private key belonging to the given address, for CLIs that
// operate against a running node's seeded accounts.
func LoadPrivateKeyFromAccountsFile(path string, addr bccrypto.Address) (*bccrypto.PrivateKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading accounts file %s: %w", path, err)
	}
	var doc struct {
		Accounts []core.Account `json:"accounts"`
	}
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parsing accounts file %s: %w", path, err)
	}
	for _, a := range doc.Accounts {
		if a.Address == addr && a.PrivateKey != "" {
			return LoadPrivateKey(a.PrivateKey)
		}
	}
	return nil, fmt.Errorf("no local private key found for address %s in %s", addr, path)
}

// Transfer builds and signs a plain value-transfer transaction.
func Transfer(priv *bccrypto.PrivateKey, to bccrypto.Address, amount, nonce, gasPrice uint64) (*core.Transaction, error) {
	return core.NewSignedTransaction(priv, to, amount, nonce, gasPrice, core.TxData{})
}

// Deploy builds and signs a contract-creation transaction: to is the zero
// address, data carries the constructor source and its initial storage.
func Deploy(priv *bccrypto.PrivateKey, nonce, gasPrice uint64, constructorSrc string, initial map[string]int64) (*core.Transaction, error) {
	return core.NewSignedTransaction(priv, bccrypto.ZeroAddress, 0, nonce, gasPrice, core.TxData{
		Code:      constructorSrc,
		Variables: initial,
	})
}

// Call builds and signs a contract-invocation transaction against an
// already-deployed contract address.
func Call(priv *bccrypto.PrivateKey, contract bccrypto.Address, nonce, gasPrice uint64, invocationSrc string) (*core.Transaction, error) {
	return core.NewSignedTransaction(priv, contract, 0, nonce, gasPrice, core.TxData{
		Call: strings.TrimSpace(invocationSrc),
	})
}
