// Package core defines the chain's wire-level data model: accounts,
// transactions, and blocks, along with the canonical hashing and signing
// rules that make them self-verifying. It has no knowledge of the account
// table, mining, or networking — those live in state, miner, and p2p.
package core

import (
	"encoding/json"
	"fmt"

	"nexapow/internal/bccrypto"
)

// Account is the unified record for both externally-owned accounts (EOAs)
// and contracts. An EOA has a non-empty PrivateKey and empty Code/Storage;
// a contract has empty PrivateKey and non-empty Code. The zero address and
// remote EOAs have neither.
type Account struct {
	Address    bccrypto.Address `json:"address"`
	PrivateKey string           `json:"private_key,omitempty"` // "0x"+64 hex, empty for remote EOAs and contracts
	Nonce      uint64           `json:"nonce"`
	Balance    uint64           `json:"balance"`
	Code       string           `json:"code,omitempty"`
	Storage    map[string]int64 `json:"storage,omitempty"`
}

// IsContract reports whether this account holds deployed code.
func (a *Account) IsContract() bool {
	return a.Code != ""
}

// IsLocal reports whether this account's private key is held locally.
func (a *Account) IsLocal() bool {
	return a.PrivateKey != ""
}

// TxData is the structured payload carried by a transaction. Exactly one of
// three shapes is recognized: the zero value (pure value transfer), a
// constructor shape (Code+Variables, contract creation, only valid when To
// is the zero address), or a call shape (Call, contract invocation, only
// valid when the recipient has non-empty code).
type TxData struct {
	Code      string           `json:"code,omitempty"`
	Variables map[string]int64 `json:"variables,omitempty"`
	Call      string           `json:"call,omitempty"`
}

// IsEmpty reports whether this is a pure value transfer with no contract
// payload.
func (d TxData) IsEmpty() bool {
	return d.Code == "" && len(d.Variables) == 0 && d.Call == ""
}

// IsConstructor reports whether this payload deploys a contract.
func (d TxData) IsConstructor() bool {
	return d.Code != ""
}

// IsCall reports whether this payload invokes an existing contract.
func (d TxData) IsCall() bool {
	return d.Call != "" && d.Code == ""
}

// canonicalJSON renders d the same way on every node: encoding/json writes
// struct fields in declaration order and sorts map keys, so this is
// deterministic across platforms and Go versions.
func (d TxData) canonicalJSON() string {
	b, err := json.Marshal(d)
	if err != nil {
		// TxData contains only strings, a map of strings to int64s — this
		// cannot fail in practice.
		panic(fmt.Sprintf("marshalling tx data: %v", err))
	}
	return string(b)
}

// Transaction is a signed value/data transfer. It is self-verifying: given
// only its own fields, VerifySignature recomputes whether From actually
// signed it.
type Transaction struct {
	From      bccrypto.Address `json:"from"`
	To        bccrypto.Address `json:"to"`
	Amount    uint64           `json:"amount"`
	Nonce     uint64           `json:"nonce"`
	GasPrice  uint64           `json:"gas_price"`
	Data      TxData           `json:"data"`
	Signature []byte           `json:"signature"`
}

// canonicalMessage builds the exact string that is signed and hashed:
// from‖to‖"("amount")("nonce")("gas_price")("data_json")".
func (tx *Transaction) canonicalMessage() []byte {
	return []byte(fmt.Sprintf("%s%s(%d)(%d)(%d)(%s)",
		tx.From.String(), tx.To.String(), tx.Amount, tx.Nonce, tx.GasPrice, tx.Data.canonicalJSON()))
}

// Block is a hash-linked batch of transactions.
type Block struct {
	Number   uint64        `json:"number"`
	Time     int64         `json:"timestamp"`
	Nonce    int64         `json:"nonce"`
	PrevHash string        `json:"prev_hash"`
	Txs      []Transaction `json:"txs"`
}

// IsSnapshotStub reports whether this block stands in for history that was
// loaded from a state snapshot rather than replayed. A stub carries
// Nonce == -1 and its PrevHash field holds its own hash.
func (b *Block) IsSnapshotStub() bool {
	return b.Nonce == -1
}
