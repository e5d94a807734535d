package core

import (
	"fmt"
	"strings"

	"nexapow/internal/bccrypto"
)

// Hash computes the block's hash. A snapshot-stub block (Nonce == -1) has no
// history to hash over: its PrevHash field *is* its hash, as recorded at
// snapshot time. Otherwise the hash commits to the header fields and the
// newline-joined tx hashes of every transaction in the block, in order —
// permuting the transaction list changes the hash.
func (b *Block) Hash() string {
	if b.IsSnapshotStub() {
		return b.PrevHash
	}
	hashes := make([]string, len(b.Txs))
	for i := range b.Txs {
		hashes[i] = b.Txs[i].TxHash()
	}
	txHashes := strings.Join(hashes, "\n")
	preimage := fmt.Sprintf("Block %d, Timestamp: %d, Nonce: %d, PrevHash: %s, Tx Hashes: %s",
		b.Number, b.Time, b.Nonce, b.PrevHash, txHashes)
	return bccrypto.SHA256Hex([]byte(preimage))
}
