// Package chain is the replicated state machine: it owns the block list,
// the account table, the difficulty/target window, and the pending-tx and
// new-block buffers shared between the network reader and the mining loop.
// Every mutation goes through Chain's mutex so the two threads never
// observe a torn update.
package chain

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"sync"

	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"

	"nexapow/internal/chainerrors"
	"nexapow/internal/core"
	"nexapow/internal/state"
)

// maxUint256 is 2^256 - 1, the numerator of target = (2^256-1) / difficulty.
var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// Chain is the node's view of the replicated state machine.
type Chain struct {
	mu sync.Mutex

	blocks   []core.Block
	Accounts *state.AccountStore

	difficulty *big.Rat
	target     *uint256.Int

	expectedBlockTime       int64
	recalculateEveryXBlocks uint64
	xthLastBlockTime        int64
	genesisTime             int64

	pendingTxs []core.Transaction
	newBlocks  []core.Block
	synced     bool

	log *logrus.Entry
}

// Config carries the tunable parameters a fresh chain or a loaded snapshot
// is constructed with.
type Config struct {
	Difficulty              *big.Rat
	ExpectedBlockTime       int64
	RecalculateEveryXBlocks uint64
	XthLastBlockTime        int64
	GenesisTime             int64
}

func newChain(cfg Config, accounts *state.AccountStore, genesis core.Block) *Chain {
	c := &Chain{
		blocks:                  []core.Block{genesis},
		Accounts:                accounts,
		difficulty:              cfg.Difficulty,
		expectedBlockTime:       cfg.ExpectedBlockTime,
		recalculateEveryXBlocks: cfg.RecalculateEveryXBlocks,
		xthLastBlockTime:        cfg.XthLastBlockTime,
		genesisTime:             cfg.GenesisTime,
		log:                     logrus.WithField("component", "chain"),
	}
	c.recomputeTarget()
	return c
}

// New constructs an empty, not-yet-synced chain for a node that was started
// with --peers: it has no blocks or accounts until a snapshot arrives.
func New() *Chain {
	return &Chain{
		log: logrus.WithField("component", "chain"),
	}
}

func (c *Chain) recomputeTarget() {
	t := new(big.Int).Mul(maxUint256, c.difficulty.Denom())
	t.Quo(t, c.difficulty.Num())
	if t.Sign() < 0 {
		t.SetInt64(0)
	}
	if t.BitLen() > 256 {
		t.Set(maxUint256)
	}
	target, _ := uint256.FromBig(t)
	c.target = target
}

// Tip returns the most recently appended block.
func (c *Chain) Tip() (core.Block, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tipLocked()
}

func (c *Chain) tipLocked() (core.Block, error) {
	if len(c.blocks) == 0 {
		return core.Block{}, chainerrors.ErrEmptyChain
	}
	return c.blocks[len(c.blocks)-1], nil
}

// Height returns the number of appended blocks (including the genesis stub).
func (c *Chain) Height() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.blocks)
}

// Target returns the current 256-bit mining target.
func (c *Chain) Target() *uint256.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return new(uint256.Int).Set(c.target)
}

// Difficulty returns the current difficulty as a rational.
func (c *Chain) Difficulty() *big.Rat {
	c.mu.Lock()
	defer c.mu.Unlock()
	return new(big.Rat).Set(c.difficulty)
}

// Synced reports whether this node has bootstrapped from a peer snapshot
// (or was started as the first node on a fresh chain).
func (c *Chain) Synced() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.synced
}

// HashBelowTarget reports whether a hex-encoded SHA-256 digest, read as a
// 256-bit big-endian integer, is strictly below target. Exported so the
// miner can test candidate nonces without re-deriving target arithmetic.
func HashBelowTarget(hashHex string, target *uint256.Int) bool {
	raw, err := hex.DecodeString(hashHex)
	if err != nil || len(raw) != 32 {
		return false
	}
	var h uint256.Int
	h.SetBytes(raw)
	return h.Lt(target)
}

func hashBelowTarget(hashHex string, target *uint256.Int) bool {
	return HashBelowTarget(hashHex, target)
}

// AppendPendingTx adds a gossiped or locally submitted transaction to the
// FIFO pending buffer.
func (c *Chain) AppendPendingTx(tx core.Transaction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pendingTxs = append(c.pendingTxs, tx)
}

// PendingTxs returns a copy of the current pending buffer, oldest first.
func (c *Chain) PendingTxs() []core.Transaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]core.Transaction, len(c.pendingTxs))
	copy(out, c.pendingTxs)
	return out
}

// removeIncludedTxsLocked drops only the transactions that were actually
// included in an appended block, leaving the rest pending. A preempting
// peer block must not discard transactions the local miner had queued but
// never got to include.
func (c *Chain) removeIncludedTxsLocked(included []core.Transaction) {
	if len(included) == 0 {
		return
	}
	includedHashes := make(map[string]struct{}, len(included))
	for i := range included {
		includedHashes[included[i].TxHash()] = struct{}{}
	}
	kept := c.pendingTxs[:0:0]
	for _, tx := range c.pendingTxs {
		if _, gone := includedHashes[tx.TxHash()]; !gone {
			kept = append(kept, tx)
		}
	}
	c.pendingTxs = kept
}

// BufferPeerBlock queues a block announced by a peer for the mining loop to
// apply on its next iteration.
func (c *Chain) BufferPeerBlock(b core.Block) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.newBlocks = append(c.newBlocks, b)
}

// HasBufferedBlocks reports whether a peer block is waiting to be applied.
func (c *Chain) HasBufferedBlocks() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.newBlocks) > 0
}

// AppendNewBlocks empties the peer-block buffer, then executes and commits
// the taken blocks in the order received. It stops at the first block that
// fails to apply; the blocks after it are not applied and are not re-buffered.
func (c *Chain) AppendNewBlocks() error {
	c.mu.Lock()
	buffered := c.newBlocks
	c.newBlocks = nil
	c.mu.Unlock()

	if len(buffered) == 0 {
		c.log.Debug("no buffered peer blocks to add")
		return nil
	}
	c.log.Info("appending blocks found by peers")
	for _, b := range buffered {
		if err := c.ApplyBlock(b); err != nil {
			return fmt.Errorf("applying buffered peer block %d: %w", b.Number, err)
		}
	}
	return nil
}
