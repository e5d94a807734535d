// Package miner runs the nonce-search loop: assemble a candidate block on
// top of the current tip, search for a nonce whose block hash satisfies the
// target, and either win (apply, then hand the block to the caller's
// broadcast hook) or get preempted by a peer's block arriving mid-search.
package miner

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"

	"nexapow/internal/chain"
	"nexapow/internal/core"
)

// Miner owns the cooperative cancellation flag a peer announcement raises
// and the miner itself resets after handling.
type Miner struct {
	chain *chain.Chain

	blockFoundByPeer atomic.Bool

	// Broadcast is called with every block this miner successfully applies,
	// so the caller can gossip it to peers. May be nil.
	Broadcast func(core.Block)

	log *logrus.Entry
}

func New(c *chain.Chain) *Miner {
	return &Miner{
		chain: c,
		log:   logrus.WithField("component", "miner"),
	}
}

// NotifyPeerBlock raises the cancellation flag. Called by the peer layer
// whenever a {new_block} message arrives, whatever the block's height.
func (m *Miner) NotifyPeerBlock() {
	m.blockFoundByPeer.Store(true)
}

// Run composes and mines candidate blocks until ctx is cancelled. Each
// abandoned search ingests whatever peer blocks accumulated in the
// meantime before composing the next candidate, so the miner always builds
// on the true tip.
func (m *Miner) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		tip, err := m.chain.Tip()
		if err != nil {
			return err
		}
		pending := m.chain.PendingTxs()
		target := m.chain.Target()

		candidate := core.Block{
			Number:   tip.Number + 1,
			PrevHash: tip.Hash(),
			Txs:      pending,
		}
		m.log.WithField("number", candidate.Number).Info("searching for nonce")

		found, ok := m.searchNonce(ctx, &candidate, target)
		if !ok {
			m.blockFoundByPeer.Store(false)
			if err := m.chain.AppendNewBlocks(); err != nil {
				m.log.WithError(err).Error("failed to apply peer block after preemption")
			}
			continue
		}

		if err := m.chain.ApplyBlock(found); err != nil {
			m.log.WithError(err).Warn("mined block rejected on apply, retrying")
			continue
		}
		m.log.WithField("number", found.Number).Info("mined and appended block")
		if m.Broadcast != nil {
			m.Broadcast(found)
		}
	}
}

// searchNonce increments the nonce from zero, refreshing the timestamp each
// attempt, until either a winning hash is found or the flag is raised by a
// peer's block. Returns ok=false on preemption or context cancellation.
func (m *Miner) searchNonce(ctx context.Context, candidate *core.Block, target *uint256.Int) (core.Block, bool) {
	var i int64
	for {
		select {
		case <-ctx.Done():
			return core.Block{}, false
		default:
		}
		if m.blockFoundByPeer.Load() {
			return core.Block{}, false
		}
		candidate.Nonce = i
		candidate.Time = time.Now().Unix()
		if chain.HashBelowTarget(candidate.Hash(), target) {
			return *candidate, true
		}
		i++
	}
}
