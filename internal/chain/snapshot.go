package chain

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"

	"nexapow/internal/chainerrors"
	"nexapow/internal/core"
	"nexapow/internal/state"
)

// Snapshot is the persisted shape of state.json: enough to bootstrap a new
// node without replaying history. Difficulty is stored as a rational string
// ("a/b", or "a" when whole) and Target as a hex string rather than JSON
// numbers so no precision is lost in the round trip.
type Snapshot struct {
	Difficulty              string         `json:"difficulty"`
	Target                  string         `json:"target"`
	RecalculateEveryXBlocks uint64         `json:"recalculate_every_x_blocks"`
	XthLastBlockTime        int64          `json:"xth_last_block_time"`
	LastBlockTime           int64          `json:"last_block_time"`
	LastBlockNumber         uint64         `json:"last_block_number"`
	LastBlockHash           string         `json:"last_block_hash"`
	GenesisTime             int64          `json:"genesis_time"`
	ExpectedBlockTime       int64          `json:"expected_block_time"`
	Accounts                []core.Account `json:"accounts"`
}

// Save captures the current chain as a Snapshot.
func (c *Chain) Save() (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tip, err := c.tipLocked()
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		Difficulty:              c.difficulty.RatString(),
		Target:                  c.target.Hex(),
		RecalculateEveryXBlocks: c.recalculateEveryXBlocks,
		XthLastBlockTime:        c.xthLastBlockTime,
		LastBlockTime:           tip.Time,
		LastBlockNumber:         tip.Number,
		LastBlockHash:           tip.Hash(),
		GenesisTime:             c.genesisTime,
		ExpectedBlockTime:       c.expectedBlockTime,
		Accounts:                c.Accounts.All(),
	}, nil
}

// SaveToFile writes the snapshot as JSON to path (conventionally state.json).
func (c *Chain) SaveToFile(path string) error {
	snap, err := c.Save()
	if err != nil {
		return err
	}
	b, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshalling snapshot: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("writing snapshot to %s: %w", path, err)
	}
	return nil
}

// LoadFromSnapshot builds a Chain from a received or on-disk Snapshot. The
// chain's single block is a snapshot-stub (Nonce == -1, PrevHash holding the
// stub's own hash).
func LoadFromSnapshot(snap Snapshot) (*Chain, error) {
	difficulty, ok := new(big.Rat).SetString(snap.Difficulty)
	if !ok {
		return nil, fmt.Errorf("%w: difficulty %q", chainerrors.ErrSnapshotMalformed, snap.Difficulty)
	}
	stub := core.Block{
		Number:   snap.LastBlockNumber,
		Time:     snap.LastBlockTime,
		Nonce:    -1,
		PrevHash: snap.LastBlockHash,
	}
	cfg := Config{
		Difficulty:              difficulty,
		ExpectedBlockTime:       snap.ExpectedBlockTime,
		RecalculateEveryXBlocks: snap.RecalculateEveryXBlocks,
		XthLastBlockTime:        snap.XthLastBlockTime,
		GenesisTime:             snap.GenesisTime,
	}
	c := newChain(cfg, state.NewAccountStore(snap.Accounts), stub)
	c.synced = true
	return c, nil
}

// LoadFromFile reads and parses a state.json snapshot file.
func LoadFromFile(path string) (*Chain, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot %s: %w", path, err)
	}
	var snap Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", chainerrors.ErrSnapshotMalformed, err)
	}
	return LoadFromSnapshot(snap)
}

// LoadSnapshotInto replaces c's state with snap's, for a node that was
// waiting on --peers and just received {state: snapshot} from the first
// peer it connected to. It is a no-op if c is already synced.
func (c *Chain) LoadSnapshotInto(snap Snapshot) error {
	c.mu.Lock()
	if c.synced {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	loaded, err := LoadFromSnapshot(snap)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.blocks = loaded.blocks
	c.Accounts = loaded.Accounts
	c.difficulty = loaded.difficulty
	c.target = loaded.target
	c.expectedBlockTime = loaded.expectedBlockTime
	c.recalculateEveryXBlocks = loaded.recalculateEveryXBlocks
	c.xthLastBlockTime = loaded.xthLastBlockTime
	c.genesisTime = loaded.genesisTime
	c.synced = true
	return nil
}
