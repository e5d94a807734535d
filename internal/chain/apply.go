package chain

import (
	"fmt"
	"math/big"

	"nexapow/internal/bccrypto"
	"nexapow/internal/chainerrors"
	"nexapow/internal/core"
	"nexapow/internal/vm"
)

// ValidateBlock checks a block's header against the current tip: its hash
// must satisfy the current target, and — for every block past genesis —
// its number, prev_hash, and timestamp must chain correctly onto the
// current tip. Violations return a typed error; the caller must not commit
// a block that fails this check.
func (c *Chain) ValidateBlock(b core.Block) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.validateBlockLocked(b)
}

func (c *Chain) validateBlockLocked(b core.Block) error {
	if !hashBelowTarget(b.Hash(), c.target) {
		return fmt.Errorf("block %d: %w", b.Number, chainerrors.ErrHashAboveTarget)
	}
	if len(c.blocks) == 0 {
		return nil
	}
	tip := c.blocks[len(c.blocks)-1]
	if b.Number != tip.Number+1 {
		return fmt.Errorf("block %d: %w (tip is %d)", b.Number, chainerrors.ErrWrongBlockNumber, tip.Number)
	}
	if b.PrevHash != tip.Hash() {
		return fmt.Errorf("block %d: %w", b.Number, chainerrors.ErrWrongPrevHash)
	}
	if b.Time < tip.Time {
		return fmt.Errorf("block %d: %w", b.Number, chainerrors.ErrTimestampRegression)
	}
	return nil
}

// ExecuteBlock applies every transaction in b, in order, to the account
// table. A transaction that fails validation (unknown account, insufficient
// balance, bad signature, nonce mismatch) is logged and skipped — it does
// not abort the block. Returns the subset of transactions that were
// actually applied, for pending-buffer bookkeeping.
func (c *Chain) ExecuteBlock(b core.Block) ([]core.Transaction, error) {
	var applied []core.Transaction
	for i := range b.Txs {
		tx := b.Txs[i]
		ok, err := c.executeOne(&tx)
		if err != nil {
			return applied, fmt.Errorf("executing tx %d of block %d: %w", i, b.Number, err)
		}
		if ok {
			applied = append(applied, tx)
		}
	}
	return applied, nil
}

// skipTx logs reason (one of the typed errors in chainerrors) against tx and
// tells the caller to drop it without aborting the block.
func (c *Chain) skipTx(tx *core.Transaction, reason error) (bool, error) {
	c.log.WithField("tx", tx.TxHash()).WithError(reason).Warn("skipping tx")
	return false, nil
}

func (c *Chain) executeOne(tx *core.Transaction) (bool, error) {
	from, err := c.Accounts.Get(tx.From)
	if err != nil {
		return c.skipTx(tx, chainerrors.ErrUnknownAccount)
	}

	isCreation := tx.To == bccrypto.ZeroAddress && !tx.Data.IsEmpty()
	if tx.Data.IsConstructor() && tx.To != bccrypto.ZeroAddress {
		return c.skipTx(tx, chainerrors.ErrNotContractCreator)
	}
	if !isCreation && !c.Accounts.Exists(tx.To) {
		return c.skipTx(tx, chainerrors.ErrUnknownAccount)
	}

	if tx.Amount > from.Balance {
		return c.skipTx(tx, chainerrors.ErrInsufficientFunds)
	}
	if !tx.VerifySignature() {
		return c.skipTx(tx, chainerrors.ErrBadSignature)
	}
	if tx.Nonce != from.Nonce {
		return c.skipTx(tx, chainerrors.ErrNonceMismatch)
	}

	if err := c.Accounts.Mutate(tx.From, func(a *core.Account) {
		a.Balance -= tx.Amount
		a.Nonce++
	}); err != nil {
		return false, err
	}
	if err := c.Accounts.Mutate(tx.To, func(a *core.Account) { a.Balance += tx.Amount }); err != nil {
		return false, err
	}

	if isCreation {
		if err := c.deployContract(tx); err != nil {
			return false, fmt.Errorf("deploying contract: %w", err)
		}
		return true, nil
	}

	to, err := c.Accounts.Get(tx.To)
	if err != nil {
		return false, err
	}
	if to.IsContract() && tx.Data.IsCall() {
		if err := c.callContract(tx, to); err != nil {
			return false, fmt.Errorf("calling contract: %w", err)
		}
	}
	return true, nil
}

func (c *Chain) deployContract(tx *core.Transaction) error {
	constructor, err := vm.Assemble(tx.Data.Code)
	if err != nil {
		return fmt.Errorf("%w: %v", chainerrors.ErrMalformedTxData, err)
	}
	deployAddr := bccrypto.DeployAddress(tx.From, tx.Nonce)
	storage, err := vm.Run(constructor, tx.Data.Variables, tx.From, nil)
	if err != nil {
		return err
	}
	c.Accounts.Put(core.Account{
		Address: deployAddr,
		Code:    tx.Data.Code,
		Storage: storage,
	})
	return nil
}

// callContract invokes an already-deployed contract. The contract's
// constructor ran once at deploy time (deployContract); a call only runs
// the invocation program against the contract's current storage.
func (c *Chain) callContract(tx *core.Transaction, to core.Account) error {
	invocation, err := vm.Assemble(tx.Data.Call)
	if err != nil {
		return fmt.Errorf("%w: %v", chainerrors.ErrMalformedTxData, err)
	}
	storage, err := vm.Run(nil, to.Storage, tx.From, invocation)
	if err != nil {
		return err
	}
	return c.Accounts.Mutate(tx.To, func(a *core.Account) { a.Storage = storage })
}

// ApplyBlock performs the full validate-header → execute → commit sequence
// as one atomic operation, whether b was locally mined or received from a
// peer, so a locally-mined block and a peer-announced block are never
// subject to different commit logic.
func (c *Chain) ApplyBlock(b core.Block) error {
	c.mu.Lock()
	if err := c.validateBlockLocked(b); err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	totalBefore := c.Accounts.TotalBalance()
	applied, err := c.ExecuteBlock(b)
	if err != nil {
		return err
	}
	if totalAfter := c.Accounts.TotalBalance(); totalAfter != totalBefore {
		return fmt.Errorf("block %d: %w (before=%d after=%d)", b.Number, chainerrors.ErrConservationViolated, totalBefore, totalAfter)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// Re-validate under lock: the tip cannot have moved between the
	// unlocked execute step and here because ApplyBlock is the only writer
	// of c.blocks and callers serialize their own ApplyBlock calls.
	if err := c.validateBlockLocked(b); err != nil {
		return err
	}
	c.blocks = append(c.blocks, b)
	c.removeIncludedTxsLocked(applied)

	blockTime := b.Time - c.genesisTime
	if len(c.blocks) > 1 {
		blockTime = b.Time - c.blocks[len(c.blocks)-2].Time
	}
	c.log.WithFields(map[string]interface{}{
		"number":     b.Number,
		"hash":       b.Hash()[len(b.Hash())-5:],
		"block_time": blockTime,
	}).Info("block added")

	if c.recalculateEveryXBlocks > 0 && b.Number > 0 && b.Number%c.recalculateEveryXBlocks == 0 {
		c.retargetLocked(b.Time)
	}
	return nil
}

// retargetLocked applies the difficulty retarget formula:
// new_difficulty = old_difficulty * (window_expected / window_actual).
func (c *Chain) retargetLocked(lastBlockTime int64) {
	actual := lastBlockTime - c.xthLastBlockTime
	if actual <= 0 {
		actual = 1 // guards against a zero/negative window from clock skew
	}
	expected := int64(c.recalculateEveryXBlocks) * c.expectedBlockTime
	ratio := big.NewRat(expected, actual)
	c.difficulty.Mul(c.difficulty, ratio)
	c.recomputeTarget()
	c.xthLastBlockTime = lastBlockTime
	c.log.WithField("new_difficulty", c.difficulty.FloatString(4)).Info("recalculated difficulty")
}
