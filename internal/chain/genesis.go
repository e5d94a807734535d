package chain

import (
	"math/big"
	"strings"

	"nexapow/internal/bccrypto"
	"nexapow/internal/core"
	"nexapow/internal/state"
)

// zeroHash64 is the 64-character all-zero hex string used as the genesis
// block's prev_hash.
var zeroHash64 = strings.Repeat("0", 64)

// DefaultExpectedBlockTime and DefaultRecalculateEveryXBlocks are the
// out-of-the-box retarget window for a fresh standalone chain.
const (
	DefaultExpectedBlockTime       int64  = 10
	DefaultRecalculateEveryXBlocks uint64 = 10
)

// seedPrivateKeys are the three externally-owned accounts seeded at fresh
// genesis: "0x"+63*"0"+"1", "0x"+62*"0"+"02", "0x"+62*"0"+"03".
var seedPrivateKeys = [3][32]byte{
	{31: 0x01},
	{31: 0x02},
	{31: 0x03},
}

// SeedAccounts returns the three seeded externally-owned accounts plus the
// zero address.
func SeedAccounts(initialBalance uint64) ([]core.Account, error) {
	accounts := make([]core.Account, 0, 4)
	for _, raw := range seedPrivateKeys {
		priv, err := bccrypto.NewPrivateKey(raw[:])
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, core.Account{
			Address:    priv.Address(),
			PrivateKey: "0x" + hexEncode(raw[:]),
			Balance:    initialBalance,
		})
	}
	accounts = append(accounts, core.Account{Address: bccrypto.ZeroAddress})
	return accounts, nil
}

func hexEncode(b []byte) string {
	const hextable = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = hextable[v>>4]
		out[i*2+1] = hextable[v&0x0f]
	}
	return string(out)
}

// NewFresh builds a brand-new standalone chain: difficulty 1, a genesis
// block whose hash is its own snapshot-stub prev_hash of 64 zero chars, and
// the seeded accounts. now is the wall-clock time in unix seconds.
func NewFresh(now int64, initialBalancePerAccount uint64) (*Chain, error) {
	seeded, err := SeedAccounts(initialBalancePerAccount)
	if err != nil {
		return nil, err
	}
	genesis := core.Block{
		Number:   0,
		Time:     now,
		Nonce:    -1,
		PrevHash: zeroHash64,
	}
	cfg := Config{
		Difficulty:              big.NewRat(1, 1),
		ExpectedBlockTime:       DefaultExpectedBlockTime,
		RecalculateEveryXBlocks: DefaultRecalculateEveryXBlocks,
		XthLastBlockTime:        now,
		GenesisTime:             now,
	}
	c := newChain(cfg, state.NewAccountStore(seeded), genesis)
	c.synced = true
	return c, nil
}
