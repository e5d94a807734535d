package core_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"nexapow/internal/bccrypto"
	"nexapow/internal/core"
)

func mustKey(t *testing.T, seed byte) *bccrypto.PrivateKey {
	t.Helper()
	raw := append(make([]byte, 31), seed)
	priv, err := bccrypto.NewPrivateKey(raw)
	require.NoError(t, err)
	return priv
}

func TestSignatureRoundTrip(t *testing.T) {
	from := mustKey(t, 0x01)
	to := mustKey(t, 0x02)

	tx, err := core.NewSignedTransaction(from, to.Address(), 100, 0, 1, core.TxData{})
	require.NoError(t, err)
	require.True(t, tx.VerifySignature())
}

func TestSignatureRoundTripRejectsTampering(t *testing.T) {
	from := mustKey(t, 0x01)
	to := mustKey(t, 0x02)
	other := mustKey(t, 0x03)

	base, err := core.NewSignedTransaction(from, to.Address(), 100, 0, 1, core.TxData{})
	require.NoError(t, err)
	require.True(t, base.VerifySignature())

	cases := map[string]func(tx *core.Transaction){
		"flipped signature byte": func(tx *core.Transaction) { tx.Signature[5] ^= 0xFF },
		"different from address": func(tx *core.Transaction) { tx.From = other.Address() },
		"different to address":   func(tx *core.Transaction) { tx.To = mustKey(t, 0x04).Address() },
		"different amount":       func(tx *core.Transaction) { tx.Amount++ },
		"different nonce":        func(tx *core.Transaction) { tx.Nonce++ },
		"different gas price":    func(tx *core.Transaction) { tx.GasPrice++ },
		"different data":         func(tx *core.Transaction) { tx.Data = core.TxData{Call: "set_a(5)"} },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			tx := *base
			sig := append([]byte(nil), base.Signature...)
			tx.Signature = sig
			mutate(&tx)
			require.False(t, tx.VerifySignature())
		})
	}
}

func TestTxHashIndependentOfSignature(t *testing.T) {
	from := mustKey(t, 0x01)
	to := mustKey(t, 0x02)
	tx, err := core.NewSignedTransaction(from, to.Address(), 100, 0, 1, core.TxData{})
	require.NoError(t, err)

	h1 := tx.TxHash()
	tx.Signature[0] ^= 0xFF
	h2 := tx.TxHash()
	require.Equal(t, h1, h2, "tx_hash is over the canonical message, not the signature")
}

func TestTxDataShapes(t *testing.T) {
	require.True(t, core.TxData{}.IsEmpty())
	require.True(t, core.TxData{Code: "constructor() {}"}.IsConstructor())
	require.True(t, core.TxData{Call: "set_a(5)"}.IsCall())
	require.False(t, core.TxData{Call: "set_a(5)"}.IsEmpty())
}
