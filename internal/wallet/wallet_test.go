package wallet_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"nexapow/internal/bccrypto"
	"nexapow/internal/core"
	"nexapow/internal/wallet"
)

func TestLoadPrivateKeyRoundTrip(t *testing.T) {
	priv, err := bccrypto.GeneratePrivateKey()
	require.NoError(t, err)
	hexKey := "0x" + hexEncode(priv.Bytes())

	loaded, err := wallet.LoadPrivateKey(hexKey)
	require.NoError(t, err)
	require.Equal(t, priv.Address(), loaded.Address())
}

func TestTransferBuildsVerifiableTx(t *testing.T) {
	priv, err := bccrypto.GeneratePrivateKey()
	require.NoError(t, err)
	to, err := bccrypto.GeneratePrivateKey()
	require.NoError(t, err)

	tx, err := wallet.Transfer(priv, to.Address(), 100, 0, 1)
	require.NoError(t, err)
	require.True(t, tx.VerifySignature())
}

func TestDeployAndCallBuildVerifiableTxs(t *testing.T) {
	priv, err := bccrypto.GeneratePrivateKey()
	require.NoError(t, err)

	deployTx, err := wallet.Deploy(priv, 0, 1, "ret", map[string]int64{"a": 0})
	require.NoError(t, err)
	require.True(t, deployTx.VerifySignature())
	require.True(t, deployTx.Data.IsConstructor())

	contract := bccrypto.DeployAddress(priv.Address(), 0)
	callTx, err := wallet.Call(priv, contract, 1, 1, "push 1\nstore a\nret")
	require.NoError(t, err)
	require.True(t, callTx.VerifySignature())
	require.True(t, callTx.Data.IsCall())
}

func TestLoadPrivateKeyFromAccountsFile(t *testing.T) {
	priv, err := bccrypto.GeneratePrivateKey()
	require.NoError(t, err)
	account := core.Account{
		Address:    priv.Address(),
		PrivateKey: "0x" + hexEncode(priv.Bytes()),
		Balance:    1000,
	}
	doc := struct {
		Accounts []core.Account `json:"accounts"`
	}{Accounts: []core.Account{account}}

	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	b, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o644))

	loaded, err := wallet.LoadPrivateKeyFromAccountsFile(path, priv.Address())
	require.NoError(t, err)
	require.Equal(t, priv.Address(), loaded.Address())

	_, err = wallet.LoadPrivateKeyFromAccountsFile(path, bccrypto.ZeroAddress)
	require.Error(t, err)
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
