package bccrypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) *PrivateKey {
	t.Helper()
	priv, err := NewPrivateKey(append(make([]byte, 31), 0x01))
	require.NoError(t, err)
	return priv
}

func TestAddressDerivationDeterministic(t *testing.T) {
	priv := testKey(t)
	a1 := priv.Address()
	a2 := priv.Address()
	require.Equal(t, a1, a2)
	require.NotEqual(t, ZeroAddress, a1)
}

func TestSignRecoverRoundTrip(t *testing.T) {
	priv := testKey(t)
	message := []byte("0xabc0xdef(100)(0)(1)({})")

	sig, err := Sign(priv, message)
	require.NoError(t, err)

	got, err := Recover(sig, message)
	require.NoError(t, err)
	require.Equal(t, priv.Address(), got)
}

func TestSignRecoverRejectsTampering(t *testing.T) {
	priv := testKey(t)
	message := []byte("0xabc0xdef(100)(0)(1)({})")
	sig, err := Sign(priv, message)
	require.NoError(t, err)

	t.Run("flipped signature byte", func(t *testing.T) {
		tampered := append([]byte(nil), sig...)
		tampered[10] ^= 0xFF
		got, err := Recover(tampered, message)
		if err == nil {
			require.NotEqual(t, priv.Address(), got)
		}
	})

	t.Run("flipped message byte", func(t *testing.T) {
		tampered := append([]byte(nil), message...)
		tampered[0] ^= 0xFF
		got, err := Recover(sig, tampered)
		if err == nil {
			require.NotEqual(t, priv.Address(), got)
		}
	})
}

func TestParseAddressRoundTrip(t *testing.T) {
	priv := testKey(t)
	addr := priv.Address()
	parsed, err := ParseAddress(addr.String())
	require.NoError(t, err)
	require.Equal(t, addr, parsed)

	_, err = ParseAddress("not-an-address")
	require.Error(t, err)
}

func TestParsePrivateKeyHexRoundTrip(t *testing.T) {
	priv := testKey(t)
	hexKey := "0x" + hexEncodeForTest(priv.Bytes())

	loaded, err := ParsePrivateKeyHex(hexKey)
	require.NoError(t, err)
	require.Equal(t, priv.Address(), loaded.Address())

	_, err = ParsePrivateKeyHex("not-a-key")
	require.Error(t, err)
}

func hexEncodeForTest(b []byte) string {
	const hextable = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = hextable[v>>4]
		out[i*2+1] = hextable[v&0x0f]
	}
	return string(out)
}

func TestDeployAddressDeterministic(t *testing.T) {
	priv := testKey(t)
	from := priv.Address()
	a1 := DeployAddress(from, 0)
	a2 := DeployAddress(from, 0)
	require.Equal(t, a1, a2)

	a3 := DeployAddress(from, 1)
	require.NotEqual(t, a1, a3)
}
