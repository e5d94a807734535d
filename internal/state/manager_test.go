package state_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"nexapow/internal/bccrypto"
	"nexapow/internal/chainerrors"
	"nexapow/internal/core"
	"nexapow/internal/state"
)

func addr(b byte) bccrypto.Address {
	var a bccrypto.Address
	a[19] = b
	return a
}

func TestAccountStoreGetPutMutate(t *testing.T) {
	a1 := core.Account{Address: addr(1), Balance: 100}
	s := state.NewAccountStore([]core.Account{a1})

	got, err := s.Get(addr(1))
	require.NoError(t, err)
	require.Equal(t, uint64(100), got.Balance)

	_, err = s.Get(addr(2))
	require.ErrorIs(t, err, chainerrors.ErrUnknownAccount)

	require.NoError(t, s.Mutate(addr(1), func(a *core.Account) { a.Balance -= 40 }))
	got, _ = s.Get(addr(1))
	require.Equal(t, uint64(60), got.Balance)

	s.Put(core.Account{Address: addr(2), Balance: 5})
	require.True(t, s.Exists(addr(2)))
}

func TestAccountStoreTotalBalanceConservation(t *testing.T) {
	s := state.NewAccountStore([]core.Account{
		{Address: addr(1), Balance: 100},
		{Address: addr(2), Balance: 50},
	})
	require.Equal(t, uint64(150), s.TotalBalance())

	require.NoError(t, s.Mutate(addr(1), func(a *core.Account) { a.Balance -= 30 }))
	require.NoError(t, s.Mutate(addr(2), func(a *core.Account) { a.Balance += 30 }))
	require.Equal(t, uint64(150), s.TotalBalance(), "value transfer must conserve total balance")
}
