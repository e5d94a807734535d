// Package state holds the account table: the map from address to Account
// that every transaction reads and mutates. It is guarded by a single mutex
// with short critical sections — the network reader and the mining loop
// both consult it.
package state

import (
	"sync"

	"nexapow/internal/bccrypto"
	"nexapow/internal/chainerrors"
	"nexapow/internal/core"
)

// AccountStore is the chain's account table.
type AccountStore struct {
	mu       sync.Mutex
	accounts map[bccrypto.Address]*core.Account
}

// NewAccountStore builds a store seeded with the given accounts.
func NewAccountStore(seed []core.Account) *AccountStore {
	s := &AccountStore{accounts: make(map[bccrypto.Address]*core.Account, len(seed))}
	for i := range seed {
		a := seed[i]
		s.accounts[a.Address] = &a
	}
	return s
}

// Get returns a copy of the account at addr, or an error if it does not
// exist.
func (s *AccountStore) Get(addr bccrypto.Address) (core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[addr]
	if !ok {
		return core.Account{}, chainerrors.ErrUnknownAccount
	}
	return *a, nil
}

// Exists reports whether addr has an account.
func (s *AccountStore) Exists(addr bccrypto.Address) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.accounts[addr]
	return ok
}

// Put inserts or replaces the account at its own address.
func (s *AccountStore) Put(a core.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct := a
	s.accounts[a.Address] = &acct
}

// Mutate applies fn to the account at addr under the store lock. fn must not
// call back into the store. Returns chainerrors.ErrUnknownAccount if addr is
// not present.
func (s *AccountStore) Mutate(addr bccrypto.Address, fn func(*core.Account)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[addr]
	if !ok {
		return chainerrors.ErrUnknownAccount
	}
	fn(a)
	return nil
}

// All returns a snapshot copy of every account, in no particular order.
func (s *AccountStore) All() []core.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, *a)
	}
	return out
}

// TotalBalance sums every account's balance; used by conservation checks.
func (s *AccountStore) TotalBalance() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total uint64
	for _, a := range s.accounts {
		total += a.Balance
	}
	return total
}
