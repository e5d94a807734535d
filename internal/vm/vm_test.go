package vm_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"nexapow/internal/bccrypto"
	"nexapow/internal/vm"
)

func TestConstructorThenCallSetsStorage(t *testing.T) {
	// constructor(): no-op.
	constructor, err := vm.Assemble("ret")
	require.NoError(t, err)

	// set_a(5): a = 5 + 1 = 6.
	setA, err := vm.Assemble(`
		push 5
		push 1
		add
		store a
		ret
	`)
	require.NoError(t, err)

	storage := map[string]int64{"a": 0}
	var caller bccrypto.Address
	caller[19] = 0x01

	result, err := vm.Run(constructor, storage, caller, nil)
	require.NoError(t, err)
	require.Equal(t, int64(0), result["a"])

	result, err = vm.Run(nil, result, caller, setA)
	require.NoError(t, err)
	require.Equal(t, int64(6), result["a"])
}

func TestStoreCannotIntroduceNewKey(t *testing.T) {
	prog, err := vm.Assemble(`
		push 1
		store b
	`)
	require.NoError(t, err)

	_, err = vm.Run(nil, map[string]int64{"a": 0}, bccrypto.Address{}, prog)
	require.Error(t, err)
}

func TestResultRestrictedToPreDeclaredKeys(t *testing.T) {
	prog, err := vm.Assemble(`
		push 9
		store a
		ret
	`)
	require.NoError(t, err)

	result, err := vm.Run(prog, map[string]int64{"a": 1}, bccrypto.Address{}, nil)
	require.NoError(t, err)
	require.Equal(t, map[string]int64{"a": 9}, result)
}

func TestCallerBindingIsDeterministic(t *testing.T) {
	prog, err := vm.Assemble(`
		caller
		store owner
		ret
	`)
	require.NoError(t, err)

	var caller bccrypto.Address
	caller[19] = 0x42

	r1, err := vm.Run(prog, map[string]int64{"owner": 0}, caller, nil)
	require.NoError(t, err)
	r2, err := vm.Run(prog, map[string]int64{"owner": 0}, caller, nil)
	require.NoError(t, err)
	require.Equal(t, r1, r2)
	require.NotZero(t, r1["owner"])
}

func TestJumpIfZeroBranches(t *testing.T) {
	// if caller == 0 { a = 1 } else { a = 2 }
	prog, err := vm.Assemble(`
		caller
		jumpifzero 5
		push 2
		store a
		jump 7
		push 1
		store a
		ret
	`)
	require.NoError(t, err)

	result, err := vm.Run(prog, map[string]int64{"a": 0}, bccrypto.Address{}, nil)
	require.NoError(t, err)
	require.Equal(t, int64(1), result["a"])
}
