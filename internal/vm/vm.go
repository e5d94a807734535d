// Package vm implements the contract sandbox: a small stack-based bytecode
// interpreter in place of a host-language `eval`. It is the only
// chain-visible contract execution surface: given a program, a storage
// environment, a caller address, and an invocation program, it runs
// deterministically, touches nothing but the storage it was handed, and
// cannot perform I/O or emit transactions.
package vm

import (
	"encoding/binary"
	"fmt"

	"nexapow/internal/bccrypto"
	"nexapow/internal/chainerrors"
)

// Op is a single bytecode opcode.
type Op int

const (
	OpPush Op = iota // push Arg
	OpLoad           // push storage[Name]
	OpStore          // pop v; storage[Name] = v (Name must pre-exist)
	OpAdd            // pop b,a; push a+b
	OpSub            // pop b,a; push a-b
	OpMul            // pop b,a; push a*b
	OpEq             // pop b,a; push 1 if a==b else 0
	OpLt             // pop b,a; push 1 if a<b else 0
	OpJump           // jump to Arg
	OpJumpIfZero     // pop v; if v==0 jump to Arg
	OpCaller         // push int64 derived from MSGSENDER
	OpRet            // stop execution
)

// Instr is one bytecode instruction. Name is used by OpLoad/OpStore; Arg is
// used by OpPush/OpJump/OpJumpIfZero.
type Instr struct {
	Op   Op
	Arg  int64
	Name string
}

// Program is a flat sequence of instructions.
type Program []Instr

// maxSteps bounds every run so a malformed or adversarial program cannot
// hang the miner or a validating peer.
const maxSteps = 100000

// Run executes code, then invocation, against storage, with caller bound as
// MSGSENDER. It returns storage restricted to the keys present in the
// original storage argument — code and invocation may update pre-declared
// values but may not introduce new top-level names that persist.
func Run(code Program, storage map[string]int64, caller bccrypto.Address, invocation Program) (map[string]int64, error) {
	preDeclared := make(map[string]struct{}, len(storage))
	working := make(map[string]int64, len(storage))
	for k, v := range storage {
		preDeclared[k] = struct{}{}
		working[k] = v
	}

	callerWord := callerToWord(caller)

	if err := execute(code, working, preDeclared, callerWord); err != nil {
		return nil, fmt.Errorf("running constructor/code: %w", err)
	}
	if err := execute(invocation, working, preDeclared, callerWord); err != nil {
		return nil, fmt.Errorf("running invocation: %w", err)
	}

	result := make(map[string]int64, len(preDeclared))
	for k := range preDeclared {
		result[k] = working[k]
	}
	return result, nil
}

func callerToWord(a bccrypto.Address) int64 {
	return int64(binary.BigEndian.Uint64(a[len(a)-8:]))
}

func execute(prog Program, storage map[string]int64, preDeclared map[string]struct{}, caller int64) error {
	if len(prog) == 0 {
		return nil
	}
	var stack []int64
	pop := func() (int64, error) {
		if len(stack) == 0 {
			return 0, chainerrors.ErrStackUnderflow
		}
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return v, nil
	}

	pc := 0
	steps := 0
	for pc < len(prog) {
		steps++
		if steps > maxSteps {
			return chainerrors.ErrProgramHalted
		}
		instr := prog[pc]
		switch instr.Op {
		case OpPush:
			stack = append(stack, instr.Arg)
		case OpLoad:
			if _, ok := preDeclared[instr.Name]; !ok {
				return fmt.Errorf("%w: %q", chainerrors.ErrStorageKeyNotFound, instr.Name)
			}
			stack = append(stack, storage[instr.Name])
		case OpStore:
			if _, ok := preDeclared[instr.Name]; !ok {
				return fmt.Errorf("%w: %q", chainerrors.ErrStorageKeyNotFound, instr.Name)
			}
			v, err := pop()
			if err != nil {
				return err
			}
			storage[instr.Name] = v
		case OpAdd, OpSub, OpMul, OpEq, OpLt:
			b, err := pop()
			if err != nil {
				return err
			}
			a, err := pop()
			if err != nil {
				return err
			}
			stack = append(stack, binOp(instr.Op, a, b))
		case OpJump:
			pc = int(instr.Arg)
			continue
		case OpJumpIfZero:
			v, err := pop()
			if err != nil {
				return err
			}
			if v == 0 {
				pc = int(instr.Arg)
				continue
			}
		case OpCaller:
			stack = append(stack, caller)
		case OpRet:
			return nil
		default:
			return fmt.Errorf("%w: %d", chainerrors.ErrUnknownOpcode, instr.Op)
		}
		pc++
	}
	return nil
}

func binOp(op Op, a, b int64) int64 {
	switch op {
	case OpAdd:
		return a + b
	case OpSub:
		return a - b
	case OpMul:
		return a * b
	case OpEq:
		if a == b {
			return 1
		}
		return 0
	case OpLt:
		if a < b {
			return 1
		}
		return 0
	}
	return 0
}
