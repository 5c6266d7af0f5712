package fuzz

import (
	"errors"
	"fmt"

	"github.com/eaglevm/eaglevm/internal/rng"
)

// safeRegs excludes rsp/rbp: spec.md §8 property 6 excludes rsp from the
// comparison, and original_source's test generator skips any test whose
// instruction touches rsp ("if (instr.contains(\"sp\")) continue") since
// VEH-based recovery can't distinguish an intentional stack move from
// corruption. The generator never targets either register as an operand.
var safeRegs = []string{
	"rax", "rbx", "rcx", "rdx", "rsi", "rdi",
	"r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15",
}

// mnemonic names one generatable instruction shape.
type mnemonic int

const (
	mnMov mnemonic = iota
	mnAdd
	mnSub
	mnAnd
	mnOr
	mnXor
	mnCmp
	mnInc
	mnDec
	mnNot
	mnNeg
	mnLea
)

var allMnemonics = []mnemonic{
	mnMov, mnAdd, mnSub, mnAnd, mnOr, mnXor, mnCmp, mnInc, mnDec, mnNot, mnNeg, mnLea,
}

// Sequence is one generated program: a straight-line run of instructions
// ending in RET (the harness SentinelTrap convention), plus a trace line
// per instruction. It carries no initial register state.
type Sequence struct {
	Code  []byte
	Trace []string // one line per instruction, for failure reporting
}

// Generate draws n instructions using g, encodes them, and appends RET.
// Every instruction operates only on safeRegs, so rsp/rbp are never
// touched (spec.md §8 property 6's exclusion).
func Generate(g *rng.RNG, n int) (Sequence, error) {
	var seq Sequence
	for i := 0; i < n; i++ {
		mn := allMnemonics[g.Uniform(len(allMnemonics))]
		bytes, trace, err := generateOne(g, mn)
		if err != nil {
			return Sequence{}, err
		}
		seq.Code = append(seq.Code, bytes...)
		seq.Trace = append(seq.Trace, trace)
	}
	seq.Code = append(seq.Code, RET())
	seq.Trace = append(seq.Trace, "ret")
	return seq, nil
}

func pickReg(g *rng.RNG) string { return safeRegs[g.Uniform(len(safeRegs))] }

// pickTwoDistinct picks two different registers, so register-register
// forms never degenerate to a same-operand no-op/self-zero case the
// generator isn't trying to test.
func pickTwoDistinct(g *rng.RNG) (string, string) {
	a := pickReg(g)
	b := pickReg(g)
	for b == a {
		b = pickReg(g)
	}
	return a, b
}

func generateOne(g *rng.RNG, mn mnemonic) ([]byte, string, error) {
	switch mn {
	case mnMov:
		dst := pickReg(g)
		imm := g.NextU64()
		b, err := MOVImm64(dst, imm)
		return b, fmtTrace("mov", dst, imm), err
	case mnAdd:
		dst, src := pickTwoDistinct(g)
		b, err := ADD(dst, src)
		return b, fmtTrace("add", dst, src), err
	case mnSub:
		dst, src := pickTwoDistinct(g)
		b, err := SUB(dst, src)
		return b, fmtTrace("sub", dst, src), err
	case mnAnd:
		dst, src := pickTwoDistinct(g)
		b, err := AND(dst, src)
		return b, fmtTrace("and", dst, src), err
	case mnOr:
		dst, src := pickTwoDistinct(g)
		b, err := OR(dst, src)
		return b, fmtTrace("or", dst, src), err
	case mnXor:
		dst, src := pickTwoDistinct(g)
		b, err := XOR(dst, src)
		return b, fmtTrace("xor", dst, src), err
	case mnCmp:
		dst, src := pickTwoDistinct(g)
		b, err := CMP(dst, src)
		return b, fmtTrace("cmp", dst, src), err
	case mnInc:
		dst := pickReg(g)
		b, err := INC(dst)
		return b, fmtTrace("inc", dst), err
	case mnDec:
		dst := pickReg(g)
		b, err := DEC(dst)
		return b, fmtTrace("dec", dst), err
	case mnNot:
		dst := pickReg(g)
		b, err := NOT(dst)
		return b, fmtTrace("not", dst), err
	case mnNeg:
		dst := pickReg(g)
		b, err := NEG(dst)
		return b, fmtTrace("neg", dst), err
	case mnLea:
		dst := pickReg(g)
		base, index := pickTwoDistinct(g)
		scale := []int{1, 2, 4, 8}[g.Uniform(4)]
		disp := int8(g.Uniform(256) - 128)
		b, err := LEA(dst, base, index, scale, disp)
		return b, fmtTrace("lea", dst, base, index, scale, disp), err
	default:
		return nil, "", errUnknownMnemonic
	}
}

var errUnknownMnemonic = errors.New("fuzz: unknown mnemonic")

func fmtTrace(op string, args ...interface{}) string {
	s := op
	for _, a := range args {
		s += " " + fmt.Sprint(a)
	}
	return s
}
