// Package decoder is the C1 decoder facade: it wraps the third-party
// x86-64 decoder behind the narrow contract the rest of the pipeline
// depends on (spec.md §6, "Decoder contract").
//
// It intentionally knows nothing about basic blocks, control flow, or IR —
// only "bytes in, one decoded instruction out."
package decoder

import (
	"golang.org/x/arch/x86/x86asm"

	"github.com/eaglevm/eaglevm/internal/eerrors"
)

// OperandKind classifies one operand of a decoded instruction.
type OperandKind int

const (
	OperandRegister OperandKind = iota
	OperandMemory
	OperandImmediate
	OperandRelative
)

// Operand is one immutable operand of a DI.
type Operand struct {
	Kind OperandKind

	// Valid when Kind == OperandRegister.
	Reg x86asm.Reg

	// Valid when Kind == OperandMemory.
	Mem x86asm.Mem

	// Valid when Kind == OperandImmediate.
	Imm int64

	// Valid when Kind == OperandRelative: the target is RVA-relative to the
	// instruction following this one.
	Rel int64
}

// DI is an immutable decoded instruction: mnemonic, operand list, effective
// width, and raw byte length (spec.md §3).
type DI struct {
	RVA      uint64
	Mnemonic x86asm.Op
	Operands []Operand
	// WidthBits is the effective operand width in bits (8/16/32/64), taken
	// from the decoder's DataSize, defaulting to 32 for legacy mode.
	WidthBits int
	Len       int

	raw x86asm.Inst
}

// Raw returns the underlying x86asm.Inst, for callers (e.g. the lifter)
// that need decoder-specific detail the DI does not generalize.
func (d DI) Raw() x86asm.Inst { return d.raw }

// Decoder decodes x86-64 machine code, one instruction at a time.
type Decoder struct{}

// New creates a Decoder. There is no per-instance state: x86asm.Decode is
// a pure function of its input bytes.
func New() *Decoder { return &Decoder{} }

// Decode decodes the instruction starting at src, which is located at rva.
// It returns eerrors.DecodeError (wrapped) if the raw decoder rejects the
// byte sequence.
func (d *Decoder) Decode(src []byte, rva uint64) (DI, error) {
	inst, err := x86asm.Decode(src, 64)
	if err != nil {
		return DI{}, eerrors.NewDecodeError(rva, err)
	}

	width := inst.DataSize
	if width == 0 {
		width = 32
	}

	di := DI{
		RVA:       rva,
		Mnemonic:  inst.Op,
		WidthBits: width,
		Len:       inst.Len,
		raw:       inst,
	}
	for _, a := range inst.Args {
		if a == nil {
			continue
		}
		di.Operands = append(di.Operands, convertArg(a))
	}
	return di, nil
}

func convertArg(a x86asm.Arg) Operand {
	switch v := a.(type) {
	case x86asm.Reg:
		return Operand{Kind: OperandRegister, Reg: v}
	case x86asm.Mem:
		return Operand{Kind: OperandMemory, Mem: v}
	case x86asm.Imm:
		return Operand{Kind: OperandImmediate, Imm: int64(v)}
	case x86asm.Rel:
		return Operand{Kind: OperandRelative, Rel: int64(v)}
	default:
		// PC-relative or other exotic operand kinds not in the supported
		// subset surface as a zero-value immediate; the lifter treats any
		// mnemonic it cannot fully interpret as unsupported.
		return Operand{Kind: OperandImmediate}
	}
}

// IsControlTransfer reports whether op can end a basic block. Used by C2.
//
// A near CALL is deliberately excluded: it does not end a basic block in
// this design. The call/return crossing is a lift-time concern (spec.md
// §4.2, "call/return use vm_enter/vm_exit"), not a disassembly-time one —
// treating CALL as a terminator would require the disassembler to track
// return-site edges, which spec.md §4.1's classification set (fall_through,
// direct_branch, conditional_pair, indirect, return) has no room for.
func IsControlTransfer(op x86asm.Op) bool {
	switch op {
	case x86asm.LOOP, x86asm.LOOPE, x86asm.LOOPNE,
		x86asm.JA, x86asm.JAE, x86asm.JB, x86asm.JBE, x86asm.JCXZ, x86asm.JE,
		x86asm.JECXZ, x86asm.JG, x86asm.JGE, x86asm.JL, x86asm.JLE, x86asm.JNE,
		x86asm.JNO, x86asm.JNP, x86asm.JNS, x86asm.JO, x86asm.JP, x86asm.JRCXZ,
		x86asm.JS, x86asm.JMP, x86asm.RET:
		return true
	default:
		return false
	}
}

// IsConditionalBranch reports whether op is a conditional jump or a loop
// instruction, both of which produce a conditional_pair terminator.
func IsConditionalBranch(op x86asm.Op) bool {
	switch op {
	case x86asm.LOOP, x86asm.LOOPE, x86asm.LOOPNE,
		x86asm.JA, x86asm.JAE, x86asm.JB, x86asm.JBE, x86asm.JCXZ, x86asm.JE,
		x86asm.JECXZ, x86asm.JG, x86asm.JGE, x86asm.JL, x86asm.JLE, x86asm.JNE,
		x86asm.JNO, x86asm.JNP, x86asm.JNS, x86asm.JO, x86asm.JP, x86asm.JRCXZ,
		x86asm.JS:
		return true
	default:
		return false
	}
}
