// Package lift implements C4: per-mnemonic handlers that translate one
// decoded x86 instruction into a sequence of IR commands (spec.md §4.2).
//
// Handlers are uniform: lower each operand via a push_* sequence, execute
// the operation against the VM stack, then either discard the result or
// write it back via a symmetric pop_*/store sequence — mirroring the
// per-instruction translate loop in the pack's mewmew-x lifter
// (translateBlock dispatching per x86asm opcode) and the handler-per-
// mnemonic split in original_source's ir/x86/handlers/imul.h.
package lift

import (
	"golang.org/x/arch/x86/x86asm"

	"github.com/eaglevm/eaglevm/internal/decoder"
	"github.com/eaglevm/eaglevm/internal/disasm"
	"github.com/eaglevm/eaglevm/internal/eerrors"
	"github.com/eaglevm/eaglevm/internal/ir"
)

// Lifter translates a disasm.Graph into an ir.Graph, one IBB per BB.
type Lifter struct {
	src *disasm.Graph
	dst *ir.Graph
}

// New creates a Lifter that will populate dst from src.
func New(src *disasm.Graph, dst *ir.Graph) *Lifter {
	return &Lifter{src: src, dst: dst}
}

// LiftAll lifts every BB in the source graph and returns the IBB
// corresponding to entryRVA (the designated entry point for optimizer
// entry-pinning, spec.md §4.3 pass 3).
func (l *Lifter) LiftAll(entryRVA uint64) (*ir.IBB, error) {
	// First pass: allocate one IBB per BB and bind it to its RVA, so
	// cross-block branch targets resolve regardless of lift order.
	for _, bb := range l.src.Blocks() {
		ibb := l.dst.NewBlock()
		l.dst.BindRVA(bb.StartRVA, ibb)
	}

	// Second pass: fill bodies and exits.
	for _, bb := range l.src.Blocks() {
		ibb := l.dst.BlockByRVA(bb.StartRVA)
		if err := l.liftInto(ibb, bb); err != nil {
			return nil, err
		}
	}

	entry := l.dst.BlockByRVA(entryRVA)
	if entry == nil {
		return nil, eerrors.NewOutOfRangeError(entryRVA)
	}
	return entry, nil
}

func (l *Lifter) liftInto(ibb *ir.IBB, bb *disasm.BB) error {
	for _, di := range bb.Instructions {
		h, ok := handlers[di.Mnemonic]
		if !ok {
			return eerrors.NewUnsupportedInstructionError(di.Mnemonic.String(), di.RVA)
		}
		if err := h(ibb, di); err != nil {
			return err
		}
	}
	ibb.Exit = l.buildExit(bb)
	return nil
}

func (l *Lifter) buildExit(bb *disasm.BB) ir.Exit {
	exit := ir.Exit{
		Targets:      make([]*ir.IBB, len(bb.Term.Targets)),
		ExternalRVAs: make([]uint64, len(bb.Term.Targets)),
	}
	for i, rva := range bb.Term.Targets {
		if bb.Term.External[i] {
			exit.ExternalRVAs[i] = rva
			continue
		}
		exit.Targets[i] = l.dst.BlockByRVA(rva)
	}

	switch bb.Term.Class {
	case disasm.FallThrough:
		exit.Class = ir.ExitFallThrough
	case disasm.DirectBranch:
		exit.Class = ir.ExitDirectBranch
	case disasm.ConditionalPair:
		exit.Class = ir.ExitConditionalPair
		exit.FlagExpr = condFlagExpr(lastCondMnemonic(bb))
	case disasm.Indirect:
		exit.Class = ir.ExitIndirect
	case disasm.Return:
		exit.Class = ir.ExitReturn
	}
	return exit
}

func lastCondMnemonic(bb *disasm.BB) x86asm.Op {
	if len(bb.Instructions) == 0 {
		return 0
	}
	return bb.Instructions[len(bb.Instructions)-1].Mnemonic
}

// handlerFunc appends the IR commands for one DI to ibb.
type handlerFunc func(ibb *ir.IBB, di decoder.DI) error

var handlers = map[x86asm.Op]handlerFunc{
	x86asm.MOV:  liftMov,
	x86asm.ADD:  arithHandler(ir.OpAdd),
	x86asm.SUB:  arithHandler(ir.OpSub),
	x86asm.AND:  arithHandler(ir.OpAnd),
	x86asm.OR:   arithHandler(ir.OpOr),
	x86asm.XOR:  arithHandler(ir.OpXor),
	x86asm.INC:  unaryHandler(ir.OpInc),
	x86asm.DEC:  unaryHandler(ir.OpDec),
	x86asm.NEG:  unaryHandler(ir.OpNeg),
	x86asm.NOT:  unaryHandlerNoFlags(ir.OpNot),
	x86asm.SHL:  arithHandler(ir.OpShl),
	x86asm.SHR:  arithHandler(ir.OpShr),
	x86asm.SAR:  arithHandler(ir.OpSar),
	x86asm.CMP:  liftCmp,
	x86asm.LEA:  liftLea,
	x86asm.PUSH: liftPush,
	x86asm.POP:  liftPop,
	x86asm.JMP:  liftNop, // terminator handled by buildExit
	x86asm.RET:  liftRet,
	x86asm.NOP:  liftNop,
}

func init() {
	for _, op := range []x86asm.Op{
		x86asm.JA, x86asm.JAE, x86asm.JB, x86asm.JBE, x86asm.JCXZ, x86asm.JE,
		x86asm.JECXZ, x86asm.JG, x86asm.JGE, x86asm.JL, x86asm.JLE, x86asm.JNE,
		x86asm.JNO, x86asm.JNP, x86asm.JNS, x86asm.JO, x86asm.JP, x86asm.JRCXZ,
		x86asm.JS, x86asm.LOOP, x86asm.LOOPE, x86asm.LOOPNE,
	} {
		handlers[op] = liftNop // terminator handled by buildExit
	}
}

func liftNop(ibb *ir.IBB, di decoder.DI) error { return nil }

func widthOf(di decoder.DI) ir.Width {
	switch di.WidthBits {
	case 8:
		return ir.Width8
	case 16:
		return ir.Width16
	case 64:
		return ir.Width64
	default:
		return ir.Width32
	}
}

// pushOperand lowers one source operand onto the VM stack: a register
// pushes directly, memory computes the address then mem_reads, and an
// immediate pushes its constant (spec.md §4.2).
func pushOperand(ibb *ir.IBB, op decoder.Operand, w ir.Width) error {
	switch op.Kind {
	case decoder.OperandRegister:
		ibb.AppendCommand(ir.PushReg(w, guestRegOf(op.Reg)))
	case decoder.OperandImmediate:
		ibb.AppendCommand(ir.PushImm(w, op.Imm))
	case decoder.OperandMemory:
		emitAddress(ibb, op.Mem)
		ibb.AppendCommand(ir.MemRead(w))
	default:
		return eerrors.NewUnsupportedInstructionError("operand", 0)
	}
	return nil
}

// storeOperand writes the value currently on top of the VM stack back to
// the operand that originated it (spec.md §4.2's symmetric pop_*/store).
func storeOperand(ibb *ir.IBB, op decoder.Operand, w ir.Width) error {
	switch op.Kind {
	case decoder.OperandRegister:
		ibb.AppendCommand(ir.PopReg(w, guestRegOf(op.Reg)))
	case decoder.OperandMemory:
		// mem_write pops (value, address): the value is already on top,
		// so compute the address now and push it above; mem_write's
		// effect (§ir.Effect) pops [width, 64], the 64-bit address on top
		// and the value beneath it, matching this push order.
		emitAddress(ibb, op.Mem)
		ibb.AppendCommand(ir.MemWrite(w))
	default:
		return eerrors.NewUnsupportedInstructionError("operand", 0)
	}
	return nil
}

// emitAddress computes a memory operand's effective address and leaves it
// as a single 64-bit value on top of the VM stack: disp + base +
// (index << log2(scale)).
func emitAddress(ibb *ir.IBB, mem x86asm.Mem) {
	ibb.AppendCommand(ir.PushImm(ir.Width64, mem.Disp))
	if mem.Base != 0 {
		ibb.AppendCommand(ir.PushReg(ir.Width64, guestRegOf(mem.Base)))
		ibb.AppendCommand(ir.Arith(ir.OpAdd, ir.Width64, false))
	}
	if mem.Index != 0 {
		ibb.AppendCommand(ir.PushReg(ir.Width64, guestRegOf(mem.Index)))
		if shift := log2(mem.Scale); shift > 0 {
			ibb.AppendCommand(ir.PushImm(ir.Width64, int64(shift)))
			ibb.AppendCommand(ir.Arith(ir.OpShl, ir.Width64, false))
		}
		ibb.AppendCommand(ir.Arith(ir.OpAdd, ir.Width64, false))
	}
}

func log2(scale uint8) int {
	switch scale {
	case 2:
		return 1
	case 4:
		return 2
	case 8:
		return 3
	default:
		return 0
	}
}

func arithHandler(op ir.ArithOp) handlerFunc {
	return func(ibb *ir.IBB, di decoder.DI) error {
		if len(di.Operands) < 2 {
			return eerrors.NewUnsupportedInstructionError(di.Mnemonic.String(), di.RVA)
		}
		w := widthOf(di)
		dst, src := di.Operands[0], di.Operands[1]
		if err := pushOperand(ibb, dst, w); err != nil {
			return err
		}
		if err := pushOperand(ibb, src, w); err != nil {
			return err
		}
		ibb.AppendCommand(ir.Arith(op, w, true))
		ibb.AppendCommand(ir.FlagsUpdate(arithDefinedFlags(op), 0))
		return storeOperand(ibb, dst, w)
	}
}

func unaryHandler(op ir.ArithOp) handlerFunc {
	return func(ibb *ir.IBB, di decoder.DI) error {
		if len(di.Operands) < 1 {
			return eerrors.NewUnsupportedInstructionError(di.Mnemonic.String(), di.RVA)
		}
		w := widthOf(di)
		dst := di.Operands[0]
		if err := pushOperand(ibb, dst, w); err != nil {
			return err
		}
		ibb.AppendCommand(ir.Arith(op, w, true))
		ibb.AppendCommand(ir.FlagsUpdate(unaryDefinedFlags(op), 0))
		return storeOperand(ibb, dst, w)
	}
}

func unaryHandlerNoFlags(op ir.ArithOp) handlerFunc {
	return func(ibb *ir.IBB, di decoder.DI) error {
		if len(di.Operands) < 1 {
			return eerrors.NewUnsupportedInstructionError(di.Mnemonic.String(), di.RVA)
		}
		w := widthOf(di)
		dst := di.Operands[0]
		if err := pushOperand(ibb, dst, w); err != nil {
			return err
		}
		ibb.AppendCommand(ir.Arith(op, w, false))
		return storeOperand(ibb, dst, w)
	}
}

// arithDefinedFlags follows the Intel SDM flag-definition table for the
// binary arithmetic/logic ops this lifter supports (spec.md §4.2).
func arithDefinedFlags(op ir.ArithOp) ir.FlagSet {
	switch op {
	case ir.OpAdd, ir.OpSub:
		return ir.FlagSet(ir.CF | ir.OF | ir.SF | ir.ZF | ir.AF | ir.PF)
	case ir.OpAnd, ir.OpOr, ir.OpXor:
		// CF and OF are cleared (still defined, to 0); AF is undefined.
		return ir.FlagSet(ir.CF | ir.OF | ir.SF | ir.ZF | ir.PF)
	case ir.OpShl, ir.OpShr, ir.OpSar:
		return ir.FlagSet(ir.SF | ir.ZF | ir.PF)
	default:
		return 0
	}
}

func unaryDefinedFlags(op ir.ArithOp) ir.FlagSet {
	switch op {
	case ir.OpInc, ir.OpDec:
		// CF is not affected by INC/DEC: left undefined (preserved).
		return ir.FlagSet(ir.OF | ir.SF | ir.ZF | ir.AF | ir.PF)
	case ir.OpNeg:
		return ir.FlagSet(ir.CF | ir.OF | ir.SF | ir.ZF | ir.AF | ir.PF)
	default:
		return 0
	}
}

func liftMov(ibb *ir.IBB, di decoder.DI) error {
	if len(di.Operands) < 2 {
		return eerrors.NewUnsupportedInstructionError(di.Mnemonic.String(), di.RVA)
	}
	w := widthOf(di)
	dst, src := di.Operands[0], di.Operands[1]
	if err := pushOperand(ibb, src, w); err != nil {
		return err
	}
	return storeOperand(ibb, dst, w)
}

func liftCmp(ibb *ir.IBB, di decoder.DI) error {
	if len(di.Operands) < 2 {
		return eerrors.NewUnsupportedInstructionError(di.Mnemonic.String(), di.RVA)
	}
	w := widthOf(di)
	if err := pushOperand(ibb, di.Operands[0], w); err != nil {
		return err
	}
	if err := pushOperand(ibb, di.Operands[1], w); err != nil {
		return err
	}
	ibb.AppendCommand(ir.Command{Kind: ir.KindCompare, Width: w})
	ibb.AppendCommand(ir.FlagsUpdate(arithDefinedFlags(ir.OpSub), 0))
	return nil
}

func liftLea(ibb *ir.IBB, di decoder.DI) error {
	if len(di.Operands) < 2 || di.Operands[1].Kind != decoder.OperandMemory {
		return eerrors.NewUnsupportedInstructionError(di.Mnemonic.String(), di.RVA)
	}
	w := widthOf(di)
	emitAddress(ibb, di.Operands[1].Mem)
	return storeOperand(ibb, di.Operands[0], w)
}

func liftPush(ibb *ir.IBB, di decoder.DI) error {
	if len(di.Operands) < 1 {
		return eerrors.NewUnsupportedInstructionError(di.Mnemonic.String(), di.RVA)
	}
	// A native PUSH affects the guest's native stack pointer, which this
	// design excludes from guest-visible equivalence (spec.md §8, "rip and
	// rsp ... known to diverge"). We still lower the value flow so
	// round-trip/dump mode sees the operand read.
	return pushOperand(ibb, di.Operands[0], widthOf(di))
}

func liftPop(ibb *ir.IBB, di decoder.DI) error {
	if len(di.Operands) < 1 {
		return eerrors.NewUnsupportedInstructionError(di.Mnemonic.String(), di.RVA)
	}
	return storeOperand(ibb, di.Operands[0], widthOf(di))
}

func liftRet(ibb *ir.IBB, di decoder.DI) error {
	ibb.AppendCommand(ir.Command{Kind: ir.KindVMExit})
	return nil
}

// condFlagExpr builds the FlagExpr for a conditional-branch terminator's
// originating jump mnemonic.
func condFlagExpr(op x86asm.Op) ir.FlagExpr {
	switch op {
	case x86asm.JE, x86asm.LOOPE:
		return ir.FlagExpr{Cond: "e", ReadFlags: ir.FlagSet(ir.ZF)}
	case x86asm.JNE, x86asm.LOOPNE:
		return ir.FlagExpr{Cond: "ne", ReadFlags: ir.FlagSet(ir.ZF)}
	case x86asm.JA:
		return ir.FlagExpr{Cond: "a", ReadFlags: ir.FlagSet(ir.CF | ir.ZF)}
	case x86asm.JAE:
		return ir.FlagExpr{Cond: "ae", ReadFlags: ir.FlagSet(ir.CF)}
	case x86asm.JB:
		return ir.FlagExpr{Cond: "b", ReadFlags: ir.FlagSet(ir.CF)}
	case x86asm.JBE:
		return ir.FlagExpr{Cond: "be", ReadFlags: ir.FlagSet(ir.CF | ir.ZF)}
	case x86asm.JG:
		return ir.FlagExpr{Cond: "g", ReadFlags: ir.FlagSet(ir.ZF | ir.SF | ir.OF)}
	case x86asm.JGE:
		return ir.FlagExpr{Cond: "ge", ReadFlags: ir.FlagSet(ir.SF | ir.OF)}
	case x86asm.JL:
		return ir.FlagExpr{Cond: "l", ReadFlags: ir.FlagSet(ir.SF | ir.OF)}
	case x86asm.JLE:
		return ir.FlagExpr{Cond: "le", ReadFlags: ir.FlagSet(ir.ZF | ir.SF | ir.OF)}
	case x86asm.JS:
		return ir.FlagExpr{Cond: "s", ReadFlags: ir.FlagSet(ir.SF)}
	case x86asm.JNS:
		return ir.FlagExpr{Cond: "ns", ReadFlags: ir.FlagSet(ir.SF)}
	case x86asm.JO:
		return ir.FlagExpr{Cond: "o", ReadFlags: ir.FlagSet(ir.OF)}
	case x86asm.JNO:
		return ir.FlagExpr{Cond: "no", ReadFlags: ir.FlagSet(ir.OF)}
	case x86asm.JP:
		return ir.FlagExpr{Cond: "p", ReadFlags: ir.FlagSet(ir.PF)}
	case x86asm.JNP:
		return ir.FlagExpr{Cond: "np", ReadFlags: ir.FlagSet(ir.PF)}
	case x86asm.LOOP, x86asm.JCXZ, x86asm.JECXZ, x86asm.JRCXZ:
		return ir.FlagExpr{Cond: "cxz", ReadFlags: 0}
	default:
		return ir.FlagExpr{Cond: "?", ReadFlags: 0}
	}
}

func guestRegOf(r x86asm.Reg) ir.GuestReg {
	switch baseReg(r) {
	case x86asm.RAX:
		return ir.RAX
	case x86asm.RBX:
		return ir.RBX
	case x86asm.RCX:
		return ir.RCX
	case x86asm.RDX:
		return ir.RDX
	case x86asm.RSI:
		return ir.RSI
	case x86asm.RDI:
		return ir.RDI
	case x86asm.RBP:
		return ir.RBP
	case x86asm.RSP:
		return ir.RSP
	case x86asm.R8:
		return ir.R8
	case x86asm.R9:
		return ir.R9
	case x86asm.R10:
		return ir.R10
	case x86asm.R11:
		return ir.R11
	case x86asm.R12:
		return ir.R12
	case x86asm.R13:
		return ir.R13
	case x86asm.R14:
		return ir.R14
	case x86asm.R15:
		return ir.R15
	default:
		return ir.RAX
	}
}

// baseReg normalizes any sub-register (AL, AX, EAX, ...) to its 64-bit
// parent, since the guest register file is always 64-bit wide
// (spec.md §3, §4.5 "range-aware" register moves handle the narrowing).
func baseReg(r x86asm.Reg) x86asm.Reg {
	switch {
	case r >= x86asm.AL && r <= x86asm.BL:
		return x86asm.RAX + (r - x86asm.AL)
	case r >= x86asm.AH && r <= x86asm.BH:
		// The high-byte registers alias bits 8..15 of RAX..RBX.
		return x86asm.RAX + (r - x86asm.AH)
	case r >= x86asm.SPB && r <= x86asm.R15B:
		return x86asm.RSP + (r - x86asm.SPB)
	case r >= x86asm.AX && r <= x86asm.R15W:
		return x86asm.RAX + (r - x86asm.AX)
	case r >= x86asm.EAX && r <= x86asm.R15L:
		return x86asm.RAX + (r - x86asm.EAX)
	default:
		return r
	}
}
