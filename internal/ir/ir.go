// Package ir implements C3: the typed, stack-based intermediate
// representation that the lifter (C4) produces and the optimizer (C5)
// consumes (spec.md §3, §9 "Polymorphism of IR commands and terminators").
//
// Commands are a tagged variant dispatched by Kind, not by interface
// method sets: every Command has the same Go type, and behavior that
// differs per kind (e.g. stack effect) is a small table indexed by Kind.
// This mirrors the teacher's SSA instruction design
// (internal/engine/wazevo/ssa/instructions.go), which uses one Instruction
// struct with an opcode field rather than one type per opcode.
package ir

import "fmt"

// Width is an operand width in bits.
type Width uint8

const (
	Width8  Width = 8
	Width16 Width = 16
	Width32 Width = 32
	Width64 Width = 64
)

// Flag names one of the six x86 status flags the spec tracks.
type Flag uint8

const (
	CF Flag = 1 << iota
	OF
	SF
	ZF
	AF
	PF
)

// FlagSet is a bitset of Flag.
type FlagSet uint8

func (s FlagSet) Has(f Flag) bool { return s&FlagSet(f) != 0 }
func (s FlagSet) With(f Flag) FlagSet { return s | FlagSet(f) }

// Kind tags the variant of a Command.
type Kind int

const (
	KindPushImm Kind = iota
	KindPushReg
	KindPopReg
	KindMemRead
	KindMemWrite
	KindArithmetic
	KindFlagsUpdate
	KindSignExtend
	KindZeroExtend
	KindCompare
	KindBranch
	KindBranchCond
	KindVMEnter
	KindVMExit
	KindContextLoad
	KindContextStore
	KindHandlerCall
)

func (k Kind) String() string {
	switch k {
	case KindPushImm:
		return "push_imm"
	case KindPushReg:
		return "push_reg"
	case KindPopReg:
		return "pop_reg"
	case KindMemRead:
		return "mem_read"
	case KindMemWrite:
		return "mem_write"
	case KindArithmetic:
		return "arithmetic"
	case KindFlagsUpdate:
		return "flags_update"
	case KindSignExtend:
		return "sign_extend"
	case KindZeroExtend:
		return "zero_extend"
	case KindCompare:
		return "compare"
	case KindBranch:
		return "vm_branch"
	case KindBranchCond:
		return "vm_branch_cond"
	case KindVMEnter:
		return "vm_enter"
	case KindVMExit:
		return "vm_exit"
	case KindContextLoad:
		return "context_load"
	case KindContextStore:
		return "context_store"
	case KindHandlerCall:
		return "handler_call"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ArithOp names an arithmetic/logic operation.
type ArithOp int

const (
	OpAdd ArithOp = iota
	OpSub
	OpAnd
	OpOr
	OpXor
	OpInc
	OpDec
	OpNeg
	OpNot
	OpShl
	OpShr
	OpSar
	OpLea
)

// GuestReg names a logical x86-64 register.
type GuestReg int

const (
	RAX GuestReg = iota
	RBX
	RCX
	RDX
	RSI
	RDI
	RBP
	RSP
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15
	NumGuestRegs
)

// Command is one IR instruction: a tagged variant. Only the fields
// relevant to Kind are meaningful; see the StackEffect table below for the
// per-kind (pops, pushes) contract (spec.md §3).
type Command struct {
	Kind Kind

	Width Width

	// PushImm / Compare immediate.
	Imm int64

	// PushReg / PopReg / ContextLoad / ContextStore.
	Reg GuestReg

	// MemRead / MemWrite: the effective address is already on the VM stack
	// (spec.md §4.2 — operands are lowered via push_* before the op runs).

	// Arithmetic.
	Op ArithOp
	// UpdatesFlags is true when this arithmetic command affects status
	// flags; if so a KindFlagsUpdate command follows it with Defined set.
	UpdatesFlags bool

	// FlagsUpdate.
	Defined   FlagSet
	Undefined FlagSet

	// SignExtend / ZeroExtend: FromWidth -> Width.
	FromWidth Width

	// Branch.
	Target *IBB

	// BranchCond.
	FlagExpr  FlagExpr
	TrueTgt   *IBB
	FalseTgt  *IBB

	// HandlerCall: a named handler (kind, width, operand count) the
	// machine (C7) is responsible for resolving to a concrete call
	// (spec.md §4.5). Populated late, by the optimizer/machine stage.
	HandlerName string
}

// FlagExpr is an opaque expression over status flags evaluated by a
// conditional branch, e.g. "ZF" or "!ZF && SF==OF". The lifter builds one
// FlagExpr per x86 condition code; the optimizer's flag-liveness pass reads
// ReadFlags to know which flags a FlagExpr consumes.
type FlagExpr struct {
	// Cond names the originating x86 condition code (e.g. "e", "ne", "l"),
	// used by the machine stage to select a setcc/jcc handler.
	Cond string
	// ReadFlags is the set of flags this expression reads.
	ReadFlags FlagSet
}

// StackEffect describes a Command's effect on the VM operand stack as
// (pops, pushes), each a list of widths, narrowest-on-top order
// (spec.md §3).
type StackEffect struct {
	Pops   []Width
	Pushes []Width
}

// Effect returns c's stack effect.
func Effect(c Command) StackEffect {
	switch c.Kind {
	case KindPushImm, KindPushReg, KindContextLoad:
		return StackEffect{Pushes: []Width{c.Width}}
	case KindPopReg, KindContextStore:
		return StackEffect{Pops: []Width{c.Width}}
	case KindMemRead:
		return StackEffect{Pops: []Width{Width64}, Pushes: []Width{c.Width}}
	case KindMemWrite:
		return StackEffect{Pops: []Width{c.Width, Width64}}
	case KindArithmetic:
		switch c.Op {
		case OpInc, OpDec, OpNeg, OpNot:
			return StackEffect{Pops: []Width{c.Width}, Pushes: []Width{c.Width}}
		case OpLea:
			return StackEffect{Pushes: []Width{c.Width}}
		default:
			return StackEffect{Pops: []Width{c.Width, c.Width}, Pushes: []Width{c.Width}}
		}
	case KindFlagsUpdate:
		return StackEffect{}
	case KindSignExtend, KindZeroExtend:
		return StackEffect{Pops: []Width{c.FromWidth}, Pushes: []Width{c.Width}}
	case KindCompare:
		return StackEffect{Pops: []Width{c.Width, c.Width}}
	case KindBranch, KindBranchCond, KindVMEnter, KindVMExit:
		return StackEffect{}
	case KindHandlerCall:
		return StackEffect{}
	default:
		return StackEffect{}
	}
}

// PushImm builds a push_imm command.
func PushImm(w Width, v int64) Command { return Command{Kind: KindPushImm, Width: w, Imm: v} }

// PushReg builds a push_reg command.
func PushReg(w Width, r GuestReg) Command { return Command{Kind: KindPushReg, Width: w, Reg: r} }

// PopReg builds a pop_reg command.
func PopReg(w Width, r GuestReg) Command { return Command{Kind: KindPopReg, Width: w, Reg: r} }

// MemRead builds a mem_read command of the given width.
func MemRead(w Width) Command { return Command{Kind: KindMemRead, Width: w} }

// MemWrite builds a mem_write command of the given width.
func MemWrite(w Width) Command { return Command{Kind: KindMemWrite, Width: w} }

// Arith builds an arithmetic command.
func Arith(op ArithOp, w Width, updatesFlags bool) Command {
	return Command{Kind: KindArithmetic, Op: op, Width: w, UpdatesFlags: updatesFlags}
}

// FlagsUpdate builds a flags_update command.
func FlagsUpdate(defined, undefined FlagSet) Command {
	return Command{Kind: KindFlagsUpdate, Defined: defined, Undefined: undefined}
}
