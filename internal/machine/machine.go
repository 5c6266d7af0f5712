// Package machine implements C7: per-VM instantiation of the allocator,
// block labels, and the handler table, lowering IR commands to real x86-64
// code via internal/section and internal/asm/amd64 (spec.md §4.5).
//
// Handler dispatch has no native CALL in the kept assembler (the
// teacher never needed one - see internal/asm/amd64/consts.go), so the
// call/return crossing into a shared handler is emulated the way indirect-
// threaded interpreters without a hardware call stack do it: the call site
// captures its own return address with CompileReadInstructionAddress (the
// same primitive the teacher's compiler package uses for its exit
// trampolines) into vcsret, then jumps to the handler; the handler ends
// with a jump through vcsret. Two real JMPs stand in for one CALL/RET.
package machine

import (
	"fmt"

	"github.com/eaglevm/eaglevm/internal/asm"
	asmamd64 "github.com/eaglevm/eaglevm/internal/asm/amd64"
	"github.com/eaglevm/eaglevm/internal/eerrors"
	"github.com/eaglevm/eaglevm/internal/ir"
	"github.com/eaglevm/eaglevm/internal/regalloc"
	"github.com/eaglevm/eaglevm/internal/section"
)

// slotBytes is the fixed width of one VM stack slot, regardless of the
// pushed value's logical width. Sub-64-bit values are zero-extended on
// push and truncated on pop; this trades slot-packing density (spec.md
// §4.2 does not mandate exact packing) for tractable, uniform addressing.
const slotBytes = 8

// handlerKey identifies one entry in the handler table (spec.md §4.5:
// "keyed by (ir_command_kind, width, operand_count)"). Op distinguishes
// arithmetic handlers, which the spec's key tuple does not separately name
// but which must differ in generated code.
type handlerKey struct {
	kind     ir.Kind
	width    ir.Width
	op       ir.ArithOp
	operands int
}

// Machine is one VM instance's code generator: allocator, block labels,
// and a lazily populated handler table (spec.md §4.5).
type Machine struct {
	vmid  ir.Discriminator
	alloc *regalloc.Allocator
	sec   *section.Section

	roles   regalloc.Roles
	vtemp   asm.Register
	vtemp2  asm.Register
	vbridge asm.Register
	vbase   asm.Register
	vsp     asm.Register

	blockLabels map[ir.IBBID]*section.Label
	handlers    map[handlerKey]*section.Label
	handlerSeq  []handlerKey

	entry *section.Label
}

// New creates a Machine for one VM id, backed by alloc's scatter plan and
// emitting into sec.
func New(vmid ir.Discriminator, alloc *regalloc.Allocator, sec *section.Section) *Machine {
	roles := alloc.Roles()
	return &Machine{
		vmid:        vmid,
		alloc:       alloc,
		sec:         sec,
		roles:       roles,
		vtemp:       hostReg(roles.Temp1),
		vtemp2:      hostReg(roles.Temp2),
		vbridge:     hostReg(roles.XMMBridge),
		vbase:       hostReg(roles.VBase),
		vsp:         hostReg(roles.VSP),
		blockLabels: map[ir.IBBID]*section.Label{},
		handlers:    map[handlerKey]*section.Label{},
	}
}

// EntryLabel returns the label of the entry block, valid after LiftAll.
func (m *Machine) EntryLabel() *section.Label { return m.entry }

// Handlers returns the handler table in creation order (spec.md §4.5
// "create_handlers() -> ordered list of code containers").
func (m *Machine) Handlers() []*section.Label {
	out := make([]*section.Label, 0, len(m.handlerSeq))
	for _, k := range m.handlerSeq {
		out = append(out, m.handlers[k])
	}
	return out
}

func blockLabelName(vmid ir.Discriminator, id ir.IBBID) string {
	return fmt.Sprintf("vm%d_block%d", vmid, id)
}

// LiftAll lowers every block in blocks, tagging entry's container with the
// external entry label (spec.md §4.5).
func (m *Machine) LiftAll(blocks []*ir.IBB, entry *ir.IBB) error {
	// Reserve every block's label up front, so an earlier block's jump to
	// a not-yet-lowered successor resolves once Build() runs.
	for _, b := range blocks {
		name := blockLabelName(m.vmid, b.ID)
		if _, ok := m.sec.Label(name); !ok {
			m.sec.Reserve(name)
		}
	}

	for _, b := range blocks {
		if err := m.liftBlock(b); err != nil {
			return err
		}
	}

	m.entry = m.blockLabels[entry.ID]
	if m.entry == nil {
		return eerrors.NewUnresolvedLabelError(blockLabelName(m.vmid, entry.ID))
	}
	return nil
}

// liftBlock lowers one IBB's commands, then its exit, into a fresh code
// container (spec.md §4.5 "lift_block").
func (m *Machine) liftBlock(b *ir.IBB) error {
	name := blockLabelName(m.vmid, b.ID)
	c := m.sec.NewContainer(name)
	m.blockLabels[b.ID] = c.Label

	for _, cmd := range b.Commands {
		if err := m.liftCommand(c, cmd); err != nil {
			return err
		}
	}
	return m.liftExit(c, b.Exit)
}

func (m *Machine) liftCommand(c *section.CodeContainer, cmd ir.Command) error {
	switch cmd.Kind {
	case ir.KindPushImm:
		c.Asm().CompileConstToRegister(asmamd64.MOVQ, cmd.Imm, m.vtemp)
		return m.call(c, m.handlerFor(handlerKey{kind: ir.KindPushImm, width: cmd.Width, operands: 1}, m.genPush))
	case ir.KindPushReg:
		if err := m.contextLoad(c, cmd.Reg, cmd.Width); err != nil {
			return err
		}
		return m.call(c, m.handlerFor(handlerKey{kind: ir.KindPushReg, width: cmd.Width, operands: 1}, m.genPush))
	case ir.KindPopReg:
		if err := m.call(c, m.handlerFor(handlerKey{kind: ir.KindPopReg, width: cmd.Width, operands: 1}, m.genPop)); err != nil {
			return err
		}
		return m.contextStore(c, cmd.Reg, cmd.Width)
	case ir.KindMemRead:
		return m.call(c, m.handlerFor(handlerKey{kind: ir.KindMemRead, width: cmd.Width, operands: 1}, m.genMemRead(cmd.Width)))
	case ir.KindMemWrite:
		return m.call(c, m.handlerFor(handlerKey{kind: ir.KindMemWrite, width: cmd.Width, operands: 2}, m.genMemWrite(cmd.Width)))
	case ir.KindArithmetic:
		key := handlerKey{kind: ir.KindArithmetic, width: cmd.Width, op: cmd.Op, operands: arithArity(cmd.Op)}
		return m.call(c, m.handlerFor(key, m.genArithmetic(cmd.Op, cmd.Width)))
	case ir.KindCompare:
		return m.call(c, m.handlerFor(handlerKey{kind: ir.KindCompare, width: cmd.Width, operands: 2}, m.genCompare(cmd.Width)))
	case ir.KindFlagsUpdate:
		// The preceding arithmetic/compare handler already set real host
		// flags, and flags survive the threaded call/return jumps: nothing
		// to emit.
		return nil
	case ir.KindVMExit:
		// The block's ExitReturn terminator emits the native RET that
		// leaves the VM (liftExit): nothing to emit here.
		return nil
	default:
		return eerrors.NewUnsupportedInstructionError(cmd.Kind.String(), 0)
	}
}

func arithArity(op ir.ArithOp) int {
	switch op {
	case ir.OpInc, ir.OpDec, ir.OpNeg, ir.OpNot, ir.OpLea:
		return 1
	default:
		return 2
	}
}

// liftExit lowers an IBB's terminator into real jumps against already
// (possibly not yet) reserved block labels (spec.md §4.2 "vm_branch" /
// "vm_branch_cond" / "vm_exit").
func (m *Machine) liftExit(c *section.CodeContainer, exit ir.Exit) error {
	switch exit.Class {
	case ir.ExitFallThrough, ir.ExitDirectBranch:
		tgt := exit.Targets[0]
		if tgt == nil {
			return eerrors.NewUnresolvedLabelError(fmt.Sprintf("external:%#x", exit.ExternalRVAs[0]))
		}
		if !exit.Inline {
			c.Jump(asmamd64.JMP, m.labelForBlock(tgt))
		}
		return nil
	case ir.ExitConditionalPair:
		taken, fall := exit.Targets[0], exit.Targets[1]
		if taken == nil {
			return eerrors.NewUnresolvedLabelError(fmt.Sprintf("external:%#x", exit.ExternalRVAs[0]))
		}
		jcc, err := condJump(exit.FlagExpr.Cond)
		if err != nil {
			return err
		}
		c.Jump(jcc, m.labelForBlock(taken))
		if fall == nil {
			// The not-taken edge leaves the lifted region; stitching that
			// to a host-side resume point is the pipeline driver's job
			// (exit trampolines), not this block's codegen.
			return eerrors.NewUnresolvedLabelError(fmt.Sprintf("external:%#x", exit.ExternalRVAs[1]))
		}
		if !exit.Inline {
			c.Jump(asmamd64.JMP, m.labelForBlock(fall))
		}
		return nil
	case ir.ExitReturn, ir.ExitIndirect:
		c.Asm().CompileStandAlone(asmamd64.RET)
		return nil
	default:
		return nil
	}
}

func (m *Machine) labelForBlock(b *ir.IBB) *section.Label {
	if l, ok := m.blockLabels[b.ID]; ok {
		return l
	}
	name := blockLabelName(m.vmid, b.ID)
	l, _ := m.sec.Label(name)
	return l
}

// condJump maps a FlagExpr condition code to the real conditional jump
// opcode the kept assembler knows how to encode (internal/asm/amd64's
// generalized Jcc set, internal/asm/amd64/consts.go). "o"/"no"/"cxz" have
// no entry in that set and "ns" (JPL) is declared there but has no encoding
// (the teacher never needed an overflow or parity-adjacent sign check); all
// four surface as unsupported, same as an unlifted mnemonic.
func condJump(cond string) (asm.Instruction, error) {
	switch cond {
	case "e":
		return asmamd64.JEQ, nil
	case "ne":
		return asmamd64.JNE, nil
	case "a":
		return asmamd64.JHI, nil
	case "ae":
		return asmamd64.JCC, nil
	case "b":
		return asmamd64.JCS, nil
	case "be":
		return asmamd64.JLS, nil
	case "g":
		return asmamd64.JGT, nil
	case "ge":
		return asmamd64.JGE, nil
	case "l":
		return asmamd64.JLT, nil
	case "le":
		return asmamd64.JLE, nil
	case "s":
		return asmamd64.JMI, nil
	case "p":
		return asmamd64.JPS, nil
	case "np":
		return asmamd64.JPC, nil
	default:
		return 0, eerrors.NewUnsupportedInstructionError("jcc:"+cond, 0)
	}
}

// call emits the two-jump call/return emulation described in the package
// doc: capture a return address into vcsret, then jump into the handler.
func (m *Machine) call(c *section.CodeContainer, handler *section.Label) error {
	if handler == nil {
		return eerrors.NewUnresolvedLabelError("handler")
	}
	c.Asm().CompileReadInstructionAddress(hostReg(m.roles.VCSRet), asmamd64.JMP)
	c.Jump(asmamd64.JMP, handler)
	return nil
}

// handlerFor returns key's handler label, generating its body on first use
// (spec.md §4.5 "creating the handler lazily on first use").
func (m *Machine) handlerFor(key handlerKey, gen func(*section.CodeContainer)) *section.Label {
	if l, ok := m.handlers[key]; ok {
		return l
	}
	name := fmt.Sprintf("vm%d_handler_%s_%d_%d_%d", m.vmid, key.kind, key.width, key.op, key.operands)
	c := m.sec.NewContainer(name)
	gen(c)
	c.Asm().CompileJumpToRegister(asmamd64.JMP, hostReg(m.roles.VCSRet))
	m.handlers[key] = c.Label
	m.handlerSeq = append(m.handlerSeq, key)
	return c.Label
}

// --- shared handler bodies --------------------------------------------------

// genPush stores vtemp at [vbase+vsp] and advances vsp by one slot.
func (m *Machine) genPush(c *section.CodeContainer) {
	c.Asm().CompileRegisterToMemoryWithIndex(asmamd64.MOVQ, m.vtemp, m.vbase, 0, m.vsp, 1)
	c.Asm().CompileConstToRegister(asmamd64.ADDQ, slotBytes, m.vsp)
}

// genPop retires one slot and loads its value into vtemp.
func (m *Machine) genPop(c *section.CodeContainer) {
	c.Asm().CompileConstToRegister(asmamd64.SUBQ, slotBytes, m.vsp)
	c.Asm().CompileMemoryWithIndexToRegister(asmamd64.MOVQ, m.vbase, 0, m.vsp, 1, m.vtemp)
}

// genMemRead pops an address into vtemp, loads the width-sized value at
// that address (zero-extended to 64 bits), and pushes it back.
func (m *Machine) genMemRead(w ir.Width) func(*section.CodeContainer) {
	return func(c *section.CodeContainer) {
		m.genPop(c)
		loadOp := widenLoad(w)
		c.Asm().CompileMemoryToRegister(loadOp, m.vtemp, 0, m.vtemp)
		m.genPush(c)
	}
}

// genMemWrite pops (value, address) and stores value's low w bits at
// address.
func (m *Machine) genMemWrite(w ir.Width) func(*section.CodeContainer) {
	return func(c *section.CodeContainer) {
		// Stack order from the lifter: value pushed, then address pushed,
		// so address is on top.
		c.Asm().CompileConstToRegister(asmamd64.SUBQ, slotBytes, m.vsp)
		c.Asm().CompileMemoryWithIndexToRegister(asmamd64.MOVQ, m.vbase, 0, m.vsp, 1, m.vtemp2) // address
		c.Asm().CompileConstToRegister(asmamd64.SUBQ, slotBytes, m.vsp)
		c.Asm().CompileMemoryWithIndexToRegister(asmamd64.MOVQ, m.vbase, 0, m.vsp, 1, m.vtemp) // value
		c.Asm().CompileRegisterToMemory(storeOp(w), m.vtemp, m.vtemp2, 0)
	}
}

// genArithmetic pops (dst, src) in the RPN order the lifter emits them
// (push dst, push src), applies op using the real host instruction so real
// flags are produced, and pushes the result.
func (m *Machine) genArithmetic(op ir.ArithOp, w ir.Width) func(*section.CodeContainer) {
	return func(c *section.CodeContainer) {
		switch op {
		case ir.OpInc, ir.OpDec, ir.OpNeg, ir.OpNot:
			m.genPop(c) // dst
			switch op {
			case ir.OpInc:
				c.Asm().CompileConstToRegister(asmamd64.ADDQ, 1, m.vtemp)
			case ir.OpDec:
				c.Asm().CompileConstToRegister(asmamd64.SUBQ, 1, m.vtemp)
			case ir.OpNeg:
				// 0 - vtemp, computed via vtemp2 since there is no native
				// NEG in the kept assembler.
				c.Asm().CompileConstToRegister(asmamd64.MOVQ, 0, m.vtemp2)
				c.Asm().CompileRegisterToRegister(asmamd64.SUBQ, m.vtemp, m.vtemp2)
				c.Asm().CompileRegisterToRegister(asmamd64.MOVQ, m.vtemp2, m.vtemp)
			case ir.OpNot:
				// vtemp ^= -1, since there is no native NOT either.
				c.Asm().CompileConstToRegister(asmamd64.XORQ, -1, m.vtemp)
			}
			m.genPush(c)
		default:
			m.genPop(c) // src
			c.Asm().CompileRegisterToRegister(asmamd64.MOVQ, m.vtemp, m.vtemp2)
			m.genPop(c) // dst
			switch op {
			case ir.OpAdd:
				c.Asm().CompileRegisterToRegister(asmamd64.ADDQ, m.vtemp2, m.vtemp)
			case ir.OpSub:
				c.Asm().CompileRegisterToRegister(asmamd64.SUBQ, m.vtemp2, m.vtemp)
			case ir.OpAnd:
				c.Asm().CompileRegisterToRegister(asmamd64.ANDQ, m.vtemp2, m.vtemp)
			case ir.OpOr:
				c.Asm().CompileRegisterToRegister(asmamd64.ORQ, m.vtemp2, m.vtemp)
			case ir.OpXor:
				c.Asm().CompileRegisterToRegister(asmamd64.XORQ, m.vtemp2, m.vtemp)
			case ir.OpShl:
				c.Asm().CompileRegisterToRegister(asmamd64.SHLQ, m.vtemp2, m.vtemp)
			case ir.OpShr:
				c.Asm().CompileRegisterToRegister(asmamd64.SHRQ, m.vtemp2, m.vtemp)
			case ir.OpSar:
				c.Asm().CompileRegisterToRegister(asmamd64.SARQ, m.vtemp2, m.vtemp)
			}
			m.genPush(c)
		}
		_ = w // slot width is fixed; w only affects the eventual host write-back at context-store time
	}
}

// genCompare pops (dst, src) and computes dst - src for flags only.
func (m *Machine) genCompare(w ir.Width) func(*section.CodeContainer) {
	return func(c *section.CodeContainer) {
		m.genPop(c) // src
		c.Asm().CompileRegisterToRegister(asmamd64.MOVQ, m.vtemp, m.vtemp2)
		m.genPop(c) // dst
		c.Asm().CompileRegisterToRegister(asmamd64.CMPQ, m.vtemp2, m.vtemp)
		_ = w
	}
}

func widenLoad(w ir.Width) asm.Instruction {
	switch w {
	case ir.Width8:
		return asmamd64.MOVBQZX
	case ir.Width16:
		return asmamd64.MOVWQZX
	case ir.Width32:
		return asmamd64.MOVLQZX
	default:
		return asmamd64.MOVQ
	}
}

func storeOp(w ir.Width) asm.Instruction {
	switch w {
	case ir.Width8:
		return asmamd64.MOVB
	case ir.Width16:
		return asmamd64.MOVW
	case ir.Width32:
		return asmamd64.MOVL
	default:
		return asmamd64.MOVQ
	}
}

// --- register-file context load/store (spec.md §4.5 "range-aware" moves) --

// contextLoad gathers guestReg's scattered fragments into vtemp, masked to
// w bits (spec.md §4.5).
func (m *Machine) contextLoad(c *section.CodeContainer, gr ir.GuestReg, w ir.Width) error {
	c.Asm().CompileConstToRegister(asmamd64.MOVQ, 0, m.vtemp)
	for _, frag := range m.alloc.GetRegisterMappedRanges(gr) {
		if frag.Source.Lo >= int(w) {
			continue // entirely outside the requested width
		}
		if err := m.loadFragment(c, frag); err != nil {
			return err
		}
	}
	if w < ir.Width64 {
		// A fragment straddling bit w also brought in bits at and above w;
		// clear them with a shift pair.
		c.Asm().CompileConstToRegister(asmamd64.SHLQ, int64(64-int(w)), m.vtemp)
		c.Asm().CompileConstToRegister(asmamd64.SHRQ, int64(64-int(w)), m.vtemp)
	}
	return nil
}

// contextStore scatters vtemp's low w bits back out to guestReg's
// fragments, touching only the host bits each fragment maps to (spec.md
// §4.5: "storing a 32-bit guest sub-register touches only the scatter
// fragments that intersect [0,31]").
func (m *Machine) contextStore(c *section.CodeContainer, gr ir.GuestReg, w ir.Width) error {
	for _, frag := range m.alloc.GetRegisterMappedRanges(gr) {
		if frag.Source.Lo >= int(w) {
			continue
		}
		if err := m.storeFragment(c, frag); err != nil {
			return err
		}
	}
	return nil
}

// loadFragment brings one scatter fragment's bits into their position in
// vtemp. XMM hosts are bridged through vbridge via MOVQ, since bit-shifting
// an XMM directly would need an instruction set the kept assembler does
// not expose.
func (m *Machine) loadFragment(c *section.CodeContainer, frag regalloc.Scatter) error {
	host, err := m.hostRegisterFor(frag.Host)
	if err != nil {
		return err
	}
	if frag.Host.Bits == 128 {
		c.Asm().CompileRegisterToRegister(asmamd64.MOVQ, host, m.vbridge)
		host = m.vbridge
	}
	// Extract [Dest.Lo, Dest.Hi) from host into vtemp2's low bits, then OR
	// into vtemp at [Source.Lo, Source.Hi).
	c.Asm().CompileRegisterToRegister(asmamd64.MOVQ, host, m.vtemp2)
	if frag.Dest.Lo > 0 {
		c.Asm().CompileConstToRegister(asmamd64.SHRQ, int64(frag.Dest.Lo), m.vtemp2)
	}
	width := frag.Source.Hi - frag.Source.Lo
	if width < 64 {
		mask := (int64(1) << uint(width)) - 1
		c.Asm().CompileConstToRegister(asmamd64.ANDQ, mask, m.vtemp2)
	}
	if frag.Source.Lo > 0 {
		c.Asm().CompileConstToRegister(asmamd64.SHLQ, int64(frag.Source.Lo), m.vtemp2)
	}
	c.Asm().CompileRegisterToRegister(asmamd64.ORQ, m.vtemp2, m.vtemp)
	return nil
}

// storeFragment writes vtemp's [Source.Lo, Source.Hi) bits into the host
// register's [Dest.Lo, Dest.Hi), preserving every bit outside that range.
func (m *Machine) storeFragment(c *section.CodeContainer, frag regalloc.Scatter) error {
	host, err := m.hostRegisterFor(frag.Host)
	if err != nil {
		return err
	}
	bridge := frag.Host.Bits == 128

	// vtemp2 <- the fragment's bits from vtemp, shifted into destination
	// position.
	c.Asm().CompileRegisterToRegister(asmamd64.MOVQ, m.vtemp, m.vtemp2)
	if frag.Source.Lo > 0 {
		c.Asm().CompileConstToRegister(asmamd64.SHRQ, int64(frag.Source.Lo), m.vtemp2)
	}
	width := frag.Source.Hi - frag.Source.Lo
	if width < 64 {
		mask := (int64(1) << uint(width)) - 1
		c.Asm().CompileConstToRegister(asmamd64.ANDQ, mask, m.vtemp2)
	}
	if frag.Dest.Lo > 0 {
		c.Asm().CompileConstToRegister(asmamd64.SHLQ, int64(frag.Dest.Lo), m.vtemp2)
	}

	hostBridged := host
	if bridge {
		hostBridged = m.vbridge
		c.Asm().CompileRegisterToRegister(asmamd64.MOVQ, host, hostBridged)
	}

	// Clear the destination bits in the (bridged) host value, then OR in
	// the new fragment.
	destWidth := frag.Dest.Hi - frag.Dest.Lo
	destMask := ^(((int64(1) << uint(destWidth)) - 1) << uint(frag.Dest.Lo))
	c.Asm().CompileConstToRegister(asmamd64.ANDQ, destMask, hostBridged)
	c.Asm().CompileRegisterToRegister(asmamd64.ORQ, m.vtemp2, hostBridged)

	if bridge {
		c.Asm().CompileRegisterToRegister(asmamd64.MOVQ, hostBridged, host)
	}
	return nil
}

func (m *Machine) hostRegisterFor(h regalloc.HostReg) (asm.Register, error) {
	r := hostReg(h)
	if r == asm.NilRegister {
		return 0, eerrors.NewAllocationFailureError(h.Name)
	}
	return r, nil
}

// hostReg maps a regalloc.HostReg name to the asm package's register
// constant.
func hostReg(h regalloc.HostReg) asm.Register {
	switch h.Name {
	case "rax":
		return asmamd64.REG_AX
	case "rbx":
		return asmamd64.REG_BX
	case "rcx":
		return asmamd64.REG_CX
	case "rdx":
		return asmamd64.REG_DX
	case "rsi":
		return asmamd64.REG_SI
	case "rdi":
		return asmamd64.REG_DI
	case "rbp":
		return asmamd64.REG_BP
	case "rsp":
		return asmamd64.REG_SP
	case "r8":
		return asmamd64.REG_R8
	case "r9":
		return asmamd64.REG_R9
	case "r10":
		return asmamd64.REG_R10
	case "r11":
		return asmamd64.REG_R11
	case "r12":
		return asmamd64.REG_R12
	case "r13":
		return asmamd64.REG_R13
	case "r14":
		return asmamd64.REG_R14
	case "r15":
		return asmamd64.REG_R15
	case "xmm0":
		return asmamd64.REG_X0
	case "xmm1":
		return asmamd64.REG_X1
	case "xmm2":
		return asmamd64.REG_X2
	case "xmm3":
		return asmamd64.REG_X3
	case "xmm4":
		return asmamd64.REG_X4
	case "xmm5":
		return asmamd64.REG_X5
	case "xmm6":
		return asmamd64.REG_X6
	case "xmm7":
		return asmamd64.REG_X7
	case "xmm8":
		return asmamd64.REG_X8
	case "xmm9":
		return asmamd64.REG_X9
	case "xmm10":
		return asmamd64.REG_X10
	case "xmm11":
		return asmamd64.REG_X11
	case "xmm12":
		return asmamd64.REG_X12
	case "xmm13":
		return asmamd64.REG_X13
	case "xmm14":
		return asmamd64.REG_X14
	case "xmm15":
		return asmamd64.REG_X15
	default:
		return asm.NilRegister
	}
}
