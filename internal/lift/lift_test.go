package lift

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eaglevm/eaglevm/internal/disasm"
	"github.com/eaglevm/eaglevm/internal/ir"
)

func liftCode(t *testing.T, code []byte, entryRVA uint64) (*ir.Graph, *ir.IBB) {
	t.Helper()
	d := disasm.New(code, 0, uint64(len(code)))
	_, err := d.GenerateBlocks(entryRVA)
	require.NoError(t, err)

	g := ir.NewGraph()
	l := New(d.Graph(), g)
	entry, err := l.LiftAll(entryRVA)
	require.NoError(t, err)
	return g, entry
}

// mov eax, 5; ret lowers to push_imm/pop_reg, mirroring spec.md §4.2's
// symmetric push-then-store shape for a register destination, followed by
// the vm_exit the ret lowers to.
func TestLiftMov_PushesImmThenPopsIntoRegister(t *testing.T) {
	code := []byte{0xB8, 0x05, 0x00, 0x00, 0x00, 0xC3}
	_, entry := liftCode(t, code, 0)

	require.Equal(t, []ir.Command{
		ir.PushImm(ir.Width32, 5),
		ir.PopReg(ir.Width32, ir.RAX),
		{Kind: ir.KindVMExit},
	}, entry.Commands)
	assert.Equal(t, ir.ExitReturn, entry.Exit.Class)
}

// add rax, rbx; ret pushes both operands, performs the op, emits a flags
// update, then stores back to the destination register (spec.md §4.2); the
// ret adds a final vm_exit.
func TestLiftAdd_PushesBothThenArithThenFlagsThenStore(t *testing.T) {
	code := []byte{0x48, 0x01, 0xD8, 0xC3}
	_, entry := liftCode(t, code, 0)

	require.Len(t, entry.Commands, 6)
	assert.Equal(t, ir.PushReg(ir.Width64, ir.RAX), entry.Commands[0])
	assert.Equal(t, ir.PushReg(ir.Width64, ir.RBX), entry.Commands[1])
	assert.Equal(t, ir.KindArithmetic, entry.Commands[2].Kind)
	assert.Equal(t, ir.OpAdd, entry.Commands[2].Op)
	assert.Equal(t, ir.KindFlagsUpdate, entry.Commands[3].Kind)
	assert.Equal(t, ir.PopReg(ir.Width64, ir.RAX), entry.Commands[4])
	assert.Equal(t, ir.KindVMExit, entry.Commands[5].Kind)
}

// An unsupported mnemonic (e.g. IMUL, per spec.md §9's decided Open
// Question) surfaces as an unsupported-instruction error rather than
// silently dropping the instruction.
func TestLiftAll_UnsupportedMnemonicErrors(t *testing.T) {
	code := []byte{0x48, 0x0F, 0xAF, 0xD8, 0xC3} // imul rbx, rax
	d := disasm.New(code, 0, uint64(len(code)))
	_, err := d.GenerateBlocks(0)
	require.NoError(t, err)

	g := ir.NewGraph()
	l := New(d.Graph(), g)
	_, err = l.LiftAll(0)
	assert.Error(t, err)
}

// LiftAll binds every reachable block to a stable IBB keyed by its
// originating start RVA, regardless of lift order (two-pass binding).
func TestLiftAll_BindsBlocksByRVA(t *testing.T) {
	code := []byte{
		0xB8, 0x05, 0x00, 0x00, 0x00, // mov eax, 5  (0..5)
		0xEB, 0x00, // jmp +0 -> 7     (5..7)
		0xC3, // ret                  (7..8)
	}
	g, entry := liftCode(t, code, 0)

	require.Equal(t, ir.ExitDirectBranch, entry.Exit.Class)
	require.Len(t, entry.Exit.Targets, 1)
	target := entry.Exit.Targets[0]
	require.NotNil(t, target)
	assert.Same(t, target, g.BlockByRVA(7))
	assert.Equal(t, ir.ExitReturn, target.Exit.Class)
}
