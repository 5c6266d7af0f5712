package decoder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golang.org/x/arch/x86/x86asm"
)

func TestDecode_MovImmediate(t *testing.T) {
	d := New()
	di, err := d.Decode([]byte{0xB8, 0x05, 0x00, 0x00, 0x00}, 0x1000)
	require.NoError(t, err)

	assert.Equal(t, uint64(0x1000), di.RVA)
	assert.Equal(t, x86asm.MOV, di.Mnemonic)
	assert.Equal(t, 5, di.Len)
	require.Len(t, di.Operands, 2)
	assert.Equal(t, OperandRegister, di.Operands[0].Kind)
	assert.Equal(t, OperandImmediate, di.Operands[1].Kind)
	assert.Equal(t, int64(5), di.Operands[1].Imm)
}

func TestDecode_RelativeJumpOperand(t *testing.T) {
	d := New()
	// jmp +0: relative operand, target is the instruction following this one.
	di, err := d.Decode([]byte{0xEB, 0x00}, 0x2000)
	require.NoError(t, err)

	assert.Equal(t, x86asm.JMP, di.Mnemonic)
	require.Len(t, di.Operands, 1)
	assert.Equal(t, OperandRelative, di.Operands[0].Kind)
	assert.Equal(t, int64(0), di.Operands[0].Rel)
}

func TestDecode_EmptyInputReturnsDecodeError(t *testing.T) {
	d := New()
	_, err := d.Decode([]byte{}, 0)
	assert.Error(t, err)
}

func TestIsControlTransfer_CoversJumpsAndReturnsButNotCall(t *testing.T) {
	assert.True(t, IsControlTransfer(x86asm.JMP))
	assert.True(t, IsControlTransfer(x86asm.RET))
	assert.True(t, IsControlTransfer(x86asm.JE))
	assert.False(t, IsControlTransfer(x86asm.CALL), "near CALL does not end a basic block")
	assert.False(t, IsControlTransfer(x86asm.MOV))
}

func TestIsConditionalBranch_ExcludesUnconditionalJmpAndRet(t *testing.T) {
	assert.True(t, IsConditionalBranch(x86asm.JE))
	assert.True(t, IsConditionalBranch(x86asm.LOOP))
	assert.False(t, IsConditionalBranch(x86asm.JMP))
	assert.False(t, IsConditionalBranch(x86asm.RET))
}
