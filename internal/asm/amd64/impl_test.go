package amd64

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eaglevm/eaglevm/internal/asm"
)

func TestNodeImpl_AssignJumpTarget(t *testing.T) {
	n := &nodeImpl{}
	target := &nodeImpl{}
	n.AssignJumpTarget(target)
	require.Equal(t, target, n.jumpTarget)
}

func TestNodeImpl_AssignConstants(t *testing.T) {
	n := &nodeImpl{}
	n.AssignDestinationConstant(12345)
	require.Equal(t, asm.ConstantValue(12345), n.dstConst)
	n.AssignSourceConstant(-99)
	require.Equal(t, asm.ConstantValue(-99), n.srcConst)
}

func TestNodeImpl_String(t *testing.T) {
	a := newAssemblerImpl()
	n := a.CompileConstToRegister(MOVQ, 10, REG_AX)
	require.Equal(t, "MOVQ 0xa, AX", n.String())

	a.CompileRegisterToRegister(ADDQ, REG_BX, REG_AX)
	require.Equal(t, "ADDQ BX, AX", a.current.String())
}

func TestAssemblerImpl_CompileStandAlone(t *testing.T) {
	a := newAssemblerImpl()
	n := a.CompileStandAlone(RET)
	require.Equal(t, RET, n.(*nodeImpl).instruction)
	require.Equal(t, operandTypesNoneToNone, n.(*nodeImpl).types)

	actual, err := a.Assemble()
	require.NoError(t, err)
	require.Equal(t, []byte{0xc3}, actual)
}

func TestAssemblerImpl_CompileConstToRegister(t *testing.T) {
	a := newAssemblerImpl()
	a.CompileConstToRegister(MOVQ, 0x1234, REG_CX)
	actual, err := a.Assemble()
	require.NoError(t, err)
	require.NotEmpty(t, actual)
}

func TestAssemblerImpl_CompileJump_ResolvesForwardTarget(t *testing.T) {
	a := newAssemblerImpl()
	jmp := a.CompileJump(JMP)
	target := a.CompileStandAlone(RET)
	jmp.AssignJumpTarget(target)

	code, err := a.Assemble()
	require.NoError(t, err)
	// A short forward jump over zero intervening bytes encodes as `eb 00`.
	require.Equal(t, []byte{0xeb, 0x00, 0xc3}, code)
}

func TestAssemblerImpl_CompileJumpToRegister(t *testing.T) {
	a := newAssemblerImpl()
	a.CompileJumpToRegister(JMP, REG_AX)
	actual, err := a.Assemble()
	require.NoError(t, err)
	require.NotEmpty(t, actual)
}

// CompileReadInstructionAddress backs Machine.call's "read my own
// return address" trick: the LEAQ operand can only be patched once the
// offset of the instruction after RET is known, so it must run as an
// OnGenerateCallBack (spec.md §4.7).
func TestAssemblerImpl_CompileReadInstructionAddress(t *testing.T) {
	a := newAssemblerImpl()
	a.CompileReadInstructionAddress(REG_AX, RET)
	a.CompileStandAlone(RET)
	a.CompileStandAlone(NOP)

	code, err := a.Assemble()
	require.NoError(t, err)
	require.NotEmpty(t, code)
	require.Len(t, a.OnGenerateCallbacks, 1)
}

func TestAssemblerImpl_CompileMemoryWithIndexToRegister(t *testing.T) {
	a := newAssemblerImpl()
	a.CompileMemoryWithIndexToRegister(MOVQ, REG_BX, 8, REG_CX, 2, REG_AX)
	n := a.current
	require.Equal(t, operandTypesMemoryToRegister, n.types)
	require.Equal(t, REG_BX, n.srcReg)
	require.Equal(t, asm.ConstantValue(8), n.srcConst)
	require.Equal(t, REG_CX, n.srcMemIndex)
	require.Equal(t, byte(2), n.srcMemScale)
	require.Equal(t, REG_AX, n.dstReg)
}

func TestAssemblerImpl_CompileRegisterToMemoryWithIndex(t *testing.T) {
	a := newAssemblerImpl()
	a.CompileRegisterToMemoryWithIndex(MOVQ, REG_AX, REG_BX, 16, REG_CX, 1)
	n := a.current
	require.Equal(t, operandTypesRegisterToMemory, n.types)
	require.Equal(t, REG_AX, n.srcReg)
	require.Equal(t, REG_BX, n.dstReg)
	require.Equal(t, asm.ConstantValue(16), n.dstConst)
	require.Equal(t, REG_CX, n.dstMemIndex)
	require.Equal(t, byte(1), n.dstMemScale)
}

func TestAssemblerImpl_AddOnGenerateCallBack(t *testing.T) {
	a := newAssemblerImpl()
	var called bool
	a.AddOnGenerateCallBack(func(code []byte) error {
		called = true
		return nil
	})
	a.CompileStandAlone(NOP)
	_, err := a.Assemble()
	require.NoError(t, err)
	require.True(t, called)
}
