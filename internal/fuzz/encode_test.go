package fuzz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestADD_EncodesKnownBytes(t *testing.T) {
	// add rax, rbx: REX.W(0x48) 01 /r, ModRM(11,rbx=3,rax=0) = 0xD8.
	b, err := ADD("rax", "rbx")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x48, 0x01, 0xD8}, b)
}

func TestSUB_EncodesKnownBytes(t *testing.T) {
	// sub rax, rbx: REX.W 0x29 /r, ModRM(11,rbx=3,rax=0) = 0xD8.
	b, err := SUB("rax", "rbx")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x48, 0x29, 0xD8}, b)
}

func TestINC_EncodesExtendedRegisterREX(t *testing.T) {
	// inc r9: REX.WB (0x41|0x08=0x49) FF /0, ModRM(11,0,r9&7=1) = 0xC1.
	b, err := INC("r9")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x49, 0xFF, 0xC1}, b)
}

func TestMOVImm64_EncodesLittleEndianImmediate(t *testing.T) {
	b, err := MOVImm64("rcx", 0x0102030405060708)
	require.NoError(t, err)
	assert.Equal(t, []byte{
		0x48, 0xB9,
		0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01,
	}, b)
}

func TestLEA_EncodesSIBForm(t *testing.T) {
	// lea rax, [rax + rbx*1 + 0]
	b, err := LEA("rax", "rax", "rbx", 1, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{
		0x48, // REX.W, no extended regs
		0x8D, // LEA
		0x44, // ModRM: mod=01 (disp8), reg=rax(0), rm=100 (SIB)
		0x18, // SIB: scale=00, index=rbx(3), base=rax(0)
		0x00, // disp8
	}, b)
}

func TestEncode_RejectsUnknownRegister(t *testing.T) {
	_, err := ADD("rax", "not-a-register")
	assert.Error(t, err)
}

func TestRET_IsBareReturn(t *testing.T) {
	assert.Equal(t, []byte{0xC3}, RET())
}
