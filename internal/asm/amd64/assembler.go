package amd64

import (
	"github.com/eaglevm/eaglevm/internal/asm"
)

// Assembler is the interface used by the machine handler generator (C7). It
// only carries the amd64-specific addressing modes C7 actually emits:
// indexed loads/stores for the VM stack (spec.md §4.7's vsp/vbase scheme)
// on top of the architecture-independent asm.AssemblerBase surface.
type Assembler interface {
	asm.AssemblerBase

	// CompileMemoryWithIndexToRegister adds an instruction where source operand is the memory address
	// specified as `srcBaseReg + srcOffsetConst + srcIndex*srcScale` and destination is the register `DstReg`.
	// Note: sourceScale must be one of 1, 2, 4, 8.
	CompileMemoryWithIndexToRegister(
		instruction asm.Instruction,
		srcBaseReg asm.Register,
		srcOffsetConst int64,
		srcIndex asm.Register,
		srcScale int16,
		dstReg asm.Register,
	)

	// CompileRegisterToMemoryWithIndex adds an instruction where source operand is the register `SrcReg`,
	// and the destination is the memory address specified as `dstBaseReg + dstOffsetConst + dstIndex*dstScale`
	// Note: dstScale must be one of 1, 2, 4, 8.
	CompileRegisterToMemoryWithIndex(
		instruction asm.Instruction,
		srcReg asm.Register,
		dstBaseReg asm.Register,
		dstOffsetConst int64,
		dstIndex asm.Register,
		dstScale int16,
	)
}
