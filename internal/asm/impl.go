package asm

// BaseAssemblerImpl includes code common to all architectures.
//
// Note: When possible, add code here instead of in architecture-specific files to reduce drift:
// As this is internal, exporting symbols only to reduce duplication is ok.
type BaseAssemblerImpl struct {
	// OnGenerateCallbacks holds callbacks run against the final assembled
	// byte slice, once every node's absolute OffsetInBinary is known.
	// CompileReadInstructionAddress uses this to patch in a LEAQ operand
	// that can only be computed after layout (spec.md §4.6/§4.7's
	// "bridged" VMCALL return-address trick).
	OnGenerateCallbacks []func(code []byte) error
}

// AddOnGenerateCallBack implements AssemblerBase.AddOnGenerateCallBack
func (a *BaseAssemblerImpl) AddOnGenerateCallBack(cb func(code []byte) error) {
	a.OnGenerateCallbacks = append(a.OnGenerateCallbacks, cb)
}
