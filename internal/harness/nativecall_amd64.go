package harness

// nativecall transfers control to the code at codeAddr with in's registers
// loaded into the corresponding physical registers, then captures the
// resulting register/flag state into out once codeAddr's appended
// SentinelTrap (a RET) returns control to the trampoline. Implemented in
// nativecall_amd64.s; grounded on the call-site shape of wazero's own
// compiler engine, which transfers control into JIT-generated machine code
// the same way (internal/engine/compiler/engine.go's
// `nativecall(codeAddr, ...)`).
//
//go:noescape
func nativecall(codeAddr uintptr, in, out *Context)
