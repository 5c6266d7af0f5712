// Package harness is the thin external collaborator spec.md §6 excludes
// from the core: it owns scoped acquisition of executable memory, the
// sentinel-trap control-transfer convention, and register/flag comparison
// (spec.md §8/§9). It consumes only the byte buffer C8 produces; it has no
// knowledge of IR, the allocator, or the machine package.
//
// original_source's EagleVM.Tests/source/main.cpp drives the equivalent
// routine on Windows: map an executable run_buffer, append a distinguished
// trap instruction (VMCALL, 0F 01 C1) after every test's virtualized bytes,
// install a vectored exception handler, transfer control, and compare the
// CONTEXT the handler captured against expected register/flag state.
//
// Recovering full architectural register state from a genuine illegal-
// instruction exception needs a SA_SIGINFO (or VEH) handler that hands back
// the faulting ucontext/CONTEXT; a cgo-free Go binary cannot install one
// (os/signal delivers only the signal number, never siginfo). SentinelTrap
// here is therefore an ordinary RET rather than original_source's VMCALL:
// the harness captures GPR/flag state at a normal call/return boundary
// instead of at a hardware trap. This is a deliberate simplification,
// documented rather than silently diverging from spec.md's "distinguished
// trap instruction" language.
package harness

import "fmt"

// SentinelTrap is appended after every virtualized test's bytes so the
// trampoline's capture point is unambiguous regardless of where the
// virtualized code actually exits.
var SentinelTrap = []byte{0xC3} // RET

// Context is a native x86-64 register/flag snapshot, the fields
// compare_context in original_source's main.cpp reads out of a CONTEXT.
type Context struct {
	Rax, Rbx, Rcx, Rdx uint64
	Rsi, Rdi, Rbp, Rsp uint64
	R8, R9, R10, R11   uint64
	R12, R13, R14, R15 uint64
	Rip                uint64
	EFlags             uint64
}

// field returns a pointer to the named register, mirroring
// test_util::get_value's register-name lookup.
func (c *Context) field(name string) (*uint64, error) {
	switch name {
	case "rax":
		return &c.Rax, nil
	case "rbx":
		return &c.Rbx, nil
	case "rcx":
		return &c.Rcx, nil
	case "rdx":
		return &c.Rdx, nil
	case "rsi":
		return &c.Rsi, nil
	case "rdi":
		return &c.Rdi, nil
	case "rbp":
		return &c.Rbp, nil
	case "rsp":
		return &c.Rsp, nil
	case "r8":
		return &c.R8, nil
	case "r9":
		return &c.R9, nil
	case "r10":
		return &c.R10, nil
	case "r11":
		return &c.R11, nil
	case "r12":
		return &c.R12, nil
	case "r13":
		return &c.R13, nil
	case "r14":
		return &c.R14, nil
	case "r15":
		return &c.R15, nil
	case "rip":
		return &c.Rip, nil
	case "flags":
		return &c.EFlags, nil
	default:
		return nil, fmt.Errorf("harness: unknown register %q", name)
	}
}

// Set writes value into the named register of the input context built
// before a run (build_writes in original_source).
func (c *Context) Set(name string, value uint64) error {
	f, err := c.field(name)
	if err != nil {
		return err
	}
	*f = value
	return nil
}

// Get reads the named register, rip and rsp included; only Compare leaves
// those two out, per spec.md §8's rip/rsp carve-out.
func (c *Context) Get(name string) (uint64, error) {
	f, err := c.field(name)
	if err != nil {
		return 0, err
	}
	return *f, nil
}

// MismatchKind distinguishes a register-value mismatch from a flags
// mismatch, mirroring original_source's register_mismatch/flags_mismatch
// bitmask.
type MismatchKind int

const (
	MismatchNone MismatchKind = 0
	MismatchRegister MismatchKind = 1 << (iota - 1)
	MismatchFlags
)

// Compare reports which categories of result diverge from want, excluding
// rip and rsp (spec.md §8 property 6's equivalence carve-out). checkFlags
// mirrors compare_context's `flags` parameter: only compared when the test
// case declares expected flags.
func Compare(result, want *Context, checkFlags bool) MismatchKind {
	var m MismatchKind
	regs := []string{
		"rax", "rbx", "rcx", "rdx", "rsi", "rdi", "rbp",
		"r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15",
	}
	for _, name := range regs {
		w, _ := want.field(name)
		r, _ := result.field(name)
		if *w != *r {
			m |= MismatchRegister
			break
		}
	}
	if checkFlags && (result.EFlags&want.EFlags) != want.EFlags {
		m |= MismatchFlags
	}
	return m
}

// Harness prepares register inputs, places virtualized bytes into a scoped
// executable region, transfers control, and returns the resulting register
// state (spec.md §6's "Test harness" external collaborator).
type Harness struct {
	region *Region
}

// New acquires a scoped executable region sized for code plus the
// sentinel, guaranteed released by Close on every exit path.
func New(codeLen int) (*Harness, error) {
	r, err := acquireRegion(codeLen + len(SentinelTrap))
	if err != nil {
		return nil, err
	}
	return &Harness{region: r}, nil
}

// BaseAddr returns the scoped region's host virtual address, needed by
// callers (e.g. internal/fuzz) that must compile code against the exact
// address it will execute at before writing it into the region.
func (h *Harness) BaseAddr() uintptr {
	if h.region == nil {
		return 0
	}
	return h.region.addr()
}

// Close releases the scoped executable region. Safe to call more than
// once.
func (h *Harness) Close() error {
	if h.region == nil {
		return nil
	}
	err := h.region.release()
	h.region = nil
	return err
}

// Run writes code plus the sentinel trap into the scoped region, transfers
// control at offset 0 with in as the initial register state, and returns
// the resulting state (spec.md §6/§9). Equivalent to RunAt(code, 0, in).
func (h *Harness) Run(code []byte, in *Context) (*Context, error) {
	return h.RunAt(code, 0, in)
}

// RunAt is Run but transfers control to entryOffset within code instead of
// offset 0, for callers (e.g. internal/fuzz) whose compiled entry point
// isn't the first byte of the buffer.
func (h *Harness) RunAt(code []byte, entryOffset int, in *Context) (*Context, error) {
	if h.region == nil {
		return nil, fmt.Errorf("harness: region already closed")
	}
	if entryOffset < 0 || entryOffset > len(code) {
		return nil, fmt.Errorf("harness: entry offset %d out of range", entryOffset)
	}
	buf := h.region.bytes()
	if len(code)+len(SentinelTrap) > len(buf) {
		return nil, fmt.Errorf("harness: code exceeds acquired region (%d > %d)", len(code)+len(SentinelTrap), len(buf))
	}
	n := copy(buf, code)
	copy(buf[n:], SentinelTrap)

	out := &Context{}
	*out = *in
	nativecall(h.region.addr()+uintptr(entryOffset), in, out)
	return out, nil
}
