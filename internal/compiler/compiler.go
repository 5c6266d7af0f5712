// Package compiler wires C1 through C8 into the single pipeline entry
// point spec.md describes (spec.md §4.7 in SPEC_FULL.md), the way
// cmd/wazero's doCompile/doRun dispatch funnels a unit of work through one
// function with phase-by-phase error propagation.
package compiler

import (
	"github.com/pkg/errors"

	"github.com/eaglevm/eaglevm/internal/asm"
	"github.com/eaglevm/eaglevm/internal/disasm"
	"github.com/eaglevm/eaglevm/internal/eerrors"
	"github.com/eaglevm/eaglevm/internal/ir"
	"github.com/eaglevm/eaglevm/internal/lift"
	"github.com/eaglevm/eaglevm/internal/logging"
	"github.com/eaglevm/eaglevm/internal/machine"
	"github.com/eaglevm/eaglevm/internal/optimize"
	"github.com/eaglevm/eaglevm/internal/regalloc"
	"github.com/eaglevm/eaglevm/internal/rng"
	"github.com/eaglevm/eaglevm/internal/section"
)

// Input is everything one compilation unit needs (spec.md §4.7).
type Input struct {
	Code      []byte
	BinaryRVA uint64
	BinaryEnd uint64
	EntryRVA  uint64

	// Seed drives every random choice this compilation makes (VM
	// assignment, register scattering); reproducible given the same seed
	// (spec.md §5, §9).
	Seed int64

	// NumVMs is how many independently laid-out VM instances to split
	// blocks across. One is always valid (spec.md §3's "VMID ... a small
	// integer chosen at compile time").
	NumVMs int

	// RegallocRetries bounds the allocator's internal destination search
	// (regalloc.Options.MaxRetries); zero uses the package default.
	RegallocRetries int

	// MaxReseedAttempts bounds how many times the whole-VM register map is
	// rebuilt with a new seed after an allocation_failure before the
	// compile itself fails (spec.md §4.4's recoverable-by-reseed
	// contract).
	MaxReseedAttempts int

	Logger *logging.Logger
}

// VMOutput is one VM instance's assembled code and resolved labels.
type VMOutput struct {
	ID      ir.Discriminator
	Code    []byte
	Symbols map[string]uint64
	Entry   uint64
}

// Output is the full compilation result: one VMOutput per discriminator,
// in the optimizer's deterministic VM order.
type Output struct {
	VMs []VMOutput
}

const (
	defaultNumVMs            = 1
	defaultMaxReseedAttempts = 5
)

// Compile runs C1 (decode, inside C2) through C8 over in, in order,
// returning the first phase error encountered (spec.md §4.7).
func Compile(in Input) (Output, error) {
	log := in.Logger
	if log == nil {
		log = logging.Default()
	}
	if in.NumVMs <= 0 {
		in.NumVMs = defaultNumVMs
	}
	if in.MaxReseedAttempts <= 0 {
		in.MaxReseedAttempts = defaultMaxReseedAttempts
	}

	log.Debugf("disassembling from entry %#x", in.EntryRVA)
	d := disasm.New(in.Code, in.BinaryRVA, in.BinaryEnd)
	if _, err := d.GenerateBlocks(in.EntryRVA); err != nil {
		return Output{}, errors.Wrap(err, "disassemble")
	}

	log.Debugf("lifting %d blocks", len(d.Graph().Blocks()))
	irGraph := ir.NewGraph()
	lifter := lift.New(d.Graph(), irGraph)
	entryIBB, err := lifter.LiftAll(in.EntryRVA)
	if err != nil {
		return Output{}, errors.Wrap(err, "lift")
	}

	seeder := rng.New(in.Seed)
	preopt := assignDiscriminators(irGraph, entryIBB, in.NumVMs, seeder)

	log.Debugf("optimizing %d blocks across %d vm(s)", len(preopt), in.NumVMs)
	result, err := optimize.Optimize(preopt)
	if err != nil {
		return Output{}, errors.Wrap(err, "optimize")
	}

	var out Output
	baseRVA := in.BinaryRVA
	for _, vmid := range result.VMOrder {
		vmOut, err := compileVM(vmid, result.ByVM[vmid], in, baseRVA, log)
		if err != nil {
			return Output{}, errors.Wrapf(err, "vm %d", vmid)
		}
		out.VMs = append(out.VMs, vmOut)
		// Each VM instance is its own independently laid out code region;
		// lay them out back to back so no two VMs' labels resolve to the
		// same RVA (spec.md §3: "each maps to one independently generated
		// register/handler layout").
		baseRVA += uint64(len(vmOut.Code))
	}
	return out, nil
}

// assignDiscriminators assigns each lifted block to one of numVMs VM
// instances. The entry block's VM id is drawn first so downstream callers
// can identify the VM that should run first; every other block's id is
// drawn independently (spec.md §3: "VMID ... a small integer chosen at
// compile time", left open as to block->VM assignment policy, decided here
// as uniform random per block).
func assignDiscriminators(g *ir.Graph, entry *ir.IBB, numVMs int, g2 *rng.RNG) []*ir.PreoptBlock {
	entryVM := ir.Discriminator(g2.Uniform(numVMs))
	var out []*ir.PreoptBlock
	for _, b := range g.Blocks() {
		disc := entryVM
		if b != entry {
			disc = ir.Discriminator(g2.Uniform(numVMs))
		}
		out = append(out, &ir.PreoptBlock{
			Block:         b,
			Discriminator: disc,
			Entry:         b == entry,
		})
	}
	return out
}

// compileVM runs C6 (register allocation, with reseed-on-failure) and C7/C8
// (handler generation and assembly) for one VM's finalized blocks.
func compileVM(vmid ir.Discriminator, blocks []*ir.PreoptBlock, in Input, baseRVA uint64, log *logging.Logger) (VMOutput, error) {
	ibbs := make([]*ir.IBB, len(blocks))
	var entry *ir.IBB
	for i, pb := range blocks {
		ibbs[i] = pb.Block
		if pb.Entry {
			entry = pb.Block
		}
	}
	if entry == nil {
		entry = ibbs[0]
	}

	regs := usedGuestRegs(ibbs)

	var alloc *regalloc.Allocator
	for attempt := 0; attempt < in.MaxReseedAttempts; attempt++ {
		seed := in.Seed + int64(vmid)*1000 + int64(attempt)
		a := regalloc.New(rng.New(seed), regalloc.Options{MaxRetries: in.RegallocRetries})
		err := a.CreateMappings(regs)
		if err == nil {
			alloc = a
			break
		}
		var allocErr *eerrors.AllocationFailureError
		if !errors.As(err, &allocErr) {
			return VMOutput{}, err
		}
		log.Warnf("vm %d: register allocation failed (attempt %d), reseeding", vmid, attempt)
	}
	if alloc == nil {
		return VMOutput{}, eerrors.NewAllocationFailureError("exhausted reseed attempts")
	}

	sec, err := section.New(asm.NilRegister)
	if err != nil {
		return VMOutput{}, err
	}

	m := machine.New(vmid, alloc, sec)
	if err := m.LiftAll(ibbs, entry); err != nil {
		return VMOutput{}, err
	}

	built, err := sec.Build(baseRVA)
	if err != nil {
		return VMOutput{}, err
	}

	return VMOutput{
		ID:      vmid,
		Code:    built.Code,
		Symbols: built.Symbols,
		Entry:   m.EntryLabel().RVA(),
	}, nil
}

// usedGuestRegs scans every command across ibbs for a register operand,
// returning the deduplicated set the allocator must create a scatter plan
// for (spec.md §4.4 "create_mappings over every guest register the unit
// touches").
func usedGuestRegs(ibbs []*ir.IBB) []ir.GuestReg {
	seen := make([]bool, ir.NumGuestRegs)
	var out []ir.GuestReg
	for _, b := range ibbs {
		for _, c := range b.Commands {
			switch c.Kind {
			case ir.KindPushReg, ir.KindPopReg, ir.KindContextLoad, ir.KindContextStore:
				if !seen[c.Reg] {
					seen[c.Reg] = true
					out = append(out, c.Reg)
				}
			}
		}
	}
	return out
}
