package fuzz

import (
	"github.com/pkg/errors"

	"github.com/eaglevm/eaglevm/internal/compiler"
	"github.com/eaglevm/eaglevm/internal/harness"
	"github.com/eaglevm/eaglevm/internal/rng"
)

// Result is one equivalence run's outcome: the generated program, the
// register state produced running it natively, the register state
// produced running the virtualized output, and the mismatch (if any).
type Result struct {
	Seq        Sequence
	Native     *harness.Context
	Virtual    *harness.Context
	Mismatch   harness.MismatchKind
	CheckFlags bool
}

// CheckEquivalence generates an n-instruction sequence with seed, compiles
// it through the full pipeline, and runs both the plain native bytes and
// the virtualized output from the same initial register state, reporting
// any divergence (spec.md §8 property 6: "produces instructions
// semantically equivalent to the input... for the supported mnemonic
// subset").
func CheckEquivalence(seed int64, n int, in *harness.Context, checkFlags bool) (Result, error) {
	g := rng.New(seed)
	seq, err := Generate(g, n)
	if err != nil {
		return Result{}, errors.Wrap(err, "generate")
	}

	nativeH, err := harness.New(len(seq.Code))
	if err != nil {
		return Result{}, errors.Wrap(err, "acquire native region")
	}
	defer nativeH.Close()

	native, err := nativeH.Run(seq.Code, in)
	if err != nil {
		return Result{}, errors.Wrap(err, "run native")
	}

	virtual, err := runVirtualized(seq.Code, seed, in)
	if err != nil {
		return Result{}, errors.Wrap(err, "run virtualized")
	}

	return Result{
		Seq:        seq,
		Native:     native,
		Virtual:    virtual,
		Mismatch:   harness.Compare(virtual, native, checkFlags),
		CheckFlags: checkFlags,
	}, nil
}

// runVirtualized compiles code through internal/compiler and executes the
// result via internal/harness. The assembler bakes absolute addresses
// against the base RVA it's given, so this compiles twice: once to learn
// the emitted length, once against the harness region's real host address
// so internal jumps resolve correctly once loaded there.
func runVirtualized(code []byte, seed int64, in *harness.Context) (*harness.Context, error) {
	probe, err := compiler.Compile(compiler.Input{
		Code: code, BinaryRVA: 0, BinaryEnd: uint64(len(code)), EntryRVA: 0,
		Seed: seed, NumVMs: 1,
	})
	if err != nil {
		return nil, errors.Wrap(err, "probe compile")
	}
	if len(probe.VMs) == 0 {
		return nil, errors.New("fuzz: probe compile produced no VMs")
	}

	h, err := harness.New(len(probe.VMs[0].Code))
	if err != nil {
		return nil, errors.Wrap(err, "acquire region")
	}
	defer h.Close()

	base := uint64(h.BaseAddr())
	out, err := compiler.Compile(compiler.Input{
		Code: code, BinaryRVA: base, BinaryEnd: base + uint64(len(code)), EntryRVA: base,
		Seed: seed, NumVMs: 1,
	})
	if err != nil {
		return nil, errors.Wrap(err, "compile at host address")
	}
	vm := out.VMs[0]
	if len(vm.Code) != len(probe.VMs[0].Code) {
		return nil, errors.Errorf("fuzz: recompiled VM length changed (%d -> %d) between probe and real base RVA", len(probe.VMs[0].Code), len(vm.Code))
	}

	entryOffset := int(vm.Entry - base)
	return h.RunAt(vm.Code, entryOffset, in)
}
