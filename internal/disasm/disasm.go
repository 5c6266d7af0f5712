// Package disasm implements C2: linear-sweep disassembly with internal
// branch resolution, producing basic blocks and a successor graph
// (spec.md §4.1).
package disasm

import (
	"sort"

	"golang.org/x/arch/x86/x86asm"

	"github.com/eaglevm/eaglevm/internal/decoder"
	"github.com/eaglevm/eaglevm/internal/eerrors"
)

// Classification names the kind of edge leaving a BB terminator.
type Classification int

const (
	FallThrough Classification = iota
	DirectBranch
	ConditionalPair
	Indirect
	Return
)

// Terminator describes a BB's zero, one, or two successors.
type Terminator struct {
	Class Classification
	// Targets holds the successor RVAs in encounter order: for
	// ConditionalPair, [taken, not-taken].
	Targets []uint64
	// External marks, by index into Targets, which successors fall outside
	// [binary_rva, binary_end) (spec.md §3, block graph invariant b).
	External []bool
}

// BB is an ordered sequence of decoded instructions with a fixed start/end
// RVA and a terminator (spec.md §3).
type BB struct {
	StartRVA uint64
	// EndRVA is exclusive.
	EndRVA       uint64
	Instructions []decoder.DI
	Term         Terminator
}

// Graph is the set of BBs keyed by start RVA (spec.md §3).
type Graph struct {
	blocks map[uint64]*BB
	order  []uint64 // insertion order, for deterministic iteration
	Root   *BB
}

func newGraph() *Graph {
	return &Graph{blocks: map[uint64]*BB{}}
}

// GetBlock returns the BB starting at rva, or nil.
func (g *Graph) GetBlock(rva uint64) *BB {
	return g.blocks[rva]
}

// Blocks returns all blocks in insertion order (deterministic given
// deterministic input, per spec.md §4.3's reliance on ordering).
func (g *Graph) Blocks() []*BB {
	out := make([]*BB, 0, len(g.order))
	for _, rva := range g.order {
		out = append(out, g.blocks[rva])
	}
	return out
}

func (g *Graph) add(b *BB) {
	if _, ok := g.blocks[b.StartRVA]; !ok {
		g.order = append(g.order, b.StartRVA)
	}
	g.blocks[b.StartRVA] = b
}

func (g *Graph) delete(rva uint64) {
	delete(g.blocks, rva)
	for i, v := range g.order {
		if v == rva {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
}

// Disassembler performs the worklist-driven sweep described in spec.md
// §4.1.
type Disassembler struct {
	code      []byte
	binaryRVA uint64
	binaryEnd uint64
	dec       *decoder.Decoder
	graph     *Graph
	visited   map[uint64]bool
}

// New creates a Disassembler over code, loaded at binaryRVA and ending
// (exclusive) at binaryEnd.
func New(code []byte, binaryRVA, binaryEnd uint64) *Disassembler {
	return &Disassembler{
		code:      code,
		binaryRVA: binaryRVA,
		binaryEnd: binaryEnd,
		dec:       decoder.New(),
		graph:     newGraph(),
		visited:   map[uint64]bool{},
	}
}

func (d *Disassembler) inRange(rva uint64) bool {
	return rva >= d.binaryRVA && rva < d.binaryEnd
}

func (d *Disassembler) bytesAt(rva uint64) []byte {
	off := rva - d.binaryRVA
	return d.code[off:]
}

// GenerateBlocks runs the worklist algorithm from rootRVA and returns the
// root BB. Fails with eerrors.DecodeError or eerrors.OutOfRangeError.
func (d *Disassembler) GenerateBlocks(rootRVA uint64) (*BB, error) {
	worklist := []uint64{rootRVA}
	for len(worklist) > 0 {
		rva := worklist[0]
		worklist = worklist[1:]

		if d.visited[rva] {
			continue
		}
		if b := d.graph.GetBlock(rva); b != nil {
			// Already a block start (e.g. created by a prior split).
			d.visited[rva] = true
			continue
		}
		if owner := d.findOverlapping(rva); owner != nil {
			// rva falls strictly inside an existing BB: split it instead of
			// decoding a fresh block (spec.md §4.1).
			if _, _, err := d.SplitBlock(owner.StartRVA, rva); err != nil {
				return nil, err
			}
			d.visited[rva] = true
			continue
		}

		bb, err := d.decodeOne(rva)
		if err != nil {
			return nil, err
		}
		d.visited[rva] = true
		d.markExternal(bb)
		d.graph.add(bb)

		for i, tgt := range bb.Term.Targets {
			if bb.Term.External[i] {
				continue
			}
			worklist = append(worklist, tgt)
		}
	}

	root := d.graph.GetBlock(rootRVA)
	d.graph.Root = root
	return root, nil
}

// markExternal recomputes bb.Term.External against the disassembler's
// [binaryRVA, binaryEnd) range: a target outside it is marked external and
// must not be enqueued as an internal successor (spec.md §3, §4.1).
func (d *Disassembler) markExternal(bb *BB) {
	for i, tgt := range bb.Term.Targets {
		if !d.inRange(tgt) {
			bb.Term.External[i] = true
		}
	}
}

// findOverlapping returns the BB whose [StartRVA, EndRVA) strictly contains
// rva (i.e. StartRVA < rva < EndRVA), or nil.
func (d *Disassembler) findOverlapping(rva uint64) *BB {
	for _, b := range d.graph.Blocks() {
		if b.StartRVA < rva && rva < b.EndRVA {
			return b
		}
	}
	return nil
}

// decodeOne decodes linearly from rva until a control-transfer DI or an
// already-known block start (mid-stream) is reached.
func (d *Disassembler) decodeOne(rva uint64) (*BB, error) {
	bb := &BB{StartRVA: rva}
	cur := rva

	for {
		// If we are about to re-enter a previously discovered block start,
		// this block falls through into it: synthesize the fall-through
		// terminator and stop here (without splitting: the target already
		// owns its own start).
		if cur != rva {
			if existing := d.graph.GetBlock(cur); existing != nil {
				bb.EndRVA = cur
				bb.Term = Terminator{Class: FallThrough, Targets: []uint64{cur}, External: []bool{false}}
				return bb, nil
			}
		}

		if !d.inRange(cur) {
			return nil, eerrors.NewOutOfRangeError(cur)
		}

		di, err := d.dec.Decode(d.bytesAt(cur), cur)
		if err != nil {
			return nil, err
		}
		bb.Instructions = append(bb.Instructions, di)
		next := cur + uint64(di.Len)

		if decoder.IsControlTransfer(di.Mnemonic) {
			bb.EndRVA = next
			bb.Term = classify(di, next)
			return bb, nil
		}

		// A mid-stream RVA that is already a known block start means this
		// sweep has run into an existing block: end here with an implicit
		// fall-through, no split needed (the existing block already starts
		// exactly there).
		if existing := d.graph.GetBlock(next); existing != nil && next != rva {
			bb.EndRVA = next
			bb.Term = Terminator{Class: FallThrough, Targets: []uint64{next}, External: []bool{false}}
			return bb, nil
		}

		cur = next
	}
}

// classify turns one terminating DI into a Terminator. Conditional
// branches produce a ConditionalPair whose Targets are [taken, fallthrough].
func classify(di decoder.DI, next uint64) Terminator {
	switch {
	case di.Mnemonic == x86asm.RET:
		return Terminator{Class: Return}
	case di.Mnemonic == x86asm.JMP:
		if tgt, ok := relTarget(di, next); ok {
			return Terminator{Class: DirectBranch, Targets: []uint64{tgt}, External: []bool{false}}
		}
		return Terminator{Class: Indirect}
	case decoder.IsConditionalBranch(di.Mnemonic):
		if tgt, ok := relTarget(di, next); ok {
			return Terminator{
				Class:    ConditionalPair,
				Targets:  []uint64{tgt, next},
				External: []bool{false, false},
			}
		}
		return Terminator{Class: Indirect}
	default:
		return Terminator{Class: FallThrough, Targets: []uint64{next}, External: []bool{false}}
	}
}

func relTarget(di decoder.DI, next uint64) (uint64, bool) {
	for _, op := range di.Operands {
		if op.Kind == decoder.OperandRelative {
			return uint64(int64(next) + op.Rel), true
		}
	}
	return 0, false
}

// SplitBlock splits the BB starting at startRVA at splitRVA, which must lie
// strictly inside it. The upper half (from splitRVA) inherits the original
// terminator; the lower half gets a synthetic fall_through into it
// (spec.md §4.1).
func (d *Disassembler) SplitBlock(startRVA, splitRVA uint64) (*BB, *BB, error) {
	orig := d.graph.GetBlock(startRVA)
	if orig == nil {
		return nil, nil, eerrors.NewOutOfRangeError(startRVA)
	}

	idx := sort.Search(len(orig.Instructions), func(i int) bool {
		return orig.Instructions[i].RVA >= splitRVA
	})
	if idx == 0 || idx >= len(orig.Instructions) || orig.Instructions[idx].RVA != splitRVA {
		return nil, nil, eerrors.NewOutOfRangeError(splitRVA)
	}

	lower := &BB{
		StartRVA:     orig.StartRVA,
		EndRVA:       splitRVA,
		Instructions: append([]decoder.DI{}, orig.Instructions[:idx]...),
		Term:         Terminator{Class: FallThrough, Targets: []uint64{splitRVA}, External: []bool{false}},
	}
	upper := &BB{
		StartRVA:     splitRVA,
		EndRVA:       orig.EndRVA,
		Instructions: append([]decoder.DI{}, orig.Instructions[idx:]...),
		Term:         orig.Term,
	}

	d.graph.delete(orig.StartRVA)
	d.graph.add(lower)
	d.graph.add(upper)
	if d.graph.Root == orig {
		d.graph.Root = lower
	}
	return lower, upper, nil
}

// Graph returns the block graph built so far.
func (d *Disassembler) Graph() *Graph { return d.graph }

// GetJump returns the classification and target RVA for block b. When
// last is true and b ends in a ConditionalPair, the not-taken (fall
// through) edge is returned instead of the taken one (spec.md §4.1).
func GetJump(b *BB, last bool) (uint64, Classification, bool) {
	if len(b.Term.Targets) == 0 {
		return 0, b.Term.Class, false
	}
	if b.Term.Class == ConditionalPair && last {
		return b.Term.Targets[len(b.Term.Targets)-1], b.Term.Class, true
	}
	return b.Term.Targets[0], b.Term.Class, true
}
