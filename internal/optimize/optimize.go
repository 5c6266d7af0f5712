// Package optimize implements C5: the fixed sequence of block-level passes
// that turn preopt IBBs into finalized IBBs grouped by VM id (spec.md §4.3).
//
// The passes operate on the arena built by internal/lift and internal/ir;
// nothing here owns its own node storage, following the same
// arena-of-nodes-by-stable-id shape the IR and disassembler graphs use
// (spec.md §9, grounded on the teacher's SSA basicBlock/BasicBlockID arena).
package optimize

import (
	"sort"

	"github.com/eaglevm/eaglevm/internal/eerrors"
	"github.com/eaglevm/eaglevm/internal/ir"
)

// Result is the optimizer's output: finalized preopt blocks, grouped and
// ordered by VM id deterministically (spec.md §4.3, "output ordering is
// deterministic given deterministic inputs").
type Result struct {
	// ByVM maps a discriminator to its finalized blocks, in stable order.
	ByVM map[ir.Discriminator][]*ir.PreoptBlock
	// VMOrder lists the discriminators in the order the allocator and
	// section assembler should process them.
	VMOrder []ir.Discriminator
}

// Optimize runs the five passes from spec.md §4.3 in order over blocks and
// returns the finalized result.
func Optimize(blocks []*ir.PreoptBlock) (Result, error) {
	live := flagLiveness(blocks)
	dropDeadFlagsUpdates(blocks, live)

	propagateDiscriminators(blocks)

	blocks = mergeBlocks(blocks)

	if err := checkStackDepth(blocks); err != nil {
		return Result{}, err
	}

	return groupByVM(blocks), nil
}

// --- pass 1: flag liveness -------------------------------------------------

// liveSet is the set of flags read before their next definition, at a given
// program point.
type liveSet = ir.FlagSet

// flagLiveness computes, for every block, the flags live on exit from it,
// via backward dataflow over the IBB successor graph (spec.md §4.3 pass 1).
//
// liveOut[id] is the set of flags live on exit from block id (i.e. required
// by some successor or the block's own conditional exit); liveIn is derived
// per-command by walking the block backward from liveOut.
func flagLiveness(blocks []*ir.PreoptBlock) map[ir.IBBID]liveSet {
	liveOut := map[ir.IBBID]liveSet{}
	changed := true
	for changed {
		changed = false
		for _, pb := range blocks {
			b := pb.Block
			want := successorLiveIn(b, liveOut)
			if want != liveOut[b.ID] {
				liveOut[b.ID] = want
				changed = true
			}
		}
	}
	return liveOut
}

func successorLiveIn(b *ir.IBB, liveOut map[ir.IBBID]liveSet) liveSet {
	var want liveSet
	if b.Exit.Class == ir.ExitConditionalPair {
		want |= b.Exit.FlagExpr.ReadFlags
	}
	for _, tgt := range b.Exit.Targets {
		if tgt == nil {
			continue
		}
		want |= blockLiveIn(tgt, liveOut[tgt.ID])
	}
	return want
}

// blockLiveIn walks commands backward from the block's live-out set,
// computing what must be live at block entry. Only the walk's final value
// (what's live on entry) matters to callers outside this file; flagLiveness
// above only needs a per-block summary to iterate to fixpoint.
func blockLiveIn(b *ir.IBB, outSet liveSet) liveSet {
	live := outSet
	for i := len(b.Commands) - 1; i >= 0; i-- {
		c := b.Commands[i]
		if c.Kind == ir.KindFlagsUpdate {
			live &^= ir.FlagSet(c.Defined)
			continue
		}
	}
	return live
}

// dropDeadFlagsUpdates removes a flags_update command when its defined set
// is disjoint from everything live downstream (spec.md §4.3 pass 1).
func dropDeadFlagsUpdates(blocks []*ir.PreoptBlock, liveOut map[ir.IBBID]liveSet) {
	for _, pb := range blocks {
		b := pb.Block
		live := successorLiveIn(b, liveOut)
		kept := b.Commands[:0]
		for i := len(b.Commands) - 1; i >= 0; i-- {
			c := b.Commands[i]
			if c.Kind == ir.KindFlagsUpdate {
				if c.Defined&live == 0 {
					continue // dead: drop it
				}
				live &^= c.Defined
			}
			kept = append(kept, c)
		}
		reverse(kept)
		b.Commands = append([]ir.Command{}, kept...)
	}
}

func reverse(cs []ir.Command) {
	for i, j := 0, len(cs)-1; i < j; i, j = i+1, j-1 {
		cs[i], cs[j] = cs[j], cs[i]
	}
}

// --- pass 2: discriminator propagation -------------------------------------

// propagateDiscriminators forwards a block's discriminator to its single
// same-VM successor, so the machine stage can skip re-issuing vm_enter
// there (spec.md §4.3 pass 2).
func propagateDiscriminators(blocks []*ir.PreoptBlock) {
	byBlock := map[*ir.IBB]*ir.PreoptBlock{}
	for _, pb := range blocks {
		byBlock[pb.Block] = pb
	}
	preds := predecessorCounts(blocks)

	for _, pb := range blocks {
		succ := singleSuccessor(pb.Block)
		if succ == nil {
			continue
		}
		sPb, ok := byBlock[succ]
		if !ok || sPb.Discriminator != pb.Discriminator {
			continue
		}
		if preds[succ] == 1 {
			sPb.Discriminator = pb.Discriminator
		}
	}
}

// singleSuccessor returns b's lone internal successor, or nil if b has
// zero, two, or any external successor.
func singleSuccessor(b *ir.IBB) *ir.IBB {
	if b.Exit.Class != ir.ExitFallThrough && b.Exit.Class != ir.ExitDirectBranch {
		return nil
	}
	if len(b.Exit.Targets) != 1 || b.Exit.Targets[0] == nil {
		return nil
	}
	return b.Exit.Targets[0]
}

func predecessorCounts(blocks []*ir.PreoptBlock) map[*ir.IBB]int {
	counts := map[*ir.IBB]int{}
	for _, pb := range blocks {
		for _, tgt := range pb.Block.Exit.Targets {
			if tgt != nil {
				counts[tgt]++
			}
		}
	}
	return counts
}

// --- pass 4: block merging (pass 3, entry pinning, is enforced here by
// never absorbing an Entry block) ------------------------------------------

// mergeBlocks repeatedly merges A -> B when B has exactly one predecessor,
// A has exactly one successor, both share a VM id, and B is not the pinned
// entry block (spec.md §4.3 passes 3 and 4).
func mergeBlocks(blocks []*ir.PreoptBlock) []*ir.PreoptBlock {
	live := make([]*ir.PreoptBlock, len(blocks))
	copy(live, blocks)

	for {
		preds := predecessorCounts(live)
		byBlock := map[*ir.IBB]*ir.PreoptBlock{}
		for _, pb := range live {
			byBlock[pb.Block] = pb
		}

		merged := false
		for _, a := range live {
			succ := singleSuccessor(a.Block)
			if succ == nil || succ == a.Block {
				continue
			}
			b := byBlock[succ]
			if b == nil || b.Entry {
				continue
			}
			if preds[succ] != 1 || b.Discriminator != a.Discriminator {
				continue
			}

			a.Block.Commands = append(a.Block.Commands, b.Block.Commands...)
			a.Block.Exit = b.Block.Exit
			live = removeBlock(live, b)
			merged = true
			break
		}
		if !merged {
			break
		}
	}
	return live
}

func removeBlock(blocks []*ir.PreoptBlock, victim *ir.PreoptBlock) []*ir.PreoptBlock {
	out := blocks[:0]
	for _, pb := range blocks {
		if pb != victim {
			out = append(out, pb)
		}
	}
	return out
}

// --- pass 5: cross-block stack-depth check ---------------------------------

// checkStackDepth verifies that every IBB's entry stack depth is the same
// regardless of which predecessor reached it (spec.md §4.3 pass 5).
func checkStackDepth(blocks []*ir.PreoptBlock) error {
	byBlock := map[*ir.IBB]*ir.PreoptBlock{}
	for _, pb := range blocks {
		byBlock[pb.Block] = pb
	}

	entryDepth := map[*ir.IBB]int{}
	var roots []*ir.PreoptBlock
	for _, pb := range blocks {
		if pb.Entry {
			roots = append(roots, pb)
		}
	}

	var visit func(b *ir.IBB, depth int) error
	visit = func(b *ir.IBB, depth int) error {
		if prev, ok := entryDepth[b]; ok {
			if prev != depth {
				return eerrors.NewStackImbalanceError(byBlock[b].Block.Label)
			}
			return nil
		}
		entryDepth[b] = depth
		exitDepth := depth + netDelta(b)
		for _, tgt := range b.Exit.Targets {
			if tgt == nil {
				continue
			}
			if err := visit(tgt, exitDepth); err != nil {
				return err
			}
		}
		return nil
	}

	for _, r := range roots {
		if err := visit(r.Block, 0); err != nil {
			return err
		}
	}
	// Any block unreached from a pinned entry (e.g. a free-floating
	// fragment after merging) still needs a consistent depth among its own
	// predecessors; seed it at its first visit.
	for _, pb := range blocks {
		if _, ok := entryDepth[pb.Block]; !ok {
			if err := visit(pb.Block, 0); err != nil {
				return err
			}
		}
	}
	return nil
}

func netDelta(b *ir.IBB) int {
	d := 0
	for _, c := range b.Commands {
		eff := ir.Effect(c)
		d += len(eff.Pushes) - len(eff.Pops)
	}
	return d
}

// --- output grouping --------------------------------------------------------

func groupByVM(blocks []*ir.PreoptBlock) Result {
	res := Result{ByVM: map[ir.Discriminator][]*ir.PreoptBlock{}}
	seen := map[ir.Discriminator]bool{}
	for _, pb := range blocks {
		res.ByVM[pb.Discriminator] = append(res.ByVM[pb.Discriminator], pb)
		if !seen[pb.Discriminator] {
			seen[pb.Discriminator] = true
			res.VMOrder = append(res.VMOrder, pb.Discriminator)
		}
	}
	sort.Slice(res.VMOrder, func(i, j int) bool { return res.VMOrder[i] < res.VMOrder[j] })
	return res
}
