package optimize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eaglevm/eaglevm/internal/ir"
)

func newBlock(g *ir.Graph) *ir.IBB { return g.NewBlock() }

// Two blocks merged by a straight-line push/pop chain keep a consistent
// stack depth at the merge point; spec.md §8 property 4.
func TestOptimize_MergesAndPreservesStackDepth(t *testing.T) {
	g := ir.NewGraph()
	a := newBlock(g)
	b := newBlock(g)

	a.AppendCommand(ir.PushImm(ir.Width64, 1))
	a.Exit = ir.Exit{Class: ir.ExitDirectBranch, Targets: []*ir.IBB{b}}

	b.AppendCommand(ir.PopReg(ir.Width64, ir.GuestReg(0)))
	b.Exit = ir.Exit{Class: ir.ExitReturn}

	blocks := []*ir.PreoptBlock{
		{Block: a, Discriminator: 0, Entry: true},
		{Block: b, Discriminator: 0, Entry: false},
	}

	result, err := Optimize(blocks)
	require.NoError(t, err)
	require.Len(t, result.ByVM[0], 1, "single-successor/single-predecessor blocks merge into one")
	assert.Equal(t, []ir.Command{
		ir.PushImm(ir.Width64, 1),
		ir.PopReg(ir.Width64, ir.GuestReg(0)),
	}, result.ByVM[0][0].Block.Commands)
}

// A conditional branch whose two targets disagree on entry depth must
// surface stack_imbalance (spec.md §7, §8 property 4).
func TestOptimize_StackImbalanceDetected(t *testing.T) {
	g := ir.NewGraph()
	entry := newBlock(g)
	left := newBlock(g)
	right := newBlock(g)
	join := newBlock(g)

	entry.Exit = ir.Exit{
		Class:    ir.ExitConditionalPair,
		Targets:  []*ir.IBB{left, right},
		FlagExpr: ir.FlagExpr{Cond: "e"},
	}

	// left pushes one value before falling into join; right falls straight
	// through, so join's entry depth disagrees between predecessors.
	left.AppendCommand(ir.PushImm(ir.Width64, 1))
	left.Exit = ir.Exit{Class: ir.ExitDirectBranch, Targets: []*ir.IBB{join}}
	right.Exit = ir.Exit{Class: ir.ExitDirectBranch, Targets: []*ir.IBB{join}}
	join.Exit = ir.Exit{Class: ir.ExitReturn}

	blocks := []*ir.PreoptBlock{
		{Block: entry, Discriminator: 0, Entry: true},
		{Block: left, Discriminator: 0},
		{Block: right, Discriminator: 0},
		{Block: join, Discriminator: 0},
	}

	_, err := Optimize(blocks)
	require.Error(t, err)
}

// Entry pinning: the designated entry block is never absorbed by merging,
// even when it has exactly one predecessor and one successor.
func TestOptimize_EntryNeverMerged(t *testing.T) {
	g := ir.NewGraph()
	a := newBlock(g)
	entry := newBlock(g)

	a.Exit = ir.Exit{Class: ir.ExitDirectBranch, Targets: []*ir.IBB{entry}}
	entry.Exit = ir.Exit{Class: ir.ExitReturn}

	blocks := []*ir.PreoptBlock{
		{Block: a, Discriminator: 0},
		{Block: entry, Discriminator: 0, Entry: true},
	}

	result, err := Optimize(blocks)
	require.NoError(t, err)
	assert.Len(t, result.ByVM[0], 2, "entry block must survive merging unabsorbed")
}

// dropDeadFlagsUpdates removes a flags_update whose defined bits are never
// read downstream.
func TestDropDeadFlagsUpdates_RemovesUnreadFlags(t *testing.T) {
	g := ir.NewGraph()
	b := newBlock(g)
	b.AppendCommand(ir.Command{Kind: ir.KindFlagsUpdate, Defined: ir.FlagSet(0xFF)})
	b.Exit = ir.Exit{Class: ir.ExitReturn}

	blocks := []*ir.PreoptBlock{{Block: b, Discriminator: 0, Entry: true}}
	result, err := Optimize(blocks)
	require.NoError(t, err)
	assert.Empty(t, result.ByVM[0][0].Block.Commands, "flags_update with no downstream reader is dead")
}
