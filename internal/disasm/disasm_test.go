package disasm

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// No two BBs may overlap in RVA space; spec.md §8 property 1.
func TestGenerateBlocks_NoOverlap(t *testing.T) {
	code := []byte{
		0xB8, 0x05, 0x00, 0x00, 0x00, // mov eax, 5            (rva 0..5)
		0xEB, 0x00, // jmp +0 -> rva 7             (rva 5..7)
		0xC3, // ret                         (rva 7..8)
	}

	d := New(code, 0, uint64(len(code)))
	root, err := d.GenerateBlocks(0)
	require.NoError(t, err)
	require.NotNil(t, root)

	blocks := d.Graph().Blocks()
	require.Len(t, blocks, 2, "the jmp target splits the sweep into two blocks")

	sort.Slice(blocks, func(i, j int) bool { return blocks[i].StartRVA < blocks[j].StartRVA })

	for i, b := range blocks {
		assert.Less(t, b.StartRVA, b.EndRVA, "block %d has non-positive length", i)
		if i > 0 {
			prev := blocks[i-1]
			assert.LessOrEqual(t, prev.EndRVA, b.StartRVA, "block %d overlaps block %d", i-1, i)
		}
	}

	assert.Equal(t, uint64(0), blocks[0].StartRVA)
	assert.Equal(t, uint64(7), blocks[0].EndRVA)
	assert.Equal(t, DirectBranch, blocks[0].Term.Class)
	assert.Equal(t, []uint64{7}, blocks[0].Term.Targets)

	assert.Equal(t, uint64(7), blocks[1].StartRVA)
	assert.Equal(t, uint64(8), blocks[1].EndRVA)
	assert.Equal(t, Return, blocks[1].Term.Class)
}

// Splitting a block at an interior instruction boundary yields two adjacent
// blocks rather than overlapping ones.
func TestSplitBlock_NoOverlapAfterSplit(t *testing.T) {
	code := []byte{
		0xB8, 0x05, 0x00, 0x00, 0x00, // mov eax, 5 (rva 0..5)
		0xC3, // ret        (rva 5..6)
	}
	d := New(code, 0, uint64(len(code)))
	_, err := d.GenerateBlocks(0)
	require.NoError(t, err)

	first, second, err := d.SplitBlock(0, 5)
	require.NoError(t, err)
	require.NotNil(t, first)
	require.NotNil(t, second)

	assert.Equal(t, uint64(0), first.StartRVA)
	assert.Equal(t, uint64(5), first.EndRVA)
	assert.Equal(t, uint64(5), second.StartRVA)
	assert.Equal(t, uint64(6), second.EndRVA)
	assert.LessOrEqual(t, first.EndRVA, second.StartRVA)
}
