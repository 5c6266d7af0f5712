package section

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	asmamd64 "github.com/eaglevm/eaglevm/internal/asm/amd64"
)

// Every label is resolved once Build succeeds, and distinct containers land
// at distinct, non-overlapping offsets (spec.md §8 property 5: a label is
// resolved only after its container's position is fixed).
func TestBuild_ResolvesAllLabels(t *testing.T) {
	sec, err := New(asmamd64.REG_R9)
	require.NoError(t, err)

	first := sec.NewContainer("first")
	first.Asm().CompileStandAlone(asmamd64.NOP)

	second := sec.NewContainer("second")
	second.Jump(asmamd64.JMP, first.Label)

	out, err := sec.Build(0x1000)
	require.NoError(t, err)

	assert.Equal(t, LabelResolved, first.Label.State())
	assert.Equal(t, LabelResolved, second.Label.State())

	assert.Equal(t, out.Symbols["first"], first.Label.RVA())
	assert.Equal(t, out.Symbols["second"], second.Label.RVA())
	assert.GreaterOrEqual(t, first.Label.RVA(), uint64(0x1000))
	assert.Less(t, first.Label.RVA(), second.Label.RVA(), "second container is laid out after first")
}

// A jump targeting a label that was Reserve()d but never bound to a
// container must fail Build rather than silently resolve to zero.
func TestBuild_UnresolvedLabelFails(t *testing.T) {
	sec, err := New(asmamd64.REG_R9)
	require.NoError(t, err)

	dangling := sec.Reserve("nowhere")
	c := sec.NewContainer("only")
	c.Jump(asmamd64.JMP, dangling)

	_, err = sec.Build(0)
	assert.Error(t, err)
}

// Reserve followed by NewContainer under the same name binds the same
// Label instance, so a forward-referencing jump resolves correctly.
func TestReserve_ThenNewContainer_BindsSameLabel(t *testing.T) {
	sec, err := New(asmamd64.REG_R9)
	require.NoError(t, err)

	fwd := sec.Reserve("later")
	assert.Equal(t, LabelUnbound, fwd.State())

	c := sec.NewContainer("later")
	assert.Same(t, fwd, c.Label)
	assert.Equal(t, LabelBoundToContainer, fwd.State())
}
