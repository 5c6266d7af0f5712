package machine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	asmamd64 "github.com/eaglevm/eaglevm/internal/asm/amd64"
	"github.com/eaglevm/eaglevm/internal/ir"
	"github.com/eaglevm/eaglevm/internal/regalloc"
	"github.com/eaglevm/eaglevm/internal/rng"
	"github.com/eaglevm/eaglevm/internal/section"
)

func newTestMachine(t *testing.T) *Machine {
	t.Helper()
	alloc := regalloc.New(rng.New(1), regalloc.Options{})
	sec, err := section.New(asmamd64.REG_R9)
	require.NoError(t, err)
	return New(ir.Discriminator(0), alloc, sec)
}

func nop(c *section.CodeContainer) { c.Asm().CompileStandAlone(asmamd64.NOP) }

// The handler table is keyed by (kind, width, op, operand count): the same
// key must reuse one generated handler, distinct keys must each get their
// own (spec.md §4.5).
func TestHandlerFor_DedupesByKey(t *testing.T) {
	m := newTestMachine(t)

	key := handlerKey{kind: ir.KindArithmetic, width: ir.Width64, op: ir.OpAdd, operands: 2}
	calls := 0
	gen := func(c *section.CodeContainer) { calls++; nop(c) }

	first := m.handlerFor(key, gen)
	second := m.handlerFor(key, gen)

	assert.Same(t, first, second, "repeated lookup of the same key returns the same handler")
	assert.Equal(t, 1, calls, "generator body runs only on first use")
}

func TestHandlerFor_DistinctKeysGetDistinctHandlers(t *testing.T) {
	m := newTestMachine(t)

	add := m.handlerFor(handlerKey{kind: ir.KindArithmetic, width: ir.Width64, op: ir.OpAdd, operands: 2}, nop)
	sub := m.handlerFor(handlerKey{kind: ir.KindArithmetic, width: ir.Width64, op: ir.OpSub, operands: 2}, nop)
	add32 := m.handlerFor(handlerKey{kind: ir.KindArithmetic, width: ir.Width32, op: ir.OpAdd, operands: 2}, nop)

	assert.NotSame(t, add, sub)
	assert.NotSame(t, add, add32)
	assert.NotSame(t, sub, add32)

	handlers := m.Handlers()
	assert.Len(t, handlers, 3, "Handlers() reports every generated entry in creation order")
	assert.Same(t, add, handlers[0])
	assert.Same(t, sub, handlers[1])
	assert.Same(t, add32, handlers[2])
}
