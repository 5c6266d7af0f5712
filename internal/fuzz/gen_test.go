package fuzz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eaglevm/eaglevm/internal/rng"
)

func TestGenerate_DeterministicGivenSeed(t *testing.T) {
	a, err := Generate(rng.New(99), 20)
	require.NoError(t, err)
	b, err := Generate(rng.New(99), 20)
	require.NoError(t, err)

	assert.Equal(t, a.Code, b.Code)
	assert.Equal(t, a.Trace, b.Trace)
}

func TestGenerate_EndsInRet(t *testing.T) {
	seq, err := Generate(rng.New(1), 5)
	require.NoError(t, err)
	require.NotEmpty(t, seq.Code)
	assert.Equal(t, byte(0xC3), seq.Code[len(seq.Code)-1])
	assert.Equal(t, "ret", seq.Trace[len(seq.Trace)-1])
}

func TestGenerate_NeverTouchesRspOrRbp(t *testing.T) {
	for _, r := range safeRegs {
		assert.NotEqual(t, "rsp", r)
		assert.NotEqual(t, "rbp", r)
	}
}

func TestGenerate_ZeroInstructionsIsJustRet(t *testing.T) {
	seq, err := Generate(rng.New(5), 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xC3}, seq.Code)
	assert.Equal(t, []string{"ret"}, seq.Trace)
}
