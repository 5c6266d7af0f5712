package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContext_SetGet_RoundTrips(t *testing.T) {
	c := &Context{}
	names := []string{
		"rax", "rbx", "rcx", "rdx", "rsi", "rdi", "rbp", "rsp",
		"r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15", "rip", "flags",
	}
	for i, name := range names {
		require.NoError(t, c.Set(name, uint64(i+1)))
	}
	for i, name := range names {
		got, err := c.Get(name)
		require.NoError(t, err)
		assert.Equal(t, uint64(i+1), got, "register %s", name)
	}
}

func TestContext_UnknownRegister(t *testing.T) {
	c := &Context{}
	assert.Error(t, c.Set("eax", 1))
	_, err := c.Get("nope")
	assert.Error(t, err)
}

// Compare excludes rip and rsp from register comparison (spec.md §8
// property 6's carve-out): a divergence confined to those must not report
// MismatchRegister.
func TestCompare_ExcludesRipAndRsp(t *testing.T) {
	want := &Context{Rax: 1, Rip: 0x1000, Rsp: 0x7000}
	got := &Context{Rax: 1, Rip: 0x2000, Rsp: 0x6000}
	assert.Equal(t, MismatchNone, Compare(got, want, false))
}

func TestCompare_DetectsRegisterMismatch(t *testing.T) {
	want := &Context{Rax: 1}
	got := &Context{Rax: 2}
	assert.Equal(t, MismatchRegister, Compare(got, want, false))
}

func TestCompare_FlagsOnlyCheckedWhenRequested(t *testing.T) {
	want := &Context{EFlags: 0x1}
	got := &Context{EFlags: 0x0}

	assert.Equal(t, MismatchNone, Compare(got, want, false), "flags ignored unless checkFlags")
	assert.Equal(t, MismatchFlags, Compare(got, want, true))
}

func TestCompare_FlagsSupersetStillMatches(t *testing.T) {
	// compare_context only requires want's flags to be a subset of result's:
	// extra set bits (e.g. reserved/undefined flags) don't count as a
	// mismatch.
	want := &Context{EFlags: 0x1}
	got := &Context{EFlags: 0x3}
	assert.Equal(t, MismatchNone, Compare(got, want, true))
}

func TestMismatchKind_BitmaskValues(t *testing.T) {
	assert.Equal(t, MismatchKind(0), MismatchNone)
	assert.Equal(t, MismatchKind(1), MismatchRegister)
	assert.Equal(t, MismatchKind(2), MismatchFlags)
}
