package regalloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eaglevm/eaglevm/internal/ir"
	"github.com/eaglevm/eaglevm/internal/rng"
)

func allGuestRegs() []ir.GuestReg {
	regs := make([]ir.GuestReg, ir.NumGuestRegs)
	for i := range regs {
		regs[i] = ir.GuestReg(i)
	}
	return regs
}

// Partition/disjointness invariants, spec.md §8 properties 2 and 3.
func TestCreateMappings_PartitionAndDisjointness(t *testing.T) {
	a := New(rng.New(1), Options{})
	require.NoError(t, a.CreateMappings(allGuestRegs()))

	for _, gr := range allGuestRegs() {
		scatters := a.GetRegisterMappedRanges(gr)
		require.NotEmpty(t, scatters, "guest reg %d has no scatter plan", gr)

		// property 2: union of source ranges is exactly [0,64), pairwise disjoint.
		covered := make([]bool, 64)
		for _, sc := range scatters {
			for bit := sc.Source.Lo; bit < sc.Source.Hi; bit++ {
				assert.False(t, covered[bit], "guest reg %d bit %d covered twice", gr, bit)
				covered[bit] = true
			}
		}
		for bit, got := range covered {
			assert.True(t, got, "guest reg %d bit %d never covered", gr, bit)
		}
	}

	// property 3: every host register's occupied ranges are pairwise
	// disjoint and within [0, width).
	occupiedByHost := map[string][]BitRange{}
	widthByHost := map[string]int{}
	for _, gr := range allGuestRegs() {
		for _, sc := range a.GetRegisterMappedRanges(gr) {
			occupiedByHost[sc.Host.Name] = append(occupiedByHost[sc.Host.Name], sc.Dest)
			widthByHost[sc.Host.Name] = sc.Host.Bits
		}
	}
	for host, ranges := range occupiedByHost {
		width := widthByHost[host]
		for i, r := range ranges {
			assert.GreaterOrEqual(t, r.Lo, 0)
			assert.LessOrEqual(t, r.Hi, width)
			for j, o := range ranges {
				if i == j {
					continue
				}
				assert.False(t, r.overlaps(o), "host %s ranges %v and %v overlap", host, r, o)
			}
		}
	}
}

// Reserved roles must never double as pool entries: no scatter destination
// can land on a register the machine stage treats as fixed-purpose.
func TestRoles_DisjointFromPool(t *testing.T) {
	a := New(rng.New(2), Options{})
	roles := a.Roles()
	reserved := map[string]bool{
		roles.VIP.Name: true, roles.VSP.Name: true, roles.VRegs.Name: true,
		roles.VCS.Name: true, roles.VCSRet.Name: true, roles.VBase.Name: true,
		roles.Temp1.Name: true, roles.Temp2.Name: true, roles.XMMBridge.Name: true,
	}
	assert.Len(t, reserved, 9, "nine distinct reserved roles")

	for _, h := range a.pool {
		assert.False(t, reserved[h.Name], "pool contains reserved register %s", h.Name)
	}
}

func TestAllocateOne_ExhaustsToAllocationFailure(t *testing.T) {
	a := New(rng.New(3), Options{MaxRetries: 2})
	// Shrink the pool to nothing so every placement attempt must fail.
	a.pool = nil
	err := a.CreateMappings([]ir.GuestReg{0})
	require.Error(t, err)
}
