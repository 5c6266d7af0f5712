// Package regalloc implements C6: the scattered register allocator.
//
// This is a categorically different algorithm from a conventional SSA
// register allocator (no live ranges, no spilling, no graph coloring): each
// 64-bit guest register is split into a handful of bit ranges and each
// range is scattered to a random free bit interval of a random host
// register, so that no guest register occupies a predictable physical
// location (spec.md §4.4). The bit-range/occupied-range bookkeeping is
// grounded in shape (not copied) on the teacher's VReg bit-packing and
// bitset trailing-zeros search in
// internal/engine/wazevo/backend/regalloc/regalloc.go; the algorithm itself
// has no teacher analogue.
package regalloc

import (
	"sort"

	"github.com/eaglevm/eaglevm/internal/eerrors"
	"github.com/eaglevm/eaglevm/internal/ir"
	"github.com/eaglevm/eaglevm/internal/rng"
)

// HostReg names a physical register usable as a scatter destination: one of
// the seven GPRs left after reserving roles and temporaries, plus sixteen
// XMMs (spec.md §4.4 addition, SPEC_FULL.md §4.4).
type HostReg struct {
	// Name is e.g. "rax", "xmm3".
	Name string
	// Bits is the destination register's total width: 64 for a GPR, 128
	// for an XMM (SPEC_FULL.md §4.4's XMM scatter pool).
	Bits int
}

// BitRange is a half-open bit interval [Lo, Hi) within a register.
type BitRange struct {
	Lo, Hi int
}

func (r BitRange) width() int { return r.Hi - r.Lo }

func (r BitRange) overlaps(o BitRange) bool {
	return r.Lo < o.Hi && o.Lo < r.Hi
}

// Scatter is one fragment of a guest register's 64 bits, relocated to a
// range of a host register.
type Scatter struct {
	Source BitRange
	Dest   BitRange
	Host   HostReg
}

// Roles are the fixed VM-reserved register assignments chosen from the
// shuffled vm_order (spec.md §4.4): vip, vsp, vregs, vcs, vcsret, vbase,
// plus two scratch temporaries. XMMBridge is an EagleVM-Go addition beyond
// original_source's six-plus-two reservation: SPEC_FULL.md §4.4 adds XMM
// registers to the scatter pool, and bridging a 128-bit scatter fragment
// through integer ops needs one more GPR than the original's all-GPR
// scatter pool ever required.
type Roles struct {
	VIP, VSP, VRegs, VCS, VCSRet, VBase HostReg
	Temp1, Temp2                        HostReg
	XMMBridge                           HostReg
}

// Options configures the allocator.
type Options struct {
	// MaxRetries bounds the destination search across different host
	// registers before allocation_failure (spec.md §4.4: "up to ten
	// retries"). Zero means the spec default of 10.
	MaxRetries int
}

const defaultMaxRetries = 10

// allGPRs is the canonical 16-GPR pool vm_order is shuffled from.
var allGPRs = []string{
	"rax", "rbx", "rcx", "rdx", "rsi", "rdi", "rbp", "rsp",
	"r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15",
}

var allXMMs = func() []string {
	names := make([]string, 16)
	for i := range names {
		names[i] = "xmm" + itoa(i)
	}
	return names
}()

func itoa(i int) string {
	if i < 10 {
		return string(rune('0' + i))
	}
	return string(rune('0'+i/10)) + string(rune('0'+i%10))
}

// Allocator holds the scattered register map for one VM instance
// (spec.md §4.4).
type Allocator struct {
	opts Options
	rng  *rng.RNG

	vmOrder []string
	roles   Roles
	pool    []HostReg

	sourceMap map[ir.GuestReg][]Scatter
	occupied  map[string][]BitRange
}

// New creates an Allocator, shuffling vm_order with g and assigning the
// reserved roles and temporaries (spec.md §4.4 "init_reg_order").
func New(g *rng.RNG, opts Options) *Allocator {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaultMaxRetries
	}

	order := append([]string{}, allGPRs...)
	rng.Shuffle(g, order)

	a := &Allocator{
		opts:      opts,
		rng:       g,
		vmOrder:   order,
		sourceMap: map[ir.GuestReg][]Scatter{},
		occupied:  map[string][]BitRange{},
	}
	a.roles = Roles{
		VIP:       gpr(order[0]),
		VSP:       gpr(order[1]),
		VRegs:     gpr(order[2]),
		VCS:       gpr(order[3]),
		VCSRet:    gpr(order[4]),
		VBase:     gpr(order[5]),
		Temp1:     gpr(order[6]),
		Temp2:     gpr(order[7]),
		XMMBridge: gpr(order[8]),
	}
	for _, name := range order[9:] {
		a.pool = append(a.pool, gpr(name))
	}
	for _, name := range allXMMs {
		a.pool = append(a.pool, HostReg{Name: name, Bits: 128})
	}
	return a
}

func gpr(name string) HostReg { return HostReg{Name: name, Bits: 64} }

// Roles returns the fixed VM-register assignment.
func (a *Allocator) Roles() Roles { return a.roles }

// CreateMappings builds the scatter plan for every guest register
// (spec.md §4.4 "create_mappings").
func (a *Allocator) CreateMappings(regs []ir.GuestReg) error {
	for _, gr := range regs {
		if err := a.allocateOne(gr); err != nil {
			return err
		}
	}
	return nil
}

// allocateOne picks four random split points splitting [0,64) into five
// source ranges, then places each in a random unoccupied destination interval
// (spec.md §4.4).
func (a *Allocator) allocateOne(gr ir.GuestReg) error {
	points := a.splitPoints()
	var scatters []Scatter
	for i := 0; i+1 < len(points); i++ {
		src := BitRange{Lo: points[i], Hi: points[i+1]}
		sc, err := a.placeRange(src)
		if err != nil {
			return eerrors.NewAllocationFailureError(guestRegName(gr))
		}
		scatters = append(scatters, sc)
	}
	a.sourceMap[gr] = scatters
	return nil
}

// numRanges is the fixed number of source fragments a 64-bit guest
// register is split into (spec.md §4.4; original_source's inst_regs.cpp
// names this constant numRanges).
const numRanges = 5

// splitPoints picks numRanges-1 deduplicated random interior points in
// [0,63], sorts them, and brackets them with 0 and 64 sentinels, producing
// numRanges source ranges whose widths sum to 64 (spec.md §4.4).
func (a *Allocator) splitPoints() []int {
	seen := map[int]bool{0: true, 64: true}
	pts := []int{0, 64}
	for len(pts) < numRanges+1 {
		p := a.rng.Uniform(64)
		if seen[p] {
			continue
		}
		seen[p] = true
		pts = append(pts, p)
	}
	sort.Ints(pts)
	return pts
}

// placeRange chooses a destination register uniformly at random from the
// pool and searches for an unoccupied interval of src's width, retrying
// across different registers up to opts.MaxRetries times (spec.md §4.4).
func (a *Allocator) placeRange(src BitRange) (Scatter, error) {
	width := src.width()
	tried := map[int]bool{}
	if len(a.pool) == 0 {
		return Scatter{}, errPlacementExhausted
	}

	for attempt := 0; attempt < a.opts.MaxRetries; attempt++ {
		idx := a.rng.Uniform(len(a.pool))
		if tried[idx] {
			continue
		}
		tried[idx] = true
		host := a.pool[idx]
		if width > host.Bits {
			continue
		}

		starts := legalStarts(host.Bits, width)
		rng.Shuffle(a.rng, starts)
		for _, start := range starts {
			cand := BitRange{Lo: start, Hi: start + width}
			if !a.anyOverlap(host.Name, cand) {
				a.occupied[host.Name] = append(a.occupied[host.Name], cand)
				return Scatter{Source: src, Dest: cand, Host: host}, nil
			}
		}
	}
	return Scatter{}, errPlacementExhausted
}

var errPlacementExhausted = sentinelErr("regalloc: placement exhausted")

type sentinelErr string

func (e sentinelErr) Error() string { return string(e) }

func legalStarts(hostBits, width int) []int {
	n := hostBits - width + 1
	if n <= 0 {
		return nil
	}
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func (a *Allocator) anyOverlap(host string, cand BitRange) bool {
	for _, o := range a.occupied[host] {
		if cand.overlaps(o) {
			return true
		}
	}
	return false
}

// GetRegisterMappedRanges returns gr's scatter plan (spec.md §4.4
// "get_register_mapped_ranges").
func (a *Allocator) GetRegisterMappedRanges(gr ir.GuestReg) []Scatter {
	return a.sourceMap[gr]
}

// GetOccupiedRanges returns the occupied intervals of host (spec.md §4.4
// "get_occupied_ranges").
func (a *Allocator) GetOccupiedRanges(host string) []BitRange {
	return append([]BitRange{}, a.occupied[host]...)
}

// GetUnoccupiedRanges returns the gaps between occupied intervals of host,
// given its total width (spec.md §4.4 "get_unoccupied_ranges").
func (a *Allocator) GetUnoccupiedRanges(host string, bits int) []BitRange {
	occ := append([]BitRange{}, a.occupied[host]...)
	sort.Slice(occ, func(i, j int) bool { return occ[i].Lo < occ[j].Lo })

	var free []BitRange
	cur := 0
	for _, o := range occ {
		if o.Lo > cur {
			free = append(free, BitRange{Lo: cur, Hi: o.Lo})
		}
		if o.Hi > cur {
			cur = o.Hi
		}
	}
	if cur < bits {
		free = append(free, BitRange{Lo: cur, Hi: bits})
	}
	return free
}

func guestRegName(gr ir.GuestReg) string {
	names := [...]string{
		"rax", "rbx", "rcx", "rdx", "rsi", "rdi", "rbp", "rsp",
		"r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15",
	}
	if int(gr) < len(names) {
		return names[gr]
	}
	return "?"
}
