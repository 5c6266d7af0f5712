package ir

// ExitClass mirrors disasm.Classification for IBB exits (spec.md §3): an
// IBB's exit refers to other IBBs rather than raw RVAs.
type ExitClass int

const (
	ExitFallThrough ExitClass = iota
	ExitDirectBranch
	ExitConditionalPair
	ExitIndirect
	ExitReturn
)

// Exit is an IBB's terminator: zero, one, or two successor IBBs, with an
// Inline flag permitting the branch to be elided when the successor is
// laid out immediately after (spec.md §3). Neither the lifter nor the
// optimizer sets Inline, so the machine stage always emits the branch.
type Exit struct {
	Class ExitClass
	// Targets holds one entry per successor; a nil entry at index i means
	// ExternalRVAs[i] is populated instead (the successor leaves
	// [binary_rva, binary_end) and has no IBB — spec.md §3, block graph
	// invariant b).
	Targets      []*IBB
	ExternalRVAs []uint64
	// FlagExpr is populated only for ExitConditionalPair.
	FlagExpr FlagExpr
	Inline   bool
}

// IBBID is the stable arena identifier of an IBB (spec.md §9: "arena of
// nodes keyed by stable integer ids").
type IBBID uint32

// IBB is an ordered list of IR commands plus a single exit descriptor
// (spec.md §3).
type IBB struct {
	ID       IBBID
	Commands []Command
	Exit     Exit

	// Label is the symbolic name the machine/assembler stages resolve this
	// block to; populated lazily on first reference.
	Label string
}

// AppendCommand appends c to b.
func (b *IBB) AppendCommand(c Command) {
	b.Commands = append(b.Commands, c)
}

// Discriminator is the opaque integer that survives optimization and
// identifies which VM a block will execute under (spec.md §3).
type Discriminator int

// VMID is a small integer chosen at compile time; each maps to one
// independently generated register/handler layout (spec.md §3).
type VMID int

// PreoptBlock is an IBB annotated with its originating BB and a
// discriminator (spec.md §3). SourceStartRVA identifies the originating BB
// by its start RVA rather than holding a pointer to disasm.BB, keeping the
// IR graph decoupled from the disassembler's ownership (spec.md §5).
type PreoptBlock struct {
	Block          *IBB
	SourceStartRVA uint64
	Discriminator  Discriminator
	// Entry marks the block the caller designated as the compilation
	// entry point; entry pinning (spec.md §4.3 pass 3) refuses to remove
	// it even with zero uses.
	Entry bool
}

// Graph is the arena owning all IBBs produced by the lifter, keyed by
// stable id (spec.md §9: "no node owns another node; the arena owns all
// nodes").
type Graph struct {
	blocks []*IBB
	byRVA  map[uint64]*IBB
}

// NewGraph creates an empty IBB arena.
func NewGraph() *Graph {
	return &Graph{byRVA: map[uint64]*IBB{}}
}

// NewBlock allocates and returns a fresh IBB with the next stable id.
func (g *Graph) NewBlock() *IBB {
	b := &IBB{ID: IBBID(len(g.blocks))}
	g.blocks = append(g.blocks, b)
	return b
}

// BindRVA associates an originating BB start RVA with an IBB, so later
// lookups (e.g. resolving a branch target) can go RVA -> IBB without a
// pointer into the disassembler's block graph.
func (g *Graph) BindRVA(rva uint64, b *IBB) {
	g.byRVA[rva] = b
}

// BlockByRVA returns the IBB originating from the BB starting at rva, or
// nil.
func (g *Graph) BlockByRVA(rva uint64) *IBB {
	return g.byRVA[rva]
}

// Blocks returns all IBBs in allocation order.
func (g *Graph) Blocks() []*IBB {
	return g.blocks
}
