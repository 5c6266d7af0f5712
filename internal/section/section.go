// Package section implements C8's label/container model on top of the
// kept amd64 assembler (internal/asm, internal/asm/amd64): a two-pass
// layout/emit exactly like assemblerImpl.Assemble()'s fixed-point shrink
// loop, generalized with the tri-state Label and CodeContainer vocabulary
// spec.md §3/§4.6 describe (unbound -> bound_to_container -> resolved).
//
// No encoding logic lives here: this package only tracks which container a
// label points at and, once the underlying assembler has produced its
// final byte buffer, what absolute RVA that container landed at.
package section

import (
	"github.com/eaglevm/eaglevm/internal/asm"
	asmamd64 "github.com/eaglevm/eaglevm/internal/asm/amd64"
	"github.com/eaglevm/eaglevm/internal/eerrors"
)

// LabelState is a Label's position in the tri-state lifecycle spec.md §3
// describes.
type LabelState int

const (
	LabelUnbound LabelState = iota
	LabelBoundToContainer
	LabelResolved
)

// Label is a named reference to a CodeContainer's start (spec.md §3).
type Label struct {
	Name      string
	state     LabelState
	container *CodeContainer
	rva       uint64
}

// State returns the label's current lifecycle state.
func (l *Label) State() LabelState { return l.state }

// RVA returns the label's resolved absolute address; valid only once
// State() == LabelResolved.
func (l *Label) RVA() uint64 { return l.rva }

// CodeContainer is an ordered run of instructions with one label bound to
// its start (spec.md §4.6). Containers are appended, in order, to one
// shared assembler instance, so the assembler's existing offset/jump-shrink
// logic runs once across the whole section rather than per container.
//
// Every container opens with a NOP anchor: this guarantees the label has a
// concrete node to resolve against even for an otherwise-empty container,
// and keeps anchoring independent of which Compile* method a caller uses
// first (several of them return no asm.Node at all).
type CodeContainer struct {
	Name   string
	Label  *Label
	anchor asm.Node
	sec    *Section
}

// Asm returns the shared assembler used to emit this container's
// instructions.
func (c *CodeContainer) Asm() asmamd64.Assembler { return c.sec.asmBase }

type pendingJump struct {
	node  asm.Node
	label *Label
}

// Section holds an ordered list of code containers sharing one assembler
// instance (spec.md §4.6).
type Section struct {
	asmBase    asmamd64.Assembler
	containers []*CodeContainer
	labels     map[string]*Label
	pending    []pendingJump
}

// New creates an empty Section. temporaryRegister is passed through to the
// underlying amd64 assembler (spec.md §6's decoder-style narrow contract
// applies symmetrically here: the assembler needs one scratch register for
// internal const-materialization).
func New(temporaryRegister asm.Register) (*Section, error) {
	base, err := asmamd64.NewAssembler(temporaryRegister)
	if err != nil {
		return nil, err
	}
	return &Section{
		asmBase: base.(asmamd64.Assembler),
		labels:  map[string]*Label{},
	}, nil
}

// Reserve creates (or returns the existing) unbound label for name, so a
// forward reference can be emitted before the container it targets exists
// (spec.md §4.6's unbound state: a label may be named before it is bound).
func (s *Section) Reserve(name string) *Label {
	if l, ok := s.labels[name]; ok {
		return l
	}
	l := &Label{Name: name}
	s.labels[name] = l
	return l
}

// NewContainer allocates a fresh container, anchors it with an opening NOP,
// and binds its label to it (spec.md §4.6's layout pass). If name was
// already Reserve()d, that same Label is bound rather than a new one
// created, so earlier forward-referencing jumps resolve correctly.
func (s *Section) NewContainer(name string) *CodeContainer {
	lbl, ok := s.labels[name]
	if !ok {
		lbl = &Label{Name: name}
		s.labels[name] = lbl
	}
	c := &CodeContainer{Name: name, Label: lbl, sec: s}
	c.anchor = s.asmBase.CompileStandAlone(asmamd64.NOP)
	lbl.state = LabelBoundToContainer
	lbl.container = c
	s.containers = append(s.containers, c)
	return c
}

// Jump emits a jump instruction in c targeting dst's label, resolved once
// the whole section has been laid out (spec.md §4.6's layout pass: "binding
// every label that has a container to bound_to_container").
func (c *CodeContainer) Jump(instruction asm.Instruction, dst *Label) {
	n := c.Asm().CompileJump(instruction)
	c.sec.pending = append(c.sec.pending, pendingJump{node: n, label: dst})
}

// Label looks up a previously created container's label by name.
func (s *Section) Label(name string) (*Label, bool) {
	l, ok := s.labels[name]
	return l, ok
}

// Output is the result of a successful Build: the assembled bytes plus
// every label's resolved absolute RVA (spec.md §4.6, "rewrites any absolute
// references").
type Output struct {
	Code    []byte
	Symbols map[string]uint64
}

// Build runs the two-pass encode (delegated to the wrapped assembler's
// Assemble, which already implements the layout/shrink/emit loop) and
// resolves every label to an absolute RVA relative to baseRVA (spec.md
// §4.6).
func (s *Section) Build(baseRVA uint64) (Output, error) {
	for _, pj := range s.pending {
		if pj.label.container == nil {
			return Output{}, eerrors.NewUnresolvedLabelError(pj.label.Name)
		}
		pj.node.AssignJumpTarget(pj.label.container.anchor)
	}

	code, err := s.asmBase.Assemble()
	if err != nil {
		return Output{}, err
	}

	symbols := make(map[string]uint64, len(s.labels))
	for name, lbl := range s.labels {
		if lbl.container == nil || lbl.container.anchor == nil {
			return Output{}, eerrors.NewUnresolvedLabelError(name)
		}
		lbl.rva = baseRVA + lbl.container.anchor.OffsetInBinary()
		lbl.state = LabelResolved
		symbols[name] = lbl.rva
	}
	return Output{Code: code, Symbols: symbols}, nil
}
