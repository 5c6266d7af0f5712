// Package eerrors defines the fatal/recoverable error taxonomy shared by
// every compilation phase.
package eerrors

import "github.com/pkg/errors"

// DecodeError reports that the raw decoder rejected a byte sequence at rva.
type DecodeError struct {
	RVA uint64
	Err error
}

func (e *DecodeError) Error() string {
	return errors.Wrapf(e.Err, "decode error at rva %#x", e.RVA).Error()
}

func (e *DecodeError) Unwrap() error { return e.Err }

// NewDecodeError wraps err with the offending rva.
func NewDecodeError(rva uint64, err error) error {
	return errors.WithStack(&DecodeError{RVA: rva, Err: err})
}

// UnsupportedInstructionError reports that no lifter handler exists for mnemonic.
type UnsupportedInstructionError struct {
	Mnemonic string
	RVA      uint64
}

func (e *UnsupportedInstructionError) Error() string {
	return errors.Errorf("unsupported instruction %q at rva %#x", e.Mnemonic, e.RVA).Error()
}

func NewUnsupportedInstructionError(mnemonic string, rva uint64) error {
	return errors.WithStack(&UnsupportedInstructionError{Mnemonic: mnemonic, RVA: rva})
}

// OutOfRangeError reports that the CFG left [binary_rva, binary_end) in a
// context that required the successor to stay internal.
type OutOfRangeError struct {
	RVA uint64
}

func (e *OutOfRangeError) Error() string {
	return errors.Errorf("rva %#x falls out of range", e.RVA).Error()
}

func NewOutOfRangeError(rva uint64) error {
	return errors.WithStack(&OutOfRangeError{RVA: rva})
}

// StackImbalanceError reports an optimizer invariant violation: the VM stack
// depth implied by a block's predecessors disagrees.
type StackImbalanceError struct {
	Block string
}

func (e *StackImbalanceError) Error() string {
	return errors.Errorf("stack imbalance entering block %s", e.Block).Error()
}

func NewStackImbalanceError(block string) error {
	return errors.WithStack(&StackImbalanceError{Block: block})
}

// AllocationFailureError reports that the register allocator could not place
// a guest register's scatter plan after exhausting its retry budget. It is
// the only recoverable error: the caller may re-seed and restart C6.
type AllocationFailureError struct {
	GuestReg string
}

func (e *AllocationFailureError) Error() string {
	return errors.Errorf("allocation failure for guest register %s", e.GuestReg).Error()
}

func NewAllocationFailureError(guestReg string) error {
	return errors.WithStack(&AllocationFailureError{GuestReg: guestReg})
}

// UnresolvedLabelError reports that a label reached the emit pass still
// bound without a container.
type UnresolvedLabelError struct {
	Name string
}

func (e *UnresolvedLabelError) Error() string {
	return errors.Errorf("unresolved label %q at emit time", e.Name).Error()
}

func NewUnresolvedLabelError(name string) error {
	return errors.WithStack(&UnresolvedLabelError{Name: name})
}

// EncodingFailureError reports that the underlying encoder rejected a
// mnemonic/operand combination.
type EncodingFailureError struct {
	Mnemonic string
	Operands string
}

func (e *EncodingFailureError) Error() string {
	return errors.Errorf("encoding failure for %s %s", e.Mnemonic, e.Operands).Error()
}

func NewEncodingFailureError(mnemonic, operands string) error {
	return errors.WithStack(&EncodingFailureError{Mnemonic: mnemonic, Operands: operands})
}
