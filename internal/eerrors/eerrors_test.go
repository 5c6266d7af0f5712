package eerrors

import (
	"testing"

	stderrors "errors"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestNewDecodeError_UnwrapsToUnderlyingError(t *testing.T) {
	underlying := stderrors.New("truncated instruction")
	err := NewDecodeError(0x1000, underlying)

	assert.Contains(t, err.Error(), "0x1000")
	assert.Contains(t, err.Error(), "truncated instruction")

	var de *DecodeError
	assert.True(t, errors.As(err, &de))
	assert.Same(t, underlying, de.Unwrap())
}

func TestNewAllocationFailureError_IsRecoverableTaxonomyMember(t *testing.T) {
	err := NewAllocationFailureError("rax")

	var allocErr *AllocationFailureError
	assert.True(t, errors.As(err, &allocErr))
	assert.Equal(t, "rax", allocErr.GuestReg)
	assert.Contains(t, err.Error(), "rax")
}

func TestErrorConstructors_DistinctTypesDontMatchEachOther(t *testing.T) {
	err := NewOutOfRangeError(4)

	var allocErr *AllocationFailureError
	assert.False(t, errors.As(err, &allocErr))

	var oorErr *OutOfRangeError
	assert.True(t, errors.As(err, &oorErr))
	assert.Equal(t, uint64(4), oorErr.RVA)
}

func TestNewUnresolvedLabelError_IncludesName(t *testing.T) {
	err := NewUnresolvedLabelError("vm0_block3")
	assert.Contains(t, err.Error(), "vm0_block3")
}
