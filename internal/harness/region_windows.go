//go:build windows

package harness

import (
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/windows"
)

// Region is a scoped RWX-mapped memory region (spec.md §9's "executable
// memory" acquisition), backed by a VirtualAlloc reservation, mirroring
// original_source's VirtualProtect(run_buffer, ..., PAGE_EXECUTE_READWRITE)
// over a static section buffer.
type Region struct {
	base uintptr
	size int
}

func acquireRegion(size int) (*Region, error) {
	if size <= 0 {
		size = 1
	}
	addr, err := windows.VirtualAlloc(0, uintptr(size), windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_EXECUTE_READWRITE)
	if err != nil {
		return nil, errors.Wrap(err, "harness: VirtualAlloc")
	}
	return &Region{base: addr, size: size}, nil
}

func (r *Region) bytes() []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(r.base)), r.size)
}

func (r *Region) addr() uintptr { return r.base }

func (r *Region) release() error {
	if r.base == 0 {
		return nil
	}
	err := windows.VirtualFree(r.base, 0, windows.MEM_RELEASE)
	r.base = 0
	if err != nil {
		return errors.Wrap(err, "harness: VirtualFree")
	}
	return nil
}
