//go:build unix

package harness

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Region is a scoped RWX-mapped memory region (spec.md §9's "executable
// memory" acquisition), backed by an anonymous mmap.
type Region struct {
	mem []byte
}

func acquireRegion(size int) (*Region, error) {
	if size <= 0 {
		size = 1
	}
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE|unix.PROT_EXEC, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, errors.Wrap(err, "harness: mmap")
	}
	return &Region{mem: mem}, nil
}

func (r *Region) bytes() []byte { return r.mem }

func (r *Region) addr() uintptr { return uintptr(unsafeAddr(r.mem)) }

func (r *Region) release() error {
	if r.mem == nil {
		return nil
	}
	err := unix.Munmap(r.mem)
	r.mem = nil
	if err != nil {
		return errors.Wrap(err, "harness: munmap")
	}
	return nil
}
