package harness

import "unsafe"

// unsafeAddr returns the address of b's backing array. b must be
// non-empty and must not be moved by the garbage collector for as long as
// the returned address is used; Region's mmap-backed slices never are.
func unsafeAddr(b []byte) unsafe.Pointer {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Pointer(&b[0])
}
