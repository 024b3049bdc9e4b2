//go:build unix

package native

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Code is a finalized, read+execute copy of a machine code buffer. It is
// immutable and may run on any number of threads at once.
type Code struct {
	mem  []byte
	size int
}

// MapCode copies code into a fresh mapping and makes it executable. The
// mapping is never writable and executable at the same time.
func MapCode(code []byte) (*Code, error) {
	if len(code) == 0 {
		return nil, fmt.Errorf("empty code buffer")
	}
	page := unix.Getpagesize()
	size := (len(code) + page - 1) &^ (page - 1)

	mem, err := unix.Mmap(
		-1, 0,
		size,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to mmap code: %w", err)
	}
	copy(mem, code)

	if err := unix.Mprotect(mem, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		unix.Munmap(mem)
		return nil, fmt.Errorf("failed to make code executable: %w", err)
	}
	return &Code{mem: mem, size: len(code)}, nil
}

// Entry returns the address of the first instruction.
func (c *Code) Entry() uintptr {
	if c == nil || c.mem == nil {
		return 0
	}
	return uintptr(unsafe.Pointer(&c.mem[0]))
}

// Size is the length of the machine code, excluding page padding.
func (c *Code) Size() int {
	if c == nil {
		return 0
	}
	return c.size
}

// Bytes returns a copy of the machine code.
func (c *Code) Bytes() []byte {
	if c == nil || c.mem == nil {
		return nil
	}
	out := make([]byte, c.size)
	copy(out, c.mem[:c.size])
	return out
}

// Release unmaps the code. Callers must ensure nothing is executing it.
func (c *Code) Release() error {
	if c == nil || c.mem == nil {
		return nil
	}
	err := unix.Munmap(c.mem)
	c.mem = nil
	return err
}
