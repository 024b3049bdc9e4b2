//go:build unix

package native

import (
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Arena is a bump allocator over one anonymous read/write mapping. Addresses
// it returns stay valid until Free.
type Arena struct {
	buffer []byte
	used   int
	mu     sync.Mutex
}

// NewArena maps size bytes. A non-positive size selects DefaultArenaSize.
func NewArena(size int) (*Arena, error) {
	if size <= 0 {
		size = DefaultArenaSize
	}

	buffer, err := unix.Mmap(
		-1, 0,
		size,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to mmap arena: %w", err)
	}

	return &Arena{buffer: buffer}, nil
}

// Alloc reserves size zeroed bytes aligned to align, which must be a power of
// two.
func (ar *Arena) Alloc(size, align int) (uintptr, error) {
	ar.mu.Lock()
	defer ar.mu.Unlock()

	if ar.buffer == nil {
		return 0, fmt.Errorf("arena is freed")
	}
	start := (ar.used + align - 1) &^ (align - 1)
	if start+size > len(ar.buffer) {
		return 0, fmt.Errorf("out of arena memory: need %d, have %d", size, len(ar.buffer)-start)
	}
	clear(ar.buffer[start : start+size])
	ar.used = start + size
	return ar.base() + uintptr(start), nil
}

// Words reserves n zeroed, word-aligned words.
func (ar *Arena) Words(n int) (uintptr, error) {
	return ar.Alloc(n*WordSize, WordSize)
}

// Stack reserves a native stack of size bytes and returns its top. The top is
// 16-byte aligned.
func (ar *Arena) Stack(size int) (uintptr, error) {
	if size <= 0 {
		size = DefaultStackSize
	}
	size = (size + 15) &^ 15
	low, err := ar.Alloc(size, 16)
	if err != nil {
		return 0, err
	}
	return low + uintptr(size), nil
}

// Load reads the word at addr.
func (ar *Arena) Load(addr uintptr) uintptr {
	return *ar.word(addr)
}

// Store writes the word at addr.
func (ar *Arena) Store(addr, value uintptr) {
	*ar.word(addr) = value
}

// Load32 reads the int32 at addr.
func (ar *Arena) Load32(addr uintptr) int32 {
	off := ar.offset(addr, 4)
	return *(*int32)(unsafe.Pointer(&ar.buffer[off]))
}

// Store32 writes the int32 at addr.
func (ar *Arena) Store32(addr uintptr, value int32) {
	off := ar.offset(addr, 4)
	*(*int32)(unsafe.Pointer(&ar.buffer[off])) = value
}

func (ar *Arena) word(addr uintptr) *uintptr {
	off := ar.offset(addr, WordSize)
	return (*uintptr)(unsafe.Pointer(&ar.buffer[off]))
}

func (ar *Arena) offset(addr uintptr, size int) int {
	off := int(addr - ar.base())
	if addr < ar.base() || off+size > len(ar.buffer) {
		panic(fmt.Sprintf("native: address 0x%x outside arena", addr))
	}
	return off
}

func (ar *Arena) base() uintptr {
	if len(ar.buffer) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&ar.buffer[0]))
}

// Contains reports whether addr lies inside the mapping.
func (ar *Arena) Contains(addr uintptr) bool {
	start, end := ar.Bounds()
	return addr >= start && addr < end
}

// Bounds returns the start and end addresses of the mapping.
func (ar *Arena) Bounds() (start, end uintptr) {
	if len(ar.buffer) == 0 {
		return 0, 0
	}
	start = ar.base()
	end = start + uintptr(len(ar.buffer))
	return
}

// Used returns the amount of memory currently in use
func (ar *Arena) Used() int {
	ar.mu.Lock()
	defer ar.mu.Unlock()
	return ar.used
}

// Capacity returns the total capacity
func (ar *Arena) Capacity() int {
	return len(ar.buffer)
}

// Reset forgets every allocation. Addresses handed out earlier are reused.
func (ar *Arena) Reset() {
	ar.mu.Lock()
	defer ar.mu.Unlock()
	ar.used = 0
}

// Free releases the mapping.
func (ar *Arena) Free() error {
	ar.mu.Lock()
	defer ar.mu.Unlock()

	if ar.buffer == nil {
		return nil
	}

	err := unix.Munmap(ar.buffer)
	ar.buffer = nil
	ar.used = 0
	return err
}
