//go:build !unix

package native

// Arena is unavailable without mmap.
type Arena struct{}

func NewArena(size int) (*Arena, error) { return nil, ErrNotSupported }
func (ar *Arena) Alloc(size, align int) (uintptr, error) { return 0, ErrNotSupported }
func (ar *Arena) Words(n int) (uintptr, error) { return 0, ErrNotSupported }
func (ar *Arena) Stack(size int) (uintptr, error) { return 0, ErrNotSupported }
func (ar *Arena) Load(addr uintptr) uintptr { panic(ErrNotSupported) }
func (ar *Arena) Store(addr, value uintptr) { panic(ErrNotSupported) }
func (ar *Arena) Load32(addr uintptr) int32 { panic(ErrNotSupported) }
func (ar *Arena) Store32(addr uintptr, value int32) { panic(ErrNotSupported) }
func (ar *Arena) Contains(addr uintptr) bool { return false }
func (ar *Arena) Bounds() (start, end uintptr) { return 0, 0 }
func (ar *Arena) Used() int { return 0 }
func (ar *Arena) Capacity() int { return 0 }
func (ar *Arena) Reset() {}
func (ar *Arena) Free() error { return nil }

// Code is unavailable without mmap.
type Code struct{}

func MapCode(code []byte) (*Code, error) { return nil, ErrNotSupported }
func (c *Code) Entry() uintptr { return 0 }
func (c *Code) Size() int { return 0 }
func (c *Code) Bytes() []byte { return nil }
func (c *Code) Release() error { return nil }
