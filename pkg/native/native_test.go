//go:build unix

package native

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func newArena(t *testing.T, size int) *Arena {
	t.Helper()
	ar, err := NewArena(size)
	if err != nil {
		t.Fatalf("NewArena: %v", err)
	}
	t.Cleanup(func() { ar.Free() })
	return ar
}

func TestArenaAlloc(t *testing.T) {
	ar := newArena(t, 4096)

	a, err := ar.Alloc(3, 1)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	b, err := ar.Words(2)
	if err != nil {
		t.Fatalf("Words: %v", err)
	}
	if b%WordSize != 0 {
		t.Errorf("Words returned unaligned 0x%x", b)
	}
	if b < a+3 {
		t.Errorf("allocations overlap: 0x%x then 0x%x", a, b)
	}
	if !ar.Contains(a) || !ar.Contains(b+8) {
		t.Error("allocations outside the arena")
	}
	if ar.Used() != int(b-a)+16 {
		t.Errorf("Used = %d", ar.Used())
	}

	if _, err := ar.Alloc(8192, 8); err == nil {
		t.Error("oversized allocation succeeded")
	}
}

func TestArenaLoadStore(t *testing.T) {
	ar := newArena(t, 4096)
	p, err := ar.Words(4)
	if err != nil {
		t.Fatalf("Words: %v", err)
	}
	for i := uintptr(0); i < 4; i++ {
		if got := ar.Load(p + i*8); got != 0 {
			t.Errorf("word %d not zeroed: 0x%x", i, got)
		}
	}
	ar.Store(p+8, 0xdeadbeef)
	ar.Store32(p+16, -7)
	if got := ar.Load(p + 8); got != 0xdeadbeef {
		t.Errorf("Load = 0x%x", got)
	}
	if got := ar.Load32(p + 16); got != -7 {
		t.Errorf("Load32 = %d", got)
	}

	ar.Reset()
	q, _ := ar.Words(4)
	if q != p {
		t.Errorf("Reset did not rewind: 0x%x != 0x%x", q, p)
	}
	if ar.Load(q+8) != 0 {
		t.Error("reused memory not zeroed")
	}
}

func TestArenaStack(t *testing.T) {
	ar := newArena(t, 64*1024)
	top, err := ar.Stack(1000)
	if err != nil {
		t.Fatalf("Stack: %v", err)
	}
	if top%16 != 0 {
		t.Errorf("stack top 0x%x not 16-byte aligned", top)
	}
	if !ar.Contains(top - 8) {
		t.Error("stack top outside arena")
	}
}

func TestArenaOutOfRangePanics(t *testing.T) {
	ar := newArena(t, 4096)
	defer func() {
		if recover() == nil {
			t.Error("expected a panic")
		}
	}()
	_, end := ar.Bounds()
	ar.Load(end)
}

func TestMapCode(t *testing.T) {
	code := []byte{0x48, 0xC7, 0xC0, 0x1A, 0x00, 0x00, 0x00, 0xC3}
	c, err := MapCode(code)
	if err != nil {
		t.Fatalf("MapCode: %v", err)
	}
	defer c.Release()

	if c.Entry() == 0 {
		t.Error("no entry address")
	}
	if c.Size() != len(code) {
		t.Errorf("Size = %d", c.Size())
	}
	if diff := cmp.Diff(code, c.Bytes()); diff != "" {
		t.Errorf("code mismatch (-want +got):\n%s", diff)
	}

	if _, err := MapCode(nil); err == nil {
		t.Error("empty code accepted")
	}
}
