//go:build linux && amd64

package stubs

import (
	"testing"

	"github.com/rs/zerolog"

	"tier1/pkg/helpers"
	"tier1/pkg/jit/asm"
	"tier1/pkg/layout"
	"tier1/pkg/native"
	"tier1/pkg/tagged"
)

type fixture struct {
	arena *native.Arena
	rt    *Runtime
	stack uintptr
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	arena, err := native.NewArena(1 << 20)
	if err != nil {
		t.Fatalf("NewArena: %v", err)
	}
	rt, err := New(arena, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	stack, err := arena.Stack(64 * 1024)
	if err != nil {
		t.Fatalf("Stack: %v", err)
	}
	t.Cleanup(func() {
		rt.Release()
		arena.Free()
	})
	return &fixture{arena: arena, rt: rt, stack: stack}
}

func (f *fixture) call(k helpers.Kind, args ...uintptr) tagged.Value {
	var a [5]uintptr
	copy(a[:], args)
	fn := f.rt.Table().Address(k)
	return tagged.Value(asm.CallNative(fn, f.stack, a[0], a[1], a[2], a[3], a[4]))
}

// callFrame builds a call frame header with the given scope.
func (f *fixture) callFrame(t *testing.T, scope uintptr) uintptr {
	t.Helper()
	cf, err := f.arena.Words(layout.CallFrameHeaderSize / 8)
	if err != nil {
		t.Fatal(err)
	}
	f.arena.Store(cf+layout.CallFrameScope, scope)
	return cf
}

func TestTableComplete(t *testing.T) {
	f := newFixture(t)
	tab := f.rt.Table()
	if err := tab.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestSafepoint(t *testing.T) {
	f := newFixture(t)
	cf := f.callFrame(t, 0)

	if got := f.call(helpers.Safepoint, f.rt.VM(), cf); got == tagged.Failure {
		t.Error("safepoint failed with no interrupt pending")
	}
	if f.rt.LastVM() != f.rt.VM() || f.rt.LastCallFrame() != cf {
		t.Error("safepoint did not record its arguments")
	}

	f.rt.SetInterrupt(true)
	if got := f.call(helpers.Safepoint, f.rt.VM(), cf); got != tagged.Failure {
		t.Errorf("safepoint = %s with an interrupt pending", got)
	}
	if n := f.rt.Calls(helpers.Safepoint); n != 2 {
		t.Errorf("Calls = %d, want 2", n)
	}

	f.rt.Reset()
	if n := f.rt.Calls(helpers.Safepoint); n != 0 {
		t.Errorf("Calls after Reset = %d", n)
	}
	if got := f.call(helpers.Safepoint, f.rt.VM(), cf); got == tagged.Failure {
		t.Error("Reset did not clear the interrupt")
	}
}

func TestFlushScopeReadsCallFrame(t *testing.T) {
	f := newFixture(t)
	cf := f.callFrame(t, 0xabc0)
	f.call(helpers.FlushScope, f.rt.VM(), cf)
	if f.rt.LastScope() != 0xabc0 {
		t.Errorf("LastScope = 0x%x", f.rt.LastScope())
	}
}

func TestCheckFrozen(t *testing.T) {
	f := newFixture(t)
	obj := uintptr(tagged.Fixnum(5))
	if f.call(helpers.CheckFrozen, f.rt.VM(), 0, obj) == tagged.Failure {
		t.Error("mutable object reported frozen")
	}
	if f.rt.LastObject() != tagged.Fixnum(5) {
		t.Errorf("LastObject = %s", f.rt.LastObject())
	}
	f.rt.SetFrozen(true)
	if f.call(helpers.CheckFrozen, f.rt.VM(), 0, obj) != tagged.Failure {
		t.Error("frozen object passed the check")
	}
}

func TestCacheMissComparesReceiverAndArgument(t *testing.T) {
	f := newFixture(t)
	cache, err := f.rt.NewCache(4, 99)
	if err != nil {
		t.Fatal(err)
	}
	if f.arena.Load(cache+layout.CacheExecute) != f.rt.Table().Address(helpers.CacheMiss) {
		t.Error("cache execute slot does not point at the miss helper")
	}
	if f.arena.Load(cache+layout.CacheName) != 99 {
		t.Error("cache name not recorded")
	}

	args, _ := f.arena.Words(4)
	argv, _ := f.arena.Words(1)
	f.arena.Store(args+layout.ArgumentsArguments, argv)
	f.arena.Store32(args+layout.ArgumentsTotal, 1)

	tests := []struct {
		recv, arg tagged.Value
		want      tagged.Value
	}{
		{tagged.Fixnum(2), tagged.Fixnum(2), tagged.True},
		{tagged.Fixnum(2), tagged.Fixnum(3), tagged.False},
		{tagged.Nil, tagged.Nil, tagged.True},
		{tagged.True, tagged.False, tagged.False},
	}
	for _, tt := range tests {
		f.arena.Store(args+layout.ArgumentsRecv, uintptr(tt.recv))
		f.arena.Store(argv, uintptr(tt.arg))
		if got := f.call(helpers.CacheMiss, f.rt.VM(), cache, 0, args); got != tt.want {
			t.Errorf("%s == %s: got %s, want %s", tt.recv, tt.arg, got, tt.want)
		}
	}
	if f.rt.LastCount() != 1 || f.rt.LastPointer() != cache {
		t.Errorf("LastCount = %d, LastPointer = 0x%x", f.rt.LastCount(), f.rt.LastPointer())
	}

	f.rt.SetFailing(helpers.CacheMiss, true)
	if got := f.call(helpers.CacheMiss, f.rt.VM(), cache, 0, args); got != tagged.Failure {
		t.Errorf("failing cache miss returned %s", got)
	}
}

func TestLiteralAt(t *testing.T) {
	f := newFixture(t)
	if err := f.rt.SetLiterals([]tagged.Value{tagged.Fixnum(10), tagged.Fixnum(20)}); err != nil {
		t.Fatal(err)
	}
	if got := f.call(helpers.LiteralAt, f.rt.VM(), 0, 1); got != tagged.Fixnum(20) {
		t.Errorf("literal 1 = %s", got)
	}
	if got := f.call(helpers.LiteralAt, f.rt.VM(), 0, 2); got != tagged.Failure {
		t.Errorf("out of range literal = %s", got)
	}
}

func TestStringHelpers(t *testing.T) {
	f := newFixture(t)
	str := tagged.Value(0x7000) // any reference-shaped word
	f.rt.SetStringResult(str)

	if got := f.call(helpers.StringDup, f.rt.VM(), 0, 0x1230); got != str {
		t.Errorf("string_dup = %s", got)
	}
	if f.rt.LastObject() != 0x1230 {
		t.Errorf("string_dup argument = %s", f.rt.LastObject())
	}

	if got := f.call(helpers.StringBuild, f.rt.VM(), 0, 3, 0x4560); got != str {
		t.Errorf("string_build = %s", got)
	}
	if f.rt.LastCount() != 3 || f.rt.LastPointer() != 0x4560 {
		t.Errorf("string_build recorded count %d, first 0x%x", f.rt.LastCount(), f.rt.LastPointer())
	}

	if got := f.call(helpers.MetaToS, f.rt.VM(), 0, 0x8880, uintptr(tagged.Fixnum(1))); got != str {
		t.Errorf("meta_to_s = %s", got)
	}

	f.rt.SetFailing(helpers.StringDup, true)
	if got := f.call(helpers.StringDup, f.rt.VM(), 0, 0x1230); got != tagged.Failure {
		t.Errorf("failing string_dup = %s", got)
	}
	f.rt.SetFailing(helpers.StringDup, false)
	if got := f.call(helpers.StringDup, f.rt.VM(), 0, 0x1230); got != str {
		t.Errorf("string_dup after clearing failure = %s", got)
	}
}

func TestArityErrorAlwaysFails(t *testing.T) {
	f := newFixture(t)
	if got := f.call(helpers.ArityError, f.rt.VM(), 0x10, 1); got != tagged.Failure {
		t.Errorf("arity error returned %s", got)
	}
	if f.rt.LastCount() != 1 || f.rt.Calls(helpers.ArityError) != 1 {
		t.Error("arity error not recorded")
	}
}
