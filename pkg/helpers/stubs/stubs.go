// Package stubs provides machine code reference implementations of every
// runtime helper. They stand in for the VM in tests and in the tier1c run
// command.
//
// The helpers keep their state in a scratch record in native memory: a call
// counter per helper, switches that make helpers fail, and the arguments of
// the most recent call. A Runtime is not safe for concurrent use.
package stubs

import (
	"fmt"

	"github.com/rs/zerolog"

	"tier1/pkg/amd64"
	"tier1/pkg/helpers"
	"tier1/pkg/layout"
	"tier1/pkg/native"
	"tier1/pkg/tagged"
)

// Runtime owns the assembled helpers and their scratch record.
type Runtime struct {
	arena   *native.Arena
	code    *native.Code
	scratch uintptr
	vm      uintptr
	table   helpers.Table
}

// New assembles the helpers and allocates their state in arena.
func New(arena *native.Arena, log zerolog.Logger) (*Runtime, error) {
	scratch, err := arena.Alloc(scratchSize, 16)
	if err != nil {
		return nil, fmt.Errorf("allocate helper scratch: %w", err)
	}
	vm, err := arena.Words(4)
	if err != nil {
		return nil, fmt.Errorf("allocate vm handle: %w", err)
	}

	a := amd64.New(log)
	var starts [helpers.NumKinds]int
	for k := helpers.Kind(0); k < helpers.NumKinds; k++ {
		starts[k] = a.Offset()
		a.Comment("helper %s", k)
		emitHelper(a, k, scratch)
	}
	buf, err := a.Finish()
	if err != nil {
		return nil, fmt.Errorf("assemble helpers: %w", err)
	}
	code, err := native.MapCode(buf)
	if err != nil {
		return nil, err
	}

	r := &Runtime{
		arena:   arena,
		code:    code,
		scratch: scratch,
		vm:      vm,
	}
	for k := helpers.Kind(0); k < helpers.NumKinds; k++ {
		r.table.Set(k, code.Entry()+uintptr(starts[k]))
	}
	log.Debug().Int("bytes", code.Size()).Msg("reference helpers assembled")
	return r, nil
}

// emitHelper assembles one helper. r11 holds the scratch record throughout;
// it is free on entry because callers use it only as the call target.
func emitHelper(a *amd64.Assembler, k helpers.Kind, scratch uintptr) {
	fail := a.NewLabel()

	a.MovRegImm64(amd64.R11, uint64(scratch))
	a.AddMemImm32(amd64.R11, counter(k), 1)

	switch k {
	case helpers.ArityError:
		a.MovMemReg(amd64.R11, offLastVM, amd64.RDI)
		a.MovMemReg(amd64.R11, offLastPointer, amd64.RSI)
		a.MovMemReg(amd64.R11, offLastCount, amd64.RDX)
		a.Jmp(fail)

	case helpers.Safepoint:
		a.MovMemReg(amd64.R11, offLastVM, amd64.RDI)
		a.MovMemReg(amd64.R11, offLastCallFrame, amd64.RSI)
		a.MovRegMem(amd64.RAX, amd64.R11, offInterrupt)
		a.TestRegReg(amd64.RAX, amd64.RAX)
		a.Jne(fail)
		failIfMasked(a, k, fail)
		a.MovRegImm32(amd64.RAX, int32(tagged.True))

	case helpers.FlushScope:
		a.MovMemReg(amd64.R11, offLastCallFrame, amd64.RSI)
		a.MovRegMem(amd64.RAX, amd64.RSI, layout.CallFrameScope)
		a.MovMemReg(amd64.R11, offLastScope, amd64.RAX)

	case helpers.CheckFrozen:
		a.MovMemReg(amd64.R11, offLastCallFrame, amd64.RSI)
		a.MovMemReg(amd64.R11, offLastObject, amd64.RDX)
		a.MovRegMem(amd64.RAX, amd64.R11, offFrozen)
		a.TestRegReg(amd64.RAX, amd64.RAX)
		a.Jne(fail)
		failIfMasked(a, k, fail)
		a.MovRegImm32(amd64.RAX, int32(tagged.True))

	case helpers.CacheMiss:
		// Identity "==" on the receiver and the single argument.
		notEqual := a.NewLabel()
		a.MovMemReg(amd64.R11, offLastPointer, amd64.RSI)
		a.MovMemReg(amd64.R11, offLastCallFrame, amd64.RDX)
		a.MovRegMem32Signed(amd64.RAX, amd64.RCX, layout.ArgumentsTotal)
		a.MovMemReg(amd64.R11, offLastCount, amd64.RAX)
		a.MovRegMem(amd64.RAX, amd64.RCX, layout.ArgumentsRecv)
		a.MovMemReg(amd64.R11, offLastObject, amd64.RAX)
		failIfMasked(a, k, fail)
		a.MovRegMem(amd64.RDX, amd64.RCX, layout.ArgumentsArguments)
		a.CmpRegMem(amd64.RAX, amd64.RDX, 0)
		a.Jne(notEqual)
		a.MovRegImm32(amd64.RAX, int32(tagged.True))
		a.Ret()
		a.Bind(notEqual)
		a.MovRegImm32(amd64.RAX, int32(tagged.False))

	case helpers.LiteralAt:
		a.MovMemReg(amd64.R11, offLastCallFrame, amd64.RSI)
		a.MovMemReg(amd64.R11, offLastCount, amd64.RDX)
		failIfMasked(a, k, fail)
		a.CmpRegMem(amd64.RDX, amd64.R11, offLiteralCount)
		a.Jae(fail)
		a.MovRegMem(amd64.RAX, amd64.R11, offLiterals)
		a.MovRegMemIdx(amd64.RAX, amd64.RAX, amd64.RDX, 0)

	case helpers.StringDup:
		a.MovMemReg(amd64.R11, offLastCallFrame, amd64.RSI)
		a.MovMemReg(amd64.R11, offLastObject, amd64.RDX)
		failIfMasked(a, k, fail)
		a.MovRegMem(amd64.RAX, amd64.R11, offStringResult)

	case helpers.StringBuild:
		a.MovMemReg(amd64.R11, offLastCallFrame, amd64.RSI)
		a.MovMemReg(amd64.R11, offLastCount, amd64.RDX)
		a.MovMemReg(amd64.R11, offLastPointer, amd64.RCX)
		failIfMasked(a, k, fail)
		a.MovRegMem(amd64.RAX, amd64.R11, offStringResult)

	case helpers.MetaToS:
		a.MovMemReg(amd64.R11, offLastCallFrame, amd64.RSI)
		a.MovMemReg(amd64.R11, offLastPointer, amd64.RDX)
		a.MovMemReg(amd64.R11, offLastObject, amd64.RCX)
		failIfMasked(a, k, fail)
		a.MovRegMem(amd64.RAX, amd64.R11, offStringResult)
	}
	a.Ret()

	a.Bind(fail)
	a.XorRegReg32(amd64.RAX, amd64.RAX)
	a.Ret()
}

func failIfMasked(a *amd64.Assembler, k helpers.Kind, fail amd64.Label) {
	a.TestMemImm32(amd64.R11, offFailMask, 1<<uint(k))
	a.Jne(fail)
}

// Table returns the helper addresses.
func (r *Runtime) Table() helpers.Table {
	return r.table
}

// VM is the handle passed to compiled code as its vm argument.
func (r *Runtime) VM() uintptr {
	return r.vm
}

// Arena returns the memory the helpers and their caches live in.
func (r *Runtime) Arena() *native.Arena {
	return r.arena
}

// NewCache allocates an inline cache whose execute slot points at the
// cache-miss helper.
func (r *Runtime) NewCache(ip int, name uintptr) (uintptr, error) {
	c, err := r.NewEmptyCache(ip, name)
	if err != nil {
		return 0, err
	}
	r.arena.Store(c+layout.CacheExecute, r.table.Address(helpers.CacheMiss))
	return c, nil
}

// NewEmptyCache allocates an inline cache with no execute entry, so callers
// fall back to the cache-miss helper directly.
func (r *Runtime) NewEmptyCache(ip int, name uintptr) (uintptr, error) {
	c, err := r.arena.Alloc(layout.CacheSize, layout.PointerSize)
	if err != nil {
		return 0, fmt.Errorf("allocate inline cache for ip %d: %w", ip, err)
	}
	r.arena.Store(c+layout.CacheName, name)
	return c, nil
}

// Calls returns how often helper k ran since the last Reset.
func (r *Runtime) Calls(k helpers.Kind) int {
	return int(r.arena.Load(r.scratch + uintptr(counter(k))))
}

// Reset clears counters, failure switches and recorded arguments. Literals
// and the string result are kept.
func (r *Runtime) Reset() {
	for off := 0; off < int(offStringResult); off += 8 {
		r.arena.Store(r.scratch+uintptr(off), 0)
	}
	for off := int(offLastCount); off < scratchSize; off += 8 {
		r.arena.Store(r.scratch+uintptr(off), 0)
	}
}

// SetFailing makes helper k return the failure sentinel.
func (r *Runtime) SetFailing(k helpers.Kind, fail bool) {
	mask := r.arena.Load(r.scratch + uintptr(offFailMask))
	if fail {
		mask |= 1 << uint(k)
	} else {
		mask &^= 1 << uint(k)
	}
	r.arena.Store(r.scratch+uintptr(offFailMask), mask)
}

// SetInterrupt raises or clears the pending-interrupt flag the safepoint
// helper polls.
func (r *Runtime) SetInterrupt(pending bool) {
	r.setFlag(offInterrupt, pending)
}

// SetFrozen makes the frozen check fail for every object.
func (r *Runtime) SetFrozen(frozen bool) {
	r.setFlag(offFrozen, frozen)
}

func (r *Runtime) setFlag(off int32, on bool) {
	var v uintptr
	if on {
		v = 1
	}
	r.arena.Store(r.scratch+uintptr(off), v)
}

// SetStringResult is the object the string helpers and meta_to_s return.
func (r *Runtime) SetStringResult(v tagged.Value) {
	r.arena.Store(r.scratch+uintptr(offStringResult), uintptr(v))
}

// SetLiterals installs the literal table LiteralAt reads.
func (r *Runtime) SetLiterals(values []tagged.Value) error {
	var base uintptr
	if len(values) > 0 {
		var err error
		if base, err = r.arena.Words(len(values)); err != nil {
			return fmt.Errorf("allocate literals: %w", err)
		}
		for i, v := range values {
			r.arena.Store(base+uintptr(i*8), uintptr(v))
		}
	}
	r.arena.Store(r.scratch+uintptr(offLiterals), base)
	r.arena.Store(r.scratch+uintptr(offLiteralCount), uintptr(len(values)))
	return nil
}

// LastCount is the count or index argument of the latest helper that takes
// one, or the argument total seen by the cache-miss helper.
func (r *Runtime) LastCount() int64 {
	return int64(r.arena.Load(r.scratch + uintptr(offLastCount)))
}

// LastObject is the object argument of the latest helper that takes one.
func (r *Runtime) LastObject() tagged.Value {
	return tagged.Value(r.arena.Load(r.scratch + uintptr(offLastObject)))
}

// LastPointer is the pointer argument of the latest helper that takes one:
// the argument pack, the cache, or the first string_build operand.
func (r *Runtime) LastPointer() uintptr {
	return r.arena.Load(r.scratch + uintptr(offLastPointer))
}

// LastCallFrame is the call frame passed to the latest helper.
func (r *Runtime) LastCallFrame() uintptr {
	return r.arena.Load(r.scratch + uintptr(offLastCallFrame))
}

// LastScope is the scope field the scope flush helper read.
func (r *Runtime) LastScope() uintptr {
	return r.arena.Load(r.scratch + uintptr(offLastScope))
}

// LastVM is the vm handle passed to the latest safepoint or arity check.
func (r *Runtime) LastVM() uintptr {
	return r.arena.Load(r.scratch + uintptr(offLastVM))
}

// Release unmaps the helper code.
func (r *Runtime) Release() error {
	return r.code.Release()
}
