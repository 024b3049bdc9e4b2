// Package method holds the compiled-method descriptor the tier-1 compiler
// consumes, its internalization step and its installed entry point.
package method

import (
	"fmt"
	"sync"
	"sync/atomic"

	"tier1/pkg/errors"
	"tier1/pkg/opcode"
)

// CacheAllocator creates the inline cache for one call site. name is the
// message operand the bytecode carries. The returned address is embedded in
// generated code and must stay valid for the life of the method.
type CacheAllocator interface {
	NewCache(ip int, name uintptr) (uintptr, error)
}

// Method is a compiled method as produced by the loader. The descriptor
// fields are read-only once compilation starts.
type Method struct {
	Name         string
	RequiredArgs int
	Locals       int
	StackDepth   int
	Bytecode     []uintptr

	mu    sync.Mutex
	code  atomic.Pointer[Code]
	entry atomic.Pointer[Entry]
}

// Code is the internalized form of a method: decoded instructions with every
// call-site operand replaced by its cache address.
type Code struct {
	Instructions []opcode.Instruction
	Caches       map[int]uintptr // ip -> inline cache
}

// Entry is a native entry point installed on a method.
type Entry struct {
	Address uintptr
	Size    int
}

// MaxCount bounds the argument, local and stack counts of a method so that
// every frame offset fits a 32-bit displacement.
const MaxCount = 1 << 16

// Internalize validates the bytecode and creates the inline caches. The
// result is cached; later calls return it without allocating. On failure the
// method is left untouched and the error is a *errors.CompileError.
func (m *Method) Internalize(caches CacheAllocator) (*Code, error) {
	if c := m.code.Load(); c != nil {
		return c, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if c := m.code.Load(); c != nil {
		return c, nil
	}

	decoded, err := m.Decode()
	if err != nil {
		return nil, err
	}
	c, err := m.Link(decoded, caches)
	if err != nil {
		return nil, err
	}
	m.code.Store(c)
	return c, nil
}

// Decode checks the method metadata and decodes its bytecode. It has no side
// effects on m.
func (m *Method) Decode() ([]opcode.Instruction, error) {
	if m.RequiredArgs < 0 || m.Locals < 0 || m.StackDepth < 0 {
		return nil, errors.CompileErrorf(-1, "negative method metadata (args %d, locals %d, stack %d)",
			m.RequiredArgs, m.Locals, m.StackDepth)
	}
	if m.RequiredArgs > MaxCount || m.Locals > MaxCount || m.StackDepth > MaxCount {
		return nil, errors.CompileErrorf(-1, "method metadata over %d (args %d, locals %d, stack %d)",
			MaxCount, m.RequiredArgs, m.Locals, m.StackDepth)
	}
	if m.RequiredArgs > m.Locals {
		return nil, errors.CompileErrorf(-1, "%d required arguments do not fit in %d locals",
			m.RequiredArgs, m.Locals)
	}
	if len(m.Bytecode) == 0 {
		return nil, errors.CompileErrorf(0, "empty method")
	}

	decoded, err := opcode.Decode(m.Bytecode)
	if err != nil {
		return nil, err
	}

	for _, ins := range decoded {
		switch ins.Op {
		case opcode.PushLocal, opcode.SetLocal:
			if idx := ins.Operand(0); idx >= uintptr(m.Locals) {
				return nil, errors.CompileErrorf(ins.IP, "%s index %d out of range (%d locals)",
					ins.Op, idx, m.Locals)
			}
		}
	}
	if last := decoded[len(decoded)-1]; last.Op != opcode.Ret {
		return nil, errors.CompileErrorf(last.IP, "method ends with %s instead of ret", last.Op)
	}
	return decoded, nil
}

// Link creates an inline cache for every call site in decoded and returns
// the internal form. The result is not cached on m; see Publish.
func (m *Method) Link(decoded []opcode.Instruction, caches CacheAllocator) (*Code, error) {
	code := &Code{
		Instructions: make([]opcode.Instruction, len(decoded)),
		Caches:       make(map[int]uintptr),
	}
	for i, ins := range decoded {
		if opcode.GetInfo(ins.Op).CallSite {
			if caches == nil {
				return nil, errors.CompileErrorf(ins.IP, "%s needs an inline cache and no allocator is set", ins.Op)
			}
			addr, err := caches.NewCache(ins.IP, ins.Operand(0))
			if err != nil {
				return nil, errors.WrapCompileError(err, ins.IP, "allocate inline cache")
			}
			ops := append([]uintptr(nil), ins.Operands...)
			ops[0] = addr
			ins.Operands = ops
			code.Caches[ins.IP] = addr
		}
		code.Instructions[i] = ins
	}
	return code, nil
}

// Publish caches c as the internal form unless one is already set, and
// returns the form that is in effect.
func (m *Method) Publish(c *Code) *Code {
	if m.code.CompareAndSwap(nil, c) {
		return c
	}
	return m.code.Load()
}

// Internalized returns the cached internal form, or nil.
func (m *Method) Internalized() *Code {
	return m.code.Load()
}

// Install publishes e as the method's entry point.
func (m *Method) Install(e *Entry) {
	m.entry.Store(e)
}

// Entry returns the installed entry point, or nil while the method runs in
// the interpreter.
func (m *Method) Entry() *Entry {
	return m.entry.Load()
}

// Uninstall removes the entry point and returns the previous one.
func (m *Method) Uninstall() *Entry {
	return m.entry.Swap(nil)
}

func (m *Method) String() string {
	return fmt.Sprintf("%s(args=%d locals=%d stack=%d, %d words)",
		m.Name, m.RequiredArgs, m.Locals, m.StackDepth, len(m.Bytecode))
}
