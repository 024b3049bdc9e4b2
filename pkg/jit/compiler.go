// Package jit is the tier-1 compiler: it turns an internalized method into
// native x86-64 code in one pass, without an intermediate representation.
package jit

import (
	"fmt"

	"github.com/rs/zerolog"

	"tier1/pkg/errors"
	"tier1/pkg/helpers"
	"tier1/pkg/layout"
	"tier1/pkg/method"
	"tier1/pkg/native"
	"tier1/pkg/opcode"
)

// Options configures compilation. Helpers must be complete.
type Options struct {
	Helpers helpers.Table

	// UndefinedSlot is the address of the VM word holding the undefined
	// value. When zero, push_undef embeds the constant.
	UndefinedSlot uintptr

	// Caches creates inline caches while internalizing call sites.
	Caches method.CacheAllocator

	// Opcodes restricts the instructions compiled. Nil allows every opcode
	// with an emitter case.
	Opcodes *opcode.Set

	// Debug logs every emitted instruction at debug level.
	Debug  bool
	Logger zerolog.Logger
}

// Routine is a finalized compiled method.
type Routine struct {
	Name  string
	Frame layout.Frame
	code  *native.Code
}

// Entry is the address generated code starts at.
func (r *Routine) Entry() uintptr {
	return r.code.Entry()
}

// Size is the machine code length in bytes.
func (r *Routine) Size() int {
	return r.code.Size()
}

// Bytes returns a copy of the machine code.
func (r *Routine) Bytes() []byte {
	return r.code.Bytes()
}

// Release unmaps the code. The routine must be uninstalled and idle.
func (r *Routine) Release() error {
	return r.code.Release()
}

// Compiler drives one compilation of one method.
type Compiler struct {
	m    *method.Method
	opts Options

	fn   *Routine
	size int
	err  error
}

// NewCompiler creates a compiler for m.
func NewCompiler(m *method.Method, opts Options) *Compiler {
	return &Compiler{m: m, opts: opts}
}

// Assemble internalizes the method and emits its code without finalizing it.
// The internal form is not cached on the method.
func (c *Compiler) Assemble() ([]byte, error) {
	buf, _, _, err := c.assemble()
	return buf, err
}

// assemble checks everything that can reject the method before any inline
// cache is allocated.
func (c *Compiler) assemble() ([]byte, layout.Frame, *method.Code, error) {
	if err := c.opts.Helpers.Validate(); err != nil {
		return nil, layout.Frame{}, nil, fmt.Errorf("helper table: %w", err)
	}

	frame := layout.Compute(c.m.RequiredArgs, c.m.Locals, c.m.StackDepth)
	code := c.m.Internalized()
	if code == nil {
		decoded, err := c.m.Decode()
		if err != nil {
			return nil, layout.Frame{}, nil, err
		}
		if err := Verify(frame, c.opts.Opcodes, decoded); err != nil {
			return nil, layout.Frame{}, nil, err
		}
		if code, err = c.m.Link(decoded, c.opts.Caches); err != nil {
			return nil, layout.Frame{}, nil, err
		}
	}

	log := zerolog.Nop()
	if c.opts.Debug {
		log = c.opts.Logger.With().Str("method", c.m.Name).Logger()
	}

	e := NewEmitter(frame, c.opts.Helpers, c.opts.UndefinedSlot, c.opts.Opcodes, log)
	e.Prologue()
	for _, ins := range code.Instructions {
		if err := e.Visit(ins); err != nil {
			return nil, layout.Frame{}, nil, err
		}
	}
	e.Epilogue()

	buf, err := e.Finish()
	if err != nil {
		return nil, layout.Frame{}, nil, errors.WrapCompileError(err, -1, "resolve labels")
	}
	return buf, e.Frame(), code, nil
}

// Compile builds and finalizes the method's code. It returns false when the
// method cannot be compiled; Err then holds the reason and the method is
// unchanged.
func (c *Compiler) Compile() bool {
	c.fn, c.size, c.err = nil, 0, nil

	buf, frame, internal, err := c.assemble()
	if err != nil {
		c.err = err
		return false
	}
	code, err := native.MapCode(buf)
	if err != nil {
		c.err = err
		return false
	}
	c.m.Publish(internal)

	c.fn = &Routine{
		Name:  c.m.Name,
		Frame: frame,
		code:  code,
	}
	c.size = code.Size()
	return true
}

// Function returns the routine of the last successful Compile, or nil.
func (c *Compiler) Function() *Routine {
	return c.fn
}

// Size is the code size of the last successful Compile, or 0.
func (c *Compiler) Size() int {
	return c.size
}

// Err explains the last failed Compile.
func (c *Compiler) Err() error {
	return c.err
}
