// Package layout computes the native frame used by tier-1 code and holds the
// field offsets of the VM records generated code reads and writes.
//
// All offsets are in bytes. Frame offsets are relative to the frame base
// (rbp after the prologue) and are negative.
package layout

// PointerSize is the width of one object word.
const PointerSize = 8

// CallFrame header fields. The operand stack array follows the header.
const (
	CallFramePrevious     = 0
	CallFrameArguments    = 8
	CallFrameDispatchData = 16
	CallFrameMethod       = 24
	CallFrameFlags        = 32 // int32
	CallFrameIP           = 36 // int32
	CallFrameScope        = 40
	CallFrameJITData      = 48
	CallFrameStack        = 56

	CallFrameHeaderSize = CallFrameStack
)

// StackVariables header fields. Locals follow the header.
const (
	VariablesOnHeap    = 0
	VariablesParent    = 8
	VariablesSelf      = 16
	VariablesBlock     = 24
	VariablesModule    = 32
	VariablesLastMatch = 40
	VariablesLocals    = 48

	VariablesHeaderSize = VariablesLocals
)

// Arguments is the argument pack passed to a method and staged in the spill
// slots for outgoing calls.
const (
	ArgumentsRecv      = 0
	ArgumentsBlock     = 8
	ArgumentsTotal     = 16 // int32 in a qword slot
	ArgumentsArguments = 24 // pointer to the first argument
	ArgumentsSize      = 32
)

// InlineCache is the per call site record. Execute is zero until a target is
// resolved.
const (
	CacheTarget  = 0
	CacheExecute = 8
	CacheName    = 16
	CacheSize    = 24
)

// Offsets of values the prologue saves below the frame base.
const (
	SavedRBX    = -8
	SavedR12    = -16
	SavedR13    = -24
	SavedVM     = -32
	SavedPrev   = -40
	SavedMethod = -48
	SavedModule = -56
	SavedArgs   = -64

	// SavedAreaSize covers everything above the call frame region.
	SavedAreaSize = 64

	// PushedSize is the part of SavedAreaSize produced by push instructions.
	PushedSize = 24

	SpillSlots = 4
	SpillSize  = SpillSlots * PointerSize

	// StackAlign is the alignment of rsp at call sites. The caller's call
	// leaves rsp+8 aligned, push rbp restores alignment.
	StackAlign = 16
)

// Frame is the layout of one tier-1 activation. It is computed once per
// compilation and passed by value.
type Frame struct {
	RequiredArgs int
	Locals       int
	StackDepth   int

	CallFrameSize int
	VariablesSize int

	CallFrameOffset int
	VariablesOffset int
	SpillOffset     int

	// Size is the distance from the frame base to the bottom of the spill
	// region. Reserve is what the prologue subtracts from rsp after pushing
	// the callee-saved registers.
	Size    int
	Reserve int
}

// Compute lays out the frame for a method. Inputs come from validated method
// metadata and are never negative.
func Compute(requiredArgs, locals, stackDepth int) Frame {
	f := Frame{
		RequiredArgs:  requiredArgs,
		Locals:        locals,
		StackDepth:    stackDepth,
		CallFrameSize: CallFrameHeaderSize + stackDepth*PointerSize,
		VariablesSize: VariablesHeaderSize + locals*PointerSize,
	}
	f.CallFrameOffset = -SavedAreaSize - f.CallFrameSize
	f.VariablesOffset = f.CallFrameOffset - f.VariablesSize
	f.SpillOffset = f.VariablesOffset - SpillSize
	f.Size = -f.SpillOffset
	f.Reserve = alignUp(f.Size, StackAlign) - PushedSize
	return f
}

func alignUp(n, a int) int {
	return (n + a - 1) &^ (a - 1)
}

// CallFrame returns the frame offset of a call frame header field.
func (f Frame) CallFrame(field int) int {
	return f.CallFrameOffset + field
}

// Variable returns the frame offset of a variables header field.
func (f Frame) Variable(field int) int {
	return f.VariablesOffset + field
}

// Spill returns the frame offset of an Arguments field staged in the spill
// slots.
func (f Frame) Spill(field int) int {
	return f.SpillOffset + field
}

// StackSlot returns the frame offset of operand stack slot i, counted from
// the bottom of the stack.
func (f Frame) StackSlot(i int) int {
	return f.CallFrameOffset + CallFrameStack + i*PointerSize
}

// StackBase is the value of the stack pointer register with an empty stack:
// one slot below the first.
func (f Frame) StackBase() int {
	return f.StackSlot(-1)
}

// Local returns the frame offset of local variable i.
func (f Frame) Local(i int) int {
	return f.VariablesOffset + VariablesLocals + i*PointerSize
}

// Total is the distance from the frame base to rsp once the prologue has
// run. rbp itself is 16-byte aligned, so rsp is too.
func (f Frame) Total() int {
	return PushedSize + f.Reserve
}
