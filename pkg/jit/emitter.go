package jit

import (
	"fmt"

	"github.com/rs/zerolog"

	"tier1/pkg/amd64"
	"tier1/pkg/errors"
	"tier1/pkg/helpers"
	"tier1/pkg/layout"
	"tier1/pkg/opcode"
	"tier1/pkg/tagged"
)

// maxOperand bounds count operands before they are used in offset arithmetic.
const maxOperand = 1 << 20

// Emitter translates one method into machine code in a single linear pass.
// StackReg tracks the operand stack top; depth is its compile-time shadow.
type Emitter struct {
	a         *amd64.Assembler
	frame     layout.Frame
	helpers   helpers.Table
	undefined uintptr
	supported *opcode.Set

	exit  amd64.Label
	depth int
}

// NewEmitter creates an emitter for a method with the given frame. Opcodes
// outside supported are rejected; a nil set selects Supported().
func NewEmitter(frame layout.Frame, tab helpers.Table, undefined uintptr, supported *opcode.Set, log zerolog.Logger) *Emitter {
	if supported == nil {
		supported = Supported()
	}
	a := amd64.New(log)
	return &Emitter{
		a:         a,
		frame:     frame,
		helpers:   tab,
		undefined: undefined,
		supported: supported,
		exit:      a.NewLabel(),
	}
}

// Depth is the number of values on the operand stack after the last visited
// instruction.
func (e *Emitter) Depth() int {
	return e.depth
}

// StackOffset is the frame offset StackReg holds after the last visited
// instruction.
func (e *Emitter) StackOffset() int {
	return e.frame.StackSlot(e.depth - 1)
}

// Frame returns the layout the emitter addresses.
func (e *Emitter) Frame() layout.Frame {
	return e.frame
}

// Finish resolves jumps and returns the code.
func (e *Emitter) Finish() ([]byte, error) {
	return e.a.Finish()
}

func off(n int) int32 {
	return int32(n)
}

func (e *Emitter) loadVM(r amd64.Reg) {
	e.a.MovRegMem(r, amd64.RBP, layout.SavedVM)
}

func (e *Emitter) loadCallFrame(r amd64.Reg) {
	e.a.Lea(r, amd64.RBP, off(e.frame.CallFrameOffset))
}

// call invokes a helper by absolute address.
func (e *Emitter) call(k helpers.Kind) {
	e.a.CallAbs(CallReg, e.helpers.Address(k))
}

// checkFailure jumps to the shared exit when the last call returned the
// failure sentinel.
func (e *Emitter) checkFailure() {
	e.a.CmpRegImm32(ReturnReg, int32(tagged.Failure))
	e.a.Je(e.exit)
}

// Prologue saves registers, reserves the frame, checks arity, builds the call
// frame and variables, copies arguments and polls the safepoint.
func (e *Emitter) Prologue() {
	a, f := e.a, e.frame

	a.Comment("prologue: frame %d bytes, reserve %d", f.Size, f.Reserve)
	a.Push(amd64.RBP)
	a.MovRegReg(amd64.RBP, amd64.RSP)
	for _, r := range calleeSaved {
		a.Push(r)
	}
	a.SubRegImm32(amd64.RSP, off(f.Reserve))

	for i, r := range argRegs {
		a.MovMemReg(amd64.RBP, argSlots[i], r)
	}

	a.Comment("arity check: %d required", f.RequiredArgs)
	arityOK := a.NewLabel()
	a.MovRegMem32Signed(ReturnReg, Arg5Reg, layout.ArgumentsTotal)
	a.CmpRegImm32(ReturnReg, off(f.RequiredArgs))
	a.Je(arityOK)
	a.MovRegReg(Arg2Reg, Arg5Reg)
	a.MovRegReg(Arg3Reg, ReturnReg)
	e.call(helpers.ArityError)
	a.XorRegReg32(ReturnReg, ReturnReg)
	a.Jmp(e.exit)
	a.Bind(arityOK)

	// The argument registers still hold the incoming values here.
	a.Comment("call frame")
	a.MovMemReg(amd64.RBP, off(f.CallFrame(layout.CallFramePrevious)), Arg2Reg)
	a.MovMemReg(amd64.RBP, off(f.CallFrame(layout.CallFrameArguments)), Arg5Reg)
	a.MovMemImm32(amd64.RBP, off(f.CallFrame(layout.CallFrameDispatchData)), 0)
	a.MovMemReg(amd64.RBP, off(f.CallFrame(layout.CallFrameMethod)), Arg3Reg)
	a.MovMem32Imm32(amd64.RBP, off(f.CallFrame(layout.CallFrameFlags)), 0)
	a.MovMem32Imm32(amd64.RBP, off(f.CallFrame(layout.CallFrameIP)), 0)
	a.Lea(ScratchReg, amd64.RBP, off(f.VariablesOffset))
	a.MovMemReg(amd64.RBP, off(f.CallFrame(layout.CallFrameScope)), ScratchReg)
	a.MovMemImm32(amd64.RBP, off(f.CallFrame(layout.CallFrameJITData)), 0)
	for i := 0; i < f.StackDepth; i++ {
		a.MovMemImm32(amd64.RBP, off(f.StackSlot(i)), int32(tagged.Nil))
	}

	a.Comment("variables")
	a.MovMemImm32(amd64.RBP, off(f.Variable(layout.VariablesOnHeap)), 0)
	a.MovMemImm32(amd64.RBP, off(f.Variable(layout.VariablesParent)), 0)
	a.MovRegMem(ScratchReg, Arg5Reg, layout.ArgumentsRecv)
	a.MovMemReg(amd64.RBP, off(f.Variable(layout.VariablesSelf)), ScratchReg)
	a.MovRegMem(ScratchReg, Arg5Reg, layout.ArgumentsBlock)
	a.MovMemReg(amd64.RBP, off(f.Variable(layout.VariablesBlock)), ScratchReg)
	a.MovMemReg(amd64.RBP, off(f.Variable(layout.VariablesModule)), Arg4Reg)
	a.MovMemImm32(amd64.RBP, off(f.Variable(layout.VariablesLastMatch)), int32(tagged.Nil))
	for i := 0; i < f.Locals; i++ {
		a.MovMemImm32(amd64.RBP, off(f.Local(i)), int32(tagged.Nil))
	}

	if f.RequiredArgs > 0 {
		a.Comment("copy %d arguments", f.RequiredArgs)
		a.MovRegMem(Scratch2Reg, Arg5Reg, layout.ArgumentsArguments)
		for i := 0; i < f.RequiredArgs; i++ {
			a.MovRegMem(ScratchReg, Scratch2Reg, off(i*layout.PointerSize))
			a.MovMemReg(amd64.RBP, off(f.Local(i)), ScratchReg)
		}
	}

	a.Lea(StackReg, amd64.RBP, off(f.StackBase()))

	a.Comment("safepoint")
	e.loadVM(Arg1Reg)
	e.loadCallFrame(Arg2Reg)
	e.call(helpers.Safepoint)
	e.checkFailure()
}

// Epilogue binds the shared exit. ReturnReg already holds the result.
func (e *Emitter) Epilogue() {
	a := e.a
	a.Comment("epilogue")
	a.Bind(e.exit)
	a.Lea(amd64.RSP, amd64.RBP, -int32(len(calleeSaved))*layout.PointerSize)
	for i := len(calleeSaved) - 1; i >= 0; i-- {
		a.Pop(calleeSaved[i])
	}
	a.Pop(amd64.RBP)
	a.Ret()
}

// stackEffect returns how many values ins needs on the stack and how many it
// leaves in their place. ok is false when the instruction has no case.
func stackEffect(ins opcode.Instruction) (in, out int, ok bool) {
	n := int(min(ins.Operand(0), maxOperand))
	switch ins.Op {
	case opcode.Noop, opcode.AllowPrivate:
		return 0, 0, true
	case opcode.Pop:
		return 1, 0, true
	case opcode.PopMany:
		return n, 0, true
	case opcode.SwapStack:
		return 2, 2, true
	case opcode.DupTop:
		return 1, 2, true
	case opcode.DupMany:
		return n, 2 * n, true
	case opcode.Rotate:
		return n, n, true
	case opcode.MoveDown:
		return n + 1, n + 1, true
	case opcode.PushNil, opcode.PushTrue, opcode.PushFalse, opcode.PushUndef,
		opcode.PushInt, opcode.MetaPushNeg1, opcode.MetaPush0, opcode.MetaPush1,
		opcode.MetaPush2, opcode.PushSelf, opcode.PushLocal, opcode.PushLiteral:
		return 0, 1, true
	case opcode.SetLocal, opcode.Ret, opcode.CheckFrozen, opcode.StringDup, opcode.MetaToS:
		return 1, 1, true
	case opcode.StringBuild:
		return n, 1, true
	case opcode.MetaSendOpEqual:
		return 2, 1, true
	}
	return 0, 0, false
}

// Supported returns the opcodes the emitter has a case for.
func Supported() *opcode.Set {
	s := opcode.NewSet()
	for _, info := range opcode.All() {
		if _, _, ok := stackEffect(opcode.Instruction{Op: info.Code}); ok {
			s.Add(info.Code)
		}
	}
	return s
}

// check validates ins against a stack of depth values and returns the depth
// after it.
func check(frame layout.Frame, supported *opcode.Set, depth int, ins opcode.Instruction) (int, error) {
	in, out, ok := stackEffect(ins)
	if !ok || !supported.Has(ins.Op) {
		return 0, errors.WrapCompileError(errors.ErrUnsupported, ins.IP, ins.Op.String())
	}
	if in > depth {
		return 0, errors.WrapCompileError(errors.ErrStackShape, ins.IP,
			fmt.Sprintf("%s needs %d values, stack holds %d", ins.Op, in, depth))
	}
	next := depth - in + out
	if next > frame.StackDepth {
		return 0, errors.WrapCompileError(errors.ErrStackShape, ins.IP,
			fmt.Sprintf("%s grows the stack to %d, limit %d", ins.Op, next, frame.StackDepth))
	}
	if ins.Op == opcode.PushLocal || ins.Op == opcode.SetLocal {
		if ins.Operand(0) >= uintptr(frame.Locals) {
			return 0, errors.CompileErrorf(ins.IP, "%s index %d out of range", ins.Op, ins.Operand(0))
		}
	}
	return next, nil
}

// Verify runs the checks Visit makes over a whole method without emitting
// anything. A nil supported set selects Supported().
func Verify(frame layout.Frame, supported *opcode.Set, instructions []opcode.Instruction) error {
	if supported == nil {
		supported = Supported()
	}
	depth := 0
	for _, ins := range instructions {
		next, err := check(frame, supported, depth, ins)
		if err != nil {
			return err
		}
		depth = next
	}
	return nil
}

// Visit emits one instruction. An unsupported opcode or a stack shape
// violation returns an error before any code is emitted for ins.
func (e *Emitter) Visit(ins opcode.Instruction) error {
	next, err := check(e.frame, e.supported, e.depth, ins)
	if err != nil {
		return err
	}

	e.a.Comment("ip %d: %s", ins.IP, ins)
	e.emit(ins)
	e.depth = next
	return nil
}

// slot is the address of the value k positions below the stack top.
func slot(k int) int32 {
	return -int32(k) * layout.PointerSize
}

func (e *Emitter) pushImm(v tagged.Value) {
	e.a.AddRegImm32(StackReg, layout.PointerSize)
	if tagged.FitsImm32(v) {
		e.a.MovMemImm32(StackReg, 0, int32(v))
		return
	}
	e.a.MovRegImm64(ScratchReg, uint64(v))
	e.a.MovMemReg(StackReg, 0, ScratchReg)
}

func (e *Emitter) pushReg(r amd64.Reg) {
	e.a.AddRegImm32(StackReg, layout.PointerSize)
	e.a.MovMemReg(StackReg, 0, r)
}

func (e *Emitter) emit(ins opcode.Instruction) {
	a := e.a
	n := int(ins.Operand(0))

	switch ins.Op {
	case opcode.Noop, opcode.AllowPrivate:

	case opcode.Pop:
		a.SubRegImm32(StackReg, layout.PointerSize)

	case opcode.PopMany:
		if n > 0 {
			a.SubRegImm32(StackReg, off(n*layout.PointerSize))
		}

	case opcode.SwapStack:
		a.MovRegMem(ScratchReg, StackReg, 0)
		a.MovRegMem(Scratch2Reg, StackReg, slot(1))
		a.MovMemReg(StackReg, 0, Scratch2Reg)
		a.MovMemReg(StackReg, slot(1), ScratchReg)

	case opcode.DupTop:
		a.MovRegMem(ScratchReg, StackReg, 0)
		e.pushReg(ScratchReg)

	case opcode.DupMany:
		// Copy the top n values, oldest first, into the n slots above.
		for i := 0; i < n; i++ {
			a.MovRegMem(ScratchReg, StackReg, slot(n-1-i))
			a.MovMemReg(StackReg, off((i+1)*layout.PointerSize), ScratchReg)
		}
		if n > 0 {
			a.AddRegImm32(StackReg, off(n*layout.PointerSize))
		}

	case opcode.Rotate:
		// Reverse the top n values with pairwise swaps.
		for i := 0; i < n/2; i++ {
			a.MovRegMem(ScratchReg, StackReg, slot(i))
			a.MovRegMem(Scratch2Reg, StackReg, slot(n-1-i))
			a.MovMemReg(StackReg, slot(i), Scratch2Reg)
			a.MovMemReg(StackReg, slot(n-1-i), ScratchReg)
		}

	case opcode.MoveDown:
		// The top value sinks n positions; the ones it passes shift up.
		a.MovRegMem(ScratchReg, StackReg, 0)
		for i := 0; i < n; i++ {
			a.MovRegMem(Scratch2Reg, StackReg, slot(i+1))
			a.MovMemReg(StackReg, slot(i), Scratch2Reg)
		}
		a.MovMemReg(StackReg, slot(n), ScratchReg)

	case opcode.PushNil:
		e.pushImm(tagged.Nil)
	case opcode.PushTrue:
		e.pushImm(tagged.True)
	case opcode.PushFalse:
		e.pushImm(tagged.False)
	case opcode.PushUndef:
		if e.undefined == 0 {
			e.pushImm(tagged.Undef)
			break
		}
		a.MovRegImm64(ScratchReg, uint64(e.undefined))
		a.MovRegMem(ScratchReg, ScratchReg, 0)
		e.pushReg(ScratchReg)
	case opcode.PushInt:
		e.pushImm(tagged.Fixnum(int64(ins.Operand(0))))
	case opcode.MetaPushNeg1:
		e.pushImm(tagged.Fixnum(-1))
	case opcode.MetaPush0:
		e.pushImm(tagged.Fixnum(0))
	case opcode.MetaPush1:
		e.pushImm(tagged.Fixnum(1))
	case opcode.MetaPush2:
		e.pushImm(tagged.Fixnum(2))

	case opcode.PushSelf:
		a.MovRegMem(ScratchReg, amd64.RBP, off(e.frame.Variable(layout.VariablesSelf)))
		e.pushReg(ScratchReg)

	case opcode.PushLocal:
		a.MovRegMem(ScratchReg, amd64.RBP, off(e.frame.Local(n)))
		e.pushReg(ScratchReg)

	case opcode.SetLocal:
		a.MovRegMem(ScratchReg, StackReg, 0)
		a.MovMemReg(amd64.RBP, off(e.frame.Local(n)), ScratchReg)

	case opcode.Ret:
		e.loadVM(Arg1Reg)
		e.loadCallFrame(Arg2Reg)
		e.call(helpers.FlushScope)
		a.MovRegMem(ReturnReg, StackReg, 0)
		a.Jmp(e.exit)

	case opcode.CheckFrozen:
		e.loadVM(Arg1Reg)
		e.loadCallFrame(Arg2Reg)
		a.MovRegMem(Arg3Reg, StackReg, 0)
		e.call(helpers.CheckFrozen)
		e.checkFailure()

	case opcode.PushLiteral:
		e.loadVM(Arg1Reg)
		e.loadCallFrame(Arg2Reg)
		a.MovRegImm(Arg3Reg, uint64(ins.Operand(0)))
		e.call(helpers.LiteralAt)
		e.checkFailure()
		e.pushReg(ReturnReg)

	case opcode.StringDup:
		e.loadVM(Arg1Reg)
		e.loadCallFrame(Arg2Reg)
		a.MovRegMem(Arg3Reg, StackReg, 0)
		e.call(helpers.StringDup)
		e.checkFailure()
		a.MovMemReg(StackReg, 0, ReturnReg)

	case opcode.StringBuild:
		// The n operands end at the stack top; the result replaces them. With
		// n == 0 the first operand slot is the one the result is pushed to.
		first := slot(n - 1)
		e.loadVM(Arg1Reg)
		e.loadCallFrame(Arg2Reg)
		a.MovRegImm32(Arg3Reg, off(n))
		a.Lea(Arg4Reg, StackReg, first)
		e.call(helpers.StringBuild)
		e.checkFailure()
		if first != 0 {
			a.Lea(StackReg, StackReg, first)
		}
		a.MovMemReg(StackReg, 0, ReturnReg)

	case opcode.MetaToS:
		e.loadVM(Arg1Reg)
		e.loadCallFrame(Arg2Reg)
		a.MovRegImm64(Arg3Reg, uint64(ins.Operand(0)))
		a.MovRegMem(Arg4Reg, StackReg, 0)
		e.call(helpers.MetaToS)
		e.checkFailure()
		a.MovMemReg(StackReg, 0, ReturnReg)

	case opcode.MetaSendOpEqual:
		e.emitSendEqual(ins.Operand(0))
	}
}

// emitSendEqual compares the receiver (below the top) with the argument (the
// top). Both tag tests run before either value could be used as a pointer;
// only two immediates take the inline comparison.
func (e *Emitter) emitSendEqual(cache uintptr) {
	a, f := e.a, e.frame
	slow := a.NewLabel()
	done := a.NewLabel()

	a.MovRegMem(ScratchReg, StackReg, slot(1))
	a.MovRegMem(Scratch2Reg, StackReg, 0)
	a.TestRegImm32(ScratchReg, tagged.TagMask)
	a.Je(slow)
	a.TestRegImm32(Scratch2Reg, tagged.TagMask)
	a.Je(slow)

	a.MovRegImm32(ReturnReg, int32(tagged.False))
	a.CmpRegReg(ScratchReg, Scratch2Reg)
	a.Jne(done)
	a.MovRegImm32(ReturnReg, int32(tagged.True))
	a.Jmp(done)

	a.Bind(slow)
	a.Comment("send == through cache 0x%x", cache)
	a.MovMemReg(amd64.RBP, off(f.Spill(layout.ArgumentsRecv)), ScratchReg)
	a.MovMemImm32(amd64.RBP, off(f.Spill(layout.ArgumentsBlock)), int32(tagged.Nil))
	a.MovMemImm32(amd64.RBP, off(f.Spill(layout.ArgumentsTotal)), 1)
	a.MovMemReg(amd64.RBP, off(f.Spill(layout.ArgumentsArguments)), StackReg)

	e.loadVM(Arg1Reg)
	a.MovRegImm64(Arg2Reg, uint64(cache))
	e.loadCallFrame(Arg3Reg)
	a.Lea(Arg4Reg, amd64.RBP, off(f.SpillOffset))

	haveTarget := a.NewLabel()
	a.MovRegMem(CallReg, Arg2Reg, layout.CacheExecute)
	a.TestRegReg(CallReg, CallReg)
	a.Jne(haveTarget)
	a.MovRegImm64(CallReg, uint64(e.helpers.Address(helpers.CacheMiss)))
	a.Bind(haveTarget)
	a.CallReg(CallReg)
	e.checkFailure()

	a.Bind(done)
	a.SubRegImm32(StackReg, layout.PointerSize)
	a.MovMemReg(StackReg, 0, ReturnReg)
}
