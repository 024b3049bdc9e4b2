package jit

import (
	"tier1/pkg/amd64"
	"tier1/pkg/layout"
)

// Fixed register roles. Generated code never allocates registers; every
// value lives in one of these or in a frame slot.
//
//	StackReg     rbx  address of the operand stack top slot
//	Arg1..Arg5   rdi rsi rdx rcx r8  System V argument registers
//	ReturnReg    rax  helper and method results
//	ScratchReg   r12  temporaries, preserved across helper calls
//	Scratch2Reg  r13
//	CallReg      r11  absolute call target
const (
	StackReg    = amd64.RBX
	Arg1Reg     = amd64.RDI
	Arg2Reg     = amd64.RSI
	Arg3Reg     = amd64.RDX
	Arg4Reg     = amd64.RCX
	Arg5Reg     = amd64.R8
	ReturnReg   = amd64.RAX
	ScratchReg  = amd64.R12
	Scratch2Reg = amd64.R13
	CallReg     = amd64.R11
)

// calleeSaved are the registers the prologue pushes, in push order.
var calleeSaved = [...]amd64.Reg{StackReg, ScratchReg, Scratch2Reg}

// argRegs maps argument position to register; argSlots is where the prologue
// saves each one.
var (
	argRegs  = [...]amd64.Reg{Arg1Reg, Arg2Reg, Arg3Reg, Arg4Reg, Arg5Reg}
	argSlots = [...]int32{layout.SavedVM, layout.SavedPrev, layout.SavedMethod, layout.SavedModule, layout.SavedArgs}
)
