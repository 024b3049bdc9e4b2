// Package opcode defines the VM instruction set consumed by the tier-1
// compiler and the decoder that walks a raw bytecode stream.
package opcode

// Code is a single VM opcode. In a bytecode stream each code is followed by
// OperandCount operand words.
type Code uint8

const (
	Noop Code = iota
	PushNil
	PushTrue
	PushFalse
	PushInt
	PushSelf
	SetLiteral
	PushLiteral
	Goto
	GotoIfFalse
	GotoIfTrue
	Ret
	SwapStack
	DupTop
	DupMany
	Pop
	PopMany
	Rotate
	MoveDown
	SetLocal
	PushLocal
	PushLocalDepth
	SetLocalDepth
	PassedArg
	PushCurrentException
	ClearException
	PushExceptionState
	RestoreExceptionState
	RaiseExc
	SetupUnwind
	PopUnwind
	RaiseReturn
	EnsureReturn
	RaiseBreak
	Reraise
	MakeArray
	CastArray
	ShiftArray
	SetIvar
	PushIvar
	PushConst
	SetConst
	SetConstAt
	FindConst
	PushCpathTop
	PushConstFast
	FindConstFast
	SetCallFlags
	AllowPrivate
	SendMethod
	SendStack
	SendStackWithBlock
	SendStackWithSplat
	SendSuperStackWithBlock
	SendSuperStackWithSplat
	PushBlock
	PassedBlockarg
	CreateBlock
	CastForSingleBlockArg
	CastForMultiBlockArg
	CastForSplatBlockArg
	YieldStack
	YieldSplat
	StringAppend
	StringBuild
	StringDup
	PushScope
	AddScope
	PushVariables
	CheckInterrupts
	YieldDebugger
	IsNil
	CheckSerial
	CheckSerialPrivate
	PushMyField
	StoreMyField
	KindOf
	InstanceOf
	MetaPushNeg1
	MetaPush0
	MetaPush1
	MetaPush2
	MetaSendOpPlus
	MetaSendOpMinus
	MetaSendOpEqual
	MetaSendOpLt
	MetaSendOpGt
	MetaSendOpTequal
	MetaSendCall
	PushMyOffset
	Zsuper
	PushBlockArg
	PushUndef
	PushStackLocal
	SetStackLocal
	PushHasBlock
	PushProc
	CheckFrozen
	CastMultiValue
	InvokePrimitive
	PushRubinius
	CallCustom
	MetaToS
	PushType

	numCodes
)

// Info describes one opcode.
type Info struct {
	Code         Code
	Name         string
	OperandCount int
	// CallSite marks instructions whose first operand names a message and is
	// replaced by an inline cache address during internalization.
	CallSite bool
}

// Width is the number of stream words the instruction occupies.
func (i Info) Width() int {
	return 1 + i.OperandCount
}

var infos [numCodes]Info

var byName = make(map[string]Code, numCodes)

func init() {
	type opInfo struct {
		op    Code
		name  string
		count int
		call  bool
	}
	ops := []opInfo{
		{Noop, "noop", 0, false},
		{PushNil, "push_nil", 0, false},
		{PushTrue, "push_true", 0, false},
		{PushFalse, "push_false", 0, false},
		{PushInt, "push_int", 1, false},
		{PushSelf, "push_self", 0, false},
		{SetLiteral, "set_literal", 1, false},
		{PushLiteral, "push_literal", 1, false},
		{Goto, "goto", 1, false},
		{GotoIfFalse, "goto_if_false", 1, false},
		{GotoIfTrue, "goto_if_true", 1, false},
		{Ret, "ret", 0, false},
		{SwapStack, "swap_stack", 0, false},
		{DupTop, "dup_top", 0, false},
		{DupMany, "dup_many", 1, false},
		{Pop, "pop", 0, false},
		{PopMany, "pop_many", 1, false},
		{Rotate, "rotate", 1, false},
		{MoveDown, "move_down", 1, false},
		{SetLocal, "set_local", 1, false},
		{PushLocal, "push_local", 1, false},
		{PushLocalDepth, "push_local_depth", 2, false},
		{SetLocalDepth, "set_local_depth", 2, false},
		{PassedArg, "passed_arg", 1, false},
		{PushCurrentException, "push_current_exception", 0, false},
		{ClearException, "clear_exception", 0, false},
		{PushExceptionState, "push_exception_state", 0, false},
		{RestoreExceptionState, "restore_exception_state", 0, false},
		{RaiseExc, "raise_exc", 0, false},
		{SetupUnwind, "setup_unwind", 2, false},
		{PopUnwind, "pop_unwind", 0, false},
		{RaiseReturn, "raise_return", 0, false},
		{EnsureReturn, "ensure_return", 0, false},
		{RaiseBreak, "raise_break", 0, false},
		{Reraise, "reraise", 0, false},
		{MakeArray, "make_array", 1, false},
		{CastArray, "cast_array", 0, false},
		{ShiftArray, "shift_array", 0, false},
		{SetIvar, "set_ivar", 1, false},
		{PushIvar, "push_ivar", 1, false},
		{PushConst, "push_const", 1, false},
		{SetConst, "set_const", 1, false},
		{SetConstAt, "set_const_at", 1, false},
		{FindConst, "find_const", 1, false},
		{PushCpathTop, "push_cpath_top", 0, false},
		{PushConstFast, "push_const_fast", 2, false},
		{FindConstFast, "find_const_fast", 2, false},
		{SetCallFlags, "set_call_flags", 1, false},
		{AllowPrivate, "allow_private", 0, false},
		{SendMethod, "send_method", 1, true},
		{SendStack, "send_stack", 2, true},
		{SendStackWithBlock, "send_stack_with_block", 2, true},
		{SendStackWithSplat, "send_stack_with_splat", 2, true},
		{SendSuperStackWithBlock, "send_super_stack_with_block", 2, true},
		{SendSuperStackWithSplat, "send_super_stack_with_splat", 2, true},
		{PushBlock, "push_block", 0, false},
		{PassedBlockarg, "passed_blockarg", 1, false},
		{CreateBlock, "create_block", 1, false},
		{CastForSingleBlockArg, "cast_for_single_block_arg", 0, false},
		{CastForMultiBlockArg, "cast_for_multi_block_arg", 0, false},
		{CastForSplatBlockArg, "cast_for_splat_block_arg", 0, false},
		{YieldStack, "yield_stack", 1, false},
		{YieldSplat, "yield_splat", 1, false},
		{StringAppend, "string_append", 0, false},
		{StringBuild, "string_build", 1, false},
		{StringDup, "string_dup", 0, false},
		{PushScope, "push_scope", 0, false},
		{AddScope, "add_scope", 0, false},
		{PushVariables, "push_variables", 0, false},
		{CheckInterrupts, "check_interrupts", 0, false},
		{YieldDebugger, "yield_debugger", 0, false},
		{IsNil, "is_nil", 0, false},
		{CheckSerial, "check_serial", 2, true},
		{CheckSerialPrivate, "check_serial_private", 2, true},
		{PushMyField, "push_my_field", 1, false},
		{StoreMyField, "store_my_field", 1, false},
		{KindOf, "kind_of", 0, false},
		{InstanceOf, "instance_of", 0, false},
		{MetaPushNeg1, "meta_push_neg_1", 0, false},
		{MetaPush0, "meta_push_0", 0, false},
		{MetaPush1, "meta_push_1", 0, false},
		{MetaPush2, "meta_push_2", 0, false},
		{MetaSendOpPlus, "meta_send_op_plus", 1, true},
		{MetaSendOpMinus, "meta_send_op_minus", 1, true},
		{MetaSendOpEqual, "meta_send_op_equal", 1, true},
		{MetaSendOpLt, "meta_send_op_lt", 1, true},
		{MetaSendOpGt, "meta_send_op_gt", 1, true},
		{MetaSendOpTequal, "meta_send_op_tequal", 1, true},
		{MetaSendCall, "meta_send_call", 2, true},
		{PushMyOffset, "push_my_offset", 1, false},
		{Zsuper, "zsuper", 1, true},
		{PushBlockArg, "push_block_arg", 0, false},
		{PushUndef, "push_undef", 0, false},
		{PushStackLocal, "push_stack_local", 1, false},
		{SetStackLocal, "set_stack_local", 1, false},
		{PushHasBlock, "push_has_block", 0, false},
		{PushProc, "push_proc", 0, false},
		{CheckFrozen, "check_frozen", 0, false},
		{CastMultiValue, "cast_multi_value", 0, false},
		{InvokePrimitive, "invoke_primitive", 2, false},
		{PushRubinius, "push_rubinius", 0, false},
		{CallCustom, "call_custom", 2, true},
		{MetaToS, "meta_to_s", 1, true},
		{PushType, "push_type", 0, false},
	}
	for _, o := range ops {
		infos[o.op] = Info{Code: o.op, Name: o.name, OperandCount: o.count, CallSite: o.call}
		byName[o.name] = o.op
	}
}

// Valid reports whether c names an instruction.
func (c Code) Valid() bool {
	return c < numCodes
}

func (c Code) String() string {
	if !c.Valid() {
		return "invalid"
	}
	return infos[c].Name
}

// GetInfo returns the Info for c. Unknown codes yield a zero Info with the
// name "invalid".
func GetInfo(c Code) Info {
	if !c.Valid() {
		return Info{Code: c, Name: "invalid"}
	}
	return infos[c]
}

// Lookup finds an opcode by its instruction name.
func Lookup(name string) (Code, bool) {
	c, ok := byName[name]
	return c, ok
}

// All returns the instruction table in code order.
func All() []Info {
	out := make([]Info, numCodes)
	copy(out, infos[:])
	return out
}

// Count is the number of opcodes in the instruction set.
func Count() int {
	return int(numCodes)
}
