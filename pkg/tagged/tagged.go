// Package tagged holds the object-pointer encoding shared between generated
// code and the rest of the VM.
//
// Low two bits 00 mark a heap reference. Every other pattern is an immediate:
// fixnums carry a 1 in bit 0, the special constants below end in binary 10.
package tagged

import "fmt"

// Value is a pointer-sized tagged object word.
type Value uintptr

const (
	// Failure is returned by helpers and generated code when an exception or
	// unwind is pending.
	Failure Value = 0x00
	False   Value = 0x0a
	True    Value = 0x12
	Nil     Value = 0x1a
	Undef   Value = 0x22
)

const (
	TagMask      = 0x3
	FixnumTag    = 0x1
	FixnumShift  = 1
	ReferenceTag = 0x0
)

// Fixnum encodes n as an immediate integer.
func Fixnum(n int64) Value {
	return Value(uint64(n)<<FixnumShift | FixnumTag)
}

// Fixnum decodes an immediate integer. The result is meaningless unless
// IsFixnum reports true.
func (v Value) Fixnum() int64 {
	return int64(v) >> FixnumShift
}

func (v Value) IsFixnum() bool {
	return v&FixnumTag == FixnumTag
}

// IsImmediate reports whether v encodes its data in the word itself.
func (v Value) IsImmediate() bool {
	return v&TagMask != ReferenceTag
}

// IsReference reports whether v is a heap-object pointer.
func (v Value) IsReference() bool {
	return v&TagMask == ReferenceTag
}

// Truthy follows the VM rule: only false and nil are falsy.
func (v Value) Truthy() bool {
	return v != False && v != Nil
}

// Bool converts a Go bool to the VM's true/false constants.
func Bool(b bool) Value {
	if b {
		return True
	}
	return False
}

// Equal is the reference semantics of "==" for two immediates: identity of
// the encoded word.
func Equal(a, b Value) Value {
	return Bool(a == b)
}

// FitsImm32 reports whether v survives sign extension from 32 bits, so it can
// be stored with a single imm32 move.
func FitsImm32(v Value) bool {
	s := int64(v)
	return s >= -1<<31 && s < 1<<31
}

func (v Value) String() string {
	switch v {
	case Failure:
		return "<failure>"
	case False:
		return "false"
	case True:
		return "true"
	case Nil:
		return "nil"
	case Undef:
		return "undefined"
	}
	if v.IsFixnum() {
		return fmt.Sprintf("%d", v.Fixnum())
	}
	if v.IsReference() {
		return fmt.Sprintf("<object 0x%x>", uintptr(v))
	}
	return fmt.Sprintf("<immediate 0x%x>", uintptr(v))
}
