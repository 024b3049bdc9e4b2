//go:build linux && amd64

package jit

import (
	"tier1/pkg/jit/asm"
	"tier1/pkg/tagged"
)

// Call runs the routine on the native stack whose top is stack, using the
// method calling convention (vm, previous frame, method, module, arguments).
func (r *Routine) Call(stack, vm, prev, meth, module, args uintptr) (tagged.Value, error) {
	return tagged.Value(asm.CallNative(r.Entry(), stack, vm, prev, meth, module, args)), nil
}
