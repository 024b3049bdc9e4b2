//go:build !linux || !amd64

package jit

import (
	"tier1/pkg/native"
	"tier1/pkg/tagged"
)

// Call is only available on linux/amd64. Code can still be assembled
// elsewhere.
func (r *Routine) Call(stack, vm, prev, meth, module, args uintptr) (tagged.Value, error) {
	return tagged.Failure, native.ErrNotSupported
}
