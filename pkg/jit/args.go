package jit

import (
	"fmt"

	"tier1/pkg/layout"
	"tier1/pkg/native"
	"tier1/pkg/tagged"
)

// PackArguments builds an argument pack in native memory for a direct call
// into compiled code.
func PackArguments(ar *native.Arena, recv, block tagged.Value, args ...tagged.Value) (uintptr, error) {
	pack, err := ar.Alloc(layout.ArgumentsSize, layout.PointerSize)
	if err != nil {
		return 0, fmt.Errorf("allocate argument pack: %w", err)
	}
	var argv uintptr
	if len(args) > 0 {
		if argv, err = ar.Words(len(args)); err != nil {
			return 0, fmt.Errorf("allocate arguments: %w", err)
		}
		for i, v := range args {
			ar.Store(argv+uintptr(i*layout.PointerSize), uintptr(v))
		}
	}
	ar.Store(pack+layout.ArgumentsRecv, uintptr(recv))
	ar.Store(pack+layout.ArgumentsBlock, uintptr(block))
	ar.Store32(pack+layout.ArgumentsTotal, int32(len(args)))
	ar.Store(pack+layout.ArgumentsArguments, argv)
	return pack, nil
}
