// Package native manages memory that generated code can address directly:
// a read/write arena for VM records and stacks, and executable code regions.
//
// None of this memory is visible to the Go garbage collector. Objects placed
// here must not hold the only reference to Go heap values.
package native

import "errors"

const (
	DefaultArenaSize = 4 * 1024 * 1024 // 4MB of records and stacks
	DefaultStackSize = 256 * 1024

	// WordSize is the size of one record field.
	WordSize = 8
)

// ErrNotSupported is returned on platforms without mmap.
var ErrNotSupported = errors.New("native memory is not supported on this platform")
