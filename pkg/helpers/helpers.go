// Package helpers defines the runtime entry points tier-1 code calls.
//
// Every helper is a plain System V function reached by absolute address. The
// address is embedded in the generated code at compile time. Helpers that can
// fail return 0 (tagged.Failure) and generated code then unwinds to its exit.
//
//	ArityError   (vm, args, count)              result ignored
//	Safepoint    (vm, callframe)                0 => unwind
//	FlushScope   (vm, callframe)                no result
//	CheckFrozen  (vm, callframe, obj)           0 => unwind
//	CacheMiss    (vm, cache, callframe, args)   0 => unwind, else result
//	LiteralAt    (vm, callframe, index)         0 => unwind, else literal
//	StringDup    (vm, callframe, str)           0 => unwind, else new string
//	StringBuild  (vm, callframe, count, &first) 0 => unwind, else new string
//	MetaToS      (vm, callframe, cache, obj)    0 => unwind, else string
package helpers

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// Kind names one helper.
type Kind int

const (
	ArityError Kind = iota
	Safepoint
	FlushScope
	CheckFrozen
	CacheMiss
	LiteralAt
	StringDup
	StringBuild
	MetaToS

	NumKinds
)

var kindNames = [NumKinds]string{
	ArityError:  "arity_error",
	Safepoint:   "safepoint",
	FlushScope:  "flush_scope",
	CheckFrozen: "check_frozen",
	CacheMiss:   "cache_miss",
	LiteralAt:   "literal_at",
	StringDup:   "string_dup",
	StringBuild: "string_build",
	MetaToS:     "meta_to_s",
}

func (k Kind) String() string {
	if k >= 0 && k < NumKinds {
		return kindNames[k]
	}
	return fmt.Sprintf("helper(%d)", int(k))
}

// Arity is the number of arguments each helper takes.
func (k Kind) Arity() int {
	switch k {
	case Safepoint, FlushScope:
		return 2
	case ArityError, CheckFrozen, LiteralAt, StringDup:
		return 3
	case CacheMiss, StringBuild, MetaToS:
		return 4
	}
	return 0
}

// Fallible reports whether generated code must check the helper's result.
func (k Kind) Fallible() bool {
	return k != ArityError && k != FlushScope
}

// Table holds the absolute address of every helper.
type Table struct {
	entries [NumKinds]uintptr
}

// Set records the address of k.
func (t *Table) Set(k Kind, addr uintptr) {
	t.entries[k] = addr
}

// Address returns the address of k, or 0 when unset.
func (t Table) Address(k Kind) uintptr {
	if k < 0 || k >= NumKinds {
		return 0
	}
	return t.entries[k]
}

// Validate reports every helper without an address.
func (t Table) Validate() error {
	var result *multierror.Error
	for k := Kind(0); k < NumKinds; k++ {
		if t.entries[k] == 0 {
			result = multierror.Append(result, fmt.Errorf("helper %s has no address", k))
		}
	}
	return result.ErrorOrNil()
}
