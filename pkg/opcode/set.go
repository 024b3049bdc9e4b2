package opcode

import (
	"fmt"
	"sort"

	"github.com/hashicorp/go-multierror"
)

// Set is a set of opcodes. The zero value is empty.
type Set struct {
	bits [4]uint64
}

// NewSet builds a set holding codes.
func NewSet(codes ...Code) *Set {
	s := &Set{}
	for _, c := range codes {
		s.Add(c)
	}
	return s
}

// ParseSet resolves instruction names. Every unknown name is reported.
func ParseSet(names []string) (*Set, error) {
	s := &Set{}
	var result *multierror.Error
	for _, name := range names {
		c, ok := Lookup(name)
		if !ok {
			result = multierror.Append(result, fmt.Errorf("unknown instruction %q", name))
			continue
		}
		s.Add(c)
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Set) Add(c Code) {
	s.bits[c/64] |= 1 << (c % 64)
}

func (s *Set) Remove(c Code) {
	s.bits[c/64] &^= 1 << (c % 64)
}

// Has reports membership. A nil set has no members.
func (s *Set) Has(c Code) bool {
	if s == nil {
		return false
	}
	return s.bits[c/64]&(1<<(c%64)) != 0
}

// Intersect returns the codes present in both sets.
func (s *Set) Intersect(o *Set) *Set {
	out := &Set{}
	if s == nil || o == nil {
		return out
	}
	for i := range s.bits {
		out.bits[i] = s.bits[i] & o.bits[i]
	}
	return out
}

// Without returns s minus the codes in o.
func (s *Set) Without(o *Set) *Set {
	out := &Set{}
	if s == nil {
		return out
	}
	out.bits = s.bits
	if o != nil {
		for i := range out.bits {
			out.bits[i] &^= o.bits[i]
		}
	}
	return out
}

// Codes lists the members in code order.
func (s *Set) Codes() []Code {
	var out []Code
	for c := Code(0); c < numCodes; c++ {
		if s.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

// Names lists member names sorted alphabetically.
func (s *Set) Names() []string {
	var out []string
	for _, c := range s.Codes() {
		out = append(out, c.String())
	}
	sort.Strings(out)
	return out
}

func (s *Set) Len() int {
	return len(s.Codes())
}
