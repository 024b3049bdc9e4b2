package opcode

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEveryCodeHasInfo(t *testing.T) {
	seen := map[string]bool{}
	for _, info := range All() {
		if info.Name == "" {
			t.Fatalf("code %d has no name", info.Code)
		}
		if seen[info.Name] {
			t.Errorf("duplicate name %q", info.Name)
		}
		seen[info.Name] = true

		c, ok := Lookup(info.Name)
		if !ok || c != info.Code {
			t.Errorf("Lookup(%q) = %d, %v", info.Name, c, ok)
		}
	}
	if len(seen) != Count() {
		t.Errorf("%d names for %d codes", len(seen), Count())
	}
}

func TestGetInfo(t *testing.T) {
	tests := []struct {
		code     Code
		name     string
		operands int
		callSite bool
	}{
		{PushNil, "push_nil", 0, false},
		{PushInt, "push_int", 1, false},
		{DupMany, "dup_many", 1, false},
		{Ret, "ret", 0, false},
		{StringBuild, "string_build", 1, false},
		{MetaSendOpEqual, "meta_send_op_equal", 1, true},
		{MetaToS, "meta_to_s", 1, true},
		{PushConstFast, "push_const_fast", 2, false},
	}
	for _, tt := range tests {
		info := GetInfo(tt.code)
		if info.Name != tt.name || info.OperandCount != tt.operands || info.CallSite != tt.callSite {
			t.Errorf("GetInfo(%d) = %+v", tt.code, info)
		}
	}
	if GetInfo(Code(250)).Name != "invalid" {
		t.Error("out of range code should be invalid")
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	stream := []uintptr{
		uintptr(PushInt), 2,
		uintptr(PushInt), 3,
		uintptr(MetaSendOpEqual), 9,
		uintptr(Ret),
	}
	ins, err := Decode(stream)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := []Instruction{
		{Op: PushInt, IP: 0, Operands: []uintptr{2}},
		{Op: PushInt, IP: 2, Operands: []uintptr{3}},
		{Op: MetaSendOpEqual, IP: 4, Operands: []uintptr{9}},
		{Op: Ret, IP: 6},
	}
	if diff := cmp.Diff(want, ins); diff != "" {
		t.Errorf("Decode mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(stream, Encode(ins)); diff != "" {
		t.Errorf("Encode mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeErrors(t *testing.T) {
	if _, err := Decode([]uintptr{uintptr(PushNil), 250}); err == nil {
		t.Error("unknown opcode accepted")
	} else if got := err.Error(); got != "ip 1: unknown opcode 250" {
		t.Errorf("error = %q", got)
	}

	if _, err := Decode([]uintptr{uintptr(PushInt)}); err == nil {
		t.Error("truncated push_int accepted")
	}
}

func TestParse(t *testing.T) {
	ins, err := Parse([]string{"push_int -1", "", "dup_top", "ret"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(ins) != 3 {
		t.Fatalf("got %d instructions", len(ins))
	}
	if int64(ins[0].Operand(0)) != -1 {
		t.Errorf("operand = %d", int64(ins[0].Operand(0)))
	}
	if ins[1].IP != 2 || ins[2].IP != 3 {
		t.Errorf("ips = %d, %d", ins[1].IP, ins[2].IP)
	}

	if _, err := Parse([]string{"push_int"}); err == nil {
		t.Error("missing operand accepted")
	}
	if _, err := Parse([]string{"frobnicate"}); err == nil {
		t.Error("unknown name accepted")
	}
}

func TestSet(t *testing.T) {
	s, err := ParseSet([]string{"ret", "push_nil"})
	if err != nil {
		t.Fatalf("ParseSet: %v", err)
	}
	if !s.Has(Ret) || !s.Has(PushNil) || s.Has(Goto) {
		t.Errorf("membership wrong: %v", s.Names())
	}
	if diff := cmp.Diff([]string{"push_nil", "ret"}, s.Names()); diff != "" {
		t.Errorf("Names mismatch:\n%s", diff)
	}

	w := s.Without(NewSet(Ret))
	if w.Has(Ret) || !w.Has(PushNil) {
		t.Error("Without did not remove ret")
	}
	if got := s.Intersect(NewSet(Ret, Goto)).Codes(); len(got) != 1 || got[0] != Ret {
		t.Errorf("Intersect = %v", got)
	}

	if _, err := ParseSet([]string{"nope", "ret", "nada"}); err == nil {
		t.Error("unknown names accepted")
	}

	var nilSet *Set
	if nilSet.Has(Ret) {
		t.Error("nil set has members")
	}
}
