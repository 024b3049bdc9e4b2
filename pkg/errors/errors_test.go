package errors

import (
	"fmt"
	"testing"
)

func TestCompileErrorMessage(t *testing.T) {
	err := CompileErrorf(7, "unknown opcode %d", 250)
	if got, want := err.Error(), "ip 7: unknown opcode 250"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	noOffset := CompileErrorf(-1, "no ret")
	if got := noOffset.Error(); got != "no ret" {
		t.Errorf("Error() = %q", got)
	}
}

func TestWrapKeepsChain(t *testing.T) {
	err := fmt.Errorf("compile foo: %w", WrapCompileError(ErrUnsupported, 3, "goto"))

	if !IsCompileError(err) {
		t.Fatal("wrapped compile error not found")
	}
	if !Is(err, ErrUnsupported) {
		t.Error("cause lost through wrapping")
	}
	reason, ip := Reason(err)
	if reason != "goto" || ip != 3 {
		t.Errorf("Reason() = (%q, %d), want (\"goto\", 3)", reason, ip)
	}
}

func TestReasonOfPlainError(t *testing.T) {
	reason, ip := Reason(fmt.Errorf("boom"))
	if reason != "boom" || ip != -1 {
		t.Errorf("Reason() = (%q, %d)", reason, ip)
	}
	if reason, ip := Reason(nil); reason != "" || ip != -1 {
		t.Errorf("Reason(nil) = (%q, %d)", reason, ip)
	}
}
