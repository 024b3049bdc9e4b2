package amd64

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
)

func assemble(t *testing.T, f func(a *Assembler)) []byte {
	t.Helper()
	a := New(zerolog.Nop())
	f(a)
	code, err := a.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	return code
}

func TestEncodings(t *testing.T) {
	tests := []struct {
		name string
		emit func(a *Assembler)
		want []byte
	}{
		{"push rbp", func(a *Assembler) { a.Push(RBP) }, []byte{0x55}},
		{"push r12", func(a *Assembler) { a.Push(R12) }, []byte{0x41, 0x54}},
		{"pop r13", func(a *Assembler) { a.Pop(R13) }, []byte{0x41, 0x5D}},
		{"mov rbp, rsp", func(a *Assembler) { a.MovRegReg(RBP, RSP) }, []byte{0x48, 0x89, 0xE5}},
		{"mov rsi, r12", func(a *Assembler) { a.MovRegReg(RSI, R12) }, []byte{0x4C, 0x89, 0xE6}},
		{"sub rsp, 184", func(a *Assembler) { a.SubRegImm32(RSP, 184) },
			[]byte{0x48, 0x81, 0xEC, 0xB8, 0x00, 0x00, 0x00}},
		{"sub rbx, 8", func(a *Assembler) { a.SubRegImm32(RBX, 8) }, []byte{0x48, 0x83, 0xEB, 0x08}},
		{"add rbx, 16", func(a *Assembler) { a.AddRegImm32(RBX, 16) }, []byte{0x48, 0x83, 0xC3, 0x10}},
		{"mov [rbp-32], rdi", func(a *Assembler) { a.MovMemReg(RBP, -32, RDI) }, []byte{0x48, 0x89, 0x7D, 0xE0}},
		{"mov rax, [rbx]", func(a *Assembler) { a.MovRegMem(RAX, RBX, 0) }, []byte{0x48, 0x8B, 0x03}},
		{"mov rax, [r12+8]", func(a *Assembler) { a.MovRegMem(RAX, R12, 8) }, []byte{0x49, 0x8B, 0x44, 0x24, 0x08}},
		{"mov rax, [r13]", func(a *Assembler) { a.MovRegMem(RAX, R13, 0) }, []byte{0x49, 0x8B, 0x45, 0x00}},
		{"mov rax, [rbp-200]", func(a *Assembler) { a.MovRegMem(RAX, RBP, -200) },
			[]byte{0x48, 0x8B, 0x85, 0x38, 0xFF, 0xFF, 0xFF}},
		{"mov qword [rbx+8], 0x1a", func(a *Assembler) { a.MovMemImm32(RBX, 8, 0x1a) },
			[]byte{0x48, 0xC7, 0x43, 0x08, 0x1A, 0x00, 0x00, 0x00}},
		{"mov dword [rbp-184], 1", func(a *Assembler) { a.MovMem32Imm32(RBP, -184, 1) },
			[]byte{0xC7, 0x85, 0x48, 0xFF, 0xFF, 0xFF, 0x01, 0x00, 0x00, 0x00}},
		{"movsxd rdx, dword [rdi+16]", func(a *Assembler) { a.MovRegMem32Signed(RDX, RDI, 16) },
			[]byte{0x48, 0x63, 0x57, 0x10}},
		{"mov rax, [rax+rdx*8]", func(a *Assembler) { a.MovRegMemIdx(RAX, RAX, RDX, 0) },
			[]byte{0x48, 0x8B, 0x04, 0xD0}},
		{"mov rax, [r13+rcx*8]", func(a *Assembler) { a.MovRegMemIdx(RAX, R13, RCX, 0) },
			[]byte{0x49, 0x8B, 0x44, 0xCD, 0x00}},
		{"lea rcx, [rbx-8]", func(a *Assembler) { a.Lea(RCX, RBX, -8) }, []byte{0x48, 0x8D, 0x4B, 0xF8}},
		{"add qword [r11], 1", func(a *Assembler) { a.AddMemImm32(R11, 0, 1) }, []byte{0x49, 0x83, 0x03, 0x01}},
		{"test rax, 3", func(a *Assembler) { a.TestRegImm32(RAX, 3) },
			[]byte{0x48, 0xF7, 0xC0, 0x03, 0x00, 0x00, 0x00}},
		{"test qword [r11+64], 4", func(a *Assembler) { a.TestMemImm32(R11, 64, 4) },
			[]byte{0x49, 0xF7, 0x43, 0x40, 0x04, 0x00, 0x00, 0x00}},
		{"test rax, rax", func(a *Assembler) { a.TestRegReg(RAX, RAX) }, []byte{0x48, 0x85, 0xC0}},
		{"cmp rax, rcx", func(a *Assembler) { a.CmpRegReg(RAX, RCX) }, []byte{0x48, 0x39, 0xC8}},
		{"cmp rax, 0", func(a *Assembler) { a.CmpRegImm32(RAX, 0) }, []byte{0x48, 0x83, 0xF8, 0x00}},
		{"cmp rsi, [rdx]", func(a *Assembler) { a.CmpRegMem(RSI, RDX, 0) }, []byte{0x48, 0x3B, 0x32}},
		{"xor eax, eax", func(a *Assembler) { a.XorRegReg32(RAX, RAX) }, []byte{0x31, 0xC0}},
		{"sete al", func(a *Assembler) { a.Setcc(CondE, RAX) }, []byte{0x0F, 0x94, 0xC0}},
		{"movzx rax, al", func(a *Assembler) { a.MovzxRegReg8(RAX, RAX) }, []byte{0x48, 0x0F, 0xB6, 0xC0}},
		{"mov rax, -1", func(a *Assembler) { a.MovRegImm(RAX, ^uint64(0)) },
			[]byte{0x48, 0xC7, 0xC0, 0xFF, 0xFF, 0xFF, 0xFF}},
		{"call r11", func(a *Assembler) { a.CallReg(R11) }, []byte{0x41, 0xFF, 0xD3}},
		{"call abs", func(a *Assembler) { a.CallAbs(R11, 0x1122334455667788) },
			[]byte{0x49, 0xBB, 0x88, 0x77, 0x66, 0x55, 0x44, 0x33, 0x22, 0x11, 0x41, 0xFF, 0xD3}},
		{"ret", func(a *Assembler) { a.Ret() }, []byte{0xC3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := assemble(t, tt.emit)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("encoding mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLabels(t *testing.T) {
	forward := assemble(t, func(a *Assembler) {
		l := a.NewLabel()
		a.Je(l)
		a.Nop()
		a.Bind(l)
	})
	if diff := cmp.Diff([]byte{0x0F, 0x84, 0x01, 0x00, 0x00, 0x00, 0x90}, forward); diff != "" {
		t.Errorf("forward jump (-want +got):\n%s", diff)
	}

	backward := assemble(t, func(a *Assembler) {
		l := a.NewLabel()
		a.Bind(l)
		a.Nop()
		a.Jmp(l)
	})
	if diff := cmp.Diff([]byte{0x90, 0xE9, 0xFA, 0xFF, 0xFF, 0xFF}, backward); diff != "" {
		t.Errorf("backward jump (-want +got):\n%s", diff)
	}
}

func TestUnboundLabel(t *testing.T) {
	a := New(zerolog.Nop())
	a.Jmp(a.NewLabel())
	if _, err := a.Finish(); err == nil {
		t.Fatal("expected an error for an unbound label")
	}
}

func TestBufferGrows(t *testing.T) {
	a := New(zerolog.Nop())
	for i := 0; i < 1000; i++ {
		a.MovRegImm64(RAX, uint64(i))
	}
	if a.Offset() != 10000 {
		t.Errorf("Offset = %d, want 10000", a.Offset())
	}
}

func TestDebugLogging(t *testing.T) {
	var out bytes.Buffer
	a := New(zerolog.New(&out).Level(zerolog.DebugLevel))
	a.Comment("prologue")
	a.Push(RBP)
	a.MovRegMem(RAX, RBP, -16)
	a.MovRegMemIdx(RAX, RAX, RDX, 8)
	a.MovMemReg(RBX, 0, RCX)

	log := out.String()
	for _, want := range []string{"; prologue", "push rbp", "mov rax, [rbp-16]",
		"mov rax, [rax+rdx*8+8]", "mov [rbx], rcx", `"bytes":"55"`} {
		if !strings.Contains(log, want) {
			t.Errorf("debug log missing %q:\n%s", want, log)
		}
	}
}

type countingStringer struct{ n int }

func (c *countingStringer) String() string {
	c.n++
	return "x"
}

func TestTraceSkipsFormattingWhenDisabled(t *testing.T) {
	operand := &countingStringer{}
	a := New(zerolog.Nop())
	a.Push(RBP)
	a.trace(0, "push %s", operand)
	if operand.n != 0 {
		t.Errorf("operand formatted %d times with logging off", operand.n)
	}

	var out bytes.Buffer
	a = New(zerolog.New(&out).Level(zerolog.DebugLevel))
	a.Push(RBP)
	a.trace(0, "push %s", operand)
	if operand.n != 1 || !strings.Contains(out.String(), "push x") {
		t.Errorf("operand formatted %d times, log:\n%s", operand.n, out.String())
	}
}
