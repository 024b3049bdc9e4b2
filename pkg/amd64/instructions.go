package amd64

import "fmt"

// Cond is the low nibble of a Jcc/SETcc opcode.
type Cond byte

const (
	CondB  Cond = 0x2 // below (unsigned)
	CondAE Cond = 0x3 // above or equal (unsigned)
	CondE  Cond = 0x4 // equal / zero
	CondNE Cond = 0x5 // not equal / not zero
	CondBE Cond = 0x6
	CondA  Cond = 0x7
	CondL  Cond = 0xC // less (signed)
	CondGE Cond = 0xD
	CondLE Cond = 0xE
	CondG  Cond = 0xF
)

var condNames = map[Cond]string{
	CondB: "b", CondAE: "ae", CondE: "e", CondNE: "ne", CondBE: "be",
	CondA: "a", CondL: "l", CondGE: "ge", CondLE: "le", CondG: "g",
}

func (c Cond) String() string {
	return condNames[c]
}

// memRef and dispText are trace operands. They are formatted only when a
// trace line is actually written.
type memRef struct {
	base Reg
	disp int32
}

func mem(base Reg, disp int32) memRef {
	return memRef{base: base, disp: disp}
}

func (m memRef) String() string {
	return "[" + m.base.String() + dispText(m.disp).String() + "]"
}

type dispText int32

func (d dispText) String() string {
	if d == 0 {
		return ""
	}
	return fmt.Sprintf("%+d", int32(d))
}

// MovRegReg: mov dst, src (64-bit)
func (a *Assembler) MovRegReg(dst, src Reg) {
	defer a.trace(a.Offset(), "mov %s, %s", dst, src)
	a.emit(rexW(src, dst), 0x89, modRM(0xC0, src, dst))
}

// MovRegImm64: mov reg, imm64
func (a *Assembler) MovRegImm64(reg Reg, imm uint64) {
	defer a.trace(a.Offset(), "mov %s, 0x%x", reg, imm)
	// REX.W + B8+rd + imm64
	a.emit(rex(true, false, false, reg >= 8), 0xB8|byte(reg&7))
	a.emitUint64(imm)
}

// MovRegImm32: mov reg, imm32 (sign-extended to 64-bit)
func (a *Assembler) MovRegImm32(reg Reg, imm int32) {
	defer a.trace(a.Offset(), "mov %s, %d", reg, imm)
	// REX.W + C7 /0 + imm32
	a.emit(rex(true, false, false, reg >= 8), 0xC7, modRM(0xC0, 0, reg))
	a.emitInt32(imm)
}

// MovRegImm picks the shortest encoding that loads imm.
func (a *Assembler) MovRegImm(reg Reg, imm uint64) {
	if s := int64(imm); s >= -1<<31 && s < 1<<31 {
		a.MovRegImm32(reg, int32(s))
		return
	}
	a.MovRegImm64(reg, imm)
}

// MovRegMem: mov reg, qword [base + disp]
func (a *Assembler) MovRegMem(reg, base Reg, disp int32) {
	defer a.trace(a.Offset(), "mov %s, %s", reg, mem(base, disp))
	a.emit(rexW(reg, base), 0x8B)
	a.emitMemOperand(reg, base, disp)
}

// MovMemReg: mov qword [base + disp], reg
func (a *Assembler) MovMemReg(base Reg, disp int32, reg Reg) {
	defer a.trace(a.Offset(), "mov %s, %s", mem(base, disp), reg)
	a.emit(rexW(reg, base), 0x89)
	a.emitMemOperand(reg, base, disp)
}

// MovMemImm32: mov qword [base + disp], imm32 (sign-extended)
func (a *Assembler) MovMemImm32(base Reg, disp int32, imm int32) {
	defer a.trace(a.Offset(), "mov qword %s, %d", mem(base, disp), imm)
	a.emit(rexW(0, base), 0xC7)
	a.emitMemOperand(0, base, disp)
	a.emitInt32(imm)
}

// MovMem32Imm32: mov dword [base + disp], imm32
func (a *Assembler) MovMem32Imm32(base Reg, disp int32, imm int32) {
	defer a.trace(a.Offset(), "mov dword %s, %d", mem(base, disp), imm)
	if base >= 8 {
		a.emit(rex(false, false, false, true))
	}
	a.emit(0xC7)
	a.emitMemOperand(0, base, disp)
	a.emitInt32(imm)
}

// MovRegMem32Signed: movsxd reg, dword [base + disp]
func (a *Assembler) MovRegMem32Signed(reg, base Reg, disp int32) {
	defer a.trace(a.Offset(), "movsxd %s, dword %s", reg, mem(base, disp))
	a.emit(rexW(reg, base), 0x63)
	a.emitMemOperand(reg, base, disp)
}

// MovRegMemIdx: mov reg, [base + index*8 + disp]
func (a *Assembler) MovRegMemIdx(reg, base, index Reg, disp int32) {
	defer a.trace(a.Offset(), "mov %s, [%s+%s*8%s]", reg, base, index, dispText(disp))
	a.emit(rex(true, reg >= 8, index >= 8, base >= 8), 0x8B)
	a.emitIndexOperand(reg, base, index, disp)
}

// Lea: lea reg, [base + disp]
func (a *Assembler) Lea(reg, base Reg, disp int32) {
	defer a.trace(a.Offset(), "lea %s, %s", reg, mem(base, disp))
	a.emit(rexW(reg, base), 0x8D)
	a.emitMemOperand(reg, base, disp)
}

// AddRegImm32: add reg, imm32 (64-bit, sign-extended)
func (a *Assembler) AddRegImm32(reg Reg, imm int32) {
	defer a.trace(a.Offset(), "add %s, %d", reg, imm)
	if isDisp8(imm) {
		a.emit(rexW(0, reg), 0x83, modRM(0xC0, 0, reg), byte(imm))
	} else {
		a.emit(rexW(0, reg), 0x81, modRM(0xC0, 0, reg))
		a.emitInt32(imm)
	}
}

// SubRegImm32: sub reg, imm32 (64-bit, sign-extended)
func (a *Assembler) SubRegImm32(reg Reg, imm int32) {
	defer a.trace(a.Offset(), "sub %s, %d", reg, imm)
	if isDisp8(imm) {
		a.emit(rexW(0, reg), 0x83, modRM(0xC0, 5, reg), byte(imm))
	} else {
		a.emit(rexW(0, reg), 0x81, modRM(0xC0, 5, reg))
		a.emitInt32(imm)
	}
}

// AddMemImm32: add qword [base + disp], imm32
func (a *Assembler) AddMemImm32(base Reg, disp int32, imm int32) {
	defer a.trace(a.Offset(), "add qword %s, %d", mem(base, disp), imm)
	if isDisp8(imm) {
		a.emit(rexW(0, base), 0x83)
		a.emitMemOperand(0, base, disp)
		a.emit(byte(imm))
	} else {
		a.emit(rexW(0, base), 0x81)
		a.emitMemOperand(0, base, disp)
		a.emitInt32(imm)
	}
}

// AndRegImm32: and reg, imm32 (64-bit, sign-extended)
func (a *Assembler) AndRegImm32(reg Reg, imm int32) {
	defer a.trace(a.Offset(), "and %s, %d", reg, imm)
	if isDisp8(imm) {
		a.emit(rexW(0, reg), 0x83, modRM(0xC0, 4, reg), byte(imm))
	} else {
		a.emit(rexW(0, reg), 0x81, modRM(0xC0, 4, reg))
		a.emitInt32(imm)
	}
}

// XorRegReg32: xor dst32, src32 (zeroes the upper half)
func (a *Assembler) XorRegReg32(dst, src Reg) {
	defer a.trace(a.Offset(), "xor %s, %s", dst, src)
	if dst >= 8 || src >= 8 {
		a.emit(rex(false, src >= 8, false, dst >= 8))
	}
	a.emit(0x31, modRM(0xC0, src, dst))
}

// CmpRegReg: cmp left, right (64-bit)
func (a *Assembler) CmpRegReg(left, right Reg) {
	defer a.trace(a.Offset(), "cmp %s, %s", left, right)
	a.emit(rexW(right, left), 0x39, modRM(0xC0, right, left))
}

// CmpRegImm32: cmp reg, imm32 (64-bit, sign-extended)
func (a *Assembler) CmpRegImm32(reg Reg, imm int32) {
	defer a.trace(a.Offset(), "cmp %s, %d", reg, imm)
	if isDisp8(imm) {
		a.emit(rexW(0, reg), 0x83, modRM(0xC0, 7, reg), byte(imm))
	} else {
		a.emit(rexW(0, reg), 0x81, modRM(0xC0, 7, reg))
		a.emitInt32(imm)
	}
}

// CmpRegMem: cmp reg, qword [base + disp]
func (a *Assembler) CmpRegMem(reg, base Reg, disp int32) {
	defer a.trace(a.Offset(), "cmp %s, %s", reg, mem(base, disp))
	a.emit(rexW(reg, base), 0x3B)
	a.emitMemOperand(reg, base, disp)
}

// TestRegReg: test left, right (64-bit)
func (a *Assembler) TestRegReg(left, right Reg) {
	defer a.trace(a.Offset(), "test %s, %s", left, right)
	a.emit(rexW(right, left), 0x85, modRM(0xC0, right, left))
}

// TestRegImm32: test reg, imm32 (64-bit, sign-extended)
func (a *Assembler) TestRegImm32(reg Reg, imm int32) {
	defer a.trace(a.Offset(), "test %s, %d", reg, imm)
	a.emit(rexW(0, reg), 0xF7, modRM(0xC0, 0, reg))
	a.emitInt32(imm)
}

// TestMemImm32: test qword [base + disp], imm32
func (a *Assembler) TestMemImm32(base Reg, disp int32, imm int32) {
	defer a.trace(a.Offset(), "test qword %s, %d", mem(base, disp), imm)
	a.emit(rexW(0, base), 0xF7)
	a.emitMemOperand(0, base, disp)
	a.emitInt32(imm)
}

// Setcc: set byte reg if cond
func (a *Assembler) Setcc(cond Cond, reg Reg) {
	defer a.trace(a.Offset(), "set%s %s", cond, reg)
	if reg >= RSP {
		a.emit(rex(false, false, false, reg >= 8))
	}
	a.emit(0x0F, 0x90|byte(cond), modRM(0xC0, 0, reg))
}

// MovzxRegReg8: movzx dst, src8 (zero-extend byte to 64-bit)
func (a *Assembler) MovzxRegReg8(dst, src Reg) {
	defer a.trace(a.Offset(), "movzx %s, %s.b", dst, src)
	a.emit(rexW(dst, src), 0x0F, 0xB6, modRM(0xC0, dst, src))
}

// Jcc: conditional near jump to l
func (a *Assembler) Jcc(cond Cond, l Label) {
	defer a.trace(a.Offset(), "j%s L%d", cond, l)
	a.emit(0x0F, 0x80|byte(cond))
	a.emitRel32(l)
}

func (a *Assembler) Je(l Label)  { a.Jcc(CondE, l) }
func (a *Assembler) Jne(l Label) { a.Jcc(CondNE, l) }
func (a *Assembler) Jae(l Label) { a.Jcc(CondAE, l) }
func (a *Assembler) Jb(l Label)  { a.Jcc(CondB, l) }

// Jmp: jmp rel32 to l
func (a *Assembler) Jmp(l Label) {
	defer a.trace(a.Offset(), "jmp L%d", l)
	a.emit(0xE9)
	a.emitRel32(l)
}

// CallReg: call reg
func (a *Assembler) CallReg(reg Reg) {
	defer a.trace(a.Offset(), "call %s", reg)
	if reg >= 8 {
		a.emit(rex(false, false, false, true))
	}
	a.emit(0xFF, modRM(0xC0, 2, reg))
}

// CallAbs calls an absolute address through scratch.
func (a *Assembler) CallAbs(scratch Reg, target uintptr) {
	a.MovRegImm64(scratch, uint64(target))
	a.CallReg(scratch)
}

// Ret: ret
func (a *Assembler) Ret() {
	defer a.trace(a.Offset(), "ret")
	a.emit(0xC3)
}

// Push: push reg
func (a *Assembler) Push(reg Reg) {
	defer a.trace(a.Offset(), "push %s", reg)
	if reg >= 8 {
		a.emit(rex(false, false, false, true))
	}
	a.emit(0x50 | byte(reg&7))
}

// Pop: pop reg
func (a *Assembler) Pop(reg Reg) {
	defer a.trace(a.Offset(), "pop %s", reg)
	if reg >= 8 {
		a.emit(rex(false, false, false, true))
	}
	a.emit(0x58 | byte(reg&7))
}

// Nop: nop
func (a *Assembler) Nop() {
	defer a.trace(a.Offset(), "nop")
	a.emit(0x90)
}

// Int3: int3 (breakpoint)
func (a *Assembler) Int3() {
	defer a.trace(a.Offset(), "int3")
	a.emit(0xCC)
}
