// Package amd64 is a small x86-64 machine code assembler: a growable code
// buffer, the instruction forms tier-1 code uses, and rel32 labels.
package amd64

import (
	"encoding/binary"
	"fmt"

	"github.com/rs/zerolog"
)

// x86-64 register encoding
type Reg byte

const (
	RAX Reg = 0
	RCX Reg = 1
	RDX Reg = 2
	RBX Reg = 3
	RSP Reg = 4
	RBP Reg = 5
	RSI Reg = 6
	RDI Reg = 7
	R8  Reg = 8
	R9  Reg = 9
	R10 Reg = 10
	R11 Reg = 11
	R12 Reg = 12
	R13 Reg = 13
	R14 Reg = 14
	R15 Reg = 15
)

var regNames = [16]string{
	"rax", "rcx", "rdx", "rbx", "rsp", "rbp", "rsi", "rdi",
	"r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15",
}

func (r Reg) String() string {
	if int(r) < len(regNames) {
		return regNames[r]
	}
	return fmt.Sprintf("reg%d", byte(r))
}

// Label is a code position that jumps can target before it is bound.
type Label int

type fixup struct {
	at    int // offset of the rel32 field
	label Label
}

// Assembler emits x86-64 machine code into a buffer that grows as needed.
type Assembler struct {
	buf    []byte
	labels []int // bound offset per label, -1 while unbound
	fixups []fixup
	log    zerolog.Logger
}

// New creates an assembler. Every instruction is logged at debug level.
func New(log zerolog.Logger) *Assembler {
	return &Assembler{
		buf: make([]byte, 0, 256),
		log: log,
	}
}

// Offset returns current write position
func (a *Assembler) Offset() int {
	return len(a.buf)
}

// Bytes returns the assembled code without resolving labels.
func (a *Assembler) Bytes() []byte {
	return a.buf
}

// NewLabel allocates an unbound label.
func (a *Assembler) NewLabel() Label {
	a.labels = append(a.labels, -1)
	return Label(len(a.labels) - 1)
}

// Bind fixes l at the current offset. A label is bound once.
func (a *Assembler) Bind(l Label) {
	if a.labels[l] >= 0 {
		panic(fmt.Sprintf("amd64: label %d bound twice", l))
	}
	a.labels[l] = a.Offset()
	a.log.Debug().Int("offset", a.Offset()).Msgf("L%d:", l)
}

// Bound reports whether l has been bound.
func (a *Assembler) Bound(l Label) bool {
	return a.labels[l] >= 0
}

// Comment records a note in the debug log. It emits nothing.
func (a *Assembler) Comment(format string, args ...interface{}) {
	if e := a.log.Debug(); e.Enabled() {
		e.Int("offset", a.Offset()).Msg("; " + fmt.Sprintf(format, args...))
	}
}

// Finish patches every label reference and returns the code. It fails if a
// referenced label was never bound.
func (a *Assembler) Finish() ([]byte, error) {
	for _, f := range a.fixups {
		target := a.labels[f.label]
		if target < 0 {
			return nil, fmt.Errorf("label %d referenced at offset %d is not bound", f.label, f.at)
		}
		rel := target - (f.at + 4)
		binary.LittleEndian.PutUint32(a.buf[f.at:], uint32(int32(rel)))
	}
	return a.buf, nil
}

// trace logs the instruction that starts at offset start.
func (a *Assembler) trace(start int, format string, args ...interface{}) {
	if e := a.log.Debug(); e.Enabled() {
		e.Int("offset", start).Hex("bytes", a.buf[start:]).Msgf(format, args...)
	}
}

// emit appends bytes to the buffer
func (a *Assembler) emit(bytes ...byte) {
	a.buf = append(a.buf, bytes...)
}

// emitUint64 appends a little-endian uint64
func (a *Assembler) emitUint64(v uint64) {
	a.buf = binary.LittleEndian.AppendUint64(a.buf, v)
}

// emitInt32 appends a little-endian int32
func (a *Assembler) emitInt32(v int32) {
	a.buf = binary.LittleEndian.AppendUint32(a.buf, uint32(v))
}

// emitRel32 appends a placeholder displacement to l.
func (a *Assembler) emitRel32(l Label) {
	a.fixups = append(a.fixups, fixup{at: a.Offset(), label: l})
	a.emitInt32(0)
}

// rex builds REX prefix: 0100WRXB
// W=1 for 64-bit operand size
// R=1 if reg field uses R8-R15
// X=1 if SIB index uses R8-R15
// B=1 if rm field uses R8-R15
func rex(w, r, x, b bool) byte {
	var prefix byte = 0x40
	if w {
		prefix |= 0x08
	}
	if r {
		prefix |= 0x04
	}
	if x {
		prefix |= 0x02
	}
	if b {
		prefix |= 0x01
	}
	return prefix
}

// rexW returns REX.W prefix for 64-bit operations
func rexW(reg, rm Reg) byte {
	return rex(true, reg >= 8, false, rm >= 8)
}

// modRM builds ModR/M byte: [mod:2][reg:3][rm:3]
// mod should be pre-shifted: 0x00=no disp, 0x40=disp8, 0x80=disp32, 0xC0=register
func modRM(mod byte, reg, rm Reg) byte {
	return mod | ((byte(reg) & 7) << 3) | (byte(rm) & 7)
}

func isDisp8(disp int32) bool {
	return disp >= -128 && disp <= 127
}

// emitMemOperand emits ModR/M and displacement for [base + disp]
func (a *Assembler) emitMemOperand(reg, base Reg, disp int32) {
	if base == RSP || base == R12 {
		if disp == 0 {
			a.emit(modRM(0x00, reg, RSP), 0x24)
		} else if isDisp8(disp) {
			a.emit(modRM(0x40, reg, RSP), 0x24, byte(disp))
		} else {
			a.emit(modRM(0x80, reg, RSP), 0x24)
			a.emitInt32(disp)
		}
	} else if base == RBP || base == R13 {
		// mod=00 with rm=101 means rip-relative, so always carry a displacement
		if isDisp8(disp) {
			a.emit(modRM(0x40, reg, base), byte(disp))
		} else {
			a.emit(modRM(0x80, reg, base))
			a.emitInt32(disp)
		}
	} else if disp == 0 {
		a.emit(modRM(0x00, reg, base))
	} else if isDisp8(disp) {
		a.emit(modRM(0x40, reg, base), byte(disp))
	} else {
		a.emit(modRM(0x80, reg, base))
		a.emitInt32(disp)
	}
}

// emitIndexOperand emits ModR/M, SIB and displacement for
// [base + index*8 + disp]. index must not be RSP.
func (a *Assembler) emitIndexOperand(reg, base, index Reg, disp int32) {
	sib := byte(0xC0) | ((byte(index) & 7) << 3) | (byte(base) & 7)
	switch {
	case disp == 0 && base&7 != RBP:
		a.emit(modRM(0x00, reg, RSP), sib)
	case isDisp8(disp):
		a.emit(modRM(0x40, reg, RSP), sib, byte(disp))
	default:
		a.emit(modRM(0x80, reg, RSP), sib)
		a.emitInt32(disp)
	}
}
