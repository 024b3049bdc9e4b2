package opcode

import (
	"fmt"
	"strings"

	"tier1/pkg/errors"
)

// Instruction is one decoded bytecode instruction.
type Instruction struct {
	Op       Code
	IP       int // stream offset of the opcode word
	Operands []uintptr
}

// Operand returns the i-th operand, or 0 when the instruction has fewer.
func (ins Instruction) Operand(i int) uintptr {
	if i < len(ins.Operands) {
		return ins.Operands[i]
	}
	return 0
}

func (ins Instruction) String() string {
	var sb strings.Builder
	sb.WriteString(ins.Op.String())
	for _, o := range ins.Operands {
		fmt.Fprintf(&sb, " %d", o)
	}
	return sb.String()
}

// Decode walks a raw stream linearly. The first bad word stops decoding and
// is reported with its offset.
func Decode(stream []uintptr) ([]Instruction, error) {
	var out []Instruction
	for ip := 0; ip < len(stream); {
		word := stream[ip]
		if word >= uintptr(numCodes) {
			return nil, errors.CompileErrorf(ip, "unknown opcode %d", word)
		}
		info := infos[word]
		if ip+info.Width() > len(stream) {
			return nil, errors.CompileErrorf(ip, "truncated %s: need %d operands, have %d",
				info.Name, info.OperandCount, len(stream)-ip-1)
		}
		ins := Instruction{Op: info.Code, IP: ip}
		if info.OperandCount > 0 {
			ins.Operands = make([]uintptr, info.OperandCount)
			copy(ins.Operands, stream[ip+1:ip+info.Width()])
		}
		out = append(out, ins)
		ip += info.Width()
	}
	return out, nil
}

// Encode flattens instructions back into a stream. Missing operands are
// encoded as zero so the result always decodes.
func Encode(instructions []Instruction) []uintptr {
	var out []uintptr
	for _, ins := range instructions {
		out = append(out, uintptr(ins.Op))
		for i := 0; i < GetInfo(ins.Op).OperandCount; i++ {
			out = append(out, ins.Operand(i))
		}
	}
	return out
}

// Parse reads the textual form used by tools and tests: one instruction per
// element, "name operand operand".
func Parse(lines []string) ([]Instruction, error) {
	var out []Instruction
	ip := 0
	for n, line := range lines {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		code, ok := Lookup(fields[0])
		if !ok {
			return nil, fmt.Errorf("line %d: unknown instruction %q", n+1, fields[0])
		}
		info := infos[code]
		if len(fields)-1 != info.OperandCount {
			return nil, fmt.Errorf("line %d: %s takes %d operands, got %d", n+1, info.Name, info.OperandCount, len(fields)-1)
		}
		ins := Instruction{Op: code, IP: ip}
		for _, f := range fields[1:] {
			var v int64
			if _, err := fmt.Sscan(f, &v); err != nil {
				return nil, fmt.Errorf("line %d: bad operand %q: %w", n+1, f, err)
			}
			ins.Operands = append(ins.Operands, uintptr(v))
		}
		out = append(out, ins)
		ip += info.Width()
	}
	return out, nil
}
