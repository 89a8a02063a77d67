package cpu

import (
	"fmt"
	"strings"

	"github.com/valerio/go-libdmg/dmg/bit"
)

// Reader inspects the address space without side effects: no logging and
// no register state changes.
type Reader interface {
	Peek(address uint16) uint8
}

// Line is a single disassembled instruction.
type Line struct {
	Address     uint16
	Instruction string
	Length      int
}

var instructionLengths = buildLengths()

func buildLengths() [256]int {
	var lengths [256]int
	for op, name := range opcodeNames {
		lengths[op] = 1 + operandSize(name)
	}
	lengths[0x10] = 2 // STOP
	lengths[0xCB] = 2
	return lengths
}

// operandSize returns the size of the immediate operand named in a mnemonic.
func operandSize(name string) int {
	_, args, ok := strings.Cut(name, " ")
	if !ok {
		return 0
	}
	for _, arg := range strings.Split(args, ",") {
		switch strings.Trim(arg, "()") {
		case "nn":
			return 2
		case "n", "SP+n":
			return 1
		}
	}
	return 0
}

// Disassemble decodes the instruction at pc, filling in immediate operands.
func Disassemble(mem Reader, pc uint16) Line {
	op := mem.Peek(pc)
	if op == 0xCB {
		return Line{Address: pc, Instruction: CBOpcodeName(mem.Peek(pc + 1)), Length: 2}
	}

	name := opcodeNames[op]
	mnemonic, args, ok := strings.Cut(name, " ")
	if !ok || operandSize(name) == 0 {
		return Line{Address: pc, Instruction: name, Length: instructionLengths[op]}
	}

	n := mem.Peek(pc + 1)
	parts := strings.Split(args, ",")
	for i, arg := range parts {
		inner := strings.Trim(arg, "()")

		var value string
		switch {
		case inner == "nn":
			value = fmt.Sprintf("0x%04X", bit.Combine(mem.Peek(pc+2), n))
		case inner == "n" && mnemonic == "JR":
			value = fmt.Sprintf("0x%04X", pc+2+uint16(int16(int8(n))))
		case inner == "n" && parts[0] == "SP":
			value = fmt.Sprintf("%+d", int8(n))
		case inner == "n":
			value = fmt.Sprintf("0x%02X", n)
		case inner == "SP+n":
			value = fmt.Sprintf("SP%+d", int8(n))
		default:
			continue
		}
		parts[i] = strings.Replace(arg, inner, value, 1)
	}

	return Line{
		Address:     pc,
		Instruction: mnemonic + " " + strings.Join(parts, ","),
		Length:      instructionLengths[op],
	}
}

// DisassembleRange decodes count consecutive instructions starting at pc.
func DisassembleRange(mem Reader, pc uint16, count int) []Line {
	lines := make([]Line, 0, count)
	for i := 0; i < count; i++ {
		line := Disassemble(mem, pc)
		lines = append(lines, line)
		pc += uint16(line.Length)
	}
	return lines
}

func (l Line) String() string {
	return fmt.Sprintf("0x%04X: %s", l.Address, l.Instruction)
}
