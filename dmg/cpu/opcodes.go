package cpu

import (
	"fmt"

	"github.com/valerio/go-libdmg/dmg/bit"
)

// opcode executes one instruction and returns its cycle cost. Conditional
// instructions return the cost of the path actually taken.
type opcode func(*CPU) int

var opcodes = buildOpcodes()

// pairs selects the register pair encoded in bits 4-5 of the 16 bit
// load and arithmetic instructions.
var pairs = [4]Reg16{BC, DE, HL, SP}

// stackPairs is the same field for PUSH and POP, where AF replaces SP.
var stackPairs = [4]Reg16{BC, DE, HL, AF}

// illegalOpcodes have no documented behavior on the DMG.
var illegalOpcodes = []uint8{0xD3, 0xDB, 0xDD, 0xE3, 0xE4, 0xEB, 0xEC, 0xED, 0xF4, 0xFC, 0xFD}

func buildOpcodes() [256]opcode {
	var t [256]opcode

	t[0x00] = nop
	t[0x07] = func(c *CPU) int { c.rotateA(0); return 4 } // RLCA
	t[0x0F] = func(c *CPU) int { c.rotateA(1); return 4 } // RRCA
	t[0x17] = func(c *CPU) int { c.rotateA(2); return 4 } // RLA
	t[0x1F] = func(c *CPU) int { c.rotateA(3); return 4 } // RRA
	t[0x08] = ldNNSP
	t[0x10] = stop
	t[0x18] = jr
	t[0x27] = func(c *CPU) int { c.daa(); return 4 }
	t[0x2F] = cpl
	t[0x37] = scf
	t[0x3F] = ccf
	t[0x76] = halt

	// memory loads through BC, DE and HL with post increment/decrement
	t[0x02] = func(c *CPU) int { c.bus.Write(c.Reg16(BC), c.r[A]); return 8 }
	t[0x12] = func(c *CPU) int { c.bus.Write(c.Reg16(DE), c.r[A]); return 8 }
	t[0x22] = func(c *CPU) int { c.bus.Write(c.hlPostAdd(1), c.r[A]); return 8 }
	t[0x32] = func(c *CPU) int { c.bus.Write(c.hlPostAdd(-1), c.r[A]); return 8 }
	t[0x0A] = func(c *CPU) int { c.r[A] = c.bus.Read(c.Reg16(BC)); return 8 }
	t[0x1A] = func(c *CPU) int { c.r[A] = c.bus.Read(c.Reg16(DE)); return 8 }
	t[0x2A] = func(c *CPU) int { c.r[A] = c.bus.Read(c.hlPostAdd(1)); return 8 }
	t[0x3A] = func(c *CPU) int { c.r[A] = c.bus.Read(c.hlPostAdd(-1)); return 8 }

	for i := uint8(0); i < 4; i++ {
		rr := pairs[i]
		t[0x01|i<<4] = func(c *CPU) int { c.SetReg16(rr, c.readParamWord()); return 12 }
		t[0x03|i<<4] = func(c *CPU) int { c.SetReg16(rr, c.Reg16(rr)+1); return 8 }
		t[0x0B|i<<4] = func(c *CPU) int { c.SetReg16(rr, c.Reg16(rr)-1); return 8 }
		t[0x09|i<<4] = func(c *CPU) int { c.addToHL(c.Reg16(rr)); return 8 }

		sp := stackPairs[i]
		t[0xC1|i<<4] = func(c *CPU) int { c.SetReg16(sp, c.popStack()); return 12 }
		t[0xC5|i<<4] = func(c *CPU) int { c.pushStack(c.Reg16(sp)); return 16 }

		cc := i
		t[0x20|i<<3] = func(c *CPU) int { return c.jrIf(c.condition(cc)) }
		t[0xC0|i<<3] = func(c *CPU) int { return c.retIf(c.condition(cc)) }
		t[0xC2|i<<3] = func(c *CPU) int { return c.jpIf(c.condition(cc)) }
		t[0xC4|i<<3] = func(c *CPU) int { return c.callIf(c.condition(cc)) }
	}

	for i := uint8(0); i < 8; i++ {
		r := i
		cost := 4
		if r == hlOperand {
			cost = 12
		}
		t[0x04|r<<3] = func(c *CPU) int { c.setOperand(r, c.inc(c.operand(r))); return cost }
		t[0x05|r<<3] = func(c *CPU) int { c.setOperand(r, c.dec(c.operand(r))); return cost }

		ldCost := 8
		if r == hlOperand {
			ldCost = 12
		}
		t[0x06|r<<3] = func(c *CPU) int { c.setOperand(r, c.readParam()); return ldCost }

		op := i
		t[0xC6|op<<3] = func(c *CPU) int { c.alu(op, c.readParam()); return 8 }

		vector := uint16(i) * 8
		t[0xC7|i<<3] = func(c *CPU) int { c.pushStack(c.pc); c.pc = vector; return 16 }
	}

	// 0x40-0x7F: LD r,r'
	for op := 0x40; op < 0x80; op++ {
		if op == 0x76 {
			continue
		}
		dst, src := uint8(op>>3)&7, uint8(op)&7
		cost := 4
		if dst == hlOperand || src == hlOperand {
			cost = 8
		}
		t[op] = func(c *CPU) int { c.setOperand(dst, c.operand(src)); return cost }
	}

	// 0x80-0xBF: ALU A,r
	for op := 0x80; op < 0xC0; op++ {
		kind, src := uint8(op>>3)&7, uint8(op)&7
		cost := 4
		if src == hlOperand {
			cost = 8
		}
		t[op] = func(c *CPU) int { c.alu(kind, c.operand(src)); return cost }
	}

	t[0xC3] = func(c *CPU) int { return c.jpIf(true) }
	t[0xC9] = func(c *CPU) int { c.pc = c.popStack(); return 16 }
	t[0xCB] = prefixCB
	t[0xCD] = func(c *CPU) int { return c.callIf(true) }
	t[0xD9] = reti
	t[0xE0] = func(c *CPU) int { c.bus.Write(0xFF00|uint16(c.readParam()), c.r[A]); return 12 }
	t[0xF0] = func(c *CPU) int { c.r[A] = c.bus.Read(0xFF00 | uint16(c.readParam())); return 12 }
	t[0xE2] = func(c *CPU) int { c.bus.Write(0xFF00|uint16(c.r[C]), c.r[A]); return 8 }
	t[0xF2] = func(c *CPU) int { c.r[A] = c.bus.Read(0xFF00 | uint16(c.r[C])); return 8 }
	t[0xE8] = func(c *CPU) int { c.sp = c.addSPSigned(int8(c.readParam())); return 16 }
	t[0xF8] = func(c *CPU) int { c.SetReg16(HL, c.addSPSigned(int8(c.readParam()))); return 12 }
	t[0xF9] = func(c *CPU) int { c.sp = c.Reg16(HL); return 8 }
	t[0xE9] = func(c *CPU) int { c.pc = c.Reg16(HL); return 4 }
	t[0xEA] = func(c *CPU) int { c.bus.Write(c.readParamWord(), c.r[A]); return 16 }
	t[0xFA] = func(c *CPU) int { c.r[A] = c.bus.Read(c.readParamWord()); return 16 }
	t[0xF3] = func(c *CPU) int { c.bus.SetIME(false); return 4 }
	t[0xFB] = func(c *CPU) int { c.bus.SetIME(true); return 4 }

	for _, op := range illegalOpcodes {
		t[op] = illegal
	}
	for op := range t {
		if t[op] == nil {
			t[op] = illegal
		}
	}

	return t
}

// NOP
// #0x00:
func nop(c *CPU) int {
	return 4
}

// STOP
// #0x10: the following byte is consumed, low power mode is not modelled
func stop(c *CPU) int {
	c.readParam()
	return 4
}

// HALT
// #0x76:
func halt(c *CPU) int {
	c.halted = true
	return 4
}

// LD (nn),SP
// #0x08:
func ldNNSP(c *CPU) int {
	address := c.readParamWord()
	c.bus.Write(address, bit.Low(c.sp))
	c.bus.Write(address+1, bit.High(c.sp))
	return 20
}

// JR n
// #0x18:
func jr(c *CPU) int {
	return c.jrIf(true)
}

// CPL
// #0x2F:
func cpl(c *CPU) int {
	c.r[A] = ^c.r[A]
	c.SetFlag(SubFlag, true)
	c.SetFlag(HalfCarryFlag, true)
	return 4
}

// SCF
// #0x37:
func scf(c *CPU) int {
	c.SetFlag(SubFlag, false)
	c.SetFlag(HalfCarryFlag, false)
	c.SetFlag(CarryFlag, true)
	return 4
}

// CCF
// #0x3F:
func ccf(c *CPU) int {
	c.SetFlag(SubFlag, false)
	c.SetFlag(HalfCarryFlag, false)
	c.SetFlag(CarryFlag, !c.Flag(CarryFlag))
	return 4
}

// RETI
// #0xD9:
func reti(c *CPU) int {
	c.pc = c.popStack()
	c.bus.SetIME(true)
	return 16
}

func illegal(c *CPU) int {
	c.log.Warn("Unknown opcode, executing as NOP",
		"opcode", fmt.Sprintf("0x%02X", c.opcode),
		"pc", fmt.Sprintf("0x%04X", c.pc-1))
	return 4
}

// hlPostAdd returns HL and then adds delta to it.
func (c *CPU) hlPostAdd(delta int) uint16 {
	hl := c.Reg16(HL)
	c.SetReg16(HL, hl+uint16(delta))
	return hl
}

// jrIf reads the signed offset and jumps relative to the next instruction
// when cond holds.
func (c *CPU) jrIf(cond bool) int {
	offset := int8(c.readParam())
	if !cond {
		return 8
	}
	c.pc += uint16(int16(offset))
	return 12
}

func (c *CPU) jpIf(cond bool) int {
	address := c.readParamWord()
	if !cond {
		return 12
	}
	c.pc = address
	return 16
}

func (c *CPU) callIf(cond bool) int {
	address := c.readParamWord()
	if !cond {
		return 12
	}
	c.pushStack(c.pc)
	c.pc = address
	return 24
}

func (c *CPU) retIf(cond bool) int {
	if !cond {
		return 8
	}
	c.pc = c.popStack()
	return 20
}

// prefixCB decodes the sub-opcode by bit fields: bits 0-2 select the
// operand, bits 3-5 the bit index or shift kind, bits 6-7 the class.
func prefixCB(c *CPU) int {
	sub := c.readParam()
	reg := sub & 7
	index := (sub >> 3) & 7

	cost := 8
	if reg == hlOperand {
		cost = 16
	}

	value := c.operand(reg)
	switch sub >> 6 {
	case 0:
		c.setOperand(reg, c.shift(index, value))
	case 1:
		c.testBit(index, value)
	case 2:
		c.setOperand(reg, bit.Reset(index, value))
	default:
		c.setOperand(reg, bit.Set(index, value))
	}

	return cost
}
