package cpu

import "github.com/valerio/go-libdmg/dmg/bit"

// hlOperand is the operand field value that selects memory at HL.
const hlOperand = 6

// operand reads an instruction operand: a register, or memory at HL.
func (c *CPU) operand(index uint8) uint8 {
	if index == hlOperand {
		return c.bus.Read(c.Reg16(HL))
	}
	return c.r[index]
}

func (c *CPU) setOperand(index uint8, value uint8) {
	if index == hlOperand {
		c.bus.Write(c.Reg16(HL), value)
		return
	}
	c.r[index] = value
}

// add sets the result of adding value and carry to A, while setting all relevant flags.
func (c *CPU) add(value, carry uint8) {
	a := c.r[A]
	result := a + value + carry

	c.setFlags(bit.Zero(result), false, bit.HalfCarryAdd(a, value, carry), bit.CarryAdd(a, value, carry))
	c.r[A] = result
}

// sub computes A - value - carry and sets all relevant flags. The result
// is returned so that CP can discard it.
func (c *CPU) sub(value, carry uint8) uint8 {
	a := c.r[A]
	result := a - value - carry

	c.setFlags(bit.Zero(result), true, bit.HalfBorrowSub(a, value, carry), bit.BorrowSub(a, value, carry))
	return result
}

func (c *CPU) and(value uint8) {
	c.r[A] &= value
	c.setFlags(bit.Zero(c.r[A]), false, true, false)
}

func (c *CPU) xor(value uint8) {
	c.r[A] ^= value
	c.setFlags(bit.Zero(c.r[A]), false, false, false)
}

func (c *CPU) or(value uint8) {
	c.r[A] |= value
	c.setFlags(bit.Zero(c.r[A]), false, false, false)
}

// alu applies one of the 8 accumulator operations, selected by bits 3-5
// of the opcode: ADD ADC SUB SBC AND XOR OR CP.
func (c *CPU) alu(op, value uint8) {
	switch op {
	case 0:
		c.add(value, 0)
	case 1:
		c.add(value, c.flagToBit(CarryFlag))
	case 2:
		c.r[A] = c.sub(value, 0)
	case 3:
		c.r[A] = c.sub(value, c.flagToBit(CarryFlag))
	case 4:
		c.and(value)
	case 5:
		c.xor(value)
	case 6:
		c.or(value)
	default:
		c.sub(value, 0)
	}
}

func (c *CPU) inc(value uint8) uint8 {
	result := value + 1
	c.SetFlag(ZeroFlag, bit.Zero(result))
	c.SetFlag(SubFlag, false)
	c.SetFlag(HalfCarryFlag, bit.HalfCarryAdd(value, 1, 0))
	return result
}

func (c *CPU) dec(value uint8) uint8 {
	result := value - 1
	c.SetFlag(ZeroFlag, bit.Zero(result))
	c.SetFlag(SubFlag, true)
	c.SetFlag(HalfCarryFlag, bit.HalfBorrowSub(value, 1, 0))
	return result
}

// addToHL adds a 16 bit value to HL. Z is preserved, H and C come from
// bits 11 and 15.
func (c *CPU) addToHL(value uint16) {
	hl := c.Reg16(HL)

	c.SetFlag(SubFlag, false)
	c.SetFlag(HalfCarryFlag, bit.HalfCarryAdd16(hl, value))
	c.SetFlag(CarryFlag, bit.CarryAdd16(hl, value))
	c.SetReg16(HL, hl+value)
}

// addSPSigned returns SP + e. H and C come from the unsigned addition of
// the low byte of SP and e; Z and N are cleared.
func (c *CPU) addSPSigned(e int8) uint16 {
	low := bit.Low(c.sp)
	c.setFlags(false, false, bit.HalfCarryAdd(low, uint8(e), 0), bit.CarryAdd(low, uint8(e), 0))
	return c.sp + uint16(int16(e))
}

// shift applies one of the CB rotate/shift operations, selected by bits 3-5
// of the sub-opcode: RLC RRC RL RR SLA SRA SWAP SRL.
func (c *CPU) shift(op, value uint8) uint8 {
	var result uint8
	carry := false

	switch op {
	case 0:
		result = value<<1 | value>>7
		carry = value&0x80 != 0
	case 1:
		result = value>>1 | value<<7
		carry = value&0x01 != 0
	case 2:
		result = value<<1 | c.flagToBit(CarryFlag)
		carry = value&0x80 != 0
	case 3:
		result = value>>1 | c.flagToBit(CarryFlag)<<7
		carry = value&0x01 != 0
	case 4:
		result = value << 1
		carry = value&0x80 != 0
	case 5:
		result = value>>1 | value&0x80
		carry = value&0x01 != 0
	case 6:
		result = value<<4 | value>>4
	default:
		result = value >> 1
		carry = value&0x01 != 0
	}

	c.setFlags(bit.Zero(result), false, false, carry)
	return result
}

// rotateA implements RLCA, RRCA, RLA and RRA, which always clear Z.
func (c *CPU) rotateA(op uint8) {
	c.r[A] = c.shift(op, c.r[A])
	c.SetFlag(ZeroFlag, false)
}

// testBit implements BIT: Z is set when the bit is 0, C is preserved.
func (c *CPU) testBit(index, value uint8) {
	c.SetFlag(ZeroFlag, !bit.IsSet(index, value))
	c.SetFlag(SubFlag, false)
	c.SetFlag(HalfCarryFlag, true)
}

// daa adjusts A to packed BCD after an addition or subtraction.
func (c *CPU) daa() {
	a := c.r[A]
	carry := c.Flag(CarryFlag)
	var adjust uint8

	if c.Flag(HalfCarryFlag) || (!c.Flag(SubFlag) && a&0x0F > 0x09) {
		adjust |= 0x06
	}
	if carry || (!c.Flag(SubFlag) && a > 0x99) {
		adjust |= 0x60
		carry = true
	}

	if c.Flag(SubFlag) {
		a -= adjust
	} else {
		a += adjust
	}

	c.SetFlag(ZeroFlag, bit.Zero(a))
	c.SetFlag(HalfCarryFlag, false)
	c.SetFlag(CarryFlag, carry)
	c.r[A] = a
}

// condition evaluates a branch condition from bits 3-4 of the opcode:
// NZ Z NC C.
func (c *CPU) condition(cc uint8) bool {
	switch cc & 3 {
	case 0:
		return !c.Flag(ZeroFlag)
	case 1:
		return c.Flag(ZeroFlag)
	case 2:
		return !c.Flag(CarryFlag)
	default:
		return c.Flag(CarryFlag)
	}
}
