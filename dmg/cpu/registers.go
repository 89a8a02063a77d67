package cpu

import "github.com/valerio/go-libdmg/dmg/bit"

// Reg8 indexes the 8 bit registers. The order matches the operand field
// of the instruction encoding, with F taking the slot that encodes (HL).
type Reg8 uint8

const (
	B Reg8 = iota
	C
	D
	E
	H
	L
	F
	A
)

var reg8Names = [...]string{"B", "C", "D", "E", "H", "L", "F", "A"}

func (r Reg8) String() string {
	if int(r) < len(reg8Names) {
		return reg8Names[r]
	}
	return "?"
}

// Reg16 indexes the 16 bit register pairs, PC and SP.
type Reg16 uint8

const (
	BC Reg16 = iota
	DE
	HL
	AF
	PC
	SP
)

var reg16Names = [...]string{"BC", "DE", "HL", "AF", "PC", "SP"}

func (r Reg16) String() string {
	if int(r) < len(reg16Names) {
		return reg16Names[r]
	}
	return "?"
}

// Flag is one of the 4 possible flags used in the flag register (high part of AF)
type Flag uint8

const (
	ZeroFlag      Flag = 0x80
	SubFlag       Flag = 0x40
	HalfCarryFlag Flag = 0x20
	CarryFlag     Flag = 0x10
)

// flagMask keeps the meaningful bits of F; the low nibble always reads 0.
const flagMask = 0xF0

// Reg8 returns the value of an 8 bit register.
func (c *CPU) Reg8(r Reg8) uint8 {
	return c.r[r&7]
}

// SetReg8 sets an 8 bit register.
func (c *CPU) SetReg8(r Reg8, value uint8) {
	if r == F {
		value &= flagMask
	}
	c.r[r&7] = value
}

// Reg16 returns the value of a register pair, PC or SP.
func (c *CPU) Reg16(r Reg16) uint16 {
	switch r {
	case BC:
		return bit.Combine(c.r[B], c.r[C])
	case DE:
		return bit.Combine(c.r[D], c.r[E])
	case HL:
		return bit.Combine(c.r[H], c.r[L])
	case AF:
		return bit.Combine(c.r[A], c.r[F])
	case PC:
		return c.pc
	default:
		return c.sp
	}
}

// SetReg16 sets a register pair, PC or SP as two 8 bit writes where applicable.
func (c *CPU) SetReg16(r Reg16, value uint16) {
	switch r {
	case BC:
		c.r[B], c.r[C] = bit.High(value), bit.Low(value)
	case DE:
		c.r[D], c.r[E] = bit.High(value), bit.Low(value)
	case HL:
		c.r[H], c.r[L] = bit.High(value), bit.Low(value)
	case AF:
		c.r[A], c.r[F] = bit.High(value), bit.Low(value)&flagMask
	case PC:
		c.pc = value
	default:
		c.sp = value
	}
}

// Flag reports whether a flag is set.
func (c *CPU) Flag(flag Flag) bool {
	return c.r[F]&uint8(flag) != 0
}

// SetFlag sets or clears a flag.
func (c *CPU) SetFlag(flag Flag, set bool) {
	if set {
		c.r[F] |= uint8(flag)
	} else {
		c.r[F] &^= uint8(flag)
	}
}

func (c *CPU) setFlags(z, n, h, carry bool) {
	c.r[F] = bit.FromBool(z)<<7 | bit.FromBool(n)<<6 | bit.FromBool(h)<<5 | bit.FromBool(carry)<<4
}

// flagToBit will return 1 if the passed flag is set, 0 otherwise
func (c *CPU) flagToBit(flag Flag) uint8 {
	return bit.FromBool(c.Flag(flag))
}

// FlagString returns a human-readable representation of the flag register
func (c *CPU) FlagString() string {
	flags := []byte("----")
	for i, f := range []struct {
		flag Flag
		name byte
	}{{ZeroFlag, 'Z'}, {SubFlag, 'N'}, {HalfCarryFlag, 'H'}, {CarryFlag, 'C'}} {
		if c.Flag(f.flag) {
			flags[i] = f.name
		}
	}
	return string(flags)
}
