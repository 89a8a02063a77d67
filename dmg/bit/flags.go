package bit

// The predicates below take an optional carry-in c (0 or 1) so the same
// functions serve ADD/ADC and SUB/SBC/CP.

// Zero reports whether an 8 bit result is zero.
func Zero(v uint8) bool {
	return v == 0
}

// HalfCarryAdd reports a carry out of bit 3 for a + b + c.
func HalfCarryAdd(a, b, c uint8) bool {
	return (a&0xF)+(b&0xF)+c > 0xF
}

// CarryAdd reports a carry out of bit 7 for a + b + c.
func CarryAdd(a, b, c uint8) bool {
	return uint16(a)+uint16(b)+uint16(c) > 0xFF
}

// HalfBorrowSub reports a borrow from bit 4 for a - b - c.
func HalfBorrowSub(a, b, c uint8) bool {
	return int(a&0xF)-int(b&0xF)-int(c) < 0
}

// BorrowSub reports a borrow for a - b - c.
func BorrowSub(a, b, c uint8) bool {
	return int(a)-int(b)-int(c) < 0
}

// HalfCarryAdd16 reports a carry out of bit 11 for a 16 bit addition.
func HalfCarryAdd16(a, b uint16) bool {
	return (a&0xFFF)+(b&0xFFF) > 0xFFF
}

// CarryAdd16 reports a carry out of bit 15 for a 16 bit addition.
func CarryAdd16(a, b uint16) bool {
	return uint32(a)+uint32(b) > 0xFFFF
}
