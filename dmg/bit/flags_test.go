package bit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddPredicatesExhaustive(t *testing.T) {
	for a := 0; a < 256; a++ {
		for b := 0; b < 256; b++ {
			for c := 0; c < 2; c++ {
				sum := a + b + c
				assert.Equal(t, sum > 0xFF, CarryAdd(uint8(a), uint8(b), uint8(c)))
				assert.Equal(t, (a&0xF)+(b&0xF)+c > 0xF, HalfCarryAdd(uint8(a), uint8(b), uint8(c)))
			}
		}
	}
}

func TestSubPredicatesExhaustive(t *testing.T) {
	for a := 0; a < 256; a++ {
		for b := 0; b < 256; b++ {
			assert.Equal(t, a < b, BorrowSub(uint8(a), uint8(b), 0))
			assert.Equal(t, (a&0xF) < (b&0xF), HalfBorrowSub(uint8(a), uint8(b), 0))
			assert.Equal(t, a < b+1, BorrowSub(uint8(a), uint8(b), 1))
			assert.Equal(t, (a&0xF) < (b&0xF)+1, HalfBorrowSub(uint8(a), uint8(b), 1))
		}
	}
}

func TestPredicates16(t *testing.T) {
	testCases := []struct {
		desc      string
		a, b      uint16
		halfCarry bool
		carry     bool
	}{
		{desc: "no carry", a: 0x0100, b: 0x0200},
		{desc: "carry out of bit 11", a: 0x0FFF, b: 0x0001, halfCarry: true},
		{desc: "carry out of bit 15", a: 0x8000, b: 0x8000, carry: true},
		{desc: "both", a: 0xFFFF, b: 0x0001, halfCarry: true, carry: true},
	}
	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			assert.Equal(t, tC.halfCarry, HalfCarryAdd16(tC.a, tC.b))
			assert.Equal(t, tC.carry, CarryAdd16(tC.a, tC.b))
		})
	}
}

func TestZero(t *testing.T) {
	for v := 0; v < 256; v++ {
		assert.Equal(t, v == 0, Zero(uint8(v)), "value 0x%02X", v)
	}
}
