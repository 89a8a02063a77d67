package peripherals

import (
	"fmt"

	"github.com/valerio/go-libdmg/dmg/addr"
	"github.com/valerio/go-libdmg/dmg/bit"
)

// divPeriod is the number of cycles between two DIV increments.
const divPeriod = 256

// prescalers maps TAC input clock select (bits 1-0) to the number of
// cycles between two TIMA increments.
//
//	00 -> 1024 (4096 Hz)
//	01 -> 16   (262144 Hz)
//	10 -> 64   (65536 Hz)
//	11 -> 256  (16384 Hz)
var prescalers = [4]int{1024, 16, 64, 256}

// maxPrescaler bounds the TIMA accumulator while the timer is stopped.
const maxPrescaler = 1024

// Timer encapsulates the DIV/TIMA/TMA/TAC behavior.
type Timer struct {
	divCycles  int // cycles accumulated towards the next DIV increment
	timaCycles int // cycles accumulated towards the next TIMA increment
	prescaler  int
	running    bool
	pending    bool // TIMA overflowed and the interrupt was not serviced yet

	div  uint8
	tima uint8
	tma  uint8
	tac  uint8
}

// NewTimer returns a stopped timer using the 1024 cycle prescaler.
func NewTimer() *Timer {
	return &Timer{prescaler: prescalers[0]}
}

// Step advances the timer by the given number of cycles and reports
// whether TIMA overflowed at least once.
func (t *Timer) Step(cycles int) bool {
	t.divCycles += cycles
	for t.divCycles >= divPeriod {
		t.divCycles -= divPeriod
		t.div++
	}

	if !t.running {
		return false
	}

	overflowed := false
	t.timaCycles += cycles
	for t.timaCycles >= t.prescaler {
		t.timaCycles -= t.prescaler
		t.tima++
		if t.tima == 0 {
			t.tima = t.tma
			t.pending = true
			overflowed = true
		}
	}

	return overflowed
}

// Pending reports whether a TIMA overflow is waiting to be serviced.
func (t *Timer) Pending() bool {
	return t.pending
}

// ClearPending acknowledges the overflow latch.
func (t *Timer) ClearPending() {
	t.pending = false
}

func (t *Timer) Read(address uint16) uint8 {
	switch address {
	case addr.DIV:
		return t.div
	case addr.TIMA:
		return t.tima
	case addr.TMA:
		return t.tma
	case addr.TAC:
		return t.tac
	default:
		return 0
	}
}

func (t *Timer) Write(address uint16, value uint8) {
	switch address {
	case addr.DIV:
		// any write resets the whole divider chain
		t.div = 0
		t.divCycles = 0
		t.timaCycles = 0
	case addr.TIMA:
		t.tima = value
	case addr.TMA:
		t.tma = value
	case addr.TAC:
		t.setTAC(value)
	}
}

func (t *Timer) setTAC(value uint8) {
	t.tac = value
	t.prescaler = prescalers[value&0x03]
	t.running = bit.IsSet(2, value)
}

// TimerState is the serializable form of a Timer.
type TimerState struct {
	DIV        uint8 `yaml:"div"`
	TIMA       uint8 `yaml:"tima"`
	TMA        uint8 `yaml:"tma"`
	TAC        uint8 `yaml:"tac"`
	DIVCycles  int   `yaml:"div_cycles"`
	TIMACycles int   `yaml:"tima_cycles"`
	Prescaler  int   `yaml:"prescaler"`
	Running    bool  `yaml:"running"`
	Pending    bool  `yaml:"pending"`
}

func (t *Timer) snapshot() TimerState {
	return TimerState{
		DIV:        t.div,
		TIMA:       t.tima,
		TMA:        t.tma,
		TAC:        t.tac,
		DIVCycles:  t.divCycles,
		TIMACycles: t.timaCycles,
		Prescaler:  t.prescaler,
		Running:    t.running,
		Pending:    t.pending,
	}
}

// validate rejects accumulators a running timer never holds between steps,
// and a prescaler or run flag that disagrees with TAC.
func (s TimerState) validate() error {
	prescaler, running := prescalers[s.TAC&0x03], bit.IsSet(2, s.TAC)
	if s.Prescaler != prescaler || s.Running != running {
		return fmt.Errorf("prescaler %d running %t disagree with TAC 0x%02X", s.Prescaler, s.Running, s.TAC)
	}
	if s.DIVCycles < 0 || s.DIVCycles >= divPeriod {
		return fmt.Errorf("div cycles %d out of range", s.DIVCycles)
	}
	limit := maxPrescaler
	if running {
		limit = prescaler
	}
	if s.TIMACycles < 0 || s.TIMACycles >= limit {
		return fmt.Errorf("tima cycles %d out of range", s.TIMACycles)
	}
	return nil
}

func (t *Timer) restore(s TimerState) {
	t.div = s.DIV
	t.tima = s.TIMA
	t.tma = s.TMA
	t.setTAC(s.TAC)
	t.divCycles = s.DIVCycles
	t.timaCycles = s.TIMACycles
	t.pending = s.Pending
}
