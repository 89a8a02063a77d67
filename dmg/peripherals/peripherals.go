// Package peripherals implements the memory mapped I/O register file: the
// timer, the LCD mode sequencer and the interrupt registers, with stubs
// for the joypad, serial port and sound registers.
package peripherals

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/valerio/go-libdmg/dmg/addr"
)

// ErrInvalidState is returned when restoring a state that could not have
// been produced by a running system.
var ErrInvalidState = errors.New("invalid peripherals state")

// InterruptTarget receives control when an interrupt is dispatched.
type InterruptTarget interface {
	Interrupt(vector uint16)
}

// Peripherals owns the timer, the LCD and the IF/IE/IME interrupt state.
type Peripherals struct {
	log   *slog.Logger
	timer *Timer
	lcd   *LCD

	ifReg uint8
	ie    uint8
	ime   bool
}

// New returns the power-on peripheral state.
func New(log *slog.Logger) *Peripherals {
	return &Peripherals{
		log:   log,
		timer: NewTimer(),
		lcd:   NewLCD(),
	}
}

// Step forwards the cycles to the timer and the LCD and latches the
// interrupts they raise into IF.
func (p *Peripherals) Step(cycles int) {
	if p.timer.Step(cycles) {
		p.ifReg |= uint8(addr.TimerInterrupt)
	}
	if p.lcd.Step(cycles) {
		p.ifReg |= uint8(addr.VBlankInterrupt)
	}
}

// ProcessInterrupts dispatches a pending timer overflow to the target.
// It must only be called between instructions. It reports whether an
// interrupt was dispatched.
func (p *Peripherals) ProcessInterrupts(target InterruptTarget) bool {
	if !p.timer.Pending() {
		return false
	}

	p.timer.ClearPending()
	p.ifReg &^= uint8(addr.TimerInterrupt)
	target.Interrupt(addr.TimerVector)
	return true
}

// Reg reads the register at the given offset from 0xFF00.
func (p *Peripherals) Reg(offset uint8) uint8 {
	return p.reg(offset, true)
}

// PeekReg reads like Reg without logging stub or unknown register access.
func (p *Peripherals) PeekReg(offset uint8) uint8 {
	return p.reg(offset, false)
}

func (p *Peripherals) reg(offset uint8, warn bool) uint8 {
	address := addr.IOBase | uint16(offset)

	switch {
	case address == addr.P1 || address == addr.SB || address == addr.SC:
		if warn {
			p.unimplemented("read", address)
		}
		return 0
	case address >= addr.DIV && address <= addr.TAC:
		return p.timer.Read(address)
	case address == addr.IF:
		return p.ifReg
	case isSoundRegister(address):
		if warn {
			p.unimplemented("read", address)
		}
		return 0
	case address >= addr.LCDC && address <= addr.WX:
		return p.lcd.Read(address)
	case address == addr.IE:
		return p.ie
	}

	if warn {
		p.log.Warn("Read from unknown I/O register", "addr", fmt.Sprintf("0x%04X", address))
	}
	return 0
}

// SetReg writes the register at the given offset from 0xFF00.
func (p *Peripherals) SetReg(offset uint8, value uint8) {
	address := addr.IOBase | uint16(offset)

	switch {
	case address == addr.P1 || address == addr.SB || address == addr.SC:
		p.unimplemented("write", address)
	case address >= addr.DIV && address <= addr.TAC:
		p.timer.Write(address, value)
	case address == addr.IF:
		p.ifReg = value
	case isSoundRegister(address):
		p.unimplemented("write", address)
	case address >= addr.LCDC && address <= addr.WX:
		p.lcd.Write(address, value)
	case address == addr.IE:
		p.ie = value
	default:
		p.log.Warn("Write to unknown I/O register",
			"addr", fmt.Sprintf("0x%04X", address),
			"value", fmt.Sprintf("0x%02X", value))
	}
}

func (p *Peripherals) unimplemented(op string, address uint16) {
	p.log.Warn("Unimplemented I/O register", "op", op, "addr", fmt.Sprintf("0x%04X", address))
}

func isSoundRegister(address uint16) bool {
	switch {
	case address >= addr.NR10 && address <= addr.NR14:
		return true
	case address >= addr.NR21 && address <= addr.NR34:
		return true
	case address >= addr.NR41 && address <= addr.NR52:
		return true
	}
	return false
}

// IME returns the interrupt master enable flag.
func (p *Peripherals) IME() bool {
	return p.ime
}

// SetIME sets the interrupt master enable flag.
func (p *Peripherals) SetIME(enabled bool) {
	p.ime = enabled
}

// Timer exposes the timer for inspection.
func (p *Peripherals) Timer() *Timer {
	return p.timer
}

// LCD exposes the LCD sequencer for inspection.
func (p *Peripherals) LCD() *LCD {
	return p.lcd
}

// State is the serializable form of the peripherals.
type State struct {
	Timer TimerState `yaml:"timer"`
	LCD   LCDState   `yaml:"lcd"`
	IF    uint8      `yaml:"if"`
	IE    uint8      `yaml:"ie"`
	IME   bool       `yaml:"ime"`
}

// Snapshot captures all mutable peripheral state.
func (p *Peripherals) Snapshot() State {
	return State{
		Timer: p.timer.snapshot(),
		LCD:   p.lcd.snapshot(),
		IF:    p.ifReg,
		IE:    p.ie,
		IME:   p.ime,
	}
}

// Restore replaces the peripheral state with a snapshot.
func (p *Peripherals) Restore(s State) error {
	if err := s.Timer.validate(); err != nil {
		return fmt.Errorf("%w: timer: %w", ErrInvalidState, err)
	}
	if err := s.LCD.validate(); err != nil {
		return fmt.Errorf("%w: lcd: %w", ErrInvalidState, err)
	}

	p.timer.restore(s.Timer)
	p.lcd.restore(s.LCD)
	p.ifReg = s.IF
	p.ie = s.IE
	p.ime = s.IME
	return nil
}
