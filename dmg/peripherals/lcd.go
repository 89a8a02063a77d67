package peripherals

import (
	"fmt"

	"github.com/valerio/go-libdmg/dmg/addr"
)

// Mode is the LCD controller mode, as reported in STAT bits 1-0.
type Mode uint8

const (
	HBlank Mode = iota
	VBlank
	OAMScan
	Transfer
)

const (
	hblankCycles   = 204
	scanlineCycles = 456
	oamCycles      = 80
	transferCycles = 172

	visibleLines = 144
	totalLines   = 154
)

func (m Mode) duration() int {
	switch m {
	case HBlank:
		return hblankCycles
	case VBlank:
		return scanlineCycles
	case OAMScan:
		return oamCycles
	default:
		return transferCycles
	}
}

func (m Mode) String() string {
	switch m {
	case HBlank:
		return "HBLANK"
	case VBlank:
		return "VBLANK"
	case OAMScan:
		return "OAM"
	default:
		return "TRANSFER"
	}
}

// LCD sequences the controller modes and the LY scanline counter.
// No pixels are produced.
type LCD struct {
	mode   Mode
	cycles int
	ly     uint8
}

// NewLCD returns a controller at the start of line 0, scanning OAM.
func NewLCD() *LCD {
	return &LCD{mode: OAMScan}
}

// Step advances the sequencer, possibly through several modes, and
// reports whether vertical blank was entered.
func (l *LCD) Step(cycles int) bool {
	enteredVBlank := false

	l.cycles += cycles
	for l.cycles >= l.mode.duration() {
		l.cycles -= l.mode.duration()

		switch l.mode {
		case OAMScan:
			l.mode = Transfer
		case Transfer:
			l.mode = HBlank
		case HBlank:
			l.ly++
			if l.ly < visibleLines {
				l.mode = OAMScan
			} else {
				l.mode = VBlank
				enteredVBlank = true
			}
		case VBlank:
			l.ly++
			if l.ly == totalLines {
				l.ly = 0
				l.mode = OAMScan
			}
		}
	}

	return enteredVBlank
}

// Mode returns the current controller mode.
func (l *LCD) Mode() Mode {
	return l.mode
}

// LY returns the current scanline.
func (l *LCD) LY() uint8 {
	return l.ly
}

// Read returns LY for the LY register, and 0 for the other LCD registers.
func (l *LCD) Read(address uint16) uint8 {
	if address == addr.LY {
		return l.ly
	}
	return 0
}

// Write is accepted for all LCD registers and has no effect.
func (l *LCD) Write(address uint16, value uint8) {}

// LCDState is the serializable form of an LCD.
type LCDState struct {
	Mode   Mode  `yaml:"mode"`
	Cycles int   `yaml:"cycles"`
	LY     uint8 `yaml:"ly"`
}

func (l *LCD) snapshot() LCDState {
	return LCDState{Mode: l.mode, Cycles: l.cycles, LY: l.ly}
}

func (s LCDState) validate() error {
	if s.Mode > Transfer || s.LY >= totalLines {
		return fmt.Errorf("mode %d line %d", s.Mode, s.LY)
	}
	if (s.Mode == VBlank) != (s.LY >= visibleLines) {
		return fmt.Errorf("mode %s on line %d", s.Mode, s.LY)
	}
	if s.Cycles < 0 || s.Cycles >= s.Mode.duration() {
		return fmt.Errorf("%d cycles into %s", s.Cycles, s.Mode)
	}
	return nil
}

func (l *LCD) restore(s LCDState) {
	l.mode = s.Mode
	l.cycles = s.Cycles
	l.ly = s.LY
}
