package dmg

import (
	"github.com/valerio/go-libdmg/dmg/cpu"
	"github.com/valerio/go-libdmg/dmg/memory"
	"github.com/valerio/go-libdmg/dmg/peripherals"
)

// bus provides centralized component communication for the CPU.
type bus struct {
	mem    *memory.Controller
	periph *peripherals.Peripherals
}

var _ cpu.Bus = (*bus)(nil)

func (b *bus) Read(address uint16) uint8 {
	return b.mem.Read(address)
}

func (b *bus) Peek(address uint16) uint8 {
	return b.mem.Peek(address)
}

func (b *bus) Write(address uint16, value uint8) {
	b.mem.Write(address, value)
}

func (b *bus) Tick(cycles int) {
	b.periph.Step(cycles)
}

func (b *bus) ProcessInterrupts(c *cpu.CPU) {
	b.periph.ProcessInterrupts(c)
}

func (b *bus) SetIME(enabled bool) {
	b.periph.SetIME(enabled)
}
