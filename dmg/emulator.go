// Package dmg wires the CPU, the memory controller and the peripherals
// into a steppable Game Boy core.
package dmg

import (
	"log/slog"
	"os"

	"github.com/valerio/go-libdmg/dmg/addr"
	"github.com/valerio/go-libdmg/dmg/cart"
	"github.com/valerio/go-libdmg/dmg/cpu"
	"github.com/valerio/go-libdmg/dmg/memory"
	"github.com/valerio/go-libdmg/dmg/peripherals"
)

// CyclesPerFrame is the length of one LCD frame: 154 lines of 456 cycles.
const CyclesPerFrame = 70224

// Config selects what is plugged into a new emulator.
type Config struct {
	// BootROM is mapped over 0x0000-0x00FF until the program writes to
	// 0xFF50. May be nil.
	BootROM *memory.BootROM
	// Cartridge may be nil, in which case ROM reads return 0.
	Cartridge *cart.Cartridge
	Logger    *slog.Logger
	// SkipBoot starts at 0x0100 with the registers the boot ROM leaves behind.
	SkipBoot bool
}

// Emulator represents the root struct and entry point for running the emulation
type Emulator struct {
	log    *slog.Logger
	cpu    *cpu.CPU
	mem    *memory.Controller
	periph *peripherals.Peripherals
	boot   *memory.BootROM
	cart   *cart.Cartridge
}

// New creates a new emulator instance in the power-on state.
func New(cfg Config) *Emulator {
	log := cfg.Logger
	if log == nil {
		log = defaultLogger()
	}

	e := &Emulator{
		log:  log,
		boot: cfg.BootROM,
		cart: cfg.Cartridge,
	}
	e.wire(peripherals.New(log))

	if cfg.SkipBoot {
		e.mem.Write(addr.BOOT, 1)
		e.cpu.ResetPostBoot()
	}

	return e
}

func defaultLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// wire builds the memory controller and the CPU around a peripheral set.
func (e *Emulator) wire(periph *peripherals.Peripherals) {
	e.periph = periph
	e.mem = memory.New(e.log, periph, e.boot, e.cart)
	e.cpu = cpu.New(&bus{mem: e.mem, periph: periph}, e.log)
}

// NewWithFiles creates a new emulator instance and loads the files specified
// into it. Either path may be empty.
func NewWithFiles(bootPath, cartPath string, logger *slog.Logger) (*Emulator, error) {
	if logger == nil {
		logger = defaultLogger()
	}
	cfg := Config{Logger: logger}

	if bootPath != "" {
		boot, err := memory.LoadBootROM(bootPath)
		if err != nil {
			return nil, err
		}
		logger.Info("Loaded boot ROM", "path", bootPath)
		cfg.BootROM = boot
	}

	if cartPath != "" {
		c, err := cart.Load(cartPath)
		if err != nil {
			return nil, err
		}
		logger.Info("Loaded cartridge", "path", cartPath, "title", c.Title, "size", c.Size())
		cfg.Cartridge = c
	}

	cfg.SkipBoot = cfg.BootROM == nil
	return New(cfg), nil
}

// Step advances the whole system by the given number of cycles.
func (e *Emulator) Step(cycles int) {
	e.cpu.Step(cycles)
}

// StepInstruction finishes the instruction in flight, or runs the next
// one, and returns the cycles consumed.
func (e *Emulator) StepInstruction() int {
	return e.cpu.Exec()
}

// StepFrame advances by one LCD frame.
func (e *Emulator) StepFrame() {
	e.cpu.Step(CyclesPerFrame)
}

// CPU returns the processor.
func (e *Emulator) CPU() *cpu.CPU {
	return e.cpu
}

// Memory returns the memory controller.
func (e *Emulator) Memory() *memory.Controller {
	return e.mem
}

// Peripherals returns the I/O register file.
func (e *Emulator) Peripherals() *peripherals.Peripherals {
	return e.periph
}

// Cartridge returns the loaded cartridge, or nil.
func (e *Emulator) Cartridge() *cart.Cartridge {
	return e.cart
}
