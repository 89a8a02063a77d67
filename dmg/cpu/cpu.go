package cpu

import (
	"fmt"
	"log/slog"

	"github.com/valerio/go-libdmg/dmg/bit"
)

// Bus connects the CPU to memory and to the components clocked with it.
type Bus interface {
	Reader
	Read(address uint16) uint8
	Write(address uint16, value uint8)
	// Tick advances every component clocked alongside the CPU.
	Tick(cycles int)
	// ProcessInterrupts is called between instructions and may redirect
	// the CPU through Interrupt.
	ProcessInterrupts(c *CPU)
	SetIME(enabled bool)
}

// CPU is the SM83 core: registers, the instruction in flight and the
// fetch/decode/execute loop.
type CPU struct {
	r  [8]uint8 // indexed by Reg8
	sp uint16
	pc uint16

	// instruction in flight
	opcode      uint8
	params      [2]uint8
	instrCycles int

	halted bool

	bus Bus
	log *slog.Logger
}

// New returns a CPU with all registers cleared, about to execute 0x0000.
func New(bus Bus, log *slog.Logger) *CPU {
	return &CPU{
		bus: bus,
		log: log,
	}
}

// ResetPostBoot loads the register values the DMG boot ROM leaves behind,
// with PC at the cartridge entry point.
func (c *CPU) ResetPostBoot() {
	c.SetReg16(AF, 0x01B0)
	c.SetReg16(BC, 0x0013)
	c.SetReg16(DE, 0x00D8)
	c.SetReg16(HL, 0x014D)
	c.sp = 0xFFFE
	c.pc = 0x0100
	c.instrCycles = 0
	c.halted = false
}

// Step advances the CPU by exactly the given number of cycles. Instructions
// execute when they are fetched and then owe their cycle cost, which is
// paid across as many Step calls as needed. The bus is ticked for every
// cycle consumed, so peripherals stay in lockstep with instruction boundaries.
func (c *CPU) Step(cycles int) {
	for cycles > 0 {
		if c.instrCycles == 0 {
			c.bus.ProcessInterrupts(c)
			c.instrCycles = c.next()
		}

		n := min(cycles, c.instrCycles)
		cycles -= n
		c.instrCycles -= n
		c.bus.Tick(n)
	}
}

// Exec runs until the end of the current instruction, starting a new one
// if none is in flight. Returns the amount of cycles consumed.
func (c *CPU) Exec() int {
	n := c.instrCycles
	if n == 0 {
		c.bus.ProcessInterrupts(c)
		n = c.next()
		c.instrCycles = n
	}
	c.Step(n)
	return n
}

// next fetches and executes one instruction, returning its cycle cost.
func (c *CPU) next() int {
	if c.halted {
		return 4
	}

	c.opcode = c.readImmediate()
	c.params = [2]uint8{}
	return opcodes[c.opcode](c)
}

// Interrupt pushes the current PC and jumps to the given vector, waking
// the CPU from HALT.
func (c *CPU) Interrupt(vector uint16) {
	c.halted = false
	c.pushStack(c.pc)
	c.pc = vector
}

// readImmediate reads the byte at PC and increments PC.
func (c *CPU) readImmediate() uint8 {
	n := c.bus.Read(c.pc)
	c.pc++
	return n
}

// readParam reads the byte at PC into the parameter buffer.
func (c *CPU) readParam() uint8 {
	c.params[0] = c.readImmediate()
	return c.params[0]
}

// readParamWord reads the little endian word at PC into the parameter buffer.
func (c *CPU) readParamWord() uint16 {
	c.params[0] = c.readImmediate()
	c.params[1] = c.readImmediate()
	return bit.Combine(c.params[1], c.params[0])
}

func (c *CPU) pushStack(value uint16) {
	c.sp--
	c.bus.Write(c.sp, bit.High(value))
	c.sp--
	c.bus.Write(c.sp, bit.Low(value))
}

func (c *CPU) popStack() uint16 {
	low := c.bus.Read(c.sp)
	c.sp++
	high := c.bus.Read(c.sp)
	c.sp++
	return bit.Combine(high, low)
}

// Halted reports whether the CPU is waiting for an interrupt.
func (c *CPU) Halted() bool {
	return c.halted
}

// Opcode returns the last fetched opcode.
func (c *CPU) Opcode() uint8 {
	return c.opcode
}

// InstrCycles returns the cycles still owed by the instruction in flight.
func (c *CPU) InstrCycles() int {
	return c.instrCycles
}

// NextInstruction returns the mnemonic of the instruction at PC.
func (c *CPU) NextInstruction() string {
	op := c.bus.Peek(c.pc)
	if op == 0xCB {
		return CBOpcodeName(c.bus.Peek(c.pc + 1))
	}
	return OpcodeName(op)
}

func (c *CPU) String() string {
	return fmt.Sprintf("A:%02X F:%s B:%02X C:%02X D:%02X E:%02X H:%02X L:%02X SP:%04X PC:%04X",
		c.r[A], c.FlagString(), c.r[B], c.r[C], c.r[D], c.r[E], c.r[H], c.r[L], c.sp, c.pc)
}

// State is the serializable form of the CPU.
type State struct {
	A           uint8    `yaml:"a"`
	F           uint8    `yaml:"f"`
	B           uint8    `yaml:"b"`
	C           uint8    `yaml:"c"`
	D           uint8    `yaml:"d"`
	E           uint8    `yaml:"e"`
	H           uint8    `yaml:"h"`
	L           uint8    `yaml:"l"`
	SP          uint16   `yaml:"sp"`
	PC          uint16   `yaml:"pc"`
	Opcode      uint8    `yaml:"opcode"`
	Params      [2]uint8 `yaml:"params,flow"`
	InstrCycles int      `yaml:"instr_cycles"`
	Halted      bool     `yaml:"halted"`
}

// Snapshot captures all CPU state.
func (c *CPU) Snapshot() State {
	return State{
		A: c.r[A], F: c.r[F], B: c.r[B], C: c.r[C],
		D: c.r[D], E: c.r[E], H: c.r[H], L: c.r[L],
		SP:          c.sp,
		PC:          c.pc,
		Opcode:      c.opcode,
		Params:      c.params,
		InstrCycles: c.instrCycles,
		Halted:      c.halted,
	}
}

// maxInstrCycles is the cost of the slowest instruction (taken CALL).
const maxInstrCycles = 24

// Restore replaces the CPU state with a snapshot.
func (c *CPU) Restore(s State) error {
	if s.InstrCycles < 0 || s.InstrCycles > maxInstrCycles {
		return fmt.Errorf("instruction cycles out of range: %d", s.InstrCycles)
	}

	c.r = [8]uint8{s.B, s.C, s.D, s.E, s.H, s.L, s.F & flagMask, s.A}
	c.sp = s.SP
	c.pc = s.PC
	c.opcode = s.Opcode
	c.params = s.Params
	c.instrCycles = s.InstrCycles
	c.halted = s.Halted
	return nil
}
