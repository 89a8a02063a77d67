package cpu

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valerio/go-libdmg/dmg/logbuf"
)

// fakeBus is a flat 64KB address space that counts ticks and dispatches
// a single queued interrupt.
type fakeBus struct {
	mem     [0x10000]uint8
	ticks   int
	ime     bool
	pending uint16
}

func (b *fakeBus) Read(address uint16) uint8         { return b.mem[address] }
func (b *fakeBus) Peek(address uint16) uint8         { return b.mem[address] }
func (b *fakeBus) Write(address uint16, value uint8) { b.mem[address] = value }
func (b *fakeBus) Tick(cycles int)                   { b.ticks += cycles }
func (b *fakeBus) SetIME(enabled bool)               { b.ime = enabled }

func (b *fakeBus) ProcessInterrupts(c *CPU) {
	if b.pending != 0 {
		c.Interrupt(b.pending)
		b.pending = 0
	}
}

func newTestCPU(program ...uint8) (*CPU, *fakeBus, *logbuf.Buffer) {
	bus := &fakeBus{}
	copy(bus.mem[:], program)
	logs := logbuf.New(32)
	return New(bus, logbuf.NewLogger(logs, slog.LevelDebug)), bus, logs
}

func TestCPU_PowerOn(t *testing.T) {
	c, _, _ := newTestCPU()

	for _, r := range []Reg16{AF, BC, DE, HL, SP, PC} {
		assert.Equal(t, uint16(0), c.Reg16(r), r.String())
	}
	assert.False(t, c.Halted())
	assert.Equal(t, 0, c.InstrCycles())
}

func TestCPU_ResetPostBoot(t *testing.T) {
	c, _, _ := newTestCPU()
	c.ResetPostBoot()

	assert.Equal(t, uint16(0x01B0), c.Reg16(AF))
	assert.Equal(t, uint16(0x0013), c.Reg16(BC))
	assert.Equal(t, uint16(0x00D8), c.Reg16(DE))
	assert.Equal(t, uint16(0x014D), c.Reg16(HL))
	assert.Equal(t, uint16(0xFFFE), c.Reg16(SP))
	assert.Equal(t, uint16(0x0100), c.Reg16(PC))
}

func TestCPU_StepPaysInstructionCost(t *testing.T) {
	// LD SP,0xFFFE
	c, bus, _ := newTestCPU(0x31, 0xFE, 0xFF)

	c.Step(4)
	assert.Equal(t, uint16(0xFFFE), c.Reg16(SP), "executes when fetched")
	assert.Equal(t, uint16(3), c.Reg16(PC))
	assert.Equal(t, 8, c.InstrCycles())

	c.Step(8)
	assert.Equal(t, 0, c.InstrCycles())
	assert.Equal(t, uint16(3), c.Reg16(PC))
	assert.Equal(t, 12, bus.ticks)

	c.Step(1)
	assert.Equal(t, uint16(4), c.Reg16(PC), "next instruction starts")
	assert.Equal(t, 3, c.InstrCycles())
}

func TestCPU_Exec(t *testing.T) {
	// LD SP,0xFFFE; NOP
	c, bus, _ := newTestCPU(0x31, 0xFE, 0xFF, 0x00)

	assert.Equal(t, 12, c.Exec())
	assert.Equal(t, 4, c.Exec())
	assert.Equal(t, uint16(4), c.Reg16(PC))
	assert.Equal(t, 16, bus.ticks)

	c.Step(1)
	assert.Equal(t, 3, c.Exec(), "finishes the instruction in flight")
	assert.Equal(t, 20, bus.ticks)
}

// granularityProgram loops through a call, loads and arithmetic forever.
var granularityProgram = []uint8{
	0x31, 0xFE, 0xFF, // LD SP,0xFFFE
	0x3E, 0x05, // LD A,0x05
	0x06, 0x03, // LD B,0x03
	0x80,             // ADD A,B
	0xCD, 0x20, 0x00, // CALL 0x0020
	0x05,       // DEC B
	0x20, 0xF9, // JR NZ,-7
	0x18, 0xF3, // JR -13
}

func runInChunks(chunks []int, total int) (*CPU, *fakeBus) {
	c, bus, _ := newTestCPU(granularityProgram...)
	bus.mem[0x20] = 0x3C // INC A
	bus.mem[0x21] = 0xC9 // RET

	for i := 0; total > 0; i++ {
		n := min(chunks[i%len(chunks)], total)
		c.Step(n)
		total -= n
	}
	return c, bus
}

func TestCPU_StepGranularity(t *testing.T) {
	const total = 4000

	want, wantBus := runInChunks([]int{total}, total)

	testCases := []struct {
		desc   string
		chunks []int
	}{
		{desc: "single cycles", chunks: []int{1}},
		{desc: "instruction sized", chunks: []int{4}},
		{desc: "irregular", chunks: []int{3, 5, 7, 1, 24}},
		{desc: "frames", chunks: []int{456}},
	}
	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			got, gotBus := runInChunks(tC.chunks, total)
			assert.Equal(t, want.Snapshot(), got.Snapshot())
			assert.Equal(t, wantBus.mem, gotBus.mem)
			assert.Equal(t, total, gotBus.ticks)
		})
	}
}

func TestCPU_HaltAndWake(t *testing.T) {
	// HALT
	c, bus, _ := newTestCPU(0x76)
	c.SetReg16(SP, 0xFFFE)

	c.Step(4)
	assert.True(t, c.Halted())
	assert.Equal(t, uint16(1), c.Reg16(PC))

	c.Step(40)
	assert.True(t, c.Halted())
	assert.Equal(t, uint16(1), c.Reg16(PC), "halted CPU does not fetch")

	bus.pending = 0x0050
	c.Step(4)

	assert.False(t, c.Halted())
	assert.Equal(t, uint16(0x0051), c.Reg16(PC), "NOP at the vector executed")
	assert.Equal(t, uint16(0xFFFC), c.Reg16(SP))
	assert.Equal(t, uint8(0x01), bus.mem[0xFFFC])
	assert.Equal(t, uint8(0x00), bus.mem[0xFFFD])
}

func TestCPU_InterruptBetweenInstructions(t *testing.T) {
	// LD A,0x42; NOP
	c, bus, _ := newTestCPU(0x3E, 0x42, 0x00)
	c.SetReg16(SP, 0xFFFE)

	c.Step(2)
	bus.pending = 0x0050
	c.Step(6)
	assert.Equal(t, uint16(2), c.Reg16(PC), "not dispatched mid-instruction")
	assert.Equal(t, 0, c.InstrCycles())

	c.Step(1)
	assert.Equal(t, uint16(0x0051), c.Reg16(PC))
	assert.Equal(t, uint16(0x0002), uint16(bus.mem[0xFFFD])<<8|uint16(bus.mem[0xFFFC]))
}

func TestCPU_SnapshotRestore(t *testing.T) {
	c, bus := runInChunks([]int{7}, 700)

	state := c.Snapshot()
	other, otherBus, _ := newTestCPU()
	otherBus.mem = bus.mem
	require.NoError(t, other.Restore(state))
	assert.Equal(t, state, other.Snapshot())

	c.Step(333)
	other.Step(333)
	assert.Equal(t, c.Snapshot(), other.Snapshot())
	assert.Equal(t, bus.mem, otherBus.mem)
}

func TestCPU_RestoreValidates(t *testing.T) {
	c, _, _ := newTestCPU()

	err := c.Restore(State{InstrCycles: 25})
	assert.Error(t, err)

	err = c.Restore(State{InstrCycles: -1})
	assert.Error(t, err)

	require.NoError(t, c.Restore(State{A: 0x12, F: 0xFF, PC: 0x0150}))
	assert.Equal(t, uint16(0x12F0), c.Reg16(AF))
	assert.Equal(t, uint16(0x0150), c.Reg16(PC))
}

func TestCPU_stack(t *testing.T) {
	c, _, _ := newTestCPU()

	c.sp = 0xFFFF
	c.pushStack(0x0102)

	assert.Equal(t, uint16(0xFFFD), c.sp)

	popped := c.popStack()

	assert.Equal(t, uint16(0x0102), popped)
	assert.Equal(t, uint16(0xFFFF), c.sp)
}

func TestCPU_NextInstruction(t *testing.T) {
	c, bus, _ := newTestCPU(0x31, 0xFE, 0xFF, 0xCB, 0x7C)

	assert.Equal(t, "LD SP,nn", c.NextInstruction())
	c.Exec()
	assert.Equal(t, "BIT 7,H", c.NextInstruction())

	bus.mem[3] = 0xD3
	assert.Equal(t, "ILLEGAL", c.NextInstruction())
}

func TestCPU_String(t *testing.T) {
	c, _, _ := newTestCPU()
	c.ResetPostBoot()

	assert.Equal(t, "A:01 F:Z-HC B:00 C:13 D:00 E:D8 H:01 L:4D SP:FFFE PC:0100", c.String())
}
