package dmg

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valerio/go-libdmg/dmg/addr"
	"github.com/valerio/go-libdmg/dmg/cart"
	"github.com/valerio/go-libdmg/dmg/cpu"
	"github.com/valerio/go-libdmg/dmg/logbuf"
	"github.com/valerio/go-libdmg/dmg/memory"
	"gopkg.in/yaml.v3"
)

// timerProgram enables the timer at its fastest rate and fills work RAM
// forever, counting timer interrupts in C.
func timerProgram() []byte {
	rom := make([]byte, 0x8000)
	copy(rom[0x0050:], []byte{
		0x0C, // INC C
		0xD9, // RETI
	})
	copy(rom[0x0100:], []byte{
		0x00,             // NOP
		0xC3, 0x50, 0x01, // JP 0x0150
	})
	copy(rom[0x0134:], "TIMERTEST")
	copy(rom[0x0150:], []byte{
		0x3E, 0x05, // LD A,0x05
		0xE0, 0x07, // LDH (TAC),A
		0x3E, 0xF0, // LD A,0xF0
		0xE0, 0x06, // LDH (TMA),A
		0x21, 0x00, 0xC0, // LD HL,0xC000
		0x3C,       // INC A
		0x22,       // LD (HL+),A
		0x18, 0xFC, // JR -4
	})
	return rom
}

func newTestEmulator(t *testing.T, boot []byte, skipBoot bool) (*Emulator, *logbuf.Buffer) {
	t.Helper()

	c, err := cart.New(timerProgram())
	require.NoError(t, err)

	cfg := Config{Cartridge: c, SkipBoot: skipBoot}
	if boot != nil {
		cfg.BootROM, err = memory.NewBootROM(boot)
		require.NoError(t, err)
	}

	logs := logbuf.New(64)
	cfg.Logger = logbuf.NewLogger(logs, slog.LevelDebug)
	return New(cfg), logs
}

func TestEmulator_BootROMLoadsStackPointer(t *testing.T) {
	boot := make([]byte, memory.BootROMSize)
	copy(boot, []byte{0x31, 0xFE, 0xFF}) // LD SP,0xFFFE

	e, _ := newTestEmulator(t, boot, false)
	e.Step(12)

	assert.Equal(t, uint16(0xFFFE), e.CPU().Reg16(cpu.SP))
	assert.Equal(t, uint16(0x0003), e.CPU().Reg16(cpu.PC))
	assert.Equal(t, 0, e.CPU().InstrCycles())
}

func TestEmulator_BootROMHandoff(t *testing.T) {
	boot := make([]byte, memory.BootROMSize)
	copy(boot, []byte{
		0x3E, 0x01, // LD A,0x01
		0xE0, 0x50, // LDH (BOOT),A
	})

	e, logs := newTestEmulator(t, boot, false)
	assert.True(t, e.Memory().BootMapped())
	assert.Equal(t, uint8(0x3E), e.Memory().Read(0x0000))
	assert.Equal(t, uint8(0), e.Memory().Read(addr.BOOT))

	e.Step(20)

	assert.False(t, e.Memory().BootMapped())
	assert.Equal(t, uint8(0x00), e.Memory().Read(0x0000), "cartridge visible")
	assert.Equal(t, uint8(1), e.Memory().Read(addr.BOOT))
	assert.Equal(t, 1, logs.Count(slog.LevelInfo, "Boot ROM unmapped"))
}

func TestEmulator_SkipBoot(t *testing.T) {
	e, _ := newTestEmulator(t, make([]byte, memory.BootROMSize), true)

	assert.Equal(t, uint16(0x0100), e.CPU().Reg16(cpu.PC))
	assert.Equal(t, uint16(0xFFFE), e.CPU().Reg16(cpu.SP))
	assert.Equal(t, uint16(0x01B0), e.CPU().Reg16(cpu.AF))
	assert.False(t, e.Memory().BootMapped())
	assert.Equal(t, "TIMERTEST", e.Cartridge().Title)
}

func TestEmulator_StepZeroIsNoop(t *testing.T) {
	e, _ := newTestEmulator(t, nil, true)
	before := e.Snapshot()

	e.Step(0)
	assert.Equal(t, before, e.Snapshot())
}

func TestEmulator_TimerInterrupt(t *testing.T) {
	e, logs := newTestEmulator(t, nil, true)

	e.Step(20000)

	assert.Greater(t, e.CPU().Reg8(cpu.C), uint8(0x13), "handler ran")
	assert.Equal(t, uint8(0x05), e.Memory().Read(addr.TAC))
	assert.NotZero(t, e.Memory().Read(0xC000))
	assert.Zero(t, logs.Count(slog.LevelWarn, "Unknown opcode, executing as NOP"))
}

func TestEmulator_VBlankLatched(t *testing.T) {
	e, _ := newTestEmulator(t, nil, true)

	e.StepFrame()
	assert.Equal(t, uint8(addr.VBlankInterrupt), e.Memory().Read(addr.IF)&uint8(addr.VBlankInterrupt))
}

func TestEmulator_StepInstruction(t *testing.T) {
	e, _ := newTestEmulator(t, nil, true)

	assert.Equal(t, 4, e.StepInstruction())  // NOP
	assert.Equal(t, 16, e.StepInstruction()) // JP
	assert.Equal(t, uint16(0x0150), e.CPU().Reg16(cpu.PC))
}

func runEmulator(t *testing.T, chunk, total int) State {
	e, _ := newTestEmulator(t, nil, true)
	for total > 0 {
		n := min(chunk, total)
		e.Step(n)
		total -= n
	}
	return e.Snapshot()
}

func TestEmulator_StepGranularity(t *testing.T) {
	const total = 3 * CyclesPerFrame / 2

	want := runEmulator(t, total, total)

	testCases := []struct {
		desc  string
		chunk int
	}{
		{desc: "single cycle", chunk: 1},
		{desc: "odd chunks", chunk: 7},
		{desc: "scanline", chunk: 456},
		{desc: "frame", chunk: CyclesPerFrame},
	}
	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			assert.Equal(t, want, runEmulator(t, tC.chunk, total))
		})
	}
}

// traceBus records every memory access the CPU makes.
type traceBus struct {
	*bus
	trace []string
}

func (b *traceBus) Read(address uint16) uint8 {
	value := b.bus.Read(address)
	b.trace = append(b.trace, fmt.Sprintf("R %04X %02X", address, value))
	return value
}

func (b *traceBus) Write(address uint16, value uint8) {
	b.trace = append(b.trace, fmt.Sprintf("W %04X %02X", address, value))
	b.bus.Write(address, value)
}

// runTraced moves the emulator's CPU onto a recording bus and runs it in small
// steps, appending the registers after each one.
func runTraced(t *testing.T, e *Emulator, cycles, step int) []string {
	t.Helper()

	tb := &traceBus{bus: &bus{mem: e.mem, periph: e.periph}}
	c := cpu.New(tb, e.log)
	require.NoError(t, c.Restore(e.cpu.Snapshot()))
	e.cpu = c

	for remaining := cycles; remaining > 0; remaining -= step {
		e.Step(min(step, remaining))
		tb.trace = append(tb.trace, c.String())
	}
	return tb.trace
}

func TestEmulator_SaveStateRoundTrip(t *testing.T) {
	e, _ := newTestEmulator(t, nil, true)
	e.Step(5003)

	var buf bytes.Buffer
	require.NoError(t, e.SaveState(&buf))
	assert.Contains(t, buf.String(), "version: 1")
	assert.Contains(t, buf.String(), "!!binary")

	loaded, _ := newTestEmulator(t, nil, false)
	require.NoError(t, loaded.LoadState(bytes.NewReader(buf.Bytes())))
	assert.Equal(t, e.Snapshot(), loaded.Snapshot())

	want := runTraced(t, e, CyclesPerFrame, 7)
	got := runTraced(t, loaded, CyclesPerFrame, 7)
	writes := 0
	for _, line := range want {
		if strings.HasPrefix(line, "W ") {
			writes++
		}
	}
	assert.NotZero(t, writes)
	assert.Equal(t, want, got)
	assert.Equal(t, e.Snapshot(), loaded.Snapshot())
}

func TestEmulator_LoadStateErrors(t *testing.T) {
	valid, _ := newTestEmulator(t, nil, true)
	valid.Step(1000)

	testCases := []struct {
		desc   string
		mutate func(s *State)
		raw    string
		want   error
	}{
		{desc: "future version", mutate: func(s *State) { s.Version = 2 }, want: ErrUnsupportedStateVersion},
		{desc: "missing version", mutate: func(s *State) { s.Version = 0 }, want: ErrUnsupportedStateVersion},
		{desc: "truncated RAM", mutate: func(s *State) { s.Memory.WRAM = s.Memory.WRAM[:10] }, want: ErrInvalidState},
		{desc: "boot ROM mapped without one", mutate: func(s *State) { s.Memory.BootMapped = true }, want: ErrInvalidState},
		{desc: "bad prescaler", mutate: func(s *State) { s.Peripherals.Timer.Prescaler = 3 }, want: ErrInvalidState},
		{desc: "DIV accumulator overflow", mutate: func(s *State) { s.Peripherals.Timer.DIVCycles = 4000000000000000 }, want: ErrInvalidState},
		{desc: "TIMA accumulator overflow", mutate: func(s *State) { s.Peripherals.Timer.TIMACycles = 1 << 40 }, want: ErrInvalidState},
		{desc: "LCD accumulator overflow", mutate: func(s *State) { s.Peripherals.LCD.Cycles = 1 << 40 }, want: ErrInvalidState},
		{desc: "prescaler disagrees with TAC", mutate: func(s *State) { s.Peripherals.Timer.Prescaler = 1024 }, want: ErrInvalidState},
		{desc: "timer stopped with TAC enabled", mutate: func(s *State) { s.Peripherals.Timer.Running = false }, want: ErrInvalidState},
		{desc: "instruction cycles out of range", mutate: func(s *State) { s.CPU.InstrCycles = 100 }, want: ErrInvalidState},
		{desc: "not yaml", raw: "{{{", want: ErrInvalidState},
		{desc: "empty", raw: "", want: ErrInvalidState},
		{desc: "bad binary", raw: "version: 1\nmemory:\n  vram: !!binary '***'\n", want: ErrInvalidState},
	}
	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			raw := []byte(tC.raw)
			if tC.mutate != nil {
				s := valid.Snapshot()
				tC.mutate(&s)

				var err error
				raw, err = yaml.Marshal(s)
				require.NoError(t, err)
			}

			e, _ := newTestEmulator(t, nil, true)
			before := e.Snapshot()

			err := e.LoadState(bytes.NewReader(raw))
			assert.ErrorIs(t, err, tC.want)
			assert.Equal(t, before, e.Snapshot(), "state untouched")
		})
	}
}

func TestEmulator_InspectionDoesNotLog(t *testing.T) {
	logs := logbuf.New(64)
	e := New(Config{SkipBoot: true, Logger: logbuf.NewLogger(logs, slog.LevelDebug)})
	before := logs.Len()

	lines := cpu.DisassembleRange(e.Memory(), e.CPU().Reg16(cpu.PC), 6)
	assert.Len(t, lines, 6)
	assert.Equal(t, "NOP", e.CPU().NextInstruction())
	assert.Equal(t, before, logs.Len())
}

func TestNewWithFiles(t *testing.T) {
	dir := t.TempDir()
	write := func(name string, data []byte) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, data, 0o644))
		return path
	}

	romPath := write("game.gb", timerProgram())
	bootPath := write("boot.bin", make([]byte, memory.BootROMSize))
	shortBoot := write("short.bin", make([]byte, 100))
	shortROM := write("short.gb", make([]byte, 0x100))

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	t.Run("cartridge only skips boot", func(t *testing.T) {
		e, err := NewWithFiles("", romPath, logger)
		require.NoError(t, err)
		assert.Equal(t, uint16(0x0100), e.CPU().Reg16(cpu.PC))
		assert.Equal(t, "TIMERTEST", e.Cartridge().Title)
	})

	t.Run("boot ROM starts at zero", func(t *testing.T) {
		e, err := NewWithFiles(bootPath, romPath, logger)
		require.NoError(t, err)
		assert.Equal(t, uint16(0x0000), e.CPU().Reg16(cpu.PC))
		assert.True(t, e.Memory().BootMapped())
	})

	t.Run("invalid boot ROM", func(t *testing.T) {
		_, err := NewWithFiles(shortBoot, romPath, logger)
		assert.ErrorIs(t, err, memory.ErrInvalidBootROM)
	})

	t.Run("invalid cartridge", func(t *testing.T) {
		_, err := NewWithFiles("", shortROM, logger)
		assert.ErrorIs(t, err, cart.ErrInvalidCartridge)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := NewWithFiles("", filepath.Join(dir, "nope.gb"), logger)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestNew_DefaultLogger(t *testing.T) {
	e := New(Config{})
	require.NotNil(t, e)

	e.Step(8)
	assert.Equal(t, uint16(2), e.CPU().Reg16(cpu.PC), "NOPs from an empty bus")
}
