// Package monitor is a terminal inspector for a running emulator. It shows
// the CPU registers, the peripheral state and recent log records, and lets
// the user step, run and save the machine.
package monitor

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/gdamore/tcell/v2"
	"github.com/valerio/go-libdmg/dmg"
	"github.com/valerio/go-libdmg/dmg/addr"
	"github.com/valerio/go-libdmg/dmg/cpu"
	"github.com/valerio/go-libdmg/dmg/logbuf"
)

const (
	registerHeight = 8
	disasmHeight   = 6
	minTermWidth   = 60
	minTermHeight  = 20
)

// Options configures a monitor.
type Options struct {
	// Logs is shown in the log pane. May be nil.
	Logs *logbuf.Buffer
	// Logger receives the monitor's own messages.
	Logger *slog.Logger
	// StatePath is where the save key writes the machine state.
	StatePath string
}

// Monitor drives an emulator from a tcell screen.
type Monitor struct {
	screen    tcell.Screen
	emu       *dmg.Emulator
	logs      *logbuf.Buffer
	log       *slog.Logger
	logLevel  slog.Level
	statePath string

	pace    pacer
	running bool
	quit    bool
}

// Open initializes the terminal and returns a monitor drawing on it.
func Open(emu *dmg.Emulator, opts Options) (*Monitor, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize terminal: %w", err)
	}
	if err := screen.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize terminal: %w", err)
	}
	return New(screen, emu, opts), nil
}

// New returns a monitor drawing on an already initialized screen.
func New(screen tcell.Screen, emu *dmg.Emulator, opts Options) *Monitor {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	screen.SetStyle(tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorWhite))
	screen.Clear()

	return &Monitor{
		screen:    screen,
		emu:       emu,
		logs:      opts.Logs,
		log:       log,
		logLevel:  slog.LevelInfo,
		statePath: opts.StatePath,
	}
}

// Run processes input and redraws until the user quits. While paused it
// blocks on input; while running it advances one frame per refresh.
func (m *Monitor) Run() {
	m.Draw()
	for !m.quit {
		if m.running {
			for m.screen.HasPendingEvent() {
				m.HandleEvent(m.screen.PollEvent())
			}
			if m.running {
				m.emu.StepFrame()
				m.pace.wait()
			}
		} else {
			m.HandleEvent(m.screen.PollEvent())
		}
		m.Draw()
	}
}

// Close restores the terminal.
func (m *Monitor) Close() {
	m.pace.stop()
	m.screen.Fini()
}

// Running reports whether the emulator is free running.
func (m *Monitor) Running() bool {
	return m.running
}

// Done reports whether the user asked to quit.
func (m *Monitor) Done() bool {
	return m.quit
}

// HandleEvent applies a single terminal event. A nil event means the
// screen was finalized.
func (m *Monitor) HandleEvent(ev tcell.Event) {
	switch ev := ev.(type) {
	case nil:
		m.quit = true
	case *tcell.EventResize:
		m.screen.Sync()
	case *tcell.EventKey:
		switch ev.Key() {
		case tcell.KeyEscape, tcell.KeyCtrlC:
			m.quit = true
		case tcell.KeyRune:
			m.handleRune(ev.Rune())
		}
	}
}

func (m *Monitor) handleRune(r rune) {
	switch r {
	case 'q':
		m.quit = true
	case 'n':
		m.pause()
		m.emu.StepInstruction()
	case 'f':
		m.pause()
		m.emu.StepFrame()
	case ' ':
		m.running = !m.running
		if m.running {
			m.pace.start()
			m.log.Info("Running")
		} else {
			m.pause()
			m.log.Info("Paused")
		}
	case 's':
		m.save()
	case '+', '=':
		m.changeLogLevel(1)
	case '-', '_':
		m.changeLogLevel(-1)
	}
}

func (m *Monitor) pause() {
	m.running = false
	m.pace.stop()
}

func (m *Monitor) save() {
	if m.statePath == "" {
		m.log.Warn("No save state path configured")
		return
	}

	f, err := os.Create(m.statePath)
	if err != nil {
		m.log.Error("Failed to save state", "err", err)
		return
	}
	defer f.Close()

	if err := m.emu.SaveState(f); err != nil {
		m.log.Error("Failed to save state", "err", err)
		return
	}
	m.log.Info("Saved state", "path", m.statePath)
}

// changeLogLevel widens (1) or narrows (-1) the log pane filter.
func (m *Monitor) changeLogLevel(direction int) {
	oldLevel := m.logLevel
	switch direction {
	case -1:
		switch m.logLevel {
		case slog.LevelDebug:
			m.logLevel = slog.LevelInfo
		case slog.LevelInfo:
			m.logLevel = slog.LevelWarn
		case slog.LevelWarn:
			m.logLevel = slog.LevelError
		}
	case 1:
		switch m.logLevel {
		case slog.LevelError:
			m.logLevel = slog.LevelWarn
		case slog.LevelWarn:
			m.logLevel = slog.LevelInfo
		case slog.LevelInfo:
			m.logLevel = slog.LevelDebug
		}
	}
	if oldLevel != m.logLevel {
		m.log.Info("Log filter changed", "from", oldLevel, "to", m.logLevel)
	}
}

// Draw renders the whole screen.
func (m *Monitor) Draw() {
	m.screen.Clear()

	termWidth, termHeight := m.screen.Size()
	if termWidth < minTermWidth || termHeight < minTermHeight {
		style := tcell.StyleDefault.Foreground(tcell.ColorRed)
		msg := fmt.Sprintf("Terminal too small! Need at least %dx%d", minTermWidth, minTermHeight)
		m.drawText(0, termHeight/2, termWidth, msg, style)
		m.screen.Show()
		return
	}

	titleStyle := tcell.StyleDefault.Foreground(tcell.ColorYellow)
	m.drawText(0, 0, termWidth, "libdmg monitor  [n]ext [f]rame [space]run [s]ave [q]uit", titleStyle)

	m.drawRegisters(1, 2, termWidth/2)
	m.drawPeripherals(termWidth/2+1, 2, termWidth/2-1)
	m.drawDisassembly(1, registerHeight+3, termWidth-2)
	m.drawLogs(1, registerHeight+disasmHeight+4, termWidth-2, termHeight)

	m.screen.Show()
}

func (m *Monitor) drawRegisters(startX, startY, width int) {
	c := m.emu.CPU()

	status := "PAUSED"
	if m.running {
		status = "RUNNING"
	}
	halted := "no"
	if c.Halted() {
		halted = "yes"
	}

	lines := []string{
		fmt.Sprintf("Status: %s", status),
		fmt.Sprintf("A: 0x%02X  F: %s", c.Reg8(cpu.A), c.FlagString()),
		fmt.Sprintf("B: 0x%02X  C: 0x%02X", c.Reg8(cpu.B), c.Reg8(cpu.C)),
		fmt.Sprintf("D: 0x%02X  E: 0x%02X", c.Reg8(cpu.D), c.Reg8(cpu.E)),
		fmt.Sprintf("H: 0x%02X  L: 0x%02X", c.Reg8(cpu.H), c.Reg8(cpu.L)),
		fmt.Sprintf("SP: 0x%04X  PC: 0x%04X", c.Reg16(cpu.SP), c.Reg16(cpu.PC)),
		fmt.Sprintf("Halted: %s  Owed: %d", halted, c.InstrCycles()),
		fmt.Sprintf("Next: %s", c.NextInstruction()),
	}

	style := tcell.StyleDefault.Foreground(tcell.ColorBlue)
	for i, line := range lines {
		m.drawText(startX, startY+i, width, line, style)
	}
}

func (m *Monitor) drawPeripherals(startX, startY, width int) {
	p := m.emu.Peripherals()
	timer := p.Timer()
	lcd := p.LCD()

	ime := "OFF"
	if p.IME() {
		ime = "ON"
	}

	lines := []string{
		fmt.Sprintf("DIV: 0x%02X  TIMA: 0x%02X", timer.Read(addr.DIV), timer.Read(addr.TIMA)),
		fmt.Sprintf("TMA: 0x%02X  TAC: 0x%02X", timer.Read(addr.TMA), timer.Read(addr.TAC)),
		fmt.Sprintf("LCD: %s  LY: %d", lcd.Mode(), lcd.LY()),
		fmt.Sprintf("IME: %s  IE: 0x%02X  IF: 0x%02X", ime,
			p.PeekReg(uint8(addr.IE-addr.IOBase)), p.PeekReg(uint8(addr.IF-addr.IOBase))),
		fmt.Sprintf("Boot ROM: %v", m.emu.Memory().BootMapped()),
	}
	if c := m.emu.Cartridge(); c != nil {
		lines = append(lines, fmt.Sprintf("Cart: %s", c.Title))
	}

	style := tcell.StyleDefault.Foreground(tcell.ColorGreen)
	for i, line := range lines {
		m.drawText(startX, startY+i, width, line, style)
	}
}

func (m *Monitor) drawDisassembly(startX, startY, width int) {
	pc := m.emu.CPU().Reg16(cpu.PC)
	currentStyle := tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true)
	style := tcell.StyleDefault.Foreground(tcell.ColorWhite)

	for i, line := range cpu.DisassembleRange(m.emu.Memory(), pc, disasmHeight) {
		if i == 0 {
			m.drawText(startX, startY+i, width, "> "+line.String(), currentStyle)
			continue
		}
		m.drawText(startX, startY+i, width, "  "+line.String(), style)
	}
}

func (m *Monitor) drawLogs(startX, startY, width, termHeight int) {
	if m.logs == nil {
		return
	}

	availableHeight := termHeight - startY - 1
	if width <= 0 || availableHeight <= 0 {
		return
	}

	debugStyle := tcell.StyleDefault.Foreground(tcell.ColorGray)
	infoStyle := tcell.StyleDefault.Foreground(tcell.ColorBlue)
	warnStyle := tcell.StyleDefault.Foreground(tcell.ColorYellow)
	errStyle := tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true)

	y := startY
	for _, entry := range m.logs.Recent(0) {
		if entry.Level < m.logLevel {
			continue
		}
		if y >= startY+availableHeight {
			break
		}

		style := infoStyle
		switch entry.Level {
		case slog.LevelDebug:
			style = debugStyle
		case slog.LevelWarn:
			style = warnStyle
		case slog.LevelError:
			style = errStyle
		}

		text := logbuf.Format(entry)
		if len(text) > width && width > 3 {
			text = text[:width-3] + "..."
		}
		m.drawText(startX, y, width, text, style)
		y++
	}
}

func (m *Monitor) drawText(x, y, width int, text string, style tcell.Style) {
	for i, ch := range []rune(text) {
		if i >= width {
			break
		}
		m.screen.SetContent(x+i, y, ch, nil, style)
	}
}
