// Package memory implements the DMG address decoder: a ROM-only controller
// that owns the work, video, object and high RAM buffers and forwards the
// I/O window to the peripherals.
package memory

import (
	"fmt"
	"log/slog"

	"github.com/valerio/go-libdmg/dmg/addr"
	"github.com/valerio/go-libdmg/dmg/bit"
	"github.com/valerio/go-libdmg/dmg/cart"
)

// Registers is the I/O register file mapped at 0xFF00-0xFF7F and 0xFFFF.
// Registers are addressed by their offset from 0xFF00.
type Registers interface {
	Reg(offset uint8) uint8
	SetReg(offset uint8, value uint8)
	// PeekReg reads like Reg but never logs.
	PeekReg(offset uint8) uint8
}

type memRegion uint8

const (
	regionBoot memRegion = iota
	regionROM
	regionVRAM
	regionSwitchRAM
	regionWRAM
	regionEcho
	regionOAM
	regionIO
)

// Controller decodes the 16 bit address space.
type Controller struct {
	log       *slog.Logger
	io        Registers
	boot      *BootROM
	cart      *cart.Cartridge
	regionMap [256]memRegion

	bootMapped bool

	vram [addr.VRAMEnd - addr.VRAMStart]byte
	wram [addr.WRAMEnd - addr.WRAMStart]byte
	oam  [addr.OAMEnd - addr.OAMStart]byte
	hram [addr.HRAMEnd - addr.HRAMStart]byte
}

// New creates a controller. boot and cartridge may be nil.
func New(log *slog.Logger, io Registers, boot *BootROM, cartridge *cart.Cartridge) *Controller {
	m := &Controller{
		log:        log,
		io:         io,
		boot:       boot,
		cart:       cartridge,
		bootMapped: boot != nil,
	}
	initRegionMap(m)
	return m
}

func initRegionMap(m *Controller) {
	// Boot ROM overlay: 0x0000-0x00FF
	m.regionMap[0x00] = regionBoot
	// ROM: 0x0100-0x7FFF
	for i := 0x01; i <= 0x7F; i++ {
		m.regionMap[i] = regionROM
	}
	// VRAM: 0x8000-0x9FFF
	for i := 0x80; i <= 0x9F; i++ {
		m.regionMap[i] = regionVRAM
	}
	// Switchable RAM: 0xA000-0xBFFF
	for i := 0xA0; i <= 0xBF; i++ {
		m.regionMap[i] = regionSwitchRAM
	}
	// Work RAM: 0xC000-0xDFFF
	for i := 0xC0; i <= 0xDF; i++ {
		m.regionMap[i] = regionWRAM
	}
	// Echo RAM: 0xE000-0xFDFF
	for i := 0xE0; i <= 0xFD; i++ {
		m.regionMap[i] = regionEcho
	}
	// OAM: 0xFE00-0xFE9F, reserved: 0xFEA0-0xFEFF
	m.regionMap[0xFE] = regionOAM
	// IO + HRAM + IE: 0xFF00-0xFFFF
	m.regionMap[0xFF] = regionIO
}

func (m *Controller) Read(address uint16) uint8 {
	return m.read(address, true)
}

// Peek returns the same value as Read without logging diagnostics, for
// debuggers and disassemblers.
func (m *Controller) Peek(address uint16) uint8 {
	return m.read(address, false)
}

func (m *Controller) read(address uint16, warn bool) uint8 {
	switch m.regionMap[address>>8] {
	case regionBoot:
		if m.bootMapped {
			return m.boot.Read(address)
		}
		return m.readROM(address, warn)
	case regionROM:
		return m.readROM(address, warn)
	case regionVRAM:
		return m.vram[address-addr.VRAMStart]
	case regionSwitchRAM:
		if warn {
			m.log.Warn("Read from switchable RAM, not implemented", "addr", fmt.Sprintf("0x%04X", address))
		}
		return 0
	case regionWRAM:
		return m.wram[address-addr.WRAMStart]
	case regionEcho:
		return m.wram[address-addr.EchoStart]
	case regionOAM:
		if address < addr.OAMEnd {
			return m.oam[address-addr.OAMStart]
		}
		if warn {
			m.log.Warn("Read from reserved area", "addr", fmt.Sprintf("0x%04X", address))
		}
		return 0
	default:
		return m.readHighPage(address, warn)
	}
}

func (m *Controller) readROM(address uint16, warn bool) uint8 {
	if m.cart == nil {
		if warn {
			m.log.Warn("Reading from ROM with no cartridge", "addr", fmt.Sprintf("0x%04X", address))
		}
		return 0
	}
	return m.cart.Read(address)
}

func (m *Controller) readHighPage(address uint16, warn bool) uint8 {
	switch {
	case address < addr.IOEnd, address == addr.IE:
		if address == addr.BOOT {
			return bit.FromBool(!m.bootMapped)
		}
		offset := uint8(address - addr.IOBase)
		if !warn {
			return m.io.PeekReg(offset)
		}
		return m.io.Reg(offset)
	default:
		return m.hram[address-addr.HRAMStart]
	}
}

func (m *Controller) Write(address uint16, value uint8) {
	switch m.regionMap[address>>8] {
	case regionBoot, regionROM:
		m.log.Warn("Writing to ROM",
			"addr", fmt.Sprintf("0x%04X", address),
			"value", fmt.Sprintf("0x%02X", value))
	case regionVRAM:
		m.vram[address-addr.VRAMStart] = value
	case regionSwitchRAM:
		m.log.Warn("Write to switchable RAM, not implemented",
			"addr", fmt.Sprintf("0x%04X", address),
			"value", fmt.Sprintf("0x%02X", value))
	case regionWRAM:
		m.wram[address-addr.WRAMStart] = value
	case regionEcho:
		m.wram[address-addr.EchoStart] = value
	case regionOAM:
		if address < addr.OAMEnd {
			m.oam[address-addr.OAMStart] = value
			return
		}
		m.log.Warn("Write to reserved area",
			"addr", fmt.Sprintf("0x%04X", address),
			"value", fmt.Sprintf("0x%02X", value))
	default:
		m.writeHighPage(address, value)
	}
}

func (m *Controller) writeHighPage(address uint16, value uint8) {
	switch {
	case address == addr.BOOT:
		if value != 0 && m.bootMapped {
			m.bootMapped = false
			m.log.Info("Boot ROM unmapped")
		}
	case address < addr.IOEnd, address == addr.IE:
		m.io.SetReg(uint8(address-addr.IOBase), value)
	default:
		m.hram[address-addr.HRAMStart] = value
	}
}

// Read16 reads a little endian word.
func (m *Controller) Read16(address uint16) uint16 {
	low := m.Read(address)
	high := m.Read(address + 1)
	return bit.Combine(high, low)
}

// Write16 writes a little endian word.
func (m *Controller) Write16(address uint16, value uint16) {
	m.Write(address, bit.Low(value))
	m.Write(address+1, bit.High(value))
}

// BootMapped reports whether the boot ROM still overlays 0x0000-0x00FF.
func (m *Controller) BootMapped() bool {
	return m.bootMapped
}

// State is the serializable form of the controller's RAM.
type State struct {
	VRAM       []byte
	WRAM       []byte
	OAM        []byte
	HRAM       []byte
	BootMapped bool
}

// Snapshot copies all RAM buffers.
func (m *Controller) Snapshot() State {
	return State{
		VRAM:       append([]byte(nil), m.vram[:]...),
		WRAM:       append([]byte(nil), m.wram[:]...),
		OAM:        append([]byte(nil), m.oam[:]...),
		HRAM:       append([]byte(nil), m.hram[:]...),
		BootMapped: m.bootMapped,
	}
}

// Restore replaces the RAM buffers. Buffers of the wrong size are rejected.
func (m *Controller) Restore(s State) error {
	buffers := []struct {
		name string
		dst  []byte
		src  []byte
	}{
		{"vram", m.vram[:], s.VRAM},
		{"wram", m.wram[:], s.WRAM},
		{"oam", m.oam[:], s.OAM},
		{"hram", m.hram[:], s.HRAM},
	}
	for _, b := range buffers {
		if len(b.src) != len(b.dst) {
			return fmt.Errorf("%s: got %d bytes, want %d", b.name, len(b.src), len(b.dst))
		}
	}
	if s.BootMapped && m.boot == nil {
		return fmt.Errorf("boot ROM mapped but none loaded")
	}

	for _, b := range buffers {
		copy(b.dst, b.src)
	}
	m.bootMapped = s.BootMapped
	return nil
}
