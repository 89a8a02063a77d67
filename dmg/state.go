package dmg

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/valerio/go-libdmg/dmg/cpu"
	"github.com/valerio/go-libdmg/dmg/memory"
	"github.com/valerio/go-libdmg/dmg/peripherals"
	"gopkg.in/yaml.v3"
)

// StateVersion is written into every save state. Loading any other
// version fails.
const StateVersion = 1

var (
	// ErrUnsupportedStateVersion is returned when a save state was written
	// by an incompatible version.
	ErrUnsupportedStateVersion = errors.New("unsupported save state version")
	// ErrInvalidState is returned for save states that cannot be decoded or
	// describe an impossible machine.
	ErrInvalidState = errors.New("invalid save state")
)

// State is the full serializable machine state.
type State struct {
	Version     int               `yaml:"version"`
	CPU         cpu.State         `yaml:"cpu"`
	Peripherals peripherals.State `yaml:"peripherals"`
	Memory      MemoryState       `yaml:"memory"`
}

// MemoryState holds the RAM buffers and the boot ROM mapping.
type MemoryState struct {
	VRAM       Bytes `yaml:"vram"`
	WRAM       Bytes `yaml:"wram"`
	OAM        Bytes `yaml:"oam"`
	HRAM       Bytes `yaml:"hram"`
	BootMapped bool  `yaml:"boot_mapped"`
}

// Bytes is a byte buffer encoded as a base64 !!binary scalar.
type Bytes []byte

func (b Bytes) MarshalYAML() (interface{}, error) {
	return &yaml.Node{
		Kind:  yaml.ScalarNode,
		Tag:   "!!binary",
		Value: base64.StdEncoding.EncodeToString(b),
	}, nil
}

func (b *Bytes) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected binary scalar", value.Line)
	}

	data, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(value.Value), ""))
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*b = data
	return nil
}

// Snapshot captures the complete machine state. It must not be called
// while a Step is in progress.
func (e *Emulator) Snapshot() State {
	mem := e.mem.Snapshot()
	return State{
		Version:     StateVersion,
		CPU:         e.cpu.Snapshot(),
		Peripherals: e.periph.Snapshot(),
		Memory: MemoryState{
			VRAM:       mem.VRAM,
			WRAM:       mem.WRAM,
			OAM:        mem.OAM,
			HRAM:       mem.HRAM,
			BootMapped: mem.BootMapped,
		},
	}
}

// Restore replaces the machine state. The emulator is left untouched when
// the state is rejected.
func (e *Emulator) Restore(s State) error {
	if s.Version != StateVersion {
		return fmt.Errorf("%w: %d", ErrUnsupportedStateVersion, s.Version)
	}

	periph := peripherals.New(e.log)
	if err := periph.Restore(s.Peripherals); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidState, err)
	}

	restored := &Emulator{log: e.log, boot: e.boot, cart: e.cart}
	restored.wire(periph)

	err := restored.mem.Restore(memory.State{
		VRAM:       s.Memory.VRAM,
		WRAM:       s.Memory.WRAM,
		OAM:        s.Memory.OAM,
		HRAM:       s.Memory.HRAM,
		BootMapped: s.Memory.BootMapped,
	})
	if err != nil {
		return fmt.Errorf("%w: memory: %w", ErrInvalidState, err)
	}
	if err := restored.cpu.Restore(s.CPU); err != nil {
		return fmt.Errorf("%w: cpu: %w", ErrInvalidState, err)
	}

	*e = *restored
	return nil
}

// SaveState writes the machine state as YAML.
func (e *Emulator) SaveState(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(e.Snapshot()); err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	return enc.Close()
}

// LoadState reads a state written by SaveState and resumes from it.
func (e *Emulator) LoadState(r io.Reader) error {
	var s State
	if err := yaml.NewDecoder(r).Decode(&s); err != nil {
		e.log.Error("Failed to decode save state", "err", err)
		return fmt.Errorf("%w: %w", ErrInvalidState, err)
	}
	return e.Restore(s)
}
