package memory

import (
	"errors"
	"fmt"
	"os"
)

// BootROMSize is the exact size of a DMG boot ROM image.
const BootROMSize = 0x100

// ErrInvalidBootROM is returned when a boot ROM image has the wrong size.
var ErrInvalidBootROM = errors.New("invalid boot ROM")

// BootROM is the 256 byte program mapped over 0x0000-0x00FF at power on.
type BootROM struct {
	data [BootROMSize]byte
}

// NewBootROM copies a boot ROM image, which must be exactly 256 bytes long.
func NewBootROM(data []byte) (*BootROM, error) {
	if len(data) != BootROMSize {
		return nil, fmt.Errorf("%w: %d bytes, want %d", ErrInvalidBootROM, len(data), BootROMSize)
	}

	b := &BootROM{}
	copy(b.data[:], data)
	return b, nil
}

// LoadBootROM reads a boot ROM image from disk.
func LoadBootROM(path string) (*BootROM, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read boot ROM: %w", err)
	}
	return NewBootROM(data)
}

// Read returns the byte at the given address. Only the low byte of the
// address is used.
func (b *BootROM) Read(address uint16) uint8 {
	return b.data[uint8(address)]
}
