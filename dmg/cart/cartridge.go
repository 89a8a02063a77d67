package cart

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrInvalidCartridge is returned when the data cannot hold a cartridge header.
var ErrInvalidCartridge = errors.New("invalid cartridge")

// MinSize is the smallest image that contains the whole header.
const MinSize = 0x150

const (
	entryPointAddress     = 0x100
	logoAddress           = 0x104
	titleAddress          = 0x134
	cgbFlagAddress        = 0x143
	newLicenseCodeAddress = 0x144
	sgbFlagAddress        = 0x146
	cartridgeTypeAddress  = 0x147
	romSizeAddress        = 0x148
	ramSizeAddress        = 0x149
	versionNumberAddress  = 0x14C
	headerChecksumAddress = 0x14D

	entryPointLength = 4
	logoLength       = 48
	titleLength      = 15
)

// Cartridge holds a ROM image and the metadata decoded from its header.
// It is immutable after construction.
type Cartridge struct {
	data []byte

	EntryPoint     [entryPointLength]byte
	Logo           [logoLength]byte
	Title          string
	CGB            bool
	SGB            bool
	NewLicensee    string
	Type           Type
	ROMBanks       int
	ROMSizeKB      int
	RAMBanks       int
	RAMSizeKB      int
	Version        uint8
	HeaderChecksum uint8
}

// New parses the header of a ROM image. The data is copied.
func New(data []byte) (*Cartridge, error) {
	if len(data) < MinSize {
		return nil, fmt.Errorf("%w: %d bytes, need at least %d", ErrInvalidCartridge, len(data), MinSize)
	}

	c := &Cartridge{
		data:           make([]byte, len(data)),
		Title:          cleanTitle(data[titleAddress : titleAddress+titleLength]),
		CGB:            data[cgbFlagAddress] == 0x80 || data[cgbFlagAddress] == 0xC0,
		SGB:            data[sgbFlagAddress] == 0x03,
		NewLicensee:    string(data[newLicenseCodeAddress : newLicenseCodeAddress+2]),
		Type:           Type(data[cartridgeTypeAddress]),
		Version:        data[versionNumberAddress],
		HeaderChecksum: data[headerChecksumAddress],
	}
	copy(c.data, data)
	copy(c.EntryPoint[:], data[entryPointAddress:])
	copy(c.Logo[:], data[logoAddress:])

	c.ROMBanks = romBanks(data[romSizeAddress])
	c.ROMSizeKB = c.ROMBanks * 16
	c.RAMBanks, c.RAMSizeKB = ramSize(data[ramSizeAddress])

	return c, nil
}

// Load reads a ROM image from disk and parses its header.
func Load(path string) (*Cartridge, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cartridge: %w", err)
	}
	return New(data)
}

// Read returns the ROM byte at the given address, or 0 past the end of the image.
func (c *Cartridge) Read(address uint16) uint8 {
	if int(address) >= len(c.data) {
		return 0
	}
	return c.data[address]
}

// Size returns the image size in bytes.
func (c *Cartridge) Size() int {
	return len(c.data)
}

// ValidHeaderChecksum recomputes the header checksum over 0x134-0x14C.
func (c *Cartridge) ValidHeaderChecksum() bool {
	var sum uint8
	for _, b := range c.data[titleAddress:headerChecksumAddress] {
		sum = sum - b - 1
	}
	return sum == c.HeaderChecksum
}

func (c *Cartridge) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Title:     %s\n", c.Title)
	fmt.Fprintf(&sb, "Type:      %s (0x%02X)\n", c.Type, uint8(c.Type))
	fmt.Fprintf(&sb, "ROM:       %d banks, %d KB\n", c.ROMBanks, c.ROMSizeKB)
	fmt.Fprintf(&sb, "RAM:       %d banks, %d KB\n", c.RAMBanks, c.RAMSizeKB)
	fmt.Fprintf(&sb, "CGB:       %t\n", c.CGB)
	fmt.Fprintf(&sb, "SGB:       %t\n", c.SGB)
	fmt.Fprintf(&sb, "Licensee:  %q\n", c.NewLicensee)
	fmt.Fprintf(&sb, "Version:   %d\n", c.Version)
	fmt.Fprintf(&sb, "Checksum:  0x%02X (valid: %t)\n", c.HeaderChecksum, c.ValidHeaderChecksum())
	return sb.String()
}

func romBanks(code uint8) int {
	switch code {
	case 0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06:
		return 2 << code
	case 0x52:
		return 72
	case 0x53:
		return 80
	case 0x54:
		return 96
	default:
		return 0
	}
}

func ramSize(code uint8) (banks, kb int) {
	switch code {
	case 0x01:
		return 1, 2
	case 0x02:
		return 1, 8
	case 0x03:
		return 4, 32
	case 0x04:
		return 16, 128
	default:
		return 0, 0
	}
}
