package cart

// Type is the memory controller and feature set declared at 0x147.
type Type uint8

const (
	ROMOnly             Type = 0x00
	MBC1                Type = 0x01
	MBC1RAM             Type = 0x02
	MBC1RAMBattery      Type = 0x03
	MBC2                Type = 0x05
	MBC2Battery         Type = 0x06
	ROMRAM              Type = 0x08
	ROMRAMBattery       Type = 0x09
	MMM01               Type = 0x0B
	MMM01SRAM           Type = 0x0C
	MMM01SRAMBattery    Type = 0x0D
	MBC3TimerBattery    Type = 0x0F
	MBC3TimerRAMBattery Type = 0x10
	MBC3                Type = 0x11
	MBC3RAM             Type = 0x12
	MBC3RAMBattery      Type = 0x13
	MBC5                Type = 0x19
	MBC5RAM             Type = 0x1A
	MBC5RAMBattery      Type = 0x1B
	MBC5Rumble          Type = 0x1C
	MBC5RumbleSRAM      Type = 0x1D
	MBC5RumbleSRAMBatt  Type = 0x1E
	PocketCamera        Type = 0x1F
	BandaiTAMA5         Type = 0xFD
	HudsonHuC3          Type = 0xFE
	HudsonHuC1          Type = 0xFF
)

var typeNames = map[Type]string{
	ROMOnly:             "ROM ONLY",
	MBC1:                "ROM + MBC1",
	MBC1RAM:             "ROM + MBC1 + RAM",
	MBC1RAMBattery:      "ROM + MBC1 + RAM + BATTERY",
	MBC2:                "ROM + MBC2",
	MBC2Battery:         "ROM + MBC2 + BATTERY",
	ROMRAM:              "ROM + RAM",
	ROMRAMBattery:       "ROM + RAM + BATTERY",
	MMM01:               "ROM + MMM01",
	MMM01SRAM:           "ROM + MMM01 + SRAM",
	MMM01SRAMBattery:    "ROM + MMM01 + SRAM + BATTERY",
	MBC3TimerBattery:    "ROM + MBC3 + TIMER + BATTERY",
	MBC3TimerRAMBattery: "ROM + MBC3 + TIMER + RAM + BATTERY",
	MBC3:                "ROM + MBC3",
	MBC3RAM:             "ROM + MBC3 + RAM",
	MBC3RAMBattery:      "ROM + MBC3 + RAM + BATTERY",
	MBC5:                "ROM + MBC5",
	MBC5RAM:             "ROM + MBC5 + RAM",
	MBC5RAMBattery:      "ROM + MBC5 + RAM + BATTERY",
	MBC5Rumble:          "ROM + MBC5 + RUMBLE",
	MBC5RumbleSRAM:      "ROM + MBC5 + RUMBLE + SRAM",
	MBC5RumbleSRAMBatt:  "ROM + MBC5 + RUMBLE + SRAM + BATTERY",
	PocketCamera:        "POCKET CAMERA",
	BandaiTAMA5:         "BANDAI TAMA5",
	HudsonHuC3:          "HUDSON HuC-3",
	HudsonHuC1:          "HUDSON HuC-1",
}

// Known reports whether the type code is one of the documented ones.
func (t Type) Known() bool {
	_, ok := typeNames[t]
	return ok
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "Unknown"
}
