// Package supercard models the cartridge hardware the engine drives:
// the SDRAM the ROM is streamed into, the two battery-backed SRAM
// banks, and the address decoder mode switching.
package supercard

const (
	// SDRAMSize is the cartridge address window the ROM is mapped into.
	SDRAMSize = 32 * 1024 * 1024
	// SRAMBankSize is one battery-backed SRAM bank.
	SRAMBankSize = 64 * 1024
	// SRAMBanks is the bank count (1Mbit flash emulation needs both).
	SRAMBanks = 2
)

// Mode selects what the address decoder presents on the ROM bus.
type Mode int

const (
	// MappedSDRAM presents the SDRAM (the loaded game).
	MappedSDRAM Mode = iota
	// MappedFirmware presents the NOR flash. Flash commands must never
	// execute outside this mode.
	MappedFirmware
)

// Card is a memory-backed model of the flash cartridge.
type Card struct {
	sdram []byte
	sram  [SRAMBanks][]byte

	mode     Mode
	bank     int
	writable bool

	// ResetFn is invoked by the launcher to perform the reboot into the
	// prepared ROM image.
	ResetFn func(viaBIOS bool)
}

func New() *Card {
	c := &Card{sdram: make([]byte, SDRAMSize)}
	for i := range c.sram {
		c.sram[i] = make([]byte, SRAMBankSize)
	}
	return c
}

// SDRAM exposes the mapped SDRAM buffer.
func (c *Card) SDRAM() []byte { return c.sdram }

// SRAM returns the currently selected SRAM bank.
func (c *Card) SRAM() []byte { return c.sram[c.bank] }

// SRAMBank returns a specific bank regardless of the current mapping.
func (c *Card) SRAMBank(n int) []byte { return c.sram[n] }

// SetMode switches the address decoder, selecting the SRAM bank and
// whether SDRAM writes are latched.
func (c *Card) SetMode(m Mode, bank int, writable bool) {
	c.mode = m
	c.bank = bank & (SRAMBanks - 1)
	c.writable = writable
}

// Mode returns the current decoder mode.
func (c *Card) Mode() Mode { return c.mode }

// Reset hands control to the loaded image.
func (c *Card) Reset(viaBIOS bool) {
	if c.ResetFn != nil {
		c.ResetFn(viaBIOS)
	}
}
