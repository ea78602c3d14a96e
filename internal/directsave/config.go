// Package directsave implements the runtime arrangement where the
// game's save-chip accesses are serviced straight from the SD card.
// The launcher seeds a small config record in SRAM; the stand-in
// routines patched into the ROM find it through their trailer word and
// coordinate through it.
package directsave

import "encoding/binary"

const (
	// ConfigMagic marks a valid config record.
	ConfigMagic = 0xDBDD5CF6
	// ConfigSize is the exact record size; the layout is ABI between the
	// launcher and the stand-in routines.
	ConfigSize = 24
	// ConfigOffset places the record at the very end of the 64KiB SRAM
	// bank, clear of the EEPROM mirror and the sector scratch area.
	ConfigOffset = 0x10000 - ConfigSize
)

// Config is the SRAM-resident coordination record. Little endian:
// magic, checksum, nrandom, memory_size, base_sector, then rca(16),
// issdhc(8) and the mutex byte.
type Config struct {
	// NRandom salts the checksum so it is not constant across installs.
	NRandom uint32
	// MemorySize is the save-chip size in bytes the game believes in.
	MemorySize uint32
	// BaseSector is the first SD sector backing the contiguous save file.
	BaseSector uint32
	// DrvRCA and DrvIsSDHC replicate the SD driver state the stand-ins
	// need to re-issue commands inside the running game.
	DrvRCA    uint16
	DrvIsSDHC bool
	// SDMutex is set while a stand-in is mid-transaction on the SD bus.
	SDMutex bool
}

// checksum folds every protected field; the mutex byte changes at
// runtime and stays outside the protected range.
func (c *Config) checksum() uint32 {
	sdhc := uint32(0)
	if c.DrvIsSDHC {
		sdhc = 1
	}
	return ConfigMagic ^ c.NRandom ^ c.MemorySize ^ c.BaseSector ^
		(uint32(c.DrvRCA) | sdhc<<16)
}

// Marshal serializes the record into its 24-byte SRAM layout.
func (c *Config) Marshal() [ConfigSize]byte {
	var b [ConfigSize]byte
	binary.LittleEndian.PutUint32(b[0:], ConfigMagic)
	binary.LittleEndian.PutUint32(b[4:], c.checksum())
	binary.LittleEndian.PutUint32(b[8:], c.NRandom)
	binary.LittleEndian.PutUint32(b[12:], c.MemorySize)
	binary.LittleEndian.PutUint32(b[16:], c.BaseSector)
	binary.LittleEndian.PutUint16(b[20:], c.DrvRCA)
	if c.DrvIsSDHC {
		b[22] = 1
	}
	if c.SDMutex {
		b[23] = 1
	}
	return b
}

// UnmarshalConfig decodes and validates an SRAM config area. ok is
// false when the magic or checksum do not hold (SRAM is garbage).
func UnmarshalConfig(b []byte) (Config, bool) {
	if len(b) < ConfigSize {
		return Config{}, false
	}
	if binary.LittleEndian.Uint32(b[0:]) != ConfigMagic {
		return Config{}, false
	}
	// The issdhc byte is a 0/1 flag; any other value is corruption that
	// the checksum alone would not see.
	if b[22] > 1 {
		return Config{}, false
	}
	c := Config{
		NRandom:    binary.LittleEndian.Uint32(b[8:]),
		MemorySize: binary.LittleEndian.Uint32(b[12:]),
		BaseSector: binary.LittleEndian.Uint32(b[16:]),
		DrvRCA:     binary.LittleEndian.Uint16(b[20:]),
		DrvIsSDHC:  b[22] != 0,
		SDMutex:    b[23] != 0,
	}
	if binary.LittleEndian.Uint32(b[4:]) != c.checksum() {
		return Config{}, false
	}
	return c, true
}
