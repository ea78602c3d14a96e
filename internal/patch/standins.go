package patch

// Stand-ins are precompiled position-independent Thumb routines that
// replace the game's save and RTC subroutines wholesale. Three flavours
// exist: SRAM-backed with a single 64KiB bank, SRAM-backed with two
// banks (for 1Mbit flash carts), and direct-to-SD. The applier copies
// the body verbatim and appends the config address trailer.
type saveFuncs struct {
	eeprom [2][]byte // read, write
	flash  [5][]byte // read, erase-device, erase-sector, write-sector, write-byte
}

// saveFlavour picks the stand-in set for one Apply call: direct-save
// when a payload address exists, otherwise SRAM-backed sized to the
// original save chip.
func saveFlavour(mode SaveType, dsAddr uint32) *saveFuncs {
	if dsAddr != 0 {
		return &directSaveFuncs
	}
	if mode == SaveTypeFlash1M {
		return &sram128kFuncs
	}
	return &sram64kFuncs
}

// StandinSize returns the body size of a save stand-in for placement
// checks (trailer excluded).
func StandinSize(mode SaveType, dsAddr uint32, flash bool, handler int) int {
	f := saveFlavour(mode, dsAddr)
	if flash {
		return len(f.flash[handler])
	}
	return len(f.eeprom[handler])
}

// thumb packs halfwords into the little-endian byte stream the applier
// copies. Kept alongside the blobs so sizes stay in sync with the code.
func thumb(hw ...uint16) []byte {
	b := make([]byte, len(hw)*2)
	for i, h := range hw {
		b[i*2] = byte(h)
		b[i*2+1] = byte(h >> 8)
	}
	return b
}
