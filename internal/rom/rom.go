// Package rom parses GBA ROM headers and carries the game identity
// used to key the patch database and the NOR metadata.
package rom

import (
	"encoding/binary"
	"fmt"
)

const (
	// GBABase is the bus address ROMs are linked against.
	GBABase = 0x08000000
	// MaxROMSize is the size of the cartridge address window.
	MaxROMSize = 32 * 1024 * 1024
	// HeaderSize covers the fixed header fields. The full first block
	// (0x100 bytes) also includes the multiboot area.
	HeaderSize = 0xC0
)

// GameID is the 5-byte identity of a title: the four ASCII game code
// bytes plus the mask ROM version byte.
type GameID struct {
	Code    [4]byte
	Version uint8
}

// Compare orders identities byte by byte, code first then version.
func (g GameID) Compare(o GameID) int {
	for i := 0; i < 4; i++ {
		if g.Code[i] < o.Code[i] {
			return -1
		}
		if g.Code[i] > o.Code[i] {
			return 1
		}
	}
	if g.Version < o.Version {
		return -1
	}
	if g.Version > o.Version {
		return 1
	}
	return 0
}

func (g GameID) String() string {
	return fmt.Sprintf("%s-%d", string(g.Code[:]), g.Version)
}

// Header represents the cartridge header found in the first 0xC0 bytes
// of every GBA ROM.
type Header struct {
	// 0x00-0x03 - ARM branch to the game entrypoint
	StartBranch uint32

	// 0x04-0x9F - compressed logo bitmap, must match the BIOS copy
	LogoData [156]byte

	// 0xA0-0xAB - game title, ASCII padded with zeroes
	Title string

	// 0xAC-0xAF - game code
	GameCode [4]byte

	// 0xB0-0xB1 - maker code
	MakerCode [2]byte

	// 0xB2 - fixed byte, always 0x96
	Fixed uint8

	UnitCode   uint8
	DeviceType uint8

	// 0xBC - mask ROM version
	Version uint8

	// 0xBD - header checksum
	Checksum uint8
}

// ParseHeader decodes the header from the first HeaderSize bytes.
func ParseHeader(b []byte) (*Header, error) {
	if len(b) < HeaderSize {
		return nil, fmt.Errorf("rom: header too short: %d bytes", len(b))
	}

	h := &Header{
		StartBranch: binary.LittleEndian.Uint32(b[0:4]),
		Fixed:       b[0xB2],
		UnitCode:    b[0xB3],
		DeviceType:  b[0xB4],
		Version:     b[0xBC],
		Checksum:    b[0xBD],
	}
	copy(h.LogoData[:], b[0x04:0xA0])
	copy(h.GameCode[:], b[0xAC:0xB0])
	copy(h.MakerCode[:], b[0xB0:0xB2])

	// Trim the zero padding off the title.
	title := b[0xA0:0xAC]
	end := len(title)
	for end > 0 && title[end-1] == 0 {
		end--
	}
	h.Title = string(title[:end])

	return h, nil
}

// ID returns the 5-byte game identity.
func (h *Header) ID() GameID {
	return GameID{Code: h.GameCode, Version: h.Version}
}

// Entrypoint decodes the ARM branch at offset 0 and returns the bus
// address the game actually boots at.
func (h *Header) Entrypoint() uint32 {
	return ((h.StartBranch & 0xFFFFFF) << 2) + 8 + GBABase
}

// Valid performs the header sanity checks the BIOS does: the fixed
// byte and the complement checksum over 0xA0..0xBC.
func Valid(b []byte) bool {
	if len(b) < HeaderSize {
		return false
	}
	if b[0xB2] != 0x96 {
		return false
	}
	var chk uint8
	for i := 0xA0; i < 0xBD; i++ {
		chk -= b[i]
	}
	chk -= 0x19
	return chk == b[0xBD]
}
