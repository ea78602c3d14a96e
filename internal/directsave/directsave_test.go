package directsave

import (
	"bytes"
	"errors"
	"testing"
)

// memCard is a sector-addressed byte store standing in for the SD card.
type memCard struct {
	data   []byte
	writes int
}

func newMemCard(sectors int) *memCard {
	return &memCard{data: make([]byte, sectors*sectorSize)}
}

func (m *memCard) ReadBlocks(buf []byte, lba uint32, count int) error {
	off := int(lba) * sectorSize
	if off+count*sectorSize > len(m.data) {
		return errors.New("read out of range")
	}
	copy(buf[:count*sectorSize], m.data[off:])
	return nil
}

func (m *memCard) WriteBlocks(data []byte, lba uint32) error {
	off := int(lba) * sectorSize
	if off+len(data) > len(m.data) {
		return errors.New("write out of range")
	}
	copy(m.data[off:], data)
	m.writes++
	return nil
}

func newRuntime(t *testing.T, memSize, baseSector uint32, sectors int) (*Runtime, *memCard, []byte) {
	t.Helper()
	sram := make([]byte, 64*1024)
	cfg := Config{
		NRandom:    0x12345678,
		MemorySize: memSize,
		BaseSector: baseSector,
		DrvRCA:     0xAAAA,
		DrvIsSDHC:  true,
	}
	b := cfg.Marshal()
	copy(sram[ConfigOffset:], b[:])
	card := newMemCard(sectors)
	return NewRuntime(sram, card), card, sram
}

func TestConfigRoundTrip(t *testing.T) {
	cfg := Config{NRandom: 99, MemorySize: 65536, BaseSector: 2048, DrvRCA: 7}
	b := cfg.Marshal()
	got, ok := UnmarshalConfig(b[:])
	if !ok {
		t.Fatal("expected config to validate")
	}
	if got != cfg {
		t.Errorf("round trip mismatch: %+v != %+v", got, cfg)
	}
}

func TestConfigChecksumDetectsBitFlips(t *testing.T) {
	cfg := Config{NRandom: 0xCAFE, MemorySize: 8192, BaseSector: 4096, DrvRCA: 3, DrvIsSDHC: true}
	ref := cfg.Marshal()

	// Any single-bit flip in the protected range must invalidate the
	// record. The mutex byte (23) is deliberately unprotected.
	for byteOff := 0; byteOff < 23; byteOff++ {
		for bit := 0; bit < 8; bit++ {
			b := ref
			b[byteOff] ^= 1 << bit
			if _, ok := UnmarshalConfig(b[:]); ok {
				t.Fatalf("bit flip at byte %d bit %d went undetected", byteOff, bit)
			}
		}
	}
}

func TestConfigRejectsGarbage(t *testing.T) {
	garbage := make([]byte, ConfigSize)
	for i := range garbage {
		garbage[i] = byte(i*37 + 11)
	}
	if _, ok := UnmarshalConfig(garbage); ok {
		t.Error("expected garbage SRAM to be rejected")
	}
}

func TestEEPROMReadWrite(t *testing.T) {
	r, card, sram := newRuntime(t, 8192, 100, 200)

	wire := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	if err := r.WriteEEPROM(3, wire); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The SRAM mirror holds the block in reverse byte order.
	for i := 0; i < 8; i++ {
		if sram[3*8+7-i] != wire[i] {
			t.Fatalf("mirror byte %d mismatch: % X", i, sram[24:32])
		}
	}

	// The containing sector was flushed to base_sector + 0.
	if !bytes.Equal(card.data[100*sectorSize+24:100*sectorSize+32], sram[24:32]) {
		t.Error("sector not flushed to the SD card")
	}

	var got [8]byte
	if err := r.ReadEEPROM(3, got[:]); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(got[:], wire) {
		t.Errorf("expected % X, got % X", wire, got)
	}
}

func TestEEPROMBounds(t *testing.T) {
	r, _, _ := newRuntime(t, 512, 0, 64)
	var buf [8]byte
	if err := r.ReadEEPROM(64, buf[:]); !errors.Is(err, ErrBounds) {
		t.Errorf("expected ErrBounds, got %v", err)
	}
	if err := r.WriteEEPROM(64, buf[:]); !errors.Is(err, ErrBounds) {
		t.Errorf("expected ErrBounds, got %v", err)
	}
}

func TestFlashReadUnaligned(t *testing.T) {
	r, card, _ := newRuntime(t, 64*1024, 8, 200)

	// Paint the backing store with a position-dependent pattern.
	for i := range card.data {
		card.data[i] = byte(i * 7)
	}

	buf := make([]byte, 1000)
	const off = 700
	if err := r.ReadFlash(buf, off, uint32(len(buf))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	base := 8 * sectorSize
	for i := range buf {
		want := byte((base + off + i) * 7)
		if buf[i] != want {
			t.Fatalf("byte %d mismatch: got %02x want %02x", i, buf[i], want)
		}
	}
}

func TestFlashReadBounds(t *testing.T) {
	r, _, _ := newRuntime(t, 4096, 0, 64)
	buf := make([]byte, 16)
	if err := r.ReadFlash(buf, 4090, 16); !errors.Is(err, ErrBounds) {
		t.Errorf("expected ErrBounds, got %v", err)
	}
}

func TestFlashWriteSector(t *testing.T) {
	r, card, _ := newRuntime(t, 64*1024, 16, 200)

	data := make([]byte, 4096)
	for i := range data {
		data[i] = byte(i)
	}
	if err := r.WriteSectorFlash(data, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 4KiB sector 2 lands at base + 2*8 SD blocks.
	off := (16 + 2*8) * sectorSize
	if !bytes.Equal(card.data[off:off+4096], data) {
		t.Error("sector contents not written at the expected LBA")
	}
}

func TestFlashEraseSector(t *testing.T) {
	r, card, _ := newRuntime(t, 64*1024, 0, 200)
	if err := r.WriteSectorFlash(make([]byte, 4096), 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.EraseSectorFlash(1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	off := 8 * sectorSize
	for i := 0; i < 4096; i++ {
		if card.data[off+i] != 0xFF {
			t.Fatalf("byte %d not erased", i)
		}
	}
}

func TestFlashEraseChip(t *testing.T) {
	r, card, _ := newRuntime(t, 32*1024, 4, 200)
	if err := r.EraseChipFlash(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 32*1024; i++ {
		if card.data[4*sectorSize+i] != 0xFF {
			t.Fatalf("byte %d not erased", i)
		}
	}
	// Neighbouring sectors stay untouched.
	if card.data[3*sectorSize] != 0 {
		t.Error("erase ran before base_sector")
	}
	if card.data[4*sectorSize+32*1024] != 0 {
		t.Error("erase ran past memory_size")
	}
}

func TestNoConfigFails(t *testing.T) {
	sram := make([]byte, 64*1024)
	r := NewRuntime(sram, newMemCard(8))
	var buf [8]byte
	if err := r.ReadEEPROM(0, buf[:]); !errors.Is(err, ErrNoConfig) {
		t.Errorf("expected ErrNoConfig, got %v", err)
	}
}

func TestMutexReleasedAfterTransfer(t *testing.T) {
	r, _, sram := newRuntime(t, 8192, 0, 64)
	if err := r.WriteEEPROM(0, make([]byte, 8)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sram[ConfigOffset+23] != 0 {
		t.Error("sd mutex left set after transfer")
	}
}
