package norflash

import (
	"bytes"
	"fmt"
)

// MemDriver models a NOR flash in memory: erase sets sectors to ones,
// programming can only clear bits. Used by tests and by the NOR image
// tooling on the host.
type MemDriver struct {
	data    []byte
	info    Info
	failOps int // countdown fault injection for tests, 0 disables
}

// NewMemDriver creates an erased flash with the given total and sector
// sizes.
func NewMemDriver(size, blkSize uint32) *MemDriver {
	d := &MemDriver{
		data: make([]byte, size),
		info: Info{
			DeviceID:  0x227E2201,
			Size:      size,
			RegionCnt: 1,
			BlkSize:   blkSize,
			BlkCount:  size / blkSize,
			BlkWrite:  512,
		},
	}
	for i := range d.data {
		d.data[i] = 0xFF
	}
	return d
}

// NewMemDriverFromImage wraps an existing flash dump.
func NewMemDriverFromImage(img []byte, blkSize uint32) *MemDriver {
	d := NewMemDriver(uint32(len(img)), blkSize)
	copy(d.data, img)
	return d
}

// Bytes exposes the raw flash contents.
func (d *MemDriver) Bytes() []byte { return d.data }

// FailAfter makes the n-th subsequent mutating operation fail.
func (d *MemDriver) FailAfter(n int) { d.failOps = n }

func (d *MemDriver) mutateOK() bool {
	if d.failOps == 0 {
		return true
	}
	d.failOps--
	return d.failOps != 0
}

func (d *MemDriver) Identify() (Info, error) {
	return d.info, nil
}

func (d *MemDriver) EraseChip() error {
	if !d.mutateOK() {
		return fmt.Errorf("norflash: erase timeout")
	}
	for i := range d.data {
		d.data[i] = 0xFF
	}
	return nil
}

func (d *MemDriver) EraseSector(addr uint32) error {
	if !d.mutateOK() {
		return fmt.Errorf("norflash: erase timeout at %#x", addr)
	}
	start := addr - addr%d.info.BlkSize
	for i := start; i < start+d.info.BlkSize && i < uint32(len(d.data)); i++ {
		d.data[i] = 0xFF
	}
	return nil
}

func (d *MemDriver) Read(addr uint32, buf []byte) error {
	if int(addr)+len(buf) > len(d.data) {
		return fmt.Errorf("norflash: read beyond device at %#x", addr)
	}
	copy(buf, d.data[addr:])
	return nil
}

func (d *MemDriver) Program(addr uint32, data []byte) error {
	if !d.mutateOK() {
		return fmt.Errorf("norflash: program timeout at %#x", addr)
	}
	if int(addr)+len(data) > len(d.data) {
		return fmt.Errorf("norflash: program beyond device at %#x", addr)
	}
	// NOR programming can only clear bits.
	for i, b := range data {
		d.data[int(addr)+i] &= b
	}
	return nil
}

func (d *MemDriver) ProgramBuffered(addr uint32, data []byte, bufsize uint32) error {
	if bufsize == 0 {
		return d.Program(addr, data)
	}
	for off := uint32(0); off < uint32(len(data)); off += bufsize {
		end := off + bufsize
		if end > uint32(len(data)) {
			end = uint32(len(data))
		}
		if err := d.Program(addr+off, data[off:end]); err != nil {
			return err
		}
	}
	return nil
}

func (d *MemDriver) Verify(addr uint32, data []byte) bool {
	if int(addr)+len(data) > len(d.data) {
		return false
	}
	return bytes.Equal(d.data[addr:int(addr)+len(data)], data)
}

func (d *MemDriver) CheckErased(addr uint32, size uint32) bool {
	for i := addr; i < addr+size && i < uint32(len(d.data)); i++ {
		if d.data[i] != 0xFF {
			return false
		}
	}
	return true
}
