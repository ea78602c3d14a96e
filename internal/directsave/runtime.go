package directsave

import "errors"

// SDCard is the block-level SD driver the stand-ins use. Transfers are
// whole 512-byte sectors.
type SDCard interface {
	ReadBlocks(buf []byte, lba uint32, count int) error
	WriteBlocks(data []byte, lba uint32) error
}

const sectorSize = 512

var (
	ErrNoConfig = errors.New("directsave: no valid config in SRAM")
	ErrBounds   = errors.New("directsave: access beyond save memory")
	ErrIO       = errors.New("directsave: SD transfer failed")
)

// Runtime services the save-chip operations the stand-in routines
// perform inside the running game. The SRAM bank doubles as the EEPROM
// mirror and as sector scratch space, exactly as the routines use it.
type Runtime struct {
	sram []byte
	sd   SDCard
}

func NewRuntime(sram []byte, sd SDCard) *Runtime {
	return &Runtime{sram: sram, sd: sd}
}

// config validates and loads the SRAM-resident record.
func (r *Runtime) config() (Config, error) {
	c, ok := UnmarshalConfig(r.sram[ConfigOffset:])
	if !ok {
		return Config{}, ErrNoConfig
	}
	return c, nil
}

// withMutex flags the config mutex around an SD transaction. The
// launcher never touches SRAM while the flag is set.
func (r *Runtime) withMutex(fn func() error) error {
	r.sram[ConfigOffset+23] = 1
	err := fn()
	r.sram[ConfigOffset+23] = 0
	return err
}

// ReadEEPROM reads one 8-byte EEPROM block. The mirror in SRAM is
// authoritative for reads; bytes come out in reverse order since the
// EEPROM is big endian on the wire.
func (r *Runtime) ReadEEPROM(blockNum uint32, buf []byte) error {
	c, err := r.config()
	if err != nil {
		return err
	}
	if blockNum*8 >= c.MemorySize {
		return ErrBounds
	}
	for i := 0; i < 8; i++ {
		buf[i] = r.sram[blockNum*8+7-uint32(i)]
	}
	return nil
}

// WriteEEPROM updates the SRAM mirror and flushes the containing
// 512-byte sector to the SD card.
func (r *Runtime) WriteEEPROM(blockNum uint32, buf []byte) error {
	c, err := r.config()
	if err != nil {
		return err
	}
	sramOff := blockNum * 8
	if sramOff >= c.MemorySize {
		return ErrBounds
	}
	for i := 0; i < 8; i++ {
		r.sram[sramOff+7-uint32(i)] = buf[i]
	}

	sectorOff := sramOff &^ (sectorSize - 1)
	sdBlock := c.BaseSector + blockNum/(sectorSize/8)
	return r.withMutex(func() error {
		return r.sd.WriteBlocks(r.sram[sectorOff:sectorOff+sectorSize], sdBlock)
	})
}

// ReadFlash copies count bytes starting at offset into buf, reading
// 512-byte aligned ranges from the SD card, up to 64 blocks per
// transaction.
func (r *Runtime) ReadFlash(buf []byte, offset, count uint32) error {
	c, err := r.config()
	if err != nil {
		return err
	}
	if offset > c.MemorySize || count > c.MemorySize || offset+count > c.MemorySize {
		return ErrBounds
	}

	return r.withMutex(func() error {
		out := buf
		for count > 0 {
			startBlk := offset / sectorSize
			endBlk := (offset + count - 1) / sectorSize
			bcnt := endBlk - startBlk + 1
			if bcnt > 64 {
				bcnt = 64
			}

			scratch := r.sram[:bcnt*sectorSize]
			if err := r.sd.ReadBlocks(scratch, c.BaseSector+startBlk, int(bcnt)); err != nil {
				return ErrIO
			}

			blkOff := offset & (sectorSize - 1)
			tocpy := bcnt*sectorSize - blkOff
			if count < tocpy {
				tocpy = count
			}
			copy(out, scratch[blkOff:blkOff+tocpy])
			out = out[tocpy:]
			offset += tocpy
			count -= tocpy
		}
		return nil
	})
}

// WriteSectorFlash writes one previously erased 4KiB flash sector.
func (r *Runtime) WriteSectorFlash(data []byte, sectNum uint32) error {
	const blocksPerSector = 4096 / sectorSize

	c, err := r.config()
	if err != nil {
		return err
	}
	if sectNum*4096 > c.MemorySize {
		return ErrBounds
	}
	return r.withMutex(func() error {
		if err := r.sd.WriteBlocks(data[:4096], c.BaseSector+sectNum*blocksPerSector); err != nil {
			return ErrIO
		}
		return nil
	})
}

// EraseSectorFlash writes an all-ones pattern over one 4KiB sector.
func (r *Runtime) EraseSectorFlash(sectNum uint32) error {
	const blocksPerSector = 4096 / sectorSize

	c, err := r.config()
	if err != nil {
		return err
	}
	if sectNum*4096 > c.MemorySize {
		return ErrBounds
	}

	scratch := r.sram[:4096]
	for i := range scratch {
		scratch[i] = 0xFF
	}
	return r.withMutex(func() error {
		if err := r.sd.WriteBlocks(scratch, c.BaseSector+sectNum*blocksPerSector); err != nil {
			return ErrIO
		}
		return nil
	})
}

// EraseChipFlash writes all-ones over the whole save memory, in runs
// of 32 blocks.
func (r *Runtime) EraseChipFlash() error {
	const blkRun = 32

	c, err := r.config()
	if err != nil {
		return err
	}

	scratch := r.sram[:blkRun*sectorSize]
	for i := range scratch {
		scratch[i] = 0xFF
	}

	memBlks := c.MemorySize / sectorSize
	return r.withMutex(func() error {
		for s := uint32(0); s < memBlks; s += blkRun {
			run := uint32(blkRun)
			if memBlks-s < run {
				run = memBlks - s
			}
			if err := r.sd.WriteBlocks(scratch[:run*sectorSize], c.BaseSector+s); err != nil {
				return ErrIO
			}
		}
		return nil
	})
}
