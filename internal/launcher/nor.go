package launcher

import (
	"io"
	"os"

	"github.com/davidgfnet/go-superfw/internal/norflash"
	"github.com/davidgfnet/go-superfw/internal/patch"
	"github.com/davidgfnet/go-superfw/internal/rom"
	"github.com/davidgfnet/go-superfw/internal/savegame"
	"github.com/davidgfnet/go-superfw/internal/supercard"
)

// Decoder remaps the cartridge address space so that the game's 4MiB
// block-strided view of the NOR presents the block map's blocks in
// order.
type Decoder interface {
	MapSlot(slot int, block uint8) error
}

// FlashOptions parameterize writing a game into NOR.
type FlashOptions struct {
	Record       *patch.Record
	PatchWaitcnt bool
	// DirectSave patches the direct-save flavour of stand-ins in; the
	// config itself is seeded by LaunchGBANOR when it is given
	// direct-save info.
	DirectSave bool
	InGameMenu bool
	RTC        bool
	Assets     Assets
}

// FlashGBANOR reads the ROM from SD, patches it in 4MiB chunks and
// erases + programs each chosen NOR block. The block map must already
// be allocated (wear-leveled) and sized to the ROM plus its payloads.
func (l *Launcher) FlashGBANOR(d norflash.Driver, romPath string, romSize uint32, o FlashOptions, blkmap []uint8, progress ProgressFn) error {
	capacity := uint32(len(blkmap)) * norflash.BlockSize
	if capacity > rom.MaxROMSize {
		capacity = rom.MaxROMSize
	}
	if romSize > capacity {
		return ErrBadROM
	}

	igmSize := uint32(0)
	if o.InGameMenu {
		igmSize = uint32(len(o.Assets.IGMenu) + len(o.Assets.FontPack) + len(o.Assets.Cheats))
	}
	dsSize := uint32(0)
	if o.DirectSave {
		dsSize = uint32(len(patch.DirectSavePayload)) + 4
	}
	plan, err := planPayloads(capacity, romSize, o.Record, igmSize, dsSize)
	if err != nil {
		return err
	}

	popts := patch.Options{
		PatchWaitcnt: o.PatchWaitcnt,
		PatchRTC:     o.RTC,
	}
	if o.InGameMenu {
		popts.IGMenuAddr = rom.GBABase + plan.igmOff
	}
	if o.DirectSave {
		popts.DSAddr = rom.GBABase + plan.dsOff
	}

	// Everything that must land in flash, payload tails included.
	used := romSize
	if o.InGameMenu && plan.igmOff+roundUp(igmSize, 1024) > used {
		used = plan.igmOff + roundUp(igmSize, 1024)
	}
	if o.DirectSave && plan.dsOff+dsSize > used {
		used = plan.dsOff + dsSize
	}

	f, err := os.Open(romPath)
	if err != nil {
		return ErrBadROM
	}
	defer f.Close()

	info, err := d.Identify()
	if err != nil {
		return ErrFlashOp
	}

	chunk := make([]byte, norflash.BlockSize)
	for ci := 0; ci < len(blkmap); ci++ {
		base := uint32(ci) * norflash.BlockSize
		end := base + norflash.BlockSize
		if end > used {
			end = used
		}
		if end <= base {
			break
		}
		size := end - base

		// Erased flash reads as ones; pad the tail accordingly.
		for i := range chunk[:size] {
			chunk[i] = 0xFF
		}
		if base < romSize {
			rd := romSize - base
			if rd > size {
				rd = size
			}
			if _, err := io.ReadFull(f, chunk[:rd]); err != nil {
				l.logger().Errorf("launcher: short ROM read at %#x: %v", base, err)
				return ErrBadROM
			}
		}

		w := patch.Window{Buf: chunk[:roundUp(size, 2)], Base: base}
		if o.Record != nil {
			if err := patch.Apply(w, o.Record, popts); err != nil {
				return ErrBadROM
			}
		}
		if o.InGameMenu {
			off := plan.igmOff
			for _, blob := range [][]byte{o.Assets.IGMenu, o.Assets.FontPack, o.Assets.Cheats} {
				if err := patch.ApplyPayload(w, blob, off); err != nil {
					return ErrMenuSpace
				}
				off += uint32(len(blob))
			}
		}
		if o.DirectSave {
			if err := patch.ApplyPayload(w, patch.DirectSavePayload, plan.dsOff); err != nil {
				return ErrPayloadSpace
			}
		}

		// Burn the chunk into its wear-chosen block.
		addr := uint32(blkmap[ci]) * norflash.BlockSize
		for s := uint32(0); s < roundUp(size, info.BlkSize); s += info.BlkSize {
			if d.CheckErased(addr+s, info.BlkSize) {
				continue
			}
			if err := d.EraseSector(addr + s); err != nil {
				return ErrFlashOp
			}
		}
		if err := d.ProgramBuffered(addr, chunk[:size], info.BlkWrite); err != nil {
			return ErrFlashOp
		}
		if !d.Verify(addr, chunk[:size]) {
			return ErrFlashOp
		}

		if progress != nil && progress(end, used) {
			return nil
		}
	}

	return nil
}

// LaunchGBANOR launches a flash-resident game: the address decoder is
// reprogrammed so the game's view of the cartridge presents the block
// map in order, the direct-save config is seeded, and control is handed
// over. No ROM data moves.
func (l *Launcher) LaunchGBANOR(dec Decoder, e *norflash.GameEntry, dsinfo *savegame.DirsaveInfo, o LoadOptions) error {
	for slot := 0; slot < int(e.NumBlocks); slot++ {
		if err := dec.MapSlot(slot, e.BlockMap[slot]); err != nil {
			return ErrFlashOp
		}
	}

	if dsinfo != nil {
		o.Dirsave = dsinfo
		l.seedDirsaveConfig(&o)
	}

	l.logger().Infof("launcher: NOR game %s mapped (%d blocks), rebooting", e.Name, e.NumBlocks)
	l.Card.SetMode(supercard.MappedFirmware, 0, false)
	l.Card.Reset(true)
	return nil
}
