// Package launcher orchestrates a game launch: stream the ROM into the
// mapped SDRAM, apply patches window by window, park the payloads, seed
// the direct-save config and hand control to the rewritten image.
package launcher

import (
	"io"
	"os"

	"github.com/davidgfnet/go-superfw/internal/directsave"
	"github.com/davidgfnet/go-superfw/internal/patch"
	"github.com/davidgfnet/go-superfw/internal/rom"
	"github.com/davidgfnet/go-superfw/internal/savegame"
	"github.com/davidgfnet/go-superfw/internal/supercard"
	"github.com/davidgfnet/go-superfw/pkg/datetime"
	"github.com/davidgfnet/go-superfw/pkg/log"
)

// WindowSize is how much ROM is staged per copy/patch round. Windows
// must stay halfword aligned for the patcher.
const WindowSize = 512 * 1024

// ProgressFn reports load progress; returning true aborts between
// windows (never in the middle of a flash command).
type ProgressFn func(done, total uint32) bool

// RTCInfo seeds the RTC emulation for this boot.
type RTCInfo struct {
	// Timestamp is the boot date/time in seconds since 2000-01-01.
	Timestamp uint32
	// TsStep advances the clock this many seconds per RTC latch.
	TsStep uint32
}

// RTCInfoAt builds the boot state from a broken-down date, wrapping any
// out-of-range field first.
func RTCInfoAt(d datetime.Date, step uint32) RTCInfo {
	return RTCInfo{Timestamp: datetime.ToTimestamp(datetime.Fix(d)), TsStep: step}
}

// Assets are the precompiled blobs parked alongside the game.
type Assets struct {
	IGMenu   []byte // in-game menu body
	FontPack []byte
	Cheats   []byte
}

// The in-game menu payload reserves a few words right after its entry
// branch; the launcher drops the RTC boot state there.
const (
	igmRTCTimestampOff = 0x08
	igmRTCStepOff      = 0x0C
)

// LoadOptions parameterize one launch.
type LoadOptions struct {
	Record       *patch.Record
	PatchWaitcnt bool
	// Dirsave activates direct saving; the launcher seeds the SRAM
	// config record from it.
	Dirsave *savegame.DirsaveInfo
	// InGameMenu requests the menu payload and entry detour.
	InGameMenu bool
	RTC        *RTCInfo
	Assets     Assets

	// SD driver state replicated into the direct-save config.
	DrvRCA    uint16
	DrvIsSDHC bool
	// NRandom salts the config checksum.
	NRandom uint32
}

type Launcher struct {
	Card *supercard.Card
	Log  log.Logger
}

func (l *Launcher) logger() log.Logger {
	if l.Log == nil {
		return log.NewNullLogger()
	}
	return l.Log
}

func (o *LoadOptions) igmSize() uint32 {
	if !o.InGameMenu {
		return 0
	}
	return uint32(len(o.Assets.IGMenu) + len(o.Assets.FontPack) + len(o.Assets.Cheats))
}

func (o *LoadOptions) dsSize() uint32 {
	if o.Dirsave == nil {
		return 0
	}
	return uint32(len(patch.DirectSavePayload)) + 4
}

// patchOptions converts the plan's ROM offsets into the bus addresses
// the patched code runs at.
func patchOptions(o *LoadOptions, plan payloadPlan) patch.Options {
	opts := patch.Options{
		PatchWaitcnt: o.PatchWaitcnt,
		PatchRTC:     o.RTC != nil,
	}
	if o.InGameMenu {
		opts.IGMenuAddr = rom.GBABase + plan.igmOff
	}
	if o.Dirsave != nil {
		opts.DSAddr = rom.GBABase + plan.dsOff
	}
	return opts
}

// LoadGBAROM streams the ROM into SDRAM in fixed windows, patching each
// window in place, then applies the payloads, seeds the direct-save
// config and resets into the game.
func (l *Launcher) LoadGBAROM(romPath string, romSize uint32, o LoadOptions, progress ProgressFn) error {
	if romSize > rom.MaxROMSize {
		return ErrBadROM
	}

	plan, err := planPayloads(rom.MaxROMSize, romSize, o.Record, o.igmSize(), o.dsSize())
	if err != nil {
		return err
	}

	f, err := os.Open(romPath)
	if err != nil {
		return ErrBadROM
	}
	defer f.Close()

	sdram := l.Card.SDRAM()
	opts := patchOptions(&o, plan)

	for base := uint32(0); base < romSize; base += WindowSize {
		n := uint32(WindowSize)
		if romSize-base < n {
			n = romSize - base
		}
		if _, err := io.ReadFull(f, sdram[base:base+n]); err != nil {
			l.logger().Errorf("launcher: short ROM read at %#x: %v", base, err)
			return ErrBadROM
		}

		if o.Record != nil {
			w := patch.Window{Buf: sdram[base : base+roundUp(n, 2)], Base: base}
			if err := patch.Apply(w, o.Record, opts); err != nil {
				return ErrBadROM
			}
		}

		if progress != nil && progress(base+n, romSize) {
			return nil
		}
	}

	if err := l.applyPayloads(&o, plan, romSize); err != nil {
		return err
	}

	if o.Dirsave != nil {
		l.seedDirsaveConfig(&o)
	}

	l.logger().Infof("launcher: %s staged (%d bytes), rebooting", romPath, romSize)
	l.Card.SetMode(supercard.MappedSDRAM, 0, false)
	l.Card.Reset(true)
	return nil
}

// applyPayloads copies the menu block (body, fonts, cheats), the RTC
// boot state and the direct-save payload into their parked locations.
func (l *Launcher) applyPayloads(o *LoadOptions, plan payloadPlan, romSize uint32) error {
	end := romSize
	for _, c := range []uint32{plan.igmOff + roundUp(o.igmSize(), 1024), plan.dsOff + o.dsSize()} {
		if c > end {
			end = c
		}
	}
	w := patch.Window{Buf: l.Card.SDRAM()[:roundUp(end, 2)]}

	if o.InGameMenu {
		off := plan.igmOff
		for _, blob := range [][]byte{o.Assets.IGMenu, o.Assets.FontPack, o.Assets.Cheats} {
			if err := patch.ApplyPayload(w, blob, off); err != nil {
				return ErrMenuSpace
			}
			off += uint32(len(blob))
		}
		if o.RTC != nil {
			rtcw := []byte{
				byte(o.RTC.Timestamp), byte(o.RTC.Timestamp >> 8),
				byte(o.RTC.Timestamp >> 16), byte(o.RTC.Timestamp >> 24),
				byte(o.RTC.TsStep), byte(o.RTC.TsStep >> 8),
				byte(o.RTC.TsStep >> 16), byte(o.RTC.TsStep >> 24),
			}
			if err := patch.ApplyPayload(w, rtcw, plan.igmOff+igmRTCTimestampOff); err != nil {
				return ErrMenuSpace
			}
		}
	}

	if o.Dirsave != nil {
		if err := patch.ApplyPayload(w, patch.DirectSavePayload, plan.dsOff); err != nil {
			return ErrPayloadSpace
		}
	}
	return nil
}

// seedDirsaveConfig writes the coordination record the stand-ins will
// find at runtime. It is the last SRAM touch before reset.
func (l *Launcher) seedDirsaveConfig(o *LoadOptions) {
	cfg := directsave.Config{
		NRandom:    o.NRandom,
		MemorySize: o.Dirsave.SaveSize,
		BaseSector: o.Dirsave.SectorLBA,
		DrvRCA:     o.DrvRCA,
		DrvIsSDHC:  o.DrvIsSDHC,
	}
	b := cfg.Marshal()
	copy(l.Card.SRAMBank(0)[directsave.ConfigOffset:], b[:])
}
