// Command superfw is the host-side companion tool for the cartridge
// engine: it inspects patch databases, applies patches to ROM images
// the same way the firmware does at launch, and maintains NOR flash
// image dumps.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/davidgfnet/go-superfw/internal/norflash"
	"github.com/davidgfnet/go-superfw/internal/patch"
	"github.com/davidgfnet/go-superfw/internal/patchdb"
	"github.com/davidgfnet/go-superfw/internal/rom"
	"github.com/davidgfnet/go-superfw/pkg/log"
	"github.com/davidgfnet/go-superfw/pkg/utils"
)

func main() {
	dbFile := flag.String("db", "", "The patch database to use")
	dbInfo := flag.Bool("info", false, "Print patch database information")
	romFile := flag.String("rom", "", "The ROM file to inspect/patch")
	outFile := flag.String("out", "", "Where to write the patched ROM")
	igm := flag.Bool("igm", false, "Patch the in-game menu hooks")
	rtc := flag.Bool("rtc", false, "Patch the RTC emulation")
	waitcnt := flag.Bool("waitcnt", true, "Patch waitstate register accesses")
	dsAddr := flag.Uint("dsaddr", 0, "Direct-save payload bus address (0 disables)")
	norImage := flag.String("norimage", "", "NOR flash image dump to operate on")
	norList := flag.Bool("norlist", false, "List the games in the NOR image")
	norWipe := flag.Bool("norwipe", false, "Wipe the NOR metadata region")
	norBase := flag.Uint("norbase", 2*1024*1024, "Metadata region offset in the NOR image")
	norSize := flag.Uint("norsize", 2*1024*1024, "Metadata region size")
	cacheDir := flag.String("cachedir", ".superfw/patches", "Per-ROM patch cache directory")
	flag.Parse()

	logger := log.New()

	switch {
	case *norImage != "":
		if err := runNOR(logger, *norImage, uint32(*norBase), uint32(*norSize), *norList, *norWipe); err != nil {
			logger.Errorf("%v", err)
			os.Exit(1)
		}
	case *dbFile != "":
		if err := runDB(logger, *dbFile, *cacheDir, *dbInfo, *romFile, *outFile, patch.Options{
			PatchWaitcnt: *waitcnt,
			PatchRTC:     *rtc,
			DSAddr:       uint32(*dsAddr),
		}, *igm); err != nil {
			logger.Errorf("%v", err)
			os.Exit(1)
		}
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func runDB(logger log.Logger, dbFile, cacheDir string, info bool, romFile, outFile string, popts patch.Options, igm bool) error {
	data, err := utils.LoadFile(dbFile)
	if err != nil {
		return err
	}
	db, err := patchdb.Open(data)
	if err != nil {
		return err
	}

	if info || romFile == "" {
		i := db.Info()
		logger.Infof("patch database %s: %d patches, version %s (%s) by %s",
			dbFile, i.PatchCount, i.Version, i.Date, i.Creator)
		return nil
	}

	img, err := utils.LoadFile(romFile)
	if err != nil {
		return err
	}
	if !rom.Valid(img) {
		return fmt.Errorf("%s: not a valid GBA ROM", romFile)
	}
	hdr, err := rom.ParseHeader(img)
	if err != nil {
		return err
	}

	cache := &patchdb.Cache{Dir: cacheDir}
	rec, found, err := db.Lookup(hdr.ID())
	if err != nil {
		return err
	}
	if found {
		// Keep the per-ROM cache warm for offline use.
		if err := cache.Store(romFile, hdr.ID(), rec); err != nil {
			logger.Debugf("cache store failed: %v", err)
		}
	} else {
		rec, found = cache.Load(romFile)
	}
	if !found {
		logger.Infof("%s (%s): no patches in the database", hdr.Title, hdr.ID())
		return nil
	}

	logger.Infof("%s (%s): save=%s wcnt=%d save_ops=%d irqh=%d rtc=%d",
		hdr.Title, hdr.ID(), rec.SaveMode,
		len(rec.Wcnt), len(rec.Save), len(rec.Irqh), len(rec.Rtc))
	if rec.HasHole() {
		logger.Infof("  hole at %#x (%s)", rec.HoleAddr, utils.HumanSize(rec.HoleSize))
	}

	if outFile == "" {
		return nil
	}

	if len(img)%2 != 0 {
		img = append(img, 0xFF)
	}
	if igm && rec.SupportsIGM() {
		// Host-side there is no real payload; point the detour at the ROM
		// tail so it has a target. Nothing is written there.
		popts.IGMenuAddr = rom.GBABase + uint32(len(img))
	}
	if err := patch.Apply(patch.Window{Buf: img}, rec, popts); err != nil {
		return err
	}
	if err := utils.WriteFileAtomic(outFile, img, 0o644); err != nil {
		return err
	}
	logger.Infof("patched ROM written to %s", outFile)
	return nil
}

func runNOR(logger log.Logger, imgFile string, base, size uint32, list, wipe bool) error {
	img, err := os.ReadFile(imgFile)
	if err != nil {
		return err
	}
	d := norflash.NewMemDriverFromImage(img, 64*1024)
	region := norflash.NewRegion(d, base, size, logger)

	switch {
	case wipe:
		if err := region.Wipe(); err != nil {
			return err
		}
		return utils.WriteFileAtomic(imgFile, d.Bytes(), 0o644)
	case list:
		e, err := region.Load()
		if err != nil {
			logger.Infof("%s: empty game database", imgFile)
			return nil
		}
		for i := range e.Games {
			g := &e.Games[i]
			logger.Infof("%2d: %s v%d  %2d blocks  %s", i, string(g.ID.Code[:]),
				g.ID.Version, g.NumBlocks, g.Name)
		}
		return nil
	default:
		return fmt.Errorf("nothing to do with %s", imgFile)
	}
}
