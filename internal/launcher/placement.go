package launcher

import (
	"github.com/davidgfnet/go-superfw/internal/patch"
	"github.com/davidgfnet/go-superfw/internal/rom"
)

const (
	// DirsaveReqSpace bounds the direct-save payload footprint.
	DirsaveReqSpace = 7 * 1024
	// MinIGMROMGap is a rough upper bound of the space the in-game menu
	// needs (menu body + font pack + cheats).
	MinIGMROMGap = 896 * 1024
	// MaxROMSizeIGM is the biggest ROM that can host the menu in its tail.
	MaxROMSizeIGM = rom.MaxROMSize - MinIGMROMGap
)

func roundUp(v, a uint32) uint32 {
	return (v + a - 1) &^ (a - 1)
}

// allocator hands out payload regions: at the ROM tail while the
// capacity lasts, then inside the record's hole.
type allocator struct {
	tail     uint32 // next free tail offset
	capacity uint32
	hole     uint32 // next free hole offset
	holeEnd  uint32
}

func newAllocator(capacity, romSize uint32, rec *patch.Record) *allocator {
	a := &allocator{tail: romSize, capacity: capacity}
	// A hole is only usable when it actually lies inside the image.
	if rec != nil && rec.HasHole() && rec.HoleAddr+rec.HoleSize <= romSize {
		a.hole = rec.HoleAddr
		a.holeEnd = rec.HoleAddr + rec.HoleSize
	}
	return a
}

// place returns the ROM offset for a payload of the given size, or
// ok=false when neither the tail nor the hole can host it.
func (a *allocator) place(size uint32) (uint32, bool) {
	if a.tail+size <= a.capacity {
		off := a.tail
		a.tail += size
		return off, true
	}
	if a.hole+size <= a.holeEnd {
		off := a.hole
		a.hole += size
		return off, true
	}
	return 0, false
}

// payloadPlan is the outcome of payload placement: ROM offsets for the
// in-game menu region and the direct-save payload (zero = disabled).
type payloadPlan struct {
	igmOff uint32
	dsOff  uint32
}

// planPayloads decides where payloads are parked. A requested feature
// that cannot be placed is reported through the matching error.
func planPayloads(capacity, romSize uint32, rec *patch.Record, igmSize, dsSize uint32) (payloadPlan, error) {
	var p payloadPlan
	alloc := newAllocator(capacity, romSize, rec)

	if igmSize > 0 {
		off, ok := alloc.place(roundUp(igmSize, 1024))
		if !ok {
			return p, ErrMenuSpace
		}
		p.igmOff = off
	}

	if dsSize > 0 {
		off, ok := alloc.place(DirsaveReqSpace)
		if !ok {
			return p, ErrPayloadSpace
		}
		p.dsOff = off
	}

	return p, nil
}

// IGMenuAvailable reports whether the in-game menu can be enabled for a
// title: the patches must carry IRQ hooks and the payload must have a
// home (ROM tail or hole).
func IGMenuAvailable(romSize uint32, rec *patch.Record, igmSize uint32) bool {
	if rec == nil || !rec.SupportsIGM() {
		return false
	}
	reqsz := roundUp(igmSize, 1024)
	if romSize > rom.MaxROMSize-reqsz {
		if rec.HoleSize < reqsz || rec.HoleAddr+rec.HoleSize > romSize {
			return false
		}
	}
	return true
}

// DirsaveAvailable reports whether direct saving can be enabled: the
// save hardware must be SD-serviceable and the payload must fit.
func DirsaveAvailable(romSize uint32, rec *patch.Record) bool {
	if rec == nil || !rec.SaveMode.SupportsDirectSave() {
		return false
	}
	if romSize > rom.MaxROMSize-DirsaveReqSpace {
		if rec.HoleSize < DirsaveReqSpace || rec.HoleAddr+rec.HoleSize > romSize {
			return false
		}
	}
	return true
}
