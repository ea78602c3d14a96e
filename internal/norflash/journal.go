package norflash

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/davidgfnet/go-superfw/internal/rom"
	"github.com/davidgfnet/go-superfw/pkg/log"
)

// EntryMagic marks a journal entry. Change only if compatibility with
// existing cards requires it.
const EntryMagic = 0x6A7E60D1

const (
	headerSize    = 12 + 4*BlockCount // magic, crc, gamecnt, wr_cycles
	gameEntrySize = 12 + MaxGameBlocks + 256
	maxNameLen    = 255
)

var (
	// ErrLoadFailed covers every way a journal can fail to load; callers
	// treat the region as an empty database.
	ErrLoadFailed = errors.New("norflash: no valid journal entry")
	// ErrStoreFailed flags a program or verify failure while appending.
	ErrStoreFailed = errors.New("norflash: journal store failed")
	// ErrOutOfSpace is returned when fewer free blocks exist than asked.
	ErrOutOfSpace = errors.New("norflash: not enough free blocks")
)

// Game entry attribute bits. The low three bits carry the original
// save hardware type (7 when unknown).
const (
	AttrSaveModeMask = 0x07
	AttrSaveDS       = 1 << 3
	AttrIGM          = 1 << 4
	AttrRTC          = 1 << 5
)

// GameEntry describes one flash-resident game.
type GameEntry struct {
	ID        rom.GameID
	NumBlocks uint8
	Attrs     uint8
	// BNOffset is the basename offset within Name, kept so the browser
	// can sort entries without re-scanning the path.
	BNOffset  uint8
	EntryAddr uint32
	// BlockMap lists the 4MiB blocks the game occupies, in load order.
	// Zero entries are unused; block 0 is never a game block.
	BlockMap [MaxGameBlocks]uint8
	Name     string
}

// SaveMode extracts the save hardware type bits.
func (g *GameEntry) SaveMode() uint8 { return g.Attrs & AttrSaveModeMask }

// UsesDirectSave reports whether the game was flashed for direct saving.
func (g *GameEntry) UsesDirectSave() bool { return g.Attrs&AttrSaveDS != 0 }

// UsesIGM reports whether the in-game menu was patched in.
func (g *GameEntry) UsesIGM() bool { return g.Attrs&AttrIGM != 0 }

// UsesRTC reports whether RTC patches were applied.
func (g *GameEntry) UsesRTC() bool { return g.Attrs&AttrRTC != 0 }

// Entry is one journal record: the wear counters plus the game table.
// The most recently appended valid entry is the live one.
type Entry struct {
	WrCycles [BlockCount]uint32
	Games    []GameEntry
}

// Region manages the metadata area [base, base+size) of the flash.
type Region struct {
	d    Driver
	base uint32
	size uint32
	l    log.Logger
}

func NewRegion(d Driver, base, size uint32, l log.Logger) *Region {
	if l == nil {
		l = log.NewNullLogger()
	}
	return &Region{d: d, base: base, size: size, l: l}
}

func entrySize(gamecnt uint32) uint32 {
	return headerSize + gamecnt*gameEntrySize
}

// findLatest walks the journal from the region base and returns the
// offset and header of the last valid entry. A region with no valid
// entry returns ok=false; the caller must not read anything.
func (r *Region) findLatest() (off uint32, gamecnt uint32, ok bool) {
	var hdr [headerSize]byte
	var last uint32
	for pos := uint32(0); pos+headerSize <= r.size; {
		if err := r.d.Read(r.base+pos, hdr[:]); err != nil {
			break
		}
		magic := binary.LittleEndian.Uint32(hdr[0:4])
		cnt := binary.LittleEndian.Uint32(hdr[8:12])
		if magic != EntryMagic || cnt > MaxGames {
			break
		}
		last, gamecnt, ok = pos, cnt, true
		pos += entrySize(cnt)
	}
	return last, gamecnt, ok
}

// Load reads the live journal entry, verifies its checksum and checks
// the block-map invariants. Every failure maps to ErrLoadFailed so the
// caller can present an empty database.
func (r *Region) Load() (*Entry, error) {
	off, gamecnt, ok := r.findLatest()
	if !ok {
		return nil, ErrLoadFailed
	}

	raw := make([]byte, entrySize(gamecnt))
	if err := r.d.Read(r.base+off, raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadFailed, err)
	}

	crc := binary.LittleEndian.Uint32(raw[4:8])
	games := raw[headerSize:]
	if xorHash(games)^gamecnt != crc {
		r.l.Errorf("norflash: journal checksum mismatch at +%#x", off)
		return nil, ErrLoadFailed
	}

	e := &Entry{}
	for i := 0; i < BlockCount; i++ {
		e.WrCycles[i] = binary.LittleEndian.Uint32(raw[12+i*4:])
	}
	e.Games = make([]GameEntry, gamecnt)
	for i := range e.Games {
		unmarshalGame(&e.Games[i], games[i*gameEntrySize:])
	}

	if !blockMapsWellFormed(e) {
		r.l.Errorf("norflash: journal block map is corrupt")
		return nil, ErrLoadFailed
	}
	return e, nil
}

// Store appends the entry after the current tail, erasing the region
// first when the journal is missing, bogus or full. The program is
// verified by read-back.
func (r *Region) Store(e *Entry) error {
	if len(e.Games) > MaxGames {
		return fmt.Errorf("%w: %d games", ErrStoreFailed, len(e.Games))
	}
	raw := marshalEntry(e)

	var off uint32
	tail, tailCnt, ok := r.findLatest()
	if ok {
		off = tail + entrySize(tailCnt)
	}
	if !ok || off+uint32(len(raw)) > r.size {
		// Journal looks bogus or is full: recycle the whole region.
		if err := r.eraseRegion(); err != nil {
			return err
		}
		off = 0
	}

	info, err := r.d.Identify()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreFailed, err)
	}
	if err := r.d.ProgramBuffered(r.base+off, raw, info.BlkWrite); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreFailed, err)
	}
	if !r.d.Verify(r.base+off, raw) {
		return fmt.Errorf("%w: verify mismatch at +%#x", ErrStoreFailed, off)
	}
	return nil
}

// Wipe erases every block of the metadata region. The next Load will
// report an empty database.
func (r *Region) Wipe() error {
	return r.eraseRegion()
}

func (r *Region) eraseRegion() error {
	info, err := r.d.Identify()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreFailed, err)
	}
	// Only homogeneous sector layouts are supported.
	if info.Size == 0 || info.BlkSize == 0 || info.BlkCount == 0 || info.RegionCnt != 1 {
		return fmt.Errorf("%w: unsupported flash geometry", ErrStoreFailed)
	}
	if r.size < info.BlkSize || r.size%info.BlkSize != 0 {
		return fmt.Errorf("%w: region not sector aligned", ErrStoreFailed)
	}

	for off := uint32(0); off < r.size; off += info.BlkSize {
		// Skip sectors that already read as all-ones.
		if r.d.CheckErased(r.base+off, info.BlkSize) {
			continue
		}
		if err := r.d.EraseSector(r.base + off); err != nil {
			return fmt.Errorf("%w: %v", ErrStoreFailed, err)
		}
	}
	return nil
}

// xorHash folds a byte slice into a word by XOR. The journal checksum
// only needs to tell a torn write from a good one.
func xorHash(b []byte) uint32 {
	var ret uint32
	for i := 0; i+4 <= len(b); i += 4 {
		ret ^= binary.LittleEndian.Uint32(b[i:])
	}
	return ret
}

func marshalEntry(e *Entry) []byte {
	raw := make([]byte, entrySize(uint32(len(e.Games))))
	binary.LittleEndian.PutUint32(raw[0:], EntryMagic)
	binary.LittleEndian.PutUint32(raw[8:], uint32(len(e.Games)))
	for i, c := range e.WrCycles {
		binary.LittleEndian.PutUint32(raw[12+i*4:], c)
	}
	games := raw[headerSize:]
	for i := range e.Games {
		marshalGame(&e.Games[i], games[i*gameEntrySize:])
	}
	binary.LittleEndian.PutUint32(raw[4:], xorHash(games)^uint32(len(e.Games)))
	return raw
}

func marshalGame(g *GameEntry, b []byte) {
	copy(b[0:4], g.ID.Code[:])
	b[4] = g.ID.Version
	b[5] = g.NumBlocks
	b[6] = g.Attrs
	b[7] = g.BNOffset
	binary.LittleEndian.PutUint32(b[8:], g.EntryAddr)
	copy(b[12:12+MaxGameBlocks], g.BlockMap[:])
	name := g.Name
	if len(name) > maxNameLen {
		name = name[:maxNameLen]
	}
	copy(b[12+MaxGameBlocks:], name)
}

func unmarshalGame(g *GameEntry, b []byte) {
	copy(g.ID.Code[:], b[0:4])
	g.ID.Version = b[4]
	g.NumBlocks = b[5]
	g.Attrs = b[6]
	g.BNOffset = b[7]
	g.EntryAddr = binary.LittleEndian.Uint32(b[8:])
	copy(g.BlockMap[:], b[12:12+MaxGameBlocks])
	name := b[12+MaxGameBlocks : 12+MaxGameBlocks+256]
	end := 0
	for end < len(name) && name[end] != 0 {
		end++
	}
	g.Name = string(name[:end])
}

// blockMapsWellFormed checks the journal invariants: no block is owned
// twice, block 0 is never a game block and the block counts agree.
func blockMapsWellFormed(e *Entry) bool {
	var used [BlockCount]bool
	for gi := range e.Games {
		g := &e.Games[gi]
		nz := 0
		for _, n := range g.BlockMap {
			if n == 0 {
				continue
			}
			if int(n) >= BlockCount || used[n] {
				return false
			}
			used[n] = true
			nz++
		}
		if int(g.NumBlocks) != nz {
			return false
		}
	}
	return true
}
