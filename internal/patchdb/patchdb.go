// Package patchdb reads the prebuilt patch database and the per-ROM
// patch cache files. Both share one binary format; a cache file is
// simply a database holding a single entry.
package patchdb

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/davidgfnet/go-superfw/internal/patch"
	"github.com/davidgfnet/go-superfw/internal/rom"
)

const (
	// Signature is "PTDB" in ASCII.
	Signature = 0x31424450
	// FormatVersion is the only supported database version.
	FormatVersion = 0x00010000

	headerSize   = 64
	headerBlock  = 512
	programBlock = 512
	indexBlock   = 512
	indexRecSize = 8
)

// ErrBadFormat flags a database whose signature, version or contents
// cannot be trusted.
var ErrBadFormat = errors.New("patchdb: bad database format")

// Info is the database self-description block.
type Info struct {
	PatchCount uint32
	Date       string
	Version    string
	Creator    string
}

// DB is a read-only view over a patch database held in memory. Lookups
// borrow from the underlying buffer; the buffer must outlive the DB.
type DB struct {
	data  []byte
	progs []patch.Program

	patchCnt uint32
	idxCnt   uint32
}

// Open validates the header and preloads the program page.
func Open(data []byte) (*DB, error) {
	if len(data) < headerBlock+programBlock {
		return nil, fmt.Errorf("%w: truncated header", ErrBadFormat)
	}
	if binary.LittleEndian.Uint32(data[0:4]) != Signature {
		return nil, fmt.Errorf("%w: signature mismatch", ErrBadFormat)
	}
	if binary.LittleEndian.Uint32(data[4:8]) != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported version", ErrBadFormat)
	}

	db := &DB{
		data:     data,
		patchCnt: binary.LittleEndian.Uint32(data[8:12]),
		idxCnt:   binary.LittleEndian.Uint32(data[12:16]),
	}
	if uint64(headerBlock+programBlock)+uint64(db.idxCnt)*indexBlock > uint64(len(data)) {
		return nil, fmt.Errorf("%w: truncated index", ErrBadFormat)
	}
	if uint64(db.patchCnt)*indexRecSize > uint64(db.idxCnt)*indexBlock {
		return nil, fmt.Errorf("%w: patch count exceeds index", ErrBadFormat)
	}

	// Program page: length-prefixed records, a zero length terminates.
	page := data[headerBlock : headerBlock+programBlock]
	for i := 0; i < len(page); i++ {
		cnt := int(page[i])
		if cnt == 0 {
			break
		}
		if len(db.progs) == patch.MaxPrograms {
			return nil, fmt.Errorf("%w: too many inline programs", ErrBadFormat)
		}
		if cnt > patch.MaxProgramLen || i+1+cnt > len(page) {
			return nil, fmt.Errorf("%w: oversized inline program", ErrBadFormat)
		}
		prog := make([]byte, cnt)
		copy(prog, page[i+1:i+1+cnt])
		db.progs = append(db.progs, patch.Program{Data: prog})
		i += cnt
	}

	return db, nil
}

// Info returns the database metadata block.
func (db *DB) Info() Info {
	return Info{
		PatchCount: db.patchCnt,
		Date:       trimZero(db.data[16:24]),
		Version:    trimZero(db.data[24:32]),
		Creator:    trimZero(db.data[32:64]),
	}
}

func trimZero(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// Lookup finds the patch record for a game identity. A miss is a
// normal result, not an error. The index is sorted but small, so the
// scan is linear.
func (db *DB) Lookup(id rom.GameID) (*patch.Record, bool, error) {
	idx := db.data[headerBlock+programBlock:]
	entries := db.data[headerBlock+programBlock+int(db.idxCnt)*indexBlock:]

	for i := uint32(0); i < db.patchCnt; i++ {
		rec := idx[i*indexRecSize : i*indexRecSize+indexRecSize]
		offver := binary.LittleEndian.Uint32(rec[4:8])
		cand := rom.GameID{Version: uint8(offver)}
		copy(cand.Code[:], rec[0:4])
		if cand.Compare(id) != 0 {
			continue
		}

		r, err := db.parseEntry(entries, offver>>8)
		if err != nil {
			return nil, false, err
		}
		return r, true, nil
	}
	return nil, false, nil
}

// parseEntry decodes one entry. The offset is in 32-bit words from the
// start of the entry area.
func (db *DB) parseEntry(entries []byte, wordOff uint32) (*patch.Record, error) {
	off := int(wordOff) * 4
	if off+4 > len(entries) {
		return nil, fmt.Errorf("%w: entry offset out of range", ErrBadFormat)
	}
	pheader := binary.LittleEndian.Uint32(entries[off : off+4])

	wcnt := int(pheader >> 0 & 0xFF)
	save := int(pheader >> 8 & 0x1F)
	irqh := int(pheader >> 16 & 0xFF)
	rtc := int(pheader >> 24 & 0x0F)
	saveMode := patch.SaveType(pheader >> 13 & 0x7)
	hasHole := pheader>>28&1 != 0

	numops := wcnt + save + irqh + rtc
	need := numops
	if hasHole {
		need++
	}
	if off+4+need*4 > len(entries) {
		return nil, fmt.Errorf("%w: entry ops out of range", ErrBadFormat)
	}

	raw := make([]uint32, numops)
	for i := range raw {
		raw[i] = binary.LittleEndian.Uint32(entries[off+4+i*4:])
	}

	rec, err := patch.NewRecord(raw, wcnt, save, irqh, rtc, db.progs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFormat, err)
	}
	rec.SaveMode = saveMode

	if hasHole {
		// Trailing word, both fields in KiB units.
		hw := binary.LittleEndian.Uint32(entries[off+4+numops*4:])
		rec.HoleAddr = (hw >> 16) << 10
		rec.HoleSize = (hw & 0xFFFF) << 10
	}
	return rec, nil
}
