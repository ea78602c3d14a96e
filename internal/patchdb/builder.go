package patchdb

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/davidgfnet/go-superfw/internal/patch"
	"github.com/davidgfnet/go-superfw/internal/rom"
)

// Builder serializes patch records into the database format. The cache
// writer uses it with a single entry; tools can pack many.
type Builder struct {
	Date    string
	Version string
	Creator string

	entries []builderEntry
}

type builderEntry struct {
	id  rom.GameID
	rec *patch.Record
}

// Add schedules a record for serialization.
func (b *Builder) Add(id rom.GameID, rec *patch.Record) {
	b.entries = append(b.entries, builderEntry{id: id, rec: rec})
}

// Bytes assembles the database image: header block, program page,
// index blocks, entry area.
func (b *Builder) Bytes() ([]byte, error) {
	// All entries share one program page, so the program set must agree.
	var progs []patch.Program
	for _, e := range b.entries {
		if len(e.rec.Progs) > 0 {
			if progs != nil && !sameProgs(progs, e.rec.Progs) {
				return nil, fmt.Errorf("patchdb: entries disagree on inline programs")
			}
			progs = e.rec.Progs
		}
	}
	if len(progs) > patch.MaxPrograms {
		return nil, fmt.Errorf("patchdb: too many inline programs")
	}

	sort.Slice(b.entries, func(i, j int) bool {
		return b.entries[i].id.Compare(b.entries[j].id) < 0
	})

	idxCnt := (len(b.entries)*indexRecSize + indexBlock - 1) / indexBlock
	if idxCnt == 0 {
		idxCnt = 1
	}

	// Entry area and index, entry offsets in words.
	var entryArea []byte
	index := make([]byte, idxCnt*indexBlock)
	for i, e := range b.entries {
		wordOff := uint32(len(entryArea) / 4)

		raw, wcnt, save, irqh, rtc, err := e.rec.EncodeOps()
		if err != nil {
			return nil, err
		}

		pheader := uint32(wcnt) | uint32(save)<<8 | uint32(e.rec.SaveMode&7)<<13 |
			uint32(irqh)<<16 | uint32(rtc)<<24
		hasHole := e.rec.HasHole()
		if hasHole {
			pheader |= 1 << 28
		}

		entryArea = appendWord(entryArea, pheader)
		for _, w := range raw {
			entryArea = appendWord(entryArea, w)
		}
		if hasHole {
			entryArea = appendWord(entryArea, (e.rec.HoleAddr>>10)<<16|(e.rec.HoleSize>>10)&0xFFFF)
		}

		rec := index[i*indexRecSize:]
		copy(rec, e.id.Code[:])
		binary.LittleEndian.PutUint32(rec[4:], wordOff<<8|uint32(e.id.Version))
	}

	// Program page.
	page := make([]byte, programBlock)
	pp := 0
	for _, p := range progs {
		page[pp] = byte(len(p.Data))
		copy(page[pp+1:], p.Data)
		pp += 1 + len(p.Data)
	}

	out := make([]byte, headerBlock, headerBlock+programBlock+len(index)+len(entryArea))
	binary.LittleEndian.PutUint32(out[0:], Signature)
	binary.LittleEndian.PutUint32(out[4:], FormatVersion)
	binary.LittleEndian.PutUint32(out[8:], uint32(len(b.entries)))
	binary.LittleEndian.PutUint32(out[12:], uint32(idxCnt))
	copyPad(out[16:24], b.Date)
	copyPad(out[24:32], b.Version)
	copyPad(out[32:64], b.Creator)

	out = append(out, page...)
	out = append(out, index...)
	out = append(out, entryArea...)
	return out, nil
}

func appendWord(b []byte, w uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], w)
	return append(b, tmp[:]...)
}

func copyPad(dst []byte, s string) {
	if len(s) > len(dst) {
		s = s[:len(dst)]
	}
	copy(dst, s)
}

func sameProgs(a, b []patch.Program) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if string(a[i].Data) != string(b[i].Data) {
			return false
		}
	}
	return true
}
