package patchdb

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash"
	"github.com/davidgfnet/go-superfw/internal/patch"
	"github.com/davidgfnet/go-superfw/internal/rom"
	"github.com/davidgfnet/go-superfw/pkg/utils"
)

// Cache stores one patch record per ROM under the hidden configuration
// directory, in the single-entry database format.
type Cache struct {
	// Dir is the cache directory, e.g. <mount>/.superfw/patches.
	Dir string
}

// fileName derives a stable cache key from the ROM path. The basename
// keeps files recognizable; the hash disambiguates ROMs with the same
// name in different directories.
func (c *Cache) fileName(romPath string) string {
	base := utils.ReplaceExtension(utils.Basename(romPath), "")
	sum := xxhash.Sum64String(romPath)
	return filepath.Join(c.Dir, fmt.Sprintf("%s-%08x.patch", base, uint32(sum)))
}

// Load fetches the cached record for a ROM, if one exists.
func (c *Cache) Load(romPath string) (*patch.Record, bool) {
	data, err := os.ReadFile(c.fileName(romPath))
	if err != nil {
		return nil, false
	}
	db, err := Open(data)
	if err != nil || db.patchCnt != 1 {
		return nil, false
	}

	// A cache file has exactly one entry; read it through its own index
	// record rather than assuming a game identity.
	idx := data[headerBlock+programBlock:]
	var id rom.GameID
	copy(id.Code[:], idx[0:4])
	id.Version = idx[4]

	rec, found, err := db.Lookup(id)
	if err != nil || !found {
		return nil, false
	}
	return rec, true
}

// Store writes the record for a ROM. The write is atomic: the file is
// produced under a scratch name and renamed into place.
func (c *Cache) Store(romPath string, id rom.GameID, rec *patch.Record) error {
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return err
	}

	b := Builder{Version: "cache", Creator: "superfw patch engine"}
	b.Add(id, rec)
	data, err := b.Bytes()
	if err != nil {
		return err
	}
	return utils.WriteFileAtomic(c.fileName(romPath), data, 0o644)
}

// Remove drops the cached record for a ROM, if present.
func (c *Cache) Remove(romPath string) {
	os.Remove(c.fileName(romPath))
}
