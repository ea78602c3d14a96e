// Package savegame reconciles the game's persistent save state around
// reboots: it seeds SRAM before launch and snapshots it back to the
// .sav file on the next boot, or arranges direct SD saving instead.
package savegame

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/davidgfnet/go-superfw/internal/patch"
	"github.com/davidgfnet/go-superfw/internal/supercard"
	"github.com/davidgfnet/go-superfw/pkg/log"
	"github.com/davidgfnet/go-superfw/pkg/utils"
)

// LoadPolicy selects what happens to SRAM before launch.
type LoadPolicy int

const (
	// LoadSav loads the .sav file if present, otherwise clears SRAM.
	LoadSav LoadPolicy = 0
	// LoadReset always starts from cleared SRAM.
	LoadReset LoadPolicy = 1
	// LoadDisable leaves SRAM untouched.
	LoadDisable LoadPolicy = 2
)

// SavePolicy selects how the save makes it back to disk.
type SavePolicy int

const (
	// SaveReboot snapshots SRAM into the .sav file on the next boot.
	SaveReboot SavePolicy = 0
	// SaveDisable drops the save state entirely.
	SaveDisable SavePolicy = 1
	// SaveDirect services saves from the SD card at runtime; nothing to
	// do at boot time.
	SaveDirect SavePolicy = 2
)

// Error carries the numeric code persisted in diagnostics.
type Error struct {
	Code uint32
	msg  string
}

func (e *Error) Error() string { return e.msg }

var (
	ErrBadArg    = &Error{1, "savegame: invalid policy combination"}
	ErrBadSave   = &Error{2, "savegame: save file unreadable"}
	ErrCantWrite = &Error{3, "savegame: cannot write save state"}
	ErrCantAlloc = &Error{4, "savegame: cannot allocate contiguous save file"}
	ErrCantCopy  = &Error{5, "savegame: backup rotation failed"}
)

// DirsaveInfo is handed to the launcher when direct saving is active.
type DirsaveInfo struct {
	// SaveSize is the least file size that must back the save.
	SaveSize uint32
	// SectorLBA is the absolute first SD sector of the save file.
	SectorLBA uint32
}

// SectorResolver resolves a file to its first absolute SD sector. The
// file must be physically contiguous and at least minSize bytes long;
// anything else is an error.
type SectorResolver interface {
	FileBaseSector(path string, minSize uint32) (uint32, error)
}

const pendingSaveFile = "pending-save.txt"

// Manager prepares and commits save state around launches.
type Manager struct {
	// ConfigDir is the hidden firmware directory holding marker files.
	ConfigDir string
	Card      *supercard.Card
	// Resolver is required for direct saving only.
	Resolver SectorResolver
	// BackupCount rotates that many older .sav copies on reboot-save.
	BackupCount int
	Log         log.Logger
}

func (m *Manager) logger() log.Logger {
	if m.Log == nil {
		return log.NewNullLogger()
	}
	return m.Log
}

func (m *Manager) pendingPath() string {
	return filepath.Join(m.ConfigDir, pendingSaveFile)
}

// Prepare performs the before-launch half of the contract: seeds SRAM
// per the load policy and arranges the save path per the save policy.
// For direct saving it resolves the backing sector and returns the
// info record the launcher seeds into SRAM.
func (m *Manager) Prepare(loadP LoadPolicy, saveP SavePolicy, stype patch.SaveType, saveFn string) (*DirsaveInfo, error) {
	size := stype.Size()

	var dsinfo *DirsaveInfo
	if saveP == SaveDirect {
		if !stype.SupportsDirectSave() || m.Resolver == nil {
			return nil, ErrBadArg
		}
		lba, err := m.Resolver.FileBaseSector(saveFn, size)
		if err != nil {
			m.logger().Errorf("savegame: cannot pin %s: %v", saveFn, err)
			return nil, ErrCantAlloc
		}
		dsinfo = &DirsaveInfo{SaveSize: size, SectorLBA: lba}
	}

	switch loadP {
	case LoadSav:
		data, err := os.ReadFile(saveFn)
		switch {
		case err == nil && uint32(len(data)) >= size:
			m.writeSRAM(data[:size])
		case err != nil && !os.IsNotExist(err):
			return nil, ErrBadSave
		default:
			// Missing or short file: start fresh.
			m.clearSRAM(size)
		}
	case LoadReset:
		m.clearSRAM(size)
	case LoadDisable:
	default:
		return nil, ErrBadArg
	}

	switch saveP {
	case SaveReboot:
		if err := m.dropPendingMarker(saveFn, size); err != nil {
			return nil, ErrCantWrite
		}
	case SaveDisable, SaveDirect:
		// Nothing happens at the next boot.
	default:
		return nil, ErrBadArg
	}

	return dsinfo, nil
}

// dropPendingMarker records that SRAM must be written back on the next
// boot, and where.
func (m *Manager) dropPendingMarker(saveFn string, size uint32) error {
	if err := os.MkdirAll(m.ConfigDir, 0o755); err != nil {
		return err
	}
	content := fmt.Sprintf("%s\n%d\n", saveFn, size)
	return utils.WriteFileAtomic(m.pendingPath(), []byte(content), 0o644)
}

// CommitPending runs at boot: if a pending-save marker exists, the
// SRAM contents are written to the recorded .sav file (rotating older
// copies first) and the marker is dropped.
func (m *Manager) CommitPending() error {
	data, err := os.ReadFile(m.pendingPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return ErrBadSave
	}

	lines := strings.SplitN(strings.TrimSpace(string(data)), "\n", 2)
	if len(lines) != 2 {
		os.Remove(m.pendingPath())
		return ErrBadSave
	}
	saveFn := lines[0]
	size, err := strconv.ParseUint(strings.TrimSpace(lines[1]), 10, 32)
	if err != nil || size > supercard.SRAMBankSize*supercard.SRAMBanks {
		os.Remove(m.pendingPath())
		return ErrBadSave
	}

	if m.BackupCount > 0 && utils.Exists(saveFn) {
		if err := m.rotateBackups(saveFn); err != nil {
			return ErrCantCopy
		}
	}

	if err := utils.WriteFileAtomic(saveFn, m.readSRAM(uint32(size)), 0o644); err != nil {
		m.logger().Errorf("savegame: cannot write %s: %v", saveFn, err)
		return ErrCantWrite
	}
	m.logger().Infof("savegame: flushed %d bytes to %s", size, saveFn)

	os.Remove(m.pendingPath())
	return nil
}

// rotateBackups shifts save.sav -> save.sav.1 -> save.sav.2 ... keeping
// BackupCount older copies.
func (m *Manager) rotateBackups(saveFn string) error {
	for i := m.BackupCount; i > 1; i-- {
		from := fmt.Sprintf("%s.%d", saveFn, i-1)
		if utils.Exists(from) {
			if err := os.Rename(from, fmt.Sprintf("%s.%d", saveFn, i)); err != nil {
				return err
			}
		}
	}
	return os.Rename(saveFn, saveFn+".1")
}

// writeSRAM spreads a save image over the SRAM banks (128KiB saves use
// both).
func (m *Manager) writeSRAM(data []byte) {
	for bank := 0; bank < supercard.SRAMBanks && len(data) > 0; bank++ {
		n := copy(m.Card.SRAMBank(bank), data)
		data = data[n:]
	}
}

func (m *Manager) clearSRAM(size uint32) {
	for bank := 0; bank < supercard.SRAMBanks && size > 0; bank++ {
		b := m.Card.SRAMBank(bank)
		n := uint32(len(b))
		if size < n {
			n = size
		}
		for i := uint32(0); i < n; i++ {
			b[i] = 0
		}
		size -= n
	}
}

func (m *Manager) readSRAM(size uint32) []byte {
	out := make([]byte, 0, size)
	for bank := 0; bank < supercard.SRAMBanks && uint32(len(out)) < size; bank++ {
		b := m.Card.SRAMBank(bank)
		n := size - uint32(len(out))
		if n > uint32(len(b)) {
			n = uint32(len(b))
		}
		out = append(out, b[:n]...)
	}
	return out
}
