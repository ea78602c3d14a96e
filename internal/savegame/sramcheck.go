package savegame

import (
	"os"
	"path/filepath"

	"github.com/davidgfnet/go-superfw/pkg/utils"
)

// SRAM retention check scheduling: a marker file is dropped before
// powering down; if it is present on the next boot the pattern written
// by PseudoFill is verified.

const pendingSRAMTestFile = "pending-sram-test.txt"

func (m *Manager) sramTestPath() string {
	return filepath.Join(m.ConfigDir, pendingSRAMTestFile)
}

// ScheduleSRAMTest fills the SRAM with the check pattern and drops the
// marker so the next boot verifies it.
func (m *Manager) ScheduleSRAMTest() error {
	if err := os.MkdirAll(m.ConfigDir, 0o755); err != nil {
		return ErrCantWrite
	}
	m.Card.PseudoFill()
	if err := utils.WriteFileAtomic(m.sramTestPath(), nil, 0o644); err != nil {
		return ErrCantWrite
	}
	return nil
}

// CheckPendingSRAMTest runs at boot: if the marker exists it is removed
// and the retention check runs, returning the mismatch count. Returns
// -1 when no test was scheduled.
func (m *Manager) CheckPendingSRAMTest() int {
	if !utils.Exists(m.sramTestPath()) {
		return -1
	}
	os.Remove(m.sramTestPath())
	return m.Card.PseudoCheck()
}
