package savegame

import (
	"testing"

	"github.com/davidgfnet/go-superfw/pkg/utils"
)

func TestSRAMTestSchedule(t *testing.T) {
	m, _ := newManager(t)

	if got := m.CheckPendingSRAMTest(); got != -1 {
		t.Errorf("expected -1 with no test scheduled, got %d", got)
	}

	if err := m.ScheduleSRAMTest(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !utils.Exists(m.sramTestPath()) {
		t.Fatal("expected marker file after scheduling")
	}

	if got := m.CheckPendingSRAMTest(); got != 0 {
		t.Errorf("expected clean retention check, got %d", got)
	}
	if utils.Exists(m.sramTestPath()) {
		t.Error("expected marker removed after check")
	}
	if got := m.CheckPendingSRAMTest(); got != -1 {
		t.Errorf("expected -1 after marker consumed, got %d", got)
	}
}

func TestSRAMTestDetectsLoss(t *testing.T) {
	m, _ := newManager(t)
	if err := m.ScheduleSRAMTest(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Simulate a dead battery losing a few cells.
	m.Card.SRAMBank(0)[0] ^= 0xFF
	m.Card.SRAMBank(0)[999] ^= 0x01
	if got := m.CheckPendingSRAMTest(); got != 2 {
		t.Errorf("expected 2 mismatches, got %d", got)
	}
}
