package savegame

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/davidgfnet/go-superfw/internal/patch"
	"github.com/davidgfnet/go-superfw/internal/supercard"
	"github.com/davidgfnet/go-superfw/pkg/utils"
)

type fakeResolver struct {
	lba  uint32
	fail bool
}

func (f *fakeResolver) FileBaseSector(path string, minSize uint32) (uint32, error) {
	if f.fail {
		return 0, errors.New("not contiguous")
	}
	return f.lba, nil
}

func newManager(t *testing.T) (*Manager, string) {
	t.Helper()
	dir := t.TempDir()
	return &Manager{
		ConfigDir: filepath.Join(dir, ".superfw"),
		Card:      supercard.New(),
	}, dir
}

func TestLoadSavSeedsSRAM(t *testing.T) {
	m, dir := newManager(t)
	saveFn := filepath.Join(dir, "game.sav")

	img := make([]byte, 32*1024)
	for i := range img {
		img[i] = byte(i)
	}
	if err := os.WriteFile(saveFn, img, 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := m.Prepare(LoadSav, SaveDisable, patch.SaveTypeSRAM, saveFn); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sram := m.Card.SRAMBank(0)
	for i := 0; i < 32*1024; i++ {
		if sram[i] != byte(i) {
			t.Fatalf("SRAM byte %d not seeded", i)
		}
	}
}

func TestLoadSavMissingFallsBackToReset(t *testing.T) {
	m, dir := newManager(t)
	m.Card.SRAMBank(0)[0] = 0xAA

	if _, err := m.Prepare(LoadSav, SaveDisable, patch.SaveTypeSRAM, filepath.Join(dir, "none.sav")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Card.SRAMBank(0)[0] != 0 {
		t.Error("expected SRAM cleared when save file is missing")
	}
}

func TestLoadSpans128KSaves(t *testing.T) {
	m, dir := newManager(t)
	saveFn := filepath.Join(dir, "big.sav")
	img := make([]byte, 128*1024)
	img[64*1024] = 0x77
	if err := os.WriteFile(saveFn, img, 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := m.Prepare(LoadSav, SaveDisable, patch.SaveTypeFlash1M, saveFn); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Card.SRAMBank(1)[0] != 0x77 {
		t.Error("expected second half of the save in bank 1")
	}
}

func TestLoadDisableLeavesSRAM(t *testing.T) {
	m, _ := newManager(t)
	m.Card.SRAMBank(0)[10] = 0x42
	if _, err := m.Prepare(LoadDisable, SaveDisable, patch.SaveTypeSRAM, "unused.sav"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Card.SRAMBank(0)[10] != 0x42 {
		t.Error("expected SRAM untouched")
	}
}

func TestDirectSaveResolvesSector(t *testing.T) {
	m, dir := newManager(t)
	m.Resolver = &fakeResolver{lba: 123456}

	ds, err := m.Prepare(LoadReset, SaveDirect, patch.SaveTypeFlash512K, filepath.Join(dir, "g.sav"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ds == nil || ds.SectorLBA != 123456 || ds.SaveSize != 64*1024 {
		t.Errorf("unexpected dirsave info: %+v", ds)
	}
}

func TestDirectSaveErrors(t *testing.T) {
	m, _ := newManager(t)
	m.Resolver = &fakeResolver{}

	t.Run("bad save type", func(t *testing.T) {
		_, err := m.Prepare(LoadReset, SaveDirect, patch.SaveTypeNone, "g.sav")
		var se *Error
		if !errors.As(err, &se) || se.Code != 1 {
			t.Errorf("expected BADARG(1), got %v", err)
		}
		// SRAM-based saves cannot be SD-serviced either.
		_, err = m.Prepare(LoadReset, SaveDirect, patch.SaveTypeSRAM, "g.sav")
		if !errors.As(err, &se) || se.Code != 1 {
			t.Errorf("expected BADARG(1), got %v", err)
		}
	})
	t.Run("not contiguous", func(t *testing.T) {
		m.Resolver = &fakeResolver{fail: true}
		_, err := m.Prepare(LoadReset, SaveDirect, patch.SaveTypeEEPROM64K, "g.sav")
		var se *Error
		if !errors.As(err, &se) || se.Code != 4 {
			t.Errorf("expected CANTALLOC(4), got %v", err)
		}
	})
}

func TestRebootSaveRoundTrip(t *testing.T) {
	m, dir := newManager(t)
	saveFn := filepath.Join(dir, "game.sav")

	if _, err := m.Prepare(LoadReset, SaveReboot, patch.SaveTypeFlash512K, saveFn); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !utils.Exists(m.pendingPath()) {
		t.Fatal("expected pending marker after prepare")
	}

	// The game ran and left its save in SRAM.
	copy(m.Card.SRAMBank(0), []byte("SAVEDATA"))

	if err := m.CommitPending(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := os.ReadFile(saveFn)
	if err != nil {
		t.Fatalf("expected save file: %v", err)
	}
	if len(data) != 64*1024 || string(data[:8]) != "SAVEDATA" {
		t.Errorf("unexpected save contents: %d bytes", len(data))
	}
	if utils.Exists(m.pendingPath()) {
		t.Error("expected marker dropped after commit")
	}

	// A second boot without a marker is a no-op.
	if err := m.CommitPending(); err != nil {
		t.Errorf("unexpected error on marker-less boot: %v", err)
	}
}

func TestBackupRotation(t *testing.T) {
	m, dir := newManager(t)
	m.BackupCount = 2
	saveFn := filepath.Join(dir, "game.sav")

	if err := os.WriteFile(saveFn, []byte("gen1"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := m.Prepare(LoadDisable, SaveReboot, patch.SaveTypeEEPROM4K, saveFn); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	copy(m.Card.SRAMBank(0), []byte("gen2"))
	if err := m.CommitPending(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := m.Prepare(LoadDisable, SaveReboot, patch.SaveTypeEEPROM4K, saveFn); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	copy(m.Card.SRAMBank(0), []byte("gen3"))
	if err := m.CommitPending(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	b1, err := os.ReadFile(saveFn + ".1")
	if err != nil {
		t.Fatalf("expected first backup: %v", err)
	}
	if string(b1[:4]) != "gen2" {
		t.Errorf("expected gen2 in .1, got %q", b1[:4])
	}
	b2, err := os.ReadFile(saveFn + ".2")
	if err != nil {
		t.Fatalf("expected second backup: %v", err)
	}
	if string(b2[:4]) != "gen1" {
		t.Errorf("expected gen1 in .2, got %q", b2[:4])
	}
}
