package menu

import (
	"os"
	"path/filepath"
	"testing"

	"openenterprise/emsflasher/internal/emsconst"
	"openenterprise/emsflasher/internal/header"
	"openenterprise/emsflasher/internal/romimage"
)

var nintendoLogo = [48]byte{
	0xCE, 0xED, 0x66, 0x66, 0xCC, 0x0D, 0x00, 0x0B,
	0x03, 0x73, 0x00, 0x83, 0x00, 0x0C, 0x00, 0x0D,
	0x00, 0x08, 0x11, 0x1F, 0x88, 0x89, 0x00, 0x0E,
	0xDC, 0xCC, 0x6E, 0xE6, 0xDD, 0xDD, 0xD9, 0x99,
	0xBB, 0xBB, 0x67, 0x63, 0x6E, 0x0E, 0xEC, 0xCC,
	0xDD, 0xDC, 0x99, 0x9F, 0xBB, 0xB9, 0x33, 0x3E,
}

// buildMenu constructs a MinRomSize-sized bank-0 menu image carrying the
// sentinel title and the given CGB flag byte.
func buildMenu(cgbFlag byte) []byte {
	buf := make([]byte, emsconst.MinRomSize)
	copy(buf[0x104:], nintendoLogo[:])
	copy(buf[0x134:], SentinelTitle)
	buf[0x143] = cgbFlag

	var chk uint8
	for i := 0x134; i < 0x14D; i++ {
		chk -= buf[i] + 1
	}
	buf[0x14D] = chk
	return buf
}

func writeMenuFile(t *testing.T, dir, name string, data []byte) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadPicksPlainMenuForNoEnhancement(t *testing.T) {
	dir := t.TempDir()
	writeMenuFile(t, dir, "menu.gb", buildMenu(0x00))

	rom, err := Load(dir, 0)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if rom.Header.Title != SentinelTitle {
		t.Errorf("got title %q, want %q", rom.Header.Title, SentinelTitle)
	}
	if rom.File.Path != filepath.Join(dir, "menu.gb") {
		t.Errorf("got path %q", rom.File.Path)
	}
}

func TestLoadPicksColorMenuForGBCEnhancement(t *testing.T) {
	dir := t.TempDir()
	writeMenuFile(t, dir, "menuc.gb", buildMenu(0x80))

	rom, err := Load(dir, header.EnhGBC)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if rom.File.Path != filepath.Join(dir, "menuc.gb") {
		t.Errorf("got path %q, want menuc.gb", rom.File.Path)
	}
}

func TestLoadRejectsEmptyMenuDir(t *testing.T) {
	if _, err := Load("", 0); err == nil {
		t.Fatal("expected an error for an empty MENUDIR")
	}
}

func TestLoadRejectsWrongSentinelTitle(t *testing.T) {
	dir := t.TempDir()
	bad := buildMenu(0x00)
	copy(bad[0x134:], "NOTMENU")
	var chk uint8
	for i := 0x134; i < 0x14D; i++ {
		chk -= bad[i] + 1
	}
	bad[0x14D] = chk
	writeMenuFile(t, dir, "menu.gb", bad)

	if _, err := Load(dir, 0); err == nil {
		t.Fatal("expected an error for a menu file without the sentinel title")
	}
}

func TestLoadRejectsWrongSize(t *testing.T) {
	dir := t.TempDir()
	writeMenuFile(t, dir, "menu.gb", buildMenu(0x00)[:emsconst.MinRomSize-1])

	if _, err := Load(dir, 0); err == nil {
		t.Fatal("expected an error for a menu file of the wrong size")
	}
}

func TestCombinedEnhancementOrsAllRoms(t *testing.T) {
	roms := []*romimage.Rom{
		{Header: header.Header{Enhancements: header.EnhGBC}},
		{Header: header.Header{Enhancements: header.EnhSGB}},
	}
	got := CombinedEnhancement(roms)
	if got != header.EnhGBC|header.EnhSGB {
		t.Errorf("got %v, want EnhGBC|EnhSGB", got)
	}
}

func TestCheckCompatibleRejectsGBCOnlyAgainstPlainMenu(t *testing.T) {
	rom := &romimage.Rom{Header: header.Header{Title: "GAME", GBCOnly: true}}
	if err := CheckCompatible(0, rom, false); err == nil {
		t.Fatal("expected an error for a GBC-only rom under a non-color menu")
	}
}

func TestCheckCompatibleAllowsForceOverride(t *testing.T) {
	rom := &romimage.Rom{Header: header.Header{Title: "GAME", GBCOnly: true}}
	if err := CheckCompatible(0, rom, true); err != nil {
		t.Errorf("force should bypass the enhancement check, got %v", err)
	}
}

func TestCheckCompatibleAllowsGBCOnlyUnderColorMenu(t *testing.T) {
	rom := &romimage.Rom{Header: header.Header{Title: "GAME", GBCOnly: true}}
	if err := CheckCompatible(header.EnhGBC, rom, false); err != nil {
		t.Errorf("got %v, want nil", err)
	}
}
