package romvalidate

import (
	"os"
	"path/filepath"
	"testing"

	"openenterprise/emsflasher/internal/header"
)

var nintendoLogo = [48]byte{
	0xCE, 0xED, 0x66, 0x66, 0xCC, 0x0D, 0x00, 0x0B,
	0x03, 0x73, 0x00, 0x83, 0x00, 0x0C, 0x00, 0x0D,
	0x00, 0x08, 0x11, 0x1F, 0x88, 0x89, 0x00, 0x0E,
	0xDC, 0xCC, 0x6E, 0xE6, 0xDD, 0xDD, 0xD9, 0x99,
	0xBB, 0xBB, 0x67, 0x63, 0x6E, 0x0E, 0xEC, 0xCC,
	0xDD, 0xDC, 0x99, 0x9F, 0xBB, 0xB9, 0x33, 0x3E,
}

func buildRom(title string, sizeCode byte, size int) []byte {
	buf := make([]byte, size)
	copy(buf[0x104:], nintendoLogo[:])
	copy(buf[0x134:], title)
	buf[0x148] = sizeCode

	var chk uint8
	for i := 0x134; i < 0x14D; i++ {
		chk -= buf[i] + 1
	}
	buf[0x14D] = chk
	return buf
}

func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFileAcceptsValidRom(t *testing.T) {
	path := writeTemp(t, "game.gb", buildRom("GAME", 0, 32*1024))

	rom, err := File(path)
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	if rom.Size != 32*1024 {
		t.Errorf("got size %d, want 32768", rom.Size)
	}
	if rom.Header.Title != "GAME" {
		t.Errorf("got title %q, want GAME", rom.Header.Title)
	}
	if rom.File.Path != path {
		t.Errorf("got path %q, want %q", rom.File.Path, path)
	}
}

func TestFileRejectsSizeMismatch(t *testing.T) {
	// Header declares 64 KiB but the file is only 32 KiB.
	path := writeTemp(t, "game.gb", buildRom("GAME", 1, 32*1024))

	if _, err := File(path); err == nil {
		t.Fatal("expected an error for a size-code/file-size mismatch")
	}
}

func TestFileRejectsInvalidHeader(t *testing.T) {
	path := writeTemp(t, "game.gb", make([]byte, header.Size))

	if _, err := File(path); err == nil {
		t.Fatal("expected an error for a missing logo/checksum")
	}
}
