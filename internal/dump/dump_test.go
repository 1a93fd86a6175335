package dump

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"openenterprise/emsflasher/internal/emsconst"
	"openenterprise/emsflasher/internal/transport"
)

func TestPageStreamsBytesToFile(t *testing.T) {
	mem := transport.NewMem(3 * emsconst.ReadBlockSize)
	want := make([]byte, 3*emsconst.ReadBlockSize)
	for i := range want {
		want[i] = byte(i)
	}
	copy(mem.Bytes(), want)

	path := filepath.Join(t.TempDir(), "page.bin")
	var calls []uint32
	err := Page(mem, 0, uint32(len(want)), path, func(done, total uint32) {
		calls = append(calls, done)
		if total != uint32(len(want)) {
			t.Errorf("got total %d, want %d", total, len(want))
		}
	})
	if err != nil {
		t.Fatalf("Page: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, want) {
		t.Error("dumped bytes don't match source")
	}
	if len(calls) != 3 {
		t.Errorf("got %d progress calls, want 3", len(calls))
	}
}

func TestPageHandlesSizeNotMultipleOfChunk(t *testing.T) {
	size := uint32(emsconst.ReadBlockSize + 10)
	mem := transport.NewMem(int(size))
	want := make([]byte, size)
	for i := range want {
		want[i] = byte(i + 1)
	}
	copy(mem.Bytes(), want)

	path := filepath.Join(t.TempDir(), "page.bin")
	if err := Page(mem, 0, size, path, nil); err != nil {
		t.Fatalf("Page: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, want) {
		t.Error("dumped bytes don't match source for a trailing partial chunk")
	}
}

func TestRestoreStreamsBytesFromFile(t *testing.T) {
	size := uint32(2*emsconst.ReadBlockSize + emsconst.WriteBlockSize)
	want := make([]byte, size)
	for i := range want {
		want[i] = byte(i * 3)
	}
	path := filepath.Join(t.TempDir(), "page.bin")
	if err := os.WriteFile(path, want, 0o644); err != nil {
		t.Fatal(err)
	}

	mem := transport.NewMem(int(size))
	var calls []uint32
	err := Restore(mem, 0, size, path, func(done, total uint32) {
		calls = append(calls, done)
		if total != size {
			t.Errorf("got total %d, want %d", total, size)
		}
	})
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}

	if !bytes.Equal(mem.Bytes(), want) {
		t.Error("restored bytes don't match source file")
	}
	if len(calls) != 2 {
		t.Errorf("got %d progress calls (expected one per full ReadBlockSize boundary), want 2", len(calls))
	}
}

func TestRestoreRejectsTruncatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page.bin")
	if err := os.WriteFile(path, make([]byte, emsconst.WriteBlockSize), 0o644); err != nil {
		t.Fatal(err)
	}

	mem := transport.NewMem(2 * emsconst.WriteBlockSize)
	if err := Restore(mem, 0, 2*emsconst.WriteBlockSize, path, nil); err == nil {
		t.Fatal("expected an error for a file shorter than size")
	}
}
