// Package dump implements the whole-page and whole-SRAM linear copies
// between a transport and a local file, the external, logic-free collaborator
// named by spec §4.6: MODE_DUMP/MODE_RESTORE in the original main.c.
package dump

import (
	"fmt"
	"io"
	"os"

	"openenterprise/emsflasher/internal/emsconst"
	"openenterprise/emsflasher/internal/flash"
	"openenterprise/emsflasher/internal/transport"
)

// ProgressFunc receives the cumulative byte count transferred so far. Page
// calls it after each chunk; Restore calls it each time another
// ReadBlockSize bytes have been written.
type ProgressFunc func(done, total uint32)

// Page streams size bytes starting at base from t into the file at path,
// overwriting it.
func Page(t transport.Transport, base, size uint32, path string, progress ProgressFunc) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w: %v", path, flash.ErrFile, err)
	}
	defer f.Close()

	buf := make([]byte, emsconst.ReadBlockSize)
	var done uint32
	for done < size {
		n := uint32(emsconst.ReadBlockSize)
		if size-done < n {
			n = size - done
		}
		if err := t.Read(base+done, buf[:n]); err != nil {
			return fmt.Errorf("read flash at %#x: %w: %v", base+done, flash.ErrUSB, err)
		}
		if _, err := f.Write(buf[:n]); err != nil {
			return fmt.Errorf("write %s: %w: %v", path, flash.ErrFile, err)
		}
		done += n
		if progress != nil {
			progress(done, size)
		}
	}
	return nil
}

// Restore streams size bytes from the file at path into t starting at base.
// Writes land on WriteBlockSize-aligned offsets, so a write that happens to
// fall on an erase-block boundary implicitly erases that block first, the
// same as any other write through this transport.
func Restore(t transport.Transport, base, size uint32, path string, progress ProgressFunc) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w: %v", path, flash.ErrFile, err)
	}
	defer f.Close()

	buf := make([]byte, emsconst.WriteBlockSize)
	var done uint32
	for done < size {
		n := uint32(emsconst.WriteBlockSize)
		if size-done < n {
			n = size - done
		}
		if _, err := io.ReadFull(f, buf[:n]); err != nil {
			return fmt.Errorf("read %s: %w: %v", path, flash.ErrFile, err)
		}
		if err := t.Write(base+done, buf[:n]); err != nil {
			return fmt.Errorf("write flash at %#x: %w: %v", base+done, flash.ErrUSB, err)
		}
		done += n
		if progress != nil && done%emsconst.ReadBlockSize == 0 {
			progress(done, size)
		}
	}
	return nil
}
