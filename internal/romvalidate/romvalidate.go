// Package romvalidate turns a ROM file path on disk into a validated
// *romimage.Rom ready for insertion, grounded on cmd.c's per-argument
// checks in cmd_write: header must validate, declared size must be a
// nonzero power of two, and must match the file's actual size on disk.
package romvalidate

import (
	"fmt"
	"io"
	"os"

	"openenterprise/emsflasher/internal/flash"
	"openenterprise/emsflasher/internal/header"
	"openenterprise/emsflasher/internal/romimage"
)

// File validates path and returns the Rom it describes, with Source set to
// SourceFile and Offset left zero (the planner assigns it).
func File(path string) (*romimage.Rom, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w: %v", path, flash.ErrFile, err)
	}
	defer f.Close()

	buf := make([]byte, header.Size)
	if _, err := io.ReadFull(f, buf); err != nil {
		return nil, fmt.Errorf("%s: too small to carry a header: %w", path, flash.ErrFile)
	}
	if !header.Valid(buf) {
		return nil, fmt.Errorf("%s: invalid header: %w", path, flash.ErrFile)
	}
	h := header.Decode(buf)
	if h.ROMSize == 0 {
		return nil, fmt.Errorf("%s: unrecognized rom size code in header: %w", path, flash.ErrFile)
	}
	if h.ROMSize&(h.ROMSize-1) != 0 {
		return nil, fmt.Errorf("%s: declared size %d is not a power of two: %w", path, h.ROMSize, flash.ErrFile)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w: %v", path, flash.ErrFile, err)
	}
	if uint32(info.Size()) != h.ROMSize {
		return nil, fmt.Errorf("%s: declared size %d doesn't match file size %d: %w",
			path, h.ROMSize, info.Size(), flash.ErrFile)
	}

	return &romimage.Rom{
		Size:   h.ROMSize,
		Source: romimage.SourceFile,
		File:   &romimage.RomFile{Path: path, ModTime: info.ModTime(), Size: info.Size()},
		Header: h,
	}, nil
}
