// Package listing reconstructs an Image from whatever is actually on flash,
// ported from cmd.c's list(): scan the page in MinRomSize strides, keep
// anything with a valid header and a sane declared size, skip everything
// else as garbage.
package listing

import (
	"fmt"

	"openenterprise/emsflasher/internal/emserr"
	"openenterprise/emsflasher/internal/emsconst"
	"openenterprise/emsflasher/internal/flash"
	"openenterprise/emsflasher/internal/header"
	"openenterprise/emsflasher/internal/romimage"
	"openenterprise/emsflasher/internal/transport"
)

// List scans one page of t (at absolute offset base) and returns the ROMs
// it finds, in offset order.
func List(t transport.Transport, base uint32) (*romimage.Image, error) {
	img := romimage.New(emsconst.PageSize)

	buf := make([]byte, header.Size)
	for offset := uint32(0); offset < emsconst.PageSize; {
		if err := t.Read(base+offset, buf); err != nil {
			return nil, fmt.Errorf("read flash at %#x: %w: %v", base+offset, flash.ErrUSB, err)
		}

		if !header.Valid(buf) {
			offset += emsconst.MinRomSize
			continue
		}

		h := header.Decode(buf)
		if h.ROMSize == 0 || h.ROMSize&(h.ROMSize-1) != 0 ||
			offset%h.ROMSize != 0 || offset+h.ROMSize > emsconst.PageSize {
			offset += emsconst.MinRomSize
			continue
		}

		img.InsertTail(&romimage.Rom{
			Offset:     offset,
			Size:       h.ROMSize,
			Source:     romimage.SourceFlash,
			OrigOffset: offset,
			Header:     h,
		})
		offset += h.ROMSize
	}

	return img, nil
}

// Validate checks invariants a caller can't trust list() alone to have
// enforced: that the ROMs found account for no more than one page, and that
// no two share a title.
func Validate(img *romimage.Image) error {
	var total uint64
	seen := make(map[string]bool)

	for _, r := range img.Slice() {
		total += uint64(r.Size)
		if total > emsconst.PageSize {
			return fmt.Errorf("sum of rom sizes exceeds page size: %w", emserr.ErrFormat)
		}
		if seen[r.Header.Title] {
			return fmt.Errorf("title %q appears more than once: %w", r.Header.Title, emserr.ErrDuplicateTitle)
		}
		seen[r.Header.Title] = true
	}

	return nil
}
