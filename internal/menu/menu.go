// Package menu loads the bank-0 boot menu ROM a page must carry before any
// user ROM can be inserted into it, selecting the file whose enhancements
// match the ROMs being written, the way MENUDIR is described in spec §6 and
// exercised in end-to-end scenario 1.
package menu

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"openenterprise/emsflasher/internal/emserr"
	"openenterprise/emsflasher/internal/emsconst"
	"openenterprise/emsflasher/internal/flash"
	"openenterprise/emsflasher/internal/header"
	"openenterprise/emsflasher/internal/romimage"
)

// SentinelTitle is the title every bank-0 menu ROM must carry (invariant I5).
const SentinelTitle = "MENU#"

// fileFor picks the menu variant matching the combined enhancement bits of
// the ROMs about to occupy the page.
func fileFor(enh header.Enhancement) string {
	switch {
	case enh&header.EnhGBC != 0 && enh&header.EnhSGB != 0:
		return "menucs.gb"
	case enh&header.EnhGBC != 0:
		return "menuc.gb"
	case enh&header.EnhSGB != 0:
		return "menus.gb"
	default:
		return "menu.gb"
	}
}

// CombinedEnhancement ORs together the enhancement bits of every ROM in
// roms, used to pick which menu variant an empty page should boot.
func CombinedEnhancement(roms []*romimage.Rom) header.Enhancement {
	var e header.Enhancement
	for _, r := range roms {
		e |= r.Header.Enhancements
	}
	return e
}

// Load validates and returns the bank-0 menu ROM from dir matching enh, as a
// file-sourced Rom ready to be inserted at the head of an empty image. dir
// is the value of the MENUDIR environment variable.
func Load(dir string, enh header.Enhancement) (*romimage.Rom, error) {
	if dir == "" {
		return nil, fmt.Errorf("MENUDIR is not set: %w", emserr.ErrInvalidArg)
	}

	path := filepath.Join(dir, fileFor(enh))

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w: %v", path, flash.ErrFile, err)
	}
	if info.Size() != emsconst.MinRomSize {
		return nil, fmt.Errorf("%s: menu file must be exactly %d bytes: %w", path, emsconst.MinRomSize, flash.ErrFile)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w: %v", path, flash.ErrFile, err)
	}
	defer f.Close()

	buf := make([]byte, header.Size)
	if _, err := io.ReadFull(f, buf); err != nil {
		return nil, fmt.Errorf("read %s: %w: %v", path, flash.ErrFile, err)
	}
	if !header.Valid(buf) {
		return nil, fmt.Errorf("%s: invalid header: %w", path, flash.ErrFile)
	}

	h := header.Decode(buf)
	if h.Title != SentinelTitle {
		return nil, fmt.Errorf("%s: title is %q, want %q: %w", path, h.Title, SentinelTitle, flash.ErrFile)
	}

	return &romimage.Rom{
		Size:   emsconst.MinRomSize,
		Source: romimage.SourceFile,
		File:   &romimage.RomFile{Path: path, ModTime: info.ModTime(), Size: info.Size()},
		Header: h,
	}, nil
}

// CheckCompatible enforces that rom's enhancement requirements don't
// conflict with the page's existing menu (menuEnh). force bypasses the
// check, per the CLI's --force flag.
func CheckCompatible(menuEnh header.Enhancement, rom *romimage.Rom, force bool) error {
	if force {
		return nil
	}
	if rom.Header.GBCOnly && menuEnh&header.EnhGBC == 0 {
		return fmt.Errorf("%s requires Color hardware but the page's menu doesn't support it: %w",
			rom.Header.Title, emserr.ErrEnhancementIncompat)
	}
	return nil
}
