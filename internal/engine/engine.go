// Package engine executes an update plan against flash, in the teacher's
// "apply, and on failure recover whatever the erase block still allows"
// style: ported from updates.c's apply_updates.
package engine

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"openenterprise/emsflasher/internal/flash"
	"openenterprise/emsflasher/internal/progress"
	"openenterprise/emsflasher/internal/updateplan"
)

// LostRom describes a ROM that the recovery pass could not restore after an
// update failed partway through.
type LostRom struct {
	Title string
	// Possibly is true when the destination erase block's own format could
	// not be confirmed (the failure landed exactly on a block boundary), so
	// the ROM might still be intact.
	Possibly bool
}

// Apply executes cmds in order against f, rendering progress through rep and,
// when verbose, printing a "Writing ..."/"Defragmenting..." narration line to
// out the way the command-line tool does. base is the page's absolute
// address (page index times the page size).
//
// On the first failure of any kind, Apply stops issuing new commands and
// instead walks the remaining Write commands that target the same erase
// block the failure occurred in, retrying each (since the block's own erase
// may well have succeeded even though one write to it didn't) until either
// they succeed, a different erase block is reached, or a retry itself fails
// with a USB error. Every ROM it couldn't restore this way is returned in
// lost.
func Apply(f *flash.Flasher, rep *progress.Reporter, base uint32, verbose bool, out io.Writer, log *slog.Logger, cmds []updateplan.Command) ([]LostRom, error) {
	rep.Start(cmds)

	inDefrag := false
	failedAt := -1
	var failErr error

	for i, cmd := range cmds {
		if verbose {
			if cmd.Kind == updateplan.WriteFile {
				rep.Newline()
				fmt.Fprintf(out, "Writing %s [%s]...\n", cmd.Rom.File.Path, cmd.Rom.Header.Title)
				rep.Refresh()
				inDefrag = false
			} else if !inDefrag {
				rep.Newline()
				fmt.Fprintln(out, "Defragmenting...")
				rep.Refresh()
				inDefrag = true
			}
		}

		if err := execute(f, base, cmd); err != nil {
			failedAt = i
			failErr = err
			break
		}
	}

	rep.Newline()

	if failedAt < 0 {
		return nil, nil
	}

	log.Warn("update failed", "error", failErr)

	lost := recover_(f, base, verbose, out, log, cmds, failedAt, failErr)
	return lost, failErr
}

// recover_ implements the salvage pass; named with a trailing underscore
// since "recover" shadows the builtin.
func recover_(f *flash.Flasher, base uint32, verbose bool, out io.Writer, log *slog.Logger, cmds []updateplan.Command, failedAt int, failErr error) []LostRom {
	var lost []LostRom
	errIdx := failedAt
	r := failErr

	for i := failedAt; i < len(cmds); i++ {
		cmd := cmds[i]
		if cmd.Kind != updateplan.Write {
			continue
		}

		// Compared as signed: LastOffset starts at -1 (nothing written
		// yet), and -1/EraseBlockSize truncates to 0 same as it would in
		// a C int division, so a failure before any write at all still
		// lines up against block 0 instead of always breaking out here.
		destBlock := int64(base+cmd.Rom.Offset) / int64(updateplan.EraseBlockSize)
		if f.LastOffset/int64(updateplan.EraseBlockSize) != destBlock {
			break
		}

		isUSB := errors.Is(r, flash.ErrUSB)

		if !isUSB && i != errIdx {
			if verbose {
				fmt.Fprintf(out, "Recovering %s\n", cmd.Rom.Header.Title)
			}
			if err := f.WriteSlot(base+cmd.Rom.Offset, cmd.Rom.Size, cmd.Slot); err != nil {
				log.Warn("recovery write failed", "title", cmd.Rom.Header.Title, "error", err)
				r = err
				errIdx = i
				isUSB = errors.Is(r, flash.ErrUSB)
			}
		}

		if isUSB || i == errIdx {
			lost = append(lost, LostRom{
				Title:    cmd.Rom.Header.Title,
				Possibly: f.LastOffset%int64(updateplan.EraseBlockSize) == 0,
			})
		}
	}

	return lost
}

func execute(f *flash.Flasher, base uint32, cmd updateplan.Command) error {
	switch cmd.Kind {
	case updateplan.WriteFile:
		path := cmd.Rom.File.Path
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("stat %s: %w: %v", path, flash.ErrFile, err)
		}
		if !info.ModTime().Equal(cmd.Rom.File.ModTime) || info.Size() != cmd.Rom.File.Size {
			return fmt.Errorf("%s changed since it was staged: %w", path, flash.ErrFile)
		}
		return f.WriteFile(base+cmd.Rom.Offset, cmd.Rom.Size, path)
	case updateplan.Move:
		return f.Move(base+cmd.Rom.Offset, cmd.Rom.Size, base+cmd.Rom.OrigOffset)
	case updateplan.Read:
		return f.ReadSlot(cmd.Slot, base+cmd.Rom.OrigOffset, cmd.Rom.Size)
	case updateplan.Write:
		return f.WriteSlot(base+cmd.Rom.Offset, cmd.Rom.Size, cmd.Slot)
	case updateplan.Erase:
		return f.Erase(base + cmd.EraseOffset)
	default:
		return fmt.Errorf("engine: unknown command kind %d", cmd.Kind)
	}
}
