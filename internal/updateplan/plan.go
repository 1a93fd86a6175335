// Package updateplan diffs a desired layout against its current flash
// placement and produces an ordered stream of commands that will bring
// flash memory in line with it.
package updateplan

import (
	"openenterprise/emsflasher/internal/emsconst"
	"openenterprise/emsflasher/internal/romimage"
)

// EraseBlockSize is the granularity at which flash can be erased; ROMs
// smaller than this share an erase block and must be planned together.
const EraseBlockSize = emsconst.EraseBlockSize

// Kind identifies the operation a Command performs.
type Kind int

const (
	WriteFile Kind = iota // stream a ROM from a file straight to its destination
	Move                  // copy a ROM already on flash to a new offset
	Read                  // stash a small ROM into a rescue slot before erasing its block
	Write                 // write a small ROM out of its rescue slot to its new offset
	Erase                 // erase one block before writing small ROMs back into it
)

// Command is one step of an update plan.
type Command struct {
	Kind Kind

	// Rom is the ROM this command concerns. Nil for Erase.
	Rom *romimage.Rom

	// Slot is the rescue-slot index used by Read (destination) and Write
	// (source).
	Slot int

	// EraseOffset is the destination offset for Erase.
	EraseOffset uint32
}

func eraseBlockNb(offset uint32) uint32 { return offset / EraseBlockSize }

// Plan walks img in offset order and emits the commands needed to bring
// flash memory to match it. A ROM already on flash at its target offset is
// a no-op and emits nothing. ROMs at least EraseBlockSize large are moved
// or written independently; smaller ROMs are planned one erase block at a
// time, since overwriting any of them requires erasing (and therefore
// rewriting) the whole block.
func Plan(img *romimage.Image) []Command {
	var cmds []Command

	for rom := img.Head(); rom != nil; {
		if rom.Source == romimage.SourceFlash && rom.Offset == rom.OrigOffset {
			rom = img.Next(rom)
			continue
		}

		if rom.Size >= EraseBlockSize {
			cmds = append(cmds, bigRomCommand(rom))
			rom = img.Next(rom)
			continue
		}

		from := rom
		for prev := img.Prev(from); prev != nil && eraseBlockNb(prev.Offset) == eraseBlockNb(from.Offset); prev = img.Prev(from) {
			from = prev
		}

		cmds = append(cmds, smallRomCommands(img, from)...)

		for next := img.Next(rom); next != nil && eraseBlockNb(next.Offset) == eraseBlockNb(from.Offset); next = img.Next(rom) {
			rom = next
		}
		rom = img.Next(rom)
	}

	return cmds
}

func bigRomCommand(rom *romimage.Rom) Command {
	if rom.Source == romimage.SourceFile {
		return Command{Kind: WriteFile, Rom: rom}
	}
	return Command{Kind: Move, Rom: rom}
}

// smallRomCommands plans every ROM sharing from's destination erase block:
// first rescue-reading any of them whose current flash location is also in
// that block (since the upcoming erase would destroy it), then erasing the
// block if its start doesn't already align to from's offset, then writing
// each ROM back out — from its rescue slot if it was read, or fresh
// (WriteFile/Move) otherwise.
func smallRomCommands(img *romimage.Image, from *romimage.Rom) []Command {
	var cmds []Command
	block := eraseBlockNb(from.Offset)

	slot := 0
	for cur := from; cur != nil && eraseBlockNb(cur.Offset) == block; cur = img.Next(cur) {
		if cur.Source == romimage.SourceFlash && eraseBlockNb(cur.OrigOffset) == block {
			cmds = append(cmds, Command{Kind: Read, Rom: cur, Slot: slot})
			slot++
		}
	}

	if from.Offset%EraseBlockSize != 0 {
		cmds = append(cmds, Command{Kind: Erase, EraseOffset: from.Offset - from.Offset%EraseBlockSize})
	}

	slot = 0
	for cur := from; cur != nil && eraseBlockNb(cur.Offset) == block; cur = img.Next(cur) {
		switch {
		case cur.Source == romimage.SourceFlash && eraseBlockNb(cur.OrigOffset) == block:
			cmds = append(cmds, Command{Kind: Write, Rom: cur, Slot: slot})
			slot++
		case cur.Source == romimage.SourceFile:
			cmds = append(cmds, Command{Kind: WriteFile, Rom: cur})
		default:
			cmds = append(cmds, Command{Kind: Move, Rom: cur})
		}
	}

	return cmds
}
