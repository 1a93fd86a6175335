// Package flash implements the primitive operations that move bytes between
// a ROM file, the rescue slots, and the cartridge flash itself: writef, move,
// read, write, erase and delete, ported from flash.c. Every primitive that
// touches the 64-byte window at offset 0x100 (where the Nintendo logo the
// header validator checks begins) defers that window until the rest of the
// ROM is written, so a crash mid-operation leaves an invalid header
// rather than a corrupted-but-valid ROM.
package flash

import (
	"fmt"
	"io"
	"os"

	"openenterprise/emsflasher/internal/emsconst"
	"openenterprise/emsflasher/internal/progress"
	"openenterprise/emsflasher/internal/transport"
)

// ProgressFunc is notified after each completed chunk transfer.
type ProgressFunc func(kind progress.Kind, n uint32)

// CheckIntFunc reports whether an interrupt has been requested. Flash
// primitives poll it only at points where aborting is safe: between whole
// 32-byte write units, never mid-write.
type CheckIntFunc func() bool

// Flasher drives a Transport to perform the update primitives. The rescue
// slots hold small ROMs read out of an erase block that is about to be
// erased and rewritten, so they can be written back into it afterwards.
type Flasher struct {
	t        transport.Transport
	progress ProgressFunc
	checkInt CheckIntFunc
	slots    [emsconst.NumSlots][emsconst.SlotSize]byte

	// LastOffset is the flash address of the most recent successful write
	// unit, or -1 if nothing has been written yet. The recovery engine
	// uses it to tell how far a failed operation got.
	LastOffset int64
}

// New returns a Flasher driving t. prog and checkInt may be nil.
func New(t transport.Transport, prog ProgressFunc, checkInt CheckIntFunc) *Flasher {
	return &Flasher{t: t, progress: prog, checkInt: checkInt, LastOffset: -1}
}

func (f *Flasher) report(kind progress.Kind, n uint32) {
	if f.progress != nil {
		f.progress(kind, n)
	}
}

func (f *Flasher) interrupted() bool {
	return f.checkInt != nil && f.checkInt()
}

func (f *Flasher) write(offset uint32, buf []byte) error {
	if err := f.t.Write(offset, buf); err != nil {
		return fmt.Errorf("write flash at %#x: %w: %v", offset, ErrUSB, err)
	}
	f.LastOffset = int64(offset)
	if offset%emsconst.EraseBlockSize == 0 {
		f.report(progress.Erase, 0)
	}
	return nil
}

// Slot returns the rescue slot buffer for index n, for callers (the update
// engine) that need to stage a ROM read out of one erase block before its
// destination is erased.
func (f *Flasher) Slot(n int) []byte { return f.slots[n][:] }

// WriteFile streams size bytes from path into flash starting at destOffset,
// deferring the write-unit pair at offset 0x100 until everything else has
// landed, the way flash_writef does.
func (f *Flasher) WriteFile(destOffset, size uint32, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w: %v", path, ErrFile, err)
	}
	defer file.Close()

	const chunk = emsconst.WriteBlockSize * 2
	buf := make([]byte, chunk)
	var deferred [chunk]byte
	haveDeferred := false
	var sinceReport uint32

	for blockOfs := uint32(0); blockOfs < size; blockOfs += chunk {
		if _, err := io.ReadFull(file, buf); err != nil {
			return fmt.Errorf("read %s: %w: %v", path, ErrFile, err)
		}

		if blockOfs == emsconst.HeaderLastOffset {
			copy(deferred[:], buf)
			haveDeferred = true
			continue
		}

		if f.interrupted() {
			return ErrInterrupted
		}

		for i := 0; i < 2; i++ {
			half := buf[i*emsconst.WriteBlockSize : (i+1)*emsconst.WriteBlockSize]
			if err := f.write(destOffset+blockOfs+uint32(i)*emsconst.WriteBlockSize, half); err != nil {
				return err
			}
		}

		sinceReport += chunk
		if sinceReport >= emsconst.ReadBlockSize {
			f.report(progress.WriteFile, emsconst.ReadBlockSize)
			sinceReport -= emsconst.ReadBlockSize
		}
	}

	if haveDeferred {
		for i := 0; i < 2; i++ {
			half := deferred[i*emsconst.WriteBlockSize : (i+1)*emsconst.WriteBlockSize]
			ofs := destOffset + emsconst.HeaderLastOffset + uint32(i)*emsconst.WriteBlockSize
			if err := f.write(ofs, half); err != nil {
				return err
			}
		}
	}
	f.report(progress.WriteFile, emsconst.ReadBlockSize)
	return nil
}

// Move relocates a size-byte ROM already in flash from srcOffset to
// destOffset, reading it through a 4096-byte staging buffer, again deferring
// the 0x100 write-unit pair until last, then erasing the header of the old
// location so it no longer looks like a valid ROM.
func (f *Flasher) Move(destOffset, size, srcOffset uint32) error {
	buf := make([]byte, emsconst.ReadBlockSize)
	var deferred [emsconst.WriteBlockSize * 2]byte
	haveDeferred := false
	flipflop := false
	var sinceReport uint32

	src, dest := srcOffset, destOffset
	for remain := size; remain > 0; remain -= emsconst.ReadBlockSize {
		if f.interrupted() {
			return ErrInterrupted
		}

		if err := f.t.Read(src, buf); err != nil {
			return fmt.Errorf("read flash at %#x: %w: %v", src, ErrUSB, err)
		}
		f.report(progress.Read, emsconst.ReadBlockSize)

		for blockOfs := uint32(0); blockOfs < emsconst.ReadBlockSize; blockOfs += emsconst.WriteBlockSize {
			if src == srcOffset && blockOfs == emsconst.HeaderLastOffset {
				copy(deferred[:], buf[blockOfs:blockOfs+emsconst.WriteBlockSize*2])
				haveDeferred = true
				blockOfs += emsconst.WriteBlockSize
				continue
			}

			flipflop = !flipflop
			if flipflop && f.interrupted() {
				return ErrInterrupted
			}

			if err := f.write(dest+blockOfs, buf[blockOfs:blockOfs+emsconst.WriteBlockSize]); err != nil {
				return err
			}

			sinceReport += emsconst.WriteBlockSize
			if sinceReport >= emsconst.ReadBlockSize {
				f.report(progress.Write, emsconst.ReadBlockSize)
				sinceReport -= emsconst.ReadBlockSize
			}
		}

		src += emsconst.ReadBlockSize
		dest += emsconst.ReadBlockSize
	}

	if haveDeferred {
		for i := 0; i < 2; i++ {
			half := deferred[i*emsconst.WriteBlockSize : (i+1)*emsconst.WriteBlockSize]
			ofs := destOffset + emsconst.HeaderLastOffset + uint32(i)*emsconst.WriteBlockSize
			if err := f.write(ofs, half); err != nil {
				return err
			}
		}
	}
	f.report(progress.Write, emsconst.ReadBlockSize)

	return f.Delete(srcOffset, 2)
}

// ReadSlot pulls size bytes starting at offset out of flash into rescue
// slot n, 4096 bytes at a time, checking for an interrupt before every
// chunk.
func (f *Flasher) ReadSlot(slot int, offset, size uint32) error {
	dst := f.slots[slot][:]
	var pos uint32
	for remain := size; remain > 0; remain -= emsconst.ReadBlockSize {
		if f.interrupted() {
			return ErrInterrupted
		}
		if err := f.t.Read(offset, dst[pos:pos+emsconst.ReadBlockSize]); err != nil {
			return fmt.Errorf("read flash at %#x: %w: %v", offset, ErrUSB, err)
		}
		f.report(progress.Read, emsconst.ReadBlockSize)
		pos += emsconst.ReadBlockSize
		offset += emsconst.ReadBlockSize
	}
	return nil
}

// WriteSlot writes size bytes of rescue slot n to destOffset. Unlike
// WriteFile and Move it does not poll for an interrupt mid-transfer: the
// data is already safely parked in the slot, so there is nothing to lose by
// letting a single small write finish once started.
func (f *Flasher) WriteSlot(destOffset, size uint32, slot int) error {
	buf := f.slots[slot][:]
	var sinceReport uint32

	for blockOfs := uint32(0); blockOfs < size; blockOfs += emsconst.WriteBlockSize {
		if blockOfs == emsconst.HeaderLastOffset || blockOfs == emsconst.HeaderLastOffset+emsconst.WriteBlockSize {
			continue
		}
		if err := f.write(destOffset+blockOfs, buf[blockOfs:blockOfs+emsconst.WriteBlockSize]); err != nil {
			return err
		}
		sinceReport += emsconst.WriteBlockSize
		if sinceReport >= emsconst.ReadBlockSize {
			f.report(progress.Write, emsconst.ReadBlockSize)
			sinceReport -= emsconst.ReadBlockSize
		}
	}

	for i := uint32(0); i < 2; i++ {
		ofs := emsconst.HeaderLastOffset + i*emsconst.WriteBlockSize
		if err := f.write(destOffset+ofs, buf[ofs:ofs+emsconst.WriteBlockSize]); err != nil {
			return err
		}
	}
	f.report(progress.Write, emsconst.ReadBlockSize)
	return nil
}

// Erase writes 0xFF to the two write units at the start of an erase block;
// because the first of those writes lands on the block boundary, the flash
// erases the whole block, header included.
func (f *Flasher) Erase(offset uint32) error {
	if f.interrupted() {
		return ErrInterrupted
	}
	blank := make([]byte, emsconst.WriteBlockSize)
	for i := range blank {
		blank[i] = 0xff
	}
	for i := 0; i < 2; i++ {
		if err := f.write(offset+uint32(i)*emsconst.WriteBlockSize, blank); err != nil {
			return err
		}
	}
	f.report(progress.Erase, 0)
	return nil
}

// Delete zeroes blocks write units working backward from offset+0x130,
// covering the header region of a ROM that has just been relocated so stale
// bytes at its old location never look like a valid header again.
func (f *Flasher) Delete(offset uint32, blocks int) error {
	zero := make([]byte, emsconst.WriteBlockSize)
	for b := blocks - 1; b >= 0; b-- {
		if (b+1)%2 == 0 {
			if f.interrupted() {
				return ErrInterrupted
			}
		}
		ofs := offset + 0x130 - uint32(b)*emsconst.WriteBlockSize
		if err := f.t.Write(ofs, zero); err != nil {
			return fmt.Errorf("write flash at %#x: %w: %v", ofs, ErrUSB, err)
		}
	}
	return nil
}
