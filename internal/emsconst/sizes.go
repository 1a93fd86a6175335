// Package emsconst holds the cartridge geometry constants shared across the
// layout, planning, flash, and transport layers, so they can't drift apart.
package emsconst

const (
	// PageSize is the size of one addressable cartridge page.
	PageSize = 4 * 1024 * 1024

	// SRAMSize is the size of the cartridge's battery-backed save RAM,
	// dumped and restored independently of the ROM page space.
	SRAMSize = 128 * 1024

	// SRAMBase is the transport address of the save RAM, placed just past
	// the two addressable ROM pages so ROM and SRAM never overlap in a
	// single flat transport address space.
	SRAMBase = 2 * PageSize

	// EraseBlockSize is the granularity of a flash erase operation.
	EraseBlockSize = 128 * 1024

	// MinRomSize is the smallest ROM (and buddy allocation unit) a page
	// can hold.
	MinRomSize = 32 * 1024

	// BankSize is the unit banks are numbered in (used by --delete and in
	// the title listing), independent of the erase/allocation granularity.
	BankSize = 16 * 1024

	// BanksPerPage is the valid range for a --delete bank argument: [0, BanksPerPage).
	BanksPerPage = PageSize / BankSize

	// WriteBlockSize is the minimum unit of a flash write.
	WriteBlockSize = 32

	// ReadBlockSize is the chunk size progress reporting is driven by.
	ReadBlockSize = 4096

	// NumSlots is the number of rescue buffer slots available to stash
	// small ROMs across an erase.
	NumSlots = 3

	// SlotSize is the capacity of one rescue buffer slot.
	SlotSize = EraseBlockSize / 2

	// HeaderLastOffset is the byte offset, within a ROM, of the 64-byte
	// write unit containing the part of the Nintendo logo that
	// header.Valid checks. This unit is always written last so a
	// ROM is invisible (invalid header) until fully written.
	HeaderLastOffset = 0x100
)
