// Command emsflasher manages the multi-ROM image on the flash page of a
// USB-attached Game Boy cartridge programmer: listing, writing, deleting,
// formatting, and whole-page/SRAM dump and restore. Flag surface and
// dispatch are ported from the original get_options()/main() in main.c.
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"openenterprise/emsflasher/config"
	"openenterprise/emsflasher/internal/dump"
	"openenterprise/emsflasher/internal/emsconst"
	"openenterprise/emsflasher/internal/emserr"
	"openenterprise/emsflasher/internal/engine"
	"openenterprise/emsflasher/internal/flash"
	"openenterprise/emsflasher/internal/header"
	"openenterprise/emsflasher/internal/interrupt"
	"openenterprise/emsflasher/internal/listing"
	"openenterprise/emsflasher/internal/menu"
	"openenterprise/emsflasher/internal/progress"
	"openenterprise/emsflasher/internal/romimage"
	"openenterprise/emsflasher/internal/romvalidate"
	"openenterprise/emsflasher/internal/transport"
	"openenterprise/emsflasher/internal/updateplan"
	"openenterprise/emsflasher/version"
)

// space identifies which addressable region of the cart a dump, restore, or
// write targets.
type space int

const (
	spaceROM space = iota
	spaceSRAM
)

func main() {
	var (
		showHelp, showVersion, verbose                         bool
		modeRead, modeWrite, modeDump, modeRestore, modeDelete bool
		modeFormat, modeTitle                                  bool
		bank                                                   int
		saveSpace, romSpace, force                              bool
		emulate                                                string
	)

	flag.BoolVar(&showHelp, "help", false, "show this help text")
	flag.BoolVar(&showVersion, "version", false, "show version and exit")
	flag.BoolVar(&verbose, "verbose", false, "show more information")
	flag.BoolVar(&modeRead, "read", false, "read entire cart page (or sram) into a file")
	flag.BoolVar(&modeWrite, "write", false, "write rom file(s), or a sav file to sram")
	flag.BoolVar(&modeDump, "dump", false, "dump an entire page of sram or flash to a file")
	flag.BoolVar(&modeRestore, "restore", false, "restore a dump taken by -dump")
	flag.BoolVar(&modeDelete, "delete", false, "delete roms with the given bank numbers")
	flag.BoolVar(&modeFormat, "format", false, "delete all roms on the selected page")
	flag.BoolVar(&modeTitle, "title", false, "list rom titles in both banks")
	flag.IntVar(&bank, "bank", 1, "select cart bank (1 or 2)")
	flag.BoolVar(&saveSpace, "save", false, "force the operation against sram")
	flag.BoolVar(&romSpace, "rom", false, "force the operation against flash rom")
	flag.BoolVar(&force, "force", false, "bypass the rom/menu enhancement compatibility check")
	flag.StringVar(&emulate, "emulate", "", "use a raw page image file instead of USB hardware (development only)")
	flag.Parse()

	if showHelp {
		usage()
		return
	}
	if showVersion {
		fmt.Println("emsflasher " + version.String())
		return
	}

	modeCount := 0
	for _, m := range []bool{modeRead, modeWrite, modeDump, modeRestore, modeDelete, modeFormat, modeTitle} {
		if m {
			modeCount++
		}
	}
	if modeCount != 1 {
		fmt.Fprintln(os.Stderr, "Error: must supply exactly one of --read, --write, --dump, --restore, --delete, --format or --title")
		usage()
		os.Exit(1)
	}
	if saveSpace && romSpace {
		fmt.Fprintln(os.Stderr, "Error: must supply zero or one of --save, --rom")
		os.Exit(1)
	}
	if bank != 1 && bank != 2 {
		fmt.Fprintln(os.Stderr, "Error: cart only has two banks, 1 and 2")
		os.Exit(1)
	}
	base := uint32(bank-1) * emsconst.PageSize
	args := flag.Args()

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	t, err := openTransport(emulate)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer t.Close()

	switch {
	case modeTitle:
		err = cmdTitle(t, os.Stdout)

	case modeFormat:
		if len(args) != 0 {
			fmt.Fprintln(os.Stderr, "Error: no argument expected")
			os.Exit(1)
		}
		err = cmdFormat(t, base, verbose, os.Stdout)

	case modeDelete:
		if len(args) == 0 {
			fmt.Fprintln(os.Stderr, "Error: you must provide bank numbers")
			os.Exit(1)
		}
		var banks []int
		banks, err = parseBankNumbers(args)
		if err == nil {
			err = cmdDelete(t, base, banks, verbose, os.Stdout, log)
		}

	case modeWrite:
		if len(args) == 0 {
			fmt.Fprintln(os.Stderr, "Error: you must provide an input filename")
			os.Exit(1)
		}
		if resolveSpace(saveSpace, romSpace, args[0]) == spaceSRAM {
			err = cmdRestore(t, emsconst.SRAMBase, emsconst.SRAMSize, args[0], os.Stdout, term.IsTerminal(int(os.Stdout.Fd())))
		} else {
			err = cmdWrite(t, base, args, force, verbose, log, os.Stdout)
		}

	case modeRead, modeDump:
		if len(args) == 0 {
			fmt.Fprintln(os.Stderr, "Error: you must provide an output filename")
			os.Exit(1)
		}
		addr, size := spaceAddr(base, resolveSpace(saveSpace, romSpace, args[0]))
		err = cmdDump(t, addr, size, args[0], os.Stdout, term.IsTerminal(int(os.Stdout.Fd())))

	case modeRestore:
		if len(args) == 0 {
			fmt.Fprintln(os.Stderr, "Error: you must provide an input filename")
			os.Exit(1)
		}
		addr, size := spaceAddr(base, resolveSpace(saveSpace, romSpace, args[0]))
		err = cmdRestore(t, addr, size, args[0], os.Stdout, term.IsTerminal(int(os.Stdout.Fd())))
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("Usage: emsflasher < --read | --write > [--verbose] <rom.gb> [<rom2.gb>]...")
	fmt.Println("       emsflasher --delete BANK [BANK]...")
	fmt.Println("       emsflasher --format")
	fmt.Println("       emsflasher --title")
	fmt.Println("       emsflasher --dump <file>")
	fmt.Println("       emsflasher --restore <file>")
	fmt.Println("       emsflasher --version")
	fmt.Println("       emsflasher --help")
	fmt.Println()
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("You must supply exactly one of --read, --write, --dump, --restore,")
	fmt.Println("--delete, --format, or --title.")
	fmt.Println("Reading or writing a file ending in .sav operates on sram; use")
	fmt.Println("--save or --rom to override the file-extension autodetection.")
}

func openTransport(emulate string) (transport.Transport, error) {
	path := emulate
	if path == "" {
		path = config.EmulatedImagePath()
	}
	if path != "" {
		return transport.OpenFile(path)
	}
	return transport.OpenUSB(transport.USBConfig{
		VendorID:    config.DefaultVendorID,
		ProductID:   config.DefaultProductID,
		OutEndpoint: config.DefaultOutEndpoint,
		InEndpoint:  config.DefaultInEndpoint,
	})
}

func parseBankNumbers(args []string) ([]int, error) {
	banks := make([]int, 0, len(args))
	for _, a := range args {
		n, err := strconv.Atoi(a)
		if err != nil || n < 0 || n >= emsconst.BanksPerPage {
			return nil, fmt.Errorf("%q is not a valid bank number: %w", a, emserr.ErrInvalidArg)
		}
		banks = append(banks, n)
	}
	return banks, nil
}

// resolveSpace picks ROM or SRAM: an explicit --save/--rom flag wins, else a
// ".sav" file extension selects SRAM, else ROM.
func resolveSpace(save, rom bool, file string) space {
	switch {
	case save:
		return spaceSRAM
	case rom:
		return spaceROM
	case strings.HasSuffix(strings.ToLower(file), ".sav"):
		return spaceSRAM
	default:
		return spaceROM
	}
}

func spaceAddr(base uint32, sp space) (addr, size uint32) {
	if sp == spaceSRAM {
		return emsconst.SRAMBase, emsconst.SRAMSize
	}
	return base, emsconst.PageSize
}

func cmdTitle(t transport.Transport, out io.Writer) error {
	for bank := 0; bank < 2; bank++ {
		base := uint32(bank) * emsconst.PageSize
		img, err := listing.List(t, base)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Bank %d:\n", bank+1)
		roms := img.Slice()
		if len(roms) == 0 {
			fmt.Fprintln(out, "  (empty)")
			continue
		}
		for _, r := range roms {
			fmt.Fprintf(out, "  %-16s %6d KiB  offset 0x%06x  %s\n",
				r.Header.Title, r.Size/1024, r.Offset, enhancementString(r.Header))
		}
	}
	return nil
}

func enhancementString(h header.Header) string {
	var parts []string
	switch {
	case h.GBCOnly:
		parts = append(parts, "GBC-only")
	case h.Enhancements&header.EnhGBC != 0:
		parts = append(parts, "GBC")
	}
	if h.Enhancements&header.EnhSGB != 0 {
		parts = append(parts, "SGB")
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, "+")
}

func cmdFormat(t transport.Transport, base uint32, verbose bool, out io.Writer) error {
	f := flash.New(t, nil, nil)
	for off := uint32(0); off < emsconst.PageSize; off += emsconst.EraseBlockSize {
		if verbose {
			fmt.Fprintf(out, "erasing block at offset 0x%06x\n", off)
		}
		if err := f.Erase(base + off); err != nil {
			return err
		}
	}
	return nil
}

func romAtOffset(img *romimage.Image, offset uint32) *romimage.Rom {
	for _, r := range img.Slice() {
		if offset >= r.Offset && offset < r.Offset+r.Size {
			return r
		}
	}
	return nil
}

func cmdDelete(t transport.Transport, base uint32, banks []int, verbose bool, out io.Writer, log *slog.Logger) error {
	img, err := listing.List(t, base)
	if err != nil {
		return err
	}

	f := flash.New(t, nil, nil)
	for _, bank := range banks {
		rom := romAtOffset(img, uint32(bank)*emsconst.BankSize)
		if rom == nil {
			log.Warn("no rom occupies bank", "bank", bank)
			continue
		}
		if verbose {
			fmt.Fprintf(out, "deleting %s (bank %d)\n", rom.Header.Title, bank)
		}
		if err := f.Delete(base+rom.Offset, 2); err != nil {
			return err
		}
	}
	return nil
}

// cmdWrite inserts one or more ROM files into the image at base, loading a
// bank-0 boot menu first if the page is currently empty, then plans and
// applies the flash operations needed to realize the new layout.
func cmdWrite(t transport.Transport, base uint32, files []string, force, verbose bool, log *slog.Logger, out io.Writer) error {
	img, err := listing.List(t, base)
	if err != nil {
		return err
	}
	if err := listing.Validate(img); err != nil {
		return err
	}

	newRoms := make([]*romimage.Rom, 0, len(files))
	for _, path := range files {
		rom, err := romvalidate.File(path)
		if err != nil {
			return err
		}
		newRoms = append(newRoms, rom)
	}

	var menuEnh header.Enhancement
	if img.Head() == nil {
		menuEnh = menu.CombinedEnhancement(newRoms)
		menuRom, err := menu.Load(config.MenuDir(), menuEnh)
		if err != nil {
			return err
		}
		if !img.InsertDefrag(menuRom) {
			return fmt.Errorf("no room for boot menu: %w", emserr.ErrNoSpace)
		}
	} else {
		menuEnh = img.Head().Header.Enhancements
	}

	for _, rom := range newRoms {
		if err := menu.CheckCompatible(menuEnh, rom, force); err != nil {
			return err
		}
		if !img.InsertDefrag(rom) {
			return fmt.Errorf("%s: %w", rom.Header.Title, emserr.ErrNoSpace)
		}
	}

	if err := listing.Validate(img); err != nil {
		return err
	}

	cmds := updateplan.Plan(img)
	if len(cmds) == 0 {
		return nil
	}

	live := term.IsTerminal(int(os.Stdout.Fd()))
	rep := progress.NewReporter(out, live)
	intr := interrupt.NewSource()
	intr.Install()
	defer intr.Restore()

	f := flash.New(t, rep.Report, intr.Triggered)
	lost, applyErr := engine.Apply(f, rep, base, verbose, out, log, cmds)
	for _, l := range lost {
		if l.Possibly {
			fmt.Fprintf(out, "%s: possibly lost\n", l.Title)
		} else {
			fmt.Fprintf(out, "%s: lost\n", l.Title)
		}
	}
	return applyErr
}

func cmdDump(t transport.Transport, addr, size uint32, path string, out io.Writer, live bool) error {
	err := dump.Page(t, addr, size, path, dumpProgress(out, live))
	if live {
		fmt.Fprintln(out)
	}
	return err
}

func cmdRestore(t transport.Transport, addr, size uint32, path string, out io.Writer, live bool) error {
	err := dump.Restore(t, addr, size, path, dumpProgress(out, live))
	if live {
		fmt.Fprintln(out)
	}
	return err
}

func dumpProgress(out io.Writer, live bool) func(done, total uint32) {
	return func(done, total uint32) {
		pct := 0
		if total > 0 {
			pct = int(uint64(done) * 100 / uint64(total))
		}
		if live {
			fmt.Fprintf(out, " %3d%%\r", pct)
		} else {
			fmt.Fprintf(out, " %3d%%\n", pct)
		}
	}
}
