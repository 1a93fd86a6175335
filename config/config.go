package config

import (
	"os"
	"strings"
)

// Defaults for values that can be overridden via environment variables.
const (
	// DefaultVendorID and DefaultProductID identify the cartridge programmer
	// on the USB bus.
	DefaultVendorID  = 0x4670
	DefaultProductID = 0x9394

	// DefaultOutEndpoint and DefaultInEndpoint are the bulk endpoint numbers
	// used for the command/data transport.
	DefaultOutEndpoint = 2
	DefaultInEndpoint  = 1
)

// MenuDir returns the directory holding the bank-0 menu ROM variants
// (menu.gb, menuc.gb, menus.gb, menucs.gb), read from the MENUDIR
// environment variable. Returns "" if unset.
func MenuDir() string {
	return strings.TrimSpace(os.Getenv("MENUDIR"))
}

// EmulatedImagePath returns the path to a raw page image file to use in
// place of USB hardware, read from the EMSFLASH_IMAGE environment variable.
// Returns "" if unset, meaning real USB hardware should be used.
func EmulatedImagePath() string {
	return strings.TrimSpace(os.Getenv("EMSFLASH_IMAGE"))
}
