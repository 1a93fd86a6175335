// Package emserr holds the sentinel errors shared by the planning and CLI
// layers that flash.Flasher itself has no opinion about (package flash
// carries its own transport-level sentinels in errors.go).
package emserr

import "errors"

var (
	// ErrFormat means flash contents are internally inconsistent (e.g. the
	// sum of listed ROM sizes exceeds the page).
	ErrFormat = errors.New("emsflasher: flash contents inconsistent")
	// ErrNoSpace means the planner could not place a ROM even after
	// defragmentation.
	ErrNoSpace = errors.New("emsflasher: no space left on page")
	// ErrInvalidArg means a CLI argument violated a constraint.
	ErrInvalidArg = errors.New("emsflasher: invalid argument")
	// ErrEnhancementIncompat means a ROM's enhancement requirements
	// conflict with the page's menu.
	ErrEnhancementIncompat = errors.New("emsflasher: rom enhancement incompatible with page menu")
	// ErrDuplicateTitle means two ROMs (inputs, or input vs. flash) share
	// a title.
	ErrDuplicateTitle = errors.New("emsflasher: duplicate rom title")
)
