package flash

import "errors"

// Sentinel errors flash primitives wrap their failures in, so callers can
// distinguish recoverable causes with errors.Is instead of string matching.
var (
	// ErrUSB marks a transport-level failure (USB or file backend).
	ErrUSB = errors.New("flash: transport error")
	// ErrFile marks a failure reading the source ROM file.
	ErrFile = errors.New("flash: file error")
	// ErrInterrupted marks an abort requested via the interrupt source.
	ErrInterrupted = errors.New("flash: operation interrupted")
)
