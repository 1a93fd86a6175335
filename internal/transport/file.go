package transport

import (
	"io"
	"os"

	"openenterprise/emsflasher/internal/emsconst"
)

// File emulates cartridge I/O against a flat file holding a raw page image,
// for tests and for development without a programmer attached. It mimics
// one quirk of real NOR flash that callers depend on: writing to the first
// byte of an erase block implicitly erases (fills with 0xFF) the whole
// block first.
type File struct {
	f *os.File
}

// OpenFile opens (creating if necessary) path as a raw page image.
func OpenFile(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	return &File{f: f}, nil
}

// Read implements Transport. Reads past the current end of file return 0xFF,
// matching unprogrammed flash.
func (t *File) Read(offset uint32, buf []byte) error {
	n, err := t.f.ReadAt(buf, int64(offset))
	if err != nil && err != io.EOF {
		return err
	}
	for i := n; i < len(buf); i++ {
		buf[i] = 0xFF
	}
	return nil
}

// Write implements Transport.
func (t *File) Write(offset uint32, buf []byte) error {
	if offset%emsconst.EraseBlockSize == 0 {
		if err := t.fillErased(offset); err != nil {
			return err
		}
	}
	_, err := t.f.WriteAt(buf, int64(offset))
	return err
}

func (t *File) fillErased(offset uint32) error {
	var filler [emsconst.ReadBlockSize]byte
	for i := range filler {
		filler[i] = 0xFF
	}

	pos := int64(offset)
	remaining := emsconst.EraseBlockSize
	for remaining > 0 {
		n := len(filler)
		if remaining < n {
			n = remaining
		}
		if _, err := t.f.WriteAt(filler[:n], pos); err != nil {
			return err
		}
		pos += int64(n)
		remaining -= n
	}
	return nil
}

// Close implements Transport.
func (t *File) Close() error {
	return t.f.Close()
}
