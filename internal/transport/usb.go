package transport

import (
	"fmt"

	"github.com/google/gousb"
)

const (
	cmdRead  = 0xff
	cmdWrite = 0x57
)

// USB talks to a real cartridge programmer over a USB bulk transport: a
// 9-byte command header (1-byte opcode, 4-byte big-endian address, 4-byte
// big-endian count) followed by the data itself.
type USB struct {
	ctx  *gousb.Context
	dev  *gousb.Device
	cfg  *gousb.Config
	intf *gousb.Interface
	out  *gousb.OutEndpoint
	in   *gousb.InEndpoint
}

// USBConfig identifies the device and endpoints to use.
type USBConfig struct {
	VendorID, ProductID     gousb.ID
	OutEndpoint, InEndpoint int
}

// OpenUSB opens the first device matching cfg and claims its bulk endpoints.
func OpenUSB(cfg USBConfig) (*USB, error) {
	ctx := gousb.NewContext()

	dev, err := ctx.OpenDeviceWithVIDPID(cfg.VendorID, cfg.ProductID)
	if err != nil {
		ctx.Close()
		return nil, fmt.Errorf("open usb device: %w", err)
	}
	if dev == nil {
		ctx.Close()
		return nil, fmt.Errorf("no device found for vid=%s pid=%s", cfg.VendorID, cfg.ProductID)
	}

	if err := dev.SetAutoDetach(true); err != nil {
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("set auto detach: %w", err)
	}

	devCfg, err := dev.Config(1)
	if err != nil {
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("claim config: %w", err)
	}

	intf, err := devCfg.Interface(0, 0)
	if err != nil {
		devCfg.Close()
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("claim interface: %w", err)
	}

	out, err := intf.OutEndpoint(cfg.OutEndpoint)
	if err != nil {
		intf.Close()
		devCfg.Close()
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("out endpoint: %w", err)
	}

	in, err := intf.InEndpoint(cfg.InEndpoint)
	if err != nil {
		intf.Close()
		devCfg.Close()
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("in endpoint: %w", err)
	}

	return &USB{ctx: ctx, dev: dev, cfg: devCfg, intf: intf, out: out, in: in}, nil
}

func commandHeader(cmd byte, addr, count uint32) []byte {
	buf := make([]byte, 9)
	buf[0] = cmd
	buf[1] = byte(addr >> 24)
	buf[2] = byte(addr >> 16)
	buf[3] = byte(addr >> 8)
	buf[4] = byte(addr)
	buf[5] = byte(count >> 24)
	buf[6] = byte(count >> 16)
	buf[7] = byte(count >> 8)
	buf[8] = byte(count)
	return buf
}

// Read implements Transport.
func (u *USB) Read(offset uint32, buf []byte) error {
	hdr := commandHeader(cmdRead, offset, uint32(len(buf)))
	if _, err := u.out.Write(hdr); err != nil {
		return fmt.Errorf("send read command: %w", err)
	}
	n, err := u.in.Read(buf)
	if err != nil {
		return fmt.Errorf("read data: %w", err)
	}
	if n != len(buf) {
		return fmt.Errorf("read data: got %d bytes, want %d", n, len(buf))
	}
	return nil
}

// Write implements Transport.
func (u *USB) Write(offset uint32, buf []byte) error {
	payload := make([]byte, 9+len(buf))
	copy(payload, commandHeader(cmdWrite, offset, uint32(len(buf))))
	copy(payload[9:], buf)
	n, err := u.out.Write(payload)
	if err != nil {
		return fmt.Errorf("send write data: %w", err)
	}
	if n != len(payload) {
		return fmt.Errorf("send write data: sent %d bytes, want %d", n, len(payload))
	}
	return nil
}

// Close implements Transport.
func (u *USB) Close() error {
	u.intf.Close()
	u.cfg.Close()
	u.dev.Close()
	u.ctx.Close()
	return nil
}
