//go:build linux
// +build linux

package spibus

import (
	"encoding/binary"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// PortRegisters reaches the controller through x86 I/O ports. /dev/port
// maps file offsets to port numbers, so a one byte pread is an inb.
type PortRegisters struct {
	f    *os.File
	base int
}

func OpenPortRegisters(base int) (*PortRegisters, error) {
	f, err := os.OpenFile("/dev/port", os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	return &PortRegisters{f: f, base: base}, nil
}

const (
	pciIODecodeReg    = 0x40
	pciIODecodeEnable = 0x01
)

/* EnableIODecode points the bridge's SPI I/O window at base and turns it
 * on, the same dword the firmware writes through 0xcf8/0xcfc. /dev/port
 * only does byte accesses, so it goes through the sysfs config file. */
func EnableIODecode(configPath string, base int) error {
	f, err := os.OpenFile(configPath, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	defer f.Close()

	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(base)|pciIODecodeEnable)
	n, err := unix.Pwrite(int(f.Fd()), buf[:], pciIODecodeReg)
	if err != nil {
		return os.NewSyscallError("pwrite", err)
	}
	if n != len(buf) {
		return fmt.Errorf("%s: short write", configPath)
	}
	return nil
}

func (p *PortRegisters) Close() error {
	return p.f.Close()
}

func (p *PortRegisters) ReadReg(reg int) (byte, error) {
	if reg < 0 || reg >= RegCount {
		return 0, ErrorBadRegister
	}

	var buf [1]byte
	n, err := unix.Pread(int(p.f.Fd()), buf[:], int64(p.base+reg))
	if err != nil {
		return 0, os.NewSyscallError("pread", err)
	}
	if n != 1 {
		return 0, fmt.Errorf("inb %04x: short read", p.base+reg)
	}
	return buf[0], nil
}

func (p *PortRegisters) WriteReg(reg int, value byte) error {
	if reg < 0 || reg >= RegCount {
		return ErrorBadRegister
	}

	n, err := unix.Pwrite(int(p.f.Fd()), []byte{value}, int64(p.base+reg))
	if err != nil {
		return os.NewSyscallError("pwrite", err)
	}
	if n != 1 {
		return fmt.Errorf("outb %04x: short write", p.base+reg)
	}
	return nil
}
