//go:build !linux
// +build !linux

package spibus

import "errors"

type PortRegisters struct{}

func OpenPortRegisters(base int) (*PortRegisters, error) {
	return nil, errors.New("I/O port access needs /dev/port")
}

func EnableIODecode(configPath string, base int) error {
	return errors.New("PCI config access needs sysfs")
}

func (p *PortRegisters) Close() error {
	return nil
}

func (p *PortRegisters) ReadReg(reg int) (byte, error) {
	return 0, ErrorBadRegister
}

func (p *PortRegisters) WriteReg(reg int, value byte) error {
	return ErrorBadRegister
}
