package spibus

import (
	"bytes"
	"encoding/hex"

	"github.com/BertoldVdb/spiflash-tools/gohid"
)

/* Register window behind a USB bridge. Every access is one 9 byte feature
 * report: 00 cc aaaa vv 00.., cc=b5 read/b6 write, aaaa=register address.
 * The bridge echoes the header and puts the value read at offset 4.
 *
 * This is the XDATA access of the MacroSilicon USB bridges. It only reaches
 * the SPI controller when the bridge firmware maps the controller block at
 * base; no bridge is known to do so out of the box, so there is no default
 * vendor ID and the base must match the firmware. */
const (
	hidCmdRead  = 0xb5
	hidCmdWrite = 0xb6

	hidHeaderLen = 4
)

type HIDRegisters struct {
	dev  gohid.HIDDevice
	base int

	logFunc LogFunc
}

func NewHIDRegisters(dev gohid.HIDDevice, base int, logFunc LogFunc) *HIDRegisters {
	return &HIDRegisters{
		dev:     dev,
		base:    base,
		logFunc: logFunc,
	}
}

func (h *HIDRegisters) makeHeader(cmd byte, reg int) [9]byte {
	var out [9]byte

	addr := h.base + reg
	out[0] = 0
	out[1] = cmd
	out[2] = byte(addr >> 8)
	out[3] = byte(addr)

	return out
}

func (h *HIDRegisters) exchangeReport(out [9]byte) ([9]byte, error) {
	var in [9]byte

	if h.logFunc != nil {
		h.logFunc(3, "HIDOut:   %s", hex.EncodeToString(out[:]))
	}

	if _, err := h.dev.SendFeatureReport(out[:]); err != nil {
		return in, err
	}

	_, err := h.dev.GetFeatureReport(in[:])
	if err != nil {
		return in, err
	}

	if h.logFunc != nil {
		h.logFunc(3, "HIDIn:    %s", hex.EncodeToString(in[:]))
	}

	if !bytes.Equal(out[:hidHeaderLen], in[:hidHeaderLen]) {
		return in, ErrorInvalidResponse
	}
	return in, nil
}

func (h *HIDRegisters) ReadReg(reg int) (byte, error) {
	if reg < 0 || reg >= RegCount {
		return 0, ErrorBadRegister
	}

	in, err := h.exchangeReport(h.makeHeader(hidCmdRead, reg))
	if err != nil {
		return 0, err
	}
	return in[hidHeaderLen], nil
}

func (h *HIDRegisters) WriteReg(reg int, value byte) error {
	if reg < 0 || reg >= RegCount {
		return ErrorBadRegister
	}

	out := h.makeHeader(hidCmdWrite, reg)
	out[hidHeaderLen] = value
	_, err := h.exchangeReport(out)
	return err
}
