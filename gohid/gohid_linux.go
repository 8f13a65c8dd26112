//go:build linux
// +build linux

package gohid

import (
	"fmt"
	"os"
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"
)

type hidRaw struct {
	dev *os.File
}

func openHIDInternal(path string) (HIDDevice, error) {
	dev, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}

	return &hidRaw{
		dev: dev,
	}, nil
}

/*
 HIDIOCSFEATURE(len) = C0004806 | len<<16
 HIDIOCGFEATURE(len) = C0004807 | len<<16
*/
const (
	hidiocSFeature = 0xC0004806
	hidiocGFeature = 0xC0004807

	maxReportLen = 256
)

func (h *hidRaw) featureIoctl(name string, req uint32, buf []byte) error {
	if len(buf) > maxReportLen {
		return ErrorTooLong
	}

	var tmp [maxReportLen]byte
	copy(tmp[:], buf)

	_, _, errno := unix.Syscall(
		unix.SYS_IOCTL,
		h.dev.Fd(),
		uintptr(req|uint32(len(buf))<<16),
		uintptr(unsafe.Pointer(&tmp)),
	)
	runtime.KeepAlive(h.dev)

	if errno != 0 {
		return os.NewSyscallError(name, fmt.Errorf("%w", errno))
	}

	copy(buf, tmp[:len(buf)])
	return nil
}

func (h *hidRaw) SendFeatureReport(b []byte) (int, error) {
	if err := h.featureIoctl("SendFeatureReport", hidiocSFeature, b); err != nil {
		return 0, err
	}
	return len(b), nil
}

func (h *hidRaw) GetFeatureReport(b []byte) (int, error) {
	if err := h.featureIoctl("GetFeatureReport", hidiocGFeature, b); err != nil {
		return 0, err
	}
	return len(b), nil
}

func (h *hidRaw) Close() error {
	return h.dev.Close()
}
