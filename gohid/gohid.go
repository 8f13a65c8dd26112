// Package gohid is the minimal HID surface the register bridge needs: a
// pair of feature report calls. The cgo backend in the CLI satisfies it
// with github.com/sstallion/go-hid, OpenHID gives a pure Go hidraw backend.
package gohid

import "errors"

type HIDDevice interface {
	GetFeatureReport(b []byte) (int, error)
	SendFeatureReport(b []byte) (int, error)
	Close() error
}

var (
	ErrorTooLong     = errors.New("Transfer is too long")
	ErrorUnsupported = errors.New("Raw HID access is not supported on this platform")
)

func OpenHID(path string) (HIDDevice, error) {
	return openHIDInternal(path)
}
