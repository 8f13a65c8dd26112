//go:build !linux
// +build !linux

package gohid

func openHIDInternal(path string) (HIDDevice, error) {
	return nil, ErrorUnsupported
}
