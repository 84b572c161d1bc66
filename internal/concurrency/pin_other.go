//go:build !linux
// +build !linux

// hioload-nvmf/internal/concurrency/pin_other.go
// Author: momentics <momentics@gmail.com>
//
// Pinning is only implemented on Linux.

package concurrency

import "github.com/momentics/hioload-nvmf/api"

// PinCurrentThread is unsupported on this platform.
func PinCurrentThread(cpuID int) error {
	return api.ErrNotSupported
}
