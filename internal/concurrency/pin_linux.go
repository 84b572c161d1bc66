//go:build linux
// +build linux

// hioload-nvmf/internal/concurrency/pin_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux-specific thread pinning through sched_setaffinity(2).

package concurrency

import "golang.org/x/sys/unix"

// PinCurrentThread pins the calling OS thread to cpuID. The caller must hold
// runtime.LockOSThread for the pin to stick to its goroutine.
func PinCurrentThread(cpuID int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpuID)
	return unix.SchedSetaffinity(0, &set)
}
