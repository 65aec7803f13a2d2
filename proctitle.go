package main

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// setProcessName sets the kernel-visible process name (comm), best effort.
// The kernel truncates it to 15 bytes.
func setProcessName(name string) {
	buf := append([]byte(name), 0)
	_ = unix.Prctl(unix.PR_SET_NAME, uintptr(unsafe.Pointer(&buf[0])), 0, 0, 0)
}
