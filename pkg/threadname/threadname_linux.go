//go:build linux

package threadname

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// Set names the calling OS thread, truncated to 15 bytes (the kernel's
// TASK_COMM_LEN-1 limit). The caller must have already called
// runtime.LockOSThread, or the name lands on whichever thread happens to
// be running the goroutine.
func Set(name string) {
	if len(name) > 15 {
		name = name[:15]
	}
	b := append([]byte(name), 0)
	_ = unix.Prctl(unix.PR_SET_NAME, uintptr(unsafe.Pointer(&b[0])), 0, 0, 0)
}

// CurrentID returns the calling OS thread's id, for supervisors that need
// to target CPU-time sampling at a specific thread. The caller must have
// already called runtime.LockOSThread for the id to remain stable.
func CurrentID() int {
	return unix.Gettid()
}
