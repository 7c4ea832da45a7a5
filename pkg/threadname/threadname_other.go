//go:build !linux

package threadname

// Set is a no-op on platforms without prctl(PR_SET_NAME).
func Set(name string) {}

// CurrentID returns 0: this platform has no per-thread CPU-time sampling
// for the supervisor to target.
func CurrentID() int { return 0 }
