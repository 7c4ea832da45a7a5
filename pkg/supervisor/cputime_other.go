//go:build !linux

package supervisor

import "time"

const cpuSamplingSupported = false

func threadCPUTime(tid int) (time.Duration, error) {
	return 0, errCPUSamplingUnsupported
}
