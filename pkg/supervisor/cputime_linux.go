//go:build linux

package supervisor

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// clockTicksPerSecond is USER_HZ, which on every mainstream Linux
// distribution (and everywhere sysconf(_SC_CLK_TCK) matters for /proc
// parsing) is 100.
const clockTicksPerSecond = 100

const cpuSamplingSupported = true

// threadCPUTime reads accumulated user+system CPU time for a thread other
// than the caller's own. getrusage(RUSAGE_THREAD) only reports the calling
// thread's usage, so the supervisor — which runs on its own OS thread,
// separate from the engine's — reads /proc/self/task/<tid>/stat instead,
// the standard cross-thread technique on Linux.
func threadCPUTime(tid int) (time.Duration, error) {
	data, err := os.ReadFile(fmt.Sprintf("/proc/self/task/%d/stat", tid))
	if err != nil {
		return 0, fmt.Errorf("reading thread stat: %w", err)
	}

	// The command field is parenthesized and may itself contain spaces or
	// parens, so split after its closing paren rather than on field index.
	s := string(data)
	idx := strings.LastIndex(s, ")")
	if idx < 0 {
		return 0, fmt.Errorf("unexpected /proc/.../stat format")
	}
	fields := strings.Fields(s[idx+1:])
	// After the comm field, utime is field 14 and stime is field 15 of the
	// full record, i.e. indices 11 and 12 of the remainder.
	if len(fields) < 13 {
		return 0, fmt.Errorf("short /proc/.../stat record")
	}
	utime, err := strconv.ParseInt(fields[11], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing utime: %w", err)
	}
	stime, err := strconv.ParseInt(fields[12], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing stime: %w", err)
	}

	jiffies := utime + stime
	return time.Duration(jiffies) * time.Second / clockTicksPerSecond, nil
}
