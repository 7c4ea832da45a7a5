// Package supervisor enforces wall-clock, CPU-burst, and memory bounds on
// a single user worker's engine, terminating it on the first breach.
package supervisor

import (
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/edgerun/pkg/engine"
	"github.com/cuemby/edgerun/pkg/events"
	"github.com/cuemby/edgerun/pkg/log"
	"github.com/cuemby/edgerun/pkg/metrics"
	"github.com/cuemby/edgerun/pkg/threadname"
	"github.com/cuemby/edgerun/pkg/types"
)

var errCPUSamplingUnsupported = errors.New("supervisor: per-thread CPU sampling unsupported on this platform")

// cpuPollInterval is how often the engine's OS thread CPU time is sampled.
const cpuPollInterval = 10 * time.Millisecond

// Supervisor is an Armed-until-a-breach-fires, then Killed (terminal)
// state machine.
type Supervisor struct {
	key       types.WorkerKey
	eng       engine.Engine
	limits    types.WorkerLimits
	engineTID int
	forceQuit chan<- struct{}
	sink      events.Publisher

	memoryBreach chan uint64
}

// New constructs a supervisor for key's engine. engineTID is the OS thread
// id of the goroutine driving eng (0 if unknown or unsupported on this
// platform), used only to target CPU-time sampling.
func New(key types.WorkerKey, eng engine.Engine, limits types.WorkerLimits, engineTID int, forceQuit chan<- struct{}, sink events.Publisher) *Supervisor {
	return &Supervisor{
		key:          key,
		eng:          eng,
		limits:       limits,
		engineTID:    engineTID,
		forceQuit:    forceQuit,
		sink:         sink,
		memoryBreach: make(chan uint64, 1),
	}
}

// Start launches the supervisor on its own OS thread and returns a channel
// that yields the engine's OS thread id once the supervisor is armed; the
// host awaits this reply before invoking the engine's run loop.
func (s *Supervisor) Start() <-chan int {
	ready := make(chan int, 1)
	go s.run(ready)
	return ready
}

func (s *Supervisor) run(ready chan<- int) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	threadname.Set(fmt.Sprintf("sb-sup-%d", uint64(s.key)))

	logger := log.WithWorkerKey(uint64(s.key)).With().Str("component", "supervisor").Logger()

	s.eng.OnNearHeapLimit(func(current uint64) uint64 {
		next := current * s.limits.LowMemoryMultiplier
		select {
		case s.memoryBreach <- current:
		default:
		}
		return next
	})

	deadline := time.NewTimer(time.Duration(s.limits.WallClockMS) * time.Millisecond)
	defer deadline.Stop()

	var cpuTickerC <-chan time.Time
	var bursts uint64
	var lastSample time.Duration
	lastBurstAt := time.Now()

	if cpuSamplingSupported && s.engineTID != 0 {
		ticker := time.NewTicker(cpuPollInterval)
		defer ticker.Stop()
		cpuTickerC = ticker.C
		if t, err := threadCPUTime(s.engineTID); err == nil {
			lastSample = t
		}
	} else {
		logger.Warn().Msg("per-thread CPU sampling unavailable on this platform; enforcing wall-clock and memory limits only")
	}

	ready <- s.engineTID

	for {
		select {
		case <-deadline.C:
			s.kill(logger, "wall clock duration reached")
			return

		case <-cpuTickerC:
			cur, err := threadCPUTime(s.engineTID)
			if err != nil {
				continue
			}
			if cur > lastSample && time.Since(lastBurstAt) >= time.Duration(s.limits.CPUBurstIntervalMS)*time.Millisecond {
				bursts++
				lastBurstAt = time.Now()
				if bursts > s.limits.MaxCPUBursts {
					s.kill(logger, "cpu burst limit exceeded")
					return
				}
			}
			lastSample = cur

		case <-s.memoryBreach:
			s.kill(logger, "memory limit reached")
			return
		}
	}
}

func (s *Supervisor) kill(logger zerolog.Logger, reason string) {
	metrics.SupervisorBreachesTotal.WithLabelValues(breachLabel(reason)).Inc()
	logger.Warn().Str("reason", reason).Msg("terminating worker")
	s.eng.ThreadSafeTerminate()
	events.PublishIfAvailable(s.sink, events.UncaughtException(uint64(s.key), reason))
	close(s.forceQuit)
}

func breachLabel(reason string) string {
	switch reason {
	case "wall clock duration reached":
		return "wall_clock"
	case "cpu burst limit exceeded":
		return "cpu"
	case "memory limit reached":
		return "memory"
	default:
		return "unknown"
	}
}
