package supervisor

import (
	"net"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cuemby/edgerun/pkg/engine"
	"github.com/cuemby/edgerun/pkg/events"
	"github.com/cuemby/edgerun/pkg/threadname"
	"github.com/cuemby/edgerun/pkg/types"
)

type mockEngine struct {
	mu         sync.Mutex
	terminated bool
	heapCb     func(uint64) uint64
}

func (m *mockEngine) IsUserRuntime() bool { return true }

func (m *mockEngine) Run(<-chan net.Conn, <-chan struct{}) (engine.CallOutcome, error) {
	return engine.CallOutcome{}, nil
}

func (m *mockEngine) ThreadSafeTerminate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.terminated = true
}

func (m *mockEngine) OnNearHeapLimit(cb func(uint64) uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.heapCb = cb
}

func (m *mockEngine) wasTerminated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.terminated
}

func (m *mockEngine) callHeapCb(current uint64) uint64 {
	m.mu.Lock()
	cb := m.heapCb
	m.mu.Unlock()
	return cb(current)
}

func testLimits() types.WorkerLimits {
	return types.WorkerLimits{
		WallClockMS:         60_000,
		LowMemoryMultiplier: 5,
		MaxCPUBursts:        10,
		CPUBurstIntervalMS:  100,
	}
}

func TestSupervisorWallClockKill(t *testing.T) {
	eng := &mockEngine{}
	limits := testLimits()
	limits.WallClockMS = 30

	forceQuit := make(chan struct{})
	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()
	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	s := New(1, eng, limits, 0, forceQuit, broker)
	<-s.Start()

	select {
	case <-forceQuit:
	case <-time.After(time.Second):
		t.Fatal("supervisor did not kill on wall-clock deadline")
	}

	assert.True(t, eng.wasTerminated())

	select {
	case ev := <-sub:
		assert.Equal(t, events.KindUncaughtException, ev.Kind)
	case <-time.After(time.Second):
		t.Fatal("expected UncaughtException event")
	}
}

func TestSupervisorMemoryKill(t *testing.T) {
	eng := &mockEngine{}
	limits := testLimits()

	forceQuit := make(chan struct{})
	s := New(2, eng, limits, 0, forceQuit, nil)
	<-s.Start()

	next := eng.callHeapCb(100)
	assert.Equal(t, uint64(500), next)

	select {
	case <-forceQuit:
	case <-time.After(time.Second):
		t.Fatal("supervisor did not kill on memory breach")
	}
	assert.True(t, eng.wasTerminated())
}

// TestSupervisorCPUBurstKill drives the actual threadCPUTime/debounce/kill
// path in run(): it locks a real OS thread, busy-loops it to accumulate
// CPU time, and hands that thread's id to a supervisor configured with a
// tiny burst interval and a low burst ceiling so it kills well before the
// wall-clock deadline.
func TestSupervisorCPUBurstKill(t *testing.T) {
	if !cpuSamplingSupported {
		t.Skip("per-thread CPU sampling unsupported on this platform")
	}

	tidCh := make(chan int, 1)
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		tidCh <- threadname.CurrentID()
		for {
			select {
			case <-stop:
				return
			default:
			}
			for i := 0; i < 1_000_000; i++ {
			}
		}
	}()
	defer func() {
		close(stop)
		<-done
	}()

	tid := <-tidCh

	eng := &mockEngine{}
	limits := testLimits()
	limits.WallClockMS = 5_000
	limits.MaxCPUBursts = 3
	limits.CPUBurstIntervalMS = 15

	forceQuit := make(chan struct{})
	s := New(4, eng, limits, tid, forceQuit, nil)
	<-s.Start()

	select {
	case <-forceQuit:
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor did not kill on cpu burst limit")
	}
	assert.True(t, eng.wasTerminated())
}

func TestSupervisorDegradesWithoutEngineTID(t *testing.T) {
	eng := &mockEngine{}
	limits := testLimits()
	limits.WallClockMS = 50

	forceQuit := make(chan struct{})
	s := New(3, eng, limits, 0, forceQuit, nil)
	<-s.Start()

	select {
	case <-forceQuit:
	case <-time.After(time.Second):
		t.Fatal("supervisor with no engine tid should still enforce wall-clock")
	}
}
