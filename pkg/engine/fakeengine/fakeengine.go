// Package fakeengine is a deterministic engine.Engine used by core's own
// tests in place of a real embedded JS/TS runtime. It can be told to reply
// pong immediately, sleep, spin a tight CPU loop, or trip a near-heap-limit
// callback, matching the four behaviours the supervisor scenarios need.
package fakeengine

import (
	"bufio"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/cuemby/edgerun/pkg/engine"
)

// Mode selects the behaviour a fake engine exhibits for every request it
// services.
type Mode int

const (
	// ModePong replies "pong" to every request immediately.
	ModePong Mode = iota
	// ModeSleep blocks for Config.SleepFor before replying.
	ModeSleep
	// ModeCPUBurn spins a tight, allocation-free loop until terminated.
	ModeCPUBurn
	// ModeMemoryAlloc invokes the near-heap-limit callback once and then
	// blocks until terminated.
	ModeMemoryAlloc
)

// Config configures a fake engine instance.
type Config struct {
	Mode          Mode
	SleepFor      time.Duration
	IsUserRuntime bool

	// SimulatedHeapBytes is the "current" value passed to the near-heap
	// callback in ModeMemoryAlloc.
	SimulatedHeapBytes uint64
}

// Engine is a deterministic test double satisfying engine.Engine.
type Engine struct {
	cfg Config

	mu            sync.Mutex
	heapCb        func(uint64) uint64
	terminate     chan struct{}
	terminateOnce sync.Once
}

// New constructs a fake engine. Matches engine.Constructor's return shape
// so it can be wrapped into one for pool/host tests.
func New(cfg Config) *Engine {
	return &Engine{cfg: cfg, terminate: make(chan struct{})}
}

// IsUserRuntime implements engine.Engine.
func (e *Engine) IsUserRuntime() bool { return e.cfg.IsUserRuntime }

// OnNearHeapLimit implements engine.Engine.
func (e *Engine) OnNearHeapLimit(cb func(uint64) uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.heapCb = cb
}

// ThreadSafeTerminate implements engine.Engine. Idempotent.
func (e *Engine) ThreadSafeTerminate() {
	e.terminateOnce.Do(func() { close(e.terminate) })
}

// Run implements engine.Engine.
func (e *Engine) Run(streamRx <-chan net.Conn, forceQuit <-chan struct{}) (engine.CallOutcome, error) {
	var served uint64
	for {
		select {
		case conn, ok := <-streamRx:
			if !ok {
				return engine.CallOutcome{RequestsServed: served, Reason: "stream closed"}, nil
			}
			e.serve(conn)
			served++
		case <-forceQuit:
			return engine.CallOutcome{RequestsServed: served, Reason: "force quit"}, nil
		case <-e.terminate:
			return engine.CallOutcome{RequestsServed: served, Reason: "terminated"}, nil
		}
	}
}

func (e *Engine) serve(conn net.Conn) {
	defer conn.Close()

	br := bufio.NewReader(conn)
	if _, err := br.Peek(1); err != nil {
		return
	}

	switch e.cfg.Mode {
	case ModePong:
		discardRequest(br)
		writeResponse(conn, 200, "pong")
	case ModeSleep:
		discardRequest(br)
		select {
		case <-time.After(e.cfg.SleepFor):
		case <-e.terminate:
			return
		}
		writeResponse(conn, 200, "slept")
	case ModeCPUBurn:
		discardRequest(br)
		e.burn()
	case ModeMemoryAlloc:
		discardRequest(br)
		e.mu.Lock()
		cb := e.heapCb
		e.mu.Unlock()
		current := e.cfg.SimulatedHeapBytes
		if current == 0 {
			current = 64 * 1024 * 1024
		}
		if cb != nil {
			cb(current)
		}
		<-e.terminate
	}
}

func (e *Engine) burn() {
	acc := uint64(1)
	for {
		select {
		case <-e.terminate:
			return
		default:
			acc = acc*2654435761 + 1
			if acc == 0 {
				return
			}
		}
	}
}

func discardRequest(br *bufio.Reader) {
	for {
		line, err := br.ReadString('\n')
		if err != nil || line == "\r\n" || line == "\n" {
			return
		}
	}
}

func writeResponse(conn net.Conn, status int, body string) {
	resp := fmt.Sprintf("HTTP/1.1 %d OK\r\nContent-Length: %d\r\nConnection: close\r\n\r\n%s",
		status, len(body), body)
	_, _ = conn.Write([]byte(resp))
}
