// Package engine defines the interface a worker host boots and drives. It
// is the external-collaborator boundary: core owns worker lifecycle and
// supervision, this package only describes the shape an embedded JS/TS
// runtime must expose to be hosted.
package engine

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/cuemby/edgerun/pkg/events"
	"github.com/cuemby/edgerun/pkg/types"
)

// ErrConstructFailed is wrapped by engine constructors that fail to boot.
var ErrConstructFailed = errors.New("engine: construct failed")

// CallOutcome summarizes how Run returned, for the host's boot/exit log.
type CallOutcome struct {
	RequestsServed uint64
	Reason         string
}

// Engine is the contract an embedded JS/TS runtime implements so a Worker
// Host can boot it, hand it inbound connections, and kill it on breach.
type Engine interface {
	// IsUserRuntime reports whether this engine hosts untrusted user code
	// (true) or a trusted main/events runtime (false). The Worker Host
	// decides whether to start a Resource Supervisor from the worker's
	// kind (types.KindUserWorker), not from this value.
	IsUserRuntime() bool

	// Run drives the engine's in-process HTTP server. Each net.Conn
	// arriving on streamRx is treated as an inbound TCP connection
	// carrying exactly one HTTP transaction. Run returns when streamRx is
	// closed or forceQuit fires.
	Run(streamRx <-chan net.Conn, forceQuit <-chan struct{}) (CallOutcome, error)

	// ThreadSafeTerminate aborts in-progress execution from any goroutine.
	// Called exclusively by the Resource Supervisor.
	ThreadSafeTerminate()

	// OnNearHeapLimit registers a callback invoked when the engine
	// approaches its heap ceiling. The callback receives the current
	// limit and returns the new limit to grant, buying the supervisor
	// time to terminate before the process OOMs.
	OnNearHeapLimit(cb func(current uint64) (next uint64))
}

// Constructor builds an Engine from boot options. eventRx is non-nil only
// for an events worker; user and main workers pass nil.
type Constructor func(ctx context.Context, opts types.WorkerInitOpts, eventRx <-chan events.Event) (Engine, error)

// BootTimeout is an upper bound for how long a Constructor may take to
// boot an engine. The Worker Host does not apply it: the host goroutine
// waits for construct to return, however long that takes.
const BootTimeout = 30 * time.Second
