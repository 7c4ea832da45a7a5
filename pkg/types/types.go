package types

import "time"

// WorkerKey is a stable 64-bit fingerprint identifying a user worker in the
// pool registry. Two calls to pool.ComputeKey with the same service path
// and force_create=false always produce the same key.
type WorkerKey uint64

// WorkerLimits bounds the resources a user worker's engine may consume
// before the Resource Supervisor terminates it. Not used for main or event
// workers, which run trusted code and are not policed.
type WorkerLimits struct {
	// WallClockMS is the maximum wall-clock duration a single engine
	// instance may run before it is killed.
	WallClockMS uint64

	// LowMemoryMultiplier is the factor applied to the engine's current
	// heap size when granting a temporary allowance after the first
	// near-heap-limit notification, so the process doesn't OOM before
	// termination lands.
	LowMemoryMultiplier uint64

	// MaxCPUBursts is the number of debounced CPU-time bursts tolerated
	// before termination.
	MaxCPUBursts uint64

	// CPUBurstIntervalMS is the debounce window: CPU activity is only
	// counted as a new burst once this many milliseconds have elapsed
	// since the last counted burst.
	CPUBurstIntervalMS uint64
}

// DefaultWorkerLimits returns the limits fixed by the core, matching the
// defaults baked into the original worker supervisor.
func DefaultWorkerLimits() WorkerLimits {
	return WorkerLimits{
		WallClockMS:         60_000,
		LowMemoryMultiplier: 5,
		MaxCPUBursts:        10,
		CPUBurstIntervalMS:  100,
	}
}

// WorkerKind distinguishes the three conf variants a worker may be booted
// with. Only UserWorker is policed by a Resource Supervisor and only
// UserWorker is deduplicated by key in the pool.
type WorkerKind string

const (
	KindUserWorker   WorkerKind = "user"
	KindMainWorker   WorkerKind = "main"
	KindEventsWorker WorkerKind = "events"
)

// UserWorkerConf carries the pool-assigned identity a user worker needs to
// participate in dedup. ForceCreate is set by the caller requesting
// creation; the pool fills in Key once the fingerprint has been computed.
type UserWorkerConf struct {
	Key         WorkerKey
	ForceCreate bool
}

// WorkerInitOpts is the full set of parameters needed to construct an
// engine instance. EnvVars and ImportMapPath pass through to the engine
// untouched; the core never interprets them.
type WorkerInitOpts struct {
	ServicePath    string
	EnvVars        map[string]string
	ImportMapPath  string
	NoModuleCache  bool
	Kind           WorkerKind
	UserWorker     UserWorkerConf
	Limits         WorkerLimits
}

// RequestMsg is a single HTTP request routed to a worker's request inbox,
// paired with the single-use reply slot the dispatcher will deliver the
// response (or error) on.
type RequestMsg struct {
	Request  *HTTPRequest
	ReplySlot chan Reply
}

// HTTPRequest is a serialization-free description of the request to
// replay against the worker's in-engine HTTP server. Method/URL/Header
// are copied as-is; Body is read fully by the caller before dispatch. The
// request is sent once over its transport and is not retried.
type HTTPRequest struct {
	Method string
	URL    string
	Header map[string][]string
	Body   []byte
}

// HTTPResponse mirrors the subset of an HTTP response the dispatcher
// needs to hand back to the admitter.
type HTTPResponse struct {
	StatusCode int
	Header     map[string][]string
	Body       []byte
}

// Reply is what a request transport delivers on a RequestMsg's reply
// slot: exactly one of Response or Err is set.
type Reply struct {
	Response *HTTPResponse
	Err      error
}

// BootResult is the outcome of constructing and booting a worker's
// engine, delivered once from the host goroutine to whoever requested
// the boot.
type BootResult struct {
	Elapsed time.Duration
	Err     error
}
