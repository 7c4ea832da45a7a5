//go:build v8

// Package v8engine is an engine.Engine backed by github.com/tommie/v8go.
// It runs the service's source once per Engine instance, takes the fetch
// function that source defines at top level, and calls it with the request
// URL (as a string) for every HTTP request read off the Host's stream; the
// string form of its result becomes the response body.
//
// Build with -tags v8 and a working cgo/v8 toolchain; the rest of edgerun
// never imports this package directly, so a default build has no v8
// dependency at all.
package v8engine

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	v8 "github.com/tommie/v8go"

	"github.com/cuemby/edgerun/pkg/engine"
	"github.com/cuemby/edgerun/pkg/events"
	"github.com/cuemby/edgerun/pkg/types"
)

// heapPollInterval is how often the isolate's heap statistics are sampled
// to approximate v8go's lack of a native near-heap-limit callback.
const heapPollInterval = 50 * time.Millisecond

// Config configures a v8-backed engine instance.
type Config struct {
	Source        string // the service's compiled/bundled JS module source
	IsUserRuntime bool
	HeapLimitMB   uint64 // 0 disables the polling near-heap-limit approximation
}

// Engine runs Config.Source in a single v8go isolate for the lifetime of
// one worker. Unlike a real multi-isolate pool, one edgerun Host already
// owns one OS thread and one engine instance, so there is exactly one
// isolate to manage here.
type Engine struct {
	cfg Config

	iso    *v8.Isolate
	ctx    *v8.Context
	fetch  *v8.Function
	heapCb func(current uint64) (next uint64)

	mu            sync.Mutex
	terminate     chan struct{}
	terminateOnce sync.Once
}

// New compiles cfg.Source and prepares a fetch entry point. Matches
// engine.Constructor's return shape once wrapped by the v8 build's
// construct function (see Construct below).
func New(cfg Config) (*Engine, error) {
	iso := v8.NewIsolate()
	global := v8.NewObjectTemplate(iso)
	ctx := v8.NewContext(iso, global)

	wrapped := fmt.Sprintf("(function(){ %s\nreturn fetch; })()", cfg.Source)
	val, err := ctx.RunScript(wrapped, "worker.js")
	if err != nil {
		ctx.Close()
		iso.Dispose()
		return nil, fmt.Errorf("v8engine: compiling module: %w", err)
	}
	fn, err := val.AsFunction()
	if err != nil {
		ctx.Close()
		iso.Dispose()
		return nil, fmt.Errorf("v8engine: module has no exported fetch function: %w", err)
	}

	return &Engine{
		cfg:       cfg,
		iso:       iso,
		ctx:       ctx,
		fetch:     fn,
		terminate: make(chan struct{}),
	}, nil
}

// Construct adapts New to engine.Constructor's signature so it can be
// passed directly to worker.Boot and pool.New.
func Construct(source string, isUserRuntime bool, heapLimitMB uint64) engine.Constructor {
	return func(context.Context, types.WorkerInitOpts, <-chan events.Event) (engine.Engine, error) {
		return New(Config{Source: source, IsUserRuntime: isUserRuntime, HeapLimitMB: heapLimitMB})
	}
}

// IsUserRuntime implements engine.Engine.
func (e *Engine) IsUserRuntime() bool { return e.cfg.IsUserRuntime }

// OnNearHeapLimit implements engine.Engine. v8go has no native near-heap
// callback; Run starts a polling goroutine against HeapStatistics once a
// callback is registered and HeapLimitMB is set.
func (e *Engine) OnNearHeapLimit(cb func(current uint64) (next uint64)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.heapCb = cb
}

// ThreadSafeTerminate implements engine.Engine. v8go's TerminateExecution
// is documented safe to call from any goroutine while the isolate is
// running a script.
func (e *Engine) ThreadSafeTerminate() {
	e.terminateOnce.Do(func() {
		close(e.terminate)
		e.iso.TerminateExecution()
	})
}

// Run implements engine.Engine: it services HTTP requests delivered on
// streamRx by invoking the compiled fetch handler, until forceQuit or
// terminate fires.
func (e *Engine) Run(streamRx <-chan net.Conn, forceQuit <-chan struct{}) (engine.CallOutcome, error) {
	defer e.ctx.Close()
	defer e.iso.Dispose()

	if e.cfg.HeapLimitMB > 0 {
		go e.pollHeap()
	}

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

func (e *Engine) pollHeap() {
	ticker := time.NewTicker(heapPollInterval)
	defer ticker.Stop()
	limitBytes := e.cfg.HeapLimitMB * 1024 * 1024

	for {
		select {
		case <-e.terminate:
			return
		case <-ticker.C:
			stats := e.iso.GetHeapStatistics()
			if uint64(stats.UsedHeapSize) < limitBytes {
				continue
			}
			e.mu.Lock()
			cb := e.heapCb
			e.mu.Unlock()
			if cb == nil {
				continue
			}
			cb(uint64(stats.UsedHeapSize))
		}
	}
}

func (e *Engine) serve(conn net.Conn) {
	defer conn.Close()

	req, err := http.ReadRequest(bufio.NewReader(conn))
	if err != nil {
		return
	}
	defer req.Body.Close()

	result, err := e.fetch.Call(e.ctx.Global(), requestToJS(e.ctx, req))
	if err != nil {
		writeResponse(conn, http.StatusInternalServerError, fmt.Sprintf("fetch handler error: %v", err))
		return
	}

	status, body := responseFromJS(result)
	writeResponse(conn, status, body)
}

func requestToJS(ctx *v8.Context, req *http.Request) *v8.Value {
	val, err := v8.NewValue(ctx.Isolate(), req.URL.String())
	if err != nil {
		val, _ = v8.NewValue(ctx.Isolate(), "/")
	}
	return val
}

func responseFromJS(val *v8.Value) (int, string) {
	if val == nil {
		return http.StatusNoContent, ""
	}
	return http.StatusOK, val.String()
}

func writeResponse(conn net.Conn, status int, body string) {
	resp := fmt.Sprintf("HTTP/1.1 %d %s\r\nContent-Length: %d\r\nConnection: close\r\n\r\n%s",
		status, http.StatusText(status), len(body), body)
	_, _ = conn.Write([]byte(resp))
}
