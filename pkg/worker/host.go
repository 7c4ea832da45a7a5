// Package worker implements the Worker Host: the boot sequence that
// constructs an engine on its own OS thread, starts a Resource Supervisor
// for user workers, and drives the engine's request loop until it exits.
package worker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"runtime"
	"time"

	"github.com/cuemby/edgerun/pkg/engine"
	"github.com/cuemby/edgerun/pkg/events"
	"github.com/cuemby/edgerun/pkg/log"
	"github.com/cuemby/edgerun/pkg/metrics"
	"github.com/cuemby/edgerun/pkg/queue"
	"github.com/cuemby/edgerun/pkg/supervisor"
	"github.com/cuemby/edgerun/pkg/threadname"
	"github.com/cuemby/edgerun/pkg/transport"
	"github.com/cuemby/edgerun/pkg/types"
)

// ErrBootFailure is wrapped into every error a Host returns when its engine
// construction fails, so callers can classify it with errors.Is regardless
// of the underlying construct() error.
var ErrBootFailure = errors.New("worker: boot failed")

// ShutdownNotifier is the narrow interface a Host uses to self-evict from
// the pool once its engine exits. Implemented by *pool.Pool; declared here
// rather than imported, so worker never depends on pool.
type ShutdownNotifier interface {
	Shutdown(key types.WorkerKey)
}

// Host owns one OS thread and the engine booted on it. Its only external
// surface is RequestInbox, an unbounded stream of RequestMsg.
type Host struct {
	key  types.WorkerKey
	kind types.WorkerKind

	requestInbox *queue.Unbounded[types.RequestMsg]
	streamInbox  chan net.Conn

	poolSink  ShutdownNotifier
	eventSink events.Publisher
}

// Key reports the worker's pool registry key.
func (h *Host) Key() types.WorkerKey { return h.key }

// Kind reports the worker's kind.
func (h *Host) Kind() types.WorkerKind { return h.kind }

// RequestInbox returns the unbounded RequestMsg stream the pool enqueues
// onto to reach this worker.
func (h *Host) RequestInbox() *queue.Unbounded[types.RequestMsg] { return h.requestInbox }

func threadNameFor(kind types.WorkerKind, key types.WorkerKey) string {
	switch kind {
	case types.KindMainWorker:
		return "main-worker"
	case types.KindEventsWorker:
		return "events-worker"
	default:
		return fmt.Sprintf("sb-iso-%d", uint64(key))
	}
}

// Boot starts a Host's goroutine, which constructs the engine on its own
// locked OS thread and runs its full boot-to-serve sequence. It returns
// immediately with the Host handle and a one-shot channel carrying the
// boot outcome; callers (the pool) must await that channel before relying
// on the Host.
func Boot(
	ctx context.Context,
	key types.WorkerKey,
	kind types.WorkerKind,
	opts types.WorkerInitOpts,
	construct engine.Constructor,
	eventRx <-chan events.Event,
	poolSink ShutdownNotifier,
	eventSink events.Publisher,
) (*Host, <-chan types.BootResult) {
	h := &Host{
		key:          key,
		kind:         kind,
		requestInbox: queue.NewUnbounded[types.RequestMsg](),
		streamInbox:  make(chan net.Conn),
		poolSink:     poolSink,
		eventSink:    eventSink,
	}

	bootResult := make(chan types.BootResult, 1)
	go h.run(ctx, opts, construct, eventRx, bootResult)
	return h, bootResult
}

func (h *Host) run(
	ctx context.Context,
	opts types.WorkerInitOpts,
	construct engine.Constructor,
	eventRx <-chan events.Event,
	bootResult chan<- types.BootResult,
) {
	runtime.LockOSThread()
	threadname.Set(threadNameFor(h.kind, h.key))

	logger := log.WithWorkerKey(uint64(h.key)).With().Str("component", "worker_host").Logger()

	start := time.Now()
	eng, err := construct(ctx, opts, eventRx)
	if err != nil {
		wrapped := fmt.Errorf("worker: constructing engine: %w: %w", ErrBootFailure, err)
		bootResult <- types.BootResult{Err: wrapped}
		events.PublishIfAvailable(h.eventSink, events.BootFailure(uint64(h.key), err.Error()))
		metrics.WorkerBootFailuresTotal.WithLabelValues(string(h.kind)).Inc()
		logger.Error().Err(err).Msg("worker boot failed")
		return
	}

	elapsed := time.Since(start)
	bootResult <- types.BootResult{Elapsed: elapsed}
	metrics.WorkerBootDuration.WithLabelValues(string(h.kind)).Observe(elapsed.Seconds())
	metrics.WorkersActive.WithLabelValues(string(h.kind)).Inc()
	defer metrics.WorkersActive.WithLabelValues(string(h.kind)).Dec()
	events.PublishIfAvailable(h.eventSink, events.Boot(uint64(h.key), elapsed))
	logger.Info().Dur("elapsed", elapsed).Msg("worker booted")

	forceQuit := make(chan struct{})

	if h.kind == types.KindUserWorker {
		engineTID := threadname.CurrentID()
		sup := supervisor.New(h.key, eng, opts.Limits, engineTID, forceQuit, h.eventSink)
		<-sup.Start()
	}

	dispatchCtx, cancelDispatch := context.WithCancel(ctx)
	defer cancelDispatch()
	go func() {
		for msg := range h.requestInbox.Out() {
			go h.dispatchOne(dispatchCtx, msg)
		}
	}()

	_, runErr := eng.Run(h.streamInbox, forceQuit)
	if runErr != nil {
		events.PublishIfAvailable(h.eventSink, events.UncaughtException(uint64(h.key), runErr.Error()))
		logger.Warn().Err(runErr).Msg("worker engine exited with error")
	}

	h.requestInbox.Close()

	if h.poolSink != nil {
		h.poolSink.Shutdown(h.key)
	}
}

// dispatchOne drives the request transport for a single RequestMsg,
// additionally reporting any transport error as an UncaughtException
// event before relaying the outcome to the caller's reply slot.
func (h *Host) dispatchOne(ctx context.Context, msg types.RequestMsg) {
	metrics.RequestsInFlight.Inc()
	defer metrics.RequestsInFlight.Dec()
	timer := metrics.NewTimer()

	internal := make(chan types.Reply, 1)
	transport.Dispatch(ctx, h.streamInbox, types.RequestMsg{Request: msg.Request, ReplySlot: internal})
	reply := <-internal

	status := "ok"
	if reply.Err != nil {
		status = "error"
		events.PublishIfAvailable(h.eventSink, events.UncaughtException(uint64(h.key), reply.Err.Error()))
	}
	timer.ObserveDurationVec(metrics.RequestDuration, string(h.kind), status)
	metrics.RequestsTotal.WithLabelValues(string(h.kind), status).Inc()

	msg.ReplySlot <- reply
}
