// Package pool implements the Worker Pool: the single goroutine that owns
// the worker registry and serializes every Create, SendRequest, and
// Shutdown command against it.
//
// The pool never needs a registry mutex. Because every mutation — insert
// on boot success, delete on shutdown — happens inside the one goroutine
// that also services lookups, two Creates racing for the same key are
// resolved by ordinary channel delivery order: whichever command the run
// loop processes second simply observes the first one's freshly inserted
// profile and short-circuits to reuse it. Single-writer, channel-serialized
// state, no locks.
package pool

import (
	"context"
	"errors"
	"fmt"

	"github.com/cuemby/edgerun/pkg/engine"
	"github.com/cuemby/edgerun/pkg/events"
	"github.com/cuemby/edgerun/pkg/log"
	"github.com/cuemby/edgerun/pkg/metrics"
	"github.com/cuemby/edgerun/pkg/types"
	"github.com/cuemby/edgerun/pkg/worker"
)

// ErrNotFound is returned by SendRequest when key names no live worker.
var ErrNotFound = errors.New("pool: user worker not available")

// ErrClosed is returned by Create/SendRequest once the pool has been
// closed; no further commands are accepted.
var ErrClosed = errors.New("pool: closed")

type createCmd struct {
	opts  types.WorkerInitOpts
	reply chan<- createResult
}

type createResult struct {
	key types.WorkerKey
	err error
}

type sendRequestCmd struct {
	key   types.WorkerKey
	req   *types.HTTPRequest
	reply chan types.Reply
}

type shutdownCmd struct {
	key types.WorkerKey
}

// bootDoneCmd is fed back into run() once a spawned boot finishes, so the
// registry insert still happens on the single owning goroutine even
// though the boot itself (which can take real wall-clock time) runs
// outside it.
type bootDoneCmd struct {
	key   types.WorkerKey
	kind  types.WorkerKind
	host  *worker.Host
	err   error
	reply chan<- createResult
	timer *metrics.Timer
}

type profile struct {
	host *worker.Host
	kind types.WorkerKind
}

// Pool is the worker registry's single writer and reader. Construct one
// with New and stop it with Close.
type Pool struct {
	construct engine.Constructor
	eventSink events.Publisher

	createCh   chan createCmd
	sendCh     chan sendRequestCmd
	shutdownCh chan shutdownCmd
	bootDoneCh chan bootDoneCmd
	lenCh      chan chan<- int

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	registry map[types.WorkerKey]*profile // owned exclusively by run()
}

// New starts a pool goroutine that constructs engines via construct and
// publishes telemetry on eventSink (may be nil).
func New(construct engine.Constructor, eventSink events.Publisher) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		construct:  construct,
		eventSink:  eventSink,
		createCh:   make(chan createCmd),
		sendCh:     make(chan sendRequestCmd),
		shutdownCh: make(chan shutdownCmd, 64),
		bootDoneCh: make(chan bootDoneCmd),
		lenCh:      make(chan chan<- int),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		registry:   make(map[types.WorkerKey]*profile),
	}
	go p.run()
	return p
}

// Create boots a user worker (or reuses one already registered under the
// deterministic, non-forced key for opts.ServicePath) and returns its key.
// A user worker whose opts.Limits is the zero value is booted with
// types.DefaultWorkerLimits.
func (p *Pool) Create(ctx context.Context, opts types.WorkerInitOpts) (types.WorkerKey, error) {
	reply := make(chan createResult, 1)
	select {
	case p.createCh <- createCmd{opts: opts, reply: reply}:
	case <-p.done:
		return 0, ErrClosed
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	select {
	case r := <-reply:
		return r.key, r.err
	case <-p.done:
		return 0, ErrClosed
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// SendRequest routes req to the worker registered under key.
func (p *Pool) SendRequest(ctx context.Context, key types.WorkerKey, req *types.HTTPRequest) (*types.HTTPResponse, error) {
	reply := make(chan types.Reply, 1)
	select {
	case p.sendCh <- sendRequestCmd{key: key, req: req, reply: reply}:
	case <-p.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case r := <-reply:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Response, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Shutdown implements worker.ShutdownNotifier and is also the public
// eviction command. Idempotent: evicting an absent key is a no-op.
func (p *Pool) Shutdown(key types.WorkerKey) {
	select {
	case p.shutdownCh <- shutdownCmd{key: key}:
	case <-p.done:
	}
}

// Close stops the pool goroutine. Pending commands observe ErrClosed.
func (p *Pool) Close() {
	p.cancel()
	<-p.done
}

// Len reports the current registry size. Safe to call concurrently: it is
// answered by the run goroutine that also performs every mutation, so it
// always reflects a consistent snapshot rather than a racing read.
func (p *Pool) Len() int {
	reply := make(chan int, 1)
	select {
	case p.lenCh <- reply:
	case <-p.done:
		return 0
	}
	select {
	case n := <-reply:
		return n
	case <-p.done:
		return 0
	}
}

func (p *Pool) run() {
	defer close(p.done)
	for {
		select {
		case cmd := <-p.createCh:
			p.handleCreate(cmd)
		case cmd := <-p.sendCh:
			p.handleSendRequest(cmd)
		case cmd := <-p.shutdownCh:
			p.handleShutdown(cmd)
		case cmd := <-p.bootDoneCh:
			p.handleBootDone(cmd)
		case reply := <-p.lenCh:
			reply <- len(p.registry)
		case <-p.ctx.Done():
			return
		}
	}
}

// handleCreate resolves the fast reuse path synchronously (no boot
// needed, so it can't stall the actor loop) and otherwise kicks the boot
// off in its own goroutine, feeding the outcome back through bootDoneCh
// so the registry insert still happens on this single owning goroutine.
func (p *Pool) handleCreate(cmd createCmd) {
	timer := metrics.NewTimer()

	key := ComputeKey(cmd.opts)
	if !cmd.opts.UserWorker.ForceCreate {
		if _, ok := p.registry[key]; ok {
			timer.ObserveDurationVec(metrics.PoolOperationDuration, "create", "reused")
			cmd.reply <- createResult{key: key}
			return
		}
	}

	cmd.opts.UserWorker.Key = key
	kind := cmd.opts.Kind
	if kind == "" {
		kind = types.KindUserWorker
	}
	if kind == types.KindUserWorker && cmd.opts.Limits == (types.WorkerLimits{}) {
		cmd.opts.Limits = types.DefaultWorkerLimits()
	}

	h, bootResult := worker.Boot(p.ctx, key, kind, cmd.opts, p.construct, nil, p, p.eventSink)

	go func() {
		res := <-bootResult
		done := bootDoneCmd{key: key, kind: kind, host: h, err: res.Err, reply: cmd.reply, timer: timer}
		select {
		case p.bootDoneCh <- done:
		case <-p.done:
		}
	}()
}

func (p *Pool) handleBootDone(cmd bootDoneCmd) {
	if cmd.err != nil {
		cmd.timer.ObserveDurationVec(metrics.PoolOperationDuration, "create", "error")
		cmd.reply <- createResult{err: fmt.Errorf("pool: boot failed: %w", cmd.err)}
		return
	}

	p.registry[cmd.key] = &profile{host: cmd.host, kind: cmd.kind}
	cmd.timer.ObserveDurationVec(metrics.PoolOperationDuration, "create", "ok")
	cmd.reply <- createResult{key: cmd.key}
}

func (p *Pool) handleSendRequest(cmd sendRequestCmd) {
	timer := metrics.NewTimer()

	prof, ok := p.registry[cmd.key]
	if !ok {
		timer.ObserveDurationVec(metrics.PoolOperationDuration, "send_request", "not_found")
		cmd.reply <- types.Reply{Err: ErrNotFound}
		return
	}

	timer.ObserveDurationVec(metrics.PoolOperationDuration, "send_request", "ok")
	prof.host.RequestInbox().Send(types.RequestMsg{Request: cmd.req, ReplySlot: cmd.reply})
}

func (p *Pool) handleShutdown(cmd shutdownCmd) {
	timer := metrics.NewTimer()

	if _, ok := p.registry[cmd.key]; !ok {
		timer.ObserveDurationVec(metrics.PoolOperationDuration, "shutdown", "not_found")
		return
	}
	delete(p.registry, cmd.key)
	metrics.PoolEvictionsTotal.WithLabelValues("shutdown").Inc()
	log.WithComponent("pool").Info().Uint64("worker_key", uint64(cmd.key)).Msg("worker evicted")
	timer.ObserveDurationVec(metrics.PoolOperationDuration, "shutdown", "ok")
}
