package worker

import (
	"context"

	"github.com/cuemby/edgerun/pkg/engine"
	"github.com/cuemby/edgerun/pkg/events"
	"github.com/cuemby/edgerun/pkg/types"
)

// BootEventWorker starts an Events Worker: structurally a Host like any
// other, but its engine receives events.Event values over the returned
// send handle instead of byte-stream connections, has no key, and is
// never policed by a Resource Supervisor.
func BootEventWorker(
	ctx context.Context,
	opts types.WorkerInitOpts,
	construct engine.Constructor,
	eventSink events.Publisher,
) (*Host, chan<- events.Event, <-chan types.BootResult) {
	opts.Kind = types.KindEventsWorker
	eventRx := make(chan events.Event, 256)
	h, bootResult := Boot(ctx, 0, types.KindEventsWorker, opts, construct, eventRx, nil, eventSink)
	return h, eventRx, bootResult
}
