//go:build v8

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/cuemby/edgerun/pkg/engine"
	"github.com/cuemby/edgerun/pkg/engine/v8engine"
	"github.com/cuemby/edgerun/pkg/events"
	"github.com/cuemby/edgerun/pkg/types"
)

// defaultEngineConstructor reads the service bundle's entry module from
// opts.ServicePath and compiles it into a fresh v8go isolate per worker.
func defaultEngineConstructor() engine.Constructor {
	return func(_ context.Context, opts types.WorkerInitOpts, _ <-chan events.Event) (engine.Engine, error) {
		source, err := os.ReadFile(opts.ServicePath)
		if err != nil {
			return nil, fmt.Errorf("edgerun: reading service bundle %q: %w", opts.ServicePath, err)
		}

		return v8engine.New(v8engine.Config{
			Source:        string(source),
			IsUserRuntime: opts.Kind == types.KindUserWorker,
			HeapLimitMB:   512,
		})
	}
}
