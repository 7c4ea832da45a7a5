//go:build !v8

package main

import (
	"context"

	"github.com/cuemby/edgerun/pkg/engine"
	"github.com/cuemby/edgerun/pkg/engine/fakeengine"
	"github.com/cuemby/edgerun/pkg/events"
	"github.com/cuemby/edgerun/pkg/types"
)

// defaultEngineConstructor is the engine.Constructor used when edgerun is
// built without -tags v8. fakeengine.ModePong keeps the CLI runnable
// end-to-end for anyone building edgerun without a v8 toolchain.
func defaultEngineConstructor() engine.Constructor {
	return func(_ context.Context, _ types.WorkerInitOpts, _ <-chan events.Event) (engine.Engine, error) {
		return fakeengine.New(fakeengine.Config{Mode: fakeengine.ModePong}), nil
	}
}
