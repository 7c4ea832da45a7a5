// Package transport carries one HTTP exchange between the pool and a
// worker host's engine over an ephemeral in-memory byte-stream pair.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"runtime"

	"github.com/cuemby/edgerun/pkg/types"
)

// ErrTransport is wrapped into every error Dispatch delivers on a request's
// ReplySlot, so callers can classify a transport-layer failure with
// errors.Is regardless of which step produced it.
var ErrTransport = errors.New("transport: request failed")

// Dispatch performs the request-transport steps against a worker's stream
// inbox and delivers the outcome on req.ReplySlot. Callers run it as a
// detached goroutine per in-flight request.
func Dispatch(ctx context.Context, streamInbox chan<- net.Conn, req types.RequestMsg) {
	near, far := net.Pipe()

	select {
	case streamInbox <- far:
	case <-ctx.Done():
		_ = near.Close()
		_ = far.Close()
		req.ReplySlot <- types.Reply{Err: fmt.Errorf("transport: stream inbox unavailable: %w: %w", ErrTransport, ctx.Err())}
		return
	}

	client := &http.Client{
		Transport: &http.Transport{
			DialContext: func(context.Context, string, string) (net.Conn, error) {
				return near, nil
			},
		},
	}

	// Yield once so the engine goroutine progresses to accept before we
	// transmit the request.
	runtime.Gosched()

	httpReq, err := buildHTTPRequest(ctx, req.Request)
	if err != nil {
		req.ReplySlot <- types.Reply{Err: fmt.Errorf("transport: building request: %w: %w", ErrTransport, err)}
		return
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		req.ReplySlot <- types.Reply{Err: fmt.Errorf("transport: request failed: %w: %w", ErrTransport, err)}
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		req.ReplySlot <- types.Reply{Err: fmt.Errorf("transport: reading response body: %w: %w", ErrTransport, err)}
		return
	}

	req.ReplySlot <- types.Reply{Response: &types.HTTPResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}}
}

func buildHTTPRequest(ctx context.Context, r *types.HTTPRequest) (*http.Request, error) {
	httpReq, err := http.NewRequestWithContext(ctx, r.Method, "http://worker"+r.URL, bytes.NewReader(r.Body))
	if err != nil {
		return nil, err
	}
	for k, vs := range r.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	return httpReq, nil
}
