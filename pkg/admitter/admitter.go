// Package admitter is a reference HTTP front-end for edgerun's pool. It is
// explicitly not part of the core — routing and admission policy are
// deliberately left to the operator — and exists only so the pool is
// runnable end-to-end without a real public-facing router.
//
// It maps a URL path prefix to a service bundle path 1:1, lazily creates a
// user worker for that prefix on first request via Pool.Create, and proxies
// every subsequent request for the same prefix through Pool.SendRequest.
// Each request gets a google/uuid request id for log/metric correlation.
package admitter

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cuemby/edgerun/pkg/log"
	"github.com/cuemby/edgerun/pkg/pool"
	"github.com/cuemby/edgerun/pkg/types"
)

// Admitter proxies inbound HTTP requests to pool-managed user workers.
type Admitter struct {
	pool *pool.Pool

	// RequestTimeout bounds how long a single proxied request may take
	// end-to-end, including a cold Create. Zero means no timeout.
	RequestTimeout time.Duration
}

// New constructs an Admitter fronting p.
func New(p *pool.Pool) *Admitter {
	return &Admitter{pool: p, RequestTimeout: 30 * time.Second}
}

// ServeHTTP implements http.Handler. The path's first segment names the
// service bundle; everything after it is forwarded to the worker as-is.
func (a *Admitter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID := uuid.NewString()
	logger := log.WithComponent("admitter").With().Str("request_id", reqID).Logger()

	servicePath, forwardPath := splitServicePath(r.URL.Path)
	if servicePath == "" {
		http.Error(w, "no service path in request", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if a.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.RequestTimeout)
		defer cancel()
	}

	key, err := a.pool.Create(ctx, types.WorkerInitOpts{
		ServicePath: servicePath,
		Kind:        types.KindUserWorker,
		Limits:      types.DefaultWorkerLimits(),
	})
	if err != nil {
		logger.Error().Err(err).Str("service_path", servicePath).Msg("failed to acquire worker")
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	req := &types.HTTPRequest{
		Method: r.Method,
		URL:    forwardPath,
		Header: map[string][]string(r.Header),
		Body:   body,
	}

	resp, err := a.pool.SendRequest(ctx, key, req)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, pool.ErrNotFound) {
			status = http.StatusNotFound
		}
		logger.Warn().Err(err).Uint64("worker_key", uint64(key)).Msg("request failed")
		http.Error(w, "upstream worker error", status)
		return
	}

	for k, vs := range resp.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.Header().Set("X-Request-Id", reqID)
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(resp.Body)
}

// splitServicePath takes the first path segment as the service bundle
// identifier and the remainder (with a leading slash restored) as the
// path to forward into the worker.
func splitServicePath(path string) (servicePath, forwardPath string) {
	trimmed := strings.TrimPrefix(path, "/")
	if trimmed == "" {
		return "", "/"
	}
	parts := strings.SplitN(trimmed, "/", 2)
	servicePath = "/" + parts[0]
	if len(parts) == 2 {
		forwardPath = "/" + parts[1]
	} else {
		forwardPath = "/"
	}
	return servicePath, forwardPath
}
