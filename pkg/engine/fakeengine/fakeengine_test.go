package fakeengine

import (
	"bufio"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnginePong(t *testing.T) {
	e := New(Config{Mode: ModePong})
	streamRx := make(chan net.Conn, 1)
	forceQuit := make(chan struct{})

	near, far := net.Pipe()
	streamRx <- far

	done := make(chan struct{})
	go func() {
		outcome, err := e.Run(streamRx, forceQuit)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), outcome.RequestsServed)
		close(done)
	}()

	req, err := http.NewRequest(http.MethodGet, "/ping", nil)
	require.NoError(t, err)
	require.NoError(t, req.Write(near))

	resp, err := http.ReadResponse(bufio.NewReader(near), req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body := make([]byte, 4)
	_, err = resp.Body.Read(body)
	require.NoError(t, err)
	assert.Equal(t, "pong", string(body))

	close(streamRx)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("engine did not exit after stream close")
	}
}

func TestEngineCPUBurnTerminates(t *testing.T) {
	e := New(Config{Mode: ModeCPUBurn, IsUserRuntime: true})
	streamRx := make(chan net.Conn, 1)
	forceQuit := make(chan struct{})

	near, far := net.Pipe()
	streamRx <- far
	go func() {
		req, _ := http.NewRequest(http.MethodGet, "/burn", nil)
		_ = req.Write(near)
	}()

	done := make(chan struct{})
	go func() {
		outcome, err := e.Run(streamRx, forceQuit)
		require.NoError(t, err)
		assert.Equal(t, "terminated", outcome.Reason)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	e.ThreadSafeTerminate()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("engine did not terminate on ThreadSafeTerminate")
	}
}

func TestEngineMemoryAllocInvokesCallback(t *testing.T) {
	e := New(Config{Mode: ModeMemoryAlloc, SimulatedHeapBytes: 100})
	var gotCurrent uint64
	cbCalled := make(chan struct{})
	e.OnNearHeapLimit(func(current uint64) uint64 {
		gotCurrent = current
		close(cbCalled)
		return current * 5
	})

	streamRx := make(chan net.Conn, 1)
	forceQuit := make(chan struct{})

	near, far := net.Pipe()
	streamRx <- far
	go func() {
		req, _ := http.NewRequest(http.MethodGet, "/alloc", nil)
		_ = req.Write(near)
	}()

	done := make(chan struct{})
	go func() {
		_, _ = e.Run(streamRx, forceQuit)
		close(done)
	}()

	select {
	case <-cbCalled:
	case <-time.After(time.Second):
		t.Fatal("near-heap callback not invoked")
	}
	assert.Equal(t, uint64(100), gotCurrent)

	e.ThreadSafeTerminate()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("engine did not exit after terminate")
	}
}

func TestEngineForceQuit(t *testing.T) {
	e := New(Config{Mode: ModePong})
	streamRx := make(chan net.Conn)
	forceQuit := make(chan struct{})

	done := make(chan struct{})
	go func() {
		outcome, err := e.Run(streamRx, forceQuit)
		require.NoError(t, err)
		assert.Equal(t, "force quit", outcome.Reason)
		close(done)
	}()

	close(forceQuit)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("engine did not exit on force quit")
	}
}
