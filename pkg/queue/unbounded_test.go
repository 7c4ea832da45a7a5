package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnboundedFIFO(t *testing.T) {
	q := NewUnbounded[int]()
	for i := 0; i < 100; i++ {
		assert.True(t, q.Send(i))
	}

	for i := 0; i < 100; i++ {
		select {
		case v := <-q.Out():
			assert.Equal(t, i, v)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for item %d", i)
		}
	}
}

func TestUnboundedCloseDrainsThenCloses(t *testing.T) {
	q := NewUnbounded[string]()
	require.True(t, q.Send("a"))
	require.True(t, q.Send("b"))
	q.Close()

	assert.False(t, q.Send("c"), "send after close must be rejected")

	got := make([]string, 0, 2)
	for v := range q.Out() {
		got = append(got, v)
	}
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestUnboundedConcurrentSenders(t *testing.T) {
	q := NewUnbounded[int]()
	const n = 50
	done := make(chan struct{})
	for i := 0; i < n; i++ {
		go func(i int) {
			q.Send(i)
			done <- struct{}{}
		}(i)
	}
	for i := 0; i < n; i++ {
		<-done
	}

	seen := make(map[int]bool)
	for i := 0; i < n; i++ {
		select {
		case v := <-q.Out():
			seen[v] = true
		case <-time.After(time.Second):
			t.Fatal("timed out collecting items")
		}
	}
	assert.Len(t, seen, n)
}
