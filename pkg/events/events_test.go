package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBrokerFanOut(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub1 := b.Subscribe()
	sub2 := b.Subscribe()
	defer b.Unsubscribe(sub1)
	defer b.Unsubscribe(sub2)

	assert.Equal(t, 2, b.SubscriberCount())

	b.Publish(Boot(42, 3*time.Second))

	for _, sub := range []Subscriber{sub1, sub2} {
		select {
		case ev := <-sub:
			assert.Equal(t, KindBoot, ev.Kind)
			assert.Equal(t, uint64(42), ev.Key)
			assert.Equal(t, 3*time.Second, ev.BootTime)
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}
}

func TestPublishIfAvailableNilSinkIsNoop(t *testing.T) {
	assert.NotPanics(t, func() {
		PublishIfAvailable(nil, UncaughtException(1, "boom"))
	})
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	b.Unsubscribe(sub)

	_, ok := <-sub
	assert.False(t, ok)
	assert.Equal(t, 0, b.SubscriberCount())
}
