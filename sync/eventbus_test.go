package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus_Broadcast(t *testing.T) {
	bus := NewEventBus()
	a := bus.Subscribe()
	b := bus.Subscribe()
	defer bus.Unsubscribe(a)
	defer bus.Unsubscribe(b)

	bus.Publish(Notice{RunID: "r1", Level: NoticeInfo, Message: "Done!"})

	for _, ch := range []chan Notice{a, b} {
		select {
		case n := <-ch:
			assert.Equal(t, "Done!", n.Message)
			assert.False(t, n.Time.IsZero())
		case <-time.After(time.Second):
			t.Fatal("notice not delivered")
		}
	}
}

func TestEventBus_UnsubscribeClosesOnce(t *testing.T) {
	bus := NewEventBus()
	ch := bus.Subscribe()

	bus.Unsubscribe(ch)
	bus.Unsubscribe(ch)

	_, open := <-ch
	assert.False(t, open)

	// Publishing with no subscribers is a no-op.
	bus.Publish(Notice{Message: "nobody"})
}

func TestEventBus_SlowSubscriberDropped(t *testing.T) {
	bus := NewEventBus()
	ch := bus.Subscribe()
	defer bus.Unsubscribe(ch)

	for i := 0; i < 100; i++ {
		bus.Publish(Notice{Message: "n"})
	}
	assert.Len(t, ch, cap(ch))

	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	<-ch
	bus.Publish(Notice{Message: "stamped", Time: fixed})
	for len(ch) > 1 {
		<-ch
	}
	n := <-ch
	require.Equal(t, "stamped", n.Message)
	assert.Equal(t, fixed, n.Time)
}

func TestEventBus_LosslessSubscriberGetsEverything(t *testing.T) {
	bus := NewEventBus()
	lossy := bus.Subscribe()
	defer bus.Unsubscribe(lossy)
	ch := bus.SubscribeLossless()

	const total = 500
	got := make(chan int)
	go func() {
		n := 0
		last := ""
		for msg := range ch {
			n++
			last = msg.Message
		}
		assert.Equal(t, "Done!", last)
		got <- n
	}()

	for i := 0; i < total-1; i++ {
		bus.Publish(Notice{Message: "n"})
	}
	bus.Publish(Notice{Message: "Done!"})
	bus.Unsubscribe(ch)

	select {
	case n := <-got:
		assert.Equal(t, total, n)
	case <-time.After(2 * time.Second):
		t.Fatal("lossless subscriber did not drain")
	}
	assert.Len(t, lossy, cap(lossy))
}
