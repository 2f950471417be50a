package events

import (
	"testing"
	"time"

	"github.com/GriffinCanCode/Moonlit/backend/internal/infrastructure/monitoring"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, s *Subscription) Event {
	t.Helper()
	select {
	case ev, ok := <-s.C():
		require.True(t, ok, "subscription closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
		return Event{}
	}
}

func TestBusFanOut(t *testing.T) {
	bus := NewBus(8, nil)
	defer bus.Close()

	a := bus.Subscribe(8)
	b := bus.Subscribe(8)
	assert.Equal(t, 2, bus.Subscribers())

	bus.Post("session.phase", map[string]string{"to": "connecting"})
	bus.Post("session.phase", map[string]string{"to": "streaming"})

	for _, s := range []*Subscription{a, b} {
		first := receive(t, s)
		second := receive(t, s)
		assert.Equal(t, "session.phase", first.Kind)
		assert.Less(t, first.Seq, second.Seq)
		assert.Equal(t, map[string]string{"to": "streaming"}, second.Payload)
	}
}

func TestBusPostNeverBlocks(t *testing.T) {
	metrics := monitoring.NewMetricsWith(prometheus.NewRegistry())
	bus := NewBus(1, nil).WithMetrics(metrics)
	defer bus.Close()

	// a subscriber that never reads
	slow := bus.Subscribe(1)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			bus.Post("connection.stage_starting", i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Post blocked")
	}

	// one event fits the subscriber; every other one is lost either at the
	// queue or at the subscriber
	require.Eventually(t, func() bool {
		return bus.Dropped() == 99
	}, 2*time.Second, 5*time.Millisecond)
	assert.LessOrEqual(t, slow.Dropped(), uint64(99))
	assert.Equal(t, float64(99), testutil.ToFloat64(metrics.EventsDropped))
}

func TestSlowSubscriberDrops(t *testing.T) {
	bus := NewBus(4, nil)
	defer bus.Close()

	slow := bus.Subscribe(1)

	bus.Post("connection.stage_starting", 1)
	require.Eventually(t, func() bool {
		return len(slow.C()) == 1
	}, 2*time.Second, 5*time.Millisecond)

	bus.Post("connection.stage_starting", 2)
	require.Eventually(t, func() bool {
		return slow.Dropped() > 0
	}, 2*time.Second, 5*time.Millisecond)

	ev := receive(t, slow)
	assert.Equal(t, 1, ev.Payload)
}

func TestSubscriptionClose(t *testing.T) {
	bus := NewBus(4, nil)
	defer bus.Close()

	s := bus.Subscribe(4)
	s.Close()
	s.Close()
	assert.Equal(t, 0, bus.Subscribers())

	_, ok := <-s.C()
	assert.False(t, ok)
}

func TestBusClose(t *testing.T) {
	bus := NewBus(4, nil)
	s := bus.Subscribe(4)

	bus.Post("session.failed", nil)
	bus.Close()
	bus.Close()

	ev, ok := <-s.C()
	require.True(t, ok)
	assert.Equal(t, "session.failed", ev.Kind)
	_, ok = <-s.C()
	assert.False(t, ok)

	bus.Post("ignored", nil)
	assert.Zero(t, bus.Dropped())

	late := bus.Subscribe(1)
	_, ok = <-late.C()
	assert.False(t, ok)
}
