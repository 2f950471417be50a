// Package events fans session notifications out to subscribers without
// ever blocking the poster.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/GriffinCanCode/Moonlit/backend/internal/infrastructure/monitoring"
	"go.uber.org/zap"
)

// DefaultBuffer is the queue size used when NewBus is given zero
const DefaultBuffer = 256

// Event is one posted notification
type Event struct {
	Seq     uint64    `json:"seq"`
	Kind    string    `json:"kind"`
	Time    time.Time `json:"time"`
	Payload any       `json:"payload,omitempty"`
}

// Bus is a bounded, non-blocking notification sink. Post enqueues or drops;
// a single dispatcher goroutine copies each event to every subscriber.
type Bus struct {
	queue   chan Event
	logger  *zap.Logger
	metrics *monitoring.Metrics

	seq     atomic.Uint64
	dropped atomic.Uint64

	mu     sync.RWMutex
	closed bool
	subs   map[*Subscription]struct{}

	done chan struct{}
}

// NewBus creates a bus and starts its dispatcher
func NewBus(size int, logger *zap.Logger) *Bus {
	if size <= 0 {
		size = DefaultBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Bus{
		queue:  make(chan Event, size),
		logger: logger.Named("events"),
		subs:   make(map[*Subscription]struct{}),
		done:   make(chan struct{}),
	}
	go b.dispatch()
	return b
}

// WithMetrics adds posted and dropped counters
func (b *Bus) WithMetrics(metrics *monitoring.Metrics) *Bus {
	b.metrics = metrics
	return b
}

// Post implements streaming.Notifier. It never blocks; when the queue is
// full the event is dropped and counted.
func (b *Bus) Post(kind string, payload any) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	ev := Event{Seq: b.seq.Add(1), Kind: kind, Time: time.Now(), Payload: payload}
	select {
	case b.queue <- ev:
		if b.metrics != nil {
			b.metrics.RecordEventPosted(kind)
		}
	default:
		b.drop(kind)
	}
}

// Dropped returns how many events were lost to full queues
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Subscribe registers a subscriber with its own buffer. A slow subscriber
// loses events rather than holding up the others.
func (b *Bus) Subscribe(size int) *Subscription {
	if size <= 0 {
		size = DefaultBuffer
	}
	s := &Subscription{bus: b, ch: make(chan Event, size)}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(s.ch)
		return s
	}
	b.subs[s] = struct{}{}
	return s
}

// Subscribers returns the number of live subscriptions
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close drains queued events to subscribers, then closes every
// subscription. Later posts are ignored.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		<-b.done
		return
	}
	b.closed = true
	close(b.queue)
	b.mu.Unlock()

	<-b.done

	b.mu.Lock()
	for s := range b.subs {
		delete(b.subs, s)
		close(s.ch)
	}
	b.mu.Unlock()
}

func (b *Bus) dispatch() {
	defer close(b.done)
	for ev := range b.queue {
		b.mu.RLock()
		for s := range b.subs {
			select {
			case s.ch <- ev:
			default:
				s.dropped.Add(1)
				b.drop(ev.Kind)
			}
		}
		b.mu.RUnlock()
	}
}

func (b *Bus) drop(kind string) {
	n := b.dropped.Add(1)
	if b.metrics != nil {
		b.metrics.IncEventsDropped()
	}
	// one warning per power of two keeps a flood from flooding the log
	if n&(n-1) == 0 {
		b.logger.Warn("Event dropped", zap.String("kind", kind), zap.Uint64("dropped_total", n))
	}
}

// Subscription receives events from a Bus
type Subscription struct {
	bus     *Bus
	ch      chan Event
	dropped atomic.Uint64
	once    sync.Once
}

// C returns the event channel. It is closed when the subscription or the
// bus is closed.
func (s *Subscription) C() <-chan Event {
	return s.ch
}

// Dropped returns how many events this subscriber missed
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Close unsubscribes
func (s *Subscription) Close() {
	s.once.Do(func() {
		b := s.bus
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[s]; ok {
			delete(b.subs, s)
			close(s.ch)
		}
	})
}
