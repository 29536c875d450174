package events

import (
	"sync"

	"github.com/dkoval/poolctl/internal/domain"
	"github.com/dkoval/poolctl/internal/ports"
)

// Bus fans pool events out to subscriber channels. Publish never blocks: a
// subscriber that falls behind loses events rather than stalling the pool.
type Bus struct {
	mu   sync.Mutex
	subs map[int]chan domain.Event
	next int
}

var _ ports.EventSink = (*Bus)(nil)

func NewBus() *Bus {
	return &Bus{subs: map[int]chan domain.Event{}}
}

// Subscribe returns a receive channel and its cancel function. Cancelling
// closes the channel.
func (b *Bus) Subscribe(buffer int) (<-chan domain.Event, func()) {
	if buffer < 1 {
		buffer = 1
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan domain.Event, buffer)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}

	return ch, cancel
}

func (b *Bus) Publish(event domain.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

// Tee publishes every event to all of the given sinks.
func Tee(sinks ...ports.EventSink) ports.EventSink {
	return tee(sinks)
}

type tee []ports.EventSink

func (t tee) Publish(event domain.Event) {
	for _, sink := range t {
		sink.Publish(event)
	}
}
