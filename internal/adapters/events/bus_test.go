package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkoval/poolctl/internal/domain"
)

func TestBusDeliversToAllSubscribers(t *testing.T) {
	t.Parallel()

	bus := NewBus()

	first, cancelFirst := bus.Subscribe(4)
	defer cancelFirst()
	second, cancelSecond := bus.Subscribe(4)
	defer cancelSecond()

	event := domain.Event{Type: domain.EventAccountAdded, AccountID: "acc-1"}
	bus.Publish(event)

	assert.Equal(t, event, <-first)
	assert.Equal(t, event, <-second)
}

func TestBusDropsWhenSubscriberIsFull(t *testing.T) {
	t.Parallel()

	bus := NewBus()

	ch, cancel := bus.Subscribe(1)
	defer cancel()

	bus.Publish(domain.Event{Type: domain.EventSessionStarted})
	bus.Publish(domain.Event{Type: domain.EventSessionEnded})

	got := <-ch
	assert.Equal(t, domain.EventSessionStarted, got.Type)

	select {
	case extra := <-ch:
		t.Fatalf("expected second event to be dropped, got %v", extra.Type)
	default:
	}
}

func TestBusCancelClosesChannel(t *testing.T) {
	t.Parallel()

	bus := NewBus()

	ch, cancel := bus.Subscribe(1)
	cancel()
	cancel()

	_, open := <-ch
	assert.False(t, open)

	bus.Publish(domain.Event{Type: domain.EventPoolEmpty})
}

func TestTeeFansOut(t *testing.T) {
	t.Parallel()

	first := NewBus()
	second := NewBus()

	firstCh, cancelFirst := first.Subscribe(1)
	defer cancelFirst()
	secondCh, cancelSecond := second.Subscribe(1)
	defer cancelSecond()

	sink := Tee(first, second)
	sink.Publish(domain.Event{Type: domain.EventQuotaLow, At: time.Now()})

	require.Equal(t, domain.EventQuotaLow, (<-firstCh).Type)
	require.Equal(t, domain.EventQuotaLow, (<-secondCh).Type)
}
