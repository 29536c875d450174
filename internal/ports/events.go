package ports

import "github.com/dkoval/poolctl/internal/domain"

// EventSink receives pool events. Publish must not block: the pool emits
// while holding its state lock.
type EventSink interface {
	Publish(event domain.Event)
}
