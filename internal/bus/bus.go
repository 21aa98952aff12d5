// ABOUTME: Bus contract shared by the in-process and Kafka backends
// ABOUTME: Defines Handler, subscription semantics, and parked-event records

package bus

import (
	"context"
	"errors"
	"time"
)

// ErrBusClosed is returned when publishing to a closed bus.
var ErrBusClosed = errors.New("bus is closed")

// Handler processes one event. Returning an error triggers bounded retry;
// after retries are exhausted the (event, handler) pair is parked for
// manual replay. Errors never propagate to the publisher.
type Handler func(ctx context.Context, evt *Event) error

// Bus is the publish/subscribe contract. Backends must deliver events to
// each handler in publish order and must skip handlers that already
// processed an event id.
type Bus interface {
	// Publish emits an event and returns its generated id. It never returns
	// handler errors; the only failures are backend-level (closed bus,
	// broker write).
	Publish(ctx context.Context, t EventType, payload any, opts PublishOptions) (string, error)

	// Subscribe registers a named handler for an event type and returns an
	// unsubscribe function. The name keys idempotency tracking and must be
	// stable across restarts.
	Subscribe(t EventType, name string, h Handler) func()

	// Pending returns the parked (event, handler) pairs awaiting replay.
	Pending() []*ParkedEvent

	// Replay re-delivers all parked entries for the given event id.
	Replay(ctx context.Context, eventID string) error

	// Close stops delivery. Pending events remain inspectable.
	Close() error
}

// ParkedEvent records a delivery that exhausted its retries.
type ParkedEvent struct {
	Event       *Event
	HandlerName string
	Attempts    int
	LastError   string
	ParkedAt    time.Time
}
