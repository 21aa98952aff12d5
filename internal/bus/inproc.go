// ABOUTME: In-process event bus backend with retry, parking, and idempotent delivery
// ABOUTME: One dispatch goroutine per event type preserves publish order per handler

package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// queueBufferSize is the per-event-type dispatch queue depth. Publishers
// block rather than drop when a queue is full.
const queueBufferSize = 256

// subscription is one named handler registration.
type subscription struct {
	id      string
	name    string
	handler Handler
}

// InProcBus is the fully in-process Bus backend. Events are dispatched by a
// single goroutine per event type: all handlers of a type see event N
// before event N+1 is delivered.
type InProcBus struct {
	mu        sync.RWMutex
	subs      map[EventType][]*subscription
	queues    map[EventType]chan *Event
	parked    []*ParkedEvent
	processed *processedSet
	closed    bool

	maxAttempts int
	retryDelay  time.Duration
	logger      *slog.Logger
	wg          sync.WaitGroup
}

// NewInProcBus creates an in-process bus. maxAttempts is the number of
// delivery attempts per handler before parking; retryDelay is the base
// delay, increased linearly per attempt. Pass nil logger for default.
func NewInProcBus(maxAttempts int, retryDelay time.Duration, processedSetSize int, logger *slog.Logger) *InProcBus {
	if logger == nil {
		logger = slog.Default()
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &InProcBus{
		subs:        make(map[EventType][]*subscription),
		queues:      make(map[EventType]chan *Event),
		processed:   newProcessedSet(processedSetSize),
		maxAttempts: maxAttempts,
		retryDelay:  retryDelay,
		logger:      logger.With("component", "bus"),
	}
}

// Publish emits an event to all handlers subscribed to its type. The event
// id is generated here and returned; delivery happens asynchronously on the
// type's dispatch goroutine.
func (b *InProcBus) Publish(ctx context.Context, t EventType, payload any, opts PublishOptions) (string, error) {
	evt := &Event{
		ID:            uuid.New().String(),
		Type:          t,
		Payload:       payload,
		Timestamp:     time.Now(),
		CorrelationID: opts.CorrelationID,
		CausationID:   opts.CausationID,
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return "", ErrBusClosed
	}
	q := b.queueLocked(t)
	b.mu.Unlock()

	q <- evt

	b.logger.Debug("event published",
		"event_id", evt.ID,
		"type", t,
		"correlation_id", opts.CorrelationID)
	return evt.ID, nil
}

// Subscribe registers a named handler for an event type. The returned
// function removes the subscription.
func (b *InProcBus) Subscribe(t EventType, name string, h Handler) func() {
	sub := &subscription{
		id:      uuid.New().String(),
		name:    name,
		handler: h,
	}

	b.mu.Lock()
	b.subs[t] = append(b.subs[t], sub)
	// Ensure the dispatch goroutine exists even before the first publish so
	// subscription-then-publish races are impossible.
	b.queueLocked(t)
	b.mu.Unlock()

	b.logger.Debug("handler subscribed", "type", t, "handler", name)

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.subs[t]
		for i, s := range list {
			if s.id == sub.id {
				b.subs[t] = append(list[:i], list[i+1:]...)
				break
			}
		}
	}
}

// queueLocked returns the dispatch queue for a type, starting its dispatch
// goroutine on first use. Must be called with mu held.
func (b *InProcBus) queueLocked(t EventType) chan *Event {
	q, ok := b.queues[t]
	if ok {
		return q
	}
	q = make(chan *Event, queueBufferSize)
	b.queues[t] = q
	b.wg.Add(1)
	go b.dispatch(q)
	return q
}

// dispatch delivers queued events one at a time, in publish order.
func (b *InProcBus) dispatch(q chan *Event) {
	defer b.wg.Done()
	for evt := range q {
		b.deliverAll(evt)
	}
}

// deliverAll delivers one event to every current subscriber of its type.
func (b *InProcBus) deliverAll(evt *Event) {
	b.mu.RLock()
	targets := make([]*subscription, len(b.subs[evt.Type]))
	copy(targets, b.subs[evt.Type])
	b.mu.RUnlock()

	for _, sub := range targets {
		b.deliver(evt, sub)
	}
}

// deliver runs one handler against one event with bounded retry. On
// exhaustion the pair is parked; nothing propagates to the publisher.
func (b *InProcBus) deliver(evt *Event, sub *subscription) {
	key := evt.ID + "|" + sub.name
	if b.processed.Contains(key) {
		b.logger.Debug("skipping already-processed event",
			"event_id", evt.ID,
			"handler", sub.name)
		return
	}

	var lastErr error
	for attempt := 1; attempt <= b.maxAttempts; attempt++ {
		lastErr = b.invoke(sub, evt)
		if lastErr == nil {
			b.processed.Mark(key)
			return
		}
		if attempt < b.maxAttempts {
			// Linear backoff: delay grows with each attempt
			time.Sleep(b.retryDelay * time.Duration(attempt))
		}
	}

	b.mu.Lock()
	b.parked = append(b.parked, &ParkedEvent{
		Event:       evt,
		HandlerName: sub.name,
		Attempts:    b.maxAttempts,
		LastError:   lastErr.Error(),
		ParkedAt:    time.Now(),
	})
	b.mu.Unlock()

	b.logger.Error("handler exhausted retries, event parked for replay",
		"event_id", evt.ID,
		"type", evt.Type,
		"handler", sub.name,
		"attempts", b.maxAttempts,
		"error", lastErr)
}

// invoke runs a handler, converting panics into errors.
func (b *InProcBus) invoke(sub *subscription, evt *Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return sub.handler(context.Background(), evt)
}

// Pending returns a snapshot of parked (event, handler) pairs.
func (b *InProcBus) Pending() []*ParkedEvent {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]*ParkedEvent, len(b.parked))
	copy(out, b.parked)
	return out
}

// Replay re-delivers every parked entry for the given event id to its
// original handler. Entries that succeed are removed and marked processed;
// entries that fail again stay parked with an updated error.
func (b *InProcBus) Replay(ctx context.Context, eventID string) error {
	b.mu.Lock()
	var toReplay []*ParkedEvent
	var remaining []*ParkedEvent
	for _, p := range b.parked {
		if p.Event.ID == eventID {
			toReplay = append(toReplay, p)
		} else {
			remaining = append(remaining, p)
		}
	}
	b.parked = remaining
	b.mu.Unlock()

	if len(toReplay) == 0 {
		return fmt.Errorf("no parked entries for event %s", eventID)
	}

	for _, p := range toReplay {
		sub := b.findSubscription(p.Event.Type, p.HandlerName)
		if sub == nil {
			b.logger.Warn("replay target handler no longer subscribed",
				"event_id", eventID,
				"handler", p.HandlerName)
			continue
		}
		b.deliver(p.Event, sub)
	}
	return nil
}

// findSubscription locates a current subscription by type and name.
func (b *InProcBus) findSubscription(t EventType, name string) *subscription {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs[t] {
		if s.name == name {
			return s
		}
	}
	return nil
}

// Close stops all dispatch goroutines after draining queued events.
// It is safe to call multiple times.
func (b *InProcBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for _, q := range b.queues {
		close(q)
	}
	b.mu.Unlock()

	b.wg.Wait()
	b.logger.Debug("bus closed")
	return nil
}

// processedSet tracks (event, handler) keys that completed successfully.
// When the set exceeds its cap, the oldest half is discarded; exact LRU
// order is not required.
type processedSet struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	order   []string
	maxSize int
}

func newProcessedSet(maxSize int) *processedSet {
	if maxSize < 2 {
		maxSize = 2
	}
	return &processedSet{
		seen:    make(map[string]struct{}),
		maxSize: maxSize,
	}
}

// Contains reports whether the key was marked processed.
func (s *processedSet) Contains(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[key]
	return ok
}

// Mark records a key, evicting the oldest half when the cap is exceeded.
func (s *processedSet) Mark(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[key]; ok {
		return
	}
	if len(s.order) >= s.maxSize {
		half := len(s.order) / 2
		for _, old := range s.order[:half] {
			delete(s.seen, old)
		}
		s.order = append([]string(nil), s.order[half:]...)
	}
	s.seen[key] = struct{}{}
	s.order = append(s.order, key)
}
