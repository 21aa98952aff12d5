// ABOUTME: Kafka-backed durable Bus backend sharing the in-process delivery path
// ABOUTME: Publishes JSON envelopes; a reader loop feeds local handlers

package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/segmentio/kafka-go"
)

// KafkaBus is a durable Bus backend. Publishes go to a Kafka topic; a
// consumer loop reads them back and funnels each envelope through the same
// retry/park/idempotency delivery path as the in-process backend, so the
// handler contract is identical.
type KafkaBus struct {
	writer *kafka.Writer
	reader *kafka.Reader
	local  *InProcBus
	logger *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// kafkaEnvelope is the wire form of an Event. Payload is carried as raw
// JSON so consumers can decode it against the type's payload struct.
type kafkaEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	Payload       json.RawMessage `json:"payload"`
	Timestamp     string          `json:"timestamp"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	CausationID   string          `json:"causation_id,omitempty"`
}

// NewKafkaBus creates a Kafka-backed bus. groupID names the consumer group
// for this process; local delivery semantics come from the embedded
// in-process backend.
func NewKafkaBus(brokers []string, topic, groupID string, local *InProcBus, logger *slog.Logger) *KafkaBus {
	if logger == nil {
		logger = slog.Default()
	}
	b := &KafkaBus{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: brokers,
			Topic:   topic,
			GroupID: groupID,
		}),
		local:  local,
		logger: logger.With("component", "bus-kafka"),
	}

	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.wg.Add(1)
	go b.consume(ctx)

	return b
}

// Publish writes the event envelope to the broker. Delivery to local
// handlers happens when the consumer loop reads it back.
func (b *KafkaBus) Publish(ctx context.Context, t EventType, payload any, opts PublishOptions) (string, error) {
	evt := &Event{
		Type:          t,
		Payload:       payload,
		CorrelationID: opts.CorrelationID,
		CausationID:   opts.CausationID,
	}
	// The local bus owns id generation; build the envelope around it by
	// generating here and stamping both sides identically.
	data, id, err := marshalEnvelope(evt)
	if err != nil {
		return "", fmt.Errorf("encoding event: %w", err)
	}

	key := opts.CorrelationID
	if key == "" {
		key = id
	}
	if err := b.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: data,
	}); err != nil {
		return "", fmt.Errorf("writing to broker: %w", err)
	}

	b.logger.Debug("event written to broker", "event_id", id, "type", t)
	return id, nil
}

// Subscribe registers a local handler; delivery semantics match InProcBus.
func (b *KafkaBus) Subscribe(t EventType, name string, h Handler) func() {
	return b.local.Subscribe(t, name, h)
}

// Pending returns the local parked entries.
func (b *KafkaBus) Pending() []*ParkedEvent {
	return b.local.Pending()
}

// Replay re-delivers local parked entries for the event id.
func (b *KafkaBus) Replay(ctx context.Context, eventID string) error {
	return b.local.Replay(ctx, eventID)
}

// consume reads envelopes off the broker and hands them to the local
// delivery path. Undecodable messages are logged and skipped.
func (b *KafkaBus) consume(ctx context.Context) {
	defer b.wg.Done()
	for {
		msg, err := b.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			b.logger.Error("broker read failed", "error", err)
			return
		}

		var env kafkaEnvelope
		if err := json.Unmarshal(msg.Value, &env); err != nil {
			b.logger.Error("dropping undecodable envelope",
				"offset", msg.Offset,
				"error", err)
			continue
		}

		evt := envelopeToEvent(&env)
		b.local.deliverAll(evt)
	}
}

// Close stops the consumer loop and releases broker connections.
func (b *KafkaBus) Close() error {
	var firstErr error
	b.once.Do(func() {
		b.cancel()
		if err := b.reader.Close(); err != nil {
			firstErr = err
		}
		b.wg.Wait()
		if err := b.writer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := b.local.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	})
	return firstErr
}
