// ABOUTME: JSON envelope encoding shared by the Kafka backend
// ABOUTME: Stamps event id and timestamp at marshal time

package bus

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// marshalEnvelope serializes an event, generating its id and timestamp.
// Returns the wire bytes and the generated id.
func marshalEnvelope(evt *Event) ([]byte, string, error) {
	id := uuid.New().String()
	now := time.Now()

	payload, err := json.Marshal(evt.Payload)
	if err != nil {
		return nil, "", err
	}

	env := kafkaEnvelope{
		ID:            id,
		Type:          evt.Type,
		Payload:       payload,
		Timestamp:     now.Format(time.RFC3339Nano),
		CorrelationID: evt.CorrelationID,
		CausationID:   evt.CausationID,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, "", err
	}
	return data, id, nil
}

// envelopeToEvent converts a decoded wire envelope back into an Event.
// The payload is left as raw JSON; handlers decode it against the payload
// struct for the event type.
func envelopeToEvent(env *kafkaEnvelope) *Event {
	ts, err := time.Parse(time.RFC3339Nano, env.Timestamp)
	if err != nil {
		ts = time.Now()
	}
	return &Event{
		ID:            env.ID,
		Type:          env.Type,
		Payload:       env.Payload,
		Timestamp:     ts,
		CorrelationID: env.CorrelationID,
		CausationID:   env.CausationID,
	}
}
