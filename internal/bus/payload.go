// ABOUTME: Payload decoding shared by subscribers
// ABOUTME: Handles both typed in-process payloads and broker-delivered raw JSON

package bus

import (
	"encoding/json"
	"fmt"
)

// DecodePayload returns the event's payload as *T. In-process delivery
// carries the typed pointer through unchanged; broker delivery carries
// raw JSON that is decoded here.
func DecodePayload[T any](evt *Event) (*T, error) {
	switch p := evt.Payload.(type) {
	case *T:
		return p, nil
	case json.RawMessage:
		var out T
		if err := json.Unmarshal(p, &out); err != nil {
			return nil, fmt.Errorf("decoding %s payload: %w", evt.Type, err)
		}
		return &out, nil
	default:
		return nil, fmt.Errorf("unexpected payload type %T for %s", evt.Payload, evt.Type)
	}
}
