// Package conversation owns the customer-dialogue aggregate and its
// state machine.
//
// A conversation is created on the first inbound message for a customer
// and survives channel switches under the same id. All mutation goes
// through the engine's operations; other components react to the events
// it publishes. Messages are recorded before anything acts on them, so
// history is the source of truth rather than a side effect.
//
// Classification runs asynchronously after an inbound customer message.
// A classification failure is logged and swallowed: message delivery
// never depends on it.
package conversation
