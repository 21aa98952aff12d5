// Package bus provides the process-wide publish/subscribe backbone for
// deskflow orchestration components.
//
// Events carry a closed type enum and a typed payload. The in-process
// backend delivers events to subscribed handlers in publish order, one
// event type at a time: every handler registered for a type sees event N
// before event N+1 is dispatched. Handler failures are retried a bounded
// number of times with linearly increasing delay and then parked for
// manual replay; they are never surfaced to the publisher.
//
// Delivery is at-least-once. Handlers that already processed an event id
// successfully are skipped on redelivery via a capped processed-set, so
// redelivering a parked or duplicated event produces exactly one
// observable side effect per handler.
//
// A Kafka-backed backend (KafkaBus) preserves the same handler contract
// for deployments that need a durable broker between publisher and
// subscribers.
package bus
