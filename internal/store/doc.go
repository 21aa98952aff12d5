// Package store persists deskflow aggregates.
//
// The Store interface is the storage boundary the orchestration core
// depends on: conversations, messages, resolutions, resolution
// updates, swarm records, and resolve-time archives. SQLiteStore is the
// production implementation; MockStore is the in-memory implementation
// used by tests.
//
// Storage failures are fatal to the calling operation. The core never
// retries storage implicitly; callers surface the error.
package store
