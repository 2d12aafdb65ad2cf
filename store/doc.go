// Package store persists session state across process restarts: the access
// token, the refresh token, and the serialized user record, written together
// after every mutating Manager operation and read back once at startup.
//
// # Architecture boundaries
//
// This package owns the [Store] contract and its Redis, file, and in-memory
// implementations. It does NOT interpret tokens or decide when state changes —
// the Manager is the only writer, and outside readers must treat the stored
// data as a read-only snapshot of the last Manager write.
//
// # What this package must NOT do
//
//   - Import sessionkit, token, or api (no upward imports). User records pass
//     through as raw JSON.
//   - Invent state: a missing or corrupt record loads as the empty [State],
//     with corruption reported via [ErrCorruptState] so the caller can log it.
package store
