// Package transcript provides storage adapters for conversation transcripts
// and hand-off requests.
//
// Two implementations of the chat.Store contract are available: Memory, a
// process-local store for tests and single-node deployments, and SQLite, a
// durable store backed by modernc.org/sqlite. Both are safe for concurrent
// use and both honor the contract's idempotence rules: saving twice
// overwrites, loading a missing transcript returns an empty slice, and
// deleting a missing transcript is not an error.
package transcript
