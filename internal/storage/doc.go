// Package storage provides the durable state used by the watchers:
//
//   - a per-feed set of already-delivered record identifiers (with enough
//     release metadata for the calendar projection)
//   - an append-only queue of captured links awaiting forwarding
//
// Both live in one SQLite database. Each feed's seen-set is written by
// exactly one watcher; the link queue may see a concurrent producer
// (message observer) and consumer (forwarder), which SQLite's WAL mode and
// the single-connection pool handle without extra locking here.
package storage
