// Package store is the SQLite index catalog: a record of every compile run
// and of each constraint it compiled, with the index decision taken.
//
// Tables:
//   - runs: one row per compile run (UUIDv7 id, builder style, counts)
//   - constraints: one row per compiled constraint, keyed
//     "<run>/<rule>/<ordinal>"
//
// # Invariants
//
// Idempotent writes:
//   - Rows are inserted with ON CONFLICT DO NOTHING, so recording the same
//     run twice leaves the catalog unchanged.
//
// Deterministic reads:
//   - Every query has an ORDER BY; constraints sort by run, rule and
//     ordinal, never by insertion time.
//
// Resumable ids:
//   - MaxIndexID returns the largest index id recorded so that the next
//     run's IndexIDGenerator can continue after it.
//
// Bindings are stored as RFC 8785 canonical JSON (ir.MarshalCanonical);
// expressions are stored as their printed source text.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
