// Package store provides SQLite-backed durable storage for the conversion
// log written by the CLI.
//
// Every Do or Undo the CLI performs with --db set is appended as one
// row: the input record, the output record, the keys skipped for lack of
// a rule, and the identity of the rule set that produced it. The log
// lives outside the engine; the engine itself performs no I/O.
//
// # Ordering
//
// Ordering uses seq INTEGER (a logical clock per run), never timestamps.
// All queries order by seq ASC, id ASC COLLATE BINARY so that reads are
// identical across replays.
//
// # Identity
//
// Conversion IDs are content addressed (ir.ConversionID), so writing the
// same conversion twice is a no-op. Records are stored as canonical JSON
// (ir.MarshalCanonical), which keeps repeated keys and their order.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
package store
