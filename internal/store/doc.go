// Package store provides SQLite-backed run history for tickcheck.
//
// Each scenario execution is one row in runs; its verdicts are rows in
// verdicts, keyed by (run_id, idx) so they read back in recorded order.
//
// # Ordering
//
// Runs carry an autoincrement seq. Listings order by seq DESC so the most
// recent run comes first regardless of wall-clock skew between machines
// sharing a history file.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
