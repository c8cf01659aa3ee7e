// Package storage persists day overrides, per-baby settings and the audit
// trail behind one Store interface.
//
// Drivers:
//   - "memory": process-local maps (also used for "none")
//   - "file": JSON Lines journal compacted into a snapshot, plus an audit log
//   - "sqlite": a single SQLite database file (modernc.org/sqlite)
package storage
