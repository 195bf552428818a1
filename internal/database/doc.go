// Package database keeps the history of audit runs in SQLite.
//
// AuditDB stores:
//   - one row per run with its status and per-stakeholder totals
//   - every (page, stakeholder) finding of the run
//   - the report documents produced for each stakeholder
//
// The database is a single file opened through modernc.org/sqlite, so no cgo
// toolchain is needed. Stage snapshots remain the source of truth for
// resuming a run; the database only serves the history command and
// comparisons between runs.
package database
