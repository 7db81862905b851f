// Package ledger persists one row per conversion attempt in SQLite.
//
// The ledger is append-only: the pipeline records a terminal outcome once per
// job and the CLI reads recent entries back for the history and status views.
// Writes retry on SQLITE_BUSY so concurrent batch workers can share a single
// database file.
package ledger
