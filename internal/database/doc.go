// Package database provides SQLite-based persistence for stitch runs.
//
// Every archived run stores its metadata in the runs table plus one row
// per collected chapter in the chapters table. The full run result is
// additionally stored as JSON so future schema additions do not lose
// information from old rows.
//
// Design decision: We use modernc.org/sqlite (pure Go) rather than
// mattn/go-sqlite3 (CGO) to keep cross-compilation simple.
package database
