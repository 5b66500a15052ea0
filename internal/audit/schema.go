// Package audit is an observability side-channel, never consulted by
// internal/pubsub's core logic (SPEC_FULL §3 "Audit event": "purely an
// observability side-channel, matching the original spec's 'Persisted
// state: none in the core'"). It records subscription lifecycle events
// (subscribe, unsubscribe, update, invalid, unauthorized, init_failed) to
// an append-only SQLite table, written asynchronously off a queue so
// emitting an event never blocks the task-queue worker that produced it.
//
// Grounded on the teacher's internal/requestlog (async queue + batch
// flush to SQLite) and internal/state (OpenDB pragmas, golang-migrate
// wiring), collapsed to a single rolling-free database since an audit
// trail has no per-request payload bytes to bound.
package audit

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// OpenDB opens (or creates) the SQLite database at path with the same
// single-writer pragmas as internal/state.OpenDB.
func OpenDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("audit: open db %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("audit: apply %q: %w", p, err)
		}
	}
	return db, nil
}
