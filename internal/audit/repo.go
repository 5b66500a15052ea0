package audit

import (
	"database/sql"
	"fmt"
	"time"
)

// Repo manages the audit database: open, migrate, append, and a small
// read path for the admin API / operator tooling.
type Repo struct {
	db *sql.DB
}

// NewRepo opens (creating and migrating if necessary) the database at
// path.
func NewRepo(path string) (*Repo, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	if err := MigrateDB(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Repo{db: db}, nil
}

// Close closes the underlying database.
func (r *Repo) Close() error {
	return r.db.Close()
}

// InsertBatch appends entries in one transaction, returning the number
// written.
func (r *Repo) InsertBatch(entries []Event) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("audit: begin batch insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO audit_events (ts_ns, kind, node_name, subscriber_id) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("audit: prepare batch insert: %w", err)
	}
	defer stmt.Close()

	n := 0
	for _, e := range entries {
		if _, err := stmt.Exec(e.Time.UnixNano(), string(e.Kind), e.NodeName, e.SubscriberID); err != nil {
			return n, fmt.Errorf("audit: insert event: %w", err)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("audit: commit batch insert: %w", err)
	}
	return n, nil
}

// ListFilter narrows Repo.List.
type ListFilter struct {
	Kind     Kind // zero value means any kind
	NodeName string
}

// List returns up to limit events matching f, most recent first.
func (r *Repo) List(f ListFilter, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT ts_ns, kind, node_name, subscriber_id FROM audit_events`
	var where []string
	var args []any
	if f.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(f.Kind))
	}
	if f.NodeName != "" {
		where = append(where, "node_name = ?")
		args = append(args, f.NodeName)
	}
	for i, w := range where {
		if i == 0 {
			query += " WHERE " + w
		} else {
			query += " AND " + w
		}
	}
	query += " ORDER BY ts_ns DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: list events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			tsNS         int64
			kind         string
			nodeName     string
			subscriberID string
		)
		if err := rows.Scan(&tsNS, &kind, &nodeName, &subscriberID); err != nil {
			return nil, fmt.Errorf("audit: scan event: %w", err)
		}
		out = append(out, Event{
			Time:         time.Unix(0, tsNS),
			Kind:         Kind(kind),
			NodeName:     nodeName,
			SubscriberID: subscriberID,
		})
	}
	return out, rows.Err()
}
