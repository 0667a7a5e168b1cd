// Package activity persists per-request serving outcomes to a local SQLite
// database so operators can inspect recent traffic on the device without a
// metrics stack. Recording is best-effort; it never blocks serving.
package activity

import (
	"context"
	"database/sql"
	"time"

	_ "modernc.org/sqlite"
)

// Record is one served (or rejected) inference request.
type Record struct {
	At         time.Time
	Model      string
	Status     string
	BatchSize  int
	QueueMS    int64
	DurationMS int64
	Error      string
}

// Log is a SQLite-backed activity log.
type Log struct {
	db *sql.DB
}

// Open creates or opens the database at path and runs migrations.
func Open(path string) (*Log, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite handles one writer; a single connection avoids lock churn.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	l := &Log{db: db}
	if err := l.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

func (l *Log) migrate() error {
	_, err := l.db.Exec(`
CREATE TABLE IF NOT EXISTS request_activity (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  at DATETIME NOT NULL,
  model TEXT NOT NULL,
  status TEXT NOT NULL,
  batch_size INTEGER NOT NULL DEFAULT 0,
  queue_ms INTEGER NOT NULL DEFAULT 0,
  duration_ms INTEGER NOT NULL DEFAULT 0,
  error TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_request_activity_at ON request_activity(at);
`)
	return err
}

// Add inserts one record.
func (l *Log) Add(ctx context.Context, r Record) error {
	if r.At.IsZero() {
		r.At = time.Now()
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO request_activity (at, model, status, batch_size, queue_ms, duration_ms, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?);`,
		r.At, r.Model, r.Status, r.BatchSize, r.QueueMS, r.DurationMS, r.Error)
	return err
}

// Recent returns up to limit records, newest first.
func (l *Log) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT at, model, status, batch_size, queue_ms, duration_ms, error
		 FROM request_activity ORDER BY id DESC LIMIT ?;`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.At, &r.Model, &r.Status, &r.BatchSize, &r.QueueMS, &r.DurationMS, &r.Error); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (l *Log) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}
