// SPDX-License-Identifier: MIT

package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/stitech/convogate/internal/persistence/sqlite"
	"github.com/stitech/convogate/internal/stage"
)

// SqliteSink persists the flow audit log in a SQLite database. Entries are
// write-once; there is no update or delete path.
type SqliteSink struct {
	db *sql.DB
}

const flowLogSchema = `
CREATE TABLE IF NOT EXISTS flow_log (
	seq          INTEGER PRIMARY KEY AUTOINCREMENT,
	ts_ms        INTEGER NOT NULL,
	session_key  TEXT NOT NULL,
	stage_before TEXT NOT NULL,
	input        TEXT NOT NULL,
	detected_trigger TEXT NOT NULL,
	reply        TEXT NOT NULL,
	stage_after  TEXT NOT NULL,
	action       TEXT NOT NULL,
	duration_ms  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_flow_log_session ON flow_log(session_key, seq);
`

// NewSqliteSink opens (or creates) the audit database at dbPath.
func NewSqliteSink(dbPath string) (*SqliteSink, error) {
	db, err := sqlite.Open(dbPath, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(flowLogSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("audit: schema: %w", err)
	}
	return &SqliteSink{db: db}, nil
}

// Append inserts the entry and returns its assigned sequence number.
func (s *SqliteSink) Append(ctx context.Context, e FlowLogEntry) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO flow_log (ts_ms, session_key, stage_before, input, detected_trigger, reply, stage_after, action, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Timestamp.UnixMilli(), e.SessionKey, string(e.StageBefore), e.Input,
		e.Trigger, e.Reply, string(e.StageAfter), e.Action, e.DurationMS)
	if err != nil {
		return 0, fmt.Errorf("audit: append: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("audit: append seq: %w", err)
	}
	return seq, nil
}

// Recent returns the newest n entries for a session, newest first.
func (s *SqliteSink) Recent(ctx context.Context, sessionKey string, n int) ([]FlowLogEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, ts_ms, session_key, stage_before, input, detected_trigger, reply, stage_after, action, duration_ms
		 FROM flow_log WHERE session_key = ? ORDER BY seq DESC LIMIT ?`, sessionKey, n)
	if err != nil {
		return nil, fmt.Errorf("audit: recent: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []FlowLogEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Scan visits every entry in sequence order.
func (s *SqliteSink) Scan(ctx context.Context, fn func(FlowLogEntry) error) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, ts_ms, session_key, stage_before, input, detected_trigger, reply, stage_after, action, duration_ms
		 FROM flow_log ORDER BY seq ASC`)
	if err != nil {
		return fmt.Errorf("audit: scan: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Close closes the underlying database.
func (s *SqliteSink) Close() error {
	return s.db.Close()
}

func scanEntry(rows *sql.Rows) (FlowLogEntry, error) {
	var e FlowLogEntry
	var tsMS int64
	var before, after string
	if err := rows.Scan(&e.Seq, &tsMS, &e.SessionKey, &before, &e.Input,
		&e.Trigger, &e.Reply, &after, &e.Action, &e.DurationMS); err != nil {
		return FlowLogEntry{}, fmt.Errorf("audit: scan row: %w", err)
	}
	e.Timestamp = time.UnixMilli(tsMS).UTC()
	e.StageBefore = stage.Stage(before)
	e.StageAfter = stage.Stage(after)
	return e, nil
}
