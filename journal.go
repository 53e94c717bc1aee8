// Package main - journal.go
//
// Session journal: one SQLite row per finished session, read back by the
// `history` command and the tray statistics.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const journalFile = "journal.db"

// SessionRecord is one finished session
type SessionRecord struct {
	ID                string
	StartedAt         time.Time
	EndedAt           time.Time
	StationsCompleted int
	TotalStations     int
	WaterRefilled     bool
	WaterOnly         bool
	ErrorKind         ErrorKind
	ErrorMessage      string
}

// Duration returns how long the session ran
func (r SessionRecord) Duration() time.Duration {
	return r.EndedAt.Sub(r.StartedAt)
}

// SessionRecorder stores finished sessions
type SessionRecorder interface {
	RecordSession(ctx context.Context, rec SessionRecord) error
}

// JournalTotals aggregates the whole journal
type JournalTotals struct {
	Sessions int
	Stations int
	Failed   int
}

// Journal is the SQLite session journal
type Journal struct {
	db *sql.DB
}

const journalSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	started_at TEXT NOT NULL,
	ended_at TEXT NOT NULL,
	stations_completed INTEGER NOT NULL,
	total_stations INTEGER NOT NULL,
	water_refilled INTEGER NOT NULL,
	water_only INTEGER NOT NULL,
	error_kind TEXT NOT NULL,
	error_message TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS sessions_started_at ON sessions(started_at);
`

// OpenJournal opens (or creates) the journal database at path
func OpenJournal(ctx context.Context, path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, journalSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close closes the database
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTS(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

// RecordSession inserts a finished session. A record without an ID gets one.
func (j *Journal) RecordSession(ctx context.Context, rec SessionRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := j.db.ExecContext(ctx, `
INSERT INTO sessions(id, started_at, ended_at, stations_completed, total_stations, water_refilled, water_only, error_kind, error_message)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`, rec.ID, ts(rec.StartedAt), ts(rec.EndedAt), rec.StationsCompleted, rec.TotalStations,
		boolToInt(rec.WaterRefilled), boolToInt(rec.WaterOnly), rec.ErrorKind.String(), rec.ErrorMessage)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// Recent returns the latest sessions, newest first
func (j *Journal) Recent(ctx context.Context, limit int) ([]SessionRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.QueryContext(ctx, `
SELECT id, started_at, ended_at, stations_completed, total_stations, water_refilled, water_only, error_kind, error_message
FROM sessions
ORDER BY started_at DESC
LIMIT ?
`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		var (
			rec            SessionRecord
			started, ended string
			refilled, only int
			kind           string
		)
		if err := rows.Scan(&rec.ID, &started, &ended, &rec.StationsCompleted, &rec.TotalStations,
			&refilled, &only, &kind, &rec.ErrorMessage); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		rec.StartedAt = parseTS(started)
		rec.EndedAt = parseTS(ended)
		rec.WaterRefilled = refilled != 0
		rec.WaterOnly = only != 0
		rec.ErrorKind = parseErrorKind(kind)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}

// Totals aggregates every recorded session
func (j *Journal) Totals(ctx context.Context) (JournalTotals, error) {
	var t JournalTotals
	err := j.db.QueryRowContext(ctx, `
SELECT COUNT(*), COALESCE(SUM(stations_completed), 0), COALESCE(SUM(CASE WHEN error_kind != 'None' THEN 1 ELSE 0 END), 0)
FROM sessions
`).Scan(&t.Sessions, &t.Stations, &t.Failed)
	if err != nil {
		return JournalTotals{}, fmt.Errorf("query totals: %w", err)
	}
	return t, nil
}

func parseErrorKind(s string) ErrorKind {
	for k := ErrorNone; k <= ErrorUnknown; k++ {
		if k.String() == s {
			return k
		}
	}
	return ErrorUnknown
}
