package infra

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/eliteGoblin/focusd/pointgate/internal/domain"
)

const journalDBName = "journal.db"

// Journal implements domain.ActivityJournal on a pure-Go SQLite database.
type Journal struct {
	db *sql.DB
}

// OpenJournal opens (or creates) journal.db in dataDir.
func OpenJournal(dataDir string) (*Journal, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return OpenJournalAt(filepath.Join(dataDir, journalDBName))
}

// OpenJournalAt opens a journal at an explicit DSN (":memory:" in tests).
func OpenJournalAt(dsn string) (*Journal, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	// One writer; avoids SQLITE_BUSY between the tracker and report queries
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS activities (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		app TEXT NOT NULL,
		title TEXT NOT NULL,
		category TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		ended_at INTEGER NOT NULL,
		earned INTEGER NOT NULL DEFAULT 0,
		spent INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_activities_started ON activities(started_at);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create journal schema: %w", err)
	}
	return &Journal{db: db}, nil
}

// Record appends a closed activity.
func (j *Journal) Record(ctx context.Context, rec domain.ActivityRecord) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO activities (app, title, category, started_at, ended_at, earned, spent)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.App, rec.Title, string(rec.Category),
		rec.StartedAt.UnixMilli(), rec.EndedAt.UnixMilli(), rec.Earned, rec.Spent)
	if err != nil {
		return fmt.Errorf("failed to record activity: %w", err)
	}
	return nil
}

// Usage aggregates activities started at or after since, busiest app first.
func (j *Journal) Usage(ctx context.Context, since time.Time) ([]domain.AppUsage, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT app, category, SUM(ended_at - started_at) / 1000, SUM(earned), SUM(spent)
		FROM activities
		WHERE started_at >= ?
		GROUP BY app, category
		ORDER BY 3 DESC, app ASC`, since.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to query usage: %w", err)
	}
	defer rows.Close()

	var out []domain.AppUsage
	for rows.Next() {
		var u domain.AppUsage
		var category string
		if err := rows.Scan(&u.App, &category, &u.Seconds, &u.Earned, &u.Spent); err != nil {
			return nil, err
		}
		u.Category = domain.Category(category)
		out = append(out, u)
	}
	return out, rows.Err()
}

// Close releases the database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

var _ domain.ActivityJournal = (*Journal)(nil)
