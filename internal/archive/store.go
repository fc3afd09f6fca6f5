// Package archive keeps a durable cross-run record of every consolidated
// incident in a local SQLite database, keyed by (date, case_number). The
// website JSON is regenerated each run; the archive is the one place that
// accumulates across date ranges.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"

	"github.com/joseph-ayodele/patrol-log/internal/entity"
)

const schema = `
CREATE TABLE IF NOT EXISTS incidents (
	date              TEXT NOT NULL,
	case_number       TEXT NOT NULL,
	time_minutes      INTEGER,
	offense_type      TEXT NOT NULL,
	offense_category  TEXT NOT NULL,
	location          TEXT NOT NULL,
	latitude          REAL NOT NULL,
	longitude         REAL NOT NULL,
	formatted_address TEXT NOT NULL,
	location_kind     TEXT,
	report_date       TEXT,
	updated_at        TEXT NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (date, case_number)
);
CREATE INDEX IF NOT EXISTS idx_incidents_category ON incidents (offense_category);
`

const upsertQuery = `
INSERT INTO incidents (
	date, case_number, time_minutes, offense_type, offense_category,
	location, latitude, longitude, formatted_address, location_kind, report_date
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (date, case_number) DO UPDATE SET
	time_minutes      = excluded.time_minutes,
	offense_type      = excluded.offense_type,
	offense_category  = excluded.offense_category,
	location          = excluded.location,
	latitude          = excluded.latitude,
	longitude         = excluded.longitude,
	formatted_address = excluded.formatted_address,
	location_kind     = excluded.location_kind,
	report_date       = excluded.report_date,
	updated_at        = datetime('now')`

type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the archive database at path and ensures the
// schema. Use ":memory:" in tests.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open archive db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init archive schema: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertRecords writes the consolidated dataset into the archive inside one
// transaction. Re-running the pipeline over the same dates overwrites rather
// than duplicates.
func (s *Store) UpsertRecords(ctx context.Context, records []entity.FinalRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin archive tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, upsertQuery)
	if err != nil {
		return fmt.Errorf("prepare archive upsert: %w", err)
	}
	defer func() {
		if err := stmt.Close(); err != nil {
			s.logger.Warn("archive.stmt_close_error", "error", err)
		}
	}()

	for _, r := range records {
		var minutes any
		if r.Time != nil {
			minutes = *r.Time
		}
		if _, err := stmt.ExecContext(ctx,
			r.Date, r.CaseNumber, minutes, r.OffenseType, r.OffenseCategory,
			r.Location, r.Latitude, r.Longitude, r.FormattedAddress, r.LocationKind, r.ReportDate,
		); err != nil {
			return fmt.Errorf("upsert incident %s/%s: %w", r.Date, r.CaseNumber, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit archive tx: %w", err)
	}

	s.logger.Info("archive.upsert.ok", "records", len(records))
	return nil
}

// Count returns the total number of archived incidents.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM incidents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count incidents: %w", err)
	}
	return n, nil
}

// CountByCategory returns archived incident counts per offense category.
func (s *Store) CountByCategory(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT offense_category, COUNT(*) FROM incidents GROUP BY offense_category`)
	if err != nil {
		return nil, fmt.Errorf("count by category: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			s.logger.Warn("archive.rows_close_error", "error", err)
		}
	}()

	out := make(map[string]int)
	for rows.Next() {
		var cat string
		var n int
		if err := rows.Scan(&cat, &n); err != nil {
			return nil, fmt.Errorf("scan category count: %w", err)
		}
		out[cat] = n
	}
	return out, rows.Err()
}
