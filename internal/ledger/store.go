// Package ledger persists one dated entry per prediction run so forecasts can
// later be scored against what the district actually did.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// ErrNotFound means no entry exists for the requested date.
var ErrNotFound = errors.New("ledger entry not found")

// Entry is one prediction run's row. ActualOutcome stays nil until someone
// records whether school actually closed.
type Entry struct {
	ID              string    `json:"id"`
	Date            string    `json:"date"` // YYYY-MM-DD
	Location        string    `json:"location"`
	Probability     float64   `json:"probability"`
	ConfidenceLevel string    `json:"confidence_level"`
	ExitReason      string    `json:"exit_reason,omitempty"`
	ActualOutcome   *bool     `json:"actual_outcome,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Store manages ledger persistence over a local sqlite file.
type Store struct {
	db  *sql.DB
	log *logrus.Logger
}

// Open opens (creating if needed) the sqlite ledger at path.
func Open(path string, log *logrus.Logger) (*Store, error) {
	if log == nil {
		log = logrus.New()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger database: %w", err)
	}
	// The ledger sees one writer at a time; a second connection would only
	// trade SQLITE_BUSY errors back and forth.
	db.SetMaxOpenConns(1)

	return &Store{db: db, log: log}, nil
}

// CreateTable creates the predictions table if it doesn't exist.
func (s *Store) CreateTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS predictions (
			id TEXT PRIMARY KEY,
			date TEXT NOT NULL,
			location TEXT NOT NULL,
			probability REAL NOT NULL,
			confidence_level TEXT NOT NULL,
			exit_reason TEXT,
			actual_outcome INTEGER,
			created_at TIMESTAMP NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_predictions_date ON predictions(date);
		CREATE INDEX IF NOT EXISTS idx_predictions_created_at ON predictions(created_at);
	`

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create predictions table: %w", err)
	}

	s.log.Debug("Predictions table created/verified")
	return nil
}

// Append inserts a new entry, stamping its ID and creation time.
func (s *Store) Append(ctx context.Context, entry *Entry) error {
	if entry.Date == "" {
		return fmt.Errorf("ledger entry requires a date")
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO predictions (
			id, date, location, probability, confidence_level,
			exit_reason, actual_outcome, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		entry.ID, entry.Date, entry.Location, entry.Probability, entry.ConfidenceLevel,
		nullString(entry.ExitReason), nullBool(entry.ActualOutcome), entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert ledger entry: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"id":          entry.ID,
		"date":        entry.Date,
		"probability": entry.Probability,
	}).Debug("Ledger entry appended")

	return nil
}

// RecordOutcome marks whether school actually closed on the given date. Every
// run predicted for that date is scored against the same fact.
func (s *Store) RecordOutcome(ctx context.Context, date string, closed bool) error {
	query := `
		UPDATE predictions
		SET actual_outcome = ?
		WHERE date = ?
	`

	result, err := s.db.ExecContext(ctx, query, closed, date)
	if err != nil {
		return fmt.Errorf("failed to record outcome: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read outcome update count: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("no predictions for %s: %w", date, ErrNotFound)
	}

	s.log.WithFields(logrus.Fields{
		"date":    date,
		"closed":  closed,
		"entries": affected,
	}).Debug("Ledger outcome recorded")

	return nil
}

// GetByDate retrieves the most recent entry for a date.
func (s *Store) GetByDate(ctx context.Context, date string) (*Entry, error) {
	query := `
		SELECT id, date, location, probability, confidence_level,
		       exit_reason, actual_outcome, created_at
		FROM predictions
		WHERE date = ?
		ORDER BY created_at DESC
		LIMIT 1
	`

	entry, err := scanRow(s.db.QueryRowContext(ctx, query, date))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("no prediction for %s: %w", date, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// ListRecent retrieves the latest entries, newest first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, date, location, probability, confidence_level,
		       exit_reason, actual_outcome, created_at
		FROM predictions
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent ledger entries: %w", err)
	}
	defer rows.Close()

	return scanRows(rows)
}

// Ping verifies the ledger database is still reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// scanRow scans a single row into an Entry.
func scanRow(row *sql.Row) (*Entry, error) {
	var entry Entry
	var exitReason sql.NullString
	var actualOutcome sql.NullBool

	err := row.Scan(
		&entry.ID, &entry.Date, &entry.Location, &entry.Probability, &entry.ConfidenceLevel,
		&exitReason, &actualOutcome, &entry.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan ledger row: %w", err)
	}

	applyNullables(&entry, exitReason, actualOutcome)
	return &entry, nil
}

// scanRows scans all rows into an Entry slice.
func scanRows(rows *sql.Rows) ([]*Entry, error) {
	var entries []*Entry

	for rows.Next() {
		var entry Entry
		var exitReason sql.NullString
		var actualOutcome sql.NullBool

		err := rows.Scan(
			&entry.ID, &entry.Date, &entry.Location, &entry.Probability, &entry.ConfidenceLevel,
			&exitReason, &actualOutcome, &entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger row: %w", err)
		}

		applyNullables(&entry, exitReason, actualOutcome)
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger rows: %w", err)
	}

	return entries, nil
}

func applyNullables(entry *Entry, exitReason sql.NullString, actualOutcome sql.NullBool) {
	if exitReason.Valid {
		entry.ExitReason = exitReason.String
	}
	if actualOutcome.Valid {
		v := actualOutcome.Bool
		entry.ActualOutcome = &v
	}
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullBool(b *bool) any {
	if b == nil {
		return nil
	}
	return *b
}
