// Package persist keeps an optional durable snapshot of the feedback store.
// Without a DSN the dashboard runs purely in memory.
package persist

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/valentinpelus/voiceboard/pkg/types"
)

// Snapshotter loads and saves the whole record sequence.
type Snapshotter interface {
	Load(ctx context.Context) ([]types.Feedback, error)
	Save(ctx context.Context, records []types.Feedback) error
	Close() error
}

// Open picks a backend from the DSN: postgres:// or postgresql:// URLs use
// PostgreSQL, anything else is treated as a SQLite file path.
func Open(ctx context.Context, dsn string) (Snapshotter, error) {
	switch {
	case dsn == "":
		return nil, fmt.Errorf("empty store DSN")
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return OpenPostgres(ctx, dsn)
	default:
		return OpenSQLite(ctx, strings.TrimPrefix(dsn, "sqlite://"))
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS feedbacks (
	position INTEGER PRIMARY KEY,
	id       TEXT NOT NULL,
	type     TEXT NOT NULL,
	content  TEXT NOT NULL,
	date     TEXT NOT NULL,
	product  TEXT NOT NULL,
	status   TEXT NOT NULL,
	priority TEXT NOT NULL
)`

// sqlStore implements Snapshotter over database/sql. Rows are keyed by
// position because ids are not guaranteed unique.
type sqlStore struct {
	db          *sql.DB
	placeholder func(n int) string
}

func (s *sqlStore) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Load returns the records in store order
func (s *sqlStore) Load(ctx context.Context) ([]types.Feedback, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, type, content, date, product, status, priority FROM feedbacks ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query feedbacks: %w", err)
	}
	defer rows.Close()

	records := []types.Feedback{}
	for rows.Next() {
		var f types.Feedback
		var status, priority string
		if err := rows.Scan(&f.ID, &f.Type, &f.Content, &f.Date, &f.Product, &status, &priority); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		f.Status = types.Status(status)
		f.Priority = types.Priority(priority)
		records = append(records, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read feedbacks: %w", err)
	}
	return records, nil
}

// Save replaces the stored snapshot in one transaction
func (s *sqlStore) Save(ctx context.Context, records []types.Feedback) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM feedbacks`); err != nil {
		return fmt.Errorf("failed to clear feedbacks: %w", err)
	}

	query := fmt.Sprintf(
		`INSERT INTO feedbacks (position, id, type, content, date, product, status, priority) VALUES (%s, %s, %s, %s, %s, %s, %s, %s)`,
		s.placeholder(1), s.placeholder(2), s.placeholder(3), s.placeholder(4),
		s.placeholder(5), s.placeholder(6), s.placeholder(7), s.placeholder(8),
	)
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, f := range records {
		if _, err := stmt.ExecContext(ctx, i, f.ID, f.Type, f.Content, f.Date, f.Product, string(f.Status), string(f.Priority)); err != nil {
			return fmt.Errorf("failed to insert feedback %q: %w", f.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *sqlStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
