package clock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/classroom-core/internal/room"
)

// Store persists the clock.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Load returns the stored clock, or ErrNotFound.
	Load(ctx context.Context) (room.Clock, error)

	// Save replaces the stored clock.
	Save(ctx context.Context, c room.Clock) error
}

// SQLiteStore keeps the clock in the single-row clock_state table.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a store on an open, migrated database.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Load returns the stored clock.
func (s *SQLiteStore) Load(ctx context.Context) (room.Clock, error) {
	var c room.Clock
	err := s.db.QueryRowContext(ctx,
		"SELECT year, month, day, hour, minute FROM clock_state WHERE id = 1",
	).Scan(&c.Year, &c.Month, &c.Day, &c.Hour, &c.Minute)
	if errors.Is(err, sql.ErrNoRows) {
		return room.Clock{}, ErrNotFound
	}
	if err != nil {
		return room.Clock{}, fmt.Errorf("loading clock: %w", err)
	}
	if err := c.Validate(); err != nil {
		return room.Clock{}, fmt.Errorf("loading clock: %w", err)
	}
	return c, nil
}

// Save upserts the clock row.
func (s *SQLiteStore) Save(ctx context.Context, c room.Clock) error {
	if err := c.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO clock_state (id, year, month, day, hour, minute, updated_at)
		 VALUES (1, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		     year = excluded.year,
		     month = excluded.month,
		     day = excluded.day,
		     hour = excluded.hour,
		     minute = excluded.minute,
		     updated_at = excluded.updated_at`,
		c.Year, c.Month, c.Day, c.Hour, c.Minute,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving clock: %w", err)
	}
	return nil
}
