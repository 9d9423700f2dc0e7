package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/classroom-core/internal/room"
)

const (
	defaultLimit = 24
	maxLimit     = 500
)

// SQLiteRepository implements Repository on the status_history table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository on an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Record inserts a snapshot unless one exists for the same device and clock.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - deviceID: Node identifier
//   - clock: Room clock at capture time
//   - payload: Encoded status payload, stored verbatim
//   - powerWatts: Estimated power draw
//
// Returns:
//   - bool: true if a row was inserted
//   - error: nil on success, otherwise the underlying database error
func (r *SQLiteRepository) Record(ctx context.Context, deviceID string, clock room.Clock, payload []byte, powerWatts float64) (bool, error) {
	if deviceID == "" {
		return false, fmt.Errorf("device id is required")
	}
	if !json.Valid(payload) {
		return false, fmt.Errorf("payload is not valid JSON")
	}

	result, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO status_history (device_id, clock_time, payload, power_watts, recorded_at)
		 VALUES (?, ?, ?, ?, ?)`,
		deviceID,
		clock.Time().Format(clockLayout),
		string(payload),
		powerWatts,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return false, fmt.Errorf("inserting status history: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking rows affected: %w", err)
	}
	return n == 1, nil
}

// Recent returns up to limit snapshots, newest room clock first.
// limit defaults to 24 and is capped at 500.
func (r *SQLiteRepository) Recent(ctx context.Context, deviceID string, limit int) ([]Entry, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("device id is required")
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, device_id, clock_time, payload, power_watts, recorded_at
		 FROM status_history
		 WHERE device_id = ?
		 ORDER BY clock_time DESC
		 LIMIT ?`,
		deviceID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying status history: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var (
			entry      Entry
			clockTime  string
			payload    string
			recordedAt string
		)
		if err := rows.Scan(&entry.ID, &entry.DeviceID, &clockTime, &payload, &entry.PowerWatts, &recordedAt); err != nil {
			return nil, fmt.Errorf("scanning status history: %w", err)
		}

		ct, err := time.Parse(clockLayout, clockTime)
		if err != nil {
			return nil, fmt.Errorf("parsing clock_time: %w", err)
		}
		entry.Clock = room.ClockFromTime(ct)

		if entry.RecordedAt, err = time.Parse(time.RFC3339, recordedAt); err != nil {
			return nil, fmt.Errorf("parsing recorded_at: %w", err)
		}
		entry.Payload = json.RawMessage(payload)

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating status history: %w", err)
	}
	return entries, nil
}

// Prune deletes snapshots recorded longer ago than olderThan (host time).
//
// Returns:
//   - int64: Number of rows deleted
//   - error: nil on success, otherwise the underlying database error
func (r *SQLiteRepository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	cutoff := time.Now().UTC().Add(-olderThan).Format(time.RFC3339)
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM status_history WHERE recorded_at < ?",
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting status history: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}
