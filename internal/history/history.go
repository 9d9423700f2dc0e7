package history

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nerrad567/classroom-core/internal/room"
)

// clockLayout formats the room clock for storage; it sorts lexically.
const clockLayout = "2006-01-02T15:04"

// Entry is one stored status snapshot.
type Entry struct {
	// ID is the auto-incremented primary key.
	ID int64 `json:"id"`

	// DeviceID identifies the node that produced the snapshot.
	DeviceID string `json:"device_id"`

	// Clock is the room clock at capture time.
	Clock room.Clock `json:"clock"`

	// Payload is the status payload exactly as it would be sent.
	Payload json.RawMessage `json:"payload"`

	// PowerWatts is the estimated power draw at capture time.
	PowerWatts float64 `json:"power_watts"`

	// RecordedAt is the host time of the insert (UTC).
	RecordedAt time.Time `json:"recorded_at"`
}

// Repository stores and retrieves status history.
//
// Implementations must be thread-safe and use UTC timestamps.
type Repository interface {
	// Record stores a snapshot. It reports false when a snapshot for the
	// same device and clock already exists.
	Record(ctx context.Context, deviceID string, clock room.Clock, payload []byte, powerWatts float64) (bool, error)

	// Recent returns the newest snapshots for a device by room clock.
	Recent(ctx context.Context, deviceID string, limit int) ([]Entry, error)
}
