// Package history stores hourly status snapshots in SQLite.
//
// A snapshot is recorded each time the room clock reaches the top of an
// hour. Rows are keyed by (device_id, clock_time), so a repeated hour (for
// example after a restart restores an earlier clock) is stored once.
package history
