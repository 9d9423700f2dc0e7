// Package telemetry records what the room is doing.
//
// Sample writes sensor readings, actuator state and the power estimate to
// InfluxDB on the host clock. Checkpoint stores the full status payload in
// the local history whenever the room clock is at the top of an hour.
// Either sink may be absent.
package telemetry
