// Package clock keeps the room's simulated wall clock.
//
// The room runs on its own clock rather than the host's: every tick moves
// it forward by a fixed step (ten minutes per second by default) so a
// school day passes in about a minute and a half. The clock is persisted
// after every tick and restored at startup, falling back to
// room.DefaultClock when nothing has been stored yet.
package clock
