// Package room holds the shared environment record for a single room.
//
// State is the one mutable record of sensor readings, actuator states, the
// auto/manual flag and the simulated wall clock. It is constructed once at
// startup and passed by pointer to the tick scheduler, the remote sync
// listener and the API.
//
// Every setter compares old and new values field by field and notifies the
// registered observers once per field that actually changed. Repeating a
// write with the same value produces no notification.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Read returns a copy taken under the lock; callers never see a
//     partially applied update.
//   - Observers run on the writer's goroutine after the record lock is
//     released, in the order updates were applied. They may call Read but
//     must not write to the State or block.
package room
