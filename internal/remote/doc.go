// Package remote synchronises the room with the aggregator over a
// point-to-point serial link, and optionally mirrors the same traffic over
// MQTT.
//
// One physical link carries both directions. Each message is a single line
// terminated by '\n'; the prefix tells them apart:
//
//	aggregator -> room   SET{"state":{...}}
//	room -> aggregator   UPDATE{"time":{...},"device_id":...,"sensor_data":{...},"state":{...}}
//
// # Channel
//
// Channel owns the link. Run keeps it open (reopening after ReopenDelay when
// the device is missing or a write fails), transmits queued status lines in
// FIFO order and reads inbound bytes with a bounded wait. Completed lines
// are validated and applied to the controller: lights 0..3, then the air
// conditioner, then multimedia. Invalid lines are dropped without a reply.
//
// Delivery is at-most-once. A failed write or a missing acknowledgement
// loses the entry; nothing is retransmitted.
//
// # Thread Safety
//
// Run must be called from a single goroutine. EnqueueStatus and Stats may
// be called from any goroutine.
package remote
