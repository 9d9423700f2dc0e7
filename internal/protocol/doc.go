// Package protocol defines the line-oriented wire format shared with the
// room aggregator.
//
// One physical channel carries both directions. Every message is a single
// line terminated by '\n' and starts with a prefix naming its direction:
//
//	SET{"state":{"led":{...},"air_conditioner":{...},"multimedia":"on"}}     inbound control
//	UPDATE{"time":{...},"device_id":"...","sensor_data":{...},"state":{...}} outbound status
//
// Control payloads are decoded structurally. A payload missing any of the
// state, led, air_conditioner or multimedia sections is rejected with
// ErrMissingSection; out-of-range values are rejected with ErrInvalidValue.
// Callers drop rejected commands without replying to the sender.
//
// The same JSON bodies, without prefix and newline, are used on the MQTT
// mirror topics and the HTTP API.
package protocol
