// Package api implements the local panel HTTP API and WebSocket server.
//
// This package provides:
//   - REST endpoints to read the room, send a full control command and toggle auto mode
//   - Hourly status history and runtime metrics
//   - A WebSocket hub that relays every room change notification
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Architecture
//
// The API is a third control surface next to the serial link and the MQTT
// mirror. Control bodies use the same JSON shape as a SET line and go
// through the same validation and apply order, so a command behaves the
// same whichever surface it arrives on.
//
// # Routes
//
//	GET  /api/v1/health
//	GET  /api/v1/state          status payload as sent upstream
//	PUT  /api/v1/state          control payload
//	POST /api/v1/mode/toggle
//	GET  /api/v1/history?limit=
//	GET  /api/v1/metrics
//	GET  /ws                    change events
//	GET  /panel/                wall panel page
//
// There is no authentication; the server is expected to listen on the
// node's local interface only.
package api
