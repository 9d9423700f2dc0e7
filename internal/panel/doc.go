// Package panel serves the classroom wall panel, a single HTML page with
// its script and stylesheet embedded into the binary.
//
// The page reads the room from GET /api/v1/state, sends full control
// payloads with PUT /api/v1/state, toggles auto mode and listens on the
// WebSocket for change events. It is mounted by the api package under
// /panel/.
package panel
