package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/classroom-core/internal/automation"
	"github.com/nerrad567/classroom-core/internal/hardware"
	"github.com/nerrad567/classroom-core/internal/history"
	"github.com/nerrad567/classroom-core/internal/infrastructure/config"
	"github.com/nerrad567/classroom-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/classroom-core/internal/infrastructure/logging"
	"github.com/nerrad567/classroom-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/classroom-core/internal/remote"
	"github.com/nerrad567/classroom-core/internal/room"
)

const testDeviceID = "classroom-node-01"

const validControlBody = `{"state":{"led":{"led1":1,"led2":0,"led3":1,"led4":0},"air_conditioner":{"state":"on","mode":"heat","level":3},"multimedia":"standby"}}`

type fakeHistory struct {
	entries []history.Entry
	err     error
	limit   int
}

func (f *fakeHistory) Recent(_ context.Context, _ string, limit int) ([]history.Entry, error) {
	f.limit = limit
	return f.entries, f.err
}

type fakeChannel struct{ stats remote.Stats }

func (f fakeChannel) Stats() remote.Stats { return f.stats }

type fakeMQTT struct{ status mqtt.Status }

func (f fakeMQTT) Status() mqtt.Status { return f.status }

type fakeTelemetry struct{ stats influxdb.Stats }

func (f fakeTelemetry) Stats() influxdb.Stats { return f.stats }

// testServer creates a Server around a simulated room.
func testServer(t *testing.T, mutate func(*Deps)) (*Server, *hardware.Simulator) {
	t.Helper()

	sim := hardware.NewSimulator(room.Readings{})
	ctrl := automation.NewController(room.New(), sim, sim, automation.Config{}, nil)
	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")

	deps := Deps{
		Config:     config.APIConfig{Host: "127.0.0.1", Port: 0},
		WS:         config.WebSocketConfig{MaxMessageSize: 4096, PingInterval: 30, PongTimeout: 10},
		Logger:     log,
		DeviceID:   testDeviceID,
		Controller: ctrl,
		Version:    "test",
	}
	if mutate != nil {
		mutate(&deps)
	}

	srv, err := New(deps)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return srv, sim
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
}

func TestNew_RequiredDeps(t *testing.T) {
	log := logging.Default()
	ctrl := automation.NewController(room.New(), hardware.NewSimulator(room.Readings{}), nil, automation.Config{}, nil)

	tests := []struct {
		name string
		deps Deps
	}{
		{"missing logger", Deps{Controller: ctrl, DeviceID: testDeviceID}},
		{"missing controller", Deps{Logger: log, DeviceID: testDeviceID}},
		{"missing device id", Deps{Logger: log, Controller: ctrl}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.deps); err == nil {
				t.Error("New() error = nil, want error")
			}
		})
	}
}

func TestHealth(t *testing.T) {
	srv, _ := testServer(t, func(d *Deps) { d.MQTT = fakeMQTT{} })

	rec := do(t, srv, http.MethodGet, "/api/v1/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		Status   string            `json:"status"`
		DeviceID string            `json:"device_id"`
		Checks   map[string]string `json:"checks"`
	}
	decode(t, rec, &body)
	if body.Status != "ok" || body.DeviceID != testDeviceID {
		t.Errorf("body = %+v", body)
	}
	if body.Checks["mqtt"] != "disconnected" {
		t.Errorf("mqtt check = %q, want disconnected", body.Checks["mqtt"])
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}
}

func TestGetState(t *testing.T) {
	srv, _ := testServer(t, nil)
	srv.controller.State().SetSensors(room.Readings{Temperature: 22.5, Humidity: 40, Illumination: 0.456, Occupied: true})

	rec := do(t, srv, http.MethodGet, "/api/v1/state", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		DeviceID   string `json:"device_id"`
		SensorData struct {
			Lux    float64 `json:"lux"`
			Person string  `json:"person"`
		} `json:"sensor_data"`
		State struct {
			Multimedia string `json:"multimedia"`
		} `json:"state"`
	}
	decode(t, rec, &body)
	if body.DeviceID != testDeviceID || body.SensorData.Person != "true" {
		t.Errorf("body = %+v", body)
	}
	if body.SensorData.Lux != 0.46 {
		t.Errorf("lux = %v, want 0.46", body.SensorData.Lux)
	}
	if body.State.Multimedia != "off" {
		t.Errorf("multimedia = %q, want off", body.State.Multimedia)
	}
}

func TestSetState(t *testing.T) {
	srv, sim := testServer(t, nil)

	rec := do(t, srv, http.MethodPut, "/api/v1/state", validControlBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	snap := srv.controller.State().Read()
	if snap.Lights != [room.LightCount]bool{true, false, true, false} {
		t.Errorf("lights = %v", snap.Lights)
	}
	want := room.AirConditioner{On: true, Mode: room.ACHeat, Level: 3}
	if snap.AirConditioner != want {
		t.Errorf("air conditioner = %+v, want %+v", snap.AirConditioner, want)
	}
	if snap.Multimedia != room.MultimediaStandby {
		t.Errorf("multimedia = %q, want standby", snap.Multimedia)
	}

	lights, ac, mode, _ := sim.Outputs()
	if lights != snap.Lights || ac != want || mode != room.MultimediaStandby {
		t.Errorf("hardware outputs = %v %+v %q, want them to match the room", lights, ac, mode)
	}

	var body struct {
		State struct {
			AirConditioner struct {
				State string `json:"state"`
				Level int    `json:"level"`
			} `json:"air_conditioner"`
		} `json:"state"`
	}
	decode(t, rec, &body)
	if body.State.AirConditioner.State != "on" || body.State.AirConditioner.Level != 3 {
		t.Errorf("response state = %+v", body.State)
	}
}

func TestSetState_Rejected(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"not json", `SET{}`, http.StatusBadRequest, ErrCodeBadRequest},
		{"missing section", `{"state":{"led":{"led1":1,"led2":0,"led3":0,"led4":0}}}`, http.StatusBadRequest, ErrCodeBadRequest},
		{"bad led value", strings.Replace(validControlBody, `"led1":1`, `"led1":2`, 1), http.StatusUnprocessableEntity, ErrCodeValidation},
		{"bad ac level", strings.Replace(validControlBody, `"level":3`, `"level":4`, 1), http.StatusUnprocessableEntity, ErrCodeValidation},
		{"bad multimedia", strings.Replace(validControlBody, `"standby"`, `"loud"`, 1), http.StatusUnprocessableEntity, ErrCodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, sim := testServer(t, nil)

			rec := do(t, srv, http.MethodPut, "/api/v1/state", tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			var apiErr Error
			decode(t, rec, &apiErr)
			if apiErr.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", apiErr.Code, tt.wantCode)
			}
			if apiErr.RequestID == "" || apiErr.RequestID != rec.Header().Get("X-Request-ID") {
				t.Errorf("request_id = %q, want header %q", apiErr.RequestID, rec.Header().Get("X-Request-ID"))
			}
			if _, _, _, writes := sim.Outputs(); writes != 0 {
				t.Errorf("hardware writes = %d, want none for a rejected command", writes)
			}
		})
	}
}

func TestToggleMode(t *testing.T) {
	srv, _ := testServer(t, nil)
	before := srv.controller.State().Read().AutoMode

	rec := do(t, srv, http.MethodPost, "/api/v1/mode/toggle", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]bool
	decode(t, rec, &body)
	if body["auto_mode"] == before {
		t.Errorf("auto_mode = %v, want %v", body["auto_mode"], !before)
	}
	if srv.controller.State().Read().AutoMode == before {
		t.Error("room auto mode not toggled")
	}
}

func TestHistory(t *testing.T) {
	hist := &fakeHistory{entries: []history.Entry{
		{ID: 2, DeviceID: testDeviceID, Clock: room.Clock{Year: 2025, Month: 1, Day: 1, Hour: 10}, Payload: json.RawMessage(`{}`)},
		{ID: 1, DeviceID: testDeviceID, Clock: room.Clock{Year: 2025, Month: 1, Day: 1, Hour: 9}, Payload: json.RawMessage(`{}`)},
	}}
	srv, _ := testServer(t, func(d *Deps) { d.History = hist })

	rec := do(t, srv, http.MethodGet, "/api/v1/history?limit=5", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if hist.limit != 5 {
		t.Errorf("limit passed = %d, want 5", hist.limit)
	}

	var body struct {
		Count   int             `json:"count"`
		Entries []history.Entry `json:"entries"`
	}
	decode(t, rec, &body)
	if body.Count != 2 || body.Entries[0].Clock.Hour != 10 {
		t.Errorf("body = %+v", body)
	}
}

func TestHistory_Errors(t *testing.T) {
	tests := []struct {
		name       string
		history    HistoryReader
		query      string
		wantStatus int
	}{
		{"not configured", nil, "", http.StatusServiceUnavailable},
		{"bad limit", &fakeHistory{}, "?limit=abc", http.StatusBadRequest},
		{"zero limit", &fakeHistory{}, "?limit=0", http.StatusBadRequest},
		{"repository failure", &fakeHistory{err: errors.New("locked")}, "", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := testServer(t, func(d *Deps) { d.History = tt.history })
			rec := do(t, srv, http.MethodGet, "/api/v1/history"+tt.query, "")
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestHistory_EmptyIsArray(t *testing.T) {
	srv, _ := testServer(t, func(d *Deps) { d.History = &fakeHistory{} })
	rec := do(t, srv, http.MethodGet, "/api/v1/history", "")
	if !strings.Contains(rec.Body.String(), `"entries":[]`) {
		t.Errorf("body = %s, want an empty entries array", rec.Body.String())
	}
}

func TestMetrics(t *testing.T) {
	srv, _ := testServer(t, func(d *Deps) {
		d.Channel = fakeChannel{stats: remote.Stats{Open: true, Sent: 7, Rejected: 1}}
		d.MQTT = fakeMQTT{status: mqtt.Status{Connected: true, Connects: 2, Subscriptions: []string{"setControl"}}}
		d.Telemetry = fakeTelemetry{stats: influxdb.Stats{Connected: true, Bucket: "classroom", Points: 12}}
	})
	srv.controller.State().SetSensors(room.Readings{Occupied: true})
	if err := srv.controller.SetLight(context.Background(), 0, true); err != nil {
		t.Fatalf("SetLight() error = %v", err)
	}

	rec := do(t, srv, http.MethodGet, "/api/v1/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var m SystemMetrics
	decode(t, rec, &m)
	if m.DeviceID != testDeviceID {
		t.Errorf("DeviceID = %q", m.DeviceID)
	}
	if m.Serial == nil || m.Serial.Sent != 7 || !m.Serial.Open {
		t.Errorf("Serial = %+v", m.Serial)
	}
	if m.MQTT == nil || m.MQTT.Connection == nil || !m.MQTT.Connection.Connected || m.MQTT.Connection.Connects != 2 {
		t.Errorf("MQTT = %+v", m.MQTT)
	}
	if m.MQTT != nil && m.MQTT.Bridge != nil {
		t.Errorf("MQTT.Bridge = %+v, want omitted without a bridge", m.MQTT.Bridge)
	}
	if m.Telemetry == nil || m.Telemetry.Points != 12 || m.Telemetry.Bucket != "classroom" {
		t.Errorf("Telemetry = %+v", m.Telemetry)
	}
	if m.Room.LightsOn != 1 || !m.Room.Occupied {
		t.Errorf("Room = %+v", m.Room)
	}
	if m.Room.PowerWatts != 100 {
		t.Errorf("PowerWatts = %v, want 100", m.Room.PowerWatts)
	}
	if len(m.Timers) != len(automation.AllTimerKinds()) {
		t.Errorf("Timers = %d, want %d", len(m.Timers), len(automation.AllTimerKinds()))
	}
	if m.Database != nil {
		t.Error("Database metrics reported without a database")
	}
}

func TestRouting(t *testing.T) {
	srv, _ := testServer(t, nil)

	if rec := do(t, srv, http.MethodGet, "/api/v1/nope", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown route status = %d, want 404", rec.Code)
	}
	if rec := do(t, srv, http.MethodDelete, "/api/v1/state", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("DELETE /state status = %d, want 405", rec.Code)
	}
}

func TestCORS(t *testing.T) {
	srv, _ := testServer(t, func(d *Deps) {
		d.Config.CORS.AllowedOrigins = []string{"http://panel.local"}
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/state", nil)
	req.Header.Set("Origin", "http://panel.local")
	rec := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "http://panel.local" {
		t.Error("allowed origin not echoed")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("disallowed origin was echoed")
	}
}

func TestRequestIDPropagated(t *testing.T) {
	srv, _ := testServer(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("X-Request-ID = %q, want abc-123", got)
	}
}

// =============================================================================
// WebSocket
// =============================================================================

func readWSMessage(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	//nolint:errcheck // test deadline
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("reading websocket message: %v", err)
	}
	return msg
}

func dialWS(t *testing.T, srv *Server) *websocket.Conn {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	go srv.hub.Run(ctx)
	unsubscribe := srv.subscribeRoomChanges()

	ts := httptest.NewServer(srv.buildRouter())
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	resp.Body.Close()

	t.Cleanup(func() {
		conn.Close()
		unsubscribe()
		cancel()
		ts.Close()
	})
	return conn
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("ClientCount() = %d, want %d", hub.ClientCount(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWebSocket_SnapshotThenChanges(t *testing.T) {
	srv, _ := testServer(t, nil)
	conn := dialWS(t, srv)

	first := readWSMessage(t, conn)
	if first.Type != WSTypeEvent || first.EventType != EventRoomSnapshot {
		t.Fatalf("first message = %+v, want room snapshot", first)
	}

	waitForClients(t, srv.hub, 1)
	if err := srv.controller.SetLight(context.Background(), 2, true); err != nil {
		t.Fatalf("SetLight() error = %v", err)
	}

	msg := readWSMessage(t, conn)
	if msg.EventType != EventRoomChanged {
		t.Fatalf("event = %q, want %q", msg.EventType, EventRoomChanged)
	}
	change, ok := msg.Payload.(map[string]any)
	if !ok {
		t.Fatalf("payload = %T, want object", msg.Payload)
	}
	if change["field"] != string(room.FieldLight) || change["channel"] != float64(2) || change["value"] != true {
		t.Errorf("change = %v", change)
	}
}

func TestWebSocket_UnsubscribeAndPing(t *testing.T) {
	srv, _ := testServer(t, nil)
	conn := dialWS(t, srv)
	readWSMessage(t, conn) // snapshot

	if err := conn.WriteJSON(WSMessage{
		Type:    WSTypeUnsubscribe,
		ID:      "u1",
		Payload: WSSubscribePayload{Channels: []string{EventRoomChanged}},
	}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	if resp := readWSMessage(t, conn); resp.Type != WSTypeResponse || resp.ID != "u1" {
		t.Fatalf("unsubscribe response = %+v", resp)
	}

	// Changes are no longer delivered; the next message is the pong.
	if err := srv.controller.SetLight(context.Background(), 1, true); err != nil {
		t.Fatalf("SetLight() error = %v", err)
	}
	if err := conn.WriteJSON(WSMessage{Type: WSTypePing, ID: "p1"}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	if resp := readWSMessage(t, conn); resp.Type != WSTypePong || resp.ID != "p1" {
		t.Errorf("message = %+v, want pong", resp)
	}
}

func TestWebSocket_UnknownType(t *testing.T) {
	srv, _ := testServer(t, nil)
	conn := dialWS(t, srv)
	readWSMessage(t, conn)

	if err := conn.WriteJSON(WSMessage{Type: "shout", ID: "x"}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	if resp := readWSMessage(t, conn); resp.Type != WSTypeError {
		t.Errorf("message = %+v, want error", resp)
	}
}

func TestStartAndClose(t *testing.T) {
	srv, _ := testServer(t, nil)
	if err := srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() before Start() error = nil")
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := srv.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
	if err := srv.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestPanelMounted(t *testing.T) {
	srv, _ := testServer(t, nil)

	if rec := do(t, srv, http.MethodGet, "/panel", ""); rec.Code != http.StatusMovedPermanently {
		t.Errorf("GET /panel status = %d, want 301", rec.Code)
	}
	rec := do(t, srv, http.MethodGet, "/panel/", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "<!DOCTYPE html>") {
		t.Errorf("GET /panel/ status = %d, want the panel page", rec.Code)
	}
}
