package protocol

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/nerrad567/classroom-core/internal/room"
)

// SensorData is the sensor section of a status payload.
// Person is "true" or "false" as a string, which is what the aggregator expects.
type SensorData struct {
	Temp     float64 `json:"temp"`
	Humidity float64 `json:"humidity"`
	Lux      float64 `json:"lux"`
	Person   string  `json:"person"`
}

// StatusPayload is the JSON body of a status push.
type StatusPayload struct {
	Time       room.Clock  `json:"time"`
	DeviceID   string      `json:"device_id"`
	SensorData SensorData  `json:"sensor_data"`
	State      DeviceState `json:"state"`
}

// NewStatusPayload builds the status body for a snapshot.
func NewStatusPayload(deviceID string, snap room.Snapshot) StatusPayload {
	return StatusPayload{
		Time:     snap.Clock,
		DeviceID: deviceID,
		SensorData: SensorData{
			Temp:     snap.Readings.Temperature,
			Humidity: snap.Readings.Humidity,
			Lux:      roundTo(snap.Readings.Illumination, 2),
			Person:   strconv.FormatBool(snap.Readings.Occupied),
		},
		State: deviceState(ControlFromSnapshot(snap)),
	}
}

// EncodeStatus renders a snapshot as a compact JSON status payload.
func EncodeStatus(deviceID string, snap room.Snapshot) ([]byte, error) {
	return json.Marshal(NewStatusPayload(deviceID, snap))
}

// StatusLine renders a snapshot as a complete "UPDATE<json>\n" line.
func StatusLine(deviceID string, snap room.Snapshot) ([]byte, error) {
	payload, err := EncodeStatus(deviceID, snap)
	if err != nil {
		return nil, err
	}
	return Frame(StatusPrefix, payload), nil
}

func roundTo(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
