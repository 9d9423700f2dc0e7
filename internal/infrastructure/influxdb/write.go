package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementSensors   = "classroom_sensors"
	MeasurementActuators = "classroom_actuators"
	MeasurementPower     = "classroom_power"
)

// SensorSample is one set of environment readings.
type SensorSample struct {
	Temperature  float64
	Humidity     float64
	Illumination float64
	Occupied     bool
}

// ActuatorSample is the actuator state at one instant.
type ActuatorSample struct {
	LightsOn   int
	ACOn       bool
	ACMode     string
	ACLevel    int
	Multimedia string
	AutoMode   bool
}

// WriteSensors records environment readings for a node.
func (c *Client) WriteSensors(deviceID string, s SensorSample, ts time.Time) {
	c.write(sensorPoint(deviceID, s, ts))
}

// WriteActuators records the actuator state for a node.
func (c *Client) WriteActuators(deviceID string, a ActuatorSample, ts time.Time) {
	c.write(actuatorPoint(deviceID, a, ts))
}

// WritePower records the estimated power draw in watts.
func (c *Client) WritePower(deviceID string, watts float64, ts time.Time) {
	c.write(powerPoint(deviceID, watts, ts))
}

func sensorPoint(deviceID string, s SensorSample, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementSensors,
		map[string]string{"device_id": deviceID},
		map[string]interface{}{
			"temperature":  s.Temperature,
			"humidity":     s.Humidity,
			"illumination": s.Illumination,
			"occupied":     s.Occupied,
		},
		ts,
	)
}

func actuatorPoint(deviceID string, a ActuatorSample, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementActuators,
		map[string]string{
			"device_id":  deviceID,
			"multimedia": a.Multimedia,
		},
		map[string]interface{}{
			"lights_on": a.LightsOn,
			"ac_on":     a.ACOn,
			"ac_mode":   a.ACMode,
			"ac_level":  a.ACLevel,
			"auto_mode": a.AutoMode,
		},
		ts,
	)
}

func powerPoint(deviceID string, watts float64, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementPower,
		map[string]string{"device_id": deviceID},
		map[string]interface{}{"watts": watts},
		ts,
	)
}
