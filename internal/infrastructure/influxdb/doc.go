// Package influxdb provides InfluxDB connectivity for classroom telemetry.
//
// It wraps the official influxdb-client-go v2 library: connection
// management, batched non-blocking writes and health checks. Three
// measurements are written, all tagged with device_id:
//
//	classroom_sensors    temperature, humidity, illumination, occupied
//	classroom_actuators  lights_on, ac_on, ac_mode, ac_level, auto_mode (tag: multimedia)
//	classroom_power      watts
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // telemetry off
//	}
//	defer client.Close()
//
//	client.WritePower("classroom-node-01", 1250.5, time.Now())
//
// # Error Handling
//
// Writes are asynchronous; failed batches are counted in Stats and
// delivered, wrapped in ErrWriteFailed, to the SetOnError callback.
// Connection and health check errors are returned directly.
package influxdb
