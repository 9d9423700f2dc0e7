package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/classroom-core/internal/automation"
	"github.com/nerrad567/classroom-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/classroom-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/classroom-core/internal/protocol"
	"github.com/nerrad567/classroom-core/internal/remote"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string                   `json:"timestamp"`
	Version       string                   `json:"version"`
	DeviceID      string                   `json:"device_id"`
	UptimeSeconds int64                    `json:"uptime_seconds"`
	Runtime       RuntimeMetrics           `json:"runtime"`
	WebSocket     WSMetrics                `json:"websocket"`
	Room          RoomMetrics              `json:"room"`
	Serial        *remote.Stats            `json:"serial,omitempty"`
	MQTT          *MQTTMetrics             `json:"mqtt,omitempty"`
	Telemetry     *influxdb.Stats          `json:"telemetry,omitempty"`
	Database      *DatabaseMetrics         `json:"database,omitempty"`
	Timers        []automation.TimerStatus `json:"timers"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// RoomMetrics summarises the room record.
type RoomMetrics struct {
	AutoMode   bool    `json:"auto_mode"`
	Occupied   bool    `json:"occupied"`
	LightsOn   int     `json:"lights_on"`
	PowerWatts float64 `json:"power_watts"`
	Clock      string  `json:"clock"`
}

// MQTTMetrics contains MQTT client and bridge statistics.
type MQTTMetrics struct {
	Connection *mqtt.Status        `json:"connection,omitempty"`
	Bridge     *remote.BridgeStats `json:"bridge,omitempty"`
}

// DatabaseMetrics contains database connection pool statistics.
type DatabaseMetrics struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

// handleMetrics returns comprehensive system metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	snap := s.controller.State().Read()
	lightsOn := 0
	for _, on := range snap.Lights {
		if on {
			lightsOn++
		}
	}

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		DeviceID:      s.deviceID,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		WebSocket: WSMetrics{
			ConnectedClients: s.hub.ClientCount(),
		},
		Room: RoomMetrics{
			AutoMode:   snap.AutoMode,
			Occupied:   snap.Readings.Occupied,
			LightsOn:   lightsOn,
			PowerWatts: protocol.EstimatePower(snap),
			Clock:      snap.Clock.String(),
		},
		Timers: s.controller.Timers(),
	}

	if s.channel != nil {
		stats := s.channel.Stats()
		metrics.Serial = &stats
	}

	if s.mqtt != nil || s.bridge != nil {
		metrics.MQTT = &MQTTMetrics{}
		if s.mqtt != nil {
			st := s.mqtt.Status()
			metrics.MQTT.Connection = &st
		}
		if s.bridge != nil {
			st := s.bridge.Stats()
			metrics.MQTT.Bridge = &st
		}
	}

	if s.telemetry != nil {
		st := s.telemetry.Stats()
		metrics.Telemetry = &st
	}

	if s.db != nil {
		dbStats := s.db.Stats()
		metrics.Database = &DatabaseMetrics{
			OpenConnections: dbStats.OpenConnections,
			InUse:           dbStats.InUse,
			Idle:            dbStats.Idle,
			WaitCount:       dbStats.WaitCount,
		}
	}

	writeJSON(w, http.StatusOK, metrics)
}
