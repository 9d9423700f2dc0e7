package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/classroom-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/classroom-core/internal/protocol"
	"github.com/nerrad567/classroom-core/internal/room"
)

// MetricsWriter is the subset of the InfluxDB client used for samples.
type MetricsWriter interface {
	WriteSensors(deviceID string, s influxdb.SensorSample, ts time.Time)
	WriteActuators(deviceID string, a influxdb.ActuatorSample, ts time.Time)
	WritePower(deviceID string, watts float64, ts time.Time)
}

// HistoryRecorder is the subset of the history repository used for
// checkpoints.
type HistoryRecorder interface {
	Record(ctx context.Context, deviceID string, clock room.Clock, payload []byte, powerWatts float64) (bool, error)
}

// Logger defines the logging interface used by the recorder.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Recorder sends room snapshots to the metrics and history sinks.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Recorder struct {
	deviceID string
	metrics  MetricsWriter
	history  HistoryRecorder
	now      func() time.Time
	logger   Logger

	mu       sync.Mutex
	lastHour room.Clock
}

// NewRecorder creates a recorder. Either sink may be nil.
func NewRecorder(deviceID string, metrics MetricsWriter, history HistoryRecorder, logger Logger) *Recorder {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Recorder{
		deviceID: deviceID,
		metrics:  metrics,
		history:  history,
		now:      time.Now,
		logger:   logger,
	}
}

// Sample writes one set of points for snap.
func (r *Recorder) Sample(snap room.Snapshot) {
	if r.metrics == nil {
		return
	}
	ts := r.now()

	r.metrics.WriteSensors(r.deviceID, influxdb.SensorSample{
		Temperature:  snap.Readings.Temperature,
		Humidity:     snap.Readings.Humidity,
		Illumination: snap.Readings.Illumination,
		Occupied:     snap.Readings.Occupied,
	}, ts)
	r.metrics.WriteActuators(r.deviceID, influxdb.ActuatorSample{
		LightsOn:   lightsOn(snap.Lights),
		ACOn:       snap.AirConditioner.On,
		ACMode:     string(snap.AirConditioner.Mode),
		ACLevel:    snap.AirConditioner.Level,
		Multimedia: string(snap.Multimedia),
		AutoMode:   snap.AutoMode,
	}, ts)
	r.metrics.WritePower(r.deviceID, protocol.EstimatePower(snap), ts)
}

// Checkpoint stores snap in the history when its clock is at minute zero.
// It reports whether a new row was written. Each hour is stored at most
// once per process; the repository also ignores hours it already holds.
func (r *Recorder) Checkpoint(ctx context.Context, snap room.Snapshot) (bool, error) {
	if r.history == nil || snap.Clock.Minute != 0 {
		return false, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if snap.Clock == r.lastHour {
		return false, nil
	}

	payload, err := protocol.EncodeStatus(r.deviceID, snap)
	if err != nil {
		return false, err
	}

	inserted, err := r.history.Record(ctx, r.deviceID, snap.Clock, payload, protocol.EstimatePower(snap))
	if err != nil {
		r.logger.Warn("recording status history failed", "clock", snap.Clock.String(), "error", err)
		return false, err
	}
	r.lastHour = snap.Clock
	if inserted {
		r.logger.Debug("status history recorded", "clock", snap.Clock.String())
	}
	return inserted, nil
}

func lightsOn(lights [room.LightCount]bool) int {
	n := 0
	for _, on := range lights {
		if on {
			n++
		}
	}
	return n
}
