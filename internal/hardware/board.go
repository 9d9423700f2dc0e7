package hardware

import (
	"context"

	"github.com/nerrad567/classroom-core/internal/room"
)

// Logger defines the logging interface used by the gateways.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Board is the gateway for the classroom board.
type Board struct {
	lights  *SysfsLights
	sensors *SensorFile
	logger  Logger
}

// NewBoard creates a board gateway.
//
// Parameters:
//   - ledPath: sysfs path format for the light channels
//   - sensorFile: path of the sampler's JSON document
//   - logger: Logger instance (may be nil)
func NewBoard(ledPath, sensorFile string, logger Logger) *Board {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Board{
		lights:  NewSysfsLights(ledPath),
		sensors: NewSensorFile(sensorFile),
		logger:  logger,
	}
}

// SetLight writes the light channel through sysfs.
func (b *Board) SetLight(ctx context.Context, index int, on bool) error {
	return b.lights.SetLight(ctx, index, on)
}

// SetAirConditioner is accepted without a hardware write.
func (b *Board) SetAirConditioner(_ context.Context, ac room.AirConditioner) error {
	b.logger.Debug("air conditioner has no driver on this board", "on", ac.On, "mode", ac.Mode, "level", ac.Level)
	return nil
}

// SetMultimedia is accepted without a hardware write.
func (b *Board) SetMultimedia(_ context.Context, mode room.MultimediaMode) error {
	b.logger.Debug("multimedia has no driver on this board", "mode", mode)
	return nil
}

// ReadSensors reads the sampler's document.
func (b *Board) ReadSensors(ctx context.Context) (room.Readings, error) {
	return b.sensors.ReadSensors(ctx)
}
