package automation

import (
	"context"

	"github.com/nerrad567/classroom-core/internal/room"
)

// ActuatorGateway drives the room hardware.
//
// Implementations must return promptly; calls are made while the
// controller holds its lock.
type ActuatorGateway interface {
	// SetLight switches light channel index (0..3).
	SetLight(ctx context.Context, index int, on bool) error

	// SetAirConditioner applies the full air-conditioner tuple.
	SetAirConditioner(ctx context.Context, ac room.AirConditioner) error

	// SetMultimedia applies a multimedia power mode.
	SetMultimedia(ctx context.Context, mode room.MultimediaMode) error
}

// SensorGateway reads the ambient sensors.
type SensorGateway interface {
	ReadSensors(ctx context.Context) (room.Readings, error)
}

// Logger defines the logging interface used by the Controller and Scheduler.
// *logging.Logger satisfies it.
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
