package remote

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/nerrad567/classroom-core/internal/protocol"
	"github.com/nerrad567/classroom-core/internal/room"
)

// Controls is the subset of the automation controller that remote commands
// drive.
type Controls interface {
	SetLight(ctx context.Context, index int, on bool) error
	SetAirConditioner(ctx context.Context, ac room.AirConditioner) error
	SetMultimedia(ctx context.Context, mode room.MultimediaMode) error
}

// Apply executes a decoded command against controls: lights 0..3, then the
// air conditioner, then multimedia. A failing step does not stop the
// remaining ones; all failures are returned joined.
func Apply(ctx context.Context, controls Controls, cmd protocol.Control, logger Logger) error {
	if logger == nil {
		logger = noopLogger{}
	}
	commandID := uuid.NewString()

	var errs []error
	for i, on := range cmd.Lights {
		if err := controls.SetLight(ctx, i, on); err != nil {
			errs = append(errs, fmt.Errorf("light %d: %w", i, err))
		}
	}
	if err := controls.SetAirConditioner(ctx, cmd.AirConditioner); err != nil {
		errs = append(errs, fmt.Errorf("air conditioner: %w", err))
	}
	if err := controls.SetMultimedia(ctx, cmd.Multimedia); err != nil {
		errs = append(errs, fmt.Errorf("multimedia: %w", err))
	}

	err := errors.Join(errs...)
	if err != nil {
		logger.Warn("remote command partially applied", "command_id", commandID, "error", err)
		return err
	}
	logger.Debug("remote command applied",
		"command_id", commandID,
		"lights", cmd.Lights,
		"ac_on", cmd.AirConditioner.On,
		"ac_mode", cmd.AirConditioner.Mode,
		"ac_level", cmd.AirConditioner.Level,
		"multimedia", cmd.Multimedia,
	)
	return nil
}

// Logger defines the logging interface used by the remote package.
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
