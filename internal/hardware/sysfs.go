package hardware

import (
	"context"
	"fmt"
	"os"

	"github.com/nerrad567/classroom-core/internal/room"
)

// DefaultLEDPath is the x210 board's LED class path. %d is the 1-based channel.
const DefaultLEDPath = "/sys/devices/platform/x210-led/led%d"

// SysfsLights writes light channels to sysfs attribute files.
type SysfsLights struct {
	// pathFormat receives the 1-based channel number.
	pathFormat string
}

// NewSysfsLights creates a writer for pathFormat, e.g. DefaultLEDPath.
func NewSysfsLights(pathFormat string) *SysfsLights {
	if pathFormat == "" {
		pathFormat = DefaultLEDPath
	}
	return &SysfsLights{pathFormat: pathFormat}
}

// Path returns the attribute file for a 0-based channel index.
func (s *SysfsLights) Path(index int) string {
	return fmt.Sprintf(s.pathFormat, index+1)
}

// SetLight writes "1" or "0" to the channel's attribute file.
// The file must already exist; sysfs attributes are never created.
func (s *SysfsLights) SetLight(ctx context.Context, index int, on bool) error {
	if index < 0 || index >= room.LightCount {
		return fmt.Errorf("%w: %d", ErrInvalidChannel, index)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	path := s.Path(index)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}

	value := "0"
	if on {
		value = "1"
	}
	if _, err := f.WriteString(value); err != nil {
		f.Close() //nolint:errcheck // Already failing
		return fmt.Errorf("%w: %s: %w", ErrWrite, path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWrite, path, err)
	}
	return nil
}
