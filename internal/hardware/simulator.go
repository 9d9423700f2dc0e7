package hardware

import (
	"context"
	"fmt"
	"sync"

	"github.com/nerrad567/classroom-core/internal/room"
)

// Simulator is an in-memory gateway. Sensor readings are whatever was last
// set with SetReadings; actuator writes are recorded and can be inspected.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Simulator struct {
	mu             sync.Mutex
	readings       room.Readings
	lights         [room.LightCount]bool
	airConditioner room.AirConditioner
	multimedia     room.MultimediaMode
	writes         int
}

// NewSimulator creates a simulator reporting initial readings.
func NewSimulator(initial room.Readings) *Simulator {
	return &Simulator{
		readings:       initial,
		airConditioner: room.AirConditioner{Mode: room.ACCool, Level: room.MinACLevel},
		multimedia:     room.MultimediaOff,
	}
}

// SetReadings replaces the simulated sensor values.
func (s *Simulator) SetReadings(r room.Readings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readings = r
}

// ReadSensors returns the simulated sensor values.
func (s *Simulator) ReadSensors(ctx context.Context) (room.Readings, error) {
	if err := ctx.Err(); err != nil {
		return room.Readings{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readings, nil
}

// SetLight records a light write.
func (s *Simulator) SetLight(_ context.Context, index int, on bool) error {
	if index < 0 || index >= room.LightCount {
		return fmt.Errorf("%w: %d", ErrInvalidChannel, index)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lights[index] = on
	s.writes++
	return nil
}

// SetAirConditioner records an air-conditioner write.
func (s *Simulator) SetAirConditioner(_ context.Context, ac room.AirConditioner) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.airConditioner = ac
	s.writes++
	return nil
}

// SetMultimedia records a multimedia write.
func (s *Simulator) SetMultimedia(_ context.Context, mode room.MultimediaMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.multimedia = mode
	s.writes++
	return nil
}

// Outputs returns the last value written to each actuator and the total
// number of writes.
func (s *Simulator) Outputs() (lights [room.LightCount]bool, ac room.AirConditioner, mode room.MultimediaMode, writes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lights, s.airConditioner, s.multimedia, s.writes
}
