package room

import (
	"fmt"
	"sync"
	"time"
)

// State is the synchronized room record.
type State struct {
	// writeMu serialises writers so notifications are delivered in the
	// order the updates were applied.
	writeMu sync.Mutex

	mu   sync.RWMutex
	snap Snapshot

	observerMu     sync.RWMutex
	observers      []observerEntry
	nextObserverID int
}

type observerEntry struct {
	id int
	fn Observer
}

// New creates a State with safe defaults: sensors zeroed, lights off,
// air conditioner off in cool mode at level 1, multimedia off, manual mode
// and the default clock.
func New() *State {
	return &State{
		snap: Snapshot{
			AirConditioner: AirConditioner{On: false, Mode: ACCool, Level: MinACLevel},
			Multimedia:     MultimediaOff,
			Clock:          DefaultClock,
		},
	}
}

// Read returns a consistent copy of the record.
func (s *State) Read() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Subscribe registers an observer and returns a function that removes it.
func (s *State) Subscribe(fn Observer) (unsubscribe func()) {
	s.observerMu.Lock()
	id := s.nextObserverID
	s.nextObserverID++
	s.observers = append(s.observers, observerEntry{id: id, fn: fn})
	s.observerMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.observerMu.Lock()
			defer s.observerMu.Unlock()
			for i, e := range s.observers {
				if e.id == id {
					s.observers = append(s.observers[:i], s.observers[i+1:]...)
					return
				}
			}
		})
	}
}

// SetSensors stores a new set of readings.
func (s *State) SetSensors(r Readings) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	old := s.snap.Readings
	s.snap.Readings = r
	s.mu.Unlock()

	var changes []Change
	if old.Temperature != r.Temperature {
		changes = append(changes, Change{Field: FieldTemperature, Channel: -1, Value: r.Temperature})
	}
	if old.Humidity != r.Humidity {
		changes = append(changes, Change{Field: FieldHumidity, Channel: -1, Value: r.Humidity})
	}
	if old.Illumination != r.Illumination {
		changes = append(changes, Change{Field: FieldIllumination, Channel: -1, Value: r.Illumination})
	}
	if old.Occupied != r.Occupied {
		changes = append(changes, Change{Field: FieldOccupancy, Channel: -1, Value: r.Occupied})
	}
	s.notify(changes...)
}

// SetLight sets one light channel.
func (s *State) SetLight(index int, on bool) error {
	if index < 0 || index >= LightCount {
		return fmt.Errorf("%w: %d", ErrInvalidLight, index)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	changed := s.snap.Lights[index] != on
	s.snap.Lights[index] = on
	s.mu.Unlock()

	if changed {
		s.notify(Change{Field: FieldLight, Channel: index, Value: on})
	}
	return nil
}

// SetAirConditioner replaces the air-conditioner tuple.
// An invalid mode or level is rejected without touching the record.
func (s *State) SetAirConditioner(ac AirConditioner) error {
	if err := ac.Validate(); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	changed := s.snap.AirConditioner != ac
	s.snap.AirConditioner = ac
	s.mu.Unlock()

	if changed {
		s.notify(Change{Field: FieldAirConditioner, Channel: -1, Value: ac})
	}
	return nil
}

// SetMultimedia sets the multimedia mode.
// Anything other than off, on or standby is rejected.
func (s *State) SetMultimedia(mode MultimediaMode) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidMultimedia, mode)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	changed := s.snap.Multimedia != mode
	s.snap.Multimedia = mode
	s.mu.Unlock()

	if changed {
		s.notify(Change{Field: FieldMultimedia, Channel: -1, Value: mode})
	}
	return nil
}

// SetAutoMode sets the auto/manual flag.
func (s *State) SetAutoMode(auto bool) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	changed := s.snap.AutoMode != auto
	s.snap.AutoMode = auto
	s.mu.Unlock()

	if changed {
		s.notify(Change{Field: FieldAutoMode, Channel: -1, Value: auto})
	}
}

// ToggleAutoMode flips the auto/manual flag and returns the new value.
// The flip is atomic with respect to other writers.
func (s *State) ToggleAutoMode() bool {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	s.snap.AutoMode = !s.snap.AutoMode
	auto := s.snap.AutoMode
	s.mu.Unlock()

	s.notify(Change{Field: FieldAutoMode, Channel: -1, Value: auto})
	return auto
}

// SetClock sets the wall clock.
func (s *State) SetClock(c Clock) error {
	if err := c.Validate(); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	changed := s.snap.Clock != c
	s.snap.Clock = c
	s.mu.Unlock()

	if changed {
		s.notify(Change{Field: FieldClock, Channel: -1, Value: c})
	}
	return nil
}

// AdvanceClock moves the clock forward by step and returns the new value.
// The read-modify-write happens under one lock.
func (s *State) AdvanceClock(step time.Duration) Clock {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	old := s.snap.Clock
	s.snap.Clock = old.Advance(step)
	c := s.snap.Clock
	s.mu.Unlock()

	if c != old {
		s.notify(Change{Field: FieldClock, Channel: -1, Value: c})
	}
	return c
}

func (s *State) notify(changes ...Change) {
	if len(changes) == 0 {
		return
	}

	s.observerMu.RLock()
	observers := make([]Observer, len(s.observers))
	for i, e := range s.observers {
		observers[i] = e.fn
	}
	s.observerMu.RUnlock()

	for _, change := range changes {
		for _, fn := range observers {
			fn(change)
		}
	}
}
