package room

import (
	"fmt"
	"time"
)

// LightCount is the fixed number of light channels. Valid indices are 0..3.
const LightCount = 4

// Air-conditioner level bounds.
const (
	MinACLevel = 1
	MaxACLevel = 3
)

// MultimediaMode is the power state of the multimedia subsystem.
type MultimediaMode string

// MultimediaMode constants.
const (
	MultimediaOff     MultimediaMode = "off"
	MultimediaOn      MultimediaMode = "on"
	MultimediaStandby MultimediaMode = "standby"
)

// Valid reports whether m is one of the three known modes.
func (m MultimediaMode) Valid() bool {
	switch m {
	case MultimediaOff, MultimediaOn, MultimediaStandby:
		return true
	}
	return false
}

// ParseMultimediaMode converts a wire value to a MultimediaMode.
func ParseMultimediaMode(s string) (MultimediaMode, error) {
	m := MultimediaMode(s)
	if !m.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidMultimedia, s)
	}
	return m, nil
}

// ACMode is the air-conditioner operating mode.
type ACMode string

// ACMode constants.
const (
	ACCool ACMode = "cool"
	ACHeat ACMode = "heat"
)

// Valid reports whether m is cool or heat.
func (m ACMode) Valid() bool {
	return m == ACCool || m == ACHeat
}

// ParseACMode converts a wire value to an ACMode.
func ParseACMode(s string) (ACMode, error) {
	m := ACMode(s)
	if !m.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidACMode, s)
	}
	return m, nil
}

// AirConditioner is the full air-conditioner tuple.
type AirConditioner struct {
	On    bool   `json:"on"`
	Mode  ACMode `json:"mode"`
	Level int    `json:"level"`
}

// Validate checks mode and level. On/off is always valid.
func (ac AirConditioner) Validate() error {
	if !ac.Mode.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidACMode, ac.Mode)
	}
	if ac.Level < MinACLevel || ac.Level > MaxACLevel {
		return fmt.Errorf("%w: %d", ErrInvalidLevel, ac.Level)
	}
	return nil
}

// Readings are the ambient sensor values.
type Readings struct {
	// Temperature in degrees Celsius.
	Temperature float64 `json:"temperature"`

	// Humidity in percent.
	Humidity float64 `json:"humidity"`

	// Illumination as reported by the light sensor.
	Illumination float64 `json:"illumination"`

	Occupied bool `json:"occupied"`
}

// Clock is the room's wall clock at minute resolution.
type Clock struct {
	Year   int `json:"year"`
	Month  int `json:"month"`
	Day    int `json:"day"`
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// DefaultClock is used when no persisted clock exists.
var DefaultClock = Clock{Year: 2025, Month: 1, Day: 1, Hour: 8, Minute: 30}

// ClockFromTime truncates t to a Clock.
func ClockFromTime(t time.Time) Clock {
	return Clock{
		Year:   t.Year(),
		Month:  int(t.Month()),
		Day:    t.Day(),
		Hour:   t.Hour(),
		Minute: t.Minute(),
	}
}

// Time returns the clock as a UTC time.Time.
func (c Clock) Time() time.Time {
	return time.Date(c.Year, time.Month(c.Month), c.Day, c.Hour, c.Minute, 0, 0, time.UTC)
}

// Advance returns the clock moved forward by d, rolling minutes into hours,
// hours into days and so on through the calendar.
func (c Clock) Advance(d time.Duration) Clock {
	return ClockFromTime(c.Time().Add(d))
}

// Validate rejects values that time.Date would silently normalise.
func (c Clock) Validate() error {
	if c.Year < 1 || c.Month < 1 || c.Month > 12 || c.Day < 1 ||
		c.Hour < 0 || c.Hour > 23 || c.Minute < 0 || c.Minute > 59 {
		return fmt.Errorf("%w: %s", ErrInvalidClock, c)
	}
	if ClockFromTime(c.Time()) != c {
		return fmt.Errorf("%w: %s", ErrInvalidClock, c)
	}
	return nil
}

// String formats the clock as YYYY-MM-DD HH:MM.
func (c Clock) String() string {
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d", c.Year, c.Month, c.Day, c.Hour, c.Minute)
}

// Snapshot is an immutable copy of the whole room record.
type Snapshot struct {
	Readings       Readings         `json:"readings"`
	Lights         [LightCount]bool `json:"lights"`
	AirConditioner AirConditioner   `json:"air_conditioner"`
	Multimedia     MultimediaMode   `json:"multimedia"`
	AutoMode       bool             `json:"auto_mode"`
	Clock          Clock            `json:"clock"`
}

// Field names a notifiable part of the record.
type Field string

// Field constants.
const (
	FieldTemperature    Field = "temperature"
	FieldHumidity       Field = "humidity"
	FieldIllumination   Field = "illumination"
	FieldOccupancy      Field = "occupancy"
	FieldLight          Field = "light"
	FieldAirConditioner Field = "air_conditioner"
	FieldMultimedia     Field = "multimedia"
	FieldAutoMode       Field = "auto_mode"
	FieldClock          Field = "clock"
)

// Change describes a single field that took a new value.
type Change struct {
	Field Field `json:"field"`

	// Channel is the light index for FieldLight and -1 otherwise.
	Channel int `json:"channel"`

	// Value is the new value: float64, bool, AirConditioner, MultimediaMode or Clock.
	Value any `json:"value"`
}

// Observer receives change notifications.
type Observer func(Change)
