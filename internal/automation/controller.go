package automation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/classroom-core/internal/room"
)

// Default deferred-transition delays.
const (
	DefaultSleepDelay = 5 * time.Second
	DefaultOffDelay   = 5 * time.Second
	DefaultACOffDelay = 5 * time.Second
)

// Config holds the controller's timing.
type Config struct {
	SleepDelay time.Duration
	OffDelay   time.Duration
	ACOffDelay time.Duration

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// Controller owns the automation state machine and its deferred timers.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - mu is held for the whole of each control operation, including the
//     gateway call, so check-then-act on state and timers is atomic.
type Controller struct {
	mu     sync.Mutex
	timers [timerKindCount]deferredTimer
	delays [timerKindCount]time.Duration

	state     *room.State
	actuators ActuatorGateway
	sensors   SensorGateway
	now       func() time.Time
	logger    Logger
}

// NewController creates a controller for state.
//
// Parameters:
//   - state: Shared room record
//   - actuators: Hardware gateway for lights, air conditioner and multimedia
//   - sensors: Sensor gateway polled by PollSensors (may be nil)
//   - cfg: Timer delays; zero values fall back to the defaults
//   - logger: Logger instance (may be nil)
func NewController(state *room.State, actuators ActuatorGateway, sensors SensorGateway, cfg Config, logger Logger) *Controller {
	if logger == nil {
		logger = noopLogger{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	c := &Controller{
		state:     state,
		actuators: actuators,
		sensors:   sensors,
		now:       cfg.Now,
		logger:    logger,
	}
	c.delays[TimerSleep] = orDefault(cfg.SleepDelay, DefaultSleepDelay)
	c.delays[TimerOff] = orDefault(cfg.OffDelay, DefaultOffDelay)
	c.delays[TimerACOff] = orDefault(cfg.ACOffDelay, DefaultACOffDelay)
	return c
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

// State returns the room record the controller drives.
func (c *Controller) State() *room.State {
	return c.state
}

// PollSensors reads the sensor gateway and stores the readings.
// On failure the previous readings are kept.
func (c *Controller) PollSensors(ctx context.Context) error {
	if c.sensors == nil {
		return nil
	}

	readings, err := c.sensors.ReadSensors(ctx)
	if err != nil {
		c.logger.Warn("sensor read failed", "error", err)
		return fmt.Errorf("%w: %w", ErrSensorRead, err)
	}

	c.state.SetSensors(readings)
	return nil
}

// Evaluate applies the occupancy/mode table once.
//
//   - manual: nothing happens
//   - auto, occupied: all pending timers are cancelled
//   - auto, empty: lights are forced off and shutdown timers are armed
//     for whatever is still running
func (c *Controller) Evaluate(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := c.state.Read()
	if !snap.AutoMode {
		return
	}

	if snap.Readings.Occupied {
		c.cancelAllLocked()
		return
	}

	for i := 0; i < room.LightCount; i++ {
		// Failures are logged inside; the next tick retries.
		_ = c.setLightLocked(ctx, i, false) //nolint:errcheck // Best effort
	}

	c.armForStateLocked(c.state.Read())
}

// RunDue fires every timer whose deadline has passed and returns the kinds
// that fired. Each timer re-checks its precondition at fire time.
func (c *Controller) RunDue(ctx context.Context) []TimerKind {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var fired []TimerKind

	for _, kind := range AllTimerKinds() {
		if !c.timers[kind].due(now) {
			continue
		}
		c.timers[kind].cancel()
		fired = append(fired, kind)
		c.fireLocked(ctx, kind)
	}
	return fired
}

func (c *Controller) fireLocked(ctx context.Context, kind TimerKind) {
	snap := c.state.Read()

	switch kind {
	case TimerSleep:
		if snap.Multimedia != room.MultimediaOn {
			c.logger.Debug("timer fired on stale state", "timer", kind.String(), "multimedia", snap.Multimedia)
			return
		}
		c.logger.Info("multimedia entering standby", "timer", kind.String())
		c.setMultimediaLocked(ctx, room.MultimediaStandby)

	case TimerOff:
		if snap.Multimedia != room.MultimediaStandby {
			c.logger.Debug("timer fired on stale state", "timer", kind.String(), "multimedia", snap.Multimedia)
			return
		}
		c.logger.Info("multimedia switching off", "timer", kind.String())
		c.setMultimediaLocked(ctx, room.MultimediaOff)

	case TimerACOff:
		if !snap.AirConditioner.On {
			c.logger.Debug("timer fired on stale state", "timer", kind.String())
			return
		}
		c.logger.Info("air conditioner switching off", "timer", kind.String())
		ac := snap.AirConditioner
		ac.On = false
		c.setAirConditionerLocked(ctx, ac)
	}
}

// SetLight switches one light through the gateway and records the new
// value on success. On gateway failure the state is left unchanged.
func (c *Controller) SetLight(ctx context.Context, index int, on bool) error {
	if index < 0 || index >= room.LightCount {
		return fmt.Errorf("%w: %d", room.ErrInvalidLight, index)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setLightLocked(ctx, index, on)
}

func (c *Controller) setLightLocked(ctx context.Context, index int, on bool) error {
	if err := c.actuators.SetLight(ctx, index, on); err != nil {
		c.logger.Warn("light write failed", "light", index, "on", on, "error", err)
		return fmt.Errorf("%w: light %d: %w", ErrGateway, index, err)
	}
	return c.state.SetLight(index, on)
}

// SetAirConditioner records the requested tuple, forwards it to the gateway
// and restarts the ac_off timer when the room is empty in auto mode.
// The state reflects the request even if the hardware write fails.
func (c *Controller) SetAirConditioner(ctx context.Context, ac room.AirConditioner) error {
	if err := ac.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.setAirConditionerLocked(ctx, ac)
	return nil
}

func (c *Controller) setAirConditionerLocked(ctx context.Context, ac room.AirConditioner) {
	if err := c.state.SetAirConditioner(ac); err != nil {
		c.logger.Warn("air conditioner rejected", "error", err)
		return
	}

	if err := c.actuators.SetAirConditioner(ctx, ac); err != nil {
		c.logger.Warn("air conditioner write failed", "on", ac.On, "mode", ac.Mode, "level", ac.Level, "error", err)
	}

	c.cancelLocked(TimerACOff)

	snap := c.state.Read()
	if ac.On && snap.AutoMode && !snap.Readings.Occupied {
		c.armLocked(TimerACOff)
	}
}

// SetMultimedia records the requested mode, forwards it to the gateway and
// restarts the next shutdown stage when the room is empty in auto mode.
// Unknown modes are rejected and the previous mode is kept.
func (c *Controller) SetMultimedia(ctx context.Context, mode room.MultimediaMode) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: %q", room.ErrInvalidMultimedia, mode)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.setMultimediaLocked(ctx, mode)
	return nil
}

func (c *Controller) setMultimediaLocked(ctx context.Context, mode room.MultimediaMode) {
	if err := c.state.SetMultimedia(mode); err != nil {
		c.logger.Warn("multimedia rejected", "error", err)
		return
	}

	if err := c.actuators.SetMultimedia(ctx, mode); err != nil {
		c.logger.Warn("multimedia write failed", "mode", mode, "error", err)
	}

	c.cancelLocked(TimerSleep)
	c.cancelLocked(TimerOff)

	snap := c.state.Read()
	if !snap.AutoMode || snap.Readings.Occupied {
		return
	}
	switch mode {
	case room.MultimediaOn:
		c.armLocked(TimerSleep)
	case room.MultimediaStandby:
		c.armLocked(TimerOff)
	}
}

// ToggleAutoMode flips between auto and manual and returns the new mode.
// Actuators are not touched; timers are armed or cancelled to match the
// new mode.
func (c *Controller) ToggleAutoMode(_ context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	auto := c.state.ToggleAutoMode()
	c.reconcileLocked()
	c.logger.Info("automation mode changed", "auto", auto)
	return auto
}

// SetAutoMode sets the mode explicitly. Setting the current mode again
// re-checks the timers but changes nothing else.
func (c *Controller) SetAutoMode(_ context.Context, auto bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.SetAutoMode(auto)
	c.reconcileLocked()
}

// reconcileLocked brings the timers in line with the current mode and
// occupancy without changing any actuator.
func (c *Controller) reconcileLocked() {
	snap := c.state.Read()
	if !snap.AutoMode || snap.Readings.Occupied {
		c.cancelAllLocked()
		return
	}
	c.armForStateLocked(snap)
}

// armForStateLocked arms the shutdown stage for each running actuator.
// The multimedia timers are mutually exclusive.
func (c *Controller) armForStateLocked(snap room.Snapshot) {
	if snap.AirConditioner.On {
		c.armLocked(TimerACOff)
	}

	switch snap.Multimedia {
	case room.MultimediaOn:
		c.cancelLocked(TimerOff)
		c.armLocked(TimerSleep)
	case room.MultimediaStandby:
		c.cancelLocked(TimerSleep)
		c.armLocked(TimerOff)
	default:
		c.cancelLocked(TimerSleep)
		c.cancelLocked(TimerOff)
	}
}

func (c *Controller) armLocked(kind TimerKind) {
	if c.timers[kind].arm(c.now(), c.delays[kind]) {
		c.logger.Debug("timer armed", "timer", kind.String(), "deadline", c.timers[kind].deadline)
	}
}

func (c *Controller) cancelLocked(kind TimerKind) {
	if c.timers[kind].cancel() {
		c.logger.Debug("timer cancelled", "timer", kind.String())
	}
}

func (c *Controller) cancelAllLocked() {
	for _, kind := range AllTimerKinds() {
		c.cancelLocked(kind)
	}
}

// Timers returns the status of every timer.
func (c *Controller) Timers() []TimerStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]TimerStatus, 0, timerKindCount)
	for _, kind := range AllTimerKinds() {
		t := c.timers[kind]
		out = append(out, TimerStatus{Kind: kind.String(), Armed: t.armed, Deadline: t.deadline})
	}
	return out
}
