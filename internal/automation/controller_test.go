package automation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/classroom-core/internal/room"
)

// mockGateway records actuator calls and can be told to fail light writes.
type mockGateway struct {
	mu          sync.Mutex
	lightCalls  int
	acCalls     int
	mediaCalls  int
	failLights  bool
	failAll     bool
	readings    room.Readings
	readErr     error
	lastMedia   room.MultimediaMode
	lastAC      room.AirConditioner
	lightValues [room.LightCount]bool
}

// timerArmed reports whether a timer is currently armed.
func (c *Controller) timerArmed(kind TimerKind) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timers[kind].armed
}

func (m *mockGateway) SetLight(_ context.Context, index int, on bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lightCalls++
	if m.failLights || m.failAll {
		return errors.New("sysfs write failed")
	}
	m.lightValues[index] = on
	return nil
}

func (m *mockGateway) SetAirConditioner(_ context.Context, ac room.AirConditioner) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acCalls++
	m.lastAC = ac
	if m.failAll {
		return errors.New("ir blaster offline")
	}
	return nil
}

func (m *mockGateway) SetMultimedia(_ context.Context, mode room.MultimediaMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mediaCalls++
	m.lastMedia = mode
	if m.failAll {
		return errors.New("relay offline")
	}
	return nil
}

func (m *mockGateway) ReadSensors(context.Context) (room.Readings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.readings, m.readErr
}

func (m *mockGateway) calls() (lights, ac, media int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lightCalls, m.acCalls, m.mediaCalls
}

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 8, 30, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

const testDelay = 5 * time.Second

func newTestController(t *testing.T) (*Controller, *room.State, *mockGateway, *fakeClock) {
	t.Helper()
	state := room.New()
	gw := &mockGateway{}
	clock := newFakeClock()
	c := NewController(state, gw, gw, Config{
		SleepDelay: testDelay,
		OffDelay:   testDelay,
		ACOffDelay: testDelay,
		Now:        clock.Now,
	}, nil)
	return c, state, gw, clock
}

// setupEmptyAutoRoom puts the controller in auto mode with nobody present.
func setupEmptyAutoRoom(t *testing.T, c *Controller, state *room.State) {
	t.Helper()
	state.SetSensors(room.Readings{Occupied: false})
	c.SetAutoMode(context.Background(), true)
}

func armedKinds(c *Controller) map[TimerKind]bool {
	out := make(map[TimerKind]bool)
	for _, kind := range AllTimerKinds() {
		out[kind] = c.timerArmed(kind)
	}
	return out
}

func TestEvaluate_EmptyRoomScenario(t *testing.T) {
	ctx := context.Background()
	c, state, _, clock := newTestController(t)

	for i := 0; i < room.LightCount; i++ {
		if err := c.SetLight(ctx, i, true); err != nil {
			t.Fatalf("SetLight(%d) error = %v", i, err)
		}
	}
	if err := c.SetMultimedia(ctx, room.MultimediaOn); err != nil {
		t.Fatalf("SetMultimedia() error = %v", err)
	}
	if err := c.SetAirConditioner(ctx, room.AirConditioner{On: true, Mode: room.ACCool, Level: 2}); err != nil {
		t.Fatalf("SetAirConditioner() error = %v", err)
	}
	setupEmptyAutoRoom(t, c, state)

	c.Evaluate(ctx)

	snap := state.Read()
	for i, on := range snap.Lights {
		if on {
			t.Errorf("light %d still on after evaluation", i)
		}
	}
	if !c.timerArmed(TimerACOff) {
		t.Error("ac_off timer not armed")
	}
	if !c.timerArmed(TimerSleep) {
		t.Error("sleep timer not armed")
	}
	if c.timerArmed(TimerOff) {
		t.Error("off timer armed while multimedia is on")
	}

	clock.Advance(testDelay)
	fired := c.RunDue(ctx)

	if len(fired) != 2 {
		t.Errorf("fired = %v, want sleep and ac_off", fired)
	}
	snap = state.Read()
	if snap.Multimedia != room.MultimediaStandby {
		t.Errorf("Multimedia = %q, want standby", snap.Multimedia)
	}
	if snap.AirConditioner.On {
		t.Error("air conditioner still on after ac_off timer")
	}
	if !c.timerArmed(TimerOff) {
		t.Error("off timer not armed after entering standby")
	}
	if c.timerArmed(TimerSleep) {
		t.Error("sleep timer still armed after firing")
	}

	clock.Advance(testDelay)
	c.RunDue(ctx)
	if got := state.Read().Multimedia; got != room.MultimediaOff {
		t.Errorf("Multimedia = %q, want off", got)
	}
	for kind, armed := range armedKinds(c) {
		if armed {
			t.Errorf("timer %s still armed at the end of the sequence", kind)
		}
	}
}

func TestEvaluate_ArmIsIdempotent(t *testing.T) {
	ctx := context.Background()
	c, state, _, clock := newTestController(t)

	_ = c.SetMultimedia(ctx, room.MultimediaOn)
	_ = c.SetAirConditioner(ctx, room.AirConditioner{On: true, Mode: room.ACHeat, Level: 1})
	setupEmptyAutoRoom(t, c, state)
	c.Evaluate(ctx)

	// Re-evaluating shortly before the deadline must not push it back.
	clock.Advance(testDelay - time.Second)
	c.Evaluate(ctx)
	c.Evaluate(ctx)

	clock.Advance(time.Second)
	fired := c.RunDue(ctx)
	if len(fired) != 2 {
		t.Fatalf("fired = %v, want sleep and ac_off at the original deadline", fired)
	}
}

func TestEvaluate_OccupancyCancelsAllTimers(t *testing.T) {
	tests := []struct {
		name  string
		setup func(ctx context.Context, c *Controller)
	}{
		{"no timers armed", func(context.Context, *Controller) {}},
		{"sleep and ac_off armed", func(ctx context.Context, c *Controller) {
			_ = c.SetMultimedia(ctx, room.MultimediaOn)
			_ = c.SetAirConditioner(ctx, room.AirConditioner{On: true, Mode: room.ACCool, Level: 3})
		}},
		{"off armed", func(ctx context.Context, c *Controller) {
			_ = c.SetMultimedia(ctx, room.MultimediaStandby)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			c, state, _, clock := newTestController(t)
			setupEmptyAutoRoom(t, c, state)
			tt.setup(ctx, c)
			c.Evaluate(ctx)

			state.SetSensors(room.Readings{Occupied: true})
			c.Evaluate(ctx)

			for kind, armed := range armedKinds(c) {
				if armed {
					t.Errorf("timer %s armed after occupancy returned", kind)
				}
			}

			before := state.Read()
			clock.Advance(10 * testDelay)
			if fired := c.RunDue(ctx); len(fired) != 0 {
				t.Errorf("fired = %v after cancellation", fired)
			}
			if after := state.Read(); after != before {
				t.Errorf("state changed after cancellation: %+v -> %+v", before, after)
			}
		})
	}
}

func TestEvaluate_ManualIsNoop(t *testing.T) {
	ctx := context.Background()
	c, state, gw, _ := newTestController(t)

	_ = c.SetLight(ctx, 1, true)
	_ = c.SetMultimedia(ctx, room.MultimediaOn)
	state.SetSensors(room.Readings{Occupied: false})
	lightsBefore, _, _ := gw.calls()

	c.Evaluate(ctx)

	lightsAfter, _, _ := gw.calls()
	if lightsAfter != lightsBefore {
		t.Errorf("manual evaluation made %d gateway calls", lightsAfter-lightsBefore)
	}
	if !state.Read().Lights[1] {
		t.Error("manual evaluation turned a light off")
	}
	for kind, armed := range armedKinds(c) {
		if armed {
			t.Errorf("manual evaluation armed %s", kind)
		}
	}
}

func TestStaleFireGuard(t *testing.T) {
	ctx := context.Background()
	c, state, _, clock := newTestController(t)
	setupEmptyAutoRoom(t, c, state)

	_ = c.SetMultimedia(ctx, room.MultimediaOn)
	if !c.timerArmed(TimerSleep) {
		t.Fatal("sleep timer not armed")
	}

	// Simulate a writer that bypasses the controller, so the sleep timer
	// stays armed while multimedia is already off.
	if err := state.SetMultimedia(room.MultimediaOff); err != nil {
		t.Fatalf("SetMultimedia() error = %v", err)
	}

	clock.Advance(testDelay)
	fired := c.RunDue(ctx)

	if len(fired) != 1 || fired[0] != TimerSleep {
		t.Errorf("fired = %v, want [sleep]", fired)
	}
	if got := state.Read().Multimedia; got != room.MultimediaOff {
		t.Errorf("Multimedia = %q, want off (stale fire must be ignored)", got)
	}
	if c.timerArmed(TimerOff) {
		t.Error("stale fire armed the off timer")
	}
}

func TestACOffTimer_StaleWhenAlreadyOff(t *testing.T) {
	ctx := context.Background()
	c, state, gw, clock := newTestController(t)
	setupEmptyAutoRoom(t, c, state)

	_ = c.SetAirConditioner(ctx, room.AirConditioner{On: true, Mode: room.ACCool, Level: 1})
	_ = state.SetAirConditioner(room.AirConditioner{On: false, Mode: room.ACCool, Level: 1})
	_, acBefore, _ := gw.calls()

	clock.Advance(testDelay)
	c.RunDue(ctx)

	if _, acAfter, _ := gw.calls(); acAfter != acBefore {
		t.Error("stale ac_off fire wrote to the gateway")
	}
}

// At most one of the multimedia timers is armed for any sequence of mode changes.
func TestSetMultimedia_TimersMutuallyExclusive(t *testing.T) {
	ctx := context.Background()
	c, state, _, clock := newTestController(t)
	setupEmptyAutoRoom(t, c, state)

	sequence := []room.MultimediaMode{
		room.MultimediaOn, room.MultimediaStandby, room.MultimediaOn, room.MultimediaOff,
		room.MultimediaStandby, room.MultimediaStandby, room.MultimediaOn, room.MultimediaOn,
	}
	for i, mode := range sequence {
		if err := c.SetMultimedia(ctx, mode); err != nil {
			t.Fatalf("SetMultimedia(%q) error = %v", mode, err)
		}
		clock.Advance(time.Second)

		sleep, off := c.timerArmed(TimerSleep), c.timerArmed(TimerOff)
		if sleep && off {
			t.Fatalf("step %d (%s): both sleep and off armed", i, mode)
		}
		switch mode {
		case room.MultimediaOn:
			if !sleep {
				t.Errorf("step %d: sleep not armed for on", i)
			}
		case room.MultimediaStandby:
			if !off {
				t.Errorf("step %d: off not armed for standby", i)
			}
		case room.MultimediaOff:
			if sleep || off {
				t.Errorf("step %d: timer armed for off", i)
			}
		}
	}
}

func TestSetMultimedia_RestartsDeadline(t *testing.T) {
	ctx := context.Background()
	c, state, _, clock := newTestController(t)
	setupEmptyAutoRoom(t, c, state)

	_ = c.SetMultimedia(ctx, room.MultimediaOn)
	clock.Advance(testDelay - time.Second)
	_ = c.SetMultimedia(ctx, room.MultimediaOn)
	clock.Advance(time.Second)

	if fired := c.RunDue(ctx); len(fired) != 0 {
		t.Errorf("fired = %v, an explicit set must restart the timer", fired)
	}
}

func TestSetMultimedia_InvalidModeRejected(t *testing.T) {
	ctx := context.Background()
	c, state, gw, _ := newTestController(t)
	_ = c.SetMultimedia(ctx, room.MultimediaStandby)
	_, _, mediaBefore := gw.calls()

	err := c.SetMultimedia(ctx, room.MultimediaMode("2"))
	if !errors.Is(err, room.ErrInvalidMultimedia) {
		t.Errorf("SetMultimedia(2) error = %v, want ErrInvalidMultimedia", err)
	}
	if got := state.Read().Multimedia; got != room.MultimediaStandby {
		t.Errorf("Multimedia = %q, want standby", got)
	}
	if _, _, mediaAfter := gw.calls(); mediaAfter != mediaBefore {
		t.Error("rejected mode reached the gateway")
	}
}

func TestSetMultimedia_ManualNeverArms(t *testing.T) {
	ctx := context.Background()
	c, state, _, _ := newTestController(t)
	state.SetSensors(room.Readings{Occupied: false})

	for _, mode := range []room.MultimediaMode{room.MultimediaOff, room.MultimediaOn, room.MultimediaStandby} {
		_ = c.SetMultimedia(ctx, mode)
		for kind, armed := range armedKinds(c) {
			if armed {
				t.Errorf("manual SetMultimedia(%s) armed %s", mode, kind)
			}
		}
	}
}

func TestSetAirConditioner(t *testing.T) {
	ctx := context.Background()

	t.Run("auto empty arms ac_off when turning on", func(t *testing.T) {
		c, state, _, _ := newTestController(t)
		setupEmptyAutoRoom(t, c, state)

		_ = c.SetAirConditioner(ctx, room.AirConditioner{On: true, Mode: room.ACHeat, Level: 2})
		if !c.timerArmed(TimerACOff) {
			t.Error("ac_off not armed")
		}

		_ = c.SetAirConditioner(ctx, room.AirConditioner{On: false, Mode: room.ACHeat, Level: 2})
		if c.timerArmed(TimerACOff) {
			t.Error("ac_off still armed after turning off")
		}
	})

	t.Run("manual never arms", func(t *testing.T) {
		c, state, _, _ := newTestController(t)
		state.SetSensors(room.Readings{Occupied: false})

		_ = c.SetAirConditioner(ctx, room.AirConditioner{On: true, Mode: room.ACCool, Level: 1})
		if c.timerArmed(TimerACOff) {
			t.Error("ac_off armed in manual mode")
		}
	})

	t.Run("occupied never arms", func(t *testing.T) {
		c, state, _, _ := newTestController(t)
		state.SetSensors(room.Readings{Occupied: true})
		c.SetAutoMode(ctx, true)

		_ = c.SetAirConditioner(ctx, room.AirConditioner{On: true, Mode: room.ACCool, Level: 1})
		if c.timerArmed(TimerACOff) {
			t.Error("ac_off armed with people in the room")
		}
	})

	t.Run("state reflects intent on gateway failure", func(t *testing.T) {
		c, state, gw, _ := newTestController(t)
		gw.failAll = true

		want := room.AirConditioner{On: true, Mode: room.ACHeat, Level: 3}
		if err := c.SetAirConditioner(ctx, want); err != nil {
			t.Fatalf("SetAirConditioner() error = %v", err)
		}
		if got := state.Read().AirConditioner; got != want {
			t.Errorf("AirConditioner = %+v, want %+v", got, want)
		}
	})

	t.Run("invalid level rejected", func(t *testing.T) {
		c, state, gw, _ := newTestController(t)
		err := c.SetAirConditioner(ctx, room.AirConditioner{On: true, Mode: room.ACCool, Level: 4})
		if !errors.Is(err, room.ErrInvalidLevel) {
			t.Errorf("error = %v, want ErrInvalidLevel", err)
		}
		if state.Read().AirConditioner.On {
			t.Error("invalid request changed state")
		}
		if _, ac, _ := gw.calls(); ac != 0 {
			t.Error("invalid request reached the gateway")
		}
	})
}

func TestSetLight(t *testing.T) {
	ctx := context.Background()

	t.Run("one gateway call per invocation, one notification per change", func(t *testing.T) {
		c, state, gw, _ := newTestController(t)
		notifications := 0
		state.Subscribe(func(ch room.Change) {
			if ch.Field == room.FieldLight {
				notifications++
			}
		})

		_ = c.SetLight(ctx, 0, true)
		_ = c.SetLight(ctx, 0, true)

		if lights, _, _ := gw.calls(); lights != 2 {
			t.Errorf("gateway calls = %d, want 2", lights)
		}
		if notifications != 1 {
			t.Errorf("notifications = %d, want 1", notifications)
		}
	})

	t.Run("gateway failure leaves state unchanged", func(t *testing.T) {
		c, state, gw, _ := newTestController(t)
		gw.failLights = true

		err := c.SetLight(ctx, 2, true)
		if !errors.Is(err, ErrGateway) {
			t.Errorf("error = %v, want ErrGateway", err)
		}
		if state.Read().Lights[2] {
			t.Error("light recorded as on after failed write")
		}
	})

	t.Run("invalid index", func(t *testing.T) {
		c, _, gw, _ := newTestController(t)
		if err := c.SetLight(ctx, 4, true); !errors.Is(err, room.ErrInvalidLight) {
			t.Errorf("error = %v, want ErrInvalidLight", err)
		}
		if lights, _, _ := gw.calls(); lights != 0 {
			t.Error("invalid index reached the gateway")
		}
	})
}

func TestEvaluate_LightFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	c, state, gw, _ := newTestController(t)
	_ = c.SetLight(ctx, 0, true)
	_ = c.SetMultimedia(ctx, room.MultimediaOn)
	setupEmptyAutoRoom(t, c, state)
	gw.failLights = true

	c.Evaluate(ctx)

	if !state.Read().Lights[0] {
		t.Error("light recorded as off although the write failed")
	}
	if !c.timerArmed(TimerSleep) {
		t.Error("light failure prevented timer arming")
	}

	gw.mu.Lock()
	gw.failLights = false
	gw.mu.Unlock()
	c.Evaluate(ctx)
	if state.Read().Lights[0] {
		t.Error("next evaluation did not retry the light")
	}
}

func TestToggleAutoMode(t *testing.T) {
	ctx := context.Background()
	c, state, gw, _ := newTestController(t)
	state.SetSensors(room.Readings{Occupied: false})
	_ = c.SetLight(ctx, 3, true)
	_ = c.SetMultimedia(ctx, room.MultimediaStandby)
	_ = c.SetAirConditioner(ctx, room.AirConditioner{On: true, Mode: room.ACCool, Level: 2})
	before := state.Read()
	lights, ac, media := gw.calls()

	if auto := c.ToggleAutoMode(ctx); !auto {
		t.Fatal("ToggleAutoMode() = false, want auto")
	}

	after := state.Read()
	if after.Lights != before.Lights || after.AirConditioner != before.AirConditioner || after.Multimedia != before.Multimedia {
		t.Errorf("toggling changed actuators: %+v -> %+v", before, after)
	}
	if l, a, m := gw.calls(); l != lights || a != ac || m != media {
		t.Error("toggling called the gateway")
	}
	if !c.timerArmed(TimerOff) || !c.timerArmed(TimerACOff) {
		t.Errorf("timers after entering auto = %v, want off and ac_off", armedKinds(c))
	}
	if c.timerArmed(TimerSleep) {
		t.Error("sleep armed while multimedia is in standby")
	}

	if auto := c.ToggleAutoMode(ctx); auto {
		t.Fatal("second ToggleAutoMode() = true, want manual")
	}
	for kind, armed := range armedKinds(c) {
		if armed {
			t.Errorf("timer %s armed after leaving auto mode", kind)
		}
	}
}

func TestPollSensors(t *testing.T) {
	ctx := context.Background()
	c, state, gw, _ := newTestController(t)

	gw.readings = room.Readings{Temperature: 23.5, Humidity: 45, Illumination: 0.6, Occupied: true}
	if err := c.PollSensors(ctx); err != nil {
		t.Fatalf("PollSensors() error = %v", err)
	}
	if got := state.Read().Readings; got != gw.readings {
		t.Errorf("Readings = %+v, want %+v", got, gw.readings)
	}

	gw.readErr = errors.New("i2c timeout")
	gw.readings = room.Readings{}
	if err := c.PollSensors(ctx); !errors.Is(err, ErrSensorRead) {
		t.Errorf("PollSensors() error = %v, want ErrSensorRead", err)
	}
	if !state.Read().Readings.Occupied {
		t.Error("failed read overwrote previous readings")
	}
}

func TestController_ConcurrentEvaluations(t *testing.T) {
	ctx := context.Background()
	c, state, _, clock := newTestController(t)
	_ = c.SetMultimedia(ctx, room.MultimediaOn)
	setupEmptyAutoRoom(t, c, state)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Evaluate(ctx)
			_ = c.SetAirConditioner(ctx, room.AirConditioner{On: true, Mode: room.ACCool, Level: 1})
		}()
	}
	wg.Wait()

	clock.Advance(testDelay)
	fired := c.RunDue(ctx)

	counts := make(map[TimerKind]int)
	for _, kind := range fired {
		counts[kind]++
	}
	if counts[TimerSleep] != 1 || counts[TimerACOff] != 1 {
		t.Errorf("fired = %v, want sleep and ac_off exactly once", fired)
	}
}

func TestTimers(t *testing.T) {
	c, state, _, clock := newTestController(t)
	setupEmptyAutoRoom(t, c, state)
	_ = c.SetMultimedia(context.Background(), room.MultimediaOn)

	statuses := c.Timers()
	if len(statuses) != 3 {
		t.Fatalf("Timers() returned %d entries, want 3", len(statuses))
	}
	if statuses[0].Kind != "sleep" || !statuses[0].Armed {
		t.Errorf("sleep status = %+v", statuses[0])
	}
	if want := clock.Now().Add(testDelay); !statuses[0].Deadline.Equal(want) {
		t.Errorf("deadline = %v, want %v", statuses[0].Deadline, want)
	}
	if statuses[2].Kind != "ac_off" || statuses[2].Armed {
		t.Errorf("ac_off status = %+v", statuses[2])
	}
}
