package automation

import "time"

// TimerKind identifies one of the three deferred shutdown transitions.
type TimerKind int

// TimerKind constants, in the order RunDue fires them.
const (
	// TimerSleep moves multimedia from on to standby.
	TimerSleep TimerKind = iota

	// TimerOff moves multimedia from standby to off.
	TimerOff

	// TimerACOff switches the air conditioner off.
	TimerACOff

	timerKindCount
)

// AllTimerKinds returns every timer kind in firing order.
func AllTimerKinds() []TimerKind {
	return []TimerKind{TimerSleep, TimerOff, TimerACOff}
}

// String returns the name used in logs and the API.
func (k TimerKind) String() string {
	switch k {
	case TimerSleep:
		return "sleep"
	case TimerOff:
		return "off"
	case TimerACOff:
		return "ac_off"
	}
	return "unknown"
}

// TimerStatus is a point-in-time view of one timer.
type TimerStatus struct {
	Kind     string    `json:"kind"`
	Armed    bool      `json:"armed"`
	Deadline time.Time `json:"deadline,omitempty"`
}

// deferredTimer is a single-shot deadline. The zero value is disarmed.
// It is not synchronised; the Controller guards it.
type deferredTimer struct {
	armed    bool
	deadline time.Time
}

// arm sets the deadline if the timer is idle. An armed timer is left as is.
// Reports whether the timer was armed by this call.
func (t *deferredTimer) arm(now time.Time, delay time.Duration) bool {
	if t.armed {
		return false
	}
	t.armed = true
	t.deadline = now.Add(delay)
	return true
}

// cancel disarms the timer. Reports whether it was armed.
func (t *deferredTimer) cancel() bool {
	if !t.armed {
		return false
	}
	t.armed = false
	t.deadline = time.Time{}
	return true
}

// due reports whether the timer is armed and its deadline has passed.
func (t *deferredTimer) due(now time.Time) bool {
	return t.armed && !now.Before(t.deadline)
}
