// Package automation runs the room's occupancy/mode state machine.
//
// Architecture:
//
//	┌──────────────────────────────────────────────────────────┐
//	│                  Scheduler (scheduler.go)                 │
//	│  One goroutine, jobs run to completion, never overlap     │
//	│   sensors ─▶ evaluate ─▶ timers ─▶ status ─▶ clock        │
//	└──────────────────────────┬───────────────────────────────┘
//	                           ▼
//	┌──────────────────────────────────────────────────────────┐
//	│                Controller (controller.go)                 │
//	│  Evaluate, RunDue, SetLight, SetAirConditioner,           │
//	│  SetMultimedia, ToggleAutoMode                            │
//	│  ┌────────────┐  ┌─────────────────┐  ┌───────────────┐   │
//	│  │ room.State │  │ deferred timers │  │   gateways    │   │
//	│  │            │  │ sleep/off/ac_off│  │ (hardware pkg)│   │
//	│  └────────────┘  └─────────────────┘  └───────────────┘   │
//	└──────────────────────────────────────────────────────────┘
//
// # Evaluation
//
// In manual mode evaluation does nothing. In auto mode with the room
// occupied, every pending timer is cancelled. In auto mode with the room
// empty, all lights are switched off and the shutdown timers are armed for
// whatever is still running: the ac_off timer while the air conditioner is
// on, the sleep timer while multimedia is on, the off timer while it is in
// standby.
//
// # Deferred timers
//
// Timers are plain deadlines checked by RunDue on every scheduler tick;
// there are no background timer goroutines. Arming an armed timer is a
// no-op. When a timer fires it re-checks the state it guards and does
// nothing if that state has moved on.
//
// # Thread Safety
//
// Controller methods are safe for concurrent use. A single mutex covers
// the timers and every control operation, so the remote listener and the
// scheduler can call in at the same time.
package automation
