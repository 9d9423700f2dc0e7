package clock

import (
	"context"
	"errors"
	"time"

	"github.com/nerrad567/classroom-core/internal/room"
)

// DefaultStep is how far the clock moves on each tick.
const DefaultStep = 10 * time.Minute

// Logger defines the logging interface used by the keeper.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// Keeper advances the room clock and persists it.
type Keeper struct {
	state  *room.State
	store  Store
	step   time.Duration
	logger Logger
}

// NewKeeper creates a keeper. A nil store disables persistence.
//
// Parameters:
//   - state: Room record whose clock is advanced
//   - store: Persistence (may be nil)
//   - step: Clock advance per tick; zero uses DefaultStep
//   - logger: Logger instance (may be nil)
func NewKeeper(state *room.State, store Store, step time.Duration, logger Logger) *Keeper {
	if step <= 0 {
		step = DefaultStep
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Keeper{state: state, store: store, step: step, logger: logger}
}

// Restore loads the stored clock into the room, or room.DefaultClock when
// nothing is stored or the store cannot be read.
func (k *Keeper) Restore(ctx context.Context) room.Clock {
	c := room.DefaultClock
	if k.store != nil {
		stored, err := k.store.Load(ctx)
		switch {
		case err == nil:
			c = stored
		case errors.Is(err, ErrNotFound):
			k.logger.Info("no stored clock, using default", "clock", c.String())
		default:
			k.logger.Warn("clock store unreadable, using default", "error", err)
		}
	}

	// Validated by the store or a known-good default.
	_ = k.state.SetClock(c)
	return c
}

// Tick advances the room clock by one step and persists the result.
// A persistence failure is logged; the in-memory clock still advances.
func (k *Keeper) Tick(ctx context.Context) room.Clock {
	c := k.state.AdvanceClock(k.step)
	if k.store != nil {
		if err := k.store.Save(ctx, c); err != nil {
			k.logger.Warn("persisting clock failed", "clock", c.String(), "error", err)
		}
	}
	return c
}
