// internal/engine/timing.go
package engine

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/xkilldash9x/pagepilot/internal/config"
)

// Timing holds the settle pauses taken between steps so that page scripts
// get a chance to react to focus, selection and input.
type Timing struct {
	Focus  time.Duration
	Select time.Duration
	Delete time.Duration
	Click  time.Duration
	Type   time.Duration
	Submit time.Duration
	Scroll time.Duration
}

// DefaultTiming returns the pauses used against live pages.
func DefaultTiming() Timing {
	return Timing{
		Focus:  100 * time.Millisecond,
		Select: 50 * time.Millisecond,
		Delete: 50 * time.Millisecond,
		Click:  300 * time.Millisecond,
		Type:   200 * time.Millisecond,
		Submit: 200 * time.Millisecond,
		Scroll: 500 * time.Millisecond,
	}
}

// TimingFromConfig maps the engine's settle configuration onto a Timing.
func TimingFromConfig(cfg config.SettleConfig) Timing {
	return Timing{
		Focus:  cfg.Focus,
		Select: cfg.Select,
		Delete: cfg.Delete,
		Click:  cfg.Click,
		Type:   cfg.Type,
		Submit: cfg.Submit,
		Scroll: cfg.Scroll,
	}
}

// Jitter supplies the pause between simulated keystrokes.
type Jitter interface {
	Next() time.Duration
}

// UniformJitter draws delays uniformly from [Min, Max].
type UniformJitter struct {
	mu  sync.Mutex
	rng *rand.Rand
	min time.Duration
	max time.Duration
}

// NewUniformJitter creates a jitter source over [min, max] seeded with seed.
func NewUniformJitter(min, max time.Duration, seed int64) *UniformJitter {
	if max < min {
		min, max = max, min
	}
	return &UniformJitter{
		rng: rand.New(rand.NewSource(seed)),
		min: min,
		max: max,
	}
}

// DefaultJitter returns the 15-40ms keystroke jitter.
func DefaultJitter() *UniformJitter {
	return NewUniformJitter(15*time.Millisecond, 40*time.Millisecond, time.Now().UnixNano())
}

// Next implements Jitter.
func (j *UniformJitter) Next() time.Duration {
	span := int64(j.max - j.min)
	if span <= 0 {
		return j.min
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.min + time.Duration(j.rng.Int63n(span+1))
}

// NoJitter never pauses. Used by tests and offline runs.
type NoJitter struct{}

// Next implements Jitter.
func (NoJitter) Next() time.Duration { return 0 }

// Sleeper pauses for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// sleepContext is the default Sleeper.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
