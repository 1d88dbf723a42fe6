// Package engine provides the tick orchestrator and the fixed-interval
// simulation loop that drives it.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// TickSchedule defines when each layer runs relative to the tick counter.
// One tick is one world minute.
const (
	TicksPerSimHour = 60   // 60 ticks = 1 sim-hour
	TicksPerSimDay  = 1440 // 24 hours × 60

	TickMinutes = 1 // world minutes per tick
)

// Engine drives the simulation forward.
type Engine struct {
	Tick     uint64        // Current tick counter (monotonic, never resets)
	Speed    float64       // Multiplier: 1.0 = real-time, 0 = paused
	Interval time.Duration // Base tick interval (default 1 second)

	// Callbacks for each tick layer, populated during setup.
	OnTick func(ctx context.Context, tick uint64) error // Every tick
	OnHour func(tick uint64)                            // Every 60 ticks
	OnDay  func(tick uint64)                            // Every 1440 ticks
}

// NewEngine creates a simulation engine with default settings.
func NewEngine() *Engine {
	return &Engine{
		Tick:     0,
		Speed:    1.0,
		Interval: time.Second,
	}
}

// Run starts the simulation loop. It blocks until ctx is cancelled, or until
// maxTicks ticks have run when maxTicks is non-zero.
func (e *Engine) Run(ctx context.Context, maxTicks uint64) error {
	slog.Info("simulation engine started", "tick", e.Tick, "speed", e.Speed)
	defer func() { slog.Info("simulation engine stopped", "tick", e.Tick) }()

	start := e.Tick
	for maxTicks == 0 || e.Tick-start < maxTicks {
		if e.Speed <= 0 {
			// Paused: sleep briefly and check again.
			if err := sleep(ctx, 100*time.Millisecond); err != nil {
				return nil
			}
			continue
		}

		began := time.Now()
		e.step(ctx)

		// Sleep for the remainder of the tick interval, adjusted for speed.
		elapsed := time.Since(began)
		target := time.Duration(float64(e.Interval) / e.Speed)
		if elapsed < target {
			if err := sleep(ctx, target-elapsed); err != nil {
				return nil
			}
		} else if ctx.Err() != nil {
			return nil
		}
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// step advances the simulation by one tick. A failed tick is logged and
// the counter still advances; the world itself is unchanged by it.
func (e *Engine) step(ctx context.Context) {
	e.Tick++

	if e.OnTick != nil {
		if err := e.OnTick(ctx, e.Tick); err != nil {
			slog.Error("tick discarded", "tick", e.Tick, "error", err)
		}
	}

	if e.Tick%TicksPerSimHour == 0 && e.OnHour != nil {
		e.OnHour(e.Tick)
	}

	if e.Tick%TicksPerSimDay == 0 && e.OnDay != nil {
		e.OnDay(e.Tick)
	}
}

// SimTime returns a human-readable simulation time string from a count of
// world minutes.
func SimTime(minutes uint64) string {
	mins := minutes % 60
	totalHours := minutes / 60
	hours := totalHours % 24
	days := totalHours/24 + 1
	return fmt.Sprintf("Day %d, %d:%02d", days, hours, mins)
}
