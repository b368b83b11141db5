package runtime

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"auravfx/server/internal/telemetry"
	"auravfx/server/logging"
	logruntime "auravfx/server/logging/runtime"
)

const (
	ParticleLoop = "particles"
	ModelLoop    = "models"
)

// TickFunc runs one frame of a loop.
type TickFunc func(ctx context.Context, frame uint64) error

// Loop drives a TickFunc at a fixed interval. The frame counter survives
// restarts and only resets through ResetFrame.
type Loop struct {
	name      string
	tick      TickFunc
	logger    telemetry.Logger
	publisher logging.Publisher
	metrics   telemetry.Metrics

	interval atomic.Int64
	frame    atomic.Uint64
}

func NewLoop(name string, interval time.Duration, tick TickFunc, logger telemetry.Logger, publisher logging.Publisher, metrics telemetry.Metrics) *Loop {
	if logger == nil {
		logger = telemetry.NopLogger()
	}
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	l := &Loop{name: name, tick: tick, logger: logger, publisher: publisher, metrics: metrics}
	l.SetInterval(interval)
	return l
}

func (l *Loop) Name() string { return l.name }

func (l *Loop) Interval() time.Duration { return time.Duration(l.interval.Load()) }

// SetInterval takes effect the next time Run starts.
func (l *Loop) SetInterval(d time.Duration) {
	if d <= 0 {
		d = time.Second
	}
	l.interval.Store(int64(d))
}

func (l *Loop) Frame() uint64 { return l.frame.Load() }

func (l *Loop) ResetFrame() { l.frame.Store(0) }

// Run ticks until ctx is cancelled. It always returns nil so a failing
// tick never tears down its sibling loop.
func (l *Loop) Run(ctx context.Context) error {
	interval := l.Interval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logruntime.Started(ctx, l.publisher, logruntime.LoopPayload{Loop: l.name, IntervalMS: interval.Milliseconds()})
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			l.Step(ctx)
		}
	}
}

// Step advances the frame counter and runs one tick synchronously. Panics
// and errors are reported and the frame is skipped.
func (l *Loop) Step(ctx context.Context) (frame uint64) {
	frame = l.frame.Add(1)
	defer func() {
		if recovered := recover(); recovered != nil {
			l.Fail(ctx, frame, "", fmt.Errorf("panic: %v", recovered))
		}
	}()
	if err := l.tick(ctx, frame); err != nil {
		l.Fail(ctx, frame, "", err)
	}
	if l.metrics != nil {
		l.metrics.Store("runtime_"+l.name+"_frame", frame)
	}
	return frame
}

// Fail reports a skipped tick, optionally scoped to one world.
func (l *Loop) Fail(ctx context.Context, frame uint64, world string, err error) {
	if err == nil {
		return
	}
	if world != "" {
		l.logger.Printf("warn: %s tick %d failed in world %s: %v", l.name, frame, world, err)
	} else {
		l.logger.Printf("warn: %s tick %d failed: %v", l.name, frame, err)
	}
	if l.metrics != nil {
		l.metrics.Add("runtime_"+l.name+"_tick_failures", 1)
	}
	logruntime.TickFailed(ctx, l.publisher, frame, logruntime.TickFailedPayload{Loop: l.name, World: world, Error: err.Error()})
}
