package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mcoot/cubegame/internal/dependencies/clock"
	"github.com/mcoot/cubegame/internal/storage"
)

const (
	// DefaultTickRate is the number of steps per second Run aims for
	DefaultTickRate = 60
	// maxCatchupTicks bounds dt after a stall
	maxCatchupTicks = 4
)

// System is one pass over the store, run once per step in registration order
type System interface {
	Name() string
	Update(ctx context.Context, dt time.Duration) error
}

// World owns a store and runs its systems cooperatively on a single goroutine
type World struct {
	name    string
	store   storage.Storage
	clock   clock.Clock
	logger  *slog.Logger
	inbox   *Inbox
	systems []System

	stepMu sync.Mutex
	tick   atomic.Uint64
}

// NewWorld creates a world over the given store
func NewWorld(name string, store storage.Storage, clk clock.Clock, logger *slog.Logger) *World {
	return &World{
		name:   name,
		store:  store,
		clock:  clk,
		logger: logger.With(slog.String("world", name)),
		inbox:  NewInbox(),
	}
}

// AddSystem appends a system to the run order
func (w *World) AddSystem(s System) {
	w.stepMu.Lock()
	defer w.stepMu.Unlock()
	w.systems = append(w.systems, s)
}

// Name returns the world name
func (w *World) Name() string {
	return w.name
}

// Store returns the world's store
func (w *World) Store() storage.Storage {
	return w.store
}

// Enqueue stages a command for the next step. Safe from any goroutine.
func (w *World) Enqueue(cmd Command) {
	w.inbox.Enqueue(cmd)
}

// Tick returns the number of completed steps
func (w *World) Tick() uint64 {
	return w.tick.Load()
}

// Step drains the inbox, then runs every system once.
// Failures are logged and collected; one failing system does not stop the rest.
func (w *World) Step(ctx context.Context, dt time.Duration) error {
	w.stepMu.Lock()
	defer w.stepMu.Unlock()

	tick := w.tick.Add(1)
	var errs []error

	for _, cmd := range w.inbox.Drain() {
		if err := w.safely(ctx, "inbox", func(ctx context.Context) error { return cmd(ctx) }); err != nil {
			w.logger.Warn("staged command failed",
				slog.Uint64("tick", tick),
				slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	for _, sys := range w.systems {
		err := w.safely(ctx, sys.Name(), func(ctx context.Context) error { return sys.Update(ctx, dt) })
		if err != nil {
			w.logger.Warn("system update failed",
				slog.Uint64("tick", tick),
				slog.String("system", sys.Name()),
				slog.String("error", err.Error()))
			errs = append(errs, fmt.Errorf("%s: %w", sys.Name(), err))
		}
	}

	return errors.Join(errs...)
}

// safely turns a panic in fn into an error
func (w *World) safely(ctx context.Context, what string, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("panic recovered",
				slog.String("in", what),
				slog.Any("error", r),
				slog.String("stack", string(debug.Stack())))
			err = fmt.Errorf("panic in %s: %v", what, r)
		}
	}()
	return fn(ctx)
}

// Run steps the world at tickRate until ctx is cancelled
func (w *World) Run(ctx context.Context, tickRate int) error {
	if tickRate <= 0 {
		tickRate = DefaultTickRate
	}
	budget := time.Second / time.Duration(tickRate)
	ticker := time.NewTicker(budget)
	defer ticker.Stop()

	w.logger.Info("world started", slog.Int("tick_rate", tickRate))
	last := w.clock.Now()
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("world stopped", slog.Uint64("ticks", w.Tick()))
			return nil
		case <-ticker.C:
			dt := w.clock.Since(last)
			last = last.Add(dt)
			if dt <= 0 {
				dt = budget
			} else if dt > budget*maxCatchupTicks {
				dt = budget * maxCatchupTicks
			}

			// Errors were already logged per system
			_ = w.Step(ctx, dt)
		}
	}
}
