package daemon

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/1broseidon/focusmute/internal/engine"
	"github.com/1broseidon/focusmute/internal/policy"
)

// ErrStopped is returned by Do once the runner loop has exited.
var ErrStopped = errors.New("runner stopped")

// Ticker runs one decision pass over the policy state.
type Ticker interface {
	Tick(ctx context.Context, st *policy.State) engine.Report
}

// RunnerConfig holds configuration for the runner.
type RunnerConfig struct {
	Interval time.Duration
	// MaintenanceInterval controls how often Maintenance runs. Zero
	// disables it.
	MaintenanceInterval time.Duration
	Maintenance         func(ctx context.Context) error
	Logger              *slog.Logger
}

// Status is a point-in-time view of the runner.
type Status struct {
	Started  time.Time
	Interval time.Duration
	Ticks    uint64
	Last     engine.Report
}

type op struct {
	fn     func(st *policy.State) error
	result chan error
}

// Runner owns the policy state and drives the engine on a fixed interval.
// Every read or write of the state happens on the Run goroutine.
type Runner struct {
	ticker   Ticker
	state    *policy.State
	logger   *slog.Logger
	interval time.Duration

	maintenanceInterval time.Duration
	maintenance         func(ctx context.Context) error

	ops       chan op
	intervals chan time.Duration
	done      chan struct{}
	doneOnce  sync.Once

	mu      sync.RWMutex
	started time.Time
	ticks   uint64
	last    engine.Report
}

// NewRunner creates a runner. The state must not be touched by anything
// else once Run has started.
func NewRunner(cfg RunnerConfig, ticker Ticker, st *policy.State) *Runner {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{
		ticker:              ticker,
		state:               st,
		logger:              logger,
		interval:            interval,
		maintenanceInterval: cfg.MaintenanceInterval,
		maintenance:         cfg.Maintenance,
		ops:                 make(chan op),
		intervals:           make(chan time.Duration, 1),
		done:                make(chan struct{}),
	}
}

// Run starts the tick loop. Blocks until context is cancelled.
func (r *Runner) Run(ctx context.Context) {
	defer r.doneOnce.Do(func() { close(r.done) })

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	var maintenanceC <-chan time.Time
	if r.maintenance != nil && r.maintenanceInterval > 0 {
		mt := time.NewTicker(r.maintenanceInterval)
		defer mt.Stop()
		maintenanceC = mt.C
	}

	r.mu.Lock()
	r.started = time.Now()
	r.mu.Unlock()

	r.logger.Info("runner started", "interval", r.interval)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("runner stopped")
			return
		case <-ticker.C:
			r.tick(ctx)
		case o := <-r.ops:
			o.result <- r.apply(o.fn)
		case d := <-r.intervals:
			if d > 0 && d != r.currentInterval() {
				r.mu.Lock()
				r.interval = d
				r.mu.Unlock()
				ticker.Reset(d)
				r.logger.Info("tick interval updated", "interval", d)
			}
		case <-maintenanceC:
			r.runMaintenance(ctx)
		}
	}
}

// tick performs a single engine pass.
func (r *Runner) tick(ctx context.Context) {
	// Recover from panics to prevent crashing the daemon
	defer func() {
		if err := recover(); err != nil {
			r.logger.Error("tick panic recovered", "error", err)
		}
	}()

	report := r.ticker.Tick(ctx, r.state)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.ticks++
	if report.Locked {
		// Keep the last observed sessions visible while paused.
		prev := r.last
		prev.Locked = true
		prev.Time = report.Time
		r.last = prev
		return
	}
	r.last = report
}

func (r *Runner) apply(fn func(st *policy.State) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("state operation panic recovered", "error", p)
			err = errors.New("internal error")
		}
	}()
	return fn(r.state)
}

func (r *Runner) runMaintenance(ctx context.Context) {
	if err := r.maintenance(ctx); err != nil {
		r.logger.Warn("maintenance failed", "error", err)
	}
}

// Do runs fn on the runner goroutine between ticks and returns its error.
func (r *Runner) Do(ctx context.Context, fn func(st *policy.State) error) error {
	o := op{fn: fn, result: make(chan error, 1)}
	select {
	case r.ops <- o:
	case <-ctx.Done():
		return ctx.Err()
	case <-r.done:
		return ErrStopped
	}
	select {
	case err := <-o.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TickNow runs an immediate engine pass and returns its report.
func (r *Runner) TickNow(ctx context.Context) (engine.Report, error) {
	err := r.Do(ctx, func(*policy.State) error {
		r.tick(ctx)
		return nil
	})
	return r.LastReport(), err
}

// UpdateInterval changes the tick period without restarting the loop.
func (r *Runner) UpdateInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case r.intervals <- d:
	default:
		// Replace a pending update that was not consumed yet.
		select {
		case <-r.intervals:
		default:
		}
		select {
		case r.intervals <- d:
		default:
		}
	}
}

func (r *Runner) currentInterval() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.interval
}

// LastReport returns the most recent tick report.
func (r *Runner) LastReport() engine.Report {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last
}

func (r *Runner) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Status{
		Started:  r.started,
		Interval: r.interval,
		Ticks:    r.ticks,
		Last:     r.last,
	}
}

// Done is closed when Run returns.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}
