// Package debounce runs a save effect after a quiet period, never letting
// two runs of the same effect overlap.
package debounce

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Danwoltrs/wolthers-travel-app-sub001/pkg/clock"
	"github.com/Danwoltrs/wolthers-travel-app-sub001/pkg/logger"
)

// SaveFunc persists one snapshot.
type SaveFunc[T any] func(ctx context.Context, snapshot T) error

// Options configures a Debouncer. Zero values use the real clock and the
// default logger.
type Options struct {
	Clock clock.Clock
	Log   *slog.Logger
	// Context is used for saves started by the timer. Flush uses the
	// caller's context instead.
	Context context.Context
	// OnResult is called after every save attempt with its outcome.
	OnResult func(err error)
}

// Debouncer runs at most one save at a time, always with the latest
// scheduled snapshot.
type Debouncer[T any] struct {
	save     SaveFunc[T]
	clock    clock.Clock
	log      *slog.Logger
	ctx      context.Context
	onResult func(error)

	// sem holds one token while a save runs.
	sem chan struct{}

	mu          sync.Mutex
	timer       clock.Timer
	gen         uint64
	parked      *T
	parkedDelay time.Duration
	closed      bool
}

// New returns a Debouncer that persists snapshots with save.
func New[T any](save SaveFunc[T], opts Options) *Debouncer[T] {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	return &Debouncer[T]{
		save:     save,
		clock:    clock.OrReal(opts.Clock),
		log:      logger.OrDefault(opts.Log),
		ctx:      ctx,
		onResult: opts.OnResult,
		sem:      make(chan struct{}, 1),
	}
}

// Schedule cancels any pending call and runs save(snapshot) after delay.
func (d *Debouncer[T]) Schedule(snapshot T, delay time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}

	d.stopLocked()
	gen := d.gen
	d.timer = d.clock.AfterFunc(delay, func() {
		d.fire(gen, snapshot, delay)
	})
	d.log.Debug("save scheduled", slog.Duration("delay", delay))
}

// Cancel drops a pending call without running it.
func (d *Debouncer[T]) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopLocked()
}

// Flush cancels the pending call and runs save(snapshot) now. A save that
// is already running is waited for, not interrupted.
func (d *Debouncer[T]) Flush(ctx context.Context, snapshot T) error {
	d.mu.Lock()
	d.stopLocked()
	d.mu.Unlock()

	select {
	case d.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	err := d.run(ctx, snapshot)
	d.release()
	return err
}

// Pending reports whether a save is scheduled or parked behind a running one.
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.timer != nil || d.parked != nil
}

// InFlight reports whether a save is running right now.
func (d *Debouncer[T]) InFlight() bool {
	return len(d.sem) == 1
}

// Close cancels pending work. Later Schedule calls are ignored; Flush still works.
func (d *Debouncer[T]) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopLocked()
	d.closed = true
}

func (d *Debouncer[T]) stopLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
	d.parked = nil
}

func (d *Debouncer[T]) fire(gen uint64, snapshot T, delay time.Duration) {
	d.mu.Lock()
	if gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.timer = nil

	select {
	case d.sem <- struct{}{}:
	default:
		d.parked = &snapshot
		d.parkedDelay = delay
		d.mu.Unlock()
		d.log.Debug("save in flight, deferring scheduled save")
		return
	}
	d.mu.Unlock()

	d.run(d.ctx, snapshot)
	d.release()
}

func (d *Debouncer[T]) run(ctx context.Context, snapshot T) error {
	err := d.save(ctx, snapshot)
	if err != nil {
		d.log.Warn("save failed", slog.String("error", err.Error()))
	}
	if d.onResult != nil {
		d.onResult(err)
	}
	return err
}

// release frees the save slot and starts a new debounce cycle for a
// snapshot that was parked while the slot was taken.
func (d *Debouncer[T]) release() {
	d.mu.Lock()
	parked, delay := d.parked, d.parkedDelay
	d.parked = nil
	d.mu.Unlock()

	<-d.sem

	if parked != nil {
		d.Schedule(*parked, delay)
	}
}
