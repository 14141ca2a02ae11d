// Package loop provides the single goroutine every chat component runs on.
// Channel callbacks, timer expirations and API calls are queued as tasks
// and executed one at a time, so component state needs no locks.
package loop

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// ErrStopped is returned when a task is submitted after the loop exited.
var ErrStopped = errors.New("event loop stopped")

// Executor schedules work relative to the event loop.
type Executor interface {
	// Post queues fn to run on the loop.
	Post(fn func())
	// Go runs blocking work off the loop. It must Post any result back.
	Go(fn func())
}

// Runner executes fn on the loop and waits for its result.
type Runner interface {
	Do(ctx context.Context, fn func() error) error
}

// Loop is a serial task queue.
type Loop struct {
	tasks chan func()
	done  chan struct{}
	log   zerolog.Logger
}

// New creates a loop with the given queue capacity.
func New(buffer int, logger zerolog.Logger) *Loop {
	if buffer <= 0 {
		buffer = 256
	}
	return &Loop{
		tasks: make(chan func(), buffer),
		done:  make(chan struct{}),
		log:   logger,
	}
}

// Post queues fn. Tasks posted after Run returned are dropped.
func (l *Loop) Post(fn func()) {
	select {
	case l.tasks <- fn:
	case <-l.done:
	}
}

// Go runs fn on its own goroutine.
func (l *Loop) Go(fn func()) {
	go fn()
}

// Do runs fn on the loop and returns its error.
func (l *Loop) Do(ctx context.Context, fn func() error) error {
	result := make(chan error, 1)
	task := func() { result <- fn() }

	select {
	case l.tasks <- task:
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-result:
		return err
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run executes queued tasks until ctx is canceled.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)
	for {
		select {
		case <-ctx.Done():
			return nil
		case fn := <-l.tasks:
			l.run(fn)
		}
	}
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error().Err(fmt.Errorf("%v", r)).Msg("event loop task panicked")
		}
	}()
	fn()
}

// Inline runs everything synchronously on the caller's goroutine.
// Tests use it to drive components deterministically.
type Inline struct{}

func (Inline) Post(fn func()) { fn() }

func (Inline) Go(fn func()) { fn() }

func (Inline) Do(_ context.Context, fn func() error) error { return fn() }
