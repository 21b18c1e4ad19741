package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrAlreadyRunning is returned by Start on a scheduler that was not stopped.
var ErrAlreadyRunning = errors.New("scheduler already running")

// TickFunc is invoked on every tick.
type TickFunc func(ctx context.Context, tick time.Time) error

// Options tune scheduler behaviour.
type Options struct {
	Interval       time.Duration
	RunImmediately bool
	StartupDelay   time.Duration
}

// Scheduler fires a TickFunc at a fixed rate. Ticks never overlap; a slow
// tick causes at most one pending tick, never a backlog.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Interval <= 0 {
		panic("scheduler interval must be positive")
	}
	return &Scheduler{opts: opts, logger: logger.With().Str("component", "scheduler").Logger()}
}

// Run blocks, invoking tick once immediately when configured and then on
// every interval until ctx is cancelled. Ticks receive a context that is not
// cancelled with ctx, so a tick in flight at cancellation runs to completion
// before Run returns.
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	if s.opts.StartupDelay > 0 {
		timer := time.NewTimer(s.opts.StartupDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	tickCtx := context.WithoutCancel(ctx)

	if s.opts.RunImmediately {
		s.execute(tickCtx, tick, time.Now())
	}

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()
	s.logger.Debug().Dur("interval", s.opts.Interval).Msg("scheduler started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			// a stop that raced the tick wins
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.execute(tickCtx, tick, now)
		}
	}
}

// Start runs the scheduler in the background until Stop is called or ctx
// is cancelled.
func (s *Scheduler) Start(ctx context.Context, tick TickFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel, s.done = cancel, done

	go func() {
		defer close(done)
		if err := s.Run(runCtx, tick); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error().Err(err).Msg("scheduler stopped with error")
		}
	}()
	return nil
}

// Stop prevents further ticks and blocks until the in-flight tick, if any,
// has returned. It is safe to call more than once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Info().Msg("scheduler stopped")
}

// Done is closed once a started scheduler has fully stopped. It returns nil
// when the scheduler is not running.
func (s *Scheduler) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

func (s *Scheduler) execute(ctx context.Context, tick TickFunc, at time.Time) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Str("panic", fmt.Sprint(r)).Time("tick", at).Msg("tick panicked")
		}
	}()

	s.logger.Info().Time("tick", at).Msg("executing scheduled tick")
	if err := tick(ctx, at); err != nil {
		s.logger.Error().Err(err).Time("tick", at).Msg("tick execution failed")
	}
}
