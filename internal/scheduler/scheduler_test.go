package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunImmediatelyThenInterval(t *testing.T) {
	var ticks int32
	s := New(Options{Interval: 100 * time.Millisecond, RunImmediately: true}, zerolog.Nop())

	first := make(chan time.Time, 1)
	start := time.Now()
	require.NoError(t, s.Start(context.Background(), func(ctx context.Context, at time.Time) error {
		if atomic.AddInt32(&ticks, 1) == 1 {
			first <- time.Now()
		}
		return nil
	}))
	defer s.Stop()

	select {
	case at := <-first:
		assert.Less(t, at.Sub(start), 50*time.Millisecond, "immediate tick should not wait for the interval")
	case <-time.After(time.Second):
		t.Fatal("immediate tick never fired")
	}

	require.Eventually(t, func() bool { return atomic.LoadInt32(&ticks) >= 3 }, 2*time.Second, 5*time.Millisecond)
}

func TestWithoutRunImmediatelyWaitsForInterval(t *testing.T) {
	var ticks int32
	s := New(Options{Interval: 200 * time.Millisecond}, zerolog.Nop())
	require.NoError(t, s.Start(context.Background(), func(ctx context.Context, at time.Time) error {
		atomic.AddInt32(&ticks, 1)
		return nil
	}))

	time.Sleep(50 * time.Millisecond)
	s.Stop()
	assert.Equal(t, int32(0), atomic.LoadInt32(&ticks))
}

func TestStopWaitsForInFlightTick(t *testing.T) {
	var ticks int32
	started := make(chan struct{})
	release := make(chan struct{})
	var tickCtxErr atomic.Value

	s := New(Options{Interval: 10 * time.Millisecond, RunImmediately: true}, zerolog.Nop())
	require.NoError(t, s.Start(context.Background(), func(ctx context.Context, at time.Time) error {
		if atomic.AddInt32(&ticks, 1) == 1 {
			close(started)
			<-release
			tickCtxErr.Store(errOrNil{ctx.Err()})
		}
		return nil
	}))

	<-started
	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a tick was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after the tick finished")
	}

	assert.NoError(t, tickCtxErr.Load().(errOrNil).err, "in-flight tick context must not be cancelled by Stop")

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&ticks), "no tick may start after Stop returns")
}

func TestTicksNeverOverlap(t *testing.T) {
	var running, maxRunning, ticks int32
	s := New(Options{Interval: 5 * time.Millisecond, RunImmediately: true}, zerolog.Nop())
	require.NoError(t, s.Start(context.Background(), func(ctx context.Context, at time.Time) error {
		n := atomic.AddInt32(&running, 1)
		for {
			m := atomic.LoadInt32(&maxRunning)
			if n <= m || atomic.CompareAndSwapInt32(&maxRunning, m, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		atomic.AddInt32(&ticks, 1)
		return nil
	}))

	require.Eventually(t, func() bool { return atomic.LoadInt32(&ticks) >= 3 }, 2*time.Second, 5*time.Millisecond)
	s.Stop()
	assert.Equal(t, int32(1), atomic.LoadInt32(&maxRunning))
}

func TestTickErrorsAndPanicsDoNotStopScheduler(t *testing.T) {
	var ticks int32
	s := New(Options{Interval: 5 * time.Millisecond, RunImmediately: true}, zerolog.Nop())
	require.NoError(t, s.Start(context.Background(), func(ctx context.Context, at time.Time) error {
		switch atomic.AddInt32(&ticks, 1) {
		case 1:
			return errors.New("store unreachable")
		case 2:
			panic("boom")
		}
		return nil
	}))
	defer s.Stop()

	require.Eventually(t, func() bool { return atomic.LoadInt32(&ticks) >= 4 }, 2*time.Second, 5*time.Millisecond)
}

func TestStartTwiceAndStopIdempotent(t *testing.T) {
	s := New(Options{Interval: time.Hour}, zerolog.Nop())
	noop := func(ctx context.Context, at time.Time) error { return nil }

	require.NoError(t, s.Start(context.Background(), noop))
	assert.ErrorIs(t, s.Start(context.Background(), noop), ErrAlreadyRunning)
	s.Stop()
	s.Stop()
	assert.Nil(t, s.Done())
	require.NoError(t, s.Start(context.Background(), noop))
	s.Stop()
}

func TestRunStartupDelayCancelled(t *testing.T) {
	s := New(Options{Interval: time.Hour, StartupDelay: time.Hour, RunImmediately: true}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Run(ctx, func(ctx context.Context, at time.Time) error {
		t.Fatal("tick must not run")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewRejectsNonPositiveInterval(t *testing.T) {
	assert.Panics(t, func() { New(Options{}, zerolog.Nop()) })
}

type errOrNil struct{ err error }
