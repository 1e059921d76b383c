package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNextTickAligned(t *testing.T) {
	s := New(Options{Interval: time.Hour, AlignToBucket: true}, zerolog.Nop())

	now := time.Date(2026, 8, 29, 14, 30, 0, 0, time.UTC)
	next := s.nextTick(now)
	want := time.Date(2026, 8, 29, 15, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("nextTick = %v, want %v", next, want)
	}

	// Exactly on a boundary yields the following boundary.
	next = s.nextTick(want)
	if !next.Equal(want.Add(time.Hour)) {
		t.Errorf("nextTick on boundary = %v, want %v", next, want.Add(time.Hour))
	}
}

func TestNextTickUnaligned(t *testing.T) {
	s := New(Options{Interval: time.Hour}, zerolog.Nop())

	now := time.Date(2026, 8, 29, 14, 30, 0, 0, time.UTC)
	if got := s.nextTick(now); !got.Equal(now.Add(time.Hour)) {
		t.Errorf("nextTick = %v, want %v", got, now.Add(time.Hour))
	}
}

func TestBucketStart(t *testing.T) {
	aligned := New(Options{Interval: time.Hour, AlignToBucket: true}, zerolog.Nop())
	ts := time.Date(2026, 8, 29, 14, 42, 7, 0, time.UTC)

	if got := aligned.bucketStart(ts); !got.Equal(time.Date(2026, 8, 29, 14, 0, 0, 0, time.UTC)) {
		t.Errorf("aligned bucketStart = %v", got)
	}

	raw := New(Options{Interval: time.Hour}, zerolog.Nop())
	if got := raw.bucketStart(ts); !got.Equal(ts) {
		t.Errorf("unaligned bucketStart = %v, want input", got)
	}
}

func TestRunOnStartFiresImmediately(t *testing.T) {
	s := New(Options{Interval: time.Hour, AlignToBucket: true, RunOnStart: true}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, func(context.Context, time.Time) error {
			calls.Add(1)
			cancel()
			return nil
		})
	}()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not fire the startup tick")
	}
	if calls.Load() != 1 {
		t.Errorf("tick ran %d times, want 1", calls.Load())
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	s := New(Options{Interval: time.Hour}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Run(ctx, func(context.Context, time.Time) error { return nil }); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v, want context.Canceled", err)
	}
}
