package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunExecutesJobsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var sweeps atomic.Int32
	var failures atomic.Int32
	s := New(nil,
		Job{Name: "sweep", Interval: 10 * time.Millisecond, Run: func(context.Context) error {
			sweeps.Add(1)
			return nil
		}},
		Job{Name: "flaky", Interval: 10 * time.Millisecond, Run: func(context.Context) error {
			failures.Add(1)
			return errors.New("gateway unavailable")
		}},
	)

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for sweeps.Load() < 2 || failures.Load() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("jobs did not run: sweeps=%d failures=%d", sweeps.Load(), failures.Load())
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("scheduler did not stop after cancel")
	}
}

func TestRunRejectsInvalidJob(t *testing.T) {
	s := New(nil, Job{Name: "broken"})
	if err := s.Run(context.Background()); err == nil {
		t.Fatalf("expected invalid job error")
	}
}
