package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

type countingRunner struct {
	calls atomic.Int32
	err   error
}

func (r *countingRunner) RunAll(ctx context.Context) error {
	r.calls.Add(1)
	return r.err
}

type blockingRunner struct {
	calls atomic.Int32
}

func (r *blockingRunner) RunAll(ctx context.Context) error {
	r.calls.Add(1)
	<-ctx.Done()
	return ctx.Err()
}

func TestRunNow(t *testing.T) {
	runner := &countingRunner{err: errors.New("store down")}
	s := New(runner, "@every 1h", zap.NewNop())

	s.RunNow()
	s.RunNow()
	if runner.calls.Load() != 2 {
		t.Fatal("RunNow did not run the job")
	}
}

func TestScheduledRuns(t *testing.T) {
	runner := &countingRunner{}
	s := New(runner, "@every 1s", zap.NewNop())
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for runner.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	s.Stop()

	if runner.calls.Load() == 0 {
		t.Fatal("The scheduled job never ran")
	}
}

func TestOverlappingRunsAreSkipped(t *testing.T) {
	runner := &blockingRunner{}
	s := New(runner, "@every 1s", zap.NewNop())
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}

	time.Sleep(3500 * time.Millisecond)
	s.Stop()

	if runner.calls.Load() != 1 {
		t.Fatal("A run started while the previous one was still running")
	}
}

func TestInvalidSchedule(t *testing.T) {
	s := New(&countingRunner{}, "every now and then", zap.NewNop())
	if err := s.Start(); err == nil {
		t.Fatal("An invalid schedule was accepted")
	}
}
