// Package scheduler runs engine passes over all active tournaments
// on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Runner is implemented by core.Engine
type Runner interface {
	RunAll(ctx context.Context) error
}

type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	spec   string
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// Creates a scheduler for a cron spec with seconds precision,
// e.g. "*/30 * * * * *" or "@every 30s". A pass that is still
// running when the next one is due makes the next one skip.
func New(runner Runner, spec string, logger *zap.Logger) *Scheduler {
	cl := cronLogger{logger.Sugar()}
	c := cron.New(
		cron.WithSeconds(),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   c,
		runner: runner,
		spec:   spec,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Registers the resolve job and starts the cron loop
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.runResolve); err != nil {
		return fmt.Errorf("invalid resolve schedule %q: %w", s.spec, err)
	}

	s.cron.Start()
	s.logger.Info("scheduler started", zap.String("schedule", s.spec))
	return nil
}

// Stops the cron loop, cancels a running pass and waits for it
func (s *Scheduler) Stop() {
	done := s.cron.Stop()
	s.cancel()
	<-done.Done()
	s.logger.Info("scheduler stopped")
}

// Runs a pass immediately, outside of the schedule
func (s *Scheduler) RunNow() {
	s.runResolve()
}

func (s *Scheduler) runResolve() {
	start := time.Now()
	if err := s.runner.RunAll(s.ctx); err != nil {
		s.logger.Error("resolve job failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return
	}
	s.logger.Debug("resolve job done", zap.Duration("elapsed", time.Since(start)))
}

// Adapts zap to the logger interface of the cron package
type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}
