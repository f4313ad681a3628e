// Package scheduler runs periodic maintenance on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Sweeper evicts finished sessions past their retention window
type Sweeper interface {
	Sweep(ctx context.Context, now time.Time) int
}

// Janitor periodically sweeps retained sessions
type Janitor struct {
	cron    *cron.Cron
	sweeper Sweeper
	spec    string
	logger  *zap.Logger
	now     func() time.Time
}

// NewJanitor creates a janitor firing on spec, e.g. "@every 10m"
func NewJanitor(sweeper Sweeper, spec string, logger *zap.Logger) *Janitor {
	logger = logger.Named("janitor")
	cl := cronLogger{logger.Sugar()}
	return &Janitor{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		sweeper: sweeper,
		spec:    spec,
		logger:  logger,
		now:     time.Now,
	}
}

// Start registers the sweep and starts the scheduler
func (j *Janitor) Start(ctx context.Context) error {
	if _, err := j.cron.AddFunc(j.spec, func() { j.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("cron.AddFunc(%q): %w", j.spec, err)
	}
	j.cron.Start()
	j.logger.Info("Janitor started", zap.String("spec", j.spec))
	return nil
}

// RunOnce performs a single sweep
func (j *Janitor) RunOnce(ctx context.Context) int {
	n := j.sweeper.Sweep(ctx, j.now())
	j.logger.Debug("Sweep complete", zap.Int("evicted", n))
	return n
}

// Stop stops scheduling and waits for a running sweep to finish
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
	j.logger.Info("Janitor stopped")
}

// cronLogger adapts zap to cron.Logger
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
