package job

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Func is one scheduled run. ctx ends when the run exceeds its timeout or the scheduler stops.
type Func func(ctx context.Context)

// Scheduler runs named jobs on cron schedules. A run that is still in progress
// when its next tick fires is skipped.
type Scheduler struct {
	cron    *cron.Cron
	logger  *zap.Logger
	timeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
}

func NewScheduler(logger *zap.Logger, timeout time.Duration) *Scheduler {
	if timeout <= 0 {
		timeout = time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger:  logger,
		timeout: timeout,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Add registers fn under name. An empty schedule disables the job.
func (s *Scheduler) Add(name, schedule string, fn Func) error {
	if schedule == "" {
		s.logger.Info("Job disabled", zap.String("job", name))
		return nil
	}
	_, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
		defer cancel()
		start := time.Now()
		fn(ctx)
		s.logger.Debug("Job finished", zap.String("job", name), zap.Duration("duration", time.Since(start)))
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q for job %s: %w", schedule, name, err)
	}
	s.logger.Info("Job scheduled", zap.String("job", name), zap.String("schedule", schedule))
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels running jobs and waits for them to return or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	s.cancel()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger routes cron's own logging to zap.
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, zap.Any("details", keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, zap.Error(err), zap.Any("details", keysAndValues))
}
