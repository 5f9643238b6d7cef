package metrics

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// BusinessCounter reads the totals behind the business gauges.
type BusinessCounter interface {
	CountActiveProjects(ctx context.Context) (int64, error)
	CountTasks(ctx context.Context) (open, completed int64, err error)
	CountRunningTimers(ctx context.Context) (int64, error)
}

// BusinessMetricsCollector refreshes business gauges. The job scheduler calls Collect.
type BusinessMetricsCollector struct {
	counter BusinessCounter
	metrics *Metrics
	logger  *zap.Logger
}

func NewBusinessMetricsCollector(counter BusinessCounter, metrics *Metrics, logger *zap.Logger) *BusinessMetricsCollector {
	return &BusinessMetricsCollector{counter: counter, metrics: metrics, logger: logger}
}

// Collect gathers business metrics. Failures are logged; gauges keep their last value.
func (c *BusinessMetricsCollector) Collect(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Panic in business metrics collection", zap.Any("panic", r))
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if n, err := c.counter.CountActiveProjects(ctx); err != nil {
		c.logger.Error("Failed to count projects", zap.Error(err))
	} else {
		c.metrics.SetProjectsTotal(n)
	}

	if open, completed, err := c.counter.CountTasks(ctx); err != nil {
		c.logger.Error("Failed to count tasks", zap.Error(err))
	} else {
		c.metrics.SetTasksTotal(open, completed)
	}

	if n, err := c.counter.CountRunningTimers(ctx); err != nil {
		c.logger.Error("Failed to count running timers", zap.Error(err))
	} else {
		c.metrics.SetRunningTimers(n)
	}
}
