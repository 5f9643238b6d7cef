package job

import (
	"context"

	"go.uber.org/zap"

	"project-workspace-api/internal/repository"
)

// PinPurger deletes expired approval PINs.
type PinPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// PinCleanupJob removes expired PINs.
type PinCleanupJob struct {
	pins   PinPurger
	logger *zap.Logger
}

func NewPinCleanupJob(pins PinPurger, logger *zap.Logger) *PinCleanupJob {
	return &PinCleanupJob{pins: pins, logger: logger}
}

func (j *PinCleanupJob) Run(ctx context.Context) {
	n, err := j.pins.PurgeExpired(ctx)
	if err != nil {
		j.logger.Error("Failed to purge expired pins", zap.Error(err))
		return
	}
	if n > 0 {
		j.logger.Info("Expired pins purged", zap.Int64("count", n))
	}
}

// RepositoryCounter feeds the business gauges from the repositories.
type RepositoryCounter struct {
	Projects repository.ProjectRepository
	Tasks    repository.TaskRepository
	Timers   repository.TimeEntryRepository
}

func (c RepositoryCounter) CountActiveProjects(ctx context.Context) (int64, error) {
	return c.Projects.CountActive(ctx)
}

func (c RepositoryCounter) CountTasks(ctx context.Context) (int64, int64, error) {
	return c.Tasks.CountByStatus(ctx)
}

func (c RepositoryCounter) CountRunningTimers(ctx context.Context) (int64, error) {
	return c.Timers.CountRunning(ctx)
}
