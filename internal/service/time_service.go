package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"project-workspace-api/internal/access"
	"project-workspace-api/internal/broadcast"
	"project-workspace-api/internal/database"
	"project-workspace-api/internal/domain"
	"project-workspace-api/internal/dto"
	"project-workspace-api/internal/repository"
	"project-workspace-api/internal/response"
)

const entryDateLayout = "2006-01-02"

// TimeService tracks work on tasks. A user has at most one running timer.
type TimeService interface {
	StartTimer(ctx context.Context, userID, taskID uuid.UUID, req *dto.StartTimerRequest) (*domain.TimeEntry, error)
	StopTimer(ctx context.Context, userID uuid.UUID) (*domain.TimeEntry, error)
	RunningTimer(ctx context.Context, userID uuid.UUID) (*domain.TimeEntry, error)
	LogTime(ctx context.Context, userID, taskID uuid.UUID, req *dto.LogTimeRequest) (*domain.TimeEntry, error)
	ListTimeEntries(ctx context.Context, userID, taskID uuid.UUID) ([]*domain.TimeEntry, error)
}

type timeServiceImpl struct {
	tasks   *taskServiceImpl
	entries repository.TimeEntryRepository
}

func NewTimeService(
	rt *Runtime,
	entries repository.TimeEntryRepository,
	tasks repository.TaskRepository,
	projects repository.ProjectRepository,
	members repository.MembershipRepository,
	activity repository.NotificationRepository,
) TimeService {
	return &timeServiceImpl{
		tasks:   &taskServiceImpl{rt: rt, tasks: tasks, projects: projects, members: members, activity: activity},
		entries: entries,
	}
}

// StartTimer stops the caller's running entry, if any, and starts a new one
// on taskID in the same transaction.
func (s *timeServiceImpl) StartTimer(ctx context.Context, userID, taskID uuid.UUID, req *dto.StartTimerRequest) (*domain.TimeEntry, error) {
	c := userCaller(userID)
	rt := s.tasks.rt
	var started *domain.TimeEntry
	var stopped *domain.TimeEntry
	err := rt.run(ctx, []string{timerKey(userID)}, func(tx *database.Tx, out *outbox) error {
		ts, err := s.tasks.load(ctx, tx, c, taskID, access.ActionMutate)
		if err != nil {
			return err
		}
		entries := s.entries.WithTx(tx.DB)
		now := rt.now()

		running, err := entries.FindRunning(ctx, userID)
		if err != nil {
			return database.ClassifyError(err)
		}
		if running != nil {
			old := *running
			running.Stop(now)
			if err := entries.Save(ctx, running); err != nil {
				return database.ClassifyError(err)
			}
			out.change("time_entries", broadcast.OpUpdate, running.ID, running.ProjectID, running, &old)
			stopped = running
		}

		started = &domain.TimeEntry{
			TaskID:      ts.task.ID,
			ProjectID:   ts.task.ProjectID,
			UserID:      userID,
			StartedAt:   now,
			Description: req.Description,
			EntryDate:   now.Format(entryDateLayout),
		}
		if err := entries.Create(ctx, started); err != nil {
			return conflictOnDuplicate(err, response.ReasonTimerAlreadyRunning, "a timer is already running")
		}
		out.change("time_entries", broadcast.OpInsert, started.ID, started.ProjectID, started, nil)
		return nil
	})
	if err != nil {
		return nil, err
	}

	fields := []zap.Field{zap.String("user_id", userID.String()), zap.String("task_id", taskID.String())}
	if stopped != nil {
		fields = append(fields, zap.String("stopped_entry_id", stopped.ID.String()))
	}
	rt.Logger.Info("Timer started", fields...)
	rt.Metrics.SetRunningTimers(s.countRunning(ctx))
	return started, nil
}

func (s *timeServiceImpl) StopTimer(ctx context.Context, userID uuid.UUID) (*domain.TimeEntry, error) {
	rt := s.tasks.rt
	var entry *domain.TimeEntry
	err := rt.run(ctx, []string{timerKey(userID)}, func(tx *database.Tx, out *outbox) error {
		entries := s.entries.WithTx(tx.DB)
		running, err := entries.FindRunning(ctx, userID)
		if err != nil {
			return database.ClassifyError(err)
		}
		if running == nil {
			return response.NewNotFoundError("no running timer", userID.String())
		}
		old := *running
		running.Stop(rt.now())
		if err := entries.Save(ctx, running); err != nil {
			return database.ClassifyError(err)
		}
		out.change("time_entries", broadcast.OpUpdate, running.ID, running.ProjectID, running, &old)
		entry = running
		return nil
	})
	if err != nil {
		return nil, err
	}
	rt.Logger.Info("Timer stopped",
		zap.String("user_id", userID.String()),
		zap.String("entry_id", entry.ID.String()),
		zap.Int("duration_minutes", entry.DurationMinutes),
	)
	rt.Metrics.SetRunningTimers(s.countRunning(ctx))
	return entry, nil
}

// RunningTimer returns the caller's running entry, or nil.
func (s *timeServiceImpl) RunningTimer(ctx context.Context, userID uuid.UUID) (*domain.TimeEntry, error) {
	entry, err := s.entries.FindRunning(ctx, userID)
	if err != nil {
		return nil, database.ClassifyError(err)
	}
	return entry, nil
}

// LogTime records finished work. ended_at wins over duration_minutes when both are sent.
func (s *timeServiceImpl) LogTime(ctx context.Context, userID, taskID uuid.UUID, req *dto.LogTimeRequest) (*domain.TimeEntry, error) {
	var end time.Time
	switch {
	case req.EndedAt != nil:
		if !req.EndedAt.After(req.StartedAt) {
			return nil, response.NewValidationError("ended_at must be after started_at", "")
		}
		end = *req.EndedAt
	case req.DurationMinutes != nil:
		end = req.StartedAt.Add(time.Duration(*req.DurationMinutes) * time.Minute)
	default:
		return nil, response.NewValidationError("either ended_at or duration_minutes is required", "")
	}

	c := userCaller(userID)
	var entry *domain.TimeEntry
	err := s.tasks.withTask(ctx, c, taskID, access.ActionMutate, false, nil, func(tx *database.Tx, out *outbox, ts *taskScope) error {
		entry = &domain.TimeEntry{
			TaskID:      ts.task.ID,
			ProjectID:   ts.task.ProjectID,
			UserID:      userID,
			StartedAt:   req.StartedAt,
			Description: req.Description,
			EntryDate:   req.StartedAt.Format(entryDateLayout),
		}
		entry.Stop(end)
		if err := s.entries.WithTx(tx.DB).Create(ctx, entry); err != nil {
			return database.ClassifyError(err)
		}
		if err := s.tasks.log(ctx, tx, ts.task, userID, "time_logged", map[string]interface{}{"minutes": entry.DurationMinutes}); err != nil {
			return err
		}
		out.change("time_entries", broadcast.OpInsert, entry.ID, entry.ProjectID, entry, nil)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *timeServiceImpl) ListTimeEntries(ctx context.Context, userID, taskID uuid.UUID) ([]*domain.TimeEntry, error) {
	filter := access.ForUser(userID)
	if _, err := s.tasks.tasks.FindByID(ctx, filter, taskID); err != nil {
		return nil, notFound(err, "task", taskID)
	}
	entries, err := s.entries.ListByTask(ctx, filter, taskID)
	if err != nil {
		return nil, database.ClassifyError(err)
	}
	return entries, nil
}

func (s *timeServiceImpl) countRunning(ctx context.Context) int64 {
	n, err := s.entries.CountRunning(ctx)
	if err != nil {
		s.tasks.rt.Logger.Warn("Failed to count running timers", zap.Error(err))
		return 0
	}
	return n
}
