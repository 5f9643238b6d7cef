package job

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"project-workspace-api/internal/domain"
	"project-workspace-api/internal/event"
	"project-workspace-api/internal/repository"
)

// Marker records which due_soon events were already raised, so repeated
// sweeps on the same day stay silent.
type Marker interface {
	// Mark returns true when key was not marked before.
	Mark(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// MemoryMarker is a process-local Marker.
type MemoryMarker struct {
	mu   sync.Mutex
	keys map[string]time.Time
	now  func() time.Time
}

func NewMemoryMarker() *MemoryMarker {
	return &MemoryMarker{keys: make(map[string]time.Time), now: time.Now}
}

func (m *MemoryMarker) Mark(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for k, exp := range m.keys {
		if now.After(exp) {
			delete(m.keys, k)
		}
	}
	if _, ok := m.keys[key]; ok {
		return false, nil
	}
	m.keys[key] = now.Add(ttl)
	return true, nil
}

// RedisMarker shares marks between replicas.
type RedisMarker struct {
	client *redis.Client
	prefix string
}

func NewRedisMarker(client *redis.Client) *RedisMarker {
	return &RedisMarker{client: client, prefix: "workspace:jobs:"}
}

func (m *RedisMarker) Mark(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return m.client.SetNX(ctx, m.prefix+key, 1, ttl).Result()
}

// DueSoonJob raises a due_soon event for every open task due inside the window.
type DueSoonJob struct {
	tasks      repository.TaskRepository
	dispatcher *event.Dispatcher
	marker     Marker
	window     time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

func NewDueSoonJob(tasks repository.TaskRepository, dispatcher *event.Dispatcher, marker Marker, window time.Duration, logger *zap.Logger) *DueSoonJob {
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &DueSoonJob{
		tasks:      tasks,
		dispatcher: dispatcher,
		marker:     marker,
		window:     window,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// DueSoonKey is the event key for task's reminder on day. Automation runs a
// rule at most once per key.
func DueSoonKey(task *domain.Task, day time.Time) string {
	return fmt.Sprintf("due_soon:%s:%s", task.ID, day.UTC().Format("2006-01-02"))
}

// Run sweeps once and returns the number of events raised.
func (j *DueSoonJob) Run(ctx context.Context) int {
	now := j.now()
	tasks, err := j.tasks.DueBetween(ctx, now, now.Add(j.window))
	if err != nil {
		j.logger.Error("Failed to load tasks due soon", zap.Error(err))
		return 0
	}
	if len(tasks) == 0 {
		j.logger.Debug("No tasks due soon")
		return 0
	}

	assignees, err := j.tasks.Assignees(ctx, taskIDs(tasks)...)
	if err != nil {
		j.logger.Error("Failed to load assignees for tasks due soon", zap.Error(err))
		return 0
	}

	raised := 0
	for _, t := range tasks {
		key := DueSoonKey(t, now)
		if j.marker != nil {
			fresh, err := j.marker.Mark(ctx, key, 2*j.window)
			if err != nil {
				j.logger.Warn("Failed to mark due_soon event", zap.String("key", key), zap.Error(err))
				continue
			}
			if !fresh {
				continue
			}
		}
		ev := event.New(ctx, domain.TriggerDueSoon, t, t.CreatedBy, now)
		ev.Key = key
		ev.Assignees = assignees[t.ID]
		j.dispatcher.Dispatch(ctx, ev)
		raised++
	}

	j.logger.Info("Due soon sweep completed",
		zap.Int("due", len(tasks)),
		zap.Int("raised", raised),
	)
	return raised
}

func taskIDs(tasks []*domain.Task) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(tasks))
	for _, t := range tasks {
		ids = append(ids, t.ID)
	}
	return ids
}
