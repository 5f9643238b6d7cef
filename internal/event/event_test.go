package event

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"project-workspace-api/internal/domain"
)

func TestDepthRoundTrip(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, 0, DepthFrom(ctx))
	assert.Equal(t, 2, DepthFrom(WithDepth(ctx, 2)))
}

func TestNew_StampsDepthAndKey(t *testing.T) {
	task := &domain.Task{ProjectID: uuid.New()}
	task.ID = uuid.New()

	a := New(WithDepth(context.Background(), 1), domain.TriggerTaskCreated, task, uuid.New(), time.Now())
	b := New(context.Background(), domain.TriggerTaskCreated, task, uuid.New(), time.Now())

	assert.Equal(t, 1, a.Depth)
	assert.Equal(t, task.ProjectID, a.ProjectID)
	assert.NotEqual(t, a.Key, b.Key)
}

func TestDispatcher_SurvivesPanickingHandler(t *testing.T) {
	d := NewDispatcher(zap.NewNop())
	var seen []domain.Trigger
	d.Subscribe(HandlerFunc(func(ctx context.Context, ev Event) { panic("boom") }))
	d.Subscribe(HandlerFunc(func(ctx context.Context, ev Event) { seen = append(seen, ev.Trigger) }))

	d.Dispatch(context.Background(),
		Event{Trigger: domain.TriggerTaskCreated},
		Event{Trigger: domain.TriggerStatusChanged},
	)

	assert.Equal(t, []domain.Trigger{domain.TriggerTaskCreated, domain.TriggerStatusChanged}, seen)
}
