package automation

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"gorm.io/datatypes"

	"project-workspace-api/internal/domain"
	"project-workspace-api/internal/event"
)

func TestMatch(t *testing.T) {
	due := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	alice := uuid.New()
	color := "red"

	after := testTask("review")
	after.Tags = datatypes.JSONSlice[string]{"bug", "ui"}
	after.DueDate = &due
	after.Color = &color
	after.CustomFields = datatypes.JSONMap{"points": float64(5)}
	before := after.Clone()
	before.Priority = domain.PriorityLow

	ev := event.New(context.Background(), domain.TriggerTaskUpdated, after, uuid.New(), time.Now())
	ev.Before = before
	ev.Assignees = []uuid.UUID{alice}

	tests := []struct {
		name string
		cond domain.Condition
		want bool
	}{
		{"eq stage", domain.Condition{Field: "stage_id", Op: domain.OpEq, Value: "review"}, true},
		{"neq stage", domain.Condition{Field: "stage_id", Op: domain.OpNeq, Value: "review"}, false},
		{"in stages", domain.Condition{Field: "stage_id", Op: domain.OpIn, Value: []interface{}{"todo", "review"}}, true},
		{"in tags", domain.Condition{Field: "tags", Op: domain.OpIn, Value: []interface{}{"ui"}}, true},
		{"contains tag", domain.Condition{Field: "tags", Op: domain.OpContains, Value: "bug"}, true},
		{"contains title", domain.Condition{Field: "title", Op: domain.OpContains, Value: "ship"}, true},
		{"assignee contains", domain.Condition{Field: "assignees", Op: domain.OpContains, Value: alice.String()}, true},
		{"priority gt", domain.Condition{Field: "priority", Op: domain.OpGt, Value: "medium"}, true},
		{"priority lt", domain.Condition{Field: "priority", Op: domain.OpLt, Value: "medium"}, false},
		{"due before", domain.Condition{Field: "due_date", Op: domain.OpLt, Value: "2026-03-11"}, true},
		{"custom gt", domain.Condition{Field: "custom_fields.points", Op: domain.OpGt, Value: float64(3)}, true},
		{"parent null", domain.Condition{Field: "parent_task_id", Op: domain.OpIsNull}, true},
		{"color set", domain.Condition{Field: "color", Op: domain.OpNotNull}, true},
		{"priority changed", domain.Condition{Field: "priority", Op: domain.OpChanged}, true},
		{"stage not changed", domain.Condition{Field: "stage_id", Op: domain.OpChanged}, false},
		{"priority changed to high", domain.Condition{Field: "priority", Op: domain.OpChangedTo, Value: "high"}, true},
		{"priority changed to urgent", domain.Condition{Field: "priority", Op: domain.OpChangedTo, Value: "urgent"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Match([]domain.Condition{tt.cond}, ev))
		})
	}
}

func TestMatch_ChangedNeedsBeforeSnapshot(t *testing.T) {
	ev := event.New(context.Background(), domain.TriggerTaskCreated, testTask("done"), uuid.New(), time.Now())
	assert.False(t, Match([]domain.Condition{{Field: "stage_id", Op: domain.OpChangedTo, Value: "done"}}, ev))
	assert.True(t, Match(nil, ev))
}

func TestRender(t *testing.T) {
	task := testTask("review")
	actor := uuid.New()
	out, err := Render("{{task.title}} is in {{ task.stage_id }} ({{task.priority}}) by {{actor.id}}", task, actor)
	assert.NoError(t, err)
	assert.Equal(t, "Ship it is in review (high) by "+actor.String(), out)

	_, err = Render("{{task.title", task, actor)
	assert.Error(t, err)
}
