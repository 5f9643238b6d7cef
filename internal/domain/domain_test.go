package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRoleAtLeast(t *testing.T) {
	assert.True(t, RoleOwner.AtLeast(RoleAdmin))
	assert.True(t, RoleAdmin.AtLeast(RoleAdmin))
	assert.False(t, RoleMember.AtLeast(RoleAdmin))
	assert.True(t, RoleViewer.AtLeast(RoleViewer))
	assert.False(t, Role("").AtLeast(RoleViewer))
	assert.False(t, Role("root").AtLeast(Role("root")))
}

func TestRoleValidFor(t *testing.T) {
	assert.True(t, RoleViewer.ValidFor(ScopeProject))
	assert.False(t, RoleViewer.ValidFor(ScopeTeam))
	assert.True(t, RoleOwner.ValidFor(ScopeTeam))
	assert.False(t, Role("guest").ValidFor(ScopeProject))
}

func TestStages(t *testing.T) {
	s := DefaultStages()

	assert.Equal(t, "todo", s.First())
	assert.True(t, s.Has("review"))
	assert.False(t, s.Has("qa"))
	assert.True(t, s.IsDone("done"))
	assert.False(t, s.IsDone("todo"))
	assert.False(t, s.IsDone("qa"))
	assert.Equal(t, "", Stages{}.First())
}

func TestDurationMinutes(t *testing.T) {
	start := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

	assert.Equal(t, 0, DurationMinutes(start, start))
	assert.Equal(t, 0, DurationMinutes(start, start.Add(-time.Hour)))
	assert.Equal(t, 1, DurationMinutes(start, start.Add(10*time.Second)))
	assert.Equal(t, 90, DurationMinutes(start, start.Add(90*time.Minute)))
}

func TestTaskClone(t *testing.T) {
	task := &Task{Title: "a", Tags: []string{"x"}, CustomFields: map[string]interface{}{"k": "v"}}
	cp := task.Clone()
	cp.Tags[0] = "y"
	cp.CustomFields["k"] = "w"

	assert.Equal(t, "x", task.Tags[0])
	assert.Equal(t, "v", task.CustomFields["k"])
	assert.True(t, task.HasTag("x"))
}

func TestSlackIntegrationEnabled(t *testing.T) {
	s := &SlackIntegration{IsActive: true, NotifyApprovals: true}
	assert.True(t, s.Enabled(TriggerTaskApproved))
	assert.True(t, s.Enabled(TriggerTaskRejected))
	assert.False(t, s.Enabled(TriggerTaskCreated))

	s.IsActive = false
	assert.False(t, s.Enabled(TriggerTaskApproved))
}
