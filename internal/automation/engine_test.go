package automation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"project-workspace-api/internal/domain"
	"project-workspace-api/internal/event"
	"project-workspace-api/internal/metrics"
)

type memStore struct {
	mu      sync.Mutex
	rules   []*domain.WorkflowRule
	claimed map[string]*domain.WorkflowExecution
}

func newMemStore(rules ...*domain.WorkflowRule) *memStore {
	return &memStore{rules: rules, claimed: map[string]*domain.WorkflowExecution{}}
}

func (s *memStore) EnabledRules(ctx context.Context, projectID uuid.UUID, trigger domain.Trigger) ([]*domain.WorkflowRule, error) {
	var out []*domain.WorkflowRule
	for _, r := range s.rules {
		if r.ProjectID == projectID && r.Trigger == trigger && r.Enabled {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memStore) ClaimExecution(ctx context.Context, exec *domain.WorkflowExecution) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := exec.RuleID.String() + "|" + exec.EventKey
	if _, ok := s.claimed[key]; ok {
		return false, nil
	}
	s.claimed[key] = exec
	return true, nil
}

func (s *memStore) FinishExecution(ctx context.Context, exec *domain.WorkflowExecution) error {
	return nil
}

func (s *memStore) executions() []*domain.WorkflowExecution {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.WorkflowExecution
	for _, e := range s.claimed {
		out = append(out, e)
	}
	return out
}

type call struct {
	kind  string
	arg   string
	depth int
}

type fakeExecutor struct {
	calls    []call
	failKind string
	onSet    func(ctx context.Context)
}

func (f *fakeExecutor) record(ctx context.Context, kind, arg string) error {
	f.calls = append(f.calls, call{kind: kind, arg: arg, depth: event.DepthFrom(ctx)})
	if kind == f.failKind {
		return errors.New("boom")
	}
	return nil
}

func (f *fakeExecutor) SetField(ctx context.Context, actorID, taskID uuid.UUID, field string, value interface{}) error {
	err := f.record(ctx, "set_field", field)
	if f.onSet != nil {
		f.onSet(ctx)
	}
	return err
}

func (f *fakeExecutor) Assign(ctx context.Context, actorID, taskID, userID uuid.UUID) error {
	return f.record(ctx, "assign", userID.String())
}

func (f *fakeExecutor) Unassign(ctx context.Context, actorID, taskID, userID uuid.UUID) error {
	return f.record(ctx, "unassign", userID.String())
}

func (f *fakeExecutor) CreateSubtask(ctx context.Context, actorID, taskID uuid.UUID, title string) error {
	return f.record(ctx, "create_subtask", title)
}

func (f *fakeExecutor) PostComment(ctx context.Context, actorID, taskID uuid.UUID, content string) error {
	return f.record(ctx, "post_comment", content)
}

func (f *fakeExecutor) Notify(ctx context.Context, actorID uuid.UUID, task *domain.Task, recipients []string, text string) error {
	return f.record(ctx, "notify", text)
}

func (f *fakeExecutor) SlackNotify(ctx context.Context, task *domain.Task, ev string) error {
	return f.record(ctx, "slack", ev)
}

func testTask(stage string) *domain.Task {
	t := &domain.Task{ProjectID: uuid.New(), Title: "Ship it", StageID: stage, Priority: domain.PriorityHigh}
	t.ID = uuid.New()
	return t
}

func moveEvent(ctx context.Context, from, to string) event.Event {
	after := testTask(to)
	before := after.Clone()
	before.StageID = from
	ev := event.New(ctx, domain.TriggerStatusChanged, after, uuid.New(), time.Now())
	ev.Before = before
	return ev
}

func newRule(projectID uuid.UUID, conds []domain.Condition, actions ...domain.Action) *domain.WorkflowRule {
	r := &domain.WorkflowRule{
		ProjectID:  projectID,
		Name:       "rule",
		Enabled:    true,
		Trigger:    domain.TriggerStatusChanged,
		Conditions: conds,
		Actions:    actions,
		CreatedBy:  uuid.New(),
	}
	r.ID = uuid.New()
	return r
}

func newTestEngine(store RuleStore, exec Executor) (*Engine, *metrics.Metrics) {
	m := metrics.NewWithRegistry(prometheus.NewRegistry(), zap.NewNop())
	return NewEngine(store, exec, m, zap.NewNop(), Config{MaxDepth: 3}), m
}

func TestEngine_RuleExecutesOncePerEvent(t *testing.T) {
	ctx := context.Background()
	ev := moveEvent(ctx, "in_progress", "done")
	assignee := uuid.New()
	rule := newRule(ev.ProjectID,
		[]domain.Condition{{Field: "stage_id", Op: domain.OpChangedTo, Value: "done"}},
		domain.Action{Type: domain.ActionPostComment, Template: "auto-review"},
		domain.Action{Type: domain.ActionAssign, UserID: &assignee},
	)
	store := newMemStore(rule)
	exec := &fakeExecutor{}
	engine, m := newTestEngine(store, exec)

	engine.Handle(ctx, ev)
	engine.Handle(ctx, ev)

	execs := store.executions()
	require.Len(t, execs, 1)
	assert.True(t, execs[0].Success)
	assert.Equal(t, 2, execs[0].ActionsExecuted)
	assert.Equal(t, []call{
		{kind: "post_comment", arg: "auto-review", depth: 1},
		{kind: "assign", arg: assignee.String(), depth: 1},
	}, exec.calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AutomationExecutions.WithLabelValues("success")))
}

func TestEngine_ConditionMissIsNotRecorded(t *testing.T) {
	ctx := context.Background()
	ev := moveEvent(ctx, "todo", "in_progress")
	rule := newRule(ev.ProjectID,
		[]domain.Condition{{Field: "stage_id", Op: domain.OpChangedTo, Value: "done"}},
		domain.Action{Type: domain.ActionCreateSubtask, Title: "x"},
	)
	store := newMemStore(rule)
	exec := &fakeExecutor{}
	engine, _ := newTestEngine(store, exec)

	engine.Handle(ctx, ev)

	assert.Empty(t, store.executions())
	assert.Empty(t, exec.calls)
}

func TestEngine_FailedActionDoesNotStopTheRest(t *testing.T) {
	ctx := context.Background()
	ev := moveEvent(ctx, "todo", "done")
	rule := newRule(ev.ProjectID, nil,
		domain.Action{Type: domain.ActionCreateSubtask, Title: "check"},
		domain.Action{Type: domain.ActionSlackNotify, Event: "done"},
		domain.Action{Type: domain.ActionPostComment, Template: "moved {{task.title}}"},
	)
	store := newMemStore(rule)
	exec := &fakeExecutor{failKind: "create_subtask"}
	engine, m := newTestEngine(store, exec)

	engine.Handle(ctx, ev)

	execs := store.executions()
	require.Len(t, execs, 1)
	assert.False(t, execs[0].Success)
	assert.Equal(t, 2, execs[0].ActionsExecuted)
	assert.Contains(t, execs[0].ErrorMessage, "create_subtask")
	require.Len(t, exec.calls, 3)
	assert.Equal(t, "moved Ship it", exec.calls[2].arg)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AutomationExecutions.WithLabelValues("failure")))
}

func TestEngine_DisabledRulesAreSkipped(t *testing.T) {
	ctx := context.Background()
	ev := moveEvent(ctx, "todo", "done")
	rule := newRule(ev.ProjectID, nil, domain.Action{Type: domain.ActionSlackNotify, Event: "done"})
	rule.Enabled = false
	exec := &fakeExecutor{}
	engine, _ := newTestEngine(newMemStore(rule), exec)

	engine.Handle(ctx, ev)

	assert.Empty(t, exec.calls)
}

func TestEngine_RecursionStopsAtMaxDepth(t *testing.T) {
	ctx := context.Background()
	first := moveEvent(ctx, "todo", "review")
	rule := newRule(first.ProjectID, nil, domain.Action{Type: domain.ActionSetField, Field: "priority", Value: "urgent"})
	store := newMemStore(rule)
	exec := &fakeExecutor{}
	engine, m := newTestEngine(store, exec)

	// Every set_field raises a fresh status_changed event, re-entering the engine.
	exec.onSet = func(actx context.Context) {
		next := moveEvent(actx, "todo", "review")
		next.ProjectID = first.ProjectID
		engine.Handle(actx, next)
	}

	engine.Handle(ctx, first)

	require.Len(t, exec.calls, 4)
	for i, c := range exec.calls {
		assert.Equal(t, i+1, c.depth)
	}
	assert.Len(t, store.executions(), 4)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AutomationDropped))
}
