package automation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"project-workspace-api/internal/domain"
	"project-workspace-api/internal/event"
	"project-workspace-api/internal/metrics"
)

// RuleStore is the slice of the workflow repository the engine needs.
type RuleStore interface {
	EnabledRules(ctx context.Context, projectID uuid.UUID, trigger domain.Trigger) ([]*domain.WorkflowRule, error)
	ClaimExecution(ctx context.Context, exec *domain.WorkflowExecution) (bool, error)
	FinishExecution(ctx context.Context, exec *domain.WorkflowExecution) error
}

// Executor performs rule actions. Implementations run each call as its own
// command on behalf of actorID, and raise follow-up events at the depth carried by ctx.
type Executor interface {
	SetField(ctx context.Context, actorID, taskID uuid.UUID, field string, value interface{}) error
	Assign(ctx context.Context, actorID, taskID, userID uuid.UUID) error
	Unassign(ctx context.Context, actorID, taskID, userID uuid.UUID) error
	CreateSubtask(ctx context.Context, actorID, taskID uuid.UUID, title string) error
	PostComment(ctx context.Context, actorID, taskID uuid.UUID, content string) error
	Notify(ctx context.Context, actorID uuid.UUID, task *domain.Task, recipients []string, text string) error
	SlackNotify(ctx context.Context, task *domain.Task, event string) error
}

// Config tunes the engine.
type Config struct {
	MaxDepth    int
	RuleTimeout time.Duration
}

// Engine reacts to committed task events with the project's enabled rules.
type Engine struct {
	store    RuleStore
	executor Executor
	metrics  *metrics.Metrics
	logger   *zap.Logger
	cfg      Config
	now      func() time.Time
}

func NewEngine(store RuleStore, executor Executor, m *metrics.Metrics, logger *zap.Logger, cfg Config) *Engine {
	if cfg.MaxDepth < 1 {
		cfg.MaxDepth = 3
	}
	if cfg.RuleTimeout <= 0 {
		cfg.RuleTimeout = 30 * time.Second
	}
	return &Engine{
		store:    store,
		executor: executor,
		metrics:  m,
		logger:   logger,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Handle evaluates every enabled rule for ev's trigger. It never returns an
// error: failures are logged and land in the execution log.
func (e *Engine) Handle(ctx context.Context, ev event.Event) {
	if ev.Depth > e.cfg.MaxDepth {
		e.logger.Warn("Automation depth exceeded, dropping event",
			zap.String("trigger", string(ev.Trigger)),
			zap.String("task_id", ev.TaskID.String()),
			zap.Int("depth", ev.Depth),
		)
		e.metrics.IncrementAutomationDropped()
		return
	}
	if ev.After == nil {
		return
	}

	// Rules outlive the request that raised the event.
	ctx = context.WithoutCancel(ctx)

	rules, err := e.store.EnabledRules(ctx, ev.ProjectID, ev.Trigger)
	if err != nil {
		e.logger.Error("Failed to load workflow rules",
			zap.String("project_id", ev.ProjectID.String()),
			zap.Error(err),
		)
		return
	}
	for _, rule := range rules {
		if !Match(rule.Conditions, ev) {
			continue
		}
		e.run(ctx, rule, ev)
	}
}

func (e *Engine) run(ctx context.Context, rule *domain.WorkflowRule, ev event.Event) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.RuleTimeout)
	defer cancel()

	taskID := ev.TaskID
	exec := &domain.WorkflowExecution{
		RuleID:     rule.ID,
		EventKey:   ev.Key,
		ProjectID:  ev.ProjectID,
		TaskID:     &taskID,
		Trigger:    ev.Trigger,
		Depth:      ev.Depth,
		ExecutedAt: e.now(),
	}
	claimed, err := e.store.ClaimExecution(ctx, exec)
	if err != nil {
		e.logger.Error("Failed to record workflow execution",
			zap.String("rule_id", rule.ID.String()),
			zap.Error(err),
		)
		return
	}
	if !claimed {
		e.logger.Debug("Workflow rule already ran for event",
			zap.String("rule_id", rule.ID.String()),
			zap.String("event_key", ev.Key),
		)
		return
	}

	actx := event.WithDepth(ctx, ev.Depth+1)
	var failures []string
	for i, action := range rule.Actions {
		if err := e.apply(actx, rule, action, ev); err != nil {
			failures = append(failures, fmt.Sprintf("action %d (%s): %v", i, action.Type, err))
			continue
		}
		exec.ActionsExecuted++
	}
	exec.Success = len(failures) == 0
	exec.ErrorMessage = strings.Join(failures, "; ")

	if err := e.store.FinishExecution(ctx, exec); err != nil {
		e.logger.Error("Failed to finish workflow execution",
			zap.String("rule_id", rule.ID.String()),
			zap.Error(err),
		)
	}
	e.metrics.RecordAutomationExecution(exec.Success)

	if exec.Success {
		e.logger.Info("Workflow rule executed",
			zap.String("rule_id", rule.ID.String()),
			zap.String("task_id", ev.TaskID.String()),
			zap.Int("actions", exec.ActionsExecuted),
			zap.Int("depth", ev.Depth),
		)
	} else {
		e.logger.Warn("Workflow rule failed",
			zap.String("rule_id", rule.ID.String()),
			zap.String("task_id", ev.TaskID.String()),
			zap.String("error", exec.ErrorMessage),
		)
	}
}

func (e *Engine) apply(ctx context.Context, rule *domain.WorkflowRule, a domain.Action, ev event.Event) error {
	actor := rule.CreatedBy
	if (a.Type == domain.ActionAssign || a.Type == domain.ActionUnassign) && a.UserID == nil {
		return fmt.Errorf("%s without user_id", a.Type)
	}
	switch a.Type {
	case domain.ActionSetField:
		return e.executor.SetField(ctx, actor, ev.TaskID, a.Field, a.Value)
	case domain.ActionAssign:
		return e.executor.Assign(ctx, actor, ev.TaskID, *a.UserID)
	case domain.ActionUnassign:
		return e.executor.Unassign(ctx, actor, ev.TaskID, *a.UserID)
	case domain.ActionCreateSubtask:
		return e.executor.CreateSubtask(ctx, actor, ev.TaskID, a.Title)
	case domain.ActionPostComment:
		content, err := Render(a.Template, ev.After, actor)
		if err != nil {
			return err
		}
		return e.executor.PostComment(ctx, actor, ev.TaskID, content)
	case domain.ActionEmitNotification:
		return e.executor.Notify(ctx, actor, ev.After, a.Recipients, a.Text)
	case domain.ActionSlackNotify:
		return e.executor.SlackNotify(ctx, ev.After, a.Event)
	}
	return fmt.Errorf("unknown action type %q", a.Type)
}
