package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"project-workspace-api/internal/automation"
	"project-workspace-api/internal/database"
	"project-workspace-api/internal/domain"
	"project-workspace-api/internal/repository"
)

// Notifier is the part of the notification emitter rule actions use.
type Notifier interface {
	NotifyUsers(ctx context.Context, actorID uuid.UUID, task *domain.Task, userIDs []uuid.UUID, text string) error
	SlackNotify(ctx context.Context, task *domain.Task, label string) error
}

// AutomationExecutor carries out rule actions as commands of the rule's
// creator, with system rights: row filters are bypassed and approval is never granted.
type AutomationExecutor struct {
	tasks    *taskServiceImpl
	comments *commentServiceImpl
	notifier Notifier
}

var _ automation.Executor = (*AutomationExecutor)(nil)

func NewAutomationExecutor(
	rt *Runtime,
	tasks repository.TaskRepository,
	projects repository.ProjectRepository,
	members repository.MembershipRepository,
	comments repository.CommentRepository,
	activity repository.NotificationRepository,
	notifier Notifier,
) *AutomationExecutor {
	return &AutomationExecutor{
		tasks:    &taskServiceImpl{rt: rt, tasks: tasks, projects: projects, members: members, activity: activity},
		comments: newCommentService(rt, comments, tasks, projects, members, activity),
		notifier: notifier,
	}
}

func stringValue(field string, v interface{}) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("set_field %s: value must be a string, got %T", field, v)
	}
	return s, nil
}

func (x *AutomationExecutor) SetField(ctx context.Context, actorID, taskID uuid.UUID, field string, value interface{}) error {
	c := systemCaller(actorID)
	s, err := stringValue(field, value)
	if err != nil {
		return err
	}
	switch field {
	case "stage_id":
		_, err := x.tasks.move(ctx, c, taskID, s, nil)
		return err
	case "assignee":
		userID, err := uuid.Parse(s)
		if err != nil {
			return fmt.Errorf("set_field assignee: %w", err)
		}
		return x.tasks.assign(ctx, c, taskID, userID)
	case "priority":
		p := domain.Priority(s)
		if !p.Valid() {
			return fmt.Errorf("set_field priority: unknown priority %q", s)
		}
		return x.edit(ctx, c, taskID, func(t *domain.Task) bool {
			if t.Priority == p {
				return false
			}
			t.Priority = p
			return true
		})
	case "color":
		if s != "" && !domain.ValidTaskColor(s) {
			return fmt.Errorf("set_field color: %q is not in the palette", s)
		}
		return x.edit(ctx, c, taskID, func(t *domain.Task) bool {
			if s == "" {
				changed := t.Color != nil
				t.Color = nil
				return changed
			}
			if t.Color != nil && *t.Color == s {
				return false
			}
			t.Color = &s
			return true
		})
	case "tag_add":
		return x.edit(ctx, c, taskID, func(t *domain.Task) bool {
			if t.HasTag(s) {
				return false
			}
			t.Tags = append(t.Tags, s)
			return true
		})
	case "tag_remove":
		return x.edit(ctx, c, taskID, func(t *domain.Task) bool {
			if !t.HasTag(s) {
				return false
			}
			kept := t.Tags[:0]
			for _, tag := range t.Tags {
				if tag != s {
					kept = append(kept, tag)
				}
			}
			t.Tags = kept
			return true
		})
	}
	return fmt.Errorf("set_field: unsupported field %q", field)
}

// edit applies a single-field change through the regular update path.
func (x *AutomationExecutor) edit(ctx context.Context, c caller, taskID uuid.UUID, apply func(t *domain.Task) bool) error {
	_, err := x.tasks.patch(ctx, c, taskID, nil, func(_ *database.Tx, t *domain.Task) ([]string, error) {
		if !apply(t) {
			return nil, nil
		}
		return []string{"automation"}, nil
	})
	return err
}

func (x *AutomationExecutor) Assign(ctx context.Context, actorID, taskID, userID uuid.UUID) error {
	return x.tasks.assign(ctx, systemCaller(actorID), taskID, userID)
}

func (x *AutomationExecutor) Unassign(ctx context.Context, actorID, taskID, userID uuid.UUID) error {
	return x.tasks.unassign(ctx, systemCaller(actorID), taskID, userID)
}

func (x *AutomationExecutor) CreateSubtask(ctx context.Context, actorID, taskID uuid.UUID, title string) error {
	_, err := x.tasks.createSubtask(ctx, systemCaller(actorID), taskID, title, nil)
	return err
}

func (x *AutomationExecutor) PostComment(ctx context.Context, actorID, taskID uuid.UUID, content string) error {
	_, err := x.comments.add(ctx, systemCaller(actorID), taskID, content, nil, nil)
	return err
}

// Notify resolves recipients (assignees, creator, project_admins or user ids)
// and stores one automation notification per user.
func (x *AutomationExecutor) Notify(ctx context.Context, actorID uuid.UUID, task *domain.Task, recipients []string, text string) error {
	var userIDs []uuid.UUID
	for _, r := range recipients {
		switch r {
		case automation.RecipientAssignees:
			assignees, err := x.tasks.tasks.Assignees(ctx, task.ID)
			if err != nil {
				return database.ClassifyError(err)
			}
			userIDs = append(userIDs, assignees[task.ID]...)
		case automation.RecipientCreator:
			userIDs = append(userIDs, task.CreatedBy)
		case automation.RecipientProjectAdmins:
			admins, err := x.tasks.members.UserIDs(ctx, domain.ScopeProject, task.ProjectID, domain.RoleAdmin)
			if err != nil {
				return database.ClassifyError(err)
			}
			userIDs = append(userIDs, admins...)
		default:
			id, err := uuid.Parse(r)
			if err != nil {
				return fmt.Errorf("emit_notification: unknown recipient %q", r)
			}
			userIDs = append(userIDs, id)
		}
	}
	return x.notifier.NotifyUsers(ctx, actorID, task, uniqueIDs(userIDs), text)
}

func (x *AutomationExecutor) SlackNotify(ctx context.Context, task *domain.Task, event string) error {
	return x.notifier.SlackNotify(ctx, task, event)
}
