package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"project-workspace-api/internal/access"
	"project-workspace-api/internal/broadcast"
	"project-workspace-api/internal/database"
	"project-workspace-api/internal/domain"
	"project-workspace-api/internal/event"
	"project-workspace-api/internal/lifecycle"
	"project-workspace-api/internal/metrics"
	"project-workspace-api/internal/repository"
	"project-workspace-api/internal/response"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// Runtime is what every command shares: the unit of work, the change bus and
// the event dispatcher that feeds automation and notifications.
type Runtime struct {
	UoW        *database.UnitOfWork
	Bus        *broadcast.Bus
	Dispatcher *event.Dispatcher
	Metrics    *metrics.Metrics
	Logger     *zap.Logger
	Now        func() time.Time
}

func (r *Runtime) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now().UTC()
}

// caller is who a command runs for. System callers are automation rules and
// jobs: they bypass row filters and may move tasks but never approve.
type caller struct {
	id     uuid.UUID
	system bool
}

func userCaller(id uuid.UUID) caller {
	return caller{id: id}
}

func systemCaller(id uuid.UUID) caller {
	return caller{id: id, system: true}
}

func (c caller) filter() access.Filter {
	if c.system {
		return access.System()
	}
	return access.ForUser(c.id)
}

// outbox collects what a command emits. It is discarded when the transaction
// rolls back and published once it commits.
type outbox struct {
	changes []broadcast.Change
	events  []event.Event
}

func (o *outbox) change(table string, op broadcast.Op, rowID, projectID uuid.UUID, newRow, oldRow interface{}) {
	o.changes = append(o.changes, broadcast.NewChange(table, op, rowID, projectID, newRow, oldRow))
}

func (o *outbox) emit(ev event.Event) {
	o.events = append(o.events, ev)
}

// run executes fn as one atomic command. Changes are published after commit
// while the lock keys are still held, so subscribers see per-row commit order.
// Events are dispatched after the locks are released.
func (r *Runtime) run(ctx context.Context, lockKeys []string, fn func(tx *database.Tx, out *outbox) error) error {
	var committed *outbox
	err := r.UoW.Do(ctx, lockKeys, func(tx *database.Tx) error {
		out := &outbox{}
		if err := fn(tx, out); err != nil {
			return err
		}
		tx.AfterCommit(func() {
			for _, c := range out.changes {
				r.Bus.Publish(ctx, c)
			}
		})
		committed = out
		return nil
	})
	if err != nil {
		return err
	}
	if len(committed.events) > 0 {
		r.Dispatcher.Dispatch(ctx, committed.events...)
	}
	return nil
}

// authorize resolves the caller's project role inside tx and checks action.
func (r *Runtime) authorize(ctx context.Context, db *gorm.DB, members repository.MembershipRepository, c caller, scope domain.Scope, scopeID uuid.UUID, action access.Action) (domain.Role, error) {
	if c.system {
		return domain.RoleOwner, nil
	}
	role, err := access.NewEvaluator(members.WithTx(db)).Authorize(ctx, c.id, scope, scopeID, action)
	if err != nil {
		r.Logger.Warn("Access denied",
			zap.String("user_id", c.id.String()),
			zap.String("scope", string(scope)),
			zap.String("scope_id", scopeID.String()),
			zap.String("action", string(action)),
		)
		return "", err
	}
	return role, nil
}

func actorFor(c caller, role domain.Role) lifecycle.Actor {
	return lifecycle.Actor{ID: c.id, Role: role, System: c.system}
}

// notFound maps a missing row to NotFound naming the resource; other errors are classified.
func notFound(err error, resource string, id uuid.UUID) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return response.NewNotFoundError(resource+" not found", id.String())
	}
	return database.ClassifyError(err)
}

// conflictOnDuplicate turns a unique violation into a Conflict with reason.
func conflictOnDuplicate(err error, reason, message string) error {
	if database.IsUniqueViolation(err) {
		return response.NewConflictError(reason, message)
	}
	return database.ClassifyError(err)
}

func activity(projectID uuid.UUID, taskID *uuid.UUID, actorID uuid.UUID, action string, payload map[string]interface{}) *domain.ActivityLog {
	entry := &domain.ActivityLog{ProjectID: projectID, TaskID: taskID, ActorID: actorID, Action: action}
	if len(payload) > 0 {
		if raw, err := json.Marshal(payload); err == nil {
			entry.Payload = datatypes.JSON(raw)
		}
	}
	return entry
}

// Lock keys. Stage keys serialise positions inside one stage; task keys order
// the events of one task; timer keys serialise a user's running entry.
func projectKey(projectID uuid.UUID) string {
	return "project:" + projectID.String()
}

func membersKey(scope domain.Scope, scopeID uuid.UUID) string {
	return fmt.Sprintf("%s:%s/members", scope, scopeID)
}

func stageKey(projectID uuid.UUID, stageID string) string {
	return fmt.Sprintf("project:%s/stage:%s", projectID, stageID)
}

func taskKey(taskID uuid.UUID) string {
	return "task:" + taskID.String()
}

func timerKey(userID uuid.UUID) string {
	return "user:" + userID.String() + "/timer"
}
