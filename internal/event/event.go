// Package event carries committed task events from the command layer to the
// automation engine and the notification emitter.
package event

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"project-workspace-api/internal/domain"
)

// Event is one committed task event.
type Event struct {
	// Key identifies the triggering event; rules run at most once per key.
	Key        string
	Trigger    domain.Trigger
	ProjectID  uuid.UUID
	TaskID     uuid.UUID
	ActorID    uuid.UUID
	Depth      int
	OccurredAt time.Time

	// Before is nil for task_created and for events without a prior snapshot.
	Before          *domain.Task
	After           *domain.Task
	BeforeAssignees []uuid.UUID
	Assignees       []uuid.UUID

	AssigneeID     *uuid.UUID
	Comment        *domain.Comment
	EnteredPending bool
}

// New returns an event with a fresh key, stamped with the depth carried by ctx.
func New(ctx context.Context, trigger domain.Trigger, task *domain.Task, actorID uuid.UUID, now time.Time) Event {
	return Event{
		Key:        uuid.NewString(),
		Trigger:    trigger,
		ProjectID:  task.ProjectID,
		TaskID:     task.ID,
		ActorID:    actorID,
		Depth:      DepthFrom(ctx),
		OccurredAt: now,
		After:      task,
	}
}

type depthKey struct{}

// WithDepth marks ctx as running at automation re-entry depth d.
func WithDepth(ctx context.Context, d int) context.Context {
	return context.WithValue(ctx, depthKey{}, d)
}

// DepthFrom returns the re-entry depth of ctx; zero for user requests.
func DepthFrom(ctx context.Context) int {
	if d, ok := ctx.Value(depthKey{}).(int); ok {
		return d
	}
	return 0
}

// Handler consumes committed events.
type Handler interface {
	Handle(ctx context.Context, ev Event)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, ev Event)

func (f HandlerFunc) Handle(ctx context.Context, ev Event) {
	f(ctx, ev)
}

// Dispatcher delivers events to its handlers in subscription order.
// A panicking handler is logged and does not stop the others.
type Dispatcher struct {
	handlers []Handler
	logger   *zap.Logger
}

func NewDispatcher(logger *zap.Logger) *Dispatcher {
	return &Dispatcher{logger: logger}
}

// Subscribe registers h. It must be called before the first Dispatch.
func (d *Dispatcher) Subscribe(h Handler) {
	d.handlers = append(d.handlers, h)
}

func (d *Dispatcher) Dispatch(ctx context.Context, events ...Event) {
	for _, ev := range events {
		for _, h := range d.handlers {
			d.deliver(ctx, h, ev)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Event handler panicked",
				zap.String("trigger", string(ev.Trigger)),
				zap.String("task_id", ev.TaskID.String()),
				zap.Any("panic", r),
			)
		}
	}()
	h.Handle(ctx, ev)
}
