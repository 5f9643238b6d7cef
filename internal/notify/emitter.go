// Package notify turns committed task events into in-app notifications and
// Slack messages. Failures are logged and never reach the caller.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"project-workspace-api/internal/access"
	"project-workspace-api/internal/client"
	"project-workspace-api/internal/domain"
	"project-workspace-api/internal/event"
	"project-workspace-api/internal/metrics"
	"project-workspace-api/internal/repository"
)

type Config struct {
	AppURL       string
	SlackTimeout time.Duration
}

// Emitter is the event handler for notifications.
type Emitter struct {
	members       repository.MembershipRepository
	notifications repository.NotificationRepository
	projects      repository.ProjectRepository
	integrations  repository.SlackRepository
	slack         client.SlackClient
	metrics       *metrics.Metrics
	logger        *zap.Logger
	cfg           Config
	now           func() time.Time

	wg sync.WaitGroup
}

func NewEmitter(
	members repository.MembershipRepository,
	notifications repository.NotificationRepository,
	projects repository.ProjectRepository,
	integrations repository.SlackRepository,
	slack client.SlackClient,
	m *metrics.Metrics,
	logger *zap.Logger,
	cfg Config,
) *Emitter {
	if cfg.SlackTimeout <= 0 {
		cfg.SlackTimeout = 5 * time.Second
	}
	return &Emitter{
		members:       members,
		notifications: notifications,
		projects:      projects,
		integrations:  integrations,
		slack:         slack,
		metrics:       m,
		logger:        logger,
		cfg:           cfg,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Handle writes one notification per recipient and schedules Slack delivery.
func (e *Emitter) Handle(ctx context.Context, ev event.Event) {
	if ev.After == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)

	notes, err := e.build(ctx, ev)
	if err != nil {
		e.logger.Error("Failed to resolve notification recipients",
			zap.String("trigger", string(ev.Trigger)),
			zap.String("task_id", ev.TaskID.String()),
			zap.Error(err),
		)
	} else {
		e.store(ctx, notes)
	}

	e.deliverAsync(ev)
}

// Wait blocks until every scheduled Slack delivery has finished or ctx ends.
func (e *Emitter) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Emitter) store(ctx context.Context, notes []*domain.Notification) {
	if len(notes) == 0 {
		return
	}
	if err := e.notifications.CreateBatch(ctx, notes); err != nil {
		e.logger.Error("Failed to store notifications", zap.Int("count", len(notes)), zap.Error(err))
		return
	}
	for _, n := range notes {
		e.metrics.RecordNotifications(string(n.Type), 1)
	}
}

// NotifyUsers stores an automation notification for each of userIDs.
func (e *Emitter) NotifyUsers(ctx context.Context, actorID uuid.UUID, task *domain.Task, userIDs []uuid.UUID, text string) error {
	notes := make([]*domain.Notification, 0, len(userIDs))
	for _, id := range uniq(userIDs) {
		notes = append(notes, e.note(id, task, actorID, domain.NotificationAutomation, task.Title, text))
	}
	if len(notes) == 0 {
		return nil
	}
	if err := e.notifications.CreateBatch(ctx, notes); err != nil {
		return err
	}
	e.metrics.RecordNotifications(string(domain.NotificationAutomation), len(notes))
	return nil
}

// SlackNotify posts a rule-requested message to the project's active integration.
func (e *Emitter) SlackNotify(ctx context.Context, task *domain.Task, label string) error {
	integ, project, err := e.integration(ctx, task.ProjectID)
	if err != nil {
		return err
	}
	if integ == nil || !integ.IsActive {
		return errors.New("project has no active slack integration")
	}
	ctx, cancel := context.WithTimeout(ctx, e.cfg.SlackTimeout)
	defer cancel()
	msg := CustomMessage(task, project, e.link(task), label)
	return e.post(ctx, integ, task.ID, e.now().Format("2006-01-02"), msg)
}

func (e *Emitter) build(ctx context.Context, ev event.Event) ([]*domain.Notification, error) {
	t := ev.After
	actor := ev.ActorID
	var out []*domain.Notification
	add := func(ids []uuid.UUID, kind domain.NotificationType, title, body string) {
		for _, id := range uniq(ids) {
			if id == actor {
				continue
			}
			out = append(out, e.note(id, t, actor, kind, title, body))
		}
	}

	switch {
	case ev.EnteredPending:
		admins, err := e.members.UserIDs(ctx, domain.ScopeProject, ev.ProjectID, domain.RoleAdmin)
		if err != nil {
			return nil, err
		}
		add(admins, domain.NotificationApprovalRequest, "Approval requested", t.Title)
	case ev.Trigger == domain.TriggerTaskApproved:
		add(stakeholders(t, ev.Assignees), domain.NotificationTaskApproved, "Task approved", t.Title)
	case ev.Trigger == domain.TriggerTaskRejected:
		body := t.Title
		if t.RejectionReason != nil {
			body = fmt.Sprintf("%s: %s", t.Title, *t.RejectionReason)
		}
		add(stakeholders(t, ev.Assignees), domain.NotificationTaskRejected, "Task rejected", body)
	case ev.Trigger == domain.TriggerTaskAssigned && ev.AssigneeID != nil:
		add([]uuid.UUID{*ev.AssigneeID}, domain.NotificationTaskAssigned, "You were assigned a task", t.Title)
	case ev.Trigger == domain.TriggerCommentAdded && ev.Comment != nil:
		mentioned := []uuid.UUID(ev.Comment.Mentions)
		add(mentioned, domain.NotificationMentioned, "You were mentioned", excerpt(ev.Comment.Content))
		var others []uuid.UUID
		for _, id := range ev.Assignees {
			if !contains(mentioned, id) {
				others = append(others, id)
			}
		}
		add(others, domain.NotificationCommentAdded, "New comment on "+t.Title, excerpt(ev.Comment.Content))
	case ev.Trigger == domain.TriggerDueSoon:
		recipients := ev.Assignees
		if len(recipients) == 0 {
			recipients = []uuid.UUID{t.CreatedBy}
		}
		// The sweep is a system actor, so nobody is excluded.
		actor = uuid.Nil
		add(recipients, domain.NotificationDueSoon, "Task due soon", t.Title)
	}
	return out, nil
}

// stakeholders are the people who care about an approval decision.
func stakeholders(t *domain.Task, assignees []uuid.UUID) []uuid.UUID {
	ids := []uuid.UUID{t.CreatedBy}
	if t.MovedToDoneBy != nil {
		ids = append(ids, *t.MovedToDoneBy)
	}
	return append(ids, assignees...)
}

func (e *Emitter) note(userID uuid.UUID, t *domain.Task, actorID uuid.UUID, kind domain.NotificationType, title, body string) *domain.Notification {
	projectID, taskID := t.ProjectID, t.ID
	n := &domain.Notification{
		UserID:    userID,
		ProjectID: &projectID,
		TaskID:    &taskID,
		Type:      kind,
		Title:     title,
		Body:      body,
		CreatedAt: e.now(),
	}
	if actorID != uuid.Nil {
		a := actorID
		n.ActorID = &a
	}
	return n
}

func (e *Emitter) link(t *domain.Task) string {
	return fmt.Sprintf("%s/projects/%s/tasks/%s", e.cfg.AppURL, t.ProjectID, t.ID)
}

func (e *Emitter) integration(ctx context.Context, projectID uuid.UUID) (*domain.SlackIntegration, *domain.Project, error) {
	integ, err := e.integrations.FindByProject(ctx, access.System(), projectID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	project, err := e.projects.FindByID(ctx, access.System(), projectID)
	if err != nil {
		return nil, nil, err
	}
	return integ, project, nil
}

func (e *Emitter) deliverAsync(ev event.Event) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), e.cfg.SlackTimeout)
		defer cancel()
		if err := e.deliver(ctx, ev); err != nil {
			e.logger.Warn("Slack delivery failed",
				zap.String("trigger", string(ev.Trigger)),
				zap.String("task_id", ev.TaskID.String()),
				zap.Error(err),
			)
		}
	}()
}

func (e *Emitter) deliver(ctx context.Context, ev event.Event) error {
	integ, project, err := e.integration(ctx, ev.ProjectID)
	if err != nil || integ == nil {
		return err
	}
	if !integ.Enabled(slackTrigger(ev)) {
		return nil
	}
	msg, ok := Message(ev, project, e.link(ev.After))
	if !ok {
		return nil
	}
	day := ev.OccurredAt.UTC().Format("2006-01-02")
	return e.post(ctx, integ, ev.TaskID, day, msg)
}

// post sends msg. Bot-token integrations thread same-day messages for a task.
func (e *Emitter) post(ctx context.Context, integ *domain.SlackIntegration, taskID uuid.UUID, day string, msg client.SlackMessage) error {
	if !integ.UsesBotToken() {
		if integ.WebhookURL == nil || *integ.WebhookURL == "" {
			return errors.New("slack integration has no delivery target")
		}
		return e.slack.PostWebhook(ctx, *integ.WebhookURL, msg)
	}

	msg.Channel = *integ.ChannelID
	thread, err := e.integrations.FindThread(ctx, integ.ID, taskID, day)
	if err != nil {
		e.logger.Warn("Failed to load slack thread", zap.Error(err))
	}
	if thread != nil {
		msg.ThreadTS = thread.ThreadTS
	}
	ts, err := e.slack.PostMessage(ctx, *integ.AccessToken, msg)
	if err != nil {
		return err
	}
	if thread == nil && ts != "" {
		if err := e.integrations.SaveThread(ctx, &domain.SlackThread{
			IntegrationID: integ.ID,
			TaskID:        taskID,
			Day:           day,
			ThreadTS:      ts,
		}); err != nil {
			e.logger.Warn("Failed to store slack thread", zap.Error(err))
		}
	}
	return nil
}

func uniq(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func contains(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
