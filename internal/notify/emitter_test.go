package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"project-workspace-api/internal/client"
	"project-workspace-api/internal/database/dbtest"
	"project-workspace-api/internal/domain"
	"project-workspace-api/internal/event"
	"project-workspace-api/internal/repository"
)

type fakeSlack struct {
	mu       sync.Mutex
	webhooks []client.SlackMessage
	posts    []client.SlackMessage
}

func (f *fakeSlack) PostWebhook(ctx context.Context, url string, msg client.SlackMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.webhooks = append(f.webhooks, msg)
	return nil
}

func (f *fakeSlack) PostMessage(ctx context.Context, token string, msg client.SlackMessage) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts = append(f.posts, msg)
	return "1700000000.0001", nil
}

type env struct {
	db            *gorm.DB
	emitter       *Emitter
	slack         *fakeSlack
	notifications repository.NotificationRepository
	integrations  repository.SlackRepository
	project       *domain.Project
	owner, admin  uuid.UUID
	member        uuid.UUID
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	db := dbtest.Open(t)
	members := repository.NewMembershipRepository(db)
	orgs := repository.NewOrganizationRepository(db)
	projects := repository.NewProjectRepository(db)

	e := &env{
		db:            db,
		slack:         &fakeSlack{},
		notifications: repository.NewNotificationRepository(db),
		integrations:  repository.NewSlackRepository(db),
		owner:         uuid.New(),
		admin:         uuid.New(),
		member:        uuid.New(),
	}
	org := &domain.Organization{Name: "Acme", Slug: "acme", CreatedBy: e.owner}
	require.NoError(t, orgs.Create(ctx, org))
	e.project = &domain.Project{
		OrgID:          org.ID,
		Name:           "Launch",
		Status:         domain.ProjectStatusActive,
		WorkflowStages: datatypes.JSONSlice[domain.WorkflowStage](domain.DefaultStages()),
		CreatedBy:      e.owner,
	}
	require.NoError(t, projects.Create(ctx, e.project))
	require.NoError(t, members.Add(ctx, domain.ScopeProject, e.project.ID, e.owner, domain.RoleOwner, e.owner))
	require.NoError(t, members.Add(ctx, domain.ScopeProject, e.project.ID, e.admin, domain.RoleAdmin, e.owner))
	require.NoError(t, members.Add(ctx, domain.ScopeProject, e.project.ID, e.member, domain.RoleMember, e.owner))

	e.emitter = NewEmitter(members, e.notifications, projects, e.integrations, e.slack, nil, zap.NewNop(),
		Config{AppURL: "https://app.example.com", SlackTimeout: time.Second})
	return e
}

func (e *env) task() *domain.Task {
	t := &domain.Task{ProjectID: e.project.ID, Title: "X", StageID: "done", CreatedBy: e.member, MovedToDoneBy: &e.member}
	t.ID = uuid.New()
	return t
}

func (e *env) handle(t *testing.T, ev event.Event) {
	t.Helper()
	e.emitter.Handle(context.Background(), ev)
	require.NoError(t, e.emitter.Wait(context.Background()))
}

func (e *env) inbox(t *testing.T, user uuid.UUID) []*domain.Notification {
	t.Helper()
	out, err := e.notifications.ListForUser(context.Background(), user, false, 50)
	require.NoError(t, err)
	return out
}

func TestApproval_NotifiesStakeholderOnceAndPostsSlack(t *testing.T) {
	e := newEnv(t)
	hook := "https://hooks.slack.com/services/T/B/x"
	require.NoError(t, e.integrations.Create(context.Background(), &domain.SlackIntegration{
		ProjectID: e.project.ID, WebhookURL: &hook, IsActive: true, NotifyApprovals: true, CreatedBy: e.owner,
	}))

	task := e.task()
	task.ApprovalStatus = domain.ApprovalApproved
	e.handle(t, event.New(context.Background(), domain.TriggerTaskApproved, task, e.admin, time.Now()))

	inbox := e.inbox(t, e.member)
	require.Len(t, inbox, 1)
	assert.Equal(t, domain.NotificationTaskApproved, inbox[0].Type)
	assert.Equal(t, e.admin, *inbox[0].ActorID)
	assert.Empty(t, e.inbox(t, e.admin))

	require.Len(t, e.slack.webhooks, 1)
	assert.Equal(t, "Task approved: X", e.slack.webhooks[0].Text)
}

func TestPending_NotifiesProjectAdmins(t *testing.T) {
	e := newEnv(t)
	ev := event.New(context.Background(), domain.TriggerStatusChanged, e.task(), e.member, time.Now())
	ev.EnteredPending = true

	e.handle(t, ev)

	for _, id := range []uuid.UUID{e.owner, e.admin} {
		inbox := e.inbox(t, id)
		require.Len(t, inbox, 1)
		assert.Equal(t, domain.NotificationApprovalRequest, inbox[0].Type)
	}
	assert.Empty(t, e.inbox(t, e.member))
	assert.Empty(t, e.slack.webhooks, "no integration configured")
}

func TestComment_MentionsAndAssignees(t *testing.T) {
	e := newEnv(t)
	task := e.task()
	ev := event.New(context.Background(), domain.TriggerCommentAdded, task, e.member, time.Now())
	ev.Comment = &domain.Comment{Content: "see this", Mentions: []uuid.UUID{e.admin}}
	ev.Assignees = []uuid.UUID{e.admin, e.owner, e.member}

	e.handle(t, ev)

	admin := e.inbox(t, e.admin)
	require.Len(t, admin, 1)
	assert.Equal(t, domain.NotificationMentioned, admin[0].Type)
	owner := e.inbox(t, e.owner)
	require.Len(t, owner, 1)
	assert.Equal(t, domain.NotificationCommentAdded, owner[0].Type)
	assert.Empty(t, e.inbox(t, e.member), "the author is never notified")
}

func TestBotToken_ThreadsSameDayMessages(t *testing.T) {
	e := newEnv(t)
	token, channel := "xoxb-1", "C1"
	require.NoError(t, e.integrations.Create(context.Background(), &domain.SlackIntegration{
		ProjectID: e.project.ID, AccessToken: &token, ChannelID: &channel, IsActive: true,
		NotifyStatusChanged: true, CreatedBy: e.owner,
	}))
	task := e.task()
	task.StageID = "review"
	before := task.Clone()
	before.StageID = "todo"

	for i := 0; i < 2; i++ {
		ev := event.New(context.Background(), domain.TriggerStatusChanged, task, e.member, time.Now())
		ev.Before = before
		e.handle(t, ev)
	}

	require.Len(t, e.slack.posts, 2)
	assert.Equal(t, "C1", e.slack.posts[0].Channel)
	assert.Empty(t, e.slack.posts[0].ThreadTS)
	assert.Equal(t, "1700000000.0001", e.slack.posts[1].ThreadTS)
}

func TestDisabledEventIsNotPosted(t *testing.T) {
	e := newEnv(t)
	hook := "https://hooks.slack.com/services/T/B/x"
	require.NoError(t, e.integrations.Create(context.Background(), &domain.SlackIntegration{
		ProjectID: e.project.ID, WebhookURL: &hook, IsActive: true, NotifyTaskCreated: false, CreatedBy: e.owner,
	}))

	e.handle(t, event.New(context.Background(), domain.TriggerTaskCreated, e.task(), e.member, time.Now()))

	assert.Empty(t, e.slack.webhooks)
}

func TestMessage_RejectionTemplate(t *testing.T) {
	task := &domain.Task{Title: "X", StageID: "todo"}
	reason := "incomplete"
	task.RejectionReason = &reason
	p := &domain.Project{Name: "Launch", WorkflowStages: datatypes.JSONSlice[domain.WorkflowStage](domain.DefaultStages())}

	msg, ok := Message(event.Event{Trigger: domain.TriggerTaskRejected, After: task}, p, "https://x")
	require.True(t, ok)
	assert.Equal(t, "Task rejected: X", msg.Text)
	assert.Contains(t, msg.Blocks[1].Fields[0].Text, "incomplete")
	assert.Contains(t, msg.Blocks[1].Fields[1].Text, "To Do")

	_, ok = Message(event.Event{Trigger: domain.TriggerTaskUpdated, After: task}, p, "https://x")
	assert.False(t, ok)
}
