package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"project-workspace-api/internal/access"
	"project-workspace-api/internal/automation"
	"project-workspace-api/internal/broadcast"
	"project-workspace-api/internal/client"
	"project-workspace-api/internal/database"
	"project-workspace-api/internal/database/dbtest"
	"project-workspace-api/internal/domain"
	"project-workspace-api/internal/dto"
	"project-workspace-api/internal/event"
	"project-workspace-api/internal/lifecycle"
	"project-workspace-api/internal/notify"
	"project-workspace-api/internal/repository"
)

type recordingSlack struct {
	mu       sync.Mutex
	webhooks []client.SlackMessage
}

func (f *recordingSlack) PostWebhook(ctx context.Context, url string, msg client.SlackMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.webhooks = append(f.webhooks, msg)
	return nil
}

func (f *recordingSlack) PostMessage(ctx context.Context, token string, msg client.SlackMessage) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.webhooks = append(f.webhooks, msg)
	return "1700000000.0001", nil
}

func (f *recordingSlack) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.webhooks)
}

// testEnv wires every service over one migrated sqlite database, with an
// organization owned by owner and a project in which admin and member hold those roles.
type testEnv struct {
	db      *gorm.DB
	rt      *Runtime
	slack   *recordingSlack
	emitter *notify.Emitter

	orgs          OrganizationService
	projects      ProjectService
	tasks         TaskService
	comments      CommentService
	timers        TimeService
	workflows     WorkflowService
	integrations  IntegrationService
	notifications NotificationService

	taskRepo     repository.TaskRepository
	workflowRepo repository.WorkflowRepository
	timeRepo     repository.TimeEntryRepository

	org                  *dto.OrganizationResponse
	project              *dto.ProjectResponse
	owner, admin, member uuid.UUID
	outsider             uuid.UUID
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	db := dbtest.Open(t)
	logger := zap.NewNop()

	members := repository.NewMembershipRepository(db)
	orgRepo := repository.NewOrganizationRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	timeRepo := repository.NewTimeEntryRepository(db)
	workflowRepo := repository.NewWorkflowRepository(db)
	slackRepo := repository.NewSlackRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	e := &testEnv{
		db:           db,
		slack:        &recordingSlack{},
		taskRepo:     taskRepo,
		workflowRepo: workflowRepo,
		timeRepo:     timeRepo,
		owner:        uuid.New(),
		admin:        uuid.New(),
		member:       uuid.New(),
		outsider:     uuid.New(),
	}
	dispatcher := event.NewDispatcher(logger)
	e.rt = &Runtime{
		UoW:        database.NewUnitOfWork(db, 2, logger),
		Bus:        broadcast.NewBus(nil, logger),
		Dispatcher: dispatcher,
		Logger:     logger,
	}
	e.emitter = notify.NewEmitter(members, notificationRepo, projectRepo, slackRepo, e.slack, nil, logger,
		notify.Config{AppURL: "https://app.example.com", SlackTimeout: time.Second})
	executor := NewAutomationExecutor(e.rt, taskRepo, projectRepo, members, commentRepo, notificationRepo, e.emitter)
	engine := automation.NewEngine(workflowRepo, executor, nil, logger, automation.Config{MaxDepth: 3, RuleTimeout: 10 * time.Second})
	dispatcher.Subscribe(engine)
	dispatcher.Subscribe(e.emitter)

	validator := automation.NewValidator()
	e.orgs = NewOrganizationService(e.rt, orgRepo, members, taskRepo, notificationRepo)
	e.projects = NewProjectService(e.rt, projectRepo, orgRepo, members, taskRepo, notificationRepo, validator)
	e.tasks = NewTaskService(e.rt, taskRepo, projectRepo, members, notificationRepo)
	e.comments = NewCommentService(e.rt, commentRepo, taskRepo, projectRepo, members, notificationRepo)
	e.timers = NewTimeService(e.rt, timeRepo, taskRepo, projectRepo, members, notificationRepo)
	e.workflows = NewWorkflowService(e.rt, workflowRepo, projectRepo, members, validator)
	e.integrations = NewIntegrationService(e.rt, slackRepo, projectRepo, members)
	e.notifications = NewNotificationService(e.rt, notificationRepo)

	var err error
	e.org, err = e.orgs.CreateOrganization(ctx, e.owner, &dto.CreateOrganizationRequest{Name: "Acme"})
	require.NoError(t, err)
	for _, id := range []uuid.UUID{e.admin, e.member} {
		require.NoError(t, e.orgs.AddOrganizationMember(ctx, e.owner, e.org.ID, &dto.AddMemberRequest{UserID: id, Role: domain.RoleMember}))
	}
	e.project, err = e.projects.CreateProject(ctx, e.owner, &dto.CreateProjectRequest{
		OrgID: e.org.ID,
		Name:  "Launch",
		WorkflowStages: []domain.WorkflowStage{
			{ID: "todo", Name: "To do"},
			{ID: "in_progress", Name: "In progress"},
			{ID: "done", Name: "Done", IsDone: true},
		},
	})
	require.NoError(t, err)
	require.NoError(t, e.projects.AddProjectMember(ctx, e.owner, e.project.ID, &dto.AddMemberRequest{UserID: e.admin, Role: domain.RoleAdmin}))
	require.NoError(t, e.projects.AddProjectMember(ctx, e.owner, e.project.ID, &dto.AddMemberRequest{UserID: e.member, Role: domain.RoleMember}))
	return e
}

func (e *testEnv) createTask(t *testing.T, by uuid.UUID, title, stage string) *dto.TaskResponse {
	t.Helper()
	task, err := e.tasks.CreateTask(context.Background(), by, e.project.ID, &dto.CreateTaskRequest{Title: title, StageID: stage})
	require.NoError(t, err)
	return task
}

func (e *testEnv) reload(t *testing.T, id uuid.UUID) *domain.Task {
	t.Helper()
	task, err := e.taskRepo.FindByID(context.Background(), access.System(), id)
	require.NoError(t, err)
	return task
}

// settle waits for asynchronous Slack deliveries.
func (e *testEnv) settle(t *testing.T) {
	t.Helper()
	require.NoError(t, e.emitter.Wait(context.Background()))
}

func (e *testEnv) inbox(t *testing.T, user uuid.UUID) []*domain.Notification {
	t.Helper()
	list, err := e.notifications.ListNotifications(context.Background(), user, false, 0)
	require.NoError(t, err)
	return list.Items
}

func (e *testEnv) stageOrder(t *testing.T, stage string) []uuid.UUID {
	t.Helper()
	order, err := e.taskRepo.StageOrder(context.Background(), e.project.ID, stage)
	require.NoError(t, err)
	return order
}

// checkInvariants asserts the stage and approval invariants for every task of the project.
func (e *testEnv) checkInvariants(t *testing.T) {
	t.Helper()
	var project domain.Project
	require.NoError(t, e.db.First(&project, "id = ?", e.project.ID).Error)
	var tasks []*domain.Task
	require.NoError(t, e.db.Where("project_id = ?", e.project.ID).Find(&tasks).Error)
	for _, task := range tasks {
		require.NoError(t, lifecycle.CheckInvariants(task, project.Stages()), task.Title)
	}
}
