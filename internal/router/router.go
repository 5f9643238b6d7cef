package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"project-workspace-api/internal/automation"
	"project-workspace-api/internal/broadcast"
	"project-workspace-api/internal/client"
	"project-workspace-api/internal/database"
	"project-workspace-api/internal/event"
	"project-workspace-api/internal/handler"
	"project-workspace-api/internal/identity"
	"project-workspace-api/internal/metrics"
	"project-workspace-api/internal/middleware"
	"project-workspace-api/internal/notify"
	"project-workspace-api/internal/repository"
	"project-workspace-api/internal/service"
)

// Config holds everything the HTTP surface is built from. Zero durations and
// limits fall back to the service defaults.
type Config struct {
	DB        *gorm.DB
	Redis     *redis.Client
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
	Validator identity.Validator
	Bus       *broadcast.Bus
	Slack     client.SlackClient
	PinSender service.PinSender

	BasePath       string
	CORSOrigins    []string
	RequestTimeout time.Duration
	SwaggerEnabled bool

	AppURL         string
	DBRetryMax     int
	AutomationMax  int
	RuleTimeout    time.Duration
	SlackTimeout   time.Duration
	PinTTL         time.Duration
	PinMaxAttempts int
}

// Services is the wired command layer. Jobs and shutdown use the pieces
// beyond the service interfaces.
type Services struct {
	Organizations service.OrganizationService
	Projects      service.ProjectService
	Tasks         service.TaskService
	Comments      service.CommentService
	Timers        service.TimeService
	Workflows     service.WorkflowService
	Integrations  service.IntegrationService
	Notifications service.NotificationService
	Pins          service.PinService

	Dispatcher *event.Dispatcher
	Emitter    *notify.Emitter
	Bus        *broadcast.Bus

	Members     repository.MembershipRepository
	ProjectRepo repository.ProjectRepository
	TaskRepo    repository.TaskRepository
	TimeRepo    repository.TimeEntryRepository
}

// NewServices wires repositories, the automation engine, the notification
// emitter and every command service over cfg.DB.
func NewServices(cfg Config) *Services {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	bus := cfg.Bus
	if bus == nil {
		bus = broadcast.NewBus(cfg.Metrics, logger)
	}
	slack := cfg.Slack
	if slack == nil {
		slack = client.NewSlackClient("", cfg.SlackTimeout, logger, cfg.Metrics)
	}
	sender := cfg.PinSender
	if sender == nil {
		sender = service.LogPinSender{Logger: logger}
	}
	pinTTL := cfg.PinTTL
	if pinTTL <= 0 {
		pinTTL = 15 * time.Minute
	}
	pinAttempts := cfg.PinMaxAttempts
	if pinAttempts <= 0 {
		pinAttempts = 5
	}

	db := cfg.DB
	members := repository.NewMembershipRepository(db)
	orgRepo := repository.NewOrganizationRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	timeRepo := repository.NewTimeEntryRepository(db)
	workflowRepo := repository.NewWorkflowRepository(db)
	slackRepo := repository.NewSlackRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	pinRepo := repository.NewPinRepository(db)

	dispatcher := event.NewDispatcher(logger)
	rt := &service.Runtime{
		UoW:        database.NewUnitOfWork(db, cfg.DBRetryMax, logger),
		Bus:        bus,
		Dispatcher: dispatcher,
		Metrics:    cfg.Metrics,
		Logger:     logger,
	}

	emitter := notify.NewEmitter(members, notificationRepo, projectRepo, slackRepo, slack, cfg.Metrics, logger,
		notify.Config{AppURL: cfg.AppURL, SlackTimeout: cfg.SlackTimeout})
	executor := service.NewAutomationExecutor(rt, taskRepo, projectRepo, members, commentRepo, notificationRepo, emitter)
	engine := automation.NewEngine(workflowRepo, executor, cfg.Metrics, logger,
		automation.Config{MaxDepth: cfg.AutomationMax, RuleTimeout: cfg.RuleTimeout})

	// Rules run before notifications so a notification sees the rule's writes.
	dispatcher.Subscribe(engine)
	dispatcher.Subscribe(emitter)

	validator := automation.NewValidator()
	return &Services{
		Organizations: service.NewOrganizationService(rt, orgRepo, members, taskRepo, notificationRepo),
		Projects:      service.NewProjectService(rt, projectRepo, orgRepo, members, taskRepo, notificationRepo, validator),
		Tasks:         service.NewTaskService(rt, taskRepo, projectRepo, members, notificationRepo),
		Comments:      service.NewCommentService(rt, commentRepo, taskRepo, projectRepo, members, notificationRepo),
		Timers:        service.NewTimeService(rt, timeRepo, taskRepo, projectRepo, members, notificationRepo),
		Workflows:     service.NewWorkflowService(rt, workflowRepo, projectRepo, members, validator),
		Integrations:  service.NewIntegrationService(rt, slackRepo, projectRepo, members),
		Notifications: service.NewNotificationService(rt, notificationRepo),
		Pins:          service.NewPinService(rt, pinRepo, sender, pinTTL, pinAttempts),

		Dispatcher: dispatcher,
		Emitter:    emitter,
		Bus:        bus,

		Members:     members,
		ProjectRepo: projectRepo,
		TaskRepo:    taskRepo,
		TimeRepo:    timeRepo,
	}
}

// Setup wires the services and returns the engine.
func Setup(cfg Config) *gin.Engine {
	return SetupWithServices(cfg, NewServices(cfg))
}

// SetupWithServices builds the HTTP surface over already wired services.
func SetupWithServices(cfg Config, svc *Services) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.Metrics(cfg.Metrics))

	healthHandler := handler.NewHealthHandler(cfg.DB, cfg.Redis)
	organizationHandler := handler.NewOrganizationHandler(svc.Organizations)
	projectHandler := handler.NewProjectHandler(svc.Projects)
	taskHandler := handler.NewTaskHandler(svc.Tasks)
	collaborationHandler := handler.NewCollaborationHandler(svc.Comments, svc.Timers, svc.Notifications)
	automationHandler := handler.NewAutomationHandler(svc.Workflows, svc.Integrations)
	pinHandler := handler.NewPinHandler(svc.Pins)
	changeFeedHandler := handler.NewChangeFeedHandler(svc.Bus, svc.Members, cfg.Metrics, logger)

	// Probes and metrics (no auth)
	metricsHandler := gin.WrapH(promhttp.Handler())
	r.GET("/health", healthHandler.Health)
	r.GET("/ready", healthHandler.Ready)
	r.GET("/metrics", metricsHandler)

	api := r.Group(cfg.BasePath)
	if cfg.BasePath != "" && cfg.BasePath != "/" {
		api.GET("/health", healthHandler.Health)
		api.GET("/ready", healthHandler.Ready)
		api.GET("/metrics", metricsHandler)
	}
	if cfg.SwaggerEnabled {
		api.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// PIN issue and verify run before the caller has a session.
	pins := api.Group("/auth/pins", middleware.Deadline(cfg.RequestTimeout))
	{
		pins.POST("", pinHandler.IssuePin)
		pins.POST("/verify", pinHandler.VerifyPin)
	}

	authed := api.Group("", middleware.Auth(cfg.Validator))

	// The change feed outlives any request deadline.
	authed.GET("/changes/ws", changeFeedHandler.Subscribe)

	cmd := authed.Group("", middleware.Deadline(cfg.RequestTimeout))

	organizations := cmd.Group("/organizations")
	{
		organizations.POST("", organizationHandler.CreateOrganization)
		organizations.GET("", organizationHandler.ListOrganizations)
		organizations.POST("/bootstrap", organizationHandler.EnsurePersonalWorkspace)
		organizations.POST("/:orgId/members", organizationHandler.AddOrganizationMember)
		organizations.DELETE("/:orgId/members/:userId", organizationHandler.RemoveOrganizationMember)
		organizations.POST("/:orgId/teams", organizationHandler.CreateTeam)
		organizations.GET("/:orgId/teams", organizationHandler.ListTeams)
	}

	teams := cmd.Group("/teams")
	{
		teams.POST("/:teamId/members", organizationHandler.AddTeamMember)
		teams.DELETE("/:teamId/members/:userId", organizationHandler.RemoveTeamMember)
	}

	projects := cmd.Group("/projects")
	{
		projects.POST("", projectHandler.CreateProject)
		projects.GET("", projectHandler.ListProjects)
		projects.GET("/:projectId", projectHandler.GetProject)
		projects.PATCH("/:projectId", projectHandler.UpdateProject)
		projects.DELETE("/:projectId", projectHandler.DeleteProject)
		projects.POST("/:projectId/archive", projectHandler.ArchiveProject)
		projects.POST("/:projectId/unarchive", projectHandler.UnarchiveProject)

		projects.POST("/:projectId/members", projectHandler.AddProjectMember)
		projects.GET("/:projectId/members", projectHandler.ListProjectMembers)
		projects.PATCH("/:projectId/members/:userId", projectHandler.UpdateProjectMemberRole)
		projects.DELETE("/:projectId/members/:userId", projectHandler.RemoveProjectMember)

		projects.POST("/:projectId/milestones", projectHandler.CreateMilestone)
		projects.GET("/:projectId/milestones", projectHandler.ListMilestones)
		projects.GET("/:projectId/activity", projectHandler.ListActivity)

		projects.POST("/:projectId/tasks", taskHandler.CreateTask)
		projects.GET("/:projectId/tasks", taskHandler.ListTasks)
		projects.POST("/:projectId/stages/:stageId/reorder", taskHandler.ReorderStage)

		projects.POST("/:projectId/workflow-rules", automationHandler.CreateRule)
		projects.GET("/:projectId/workflow-rules", automationHandler.ListRules)

		projects.POST("/:projectId/slack-integration", automationHandler.CreateSlackIntegration)
		projects.GET("/:projectId/slack-integration", automationHandler.GetSlackIntegration)
		projects.DELETE("/:projectId/slack-integration", automationHandler.DeleteSlackIntegration)
	}

	milestones := cmd.Group("/milestones")
	{
		milestones.PATCH("/:milestoneId", projectHandler.UpdateMilestone)
		milestones.DELETE("/:milestoneId", projectHandler.DeleteMilestone)
	}

	tasks := cmd.Group("/tasks")
	{
		tasks.GET("/:taskId", taskHandler.GetTask)
		tasks.PATCH("/:taskId", taskHandler.UpdateTask)
		tasks.DELETE("/:taskId", taskHandler.DeleteTask)
		tasks.POST("/:taskId/move", taskHandler.MoveTask)
		tasks.POST("/:taskId/approve", taskHandler.ApproveTask)
		tasks.POST("/:taskId/reject", taskHandler.RejectTask)

		tasks.POST("/:taskId/assignees", taskHandler.AssignTask)
		tasks.DELETE("/:taskId/assignees/:userId", taskHandler.UnassignTask)
		tasks.POST("/:taskId/dependencies", taskHandler.AddDependency)
		tasks.DELETE("/:taskId/dependencies/:blockingTaskId", taskHandler.RemoveDependency)
		tasks.POST("/:taskId/subtasks", taskHandler.CreateSubtask)

		tasks.POST("/:taskId/comments", collaborationHandler.AddComment)
		tasks.GET("/:taskId/comments", collaborationHandler.ListComments)
		tasks.POST("/:taskId/timer/start", collaborationHandler.StartTimer)
		tasks.POST("/:taskId/time-entries", collaborationHandler.LogTime)
		tasks.GET("/:taskId/time-entries", collaborationHandler.ListTimeEntries)
	}

	subtasks := cmd.Group("/subtasks")
	{
		subtasks.POST("/:subtaskId/toggle", taskHandler.ToggleSubtask)
		subtasks.DELETE("/:subtaskId", taskHandler.DeleteSubtask)
	}

	cmd.DELETE("/comments/:commentId", collaborationHandler.DeleteComment)

	timer := cmd.Group("/timer")
	{
		timer.GET("", collaborationHandler.RunningTimer)
		timer.POST("/stop", collaborationHandler.StopTimer)
	}

	notifications := cmd.Group("/notifications")
	{
		notifications.GET("", collaborationHandler.ListNotifications)
		notifications.POST("/read-all", collaborationHandler.MarkAllNotificationsRead)
		notifications.POST("/:notificationId/read", collaborationHandler.MarkNotificationRead)
	}

	rules := cmd.Group("/workflow-rules")
	{
		rules.PATCH("/:ruleId", automationHandler.SetRuleEnabled)
		rules.DELETE("/:ruleId", automationHandler.DeleteRule)
		rules.GET("/:ruleId/executions", automationHandler.ListExecutions)
	}

	return r
}
