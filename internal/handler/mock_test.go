package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"project-workspace-api/internal/domain"
	"project-workspace-api/internal/dto"
	"project-workspace-api/internal/repository"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// setupTestRouter returns a router whose requests run as userID. A nil
// userID leaves the request unauthenticated.
func setupTestRouter(userID *uuid.UUID) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("request_id", "test-request")
		if userID != nil {
			c.Set("user_id", *userID)
		}
		c.Next()
	})
	return r
}

// MockTaskService is a mock implementation of TaskService
type MockTaskService struct {
	CreateTaskFunc       func(ctx context.Context, userID, projectID uuid.UUID, req *dto.CreateTaskRequest) (*dto.TaskResponse, error)
	GetTaskFunc          func(ctx context.Context, userID, taskID uuid.UUID) (*dto.TaskDetailResponse, error)
	ListTasksFunc        func(ctx context.Context, userID, projectID uuid.UUID, opts repository.TaskListOptions) ([]*dto.TaskResponse, error)
	UpdateTaskFunc       func(ctx context.Context, userID, taskID uuid.UUID, req *dto.UpdateTaskRequest) (*dto.TaskResponse, error)
	DeleteTaskFunc       func(ctx context.Context, userID, taskID uuid.UUID) error
	MoveTaskFunc         func(ctx context.Context, userID, taskID uuid.UUID, req *dto.MoveTaskRequest) (*dto.TaskResponse, error)
	ReorderStageFunc     func(ctx context.Context, userID, projectID uuid.UUID, stageID string, req *dto.ReorderStageRequest) error
	ApproveTaskFunc      func(ctx context.Context, userID, taskID uuid.UUID) (*dto.TaskResponse, error)
	RejectTaskFunc       func(ctx context.Context, userID, taskID uuid.UUID, req *dto.RejectTaskRequest) (*dto.TaskResponse, error)
	AssignTaskFunc       func(ctx context.Context, userID, taskID uuid.UUID, req *dto.AssignTaskRequest) error
	UnassignTaskFunc     func(ctx context.Context, userID, taskID, assigneeID uuid.UUID) error
	AddDependencyFunc    func(ctx context.Context, userID, taskID uuid.UUID, req *dto.AddDependencyRequest) (*domain.TaskDependency, error)
	RemoveDependencyFunc func(ctx context.Context, userID, taskID, blockingTaskID uuid.UUID) error
	CreateSubtaskFunc    func(ctx context.Context, userID, taskID uuid.UUID, req *dto.CreateSubtaskRequest) (*domain.Subtask, error)
	ToggleSubtaskFunc    func(ctx context.Context, userID, subtaskID uuid.UUID) (*domain.Subtask, error)
	DeleteSubtaskFunc    func(ctx context.Context, userID, subtaskID uuid.UUID) error
}

func (m *MockTaskService) CreateTask(ctx context.Context, userID, projectID uuid.UUID, req *dto.CreateTaskRequest) (*dto.TaskResponse, error) {
	if m.CreateTaskFunc != nil {
		return m.CreateTaskFunc(ctx, userID, projectID, req)
	}
	return &dto.TaskResponse{}, nil
}

func (m *MockTaskService) GetTask(ctx context.Context, userID, taskID uuid.UUID) (*dto.TaskDetailResponse, error) {
	if m.GetTaskFunc != nil {
		return m.GetTaskFunc(ctx, userID, taskID)
	}
	return &dto.TaskDetailResponse{}, nil
}

func (m *MockTaskService) ListTasks(ctx context.Context, userID, projectID uuid.UUID, opts repository.TaskListOptions) ([]*dto.TaskResponse, error) {
	if m.ListTasksFunc != nil {
		return m.ListTasksFunc(ctx, userID, projectID, opts)
	}
	return []*dto.TaskResponse{}, nil
}

func (m *MockTaskService) UpdateTask(ctx context.Context, userID, taskID uuid.UUID, req *dto.UpdateTaskRequest) (*dto.TaskResponse, error) {
	if m.UpdateTaskFunc != nil {
		return m.UpdateTaskFunc(ctx, userID, taskID, req)
	}
	return &dto.TaskResponse{}, nil
}

func (m *MockTaskService) DeleteTask(ctx context.Context, userID, taskID uuid.UUID) error {
	if m.DeleteTaskFunc != nil {
		return m.DeleteTaskFunc(ctx, userID, taskID)
	}
	return nil
}

func (m *MockTaskService) MoveTask(ctx context.Context, userID, taskID uuid.UUID, req *dto.MoveTaskRequest) (*dto.TaskResponse, error) {
	if m.MoveTaskFunc != nil {
		return m.MoveTaskFunc(ctx, userID, taskID, req)
	}
	return &dto.TaskResponse{}, nil
}

func (m *MockTaskService) ReorderStage(ctx context.Context, userID, projectID uuid.UUID, stageID string, req *dto.ReorderStageRequest) error {
	if m.ReorderStageFunc != nil {
		return m.ReorderStageFunc(ctx, userID, projectID, stageID, req)
	}
	return nil
}

func (m *MockTaskService) ApproveTask(ctx context.Context, userID, taskID uuid.UUID) (*dto.TaskResponse, error) {
	if m.ApproveTaskFunc != nil {
		return m.ApproveTaskFunc(ctx, userID, taskID)
	}
	return &dto.TaskResponse{}, nil
}

func (m *MockTaskService) RejectTask(ctx context.Context, userID, taskID uuid.UUID, req *dto.RejectTaskRequest) (*dto.TaskResponse, error) {
	if m.RejectTaskFunc != nil {
		return m.RejectTaskFunc(ctx, userID, taskID, req)
	}
	return &dto.TaskResponse{}, nil
}

func (m *MockTaskService) AssignTask(ctx context.Context, userID, taskID uuid.UUID, req *dto.AssignTaskRequest) error {
	if m.AssignTaskFunc != nil {
		return m.AssignTaskFunc(ctx, userID, taskID, req)
	}
	return nil
}

func (m *MockTaskService) UnassignTask(ctx context.Context, userID, taskID, assigneeID uuid.UUID) error {
	if m.UnassignTaskFunc != nil {
		return m.UnassignTaskFunc(ctx, userID, taskID, assigneeID)
	}
	return nil
}

func (m *MockTaskService) AddDependency(ctx context.Context, userID, taskID uuid.UUID, req *dto.AddDependencyRequest) (*domain.TaskDependency, error) {
	if m.AddDependencyFunc != nil {
		return m.AddDependencyFunc(ctx, userID, taskID, req)
	}
	return &domain.TaskDependency{}, nil
}

func (m *MockTaskService) RemoveDependency(ctx context.Context, userID, taskID, blockingTaskID uuid.UUID) error {
	if m.RemoveDependencyFunc != nil {
		return m.RemoveDependencyFunc(ctx, userID, taskID, blockingTaskID)
	}
	return nil
}

func (m *MockTaskService) CreateSubtask(ctx context.Context, userID, taskID uuid.UUID, req *dto.CreateSubtaskRequest) (*domain.Subtask, error) {
	if m.CreateSubtaskFunc != nil {
		return m.CreateSubtaskFunc(ctx, userID, taskID, req)
	}
	return &domain.Subtask{}, nil
}

func (m *MockTaskService) ToggleSubtask(ctx context.Context, userID, subtaskID uuid.UUID) (*domain.Subtask, error) {
	if m.ToggleSubtaskFunc != nil {
		return m.ToggleSubtaskFunc(ctx, userID, subtaskID)
	}
	return &domain.Subtask{}, nil
}

func (m *MockTaskService) DeleteSubtask(ctx context.Context, userID, subtaskID uuid.UUID) error {
	if m.DeleteSubtaskFunc != nil {
		return m.DeleteSubtaskFunc(ctx, userID, subtaskID)
	}
	return nil
}

// MockProjectService is a mock implementation of ProjectService
type MockProjectService struct {
	CreateProjectFunc           func(ctx context.Context, userID uuid.UUID, req *dto.CreateProjectRequest) (*dto.ProjectResponse, error)
	GetProjectFunc              func(ctx context.Context, userID, projectID uuid.UUID) (*dto.ProjectResponse, error)
	ListProjectsFunc            func(ctx context.Context, userID uuid.UUID, orgID *uuid.UUID, includeArchived bool) ([]*dto.ProjectResponse, error)
	UpdateProjectFunc           func(ctx context.Context, userID, projectID uuid.UUID, req *dto.UpdateProjectRequest) (*dto.ProjectResponse, error)
	ArchiveProjectFunc          func(ctx context.Context, userID, projectID uuid.UUID) (*dto.ProjectResponse, error)
	UnarchiveProjectFunc        func(ctx context.Context, userID, projectID uuid.UUID) (*dto.ProjectResponse, error)
	DeleteProjectFunc           func(ctx context.Context, userID, projectID uuid.UUID) error
	AddProjectMemberFunc        func(ctx context.Context, userID, projectID uuid.UUID, req *dto.AddMemberRequest) error
	UpdateProjectMemberRoleFunc func(ctx context.Context, userID, projectID, memberID uuid.UUID, req *dto.UpdateMemberRoleRequest) error
	RemoveProjectMemberFunc     func(ctx context.Context, userID, projectID, memberID uuid.UUID) error
	ListProjectMembersFunc      func(ctx context.Context, userID, projectID uuid.UUID) ([]*domain.ProjectMember, error)
	CreateMilestoneFunc         func(ctx context.Context, userID, projectID uuid.UUID, req *dto.CreateMilestoneRequest) (*domain.Milestone, error)
	ListMilestonesFunc          func(ctx context.Context, userID, projectID uuid.UUID) ([]*domain.Milestone, error)
	UpdateMilestoneFunc         func(ctx context.Context, userID, milestoneID uuid.UUID, req *dto.UpdateMilestoneRequest) (*domain.Milestone, error)
	DeleteMilestoneFunc         func(ctx context.Context, userID, milestoneID uuid.UUID) error
	ListActivityFunc            func(ctx context.Context, userID, projectID uuid.UUID, taskID *uuid.UUID, limit int) ([]*domain.ActivityLog, error)
}

func (m *MockProjectService) CreateProject(ctx context.Context, userID uuid.UUID, req *dto.CreateProjectRequest) (*dto.ProjectResponse, error) {
	if m.CreateProjectFunc != nil {
		return m.CreateProjectFunc(ctx, userID, req)
	}
	return &dto.ProjectResponse{}, nil
}

func (m *MockProjectService) GetProject(ctx context.Context, userID, projectID uuid.UUID) (*dto.ProjectResponse, error) {
	if m.GetProjectFunc != nil {
		return m.GetProjectFunc(ctx, userID, projectID)
	}
	return &dto.ProjectResponse{}, nil
}

func (m *MockProjectService) ListProjects(ctx context.Context, userID uuid.UUID, orgID *uuid.UUID, includeArchived bool) ([]*dto.ProjectResponse, error) {
	if m.ListProjectsFunc != nil {
		return m.ListProjectsFunc(ctx, userID, orgID, includeArchived)
	}
	return []*dto.ProjectResponse{}, nil
}

func (m *MockProjectService) UpdateProject(ctx context.Context, userID, projectID uuid.UUID, req *dto.UpdateProjectRequest) (*dto.ProjectResponse, error) {
	if m.UpdateProjectFunc != nil {
		return m.UpdateProjectFunc(ctx, userID, projectID, req)
	}
	return &dto.ProjectResponse{}, nil
}

func (m *MockProjectService) ArchiveProject(ctx context.Context, userID, projectID uuid.UUID) (*dto.ProjectResponse, error) {
	if m.ArchiveProjectFunc != nil {
		return m.ArchiveProjectFunc(ctx, userID, projectID)
	}
	return &dto.ProjectResponse{}, nil
}

func (m *MockProjectService) UnarchiveProject(ctx context.Context, userID, projectID uuid.UUID) (*dto.ProjectResponse, error) {
	if m.UnarchiveProjectFunc != nil {
		return m.UnarchiveProjectFunc(ctx, userID, projectID)
	}
	return &dto.ProjectResponse{}, nil
}

func (m *MockProjectService) DeleteProject(ctx context.Context, userID, projectID uuid.UUID) error {
	if m.DeleteProjectFunc != nil {
		return m.DeleteProjectFunc(ctx, userID, projectID)
	}
	return nil
}

func (m *MockProjectService) AddProjectMember(ctx context.Context, userID, projectID uuid.UUID, req *dto.AddMemberRequest) error {
	if m.AddProjectMemberFunc != nil {
		return m.AddProjectMemberFunc(ctx, userID, projectID, req)
	}
	return nil
}

func (m *MockProjectService) UpdateProjectMemberRole(ctx context.Context, userID, projectID, memberID uuid.UUID, req *dto.UpdateMemberRoleRequest) error {
	if m.UpdateProjectMemberRoleFunc != nil {
		return m.UpdateProjectMemberRoleFunc(ctx, userID, projectID, memberID, req)
	}
	return nil
}

func (m *MockProjectService) RemoveProjectMember(ctx context.Context, userID, projectID, memberID uuid.UUID) error {
	if m.RemoveProjectMemberFunc != nil {
		return m.RemoveProjectMemberFunc(ctx, userID, projectID, memberID)
	}
	return nil
}

func (m *MockProjectService) ListProjectMembers(ctx context.Context, userID, projectID uuid.UUID) ([]*domain.ProjectMember, error) {
	if m.ListProjectMembersFunc != nil {
		return m.ListProjectMembersFunc(ctx, userID, projectID)
	}
	return []*domain.ProjectMember{}, nil
}

func (m *MockProjectService) CreateMilestone(ctx context.Context, userID, projectID uuid.UUID, req *dto.CreateMilestoneRequest) (*domain.Milestone, error) {
	if m.CreateMilestoneFunc != nil {
		return m.CreateMilestoneFunc(ctx, userID, projectID, req)
	}
	return &domain.Milestone{}, nil
}

func (m *MockProjectService) ListMilestones(ctx context.Context, userID, projectID uuid.UUID) ([]*domain.Milestone, error) {
	if m.ListMilestonesFunc != nil {
		return m.ListMilestonesFunc(ctx, userID, projectID)
	}
	return []*domain.Milestone{}, nil
}

func (m *MockProjectService) UpdateMilestone(ctx context.Context, userID, milestoneID uuid.UUID, req *dto.UpdateMilestoneRequest) (*domain.Milestone, error) {
	if m.UpdateMilestoneFunc != nil {
		return m.UpdateMilestoneFunc(ctx, userID, milestoneID, req)
	}
	return &domain.Milestone{}, nil
}

func (m *MockProjectService) DeleteMilestone(ctx context.Context, userID, milestoneID uuid.UUID) error {
	if m.DeleteMilestoneFunc != nil {
		return m.DeleteMilestoneFunc(ctx, userID, milestoneID)
	}
	return nil
}

func (m *MockProjectService) ListActivity(ctx context.Context, userID, projectID uuid.UUID, taskID *uuid.UUID, limit int) ([]*domain.ActivityLog, error) {
	if m.ListActivityFunc != nil {
		return m.ListActivityFunc(ctx, userID, projectID, taskID, limit)
	}
	return []*domain.ActivityLog{}, nil
}

// MockOrganizationService is a mock implementation of OrganizationService
type MockOrganizationService struct {
	CreateOrganizationFunc       func(ctx context.Context, userID uuid.UUID, req *dto.CreateOrganizationRequest) (*dto.OrganizationResponse, error)
	EnsurePersonalWorkspaceFunc  func(ctx context.Context, userID uuid.UUID, displayName string) (*dto.OrganizationResponse, error)
	ListOrganizationsFunc        func(ctx context.Context, userID uuid.UUID) ([]*dto.OrganizationResponse, error)
	AddOrganizationMemberFunc    func(ctx context.Context, userID, orgID uuid.UUID, req *dto.AddMemberRequest) error
	RemoveOrganizationMemberFunc func(ctx context.Context, userID, orgID, memberID uuid.UUID) error
	CreateTeamFunc               func(ctx context.Context, userID, orgID uuid.UUID, req *dto.CreateTeamRequest) (*domain.Team, error)
	ListTeamsFunc                func(ctx context.Context, userID, orgID uuid.UUID) ([]*domain.Team, error)
	AddTeamMemberFunc            func(ctx context.Context, userID, teamID uuid.UUID, req *dto.AddMemberRequest) error
	RemoveTeamMemberFunc         func(ctx context.Context, userID, teamID, memberID uuid.UUID) error
}

func (m *MockOrganizationService) CreateOrganization(ctx context.Context, userID uuid.UUID, req *dto.CreateOrganizationRequest) (*dto.OrganizationResponse, error) {
	if m.CreateOrganizationFunc != nil {
		return m.CreateOrganizationFunc(ctx, userID, req)
	}
	return &dto.OrganizationResponse{}, nil
}

func (m *MockOrganizationService) EnsurePersonalWorkspace(ctx context.Context, userID uuid.UUID, displayName string) (*dto.OrganizationResponse, error) {
	if m.EnsurePersonalWorkspaceFunc != nil {
		return m.EnsurePersonalWorkspaceFunc(ctx, userID, displayName)
	}
	return &dto.OrganizationResponse{}, nil
}

func (m *MockOrganizationService) ListOrganizations(ctx context.Context, userID uuid.UUID) ([]*dto.OrganizationResponse, error) {
	if m.ListOrganizationsFunc != nil {
		return m.ListOrganizationsFunc(ctx, userID)
	}
	return []*dto.OrganizationResponse{}, nil
}

func (m *MockOrganizationService) AddOrganizationMember(ctx context.Context, userID, orgID uuid.UUID, req *dto.AddMemberRequest) error {
	if m.AddOrganizationMemberFunc != nil {
		return m.AddOrganizationMemberFunc(ctx, userID, orgID, req)
	}
	return nil
}

func (m *MockOrganizationService) RemoveOrganizationMember(ctx context.Context, userID, orgID, memberID uuid.UUID) error {
	if m.RemoveOrganizationMemberFunc != nil {
		return m.RemoveOrganizationMemberFunc(ctx, userID, orgID, memberID)
	}
	return nil
}

func (m *MockOrganizationService) CreateTeam(ctx context.Context, userID, orgID uuid.UUID, req *dto.CreateTeamRequest) (*domain.Team, error) {
	if m.CreateTeamFunc != nil {
		return m.CreateTeamFunc(ctx, userID, orgID, req)
	}
	return &domain.Team{}, nil
}

func (m *MockOrganizationService) ListTeams(ctx context.Context, userID, orgID uuid.UUID) ([]*domain.Team, error) {
	if m.ListTeamsFunc != nil {
		return m.ListTeamsFunc(ctx, userID, orgID)
	}
	return []*domain.Team{}, nil
}

func (m *MockOrganizationService) AddTeamMember(ctx context.Context, userID, teamID uuid.UUID, req *dto.AddMemberRequest) error {
	if m.AddTeamMemberFunc != nil {
		return m.AddTeamMemberFunc(ctx, userID, teamID, req)
	}
	return nil
}

func (m *MockOrganizationService) RemoveTeamMember(ctx context.Context, userID, teamID, memberID uuid.UUID) error {
	if m.RemoveTeamMemberFunc != nil {
		return m.RemoveTeamMemberFunc(ctx, userID, teamID, memberID)
	}
	return nil
}

// MockCommentService is a mock implementation of CommentService
type MockCommentService struct {
	AddCommentFunc    func(ctx context.Context, userID, taskID uuid.UUID, req *dto.CreateCommentRequest) (*domain.Comment, error)
	ListCommentsFunc  func(ctx context.Context, userID, taskID uuid.UUID) ([]*domain.Comment, error)
	DeleteCommentFunc func(ctx context.Context, userID, commentID uuid.UUID) error
}

func (m *MockCommentService) AddComment(ctx context.Context, userID, taskID uuid.UUID, req *dto.CreateCommentRequest) (*domain.Comment, error) {
	if m.AddCommentFunc != nil {
		return m.AddCommentFunc(ctx, userID, taskID, req)
	}
	return &domain.Comment{}, nil
}

func (m *MockCommentService) ListComments(ctx context.Context, userID, taskID uuid.UUID) ([]*domain.Comment, error) {
	if m.ListCommentsFunc != nil {
		return m.ListCommentsFunc(ctx, userID, taskID)
	}
	return []*domain.Comment{}, nil
}

func (m *MockCommentService) DeleteComment(ctx context.Context, userID, commentID uuid.UUID) error {
	if m.DeleteCommentFunc != nil {
		return m.DeleteCommentFunc(ctx, userID, commentID)
	}
	return nil
}

// MockTimeService is a mock implementation of TimeService
type MockTimeService struct {
	StartTimerFunc      func(ctx context.Context, userID, taskID uuid.UUID, req *dto.StartTimerRequest) (*domain.TimeEntry, error)
	StopTimerFunc       func(ctx context.Context, userID uuid.UUID) (*domain.TimeEntry, error)
	RunningTimerFunc    func(ctx context.Context, userID uuid.UUID) (*domain.TimeEntry, error)
	LogTimeFunc         func(ctx context.Context, userID, taskID uuid.UUID, req *dto.LogTimeRequest) (*domain.TimeEntry, error)
	ListTimeEntriesFunc func(ctx context.Context, userID, taskID uuid.UUID) ([]*domain.TimeEntry, error)
}

func (m *MockTimeService) StartTimer(ctx context.Context, userID, taskID uuid.UUID, req *dto.StartTimerRequest) (*domain.TimeEntry, error) {
	if m.StartTimerFunc != nil {
		return m.StartTimerFunc(ctx, userID, taskID, req)
	}
	return &domain.TimeEntry{}, nil
}

func (m *MockTimeService) StopTimer(ctx context.Context, userID uuid.UUID) (*domain.TimeEntry, error) {
	if m.StopTimerFunc != nil {
		return m.StopTimerFunc(ctx, userID)
	}
	return &domain.TimeEntry{}, nil
}

func (m *MockTimeService) RunningTimer(ctx context.Context, userID uuid.UUID) (*domain.TimeEntry, error) {
	if m.RunningTimerFunc != nil {
		return m.RunningTimerFunc(ctx, userID)
	}
	return &domain.TimeEntry{}, nil
}

func (m *MockTimeService) LogTime(ctx context.Context, userID, taskID uuid.UUID, req *dto.LogTimeRequest) (*domain.TimeEntry, error) {
	if m.LogTimeFunc != nil {
		return m.LogTimeFunc(ctx, userID, taskID, req)
	}
	return &domain.TimeEntry{}, nil
}

func (m *MockTimeService) ListTimeEntries(ctx context.Context, userID, taskID uuid.UUID) ([]*domain.TimeEntry, error) {
	if m.ListTimeEntriesFunc != nil {
		return m.ListTimeEntriesFunc(ctx, userID, taskID)
	}
	return []*domain.TimeEntry{}, nil
}

// MockNotificationService is a mock implementation of NotificationService
type MockNotificationService struct {
	ListNotificationsFunc func(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) (*dto.NotificationListResponse, error)
	MarkReadFunc          func(ctx context.Context, userID, notificationID uuid.UUID) error
	MarkAllReadFunc       func(ctx context.Context, userID uuid.UUID) (*dto.MarkAllReadResponse, error)
}

func (m *MockNotificationService) ListNotifications(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) (*dto.NotificationListResponse, error) {
	if m.ListNotificationsFunc != nil {
		return m.ListNotificationsFunc(ctx, userID, unreadOnly, limit)
	}
	return &dto.NotificationListResponse{Items: []*domain.Notification{}}, nil
}

func (m *MockNotificationService) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	if m.MarkReadFunc != nil {
		return m.MarkReadFunc(ctx, userID, notificationID)
	}
	return nil
}

func (m *MockNotificationService) MarkAllRead(ctx context.Context, userID uuid.UUID) (*dto.MarkAllReadResponse, error) {
	if m.MarkAllReadFunc != nil {
		return m.MarkAllReadFunc(ctx, userID)
	}
	return &dto.MarkAllReadResponse{}, nil
}

// MockWorkflowService is a mock implementation of WorkflowService
type MockWorkflowService struct {
	CreateRuleFunc     func(ctx context.Context, userID, projectID uuid.UUID, req *dto.CreateWorkflowRuleRequest) (*domain.WorkflowRule, error)
	EnableRuleFunc     func(ctx context.Context, userID, ruleID uuid.UUID, enabled bool) (*domain.WorkflowRule, error)
	ListRulesFunc      func(ctx context.Context, userID, projectID uuid.UUID) ([]*domain.WorkflowRule, error)
	ListExecutionsFunc func(ctx context.Context, userID, ruleID uuid.UUID, limit int) ([]*domain.WorkflowExecution, error)
	DeleteRuleFunc     func(ctx context.Context, userID, ruleID uuid.UUID) error
}

func (m *MockWorkflowService) CreateRule(ctx context.Context, userID, projectID uuid.UUID, req *dto.CreateWorkflowRuleRequest) (*domain.WorkflowRule, error) {
	if m.CreateRuleFunc != nil {
		return m.CreateRuleFunc(ctx, userID, projectID, req)
	}
	return &domain.WorkflowRule{}, nil
}

func (m *MockWorkflowService) EnableRule(ctx context.Context, userID, ruleID uuid.UUID, enabled bool) (*domain.WorkflowRule, error) {
	if m.EnableRuleFunc != nil {
		return m.EnableRuleFunc(ctx, userID, ruleID, enabled)
	}
	return &domain.WorkflowRule{Enabled: enabled}, nil
}

func (m *MockWorkflowService) ListRules(ctx context.Context, userID, projectID uuid.UUID) ([]*domain.WorkflowRule, error) {
	if m.ListRulesFunc != nil {
		return m.ListRulesFunc(ctx, userID, projectID)
	}
	return []*domain.WorkflowRule{}, nil
}

func (m *MockWorkflowService) ListExecutions(ctx context.Context, userID, ruleID uuid.UUID, limit int) ([]*domain.WorkflowExecution, error) {
	if m.ListExecutionsFunc != nil {
		return m.ListExecutionsFunc(ctx, userID, ruleID, limit)
	}
	return []*domain.WorkflowExecution{}, nil
}

func (m *MockWorkflowService) DeleteRule(ctx context.Context, userID, ruleID uuid.UUID) error {
	if m.DeleteRuleFunc != nil {
		return m.DeleteRuleFunc(ctx, userID, ruleID)
	}
	return nil
}

// MockIntegrationService is a mock implementation of IntegrationService
type MockIntegrationService struct {
	CreateSlackIntegrationFunc func(ctx context.Context, userID, projectID uuid.UUID, req *dto.CreateSlackIntegrationRequest) (*dto.SlackIntegrationResponse, error)
	GetSlackIntegrationFunc    func(ctx context.Context, userID, projectID uuid.UUID) (*dto.SlackIntegrationResponse, error)
	DeleteSlackIntegrationFunc func(ctx context.Context, userID, projectID uuid.UUID) error
}

func (m *MockIntegrationService) CreateSlackIntegration(ctx context.Context, userID, projectID uuid.UUID, req *dto.CreateSlackIntegrationRequest) (*dto.SlackIntegrationResponse, error) {
	if m.CreateSlackIntegrationFunc != nil {
		return m.CreateSlackIntegrationFunc(ctx, userID, projectID, req)
	}
	return &dto.SlackIntegrationResponse{}, nil
}

func (m *MockIntegrationService) GetSlackIntegration(ctx context.Context, userID, projectID uuid.UUID) (*dto.SlackIntegrationResponse, error) {
	if m.GetSlackIntegrationFunc != nil {
		return m.GetSlackIntegrationFunc(ctx, userID, projectID)
	}
	return &dto.SlackIntegrationResponse{}, nil
}

func (m *MockIntegrationService) DeleteSlackIntegration(ctx context.Context, userID, projectID uuid.UUID) error {
	if m.DeleteSlackIntegrationFunc != nil {
		return m.DeleteSlackIntegrationFunc(ctx, userID, projectID)
	}
	return nil
}

// MockPinService is a mock implementation of PinService
type MockPinService struct {
	IssueFunc        func(ctx context.Context, email string) (*domain.ApprovalPin, error)
	VerifyFunc       func(ctx context.Context, email, pin string) error
	PurgeExpiredFunc func(ctx context.Context) (int64, error)
}

func (m *MockPinService) Issue(ctx context.Context, email string) (*domain.ApprovalPin, error) {
	if m.IssueFunc != nil {
		return m.IssueFunc(ctx, email)
	}
	return &domain.ApprovalPin{}, nil
}

func (m *MockPinService) Verify(ctx context.Context, email, pin string) error {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, email, pin)
	}
	return nil
}

func (m *MockPinService) PurgeExpired(ctx context.Context) (int64, error) {
	if m.PurgeExpiredFunc != nil {
		return m.PurgeExpiredFunc(ctx)
	}
	return 0, nil
}
