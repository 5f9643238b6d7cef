package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"project-workspace-api/internal/domain"
	"project-workspace-api/internal/dto"
	"project-workspace-api/internal/response"
)

func TestCreateOrganization_UniqueSlugs(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	assert.Equal(t, "acme", e.org.Slug)
	assert.Equal(t, domain.RoleOwner, e.org.Role)

	second, err := e.orgs.CreateOrganization(ctx, e.admin, &dto.CreateOrganizationRequest{Name: "ACME!"})
	require.NoError(t, err)
	assert.Equal(t, "acme-2", second.Slug)

	_, err = e.orgs.CreateOrganization(ctx, e.admin, &dto.CreateOrganizationRequest{Name: "Other", Slug: "acme"})
	assert.ErrorIs(t, err, &response.AppError{Code: response.ErrCodeConflict, Reason: response.ReasonSlugTaken})

	orgs, err := e.orgs.ListOrganizations(ctx, e.admin)
	require.NoError(t, err)
	assert.Len(t, orgs, 2)
}

func TestEnsurePersonalWorkspace_Idempotent(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	user := uuid.New()

	first, err := e.orgs.EnsurePersonalWorkspace(ctx, user, "Dana Lee")
	require.NoError(t, err)
	again, err := e.orgs.EnsurePersonalWorkspace(ctx, user, "Dana Lee")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, domain.RoleOwner, again.Role)
}

func TestOrganizationMembers(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	err := e.orgs.AddOrganizationMember(ctx, e.owner, e.org.ID, &dto.AddMemberRequest{UserID: e.member, Role: domain.RoleMember})
	assert.ErrorIs(t, err, &response.AppError{Code: response.ErrCodeConflict, Reason: response.ReasonAlreadyMember})

	err = e.orgs.AddOrganizationMember(ctx, e.member, e.org.ID, &dto.AddMemberRequest{UserID: uuid.New(), Role: domain.RoleMember})
	assert.ErrorIs(t, err, response.ErrForbidden)

	err = e.orgs.RemoveOrganizationMember(ctx, e.owner, e.org.ID, e.owner)
	assert.ErrorIs(t, err, response.ErrLastOwner)

	require.NoError(t, e.orgs.RemoveOrganizationMember(ctx, e.member, e.org.ID, e.member))
	orgs, err := e.orgs.ListOrganizations(ctx, e.member)
	require.NoError(t, err)
	assert.Empty(t, orgs)
}

func TestRemoveOrganizationMember_RevokesTeamAndProjectAccess(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	team, err := e.orgs.CreateTeam(ctx, e.admin, e.org.ID, &dto.CreateTeamRequest{Name: "Platform"})
	require.NoError(t, err)
	require.NoError(t, e.orgs.AddTeamMember(ctx, e.admin, team.ID, &dto.AddMemberRequest{UserID: e.member, Role: domain.RoleMember}))
	task := e.createTask(t, e.owner, "X", "todo")
	require.NoError(t, e.tasks.AssignTask(ctx, e.owner, task.ID, &dto.AssignTaskRequest{UserID: e.member}))

	require.NoError(t, e.orgs.RemoveOrganizationMember(ctx, e.owner, e.org.ID, e.member))

	_, err = e.projects.GetProject(ctx, e.member, e.project.ID)
	assert.ErrorIs(t, err, response.ErrNotFound)
	_, err = e.tasks.CreateTask(ctx, e.member, e.project.ID, &dto.CreateTaskRequest{Title: "still here"})
	assert.Error(t, err)
	_, err = e.orgs.ListTeams(ctx, e.member, e.org.ID)
	assert.Error(t, err)

	detail, err := e.tasks.GetTask(ctx, e.owner, task.ID)
	require.NoError(t, err)
	assert.Empty(t, detail.Assignees)

	var rows int64
	require.NoError(t, e.db.Table("team_members").Where("user_id = ?", e.member).Count(&rows).Error)
	assert.Zero(t, rows)
	require.NoError(t, e.db.Table("project_members").Where("user_id = ?", e.member).Count(&rows).Error)
	assert.Zero(t, rows)
}

func TestRemoveOrganizationMember_SoleProjectOwner(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	own, err := e.projects.CreateProject(ctx, e.member, &dto.CreateProjectRequest{OrgID: e.org.ID, Name: "Side"})
	require.NoError(t, err)

	err = e.orgs.RemoveOrganizationMember(ctx, e.owner, e.org.ID, e.member)
	assert.ErrorIs(t, err, response.ErrLastOwner)

	// Nothing was removed.
	got, err := e.projects.GetProject(ctx, e.member, own.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleOwner, got.Role)
	_, err = e.projects.GetProject(ctx, e.member, e.project.ID)
	require.NoError(t, err)
	orgs, err := e.orgs.ListOrganizations(ctx, e.member)
	require.NoError(t, err)
	assert.Len(t, orgs, 1)
}

func TestTeams(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	team, err := e.orgs.CreateTeam(ctx, e.admin, e.org.ID, &dto.CreateTeamRequest{Name: "Platform"})
	require.NoError(t, err)

	err = e.orgs.AddTeamMember(ctx, e.admin, team.ID, &dto.AddMemberRequest{UserID: e.outsider, Role: domain.RoleMember})
	assert.ErrorIs(t, err, response.ErrInvalid)
	require.NoError(t, e.orgs.AddTeamMember(ctx, e.admin, team.ID, &dto.AddMemberRequest{UserID: e.member, Role: domain.RoleMember}))

	teams, err := e.orgs.ListTeams(ctx, e.member, e.org.ID)
	require.NoError(t, err)
	require.Len(t, teams, 1)
	assert.Equal(t, "Platform", teams[0].Name)

	_, err = e.orgs.ListTeams(ctx, e.outsider, e.org.ID)
	assert.Error(t, err)

	require.NoError(t, e.orgs.RemoveTeamMember(ctx, e.member, team.ID, e.member))
	err = e.orgs.RemoveTeamMember(ctx, e.admin, team.ID, e.admin)
	assert.ErrorIs(t, err, response.ErrLastOwner)
}

func TestProjects_VisibleToMembersOnly(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	got, err := e.projects.GetProject(ctx, e.member, e.project.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleMember, got.Role)
	assert.True(t, got.RequireApproval)

	_, err = e.projects.GetProject(ctx, e.outsider, e.project.ID)
	assert.ErrorIs(t, err, response.ErrNotFound)

	list, err := e.projects.ListProjects(ctx, e.outsider, nil, false)
	require.NoError(t, err)
	assert.Empty(t, list)

	list, err = e.projects.ListProjects(ctx, e.member, &e.org.ID, false)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestAddProjectMember_RequiresOrgMembership(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	err := e.projects.AddProjectMember(ctx, e.owner, e.project.ID, &dto.AddMemberRequest{UserID: e.outsider, Role: domain.RoleMember})
	assert.ErrorIs(t, err, response.ErrInvalid)

	err = e.projects.AddProjectMember(ctx, e.admin, e.project.ID, &dto.AddMemberRequest{UserID: e.member, Role: domain.RoleOwner})
	assert.Error(t, err)

	members, err := e.projects.ListProjectMembers(ctx, e.member, e.project.ID)
	require.NoError(t, err)
	assert.Len(t, members, 3)
}

func TestRemoveProjectMember_DropsAssignments(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	task := e.createTask(t, e.owner, "X", "todo")
	require.NoError(t, e.tasks.AssignTask(ctx, e.owner, task.ID, &dto.AssignTaskRequest{UserID: e.member}))

	err := e.projects.RemoveProjectMember(ctx, e.member, e.project.ID, e.admin)
	assert.ErrorIs(t, err, response.ErrForbidden)

	require.NoError(t, e.projects.RemoveProjectMember(ctx, e.admin, e.project.ID, e.member))
	detail, err := e.tasks.GetTask(ctx, e.owner, task.ID)
	require.NoError(t, err)
	assert.Empty(t, detail.Assignees)

	_, err = e.tasks.GetTask(ctx, e.member, task.ID)
	assert.ErrorIs(t, err, response.ErrNotFound)
}

func TestUpdateProject_StageRemoval(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.createTask(t, e.member, "X", "in_progress")

	stages := []domain.WorkflowStage{
		{ID: "todo", Name: "To do"},
		{ID: "done", Name: "Done", IsDone: true},
	}
	_, err := e.projects.UpdateProject(ctx, e.admin, e.project.ID, &dto.UpdateProjectRequest{WorkflowStages: stages})
	assert.ErrorIs(t, err, &response.AppError{Code: response.ErrCodeConflict, Reason: response.ReasonStageNotEmpty})
	e.checkInvariants(t)

	name := "Launch v2"
	_, err = e.projects.UpdateProject(ctx, e.member, e.project.ID, &dto.UpdateProjectRequest{Name: &name})
	assert.ErrorIs(t, err, response.ErrForbidden)

	stages = append(stages, domain.WorkflowStage{ID: "in_progress", Name: "Doing"})
	updated, err := e.projects.UpdateProject(ctx, e.admin, e.project.ID, &dto.UpdateProjectRequest{Name: &name, WorkflowStages: stages})
	require.NoError(t, err)
	assert.Equal(t, "Launch v2", updated.Name)
	assert.Len(t, updated.WorkflowStages, 3)
	e.checkInvariants(t)
}

func TestUpdateProject_DoneFlagOfOccupiedStage(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	shipped := e.createTask(t, e.member, "shipped", "todo")
	_, err := e.tasks.MoveTask(ctx, e.member, shipped.ID, &dto.MoveTaskRequest{StageID: "done"})
	require.NoError(t, err)
	_, err = e.tasks.ApproveTask(ctx, e.admin, shipped.ID)
	require.NoError(t, err)
	e.createTask(t, e.member, "doing", "in_progress")
	e.settle(t)
	e.checkInvariants(t)

	stages := func(todoDone, doingDone, doneDone bool) *dto.UpdateProjectRequest {
		return &dto.UpdateProjectRequest{WorkflowStages: []domain.WorkflowStage{
			{ID: "todo", Name: "To do", IsDone: todoDone},
			{ID: "in_progress", Name: "In progress", IsDone: doingDone},
			{ID: "done", Name: "Done", IsDone: doneDone},
		}}
	}

	tests := []struct {
		name    string
		req     *dto.UpdateProjectRequest
		wantErr bool
	}{
		{name: "done stage with approved task becomes normal", req: stages(false, false, false), wantErr: true},
		{name: "normal stage with open task becomes done", req: stages(false, true, true), wantErr: true},
		{name: "empty stage becomes done", req: stages(true, false, true)},
		{name: "empty stage becomes normal again", req: stages(false, false, true)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.projects.UpdateProject(ctx, e.admin, e.project.ID, tt.req)
			if tt.wantErr {
				assert.ErrorIs(t, err, &response.AppError{Code: response.ErrCodeConflict, Reason: response.ReasonStageNotEmpty})
			} else {
				assert.NoError(t, err)
			}
			e.checkInvariants(t)
		})
	}

	got := e.reload(t, shipped.ID)
	assert.Equal(t, domain.ApprovalApproved, got.ApprovalStatus)
	assert.NotNil(t, got.CompletedAt)
}

func TestArchiveProject_Unarchive(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	_, err := e.projects.ArchiveProject(ctx, e.member, e.project.ID)
	assert.ErrorIs(t, err, response.ErrForbidden)

	archived, err := e.projects.ArchiveProject(ctx, e.admin, e.project.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ProjectStatusArchived, archived.Status)

	list, err := e.projects.ListProjects(ctx, e.member, nil, false)
	require.NoError(t, err)
	assert.Empty(t, list)
	list, err = e.projects.ListProjects(ctx, e.member, nil, true)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = e.projects.UnarchiveProject(ctx, e.admin, e.project.ID)
	require.NoError(t, err)
	e.createTask(t, e.member, "after", "todo")
}

func TestDeleteProject_OwnerOnly(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.createTask(t, e.member, "X", "todo")

	err := e.projects.DeleteProject(ctx, e.admin, e.project.ID)
	assert.ErrorIs(t, err, response.ErrForbidden)

	require.NoError(t, e.projects.DeleteProject(ctx, e.owner, e.project.ID))
	_, err = e.projects.GetProject(ctx, e.owner, e.project.ID)
	assert.ErrorIs(t, err, response.ErrNotFound)

	var n int64
	require.NoError(t, e.db.Model(&domain.Task{}).Where("project_id = ?", e.project.ID).Count(&n).Error)
	assert.Zero(t, n)
}

func TestMilestonesAndActivity(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	_, err := e.projects.CreateMilestone(ctx, e.member, e.project.ID, &dto.CreateMilestoneRequest{Name: "Beta", TargetDate: "2026-03-31"})
	assert.ErrorIs(t, err, response.ErrForbidden)

	m, err := e.projects.CreateMilestone(ctx, e.admin, e.project.ID, &dto.CreateMilestoneRequest{Name: "Beta", TargetDate: "2026-03-31"})
	require.NoError(t, err)
	name := "GA"
	m, err = e.projects.UpdateMilestone(ctx, e.admin, m.ID, &dto.UpdateMilestoneRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "GA", m.Name)

	list, err := e.projects.ListMilestones(ctx, e.member, e.project.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	require.NoError(t, e.projects.DeleteMilestone(ctx, e.admin, m.ID))

	task := e.createTask(t, e.member, "X", "todo")
	_, err = e.tasks.MoveTask(ctx, e.member, task.ID, &dto.MoveTaskRequest{StageID: "in_progress"})
	require.NoError(t, err)

	entries, err := e.projects.ListActivity(ctx, e.member, e.project.ID, &task.ID, 0)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, "task_moved", entries[0].Action)

	_, err = e.projects.ListActivity(ctx, e.outsider, e.project.ID, nil, 0)
	assert.ErrorIs(t, err, response.ErrNotFound)
}
