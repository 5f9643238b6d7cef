package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"project-workspace-api/internal/access"
	"project-workspace-api/internal/automation"
	"project-workspace-api/internal/broadcast"
	"project-workspace-api/internal/database"
	"project-workspace-api/internal/domain"
	"project-workspace-api/internal/dto"
	"project-workspace-api/internal/repository"
	"project-workspace-api/internal/response"
)

// ProjectService defines the interface for project business logic
type ProjectService interface {
	CreateProject(ctx context.Context, userID uuid.UUID, req *dto.CreateProjectRequest) (*dto.ProjectResponse, error)
	GetProject(ctx context.Context, userID, projectID uuid.UUID) (*dto.ProjectResponse, error)
	ListProjects(ctx context.Context, userID uuid.UUID, orgID *uuid.UUID, includeArchived bool) ([]*dto.ProjectResponse, error)
	UpdateProject(ctx context.Context, userID, projectID uuid.UUID, req *dto.UpdateProjectRequest) (*dto.ProjectResponse, error)
	ArchiveProject(ctx context.Context, userID, projectID uuid.UUID) (*dto.ProjectResponse, error)
	UnarchiveProject(ctx context.Context, userID, projectID uuid.UUID) (*dto.ProjectResponse, error)
	DeleteProject(ctx context.Context, userID, projectID uuid.UUID) error

	AddProjectMember(ctx context.Context, userID, projectID uuid.UUID, req *dto.AddMemberRequest) error
	UpdateProjectMemberRole(ctx context.Context, userID, projectID, memberID uuid.UUID, req *dto.UpdateMemberRoleRequest) error
	RemoveProjectMember(ctx context.Context, userID, projectID, memberID uuid.UUID) error
	ListProjectMembers(ctx context.Context, userID, projectID uuid.UUID) ([]*domain.ProjectMember, error)

	CreateMilestone(ctx context.Context, userID, projectID uuid.UUID, req *dto.CreateMilestoneRequest) (*domain.Milestone, error)
	ListMilestones(ctx context.Context, userID, projectID uuid.UUID) ([]*domain.Milestone, error)
	UpdateMilestone(ctx context.Context, userID, milestoneID uuid.UUID, req *dto.UpdateMilestoneRequest) (*domain.Milestone, error)
	DeleteMilestone(ctx context.Context, userID, milestoneID uuid.UUID) error

	ListActivity(ctx context.Context, userID, projectID uuid.UUID, taskID *uuid.UUID, limit int) ([]*domain.ActivityLog, error)
}

type projectServiceImpl struct {
	rt        *Runtime
	projects  repository.ProjectRepository
	orgs      repository.OrganizationRepository
	members   repository.MembershipRepository
	tasks     repository.TaskRepository
	activity  repository.NotificationRepository
	validator *automation.Validator
}

// NewProjectService creates a new instance of ProjectService
func NewProjectService(
	rt *Runtime,
	projects repository.ProjectRepository,
	orgs repository.OrganizationRepository,
	members repository.MembershipRepository,
	tasks repository.TaskRepository,
	activity repository.NotificationRepository,
	validator *automation.Validator,
) ProjectService {
	return &projectServiceImpl{
		rt:        rt,
		projects:  projects,
		orgs:      orgs,
		members:   members,
		tasks:     tasks,
		activity:  activity,
		validator: validator,
	}
}

func (s *projectServiceImpl) memberships() memberships {
	return memberships{rt: s.rt, members: s.members}
}

// CreateProject creates a project and makes the caller its owner in the same transaction.
func (s *projectServiceImpl) CreateProject(ctx context.Context, userID uuid.UUID, req *dto.CreateProjectRequest) (*dto.ProjectResponse, error) {
	stages := domain.DefaultStages()
	if len(req.WorkflowStages) > 0 {
		stages = domain.Stages(req.WorkflowStages)
	}
	if err := s.validator.ValidateStages(stages); err != nil {
		return nil, err
	}
	requireApproval := true
	if req.RequireApproval != nil {
		requireApproval = *req.RequireApproval
	}

	var project *domain.Project
	err := s.rt.run(ctx, nil, func(tx *database.Tx, out *outbox) error {
		c := userCaller(userID)
		if _, err := s.rt.authorize(ctx, tx.DB, s.members, c, domain.ScopeOrganization, req.OrgID, access.ActionMutate); err != nil {
			return err
		}
		if req.TeamID != nil {
			team, err := s.orgs.WithTx(tx.DB).FindTeam(ctx, c.filter(), *req.TeamID)
			if err != nil {
				return notFound(err, "team", *req.TeamID)
			}
			if team.OrgID != req.OrgID {
				return response.NewValidationError("team belongs to another organization", team.ID.String())
			}
			if _, err := s.rt.authorize(ctx, tx.DB, s.members, c, domain.ScopeTeam, team.ID, access.ActionRead); err != nil {
				return err
			}
		}

		project = &domain.Project{
			OrgID:           req.OrgID,
			TeamID:          req.TeamID,
			Name:            req.Name,
			Description:     req.Description,
			Color:           req.Color,
			Image:           req.Image,
			Status:          domain.ProjectStatusActive,
			WorkflowStages:  datatypes.JSONSlice[domain.WorkflowStage](stages),
			RequireApproval: requireApproval,
			CreatedBy:       userID,
		}
		if err := s.projects.WithTx(tx.DB).Create(ctx, project); err != nil {
			return database.ClassifyError(err)
		}
		if err := s.members.WithTx(tx.DB).Add(ctx, domain.ScopeProject, project.ID, userID, domain.RoleOwner, userID); err != nil {
			return database.ClassifyError(err)
		}
		if err := s.activity.WithTx(tx.DB).AppendActivity(ctx, activity(project.ID, nil, userID, "project_created", map[string]interface{}{"name": project.Name})); err != nil {
			return database.ClassifyError(err)
		}
		out.change("projects", broadcast.OpInsert, project.ID, project.ID, project, nil)
		out.change("project_members", broadcast.OpInsert, userID, project.ID, map[string]interface{}{"user_id": userID, "role": domain.RoleOwner}, nil)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.rt.Logger.Info("Project created",
		zap.String("project_id", project.ID.String()),
		zap.String("org_id", project.OrgID.String()),
		zap.String("user_id", userID.String()),
	)
	return &dto.ProjectResponse{Project: project, Role: domain.RoleOwner}, nil
}

func (s *projectServiceImpl) GetProject(ctx context.Context, userID, projectID uuid.UUID) (*dto.ProjectResponse, error) {
	project, err := s.projects.FindByID(ctx, access.ForUser(userID), projectID)
	if err != nil {
		return nil, notFound(err, "project", projectID)
	}
	role, err := s.members.Role(ctx, domain.ScopeProject, projectID, userID)
	if err != nil {
		return nil, database.ClassifyError(err)
	}
	return &dto.ProjectResponse{Project: project, Role: role}, nil
}

func (s *projectServiceImpl) ListProjects(ctx context.Context, userID uuid.UUID, orgID *uuid.UUID, includeArchived bool) ([]*dto.ProjectResponse, error) {
	projects, err := s.projects.List(ctx, access.ForUser(userID), orgID, includeArchived)
	if err != nil {
		return nil, database.ClassifyError(err)
	}
	out := make([]*dto.ProjectResponse, 0, len(projects))
	for _, p := range projects {
		role, err := s.members.Role(ctx, domain.ScopeProject, p.ID, userID)
		if err != nil {
			return nil, database.ClassifyError(err)
		}
		out = append(out, &dto.ProjectResponse{Project: p, Role: role})
	}
	return out, nil
}

// UpdateProject applies settings changes. Stages that still hold tasks cannot be removed.
func (s *projectServiceImpl) UpdateProject(ctx context.Context, userID, projectID uuid.UUID, req *dto.UpdateProjectRequest) (*dto.ProjectResponse, error) {
	var newStages domain.Stages
	if req.WorkflowStages != nil {
		newStages = domain.Stages(req.WorkflowStages)
		if err := s.validator.ValidateStages(newStages); err != nil {
			return nil, err
		}
	}

	current, err := s.projects.FindByID(ctx, access.ForUser(userID), projectID)
	if err != nil {
		return nil, notFound(err, "project", projectID)
	}
	keys := []string{projectKey(projectID)}
	for _, st := range current.Stages() {
		keys = append(keys, stageKey(projectID, st.ID))
	}

	var project *domain.Project
	var role domain.Role
	err = s.rt.run(ctx, keys, func(tx *database.Tx, out *outbox) error {
		c := userCaller(userID)
		var err error
		role, err = s.rt.authorize(ctx, tx.DB, s.members, c, domain.ScopeProject, projectID, access.ActionAdmin)
		if err != nil {
			return err
		}
		projects := s.projects.WithTx(tx.DB)
		project, err = projects.FindByID(ctx, c.filter(), projectID)
		if err != nil {
			return notFound(err, "project", projectID)
		}
		before := *project

		if req.Name != nil {
			project.Name = *req.Name
		}
		if req.Description != nil {
			project.Description = *req.Description
		}
		if req.Color != nil {
			project.Color = *req.Color
		}
		if req.Image != nil {
			project.Image = *req.Image
		}
		if req.RequireApproval != nil {
			project.RequireApproval = *req.RequireApproval
		}
		if newStages != nil {
			// A stage holding tasks can be neither dropped nor have its done flag flipped.
			for _, st := range project.Stages() {
				next, kept := newStages.Find(st.ID)
				if kept && next.IsDone == st.IsDone {
					continue
				}
				n, err := s.tasks.WithTx(tx.DB).CountInStage(ctx, projectID, st.ID)
				if err != nil {
					return database.ClassifyError(err)
				}
				if n == 0 {
					continue
				}
				if !kept {
					return response.NewConflictError(response.ReasonStageNotEmpty, "stage "+st.ID+" still holds tasks")
				}
				return response.NewConflictError(response.ReasonStageNotEmpty, "done flag of stage "+st.ID+" cannot change while it holds tasks")
			}
			project.WorkflowStages = datatypes.JSONSlice[domain.WorkflowStage](newStages)
		}
		project.UpdatedAt = s.rt.now()
		if err := projects.Save(ctx, project); err != nil {
			return database.ClassifyError(err)
		}
		if err := s.activity.WithTx(tx.DB).AppendActivity(ctx, activity(projectID, nil, userID, "project_updated", nil)); err != nil {
			return database.ClassifyError(err)
		}
		out.change("projects", broadcast.OpUpdate, projectID, projectID, project, &before)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &dto.ProjectResponse{Project: project, Role: role}, nil
}

func (s *projectServiceImpl) ArchiveProject(ctx context.Context, userID, projectID uuid.UUID) (*dto.ProjectResponse, error) {
	return s.setStatus(ctx, userID, projectID, domain.ProjectStatusArchived)
}

func (s *projectServiceImpl) UnarchiveProject(ctx context.Context, userID, projectID uuid.UUID) (*dto.ProjectResponse, error) {
	return s.setStatus(ctx, userID, projectID, domain.ProjectStatusActive)
}

func (s *projectServiceImpl) setStatus(ctx context.Context, userID, projectID uuid.UUID, status domain.ProjectStatus) (*dto.ProjectResponse, error) {
	var project *domain.Project
	var role domain.Role
	err := s.rt.run(ctx, []string{projectKey(projectID)}, func(tx *database.Tx, out *outbox) error {
		c := userCaller(userID)
		var err error
		role, err = s.rt.authorize(ctx, tx.DB, s.members, c, domain.ScopeProject, projectID, access.ActionAdmin)
		if err != nil {
			return err
		}
		projects := s.projects.WithTx(tx.DB)
		project, err = projects.FindByID(ctx, c.filter(), projectID)
		if err != nil {
			return notFound(err, "project", projectID)
		}
		if project.Status == status {
			return nil
		}
		before := *project
		project.Status = status
		project.UpdatedAt = s.rt.now()
		if err := projects.Save(ctx, project); err != nil {
			return database.ClassifyError(err)
		}
		action := "project_archived"
		if status == domain.ProjectStatusActive {
			action = "project_unarchived"
		}
		if err := s.activity.WithTx(tx.DB).AppendActivity(ctx, activity(projectID, nil, userID, action, nil)); err != nil {
			return database.ClassifyError(err)
		}
		out.change("projects", broadcast.OpUpdate, projectID, projectID, project, &before)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.rt.Logger.Info("Project status changed",
		zap.String("project_id", projectID.String()),
		zap.String("status", string(status)),
	)
	return &dto.ProjectResponse{Project: project, Role: role}, nil
}

// DeleteProject removes a project and everything it owns. Owners only.
func (s *projectServiceImpl) DeleteProject(ctx context.Context, userID, projectID uuid.UUID) error {
	err := s.rt.run(ctx, []string{projectKey(projectID)}, func(tx *database.Tx, out *outbox) error {
		if _, err := s.rt.authorize(ctx, tx.DB, s.members, userCaller(userID), domain.ScopeProject, projectID, access.ActionDestroy); err != nil {
			return err
		}
		if err := s.projects.WithTx(tx.DB).Delete(ctx, projectID); err != nil {
			return notFound(err, "project", projectID)
		}
		out.change("projects", broadcast.OpDelete, projectID, projectID, nil, map[string]interface{}{"id": projectID})
		return nil
	})
	if err != nil {
		return err
	}
	s.rt.Logger.Info("Project deleted",
		zap.String("project_id", projectID.String()),
		zap.String("user_id", userID.String()),
	)
	return nil
}

// AddProjectMember adds an organization member to the project.
func (s *projectServiceImpl) AddProjectMember(ctx context.Context, userID, projectID uuid.UUID, req *dto.AddMemberRequest) error {
	return s.rt.run(ctx, []string{membersKey(domain.ScopeProject, projectID)}, func(tx *database.Tx, out *outbox) error {
		project, err := s.projects.WithTx(tx.DB).FindByID(ctx, access.ForUser(userID), projectID)
		if err != nil {
			return notFound(err, "project", projectID)
		}
		orgRole, err := s.members.WithTx(tx.DB).Role(ctx, domain.ScopeOrganization, project.OrgID, req.UserID)
		if err != nil {
			return database.ClassifyError(err)
		}
		if orgRole == "" {
			return response.NewValidationError("user is not a member of the organization", req.UserID.String())
		}
		if err := s.memberships().add(ctx, tx, out, userCaller(userID), domain.ScopeProject, projectID, req.UserID, req.Role); err != nil {
			return err
		}
		return database.ClassifyError(s.activity.WithTx(tx.DB).AppendActivity(ctx, activity(projectID, nil, userID, "member_added",
			map[string]interface{}{"user_id": req.UserID, "role": req.Role})))
	})
}

func (s *projectServiceImpl) UpdateProjectMemberRole(ctx context.Context, userID, projectID, memberID uuid.UUID, req *dto.UpdateMemberRoleRequest) error {
	return s.rt.run(ctx, []string{membersKey(domain.ScopeProject, projectID)}, func(tx *database.Tx, out *outbox) error {
		if err := s.memberships().changeRole(ctx, tx, out, userCaller(userID), domain.ScopeProject, projectID, memberID, req.Role); err != nil {
			return err
		}
		return database.ClassifyError(s.activity.WithTx(tx.DB).AppendActivity(ctx, activity(projectID, nil, userID, "member_role_changed",
			map[string]interface{}{"user_id": memberID, "role": req.Role})))
	})
}

// RemoveProjectMember removes a member and their task assignments in the project.
func (s *projectServiceImpl) RemoveProjectMember(ctx context.Context, userID, projectID, memberID uuid.UUID) error {
	err := s.rt.run(ctx, []string{membersKey(domain.ScopeProject, projectID)}, func(tx *database.Tx, out *outbox) error {
		if _, err := s.memberships().remove(ctx, tx, out, userCaller(userID), domain.ScopeProject, projectID, memberID); err != nil {
			return err
		}
		if err := s.tasks.WithTx(tx.DB).RemoveProjectAssignments(ctx, projectID, memberID); err != nil {
			return database.ClassifyError(err)
		}
		return database.ClassifyError(s.activity.WithTx(tx.DB).AppendActivity(ctx, activity(projectID, nil, userID, "member_removed",
			map[string]interface{}{"user_id": memberID})))
	})
	if err != nil {
		return err
	}
	s.rt.Logger.Info("Project member removed",
		zap.String("project_id", projectID.String()),
		zap.String("member_id", memberID.String()),
		zap.String("user_id", userID.String()),
	)
	return nil
}

func (s *projectServiceImpl) ListProjectMembers(ctx context.Context, userID, projectID uuid.UUID) ([]*domain.ProjectMember, error) {
	if _, err := access.NewEvaluator(s.members).Authorize(ctx, userID, domain.ScopeProject, projectID, access.ActionRead); err != nil {
		return nil, err
	}
	members, err := s.members.ProjectMembers(ctx, projectID)
	return members, database.ClassifyError(err)
}

func (s *projectServiceImpl) CreateMilestone(ctx context.Context, userID, projectID uuid.UUID, req *dto.CreateMilestoneRequest) (*domain.Milestone, error) {
	var m *domain.Milestone
	err := s.rt.run(ctx, nil, func(tx *database.Tx, out *outbox) error {
		if _, err := s.rt.authorize(ctx, tx.DB, s.members, userCaller(userID), domain.ScopeProject, projectID, access.ActionAdmin); err != nil {
			return err
		}
		m = &domain.Milestone{
			ProjectID:   projectID,
			Name:        req.Name,
			TargetDate:  req.TargetDate,
			Color:       req.Color,
			Description: req.Description,
			CreatedBy:   userID,
		}
		if err := s.projects.WithTx(tx.DB).CreateMilestone(ctx, m); err != nil {
			return database.ClassifyError(err)
		}
		out.change("milestones", broadcast.OpInsert, m.ID, projectID, m, nil)
		return nil
	})
	return m, err
}

func (s *projectServiceImpl) ListMilestones(ctx context.Context, userID, projectID uuid.UUID) ([]*domain.Milestone, error) {
	if _, err := access.NewEvaluator(s.members).Authorize(ctx, userID, domain.ScopeProject, projectID, access.ActionRead); err != nil {
		return nil, err
	}
	ms, err := s.projects.ListMilestones(ctx, access.ForUser(userID), projectID)
	return ms, database.ClassifyError(err)
}

func (s *projectServiceImpl) UpdateMilestone(ctx context.Context, userID, milestoneID uuid.UUID, req *dto.UpdateMilestoneRequest) (*domain.Milestone, error) {
	var m *domain.Milestone
	err := s.rt.run(ctx, nil, func(tx *database.Tx, out *outbox) error {
		projects := s.projects.WithTx(tx.DB)
		var err error
		m, err = projects.FindMilestone(ctx, access.ForUser(userID), milestoneID)
		if err != nil {
			return notFound(err, "milestone", milestoneID)
		}
		if _, err := s.rt.authorize(ctx, tx.DB, s.members, userCaller(userID), domain.ScopeProject, m.ProjectID, access.ActionAdmin); err != nil {
			return err
		}
		if req.Name != nil {
			m.Name = *req.Name
		}
		if req.TargetDate != nil {
			m.TargetDate = *req.TargetDate
		}
		if req.Color != nil {
			m.Color = *req.Color
		}
		if req.Description != nil {
			m.Description = *req.Description
		}
		if err := projects.SaveMilestone(ctx, m); err != nil {
			return database.ClassifyError(err)
		}
		out.change("milestones", broadcast.OpUpdate, m.ID, m.ProjectID, m, nil)
		return nil
	})
	return m, err
}

func (s *projectServiceImpl) DeleteMilestone(ctx context.Context, userID, milestoneID uuid.UUID) error {
	return s.rt.run(ctx, nil, func(tx *database.Tx, out *outbox) error {
		projects := s.projects.WithTx(tx.DB)
		m, err := projects.FindMilestone(ctx, access.ForUser(userID), milestoneID)
		if err != nil {
			return notFound(err, "milestone", milestoneID)
		}
		if _, err := s.rt.authorize(ctx, tx.DB, s.members, userCaller(userID), domain.ScopeProject, m.ProjectID, access.ActionAdmin); err != nil {
			return err
		}
		if err := projects.DeleteMilestone(ctx, milestoneID); err != nil {
			return notFound(err, "milestone", milestoneID)
		}
		out.change("milestones", broadcast.OpDelete, m.ID, m.ProjectID, nil, m)
		return nil
	})
}

// ListActivity returns the project's activity log, newest first.
func (s *projectServiceImpl) ListActivity(ctx context.Context, userID, projectID uuid.UUID, taskID *uuid.UUID, limit int) ([]*domain.ActivityLog, error) {
	if _, err := access.NewEvaluator(s.members).Authorize(ctx, userID, domain.ScopeProject, projectID, access.ActionRead); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	entries, err := s.activity.ListActivity(ctx, projectID, taskID, limit)
	return entries, database.ClassifyError(err)
}
