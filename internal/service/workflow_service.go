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
)

// WorkflowService manages automation rules and exposes their execution log.
type WorkflowService interface {
	CreateRule(ctx context.Context, userID, projectID uuid.UUID, req *dto.CreateWorkflowRuleRequest) (*domain.WorkflowRule, error)
	EnableRule(ctx context.Context, userID, ruleID uuid.UUID, enabled bool) (*domain.WorkflowRule, error)
	ListRules(ctx context.Context, userID, projectID uuid.UUID) ([]*domain.WorkflowRule, error)
	ListExecutions(ctx context.Context, userID, ruleID uuid.UUID, limit int) ([]*domain.WorkflowExecution, error)
	DeleteRule(ctx context.Context, userID, ruleID uuid.UUID) error
}

type workflowServiceImpl struct {
	tasks     *taskServiceImpl
	rules     repository.WorkflowRepository
	validator *automation.Validator
}

func NewWorkflowService(
	rt *Runtime,
	rules repository.WorkflowRepository,
	projects repository.ProjectRepository,
	members repository.MembershipRepository,
	validator *automation.Validator,
) WorkflowService {
	return &workflowServiceImpl{
		tasks:     &taskServiceImpl{rt: rt, projects: projects, members: members},
		rules:     rules,
		validator: validator,
	}
}

// CreateRule validates and stores a rule. Only admins may automate a project.
func (s *workflowServiceImpl) CreateRule(ctx context.Context, userID, projectID uuid.UUID, req *dto.CreateWorkflowRuleRequest) (*domain.WorkflowRule, error) {
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	rule := &domain.WorkflowRule{
		ProjectID:  projectID,
		Name:       req.Name,
		Enabled:    enabled,
		Trigger:    req.Trigger,
		Conditions: datatypes.JSONSlice[domain.Condition](req.Conditions),
		Actions:    datatypes.JSONSlice[domain.Action](req.Actions),
		CreatedBy:  userID,
	}
	if err := s.validator.ValidateRule(rule); err != nil {
		return nil, err
	}

	c := userCaller(userID)
	rt := s.tasks.rt
	err := rt.run(ctx, []string{projectKey(projectID) + "/rules"}, func(tx *database.Tx, out *outbox) error {
		if _, err := s.tasks.loadProject(ctx, tx, c, projectID, access.ActionAdmin); err != nil {
			return err
		}
		if _, err := rt.authorize(ctx, tx.DB, s.tasks.members, c, domain.ScopeProject, projectID, access.ActionAdmin); err != nil {
			return err
		}
		if err := s.rules.WithTx(tx.DB).CreateRule(ctx, rule); err != nil {
			return database.ClassifyError(err)
		}
		out.change("workflow_rules", broadcast.OpInsert, rule.ID, projectID, rule, nil)
		return nil
	})
	if err != nil {
		return nil, err
	}
	rt.Logger.Info("Workflow rule created",
		zap.String("rule_id", rule.ID.String()),
		zap.String("project_id", projectID.String()),
		zap.String("trigger", string(rule.Trigger)),
		zap.Int("actions", len(rule.Actions)),
	)
	return rule, nil
}

func (s *workflowServiceImpl) EnableRule(ctx context.Context, userID, ruleID uuid.UUID, enabled bool) (*domain.WorkflowRule, error) {
	var rule *domain.WorkflowRule
	err := s.withRule(ctx, userID, ruleID, func(tx *database.Tx, out *outbox, r *domain.WorkflowRule) error {
		if err := s.rules.WithTx(tx.DB).SetEnabled(ctx, r.ID, enabled); err != nil {
			return notFound(err, "workflow rule", r.ID)
		}
		old := *r
		r.Enabled = enabled
		out.change("workflow_rules", broadcast.OpUpdate, r.ID, r.ProjectID, r, &old)
		rule = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rule, nil
}

func (s *workflowServiceImpl) ListRules(ctx context.Context, userID, projectID uuid.UUID) ([]*domain.WorkflowRule, error) {
	filter := access.ForUser(userID)
	if _, err := s.tasks.projects.FindByID(ctx, filter, projectID); err != nil {
		return nil, notFound(err, "project", projectID)
	}
	rules, err := s.rules.ListRules(ctx, filter, projectID)
	if err != nil {
		return nil, database.ClassifyError(err)
	}
	return rules, nil
}

func (s *workflowServiceImpl) ListExecutions(ctx context.Context, userID, ruleID uuid.UUID, limit int) ([]*domain.WorkflowExecution, error) {
	if _, err := s.rules.FindRule(ctx, access.ForUser(userID), ruleID); err != nil {
		return nil, notFound(err, "workflow rule", ruleID)
	}
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	execs, err := s.rules.ListExecutions(ctx, ruleID, limit)
	if err != nil {
		return nil, database.ClassifyError(err)
	}
	return execs, nil
}

func (s *workflowServiceImpl) DeleteRule(ctx context.Context, userID, ruleID uuid.UUID) error {
	return s.withRule(ctx, userID, ruleID, func(tx *database.Tx, out *outbox, r *domain.WorkflowRule) error {
		if err := s.rules.WithTx(tx.DB).DeleteRule(ctx, r.ID); err != nil {
			return notFound(err, "workflow rule", r.ID)
		}
		out.change("workflow_rules", broadcast.OpDelete, r.ID, r.ProjectID, nil, r)
		return nil
	})
}

// withRule loads a rule the caller can read and runs fn once they are known to administer its project.
func (s *workflowServiceImpl) withRule(ctx context.Context, userID, ruleID uuid.UUID, fn func(tx *database.Tx, out *outbox, r *domain.WorkflowRule) error) error {
	c := userCaller(userID)
	pre, err := s.rules.FindRule(ctx, c.filter(), ruleID)
	if err != nil {
		return notFound(err, "workflow rule", ruleID)
	}
	rt := s.tasks.rt
	return rt.run(ctx, []string{projectKey(pre.ProjectID) + "/rules"}, func(tx *database.Tx, out *outbox) error {
		if _, err := rt.authorize(ctx, tx.DB, s.tasks.members, c, domain.ScopeProject, pre.ProjectID, access.ActionAdmin); err != nil {
			return err
		}
		r, err := s.rules.WithTx(tx.DB).FindRule(ctx, c.filter(), ruleID)
		if err != nil {
			return notFound(err, "workflow rule", ruleID)
		}
		return fn(tx, out, r)
	})
}
