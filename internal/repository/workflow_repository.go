package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"project-workspace-api/internal/access"
	"project-workspace-api/internal/domain"
)

// WorkflowRepository stores automation rules and their execution log.
type WorkflowRepository interface {
	WithTx(tx *gorm.DB) WorkflowRepository
	CreateRule(ctx context.Context, rule *domain.WorkflowRule) error
	FindRule(ctx context.Context, filter access.Filter, id uuid.UUID) (*domain.WorkflowRule, error)
	ListRules(ctx context.Context, filter access.Filter, projectID uuid.UUID) ([]*domain.WorkflowRule, error)
	EnabledRules(ctx context.Context, projectID uuid.UUID, trigger domain.Trigger) ([]*domain.WorkflowRule, error)
	SetEnabled(ctx context.Context, id uuid.UUID, enabled bool) error
	DeleteRule(ctx context.Context, id uuid.UUID) error

	// ClaimExecution inserts exec; it returns false when (rule, event key) already ran.
	ClaimExecution(ctx context.Context, exec *domain.WorkflowExecution) (bool, error)
	FinishExecution(ctx context.Context, exec *domain.WorkflowExecution) error
	ListExecutions(ctx context.Context, ruleID uuid.UUID, limit int) ([]*domain.WorkflowExecution, error)
}

type workflowRepositoryImpl struct {
	db *gorm.DB
}

func NewWorkflowRepository(db *gorm.DB) WorkflowRepository {
	return &workflowRepositoryImpl{db: db}
}

func (r *workflowRepositoryImpl) WithTx(tx *gorm.DB) WorkflowRepository {
	return &workflowRepositoryImpl{db: tx}
}

func (r *workflowRepositoryImpl) CreateRule(ctx context.Context, rule *domain.WorkflowRule) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(rule).Error
}

func (r *workflowRepositoryImpl) FindRule(ctx context.Context, filter access.Filter, id uuid.UUID) (*domain.WorkflowRule, error) {
	var rule domain.WorkflowRule
	if err := r.db.WithContext(ctx).
		Scopes(filter.Readable("workflow_rules.project_id")).
		Where("id = ?", id).
		First(&rule).Error; err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *workflowRepositoryImpl) ListRules(ctx context.Context, filter access.Filter, projectID uuid.UUID) ([]*domain.WorkflowRule, error) {
	var rules []*domain.WorkflowRule
	err := r.db.WithContext(ctx).
		Scopes(filter.Readable("workflow_rules.project_id")).
		Where("project_id = ?", projectID).
		Order("created_at ASC, id ASC").
		Find(&rules).Error
	return rules, err
}

// EnabledRules returns the rules to evaluate for an event, in a stable order.
func (r *workflowRepositoryImpl) EnabledRules(ctx context.Context, projectID uuid.UUID, trigger domain.Trigger) ([]*domain.WorkflowRule, error) {
	var rules []*domain.WorkflowRule
	err := r.db.WithContext(ctx).
		Where(map[string]interface{}{"project_id": projectID, "trigger": trigger, "enabled": true}).
		Order("created_at ASC, id ASC").
		Find(&rules).Error
	return rules, err
}

func (r *workflowRepositoryImpl) SetEnabled(ctx context.Context, id uuid.UUID, enabled bool) error {
	res := r.db.WithContext(ctx).Model(&domain.WorkflowRule{}).Where("id = ?", id).
		Updates(map[string]interface{}{"enabled": enabled, "updated_at": r.db.NowFunc()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *workflowRepositoryImpl) DeleteRule(ctx context.Context, id uuid.UUID) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("rule_id = ?", id).Delete(&domain.WorkflowExecution{}).Error; err != nil {
		return err
	}
	return db.Where("id = ?", id).Delete(&domain.WorkflowRule{}).Error
}

func (r *workflowRepositoryImpl) ClaimExecution(ctx context.Context, exec *domain.WorkflowExecution) (bool, error) {
	res := r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "rule_id"}, {Name: "event_key"}},
			DoNothing: true,
		}).
		Create(exec)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *workflowRepositoryImpl) FinishExecution(ctx context.Context, exec *domain.WorkflowExecution) error {
	return r.db.WithContext(ctx).Model(&domain.WorkflowExecution{}).
		Where("id = ?", exec.ID).
		Updates(map[string]interface{}{
			"success":          exec.Success,
			"error_message":    exec.ErrorMessage,
			"actions_executed": exec.ActionsExecuted,
		}).Error
}

func (r *workflowRepositoryImpl) ListExecutions(ctx context.Context, ruleID uuid.UUID, limit int) ([]*domain.WorkflowExecution, error) {
	var execs []*domain.WorkflowExecution
	err := r.db.WithContext(ctx).
		Where("rule_id = ?", ruleID).
		Order("executed_at DESC").
		Limit(limit).
		Find(&execs).Error
	return execs, err
}
