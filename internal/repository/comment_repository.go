package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"project-workspace-api/internal/access"
	"project-workspace-api/internal/domain"
)

// CommentRepository stores task comments. Reads never return soft-deleted rows.
type CommentRepository interface {
	WithTx(tx *gorm.DB) CommentRepository
	Create(ctx context.Context, comment *domain.Comment) error
	FindByID(ctx context.Context, filter access.Filter, id uuid.UUID) (*domain.Comment, error)
	ListByTask(ctx context.Context, filter access.Filter, taskID uuid.UUID) ([]*domain.Comment, error)
	SoftDelete(ctx context.Context, id uuid.UUID) error
}

type commentRepositoryImpl struct {
	db *gorm.DB
}

func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepositoryImpl{db: db}
}

func (r *commentRepositoryImpl) WithTx(tx *gorm.DB) CommentRepository {
	return &commentRepositoryImpl{db: tx}
}

func (r *commentRepositoryImpl) Create(ctx context.Context, comment *domain.Comment) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(comment).Error
}

func (r *commentRepositoryImpl) FindByID(ctx context.Context, filter access.Filter, id uuid.UUID) (*domain.Comment, error) {
	var c domain.Comment
	if err := r.db.WithContext(ctx).
		Scopes(filter.Readable("comments.project_id")).
		Where("id = ?", id).
		First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *commentRepositoryImpl) ListByTask(ctx context.Context, filter access.Filter, taskID uuid.UUID) ([]*domain.Comment, error) {
	var comments []*domain.Comment
	err := r.db.WithContext(ctx).
		Scopes(filter.Readable("comments.project_id")).
		Where("task_id = ?", taskID).
		Order("created_at ASC").
		Find(&comments).Error
	return comments, err
}

func (r *commentRepositoryImpl) SoftDelete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Comment{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
