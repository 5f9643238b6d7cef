package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"project-workspace-api/internal/domain"
)

// PinRepository stores short-lived approval PINs.
type PinRepository interface {
	WithTx(tx *gorm.DB) PinRepository
	Create(ctx context.Context, pin *domain.ApprovalPin) error
	FindLatest(ctx context.Context, email string) (*domain.ApprovalPin, error)
	Save(ctx context.Context, pin *domain.ApprovalPin) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type pinRepositoryImpl struct {
	db *gorm.DB
}

func NewPinRepository(db *gorm.DB) PinRepository {
	return &pinRepositoryImpl{db: db}
}

func (r *pinRepositoryImpl) WithTx(tx *gorm.DB) PinRepository {
	return &pinRepositoryImpl{db: tx}
}

func (r *pinRepositoryImpl) Create(ctx context.Context, pin *domain.ApprovalPin) error {
	return r.db.WithContext(ctx).Create(pin).Error
}

func (r *pinRepositoryImpl) FindLatest(ctx context.Context, email string) (*domain.ApprovalPin, error) {
	var pin domain.ApprovalPin
	if err := r.db.WithContext(ctx).
		Where("email = ?", email).
		Order("created_at DESC").
		First(&pin).Error; err != nil {
		return nil, err
	}
	return &pin, nil
}

func (r *pinRepositoryImpl) Save(ctx context.Context, pin *domain.ApprovalPin) error {
	return r.db.WithContext(ctx).Save(pin).Error
}

func (r *pinRepositoryImpl) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&domain.ApprovalPin{})
	return res.RowsAffected, res.Error
}
