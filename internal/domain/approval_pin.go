package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ApprovalPin is a short-lived password reset PIN.
type ApprovalPin struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email     string    `gorm:"type:varchar(320);not null;index:idx_approval_pins_email" json:"email"`
	Pin       string    `gorm:"type:varchar(12);not null" json:"-"`
	Verified  bool      `gorm:"not null" json:"verified"`
	Attempts  int       `gorm:"not null" json:"attempts"`
	ExpiresAt time.Time `gorm:"not null;index:idx_approval_pins_expires_at" json:"expires_at"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (p *ApprovalPin) Expired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}

func (ApprovalPin) TableName() string {
	return "approval_pins"
}

func (p *ApprovalPin) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
