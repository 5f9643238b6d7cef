package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CommentAttachment references a file stored outside this service.
type CommentAttachment struct {
	URL         string `json:"url"`
	Name        string `json:"name"`
	ContentType string `json:"content_type,omitempty"`
	Size        int64  `json:"size,omitempty"`
}

// Comment is soft-deleted so mention history survives.
type Comment struct {
	ID          uuid.UUID                              `gorm:"type:uuid;primaryKey" json:"id"`
	TaskID      uuid.UUID                              `gorm:"type:uuid;not null;index:idx_comments_task_id" json:"task_id"`
	ProjectID   uuid.UUID                              `gorm:"type:uuid;not null;index:idx_comments_project_id" json:"project_id"`
	Content     string                                 `gorm:"type:text;not null" json:"content"`
	CreatedBy   uuid.UUID                              `gorm:"type:uuid;not null;index:idx_comments_created_by" json:"created_by"`
	Mentions    datatypes.JSONSlice[uuid.UUID]         `gorm:"type:jsonb" json:"mentions"`
	Attachments datatypes.JSONSlice[CommentAttachment] `gorm:"type:jsonb" json:"attachments"`
	CreatedAt   time.Time                              `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time                              `gorm:"not null" json:"updated_at"`
	DeletedAt   gorm.DeletedAt                         `gorm:"index" json:"deleted_at,omitempty"`
	Task        Task                                   `gorm:"foreignKey:TaskID;constraint:OnDelete:CASCADE" json:"-"`
}

func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (Comment) TableName() string {
	return "comments"
}
