package domain

import (
	"time"

	"github.com/google/uuid"
)

// TimeEntry is a span of work on a task. EndedAt nil means the timer is running;
// a partial unique index keeps at most one running entry per user.
type TimeEntry struct {
	BaseModel
	TaskID          uuid.UUID  `gorm:"type:uuid;not null;index:idx_time_entries_task_id" json:"task_id"`
	ProjectID       uuid.UUID  `gorm:"type:uuid;not null;index:idx_time_entries_project_id" json:"project_id"`
	UserID          uuid.UUID  `gorm:"type:uuid;not null;index:idx_time_entries_user_id" json:"user_id"`
	StartedAt       time.Time  `gorm:"not null" json:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	DurationMinutes int        `gorm:"not null;default:0" json:"duration_minutes"`
	Description     string     `gorm:"type:text" json:"description"`
	EntryDate       string     `gorm:"type:varchar(10);not null;index:idx_time_entries_entry_date" json:"date"`
	Task            Task       `gorm:"foreignKey:TaskID;constraint:OnDelete:CASCADE" json:"-"`
}

// IsRunning reports whether the entry has not been stopped.
func (e *TimeEntry) IsRunning() bool {
	return e.EndedAt == nil
}

// Stop ends a running entry at t and fixes its duration, rounding up to a whole minute.
func (e *TimeEntry) Stop(t time.Time) {
	end := t
	e.EndedAt = &end
	e.DurationMinutes = DurationMinutes(e.StartedAt, end)
}

// DurationMinutes returns the whole minutes between start and end, rounded up, never negative.
func DurationMinutes(start, end time.Time) int {
	d := end.Sub(start)
	if d <= 0 {
		return 0
	}
	m := int(d / time.Minute)
	if d%time.Minute != 0 {
		m++
	}
	return m
}

func (TimeEntry) TableName() string {
	return "time_entries"
}
