package database

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"project-workspace-api/internal/domain"
)

// Models lists every table in dependency order.
func Models() []interface{} {
	return []interface{}{
		&domain.Organization{},
		&domain.OrganizationMember{},
		&domain.Team{},
		&domain.TeamMember{},
		&domain.Project{},
		&domain.ProjectMember{},
		&domain.Milestone{},
		&domain.Task{},
		&domain.Subtask{},
		&domain.TaskAssignment{},
		&domain.TaskDependency{},
		&domain.Comment{},
		&domain.TimeEntry{},
		&domain.WorkflowRule{},
		&domain.WorkflowExecution{},
		&domain.SlackIntegration{},
		&domain.SlackThread{},
		&domain.Notification{},
		&domain.ActivityLog{},
		&domain.ApprovalPin{},
	}
}

// Indexes gorm tags cannot express. Both dialects accept partial indexes.
var postMigrateStatements = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_time_entries_running_user ON time_entries (user_id) WHERE ended_at IS NULL`,
	`CREATE INDEX IF NOT EXISTS idx_comments_task_live ON comments (task_id, created_at) WHERE deleted_at IS NULL`,
}

// Postgres only. Positions are renumbered row by row inside one transaction,
// so stage uniqueness is checked at commit. sqlite has no deferrable unique
// constraints and relies on the stage locks alone.
var postgresStatements = []string{
	`DO $$
BEGIN
	IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'uq_tasks_stage_position') THEN
		ALTER TABLE tasks ADD CONSTRAINT uq_tasks_stage_position
			UNIQUE (project_id, stage_id, position) DEFERRABLE INITIALLY DEFERRED;
	END IF;
END $$`,
}

// AutoMigrate creates or updates every table, then the partial indexes and
// dialect-specific constraints.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to run auto-migration: %w", err)
	}
	stmts := postMigrateStatements
	if IsPostgres(db) {
		stmts = append(append([]string{}, stmts...), postgresStatements...)
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to apply index: %w", err)
		}
	}
	return nil
}

// AutoMigrateWithRetry retries AutoMigrate with a linear backoff, for databases
// that come up after the service.
func AutoMigrateWithRetry(db *gorm.DB, logger *zap.Logger, maxRetries int) error {
	var err error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		err = AutoMigrate(db)
		if err == nil {
			logger.Info("Database migrations completed", zap.Int("attempt", attempt))
			return nil
		}
		if attempt < maxRetries {
			wait := time.Duration(attempt) * time.Second
			logger.Warn("Migration attempt failed, retrying",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", wait),
				zap.Error(err),
			)
			time.Sleep(wait)
		}
	}
	logger.Error("Migration failed after all retry attempts", zap.Int("total_attempts", maxRetries), zap.Error(err))
	return fmt.Errorf("migration failed after %d attempts: %w", maxRetries, err)
}
