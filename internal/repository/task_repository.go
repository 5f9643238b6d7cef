package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"project-workspace-api/internal/access"
	"project-workspace-api/internal/domain"
	"project-workspace-api/internal/lifecycle"
)

// TaskListOptions narrows ListByProject.
type TaskListOptions struct {
	StageID    string
	AssigneeID *uuid.UUID
	ParentID   *uuid.UUID
}

// TaskRepository stores tasks together with the rows they own.
type TaskRepository interface {
	WithTx(tx *gorm.DB) TaskRepository
	Create(ctx context.Context, task *domain.Task) error
	FindByID(ctx context.Context, filter access.Filter, id uuid.UUID) (*domain.Task, error)
	ListByProject(ctx context.Context, filter access.Filter, projectID uuid.UUID, opts TaskListOptions) ([]*domain.Task, error)
	StageOrder(ctx context.Context, projectID uuid.UUID, stageID string) ([]uuid.UUID, error)
	SetPositions(ctx context.Context, projectID uuid.UUID, stageID string, order []uuid.UUID) error
	CountInStage(ctx context.Context, projectID uuid.UUID, stageID string) (int64, error)
	Save(ctx context.Context, task *domain.Task) error
	Delete(ctx context.Context, id uuid.UUID) error
	ParentMap(ctx context.Context, projectID uuid.UUID) (map[uuid.UUID]uuid.UUID, error)
	DueBetween(ctx context.Context, from, to time.Time) ([]*domain.Task, error)
	CountByStatus(ctx context.Context) (open int64, completed int64, err error)

	AddAssignment(ctx context.Context, a *domain.TaskAssignment) error
	RemoveAssignment(ctx context.Context, taskID, userID uuid.UUID) error
	Assignees(ctx context.Context, taskIDs ...uuid.UUID) (map[uuid.UUID][]uuid.UUID, error)
	RemoveProjectAssignments(ctx context.Context, projectID, userID uuid.UUID) error

	AddDependency(ctx context.Context, d *domain.TaskDependency) error
	RemoveDependency(ctx context.Context, blockingID, blockedID uuid.UUID) error
	DependencyEdges(ctx context.Context, projectID uuid.UUID) ([]lifecycle.Edge, error)

	CreateSubtask(ctx context.Context, s *domain.Subtask) error
	FindSubtask(ctx context.Context, filter access.Filter, id uuid.UUID) (*domain.Subtask, error)
	ListSubtasks(ctx context.Context, taskID uuid.UUID) ([]*domain.Subtask, error)
	NextSubtaskPosition(ctx context.Context, taskID uuid.UUID) (int, error)
	SaveSubtask(ctx context.Context, s *domain.Subtask) error
	DeleteSubtask(ctx context.Context, id uuid.UUID) error
}

type taskRepositoryImpl struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &taskRepositoryImpl{db: db}
}

func (r *taskRepositoryImpl) WithTx(tx *gorm.DB) TaskRepository {
	return &taskRepositoryImpl{db: tx}
}

func (r *taskRepositoryImpl) Create(ctx context.Context, task *domain.Task) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(task).Error
}

func (r *taskRepositoryImpl) FindByID(ctx context.Context, filter access.Filter, id uuid.UUID) (*domain.Task, error) {
	var task domain.Task
	if err := r.db.WithContext(ctx).
		Scopes(filter.Readable("tasks.project_id")).
		Where("id = ?", id).
		First(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *taskRepositoryImpl) ListByProject(ctx context.Context, filter access.Filter, projectID uuid.UUID, opts TaskListOptions) ([]*domain.Task, error) {
	q := r.db.WithContext(ctx).
		Scopes(filter.Readable("tasks.project_id")).
		Where("project_id = ?", projectID)
	if opts.StageID != "" {
		q = q.Where("stage_id = ?", opts.StageID)
	}
	if opts.AssigneeID != nil {
		q = q.Where("id IN (?)", r.db.Session(&gorm.Session{NewDB: true}).
			Model(&domain.TaskAssignment{}).Select("task_id").Where("user_id = ?", *opts.AssigneeID))
	}
	if opts.ParentID != nil {
		q = q.Where("parent_task_id = ?", *opts.ParentID)
	}
	var tasks []*domain.Task
	err := q.Order("stage_id ASC, position ASC").Find(&tasks).Error
	return tasks, err
}

// StageOrder returns the task ids of a stage in position order.
func (r *taskRepositoryImpl) StageOrder(ctx context.Context, projectID uuid.UUID, stageID string) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&domain.Task{}).
		Where("project_id = ? AND stage_id = ?", projectID, stageID).
		Order("position ASC, created_at ASC").
		Pluck("id", &ids).Error
	return ids, err
}

// SetPositions writes position = index for every id in order.
func (r *taskRepositoryImpl) SetPositions(ctx context.Context, projectID uuid.UUID, stageID string, order []uuid.UUID) error {
	db := r.db.WithContext(ctx)
	for i, id := range order {
		if err := db.Model(&domain.Task{}).
			Where("id = ? AND project_id = ? AND stage_id = ?", id, projectID, stageID).
			UpdateColumn("position", i).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *taskRepositoryImpl) CountInStage(ctx context.Context, projectID uuid.UUID, stageID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&domain.Task{}).
		Where("project_id = ? AND stage_id = ?", projectID, stageID).
		Count(&n).Error
	return n, err
}

func (r *taskRepositoryImpl) Save(ctx context.Context, task *domain.Task) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(task).Error
}

// Delete removes a task and every row it owns.
func (r *taskRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	db := r.db.WithContext(ctx)
	if err := deleteTaskChildren(db, []uuid.UUID{id}); err != nil {
		return err
	}
	if err := db.Model(&domain.Task{}).Where("parent_task_id = ?", id).UpdateColumn("parent_task_id", nil).Error; err != nil {
		return err
	}
	res := db.Where("id = ?", id).Delete(&domain.Task{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// deleteTaskChildren removes rows owned by the tasks selected by ids, which is
// either a slice of ids or a subquery.
func deleteTaskChildren(db *gorm.DB, ids interface{}) error {
	if err := db.Where("task_id IN (?)", ids).Delete(&domain.Subtask{}).Error; err != nil {
		return err
	}
	if err := db.Where("task_id IN (?)", ids).Delete(&domain.TaskAssignment{}).Error; err != nil {
		return err
	}
	if err := db.Where("blocking_task_id IN (?) OR blocked_task_id IN (?)", ids, ids).Delete(&domain.TaskDependency{}).Error; err != nil {
		return err
	}
	if err := db.Unscoped().Where("task_id IN (?)", ids).Delete(&domain.Comment{}).Error; err != nil {
		return err
	}
	if err := db.Where("task_id IN (?)", ids).Delete(&domain.TimeEntry{}).Error; err != nil {
		return err
	}
	return db.Where("task_id IN (?)", ids).Delete(&domain.SlackThread{}).Error
}

func (r *taskRepositoryImpl) ParentMap(ctx context.Context, projectID uuid.UUID) (map[uuid.UUID]uuid.UUID, error) {
	type row struct {
		ID           uuid.UUID
		ParentTaskID uuid.UUID
	}
	var rows []row
	if err := r.db.WithContext(ctx).
		Model(&domain.Task{}).
		Select("id, parent_task_id").
		Where("project_id = ? AND parent_task_id IS NOT NULL", projectID).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]uuid.UUID, len(rows))
	for _, row := range rows {
		out[row.ID] = row.ParentTaskID
	}
	return out, nil
}

// DueBetween returns open tasks of active projects whose due date falls in [from, to).
func (r *taskRepositoryImpl) DueBetween(ctx context.Context, from, to time.Time) ([]*domain.Task, error) {
	var tasks []*domain.Task
	err := r.db.WithContext(ctx).
		Where("due_date >= ? AND due_date < ? AND completed_at IS NULL", from, to).
		Where("project_id IN (?)", r.db.Session(&gorm.Session{NewDB: true}).
			Model(&domain.Project{}).Select("id").Where("status = ?", domain.ProjectStatusActive)).
		Order("due_date ASC").
		Find(&tasks).Error
	return tasks, err
}

func (r *taskRepositoryImpl) CountByStatus(ctx context.Context) (int64, int64, error) {
	var open, completed int64
	db := r.db.WithContext(ctx)
	if err := db.Model(&domain.Task{}).Where("completed_at IS NULL").Count(&open).Error; err != nil {
		return 0, 0, err
	}
	if err := db.Model(&domain.Task{}).Where("completed_at IS NOT NULL").Count(&completed).Error; err != nil {
		return 0, 0, err
	}
	return open, completed, nil
}

func (r *taskRepositoryImpl) AddAssignment(ctx context.Context, a *domain.TaskAssignment) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(a).Error
}

func (r *taskRepositoryImpl) RemoveAssignment(ctx context.Context, taskID, userID uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("task_id = ? AND user_id = ?", taskID, userID).Delete(&domain.TaskAssignment{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *taskRepositoryImpl) Assignees(ctx context.Context, taskIDs ...uuid.UUID) (map[uuid.UUID][]uuid.UUID, error) {
	out := make(map[uuid.UUID][]uuid.UUID, len(taskIDs))
	if len(taskIDs) == 0 {
		return out, nil
	}
	var rows []domain.TaskAssignment
	if err := r.db.WithContext(ctx).
		Where("task_id IN ?", taskIDs).
		Order("assigned_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, a := range rows {
		out[a.TaskID] = append(out[a.TaskID], a.UserID)
	}
	return out, nil
}

func (r *taskRepositoryImpl) RemoveProjectAssignments(ctx context.Context, projectID, userID uuid.UUID) error {
	db := r.db.WithContext(ctx)
	taskIDs := db.Session(&gorm.Session{NewDB: true}).Model(&domain.Task{}).Select("id").Where("project_id = ?", projectID)
	return db.Where("user_id = ? AND task_id IN (?)", userID, taskIDs).Delete(&domain.TaskAssignment{}).Error
}

func (r *taskRepositoryImpl) AddDependency(ctx context.Context, d *domain.TaskDependency) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(d).Error
}

func (r *taskRepositoryImpl) RemoveDependency(ctx context.Context, blockingID, blockedID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Where("blocking_task_id = ? AND blocked_task_id = ?", blockingID, blockedID).
		Delete(&domain.TaskDependency{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *taskRepositoryImpl) DependencyEdges(ctx context.Context, projectID uuid.UUID) ([]lifecycle.Edge, error) {
	var deps []domain.TaskDependency
	if err := r.db.WithContext(ctx).Where("project_id = ?", projectID).Find(&deps).Error; err != nil {
		return nil, err
	}
	edges := make([]lifecycle.Edge, 0, len(deps))
	for _, d := range deps {
		edges = append(edges, lifecycle.Edge{From: d.BlockingTaskID, To: d.BlockedTaskID})
	}
	return edges, nil
}

func (r *taskRepositoryImpl) CreateSubtask(ctx context.Context, s *domain.Subtask) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(s).Error
}

func (r *taskRepositoryImpl) FindSubtask(ctx context.Context, filter access.Filter, id uuid.UUID) (*domain.Subtask, error) {
	var s domain.Subtask
	taskIDs := r.db.Session(&gorm.Session{NewDB: true}).
		Model(&domain.Task{}).
		Select("id").
		Scopes(filter.Readable("tasks.project_id"))
	if err := r.db.WithContext(ctx).
		Where("id = ? AND task_id IN (?)", id, taskIDs).
		First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *taskRepositoryImpl) ListSubtasks(ctx context.Context, taskID uuid.UUID) ([]*domain.Subtask, error) {
	var subtasks []*domain.Subtask
	err := r.db.WithContext(ctx).Where("task_id = ?", taskID).Order("position ASC").Find(&subtasks).Error
	return subtasks, err
}

func (r *taskRepositoryImpl) NextSubtaskPosition(ctx context.Context, taskID uuid.UUID) (int, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&domain.Subtask{}).Where("task_id = ?", taskID).Count(&n).Error; err != nil {
		return 0, err
	}
	return int(n), nil
}

func (r *taskRepositoryImpl) SaveSubtask(ctx context.Context, s *domain.Subtask) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(s).Error
}

func (r *taskRepositoryImpl) DeleteSubtask(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Subtask{}).Error
}
