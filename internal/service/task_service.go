package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"project-workspace-api/internal/access"
	"project-workspace-api/internal/broadcast"
	"project-workspace-api/internal/database"
	"project-workspace-api/internal/domain"
	"project-workspace-api/internal/dto"
	"project-workspace-api/internal/event"
	"project-workspace-api/internal/lifecycle"
	"project-workspace-api/internal/repository"
	"project-workspace-api/internal/response"
)

// TaskService defines the task commands, including the lifecycle transitions.
type TaskService interface {
	CreateTask(ctx context.Context, userID, projectID uuid.UUID, req *dto.CreateTaskRequest) (*dto.TaskResponse, error)
	GetTask(ctx context.Context, userID, taskID uuid.UUID) (*dto.TaskDetailResponse, error)
	ListTasks(ctx context.Context, userID, projectID uuid.UUID, opts repository.TaskListOptions) ([]*dto.TaskResponse, error)
	UpdateTask(ctx context.Context, userID, taskID uuid.UUID, req *dto.UpdateTaskRequest) (*dto.TaskResponse, error)
	DeleteTask(ctx context.Context, userID, taskID uuid.UUID) error

	MoveTask(ctx context.Context, userID, taskID uuid.UUID, req *dto.MoveTaskRequest) (*dto.TaskResponse, error)
	ReorderStage(ctx context.Context, userID, projectID uuid.UUID, stageID string, req *dto.ReorderStageRequest) error
	ApproveTask(ctx context.Context, userID, taskID uuid.UUID) (*dto.TaskResponse, error)
	RejectTask(ctx context.Context, userID, taskID uuid.UUID, req *dto.RejectTaskRequest) (*dto.TaskResponse, error)

	AssignTask(ctx context.Context, userID, taskID uuid.UUID, req *dto.AssignTaskRequest) error
	UnassignTask(ctx context.Context, userID, taskID, assigneeID uuid.UUID) error
	AddDependency(ctx context.Context, userID, taskID uuid.UUID, req *dto.AddDependencyRequest) (*domain.TaskDependency, error)
	RemoveDependency(ctx context.Context, userID, taskID, blockingTaskID uuid.UUID) error
	CreateSubtask(ctx context.Context, userID, taskID uuid.UUID, req *dto.CreateSubtaskRequest) (*domain.Subtask, error)
	ToggleSubtask(ctx context.Context, userID, subtaskID uuid.UUID) (*domain.Subtask, error)
	DeleteSubtask(ctx context.Context, userID, subtaskID uuid.UUID) error
}

type taskServiceImpl struct {
	rt       *Runtime
	tasks    repository.TaskRepository
	projects repository.ProjectRepository
	members  repository.MembershipRepository
	activity repository.NotificationRepository
}

func NewTaskService(
	rt *Runtime,
	tasks repository.TaskRepository,
	projects repository.ProjectRepository,
	members repository.MembershipRepository,
	activity repository.NotificationRepository,
) TaskService {
	return &taskServiceImpl{rt: rt, tasks: tasks, projects: projects, members: members, activity: activity}
}

// errStageMoved aborts a command whose task left the stage it was locked under.
var errStageMoved = response.NewStaleVersionError("task changed stage before its lock was taken")

// taskScope is a task loaded inside a transaction together with its project
// and the caller's standing in it.
type taskScope struct {
	task      *domain.Task
	before    *domain.Task
	project   *domain.Project
	actor     lifecycle.Actor
	assignees []uuid.UUID
}

func (s *taskServiceImpl) load(ctx context.Context, tx *database.Tx, c caller, taskID uuid.UUID, action access.Action) (*taskScope, error) {
	task, err := s.tasks.WithTx(tx.DB).FindByID(ctx, c.filter(), taskID)
	if err != nil {
		return nil, notFound(err, "task", taskID)
	}
	project, err := s.loadProject(ctx, tx, c, task.ProjectID, action)
	if err != nil {
		return nil, err
	}
	role, err := s.rt.authorize(ctx, tx.DB, s.members, c, domain.ScopeProject, task.ProjectID, action)
	if err != nil {
		return nil, err
	}
	assignees, err := s.tasks.WithTx(tx.DB).Assignees(ctx, taskID)
	if err != nil {
		return nil, database.ClassifyError(err)
	}
	return &taskScope{
		task:      task,
		before:    task.Clone(),
		project:   project,
		actor:     actorFor(c, role),
		assignees: assignees[taskID],
	}, nil
}

func (s *taskServiceImpl) loadProject(ctx context.Context, tx *database.Tx, c caller, projectID uuid.UUID, action access.Action) (*domain.Project, error) {
	project, err := s.projects.WithTx(tx.DB).FindByID(ctx, c.filter(), projectID)
	if err != nil {
		return nil, notFound(err, "project", projectID)
	}
	if action != access.ActionRead && project.IsArchived() {
		return nil, response.NewConflictError(response.ReasonProjectArchived, "project is archived")
	}
	return project, nil
}

// withTask runs fn holding the task's lock key and, when lockStages is set,
// the keys of its current stage and of extra. The task is re-read inside the
// transaction; if it changed stage in between, the command restarts with fresh keys.
func (s *taskServiceImpl) withTask(ctx context.Context, c caller, taskID uuid.UUID, action access.Action, lockStages bool, extra []string, fn func(tx *database.Tx, out *outbox, ts *taskScope) error) error {
	for attempt := 0; attempt < 3; attempt++ {
		pre, err := s.tasks.FindByID(ctx, c.filter(), taskID)
		if err != nil {
			return notFound(err, "task", taskID)
		}
		keys := []string{taskKey(taskID)}
		if lockStages {
			keys = append(keys, stageKey(pre.ProjectID, pre.StageID))
			for _, st := range extra {
				keys = append(keys, stageKey(pre.ProjectID, st))
			}
		}
		moved := false
		err = s.rt.run(ctx, keys, func(tx *database.Tx, out *outbox) error {
			ts, err := s.load(ctx, tx, c, taskID, action)
			if err != nil {
				return err
			}
			if lockStages && ts.task.StageID != pre.StageID {
				moved = true
				return errStageMoved
			}
			return fn(tx, out, ts)
		})
		if !moved {
			return err
		}
	}
	return errStageMoved
}

// newEvent snapshots the scope into an event for trigger.
func (s *taskServiceImpl) newEvent(ctx context.Context, trigger domain.Trigger, ts *taskScope, now time.Time) event.Event {
	ev := event.New(ctx, trigger, ts.task.Clone(), ts.actor.ID, now)
	ev.Before = ts.before
	ev.BeforeAssignees = ts.assignees
	ev.Assignees = ts.assignees
	return ev
}

func (s *taskServiceImpl) log(ctx context.Context, tx *database.Tx, t *domain.Task, actorID uuid.UUID, action string, payload map[string]interface{}) error {
	taskID := t.ID
	return database.ClassifyError(s.activity.WithTx(tx.DB).AppendActivity(ctx, activity(t.ProjectID, &taskID, actorID, action, payload)))
}

func validateTaskFields(color *string, start, due *time.Time) error {
	if color != nil && *color != "" && !domain.ValidTaskColor(*color) {
		return response.NewValidationError("color is not in the palette", *color)
	}
	if start != nil && due != nil && start.After(*due) {
		return response.NewValidationError("start_date must not be after due_date", "")
	}
	return nil
}

func (s *taskServiceImpl) requireProjectMember(ctx context.Context, tx *database.Tx, projectID, userID uuid.UUID) error {
	role, err := s.members.WithTx(tx.DB).Role(ctx, domain.ScopeProject, projectID, userID)
	if err != nil {
		return database.ClassifyError(err)
	}
	if role == "" {
		return response.NewValidationError("user is not a member of the project", userID.String())
	}
	return nil
}

// CreateTask inserts a task at the requested position of its stage. Creating
// straight into a done stage follows the same approval rules as moving there.
func (s *taskServiceImpl) CreateTask(ctx context.Context, userID, projectID uuid.UUID, req *dto.CreateTaskRequest) (*dto.TaskResponse, error) {
	priority := req.Priority
	if priority == "" {
		priority = domain.PriorityNone
	}
	if !priority.Valid() {
		return nil, response.NewValidationError("unknown priority", string(priority))
	}
	if err := validateTaskFields(req.Color, req.StartDate, req.DueDate); err != nil {
		return nil, err
	}

	c := userCaller(userID)
	project, err := s.projects.FindByID(ctx, c.filter(), projectID)
	if err != nil {
		return nil, notFound(err, "project", projectID)
	}
	stage := req.StageID
	if stage == "" {
		stage = project.Stages().First()
	}

	var resp *dto.TaskResponse
	err = s.rt.run(ctx, []string{stageKey(projectID, stage)}, func(tx *database.Tx, out *outbox) error {
		project, err := s.loadProject(ctx, tx, c, projectID, access.ActionMutate)
		if err != nil {
			return err
		}
		role, err := s.rt.authorize(ctx, tx.DB, s.members, c, domain.ScopeProject, projectID, access.ActionMutate)
		if err != nil {
			return err
		}
		tasks := s.tasks.WithTx(tx.DB)
		now := s.rt.now()

		if req.ParentTaskID != nil {
			parent, err := tasks.FindByID(ctx, c.filter(), *req.ParentTaskID)
			if err != nil || parent.ProjectID != projectID {
				return response.NewValidationError("parent task must belong to the same project", req.ParentTaskID.String())
			}
		}

		task := &domain.Task{
			ProjectID:    projectID,
			Title:        req.Title,
			Description:  req.Description,
			Tags:         datatypes.JSONSlice[string](req.Tags),
			Color:        req.Color,
			CustomFields: datatypes.JSONMap(req.CustomFields),
			Priority:     priority,
			StartDate:    req.StartDate,
			DueDate:      req.DueDate,
			ParentTaskID: req.ParentTaskID,
			CreatedBy:    userID,
		}
		task.ID = uuid.New()
		task.CreatedAt = now
		res, err := lifecycle.Place(task, project, stage, actorFor(c, role), now)
		if err != nil {
			return err
		}

		order, err := tasks.StageOrder(ctx, projectID, task.StageID)
		if err != nil {
			return database.ClassifyError(err)
		}
		pos := len(order)
		if req.Position != nil {
			pos = *req.Position
		}
		newOrder := lifecycle.InsertAt(order, task.ID, pos)
		task.Position = lifecycle.Positions(newOrder)[task.ID]
		if err := tasks.Create(ctx, task); err != nil {
			return database.ClassifyError(err)
		}
		if err := s.renumber(ctx, tx, out, projectID, task.StageID, order, newOrder, task.ID); err != nil {
			return err
		}

		var assignees []uuid.UUID
		for _, id := range uniqueIDs(req.AssigneeIDs) {
			if err := s.requireProjectMember(ctx, tx, projectID, id); err != nil {
				return err
			}
			if err := tasks.AddAssignment(ctx, &domain.TaskAssignment{TaskID: task.ID, UserID: id, AssignedBy: userID, AssignedAt: now}); err != nil {
				return database.ClassifyError(err)
			}
			assignees = append(assignees, id)
		}

		if err := s.log(ctx, tx, task, userID, "task_created", map[string]interface{}{"title": task.Title, "stage_id": task.StageID}); err != nil {
			return err
		}
		out.change("tasks", broadcast.OpInsert, task.ID, projectID, task, nil)

		ts := &taskScope{task: task, project: project, actor: actorFor(c, role), assignees: assignees}
		created := s.newEvent(ctx, domain.TriggerTaskCreated, ts, now)
		created.Before = nil
		created.BeforeAssignees = nil
		created.EnteredPending = res.EnteredPending
		out.emit(created)
		for _, id := range assignees {
			assignee := id
			ev := s.newEvent(ctx, domain.TriggerTaskAssigned, ts, now)
			ev.AssigneeID = &assignee
			out.emit(ev)
		}
		resp = dto.NewTaskResponse(task, assignees)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.rt.Logger.Info("Task created",
		zap.String("task_id", resp.ID.String()),
		zap.String("project_id", projectID.String()),
		zap.String("stage_id", resp.StageID),
	)
	return resp, nil
}

// GetTask returns a task with its subtasks and dependency edges.
func (s *taskServiceImpl) GetTask(ctx context.Context, userID, taskID uuid.UUID) (*dto.TaskDetailResponse, error) {
	filter := access.ForUser(userID)
	task, err := s.tasks.FindByID(ctx, filter, taskID)
	if err != nil {
		return nil, notFound(err, "task", taskID)
	}
	assignees, err := s.tasks.Assignees(ctx, taskID)
	if err != nil {
		return nil, database.ClassifyError(err)
	}
	subtasks, err := s.tasks.ListSubtasks(ctx, taskID)
	if err != nil {
		return nil, database.ClassifyError(err)
	}
	edges, err := s.tasks.DependencyEdges(ctx, task.ProjectID)
	if err != nil {
		return nil, database.ClassifyError(err)
	}

	detail := &dto.TaskDetailResponse{
		TaskResponse: *dto.NewTaskResponse(task, assignees[taskID]),
		Subtasks:     subtasks,
		Blocking:     []uuid.UUID{},
		Blocked:      []uuid.UUID{},
	}
	if detail.Subtasks == nil {
		detail.Subtasks = []*domain.Subtask{}
	}
	for _, e := range edges {
		switch taskID {
		case e.From:
			detail.Blocking = append(detail.Blocking, e.To)
		case e.To:
			detail.Blocked = append(detail.Blocked, e.From)
		}
	}
	// Blocked lists the tasks blocking this one; they are only a warning.
	for _, id := range detail.Blocked {
		blocker, err := s.tasks.FindByID(ctx, filter, id)
		if err != nil {
			continue
		}
		if blocker.CompletedAt == nil {
			detail.HasIncompleteBlockers = true
			break
		}
	}
	return detail, nil
}

func (s *taskServiceImpl) ListTasks(ctx context.Context, userID, projectID uuid.UUID, opts repository.TaskListOptions) ([]*dto.TaskResponse, error) {
	if _, err := access.NewEvaluator(s.members).Authorize(ctx, userID, domain.ScopeProject, projectID, access.ActionRead); err != nil {
		return nil, err
	}
	tasks, err := s.tasks.ListByProject(ctx, access.ForUser(userID), projectID, opts)
	if err != nil {
		return nil, database.ClassifyError(err)
	}
	ids := make([]uuid.UUID, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	assignees, err := s.tasks.Assignees(ctx, ids...)
	if err != nil {
		return nil, database.ClassifyError(err)
	}
	out := make([]*dto.TaskResponse, len(tasks))
	for i, t := range tasks {
		out[i] = dto.NewTaskResponse(t, assignees[t.ID])
	}
	return out, nil
}

// UpdateTask patches editable fields. Stage and approval fields are owned by
// the lifecycle commands and are rejected here.
func (s *taskServiceImpl) UpdateTask(ctx context.Context, userID, taskID uuid.UUID, req *dto.UpdateTaskRequest) (*dto.TaskResponse, error) {
	if f := req.ForbiddenField(); f != "" {
		return nil, response.NewValidationError(f+" cannot be set through update", f)
	}
	if req.Priority != nil && !req.Priority.Valid() {
		return nil, response.NewValidationError("unknown priority", string(*req.Priority))
	}
	if err := validateTaskFields(req.Color, req.StartDate, req.DueDate); err != nil {
		return nil, err
	}

	return s.patch(ctx, userCaller(userID), taskID, req.ExpectedUpdatedAt, func(tx *database.Tx, t *domain.Task) ([]string, error) {
		var changed []string
		if req.Title != nil && *req.Title != t.Title {
			t.Title = *req.Title
			changed = append(changed, "title")
		}
		if req.Description != nil && *req.Description != t.Description {
			t.Description = *req.Description
			changed = append(changed, "description")
		}
		if req.Priority != nil && *req.Priority != t.Priority {
			t.Priority = *req.Priority
			changed = append(changed, "priority")
		}
		if req.Tags != nil {
			t.Tags = datatypes.JSONSlice[string](*req.Tags)
			changed = append(changed, "tags")
		}
		if req.Color != nil {
			if *req.Color == "" {
				t.Color = nil
			} else {
				color := *req.Color
				t.Color = &color
			}
			changed = append(changed, "color")
		}
		if req.CustomFields != nil {
			t.CustomFields = datatypes.JSONMap(req.CustomFields)
			changed = append(changed, "custom_fields")
		}
		if req.StartDate != nil {
			t.StartDate = req.StartDate
			changed = append(changed, "start_date")
		}
		if req.ClearDueDate {
			t.DueDate = nil
			changed = append(changed, "due_date")
		} else if req.DueDate != nil {
			t.DueDate = req.DueDate
			changed = append(changed, "due_date")
		}
		if err := validateTaskFields(nil, t.StartDate, t.DueDate); err != nil {
			return nil, err
		}
		if req.ClearParent {
			t.ParentTaskID = nil
			changed = append(changed, "parent_task_id")
		} else if req.ParentTaskID != nil {
			if err := s.checkParent(ctx, tx, t, *req.ParentTaskID); err != nil {
				return nil, err
			}
			parent := *req.ParentTaskID
			t.ParentTaskID = &parent
			changed = append(changed, "parent_task_id")
		}
		return changed, nil
	})
}

func (s *taskServiceImpl) checkParent(ctx context.Context, tx *database.Tx, t *domain.Task, parentID uuid.UUID) error {
	tasks := s.tasks.WithTx(tx.DB)
	parent, err := tasks.FindByID(ctx, access.System(), parentID)
	if err != nil || parent.ProjectID != t.ProjectID {
		return response.NewValidationError("parent task must belong to the same project", parentID.String())
	}
	parents, err := tasks.ParentMap(ctx, t.ProjectID)
	if err != nil {
		return database.ClassifyError(err)
	}
	if lifecycle.ParentCreatesCycle(parents, t.ID, parentID) {
		return response.NewConflictError(response.ReasonParentCycle, "task cannot be its own ancestor")
	}
	return nil
}

// patch applies a field-level edit under the task lock and raises task_updated
// when apply reports changes.
func (s *taskServiceImpl) patch(ctx context.Context, c caller, taskID uuid.UUID, expected *time.Time, apply func(tx *database.Tx, t *domain.Task) ([]string, error)) (*dto.TaskResponse, error) {
	var resp *dto.TaskResponse
	err := s.withTask(ctx, c, taskID, access.ActionMutate, false, nil, func(tx *database.Tx, out *outbox, ts *taskScope) error {
		t := ts.task
		if expected != nil && !t.UpdatedAt.Truncate(time.Microsecond).Equal(expected.Truncate(time.Microsecond)) {
			return response.NewStaleVersionError(t.UpdatedAt.Format(time.RFC3339Nano))
		}
		changed, err := apply(tx, t)
		if err != nil {
			return err
		}
		resp = dto.NewTaskResponse(t, ts.assignees)
		if len(changed) == 0 {
			return nil
		}
		now := s.rt.now()
		t.UpdatedBy = c.id
		t.UpdatedAt = now
		if err := s.tasks.WithTx(tx.DB).Save(ctx, t); err != nil {
			return database.ClassifyError(err)
		}
		if err := s.log(ctx, tx, t, c.id, "task_updated", map[string]interface{}{"fields": changed}); err != nil {
			return err
		}
		out.change("tasks", broadcast.OpUpdate, t.ID, t.ProjectID, t, ts.before)
		out.emit(s.newEvent(ctx, domain.TriggerTaskUpdated, ts, now))
		return nil
	})
	return resp, err
}

// DeleteTask removes a task and every row it owns. Members may delete their
// own tasks; admins may delete any.
func (s *taskServiceImpl) DeleteTask(ctx context.Context, userID, taskID uuid.UUID) error {
	c := userCaller(userID)
	err := s.withTask(ctx, c, taskID, access.ActionMutate, true, nil, func(tx *database.Tx, out *outbox, ts *taskScope) error {
		t := ts.task
		if t.CreatedBy != userID && !ts.actor.Role.AtLeast(domain.RoleAdmin) {
			return response.NewForbiddenError("only the creator or an admin can delete a task", "")
		}
		tasks := s.tasks.WithTx(tx.DB)
		order, err := tasks.StageOrder(ctx, t.ProjectID, t.StageID)
		if err != nil {
			return database.ClassifyError(err)
		}
		if err := tasks.Delete(ctx, t.ID); err != nil {
			return notFound(err, "task", t.ID)
		}
		if err := s.renumber(ctx, tx, out, t.ProjectID, t.StageID, order, lifecycle.Without(order, t.ID), t.ID); err != nil {
			return err
		}
		if err := s.log(ctx, tx, t, userID, "task_deleted", map[string]interface{}{"title": t.Title}); err != nil {
			return err
		}
		out.change("tasks", broadcast.OpDelete, t.ID, t.ProjectID, nil, t)
		return nil
	})
	if err != nil {
		return err
	}
	s.rt.Logger.Info("Task deleted", zap.String("task_id", taskID.String()), zap.String("user_id", userID.String()))
	return nil
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
