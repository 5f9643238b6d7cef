package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"project-workspace-api/internal/access"
	"project-workspace-api/internal/broadcast"
	"project-workspace-api/internal/database"
	"project-workspace-api/internal/domain"
	"project-workspace-api/internal/dto"
	"project-workspace-api/internal/lifecycle"
	"project-workspace-api/internal/response"
)

func (s *taskServiceImpl) AssignTask(ctx context.Context, userID, taskID uuid.UUID, req *dto.AssignTaskRequest) error {
	return s.assign(ctx, userCaller(userID), taskID, req.UserID)
}

// assign adds assigneeID to the task. The assignee must be a project member.
func (s *taskServiceImpl) assign(ctx context.Context, c caller, taskID, assigneeID uuid.UUID) error {
	return s.withTask(ctx, c, taskID, access.ActionMutate, false, nil, func(tx *database.Tx, out *outbox, ts *taskScope) error {
		t := ts.task
		if err := s.requireProjectMember(ctx, tx, t.ProjectID, assigneeID); err != nil {
			return err
		}
		now := s.rt.now()
		a := &domain.TaskAssignment{TaskID: t.ID, UserID: assigneeID, AssignedBy: c.id, AssignedAt: now}
		if err := s.tasks.WithTx(tx.DB).AddAssignment(ctx, a); err != nil {
			return conflictOnDuplicate(err, response.ReasonAlreadyAssigned, "user is already assigned to the task")
		}
		if err := s.log(ctx, tx, t, c.id, "task_assigned", map[string]interface{}{"user_id": assigneeID.String()}); err != nil {
			return err
		}
		out.change("task_assignments", broadcast.OpInsert, a.ID, t.ProjectID, a, nil)

		ev := s.newEvent(ctx, domain.TriggerTaskAssigned, ts, now)
		ev.Assignees = append(append([]uuid.UUID{}, ts.assignees...), assigneeID)
		ev.AssigneeID = &assigneeID
		out.emit(ev)
		return nil
	})
}

func (s *taskServiceImpl) UnassignTask(ctx context.Context, userID, taskID, assigneeID uuid.UUID) error {
	return s.unassign(ctx, userCaller(userID), taskID, assigneeID)
}

// unassign removes an assignment. It raises no trigger.
func (s *taskServiceImpl) unassign(ctx context.Context, c caller, taskID, assigneeID uuid.UUID) error {
	return s.withTask(ctx, c, taskID, access.ActionMutate, false, nil, func(tx *database.Tx, out *outbox, ts *taskScope) error {
		t := ts.task
		if err := s.tasks.WithTx(tx.DB).RemoveAssignment(ctx, t.ID, assigneeID); err != nil {
			return notFound(err, "assignment", assigneeID)
		}
		if err := s.log(ctx, tx, t, c.id, "task_unassigned", map[string]interface{}{"user_id": assigneeID.String()}); err != nil {
			return err
		}
		row := map[string]interface{}{"task_id": t.ID, "user_id": assigneeID}
		out.change("task_assignments", broadcast.OpDelete, t.ID, t.ProjectID, nil, row)
		return nil
	})
}

// AddDependency records that req.BlockingTaskID blocks taskID. Both tasks must
// share a project and the edge must not close a cycle.
func (s *taskServiceImpl) AddDependency(ctx context.Context, userID, taskID uuid.UUID, req *dto.AddDependencyRequest) (*domain.TaskDependency, error) {
	c := userCaller(userID)
	blocked, err := s.tasks.FindByID(ctx, c.filter(), taskID)
	if err != nil {
		return nil, notFound(err, "task", taskID)
	}

	var dep *domain.TaskDependency
	err = s.rt.run(ctx, []string{dependencyKey(blocked.ProjectID)}, func(tx *database.Tx, out *outbox) error {
		if _, err := s.loadProject(ctx, tx, c, blocked.ProjectID, access.ActionMutate); err != nil {
			return err
		}
		if _, err := s.rt.authorize(ctx, tx.DB, s.members, c, domain.ScopeProject, blocked.ProjectID, access.ActionMutate); err != nil {
			return err
		}
		tasks := s.tasks.WithTx(tx.DB)
		blocking, err := tasks.FindByID(ctx, c.filter(), req.BlockingTaskID)
		if err != nil {
			return notFound(err, "task", req.BlockingTaskID)
		}
		if blocking.ProjectID != blocked.ProjectID {
			return response.NewValidationError("dependencies must stay inside one project", req.BlockingTaskID.String())
		}
		edges, err := tasks.DependencyEdges(ctx, blocked.ProjectID)
		if err != nil {
			return database.ClassifyError(err)
		}
		if lifecycle.CreatesCycle(edges, blocking.ID, blocked.ID) {
			return response.NewDependencyCycleError(blocking.ID.String() + " -> " + blocked.ID.String())
		}
		dep = &domain.TaskDependency{
			ProjectID:      blocked.ProjectID,
			BlockingTaskID: blocking.ID,
			BlockedTaskID:  blocked.ID,
			CreatedBy:      userID,
		}
		if err := tasks.AddDependency(ctx, dep); err != nil {
			return conflictOnDuplicate(err, response.ReasonDependencyExists, "dependency already exists")
		}
		out.change("task_dependencies", broadcast.OpInsert, dep.ID, dep.ProjectID, dep, nil)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dep, nil
}

func (s *taskServiceImpl) RemoveDependency(ctx context.Context, userID, taskID, blockingTaskID uuid.UUID) error {
	c := userCaller(userID)
	blocked, err := s.tasks.FindByID(ctx, c.filter(), taskID)
	if err != nil {
		return notFound(err, "task", taskID)
	}
	return s.rt.run(ctx, []string{dependencyKey(blocked.ProjectID)}, func(tx *database.Tx, out *outbox) error {
		if _, err := s.loadProject(ctx, tx, c, blocked.ProjectID, access.ActionMutate); err != nil {
			return err
		}
		if _, err := s.rt.authorize(ctx, tx.DB, s.members, c, domain.ScopeProject, blocked.ProjectID, access.ActionMutate); err != nil {
			return err
		}
		if err := s.tasks.WithTx(tx.DB).RemoveDependency(ctx, blockingTaskID, taskID); err != nil {
			return notFound(err, "dependency", blockingTaskID)
		}
		row := map[string]interface{}{"blocking_task_id": blockingTaskID, "blocked_task_id": taskID}
		out.change("task_dependencies", broadcast.OpDelete, taskID, blocked.ProjectID, nil, row)
		return nil
	})
}

func (s *taskServiceImpl) CreateSubtask(ctx context.Context, userID, taskID uuid.UUID, req *dto.CreateSubtaskRequest) (*domain.Subtask, error) {
	return s.createSubtask(ctx, userCaller(userID), taskID, req.Title, req.AssignedTo)
}

func (s *taskServiceImpl) createSubtask(ctx context.Context, c caller, taskID uuid.UUID, title string, assignedTo *uuid.UUID) (*domain.Subtask, error) {
	var sub *domain.Subtask
	err := s.withTask(ctx, c, taskID, access.ActionMutate, false, nil, func(tx *database.Tx, out *outbox, ts *taskScope) error {
		t := ts.task
		if assignedTo != nil {
			if err := s.requireProjectMember(ctx, tx, t.ProjectID, *assignedTo); err != nil {
				return err
			}
		}
		tasks := s.tasks.WithTx(tx.DB)
		pos, err := tasks.NextSubtaskPosition(ctx, t.ID)
		if err != nil {
			return database.ClassifyError(err)
		}
		sub = &domain.Subtask{TaskID: t.ID, Title: title, AssignedTo: assignedTo, Position: pos, CreatedBy: c.id}
		if err := tasks.CreateSubtask(ctx, sub); err != nil {
			return database.ClassifyError(err)
		}
		out.change("subtasks", broadcast.OpInsert, sub.ID, t.ProjectID, sub, nil)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.rt.Logger.Debug("Subtask created", zap.String("task_id", taskID.String()), zap.String("subtask_id", sub.ID.String()))
	return sub, nil
}

// ToggleSubtask flips the completed flag, stamping or clearing completed_at.
func (s *taskServiceImpl) ToggleSubtask(ctx context.Context, userID, subtaskID uuid.UUID) (*domain.Subtask, error) {
	c := userCaller(userID)
	found, err := s.tasks.FindSubtask(ctx, c.filter(), subtaskID)
	if err != nil {
		return nil, notFound(err, "subtask", subtaskID)
	}
	var sub *domain.Subtask
	err = s.withTask(ctx, c, found.TaskID, access.ActionMutate, false, nil, func(tx *database.Tx, out *outbox, ts *taskScope) error {
		tasks := s.tasks.WithTx(tx.DB)
		cur, err := tasks.FindSubtask(ctx, c.filter(), subtaskID)
		if err != nil {
			return notFound(err, "subtask", subtaskID)
		}
		old := *cur
		cur.Completed = !cur.Completed
		if cur.Completed {
			at := s.rt.now()
			cur.CompletedAt = &at
		} else {
			cur.CompletedAt = nil
		}
		if err := tasks.SaveSubtask(ctx, cur); err != nil {
			return database.ClassifyError(err)
		}
		out.change("subtasks", broadcast.OpUpdate, cur.ID, ts.task.ProjectID, cur, &old)
		sub = cur
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *taskServiceImpl) DeleteSubtask(ctx context.Context, userID, subtaskID uuid.UUID) error {
	c := userCaller(userID)
	found, err := s.tasks.FindSubtask(ctx, c.filter(), subtaskID)
	if err != nil {
		return notFound(err, "subtask", subtaskID)
	}
	return s.withTask(ctx, c, found.TaskID, access.ActionMutate, false, nil, func(tx *database.Tx, out *outbox, ts *taskScope) error {
		if err := s.tasks.WithTx(tx.DB).DeleteSubtask(ctx, subtaskID); err != nil {
			return database.ClassifyError(err)
		}
		out.change("subtasks", broadcast.OpDelete, subtaskID, ts.task.ProjectID, nil, found)
		return nil
	})
}

func dependencyKey(projectID uuid.UUID) string {
	return projectKey(projectID) + "/deps"
}
