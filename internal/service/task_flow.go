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

// positionRow is the change payload for a task that only shifted position.
type positionRow struct {
	ID       uuid.UUID `json:"id"`
	StageID  string    `json:"stage_id"`
	Position int       `json:"position"`
}

// renumber writes newOrder as the dense positions of stage and emits an update
// change for every task whose position moved, except skip which the caller reports.
func (s *taskServiceImpl) renumber(ctx context.Context, tx *database.Tx, out *outbox, projectID uuid.UUID, stage string, oldOrder, newOrder []uuid.UUID, skip uuid.UUID) error {
	if err := s.tasks.WithTx(tx.DB).SetPositions(ctx, projectID, stage, newOrder); err != nil {
		return database.ClassifyError(err)
	}
	before := lifecycle.Positions(oldOrder)
	for pos, id := range newOrder {
		if id == skip {
			continue
		}
		if old, ok := before[id]; ok && old == pos {
			continue
		}
		row := positionRow{ID: id, StageID: stage, Position: pos}
		out.change("tasks", broadcast.OpUpdate, id, projectID, row, nil)
	}
	return nil
}

// MoveTask relocates a task to a stage and position.
func (s *taskServiceImpl) MoveTask(ctx context.Context, userID, taskID uuid.UUID, req *dto.MoveTaskRequest) (*dto.TaskResponse, error) {
	return s.move(ctx, userCaller(userID), taskID, req.StageID, req.Position)
}

// move shifts the target stage to make room at pos and closes the gap left in
// the source stage. A nil pos appends.
func (s *taskServiceImpl) move(ctx context.Context, c caller, taskID uuid.UUID, target string, pos *int) (*dto.TaskResponse, error) {
	var resp *dto.TaskResponse
	changed := false
	err := s.withTask(ctx, c, taskID, access.ActionMutate, true, []string{target}, func(tx *database.Tx, out *outbox, ts *taskScope) error {
		t := ts.task
		now := s.rt.now()
		res, err := lifecycle.Move(t, ts.project, target, ts.actor, now)
		if err != nil {
			return err
		}

		tasks := s.tasks.WithTx(tx.DB)
		from := res.FromStage
		fromOrder, err := tasks.StageOrder(ctx, t.ProjectID, from)
		if err != nil {
			return database.ClassifyError(err)
		}
		if !res.StageChanged() {
			if pos == nil {
				resp = dto.NewTaskResponse(t, ts.assignees)
				return nil
			}
			newOrder := lifecycle.InsertAt(fromOrder, t.ID, *pos)
			t.Position = lifecycle.Positions(newOrder)[t.ID]
			if t.Position == ts.before.Position {
				resp = dto.NewTaskResponse(ts.before, ts.assignees)
				return nil
			}
			if err := tasks.Save(ctx, t); err != nil {
				return database.ClassifyError(err)
			}
			if err := s.renumber(ctx, tx, out, t.ProjectID, from, fromOrder, newOrder, t.ID); err != nil {
				return err
			}
			out.change("tasks", broadcast.OpUpdate, t.ID, t.ProjectID, t, ts.before)
			resp = dto.NewTaskResponse(t, ts.assignees)
			return nil
		}

		toOrder, err := tasks.StageOrder(ctx, t.ProjectID, target)
		if err != nil {
			return database.ClassifyError(err)
		}
		at := len(toOrder)
		if pos != nil {
			at = *pos
		}
		newTo := lifecycle.InsertAt(toOrder, t.ID, at)
		t.Position = lifecycle.Positions(newTo)[t.ID]
		if err := tasks.Save(ctx, t); err != nil {
			return database.ClassifyError(err)
		}
		if err := s.renumber(ctx, tx, out, t.ProjectID, from, fromOrder, lifecycle.Without(fromOrder, t.ID), t.ID); err != nil {
			return err
		}
		if err := s.renumber(ctx, tx, out, t.ProjectID, target, toOrder, newTo, t.ID); err != nil {
			return err
		}
		if err := s.log(ctx, tx, t, c.id, "task_moved", map[string]interface{}{
			"from_stage":      res.FromStage,
			"to_stage":        res.ToStage,
			"approval_status": string(res.ToApproval),
		}); err != nil {
			return err
		}
		out.change("tasks", broadcast.OpUpdate, t.ID, t.ProjectID, t, ts.before)
		changed = true
		for _, trigger := range res.Triggers {
			ev := s.newEvent(ctx, trigger, ts, now)
			ev.EnteredPending = res.EnteredPending
			out.emit(ev)
		}
		resp = dto.NewTaskResponse(t, ts.assignees)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !changed {
		return resp, nil
	}
	s.rt.Metrics.RecordTaskTransition(string(domain.TriggerStatusChanged))
	s.rt.Logger.Debug("Task moved",
		zap.String("task_id", taskID.String()),
		zap.String("stage_id", target),
		zap.Int("position", resp.Position),
		zap.Bool("system", c.system),
	)
	return resp, nil
}

// ReorderStage assigns positions 0..n-1 in the given order. taskIDs must be
// exactly the tasks currently in the stage.
func (s *taskServiceImpl) ReorderStage(ctx context.Context, userID, projectID uuid.UUID, stageID string, req *dto.ReorderStageRequest) error {
	c := userCaller(userID)
	return s.rt.run(ctx, []string{stageKey(projectID, stageID)}, func(tx *database.Tx, out *outbox) error {
		project, err := s.loadProject(ctx, tx, c, projectID, access.ActionMutate)
		if err != nil {
			return err
		}
		if !project.Stages().Has(stageID) {
			return response.NewStageUnknownError(stageID)
		}
		if _, err := s.rt.authorize(ctx, tx.DB, s.members, c, domain.ScopeProject, projectID, access.ActionMutate); err != nil {
			return err
		}
		current, err := s.tasks.WithTx(tx.DB).StageOrder(ctx, projectID, stageID)
		if err != nil {
			return database.ClassifyError(err)
		}
		if !lifecycle.IsPermutation(current, req.TaskIDs) {
			return response.NewValidationError("task_ids must list every task of the stage exactly once", stageID)
		}
		if err := s.renumber(ctx, tx, out, projectID, stageID, current, req.TaskIDs, uuid.Nil); err != nil {
			return err
		}
		return database.ClassifyError(s.activity.WithTx(tx.DB).AppendActivity(ctx,
			activity(projectID, nil, userID, "stage_reordered", map[string]interface{}{"stage_id": stageID, "count": len(current)})))
	})
}

// ApproveTask completes a task awaiting approval in a done stage.
func (s *taskServiceImpl) ApproveTask(ctx context.Context, userID, taskID uuid.UUID) (*dto.TaskResponse, error) {
	var resp *dto.TaskResponse
	c := userCaller(userID)
	err := s.withTask(ctx, c, taskID, access.ActionApprove, false, nil, func(tx *database.Tx, out *outbox, ts *taskScope) error {
		t := ts.task
		now := s.rt.now()
		res, err := lifecycle.Approve(t, ts.project, ts.actor, now)
		if err != nil {
			return err
		}
		if err := s.tasks.WithTx(tx.DB).Save(ctx, t); err != nil {
			return database.ClassifyError(err)
		}
		if err := s.log(ctx, tx, t, userID, "task_approved", nil); err != nil {
			return err
		}
		out.change("tasks", broadcast.OpUpdate, t.ID, t.ProjectID, t, ts.before)
		for _, trigger := range res.Triggers {
			out.emit(s.newEvent(ctx, trigger, ts, now))
		}
		resp = dto.NewTaskResponse(t, ts.assignees)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.rt.Metrics.RecordTaskTransition(string(domain.TriggerTaskApproved))
	s.rt.Logger.Info("Task approved", zap.String("task_id", taskID.String()), zap.String("approved_by", userID.String()))
	return resp, nil
}

// RejectTask sends a pending task back to a non-done stage, appended at its end.
func (s *taskServiceImpl) RejectTask(ctx context.Context, userID, taskID uuid.UUID, req *dto.RejectTaskRequest) (*dto.TaskResponse, error) {
	var resp *dto.TaskResponse
	c := userCaller(userID)
	err := s.withTask(ctx, c, taskID, access.ActionApprove, true, []string{req.ReturnStageID}, func(tx *database.Tx, out *outbox, ts *taskScope) error {
		t := ts.task
		now := s.rt.now()
		tasks := s.tasks.WithTx(tx.DB)
		fromOrder, err := tasks.StageOrder(ctx, t.ProjectID, t.StageID)
		if err != nil {
			return database.ClassifyError(err)
		}
		res, err := lifecycle.Reject(t, ts.project, req.Reason, req.ReturnStageID, ts.actor, now)
		if err != nil {
			return err
		}
		toOrder, err := tasks.StageOrder(ctx, t.ProjectID, t.StageID)
		if err != nil {
			return database.ClassifyError(err)
		}
		newTo := lifecycle.InsertAt(toOrder, t.ID, len(toOrder))
		t.Position = len(newTo) - 1
		if err := tasks.Save(ctx, t); err != nil {
			return database.ClassifyError(err)
		}
		if err := s.renumber(ctx, tx, out, t.ProjectID, res.FromStage, fromOrder, lifecycle.Without(fromOrder, t.ID), t.ID); err != nil {
			return err
		}
		if err := s.log(ctx, tx, t, userID, "task_rejected", map[string]interface{}{
			"reason":          req.Reason,
			"return_stage_id": req.ReturnStageID,
		}); err != nil {
			return err
		}
		out.change("tasks", broadcast.OpUpdate, t.ID, t.ProjectID, t, ts.before)
		for _, trigger := range res.Triggers {
			out.emit(s.newEvent(ctx, trigger, ts, now))
		}
		resp = dto.NewTaskResponse(t, ts.assignees)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.rt.Metrics.RecordTaskTransition(string(domain.TriggerTaskRejected))
	s.rt.Logger.Info("Task rejected",
		zap.String("task_id", taskID.String()),
		zap.String("rejected_by", userID.String()),
		zap.String("return_stage_id", req.ReturnStageID),
	)
	return resp, nil
}
