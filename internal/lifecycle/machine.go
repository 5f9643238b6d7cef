// Package lifecycle holds the task state machine over (stage, approval status),
// the dense position arithmetic for stages and the cycle checks for task graphs.
// Everything here is pure; callers load state, apply a transition and persist it.
package lifecycle

import (
	"time"

	"github.com/google/uuid"

	"project-workspace-api/internal/domain"
	"project-workspace-api/internal/response"
)

// Actor is whoever drives a transition. System actors are automation rules and
// jobs; they may move tasks like an admin but never approve or reject.
type Actor struct {
	ID     uuid.UUID
	Role   domain.Role
	System bool
}

func (a Actor) atLeast(min domain.Role) bool {
	if a.System {
		return true
	}
	return a.Role.AtLeast(min)
}

// Result describes what a transition did.
type Result struct {
	FromStage      string
	ToStage        string
	FromApproval   domain.ApprovalStatus
	ToApproval     domain.ApprovalStatus
	Triggers       []domain.Trigger
	EnteredPending bool
}

// StageChanged reports whether the task changed stage.
func (r Result) StageChanged() bool {
	return r.FromStage != r.ToStage
}

func begin(t *domain.Task) Result {
	return Result{FromStage: t.StageID, FromApproval: t.ApprovalStatus}
}

func (r *Result) finish(t *domain.Task) {
	r.ToStage = t.StageID
	r.ToApproval = t.ApprovalStatus
	if r.StageChanged() {
		r.Triggers = append([]domain.Trigger{domain.TriggerStatusChanged}, r.Triggers...)
	}
}

// Place sets the initial state of a new task entering stage.
func Place(t *domain.Task, p *domain.Project, stage string, actor Actor, now time.Time) (Result, error) {
	stages := p.Stages()
	if stage == "" {
		stage = stages.First()
	}
	if !stages.Has(stage) {
		return Result{}, response.NewStageUnknownError(stage)
	}
	t.StageID = stage
	t.ApprovalStatus = domain.ApprovalNotRequired
	res := Result{FromStage: stage, ToStage: stage, FromApproval: domain.ApprovalNotRequired}
	if stages.IsDone(stage) {
		enterDone(t, p, actor, now, &res)
	}
	res.ToApproval = t.ApprovalStatus
	stamp(t, actor, now)
	return res, nil
}

// Move relocates t to stage target, applying the approval rules of done stages.
func Move(t *domain.Task, p *domain.Project, target string, actor Actor, now time.Time) (Result, error) {
	stages := p.Stages()
	if !stages.Has(target) {
		return Result{}, response.NewStageUnknownError(target)
	}
	if !actor.atLeast(domain.RoleMember) {
		return Result{}, response.NewForbiddenError("moving tasks requires member role", "")
	}

	res := begin(t)
	if target == t.StageID {
		res.finish(t)
		return res, nil
	}

	toDone := stages.IsDone(target)

	switch t.ApprovalStatus {
	case domain.ApprovalApproved:
		if !toDone {
			if !actor.atLeast(domain.RoleAdmin) {
				return Result{}, response.NewForbiddenError("only admins can reopen an approved task", "")
			}
			clearApproval(t)
			clearDone(t)
			t.ApprovalStatus = domain.ApprovalNotRequired
		}
	case domain.ApprovalPending:
		if !toDone {
			clearDone(t)
			t.ApprovalStatus = domain.ApprovalNotRequired
		}
	case domain.ApprovalRejected:
		if toDone {
			enterDone(t, p, actor, now, &res)
		}
	default:
		if toDone {
			if !stages.IsDone(t.StageID) {
				enterDone(t, p, actor, now, &res)
			}
		} else {
			clearDone(t)
		}
	}

	t.StageID = target
	stamp(t, actor, now)
	res.finish(t)
	return res, nil
}

// Approve completes a pending task.
func Approve(t *domain.Task, p *domain.Project, actor Actor, now time.Time) (Result, error) {
	if actor.System || !actor.Role.AtLeast(domain.RoleAdmin) {
		return Result{}, response.NewForbiddenError("approving requires admin role", "")
	}
	if t.ApprovalStatus != domain.ApprovalPending || !p.Stages().IsDone(t.StageID) {
		return Result{}, response.NewConflictError(response.ReasonNotPending, "task is not awaiting approval")
	}

	res := begin(t)
	approver := actor.ID
	at := now
	t.ApprovalStatus = domain.ApprovalApproved
	t.ApprovedBy = &approver
	t.ApprovedAt = &at
	t.CompletedAt = &at
	t.RejectionReason = nil
	stamp(t, actor, now)

	res.Triggers = append(res.Triggers, domain.TriggerTaskApproved)
	res.finish(t)
	return res, nil
}

// Reject sends a pending task back to returnStage with a reason.
func Reject(t *domain.Task, p *domain.Project, reason, returnStage string, actor Actor, now time.Time) (Result, error) {
	if actor.System || !actor.Role.AtLeast(domain.RoleAdmin) {
		return Result{}, response.NewForbiddenError("rejecting requires admin role", "")
	}
	stages := p.Stages()
	if !stages.Has(returnStage) {
		return Result{}, response.NewStageUnknownError(returnStage)
	}
	if stages.IsDone(returnStage) {
		return Result{}, response.NewValidationError("return stage must not be a done stage", returnStage)
	}
	if t.ApprovalStatus != domain.ApprovalPending || !stages.IsDone(t.StageID) {
		return Result{}, response.NewConflictError(response.ReasonNotPending, "task is not awaiting approval")
	}

	res := begin(t)
	clearApproval(t)
	clearDone(t)
	t.ApprovalStatus = domain.ApprovalRejected
	if reason != "" {
		r := reason
		t.RejectionReason = &r
	}
	t.StageID = returnStage
	stamp(t, actor, now)

	res.Triggers = append(res.Triggers, domain.TriggerTaskRejected)
	res.finish(t)
	return res, nil
}

func enterDone(t *domain.Task, p *domain.Project, actor Actor, now time.Time, res *Result) {
	at := now
	by := actor.ID
	t.MovedToDoneAt = &at
	t.MovedToDoneBy = &by
	t.RejectionReason = nil
	if p.RequireApproval {
		t.ApprovalStatus = domain.ApprovalPending
		t.CompletedAt = nil
		res.EnteredPending = true
		return
	}
	t.ApprovalStatus = domain.ApprovalNotRequired
	t.CompletedAt = &at
}

func clearApproval(t *domain.Task) {
	t.ApprovedBy = nil
	t.ApprovedAt = nil
}

func clearDone(t *domain.Task) {
	t.MovedToDoneAt = nil
	t.MovedToDoneBy = nil
	t.CompletedAt = nil
}

func stamp(t *domain.Task, actor Actor, now time.Time) {
	t.UpdatedBy = actor.ID
	t.UpdatedAt = now
}

// CheckInvariants verifies the state invariants of t against its project's workflow.
func CheckInvariants(t *domain.Task, stages domain.Stages) error {
	if !stages.Has(t.StageID) {
		return response.NewStageUnknownError(t.StageID)
	}
	done := stages.IsDone(t.StageID)
	switch t.ApprovalStatus {
	case domain.ApprovalApproved:
		if t.ApprovedBy == nil || t.ApprovedAt == nil || t.CompletedAt == nil || !done {
			return response.NewValidationError("approved task must be stamped and in a done stage", t.ID.String())
		}
	case domain.ApprovalRejected:
		if done {
			return response.NewValidationError("rejected task must not be in a done stage", t.ID.String())
		}
	case domain.ApprovalPending:
		if !done {
			return response.NewValidationError("pending task must be in a done stage", t.ID.String())
		}
	}
	completed := done && (t.ApprovalStatus == domain.ApprovalApproved || t.ApprovalStatus == domain.ApprovalNotRequired)
	if completed != (t.CompletedAt != nil) {
		return response.NewValidationError("completed_at does not match state", t.ID.String())
	}
	return nil
}
