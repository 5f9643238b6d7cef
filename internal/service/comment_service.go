package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"project-workspace-api/internal/access"
	"project-workspace-api/internal/broadcast"
	"project-workspace-api/internal/database"
	"project-workspace-api/internal/domain"
	"project-workspace-api/internal/dto"
	"project-workspace-api/internal/repository"
	"project-workspace-api/internal/response"
)

// CommentService defines the interface for task comments
type CommentService interface {
	AddComment(ctx context.Context, userID, taskID uuid.UUID, req *dto.CreateCommentRequest) (*domain.Comment, error)
	ListComments(ctx context.Context, userID, taskID uuid.UUID) ([]*domain.Comment, error)
	DeleteComment(ctx context.Context, userID, commentID uuid.UUID) error
}

// commentServiceImpl is the implementation of CommentService
type commentServiceImpl struct {
	tasks    *taskServiceImpl
	comments repository.CommentRepository
}

// NewCommentService creates a new instance of CommentService
func NewCommentService(
	rt *Runtime,
	comments repository.CommentRepository,
	tasks repository.TaskRepository,
	projects repository.ProjectRepository,
	members repository.MembershipRepository,
	activity repository.NotificationRepository,
) CommentService {
	return newCommentService(rt, comments, tasks, projects, members, activity)
}

func newCommentService(
	rt *Runtime,
	comments repository.CommentRepository,
	tasks repository.TaskRepository,
	projects repository.ProjectRepository,
	members repository.MembershipRepository,
	activity repository.NotificationRepository,
) *commentServiceImpl {
	return &commentServiceImpl{
		tasks:    &taskServiceImpl{rt: rt, tasks: tasks, projects: projects, members: members, activity: activity},
		comments: comments,
	}
}

// AddComment posts a comment and raises comment_added. Mentioned users must
// be members of the task's project.
func (s *commentServiceImpl) AddComment(ctx context.Context, userID, taskID uuid.UUID, req *dto.CreateCommentRequest) (*domain.Comment, error) {
	return s.add(ctx, userCaller(userID), taskID, req.Content, req.Mentions, req.Attachments)
}

func (s *commentServiceImpl) add(ctx context.Context, c caller, taskID uuid.UUID, content string, mentions []uuid.UUID, attachments []domain.CommentAttachment) (*domain.Comment, error) {
	var comment *domain.Comment
	rt := s.tasks.rt
	err := s.tasks.withTask(ctx, c, taskID, access.ActionMutate, false, nil, func(tx *database.Tx, out *outbox, ts *taskScope) error {
		t := ts.task
		mentions = uniqueIDs(mentions)
		for _, id := range mentions {
			if err := s.tasks.requireProjectMember(ctx, tx, t.ProjectID, id); err != nil {
				return err
			}
		}
		now := rt.now()
		comment = &domain.Comment{
			TaskID:      t.ID,
			ProjectID:   t.ProjectID,
			Content:     content,
			CreatedBy:   c.id,
			Mentions:    datatypes.JSONSlice[uuid.UUID](mentions),
			Attachments: datatypes.JSONSlice[domain.CommentAttachment](attachments),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.comments.WithTx(tx.DB).Create(ctx, comment); err != nil {
			return database.ClassifyError(err)
		}
		if err := s.tasks.log(ctx, tx, t, c.id, "comment_added", map[string]interface{}{"comment_id": comment.ID.String()}); err != nil {
			return err
		}
		out.change("comments", broadcast.OpInsert, comment.ID, t.ProjectID, comment, nil)

		ev := s.tasks.newEvent(ctx, domain.TriggerCommentAdded, ts, now)
		ev.Comment = comment
		out.emit(ev)
		return nil
	})
	if err != nil {
		return nil, err
	}
	rt.Logger.Info("Comment added",
		zap.String("comment_id", comment.ID.String()),
		zap.String("task_id", taskID.String()),
		zap.Int("mentions", len(comment.Mentions)),
	)
	return comment, nil
}

func (s *commentServiceImpl) ListComments(ctx context.Context, userID, taskID uuid.UUID) ([]*domain.Comment, error) {
	filter := access.ForUser(userID)
	if _, err := s.tasks.tasks.FindByID(ctx, filter, taskID); err != nil {
		return nil, notFound(err, "task", taskID)
	}
	comments, err := s.comments.ListByTask(ctx, filter, taskID)
	if err != nil {
		return nil, database.ClassifyError(err)
	}
	return comments, nil
}

// DeleteComment soft-deletes a comment. Authors may delete their own; admins any.
func (s *commentServiceImpl) DeleteComment(ctx context.Context, userID, commentID uuid.UUID) error {
	c := userCaller(userID)
	comment, err := s.comments.FindByID(ctx, c.filter(), commentID)
	if err != nil {
		return notFound(err, "comment", commentID)
	}
	return s.tasks.withTask(ctx, c, comment.TaskID, access.ActionRead, false, nil, func(tx *database.Tx, out *outbox, ts *taskScope) error {
		if comment.CreatedBy != userID && !ts.actor.Role.AtLeast(domain.RoleAdmin) {
			return response.NewForbiddenError("only the author or an admin can delete a comment", "")
		}
		if ts.project.IsArchived() {
			return response.NewConflictError(response.ReasonProjectArchived, "project is archived")
		}
		if err := s.comments.WithTx(tx.DB).SoftDelete(ctx, commentID); err != nil {
			return notFound(err, "comment", commentID)
		}
		if err := s.tasks.log(ctx, tx, ts.task, userID, "comment_deleted", map[string]interface{}{"comment_id": commentID.String()}); err != nil {
			return err
		}
		out.change("comments", broadcast.OpDelete, commentID, comment.ProjectID, nil, comment)
		return nil
	})
}
