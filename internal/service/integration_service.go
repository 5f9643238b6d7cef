package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"project-workspace-api/internal/access"
	"project-workspace-api/internal/broadcast"
	"project-workspace-api/internal/database"
	"project-workspace-api/internal/domain"
	"project-workspace-api/internal/dto"
	"project-workspace-api/internal/repository"
	"project-workspace-api/internal/response"
)

// IntegrationService manages a project's Slack integration.
type IntegrationService interface {
	CreateSlackIntegration(ctx context.Context, userID, projectID uuid.UUID, req *dto.CreateSlackIntegrationRequest) (*dto.SlackIntegrationResponse, error)
	GetSlackIntegration(ctx context.Context, userID, projectID uuid.UUID) (*dto.SlackIntegrationResponse, error)
	DeleteSlackIntegration(ctx context.Context, userID, projectID uuid.UUID) error
}

type integrationServiceImpl struct {
	tasks *taskServiceImpl
	slack repository.SlackRepository
}

func NewIntegrationService(
	rt *Runtime,
	slack repository.SlackRepository,
	projects repository.ProjectRepository,
	members repository.MembershipRepository,
) IntegrationService {
	return &integrationServiceImpl{
		tasks: &taskServiceImpl{rt: rt, projects: projects, members: members},
		slack: slack,
	}
}

func nonEmpty(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}

func flag(v *bool) bool {
	return v == nil || *v
}

// CreateSlackIntegration stores the single integration of a project. Exactly
// one delivery mode is allowed: a webhook, or a channel with a bot token.
func (s *integrationServiceImpl) CreateSlackIntegration(ctx context.Context, userID, projectID uuid.UUID, req *dto.CreateSlackIntegrationRequest) (*dto.SlackIntegrationResponse, error) {
	webhook := nonEmpty(req.WebhookURL)
	bot := nonEmpty(req.ChannelID) || nonEmpty(req.AccessToken)
	switch {
	case webhook && bot:
		return nil, response.NewValidationError("give either webhook_url or channel_id with access_token, not both", "")
	case !webhook && !bot:
		return nil, response.NewValidationError("webhook_url or channel_id with access_token is required", "")
	case bot && !(nonEmpty(req.ChannelID) && nonEmpty(req.AccessToken)):
		return nil, response.NewValidationError("channel_id and access_token must be given together", "")
	}

	integ := &domain.SlackIntegration{
		ProjectID:           projectID,
		IsActive:            true,
		NotifyTaskCreated:   flag(req.NotifyTaskCreated),
		NotifyStatusChanged: flag(req.NotifyStatusChanged),
		NotifyTaskAssigned:  flag(req.NotifyTaskAssigned),
		NotifyApprovals:     flag(req.NotifyApprovals),
		NotifyComments:      flag(req.NotifyComments),
		NotifyDueSoon:       flag(req.NotifyDueSoon),
		CreatedBy:           userID,
	}
	if webhook {
		integ.WebhookURL = req.WebhookURL
	} else {
		integ.ChannelID = req.ChannelID
		integ.AccessToken = req.AccessToken
	}

	c := userCaller(userID)
	rt := s.tasks.rt
	err := rt.run(ctx, []string{projectKey(projectID) + "/slack"}, func(tx *database.Tx, out *outbox) error {
		if _, err := s.tasks.loadProject(ctx, tx, c, projectID, access.ActionAdmin); err != nil {
			return err
		}
		if _, err := rt.authorize(ctx, tx.DB, s.tasks.members, c, domain.ScopeProject, projectID, access.ActionAdmin); err != nil {
			return err
		}
		if err := s.slack.WithTx(tx.DB).Create(ctx, integ); err != nil {
			return conflictOnDuplicate(err, response.ReasonIntegrationExists, "project already has a Slack integration")
		}
		out.change("slack_integrations", broadcast.OpInsert, integ.ID, projectID, redact(integ), nil)
		return nil
	})
	if err != nil {
		return nil, err
	}
	rt.Logger.Info("Slack integration created",
		zap.String("project_id", projectID.String()),
		zap.Bool("bot_token", integ.UsesBotToken()),
	)
	return redact(integ), nil
}

func (s *integrationServiceImpl) GetSlackIntegration(ctx context.Context, userID, projectID uuid.UUID) (*dto.SlackIntegrationResponse, error) {
	integ, err := s.slack.FindByProject(ctx, access.ForUser(userID), projectID)
	if err != nil {
		return nil, notFound(err, "slack integration", projectID)
	}
	return redact(integ), nil
}

func (s *integrationServiceImpl) DeleteSlackIntegration(ctx context.Context, userID, projectID uuid.UUID) error {
	c := userCaller(userID)
	rt := s.tasks.rt
	return rt.run(ctx, []string{projectKey(projectID) + "/slack"}, func(tx *database.Tx, out *outbox) error {
		if _, err := rt.authorize(ctx, tx.DB, s.tasks.members, c, domain.ScopeProject, projectID, access.ActionAdmin); err != nil {
			return err
		}
		repo := s.slack.WithTx(tx.DB)
		integ, err := repo.FindByProject(ctx, c.filter(), projectID)
		if err != nil {
			return notFound(err, "slack integration", projectID)
		}
		if err := repo.Delete(ctx, integ.ID); err != nil {
			return database.ClassifyError(err)
		}
		out.change("slack_integrations", broadcast.OpDelete, integ.ID, projectID, nil, redact(integ))
		return nil
	})
}

// redact hides the bot token; the domain type never serialises it either.
func redact(integ *domain.SlackIntegration) *dto.SlackIntegrationResponse {
	cp := *integ
	has := nonEmpty(cp.AccessToken)
	cp.AccessToken = nil
	return &dto.SlackIntegrationResponse{SlackIntegration: &cp, HasAccessToken: has}
}
