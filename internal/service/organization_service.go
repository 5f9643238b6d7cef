package service

import (
	"context"
	"fmt"
	"strings"
	"unicode"

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

// OrganizationService manages the tenancy root and its teams.
type OrganizationService interface {
	CreateOrganization(ctx context.Context, userID uuid.UUID, req *dto.CreateOrganizationRequest) (*dto.OrganizationResponse, error)
	EnsurePersonalWorkspace(ctx context.Context, userID uuid.UUID, displayName string) (*dto.OrganizationResponse, error)
	ListOrganizations(ctx context.Context, userID uuid.UUID) ([]*dto.OrganizationResponse, error)
	AddOrganizationMember(ctx context.Context, userID, orgID uuid.UUID, req *dto.AddMemberRequest) error
	RemoveOrganizationMember(ctx context.Context, userID, orgID, memberID uuid.UUID) error

	CreateTeam(ctx context.Context, userID, orgID uuid.UUID, req *dto.CreateTeamRequest) (*domain.Team, error)
	ListTeams(ctx context.Context, userID, orgID uuid.UUID) ([]*domain.Team, error)
	AddTeamMember(ctx context.Context, userID, teamID uuid.UUID, req *dto.AddMemberRequest) error
	RemoveTeamMember(ctx context.Context, userID, teamID, memberID uuid.UUID) error
}

type organizationServiceImpl struct {
	rt       *Runtime
	orgs     repository.OrganizationRepository
	members  repository.MembershipRepository
	tasks    repository.TaskRepository
	activity repository.NotificationRepository
}

func NewOrganizationService(
	rt *Runtime,
	orgs repository.OrganizationRepository,
	members repository.MembershipRepository,
	tasks repository.TaskRepository,
	activity repository.NotificationRepository,
) OrganizationService {
	return &organizationServiceImpl{rt: rt, orgs: orgs, members: members, tasks: tasks, activity: activity}
}

func (s *organizationServiceImpl) memberships() memberships {
	return memberships{rt: s.rt, members: s.members}
}

func (s *organizationServiceImpl) CreateOrganization(ctx context.Context, userID uuid.UUID, req *dto.CreateOrganizationRequest) (*dto.OrganizationResponse, error) {
	base := req.Slug
	if base == "" {
		base = Slugify(req.Name)
	} else if Slugify(base) != base {
		return nil, response.NewValidationError("slug must be lowercase letters, digits and hyphens", base)
	}

	var org *domain.Organization
	err := s.rt.run(ctx, []string{"org-slug:" + base}, func(tx *database.Tx, out *outbox) error {
		var err error
		org, err = s.create(ctx, tx, out, userID, req.Name, base, req.Slug != "")
		return err
	})
	if err != nil {
		return nil, err
	}
	s.rt.Logger.Info("Organization created",
		zap.String("org_id", org.ID.String()),
		zap.String("slug", org.Slug),
		zap.String("user_id", userID.String()),
	)
	return &dto.OrganizationResponse{Organization: org, Role: domain.RoleOwner}, nil
}

func (s *organizationServiceImpl) create(ctx context.Context, tx *database.Tx, out *outbox, userID uuid.UUID, name, base string, exact bool) (*domain.Organization, error) {
	orgs := s.orgs.WithTx(tx.DB)
	slug, err := uniqueSlug(ctx, orgs, base, exact)
	if err != nil {
		return nil, err
	}
	org := &domain.Organization{Name: name, Slug: slug, CreatedBy: userID}
	if err := orgs.Create(ctx, org); err != nil {
		return nil, conflictOnDuplicate(err, response.ReasonSlugTaken, "organization slug is taken")
	}
	if err := s.members.WithTx(tx.DB).Add(ctx, domain.ScopeOrganization, org.ID, userID, domain.RoleOwner, userID); err != nil {
		return nil, database.ClassifyError(err)
	}
	out.change("organizations", broadcast.OpInsert, org.ID, uuid.Nil, org, nil)
	return org, nil
}

func (s *organizationServiceImpl) EnsurePersonalWorkspace(ctx context.Context, userID uuid.UUID, displayName string) (*dto.OrganizationResponse, error) {
	var resp *dto.OrganizationResponse
	err := s.rt.run(ctx, []string{"user:" + userID.String() + "/bootstrap"}, func(tx *database.Tx, out *outbox) error {
		existing, err := s.orgs.WithTx(tx.DB).ListForUser(ctx, userID)
		if err != nil {
			return database.ClassifyError(err)
		}
		if len(existing) > 0 {
			role, err := s.members.WithTx(tx.DB).Role(ctx, domain.ScopeOrganization, existing[0].ID, userID)
			if err != nil {
				return database.ClassifyError(err)
			}
			resp = &dto.OrganizationResponse{Organization: existing[0], Role: role}
			return nil
		}
		name := strings.TrimSpace(displayName)
		if name == "" {
			name = "My"
		} else {
			name += "'s"
		}
		org, err := s.create(ctx, tx, out, userID, name+" Workspace", Slugify(name+" workspace"), false)
		if err != nil {
			return err
		}
		resp = &dto.OrganizationResponse{Organization: org, Role: domain.RoleOwner}
		return nil
	})
	return resp, err
}

func (s *organizationServiceImpl) ListOrganizations(ctx context.Context, userID uuid.UUID) ([]*dto.OrganizationResponse, error) {
	orgs, err := s.orgs.ListForUser(ctx, userID)
	if err != nil {
		return nil, database.ClassifyError(err)
	}
	out := make([]*dto.OrganizationResponse, 0, len(orgs))
	for _, org := range orgs {
		role, err := s.members.Role(ctx, domain.ScopeOrganization, org.ID, userID)
		if err != nil {
			return nil, database.ClassifyError(err)
		}
		out = append(out, &dto.OrganizationResponse{Organization: org, Role: role})
	}
	return out, nil
}

func (s *organizationServiceImpl) AddOrganizationMember(ctx context.Context, userID, orgID uuid.UUID, req *dto.AddMemberRequest) error {
	return s.rt.run(ctx, []string{membersKey(domain.ScopeOrganization, orgID)}, func(tx *database.Tx, out *outbox) error {
		return s.memberships().add(ctx, tx, out, userCaller(userID), domain.ScopeOrganization, orgID, req.UserID, req.Role)
	})
}

// RemoveOrganizationMember removes memberID from the organization together with
// their team and project memberships in it and their task assignments in those
// projects. It fails with LastOwner when memberID is the sole owner of any of them.
func (s *organizationServiceImpl) RemoveOrganizationMember(ctx context.Context, userID, orgID, memberID uuid.UUID) error {
	teamIDs, projectIDs, err := s.members.ScopesInOrganization(ctx, orgID, memberID)
	if err != nil {
		return database.ClassifyError(err)
	}
	keys := []string{membersKey(domain.ScopeOrganization, orgID)}
	for _, id := range teamIDs {
		keys = append(keys, membersKey(domain.ScopeTeam, id))
	}
	for _, id := range projectIDs {
		keys = append(keys, membersKey(domain.ScopeProject, id))
	}

	err = s.rt.run(ctx, keys, func(tx *database.Tx, out *outbox) error {
		if _, err := s.memberships().remove(ctx, tx, out, userCaller(userID), domain.ScopeOrganization, orgID, memberID); err != nil {
			return err
		}
		teamIDs, projectIDs, err := s.members.WithTx(tx.DB).ScopesInOrganization(ctx, orgID, memberID)
		if err != nil {
			return database.ClassifyError(err)
		}
		// The organization check above already authorized the caller.
		sys := systemCaller(userID)
		for _, id := range teamIDs {
			if _, err := s.memberships().remove(ctx, tx, out, sys, domain.ScopeTeam, id, memberID); err != nil {
				return err
			}
		}
		for _, id := range projectIDs {
			if _, err := s.memberships().remove(ctx, tx, out, sys, domain.ScopeProject, id, memberID); err != nil {
				return err
			}
			if err := s.tasks.WithTx(tx.DB).RemoveProjectAssignments(ctx, id, memberID); err != nil {
				return database.ClassifyError(err)
			}
			if err := s.activity.WithTx(tx.DB).AppendActivity(ctx, activity(id, nil, userID, "member_removed",
				map[string]interface{}{"user_id": memberID, "reason": "left_organization"})); err != nil {
				return database.ClassifyError(err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.rt.Logger.Info("Organization member removed",
		zap.String("org_id", orgID.String()),
		zap.String("member_id", memberID.String()),
		zap.Int("teams", len(teamIDs)),
		zap.Int("projects", len(projectIDs)),
		zap.String("user_id", userID.String()),
	)
	return nil
}

func (s *organizationServiceImpl) CreateTeam(ctx context.Context, userID, orgID uuid.UUID, req *dto.CreateTeamRequest) (*domain.Team, error) {
	var team *domain.Team
	err := s.rt.run(ctx, []string{"org:" + orgID.String() + "/teams"}, func(tx *database.Tx, out *outbox) error {
		if _, err := s.rt.authorize(ctx, tx.DB, s.members, userCaller(userID), domain.ScopeOrganization, orgID, access.ActionMutate); err != nil {
			return err
		}
		team = &domain.Team{OrgID: orgID, Name: req.Name, Description: req.Description, Color: req.Color, Image: req.Image}
		if err := s.orgs.WithTx(tx.DB).CreateTeam(ctx, team); err != nil {
			return database.ClassifyError(err)
		}
		if err := s.members.WithTx(tx.DB).Add(ctx, domain.ScopeTeam, team.ID, userID, domain.RoleOwner, userID); err != nil {
			return database.ClassifyError(err)
		}
		out.change("teams", broadcast.OpInsert, team.ID, uuid.Nil, team, nil)
		return nil
	})
	return team, err
}

func (s *organizationServiceImpl) ListTeams(ctx context.Context, userID, orgID uuid.UUID) ([]*domain.Team, error) {
	if _, err := access.NewEvaluator(s.members).Authorize(ctx, userID, domain.ScopeOrganization, orgID, access.ActionRead); err != nil {
		return nil, err
	}
	teams, err := s.orgs.ListTeams(ctx, access.ForUser(userID), orgID)
	return teams, database.ClassifyError(err)
}

func (s *organizationServiceImpl) AddTeamMember(ctx context.Context, userID, teamID uuid.UUID, req *dto.AddMemberRequest) error {
	return s.rt.run(ctx, []string{membersKey(domain.ScopeTeam, teamID)}, func(tx *database.Tx, out *outbox) error {
		team, err := s.orgs.WithTx(tx.DB).FindTeam(ctx, access.ForUser(userID), teamID)
		if err != nil {
			return notFound(err, "team", teamID)
		}
		// Team members must already belong to the organization.
		role, err := s.members.WithTx(tx.DB).Role(ctx, domain.ScopeOrganization, team.OrgID, req.UserID)
		if err != nil {
			return database.ClassifyError(err)
		}
		if role == "" {
			return response.NewValidationError("user is not a member of the organization", req.UserID.String())
		}
		return s.memberships().add(ctx, tx, out, userCaller(userID), domain.ScopeTeam, teamID, req.UserID, req.Role)
	})
}

func (s *organizationServiceImpl) RemoveTeamMember(ctx context.Context, userID, teamID, memberID uuid.UUID) error {
	return s.rt.run(ctx, []string{membersKey(domain.ScopeTeam, teamID)}, func(tx *database.Tx, out *outbox) error {
		_, err := s.memberships().remove(ctx, tx, out, userCaller(userID), domain.ScopeTeam, teamID, memberID)
		return err
	})
}

// Slugify lowercases s and joins its letters and digits with single hyphens.
func Slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if out == "" {
		return "workspace"
	}
	if len(out) > 200 {
		out = strings.TrimSuffix(out[:200], "-")
	}
	return out
}

func uniqueSlug(ctx context.Context, orgs repository.OrganizationRepository, base string, exact bool) (string, error) {
	for i := 1; i <= 50; i++ {
		slug := base
		if i > 1 {
			slug = fmt.Sprintf("%s-%d", base, i)
		}
		taken, err := orgs.SlugExists(ctx, slug)
		if err != nil {
			return "", database.ClassifyError(err)
		}
		if !taken {
			return slug, nil
		}
		if exact {
			return "", response.NewConflictError(response.ReasonSlugTaken, "organization slug is taken")
		}
	}
	return base + "-" + uuid.NewString()[:8], nil
}
