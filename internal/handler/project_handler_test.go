package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"project-workspace-api/internal/domain"
	"project-workspace-api/internal/dto"
	"project-workspace-api/internal/identity"
	"project-workspace-api/internal/response"
)

func TestProjectHandler_RemoveProjectMember(t *testing.T) {
	userID := uuid.New()
	projectID := uuid.New()
	memberID := uuid.New()

	tests := []struct {
		name           string
		path           string
		err            error
		expectedStatus int
		expectedReason string
	}{
		{
			name:           "removes member",
			path:           "/projects/" + projectID.String() + "/members/" + memberID.String(),
			expectedStatus: http.StatusOK,
		},
		{
			name:           "last owner",
			path:           "/projects/" + projectID.String() + "/members/" + memberID.String(),
			err:            response.NewLastOwnerError("project"),
			expectedStatus: http.StatusForbidden,
			expectedReason: response.ReasonLastOwner,
		},
		{
			name:           "malformed user id",
			path:           "/projects/" + projectID.String() + "/members/abc",
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Given
			handler := NewProjectHandler(&MockProjectService{
				RemoveProjectMemberFunc: func(ctx context.Context, uid, pid, mid uuid.UUID) error {
					if pid != projectID || mid != memberID {
						t.Errorf("unexpected ids %s %s", pid, mid)
					}
					return tt.err
				},
			})
			router := setupTestRouter(&userID)
			router.DELETE("/projects/:projectId/members/:userId", handler.RemoveProjectMember)
			w := httptest.NewRecorder()

			// When
			router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, tt.path, nil))

			// Then
			if w.Code != tt.expectedStatus {
				t.Errorf("RemoveProjectMember() status = %v, want %v, body: %s", w.Code, tt.expectedStatus, w.Body.String())
			}
			if tt.expectedReason != "" {
				if got := decodeError(t, w.Body.Bytes()).Reason; got != tt.expectedReason {
					t.Errorf("RemoveProjectMember() reason = %q, want %q", got, tt.expectedReason)
				}
			}
		})
	}
}

func TestProjectHandler_ListProjectsQuery(t *testing.T) {
	userID := uuid.New()
	orgID := uuid.New()

	var gotOrg *uuid.UUID
	var gotArchived bool
	handler := NewProjectHandler(&MockProjectService{
		ListProjectsFunc: func(ctx context.Context, uid uuid.UUID, oid *uuid.UUID, includeArchived bool) ([]*dto.ProjectResponse, error) {
			gotOrg, gotArchived = oid, includeArchived
			return []*dto.ProjectResponse{{Project: &domain.Project{Name: "Launch"}, Role: domain.RoleOwner}}, nil
		},
	})
	router := setupTestRouter(&userID)
	router.GET("/projects", handler.ListProjects)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/projects?org_id="+orgID.String()+"&include_archived=true", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %v", w.Code)
	}
	if gotOrg == nil || *gotOrg != orgID || !gotArchived {
		t.Errorf("ListProjects() org = %v archived = %v", gotOrg, gotArchived)
	}
	var resp struct {
		OK        bool                  `json:"ok"`
		Data      []dto.ProjectResponse `json:"data"`
		RequestID string                `json:"request_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if !resp.OK || len(resp.Data) != 1 || resp.Data[0].Role != domain.RoleOwner {
		t.Errorf("unexpected body %s", w.Body.String())
	}
	if resp.RequestID != "test-request" {
		t.Errorf("request_id = %q", resp.RequestID)
	}
}

func TestProjectHandler_ArchiveToggles(t *testing.T) {
	userID := uuid.New()
	projectID := uuid.New()
	var calls []string
	handler := NewProjectHandler(&MockProjectService{
		ArchiveProjectFunc: func(ctx context.Context, uid, pid uuid.UUID) (*dto.ProjectResponse, error) {
			calls = append(calls, "archive")
			return &dto.ProjectResponse{Project: &domain.Project{Status: domain.ProjectStatusArchived}}, nil
		},
		UnarchiveProjectFunc: func(ctx context.Context, uid, pid uuid.UUID) (*dto.ProjectResponse, error) {
			calls = append(calls, "unarchive")
			return &dto.ProjectResponse{Project: &domain.Project{}}, nil
		},
	})
	router := setupTestRouter(&userID)
	router.POST("/projects/:projectId/archive", handler.ArchiveProject)
	router.POST("/projects/:projectId/unarchive", handler.UnarchiveProject)

	for _, path := range []string{"archive", "unarchive"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/projects/"+projectID.String()+"/"+path, nil))
		if w.Code != http.StatusOK {
			t.Errorf("%s status = %v", path, w.Code)
		}
	}
	if len(calls) != 2 || calls[0] != "archive" || calls[1] != "unarchive" {
		t.Errorf("calls = %v", calls)
	}
}

func TestOrganizationHandler_Bootstrap(t *testing.T) {
	userID := uuid.New()
	var gotName string
	handler := NewOrganizationHandler(&MockOrganizationService{
		EnsurePersonalWorkspaceFunc: func(ctx context.Context, uid uuid.UUID, displayName string) (*dto.OrganizationResponse, error) {
			gotName = displayName
			return &dto.OrganizationResponse{Organization: &domain.Organization{Name: displayName + "'s Workspace"}, Role: domain.RoleOwner}, nil
		},
	})
	router := setupTestRouter(&userID)
	router.POST("/organizations/bootstrap", func(c *gin.Context) {
		ctx := identity.WithIdentity(c.Request.Context(), &identity.Identity{UserID: userID, Email: "ada@example.com", Name: "Ada"})
		c.Request = c.Request.WithContext(ctx)
		handler.EnsurePersonalWorkspace(c)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/organizations/bootstrap", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %v", w.Code)
	}
	if gotName != "Ada" {
		t.Errorf("display name = %q", gotName)
	}
}

func TestOrganizationHandler_CreateOrganization(t *testing.T) {
	userID := uuid.New()

	tests := []struct {
		name           string
		body           interface{}
		err            error
		expectedStatus int
	}{
		{name: "created", body: dto.CreateOrganizationRequest{Name: "Acme"}, expectedStatus: http.StatusCreated},
		{name: "missing name", body: map[string]string{"slug": "acme"}, expectedStatus: http.StatusBadRequest},
		{
			name:           "slug taken",
			body:           dto.CreateOrganizationRequest{Name: "Acme", Slug: "acme"},
			err:            response.NewConflictError(response.ReasonSlugTaken, "slug already in use"),
			expectedStatus: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewOrganizationHandler(&MockOrganizationService{
				CreateOrganizationFunc: func(ctx context.Context, uid uuid.UUID, req *dto.CreateOrganizationRequest) (*dto.OrganizationResponse, error) {
					if tt.err != nil {
						return nil, tt.err
					}
					return &dto.OrganizationResponse{Organization: &domain.Organization{Name: req.Name}, Role: domain.RoleOwner}, nil
				},
			})
			router := setupTestRouter(&userID)
			router.POST("/organizations", handler.CreateOrganization)

			w := httptest.NewRecorder()
			router.ServeHTTP(w, newJSONRequest(http.MethodPost, "/organizations", tt.body))

			if w.Code != tt.expectedStatus {
				t.Errorf("CreateOrganization() status = %v, want %v, body: %s", w.Code, tt.expectedStatus, w.Body.String())
			}
		})
	}
}
