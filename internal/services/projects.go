package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/tenantry/tenantry/internal/apperr"
	"github.com/tenantry/tenantry/internal/audit"
	"github.com/tenantry/tenantry/internal/auth"
	"github.com/tenantry/tenantry/internal/db/models"
	"github.com/tenantry/tenantry/internal/db/repositories"
)

var errProjectNameRequired = apperr.New(apperr.InvalidInput, "Project name is required")

// ProjectService manages an organization's projects. Any member may act.
type ProjectService struct {
	authority *Authority
	projects  *repositories.ProjectRepository
	recorder  ActivityRecorder
}

// NewProjectService creates the service.
func NewProjectService(authority *Authority, projects *repositories.ProjectRepository, recorder ActivityRecorder) *ProjectService {
	return &ProjectService{authority: authority, projects: projects, recorder: recorder}
}

// List returns orgID's projects.
func (s *ProjectService) List(ctx context.Context, p auth.Principal, orgID string) ([]*models.Project, error) {
	if _, err := s.authority.Require(ctx, p, orgID, AccessMember); err != nil {
		return nil, err
	}
	return s.projects.ListByOrganization(ctx, orgID)
}

// Create adds a project, subject to the plan project cap.
func (s *ProjectService) Create(ctx context.Context, p auth.Principal, orgID, name, status string) (*models.Project, error) {
	if _, err := s.authority.Require(ctx, p, orgID, AccessMember); err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errProjectNameRequired
	}
	status = strings.TrimSpace(status)
	if status == "" {
		status = models.DefaultProjectStatus
	}

	project := &models.Project{ID: uuid.NewString(), OrganizationID: orgID, Name: name, Status: status}
	if err := s.projects.Create(ctx, project); err != nil {
		switch {
		case errors.Is(err, repositories.ErrProjectLimitReached):
			return nil, apperr.New(apperr.CapacityExceeded, "Project limit reached for current plan")
		case errors.Is(err, repositories.ErrOrganizationNotFound):
			return nil, apperr.New(apperr.NotFound, "Organization not found")
		}
		return nil, err
	}

	s.recorder.Record(ctx, audit.Entry{
		UserID:      p.UserID,
		OrgID:       orgID,
		Type:        audit.TypeProjectCreated,
		Description: fmt.Sprintf("Created project %s", name),
	})
	return project, nil
}

// Update edits a project's name and/or status.
func (s *ProjectService) Update(ctx context.Context, p auth.Principal, orgID, projectID string, upd models.ProjectUpdate) error {
	if _, err := s.authority.Require(ctx, p, orgID, AccessMember); err != nil {
		return err
	}
	if upd.Name == nil && upd.Status == nil {
		return apperr.New(apperr.InvalidInput, "Nothing to update")
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return errProjectNameRequired
		}
		upd.Name = &name
	}
	if upd.Status != nil {
		status := strings.TrimSpace(*upd.Status)
		if status == "" {
			status = models.DefaultProjectStatus
		}
		upd.Status = &status
	}

	if err := s.projects.Update(ctx, orgID, projectID, upd); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return apperr.New(apperr.NotFound, "Project not found")
		}
		return err
	}

	s.recorder.Record(ctx, audit.Entry{
		UserID:      p.UserID,
		OrgID:       orgID,
		Type:        audit.TypeProjectUpdated,
		Description: fmt.Sprintf("Updated project %s", projectID),
	})
	return nil
}
