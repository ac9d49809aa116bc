package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/tenantry/tenantry/internal/apperr"
	"github.com/tenantry/tenantry/internal/audit"
	"github.com/tenantry/tenantry/internal/auth"
	"github.com/tenantry/tenantry/internal/billing"
	"github.com/tenantry/tenantry/internal/db/models"
	"github.com/tenantry/tenantry/internal/db/repositories"
)

const (
	personalWorkspaceName = "Personal workspace"
	maxSlugAttempts       = 3
)

// demoProjects seed a new personal workspace.
var demoProjects = []struct{ name, status string }{
	{"Onboarding flow", "active"},
	{"Billing integration", "planned"},
	{"Analytics dashboard", "paused"},
}

// OrganizationService lists the caller's organizations and provisions the
// personal workspace on first use.
type OrganizationService struct {
	authority *Authority
	orgs      *repositories.OrganizationRepository
	recorder  ActivityRecorder
}

// NewOrganizationService creates the service.
func NewOrganizationService(authority *Authority, orgs *repositories.OrganizationRepository, recorder ActivityRecorder) *OrganizationService {
	return &OrganizationService{authority: authority, orgs: orgs, recorder: recorder}
}

// ListForUser returns the caller's organizations with their role. A caller
// with no memberships gets a personal workspace created first.
func (s *OrganizationService) ListForUser(ctx context.Context, p auth.Principal) ([]*models.UserOrganization, error) {
	if err := requireUser(p); err != nil {
		return nil, err
	}

	orgs, err := s.orgs.ListForUser(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	if len(orgs) > 0 {
		return orgs, nil
	}

	if err := s.ensurePersonalWorkspace(ctx, p.UserID); err != nil {
		return nil, err
	}
	return s.orgs.ListForUser(ctx, p.UserID)
}

// Get returns orgID for one of its members.
func (s *OrganizationService) Get(ctx context.Context, p auth.Principal, orgID string) (*models.Organization, error) {
	if _, err := s.authority.Require(ctx, p, orgID, AccessMember); err != nil {
		return nil, err
	}
	org, err := s.orgs.GetByID(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, apperr.New(apperr.NotFound, "Organization not found")
	}
	return org, nil
}

// PersonalSlug is the workspace slug for userID.
func PersonalSlug(userID string) string {
	short := []rune(userID)
	if len(short) > 8 {
		short = short[:8]
	}
	return "personal-" + string(short)
}

func (s *OrganizationService) ensurePersonalWorkspace(ctx context.Context, userID string) error {
	slug := PersonalSlug(userID)

	for attempt := 0; attempt < maxSlugAttempts; attempt++ {
		org := &models.Organization{
			ID:            uuid.NewString(),
			Name:          personalWorkspaceName,
			Slug:          slug,
			Plan:          string(billing.PlanFree),
			BillingStatus: string(billing.StatusActive),
		}
		projects := make([]*models.Project, 0, len(demoProjects))
		for _, dp := range demoProjects {
			projects = append(projects, &models.Project{ID: uuid.NewString(), Name: dp.name, Status: dp.status})
		}

		created, err := s.orgs.CreateWorkspace(ctx, org, userID, projects)
		if errors.Is(err, repositories.ErrSlugTaken) {
			slug = PersonalSlug(userID) + "-" + uuid.NewString()[:4]
			continue
		}
		if err != nil {
			return err
		}
		if created {
			s.recorder.Record(ctx, audit.Entry{
				UserID:      userID,
				OrgID:       org.ID,
				Type:        audit.TypeOrgCreated,
				Description: fmt.Sprintf("Created organization %s", org.Name),
			})
		}
		return nil
	}
	return fmt.Errorf("failed to create personal workspace: slug %q unavailable", PersonalSlug(userID))
}
