// Package company holds the admin operations on a company: branding, the
// corporate prompt and the member list.
package company

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/coachly/backend/internal/audit"
	"github.com/coachly/backend/internal/storage/models"
)

const maxPromptLength = 4000

var accentColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

type Store interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetCompany(ctx context.Context, id string) (*models.Company, error)
	UpdateCompany(ctx context.Context, c *models.Company) error
	ListCompanyUsers(ctx context.Context, companyID string) ([]models.User, error)
}

type Auditor interface {
	Record(ctx context.Context, e audit.Entry) error
	List(ctx context.Context, f models.AuditFilter) ([]models.AuditLogEntry, error)
}

type Invalidator interface {
	InvalidateCompany(ctx context.Context, companyID string)
}

type Service struct {
	store       Store
	auditor     Auditor
	invalidator Invalidator
}

func NewService(store Store, auditor Auditor, invalidator Invalidator) *Service {
	return &Service{store: store, auditor: auditor, invalidator: invalidator}
}

// Admin returns the company the actor administers. Non-admins and users
// without a company get models.ErrForbidden.
func (s *Service) Admin(ctx context.Context, actorID string) (*models.User, *models.Company, error) {
	actor, err := s.store.GetUser(ctx, actorID)
	if err != nil {
		return nil, nil, err
	}
	if !actor.IsAdmin || actor.CompanyID == nil {
		return nil, nil, fmt.Errorf("user %s is not a company admin: %w", actorID, models.ErrForbidden)
	}
	c, err := s.store.GetCompany(ctx, *actor.CompanyID)
	if err != nil {
		return nil, nil, err
	}
	return actor, c, nil
}

// ForUser returns the company of a user, or nil when the user has none.
func (s *Service) ForUser(ctx context.Context, userID string) (*models.Company, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.CompanyID == nil {
		return nil, nil
	}
	return s.store.GetCompany(ctx, *u.CompanyID)
}

func (s *Service) Members(ctx context.Context, actorID string) ([]models.User, error) {
	_, c, err := s.Admin(ctx, actorID)
	if err != nil {
		return nil, err
	}
	return s.store.ListCompanyUsers(ctx, c.ID)
}

type Branding struct {
	Name        *string
	LogoURL     *string
	AccentColor *string
}

func (s *Service) UpdateBranding(ctx context.Context, actorID, ip string, b Branding) (*models.Company, error) {
	_, c, err := s.Admin(ctx, actorID)
	if err != nil {
		return nil, err
	}

	details := map[string]any{}
	if b.Name != nil {
		name := strings.TrimSpace(*b.Name)
		if name == "" {
			return nil, fmt.Errorf("company name must not be empty: %w", models.ErrInvalidArgument)
		}
		c.Name = name
		details["name"] = name
	}
	if b.LogoURL != nil {
		c.LogoURL = optional(*b.LogoURL)
		details["logoUrl"] = *b.LogoURL
	}
	if b.AccentColor != nil {
		color := strings.TrimSpace(*b.AccentColor)
		if color != "" && !accentColor.MatchString(color) {
			return nil, fmt.Errorf("accent color must look like #1a2b3c: %w", models.ErrInvalidArgument)
		}
		c.AccentColor = optional(color)
		details["accentColor"] = color
	}

	if err := s.store.UpdateCompany(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to update company: %w", err)
	}
	if err := s.auditor.Record(ctx, audit.Entry{ActorID: actorID, Action: audit.ActionCompanyBranding, TargetID: c.ID, Details: details, IP: ip}); err != nil {
		return nil, err
	}
	return c, nil
}

// UpdateCorporatePrompt sets the company level of the prompt hierarchy. An
// empty prompt removes it.
func (s *Service) UpdateCorporatePrompt(ctx context.Context, actorID, ip, prompt string) (*models.Company, error) {
	_, c, err := s.Admin(ctx, actorID)
	if err != nil {
		return nil, err
	}

	prompt = strings.TrimSpace(prompt)
	if len([]rune(prompt)) > maxPromptLength {
		return nil, fmt.Errorf("corporate prompt exceeds %d characters: %w", maxPromptLength, models.ErrInvalidArgument)
	}
	c.CorporatePrompt = optional(prompt)

	if err := s.store.UpdateCompany(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to update company: %w", err)
	}
	if err := s.auditor.Record(ctx, audit.Entry{
		ActorID:  actorID,
		Action:   audit.ActionCompanyPrompt,
		TargetID: c.ID,
		Details:  map[string]any{"length": len([]rune(prompt))},
		IP:       ip,
	}); err != nil {
		return nil, err
	}

	s.invalidator.InvalidateCompany(ctx, c.ID)
	return c, nil
}

// AuditTrail lists audit entries produced by members of the actor's
// company.
func (s *Service) AuditTrail(ctx context.Context, actorID string, f models.AuditFilter) ([]models.AuditLogEntry, error) {
	members, err := s.Members(ctx, actorID)
	if err != nil {
		return nil, err
	}
	f.ActorIDs = nil
	for _, m := range members {
		f.ActorIDs = append(f.ActorIDs, m.ID)
	}
	if len(f.ActorIDs) == 0 {
		return nil, nil
	}
	return s.auditor.List(ctx, f)
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
