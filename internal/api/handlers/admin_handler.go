package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/coachly/backend/internal/analytics"
	"github.com/coachly/backend/internal/company"
	"github.com/coachly/backend/internal/middleware/auth"
	"github.com/coachly/backend/internal/storage/models"
)

type CompanyService interface {
	Admin(ctx context.Context, actorID string) (*models.User, *models.Company, error)
	Members(ctx context.Context, actorID string) ([]models.User, error)
	UpdateBranding(ctx context.Context, actorID, ip string, b company.Branding) (*models.Company, error)
	UpdateCorporatePrompt(ctx context.Context, actorID, ip, prompt string) (*models.Company, error)
	AuditTrail(ctx context.Context, actorID string, f models.AuditFilter) ([]models.AuditLogEntry, error)
}

type CompanySummarizer interface {
	GenerateCompanyAnalyticsSummary(ctx context.Context, companyID string, period analytics.Period) (*analytics.CompanySummary, error)
}

type AdminHandler struct {
	companies CompanyService
	summaries CompanySummarizer
}

func NewAdminHandler(companies CompanyService, summaries CompanySummarizer) *AdminHandler {
	return &AdminHandler{companies: companies, summaries: summaries}
}

func (h *AdminHandler) GetCompany(c *fiber.Ctx) error {
	_, co, err := h.companies.Admin(c.UserContext(), auth.UserID(c))
	if err != nil {
		return respondError(c, err, "Failed to load company")
	}
	return c.JSON(co)
}

func (h *AdminHandler) Members(c *fiber.Ctx) error {
	members, err := h.companies.Members(c.UserContext(), auth.UserID(c))
	if err != nil {
		return respondError(c, err, "Failed to list members")
	}
	return c.JSON(fiber.Map{"members": orEmpty(members)})
}

func (h *AdminHandler) UpdateBranding(c *fiber.Ctx) error {
	var req struct {
		Name        *string `json:"name" validate:"omitempty,max=120"`
		LogoURL     *string `json:"logoUrl" validate:"omitempty,url"`
		AccentColor *string `json:"accentColor"`
	}
	if err := bind(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	co, err := h.companies.UpdateBranding(c.UserContext(), auth.UserID(c), c.IP(), company.Branding{
		Name:        req.Name,
		LogoURL:     req.LogoURL,
		AccentColor: req.AccentColor,
	})
	if err != nil {
		return respondError(c, err, "Failed to update branding")
	}
	return c.JSON(co)
}

func (h *AdminHandler) UpdatePrompt(c *fiber.Ctx) error {
	var req struct {
		Prompt string `json:"prompt" validate:"max=4000"`
	}
	if err := bind(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	co, err := h.companies.UpdateCorporatePrompt(c.UserContext(), auth.UserID(c), c.IP(), req.Prompt)
	if err != nil {
		return respondError(c, err, "Failed to update corporate prompt")
	}
	return c.JSON(co)
}

func (h *AdminHandler) Analytics(c *fiber.Ctx) error {
	ctx := c.UserContext()
	period, err := analytics.ParsePeriod(c.Query("period"))
	if err != nil {
		return respondError(c, err, "Invalid period")
	}
	_, co, err := h.companies.Admin(ctx, auth.UserID(c))
	if err != nil {
		return respondError(c, err, "Failed to load company")
	}
	summary, err := h.summaries.GenerateCompanyAnalyticsSummary(ctx, co.ID, period)
	if err != nil {
		return respondError(c, err, "Failed to generate company analytics")
	}
	return c.JSON(summary)
}

// AuditLogs accepts "action", "since" (RFC 3339) and "limit" filters.
func (h *AdminHandler) AuditLogs(c *fiber.Ctx) error {
	f := models.AuditFilter{
		Action: strings.TrimSpace(c.Query("action")),
		Limit:  c.QueryInt("limit", 100),
	}
	if s := c.Query("since"); s != "" {
		since, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return badRequest(c, "since must be an RFC 3339 timestamp")
		}
		f.Since = since
	}

	entries, err := h.companies.AuditTrail(c.UserContext(), auth.UserID(c), f)
	if err != nil {
		return respondError(c, err, "Failed to list audit logs")
	}
	return c.JSON(fiber.Map{"entries": orEmpty(entries)})
}
