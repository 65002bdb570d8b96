package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/coachly/backend/internal/analytics"
	"github.com/coachly/backend/internal/middleware/auth"
	"github.com/coachly/backend/internal/profile"
	"github.com/coachly/backend/internal/storage/models"
	"github.com/coachly/backend/pkg/logger"
)

type UserStore interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User, preferredLanguage string) error
	GetCompany(ctx context.Context, id string) (*models.Company, error)
}

type ProfileService interface {
	Get(ctx context.Context, userID string) (*models.Profile, error)
	Update(ctx context.Context, userID string, patch profile.Patch) (*models.Profile, error)
}

type ProfileSummarizer interface {
	GenerateProfileSummary(ctx context.Context, userID string) (*analytics.ProfileSummary, error)
}

type ProfileHandler struct {
	users           UserStore
	profiles        ProfileService
	summaries       ProfileSummarizer
	defaultLanguage string
}

func NewProfileHandler(users UserStore, profiles ProfileService, summaries ProfileSummarizer, defaultLanguage string) *ProfileHandler {
	return &ProfileHandler{users: users, profiles: profiles, summaries: summaries, defaultLanguage: defaultLanguage}
}

// Me returns the caller with profile and company. The first authenticated
// request of a new identity creates the user row.
func (h *ProfileHandler) Me(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := auth.UserID(c)

	user, err := h.users.GetUser(ctx, userID)
	if errors.Is(err, models.ErrNotFound) {
		email := auth.Email(c)
		if email == "" {
			email = userID
		}
		user = &models.User{ID: userID, Email: email, AuthProvider: "jwt", CreatedAt: time.Now()}
		if err = h.users.CreateUser(ctx, user, h.defaultLanguage); err != nil && !errors.Is(err, models.ErrConflict) {
			return respondError(c, err, "Failed to create user")
		}
		logger.Info("User provisioned", zap.String("user_id", userID))
		user, err = h.users.GetUser(ctx, userID)
	}
	if err != nil {
		return respondError(c, err, "Failed to load user")
	}

	p, err := h.profiles.Get(ctx, userID)
	if err != nil {
		return respondError(c, err, "Failed to load profile")
	}

	resp := fiber.Map{"user": user, "profile": p}
	if user.CompanyID != nil {
		company, err := h.users.GetCompany(ctx, *user.CompanyID)
		if err != nil {
			return respondError(c, err, "Failed to load company")
		}
		resp["company"] = company
	}
	return c.JSON(resp)
}

func (h *ProfileHandler) GetProfile(c *fiber.Ctx) error {
	p, err := h.profiles.Get(c.UserContext(), auth.UserID(c))
	if err != nil {
		return respondError(c, err, "Failed to load profile")
	}
	return c.JSON(p)
}

func (h *ProfileHandler) UpdateProfile(c *fiber.Ctx) error {
	var patch profile.Patch
	if err := bind(c, &patch); err != nil {
		return badRequest(c, err.Error())
	}
	p, err := h.profiles.Update(c.UserContext(), auth.UserID(c), patch)
	if err != nil {
		return respondError(c, err, "Failed to update profile")
	}
	return c.JSON(p)
}

func (h *ProfileHandler) ProfileSummary(c *fiber.Ctx) error {
	summary, err := h.summaries.GenerateProfileSummary(c.UserContext(), auth.UserID(c))
	if err != nil {
		return respondError(c, err, "Failed to generate profile summary")
	}
	return c.JSON(summary)
}
