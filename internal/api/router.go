// Package api assembles the HTTP surface under /api/v1.
package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/coachly/backend/internal/api/handlers"
	"github.com/coachly/backend/internal/metrics"
	authmw "github.com/coachly/backend/internal/middleware/auth"
	"github.com/coachly/backend/internal/middleware/ratelimit"
	"github.com/coachly/backend/internal/middleware/validation"
)

type Handlers struct {
	Chat         *handlers.ChatHandler
	WebSocket    *handlers.WebSocketHandler
	Documents    *handlers.DocumentHandler
	Profile      *handlers.ProfileHandler
	Learning     *handlers.LearningHandler
	Routines     *handlers.RoutineHandler
	Dashboard    *handlers.DashboardHandler
	Translations *handlers.TranslationHandler
	Admin        *handlers.AdminHandler
}

type Config struct {
	Tokens           authmw.Validator
	RateLimiter      *ratelimit.RateLimiter
	MaxMessageLength int
	// Ready reports whether the storage backends answer.
	Ready  func(ctx context.Context) error
	Logger *zap.Logger
}

func Register(app *fiber.App, h Handlers, cfg Config) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	app.Get("/metrics", metrics.MetricsHandler())

	api := app.Group("/api/v1")

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})
	api.Get("/ready", func(c *fiber.Ctx) error {
		if cfg.Ready != nil {
			if err := cfg.Ready(c.UserContext()); err != nil {
				cfg.Logger.Warn("Readiness check failed", zap.Error(err))
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
			}
		}
		return c.JSON(fiber.Map{"status": "ready"})
	})
	api.Get("/translations", h.Translations.Strings)

	secured := api.Group("",
		authmw.Middleware(authmw.Config{Tokens: cfg.Tokens, QueryParam: "token", Logger: cfg.Logger}),
	)
	if cfg.RateLimiter != nil {
		secured.Use(cfg.RateLimiter.Middleware(authmw.UserID))
	}
	secured.Use(validation.Middleware(validation.Config{MaxMessageLength: cfg.MaxMessageLength, Logger: cfg.Logger}))

	secured.Get("/me", h.Profile.Me)
	secured.Get("/profile", h.Profile.GetProfile)
	secured.Patch("/profile", h.Profile.UpdateProfile)
	secured.Get("/profile/summary", h.Profile.ProfileSummary)

	secured.Get("/chat/sessions", h.Chat.ListSessions)
	secured.Post("/chat/sessions", h.Chat.CreateSession)
	secured.Get("/chat/singleton/:type", h.Chat.SingletonSession)
	secured.Get("/chat/sessions/:id", h.Chat.GetSession)
	secured.Get("/chat/sessions/:id/messages", h.Chat.History)
	secured.Post("/chat/sessions/:id/messages", h.Chat.PostMessage)
	secured.Get("/chat/ws", h.WebSocket.Upgrade, websocket.New(h.WebSocket.HandleConnection))

	secured.Get("/packages", h.Learning.ListPackages)
	secured.Get("/packages/:id", h.Learning.GetPackage)
	secured.Get("/packages/:id/unit", h.Learning.CurrentUnit)
	secured.Post("/packages/:id/:action", h.Learning.Action)
	secured.Get("/progress", h.Learning.ListProgress)

	secured.Get("/routines", h.Routines.ListRoutines)
	secured.Post("/routines", h.Routines.CreateRoutine)
	secured.Put("/routines/:id/status", h.Routines.SetStatus)
	secured.Post("/routines/:id/entries", h.Routines.LogEntry)
	secured.Get("/routines/:id/entries", h.Routines.Entries)

	secured.Get("/documents", h.Documents.ListDocuments)
	secured.Post("/documents", h.Documents.UploadDocument)
	secured.Delete("/documents/:id", h.Documents.DeleteDocument)

	secured.Get("/dashboard/summary", h.Dashboard.Summary)
	secured.Get("/recommendations", h.Dashboard.Recommendations)

	admin := secured.Group("/admin")
	admin.Get("/company", h.Admin.GetCompany)
	admin.Get("/company/members", h.Admin.Members)
	admin.Put("/company/branding", h.Admin.UpdateBranding)
	admin.Put("/company/prompt", h.Admin.UpdatePrompt)
	admin.Get("/analytics", h.Admin.Analytics)
	admin.Get("/audit-logs", h.Admin.AuditLogs)
}
