package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/coachly/backend/internal/analytics"
	"github.com/coachly/backend/internal/middleware/auth"
	"github.com/coachly/backend/internal/storage/models"
)

type ActivitySummarizer interface {
	GenerateActivitySummary(ctx context.Context, userID string, period analytics.Period) (*analytics.ActivitySummary, error)
}

type Recommender interface {
	Recommend(ctx context.Context, userID string) ([]string, error)
}

type PackageCatalog interface {
	Packages(ctx context.Context) ([]models.LearningPackage, error)
}

type DashboardHandler struct {
	summaries       ActivitySummarizer
	recommendations Recommender
	catalog         PackageCatalog
}

func NewDashboardHandler(summaries ActivitySummarizer, recommendations Recommender, catalog PackageCatalog) *DashboardHandler {
	return &DashboardHandler{summaries: summaries, recommendations: recommendations, catalog: catalog}
}

func (h *DashboardHandler) Summary(c *fiber.Ctx) error {
	period, err := analytics.ParsePeriod(c.Query("period"))
	if err != nil {
		return respondError(c, err, "Invalid period")
	}
	summary, err := h.summaries.GenerateActivitySummary(c.UserContext(), auth.UserID(c), period)
	if err != nil {
		return respondError(c, err, "Failed to generate summary")
	}
	return c.JSON(summary)
}

// Recommendations returns the recommended packages in ranking order.
func (h *DashboardHandler) Recommendations(c *fiber.Ctx) error {
	ctx := c.UserContext()
	ids, err := h.recommendations.Recommend(ctx, auth.UserID(c))
	if err != nil {
		return respondError(c, err, "Failed to generate recommendations")
	}

	catalog, err := h.catalog.Packages(ctx)
	if err != nil {
		return respondError(c, err, "Failed to list packages")
	}
	byID := make(map[string]models.LearningPackage, len(catalog))
	for _, p := range catalog {
		byID[p.ID] = p
	}

	packages := make([]models.LearningPackage, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			packages = append(packages, p)
		}
	}
	return c.JSON(fiber.Map{"packageIds": orEmpty(ids), "packages": packages})
}
