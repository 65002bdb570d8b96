package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/coachly/backend/internal/middleware/auth"
	"github.com/coachly/backend/internal/storage/models"
)

type LearningService interface {
	Packages(ctx context.Context) ([]models.LearningPackage, error)
	Package(ctx context.Context, id string) (*models.LearningPackage, error)
	Progress(ctx context.Context, userID string) ([]models.ProgressWithPackage, error)
	Start(ctx context.Context, userID, packageID string) (*models.ProgressRecord, error)
	Advance(ctx context.Context, userID, packageID string) (*models.ProgressRecord, error)
	Pause(ctx context.Context, userID, packageID string) (*models.ProgressRecord, error)
	Resume(ctx context.Context, userID, packageID string) (*models.ProgressRecord, error)
	Complete(ctx context.Context, userID, packageID string) (*models.ProgressRecord, error)
	CurrentUnit(ctx context.Context, userID, packageID string) (*models.LearningUnit, *models.ProgressRecord, error)
}

type LearningHandler struct {
	learning LearningService
}

func NewLearningHandler(learning LearningService) *LearningHandler {
	return &LearningHandler{learning: learning}
}

func (h *LearningHandler) ListPackages(c *fiber.Ctx) error {
	packages, err := h.learning.Packages(c.UserContext())
	if err != nil {
		return respondError(c, err, "Failed to list packages")
	}
	return c.JSON(fiber.Map{"packages": orEmpty(packages)})
}

func (h *LearningHandler) GetPackage(c *fiber.Ctx) error {
	pkg, err := h.learning.Package(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err, "Failed to load package")
	}
	return c.JSON(pkg)
}

func (h *LearningHandler) ListProgress(c *fiber.Ctx) error {
	progress, err := h.learning.Progress(c.UserContext(), auth.UserID(c))
	if err != nil {
		return respondError(c, err, "Failed to list progress")
	}
	return c.JSON(fiber.Map{"progress": orEmpty(progress)})
}

func (h *LearningHandler) CurrentUnit(c *fiber.Ctx) error {
	unit, progress, err := h.learning.CurrentUnit(c.UserContext(), auth.UserID(c), c.Params("id"))
	if err != nil {
		return respondError(c, err, "Failed to load unit")
	}
	return c.JSON(fiber.Map{"unit": unit, "progress": progress})
}

// Action handles POST /packages/:id/:action for start, advance, pause,
// resume and complete.
func (h *LearningHandler) Action(c *fiber.Ctx) error {
	var op func(context.Context, string, string) (*models.ProgressRecord, error)
	switch c.Params("action") {
	case "start":
		op = h.learning.Start
	case "advance":
		op = h.learning.Advance
	case "pause":
		op = h.learning.Pause
	case "resume":
		op = h.learning.Resume
	case "complete":
		op = h.learning.Complete
	default:
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Unknown action"})
	}

	progress, err := op(c.UserContext(), auth.UserID(c), c.Params("id"))
	if err != nil {
		return respondError(c, err, "Failed to update progress")
	}
	return c.JSON(progress)
}
