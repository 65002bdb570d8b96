package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/coachly/backend/internal/middleware/auth"
	"github.com/coachly/backend/internal/routines"
	"github.com/coachly/backend/internal/storage/models"
)

type RoutineService interface {
	Create(ctx context.Context, userID string, in routines.Input) (*models.Routine, error)
	List(ctx context.Context, userID string) ([]models.Routine, error)
	SetStatus(ctx context.Context, userID, routineID string, status models.RoutineStatus) (*models.Routine, error)
	LogEntry(ctx context.Context, userID, routineID string, date time.Time, completed bool, note string) (*models.RoutineEntry, error)
	Entries(ctx context.Context, userID, routineID string, since time.Time) ([]models.RoutineEntry, error)
}

type RoutineHandler struct {
	routines RoutineService
}

func NewRoutineHandler(routines RoutineService) *RoutineHandler {
	return &RoutineHandler{routines: routines}
}

func (h *RoutineHandler) ListRoutines(c *fiber.Ctx) error {
	list, err := h.routines.List(c.UserContext(), auth.UserID(c))
	if err != nil {
		return respondError(c, err, "Failed to list routines")
	}
	return c.JSON(fiber.Map{"routines": orEmpty(list)})
}

func (h *RoutineHandler) CreateRoutine(c *fiber.Ctx) error {
	var req struct {
		Title       string                  `json:"title" validate:"required,max=200"`
		Description string                  `json:"description" validate:"max=2000"`
		Frequency   models.RoutineFrequency `json:"frequency" validate:"required,oneof=daily weekly monthly custom"`
		Target      *int                    `json:"target" validate:"omitempty,gt=0"`
	}
	if err := bind(c, &req); err != nil {
		return badRequest(c, err.Error())
	}

	r, err := h.routines.Create(c.UserContext(), auth.UserID(c), routines.Input{
		Title:       req.Title,
		Description: req.Description,
		Frequency:   req.Frequency,
		Target:      req.Target,
	})
	if err != nil {
		return respondError(c, err, "Failed to create routine")
	}
	return c.Status(fiber.StatusCreated).JSON(r)
}

func (h *RoutineHandler) SetStatus(c *fiber.Ctx) error {
	var req struct {
		Status models.RoutineStatus `json:"status" validate:"required,oneof=active paused completed"`
	}
	if err := bind(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	r, err := h.routines.SetStatus(c.UserContext(), auth.UserID(c), c.Params("id"), req.Status)
	if err != nil {
		return respondError(c, err, "Failed to update routine")
	}
	return c.JSON(r)
}

// LogEntry records a check-in. "date" is YYYY-MM-DD and defaults to today.
func (h *RoutineHandler) LogEntry(c *fiber.Ctx) error {
	var req struct {
		Date      string `json:"date" validate:"omitempty,datetime=2006-01-02"`
		Completed *bool  `json:"completed"`
		Note      string `json:"note" validate:"max=2000"`
	}
	if err := bind(c, &req); err != nil {
		return badRequest(c, err.Error())
	}

	var date time.Time
	if req.Date != "" {
		d, err := time.ParseInLocation(time.DateOnly, req.Date, time.Local)
		if err != nil {
			return badRequest(c, "Date must be YYYY-MM-DD")
		}
		date = d
	}
	completed := true
	if req.Completed != nil {
		completed = *req.Completed
	}

	e, err := h.routines.LogEntry(c.UserContext(), auth.UserID(c), c.Params("id"), date, completed, req.Note)
	if err != nil {
		return respondError(c, err, "Failed to log entry")
	}
	return c.JSON(e)
}

// Entries lists check-ins of the last "days" days, 30 by default.
func (h *RoutineHandler) Entries(c *fiber.Ctx) error {
	days := c.QueryInt("days", 30)
	if days <= 0 || days > 366 {
		return badRequest(c, "days must be between 1 and 366")
	}
	since := time.Now().AddDate(0, 0, -days)

	entries, err := h.routines.Entries(c.UserContext(), auth.UserID(c), c.Params("id"), since)
	if err != nil {
		return respondError(c, err, "Failed to list entries")
	}
	return c.JSON(fiber.Map{"entries": orEmpty(entries)})
}
