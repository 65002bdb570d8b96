package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/coachly/backend/internal/storage/models"
	"github.com/coachly/backend/pkg/logger"
)

// respondError maps service errors to HTTP responses. Unknown errors are
// logged and hidden behind a 500.
func respondError(c *fiber.Ctx, err error, msg string) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, models.ErrConflict):
		status = fiber.StatusConflict
	case errors.Is(err, models.ErrInvalidArgument):
		status = fiber.StatusBadRequest
	case errors.Is(err, models.ErrInvalidTransition):
		status = fiber.StatusUnprocessableEntity
	case errors.Is(err, models.ErrForbidden):
		status = fiber.StatusForbidden
	}

	if status == fiber.StatusInternalServerError {
		logger.Error(msg, zap.String("path", c.Path()), zap.Error(err))
		return c.Status(status).JSON(fiber.Map{"error": msg})
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}
