// Package auth is the fiber middleware that authenticates API requests.
package auth

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/coachly/backend/internal/auth"
)

const (
	localsUserID = "user_id"
	localsEmail  = "user_email"
)

type Validator interface {
	Validate(token string) (*auth.Claims, error)
}

type Config struct {
	Tokens Validator
	// QueryParam names a query parameter that may carry the token. The
	// websocket handshake cannot set headers.
	QueryParam string
	Logger     *zap.Logger
}

func Middleware(cfg Config) fiber.Handler {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		token, err := auth.BearerToken(c.Get(fiber.HeaderAuthorization))
		if err != nil && cfg.QueryParam != "" {
			if q := c.Query(cfg.QueryParam); q != "" {
				token, err = q, nil
			}
		}
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing or malformed bearer token",
			})
		}

		claims, err := cfg.Tokens.Validate(token)
		if err != nil {
			cfg.Logger.Debug("Rejected token",
				zap.String("ip", c.IP()),
				zap.String("path", c.Path()),
				zap.Error(err),
			)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		c.Locals(localsUserID, claims.UserID())
		c.Locals(localsEmail, claims.Email)
		return c.Next()
	}
}

// UserID returns the authenticated user id, or "" outside the middleware.
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(localsUserID).(string)
	return id
}

func Email(c *fiber.Ctx) string {
	email, _ := c.Locals(localsEmail).(string)
	return email
}
