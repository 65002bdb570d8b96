package auth

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coachly/backend/internal/auth"
)

func newApp(tokens *auth.TokenManager) *fiber.App {
	app := fiber.New()
	app.Use(Middleware(Config{Tokens: tokens, QueryParam: "token"}))
	app.Get("/me", func(c *fiber.Ctx) error {
		return c.SendString(UserID(c) + "|" + Email(c))
	})
	return app
}

func TestMiddleware(t *testing.T) {
	tokens := auth.NewTokenManager("secret", time.Hour)
	app := newApp(tokens)
	token, err := tokens.Issue("user-1", "max@example.com")
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/me?token="+token, nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/me", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req = httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer nope")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
