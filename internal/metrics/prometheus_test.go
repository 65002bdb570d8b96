package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyFamily(t *testing.T) {
	cases := map[string]string{
		"dashboard_summary_week":    "dashboard_summary",
		"dashboard_summary_3months": "dashboard_summary",
		"company_analytics_all":     "company_analytics",
		"translations_english":      "translations",
		"recommendations":           "recommendations",
		"profile_summary":           "profile_summary",
	}
	for key, want := range cases {
		assert.Equal(t, want, KeyFamily(key), key)
	}
}

func TestMiddleware_CountsByRoute(t *testing.T) {
	app := fiber.New()
	app.Use(Middleware())
	app.Get("/items/:id", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusTeapot) })

	before := testutil.ToFloat64(RequestTotal.WithLabelValues("/items/:id", "418"))
	resp, err := app.Test(httptest.NewRequest("GET", "/items/42", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTeapot, resp.StatusCode)
	assert.Equal(t, before+1, testutil.ToFloat64(RequestTotal.WithLabelValues("/items/:id", "418")))
}
