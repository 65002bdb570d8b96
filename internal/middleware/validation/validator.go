package validation

import (
	"strings"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// LocalsMessage holds the sanitized chat message content.
const LocalsMessage = "sanitized_message"

type Config struct {
	MaxMessageLength    int
	AllowedContentTypes []string
	Logger              *zap.Logger
}

// Middleware rejects bodies the API cannot read and sanitizes chat message
// content before it reaches the handler.
func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxMessageLength == 0 {
		cfg.MaxMessageLength = 8000
	}
	if len(cfg.AllowedContentTypes) == 0 {
		cfg.AllowedContentTypes = []string{fiber.MIMEApplicationJSON, fiber.MIMEMultipartForm}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		method := c.Method()
		if method == fiber.MethodPost || method == fiber.MethodPut || method == fiber.MethodPatch {
			contentType := c.Get(fiber.HeaderContentType)
			if contentType != "" && !allowed(contentType, cfg.AllowedContentTypes) {
				return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
					"error": "Unsupported content type",
				})
			}
		}

		if method == fiber.MethodPost && strings.HasSuffix(c.Path(), "/messages") {
			var req struct {
				Content *string `json:"content"`
			}
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid JSON format",
				})
			}
			if req.Content == nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Content is required and must be a string",
				})
			}

			content := sanitizeString(*req.Content)
			if content == "" {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Content must not be empty",
				})
			}
			if utf8.RuneCountInString(content) > cfg.MaxMessageLength {
				cfg.Logger.Warn("Oversized chat message",
					zap.String("ip", c.IP()),
					zap.Int("length", utf8.RuneCountInString(content)),
				)
				return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
					"error": "Message exceeds maximum length",
				})
			}
			c.Locals(LocalsMessage, content)
		}

		return c.Next()
	}
}

func allowed(contentType string, types []string) bool {
	for _, t := range types {
		if strings.Contains(contentType, t) {
			return true
		}
	}
	return false
}

func sanitizeString(input string) string {
	input = strings.ToValidUTF8(input, "")
	input = strings.ReplaceAll(input, "\x00", "")
	return strings.TrimSpace(input)
}

// Message returns the sanitized chat message content, if any.
func Message(c *fiber.Ctx) (string, bool) {
	s, ok := c.Locals(LocalsMessage).(string)
	return s, ok
}
