package handlers

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/coachly/backend/internal/analytics"
	"github.com/coachly/backend/pkg/utils"
)

type Translator interface {
	Translate(ctx context.Context, language string, source map[string]string) map[string]string
}

type TranslationHandler struct {
	translator Translator
	source     map[string]string
}

func NewTranslationHandler(translator Translator, source map[string]string) *TranslationHandler {
	return &TranslationHandler{translator: translator, source: source}
}

// Strings returns the UI string table in the language given by "lang",
// either a code such as "en" or a language name. The response carries an
// ETag over the translated table.
func (h *TranslationHandler) Strings(c *fiber.Ctx) error {
	lang := strings.TrimSpace(c.Query("lang"))
	language := analytics.LanguageName(strings.ToLower(lang))
	if lang == "" {
		language = ""
	}

	table := h.translator.Translate(c.UserContext(), language, h.source)
	etag := `"` + utils.HashStringMap(table) + `"`
	if c.Get(fiber.HeaderIfNoneMatch) == etag {
		return c.SendStatus(fiber.StatusNotModified)
	}
	c.Set(fiber.HeaderETag, etag)
	return c.JSON(fiber.Map{"language": language, "strings": table})
}
