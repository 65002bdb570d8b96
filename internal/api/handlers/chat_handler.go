package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/coachly/backend/internal/chat"
	"github.com/coachly/backend/internal/middleware/auth"
	"github.com/coachly/backend/internal/middleware/validation"
	"github.com/coachly/backend/internal/storage/models"
)

type ChatService interface {
	CreateSession(ctx context.Context, userID string, chatType models.ChatType, packageID *string) (*models.ChatSession, error)
	SingletonSession(ctx context.Context, userID string, chatType models.ChatType) (*models.ChatSession, error)
	ListSessions(ctx context.Context, userID string) ([]models.ChatSession, error)
	Session(ctx context.Context, userID, sessionID string) (*models.ChatSession, error)
	History(ctx context.Context, userID, sessionID string, limit int) ([]models.Message, error)
	PostMessage(ctx context.Context, userID, sessionID, content string) (*chat.Reply, error)
}

type ChatHandler struct {
	chat ChatService
}

func NewChatHandler(chat ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

func (h *ChatHandler) CreateSession(c *fiber.Ctx) error {
	var req struct {
		ChatType  models.ChatType `json:"chatType" validate:"omitempty,oneof=general onboarding profile_reflection ki_briefing package"`
		PackageID *string         `json:"packageId" validate:"required_if=ChatType package"`
	}
	if err := bind(c, &req); err != nil {
		return badRequest(c, err.Error())
	}

	session, err := h.chat.CreateSession(c.UserContext(), auth.UserID(c), req.ChatType, req.PackageID)
	if err != nil {
		return respondError(c, err, "Failed to create chat session")
	}
	return c.Status(fiber.StatusCreated).JSON(session)
}

func (h *ChatHandler) SingletonSession(c *fiber.Ctx) error {
	session, err := h.chat.SingletonSession(c.UserContext(), auth.UserID(c), models.ChatType(c.Params("type")))
	if err != nil {
		return respondError(c, err, "Failed to open chat session")
	}
	return c.JSON(session)
}

func (h *ChatHandler) ListSessions(c *fiber.Ctx) error {
	sessions, err := h.chat.ListSessions(c.UserContext(), auth.UserID(c))
	if err != nil {
		return respondError(c, err, "Failed to list chat sessions")
	}
	return c.JSON(fiber.Map{"sessions": orEmpty(sessions)})
}

func (h *ChatHandler) GetSession(c *fiber.Ctx) error {
	session, err := h.chat.Session(c.UserContext(), auth.UserID(c), c.Params("id"))
	if err != nil {
		return respondError(c, err, "Failed to load chat session")
	}
	return c.JSON(session)
}

func (h *ChatHandler) History(c *fiber.Ctx) error {
	messages, err := h.chat.History(c.UserContext(), auth.UserID(c), c.Params("id"), c.QueryInt("limit", 100))
	if err != nil {
		return respondError(c, err, "Failed to load messages")
	}
	return c.JSON(fiber.Map{"messages": orEmpty(messages)})
}

func (h *ChatHandler) PostMessage(c *fiber.Ctx) error {
	content, ok := validation.Message(c)
	if !ok {
		var req struct {
			Content string `json:"content"`
		}
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid request body")
		}
		content = req.Content
	}

	reply, err := h.chat.PostMessage(c.UserContext(), auth.UserID(c), c.Params("id"), content)
	if err != nil {
		return respondError(c, err, "Failed to process message")
	}
	return c.JSON(reply)
}

func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
