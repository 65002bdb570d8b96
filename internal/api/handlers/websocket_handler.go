package handlers

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/coachly/backend/internal/chat"
	"github.com/coachly/backend/internal/middleware/auth"
	"github.com/coachly/backend/pkg/logger"
)

const (
	wsUserKey     = "ws_user_id"
	wsTurnTimeout = 2 * time.Minute
)

type WebSocketHandler struct {
	chat             ChatService
	maxMessageLength int
}

func NewWebSocketHandler(chat ChatService, maxMessageLength int) *WebSocketHandler {
	return &WebSocketHandler{chat: chat, maxMessageLength: maxMessageLength}
}

// Upgrade accepts websocket handshakes from authenticated callers.
func (h *WebSocketHandler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	c.Locals(wsUserKey, auth.UserID(c))
	return c.Next()
}

type wsMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Content   string `json:"content"`
}

// HandleConnection runs chat turns over a websocket. Each "message" frame
// is answered with a status frame, the reply in word chunks and a final
// "complete" frame carrying the persisted turn.
func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	userID, _ := c.Locals(wsUserKey).(string)
	log := logger.Named("websocket").With(zap.String("user_id", userID))
	log.Info("WebSocket connection established")

	defer func() {
		c.Close()
		log.Info("WebSocket connection closed")
	}()

	for {
		var msg wsMessage
		if err := c.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("Failed to read WebSocket message", zap.Error(err))
			}
			break
		}

		switch msg.Type {
		case "ping":
			if err := h.send(c, fiber.Map{"type": "pong"}); err != nil {
				return
			}
			continue
		case "message":
		default:
			continue
		}

		content := strings.TrimSpace(msg.Content)
		if content == "" || (h.maxMessageLength > 0 && utf8.RuneCountInString(content) > h.maxMessageLength) {
			h.sendError(c, "Message must be between 1 and the maximum length")
			continue
		}

		if err := h.streamReply(c, userID, msg.SessionID, content); err != nil {
			log.Warn("Failed to stream reply", zap.String("session_id", msg.SessionID), zap.Error(err))
			h.sendError(c, "Failed to process message")
		}
	}
}

func (h *WebSocketHandler) streamReply(c *websocket.Conn, userID, sessionID, content string) error {
	ctx, cancel := context.WithTimeout(context.Background(), wsTurnTimeout)
	defer cancel()

	if err := h.send(c, fiber.Map{"type": "status", "content": "thinking"}); err != nil {
		return err
	}

	reply, err := h.chat.PostMessage(ctx, userID, sessionID, content)
	if err != nil {
		return err
	}

	words := splitIntoWords(reply.AssistantMessage.Content)
	for i, word := range words {
		chunk := word
		if i < len(words)-1 && word != "\n" {
			chunk += " "
		}
		if err := h.send(c, fiber.Map{"type": "chunk", "content": chunk}); err != nil {
			return err
		}
	}

	return h.sendComplete(c, reply)
}

func (h *WebSocketHandler) send(c *websocket.Conn, msg fiber.Map) error {
	return c.WriteJSON(msg)
}

func (h *WebSocketHandler) sendComplete(c *websocket.Conn, reply *chat.Reply) error {
	return c.WriteJSON(fiber.Map{
		"type":               "complete",
		"message_id":         reply.AssistantMessage.ID,
		"user_message_id":    reply.UserMessage.ID,
		"profile_updated":    reply.ProfileUpdated,
		"routineSuggestions": reply.Suggestions,
		"session":            reply.Session,
	})
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	_ = c.WriteJSON(fiber.Map{
		"type":  "error",
		"error": errorMsg,
	})
}

// splitIntoWords splits on spaces and keeps newlines as their own chunks.
func splitIntoWords(text string) []string {
	var words []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			words = append(words, current.String())
			current.Reset()
		}
	}

	for _, r := range text {
		switch r {
		case ' ':
			flush()
		case '\n':
			flush()
			words = append(words, "\n")
		default:
			current.WriteRune(r)
		}
	}
	flush()

	return words
}
