// Package chat runs coaching conversations: it persists turns, assembles
// the personalized prompt and applies what the user reveals to the profile.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/coachly/backend/internal/llm"
	"github.com/coachly/backend/internal/personalization"
	"github.com/coachly/backend/internal/prompt"
	"github.com/coachly/backend/internal/routines"
	"github.com/coachly/backend/internal/storage/models"
	"github.com/coachly/backend/pkg/logger"
)

const (
	historyLimit     = 20
	maxMessageLength = 8000
	titleTimeout     = 30 * time.Second
)

type Store interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	GetCompany(ctx context.Context, id string) (*models.Company, error)
	GetPackage(ctx context.Context, id string) (*models.LearningPackage, error)

	CreateChatSession(ctx context.Context, s *models.ChatSession) error
	GetChatSession(ctx context.Context, id string) (*models.ChatSession, error)
	FindChatSessionByType(ctx context.Context, userID string, chatType models.ChatType) (*models.ChatSession, error)
	ListChatSessions(ctx context.Context, userID string) ([]models.ChatSession, error)
	UpdateChatSessionTitle(ctx context.Context, id, title string) error
	TouchChatSession(ctx context.Context, id string, at time.Time) error
	InsertMessage(ctx context.Context, m *models.Message) error
	ListMessages(ctx context.Context, sessionID string, limit int) ([]models.Message, error)
}

type ContextBuilder interface {
	BuildContext(ctx context.Context, userID, sessionID string) (*personalization.Context, error)
}

type Completer interface {
	Complete(ctx context.Context, conv llm.Conversation) string
	TitleFor(ctx context.Context, userMsg, assistantMsg string) string
}

type ProfileUpdater interface {
	ApplyExchange(ctx context.Context, userID, userMsg, assistantMsg string) (*models.Profile, bool, error)
}

type SessionLinker interface {
	LinkSession(ctx context.Context, userID, packageID, sessionID string) error
}

type Config struct {
	// BasePrompt replaces prompt.DefaultBasePrompt when set.
	BasePrompt string
}

type Service struct {
	store     Store
	contexts  ContextBuilder
	completer Completer
	profiles  ProfileUpdater
	linker    SessionLinker
	base      string
	now       func() time.Time
	log       *zap.Logger

	titles sync.WaitGroup
}

func NewService(cfg Config, store Store, contexts ContextBuilder, completer Completer, profiles ProfileUpdater, linker SessionLinker) *Service {
	base := cfg.BasePrompt
	if strings.TrimSpace(base) == "" {
		base = prompt.DefaultBasePrompt
	}
	return &Service{
		store:     store,
		contexts:  contexts,
		completer: completer,
		profiles:  profiles,
		linker:    linker,
		base:      base,
		now:       time.Now,
		log:       logger.Named("chat"),
	}
}

// CreateSession opens a chat. Onboarding, profile reflection and KI
// briefing chats are singletons: the existing session is returned instead
// of a new one. Package chats need a packageID.
func (s *Service) CreateSession(ctx context.Context, userID string, chatType models.ChatType, packageID *string) (*models.ChatSession, error) {
	if chatType == "" {
		chatType = models.ChatTypeGeneral
	}
	if !chatType.Valid() {
		return nil, fmt.Errorf("unknown chat type %q: %w", chatType, models.ErrInvalidArgument)
	}

	if chatType.IsSingleton() {
		existing, err := s.store.FindChatSessionByType(ctx, userID, chatType)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
	}

	if chatType == models.ChatTypePackage {
		if packageID == nil || *packageID == "" {
			return nil, fmt.Errorf("package chat needs a package: %w", models.ErrInvalidArgument)
		}
		if _, err := s.store.GetPackage(ctx, *packageID); err != nil {
			return nil, fmt.Errorf("failed to load package: %w", err)
		}
	} else {
		packageID = nil
	}

	now := s.now()
	session := &models.ChatSession{
		UserID:    userID,
		ChatType:  chatType,
		PackageID: packageID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateChatSession(ctx, session); err != nil {
		if chatType.IsSingleton() && errors.Is(err, models.ErrConflict) {
			// Lost the race against a concurrent first call.
			return s.store.FindChatSessionByType(ctx, userID, chatType)
		}
		return nil, fmt.Errorf("failed to create chat session: %w", err)
	}

	if packageID != nil && s.linker != nil {
		if err := s.linker.LinkSession(ctx, userID, *packageID, session.ID); err != nil {
			s.log.Warn("Failed to link package session", zap.String("session_id", session.ID), zap.Error(err))
		}
	}

	s.log.Info("Chat session created",
		zap.String("user_id", userID),
		zap.String("session_id", session.ID),
		zap.String("chat_type", string(chatType)),
	)
	return session, nil
}

// SingletonSession returns the user's session of a singleton chat type,
// creating it on first use.
func (s *Service) SingletonSession(ctx context.Context, userID string, chatType models.ChatType) (*models.ChatSession, error) {
	if !chatType.IsSingleton() {
		return nil, fmt.Errorf("chat type %q is not a singleton: %w", chatType, models.ErrInvalidArgument)
	}
	return s.CreateSession(ctx, userID, chatType, nil)
}

func (s *Service) ListSessions(ctx context.Context, userID string) ([]models.ChatSession, error) {
	return s.store.ListChatSessions(ctx, userID)
}

// Session returns the session if userID owns it.
func (s *Service) Session(ctx context.Context, userID, sessionID string) (*models.ChatSession, error) {
	session, err := s.store.GetChatSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		return nil, fmt.Errorf("chat session %s: %w", sessionID, models.ErrNotFound)
	}
	return session, nil
}

func (s *Service) History(ctx context.Context, userID, sessionID string, limit int) ([]models.Message, error) {
	if _, err := s.Session(ctx, userID, sessionID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.store.ListMessages(ctx, sessionID, limit)
}

type Reply struct {
	UserMessage      models.Message        `json:"userMessage"`
	AssistantMessage models.Message        `json:"assistantMessage"`
	ProfileUpdated   bool                  `json:"profileUpdated"`
	Suggestions      []routines.Suggestion `json:"routineSuggestions,omitempty"`
	Session          *models.ChatSession   `json:"session"`
}

// PostMessage runs one conversation turn. A failed completion is answered
// with a fixed apology instead of an error. Profile extraction runs before
// returning; the session title is generated in the background.
func (s *Service) PostMessage(ctx context.Context, userID, sessionID, content string) (*Reply, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("message is empty: %w", models.ErrInvalidArgument)
	}
	if utf8.RuneCountInString(content) > maxMessageLength {
		return nil, fmt.Errorf("message exceeds %d characters: %w", maxMessageLength, models.ErrInvalidArgument)
	}

	session, err := s.Session(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	profile, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	var company *models.Company
	if user.CompanyID != nil {
		company, err = s.store.GetCompany(ctx, *user.CompanyID)
		if err != nil && !errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("failed to load company: %w", err)
		}
	}

	history, err := s.store.ListMessages(ctx, sessionID, historyLimit)
	if err != nil {
		return nil, err
	}

	userMsg := models.Message{SessionID: sessionID, Role: models.RoleUser, Content: content, CreatedAt: s.now()}
	if err := s.store.InsertMessage(ctx, &userMsg); err != nil {
		return nil, fmt.Errorf("failed to save message: %w", err)
	}

	var contextBlock string
	uc, err := s.contexts.BuildContext(ctx, userID, sessionID)
	if err != nil {
		s.log.Warn("Context aggregation failed, answering without it", zap.String("user_id", userID), zap.Error(err))
	} else {
		contextBlock = uc.Render()
	}

	conv := llm.Conversation{
		Instructions: prompt.BuildFor(s.base, session.ChatType, company, profile),
		Context:      contextBlock,
		Turn:         content,
	}
	for _, m := range history {
		if m.Role == models.RoleSystem {
			continue
		}
		conv.History = append(conv.History, llm.Message{Role: m.Role, Content: m.Content})
	}

	reply := &Reply{UserMessage: userMsg, Session: session}

	text := s.completer.Complete(ctx, conv)
	fallback := text == ""
	if fallback {
		text = apology(profile.PreferredLanguage)
	}

	assistantMsg := models.Message{SessionID: sessionID, Role: models.RoleAssistant, Content: text, Metadata: models.JSONMap{}, CreatedAt: s.now()}
	if fallback {
		assistantMsg.Metadata["fallback"] = true
	} else if sg := routines.ParseSuggestions(text); len(sg) > 0 {
		reply.Suggestions = sg
		assistantMsg.Metadata["routineSuggestions"] = sg
	}
	if err := s.store.InsertMessage(ctx, &assistantMsg); err != nil {
		return nil, fmt.Errorf("failed to save reply: %w", err)
	}
	reply.AssistantMessage = assistantMsg

	if err := s.store.TouchChatSession(ctx, sessionID, s.now()); err != nil {
		s.log.Warn("Failed to touch chat session", zap.String("session_id", sessionID), zap.Error(err))
	}

	if !fallback && extractsProfile(session.ChatType) {
		_, changed, err := s.profiles.ApplyExchange(ctx, userID, content, text)
		if err != nil {
			s.log.Warn("Profile extraction failed", zap.String("user_id", userID), zap.Error(err))
		}
		reply.ProfileUpdated = changed
	}

	if session.Title == nil && !fallback {
		// session.ID is owned; sessionID may alias a request buffer.
		s.nameSession(ctx, session.ID, content, text)
	}

	return reply, nil
}

// nameSession generates the title of an untitled session in the background.
func (s *Service) nameSession(ctx context.Context, sessionID, userMsg, assistantMsg string) {
	s.titles.Add(1)
	go func() {
		defer s.titles.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), titleTimeout)
		defer cancel()

		title := s.completer.TitleFor(ctx, userMsg, assistantMsg)
		if title == "" {
			return
		}
		if err := s.store.UpdateChatSessionTitle(ctx, sessionID, title); err != nil {
			s.log.Warn("Failed to store session title", zap.String("session_id", sessionID), zap.Error(err))
		}
	}()
}

// Wait blocks until background title generation has finished.
func (s *Service) Wait() {
	s.titles.Wait()
}

func extractsProfile(t models.ChatType) bool {
	switch t {
	case models.ChatTypeGeneral, models.ChatTypeOnboarding, models.ChatTypeProfileReflection:
		return true
	}
	return false
}

func apology(language string) string {
	if strings.EqualFold(language, "de") {
		return "Entschuldigung, ich kann gerade nicht antworten. Bitte versuche es in einem Moment noch einmal."
	}
	return "Sorry, I can't answer right now. Please try again in a moment."
}
