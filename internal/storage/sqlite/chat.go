package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/coachly/backend/internal/storage/models"
)

const sessionColumns = `id, user_id, title, chat_type, package_id, created_at, updated_at`

func scanSession(row interface{ Scan(...any) error }) (*models.ChatSession, error) {
	var s models.ChatSession
	var title, packageID sql.NullString
	var chatType string
	var createdAt, updatedAt int64
	if err := row.Scan(&s.ID, &s.UserID, &title, &chatType, &packageID, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	s.Title = stringPtr(title)
	s.ChatType = models.ChatType(chatType)
	s.PackageID = stringPtr(packageID)
	s.CreatedAt = fromMillis(createdAt)
	s.UpdatedAt = fromMillis(updatedAt)
	return &s, nil
}

func (c *Client) CreateChatSession(ctx context.Context, s *models.ChatSession) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO chat_sessions (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.ID,
		s.UserID,
		nullableString(s.Title),
		string(s.ChatType),
		nullableString(s.PackageID),
		toMillis(s.CreatedAt),
		toMillis(s.UpdatedAt),
	)
	return mapError(err, "insert chat session")
}

func (c *Client) GetChatSession(ctx context.Context, id string) (*models.ChatSession, error) {
	row := c.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM chat_sessions WHERE id = ?`, id)
	s, err := scanSession(row)
	if err != nil {
		return nil, mapError(err, "get chat session")
	}
	return s, nil
}

// FindChatSessionByType returns the oldest session of the given type.
func (c *Client) FindChatSessionByType(ctx context.Context, userID string, chatType models.ChatType) (*models.ChatSession, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM chat_sessions WHERE user_id = ? AND chat_type = ? ORDER BY created_at ASC LIMIT 1`,
		userID, string(chatType),
	)
	s, err := scanSession(row)
	if err != nil {
		return nil, mapError(err, "find chat session")
	}
	return s, nil
}

func (c *Client) ListChatSessions(ctx context.Context, userID string) ([]models.ChatSession, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM chat_sessions WHERE user_id = ? ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.ChatSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

func (c *Client) UpdateChatSessionTitle(ctx context.Context, id, title string) error {
	res, err := c.db.ExecContext(ctx, `UPDATE chat_sessions SET title = ? WHERE id = ?`, title, id)
	if err != nil {
		return mapError(err, "update chat session title")
	}
	return expectOneRow(res, "update chat session title")
}

func (c *Client) TouchChatSession(ctx context.Context, id string, at time.Time) error {
	_, err := c.db.ExecContext(ctx, `UPDATE chat_sessions SET updated_at = ? WHERE id = ?`, toMillis(at), id)
	return mapError(err, "touch chat session")
}

func (c *Client) InsertMessage(ctx context.Context, m *models.Message) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO messages (id, session_id, role, content, metadata, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID,
		m.SessionID,
		string(m.Role),
		m.Content,
		m.Metadata,
		toMillis(m.CreatedAt),
	)
	return mapError(err, "insert message")
}

func scanMessages(rows *sql.Rows) ([]models.Message, error) {
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var m models.Message
		var role string
		var createdAt int64
		if err := rows.Scan(&m.ID, &m.SessionID, &role, &m.Content, &m.Metadata, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		m.Role = models.MessageRole(role)
		m.CreatedAt = fromMillis(createdAt)
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// ListMessages returns the last limit messages of a session in
// chronological order.
func (c *Client) ListMessages(ctx context.Context, sessionID string, limit int) ([]models.Message, error) {
	query := `
		SELECT id, session_id, role, content, metadata, created_at FROM (
			SELECT id, session_id, role, content, metadata, created_at, rowid AS rid
			FROM messages WHERE session_id = ?
			ORDER BY created_at DESC, rid DESC
			LIMIT ?
		) ORDER BY created_at ASC, rid ASC
	`
	rows, err := c.db.QueryContext(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return scanMessages(rows)
}

// RecentUserMessages returns up to limit user-authored messages of a session,
// newest first.
func (c *Client) RecentUserMessages(ctx context.Context, sessionID string, limit int) ([]models.Message, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, session_id, role, content, metadata, created_at
		FROM messages WHERE session_id = ? AND role = 'user'
		ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent user messages: %w", err)
	}
	return scanMessages(rows)
}

// RecentUserMessagesForUser returns up to limit user-authored messages across
// all of a user's sessions, newest first.
func (c *Client) RecentUserMessagesForUser(ctx context.Context, userID string, limit int) ([]models.Message, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT m.id, m.session_id, m.role, m.content, m.metadata, m.created_at
		FROM messages m JOIN chat_sessions s ON s.id = m.session_id
		WHERE s.user_id = ? AND m.role = 'user'
		ORDER BY m.created_at DESC, m.rowid DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list user messages: %w", err)
	}
	return scanMessages(rows)
}

func (c *Client) ChatActivitySince(ctx context.Context, userID string, since time.Time) (*models.ChatActivity, error) {
	var a models.ChatActivity
	cutoff := toMillis(since)

	err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chat_sessions WHERE user_id = ? AND updated_at >= ?`, userID, cutoff,
	).Scan(&a.Sessions)
	if err != nil {
		return nil, fmt.Errorf("failed to count sessions: %w", err)
	}

	err = c.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN m.role = 'user' THEN 1 ELSE 0 END), 0)
		FROM messages m JOIN chat_sessions s ON s.id = m.session_id
		WHERE s.user_id = ? AND m.created_at >= ?`, userID, cutoff,
	).Scan(&a.Messages, &a.UserMessages)
	if err != nil {
		return nil, fmt.Errorf("failed to count messages: %w", err)
	}

	return &a, nil
}
