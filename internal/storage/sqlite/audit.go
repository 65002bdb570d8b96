package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/coachly/backend/internal/storage/models"
)

// InsertAuditLog appends an audit entry. There is no update or delete path.
func (c *Client) InsertAuditLog(ctx context.Context, e *models.AuditLogEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO audit_logs (id, actor_id, action, target_id, details, ip_address, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID,
		e.ActorID,
		e.Action,
		nullableString(e.TargetID),
		e.Details,
		nullableString(e.IPAddress),
		toMillis(e.CreatedAt),
	)
	return mapError(err, "insert audit log")
}

// ListAuditLogs returns matching entries, newest first.
func (c *Client) ListAuditLogs(ctx context.Context, f models.AuditFilter) ([]models.AuditLogEntry, error) {
	var where []string
	var args []any

	if len(f.ActorIDs) > 0 {
		where = append(where, "actor_id IN (?"+strings.Repeat(", ?", len(f.ActorIDs)-1)+")")
		for _, id := range f.ActorIDs {
			args = append(args, id)
		}
	}
	if f.Action != "" {
		where = append(where, "action = ?")
		args = append(args, f.Action)
	}
	if !f.Since.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, toMillis(f.Since))
	}

	query := `SELECT id, actor_id, action, target_id, details, ip_address, created_at FROM audit_logs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, rowid DESC"

	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query += " LIMIT ?"
	args = append(args, limit)

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	defer rows.Close()

	var out []models.AuditLogEntry
	for rows.Next() {
		var e models.AuditLogEntry
		var target, ip sql.NullString
		var createdAt int64
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Action, &target, &e.Details, &ip, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		e.TargetID = stringPtr(target)
		e.IPAddress = stringPtr(ip)
		e.CreatedAt = fromMillis(createdAt)
		out = append(out, e)
	}
	return out, rows.Err()
}
