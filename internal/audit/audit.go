// Package audit keeps the append-only trail of administrative actions.
package audit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/coachly/backend/internal/storage/models"
	"github.com/coachly/backend/pkg/logger"
)

const (
	ActionCompanyBranding = "company.update_branding"
	ActionCompanyPrompt   = "company.update_prompt"
	ActionDocumentUpload  = "document.upload"
	ActionDocumentDelete  = "document.delete"
)

type Store interface {
	InsertAuditLog(ctx context.Context, e *models.AuditLogEntry) error
	ListAuditLogs(ctx context.Context, f models.AuditFilter) ([]models.AuditLogEntry, error)
}

type Entry struct {
	ActorID  string
	Action   string
	TargetID string
	Details  map[string]any
	IP       string
}

type Log struct {
	store Store
	now   func() time.Time
	log   *zap.Logger
}

func New(store Store) *Log {
	return &Log{store: store, now: time.Now, log: logger.Named("audit")}
}

func (l *Log) Record(ctx context.Context, e Entry) error {
	if e.ActorID == "" || e.Action == "" {
		return fmt.Errorf("audit entry needs actor and action: %w", models.ErrInvalidArgument)
	}

	entry := &models.AuditLogEntry{
		ActorID:   e.ActorID,
		Action:    e.Action,
		Details:   models.JSONMap(e.Details),
		CreatedAt: l.now(),
	}
	if e.TargetID != "" {
		entry.TargetID = &e.TargetID
	}
	if e.IP != "" {
		entry.IPAddress = &e.IP
	}

	if err := l.store.InsertAuditLog(ctx, entry); err != nil {
		return fmt.Errorf("failed to record audit entry: %w", err)
	}

	l.log.Info("Audit entry recorded",
		zap.String("actor_id", e.ActorID),
		zap.String("action", e.Action),
		zap.String("target_id", e.TargetID),
	)
	return nil
}

func (l *Log) List(ctx context.Context, f models.AuditFilter) ([]models.AuditLogEntry, error) {
	return l.store.ListAuditLogs(ctx, f)
}
