// Package documents stores uploaded files as extracted text for the chat
// context.
package documents

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/coachly/backend/internal/audit"
	"github.com/coachly/backend/internal/metrics"
	"github.com/coachly/backend/internal/storage/models"
	"github.com/coachly/backend/internal/textextract"
	"github.com/coachly/backend/pkg/logger"
)

// MaxSize is the upload ceiling in bytes.
const MaxSize = 10 << 20

type Store interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	InsertDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	ListUserDocuments(ctx context.Context, userID string, category models.DocumentCategory) ([]models.Document, error)
	ListCompanyDocuments(ctx context.Context, companyID string) ([]models.Document, error)
	DeleteDocument(ctx context.Context, id string) error
}

type Auditor interface {
	Record(ctx context.Context, e audit.Entry) error
}

type Service struct {
	store   Store
	auditor Auditor
	now     func() time.Time
	log     *zap.Logger
}

func NewService(store Store, auditor Auditor) *Service {
	return &Service{store: store, auditor: auditor, now: time.Now, log: logger.Named("documents")}
}

type Upload struct {
	Filename string
	Data     []byte
	Category models.DocumentCategory
	IP       string
}

// Upload extracts the text of a file and stores it. Company documents can
// only be uploaded by admins of a company and are visible to every member.
func (s *Service) Upload(ctx context.Context, userID string, up Upload) (*models.Document, error) {
	if len(up.Data) > MaxSize {
		return nil, fmt.Errorf("file exceeds %d bytes: %w", MaxSize, models.ErrInvalidArgument)
	}
	name := filepath.Base(strings.TrimSpace(up.Filename))
	if name == "" || name == "." || name == "/" {
		return nil, fmt.Errorf("filename is required: %w", models.ErrInvalidArgument)
	}
	if up.Category == "" {
		up.Category = models.DocumentPersonal
	}

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	doc := &models.Document{
		UserID:     userID,
		Filename:   name,
		SizeBytes:  int64(len(up.Data)),
		Category:   up.Category,
		UploadedAt: s.now(),
	}
	switch up.Category {
	case models.DocumentPersonal:
	case models.DocumentCompany:
		if user.CompanyID == nil || !user.IsAdmin {
			return nil, fmt.Errorf("company documents need a company admin: %w", models.ErrForbidden)
		}
		doc.CompanyID = user.CompanyID
	default:
		return nil, fmt.Errorf("unknown category %q: %w", up.Category, models.ErrInvalidArgument)
	}

	res, err := textextract.Extract(name, up.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to extract %s: %w: %w", name, err, models.ErrInvalidArgument)
	}
	doc.FileType = res.FileType
	doc.ExtractedText = res.Text
	doc.Metadata = models.JSONMap{"wordCount": res.WordCount}
	if res.PageCount > 0 {
		doc.Metadata["pageCount"] = res.PageCount
	}

	if err := s.store.InsertDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to store document: %w", err)
	}
	metrics.DocumentsProcessed.WithLabelValues(res.FileType).Inc()

	if doc.Category == models.DocumentCompany {
		if err := s.auditor.Record(ctx, audit.Entry{
			ActorID:  userID,
			Action:   audit.ActionDocumentUpload,
			TargetID: doc.ID,
			Details:  map[string]any{"filename": name, "category": string(doc.Category)},
			IP:       up.IP,
		}); err != nil {
			s.log.Warn("Failed to audit document upload", zap.String("doc_id", doc.ID), zap.Error(err))
		}
	}

	s.log.Info("Document uploaded",
		zap.String("user_id", userID),
		zap.String("doc_id", doc.ID),
		zap.String("file_type", res.FileType),
		zap.Int("words", res.WordCount),
	)
	return doc, nil
}

// List returns the user's personal documents followed by their company's
// documents.
func (s *Service) List(ctx context.Context, userID string) ([]models.Document, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	docs, err := s.store.ListUserDocuments(ctx, userID, models.DocumentPersonal)
	if err != nil {
		return nil, err
	}
	if user.CompanyID != nil {
		company, err := s.store.ListCompanyDocuments(ctx, *user.CompanyID)
		if err != nil {
			return nil, err
		}
		docs = append(docs, company...)
	}
	return docs, nil
}

// Delete removes a document. Personal documents can only be deleted by
// their owner, company documents by an admin of that company.
func (s *Service) Delete(ctx context.Context, userID, docID, ip string) error {
	doc, err := s.store.GetDocument(ctx, docID)
	if err != nil {
		return err
	}
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return err
	}

	switch doc.Category {
	case models.DocumentCompany:
		if !user.IsAdmin || user.CompanyID == nil || doc.CompanyID == nil || *user.CompanyID != *doc.CompanyID {
			return fmt.Errorf("document %s: %w", docID, models.ErrForbidden)
		}
	default:
		if doc.UserID != userID {
			return fmt.Errorf("document %s: %w", docID, models.ErrNotFound)
		}
	}

	if err := s.store.DeleteDocument(ctx, docID); err != nil {
		return err
	}

	if doc.Category == models.DocumentCompany {
		if err := s.auditor.Record(ctx, audit.Entry{ActorID: userID, Action: audit.ActionDocumentDelete, TargetID: docID, IP: ip}); err != nil {
			s.log.Warn("Failed to audit document deletion", zap.String("doc_id", docID), zap.Error(err))
		}
	}
	return nil
}
