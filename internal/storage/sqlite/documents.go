package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/coachly/backend/internal/storage/models"
	"github.com/coachly/backend/pkg/logger"
)

const documentColumns = `id, user_id, company_id, filename, file_type, size_bytes, category, extracted_text, metadata, uploaded_at`

func (c *Client) InsertDocument(ctx context.Context, doc *models.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO documents (`+documentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID,
		doc.UserID,
		nullableString(doc.CompanyID),
		doc.Filename,
		doc.FileType,
		doc.SizeBytes,
		string(doc.Category),
		doc.ExtractedText,
		doc.Metadata,
		toMillis(doc.UploadedAt),
	)
	if err != nil {
		return mapError(err, "insert document")
	}

	logger.Debug("Document inserted", zap.String("doc_id", doc.ID), zap.String("filename", doc.Filename))
	return nil
}

func scanDocuments(rows *sql.Rows) ([]models.Document, error) {
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		docs = append(docs, *d)
	}
	return docs, rows.Err()
}

func scanDocument(row interface{ Scan(...any) error }) (*models.Document, error) {
	var d models.Document
	var companyID sql.NullString
	var category string
	var uploadedAt int64
	err := row.Scan(&d.ID, &d.UserID, &companyID, &d.Filename, &d.FileType, &d.SizeBytes,
		&category, &d.ExtractedText, &d.Metadata, &uploadedAt)
	if err != nil {
		return nil, err
	}
	d.CompanyID = stringPtr(companyID)
	d.Category = models.DocumentCategory(category)
	d.UploadedAt = fromMillis(uploadedAt)
	return &d, nil
}

func (c *Client) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	row := c.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	d, err := scanDocument(row)
	if err != nil {
		return nil, mapError(err, "get document")
	}
	return d, nil
}

// ListUserDocuments returns a user's documents of one category, oldest first.
func (c *Client) ListUserDocuments(ctx context.Context, userID string, category models.DocumentCategory) ([]models.Document, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE user_id = ? AND category = ? ORDER BY uploaded_at`,
		userID, string(category),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list user documents: %w", err)
	}
	return scanDocuments(rows)
}

// ListCompanyDocuments returns the company-category documents of a company.
func (c *Client) ListCompanyDocuments(ctx context.Context, companyID string) ([]models.Document, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE company_id = ? AND category = 'company' ORDER BY uploaded_at`,
		companyID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list company documents: %w", err)
	}
	return scanDocuments(rows)
}

func (c *Client) DeleteDocument(ctx context.Context, id string) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return mapError(err, "delete document")
	}
	return expectOneRow(res, "delete document")
}
