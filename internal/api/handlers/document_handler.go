package handlers

import (
	"context"
	"fmt"
	"io"

	"github.com/gofiber/fiber/v2"

	"github.com/coachly/backend/internal/documents"
	"github.com/coachly/backend/internal/middleware/auth"
	"github.com/coachly/backend/internal/storage/models"
)

type DocumentService interface {
	Upload(ctx context.Context, userID string, up documents.Upload) (*models.Document, error)
	List(ctx context.Context, userID string) ([]models.Document, error)
	Delete(ctx context.Context, userID, docID, ip string) error
}

type DocumentHandler struct {
	documents DocumentService
}

func NewDocumentHandler(documents DocumentService) *DocumentHandler {
	return &DocumentHandler{documents: documents}
}

type documentView struct {
	ID         string                  `json:"id"`
	Filename   string                  `json:"filename"`
	FileType   string                  `json:"fileType"`
	SizeBytes  int64                   `json:"sizeBytes"`
	Category   models.DocumentCategory `json:"category"`
	Metadata   models.JSONMap          `json:"metadata"`
	UploadedAt int64                   `json:"uploadedAt"`
	Owned      bool                    `json:"owned"`
}

func viewOf(d models.Document, userID string) documentView {
	return documentView{
		ID:         d.ID,
		Filename:   d.Filename,
		FileType:   d.FileType,
		SizeBytes:  d.SizeBytes,
		Category:   d.Category,
		Metadata:   d.Metadata,
		UploadedAt: d.UploadedAt.UnixMilli(),
		Owned:      d.UserID == userID,
	}
}

// UploadDocument accepts a multipart form with a "file" part and an
// optional "category" field.
func (h *DocumentHandler) UploadDocument(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "A file is required")
	}
	if fh.Size > documents.MaxSize {
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
			"error": fmt.Sprintf("File exceeds %d bytes", documents.MaxSize),
		})
	}

	f, err := fh.Open()
	if err != nil {
		return respondError(c, err, "Failed to read upload")
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, documents.MaxSize+1))
	if err != nil {
		return respondError(c, err, "Failed to read upload")
	}

	userID := auth.UserID(c)
	doc, err := h.documents.Upload(c.UserContext(), userID, documents.Upload{
		Filename: fh.Filename,
		Data:     data,
		Category: models.DocumentCategory(c.FormValue("category")),
		IP:       c.IP(),
	})
	if err != nil {
		return respondError(c, err, "Failed to process document")
	}
	return c.Status(fiber.StatusCreated).JSON(viewOf(*doc, userID))
}

func (h *DocumentHandler) ListDocuments(c *fiber.Ctx) error {
	userID := auth.UserID(c)
	docs, err := h.documents.List(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err, "Failed to list documents")
	}
	views := make([]documentView, 0, len(docs))
	for _, d := range docs {
		views = append(views, viewOf(d, userID))
	}
	return c.JSON(fiber.Map{"documents": views})
}

func (h *DocumentHandler) DeleteDocument(c *fiber.Ctx) error {
	if err := h.documents.Delete(c.UserContext(), auth.UserID(c), c.Params("id"), c.IP()); err != nil {
		return respondError(c, err, "Failed to delete document")
	}
	return c.SendStatus(fiber.StatusNoContent)
}
