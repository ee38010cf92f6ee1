package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bicrea/gateway/internal/documents"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// IdentityKey is the gin context key the auth middleware sets to the
// verified caller id.
const IdentityKey = "userID"

// DocumentHandler serves the document endpoints.
type DocumentHandler struct {
	svc *documents.Service
}

// NewDocumentHandler constructs a DocumentHandler.
func NewDocumentHandler(svc *documents.Service) *DocumentHandler {
	return &DocumentHandler{svc: svc}
}

func callerID(c *gin.Context) (uint64, bool) {
	value, ok := c.Get(IdentityKey)
	if !ok {
		return 0, false
	}
	id, ok := value.(uint64)
	return id, ok && id != 0
}

// Upload stores a multipart file upload for the caller.
func (h *DocumentHandler) Upload(c *gin.Context) {
	ownerID, ok := callerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	fileHeader, errForm := c.FormFile("file")
	if errForm != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file field is required"})
		return
	}
	file, errOpen := fileHeader.Open()
	if errOpen != nil {
		log.WithError(errOpen).Error("open uploaded file failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	defer func() { _ = file.Close() }()

	mimeType := fileHeader.Header.Get("Content-Type")
	id, errUpload := h.svc.Upload(c.Request.Context(), ownerID, fileHeader.Filename, mimeType, fileHeader.Size, c.PostForm("project"), file)
	if errUpload != nil {
		switch {
		case errors.Is(errUpload, documents.ErrUnsupportedType):
			c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported file type"})
		case errors.Is(errUpload, documents.ErrTooLarge):
			c.JSON(http.StatusBadRequest, gin.H{"error": "file too large"})
		default:
			log.WithError(errUpload).Error("upload document failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// Get streams back a document the caller owns.
func (h *DocumentHandler) Get(c *gin.Context) {
	ownerID, ok := callerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	record, reader, errGet := h.svc.Get(c.Request.Context(), c.Param("id"), ownerID)
	if errGet != nil {
		switch {
		case errors.Is(errGet, documents.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		default:
			log.WithError(errGet).Error("fetch document failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}
	defer func() { _ = reader.Close() }()

	extra := map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", record.Name),
	}
	c.DataFromReader(http.StatusOK, record.Size, record.MimeType, reader, extra)
}

type documentSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	MimeType  string    `json:"mimeType"`
	Size      int64     `json:"size"`
	Project   string    `json:"project,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// List returns the caller's document metadata, oldest first.
func (h *DocumentHandler) List(c *gin.Context) {
	ownerID, ok := callerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	records, errList := h.svc.List(c.Request.Context(), ownerID)
	if errList != nil {
		log.WithError(errList).Error("list documents failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	out := make([]documentSummary, 0, len(records))
	for _, record := range records {
		out = append(out, documentSummary{
			ID:        record.ID,
			Name:      record.Name,
			MimeType:  record.MimeType,
			Size:      record.Size,
			Project:   record.Project,
			CreatedAt: record.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"documents": out})
}
