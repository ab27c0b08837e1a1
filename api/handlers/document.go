package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/corpuskit/knowledge-engine/internal/models"
	"github.com/corpuskit/knowledge-engine/internal/service/document"
	"github.com/corpuskit/knowledge-engine/pkg/logger"
)

type DocumentHandler struct {
	service document.Manager
	logger  logger.Logger
}

// ErrorResponse is the uniform error body for all endpoints.
type ErrorResponse struct {
	Error   string `json:"error,omitempty"`
	Message string `json:"message"`
}

func NewDocumentHandler(service document.Manager, logger logger.Logger) *DocumentHandler {
	return &DocumentHandler{
		service: service,
		logger:  logger,
	}
}

// Upload accepts a document file and schedules its ingestion.
func (h *DocumentHandler) Upload(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		h.handleError(c, http.StatusBadRequest, "Invalid file upload", err)
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	doc, err := h.service.Upload(c.Request.Context(), file, header.Filename, contentType)
	if err != nil {
		if errors.Is(err, models.ErrExtraction) {
			h.handleError(c, http.StatusUnsupportedMediaType, "Unsupported document", err)
			return
		}
		h.handleError(c, http.StatusInternalServerError, "Failed to upload document", err)
		return
	}

	c.JSON(http.StatusAccepted, doc)
}

// List returns every document with its lifecycle status.
func (h *DocumentHandler) List(c *gin.Context) {
	docs, err := h.service.List(c.Request.Context())
	if err != nil {
		h.handleError(c, http.StatusInternalServerError, "Failed to list documents", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs})
}

// Get returns one document.
func (h *DocumentHandler) Get(c *gin.Context) {
	doc, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			h.handleError(c, http.StatusNotFound, "Document not found", err)
			return
		}
		h.handleError(c, http.StatusInternalServerError, "Failed to get document", err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// Reprocess schedules re-ingestion of a ready or failed document.
func (h *DocumentHandler) Reprocess(c *gin.Context) {
	doc, coalesced, err := h.service.Reprocess(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			h.handleError(c, http.StatusNotFound, "Document not found", err)
		case errors.Is(err, models.ErrInvalidTransition):
			h.handleError(c, http.StatusConflict, "Document cannot be reprocessed in its current status", err)
		default:
			h.handleError(c, http.StatusInternalServerError, "Failed to schedule reprocessing", err)
		}
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"documentId": doc.ID,
		"coalesced":  coalesced,
	})
}

// Delete removes a document and all of its derived data.
func (h *DocumentHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			h.handleError(c, http.StatusNotFound, "Document not found", err)
			return
		}
		h.handleError(c, http.StatusInternalServerError, "Failed to delete document", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Document deleted"})
}

func (h *DocumentHandler) handleError(c *gin.Context, status int, message string, err error) {
	h.logger.Error(message,
		logger.String("path", c.Request.URL.Path),
		logger.Error(err),
	)

	response := ErrorResponse{Message: message}
	if err != nil {
		response.Error = err.Error()
	}
	c.JSON(status, response)
}
