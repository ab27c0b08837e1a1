package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/corpuskit/knowledge-engine/internal/models"
	"github.com/corpuskit/knowledge-engine/internal/service/autofill"
	"github.com/corpuskit/knowledge-engine/internal/service/form"
	"github.com/corpuskit/knowledge-engine/pkg/logger"
)

type FormHandler struct {
	forms    *form.Service
	autofill *autofill.Service
	logger   logger.Logger
}

func NewFormHandler(forms *form.Service, autofillService *autofill.Service, logger logger.Logger) *FormHandler {
	return &FormHandler{
		forms:    forms,
		autofill: autofillService,
		logger:   logger,
	}
}

// Upload accepts a form document and parses its fillable fields.
func (h *FormHandler) Upload(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		h.handleError(c, http.StatusBadRequest, "Invalid file upload", err)
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	formDoc, fields, err := h.forms.Upload(c.Request.Context(), file, header.Filename, contentType)
	if err != nil {
		if errors.Is(err, models.ErrFormWrite) {
			h.handleError(c, http.StatusBadRequest, "Unsupported or empty form", err)
			return
		}
		h.handleError(c, http.StatusInternalServerError, "Failed to upload form", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"form":   formDoc,
		"fields": fields,
	})
}

// List returns every uploaded form.
func (h *FormHandler) List(c *gin.Context) {
	forms, err := h.forms.List(c.Request.Context())
	if err != nil {
		h.handleError(c, http.StatusInternalServerError, "Failed to list forms", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"forms": forms})
}

// Fields returns the parsed fields of a form.
func (h *FormHandler) Fields(c *gin.Context) {
	fields, err := h.forms.Fields(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			h.handleError(c, http.StatusNotFound, "Form not found", err)
			return
		}
		h.handleError(c, http.StatusInternalServerError, "Failed to get form fields", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"fields": fields})
}

type autoFillRequest struct {
	FieldNames []string `json:"fieldNames"`
	Guidance   string   `json:"guidance"`
}

// AutoFill fills the form's empty fields from the knowledge corpus. The body
// is optional; it can narrow the run to specific fields or add guidance.
func (h *FormHandler) AutoFill(c *gin.Context) {
	var req autoFillRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.handleError(c, http.StatusBadRequest, "Invalid auto-fill request", err)
			return
		}
	}

	opts := autofill.FillOptions{FieldNames: req.FieldNames, Guidance: req.Guidance}
	result, err := h.autofill.Fill(c.Request.Context(), c.Param("id"), opts)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			h.handleError(c, http.StatusNotFound, "Form not found", err)
			return
		}
		h.handleError(c, http.StatusInternalServerError, "Auto-fill failed", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Download returns the filled copy of the form.
func (h *FormHandler) Download(c *gin.Context) {
	formID := c.Param("id")
	data, contentType, err := h.autofill.Render(c.Request.Context(), formID)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			h.handleError(c, http.StatusNotFound, "Form not found", err)
		case errors.Is(err, models.ErrFormWrite):
			h.handleError(c, http.StatusUnprocessableEntity, "Form could not be rendered", err)
		default:
			h.handleError(c, http.StatusInternalServerError, "Failed to render form", err)
		}
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=filled_%s", formID))
	c.Data(http.StatusOK, contentType, data)
}

// Delete removes a form and its stored bytes.
func (h *FormHandler) Delete(c *gin.Context) {
	if err := h.forms.Delete(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			h.handleError(c, http.StatusNotFound, "Form not found", err)
			return
		}
		h.handleError(c, http.StatusInternalServerError, "Failed to delete form", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Form deleted"})
}

func (h *FormHandler) handleError(c *gin.Context, status int, message string, err error) {
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
