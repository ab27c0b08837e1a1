package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/corpuskit/knowledge-engine/internal/service/retrieval"
	"github.com/corpuskit/knowledge-engine/internal/vectorindex"
	"github.com/corpuskit/knowledge-engine/pkg/logger"
)

type SearchHandler struct {
	service *retrieval.Service
	logger  logger.Logger
}

type searchRequest struct {
	Query      string `json:"query" binding:"required"`
	TopK       int    `json:"topK"`
	DocumentID string `json:"documentId"`
}

func NewSearchHandler(service *retrieval.Service, logger logger.Logger) *SearchHandler {
	return &SearchHandler{
		service: service,
		logger:  logger,
	}
}

// Search returns the nearest chunks for a query.
func (h *SearchHandler) Search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.handleError(c, http.StatusBadRequest, "Invalid search request", err)
		return
	}

	var filter *vectorindex.Filter
	if req.DocumentID != "" {
		filter = &vectorindex.Filter{DocumentID: req.DocumentID}
	}

	results, err := h.service.Retrieve(c.Request.Context(), req.Query, req.TopK, filter)
	if err != nil {
		h.handleError(c, http.StatusInternalServerError, "Search failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"query":   req.Query,
		"results": results,
	})
}

// Answer retrieves context and generates a grounded answer.
func (h *SearchHandler) Answer(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.handleError(c, http.StatusBadRequest, "Invalid answer request", err)
		return
	}

	answer, err := h.service.AnswerQuestion(c.Request.Context(), req.Query, req.TopK)
	if err != nil {
		h.handleError(c, http.StatusInternalServerError, "Answer generation failed", err)
		return
	}

	c.JSON(http.StatusOK, answer)
}

func (h *SearchHandler) handleError(c *gin.Context, status int, message string, err error) {
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
