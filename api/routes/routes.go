package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/corpuskit/knowledge-engine/api/handlers"
	"github.com/corpuskit/knowledge-engine/api/middleware"
)

// SetupRoutes wires every endpoint of the knowledge engine API.
func SetupRoutes(r *gin.Engine, h *handlers.Handlers) {
	r.Use(middleware.CORS())

	v1 := r.Group("/api/v1")

	docs := v1.Group("/documents")
	{
		docs.POST("", h.Document.Upload)
		docs.GET("", h.Document.List)
		docs.GET("/:id", h.Document.Get)
		docs.POST("/:id/reprocess", h.Document.Reprocess)
		docs.DELETE("/:id", h.Document.Delete)
	}

	search := v1.Group("/search")
	{
		search.POST("", h.Search.Search)
		search.POST("/answer", h.Search.Answer)
	}

	forms := v1.Group("/forms")
	{
		forms.POST("", h.Form.Upload)
		forms.GET("", h.Form.List)
		forms.GET("/:id/fields", h.Form.Fields)
		forms.POST("/:id/autofill", h.Form.AutoFill)
		forms.GET("/:id/download", h.Form.Download)
		forms.DELETE("/:id", h.Form.Delete)
	}
}
