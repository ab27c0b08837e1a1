package handlers

import (
	"github.com/corpuskit/knowledge-engine/internal/service/autofill"
	"github.com/corpuskit/knowledge-engine/internal/service/document"
	"github.com/corpuskit/knowledge-engine/internal/service/form"
	"github.com/corpuskit/knowledge-engine/internal/service/retrieval"
	"github.com/corpuskit/knowledge-engine/pkg/logger"
)

type Handlers struct {
	Document *DocumentHandler
	Search   *SearchHandler
	Form     *FormHandler
}

func NewHandlers(
	documentService document.Manager,
	retrievalService *retrieval.Service,
	formService *form.Service,
	autofillService *autofill.Service,
	logger logger.Logger,
) *Handlers {
	return &Handlers{
		Document: NewDocumentHandler(documentService, logger),
		Search:   NewSearchHandler(retrievalService, logger),
		Form:     NewFormHandler(formService, autofillService, logger),
	}
}
