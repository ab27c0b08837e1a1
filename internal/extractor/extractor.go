package extractor

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/corpuskit/knowledge-engine/internal/models"
	"github.com/corpuskit/knowledge-engine/pkg/logger"
)

// Extractor turns raw document bytes plus a declared content type into plain
// text. Parse failures and unsupported types are immediate document failures;
// retrying cannot change the outcome.
type Extractor interface {
	Extract(ctx context.Context, data []byte, contentType string) (string, error)
	Supports(contentType string) bool
}

type extractor struct {
	logger logger.Logger
}

func New(log logger.Logger) Extractor {
	return &extractor{logger: log}
}

func (e *extractor) Supports(contentType string) bool {
	switch normalize(contentType) {
	case "application/pdf", "text/plain", "text/markdown", "text/csv":
		return true
	}
	return false
}

func (e *extractor) Extract(ctx context.Context, data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty document", models.ErrExtraction)
	}

	switch normalize(contentType) {
	case "application/pdf":
		return e.extractPDF(ctx, data)
	case "text/plain", "text/markdown", "text/csv":
		if !utf8.Valid(data) {
			return "", fmt.Errorf("%w: text document is not valid UTF-8", models.ErrExtraction)
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("%w: unsupported content type %q", models.ErrExtraction, contentType)
	}
}

func (e *extractor) extractPDF(ctx context.Context, data []byte) (string, error) {
	reader := bytes.NewReader(data)
	pdfReader, err := pdf.NewReader(reader, reader.Size())
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrExtraction, err)
	}

	numPages := pdfReader.NumPage()
	var sb strings.Builder
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := pdfReader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("%w: page %d: %v", models.ErrExtraction, i, err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(text)
	}

	e.logger.Debug("Extracted PDF text",
		logger.Int("pages", numPages),
		logger.Int("chars", sb.Len()),
	)
	return sb.String(), nil
}

// normalize strips content-type parameters such as charset.
func normalize(contentType string) string {
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}
