package validator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/corpuskit/knowledge-engine/internal/models"
)

func TestValidateAcceptsPlainText(t *testing.T) {
	v := New(nil)
	err := v.Validate("notes.txt", "text/plain", []byte("hello"))
	assert.NoError(t, err)
}

func TestValidateRejectsUnknownExtension(t *testing.T) {
	v := New(nil)
	err := v.Validate("image.png", "image/png", []byte("data"))
	assert.ErrorIs(t, err, models.ErrExtraction)
}

func TestValidateRejectsMismatchedContentType(t *testing.T) {
	v := New(nil)
	err := v.Validate("doc.pdf", "text/plain", []byte("%PDF-1.7 ..."))
	assert.ErrorIs(t, err, models.ErrExtraction)
}

func TestValidateRejectsFakePDF(t *testing.T) {
	v := New(nil)
	err := v.Validate("doc.pdf", "application/pdf", []byte("just text pretending"))
	assert.ErrorIs(t, err, models.ErrExtraction)
}

func TestValidateRejectsEmptyAndOversized(t *testing.T) {
	v := New(&Config{MaxSize: 10, AllowedTypes: map[string][]string{".txt": {"text/plain"}}})

	assert.ErrorIs(t, v.Validate("a.txt", "text/plain", nil), models.ErrExtraction)
	assert.Error(t, v.Validate("a.txt", "text/plain", []byte(strings.Repeat("x", 11))))
}
