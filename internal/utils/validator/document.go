// internal/utils/validator/document.go
package validator

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/corpuskit/knowledge-engine/internal/models"
)

// DocumentValidator checks uploads before they enter the pipeline: size
// limit, extension allow-list, and agreement between the declared content
// type and the sniffed bytes.
type DocumentValidator struct {
	config *Config
}

type Config struct {
	MaxSize int64
	// AllowedTypes maps a lowercase extension to its acceptable MIME types.
	AllowedTypes map[string][]string
}

func DefaultConfig() *Config {
	return &Config{
		MaxSize: 50 * 1024 * 1024,
		AllowedTypes: map[string][]string{
			".pdf": {"application/pdf"},
			".txt": {"text/plain"},
			".md":  {"text/markdown", "text/plain"},
			".csv": {"text/csv", "text/plain"},
		},
	}
}

func New(config *Config) *DocumentValidator {
	if config == nil {
		config = DefaultConfig()
	}
	return &DocumentValidator{config: config}
}

// Validate rejects uploads the extractor cannot handle. All rejections wrap
// the extraction sentinel so callers map them to one client error class.
func (v *DocumentValidator) Validate(filename, contentType string, data []byte) error {
	if int64(len(data)) > v.config.MaxSize {
		return fmt.Errorf("document exceeds the %d byte limit", v.config.MaxSize)
	}
	if len(data) == 0 {
		return fmt.Errorf("%w: empty upload", models.ErrExtraction)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	allowed, ok := v.config.AllowedTypes[ext]
	if !ok {
		return fmt.Errorf("%w: file type %q is not allowed", models.ErrExtraction, ext)
	}

	declared := normalizeMime(contentType)
	if declared != "" && !contains(allowed, declared) {
		return fmt.Errorf("%w: content type %q does not match extension %q",
			models.ErrExtraction, declared, ext)
	}

	// Sniff the leading bytes; a PDF extension with non-PDF bytes is the
	// common corruption case worth catching before extraction.
	sniffed := normalizeMime(http.DetectContentType(leading(data, 512)))
	if ext == ".pdf" && sniffed != "application/pdf" {
		return fmt.Errorf("%w: file does not look like a PDF", models.ErrExtraction)
	}

	return nil
}

func leading(data []byte, n int) []byte {
	if len(data) < n {
		return data
	}
	return data[:n]
}

func normalizeMime(contentType string) string {
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
