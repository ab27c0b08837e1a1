package formio

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/corpuskit/knowledge-engine/internal/models"
)

// formio reads fillable fields out of form documents and writes values back
// without disturbing the surrounding bytes. Two formats are supported: plain
// text forms with "Label: ____" blanks and "[ ] Label" checkboxes, and JSON
// forms carrying an explicit fields array.

var (
	blankLine    = regexp.MustCompile(`^(.*?):\s*(_{3,})\s*$`)
	checkboxLine = regexp.MustCompile(`^\[([ xX])\]\s*(.+?)\s*$`)
)

type jsonForm struct {
	Fields []jsonField `json:"fields"`
}

type jsonField struct {
	Name        string `json:"name"`
	Type        string `json:"type,omitempty"`
	Required    bool   `json:"required,omitempty"`
	Value       string `json:"value,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
	Context     string `json:"context,omitempty"`
}

// ParseFields extracts the fillable fields of a form document.
func ParseFields(data []byte, contentType string) ([]models.FormField, error) {
	switch normalize(contentType) {
	case "application/json":
		return parseJSON(data)
	case "text/plain", "text/markdown":
		return parseText(data), nil
	default:
		return nil, fmt.Errorf("%w: unsupported form content type %q", models.ErrFormWrite, contentType)
	}
}

// WriteValues produces a filled copy of the form. Only the regions belonging
// to filled fields change; every other byte is preserved. A filled field
// whose position cannot be located in the document is an error, and the
// original document is never modified in place.
func WriteValues(data []byte, contentType string, fills []models.FieldFill) ([]byte, error) {
	switch normalize(contentType) {
	case "application/json":
		return writeJSON(data, fills)
	case "text/plain", "text/markdown":
		return writeText(data, fills)
	default:
		return nil, fmt.Errorf("%w: unsupported form content type %q", models.ErrFormWrite, contentType)
	}
}

func parseJSON(data []byte) ([]models.FormField, error) {
	var form jsonForm
	if err := json.Unmarshal(data, &form); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrFormWrite, err)
	}

	fields := make([]models.FormField, 0, len(form.Fields))
	for _, f := range form.Fields {
		if f.Name == "" {
			continue
		}
		fieldType := models.FieldType(f.Type)
		if fieldType == "" {
			fieldType = inferType(f.Name)
		}
		fields = append(fields, models.FormField{
			Name:        f.Name,
			Type:        fieldType,
			Required:    f.Required,
			Value:       f.Value,
			Placeholder: f.Placeholder,
			Context:     f.Context,
		})
	}
	return fields, nil
}

func parseText(data []byte) []models.FormField {
	var fields []models.FormField
	for _, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimRight(line, "\r")
		if m := blankLine.FindStringSubmatch(trimmed); m != nil {
			name := strings.TrimSpace(m[1])
			if name == "" {
				continue
			}
			fields = append(fields, models.FormField{
				Name:        name,
				Type:        inferType(name),
				Placeholder: m[2],
			})
			continue
		}
		if m := checkboxLine.FindStringSubmatch(trimmed); m != nil {
			value := ""
			if m[1] != " " {
				value = "x"
			}
			fields = append(fields, models.FormField{
				Name:  strings.TrimSpace(m[2]),
				Type:  models.FieldCheckbox,
				Value: value,
			})
		}
	}
	return fields
}

func writeJSON(data []byte, fills []models.FieldFill) ([]byte, error) {
	var form jsonForm
	if err := json.Unmarshal(data, &form); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrFormWrite, err)
	}

	byName := make(map[string]int, len(form.Fields))
	for i, f := range form.Fields {
		byName[f.Name] = i
	}

	for _, fill := range fills {
		if !fill.Filled {
			continue
		}
		i, ok := byName[fill.Field]
		if !ok {
			return nil, fmt.Errorf("%w: field %q not present in form", models.ErrFormWrite, fill.Field)
		}
		form.Fields[i].Value = fill.Value
	}

	out, err := json.MarshalIndent(&form, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrFormWrite, err)
	}
	return out, nil
}

func writeText(data []byte, fills []models.FieldFill) ([]byte, error) {
	lines := strings.Split(string(data), "\n")

	filled := make(map[string]models.FieldFill, len(fills))
	for _, fill := range fills {
		if fill.Filled {
			filled[fill.Field] = fill
		}
	}

	written := make(map[string]bool, len(filled))
	for i, line := range lines {
		trimmed := strings.TrimRight(line, "\r")
		suffix := line[len(trimmed):]

		if m := blankLine.FindStringSubmatch(trimmed); m != nil {
			name := strings.TrimSpace(m[1])
			fill, ok := filled[name]
			if !ok || written[name] {
				continue
			}
			// Replace only the underscore run; label and spacing stay as-is.
			idx := strings.LastIndex(trimmed, m[2])
			lines[i] = trimmed[:idx] + fill.Value + trimmed[idx+len(m[2]):] + suffix
			written[name] = true
			continue
		}
		if m := checkboxLine.FindStringSubmatch(trimmed); m != nil {
			name := strings.TrimSpace(m[2])
			fill, ok := filled[name]
			if !ok || written[name] {
				continue
			}
			mark := " "
			if isAffirmative(fill.Value) {
				mark = "x"
			}
			lines[i] = "[" + mark + "]" + trimmed[3:] + suffix
			written[name] = true
		}
	}

	for name := range filled {
		if !written[name] {
			return nil, fmt.Errorf("%w: field %q not present in form", models.ErrFormWrite, name)
		}
	}
	return []byte(strings.Join(lines, "\n")), nil
}

// inferType guesses a field's type from its label when the form does not
// declare one.
func inferType(name string) models.FieldType {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "email"):
		return models.FieldEmail
	case strings.Contains(lower, "date") || strings.Contains(lower, "birth"):
		return models.FieldDate
	case strings.Contains(lower, "amount") || strings.Contains(lower, "number") ||
		strings.Contains(lower, "total") || strings.Contains(lower, "count"):
		return models.FieldNumber
	}
	return models.FieldText
}

func isAffirmative(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "x", "yes", "true", "checked", "1", "y":
		return true
	}
	return false
}

func normalize(contentType string) string {
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}
