package autofill

import (
	"strings"

	"github.com/corpuskit/knowledge-engine/internal/models"
)

// Query generation is a pure function of the field definition: identical
// fields always produce identical query sets, which keeps auto-fill runs
// reproducible against a fixed corpus.

type synonymRule struct {
	token    string
	synonyms []string
}

// Ordered so generated queries come out in a stable sequence.
var synonymRules = []synonymRule{
	{"name", []string{"full name", "applicant name"}},
	{"birth", []string{"date of birth", "born on"}},
	{"email", []string{"email address", "contact email"}},
	{"phone", []string{"phone number", "contact number"}},
	{"address", []string{"home address", "residential address"}},
	{"amount", []string{"total amount", "payment amount"}},
	{"company", []string{"company name", "employer"}},
	{"insurance", []string{"insurance provider", "insurance policy"}},
}

func typeGuidance(fieldType models.FieldType) string {
	switch fieldType {
	case models.FieldDate:
		return "date"
	case models.FieldNumber:
		return "number value"
	case models.FieldEmail:
		return "email address"
	case models.FieldCheckbox:
		return "yes or no"
	}
	return ""
}

// GenerateQueries builds the retrieval queries for one field: the field name
// itself, known synonyms for recognized label tokens, a type hint, and the
// field's surrounding context when the form provides one.
func GenerateQueries(field models.FormField) []string {
	name := strings.TrimSpace(field.Name)
	if name == "" {
		return nil
	}

	queries := []string{name}
	lower := strings.ToLower(name)

	for _, rule := range synonymRules {
		if !strings.Contains(lower, rule.token) {
			continue
		}
		for _, syn := range rule.synonyms {
			queries = append(queries, syn)
		}
	}

	if guidance := typeGuidance(field.Type); guidance != "" {
		queries = append(queries, name+" "+guidance)
	}
	if ctx := strings.TrimSpace(field.Context); ctx != "" {
		queries = append(queries, name+" "+ctx)
	}

	return dedupe(queries)
}

func dedupe(queries []string) []string {
	seen := make(map[string]bool, len(queries))
	out := queries[:0]
	for _, q := range queries {
		key := strings.ToLower(strings.TrimSpace(q))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, q)
	}
	return out
}
