package models

import (
	"time"
)

// FieldType is the declared type of a form field. It drives query generation
// and the format-conformance check during auto-fill.
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldDate     FieldType = "date"
	FieldNumber   FieldType = "number"
	FieldEmail    FieldType = "email"
	FieldCheckbox FieldType = "checkbox"
)

// FormDocument is an uploaded form to be auto-filled. Form documents are
// never embedded into the knowledge corpus.
type FormDocument struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"contentType"`
	SizeBytes   int64     `json:"sizeBytes"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// FormField is one fillable field parsed out of a form document.
type FormField struct {
	Name        string    `json:"name"`
	Type        FieldType `json:"type"`
	Required    bool      `json:"required"`
	Value       string    `json:"value,omitempty"`
	Placeholder string    `json:"placeholder,omitempty"`
	Context     string    `json:"context,omitempty"`
	Confidence  float64   `json:"confidence"`
}

// FieldFill is the auto-fill outcome for a single field. Value is empty when
// no candidate cleared the confidence floor; the field is then left unfilled
// rather than guessed.
type FieldFill struct {
	Field      string     `json:"field"`
	Type       FieldType  `json:"type"`
	Value      string     `json:"value,omitempty"`
	Filled     bool       `json:"filled"`
	Confidence float64    `json:"confidence"`
	Queries    []string   `json:"queries"`
	Support    []ChunkRef `json:"support,omitempty"`
}

// AutoFillResult aggregates per-field fills for one form.
type AutoFillResult struct {
	FormID            string      `json:"formId"`
	Fields            []FieldFill `json:"fields"`
	TotalFilled       int         `json:"totalFilled"`
	AverageConfidence float64     `json:"averageConfidence"`
}
