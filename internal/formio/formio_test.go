package formio

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corpuskit/knowledge-engine/internal/models"
)

const textForm = `Patient Intake Form

Full Name: ______
Date of Birth: ________
Email Address: ____
Total Amount: _____

[ ] Has insurance
[x] Consent given

Notes follow here and must never change.
`

func TestParseTextFields(t *testing.T) {
	fields, err := ParseFields([]byte(textForm), "text/plain")
	require.NoError(t, err)
	require.Len(t, fields, 6)

	assert.Equal(t, "Full Name", fields[0].Name)
	assert.Equal(t, models.FieldText, fields[0].Type)
	assert.Equal(t, models.FieldDate, fields[1].Type)
	assert.Equal(t, models.FieldEmail, fields[2].Type)
	assert.Equal(t, models.FieldNumber, fields[3].Type)

	assert.Equal(t, models.FieldCheckbox, fields[4].Type)
	assert.Empty(t, fields[4].Value)
	assert.Equal(t, "x", fields[5].Value)
}

func TestParseJSONFields(t *testing.T) {
	form := `{"fields":[
		{"name":"Full Name","type":"text","required":true},
		{"name":"Contact Email"},
		{"name":"Start Date"}
	]}`

	fields, err := ParseFields([]byte(form), "application/json")
	require.NoError(t, err)
	require.Len(t, fields, 3)
	assert.True(t, fields[0].Required)
	assert.Equal(t, models.FieldEmail, fields[1].Type)
	assert.Equal(t, models.FieldDate, fields[2].Type)
}

func TestWriteTextPreservesEverythingOutsideFields(t *testing.T) {
	fills := []models.FieldFill{
		{Field: "Full Name", Value: "Ada Lovelace", Filled: true},
		{Field: "Has insurance", Value: "yes", Filled: true},
	}

	out, err := WriteValues([]byte(textForm), "text/plain", fills)
	require.NoError(t, err)

	result := string(out)
	assert.Contains(t, result, "Full Name: Ada Lovelace")
	assert.Contains(t, result, "[x] Has insurance")

	// Untouched lines are byte-identical.
	wantLines := strings.Split(textForm, "\n")
	gotLines := strings.Split(result, "\n")
	require.Equal(t, len(wantLines), len(gotLines))
	for i := range wantLines {
		if strings.HasPrefix(wantLines[i], "Full Name:") || wantLines[i] == "[ ] Has insurance" {
			continue
		}
		assert.Equal(t, wantLines[i], gotLines[i], "line %d must not change", i)
	}
}

func TestWriteTextUnfilledFieldsUntouched(t *testing.T) {
	out, err := WriteValues([]byte(textForm), "text/plain", []models.FieldFill{
		{Field: "Full Name", Value: "guessed", Filled: false},
	})
	require.NoError(t, err)
	assert.Equal(t, textForm, string(out))
}

func TestWriteTextUnknownFieldFails(t *testing.T) {
	_, err := WriteValues([]byte(textForm), "text/plain", []models.FieldFill{
		{Field: "No Such Field", Value: "v", Filled: true},
	})
	assert.ErrorIs(t, err, models.ErrFormWrite)
}

func TestWriteJSONFillsValues(t *testing.T) {
	form := `{"fields":[{"name":"Full Name"},{"name":"City"}]}`

	out, err := WriteValues([]byte(form), "application/json", []models.FieldFill{
		{Field: "City", Value: "Rotterdam", Filled: true},
	})
	require.NoError(t, err)

	fields, err := ParseFields(out, "application/json")
	require.NoError(t, err)
	require.Len(t, fields, 2)
	assert.Empty(t, fields[0].Value)
	assert.Equal(t, "Rotterdam", fields[1].Value)
}

func TestWriteUnsupportedContentType(t *testing.T) {
	_, err := WriteValues([]byte("x"), "application/pdf", nil)
	assert.ErrorIs(t, err, models.ErrFormWrite)
}
