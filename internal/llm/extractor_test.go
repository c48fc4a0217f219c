package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildExtractionPrompt(t *testing.T) {
	schema := ExtractionSchema{
		Name:        "Test",
		Description: "You read emails.",
		Fields: []SchemaField{
			{Name: "company_name", Description: "Hiring company"},
			{Name: "status", Type: "\"applied\" | \"rejected\"", Required: true},
		},
		Rules: []string{"Prefer the sender's organisation."},
	}

	prompt := BuildExtractionPrompt(schema, "Subject: hello")

	assert.True(t, strings.HasPrefix(prompt, "You read emails."))
	assert.Contains(t, prompt, `"company_name": "string" // Hiring company,`)
	assert.Contains(t, prompt, `"status": "applied" | "rejected" (required)`)
	assert.Contains(t, prompt, "- Prefer the sender's organisation.")
	assert.Contains(t, prompt, "Input text:\n\"\"\"\nSubject: hello\n\"\"\"")
}

func TestRequiredFields(t *testing.T) {
	schema := ExtractionSchema{Fields: []SchemaField{
		{Name: "a"}, {Name: "b", Required: true}, {Name: "c", Required: true},
	}}
	assert.Equal(t, []string{"b", "c"}, schema.RequiredFields())
}
