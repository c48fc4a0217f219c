// Package schemas provides JSON Schema validation for model responses.
// Schemas are embedded at compile time and compiled once on first use.
package schemas

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// Embedded schema names
const (
	Classification = "classification.schema.json"
	Extraction     = "extraction.schema.json"
)

//go:embed *.schema.json
var schemaFiles embed.FS

var (
	compileOnce sync.Once
	compiled    map[string]*gojsonschema.Schema
	compileErr  error
)

// ValidationError represents a schema validation error with field paths
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation error at a specific field.
// Keyword is the failing schema keyword ("required", "type", "enum").
type FieldError struct {
	Field   string
	Keyword string
	Message string
}

// SchemaLoadError represents errors loading or parsing the schema itself
type SchemaLoadError struct {
	Path    string
	Message string
	Cause   error
}

func (e *SchemaLoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to load schema %s: %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("failed to load schema %s: %s", e.Path, e.Message)
}

func (e *SchemaLoadError) Unwrap() error {
	return e.Cause
}

func (ve *ValidationError) Error() string {
	parts := make([]string, 0, len(ve.Errors))
	for _, err := range ve.Errors {
		parts = append(parts, fmt.Sprintf("%s: %s", err.Field, err.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Validate checks a JSON document against one of the embedded schemas
func Validate(name string, document []byte) error {
	schema, err := load(name)
	if err != nil {
		return err
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(document))
	if err != nil {
		return &ValidationError{Errors: []FieldError{{Field: "(root)", Message: err.Error()}}}
	}
	return toValidationError(result)
}

// ValidateJSONString validates JSON string content against schema string content
func ValidateJSONString(schemaContent, jsonContent string) error {
	schemaLoader := gojsonschema.NewStringLoader(schemaContent)
	documentLoader := gojsonschema.NewStringLoader(jsonContent)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return &SchemaLoadError{
			Path:    "(string schema)",
			Message: "schema validation failed during load",
			Cause:   err,
		}
	}
	return toValidationError(result)
}

// Names lists the embedded schemas
func Names() []string {
	if err := compileAll(); err != nil {
		return nil
	}
	names := make([]string, 0, len(compiled))
	for n := range compiled {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func load(name string) (*gojsonschema.Schema, error) {
	if err := compileAll(); err != nil {
		return nil, err
	}
	s, ok := compiled[name]
	if !ok {
		return nil, &SchemaLoadError{Path: name, Message: "schema not embedded"}
	}
	return s, nil
}

// compileAll compiles every embedded schema on first use. A broken schema
// fails all lookups since it is a build defect, not bad model output.
func compileAll() error {
	compileOnce.Do(func() {
		paths, err := fs.Glob(schemaFiles, "*.schema.json")
		if err != nil {
			compileErr = &SchemaLoadError{Path: "*.schema.json", Message: "glob failed", Cause: err}
			return
		}
		out := make(map[string]*gojsonschema.Schema, len(paths))
		for _, p := range paths {
			data, err := schemaFiles.ReadFile(p)
			if err != nil {
				compileErr = &SchemaLoadError{Path: p, Message: "read failed", Cause: err}
				return
			}
			s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
			if err != nil {
				compileErr = &SchemaLoadError{Path: p, Message: "invalid schema", Cause: err}
				return
			}
			out[p] = s
		}
		compiled = out
	})
	return compileErr
}

func toValidationError(result *gojsonschema.Result) error {
	if result.Valid() {
		return nil
	}

	validationErr := &ValidationError{
		Errors: make([]FieldError, 0, len(result.Errors())),
	}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		validationErr.Errors = append(validationErr.Errors, FieldError{
			Field:   field,
			Keyword: desc.Type(),
			Message: desc.Description(),
		})
	}
	return validationErr
}
