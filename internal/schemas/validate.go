// Package schemas holds the JSON Schemas that generation-service responses
// must satisfy, one per model-backed stage. They are embedded in the binary
// and compiled on first use.
package schemas

import (
	"embed"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed *.schema.json
var schemaFiles embed.FS

// Names of the embedded schemas.
const (
	Queries            = "queries"
	Screening          = "screening"
	StructuredProfiles = "structured_profiles"
	Scoring            = "scoring"
	Verification       = "verification"
	Engagement         = "engagement"
)

// Names lists every embedded schema.
func Names() []string {
	return []string{Queries, Screening, StructuredProfiles, Scoring, Verification, Engagement}
}

// FieldError is one violation; Field is a dotted path or "(root)".
type FieldError struct {
	Field   string
	Message string
}

// ValidationError lists every violation found in one document.
type ValidationError struct {
	Schema string
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return fmt.Sprintf("%s output failed schema validation: %s", e.Schema, strings.Join(parts, "; "))
}

// SchemaLoadError means the named schema is missing or does not compile.
type SchemaLoadError struct {
	Name  string
	Cause error
}

func (e *SchemaLoadError) Error() string {
	return fmt.Sprintf("schema %s: %v", e.Name, e.Cause)
}

func (e *SchemaLoadError) Unwrap() error { return e.Cause }

// Validate checks document against the schema called name. Text that is not
// JSON at all is reported as a root-level violation.
func Validate(name, document string) error {
	schema, err := compile(name)
	if err != nil {
		return err
	}

	result, err := schema.Validate(gojsonschema.NewStringLoader(document))
	if err != nil {
		return &ValidationError{Schema: name, Errors: []FieldError{{Field: "(root)", Message: err.Error()}}}
	}
	if result.Valid() {
		return nil
	}

	verr := &ValidationError{Schema: name}
	for _, d := range result.Errors() {
		field := d.Field()
		if field == "" {
			field = "(root)"
		}
		verr.Errors = append(verr.Errors, FieldError{Field: field, Message: d.Description()})
	}
	return verr
}

var compiled sync.Map // name -> func() (*gojsonschema.Schema, error)

func compile(name string) (*gojsonschema.Schema, error) {
	once, _ := compiled.LoadOrStore(name, sync.OnceValues(func() (*gojsonschema.Schema, error) {
		raw, err := schemaFiles.ReadFile(name + ".schema.json")
		if err != nil {
			return nil, &SchemaLoadError{Name: name, Cause: fmt.Errorf("not found: %w", err)}
		}
		s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
		if err != nil {
			return nil, &SchemaLoadError{Name: name, Cause: fmt.Errorf("does not compile: %w", err)}
		}
		return s, nil
	}))
	return once.(func() (*gojsonschema.Schema, error))()
}
