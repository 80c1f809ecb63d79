// internal/common/validation/schema.go
package validation

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// FieldError describes one failed constraint in a submission.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Result is the outcome of validating form data against a package schema.
type Result struct {
	Valid  bool         `json:"valid"`
	Errors []FieldError `json:"errors,omitempty"`
}

// ValidateFormData checks a submission's open formData mapping against the
// package's runtime-configured JSON Schema. A nil or empty schema accepts
// anything; required-subset enforcement lives here, at the edge, never
// inside the workflow engine.
func ValidateFormData(schema map[string]interface{}, formData map[string]interface{}) (*Result, error) {
	if len(schema) == 0 {
		return &Result{Valid: true}, nil
	}

	schemaLoader := gojsonschema.NewGoLoader(schema)
	documentLoader := gojsonschema.NewGoLoader(formData)

	res, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return nil, fmt.Errorf("schema validation failed to run: %w", err)
	}

	result := &Result{Valid: res.Valid()}
	for _, e := range res.Errors() {
		result.Errors = append(result.Errors, FieldError{
			Field:   e.Field(),
			Message: e.Description(),
		})
	}
	return result, nil
}
