package schema

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"github.com/skeetzo/minty-fresh-go/pkg/metadata"
)

// Validate checks doc against template. Null and blank string values count
// as unset.
// Every violation is reported in a single *ValidationError.
func Validate(doc *metadata.Document, template *Template) error {
	if template == nil {
		return fmt.Errorf("schema template is required")
	}

	candidate := doc.Clone()
	for _, key := range candidate.Keys() {
		if value, _ := candidate.Get(key); isEmpty(value) {
			candidate.Delete(key)
		}
	}

	encoded, err := json.Marshal(candidate)
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(template.Raw),
		gojsonschema.NewBytesLoader(encoded),
	)
	if err != nil {
		return fmt.Errorf("validating metadata against %s: %w", template.Name, err)
	}
	if result.Valid() {
		return nil
	}

	violations := make([]Violation, 0, len(result.Errors()))
	for _, resultErr := range result.Errors() {
		violations = append(violations, Violation{
			Field:   violationField(resultErr),
			Message: resultErr.Description(),
		})
	}
	return &ValidationError{Schema: template.Name, Violations: violations}
}

func violationField(resultErr gojsonschema.ResultError) string {
	if resultErr.Type() == "required" {
		if property, ok := resultErr.Details()["property"].(string); ok {
			if parent := resultErr.Field(); parent != "" && parent != "(root)" {
				return parent + "." + property
			}
			return property
		}
	}
	return resultErr.Field()
}
