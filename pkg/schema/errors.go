package schema

import (
	"errors"
	"fmt"
	"strings"
)

// ErrTemplateNotFound is returned when no template matches and the loader is
// strict, or when there are no templates at all.
var ErrTemplateNotFound = errors.New("schema template not found")

// Violation is one failed constraint.
type Violation struct {
	Field   string
	Message string
}

// ValidationError lists every violation found in a document.
type ValidationError struct {
	Schema     string
	Violations []Violation
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Violations) == 0 {
		return "metadata validation failed"
	}
	parts := make([]string, 0, len(e.Violations))
	for _, violation := range e.Violations {
		parts = append(parts, fmt.Sprintf("%s: %s", violation.Field, violation.Message))
	}
	return fmt.Sprintf("metadata does not match schema %q: %s", e.Schema, strings.Join(parts, "; "))
}

// Fields returns the names of the offending fields in report order.
func (e *ValidationError) Fields() []string {
	fields := make([]string, 0, len(e.Violations))
	for _, violation := range e.Violations {
		fields = append(fields, violation.Field)
	}
	return fields
}
