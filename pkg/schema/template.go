package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/skeetzo/minty-fresh-go/pkg/metadata"
)

const (
	SourceBuiltin  = "builtin"
	SourceOverride = "override"
)

// Template is a parsed schema template.
type Template struct {
	Name        string
	Title       string
	Description string
	// Address is the content address of the template file as stored.
	Address string
	Source  string
	Path    string
	// Raw is the template as plain JSON with comments removed.
	Raw        json.RawMessage
	Properties []Property
	Required   []string
	// Assets lists extra fields holding uploadable files.
	Assets  []string
	Encrypt bool
	// Ambiguous is set when the template was picked as a fallback rather
	// than matched by name or address.
	Ambiguous bool
}

// Property is one declared field, in declaration order.
type Property struct {
	Name        string
	Description string
	Default     any
	HasDefault  bool
}

type templateDocument struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Properties  json.RawMessage `json:"properties"`
	Required    []string        `json:"required"`
	Assets      []string        `json:"assets"`
	Encrypt     bool            `json:"encrypt"`
}

type propertyDocument struct {
	Description string          `json:"description"`
	Default     json.RawMessage `json:"default"`
}

func parseTemplate(name string, raw []byte) (*Template, error) {
	var document templateDocument
	if err := json.Unmarshal(raw, &document); err != nil {
		return nil, fmt.Errorf("parsing schema template %s: %w", name, err)
	}

	properties, err := parseProperties(document.Properties)
	if err != nil {
		return nil, fmt.Errorf("parsing schema template %s: %w", name, err)
	}

	assets := make([]string, 0, len(document.Assets))
	for _, field := range document.Assets {
		if trimmed := strings.TrimSpace(field); trimmed != "" {
			assets = append(assets, trimmed)
		}
	}

	return &Template{
		Name:        name,
		Title:       document.Title,
		Description: document.Description,
		Raw:         json.RawMessage(raw),
		Properties:  properties,
		Required:    document.Required,
		Assets:      assets,
		Encrypt:     document.Encrypt,
	}, nil
}

func parseProperties(raw json.RawMessage) ([]Property, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}

	decoder := json.NewDecoder(bytes.NewReader(raw))
	token, err := decoder.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := token.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("properties must be an object")
	}

	properties := make([]Property, 0)
	for decoder.More() {
		token, err := decoder.Token()
		if err != nil {
			return nil, err
		}
		name, _ := token.(string)

		var definition propertyDocument
		if err := decoder.Decode(&definition); err != nil {
			return nil, fmt.Errorf("property %q: %w", name, err)
		}

		property := Property{Name: name, Description: definition.Description}
		if len(definition.Default) > 0 {
			if err := json.Unmarshal(definition.Default, &property.Default); err != nil {
				return nil, fmt.Errorf("property %q default: %w", name, err)
			}
			property.HasDefault = true
		}
		properties = append(properties, property)
	}
	return properties, nil
}

// Property returns the declared property called name.
func (t *Template) Property(name string) (Property, bool) {
	for _, property := range t.Properties {
		if property.Name == name {
			return property, true
		}
	}
	return Property{}, false
}

// Defaults returns a document holding every declared default, in declaration
// order.
func Defaults(template *Template) *metadata.Document {
	doc := metadata.New()
	if template == nil {
		return doc
	}
	for _, property := range template.Properties {
		if property.HasDefault {
			doc.Set(property.Name, cloneValue(property.Default))
		}
	}
	return doc
}

// ApplyDefaults fills fields of doc that are unset or empty strings with the
// template's defaults.
func ApplyDefaults(doc *metadata.Document, template *Template) {
	defaults := Defaults(template)
	for _, key := range defaults.Keys() {
		if current, ok := doc.Get(key); ok && !isEmpty(current) {
			continue
		}
		value, _ := defaults.Get(key)
		doc.Set(key, value)
	}
}

func isEmpty(value any) bool {
	if value == nil {
		return true
	}
	text, ok := value.(string)
	return ok && strings.TrimSpace(text) == ""
}

func cloneValue(value any) any {
	switch typed := value.(type) {
	case []any:
		cloned := make([]any, len(typed))
		for index, entry := range typed {
			cloned[index] = cloneValue(entry)
		}
		return cloned
	case map[string]any:
		cloned := make(map[string]any, len(typed))
		for key, entry := range typed {
			cloned[key] = cloneValue(entry)
		}
		return cloned
	default:
		return value
	}
}
