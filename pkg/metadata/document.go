package metadata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
)

// Attribute is one trait entry of the attributes list.
type Attribute struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// Document preserves insertion order so that published metadata lists fields
// the way the schema declares them. The zero value is an empty document.
type Document struct {
	keys   []string
	values map[string]any
}

// New returns an empty document.
func New() *Document {
	return &Document{values: map[string]any{}}
}

// FromMap builds a document from fields, ordered by the given keys first and
// then by the remaining keys in sorted order.
func FromMap(fields map[string]any, order ...string) *Document {
	doc := New()
	for _, key := range order {
		if value, ok := fields[key]; ok {
			doc.Set(key, value)
		}
	}
	for _, key := range slices.Sorted(maps.Keys(fields)) {
		if !doc.Has(key) {
			doc.Set(key, fields[key])
		}
	}
	return doc
}

// Set stores value under key, keeping the original position of an existing
// key.
func (d *Document) Set(key string, value any) {
	if d.values == nil {
		d.values = map[string]any{}
	}
	if _, exists := d.values[key]; !exists {
		d.keys = append(d.keys, key)
	}
	d.values[key] = value
}

func (d *Document) Get(key string) (any, bool) {
	if d == nil || d.values == nil {
		return nil, false
	}
	value, ok := d.values[key]
	return value, ok
}

// String returns the value of key when it is a string.
func (d *Document) String(key string) string {
	value, _ := d.Get(key)
	text, _ := value.(string)
	return text
}

func (d *Document) Has(key string) bool {
	_, ok := d.Get(key)
	return ok
}

func (d *Document) Delete(key string) {
	if d == nil || d.values == nil {
		return
	}
	if _, ok := d.values[key]; !ok {
		return
	}
	delete(d.values, key)
	for index, existing := range d.keys {
		if existing == key {
			d.keys = append(d.keys[:index], d.keys[index+1:]...)
			break
		}
	}
}

// Keys returns the field names in insertion order.
func (d *Document) Keys() []string {
	if d == nil {
		return nil
	}
	return append([]string(nil), d.keys...)
}

func (d *Document) Len() int {
	if d == nil {
		return 0
	}
	return len(d.keys)
}

// Clone returns a shallow copy; values are shared.
func (d *Document) Clone() *Document {
	clone := New()
	if d == nil {
		return clone
	}
	for _, key := range d.keys {
		clone.Set(key, d.values[key])
	}
	return clone
}

// Map returns the fields as an unordered map.
func (d *Document) Map() map[string]any {
	fields := make(map[string]any, d.Len())
	if d == nil {
		return fields
	}
	for _, key := range d.keys {
		fields[key] = d.values[key]
	}
	return fields
}

// Attributes returns the attributes field as typed attributes. Entries using
// the common trait_type spelling are accepted.
func (d *Document) Attributes() ([]Attribute, error) {
	value, ok := d.Get("attributes")
	if !ok || value == nil {
		return nil, nil
	}
	switch typed := value.(type) {
	case []Attribute:
		return typed, nil
	case []any:
		attributes := make([]Attribute, 0, len(typed))
		for index, entry := range typed {
			fields, ok := entry.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("attribute %d is not an object", index)
			}
			key, _ := fields["key"].(string)
			if key == "" {
				key, _ = fields["trait_type"].(string)
			}
			if strings.TrimSpace(key) == "" {
				return nil, fmt.Errorf("attribute %d has no key", index)
			}
			attributes = append(attributes, Attribute{Key: key, Value: fields["value"]})
		}
		return attributes, nil
	default:
		return nil, fmt.Errorf("attributes must be a list, got %T", value)
	}
}

// MarshalJSON writes fields in insertion order.
func (d *Document) MarshalJSON() ([]byte, error) {
	var buffer bytes.Buffer
	buffer.WriteByte('{')
	if d != nil {
		for index, key := range d.keys {
			if index > 0 {
				buffer.WriteByte(',')
			}
			encodedKey, err := json.Marshal(key)
			if err != nil {
				return nil, err
			}
			encodedValue, err := json.Marshal(d.values[key])
			if err != nil {
				return nil, fmt.Errorf("encoding field %q: %w", key, err)
			}
			buffer.Write(encodedKey)
			buffer.WriteByte(':')
			buffer.Write(encodedValue)
		}
	}
	buffer.WriteByte('}')
	return buffer.Bytes(), nil
}

// UnmarshalJSON reads a JSON object keeping the order of its top-level
// fields. Nested values decode as generic JSON values with numbers kept as
// json.Number.
func (d *Document) UnmarshalJSON(data []byte) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	token, err := decoder.Token()
	if err != nil {
		return err
	}
	if delim, ok := token.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("metadata document must be a JSON object")
	}

	*d = Document{values: map[string]any{}}
	for decoder.More() {
		token, err := decoder.Token()
		if err != nil {
			return err
		}
		key, ok := token.(string)
		if !ok {
			return fmt.Errorf("unexpected token %v", token)
		}
		var value any
		if err := decoder.Decode(&value); err != nil {
			return fmt.Errorf("decoding field %q: %w", key, err)
		}
		d.Set(key, value)
	}
	if _, err := decoder.Token(); err != nil {
		return err
	}
	if _, err := decoder.Token(); err != io.EOF {
		return fmt.Errorf("unexpected data after metadata document")
	}
	return nil
}

// Parse decodes a JSON object into a document.
func Parse(data []byte) (*Document, error) {
	doc := New()
	if err := doc.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return doc, nil
}
