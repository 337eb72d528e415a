package metadata

import (
	"encoding/json"
	"testing"
)

func TestDocumentPreservesOrder(t *testing.T) {
	t.Parallel()

	doc := New()
	doc.Set("name", "Cat")
	doc.Set("description", "A cat")
	doc.Set("image", "./cat.png")
	doc.Set("name", "Kitten")

	encoded, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	expected := `{"name":"Kitten","description":"A cat","image":"./cat.png"}`
	if string(encoded) != expected {
		t.Fatalf("unexpected encoding %s", encoded)
	}

	doc.Delete("description")
	if keys := doc.Keys(); len(keys) != 2 || keys[0] != "name" || keys[1] != "image" {
		t.Fatalf("unexpected keys after delete %v", keys)
	}
}

func TestParseKeepsFieldOrder(t *testing.T) {
	t.Parallel()

	doc, err := Parse([]byte(`{"z":1,"a":{"nested":true},"m":[1,2]}`))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if keys := doc.Keys(); keys[0] != "z" || keys[1] != "a" || keys[2] != "m" {
		t.Fatalf("unexpected order %v", keys)
	}
	if value, _ := doc.Get("z"); value != json.Number("1") {
		t.Fatalf("expected json.Number, got %#v", value)
	}

	encoded, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(encoded) != `{"z":1,"a":{"nested":true},"m":[1,2]}` {
		t.Fatalf("round trip changed document: %s", encoded)
	}

	for _, invalid := range []string{`[]`, `{"a":1} {}`, `{"a":`} {
		if _, err := Parse([]byte(invalid)); err == nil {
			t.Fatalf("expected %s to fail", invalid)
		}
	}
}

func TestCloneIsIndependent(t *testing.T) {
	t.Parallel()

	doc := FromMap(map[string]any{"b": 2, "a": 1, "name": "x"}, "name")
	if keys := doc.Keys(); keys[0] != "name" || keys[1] != "a" || keys[2] != "b" {
		t.Fatalf("unexpected order %v", keys)
	}

	clone := doc.Clone()
	clone.Set("name", "y")
	clone.Set("extra", true)
	if doc.String("name") != "x" || doc.Has("extra") {
		t.Fatalf("clone modified the original")
	}
}

func TestAttributes(t *testing.T) {
	t.Parallel()

	doc, err := Parse([]byte(`{"attributes":[{"key":"color","value":"orange"},{"trait_type":"lives","value":9}]}`))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	attributes, err := doc.Attributes()
	if err != nil {
		t.Fatalf("attributes failed: %v", err)
	}
	if len(attributes) != 2 || attributes[0].Key != "color" || attributes[1].Key != "lives" {
		t.Fatalf("unexpected attributes %+v", attributes)
	}

	doc.Set("attributes", "not a list")
	if _, err := doc.Attributes(); err == nil {
		t.Fatalf("expected error for non-list attributes")
	}
}
