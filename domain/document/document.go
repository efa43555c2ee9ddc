// Package document defines the document value model shared by every layer:
// a document is a flat map of JSON-shaped values (strings, numbers, booleans,
// nulls, arrays, objects). All helpers are pure functions with no side effects.
package document

import (
	json "github.com/goccy/go-json"
)

// Reserved field names managed by the model layer, never by callers.
const (
	FieldID        = "id"
	FieldCreatedAt = "created_at"
	FieldUpdatedAt = "updated_at"
)

// Document is a schemaless record. Values follow JSON conventions: numbers
// decode as float64, nested structures as []any and map[string]any.
type Document map[string]any

// Clone returns a deep copy. Mutating the copy never affects the original.
func Clone(d Document) Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(x))
		for k, vv := range x {
			m[k] = cloneValue(vv)
		}
		return m
	case []any:
		s := make([]any, len(x))
		for i, vv := range x {
			s[i] = cloneValue(vv)
		}
		return s
	default:
		return v
	}
}

// Merge returns a new document with patch fields laid over base.
// The merge is shallow: a patch value replaces the base value wholesale,
// nested objects are not merged recursively.
func Merge(base, patch Document) Document {
	out := Clone(base)
	if out == nil {
		out = make(Document, len(patch))
	}
	for k, v := range patch {
		out[k] = cloneValue(v)
	}
	return out
}

// Marshal encodes a document as a flat JSON object with no framing.
func Marshal(d Document) ([]byte, error) {
	return json.Marshal(d)
}

// Unmarshal decodes a JSON object into a document.
func Unmarshal(data []byte) (Document, error) {
	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	return d, nil
}
