// Package schema defines declarative per-field validation rules. A schema is
// data, not behavior: the validate package interprets it against candidate
// documents. Rules with pointer-typed bounds distinguish "unset" from zero.
package schema

import (
	"context"
	"fmt"
	"regexp"
	"sort"

	"github.com/artpar/kvorm/domain/document"
)

// Predicate is a caller-supplied check that runs after every builtin
// constraint has passed. It may block (network lookups, uniqueness probes);
// honor ctx. Returning false rejects the value; returning an error reports
// the predicate itself failed, which is a different outcome.
type Predicate func(ctx context.Context, v any) (bool, error)

// Rule constrains a single field. Constraints only apply when the value
// matches the declared type; a min_length on a number field is ignored.
type Rule struct {
	Type      document.Kind `yaml:"type" json:"type"`
	Required  bool          `yaml:"required,omitempty" json:"required,omitempty"`
	MinLength *int          `yaml:"min_length,omitempty" json:"min_length,omitempty"`
	MaxLength *int          `yaml:"max_length,omitempty" json:"max_length,omitempty"`
	Min       *float64      `yaml:"min,omitempty" json:"min,omitempty"`
	Max       *float64      `yaml:"max,omitempty" json:"max,omitempty"`
	Pattern   string        `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	Email     bool          `yaml:"email,omitempty" json:"email,omitempty"`
	URL       bool          `yaml:"url,omitempty" json:"url,omitempty"`
	Custom    Predicate     `yaml:"-" json:"-"`
}

// Schema maps field names to rules. Treat a schema as immutable once it is
// handed to a model; swap the whole map to change it.
type Schema map[string]Rule

// Fields returns the field names in sorted order, so validation walks the
// schema deterministically and "first failure" is reproducible.
func (s Schema) Fields() []string {
	fields := make([]string, 0, len(s))
	for name := range s {
		fields = append(fields, name)
	}
	sort.Strings(fields)
	return fields
}

var validTypes = map[document.Kind]bool{
	document.KindString:  true,
	document.KindNumber:  true,
	document.KindBoolean: true,
	document.KindArray:   true,
	document.KindObject:  true,
}

// Validate checks the schema itself is well formed: known types, compilable
// patterns, coherent bounds. Call it once at construction or config load, so
// per-document validation never trips over a malformed rule.
func (s Schema) Validate() error {
	for _, field := range s.Fields() {
		rule := s[field]
		if rule.Type != "" && !validTypes[rule.Type] {
			return fmt.Errorf("field %q: unknown type %q", field, rule.Type)
		}
		if rule.Pattern != "" {
			if _, err := regexp.Compile(rule.Pattern); err != nil {
				return fmt.Errorf("field %q: invalid pattern: %w", field, err)
			}
		}
		if rule.MinLength != nil && *rule.MinLength < 0 {
			return fmt.Errorf("field %q: negative min_length", field)
		}
		if rule.MinLength != nil && rule.MaxLength != nil && *rule.MinLength > *rule.MaxLength {
			return fmt.Errorf("field %q: min_length exceeds max_length", field)
		}
		if rule.Min != nil && rule.Max != nil && *rule.Min > *rule.Max {
			return fmt.Errorf("field %q: min exceeds max", field)
		}
	}
	return nil
}

// IntPtr returns a pointer to n, for inline rule literals.
func IntPtr(n int) *int { return &n }

// Float64Ptr returns a pointer to f, for inline rule literals.
func Float64Ptr(f float64) *float64 { return &f }
