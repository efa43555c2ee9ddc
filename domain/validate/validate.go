// Package validate checks documents against schemas. Validation is
// fail-fast: fields are walked in deterministic schema order and the first
// violation is returned alone, so error handling stays single-valued.
// The package is pure. It never logs, retries, or touches storage.
package validate

import (
	"context"
	"net/url"
	"regexp"

	"github.com/artpar/kvorm/domain/document"
	"github.com/artpar/kvorm/domain/schema"
)

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Validate checks every schema field against data. Required fields must be
// present and non-null.
func Validate(ctx context.Context, s schema.Schema, data document.Document) error {
	return run(ctx, s, data, false)
}

// ValidatePartial checks only the fields present in data, skipping required
// checks. Use it for patch-style updates.
func ValidatePartial(ctx context.Context, s schema.Schema, data document.Document) error {
	return run(ctx, s, data, true)
}

func run(ctx context.Context, s schema.Schema, data document.Document, partial bool) error {
	for _, field := range s.Fields() {
		rule := s[field]
		value, exists := data[field]

		// A null value counts as absent: required rejects it, everything
		// else skips the field.
		if !exists || value == nil {
			if rule.Required && !partial {
				return &RequiredError{Field: field}
			}
			continue
		}

		if rule.Type != "" && document.KindOf(value) != rule.Type {
			return &TypeError{Field: field, Want: rule.Type}
		}

		// Constraints apply only to values in their domain. A min_length on
		// a number, or a min on a string, is silently ignored.
		if str, ok := value.(string); ok {
			if err := checkString(field, rule, str); err != nil {
				return err
			}
		}
		if num, ok := document.AsNumber(value); ok {
			if err := checkNumber(field, rule, num); err != nil {
				return err
			}
		}

		if rule.Custom != nil {
			ok, err := rule.Custom(ctx, value)
			if err != nil {
				return err
			}
			if !ok {
				return &CustomError{Field: field}
			}
		}
	}
	return nil
}

// Length bounds count bytes, not runes, so existing documents validate the
// same here as under the SDKs that wrote them.
func checkString(field string, rule schema.Rule, s string) error {
	if rule.MinLength != nil && len(s) < *rule.MinLength {
		return &ConstraintError{Field: field, Constraint: ConstraintMinLength, Bound: *rule.MinLength}
	}
	if rule.MaxLength != nil && len(s) > *rule.MaxLength {
		return &ConstraintError{Field: field, Constraint: ConstraintMaxLength, Bound: *rule.MaxLength}
	}
	if rule.Pattern != "" {
		matched, err := regexp.MatchString(rule.Pattern, s)
		if err != nil || !matched {
			return &ConstraintError{Field: field, Constraint: ConstraintPattern, Bound: rule.Pattern}
		}
	}
	if rule.Email && !emailRe.MatchString(s) {
		return &ConstraintError{Field: field, Constraint: ConstraintEmail}
	}
	if rule.URL && !isURL(s) {
		return &ConstraintError{Field: field, Constraint: ConstraintURL}
	}
	return nil
}

func checkNumber(field string, rule schema.Rule, num float64) error {
	if rule.Min != nil && num < *rule.Min {
		return &ConstraintError{Field: field, Constraint: ConstraintMin, Bound: *rule.Min}
	}
	if rule.Max != nil && num > *rule.Max {
		return &ConstraintError{Field: field, Constraint: ConstraintMax, Bound: *rule.Max}
	}
	return nil
}

func isURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.IsAbs() && u.Host != ""
}
