package validate

import (
	"errors"
	"fmt"

	"github.com/artpar/kvorm/domain/document"
)

// Constraint names, as reported in ConstraintError and surfaced in API
// error codes and metrics labels.
const (
	ConstraintMinLength = "min_length"
	ConstraintMaxLength = "max_length"
	ConstraintPattern   = "pattern"
	ConstraintEmail     = "email"
	ConstraintURL       = "url"
	ConstraintMin       = "min"
	ConstraintMax       = "max"
)

// RequiredError reports a required field that is absent or null.
type RequiredError struct {
	Field string
}

func (e *RequiredError) Error() string {
	return fmt.Sprintf("validation error: field '%s' is required", e.Field)
}

// TypeError reports a value whose kind does not match the declared type.
type TypeError struct {
	Field string
	Want  document.Kind
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("validation error: field '%s' must be of type %s", e.Field, e.Want)
}

// ConstraintError reports a builtin constraint violation. Bound carries the
// violated bound or pattern when the constraint has one.
type ConstraintError struct {
	Field      string
	Constraint string
	Bound      any
}

func (e *ConstraintError) Error() string {
	switch e.Constraint {
	case ConstraintMinLength:
		return fmt.Sprintf("validation error: field '%s' must be at least %v characters", e.Field, e.Bound)
	case ConstraintMaxLength:
		return fmt.Sprintf("validation error: field '%s' must be at most %v characters", e.Field, e.Bound)
	case ConstraintPattern:
		return fmt.Sprintf("validation error: field '%s' does not match pattern", e.Field)
	case ConstraintEmail:
		return fmt.Sprintf("validation error: field '%s' must be a valid email", e.Field)
	case ConstraintURL:
		return fmt.Sprintf("validation error: field '%s' must be a valid URL", e.Field)
	case ConstraintMin:
		return fmt.Sprintf("validation error: field '%s' must be at least %v", e.Field, e.Bound)
	case ConstraintMax:
		return fmt.Sprintf("validation error: field '%s' must be at most %v", e.Field, e.Bound)
	default:
		return fmt.Sprintf("validation error: field '%s' violates %s", e.Field, e.Constraint)
	}
}

// CustomError reports a custom predicate that returned false. A predicate
// that returned an error is not wrapped in this; the error passes through.
type CustomError struct {
	Field string
}

func (e *CustomError) Error() string {
	return fmt.Sprintf("validation error: field '%s' failed custom validation", e.Field)
}

// FailedField reports the field named by err when err is one of this
// package's validation errors. Predicate errors that passed through are
// not validation errors and report false.
func FailedField(err error) (string, bool) {
	var re *RequiredError
	if errors.As(err, &re) {
		return re.Field, true
	}
	var te *TypeError
	if errors.As(err, &te) {
		return te.Field, true
	}
	var ce *ConstraintError
	if errors.As(err, &ce) {
		return ce.Field, true
	}
	var cu *CustomError
	if errors.As(err, &cu) {
		return cu.Field, true
	}
	return "", false
}
