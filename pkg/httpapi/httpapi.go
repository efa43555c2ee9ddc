// Package httpapi provides the wire types and response helpers for the
// document REST API. Responses follow the flat JSON envelopes the language
// SDKs expect: mutations report {"success": ...}, listings report
// {"count": ..., "documents": [...]}, and errors carry {"error": ...}.
package httpapi

import (
	"fmt"
	"strconv"
)

// CreateResponse is the body of a successful create.
type CreateResponse struct {
	Success bool           `json:"success"`
	ID      string         `json:"id"`
	Data    map[string]any `json:"data"`
}

// UpdateResponse is the body of a successful update.
type UpdateResponse struct {
	Success bool           `json:"success"`
	ID      string         `json:"id"`
	Data    map[string]any `json:"data"`
}

// DeleteResponse is the body of a delete. Deleted reports whether the
// document existed.
type DeleteResponse struct {
	Success bool `json:"success"`
	Deleted bool `json:"deleted"`
}

// ListResponse is the body of a listing or query.
type ListResponse struct {
	Collection string           `json:"collection"`
	Count      int              `json:"count"`
	Documents  []map[string]any `json:"documents"`
}

// CountResponse is the body of a count.
type CountResponse struct {
	Collection string `json:"collection"`
	Count      int    `json:"count"`
}

// HealthResponse is the body of the health endpoints.
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database,omitempty"`
	Error    string `json:"error,omitempty"`
}

// VersionResponse is the body of the version endpoint.
type VersionResponse struct {
	Service string `json:"service"`
	Version string `json:"version"`
	Commit  string `json:"commit,omitempty"`
}

// Error is an API error with its HTTP status. The body keeps the flat
// {"error": ...} shape; Success is always false so mutation callers that
// only check the success flag see the failure.
type Error struct {
	Status  int    `json:"-"`
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Field   string `json:"field,omitempty"`
	Message string `json:"error"`
}

// Error implements the error interface.
func (e Error) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

// StatusCode returns the HTTP status for the error, defaulting to 500.
func (e Error) StatusCode() int {
	if e.Status == 0 {
		return 500
	}
	return e.Status
}

// ErrorBuilder provides a fluent API for building Error objects.
type ErrorBuilder struct {
	err Error
}

// NewError creates a new ErrorBuilder with the given status and code.
func NewError(status int, code string) *ErrorBuilder {
	return &ErrorBuilder{
		err: Error{
			Status: status,
			Code:   code,
		},
	}
}

// Message sets the error message.
func (b *ErrorBuilder) Message(msg string) *ErrorBuilder {
	b.err.Message = msg
	return b
}

// Messagef sets the error message with formatting.
func (b *ErrorBuilder) Messagef(format string, args ...any) *ErrorBuilder {
	b.err.Message = fmt.Sprintf(format, args...)
	return b
}

// Field names the document field the error refers to.
func (b *ErrorBuilder) Field(field string) *ErrorBuilder {
	b.err.Field = field
	return b
}

// Build returns the constructed Error.
func (b *ErrorBuilder) Build() Error {
	return b.err
}

// Common error constructors

// ErrBadRequest creates a 400 Bad Request error.
func ErrBadRequest(detail string) Error {
	return NewError(400, "bad_request").Message(detail).Build()
}

// ErrUnauthorized creates a 401 Unauthorized error.
func ErrUnauthorized(detail string) Error {
	if detail == "" {
		detail = "Authentication required"
	}
	return NewError(401, "unauthorized").Message(detail).Build()
}

// ErrDocumentNotFound creates a 404 error for a missing document.
func ErrDocumentNotFound() Error {
	return NewError(404, "not_found").Message("Document not found").Build()
}

// ErrCollectionNotFound creates a 404 error for an undeclared collection.
func ErrCollectionNotFound(collection string) Error {
	return NewError(404, "collection_not_found").
		Messagef("collection '%s' not found", collection).
		Build()
}

// ErrValidation creates a 422 error for a schema validation failure.
func ErrValidation(field, message string) Error {
	return NewError(422, "validation_error").Message(message).Field(field).Build()
}

// ErrUnavailable creates a 503 error for a document store outage.
func ErrUnavailable(detail string) Error {
	if detail == "" {
		detail = "Document store unavailable"
	}
	return NewError(503, "repository_unavailable").Message(detail).Build()
}

// ErrInternal creates a 500 Internal Server Error.
func ErrInternal(detail string) Error {
	if detail == "" {
		detail = "An internal error occurred"
	}
	return NewError(500, "internal_error").Message(detail).Build()
}

// ParseListParams extracts limit and skip from URL query values. Absent or
// malformed values stay nil, meaning unbounded.
func ParseListParams(get func(string) string) (limit, skip *int) {
	if v := get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			limit = &n
		}
	}
	if v := get("skip"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			skip = &n
		}
	}
	return limit, skip
}
