// Package errors provides shared error types for the leaders API and Wikipedia clients.
package errors

import (
	"errors"
	"fmt"
)

// AuthError indicates no session cookie could be obtained from the leaders API.
// It is fatal for a run: nothing can be fetched without a session.
type AuthError struct {
	URL        string
	StatusCode int // 0 when the request never got a response
	Err        error
}

func (e *AuthError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("authentication failed at %s: %v", e.URL, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("authentication failed at %s: status %d", e.URL, e.StatusCode)
	default:
		return fmt.Sprintf("authentication failed at %s: no session cookie issued", e.URL)
	}
}

func (e *AuthError) Unwrap() error { return e.Err }

// SessionExpiredError indicates the API rejected the session cookie.
type SessionExpiredError struct {
	Endpoint   string
	StatusCode int
}

func (e *SessionExpiredError) Error() string {
	return fmt.Sprintf("session expired calling %s (status %d)", e.Endpoint, e.StatusCode)
}

// StatusError is a non-success HTTP response that is not handled more specifically.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string // truncated
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
	}
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// NotFoundError indicates a resource was not found.
type NotFoundError struct {
	Source     string // "leaders", "wikipedia"
	EntityType string // "country", "page"
	Identifier string // country code or URL
}

func (e *NotFoundError) Error() string {
	if e.EntityType != "" {
		return fmt.Sprintf("%s not found in %s: %s", e.EntityType, e.Source, e.Identifier)
	}
	return fmt.Sprintf("not found in %s: %s", e.Source, e.Identifier)
}

// NewNotFoundError creates a NotFoundError for a Wikipedia page.
func NewNotFoundError(source, identifier string) *NotFoundError {
	return &NotFoundError{
		Source:     source,
		EntityType: "page",
		Identifier: identifier,
	}
}

// InvalidRecord is one API record that could not be decoded.
type InvalidRecord struct {
	Index int    // position in the API response
	ID    string // record id when it could be read
	Err   error
}

// InvalidRecordsError reports records of a list response that could not be
// decoded. The records that did decode are returned alongside it.
type InvalidRecordsError struct {
	Source     string // "leaders"
	Identifier string // country code
	Records    []InvalidRecord
}

func (e *InvalidRecordsError) Error() string {
	return fmt.Sprintf("%d invalid record(s) in %s response for %s", len(e.Records), e.Source, e.Identifier)
}

// ValidationError indicates invalid input parameters.
type ValidationError struct {
	Field   string // field name that failed validation
	Value   string // the invalid value
	Message string // human-readable error message
}

func (e *ValidationError) Error() string {
	if e.Field != "" && e.Value != "" {
		return fmt.Sprintf("validation failed for %s=%q: %s", e.Field, e.Value, e.Message)
	}
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// NewValidationError creates a ValidationError.
func NewValidationError(field, value, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// IsAuth returns true if err is or wraps an AuthError.
func IsAuth(err error) bool {
	var target *AuthError
	return errors.As(err, &target)
}

// IsSessionExpired returns true if err is or wraps a SessionExpiredError.
func IsSessionExpired(err error) bool {
	var target *SessionExpiredError
	return errors.As(err, &target)
}

// IsNotFound returns true if err is or wraps a NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsValidation returns true if err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// StatusCode extracts the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	var ee *SessionExpiredError
	if errors.As(err, &ee) {
		return ee.StatusCode
	}
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.StatusCode
	}
	return 0
}

// IsInvalidRecords checks if an error reports undecodable records.
func IsInvalidRecords(err error) bool {
	var target *InvalidRecordsError
	return errors.As(err, &target)
}
