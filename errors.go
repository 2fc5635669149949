package postadmin

import (
	"errors"
	"fmt"
	"strings"
)

// FieldError is a single rejected form field.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError is returned when a submission or a write breaks a rule the
// user can fix: a missing field, a bad enum value, a duplicate slug or a
// reference to a category/author that does not exist.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Reason)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records another rejected field.
func (e *ValidationError) Add(field, reason string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Reason: reason})
}

// Has reports whether field was rejected.
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// Map returns field -> reason, keeping the first reason per field.
func (e *ValidationError) Map() map[string]string {
	out := make(map[string]string, len(e.Fields))
	for _, f := range e.Fields {
		if _, ok := out[f.Field]; !ok {
			out[f.Field] = f.Reason
		}
	}
	return out
}

// orNil lets validators build an error unconditionally and return it only
// when something was actually recorded.
func (e *ValidationError) orNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

func invalidField(field, reason string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Reason: reason}}}
}

// NotFoundError is returned when an id does not resolve.
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

// StorageError wraps an asset store failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return "asset storage: " + e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error { return e.Err }

// InvalidArgumentError rejects list parameters the listing cannot honour.
type InvalidArgumentError struct {
	Argument string
	Reason   string
}

func (e *InvalidArgumentError) Error() string {
	return "invalid " + e.Argument + ": " + e.Reason
}

// InUseError is returned when deleting a category or user still credited on
// posts.
type InUseError struct {
	Entity string
	ID     int64
	Posts  int
}

func (e *InUseError) Error() string {
	return fmt.Sprintf("%s %d is referenced by %d post(s)", e.Entity, e.ID, e.Posts)
}

// IsNotFound reports whether err carries a *NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
