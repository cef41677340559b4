package appointment

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Domain errors.
var (
	ErrNotFound = errors.New("appointment not found")
	ErrNoUser   = errors.New("no active user")
)

// Field error codes.
const (
	CodeTooShort       = "too_short"
	CodeDateEmpty      = "date_empty"
	CodeTimeEmpty      = "time_empty"
	CodeCustomerEmpty  = "customer_empty"
	CodeContactEmpty   = "contact_empty"
	CodeUnknownRef     = "unknown_reference"
	CodeOutsideWindow  = "outside_business_hours"
	CodeUserNotAllowed = "user_not_allowed"
	CodeTestingOnly    = "testing_mode_only"
)

// FieldError is a single field-level validation problem.
type FieldError struct {
	Field   string
	Code    string
	Message string
}

// ValidationError aggregates all field problems of a request.
type ValidationError struct {
	Fields []FieldError
}

// Add records a field problem.
func (e *ValidationError) Add(field, code, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Code: code, Message: message})
}

// Has reports whether the field has at least one problem.
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// Codes returns the problem codes in insertion order.
func (e *ValidationError) Codes() []string {
	codes := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		codes[i] = f.Code
	}
	return codes
}

// Merge appends the problems of other.
func (e *ValidationError) Merge(other *ValidationError) {
	if other == nil {
		return
	}
	e.Fields = append(e.Fields, other.Fields...)
}

// OrNil returns e when it holds problems and nil otherwise.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return "invalid appointment: " + strings.Join(parts, "; ")
}

// ConflictError reports the busy window that blocks a request.
// The window is the union of all overlapping appointments of the customer.
type ConflictError struct {
	BlockStart time.Time
	BlockEnd   time.Time
	Conflicts  []Appointment
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("customer is busy from %s to %s",
		e.BlockStart.Format("2006-01-02 15:04"), e.BlockEnd.Format("2006-01-02 15:04"))
}

// PersistenceError wraps a failed storage call.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Kind returns a stable label for err, used in logs and CLI output.
func Kind(err error) string {
	var (
		verr *ValidationError
		cerr *ConflictError
		perr *PersistenceError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &verr):
		return "validation"
	case errors.As(err, &cerr):
		return "conflict"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.As(err, &perr):
		return "persistence"
	default:
		return "internal"
	}
}
