// Package appointment defines the core domain types for rendezvous.
package appointment

import (
	"strings"
	"time"
)

// MinTextLength is the minimum length of title, type and location.
const MinTextLength = 3

// Customer is the party an appointment is booked for.
type Customer struct {
	ID   int64
	Name string
}

// Contact is the person reached for an appointment.
type Contact struct {
	ID    int64
	Name  string
	Email string
}

// User is the agent that owns an appointment.
type User struct {
	ID    int64
	Name  string
	Admin bool
}

// Fields holds the caller-editable part of an appointment.
type Fields struct {
	Title       string
	Description string
	Location    string
	Type        string
	Start       time.Time
	End         time.Time
	CustomerID  int64
	UserID      int64
	ContactID   int64
}

// Equal reports whether two field sets describe the same appointment.
// Instants are compared with time.Equal so zone differences don't count.
func (f Fields) Equal(o Fields) bool {
	return f.Title == o.Title &&
		f.Description == o.Description &&
		f.Location == o.Location &&
		f.Type == o.Type &&
		f.Start.Equal(o.Start) &&
		f.End.Equal(o.End) &&
		f.CustomerID == o.CustomerID &&
		f.UserID == o.UserID &&
		f.ContactID == o.ContactID
}

// Duration returns End - Start.
func (f Fields) Duration() time.Duration {
	return f.End.Sub(f.Start)
}

// Validate collects every field-level problem into a single ValidationError.
// It returns nil when all fields are acceptable.
func (f Fields) Validate() error {
	verr := &ValidationError{}
	checkText(verr, "title", f.Title)
	checkText(verr, "type", f.Type)
	checkText(verr, "location", f.Location)
	if f.Start.IsZero() {
		verr.Add("start", CodeDateEmpty, "a date must be selected")
	}
	if f.End.IsZero() {
		verr.Add("end", CodeTimeEmpty, "an end time must be selected")
	}
	if f.CustomerID <= 0 {
		verr.Add("customer", CodeCustomerEmpty, "a customer must be selected")
	}
	if f.ContactID <= 0 {
		verr.Add("contact", CodeContactEmpty, "a contact must be selected")
	}
	return verr.OrNil()
}

func checkText(verr *ValidationError, field, value string) {
	if len([]rune(strings.TrimSpace(value))) < MinTextLength {
		verr.Add(field, CodeTooShort, field+" must be at least 3 characters")
	}
}

// Appointment is a persisted, immutable appointment record.
// ID zero means the value has not been stored yet.
type Appointment struct {
	ID int64
	Fields

	CreatedAt time.Time
	CreatedBy string
	UpdatedAt time.Time
	UpdatedBy string
}

// Persisted reports whether storage has assigned an id.
func (a Appointment) Persisted() bool {
	return a.ID > 0
}

// Same reports identity equality. Two appointments are the same when they
// carry the same storage id, regardless of their field values.
func (a Appointment) Same(o Appointment) bool {
	return a.Persisted() && a.ID == o.ID
}

// In returns a copy with every instant expressed in loc.
func (a Appointment) In(loc *time.Location) Appointment {
	a.Start = a.Start.In(loc)
	a.End = a.End.In(loc)
	if !a.CreatedAt.IsZero() {
		a.CreatedAt = a.CreatedAt.In(loc)
	}
	if !a.UpdatedAt.IsZero() {
		a.UpdatedAt = a.UpdatedAt.In(loc)
	}
	return a
}

// Overlaps reports whether a and o overlap as half-open intervals.
func (a Appointment) Overlaps(o Appointment) bool {
	return a.Start.Before(o.End) && o.Start.Before(a.End)
}
