package appointment

import (
	"context"
	"time"
)

// Filter narrows ListAppointments. Zero values mean "any".
// StartAfter keeps appointments ending at or after it and EndBefore keeps
// those starting at or before it, so together they select every appointment
// touching the window.
type Filter struct {
	ID         int64
	CustomerID int64
	UserID     int64
	StartAfter time.Time
	EndBefore  time.Time
}

// Repository defines the storage interface for appointments.
// All instants crossing this boundary are canonical (UTC).
type Repository interface {
	// ListAppointments returns matching appointments ordered by start.
	ListAppointments(ctx context.Context, f Filter) ([]Appointment, error)

	// InsertAppointment stores a new appointment and returns its id.
	InsertAppointment(ctx context.Context, a Appointment) (int64, error)

	// UpdateAppointment replaces the stored record with a.ID.
	// It returns false when no such record exists.
	UpdateAppointment(ctx context.Context, a Appointment) (bool, error)

	// DeleteAppointment removes a record, returning false if it was absent.
	DeleteAppointment(ctx context.Context, id int64) (bool, error)

	// Exists reports whether a record with id is stored.
	Exists(ctx context.Context, id int64) (bool, error)
}
