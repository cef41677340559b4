package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/javiermolinar/rendezvous/internal/appointment"
	"github.com/javiermolinar/rendezvous/internal/directory"
)

// Store is a complete storage backend.
type Store interface {
	appointment.Repository
	directory.Source

	AddCustomer(ctx context.Context, name string) (int64, error)
	AddContact(ctx context.Context, name, email string) (int64, error)
	AddUser(ctx context.Context, name string, admin bool) (int64, error)
	Close() error
}

// Open opens the store named by driver: "sqlite", "postgres" or "memory".
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "", "sqlite":
		return New(dsn)
	case "postgres":
		return OpenPostgres(ctx, dsn)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}

const appointmentColumns = `id, title, description, location, type, start_at, end_at,
		       created_at, created_by, updated_at, updated_by, customer_id, user_id, contact_id`

// dialect adapts the shared query builder to a driver.
type dialect struct {
	placeholder func(n int) string
	timeArg     func(t time.Time) any
}

// listQuery renders the ListAppointments query for f.
func (d dialect) listQuery(f appointment.Filter) (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		where = append(where, strings.ReplaceAll(cond, "?", d.placeholder(len(args))))
	}

	if f.ID > 0 {
		add("id = ?", f.ID)
	}
	if f.CustomerID > 0 {
		add("customer_id = ?", f.CustomerID)
	}
	if f.UserID > 0 {
		add("user_id = ?", f.UserID)
	}
	if !f.StartAfter.IsZero() {
		add("end_at >= ?", d.timeArg(f.StartAfter))
	}
	if !f.EndBefore.IsZero() {
		add("start_at <= ?", d.timeArg(f.EndBefore))
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(appointmentColumns)
	b.WriteString("\n\t\tFROM appointments")
	if len(where) > 0 {
		b.WriteString("\n\t\tWHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString("\n\t\tORDER BY start_at, id")
	return b.String(), args
}

// overlapQuery selects a customer's appointments strictly overlapping [start, end).
func (d dialect) overlapQuery(customerID int64, start, end time.Time, excludeID int64) (string, []any) {
	q := "SELECT " + appointmentColumns + `
		FROM appointments
		WHERE customer_id = ` + d.placeholder(1) + `
		  AND start_at < ` + d.placeholder(2) + `
		  AND end_at > ` + d.placeholder(3) + `
		  AND id <> ` + d.placeholder(4) + `
		ORDER BY start_at, id`
	return q, []any{customerID, d.timeArg(end), d.timeArg(start), excludeID}
}
